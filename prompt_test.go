package springseq

import (
	"strings"
	"testing"
	"time"
)

func TestIsGenerationRequest(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"Generate a sequence", true},
		{"please CREATE one", true},
		{"compression test for 50mm", true},
		{"What is the free length?", true},
		{"How does scragging work?", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsGenerationRequest(tt.text); got != tt.want {
			t.Errorf("IsGenerationRequest(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name ParamName
		v    Value
		want string
	}{
		{ParamFreeLength, Number(50), "50.0 mm"},
		{ParamWireDiameter, Number(0.5), "0.50 mm"},
		{ParamWireDiameter, Number(0.05), "0.050 mm"},
		{ParamTestLoad, Number(120), "120.0 N"},
		{ParamSpringRate, Number(3.5), "3.5 N/mm"},
		{ParamDeflection, Number(10), "10.0"},
		{ParamPartNumber, Text("SP-1"), "SP-1"},
	}
	for _, tt := range tests {
		if got := FormatValue(tt.name, tt.v); got != tt.want {
			t.Errorf("FormatValue(%s, %v) = %q, want %q", tt.name, tt.v, got, tt.want)
		}
	}
}

func TestFormatParameters(t *testing.T) {
	params := NewParameters(map[ParamName]Value{
		ParamWireDiameter: Number(2),
		ParamTestType:     Text("Tension"),
		ParamFreeLength:   Number(50),
	}, time.Now())

	want := "Test Type: Tension\nFree Length: 50.0 mm\nWire Diameter: 2.0 mm"
	if got := FormatParameters(params); got != want {
		t.Errorf("FormatParameters() = %q, want %q", got, want)
	}
	if got := FormatParameters(Parameters{}); got != "" {
		t.Errorf("Expected empty summary, got %q", got)
	}
}

func TestComposeGeneration(t *testing.T) {
	params := Extract("Generate a compression test, free length 50mm")
	prompt := Compose(params, "Generate a compression test, free length 50mm", nil)

	if !prompt.Generation {
		t.Fatal("Expected generation intent")
	}
	if !strings.HasPrefix(prompt.User, "Test Type: Compression\nFree Length: 50.0 mm\n\n") {
		t.Errorf("Expected parameter lines first, got %q", prompt.User)
	}
	if !strings.Contains(prompt.User, "If I want a test sequence, please make it a Compression test.") {
		t.Error("Expected test type hint")
	}
	if strings.Contains(prompt.User, "Timestamp") {
		t.Error("Timestamp should not be in the prompt")
	}
	if strings.Contains(prompt.User, "Previous context") {
		t.Error("Empty memory should not add a context block")
	}
	if prompt.System != systemPrompt {
		t.Error("Expected the static system prompt")
	}
}

func TestComposeConversation(t *testing.T) {
	params := Extract("How does scragging work?")
	prompt := Compose(params, "How does scragging work?", nil)

	if prompt.Generation {
		t.Fatal("Expected conversational intent")
	}
	if !strings.Contains(prompt.User, "My message: How does scragging work?") {
		t.Errorf("Expected utterance in prompt, got %q", prompt.User)
	}
	if strings.Contains(prompt.User, "please make it a") {
		t.Error("Conversational prompt should not carry a test type hint")
	}
}

func TestComposeMemoryWindow(t *testing.T) {
	memory := []string{"one", "two", "three", "four"}
	prompt := Compose(Parameters{}, "hello", memory)

	idx := strings.Index(prompt.User, "\n\nPrevious context:\n")
	if idx < 0 {
		t.Fatal("Expected context block")
	}
	if got := prompt.User[idx:]; got != "\n\nPrevious context:\ntwo\nthree\nfour" {
		t.Errorf("Unexpected context block %q", got)
	}
}

func TestComposeDeterministic(t *testing.T) {
	params := NewParameters(map[ParamName]Value{ParamFreeLength: Number(30)}, time.Time{})
	a := Compose(params, "make a spring test", []string{"x"})
	b := Compose(params, "make a spring test", []string{"x"})
	if a != b {
		t.Error("Compose should be deterministic")
	}
}

func TestPromptMessages(t *testing.T) {
	msgs := Prompt{System: "s", User: "u"}.Messages()
	if len(msgs) != 2 || msgs[0].Role != RoleSystem || msgs[1].Role != RoleUser {
		t.Errorf("Unexpected messages %+v", msgs)
	}
}

func TestSystemPrompt(t *testing.T) {
	for _, c := range Commands {
		if !strings.Contains(systemPrompt, "- "+c.Code+": "+c.Description) {
			t.Errorf("System prompt missing command %s", c.Code)
		}
	}
	for _, col := range Columns {
		if !strings.Contains(systemPrompt, `"`+col+`"`) {
			t.Errorf("System prompt schema missing column %q", col)
		}
	}
}
