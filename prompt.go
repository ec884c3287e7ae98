package springseq

import (
	"fmt"
	"strings"
)

// MemoryWindow is the number of memory entries surfaced per prompt.
const MemoryWindow = 3

// generationTriggers mark an utterance as a request for a new sequence.
var generationTriggers = []string{
	"generate",
	"create",
	"make",
	"new sequence",
	"test sequence",
	"spring test",
	"compression test",
	"tension test",
	"free length",
	"wire diameter",
	"outer diameter",
	"spring rate",
}

// IsGenerationRequest reports whether text asks for a new test sequence.
// It is a case-insensitive substring match against a fixed trigger list,
// so an incidental trigger word in a general question also counts.
func IsGenerationRequest(text string) bool {
	lower := strings.ToLower(text)
	for _, trigger := range generationTriggers {
		if strings.Contains(lower, trigger) {
			return true
		}
	}
	return false
}

// Prompt is a composed single-turn completion request.
type Prompt struct {
	System     string // static protocol instructions
	User       string // templated per utterance
	Generation bool   // intent decided at composition time
}

// Messages returns the prompt as provider messages.
func (p Prompt) Messages() []Message {
	return []Message{
		{Role: RoleSystem, Content: p.System},
		{Role: RoleUser, Content: p.User},
	}
}

// FormatValue renders a parameter value for a prompt line. Numbers get
// precision scaled to magnitude and a unit inferred from the name.
func FormatValue(name ParamName, v Value) string {
	f, ok := v.Float()
	if !ok {
		return v.String()
	}

	var formatted string
	switch {
	case f < 0.1:
		formatted = fmt.Sprintf("%.3f", f)
	case f < 1:
		formatted = fmt.Sprintf("%.2f", f)
	default:
		formatted = fmt.Sprintf("%.1f", f)
	}

	key := string(name)
	switch {
	case strings.Contains(key, "Length"), strings.Contains(key, "Diameter"):
		formatted += " mm"
	case strings.Contains(key, "Force"), strings.Contains(key, "Load"):
		formatted += " N"
	case strings.Contains(key, "Rate"):
		formatted += " N/mm"
	}
	return formatted
}

// FormatParameters renders one "Key: value[ unit]" line per parameter,
// skipping the timestamp.
func FormatParameters(params Parameters) string {
	var lines []string
	for _, name := range params.Names() {
		if name == ParamTimestamp {
			continue
		}
		v, _ := params.Get(name)
		lines = append(lines, fmt.Sprintf("%s: %s", name, FormatValue(name, v)))
	}
	return strings.Join(lines, "\n")
}

// Compose builds the prompt pair for an utterance. Generation requests embed
// the parameter lines and a test-type hint; anything else embeds the
// utterance verbatim. Up to MemoryWindow trailing memory entries are
// appended as context, oldest first.
func Compose(params Parameters, utterance string, memory []string) Prompt {
	generation := IsGenerationRequest(utterance)

	var parameterText, intentText string
	if generation {
		parameterText = FormatParameters(params)
		if tt, ok := params.TestType(); ok {
			intentText = fmt.Sprintf("If I want a test sequence, please make it a %s test.", tt)
		}
	} else {
		intentText = "My message: " + utterance
	}

	var b strings.Builder
	b.WriteString(parameterText)
	b.WriteString("\n\n")
	b.WriteString(intentText)
	b.WriteString("\n\n")
	b.WriteString(userInstructions)

	if len(memory) > MemoryWindow {
		memory = memory[len(memory)-MemoryWindow:]
	}
	if len(memory) > 0 {
		b.WriteString("\n\nPrevious context:\n")
		b.WriteString(strings.Join(memory, "\n"))
	}

	return Prompt{
		System:     systemPrompt,
		User:       b.String(),
		Generation: generation,
	}
}

const userInstructions = `If I have provided spring specifications, acknowledge them and use them for the calculations. If I have asked for a test sequence, generate one:

1. Derive from the specifications:
   - contact force from the wire diameter and spring type
   - test speeds from the spring size and expected forces
   - positions relative to the free length and set points
   - tolerances proportional to the expected measurements

2. Include these phases:
   - initial setup (zeroing and contact detection)
   - free length measurement with tolerance
   - conditioning with scragging
   - free length verification after conditioning
   - measurements at the relevant test positions
   - return to a safe position and a completion message

If I have not asked for a sequence or the specifications are unclear, answer conversationally and ask for what is missing. Answer general questions about springs or testing directly without generating a sequence.`

var systemPrompt = buildSystemPrompt()

func buildSystemPrompt() string {
	var b strings.Builder
	b.WriteString(`You are an assistant for spring force testing systems. You talk with engineers and technicians and, when asked, produce test sequences for an automated spring tester.

Conversation:
- Answer general questions about springs and testing in plain language.
- Generate a sequence only when the user asks for one or provides spring specifications.
- If a request is unclear, ask a clarifying question first.

Sequence phases:
1. Setup: ZF to tare force, TH to search contact, FL(P) to measure free length with tolerance.
2. Conditioning: Mv(P) to the test positions, Scrag in the form "R03,2" (row reference, cycles).
3. Verification: TH and FL(P) again after conditioning.
4. Measurement: Mv(P) then Fr(P) at each test position, TD for settling delays.
5. Completion: PMsg with "Test Completed".

Sizing:
- wire diameter < 1 mm: low forces and speeds
- wire diameter 1-3 mm: moderate forces and speeds
- wire diameter > 3 mm: higher forces and speeds
- scale positions with the free length and tolerances with the expected forces

Command vocabulary:
`)
	for _, c := range Commands {
		speed := StandardSpeed(c.Code)
		if speed == "" {
			fmt.Fprintf(&b, "- %s: %s (no speed)\n", c.Code, c.Description)
			continue
		}
		fmt.Fprintf(&b, "- %s: %s (typical %s rpm)\n", c.Code, c.Description, speed)
	}
	b.WriteString(`
Row fields:
- Row: "R00", "R01", ... numbered sequentially
- CMD: the exact command code from the vocabulary
- Description: the standard description of the command
- Condition: value or formula, numeric only where appropriate
- Unit: "N" for force, "mm" for position, "Sec" for time, empty otherwise
- Tolerance: "nominal(min,max)" or empty
- Speed rpm: only for commands that move

When generating a sequence, return it as a JSON array matching this schema:
`)
	b.WriteString(rowSchema())
	b.WriteString(`

Example row:
{"Row": "R06", "CMD": "Mv(P)", "Description": "Move to Position", "Condition": "45", "Unit": "mm", "Tolerance": "", "Speed rpm": "50"}
`)
	return b.String()
}
