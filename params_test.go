package springseq

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/zoobzio/clockz"
)

func TestExtract(t *testing.T) {
	t.Run("free length with unit", func(t *testing.T) {
		params := Extract("Free length 50mm please")
		got, ok := params.Float(ParamFreeLength)
		if !ok || got != 50.0 {
			t.Errorf("Expected Free Length 50.0, got %v (%v)", got, ok)
		}
	})

	t.Run("full specification", func(t *testing.T) {
		text := "Compression spring, free length: 45.5 mm, wire diameter 2.2mm, outer diameter 20 mm, " +
			"inner diameter is 15.6, spring rate 3.5, test load 120, deflection 10, working length 30, part number SP-1234"
		params := Extract(text)

		want := map[string]any{
			"Test Type":      "Compression",
			"Free Length":    45.5,
			"Wire Diameter":  2.2,
			"Outer Diameter": 20.0,
			"Inner Diameter": 15.6,
			"Spring Rate":    3.5,
			"Test Load":      120.0,
			"Deflection":     10.0,
			"Working Length": 30.0,
			"Part Number":    "SP-1234",
		}
		got := params.Map()
		delete(got, string(ParamTimestamp))
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("Extract() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("identifiers stay text", func(t *testing.T) {
		params := Extract("model number 1234")
		v, ok := params.Get(ParamModelNumber)
		if !ok {
			t.Fatal("Expected Model Number")
		}
		if v.IsNumber() {
			t.Error("Model Number should be text")
		}
		if v.String() != "1234" {
			t.Errorf("Expected 1234, got %q", v.String())
		}
	})

	t.Run("no parameters", func(t *testing.T) {
		params := Extract("hello there")
		if params.Len() != 1 {
			t.Errorf("Expected only the timestamp, got %v", params.Names())
		}
		if _, ok := params.Get(ParamTimestamp); !ok {
			t.Error("Expected a timestamp")
		}
	})
}

func TestExtractTestType(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		want   TestType
		wantOK bool
	}{
		{"compression", "run a compression test", TestTypeCompression, true},
		{"compress", "compress it to 20mm", TestTypeCompression, true},
		{"tension", "Tension spring with hooks", TestTypeTension, true},
		{"extension", "extension spring", TestTypeTension, true},
		{"both cues prefer compression", "tension or compression?", TestTypeCompression, true},
		{"word boundary", "pretension value", "", false},
		{"absent", "free length 50", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Extract(tt.text).TestType()
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("TestType() = %q, %v; want %q, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestExtractorDefaultTestType(t *testing.T) {
	e := NewExtractor(WithDefaultTestType(TestTypeCompression))

	got, ok := e.Extract("free length 50").TestType()
	if !ok || got != TestTypeCompression {
		t.Errorf("Expected default Compression, got %q %v", got, ok)
	}

	got, _ = e.Extract("tension spring").TestType()
	if got != TestTypeTension {
		t.Errorf("Explicit cue should win over default, got %q", got)
	}
}

func TestExtractorClock(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	clock := clockz.NewFakeClockAt(now)
	e := NewExtractor(WithExtractorClock(clock))

	params := e.Extract("free length 10")
	if !params.GeneratedAt().Equal(now) {
		t.Errorf("Expected %v, got %v", now, params.GeneratedAt())
	}
	ts, _ := params.Get(ParamTimestamp)
	if ts.String() != "2024-03-01 09:30:00" {
		t.Errorf("Unexpected timestamp %q", ts.String())
	}
}

func TestNewParameters(t *testing.T) {
	params := NewParameters(map[ParamName]Value{
		ParamTestType:   Text("Torsion"),
		ParamFreeLength: Number(12),
	}, time.Time{})

	if _, ok := params.TestType(); ok {
		t.Error("Invalid test type should be dropped")
	}
	if _, ok := params.Get(ParamTimestamp); ok {
		t.Error("Zero time should not add a timestamp")
	}
	if diff := cmp.Diff([]ParamName{ParamFreeLength}, params.Names()); diff != "" {
		t.Errorf("Names() mismatch (-want +got):\n%s", diff)
	}
}

func TestParametersZeroValue(t *testing.T) {
	var params Parameters
	if params.Len() != 0 {
		t.Error("Zero value should be empty")
	}
	if _, ok := params.Float(ParamFreeLength); ok {
		t.Error("Zero value should have no values")
	}
	if len(params.Map()) != 0 {
		t.Error("Zero value map should be empty")
	}
}

func TestValue(t *testing.T) {
	n := Number(2.5)
	if !n.IsNumber() || n.String() != "2.5" {
		t.Errorf("Unexpected number value %v", n)
	}
	if f, ok := Text("abc").Float(); ok || f != 0 {
		t.Error("Text should not be numeric")
	}
}
