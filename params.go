package springseq

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/zoobzio/clockz"
)

// ParamName identifies one engineering parameter.
type ParamName string

// Parameter names.
const (
	ParamTestType      ParamName = "Test Type"
	ParamFreeLength    ParamName = "Free Length"
	ParamPartNumber    ParamName = "Part Number"
	ParamModelNumber   ParamName = "Model Number"
	ParamWireDiameter  ParamName = "Wire Diameter"
	ParamOuterDiameter ParamName = "Outer Diameter"
	ParamInnerDiameter ParamName = "Inner Diameter"
	ParamSpringRate    ParamName = "Spring Rate"
	ParamTestLoad      ParamName = "Test Load"
	ParamDeflection    ParamName = "Deflection"
	ParamWorkingLength ParamName = "Working Length"
	ParamCustomerID    ParamName = "Customer ID"
	ParamTimestamp     ParamName = "Timestamp"
)

// TimestampLayout is the layout of the Timestamp parameter.
const TimestampLayout = "2006-01-02 15:04:05"

// TestType is the loading direction of a spring test.
type TestType string

// Test types.
const (
	TestTypeCompression TestType = "Compression"
	TestTypeTension     TestType = "Tension"
)

var (
	compressionPattern = regexp.MustCompile(`(?i)\b(?:compress|compression)\b`)
	tensionPattern     = regexp.MustCompile(`(?i)\b(?:tens|tension|extension|extend)\b`)
)

type parameterPattern struct {
	name       ParamName
	re         *regexp.Regexp
	identifier bool // identifiers are kept verbatim, never parsed as numbers
}

// parameterPatterns run in this order; each fires at most once per text.
var parameterPatterns = []parameterPattern{
	{name: ParamFreeLength, re: regexp.MustCompile(`(?i)free\s*length\s*(?:[=:]|is|of)?\s*(\d+\.?\d*)\s*(?:mm)?`)},
	{name: ParamPartNumber, re: regexp.MustCompile(`(?i)part\s*(?:number|#|no\.?)?\s*(?:[=:]|is)?\s*([A-Za-z0-9_-]+)`), identifier: true},
	{name: ParamModelNumber, re: regexp.MustCompile(`(?i)model\s*(?:number|#|no\.?)?\s*(?:[=:]|is)?\s*([A-Za-z0-9_-]+)`), identifier: true},
	{name: ParamWireDiameter, re: regexp.MustCompile(`(?i)wire\s*(?:diameter|thickness)?\s*(?:[=:]|is)?\s*(\d+\.?\d*)\s*(?:mm)?`)},
	{name: ParamOuterDiameter, re: regexp.MustCompile(`(?i)(?:outer|outside)\s*diameter\s*(?:[=:]|is)?\s*(\d+\.?\d*)\s*(?:mm)?`)},
	{name: ParamInnerDiameter, re: regexp.MustCompile(`(?i)(?:inner|inside)\s*diameter\s*(?:[=:]|is)?\s*(\d+\.?\d*)\s*(?:mm)?`)},
	{name: ParamSpringRate, re: regexp.MustCompile(`(?i)(?:spring|target)\s*rate\s*(?:[=:]|is)?\s*(\d+\.?\d*)`)},
	{name: ParamTestLoad, re: regexp.MustCompile(`(?i)(?:test|target)\s*load\s*(?:[=:]|is)?\s*(\d+\.?\d*)`)},
	{name: ParamDeflection, re: regexp.MustCompile(`(?i)deflection\s*(?:[=:]|is)?\s*(\d+\.?\d*)`)},
	{name: ParamWorkingLength, re: regexp.MustCompile(`(?i)working\s*length\s*(?:[=:]|is)?\s*(\d+\.?\d*)`)},
	{name: ParamCustomerID, re: regexp.MustCompile(`(?i)customer\s*(?:id|number)?\s*(?:[=:]|is)?\s*([A-Za-z0-9\s]+)`), identifier: true},
}

// paramOrder is the rendering order of a parameter set.
var paramOrder = []ParamName{
	ParamTestType,
	ParamFreeLength,
	ParamPartNumber,
	ParamModelNumber,
	ParamWireDiameter,
	ParamOuterDiameter,
	ParamInnerDiameter,
	ParamSpringRate,
	ParamTestLoad,
	ParamDeflection,
	ParamWorkingLength,
	ParamCustomerID,
	ParamTimestamp,
}

// Value is a parameter value: either a number or a string.
type Value struct {
	num     float64
	str     string
	numeric bool
}

// Number wraps a numeric value.
func Number(f float64) Value { return Value{num: f, numeric: true} }

// Text wraps a string value.
func Text(s string) Value { return Value{str: s} }

// IsNumber reports whether the value is numeric.
func (v Value) IsNumber() bool { return v.numeric }

// Float returns the numeric value. ok is false for string values.
func (v Value) Float() (float64, bool) { return v.num, v.numeric }

// String returns the value as text. Numbers use the shortest exact form.
func (v Value) String() string {
	if v.numeric {
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	}
	return v.str
}

// Parameters is an immutable set of extracted parameters.
// The zero value is an empty set.
type Parameters struct {
	values    map[ParamName]Value
	generated time.Time
}

// NewParameters builds a parameter set from explicit values.
// A TestType entry outside Compression/Tension is dropped.
func NewParameters(values map[ParamName]Value, generated time.Time) Parameters {
	p := Parameters{values: make(map[ParamName]Value, len(values)+1), generated: generated}
	for name, v := range values {
		if name == ParamTestType && !validTestType(v) {
			continue
		}
		p.values[name] = v
	}
	if !generated.IsZero() {
		if _, ok := p.values[ParamTimestamp]; !ok {
			p.values[ParamTimestamp] = Text(generated.Format(TimestampLayout))
		}
	}
	return p
}

func validTestType(v Value) bool {
	if v.IsNumber() {
		return false
	}
	tt := TestType(v.String())
	return tt == TestTypeCompression || tt == TestTypeTension
}

// Get returns the value for name.
func (p Parameters) Get(name ParamName) (Value, bool) {
	v, ok := p.values[name]
	return v, ok
}

// Float returns a numeric parameter.
func (p Parameters) Float(name ParamName) (float64, bool) {
	v, ok := p.values[name]
	if !ok {
		return 0, false
	}
	return v.Float()
}

// TestType returns the detected test type, if any cue was found.
func (p Parameters) TestType() (TestType, bool) {
	v, ok := p.values[ParamTestType]
	if !ok {
		return "", false
	}
	return TestType(v.String()), true
}

// GeneratedAt is the wall-clock time the set was extracted.
func (p Parameters) GeneratedAt() time.Time { return p.generated }

// Len returns the number of parameters, timestamp included.
func (p Parameters) Len() int { return len(p.values) }

// Names returns the present parameter names in rendering order.
func (p Parameters) Names() []ParamName {
	names := make([]ParamName, 0, len(p.values))
	for _, name := range paramOrder {
		if _, ok := p.values[name]; ok {
			names = append(names, name)
		}
	}
	return names
}

// Map returns a copy of the parameters as plain Go values
// (float64 or string), suitable for JSON encoding.
func (p Parameters) Map() map[string]any {
	out := make(map[string]any, len(p.values))
	for name, v := range p.values {
		if f, ok := v.Float(); ok {
			out[string(name)] = f
		} else {
			out[string(name)] = v.String()
		}
	}
	return out
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithDefaultTestType makes the extractor fall back to tt when the text has
// no compression or tension cue, instead of leaving Test Type unset.
func WithDefaultTestType(tt TestType) ExtractorOption {
	return func(e *Extractor) {
		e.defaultTestType = tt
	}
}

// WithExtractorClock sets the clock used for the generation timestamp.
func WithExtractorClock(clock clockz.Clock) ExtractorOption {
	return func(e *Extractor) {
		e.clock = clock
	}
}

// Extractor pulls engineering parameters out of free text.
// It holds no mutable state and is safe for concurrent use.
type Extractor struct {
	clock           clockz.Clock
	defaultTestType TestType
}

// NewExtractor creates an Extractor.
func NewExtractor(opts ...ExtractorOption) *Extractor {
	e := &Extractor{clock: clockz.RealClock}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var defaultExtractor = NewExtractor()

// Extract runs the default extractor over text.
func Extract(text string) Parameters {
	return defaultExtractor.Extract(text)
}

// Extract returns every parameter found in text plus a timestamp.
// No match is not an error: the result may hold only the timestamp.
func (e *Extractor) Extract(text string) Parameters {
	values := make(map[ParamName]Value)

	switch {
	case compressionPattern.MatchString(text):
		values[ParamTestType] = Text(string(TestTypeCompression))
	case tensionPattern.MatchString(text):
		values[ParamTestType] = Text(string(TestTypeTension))
	case e.defaultTestType != "":
		values[ParamTestType] = Text(string(e.defaultTestType))
	}

	for _, pattern := range parameterPatterns {
		match := pattern.re.FindStringSubmatch(text)
		if match == nil {
			continue
		}
		raw := strings.TrimSpace(match[1])
		if pattern.identifier {
			values[pattern.name] = Text(raw)
			continue
		}
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			values[pattern.name] = Number(f)
		} else {
			values[pattern.name] = Text(raw)
		}
	}

	return NewParameters(values, e.clock.Now())
}
