package springseq

import "strings"

// Command is one entry of the tester's instruction vocabulary.
type Command struct {
	Code        string
	Description string
}

// Commands is the fixed command vocabulary in declaration order.
// Description back-fill scans it front to back, so order is significant.
var Commands = []Command{
	{Code: "ZF", Description: "Zero Force"},
	{Code: "ZD", Description: "Zero Displacement"},
	{Code: "TH", Description: "Threshold (Search Contact)"},
	{Code: "LP", Description: "Loop"},
	{Code: "Mv(P)", Description: "Move to Position"},
	{Code: "Calc", Description: "Formula Calculation"},
	{Code: "TD", Description: "Time Delay"},
	{Code: "PMsg", Description: "User Message"},
	{Code: "Fr(P)", Description: "Force at Position"},
	{Code: "FL(P)", Description: "Measure Free Length"},
	{Code: "Scrag", Description: "Scragging"},
	{Code: "SR", Description: "Spring Rate"},
	{Code: "PkF", Description: "Measure Peak Force"},
	{Code: "PkP", Description: "Measure Peak Position"},
	{Code: "Po(F)", Description: "Position at Force"},
	{Code: "Po(PkF)", Description: "Position at Peak Force"},
	{Code: "Mv(F)", Description: "Move to Force"},
	{Code: "PUi", Description: "User Input"},
}

// DefaultSpeed is the speed in rpm for commands without a table entry.
const DefaultSpeed = "100"

// StandardSpeeds holds typical speeds in rpm per command code.
// An empty value means the command does not move the crosshead.
var StandardSpeeds = map[string]string{
	"ZF":    "50",
	"ZD":    "50",
	"TH":    "50",
	"Mv(P)": "200",
	"TD":    "",
	"PMsg":  "",
	"Fr(P)": "100",
	"FL(P)": "100",
	"Scrag": "300",
	"SR":    "100",
	"PkF":   "100",
	"PkP":   "100",
	"Po(F)": "100",
	"Mv(F)": "200",
}

// IsCommand reports whether code belongs to the vocabulary.
func IsCommand(code string) bool {
	for _, c := range Commands {
		if c.Code == code {
			return true
		}
	}
	return false
}

// DescribeCommand returns the human description for code.
func DescribeCommand(code string) (string, bool) {
	for _, c := range Commands {
		if c.Code == code {
			return c.Description, true
		}
	}
	return "", false
}

// StandardSpeed returns the typical speed for code, falling back to DefaultSpeed.
func StandardSpeed(code string) string {
	if speed, ok := StandardSpeeds[code]; ok {
		return speed
	}
	return DefaultSpeed
}

// LookupCommand resolves a command code from a row description. The first
// vocabulary entry whose description equals or is contained in the given
// text wins; matching ignores case.
func LookupCommand(description string) (string, bool) {
	text := strings.ToLower(strings.TrimSpace(description))
	if text == "" {
		return "", false
	}
	for _, c := range Commands {
		if strings.Contains(text, strings.ToLower(c.Description)) {
			return c.Code, true
		}
	}
	return "", false
}
