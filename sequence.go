package springseq

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Column headers of a sequence table, in their fixed order.
const (
	ColumnRow         = "Row"
	ColumnCMD         = "CMD"
	ColumnDescription = "Description"
	ColumnCondition   = "Condition"
	ColumnUnit        = "Unit"
	ColumnTolerance   = "Tolerance"
	ColumnSpeed       = "Speed rpm"
)

// Columns lists the table headers in order.
var Columns = []string{
	ColumnRow,
	ColumnCMD,
	ColumnDescription,
	ColumnCondition,
	ColumnUnit,
	ColumnTolerance,
	ColumnSpeed,
}

// ChatRowID marks the single degenerate row carrying a conversational reply.
const ChatRowID = "CHAT"

// Row is one step of a test sequence.
type Row struct {
	Row         string `json:"Row" desc:"Row id, R00 upward"`
	CMD         string `json:"CMD" desc:"Command code from the vocabulary"`
	Description string `json:"Description" desc:"Standard description of the command"`
	Condition   string `json:"Condition" desc:"Value or formula"`
	Unit        string `json:"Unit" desc:"N, mm, Sec or empty"`
	Tolerance   string `json:"Tolerance" desc:"nominal(min,max) or empty"`
	SpeedRPM    string `json:"Speed rpm" desc:"Speed in rpm or empty"`
}

// Values returns the row's fields in column order.
func (r Row) Values() []string {
	return []string{r.Row, r.CMD, r.Description, r.Condition, r.Unit, r.Tolerance, r.SpeedRPM}
}

// IsChat reports whether the row wraps a conversational reply.
func (r Row) IsChat() bool {
	return r.Row == ChatRowID && r.CMD == ChatRowID
}

// ChatRow wraps a conversational reply as a degenerate row.
func ChatRow(text string) Row {
	return Row{Row: ChatRowID, CMD: ChatRowID, Description: text}
}

// Sequence is a generated test sequence with the parameters it was built from.
type Sequence struct {
	Rows       []Row          `json:"rows"`
	Parameters map[string]any `json:"parameters"`
	CreatedAt  time.Time      `json:"created_at"`
	Name       string         `json:"name,omitempty"`
}

var (
	// A fenced json block, or failing that everything from the first "[" to the last "]".
	blockPattern = regexp.MustCompile("(?s)```json\\n(.*?)\\n```|(\\[.*\\])")
	fencePattern = regexp.MustCompile("(?m)^```.*|```$")
	arrayPattern = regexp.MustCompile(`(?s)\[(.*)\]`)
)

// ParseSequence recovers a row table from a completion. Fenced blocks,
// surrounding prose and trailing junk are tolerated; anything that cannot
// be recovered yields an empty slice, never an error.
func ParseSequence(text string) []Row {
	records := extractRecords(text)
	if len(records) == 0 {
		return []Row{}
	}
	rows := make([]Row, 0, len(records))
	for _, record := range records {
		rows = append(rows, Reconcile(record))
	}
	return rows
}

// extractRecords runs the fallback chain and returns the raw JSON objects.
func extractRecords(text string) []map[string]any {
	content := text
	if m := blockPattern.FindStringSubmatch(text); m != nil {
		if m[1] != "" {
			content = m[1]
		} else {
			content = m[2]
		}
	}
	content = strings.TrimSpace(fencePattern.ReplaceAllString(content, ""))

	if records, ok := decodeRecords(content); ok {
		return records
	}

	if m := arrayPattern.FindStringSubmatch(content); m != nil {
		if records, ok := decodeRecords("[" + m[1] + "]"); ok {
			return records
		}
	}
	return nil
}

// decodeRecords strictly parses content as a JSON array and keeps its objects.
func decodeRecords(content string) ([]map[string]any, bool) {
	dec := json.NewDecoder(strings.NewReader(content))
	dec.UseNumber()

	var data any
	if err := dec.Decode(&data); err != nil {
		return nil, false
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, false
	}

	items, ok := data.([]any)
	if !ok {
		return nil, false
	}
	records := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if record, ok := item.(map[string]any); ok {
			records = append(records, record)
		}
	}
	return records, true
}

// Reconcile normalizes an irregular record into a Row: "Cmd" becomes "CMD",
// "Speed" becomes "Speed rpm", absent columns are empty, and an empty command
// code is resolved from the description where the vocabulary allows.
func Reconcile(record map[string]any) Row {
	fields := make(map[string]string, len(Columns))
	for key, value := range record {
		fields[key] = stringify(value)
	}

	if _, ok := record[ColumnCMD]; !ok {
		if cmd, ok := record["Cmd"]; ok {
			fields[ColumnCMD] = stringify(cmd)
		}
	}
	if _, ok := record[ColumnSpeed]; !ok {
		if speed, ok := record["Speed"]; ok {
			fields[ColumnSpeed] = stringify(speed)
		}
	}

	row := Row{
		Row:         fields[ColumnRow],
		CMD:         fields[ColumnCMD],
		Description: fields[ColumnDescription],
		Condition:   fields[ColumnCondition],
		Unit:        fields[ColumnUnit],
		Tolerance:   fields[ColumnTolerance],
		SpeedRPM:    fields[ColumnSpeed],
	}

	if strings.TrimSpace(row.CMD) == "" && row.Description != "" {
		if code, ok := LookupCommand(row.Description); ok {
			row.CMD = code
		}
	}
	return row
}

func stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(v); err != nil {
			return fmt.Sprint(v)
		}
		return strings.TrimSpace(buf.String())
	}
}

var rowIDPattern = regexp.MustCompile(`^R(\d{2,})$`)

// ValidateSequence checks a table against the row invariants: it is
// non-empty, every command code is in the vocabulary, and row ids run
// R00, R01, ... without gaps or repeats.
func ValidateSequence(rows []Row) error {
	if len(rows) == 0 {
		return fmt.Errorf("sequence is empty")
	}
	for i, row := range rows {
		m := rowIDPattern.FindStringSubmatch(row.Row)
		if m == nil {
			return fmt.Errorf("row %d: invalid row id %q", i, row.Row)
		}
		n, err := strconv.Atoi(m[1])
		if err != nil || n != i {
			return fmt.Errorf("row %d: expected id R%02d, got %q", i, i, row.Row)
		}
		if !IsCommand(row.CMD) {
			return fmt.Errorf("row %s: unknown command %q", row.Row, row.CMD)
		}
	}
	return nil
}
