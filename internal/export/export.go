// Package export serializes finished test sequences for the tester's
// import tools. Conversational rows are never exported.
package export

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zoobzio/springseq"
)

// Format is an export file format.
type Format string

// Supported formats.
const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ErrUnknownFormat is returned for a format other than csv or json.
var ErrUnknownFormat = errors.New("unknown export format")

// ErrNothingToExport is returned when no sequence rows remain after
// dropping conversational rows.
var ErrNothingToExport = errors.New("no sequence rows to export")

// ParseFormat accepts a format name in any case.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// Ext returns the file extension, dot included.
func (f Format) Ext() string {
	return "." + string(f)
}

// Write serializes rows in the given format.
func Write(w io.Writer, format Format, rows []springseq.Row) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, rows)
	case FormatJSON:
		return WriteJSON(w, rows)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// WriteCSV writes a header line with the fixed column order, then one
// record per row.
func WriteCSV(w io.Writer, rows []springseq.Row) error {
	rows = sequenceRows(rows)
	if len(rows) == 0 {
		return ErrNothingToExport
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(springseq.Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, row := range rows {
		if err := cw.Write(row.Values()); err != nil {
			return fmt.Errorf("write row %s: %w", row.Row, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON writes the rows as an indented JSON array of records.
func WriteJSON(w io.Writer, rows []springseq.Row) error {
	rows = sequenceRows(rows)
	if len(rows) == 0 {
		return ErrNothingToExport
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}

// WriteSequence writes the full sequence record: rows, parameters,
// creation time and name.
func WriteSequence(w io.Writer, seq *springseq.Sequence) error {
	if seq == nil {
		return ErrNothingToExport
	}
	out := *seq
	out.Rows = sequenceRows(seq.Rows)
	if len(out.Rows) == 0 {
		return ErrNothingToExport
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// ReadCSV reads a table written by WriteCSV. The header must carry the
// fixed column order.
func ReadCSV(r io.Reader) ([]springseq.Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(springseq.Columns)

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i, name := range springseq.Columns {
		if strings.TrimSpace(header[i]) != name {
			return nil, fmt.Errorf("column %d: expected %q, got %q", i+1, name, header[i])
		}
	}

	var rows []springseq.Row
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(rows)+1, err)
		}
		rows = append(rows, springseq.Row{
			Row:         record[0],
			CMD:         record[1],
			Description: record[2],
			Condition:   record[3],
			Unit:        record[4],
			Tolerance:   record[5],
			SpeedRPM:    record[6],
		})
	}
	if len(rows) == 0 {
		return nil, ErrNothingToExport
	}
	return rows, nil
}

// FileName builds "<name>_<timestamp><ext>", falling back to "sequence".
func FileName(name string, format Format, at time.Time) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "sequence"
	}
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', ' ':
			return '_'
		}
		return r
	}, name)
	return name + "_" + at.Format("20060102_150405") + format.Ext()
}

// SaveFile writes rows to dir/FileName(...) and returns the path.
func SaveFile(dir, name string, format Format, rows []springseq.Row, at time.Time) (string, error) {
	path := filepath.Join(dir, FileName(name, format, at))
	f, err := os.Create(path) //nolint:gosec // G304: dir comes from the operator
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	if err := Write(f, format, rows); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", path, err)
	}
	return path, nil
}

func sequenceRows(rows []springseq.Row) []springseq.Row {
	out := make([]springseq.Row, 0, len(rows))
	for _, row := range rows {
		if !row.IsChat() {
			out = append(out, row)
		}
	}
	return out
}
