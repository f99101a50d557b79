package output

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmurray2011/spindle/internal/record"
	"github.com/jmurray2011/spindle/internal/rules"
)

// Entry is a record ready for display with its highlight decision.
type Entry struct {
	Record      *record.Record
	Style       rules.Style
	Highlighted bool
}

// FormatEntries outputs entries in the configured format. Successive calls
// continue one stream: JSON is one object per line and CSV writes its
// header only before the first batch.
func (f *Formatter) FormatEntries(entries []Entry) error {
	switch f.format {
	case FormatJSON:
		return f.formatEntriesJSON(entries)
	case FormatCSV:
		return f.formatEntriesCSV(entries)
	default:
		return f.formatEntriesText(entries)
	}
}

func (f *Formatter) formatEntriesText(entries []Entry) error {
	for _, e := range entries {
		f.renderer.Record(e.Record, e.Style, e.Highlighted)
	}
	return nil
}

type jsonEntry struct {
	*record.Record
	Highlight *rules.Style `json:"highlight,omitempty"`
}

func (f *Formatter) formatEntriesJSON(entries []Entry) error {
	encoder := json.NewEncoder(f.writer)
	for _, e := range entries {
		je := jsonEntry{Record: e.Record}
		if e.Highlighted {
			style := e.Style
			je.Highlight = &style
		}
		if err := encoder.Encode(je); err != nil {
			return err
		}
	}
	return nil
}

var csvHeader = []string{"datetime", "type", "system", "thread", "source", "provider", "description", "exception"}

func (f *Formatter) formatEntriesCSV(entries []Entry) error {
	w := f.csvWriter()
	if !f.csvHeaderDone {
		if err := w.Write(csvHeader); err != nil {
			return err
		}
		f.csvHeaderDone = true
	}

	for _, e := range entries {
		r := e.Record
		ts := ""
		if r.HasTime() {
			ts = r.DateTime.Format(time.RFC3339Nano)
		}
		row := []string{
			ts,
			r.Type,
			r.System,
			r.Thread,
			r.Source,
			r.GetString(record.KeyProvider),
			r.Description,
			r.GetString(record.KeyException),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}
