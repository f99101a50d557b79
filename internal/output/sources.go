package output

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/jmurray2011/spindle/internal/rules"
)

// AliasInfo describes one configured source alias.
type AliasInfo struct {
	Name        string `json:"name"`
	URI         string `json:"uri"`
	Kind        string `json:"kind,omitempty"`
	Preset      string `json:"preset,omitempty"`
	Description string `json:"description,omitempty"`
	Default     bool   `json:"default,omitempty"`
}

// FormatAliases outputs source aliases in the configured format.
func (f *Formatter) FormatAliases(aliases []AliasInfo) error {
	switch f.format {
	case FormatJSON:
		return f.encodeJSON(aliases)
	case FormatCSV:
		rows := make([][]string, len(aliases))
		for i, a := range aliases {
			rows[i] = []string{a.Name, a.URI, a.Kind, a.Preset, a.Description, strconv.FormatBool(a.Default)}
		}
		return f.writeCSV([]string{"name", "uri", "kind", "preset", "description", "default"}, rows)
	default:
		if len(aliases) == 0 {
			f.renderer.NoResults("No source aliases configured.")
			return nil
		}
		rows := make([][]string, len(aliases))
		for i, a := range aliases {
			name := "@" + a.Name
			if a.Default {
				name += " *"
			}
			rows[i] = []string{name, a.Kind, a.URI, a.Description}
		}
		f.renderer.Table([]string{"ALIAS", "KIND", "URI", "DESCRIPTION"}, rows)
		return nil
	}
}

// RuleInfo is one row of a rule listing.
type RuleInfo struct {
	Kind     string `json:"kind"`
	Position int    `json:"position"`
	Name     string `json:"name"`
	Enabled  bool   `json:"enabled"`
	Field    string `json:"field"`
	Mode     string `json:"mode"`
	Pattern  string `json:"pattern"`
	Action   string `json:"action,omitempty"`
}

// RuleInfos lists the pipeline's rules in evaluation order.
func RuleInfos(p *rules.Pipeline) []RuleInfo {
	var out []RuleInfo
	add := func(kind string, i int, r *rules.Rule, action string) {
		out = append(out, RuleInfo{
			Kind:     kind,
			Position: i + 1,
			Name:     r.Name(),
			Enabled:  r.Enabled(),
			Field:    r.Field().String(),
			Mode:     r.Mode().String(),
			Pattern:  r.Pattern(),
			Action:   action,
		})
	}
	if p == nil {
		return out
	}

	if p.Classify != nil {
		for i, c := range p.Classify.Snapshot() {
			add("classifier", i, c.Rule, describeTargets(c.Targets()))
		}
	}
	if p.Filter != nil {
		for i, x := range p.Filter.Snapshot() {
			add("filter", i, x.Rule, "hide")
		}
	}
	if p.Extract != nil {
		for i, x := range p.Extract.Snapshot() {
			add("extractor", i, x.Rule, "keep")
		}
	}
	if p.Highlight != nil {
		for i, h := range p.Highlight.Snapshot() {
			add("highlighter", i, h.Rule, describeStyle(h.Style()))
		}
	}
	return out
}

func describeTargets(t rules.Targets) string {
	var parts []string
	if t.Type != "" {
		parts = append(parts, "type="+t.Type)
	}
	if t.System != "" {
		parts = append(parts, "system="+t.System)
	}
	if t.Description != "" {
		parts = append(parts, "description="+t.Description)
	}
	if n := len(t.MetaData); n > 0 {
		parts = append(parts, fmt.Sprintf("+%d metadata", n))
	}
	return strings.Join(parts, " ")
}

func describeStyle(s rules.Style) string {
	var parts []string
	if s.Foreground != "" {
		parts = append(parts, "fg="+s.Foreground)
	}
	if s.Background != "" {
		parts = append(parts, "bg="+s.Background)
	}
	if s.Bold {
		parts = append(parts, "bold")
	}
	if s.Italic {
		parts = append(parts, "italic")
	}
	if s.Underline {
		parts = append(parts, "underline")
	}
	return strings.Join(parts, " ")
}

// FormatRules outputs a rule listing in the configured format.
func (f *Formatter) FormatRules(infos []RuleInfo) error {
	switch f.format {
	case FormatJSON:
		return f.encodeJSON(infos)
	case FormatCSV:
		rows := make([][]string, len(infos))
		for i, r := range infos {
			rows[i] = []string{r.Kind, strconv.Itoa(r.Position), r.Name, strconv.FormatBool(r.Enabled), r.Field, r.Mode, r.Pattern, r.Action}
		}
		return f.writeCSV([]string{"kind", "position", "name", "enabled", "field", "mode", "pattern", "action"}, rows)
	default:
		if len(infos) == 0 {
			f.renderer.NoResults("No rules configured.")
			return nil
		}
		rows := make([][]string, len(infos))
		for i, r := range infos {
			enabled := "yes"
			if !r.Enabled {
				enabled = "no"
			}
			rows[i] = []string{
				r.Kind,
				strconv.Itoa(r.Position),
				r.Name,
				enabled,
				r.Field + " " + r.Mode,
				truncateMessage(r.Pattern, 40),
				truncateMessage(r.Action, 50),
			}
		}
		f.renderer.Table([]string{"KIND", "#", "NAME", "ON", "MATCH", "PATTERN", "ACTION"}, rows)
		return nil
	}
}

func (f *Formatter) encodeJSON(v any) error {
	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func (f *Formatter) writeCSV(header []string, rows [][]string) error {
	w := f.csvWriter()
	if err := w.Write(header); err != nil {
		return err
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
