package rules

import (
	"github.com/jmurray2011/spindle/internal/record"
)

// Style is a display treatment. Colours are terminal colour specs such as
// "1", "208" or "#ff8800"; empty means unchanged.
type Style struct {
	Foreground string `yaml:"foreground,omitempty" json:"foreground,omitempty"`
	Background string `yaml:"background,omitempty" json:"background,omitempty"`
	Bold       bool   `yaml:"bold,omitempty" json:"bold,omitempty"`
	Italic     bool   `yaml:"italic,omitempty" json:"italic,omitempty"`
	Underline  bool   `yaml:"underline,omitempty" json:"underline,omitempty"`
}

// IsZero reports whether the style changes nothing.
func (s Style) IsZero() bool {
	return s == Style{}
}

// Highlighter styles records its rule matches.
type Highlighter struct {
	*Rule
	style Style
}

// NewHighlighter pairs rule with the style applied to matching records.
func NewHighlighter(rule *Rule, style Style) *Highlighter {
	return &Highlighter{Rule: rule, style: style}
}

// Style returns the highlight style.
func (h *Highlighter) Style() Style {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.style
}

// SetStyle replaces the highlight style.
func (h *Highlighter) SetStyle(s Style) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.style = s
}

// HighlightEngine picks the style of the first enabled highlighter that
// matches. Later highlighters are not consulted.
type HighlightEngine struct {
	*RuleSet[*Highlighter]
}

// NewHighlightEngine creates a highlight engine; the first match wins.
func NewHighlightEngine(highlighters ...*Highlighter) *HighlightEngine {
	return &HighlightEngine{RuleSet: NewRuleSet(highlighters...)}
}

// Resolve returns the style for rec and whether any highlighter matched.
func (e *HighlightEngine) Resolve(rec *record.Record) (Style, bool) {
	if e == nil {
		return Style{}, false
	}
	var (
		style Style
		found bool
	)
	e.Each(func(h *Highlighter) bool {
		if h.Enabled() && h.IsMatch(rec) {
			style, found = h.Style(), true
			return false
		}
		return true
	})
	return style, found
}
