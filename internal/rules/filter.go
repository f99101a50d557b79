package rules

import (
	"github.com/jmurray2011/spindle/internal/record"
)

// Filter hides records its rule matches.
type Filter struct {
	*Rule
}

// NewFilter wraps rule as a filter.
func NewFilter(rule *Rule) *Filter {
	return &Filter{Rule: rule}
}

// Extractor keeps only records its rule matches.
type Extractor struct {
	*Rule
}

// NewExtractor wraps rule as an extractor.
func NewExtractor(rule *Rule) *Extractor {
	return &Extractor{Rule: rule}
}

// FilterEngine hides records matched by any enabled filter.
type FilterEngine struct {
	*RuleSet[*Filter]
}

// NewFilterEngine creates a filter engine evaluating filters in order.
func NewFilterEngine(filters ...*Filter) *FilterEngine {
	return &FilterEngine{RuleSet: NewRuleSet(filters...)}
}

// IsFiltered reports whether rec should be hidden.
func (e *FilterEngine) IsFiltered(rec *record.Record) bool {
	if e == nil {
		return false
	}
	hidden := false
	e.Each(func(f *Filter) bool {
		if f.Enabled() && f.IsMatch(rec) {
			hidden = true
			return false
		}
		return true
	})
	return hidden
}

// ExtractEngine hides records that no enabled extractor matches. With no
// enabled extractors nothing is hidden.
type ExtractEngine struct {
	*RuleSet[*Extractor]
}

// NewExtractEngine creates an extract engine over extractors.
func NewExtractEngine(extractors ...*Extractor) *ExtractEngine {
	return &ExtractEngine{RuleSet: NewRuleSet(extractors...)}
}

// IsFiltered reports whether rec should be hidden.
func (e *ExtractEngine) IsFiltered(rec *record.Record) bool {
	if e == nil {
		return false
	}
	enabled, matched := false, false
	e.Each(func(x *Extractor) bool {
		if !x.Enabled() {
			return true
		}
		enabled = true
		if x.IsMatch(rec) {
			matched = true
			return false
		}
		return true
	})
	return enabled && !matched
}
