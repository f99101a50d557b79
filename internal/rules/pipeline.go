package rules

import (
	"github.com/jmurray2011/spindle/internal/record"
)

// Verdict is what the pipeline decided for one record.
type Verdict struct {
	// Classified is how many classifiers rewrote the record.
	Classified  int
	Visible     bool
	Style       Style
	Highlighted bool
}

// Pipeline runs the four engines in their fixed order: classify, then
// filter and extract, then highlight. Nil engines are skipped.
type Pipeline struct {
	Classify  *ClassificationEngine
	Filter    *FilterEngine
	Extract   *ExtractEngine
	Highlight *HighlightEngine
}

// NewPipeline returns a pipeline with empty engines.
func NewPipeline() *Pipeline {
	return &Pipeline{
		Classify:  NewClassificationEngine(),
		Filter:    NewFilterEngine(),
		Extract:   NewExtractEngine(),
		Highlight: NewHighlightEngine(),
	}
}

// Process classifies rec in place and decides how it is shown. Hidden
// records are not highlighted.
func (p *Pipeline) Process(rec *record.Record) Verdict {
	var v Verdict
	if p == nil {
		v.Visible = true
		return v
	}

	v.Classified = p.Classify.Classify(rec)
	v.Visible = !p.Filter.IsFiltered(rec) && !p.Extract.IsFiltered(rec)
	if v.Visible {
		v.Style, v.Highlighted = p.Highlight.Resolve(rec)
	}
	return v
}

// Empty reports whether the pipeline has no rules at all.
func (p *Pipeline) Empty() bool {
	if p == nil {
		return true
	}
	n := 0
	if p.Classify != nil {
		n += p.Classify.Len()
	}
	if p.Filter != nil {
		n += p.Filter.Len()
	}
	if p.Extract != nil {
		n += p.Extract.Len()
	}
	if p.Highlight != nil {
		n += p.Highlight.Len()
	}
	return n == 0
}
