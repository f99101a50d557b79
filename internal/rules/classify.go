package rules

import (
	"github.com/jmurray2011/spindle/internal/record"
)

// Targets are the values a classifier writes into a matching record. Empty
// strings leave the field alone.
type Targets struct {
	Type        string
	System      string
	Description string
	MetaData    map[string]string
}

// Classifier rewrites records its rule matches. In RegularExpression mode
// Description is a template: $1 or ${name} expand to the capture groups of
// the match.
type Classifier struct {
	*Rule
	targets Targets
}

// NewClassifier returns an enabled classifier.
func NewClassifier(rule *Rule, targets Targets) *Classifier {
	return &Classifier{Rule: rule, targets: cloneTargets(targets)}
}

// Targets returns a copy of the classifier's targets.
func (c *Classifier) Targets() Targets {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneTargets(c.targets)
}

// SetTargets replaces the classifier's targets.
func (c *Classifier) SetTargets(t Targets) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.targets = cloneTargets(t)
}

func cloneTargets(t Targets) Targets {
	if t.MetaData != nil {
		md := make(map[string]string, len(t.MetaData))
		for k, v := range t.MetaData {
			md[k] = v
		}
		t.MetaData = md
	}
	return t
}

// Apply rewrites rec if the classifier matches it and reports whether it did.
// The enabled flag is not consulted.
func (c *Classifier) Apply(rec *record.Record) bool {
	ok, re, value := c.match(rec)
	if !ok {
		return false
	}
	t := c.Targets()

	if t.Type != "" {
		rec.Type = t.Type
	}
	if t.System != "" {
		rec.System = t.System
	}
	if t.Description != "" {
		if re != nil {
			var out []byte
			out = re.ExpandString(out, t.Description, value, re.FindStringSubmatchIndex(value))
			rec.Description = string(out)
		} else {
			rec.Description = t.Description
		}
	}
	for k, v := range t.MetaData {
		rec.Set(k, v)
	}
	rec.Set(record.KeyClassification, c.Name())
	return true
}

// ClassificationEngine runs every enabled classifier in order. Classifiers
// do not short-circuit: each sees the record as left by the ones before it.
type ClassificationEngine struct {
	*RuleSet[*Classifier]
}

// NewClassificationEngine returns an engine over the given classifiers.
func NewClassificationEngine(classifiers ...*Classifier) *ClassificationEngine {
	return &ClassificationEngine{RuleSet: NewRuleSet(classifiers...)}
}

// Classify applies the classifiers to rec and returns how many applied.
func (e *ClassificationEngine) Classify(rec *record.Record) int {
	if e == nil || rec == nil {
		return 0
	}
	applied := 0
	e.Each(func(c *Classifier) bool {
		if c.Enabled() && c.Apply(rec) {
			applied++
		}
		return true
	})
	return applied
}
