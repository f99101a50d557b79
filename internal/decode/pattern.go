// Package decode turns raw ingested text into records: Pattern for
// line-oriented regex decoding and DecodeLog4j for UDP event fragments.
package decode

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/jmurray2011/spindle/internal/logging"
	"github.com/jmurray2011/spindle/internal/record"
	"github.com/jmurray2011/spindle/pkg/timeutil"
)

// Recognized capture group names. Matching is case-insensitive.
const (
	GroupDescription = "description"
	GroupDateTime    = "datetime"
	GroupType        = "type"
	GroupLogger      = "logger"
)

var groupNames = []string{GroupDescription, GroupDateTime, GroupType, GroupLogger}

// DefaultPattern puts the whole line into Description.
const DefaultPattern = `^(?<Description>.*)$`

// presets are ready-made patterns selectable by name.
var presets = map[string]string{
	"plain":  DefaultPattern,
	"pipe":   `^(?<DateTime>[^|]+)\|(?<Type>[^|]+)\|(?<Logger>[^|]+)\|(?<Description>.*)$`,
	"log4j":  `^(?<DateTime>\d{4}-\d{2}-\d{2}[ T]\d{2}:\d{2}:\d{2}(?:[,.]\d{3})?)\s+(?<Type>[A-Z]+)\s+\[[^\]]*\]\s+(?<Logger>\S+)\s+-\s+(?<Description>.*)$`,
	"syslog": `^(?<DateTime>[A-Z][a-z]{2}\s+\d{1,2}\s+\d{2}:\d{2}:\d{2})\s+\S+\s+(?<Logger>[^:\[\s]+)(?:\[\d+\])?:\s+(?<Description>.*)$`,
	"clf":    `^(?<Logger>\S+) \S+ \S+ \[(?<DateTime>[^\]]+)\] (?<Description>"[^"]*" (?<Type>\d{3}) .*)$`,
}

// Preset returns the named ready-made pattern.
func Preset(name string) (string, bool) {
	p, ok := presets[strings.ToLower(name)]
	return p, ok
}

// PresetNames lists the available preset names in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Pattern decodes lines with a regular expression whose named groups map
// onto record fields:
//
//	description -> Description
//	datetime    -> DateTime
//	type        -> Type
//	logger      -> Source
//
// Which groups participate is decided once, by scanning the pattern text,
// so a decoder built without a description group never sets Description.
// A Pattern is safe for concurrent use; only its logger can change.
type Pattern struct {
	source string
	re     *regexp.Regexp
	// index of each recognized group in the compiled regexp; absent
	// groups are not in the map.
	groups map[string]int
	logger logging.Ref
}

// NewPattern compiles pattern. An empty pattern selects DefaultPattern.
func NewPattern(pattern string, logger logging.Logger) (*Pattern, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile decode pattern: %w", err)
	}

	p := &Pattern{
		source: pattern,
		re:     re,
		groups: make(map[string]int, len(groupNames)),
	}
	p.logger.Store(logger)

	lower := strings.ToLower(pattern)
	for _, name := range groupNames {
		if !strings.Contains(lower, "(?<"+name+">") && !strings.Contains(lower, "(?p<"+name+">") {
			continue
		}
		for i, sub := range re.SubexpNames() {
			if strings.EqualFold(sub, name) {
				p.groups[name] = i
				break
			}
		}
	}
	return p, nil
}

// SetLogger replaces the logger that receives datetime parse traces.
func (p *Pattern) SetLogger(logger logging.Logger) { p.logger.Store(logger) }

// String returns the pattern source.
func (p *Pattern) String() string { return p.source }

// Has reports whether the named group participates in decoding.
func (p *Pattern) Has(group string) bool {
	_, ok := p.groups[strings.ToLower(group)]
	return ok
}

// Decode matches line and returns the populated record. It returns false
// when the line does not match; callers drop the line and move on.
func (p *Pattern) Decode(line string) (*record.Record, bool) {
	m := p.re.FindStringSubmatchIndex(line)
	if m == nil {
		return nil, false
	}

	rec := record.New()
	for name, idx := range p.groups {
		start, end := m[2*idx], m[2*idx+1]
		if start < 0 {
			continue
		}
		value := line[start:end]
		switch name {
		case GroupDescription:
			rec.Description = value
		case GroupType:
			rec.Type = value
		case GroupLogger:
			rec.Source = value
		case GroupDateTime:
			t, err := timeutil.ParseTimestamp(value)
			if err != nil {
				p.logger.Load().Trace("datetime %q not parsed: %v", value, err)
				continue
			}
			rec.DateTime = t
		}
	}
	return rec, true
}
