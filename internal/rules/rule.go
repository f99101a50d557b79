// Package rules evaluates ordered sets of pattern rules against records:
// classification rewrites them, filters and extractors decide visibility and
// highlighters pick a display style.
package rules

import (
	"regexp"
	"sort"
	"strings"
	"sync"

	sperrors "github.com/jmurray2011/spindle/internal/errors"
	"github.com/jmurray2011/spindle/internal/logging"
	"github.com/jmurray2011/spindle/internal/record"
	"github.com/jmurray2011/spindle/pkg/lru"
)

// Field selects the record property a rule looks at.
type Field int

const (
	FieldNone Field = iota
	FieldSystem
	FieldType
	FieldThread
	FieldSource
	FieldDescription
)

var fieldNames = map[Field]string{
	FieldSystem:      "system",
	FieldType:        "type",
	FieldThread:      "thread",
	FieldSource:      "source",
	FieldDescription: "description",
}

// String returns the config name of the field.
func (f Field) String() string {
	if name, ok := fieldNames[f]; ok {
		return name
	}
	return "none"
}

// ParseField maps a field name, case-insensitively, to a Field.
func ParseField(s string) (Field, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for f, n := range fieldNames {
		if n == name {
			return f, nil
		}
	}
	return FieldNone, sperrors.UnknownValueError("field", s, FieldNames())
}

// FieldNames returns the accepted field names, sorted.
func FieldNames() []string {
	names := make([]string, 0, len(fieldNames))
	for _, n := range fieldNames {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// value resolves the field on rec. An unmapped field yields "".
func (f Field) value(rec *record.Record) string {
	switch f {
	case FieldSystem:
		return rec.System
	case FieldType:
		return rec.Type
	case FieldThread:
		return rec.Thread
	case FieldSource:
		return rec.Source
	case FieldDescription:
		return rec.Description
	default:
		return ""
	}
}

// MatchMode is how a rule compares its pattern with the field value.
type MatchMode int

const (
	Exact MatchMode = iota
	CaseSensitiveSubstring
	CaseInsensitiveSubstring
	RegularExpression
)

var modeNames = map[MatchMode]string{
	Exact:                    "exact",
	CaseSensitiveSubstring:   "contains",
	CaseInsensitiveSubstring: "icontains",
	RegularExpression:        "regex",
}

var modeAliases = map[string]MatchMode{
	"equals":    Exact,
	"substring": CaseSensitiveSubstring,
	"regexp":    RegularExpression,
}

// String returns the config name of the mode.
func (m MatchMode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return "unknown"
}

// ParseMatchMode maps a mode name to a MatchMode.
func ParseMatchMode(s string) (MatchMode, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for m, n := range modeNames {
		if n == name {
			return m, nil
		}
	}
	if m, ok := modeAliases[name]; ok {
		return m, nil
	}
	return Exact, sperrors.UnknownValueError("match mode", s, MatchModeNames())
}

// MatchModeNames returns the canonical mode names, sorted.
func MatchModeNames() []string {
	names := make([]string, 0, len(modeNames))
	for _, n := range modeNames {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// regexCache shares compiled patterns between rules.
var regexCache = lru.New[string, *regexp.Regexp](256)

func compile(pattern string) (*regexp.Regexp, error) {
	if re, ok := regexCache.Get(pattern); ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	regexCache.Add(pattern, re)
	return re, nil
}

// Rule is the matching part shared by every rule kind. The compiled
// regular expression is rebuilt lazily after Field, Mode or Pattern change.
type Rule struct {
	mu      sync.Mutex
	name    string
	enabled bool
	field   Field
	mode    MatchMode
	pattern string
	logger  logging.Logger

	re      *regexp.Regexp
	stale   bool
	invalid bool
}

// NewRule returns an enabled rule.
func NewRule(name string, field Field, mode MatchMode, pattern string) *Rule {
	return &Rule{
		name:    name,
		enabled: true,
		field:   field,
		mode:    mode,
		pattern: pattern,
		stale:   true,
	}
}

// Name returns the rule name.
func (r *Rule) Name() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.name
}

// Enabled reports whether the rule takes part in matching.
func (r *Rule) Enabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enabled
}

// SetEnabled turns the rule on or off.
func (r *Rule) SetEnabled(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enabled = enabled
}

// Field returns the record field the rule inspects.
func (r *Rule) Field() Field {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.field
}

// SetField changes the inspected field.
func (r *Rule) SetField(f Field) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.field = f
	r.invalidate()
}

// Mode returns how the pattern is compared.
func (r *Rule) Mode() MatchMode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mode
}

// SetMode changes the match mode; a regex is recompiled on next use.
func (r *Rule) SetMode(m MatchMode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mode = m
	r.invalidate()
}

// Pattern returns the pattern text.
func (r *Rule) Pattern() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pattern
}

// SetPattern replaces the pattern; a regex is recompiled on next use.
func (r *Rule) SetPattern(p string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pattern = p
	r.invalidate()
}

// SetLogger sets where invalid patterns are reported.
func (r *Rule) SetLogger(logger logging.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

func (r *Rule) invalidate() {
	r.re = nil
	r.stale = true
	r.invalid = false
}

// IsMatch reports whether the rule's pattern matches rec. It ignores the
// enabled flag; engines check that. An empty pattern never matches.
func (r *Rule) IsMatch(rec *record.Record) bool {
	ok, _, _ := r.match(rec)
	return ok
}

// match also returns the regular expression used and the field value, so
// classifiers can expand capture groups.
func (r *Rule) match(rec *record.Record) (bool, *regexp.Regexp, string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pattern == "" || rec == nil {
		return false, nil, ""
	}
	value := r.field.value(rec)

	switch r.mode {
	case Exact:
		return value == r.pattern, nil, value
	case CaseSensitiveSubstring:
		return strings.Contains(value, r.pattern), nil, value
	case CaseInsensitiveSubstring:
		return strings.Contains(strings.ToLower(value), strings.ToLower(r.pattern)), nil, value
	case RegularExpression:
		re := r.compiled()
		if re == nil {
			return false, nil, value
		}
		return re.MatchString(value), re, value
	default:
		return false, nil, value
	}
}

// compiled returns the rule's regexp, compiling it on first use. Callers
// hold r.mu.
func (r *Rule) compiled() *regexp.Regexp {
	if !r.stale {
		return r.re
	}
	r.stale = false

	re, err := compile(r.pattern)
	if err != nil {
		r.invalid = true
		logging.OrDefault(r.logger).Warn("rule %q: invalid regular expression %q never matches: %v", r.name, r.pattern, err)
		return nil
	}
	r.re = re
	return re
}

// Invalid reports whether the last compile of the pattern failed.
func (r *Rule) Invalid() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.invalid
}

// Describe renders the rule's matching part for listings.
func (r *Rule) Describe() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	state := ""
	if !r.enabled {
		state = " (disabled)"
	}
	return r.field.String() + " " + r.mode.String() + " " + quote(r.pattern) + state
}

func quote(s string) string {
	return "\"" + strings.ReplaceAll(s, "\"", "\\\"") + "\""
}
