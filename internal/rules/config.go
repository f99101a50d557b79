package rules

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	sperrors "github.com/jmurray2011/spindle/internal/errors"
	"github.com/jmurray2011/spindle/internal/logging"
)

// Config is the rule part of ~/.spindle/config.yaml.
type Config struct {
	Classifiers  []ClassifierConfig  `yaml:"classifiers,omitempty"`
	Filters      []RuleConfig        `yaml:"filters,omitempty"`
	Extractors   []RuleConfig        `yaml:"extractors,omitempty"`
	Highlighters []HighlighterConfig `yaml:"highlighters,omitempty"`
}

// RuleConfig describes one rule. Enabled defaults to true, Field to
// description and Mode to icontains.
type RuleConfig struct {
	Name    string `yaml:"name"`
	Enabled *bool  `yaml:"enabled,omitempty"`
	Field   string `yaml:"field,omitempty"`
	Mode    string `yaml:"mode,omitempty"`
	Pattern string `yaml:"pattern"`
}

// ClassifierConfig adds the rewrite targets.
type ClassifierConfig struct {
	RuleConfig  `yaml:",inline"`
	Type        string            `yaml:"type,omitempty"`
	System      string            `yaml:"system,omitempty"`
	Description string            `yaml:"description,omitempty"`
	MetaData    map[string]string `yaml:"metadata,omitempty"`
}

// HighlighterConfig adds the style.
type HighlighterConfig struct {
	RuleConfig `yaml:",inline"`
	Style      `yaml:",inline"`
}

// LoadConfigFile reads the rule sets from path. A missing file yields an
// empty config.
func LoadConfigFile(path string) (*Config, error) {
	cfg := &Config{}
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	return ParseConfig(data)
}

// ParseConfig decodes rule sets from YAML.
func ParseConfig(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	return cfg, nil
}

// Build turns the config into a pipeline. Unknown fields or modes and
// regular expressions that do not compile are reported with the rule name.
func (c *Config) Build(logger logging.Logger) (*Pipeline, error) {
	p := NewPipeline()
	if c == nil {
		return p, nil
	}

	for i, cc := range c.Classifiers {
		r, err := cc.rule("classifier", i, logger)
		if err != nil {
			return nil, err
		}
		p.Classify.Add(NewClassifier(r, Targets{
			Type:        cc.Type,
			System:      cc.System,
			Description: cc.Description,
			MetaData:    cc.MetaData,
		}))
	}
	for i, fc := range c.Filters {
		r, err := fc.rule("filter", i, logger)
		if err != nil {
			return nil, err
		}
		p.Filter.Add(NewFilter(r))
	}
	for i, ec := range c.Extractors {
		r, err := ec.rule("extractor", i, logger)
		if err != nil {
			return nil, err
		}
		p.Extract.Add(NewExtractor(r))
	}
	for i, hc := range c.Highlighters {
		r, err := hc.rule("highlighter", i, logger)
		if err != nil {
			return nil, err
		}
		p.Highlight.Add(NewHighlighter(r, hc.Style))
	}
	return p, nil
}

func (rc RuleConfig) rule(kind string, index int, logger logging.Logger) (*Rule, error) {
	name := rc.Name
	if name == "" {
		name = fmt.Sprintf("%s #%d", kind, index+1)
	}

	field := FieldDescription
	if rc.Field != "" {
		f, err := ParseField(rc.Field)
		if err != nil {
			return nil, fmt.Errorf("%s %q: %w", kind, name, err)
		}
		field = f
	}

	mode := CaseInsensitiveSubstring
	if rc.Mode != "" {
		m, err := ParseMatchMode(rc.Mode)
		if err != nil {
			return nil, fmt.Errorf("%s %q: %w", kind, name, err)
		}
		mode = m
	}

	if mode == RegularExpression {
		if _, err := regexp.Compile(rc.Pattern); err != nil {
			return nil, fmt.Errorf("%s %q: %w", kind, name, sperrors.InvalidRulePatternError(rc.Pattern, err))
		}
	}

	r := NewRule(name, field, mode, rc.Pattern)
	if rc.Enabled != nil {
		r.SetEnabled(*rc.Enabled)
	}
	r.SetLogger(logger)
	return r, nil
}
