package source

import (
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// Config is the provider part of ~/.spindle/config.yaml. Rule sets live in
// the same file and are read by the rules package.
type Config struct {
	Sources        map[string]SourceAlias `yaml:"sources"`
	DefaultSources []string               `yaml:"default_sources,omitempty"`
}

// SourceAlias defines a named source.
type SourceAlias struct {
	URI         string `yaml:"uri"`
	Description string `yaml:"description,omitempty"`
	// Preset names a built-in decode pattern; Pattern overrides it.
	Preset  string `yaml:"preset,omitempty"`
	Pattern string `yaml:"pattern,omitempty"`
}

// AliasNames returns alias names in sorted order.
func (c *Config) AliasNames() []string {
	names := make([]string, 0, len(c.Sources))
	for k := range c.Sources {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// ConfigDir returns ~/.spindle.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".spindle")
}

// ConfigPath returns the path to the spindle config file.
func ConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// LoadConfigFile loads provider configuration from path. A missing file
// yields an empty config.
func LoadConfigFile(path string) (*Config, error) {
	cfg := &Config{Sources: make(map[string]SourceAlias)}
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

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if cfg.Sources == nil {
		cfg.Sources = make(map[string]SourceAlias)
	}
	return cfg, nil
}
