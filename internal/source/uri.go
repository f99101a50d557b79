package source

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jmurray2011/spindle/internal/decode"
	sperrors "github.com/jmurray2011/spindle/internal/errors"
)

// Source URI forms:
//   - file:///var/log/app.log?interval=500ms&existing=true&preset=log4j
//   - /var/log/app.log, ./app.log, ~/app.log (bare paths are files)
//   - udp://:7071?protocol=log4j
//   - @alias (resolved from the config file)

// Resolve turns a source URI or @alias into provider settings.
func Resolve(uri string, cfg *Config) (Settings, error) {
	if strings.HasPrefix(uri, "@") {
		return resolveAlias(uri[1:], cfg)
	}
	return ParseURI(uri)
}

func resolveAlias(name string, cfg *Config) (Settings, error) {
	var alias SourceAlias
	ok := false
	if cfg != nil {
		alias, ok = cfg.Sources[name]
	}
	if !ok {
		var available []string
		if cfg != nil {
			available = cfg.AliasNames()
		}
		return nil, sperrors.SourceNotFoundError("@"+name, available)
	}

	settings, err := ParseURI(alias.URI)
	if err != nil {
		return nil, fmt.Errorf("alias @%s: %w", name, err)
	}

	fs, isFile := settings.(FileSettings)
	if !isFile {
		return settings, nil
	}
	if alias.Preset != "" {
		p, ok := decode.Preset(alias.Preset)
		if !ok {
			return nil, sperrors.UnknownValueError("preset", alias.Preset, decode.PresetNames())
		}
		fs.Pattern = p
	}
	if alias.Pattern != "" {
		fs.Pattern = alias.Pattern
	}
	return fs, nil
}

// ParseURI parses a file or udp source URI.
func ParseURI(uri string) (Settings, error) {
	if isBarePath(uri) {
		uri = "file://" + expandPath(uri)
	}

	if err := validateURISyntax(uri); err != nil {
		return nil, err
	}

	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("invalid source URI %q: %w", uri, err)
	}
	query, err := parseQuery(u.RawQuery)
	if err != nil {
		return nil, fmt.Errorf("invalid source URI %q: %w", uri, err)
	}

	switch u.Scheme {
	case KindFile:
		return parseFileURI(u, query)
	case KindNetwork:
		return parseNetworkURI(u, query)
	default:
		return nil, sperrors.UnknownSchemeError(u.Scheme, []string{KindFile, KindNetwork})
	}
}

func parseFileURI(u *url.URL, query map[string]string) (Settings, error) {
	path := u.Path
	if u.Host != "" {
		// file://relative/app.log
		path = u.Host + path
	}
	if path == "" {
		return nil, fmt.Errorf("file URI has no path")
	}

	s := FileSettings{Path: expandPath(path)}

	if v, ok := query["interval"]; ok {
		d, err := parseInterval(v)
		if err != nil {
			return nil, err
		}
		s.Interval = d
	}
	for _, key := range []string{"existing", "load_existing"} {
		if v, ok := query[key]; ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return nil, fmt.Errorf("invalid %s value %q: %w", key, v, err)
			}
			s.LoadExisting = b
		}
	}
	if v, ok := query["preset"]; ok {
		p, found := decode.Preset(v)
		if !found {
			return nil, sperrors.UnknownValueError("preset", v, decode.PresetNames())
		}
		s.Pattern = p
	}
	if v, ok := query["pattern"]; ok {
		s.Pattern = v
	}
	return s, nil
}

func parseNetworkURI(u *url.URL, query map[string]string) (Settings, error) {
	portStr := u.Port()
	if portStr == "" {
		return nil, fmt.Errorf("udp URI %q needs a port, e.g. udp://:7071", u.String())
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid port %q: %w", portStr, err)
	}
	s := NetworkSettings{
		Host:     u.Hostname(),
		Port:     port,
		Protocol: query["protocol"],
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// parseInterval accepts a Go duration ("500ms", "2s") or bare milliseconds.
func parseInterval(v string) (time.Duration, error) {
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid interval %q: use milliseconds or a duration like 500ms", v)
	}
	return d, nil
}

// parseQuery splits a raw query without turning '+' into a space, so
// regex patterns survive unescaped.
func parseQuery(raw string) (map[string]string, error) {
	out := make(map[string]string)
	if raw == "" {
		return out, nil
	}
	for _, part := range strings.Split(raw, "&") {
		if part == "" {
			continue
		}
		key, value, _ := strings.Cut(part, "=")
		k, err := url.PathUnescape(key)
		if err != nil {
			return nil, err
		}
		v, err := url.PathUnescape(value)
		if err != nil {
			return nil, err
		}
		out[strings.ToLower(k)] = v
	}
	return out, nil
}

// validateURISyntax checks for common URI mistakes and returns helpful errors.
func validateURISyntax(uri string) error {
	// scheme:///path@key=value should be scheme:///path?key=value
	if idx := strings.Index(uri, "://"); idx > 0 {
		rest := uri[idx+3:]
		if atIdx := strings.Index(rest, "@"); atIdx > 0 {
			afterAt := rest[atIdx+1:]
			if strings.Contains(afterAt, "=") && !strings.Contains(rest[:atIdx], "?") {
				return fmt.Errorf("invalid URI %q: use '?' for query parameters, not '@'", uri)
			}
		}
	}

	if strings.HasPrefix(uri, "///") {
		return fmt.Errorf("invalid URI %q: missing scheme (e.g., file:///var/log/app.log)", uri)
	}

	return nil
}

// DisplayName returns a short instance name for settings.
func DisplayName(s Settings) string {
	switch v := s.(type) {
	case FileSettings:
		return filepath.Base(v.Path)
	case NetworkSettings:
		return "udp:" + strconv.Itoa(v.Port)
	default:
		return ""
	}
}

// isBarePath reports whether uri names a file without a scheme, such as
// app.log, ./logs/app.log or ~/app.log. A leading triple slash is left to
// validateURISyntax.
func isBarePath(uri string) bool {
	if uri == "" || strings.HasPrefix(uri, "@") || strings.HasPrefix(uri, "///") {
		return false
	}
	return !strings.Contains(uri, "://")
}

// expandPath resolves ~ to home directory and converts relative paths to absolute.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			path = home
		}
	}

	if !filepath.IsAbs(path) {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
	}

	return path
}
