// Package timeutil provides shared time parsing utilities.
package timeutil

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Pre-compiled regex for parsing relative time formats (e.g., "2h", "30m", "7d")
var relativeTimeRe = regexp.MustCompile(`^(\d+)([smhd])$`)

// Parse parses a time string that can be either RFC3339 format or a relative
// duration like "2h", "30m", or "7d".
//
// Examples:
//   - "now" or "" -> current time
//   - "2h" -> 2 hours ago
//   - "30m" -> 30 minutes ago
//   - "7d" -> 7 days ago
//   - "2025-12-02T06:00:00Z" -> specific RFC3339 time
func Parse(input string) (time.Time, error) {
	if input == "" || input == "now" {
		return time.Now().UTC(), nil
	}

	if t, err := time.Parse(time.RFC3339, input); err == nil {
		return t, nil
	}

	matches := relativeTimeRe.FindStringSubmatch(input)
	if matches != nil {
		value, _ := strconv.Atoi(matches[1])
		var unit time.Duration
		switch matches[2] {
		case "s":
			unit = time.Second
		case "m":
			unit = time.Minute
		case "h":
			unit = time.Hour
		case "d":
			unit = 24 * time.Hour
		}
		return time.Now().UTC().Add(-time.Duration(value) * unit), nil
	}

	return time.Time{}, fmt.Errorf("invalid time format: %s - use RFC3339 (2025-12-02T06:00:00Z) or relative (2h, 30m, 7d)", input)
}

// zonedLayouts carry their own offset; localLayouts are read in time.Local.
var (
	zonedLayouts = []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05.000Z07:00",
		"2006-01-02 15:04:05.000 -0700",
		"2006-01-02 15:04:05 -0700",
		"02/Jan/2006:15:04:05 -0700", // Common Log Format
		time.RFC1123Z,
		time.RFC1123,
	}
	localLayouts = []string{
		"2006-01-02 15:04:05.000000",
		"2006-01-02 15:04:05.000",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05.000",
		"2006-01-02T15:04:05",
		"2006/01/02 15:04:05.000",
		"2006/01/02 15:04:05",
		"01/02/2006 15:04:05",
		"02.01.2006 15:04:05",
		"Jan _2 15:04:05",
		time.StampMilli,
	}
)

// ParseTimestamp parses a timestamp captured from a log line. It accepts the
// common log layouts (ISO-8601 with or without zone, space or T separated,
// a comma before the fractional seconds as log4j writes it, Common Log
// Format) and Unix epoch values in seconds or milliseconds.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}

	if isDigits(s) {
		n, err := strconv.ParseInt(s, 10, 64)
		if err == nil {
			return FromEpoch(n), nil
		}
	}

	// log4j/log4net write "2024-01-01 10:00:00,123".
	normalized := s
	if i := strings.LastIndexByte(s, ','); i > 0 && i+1 < len(s) && isDigits(s[i+1:]) {
		normalized = s[:i] + "." + s[i+1:]
	}

	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, normalized); err == nil {
			return t, nil
		}
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, normalized, time.Local); err == nil {
			if t.Year() == 0 {
				t = t.AddDate(time.Now().Year(), 0, 0)
			}
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// FromEpoch converts a Unix epoch value to a time. Values above 1e12 are
// treated as milliseconds, anything smaller as seconds.
func FromEpoch(n int64) time.Time {
	if n > 1e12 || n < -1e12 {
		return time.UnixMilli(n)
	}
	return time.Unix(n, 0)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// FormatDuration formats a duration in a human-readable way.
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		return fmt.Sprintf("%.1fh", d.Hours())
	}
	return fmt.Sprintf("%.1fd", d.Hours()/24)
}
