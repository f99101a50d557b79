package timeutil

import (
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
		check   func(t *testing.T, got time.Time)
	}{
		{
			name:  "empty string returns now",
			input: "",
			check: func(t *testing.T, got time.Time) {
				if time.Since(got) > time.Second {
					t.Error("expected time close to now")
				}
			},
		},
		{
			name:  "now returns current time",
			input: "now",
			check: func(t *testing.T, got time.Time) {
				if time.Since(got) > time.Second {
					t.Error("expected time close to now")
				}
			},
		},
		{
			name:  "RFC3339 format",
			input: "2025-01-15T10:30:00Z",
			check: func(t *testing.T, got time.Time) {
				expected := time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)
				if !got.Equal(expected) {
					t.Errorf("got %v, want %v", got, expected)
				}
			},
		},
		{
			name:  "relative minutes",
			input: "30m",
			check: func(t *testing.T, got time.Time) {
				diff := time.Since(got)
				if diff < 29*time.Minute || diff > 31*time.Minute {
					t.Errorf("expected ~30m ago, got diff of %v", diff)
				}
			},
		},
		{
			name:  "relative hours",
			input: "2h",
			check: func(t *testing.T, got time.Time) {
				diff := time.Since(got)
				if diff < 119*time.Minute || diff > 121*time.Minute {
					t.Errorf("expected ~2h ago, got diff of %v", diff)
				}
			},
		},
		{
			name:  "relative days",
			input: "7d",
			check: func(t *testing.T, got time.Time) {
				diff := time.Since(got)
				expectedDiff := 7 * 24 * time.Hour
				if diff < expectedDiff-time.Minute || diff > expectedDiff+time.Minute {
					t.Errorf("expected ~7d ago, got diff of %v", diff)
				}
			},
		},
		{
			name:    "invalid format",
			input:   "invalid",
			wantErr: true,
		},
		{
			name:  "relative seconds",
			input: "90s",
			check: func(t *testing.T, got time.Time) {
				diff := time.Since(got)
				if diff < 89*time.Second || diff > 91*time.Second {
					t.Errorf("expected ~90s ago, got diff of %v", diff)
				}
			},
		},
		{
			name:    "invalid relative unit",
			input:   "5x",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("Parse() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.check != nil {
				tt.check(t, got)
			}
		})
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{45 * time.Second, "45s"},
		{30 * time.Minute, "30m"},
		{90 * time.Minute, "1.5h"},
		{2 * time.Hour, "2.0h"},
		{24 * time.Hour, "1.0d"},
		{36 * time.Hour, "1.5d"},
	}

	for _, tt := range tests {
		t.Run(tt.d.String(), func(t *testing.T) {
			got := FormatDuration(tt.d)
			if got != tt.want {
				t.Errorf("FormatDuration(%v) = %q, want %q", tt.d, got, tt.want)
			}
		})
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr bool
	}{
		{
			name:  "space separated local",
			input: "2024-01-01 10:00:00",
			want:  time.Date(2024, 1, 1, 10, 0, 0, 0, time.Local),
		},
		{
			name:  "log4j comma millis",
			input: "2024-01-01 10:00:00,123",
			want:  time.Date(2024, 1, 1, 10, 0, 0, 123e6, time.Local),
		},
		{
			name:  "dot millis",
			input: "2024-01-01 10:00:00.250",
			want:  time.Date(2024, 1, 1, 10, 0, 0, 250e6, time.Local),
		},
		{
			name:  "RFC3339",
			input: "2024-03-05T08:09:10Z",
			want:  time.Date(2024, 3, 5, 8, 9, 10, 0, time.UTC),
		},
		{
			name:  "slash separated",
			input: "2024/03/05 08:09:10",
			want:  time.Date(2024, 3, 5, 8, 9, 10, 0, time.Local),
		},
		{
			name:  "common log format",
			input: "10/Oct/2023:13:55:36 +0000",
			want:  time.Date(2023, 10, 10, 13, 55, 36, 0, time.UTC),
		},
		{
			name:  "epoch millis",
			input: "1704103200000",
			want:  time.UnixMilli(1704103200000),
		},
		{
			name:  "epoch seconds",
			input: "1704103200",
			want:  time.Unix(1704103200, 0),
		},
		{
			name:  "surrounding whitespace",
			input: "  2024-01-01 10:00:00 ",
			want:  time.Date(2024, 1, 1, 10, 0, 0, 0, time.Local),
		},
		{
			name:    "empty",
			input:   "",
			wantErr: true,
		},
		{
			name:    "garbage",
			input:   "yesterday-ish",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTimestamp(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseTimestamp(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseTimestamp(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestFromEpoch(t *testing.T) {
	if got := FromEpoch(1700000000); !got.Equal(time.Unix(1700000000, 0)) {
		t.Errorf("FromEpoch(seconds) = %v", got)
	}
	if got := FromEpoch(1700000000123); !got.Equal(time.UnixMilli(1700000000123)) {
		t.Errorf("FromEpoch(millis) = %v", got)
	}
}
