package local

import (
	"bufio"
	"os"
	"strings"

	"github.com/jmurray2011/spindle/internal/decode"
	"github.com/jmurray2011/spindle/internal/logging"
)

// DetectionSampleLines is how many non-empty lines DetectPreset samples.
const DetectionSampleLines = 10

// detectionOrder lists presets from most to least specific.
var detectionOrder = []string{"log4j", "syslog", "clf", "pipe"}

// DetectPreset samples the start of a file and returns the name of the
// first preset that matches most sampled lines, or "plain".
func DetectPreset(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return "plain"
	}
	defer func() { _ = f.Close() }()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxLineSize)
	for scanner.Scan() && len(lines) < DetectionSampleLines {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return detectPreset(lines)
}

func detectPreset(lines []string) string {
	if len(lines) == 0 {
		return "plain"
	}
	for _, name := range detectionOrder {
		pattern, _ := decode.Preset(name)
		p, err := decode.NewPattern(pattern, logging.NopLogger{})
		if err != nil {
			continue
		}
		matched := 0
		for _, line := range lines {
			if _, ok := p.Decode(line); ok {
				matched++
			}
		}
		if matched*2 > len(lines) {
			return name
		}
	}
	return "plain"
}
