package output

import (
	"encoding/csv"
	"io"
	"strings"

	sperrors "github.com/jmurray2011/spindle/internal/errors"
	"github.com/jmurray2011/spindle/internal/ui"
)

// Format specifies the output format type.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// Formats lists the accepted format names.
var Formats = []string{string(FormatText), string(FormatJSON), string(FormatCSV)}

// ParseFormat validates a format name. Empty means text.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatText, nil
	case FormatText, FormatJSON, FormatCSV:
		return f, nil
	default:
		return "", sperrors.UnknownValueError("output format", s, Formats)
	}
}

// Formatter handles output formatting for different formats. A formatter
// is used for one stream of output: CSV writes its header once.
type Formatter struct {
	format   Format
	writer   io.Writer
	renderer *ui.Renderer

	csv           *csv.Writer
	csvHeaderDone bool
}

// NewFormatter creates a new formatter with the specified format.
func NewFormatter(format string, writer io.Writer, opts ...ui.Option) *Formatter {
	opts = append([]ui.Option{ui.WithOutput(writer)}, opts...)
	return &Formatter{
		format:   Format(format),
		writer:   writer,
		renderer: ui.NewRendererWithOptions(opts...),
	}
}

// Format returns the formatter's output format.
func (f *Formatter) Format() Format {
	return f.format
}

func (f *Formatter) csvWriter() *csv.Writer {
	if f.csv == nil {
		f.csv = csv.NewWriter(f.writer)
	}
	return f.csv
}

// truncateMessage truncates a message to maxLen characters.
func truncateMessage(msg string, maxLen int) string {
	msg = strings.ReplaceAll(msg, "\n", " ")
	msg = strings.ReplaceAll(msg, "\r", "")
	if len(msg) > maxLen {
		return msg[:maxLen] + "..."
	}
	return msg
}
