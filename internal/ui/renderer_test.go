package ui

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/jmurray2011/spindle/internal/record"
	"github.com/jmurray2011/spindle/internal/rules"
)

func TestRecordPlain(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithOptions(WithOutput(&buf), WithNoColor(true))

	rec := record.New()
	rec.DateTime = time.Date(2024, 1, 1, 10, 0, 0, 0, time.Local)
	rec.Type = "ERROR"
	rec.System = "App.Orders"
	rec.Thread = "worker-3"
	rec.Description = "order failed\nsecond line"
	rec.Set(record.KeyProvider, "app.log")
	rec.Set(record.KeyException, "java.lang.IllegalStateException: boom")

	r.Record(rec, rules.Style{}, false)

	want := "2024-01-01 10:00:00.000 ERROR App.Orders [worker-3] @app.log\n" +
		"  order failed\n" +
		"  second line\n" +
		"    java.lang.IllegalStateException: boom\n"
	if buf.String() != want {
		t.Errorf("Record() output:\n%q\nwant:\n%q", buf.String(), want)
	}
}

func TestRecordWithoutTime(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithOptions(WithOutput(&buf), WithNoColor(true))

	rec := record.New()
	rec.Description = "bare"
	r.Record(rec, rules.Style{}, false)

	if !strings.HasPrefix(buf.String(), "- -    \n") {
		t.Errorf("Record() output = %q", buf.String())
	}
}

func TestTypeStyleFallsBack(t *testing.T) {
	if TypeStyle("error").GetForeground() != ErrorStyle.GetForeground() {
		t.Error("TypeStyle should match case-insensitively")
	}
	if TypeStyle("CUSTOM").GetForeground() != ValueStyle.GetForeground() {
		t.Error("unknown types should use ValueStyle")
	}
}

func TestStyleFor(t *testing.T) {
	s := StyleFor(rules.Style{Foreground: "1", Background: "#ffffff", Bold: true, Underline: true})
	if !s.GetBold() || !s.GetUnderline() || s.GetItalic() {
		t.Errorf("attributes not carried over")
	}
	if s.GetForeground() != ColorRed {
		t.Errorf("foreground = %v, want %v", s.GetForeground(), ColorRed)
	}
}

func TestMessagesAndSections(t *testing.T) {
	var out, errOut bytes.Buffer
	r := NewRendererWithOptions(WithOutput(&out), WithError(&errOut), WithNoColor(true))

	r.Success("Created %s", "config.yaml")
	r.Section("Available")
	r.KeyValueIndent("Provider kinds", "file, udp", 1)
	r.NoResults("No rules configured.")
	r.Warning("%s already exists", "config.yaml")

	wantOut := "Created config.yaml\n\nAvailable\n  Provider kinds: file, udp\nNo rules configured.\n"
	if out.String() != wantOut {
		t.Errorf("stdout = %q, want %q", out.String(), wantOut)
	}
	if errOut.String() != "Warning: config.yaml already exists\n" {
		t.Errorf("stderr = %q", errOut.String())
	}
}
