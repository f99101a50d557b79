package record

import (
	"testing"
	"time"
)

func TestRecordMetadata(t *testing.T) {
	var r Record

	if _, ok := r.Get(KeyHost); ok {
		t.Error("Get on nil metadata should miss")
	}

	r.Set(KeyHost, "web-01")
	r.Set(KeyLine, 42)

	if got := r.GetString(KeyHost); got != "web-01" {
		t.Errorf("GetString(Host) = %q, want %q", got, "web-01")
	}
	if got := r.GetString(KeyLine); got != "" {
		t.Errorf("GetString(Line) = %q, want empty for non-string value", got)
	}
	if v, ok := r.Get(KeyLine); !ok || v != 42 {
		t.Errorf("Get(Line) = %v, %v; want 42, true", v, ok)
	}
}

func TestRecordHasTime(t *testing.T) {
	r := New()
	if r.HasTime() {
		t.Error("new record should have no time")
	}
	r.DateTime = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	if !r.HasTime() {
		t.Error("HasTime() should be true once DateTime is set")
	}
}

func TestRecordClone(t *testing.T) {
	r := New()
	r.Description = "original"
	r.Set(KeyClassification, "db")

	c := r.Clone()
	c.Description = "changed"
	c.Set(KeyClassification, "net")

	if r.Description != "original" {
		t.Errorf("clone mutated original description: %q", r.Description)
	}
	if got := r.GetString(KeyClassification); got != "db" {
		t.Errorf("clone mutated original metadata: %q", got)
	}
}
