// Package record defines the structured log entry produced by every decoder.
package record

import (
	"time"
)

// Well-known metadata keys.
const (
	KeyClassification = "Classification"
	KeyHost           = "Host"
	KeyException      = "Exception"
	KeyClass          = "Class"
	KeyMethod         = "Method"
	KeyFile           = "File"
	KeyLine           = "Line"
	KeyReceivedAt     = "ReceivedAt"
	KeyProvider       = "Provider"
)

// Record is a single decoded log entry. A zero DateTime means the source
// carried no usable timestamp.
//
// Records are mutable: classifiers rewrite Type, System, Description and
// MetaData after ingestion. Once appended to a store a *Record keeps its
// identity until the store is cleared or trims it.
type Record struct {
	DateTime    time.Time      `json:"datetime,omitempty"`
	System      string         `json:"system,omitempty"`
	Type        string         `json:"type,omitempty"`
	Thread      string         `json:"thread,omitempty"`
	Source      string         `json:"source,omitempty"`
	Description string         `json:"description"`
	MetaData    map[string]any `json:"metadata,omitempty"`
}

// New returns an empty record with an initialized MetaData map.
func New() *Record {
	return &Record{MetaData: make(map[string]any)}
}

// Set stores a metadata value, allocating the map on first use.
func (r *Record) Set(key string, value any) {
	if r.MetaData == nil {
		r.MetaData = make(map[string]any)
	}
	r.MetaData[key] = value
}

// Get returns a metadata value.
func (r *Record) Get(key string) (any, bool) {
	v, ok := r.MetaData[key]
	return v, ok
}

// GetString returns a metadata value as a string; non-string values are
// reported as missing.
func (r *Record) GetString(key string) string {
	if v, ok := r.MetaData[key].(string); ok {
		return v
	}
	return ""
}

// HasTime reports whether DateTime was populated.
func (r *Record) HasTime() bool {
	return !r.DateTime.IsZero()
}

// Clone returns a deep copy of the record's fields and a shallow copy of
// its metadata values.
func (r *Record) Clone() *Record {
	c := *r
	if r.MetaData != nil {
		c.MetaData = make(map[string]any, len(r.MetaData))
		for k, v := range r.MetaData {
			c.MetaData[k] = v
		}
	}
	return &c
}
