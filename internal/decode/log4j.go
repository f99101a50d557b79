package decode

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmurray2011/spindle/internal/logging"
	"github.com/jmurray2011/spindle/internal/record"
)

// Log4jEnvelope is the prefix every accepted datagram must start with.
const Log4jEnvelope = "<log4j:event"

// Log4jHostProperty is promoted to the Host metadata key.
const Log4jHostProperty = "log4jmachinename"

// Events arrive as bare fragments with an undeclared log4j prefix, so they
// are wrapped in a root that declares it before parsing.
const (
	log4jOpen  = `<log4j:batch xmlns:log4j="http://jakarta.apache.org/log4j/">`
	log4jClose = `</log4j:batch>`
)

type log4jBatch struct {
	Event log4jEvent `xml:"event"`
}

type log4jEvent struct {
	XMLName   xml.Name
	Logger    string         `xml:"logger,attr"`
	Timestamp string         `xml:"timestamp,attr"`
	Level     string         `xml:"level,attr"`
	Thread    string         `xml:"thread,attr"`
	Message   string         `xml:"message"`
	NDC       string         `xml:"NDC"`
	Throwable string         `xml:"throwable"`
	Location  *log4jLocation `xml:"locationInfo"`
	Data      []log4jData    `xml:"properties>data"`
}

type log4jLocation struct {
	Class  string `xml:"class,attr"`
	Method string `xml:"method,attr"`
	File   string `xml:"file,attr"`
	Line   string `xml:"line,attr"`
}

type log4jData struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// IsLog4j reports whether payload carries the log4j event envelope.
func IsLog4j(payload string) bool {
	return strings.HasPrefix(payload, Log4jEnvelope)
}

// Log4j decodes log4j XMLLayout event fragments.
type Log4j struct {
	logger logging.Ref
}

// NewLog4j creates a log4j decoder; a nil logger uses the default.
func NewLog4j(logger logging.Logger) *Log4j {
	d := &Log4j{}
	d.logger.Store(logger)
	return d
}

// SetLogger replaces the logger that receives decode diagnostics.
func (d *Log4j) SetLogger(logger logging.Logger) { d.logger.Store(logger) }

// DecodeLog4j decodes one fragment with the default logger.
func DecodeLog4j(payload, sender string, received time.Time) (*record.Record, error) {
	return NewLog4j(nil).Decode(payload, sender, received)
}

// Decode parses one event fragment received from sender at received.
//
// The logger attribute becomes System, level becomes Type. The event
// timestamp (milliseconds since the epoch) falls back to received when it
// cannot be parsed. Properties are copied into metadata; log4jmachinename
// becomes Host, and Source is the host when known, else the sender.
func (d *Log4j) Decode(payload, sender string, received time.Time) (*record.Record, error) {
	var batch log4jBatch
	if err := xml.Unmarshal([]byte(log4jOpen+payload+log4jClose), &batch); err != nil {
		return nil, fmt.Errorf("parse log4j event: %w", err)
	}
	ev := batch.Event
	if ev.XMLName.Local == "" {
		return nil, fmt.Errorf("parse log4j event: no event element")
	}

	rec := record.New()
	rec.System = ev.Logger
	rec.Type = ev.Level
	rec.Thread = ev.Thread
	rec.Description = ev.Message
	rec.Set(record.KeyReceivedAt, received)

	if ms, err := strconv.ParseInt(strings.TrimSpace(ev.Timestamp), 10, 64); err == nil {
		rec.DateTime = time.UnixMilli(ms)
	} else {
		d.logger.Load().Trace("log4j timestamp %q not parsed, using receive time", ev.Timestamp)
		rec.DateTime = received
	}

	if loc := ev.Location; loc != nil {
		setNonEmpty(rec, record.KeyClass, loc.Class)
		setNonEmpty(rec, record.KeyMethod, loc.Method)
		setNonEmpty(rec, record.KeyFile, loc.File)
		setNonEmpty(rec, record.KeyLine, loc.Line)
	}
	setNonEmpty(rec, record.KeyException, strings.TrimSpace(ev.Throwable))
	setNonEmpty(rec, "NDC", ev.NDC)

	for _, p := range ev.Data {
		key := p.Name
		if key == "" {
			continue
		}
		if strings.EqualFold(key, Log4jHostProperty) {
			key = record.KeyHost
		}
		if prev, dup := rec.MetaData[key]; dup {
			d.logger.Load().Warn("log4j property %q repeated, replacing %v with %q", key, prev, p.Value)
		}
		rec.MetaData[key] = p.Value
	}

	if host := rec.GetString(record.KeyHost); host != "" {
		rec.Source = host
	} else {
		rec.Source = sender
	}
	return rec, nil
}

func setNonEmpty(rec *record.Record, key, value string) {
	if value != "" {
		rec.Set(key, value)
	}
}
