// Package dispatch batches a provider's decoded records and hands them to
// the store on a fixed interval, one AddBatch call per drain.
package dispatch

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jmurray2011/spindle/internal/logging"
	"github.com/jmurray2011/spindle/internal/record"
)

const (
	DefaultMaxPending    = 100000
	DefaultFlushInterval = 100 * time.Millisecond
)

// Sink receives drained batches. store.Store implements it.
type Sink interface {
	AddBatch(records []*record.Record) bool
}

// Config holds tunable parameters for a Dispatcher.
type Config struct {
	MaxPending    int
	FlushInterval time.Duration
	Logger        logging.Logger
}

// Dispatcher is a per-provider pending queue. Producers Enqueue from any
// goroutine; Run drains the queue every FlushInterval. Records reach the
// sink in the order they were enqueued.
type Dispatcher struct {
	sink          Sink
	maxPending    int
	flushInterval time.Duration
	logger        logging.Ref

	mu      sync.Mutex
	pending []*record.Record

	// flushMu keeps take-and-deliver atomic so two concurrent drains
	// cannot hand batches to the sink out of order.
	flushMu sync.Mutex

	dropped     atomic.Int64
	lastDropLog atomic.Int64 // unix seconds of the last overflow warning
	delivered   atomic.Int64
}

// New creates a dispatcher feeding sink.
func New(sink Sink, conf ...Config) *Dispatcher {
	d := &Dispatcher{
		sink:          sink,
		maxPending:    DefaultMaxPending,
		flushInterval: DefaultFlushInterval,
	}
	var logger logging.Logger
	if len(conf) > 0 {
		if conf[0].MaxPending > 0 {
			d.maxPending = conf[0].MaxPending
		}
		if conf[0].FlushInterval > 0 {
			d.flushInterval = conf[0].FlushInterval
		}
		logger = conf[0].Logger
	}
	d.logger.Store(logger)
	return d
}

// SetLogger replaces the logger used for overflow and rejection messages.
func (d *Dispatcher) SetLogger(logger logging.Logger) { d.logger.Store(logger) }

// Enqueue appends records to the pending queue and returns how many were
// accepted. Records beyond MaxPending are dropped.
func (d *Dispatcher) Enqueue(records ...*record.Record) int {
	if len(records) == 0 {
		return 0
	}

	d.mu.Lock()
	room := d.maxPending - len(d.pending)
	if room < 0 {
		room = 0
	}
	accepted := len(records)
	if accepted > room {
		accepted = room
	}
	d.pending = append(d.pending, records[:accepted]...)
	d.mu.Unlock()

	if over := len(records) - accepted; over > 0 {
		d.logOverflow(over)
	}
	return accepted
}

// logOverflow counts dropped records and warns at most once per 10 seconds.
func (d *Dispatcher) logOverflow(n int) {
	total := d.dropped.Add(int64(n))
	now := time.Now().Unix()
	last := d.lastDropLog.Load()
	if now-last >= 10 && d.lastDropLog.CompareAndSwap(last, now) {
		d.logger.Load().Warn("pending queue full (%d records), %d dropped so far", d.maxPending, total)
	}
}

// Run drains the queue every FlushInterval until ctx is cancelled, then
// drains once more.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.Flush()
		case <-ctx.Done():
			d.Flush()
			return
		}
	}
}

// Flush synchronously delivers everything pending as one batch and returns
// the batch size.
func (d *Dispatcher) Flush() int {
	d.flushMu.Lock()
	defer d.flushMu.Unlock()

	d.mu.Lock()
	if len(d.pending) == 0 {
		d.mu.Unlock()
		return 0
	}
	batch := d.pending
	d.pending = nil
	d.mu.Unlock()

	if !d.sink.AddBatch(batch) {
		d.logger.Load().Debug("sink rejected batch of %d records", len(batch))
		return len(batch)
	}
	d.delivered.Add(int64(len(batch)))
	return len(batch)
}

// Pending returns the number of queued records.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Dropped returns the number of records discarded because the queue was full.
func (d *Dispatcher) Dropped() int64 {
	return d.dropped.Load()
}

// Delivered returns the number of records the sink accepted.
func (d *Dispatcher) Delivered() int64 {
	return d.delivered.Load()
}
