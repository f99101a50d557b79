package dispatch

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jmurray2011/spindle/internal/logging"
	"github.com/jmurray2011/spindle/internal/record"
)

type fakeSink struct {
	mu      sync.Mutex
	batches [][]*record.Record
	reject  bool
}

func (s *fakeSink) AddBatch(records []*record.Record) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reject {
		return false
	}
	s.batches = append(s.batches, records)
	return true
}

func (s *fakeSink) snapshot() [][]*record.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]*record.Record(nil), s.batches...)
}

func rec(desc string) *record.Record {
	r := record.New()
	r.Description = desc
	return r
}

func TestFlushDeliversOneOrderedBatch(t *testing.T) {
	sink := &fakeSink{}
	d := New(sink, Config{Logger: logging.NopLogger{}})

	d.Enqueue(rec("a"), rec("b"))
	d.Enqueue(rec("c"))

	if n := d.Flush(); n != 3 {
		t.Fatalf("Flush() = %d, want 3", n)
	}
	batches := sink.snapshot()
	if len(batches) != 1 {
		t.Fatalf("got %d batches, want exactly 1", len(batches))
	}
	for i, want := range []string{"a", "b", "c"} {
		if got := batches[0][i].Description; got != want {
			t.Errorf("batch[%d] = %q, want %q", i, got, want)
		}
	}
	if d.Pending() != 0 {
		t.Errorf("Pending() = %d after flush, want 0", d.Pending())
	}
	if d.Flush() != 0 || len(sink.snapshot()) != 1 {
		t.Error("flushing an empty queue must not call the sink")
	}
	if d.Delivered() != 3 {
		t.Errorf("Delivered() = %d, want 3", d.Delivered())
	}
}

func TestEnqueueOverflowDropsNewest(t *testing.T) {
	sink := &fakeSink{}
	d := New(sink, Config{MaxPending: 3, Logger: logging.NopLogger{}})

	if got := d.Enqueue(rec("1"), rec("2")); got != 2 {
		t.Errorf("Enqueue() = %d, want 2", got)
	}
	if got := d.Enqueue(rec("3"), rec("4"), rec("5")); got != 1 {
		t.Errorf("Enqueue() = %d, want 1", got)
	}
	if d.Dropped() != 2 {
		t.Errorf("Dropped() = %d, want 2", d.Dropped())
	}

	d.Flush()
	batch := sink.snapshot()[0]
	if len(batch) != 3 || batch[2].Description != "3" {
		t.Errorf("batch = %d records ending in %q, want the first three", len(batch), batch[len(batch)-1].Description)
	}
}

func TestRejectedBatchIsNotCounted(t *testing.T) {
	sink := &fakeSink{reject: true}
	d := New(sink, Config{Logger: logging.NopLogger{}})

	d.Enqueue(rec("x"))
	d.Flush()

	if d.Delivered() != 0 {
		t.Errorf("Delivered() = %d, want 0 for a rejected batch", d.Delivered())
	}
	if d.Pending() != 0 {
		t.Errorf("Pending() = %d, rejected batches are not retried", d.Pending())
	}
}

func TestSetLoggerRedirectsRejections(t *testing.T) {
	var before, after bytes.Buffer
	oldLogger := logging.NewWithOutput(&before)
	oldLogger.SetLevel(logging.LevelDebug)
	newLogger := logging.NewWithOutput(&after)
	newLogger.SetLevel(logging.LevelDebug)

	d := New(&fakeSink{reject: true}, Config{Logger: oldLogger})
	d.SetLogger(newLogger)
	d.Enqueue(rec("x"))
	d.Flush()

	if before.Len() != 0 {
		t.Errorf("replaced logger still received output: %s", before.String())
	}
	if !strings.Contains(after.String(), "sink rejected batch of 1 records") {
		t.Errorf("new logger output = %q", after.String())
	}
}

func TestRunDrainsPeriodicallyAndOnCancel(t *testing.T) {
	sink := &fakeSink{}
	d := New(sink, Config{FlushInterval: 10 * time.Millisecond, Logger: logging.NopLogger{}})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	d.Enqueue(rec("tick"))
	deadline := time.Now().Add(2 * time.Second)
	for len(sink.snapshot()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if len(sink.snapshot()) == 0 {
		t.Fatal("Run() did not drain within the deadline")
	}

	// Enqueued right before cancel; the final drain must pick it up.
	d.Enqueue(rec("last"))
	cancel()
	<-done

	var all []string
	for _, b := range sink.snapshot() {
		for _, r := range b {
			all = append(all, r.Description)
		}
	}
	if len(all) != 2 || all[1] != "last" {
		t.Errorf("delivered %v, want [tick last]", all)
	}
}

func TestConcurrentProducersPreserveOrderPerProducer(t *testing.T) {
	sink := &fakeSink{}
	d := New(sink, Config{FlushInterval: time.Millisecond, Logger: logging.NopLogger{}})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	const producers, perProducer = 4, 500
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				d.Enqueue(rec(fmt.Sprintf("%d:%d", p, i)))
			}
		}(p)
	}
	wg.Wait()
	cancel()
	<-done

	next := make(map[int]int)
	total := 0
	for _, b := range sink.snapshot() {
		for _, r := range b {
			var p, i int
			if _, err := fmt.Sscanf(r.Description, "%d:%d", &p, &i); err != nil {
				t.Fatalf("bad record %q", r.Description)
			}
			if i != next[p] {
				t.Fatalf("producer %d: got %d, want %d", p, i, next[p])
			}
			next[p]++
			total++
		}
	}
	if total != producers*perProducer {
		t.Errorf("delivered %d records, want %d", total, producers*perProducer)
	}
}
