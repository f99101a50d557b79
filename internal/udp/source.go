// Package udp implements the network listener provider: log4j XML events
// received as UDP datagrams.
package udp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jmurray2011/spindle/internal/decode"
	"github.com/jmurray2011/spindle/internal/dispatch"
	"github.com/jmurray2011/spindle/internal/logging"
	"github.com/jmurray2011/spindle/internal/record"
	"github.com/jmurray2011/spindle/internal/source"
)

const (
	// ReceiveTimeout bounds each read so cancellation is noticed.
	ReceiveTimeout = time.Second

	// PumpInterval is how often queued datagrams are decoded and stored.
	PumpInterval = 250 * time.Millisecond

	// DefaultMaxQueued caps datagrams waiting for the pump.
	DefaultMaxQueued = 100000

	maxDatagram = 64 * 1024
)

// Information describes the network listener provider kind.
var Information = source.Information{
	ID:          uuid.MustParse("b7d1e6a2-4c3f-4f0a-8a52-3e9c1d7f6b20"),
	Name:        "UDP log4j listener",
	Description: "Receives log4j XMLLayout events over UDP and decodes each datagram into a record.",
}

func init() {
	source.Register(source.KindNetwork, open)
}

func open(settings source.Settings, deps source.Deps) (source.Provider, error) {
	ns, ok := settings.(source.NetworkSettings)
	if !ok {
		return nil, fmt.Errorf("%w: udp provider got %T", source.ErrIncompatibleSettings, settings)
	}
	return New(ns, deps)
}

type datagram struct {
	payload  string
	sender   string
	received time.Time
}

// Source listens on one UDP port. A receive loop queues raw datagrams and
// a pump loop decodes whatever is queued on every tick, delivering each
// tick's records to the sink as one batch.
type Source struct {
	mu       sync.Mutex
	settings source.NetworkSettings
	logger   logging.Logger
	state    source.State
	cancel   context.CancelFunc
	done     chan struct{}
	addr     *net.UDPAddr

	sink    dispatch.Sink
	decoder *decode.Log4j

	queueMu   sync.Mutex
	queue     []datagram
	maxQueued int

	received  atomic.Int64
	rejected  atomic.Int64
	failed    atomic.Int64
	overflows atomic.Int64
}

// New creates a UDP listener. Nothing is bound until Start.
func New(settings source.NetworkSettings, deps source.Deps) (*Source, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if deps.Sink == nil {
		return nil, fmt.Errorf("udp provider %s: no sink", settings.Address())
	}

	logger := logging.OrDefault(deps.Logger).WithField("provider", source.DisplayName(settings))
	maxQueued := deps.MaxPending
	if maxQueued <= 0 {
		maxQueued = DefaultMaxQueued
	}

	return &Source{
		settings:  settings,
		logger:    logger,
		sink:      deps.Sink,
		decoder:   decode.NewLog4j(logger),
		maxQueued: maxQueued,
	}, nil
}

// Start binds the socket and launches the receive and pump loops. Starting
// a paused source resumes with whatever was still queued.
func (s *Source) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case source.StateClosed:
		return source.ErrClosed
	case source.StateRunning:
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	s.state = source.StateRunning

	go func() {
		defer close(done)
		g, gctx := errgroup.WithContext(runCtx)
		g.Go(func() error { return s.receiveLoop(gctx) })
		g.Go(func() error { return s.pumpLoop(gctx) })
		if err := g.Wait(); err != nil {
			s.log().Error("listener stopped: %v", err)
		}

		s.mu.Lock()
		if s.done == done {
			s.state = source.StateStopped
			s.cancel, s.done = nil, nil
			cancel()
		}
		s.mu.Unlock()
	}()

	s.logger.Debug("listening on udp %s", s.settings.Address())
	return nil
}

// Pause stops both loops. Queued datagrams are kept for the next Start.
func (s *Source) Pause() {
	s.stop(source.StatePaused)
}

// Close stops the source permanently and discards anything queued.
func (s *Source) Close() error {
	s.stop(source.StateClosed)
	s.queueMu.Lock()
	s.queue = nil
	s.queueMu.Unlock()
	return nil
}

func (s *Source) stop(next source.State) {
	s.mu.Lock()
	if s.state == source.StateClosed || (next == source.StatePaused && s.state != source.StateRunning) {
		s.mu.Unlock()
		return
	}
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.state = next
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// IsActive reports whether the loops are running.
func (s *Source) IsActive() bool {
	return s.State() == source.StateRunning
}

// State returns the lifecycle state.
func (s *Source) State() source.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Name returns "udp:PORT". With port 0 it reports the port actually bound
// once the socket is up.
func (s *Source) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return source.DisplayName(s.settings)
}

// Information describes the provider kind.
func (s *Source) Information() source.Information {
	return Information
}

// SetLogger replaces the logger of the provider and its decoder.
func (s *Source) SetLogger(logger logging.Logger) {
	logger = logging.OrDefault(logger)
	s.mu.Lock()
	s.logger = logger
	s.mu.Unlock()
	s.decoder.SetLogger(logger)
}

// Addr returns the bound address, or nil while no socket is open.
func (s *Source) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.addr == nil {
		return nil
	}
	return s.addr
}

// Received returns how many datagrams were queued.
func (s *Source) Received() int64 { return s.received.Load() }

// Rejected returns how many datagrams lacked the event envelope.
func (s *Source) Rejected() int64 { return s.rejected.Load() }

// Failed returns how many enveloped datagrams could not be decoded.
func (s *Source) Failed() int64 { return s.failed.Load() }

// Dropped returns how many datagrams were discarded on a full queue.
func (s *Source) Dropped() int64 { return s.overflows.Load() }

// Stats reports the provider's counters by name.
func (s *Source) Stats() map[string]int64 {
	return map[string]int64{
		"received": s.Received(),
		"rejected": s.Rejected(),
		"failed":   s.Failed(),
		"dropped":  s.Dropped(),
	}
}

func (s *Source) log() logging.Logger {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logger
}

func (s *Source) listen() (*net.UDPConn, error) {
	s.mu.Lock()
	address := s.settings.Address()
	s.mu.Unlock()

	laddr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", address, err)
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", address, err)
	}

	bound, _ := conn.LocalAddr().(*net.UDPAddr)
	s.mu.Lock()
	s.addr = bound
	// Rebinds after an error or a pause reuse the port first handed out.
	if s.settings.Port == 0 && bound != nil {
		s.settings.Port = bound.Port
	}
	s.mu.Unlock()
	return conn, nil
}

// receiveLoop reads datagrams until ctx is cancelled. Read timeouts are
// routine; any other error recycles the socket.
func (s *Source) receiveLoop(ctx context.Context) error {
	var (
		conn    *net.UDPConn
		release func() bool
	)
	closeConn := func() {
		if conn == nil {
			return
		}
		release()
		_ = conn.Close()
		conn = nil
		s.mu.Lock()
		s.addr = nil
		s.mu.Unlock()
	}
	defer closeConn()

	buf := make([]byte, maxDatagram)
	for ctx.Err() == nil {
		if conn == nil {
			c, err := s.listen()
			if err != nil {
				s.log().Warn("%v, retrying in %v", err, PumpInterval)
				if !sleep(ctx, PumpInterval) {
					return nil
				}
				continue
			}
			conn = c
			// Unblock a pending read as soon as the loop is cancelled.
			release = context.AfterFunc(ctx, func() { _ = c.SetReadDeadline(time.Now()) })
		}

		if err := conn.SetReadDeadline(time.Now().Add(ReceiveTimeout)); err != nil {
			s.log().Debug("set read deadline: %v", err)
		}
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			s.log().Debug("receive failed, reopening socket: %v", err)
			closeConn()
			continue
		}

		sender := ""
		if from != nil {
			sender = from.IP.String()
		}
		s.push(datagram{
			payload:  strings.ToValidUTF8(string(buf[:n]), "\uFFFD"),
			sender:   sender,
			received: time.Now(),
		})
	}
	return nil
}

func (s *Source) push(d datagram) {
	s.queueMu.Lock()
	if len(s.queue) >= s.maxQueued {
		s.queueMu.Unlock()
		if s.overflows.Add(1) == 1 {
			s.log().Warn("receive queue full at %d datagrams, dropping", s.maxQueued)
		}
		return
	}
	s.queue = append(s.queue, d)
	s.queueMu.Unlock()
	s.received.Add(1)
}

func (s *Source) pumpLoop(ctx context.Context) error {
	ticker := time.NewTicker(PumpInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.pump()
		}
	}
}

// pump decodes everything queued and stores the result as one batch. It
// returns the number of records delivered.
func (s *Source) pump() int {
	s.queueMu.Lock()
	raw := s.queue
	s.queue = nil
	s.queueMu.Unlock()

	if len(raw) == 0 {
		return 0
	}

	logger := s.log()
	name := s.Name()
	records := make([]*record.Record, 0, len(raw))
	for _, d := range raw {
		if !decode.IsLog4j(d.payload) {
			s.rejected.Add(1)
			logger.Trace("datagram from %s has no %s envelope", d.sender, decode.Log4jEnvelope)
			continue
		}
		rec, err := s.decoder.Decode(d.payload, d.sender, d.received)
		if err != nil {
			s.failed.Add(1)
			logger.Debug("dropping datagram from %s: %v", d.sender, err)
			continue
		}
		rec.Set(record.KeyProvider, name)
		records = append(records, rec)
	}

	if len(records) == 0 {
		return 0
	}
	if !s.sink.AddBatch(records) {
		logger.Trace("sink refused %d records", len(records))
		return 0
	}
	return len(records)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
