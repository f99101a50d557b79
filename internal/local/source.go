// Package local implements the file tail provider.
package local

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jmurray2011/spindle/internal/decode"
	"github.com/jmurray2011/spindle/internal/dispatch"
	sperrors "github.com/jmurray2011/spindle/internal/errors"
	"github.com/jmurray2011/spindle/internal/logging"
	"github.com/jmurray2011/spindle/internal/record"
	"github.com/jmurray2011/spindle/internal/source"
)

const (
	// MaxLineSize bounds a carried-over partial line. A longer run without
	// a newline is emitted as a line of its own.
	MaxLineSize = 1024 * 1024

	// readChunk is the most a single read pulls from the file.
	readChunk = 4 * 1024 * 1024
)

// Information describes the file tail provider kind.
var Information = source.Information{
	ID:          uuid.MustParse("5c7f3c0e-2f0b-4c55-9d8e-7b1f0e6a4a11"),
	Name:        "File tail",
	Description: "Follows a growing text file and decodes each complete line with a regular expression.",
}

func init() {
	source.Register(source.KindFile, open)
}

func open(settings source.Settings, deps source.Deps) (source.Provider, error) {
	fs, ok := settings.(source.FileSettings)
	if !ok {
		return nil, fmt.Errorf("%w: file provider got %T", source.ErrIncompatibleSettings, settings)
	}
	return New(fs, deps)
}

// Source tails one file. It polls on an interval and uses fsnotify, when
// available, to wake up early on writes. Complete lines are decoded and
// handed to the source's dispatcher; a trailing partial line is carried to
// the next poll.
type Source struct {
	mu           sync.Mutex
	path         string
	interval     time.Duration
	loadExisting bool
	logger       logging.Logger
	state        source.State
	cancel       context.CancelFunc
	done         chan struct{}

	decoder    *decode.Pattern
	dispatcher *dispatch.Dispatcher

	// Tail position. Owned by the tail goroutine; survives Pause.
	tailPath string
	started  bool
	offset   int64
	carry    []byte
	missing  bool

	decoded   atomic.Int64
	unmatched atomic.Int64
}

// New creates a file tail provider. The pattern is compiled here so a bad
// pattern fails before anything starts.
func New(settings source.FileSettings, deps source.Deps) (*Source, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if deps.Sink == nil {
		return nil, fmt.Errorf("file provider %s: no sink", settings.Path)
	}

	logger := logging.OrDefault(deps.Logger).WithField("provider", source.DisplayName(settings))

	decoder, err := decode.NewPattern(settings.Pattern, logger)
	if err != nil {
		return nil, sperrors.InvalidPatternError(settings.Pattern, errors.Unwrap(err))
	}

	return &Source{
		path:         settings.Path,
		interval:     source.ClampInterval(settings.Interval),
		loadExisting: settings.LoadExisting,
		logger:       logger,
		decoder:      decoder,
		dispatcher: dispatch.New(deps.Sink, dispatch.Config{
			MaxPending:    deps.MaxPending,
			FlushInterval: deps.FlushInterval,
			Logger:        logger,
		}),
	}, nil
}

// Start launches the tail loop and the dispatcher. Starting a paused
// source resumes from the position it stopped at.
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
		var g errgroup.Group
		g.Go(func() error {
			s.dispatcher.Run(runCtx)
			return nil
		})
		g.Go(func() error {
			s.tailLoop(runCtx)
			return nil
		})
		_ = g.Wait()

		// The parent context ended without Pause or Close.
		s.mu.Lock()
		if s.done == done {
			s.state = source.StateStopped
			s.cancel, s.done = nil, nil
			cancel()
		}
		s.mu.Unlock()
	}()

	s.logger.Debug("tailing %s every %v", s.path, s.interval)
	return nil
}

// Pause stops the loops, flushing what is pending, and keeps the read
// position for a later Start.
func (s *Source) Pause() {
	s.stop(source.StatePaused)
}

// Close stops the source permanently.
func (s *Source) Close() error {
	s.stop(source.StateClosed)
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

// IsActive reports whether the tail loop is running.
func (s *Source) IsActive() bool {
	return s.State() == source.StateRunning
}

// State returns the lifecycle state.
func (s *Source) State() source.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Name returns the tailed file's base name.
func (s *Source) Name() string {
	return filepath.Base(s.Path())
}

// Information describes the provider kind.
func (s *Source) Information() source.Information {
	return Information
}

// SetLogger replaces the logger of the provider, its decoder and its
// dispatcher.
func (s *Source) SetLogger(logger logging.Logger) {
	logger = logging.OrDefault(logger)
	s.mu.Lock()
	s.logger = logger
	s.mu.Unlock()
	s.decoder.SetLogger(logger)
	s.dispatcher.SetLogger(logger)
}

// Path returns the tailed path.
func (s *Source) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

// SetPath points the source at another file. The next poll starts that
// file from scratch, honouring LoadExisting.
func (s *Source) SetPath(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.path = path
}

// Interval returns the refresh interval.
func (s *Source) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// SetInterval changes the refresh interval, clamped to the allowed range.
func (s *Source) SetInterval(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interval = source.ClampInterval(d)
}

// Decoded returns how many lines decoded into records.
func (s *Source) Decoded() int64 { return s.decoded.Load() }

// Unmatched returns how many lines the pattern rejected.
func (s *Source) Unmatched() int64 { return s.unmatched.Load() }

// Dropped returns how many records the dispatcher discarded.
func (s *Source) Dropped() int64 { return s.dispatcher.Dropped() }

// Stats reports the provider's counters by name.
func (s *Source) Stats() map[string]int64 {
	return map[string]int64{
		"decoded":   s.Decoded(),
		"unmatched": s.Unmatched(),
		"dropped":   s.Dropped(),
		"pending":   int64(s.dispatcher.Pending()),
		"delivered": s.dispatcher.Delivered(),
	}
}

func (s *Source) log() logging.Logger {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logger
}

// tailLoop polls until ctx is cancelled.
func (s *Source) tailLoop(ctx context.Context) {
	var (
		events     <-chan fsnotify.Event
		errs       <-chan error
		watcher    *fsnotify.Watcher
		watchedDir string
	)
	if w, err := fsnotify.NewWatcher(); err != nil {
		s.log().Debug("file watcher unavailable, polling only: %v", err)
	} else {
		watcher = w
		events, errs = w.Events, w.Errors
		defer func() { _ = watcher.Close() }()
	}

	for {
		path := s.Path()

		// Watch the directory so creation and rotation are seen too.
		if watcher != nil {
			if dir := filepath.Dir(path); dir != watchedDir {
				if watchedDir != "" {
					_ = watcher.Remove(watchedDir)
				}
				if err := watcher.Add(dir); err != nil {
					s.log().Debug("cannot watch %s, polling only: %v", dir, err)
					watchedDir = ""
				} else {
					watchedDir = dir
				}
			}
		}

		s.poll()

		timer := time.NewTimer(s.Interval())
	wait:
		for {
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
				break wait
			case ev, ok := <-events:
				if !ok {
					events = nil
					continue
				}
				if filepath.Clean(ev.Name) == filepath.Clean(path) && (ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
					timer.Stop()
					break wait
				}
			case err, ok := <-errs:
				if !ok {
					errs = nil
					continue
				}
				s.log().Debug("file watcher error: %v", err)
			}
		}
	}
}

// poll reads whatever was appended since the last poll.
func (s *Source) poll() {
	s.mu.Lock()
	path, loadExisting, logger := s.path, s.loadExisting, s.logger
	s.mu.Unlock()

	if path != s.tailPath {
		s.tailPath = path
		s.started = false
		s.offset = 0
		s.carry = nil
		s.missing = false
	}

	info, err := os.Stat(path)
	if err != nil {
		if !s.missing {
			logger.Trace("%s not available: %v", path, err)
			s.missing = true
		}
		if !s.started {
			// Everything written once the file appears is new.
			s.started = true
			s.offset = 0
		}
		return
	}
	s.missing = false

	size := info.Size()
	if !s.started {
		s.started = true
		if !loadExisting {
			s.offset = size
		}
	}

	if size < s.offset {
		logger.Debug("%s shrank from %d to %d bytes, reading from the start", path, s.offset, size)
		s.offset = 0
		s.carry = nil
	}
	if size == s.offset {
		return
	}

	f, err := os.Open(path)
	if err != nil {
		logger.Debug("open %s: %v", path, err)
		return
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Seek(s.offset, io.SeekStart); err != nil {
		logger.Debug("seek %s to %d: %v", path, s.offset, err)
		return
	}

	for s.offset < size {
		want := size - s.offset
		if want > readChunk {
			want = readChunk
		}
		buf := make([]byte, want)
		n, err := io.ReadFull(f, buf)
		if err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
				logger.Error("short read on %s at offset %d: wanted %d bytes, got %d", path, s.offset, want, n)
			} else {
				logger.Debug("read %s: %v", path, err)
			}
		}
		if n > 0 {
			s.offset += int64(n)
			s.consume(buf[:n], path, logger)
		}
		if err != nil {
			return
		}
	}
}

// consume splits data into lines, decodes the complete ones and keeps the
// remainder as carry for the next read.
func (s *Source) consume(data []byte, path string, logger logging.Logger) {
	if len(s.carry) > 0 {
		data = append(s.carry, data...)
	}
	s.carry = nil

	name := filepath.Base(path)
	var records []*record.Record
	emit := func(line []byte) {
		line = bytes.TrimSuffix(line, []byte{'\r'})
		if len(line) == 0 {
			return
		}
		text := strings.ToValidUTF8(string(line), "\uFFFD")
		rec, ok := s.decoder.Decode(text)
		if !ok {
			s.unmatched.Add(1)
			logger.Trace("line did not match pattern: %q", text)
			return
		}
		rec.Set(record.KeyProvider, name)
		records = append(records, rec)
	}

	for {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			break
		}
		emit(data[:i])
		data = data[i+1:]
	}

	if len(data) > MaxLineSize {
		logger.Warn("line in %s exceeds %d bytes without a newline, emitting it as is", path, MaxLineSize)
		emit(data)
		data = nil
	}
	if len(data) > 0 {
		s.carry = append([]byte(nil), data...)
	}

	if len(records) > 0 {
		s.decoded.Add(int64(len(records)))
		s.dispatcher.Enqueue(records...)
	}
}
