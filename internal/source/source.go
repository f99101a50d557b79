// Package source defines the provider contract shared by every ingestion
// backend, the sealed set of provider settings, and the registry that
// turns settings or source URIs into running providers.
package source

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jmurray2011/spindle/internal/dispatch"
	"github.com/jmurray2011/spindle/internal/logging"
)

var (
	// ErrClosed is returned by Start once a provider has been closed.
	ErrClosed = errors.New("provider is closed")
	// ErrNoSettings is returned when a provider is opened without settings.
	ErrNoSettings = errors.New("no provider settings")
	// ErrIncompatibleSettings is returned when an opener receives the
	// settings variant of another provider kind.
	ErrIncompatibleSettings = errors.New("incompatible provider settings")
)

// State is a provider's lifecycle position.
type State int

const (
	StateStopped State = iota
	StateRunning
	StatePaused
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Information describes a provider kind. It is the same for every
// instance of that kind.
type Information struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
}

// Provider is one running ingestion task.
//
// Start launches the provider's loops and returns immediately. Pause stops
// them but keeps read position so a later Start resumes where it left off.
// Close stops them for good; Start after Close returns ErrClosed.
type Provider interface {
	Start(ctx context.Context) error
	Pause()
	Close() error
	IsActive() bool
	State() State

	// Name identifies this instance, e.g. the tailed file.
	Name() string
	Information() Information
	SetLogger(logger logging.Logger)
}

// Deps are the collaborators a provider is built with.
type Deps struct {
	// Sink receives decoded batches, normally the shared store.
	Sink dispatch.Sink
	// Logger defaults to logging.Default() when nil.
	Logger logging.Logger
	// FlushInterval and MaxPending tune the file provider's dispatcher.
	FlushInterval time.Duration
	MaxPending    int
}
