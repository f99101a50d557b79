package source

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// Provider kinds.
const (
	KindFile    = "file"
	KindNetwork = "udp"
)

// Refresh interval bounds for file providers.
const (
	MinInterval     = 50 * time.Millisecond
	MaxInterval     = 5000 * time.Millisecond
	DefaultInterval = 250 * time.Millisecond
)

// ProtocolLog4j is the only supported network protocol.
const ProtocolLog4j = "log4j"

// Settings configures one provider. The set of implementations is closed:
// FileSettings and NetworkSettings.
type Settings interface {
	// Kind names the provider kind these settings build.
	Kind() string
	Validate() error
	sealed()
}

// FileSettings configures a file tail provider.
type FileSettings struct {
	Path         string
	Interval     time.Duration
	LoadExisting bool
	// Pattern is the decode regex; empty means one record per line.
	Pattern string
}

func (FileSettings) Kind() string { return KindFile }
func (FileSettings) sealed()      {}

// Validate rejects settings that cannot be opened.
func (s FileSettings) Validate() error {
	if strings.TrimSpace(s.Path) == "" {
		return fmt.Errorf("file settings: path is required")
	}
	return nil
}

// ClampInterval bounds d to [MinInterval, MaxInterval]; zero selects
// DefaultInterval.
func ClampInterval(d time.Duration) time.Duration {
	switch {
	case d == 0:
		return DefaultInterval
	case d < MinInterval:
		return MinInterval
	case d > MaxInterval:
		return MaxInterval
	default:
		return d
	}
}

// NetworkSettings configures a UDP listener provider.
type NetworkSettings struct {
	// Host is the bind address; empty listens on all interfaces.
	Host     string
	Port     int
	Protocol string
}

func (NetworkSettings) Kind() string { return KindNetwork }
func (NetworkSettings) sealed()      {}

// Validate rejects out-of-range ports and unsupported protocols. Port 0
// asks the system for a free port.
func (s NetworkSettings) Validate() error {
	if s.Port < 0 || s.Port > 65535 {
		return fmt.Errorf("network settings: port %d out of range", s.Port)
	}
	if p := s.protocol(); p != ProtocolLog4j {
		return fmt.Errorf("network settings: unsupported protocol %q (supported: %s)", p, ProtocolLog4j)
	}
	return nil
}

func (s NetworkSettings) protocol() string {
	if s.Protocol == "" {
		return ProtocolLog4j
	}
	return strings.ToLower(s.Protocol)
}

// Address returns the host:port to bind.
func (s NetworkSettings) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}
