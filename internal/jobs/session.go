package jobs

import (
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle state of a session
type Status int

const (
	// StatusProcessing indicates hashcat is initializing or running
	StatusProcessing Status = iota
	// StatusPaused indicates the session was paused and can be resumed
	StatusPaused
	// StatusCompleted indicates hashcat finished the keyspace or cracked everything
	StatusCompleted
	// StatusStopped indicates the session was stopped, aborted or failed
	StatusStopped
)

// String returns the name used in snapshots and the API
func (s Status) String() string {
	switch s {
	case StatusProcessing:
		return "processing"
	case StatusPaused:
		return "paused"
	case StatusCompleted:
		return "completed"
	case StatusStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// IsTerminal returns true once no further transition is possible
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusStopped
}

// MarshalText encodes the status by name
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name
func (s *Status) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "processing":
		*s = StatusProcessing
	case "paused":
		*s = StatusPaused
	case "completed":
		*s = StatusCompleted
	case "stopped":
		*s = StatusStopped
	default:
		return fmt.Errorf("unknown session status %q", text)
	}
	return nil
}

// Speed is the hash rate as printed by hashcat
type Speed struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

// Session is a snapshot of one hashcat run. Snapshots are values: every
// update builds and stores a new one.
type Session struct {
	ID                string    `json:"id"`
	Status            Status    `json:"status"`
	Progress          float64   `json:"progress"`
	Speed             Speed     `json:"speed"`
	ETA               string    `json:"eta,omitempty"`
	CrackedCount      int64     `json:"cracked_count"`
	TotalCount        int64     `json:"total_count"`
	CurrentDictionary string    `json:"current_dictionary,omitempty"`
	Error             string    `json:"error,omitempty"`
	UpdatedAt         time.Time `json:"updated_at"`
}
