package model

import "time"

// ConnectivityStatus is the connection state reported by the external oracle.
type ConnectivityStatus string

const (
	// StatusConnected indicates connectivity to the backend is available.
	StatusConnected ConnectivityStatus = "connected"

	// StatusDisconnected indicates connectivity is lost.
	StatusDisconnected ConnectivityStatus = "disconnected"
)

// ConnectionState is the single process-wide connectivity record.
// It is mutated only by the connectivity manager in response to oracle events.
type ConnectionState struct {
	Status             ConnectivityStatus `json:"status"`
	LastConnectedAt    *time.Time         `json:"lastConnectedAt,omitempty"`
	LastDisconnectedAt *time.Time         `json:"lastDisconnectedAt,omitempty"`
	Reconnecting       bool               `json:"reconnecting"`
}

// NewConnectionState returns the initial connectivity record.
// The process assumes connectivity until the oracle reports otherwise.
func NewConnectionState() ConnectionState {
	return ConnectionState{Status: StatusConnected}
}

// Online reports whether the state is connected.
func (s ConnectionState) Online() bool {
	return s.Status == StatusConnected
}

// ReconnectionState tracks progress of the reconnection backoff schedule.
// Attempts resets to zero on any successful connection and is capped by the
// reconnection manager's maximum attempt count.
type ReconnectionState struct {
	Attempts      int           `json:"attempts"`
	LastAttemptAt *time.Time    `json:"lastAttemptAt,omitempty"`
	NextDelay     time.Duration `json:"nextDelayMs"`
}
