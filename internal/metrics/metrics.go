// Package metrics provides lightweight, lock-free counters and gauges
// for tracking runtime statistics of an nnfp server.
//
// All methods are safe for concurrent use.  A nil *Collector is a
// valid no-op receiver, so callers never need to nil-check.
package metrics

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Collector tracks runtime metrics shared by every session of one
// server process.
type Collector struct {
	sessionsActive     atomic.Int64
	sessionsTotal      atomic.Int64
	bytesIn            atomic.Int64
	bytesOut           atomic.Int64
	uploadsCompleted   atomic.Int64
	downloadsCompleted atomic.Int64
	authFailures       atomic.Int64
	protocolErrors     atomic.Int64
	errorsTotal        atomic.Int64

	mu           sync.RWMutex
	startTime    time.Time
	lastError    time.Time
	lastErrorMsg string
}

// New creates a metrics collector with the start time set to now.
func New() *Collector {
	return &Collector{startTime: time.Now()}
}

// ── Session metrics ──────────────────────────────────────────────────

// SessionOpened increments both the active and total counters.
func (c *Collector) SessionOpened() {
	if c == nil {
		return
	}
	c.sessionsActive.Add(1)
	c.sessionsTotal.Add(1)
}

// SessionClosed decrements the active session counter.
func (c *Collector) SessionClosed() {
	if c == nil {
		return
	}
	c.sessionsActive.Add(-1)
}

// ActiveSessions returns the current number of open sessions.
func (c *Collector) ActiveSessions() int64 {
	if c == nil {
		return 0
	}
	return c.sessionsActive.Load()
}

// TotalSessions returns the lifetime session count.
func (c *Collector) TotalSessions() int64 {
	if c == nil {
		return 0
	}
	return c.sessionsTotal.Load()
}

// ── I/O metrics ──────────────────────────────────────────────────────

// BytesReceived records n bytes read from the network.
func (c *Collector) BytesReceived(n int64) {
	if c == nil {
		return
	}
	c.bytesIn.Add(n)
}

// BytesSent records n bytes written to the network.
func (c *Collector) BytesSent(n int64) {
	if c == nil {
		return
	}
	c.bytesOut.Add(n)
}

// TotalBytesIn returns total bytes received.
func (c *Collector) TotalBytesIn() int64 {
	if c == nil {
		return 0
	}
	return c.bytesIn.Load()
}

// TotalBytesOut returns total bytes sent.
func (c *Collector) TotalBytesOut() int64 {
	if c == nil {
		return 0
	}
	return c.bytesOut.Load()
}

// ── Transfer metrics ─────────────────────────────────────────────────

// UploadCompleted records a client → server transmission closed by Eof.
func (c *Collector) UploadCompleted() {
	if c == nil {
		return
	}
	c.uploadsCompleted.Add(1)
}

// DownloadCompleted records a server → client transmission streamed to
// its Eof.
func (c *Collector) DownloadCompleted() {
	if c == nil {
		return
	}
	c.downloadsCompleted.Add(1)
}

// Uploads returns the completed upload count.
func (c *Collector) Uploads() int64 {
	if c == nil {
		return 0
	}
	return c.uploadsCompleted.Load()
}

// Downloads returns the completed download count.
func (c *Collector) Downloads() int64 {
	if c == nil {
		return 0
	}
	return c.downloadsCompleted.Load()
}

// ── Failure metrics ──────────────────────────────────────────────────

// AuthFailed records an AuthFailure reply.
func (c *Collector) AuthFailed() {
	if c == nil {
		return
	}
	c.authFailures.Add(1)
}

// AuthFailures returns the AuthFailure reply count.
func (c *Collector) AuthFailures() int64 {
	if c == nil {
		return 0
	}
	return c.authFailures.Load()
}

// ProtocolViolation records a session terminated for breaking the frame
// contract.  It also counts as an error.
func (c *Collector) ProtocolViolation(msg string) {
	if c == nil {
		return
	}
	c.protocolErrors.Add(1)
	c.RecordError(msg)
}

// ProtocolViolations returns the violation count.
func (c *Collector) ProtocolViolations() int64 {
	if c == nil {
		return 0
	}
	return c.protocolErrors.Load()
}

// RecordError increments the error counter and stores the message.
func (c *Collector) RecordError(msg string) {
	if c == nil {
		return
	}
	c.errorsTotal.Add(1)
	c.mu.Lock()
	c.lastError = time.Now()
	c.lastErrorMsg = msg
	c.mu.Unlock()
}

// ErrorCount returns the total number of errors recorded.
func (c *Collector) ErrorCount() int64 {
	if c == nil {
		return 0
	}
	return c.errorsTotal.Load()
}

// ── Snapshot ─────────────────────────────────────────────────────────

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	Uptime             string `json:"uptime"`
	SessionsActive     int64  `json:"sessions_active"`
	SessionsTotal      int64  `json:"sessions_total"`
	BytesIn            int64  `json:"bytes_in"`
	BytesOut           int64  `json:"bytes_out"`
	UploadsCompleted   int64  `json:"uploads_completed"`
	DownloadsCompleted int64  `json:"downloads_completed"`
	AuthFailures       int64  `json:"auth_failures"`
	ProtocolErrors     int64  `json:"protocol_errors"`
	ErrorsTotal        int64  `json:"errors_total"`
	LastError          string `json:"last_error,omitempty"`
	LastErrorMessage   string `json:"last_error_message,omitempty"`
}

// Snapshot returns a copy of all current metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		Uptime:             time.Since(c.startTime).Truncate(time.Second).String(),
		SessionsActive:     c.sessionsActive.Load(),
		SessionsTotal:      c.sessionsTotal.Load(),
		BytesIn:            c.bytesIn.Load(),
		BytesOut:           c.bytesOut.Load(),
		UploadsCompleted:   c.uploadsCompleted.Load(),
		DownloadsCompleted: c.downloadsCompleted.Load(),
		AuthFailures:       c.authFailures.Load(),
		ProtocolErrors:     c.protocolErrors.Load(),
		ErrorsTotal:        c.errorsTotal.Load(),
	}
	if !c.lastError.IsZero() {
		s.LastError = c.lastError.Format(time.RFC3339)
		s.LastErrorMessage = c.lastErrorMsg
	}
	return s
}

// JSON returns the snapshot as an indented JSON string.
func (c *Collector) JSON() string {
	s := c.Snapshot()
	data, _ := json.MarshalIndent(s, "", "  ")
	return string(data)
}
