// Package errors provides domain-specific error types for nnfp.
//
// Recoverable protocol outcomes (auth, access, accept failures) are
// reported to the peer as response frames and surface on the client side
// as the sentinels below.  Fatal conditions carry structured context
// (operation, frame type, address) so the acceptor can log them without
// guessing.
package errors

import (
	"errors"
	"fmt"
	"net"
)

// ── Sentinel errors ──────────────────────────────────────────────────

var (
	ErrConnectionClosed    = errors.New("connection closed")
	ErrSocketDead          = errors.New("socket is dead")
	ErrNotConnected        = errors.New("not connected")
	ErrAuthFailed          = errors.New("authentication failed")
	ErrAccessFailure       = errors.New("access denied for path")
	ErrAcceptFailure       = errors.New("transfer not accepted")
	ErrUnknownTransmission = errors.New("unknown transmission id")
	ErrFrameTooLarge       = errors.New("declared frame length exceeds limit")
	ErrUnexpectedFrame     = errors.New("unexpected frame type")
	ErrShortPayload        = errors.New("payload too short")
)

// ── Structured error types ───────────────────────────────────────────

// NetworkError represents a failure in a network operation.
type NetworkError struct {
	Op        string // operation: "dial", "listen", "accept", "write", "read"
	Addr      string // network address involved
	Err       error  // underlying error
	Retryable bool   // whether the caller should retry
}

func (e *NetworkError) Error() string {
	s := fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Err)
	if e.Retryable {
		s += " (retryable)"
	}
	return s
}

func (e *NetworkError) Unwrap() error { return e.Err }

// SSHError represents an SSH-specific failure with host context.
type SSHError struct {
	Op   string // "handshake", "auth", "hostkey", "forward"
	Host string
	Port int
	Err  error
}

func (e *SSHError) Error() string {
	return fmt.Sprintf("ssh %s %s:%d: %v", e.Op, e.Host, e.Port, e.Err)
}

func (e *SSHError) Unwrap() error { return e.Err }

// ProtocolError is a fatal violation of the frame contract.  The session
// that observes one terminates and releases every handle it owns.
type ProtocolError struct {
	Op        string // "dispatch", "file-part", "eof", "read-frame"
	FrameType int16
	Err       error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol %s (frame %d): %v", e.Op, e.FrameType, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// ConfigError represents an invalid configuration value.
type ConfigError struct {
	Field   string      // config field name
	Value   interface{} // the invalid value (nil if missing)
	Message string      // human-readable explanation
	Hint    string      // suggestion for the user (optional)
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("config: --%s", e.Field)
	if e.Value != nil {
		msg += fmt.Sprintf("=%v", e.Value)
	}
	msg += ": " + e.Message
	if e.Hint != "" {
		msg += "\n  hint: " + e.Hint
	}
	return msg
}

// ── Constructors ─────────────────────────────────────────────────────

// Wrap creates a NetworkError, automatically detecting retryability
// from the underlying error.
func Wrap(op, addr string, err error) *NetworkError {
	return &NetworkError{
		Op:        op,
		Addr:      addr,
		Err:       err,
		Retryable: classifyRetryable(err),
	}
}

// WrapSSH creates an SSHError.
func WrapSSH(op, host string, port int, err error) *SSHError {
	return &SSHError{Op: op, Host: host, Port: port, Err: err}
}

// Violation creates a ProtocolError.
func Violation(op string, frameType int16, err error) *ProtocolError {
	return &ProtocolError{Op: op, FrameType: frameType, Err: err}
}

// ── Classification helpers ───────────────────────────────────────────

// IsRetryable reports whether err is worth retrying.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var ne *NetworkError
	if errors.As(err, &ne) {
		return ne.Retryable
	}
	return classifyRetryable(err)
}

// IsProtocolViolation reports whether err terminates a session for
// breaking the frame contract.
func IsProtocolViolation(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}

// IsClosed reports whether err means the peer went away, which is the
// normal end of a session rather than a fault worth reporting.
func IsClosed(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrConnectionClosed) || errors.Is(err, net.ErrClosed)
}

// classifyRetryable inspects standard library error types.
func classifyRetryable(err error) bool {
	if err == nil {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Temporary() //nolint:staticcheck // Temporary is deprecated but still useful
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.Temporary() //nolint:staticcheck
	}
	return false
}

// ── Re-exports for convenience ───────────────────────────────────────

// As is [errors.As].
func As(err error, target interface{}) bool { return errors.As(err, target) }

// Is is [errors.Is].
func Is(err, target error) bool { return errors.Is(err, target) }

// New is [errors.New].
func New(text string) error { return errors.New(text) }

// Join is [errors.Join].
func Join(errs ...error) error { return errors.Join(errs...) }
