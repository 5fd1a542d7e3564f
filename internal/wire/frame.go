// Package wire implements the NNFP frame codec: a 6-byte little-endian
// header (int32 payload length, int16 frame type) followed by exactly
// length payload bytes.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	ncerr "nnfp/internal/errors"
)

// HeaderLen is the size of the fixed frame header.
const HeaderLen = 6

const (
	// DefaultDeadReadThreshold is how many consecutive fast zero-byte
	// reads are tolerated before the peer is declared dead.
	DefaultDeadReadThreshold = 100

	// fastRead is the cutoff under which a zero-byte read counts
	// towards the dead-socket threshold.
	fastRead = time.Second
)

var errNegativeLength = errors.New("negative frame length")

// ReaderOption customises a Reader.
type ReaderOption func(*Reader)

// WithMaxPayload caps the declared payload length.  Zero means no cap,
// which is the baseline protocol contract.
func WithMaxPayload(n uint32) ReaderOption {
	return func(r *Reader) { r.maxPayload = n }
}

// WithDeadReadThreshold overrides DefaultDeadReadThreshold.
func WithDeadReadThreshold(n int) ReaderOption {
	return func(r *Reader) {
		if n > 0 {
			r.deadReads = n
		}
	}
}

// WithClock replaces time.Now for the dead-socket heuristic.
func WithClock(now func() time.Time) ReaderOption {
	return func(r *Reader) { r.now = now }
}

// Reader decodes frames from a byte stream.  It is not safe for
// concurrent use; each connection has exactly one reading goroutine.
type Reader struct {
	r          io.Reader
	maxPayload uint32
	deadReads  int
	now        func() time.Time
	hdr        [HeaderLen]byte
	n          int64
}

// NewReader returns a Reader over r.
func NewReader(r io.Reader, opts ...ReaderOption) *Reader {
	fr := &Reader{r: r, deadReads: DefaultDeadReadThreshold, now: time.Now}
	for _, o := range opts {
		o(fr)
	}
	return fr
}

// BytesRead reports the number of bytes consumed so far, headers
// included.
func (r *Reader) BytesRead() int64 { return r.n }

// ReadFrame blocks until one complete frame is available.
//
// A peer that closes the stream yields ncerr.ErrConnectionClosed; a run
// of fast zero-byte reads longer than the threshold yields
// ncerr.ErrSocketDead.  A negative or over-cap declared length is a
// ProtocolError.  Any other transport error is returned wrapped.
func (r *Reader) ReadFrame() (Frame, error) {
	if err := r.readExact(r.hdr[:]); err != nil {
		return Frame{}, err
	}

	length := int32(binary.LittleEndian.Uint32(r.hdr[0:4]))
	typ := int16(binary.LittleEndian.Uint16(r.hdr[4:6]))

	if length < 0 {
		return Frame{}, ncerr.Violation("read-frame", typ, errNegativeLength)
	}
	if r.maxPayload > 0 && uint32(length) > r.maxPayload {
		return Frame{}, ncerr.Violation("read-frame", typ,
			fmt.Errorf("%w: %d > %d", ncerr.ErrFrameTooLarge, length, r.maxPayload))
	}

	payload := make([]byte, length)
	if length > 0 {
		if err := r.readExact(payload); err != nil {
			return Frame{}, err
		}
	}
	return Frame{Type: typ, Payload: payload}, nil
}

func (r *Reader) readExact(buf []byte) error {
	fails := 0
	read := 0
	for read < len(buf) {
		start := r.now()
		n, err := r.r.Read(buf[read:])
		read += n
		r.n += int64(n)

		if err != nil {
			if read == len(buf) && errors.Is(err, io.EOF) {
				return nil
			}
			if errors.Is(err, io.EOF) {
				return ncerr.ErrConnectionClosed
			}
			return fmt.Errorf("read frame: %w", err)
		}

		if n > 0 {
			fails = 0
			continue
		}
		if r.now().Sub(start) < fastRead {
			fails++
			if fails > r.deadReads {
				return ncerr.ErrSocketDead
			}
		}
	}
	return nil
}

// Writer encodes frames onto a byte stream.  Header and payload of one
// frame are never interleaved with another frame written through the
// same Writer.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
	n  int64
}

// NewWriter returns a Writer over w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// BytesWritten reports the number of bytes emitted so far.
func (w *Writer) BytesWritten() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.n
}

// WriteFrame writes the header and then the payload.
func (w *Writer) WriteFrame(typ int16, payload []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	n, err := writeFrame(w.w, typ, payload)
	w.n += n
	return err
}

// WriteFrame writes a single frame to w without any locking.
func WriteFrame(w io.Writer, typ int16, payload []byte) error {
	_, err := writeFrame(w, typ, payload)
	return err
}

func writeFrame(w io.Writer, typ int16, payload []byte) (int64, error) {
	var hdr [HeaderLen]byte
	binary.LittleEndian.PutUint32(hdr[0:4], uint32(len(payload)))
	binary.LittleEndian.PutUint16(hdr[4:6], uint16(typ))

	var total int64
	n, err := w.Write(hdr[:])
	total += int64(n)
	if err != nil {
		return total, fmt.Errorf("write frame header: %w", err)
	}
	if len(payload) > 0 {
		n, err = w.Write(payload)
		total += int64(n)
		if err != nil {
			return total, fmt.Errorf("write frame payload: %w", err)
		}
	}
	return total, nil
}

// ReadFrame reads one frame from r with default options.
func ReadFrame(r io.Reader) (Frame, error) {
	return NewReader(r).ReadFrame()
}
