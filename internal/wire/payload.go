package wire

import (
	"encoding/binary"
	"fmt"
	"unicode/utf8"

	ncerr "nnfp/internal/errors"
)

// TransmissionIDLen is the size of the id prefix on FilePart payloads
// and of Eof / ClientToServerAccept payloads.
const TransmissionIDLen = 4

// DownloadAcceptLen is the size of a ServerToClientAccept payload.
const DownloadAcceptLen = 12

// Decoder reads little-endian primitives from a payload.
type Decoder struct {
	b []byte
	o int
}

func NewDecoder(b []byte) *Decoder {
	return &Decoder{b: b}
}

func (d *Decoder) Remaining() int { return len(d.b) - d.o }

func (d *Decoder) ReadU16() (uint16, error) {
	if d.Remaining() < 2 {
		return 0, fmt.Errorf("%w: need 2 bytes", ncerr.ErrShortPayload)
	}
	v := binary.LittleEndian.Uint16(d.b[d.o : d.o+2])
	d.o += 2
	return v, nil
}

func (d *Decoder) ReadI32() (int32, error) {
	if d.Remaining() < 4 {
		return 0, fmt.Errorf("%w: need 4 bytes", ncerr.ErrShortPayload)
	}
	v := int32(binary.LittleEndian.Uint32(d.b[d.o : d.o+4]))
	d.o += 4
	return v, nil
}

func (d *Decoder) ReadI64() (int64, error) {
	if d.Remaining() < 8 {
		return 0, fmt.Errorf("%w: need 8 bytes", ncerr.ErrShortPayload)
	}
	v := int64(binary.LittleEndian.Uint64(d.b[d.o : d.o+8]))
	d.o += 8
	return v, nil
}

func (d *Decoder) ReadBytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("negative length")
	}
	if d.Remaining() < n {
		return nil, fmt.Errorf("%w: need %d bytes", ncerr.ErrShortPayload, n)
	}
	v := d.b[d.o : d.o+n]
	d.o += n
	return v, nil
}

// Rest returns every byte not yet consumed.
func (d *Decoder) Rest() []byte {
	v := d.b[d.o:]
	d.o = len(d.b)
	return v
}

// Encoder builds little-endian payloads.
type Encoder struct {
	b []byte
}

func NewEncoder(capacity int) *Encoder {
	if capacity < 0 {
		capacity = 0
	}
	return &Encoder{b: make([]byte, 0, capacity)}
}

func (e *Encoder) Bytes() []byte { return e.b }

func (e *Encoder) WriteU16(v uint16) {
	e.b = binary.LittleEndian.AppendUint16(e.b, v)
}

func (e *Encoder) WriteI32(v int32) {
	e.b = binary.LittleEndian.AppendUint32(e.b, uint32(v))
}

func (e *Encoder) WriteI64(v int64) {
	e.b = binary.LittleEndian.AppendUint64(e.b, uint64(v))
}

func (e *Encoder) WriteBytes(b []byte) {
	e.b = append(e.b, b...)
}

// ── DirectoryContents ────────────────────────────────────────────────

// EncodeDirectory builds a DirectoryContents payload: int32 count, then
// per entry a uint16 byte length and the UTF-8 name.
func EncodeDirectory(entries []string) ([]byte, error) {
	size := 4
	for _, name := range entries {
		size += 2 + len(name)
	}
	e := NewEncoder(size)
	e.WriteI32(int32(len(entries)))
	for _, name := range entries {
		if len(name) > 0xFFFF {
			return nil, fmt.Errorf("entry name too long: %d bytes", len(name))
		}
		e.WriteU16(uint16(len(name)))
		e.WriteBytes([]byte(name))
	}
	return e.Bytes(), nil
}

// DecodeDirectory parses a DirectoryContents payload.
func DecodeDirectory(payload []byte) ([]string, error) {
	d := NewDecoder(payload)
	count, err := d.ReadI32()
	if err != nil {
		return nil, fmt.Errorf("directory count: %w", err)
	}
	if count < 0 {
		return nil, fmt.Errorf("negative directory count %d", count)
	}
	// Each entry takes at least its 2-byte length prefix.
	if int(count) > d.Remaining()/2 {
		return nil, fmt.Errorf("%w: %d entries declared, %d bytes left",
			ncerr.ErrShortPayload, count, d.Remaining())
	}
	out := make([]string, 0, count)
	for i := int32(0); i < count; i++ {
		n, err := d.ReadU16()
		if err != nil {
			return nil, fmt.Errorf("entry %d length: %w", i, err)
		}
		b, err := d.ReadBytes(int(n))
		if err != nil {
			return nil, fmt.Errorf("entry %d name: %w", i, err)
		}
		if !utf8.Valid(b) {
			return nil, fmt.Errorf("entry %d is not valid UTF-8", i)
		}
		out = append(out, string(b))
	}
	return out, nil
}

// ── Transfer control payloads ────────────────────────────────────────

// EncodeDownloadAccept builds a ServerToClientAccept payload.
func EncodeDownloadAccept(fileLength int64, id int32) []byte {
	e := NewEncoder(DownloadAcceptLen)
	e.WriteI64(fileLength)
	e.WriteI32(id)
	return e.Bytes()
}

// DecodeDownloadAccept parses a ServerToClientAccept payload.
func DecodeDownloadAccept(payload []byte) (fileLength int64, id int32, err error) {
	d := NewDecoder(payload)
	if fileLength, err = d.ReadI64(); err != nil {
		return 0, 0, err
	}
	if id, err = d.ReadI32(); err != nil {
		return 0, 0, err
	}
	return fileLength, id, nil
}

// EncodeTransmissionID builds a ClientToServerAccept or client Eof
// payload.
func EncodeTransmissionID(id int32) []byte {
	e := NewEncoder(TransmissionIDLen)
	e.WriteI32(id)
	return e.Bytes()
}

// DecodeTransmissionID reads the leading transmission id of a payload.
func DecodeTransmissionID(payload []byte) (int32, error) {
	return NewDecoder(payload).ReadI32()
}

// EncodeFilePart builds a FilePart payload: id followed by the chunk.
func EncodeFilePart(id int32, chunk []byte) []byte {
	e := NewEncoder(TransmissionIDLen + len(chunk))
	e.WriteI32(id)
	e.WriteBytes(chunk)
	return e.Bytes()
}

// PutTransmissionID writes id into the first TransmissionIDLen bytes of
// dst, letting a sender fill a FilePart payload in place.
func PutTransmissionID(dst []byte, id int32) {
	binary.LittleEndian.PutUint32(dst[:TransmissionIDLen], uint32(id))
}

// SplitFilePart separates a FilePart payload into id and chunk.  The
// chunk aliases payload.
func SplitFilePart(payload []byte) (int32, []byte, error) {
	d := NewDecoder(payload)
	id, err := d.ReadI32()
	if err != nil {
		return 0, nil, err
	}
	return id, d.Rest(), nil
}
