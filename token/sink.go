package token

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"slices"
)

// SinkOption configures a Sink.
type SinkOption func(*Sink)

// FlushSize sets the buffered byte count at which a stream Sink flushes.
func FlushSize(n int) SinkOption {
	return func(s *Sink) {
		if n > 0 {
			s.size = n
		}
	}
}

// Ticket names a reserved byte range of a Sink.
type Ticket struct {
	off int64
	n   int
}

// Offset returns the absolute output offset of the reserved range.
func (t Ticket) Offset() int64 { return t.off }

// Len returns the size of the reserved range.
func (t Ticket) Len() int { return t.n }

// Sink is a buffered output writer with deferred patching.
//
// A memory Sink accumulates everything; Bytes returns the result. A stream
// Sink flushes to its writer once FlushSize bytes are buffered. Reserved
// ranges that were already flushed are patched by seeking when the writer
// is seekable; otherwise the Sink keeps every byte from the earliest
// unpatched ticket onward in memory.
type Sink struct {
	w      io.Writer
	seeker io.WriteSeeker
	start  int64 // writer position when the sink was created

	buf     []byte
	flushed int64 // absolute offset of buf[0]
	size    int
	open    []Ticket // unpatched, ordered by offset
	err     error
}

// NewSink creates a Sink writing to w.
func NewSink(w io.Writer, opts ...SinkOption) *Sink {
	s := &Sink{w: w, size: defaultBufferSize}
	for _, o := range opts {
		o(s)
	}
	if ws, ok := w.(io.WriteSeeker); ok {
		if pos, err := ws.Seek(0, io.SeekCurrent); err == nil {
			s.seeker = ws
			s.start = pos
		}
	}
	s.buf = make([]byte, 0, s.size)
	return s
}

// NewBufferSink creates a memory Sink.
func NewBufferSink() *Sink {
	return &Sink{}
}

// Reset discards buffered output and tickets. A stream Sink continues
// writing at the current writer position.
func (s *Sink) Reset() {
	s.buf = s.buf[:0]
	s.flushed = 0
	s.open = s.open[:0]
	s.err = nil
	if s.seeker != nil {
		if pos, err := s.seeker.Seek(0, io.SeekCurrent); err == nil {
			s.start = pos
		}
	}
}

// Err returns the first write error.
func (s *Sink) Err() error {
	return s.err
}

// Offset returns the number of bytes written so far.
func (s *Sink) Offset() int64 {
	return s.flushed + int64(len(s.buf))
}

// Bytes returns the buffered output. For a memory Sink this is the whole
// output.
func (s *Sink) Bytes() []byte {
	return s.buf
}

func (s *Sink) grown() {
	if s.w == nil || len(s.buf) < s.size || s.err != nil {
		return
	}
	limit := len(s.buf)
	if s.seeker == nil && len(s.open) > 0 {
		limit = int(s.open[0].off - s.flushed)
	}
	if limit > 0 {
		s.flush(limit)
	}
}

func (s *Sink) flush(n int) {
	if _, err := s.w.Write(s.buf[:n]); err != nil {
		s.err = err
		return
	}
	rest := copy(s.buf, s.buf[n:])
	s.buf = s.buf[:rest]
	s.flushed += int64(n)
}

// Flush writes buffered output to the writer. It fails when the writer is
// not seekable and a ticket is still unpatched.
func (s *Sink) Flush() error {
	if s.err != nil {
		return s.err
	}
	if s.w == nil {
		return nil
	}
	if s.seeker == nil && len(s.open) > 0 {
		return fmt.Errorf("%w: %d unpatched at offset %d", ErrTicket, len(s.open), s.open[0].off)
	}
	s.flush(len(s.buf))
	return s.err
}

// Write appends b. It implements io.Writer.
func (s *Sink) Write(b []byte) (int, error) {
	s.buf = append(s.buf, b...)
	s.grown()
	return len(b), s.err
}

// WriteByte appends c.
func (s *Sink) WriteByte(c byte) error {
	s.buf = append(s.buf, c)
	s.grown()
	return s.err
}

// WriteString appends str.
func (s *Sink) WriteString(str string) (int, error) {
	s.buf = append(s.buf, str...)
	s.grown()
	return len(str), s.err
}

// WriteTimes appends n copies of c.
func (s *Sink) WriteTimes(n int, c byte) {
	for range n {
		s.buf = append(s.buf, c)
	}
	s.grown()
}

// WriteSubstitute appends b with esc applied.
func (s *Sink) WriteSubstitute(b []byte, esc *Escaper) {
	s.buf = esc.Append(s.buf, b)
	s.grown()
}

// Append calls f with the internal buffer and keeps its result. It lets
// strconv style appenders write without an intermediate slice.
func (s *Sink) Append(f func(dst []byte) []byte) {
	s.buf = f(s.buf)
	s.grown()
}

func (s *Sink) WriteUint16LE(v uint16) { s.Append(func(b []byte) []byte { return binary.LittleEndian.AppendUint16(b, v) }) }
func (s *Sink) WriteUint32LE(v uint32) { s.Append(func(b []byte) []byte { return binary.LittleEndian.AppendUint32(b, v) }) }
func (s *Sink) WriteUint64LE(v uint64) { s.Append(func(b []byte) []byte { return binary.LittleEndian.AppendUint64(b, v) }) }
func (s *Sink) WriteUint16BE(v uint16) { s.Append(func(b []byte) []byte { return binary.BigEndian.AppendUint16(b, v) }) }
func (s *Sink) WriteUint32BE(v uint32) { s.Append(func(b []byte) []byte { return binary.BigEndian.AppendUint32(b, v) }) }
func (s *Sink) WriteUint64BE(v uint64) { s.Append(func(b []byte) []byte { return binary.BigEndian.AppendUint64(b, v) }) }

func (s *Sink) WriteFloat32LE(f float32) { s.WriteUint32LE(math.Float32bits(f)) }
func (s *Sink) WriteFloat64LE(f float64) { s.WriteUint64LE(math.Float64bits(f)) }
func (s *Sink) WriteFloat32BE(f float32) { s.WriteUint32BE(math.Float32bits(f)) }
func (s *Sink) WriteFloat64BE(f float64) { s.WriteUint64BE(math.Float64bits(f)) }

// Reserve appends n zero bytes to be patched later.
func (s *Sink) Reserve(n int) Ticket {
	t := Ticket{off: s.Offset(), n: n}
	s.open = append(s.open, t)
	s.WriteTimes(n, 0)
	return t
}

// Patch writes b at offset off within the range of t and resolves t.
func (s *Sink) Patch(t Ticket, b []byte, off int) error {
	if s.err != nil {
		return s.err
	}
	if off < 0 || off+len(b) > t.n || t.off < 0 || t.off+int64(t.n) > s.Offset() {
		return fmt.Errorf("%w: patch [%d,%d) outside reserved %d bytes at %d", ErrTicket, off, off+len(b), t.n, t.off)
	}
	if i := slices.Index(s.open, t); i >= 0 {
		s.open = slices.Delete(s.open, i, i+1)
	}
	at := t.off + int64(off)
	if at < s.flushed {
		n := min(len(b), int(s.flushed-at))
		if err := s.patchFlushed(at, b[:n]); err != nil {
			s.err = err
			return err
		}
		b = b[n:]
		at += int64(n)
	}
	if len(b) > 0 {
		copy(s.buf[at-s.flushed:], b)
	}
	if len(s.open) == 0 || s.seeker != nil {
		s.grown()
	}
	return s.err
}

func (s *Sink) patchFlushed(at int64, b []byte) error {
	if s.seeker == nil {
		return fmt.Errorf("%w: range at %d already flushed to a non-seekable writer", ErrTicket, at)
	}
	cur, err := s.seeker.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	if _, err := s.seeker.Seek(s.start+at, io.SeekStart); err != nil {
		return err
	}
	if _, err := s.seeker.Write(b); err != nil {
		return err
	}
	_, err = s.seeker.Seek(cur, io.SeekStart)
	return err
}

// PatchUint32LE patches t with v.
func (s *Sink) PatchUint32LE(t Ticket, v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return s.Patch(t, b[:], 0)
}

// PatchUint32BE patches t with v.
func (s *Sink) PatchUint32BE(t Ticket, v uint32) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return s.Patch(t, b[:], 0)
}
