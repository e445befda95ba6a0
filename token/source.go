package token

import (
	"bytes"
	"errors"
	"io"
	"strings"
)

const (
	defaultBufferSize = 4096
	defaultMargin     = 16
)

// OnBounds is called when an operation runs past the end of input. want
// is the number of missing bytes (1 for scans).
//
// Fixed size operations (Peek, Move, ReadBlock, Next) always fail; the
// callback only chooses the error. Scanning operations (MoveUntil,
// MoveWhile, ReadBlockUntil, ReadSubstitute) treat a nil result as
// "end of input terminates the scan" and return successfully.
type OnBounds func(want int) error

// Notify records whether one of Bytes was passed over by a scan.
type Notify struct {
	Bytes string
	Seen  bool
}

// SourceOption configures a Source.
type SourceOption func(*Source)

// BufferSize sets the minimum number of bytes requested from the reader
// per refill.
func BufferSize(n int) SourceOption {
	return func(s *Source) {
		if n > 0 {
			s.size = n
		}
	}
}

// Margin sets how many already consumed bytes are kept in front of the
// cursor across a refill.
func Margin(n int) SourceOption {
	return func(s *Source) {
		if n >= 0 {
			s.margin = n
		}
	}
}

// Source is a buffered input cursor.
//
// Slices returned by Peek, ReadBlock and ReadBlockUntil point into the
// internal buffer. They stay valid until the next operation that refills
// the buffer, except that bytes at or after the anchor (see SetAnchor) are
// never overwritten by a refill.
type Source struct {
	r      io.Reader
	buf    []byte
	pos    int
	base   int64 // absolute offset of buf[0]
	anchor int64 // absolute; -1 when unset
	eof    bool
	err    error

	size, margin int
}

// NewSource creates a Source reading from r.
func NewSource(r io.Reader, opts ...SourceOption) *Source {
	s := &Source{r: r, anchor: -1, size: defaultBufferSize, margin: defaultMargin}
	for _, o := range opts {
		o(s)
	}
	return s
}

// NewSourceBytes creates a Source over the memory block b, which is not
// copied.
func NewSourceBytes(b []byte) *Source {
	return &Source{buf: b, eof: true, anchor: -1, size: defaultBufferSize, margin: defaultMargin}
}

// Reset makes s read from r from the beginning, keeping its buffer.
func (s *Source) Reset(r io.Reader) {
	s.r = r
	s.buf = s.buf[:0]
	s.pos = 0
	s.base = 0
	s.anchor = -1
	s.eof = false
	s.err = nil
}

// Offset returns the absolute input offset of the cursor.
func (s *Source) Offset() int64 {
	return s.base + int64(s.pos)
}

// Buffered returns the number of bytes available without reading.
func (s *Source) Buffered() int {
	return len(s.buf) - s.pos
}

// Err returns the first read error other than end of input.
func (s *Source) Err() error {
	return s.err
}

// SetAnchor marks the cursor position as the earliest byte that must be
// preserved across refills and returns the previous anchor, which callers
// restore with RestoreAnchor.
func (s *Source) SetAnchor() int64 {
	prev := s.anchor
	if prev < 0 || prev > s.Offset() {
		s.anchor = s.Offset()
	}
	return prev
}

// RestoreAnchor reinstates an anchor returned by SetAnchor; -1 clears it.
func (s *Source) RestoreAnchor(a int64) {
	s.anchor = a
}

// ClearAnchor removes the anchor.
func (s *Source) ClearAnchor() {
	s.anchor = -1
}

func (s *Source) ensure(n int) bool {
	for len(s.buf)-s.pos < n {
		if s.eof || s.r == nil {
			return false
		}
		s.fill(n - (len(s.buf) - s.pos))
	}
	return true
}

// fill shifts the preserved region to the front and reads more input.
// One call grows the buffer by at most twice the retained bytes.
func (s *Source) fill(short int) {
	keep := s.pos - s.margin
	if s.anchor >= 0 {
		if a := int(s.anchor - s.base); a < keep {
			keep = a
		}
	}
	if keep < 0 {
		keep = 0
	}
	rest := len(s.buf) - keep
	short = min(short, max(s.size, 2*rest))
	want := max(short, s.size)
	if s.anchor >= 0 || cap(s.buf)-rest < want {
		// anchored bytes may be referenced by callers: move them to a
		// fresh array instead of shifting in place
		nb := make([]byte, rest, rest+want)
		copy(nb, s.buf[keep:])
		s.buf = nb
	} else if keep > 0 {
		n := copy(s.buf, s.buf[keep:])
		s.buf = s.buf[:n]
	}
	s.pos -= keep
	s.base += int64(keep)

	dst := s.buf[len(s.buf):cap(s.buf)]
	n, err := io.ReadAtLeast(s.r, dst, short)
	s.buf = s.buf[:len(s.buf)+n]
	if err != nil {
		s.eof = true
		if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
			s.err = err
		}
	}
}

// bounds produces the error for a fixed size operation.
func (s *Source) bounds(fail OnBounds, want int) error {
	if s.err != nil {
		return s.err
	}
	if fail != nil {
		if err := fail(want); err != nil {
			return err
		}
	}
	return eofErr(s.Offset(), want)
}

// scanEnd produces the result of a scan hitting end of input.
func (s *Source) scanEnd(fail OnBounds) error {
	if s.err != nil {
		return s.err
	}
	if fail == nil {
		return eofErr(s.Offset(), 1)
	}
	return fail(1)
}

// AtEOF reports whether no input is left.
func (s *Source) AtEOF() bool {
	return !s.ensure(1)
}

// Peek returns the next n bytes without consuming them.
func (s *Source) Peek(n int, fail OnBounds) ([]byte, error) {
	if !s.ensure(n) {
		return nil, s.bounds(fail, n-s.Buffered())
	}
	return s.buf[s.pos : s.pos+n], nil
}

// TryPeek is Peek without failure reporting.
func (s *Source) TryPeek(n int) ([]byte, bool) {
	if !s.ensure(n) {
		return nil, false
	}
	return s.buf[s.pos : s.pos+n], true
}

// PeekByte returns the next byte without consuming it.
func (s *Source) PeekByte() (byte, bool) {
	if !s.ensure(1) {
		return 0, false
	}
	return s.buf[s.pos], true
}

// Move consumes n bytes.
func (s *Source) Move(n int, fail OnBounds) error {
	if !s.ensure(n) {
		return s.bounds(fail, n-s.Buffered())
	}
	s.pos += n
	return nil
}

// Next consumes and returns one byte.
func (s *Source) Next(fail OnBounds) (byte, error) {
	if !s.ensure(1) {
		return 0, s.bounds(fail, 1)
	}
	c := s.buf[s.pos]
	s.pos++
	return c, nil
}

// ReadBlock consumes n bytes and returns them.
func (s *Source) ReadBlock(n int, fail OnBounds) ([]byte, error) {
	if !s.ensure(n) {
		return nil, s.bounds(fail, n-s.Buffered())
	}
	b := s.buf[s.pos : s.pos+n]
	s.pos += n
	return b, nil
}

// IsAtToken returns the index of the first token the input continues
// with, or -1.
func (s *Source) IsAtToken(tokens ...[]byte) int {
	for i, tok := range tokens {
		if s.ensure(len(tok)) && bytes.HasPrefix(s.buf[s.pos:], tok) {
			return i
		}
	}
	return -1
}

// MoveUntil consumes bytes until the input continues with one of tokens,
// which is not consumed. It returns the number of bytes consumed. When
// notify is not nil, notify.Seen is set if any consumed byte is in
// notify.Bytes.
func (s *Source) MoveUntil(fail OnBounds, notify *Notify, tokens ...[]byte) (int, error) {
	moved := 0
	for {
		if !s.ensure(1) {
			return moved, s.scanEnd(fail)
		}
		c := s.buf[s.pos]
		if s.startsToken(c, tokens) && s.IsAtToken(tokens...) >= 0 {
			return moved, nil
		}
		if notify != nil && !notify.Seen && strings.IndexByte(notify.Bytes, c) >= 0 {
			notify.Seen = true
		}
		s.pos++
		moved++
	}
}

func (s *Source) startsToken(c byte, tokens [][]byte) bool {
	for _, tok := range tokens {
		if len(tok) > 0 && tok[0] == c {
			return true
		}
	}
	return false
}

// MoveWhile consumes consecutive occurrences of any of tokens and returns
// the number of bytes consumed.
func (s *Source) MoveWhile(fail OnBounds, tokens ...[]byte) (int, error) {
	moved := 0
	for {
		if !s.ensure(1) {
			return moved, s.scanEnd(fail)
		}
		i := s.IsAtToken(tokens...)
		if i < 0 || len(tokens[i]) == 0 {
			return moved, nil
		}
		s.pos += len(tokens[i])
		moved += len(tokens[i])
	}
}

// ReadBlockUntil is MoveUntil returning the consumed bytes.
func (s *Source) ReadBlockUntil(fail OnBounds, tokens ...[]byte) ([]byte, error) {
	return s.ReadBlockNotify(fail, nil, tokens...)
}

// ReadBlockNotify is ReadBlockUntil recording in notify the bytes it
// passed over.
func (s *Source) ReadBlockNotify(fail OnBounds, notify *Notify, tokens ...[]byte) ([]byte, error) {
	prev := s.SetAnchor()
	defer s.RestoreAnchor(prev)
	start := s.Offset()
	_, err := s.MoveUntil(fail, notify, tokens...)
	if err != nil {
		return nil, err
	}
	lo := int(start - s.base)
	return s.buf[lo:s.pos], nil
}

// SkipSpace consumes ASCII white space.
func (s *Source) SkipSpace() {
	for s.ensure(1) {
		switch s.buf[s.pos] {
		case ' ', '\t', '\n', '\r':
			s.pos++
		default:
			return
		}
	}
}

// ReadSubstitute appends input to dst until the input continues with one
// of the terminators of sub, replacing each substitution token on the way.
// The terminator is not consumed.
func (s *Source) ReadSubstitute(dst []byte, sub *Substitutions, fail OnBounds) ([]byte, error) {
	for {
		if !s.ensure(1) {
			return dst, s.scanEnd(fail)
		}
		// copy the run of bytes that cannot start anything interesting
		run := s.buf[s.pos:]
		i := 0
		for i < len(run) && !sub.first[run[i]] {
			i++
		}
		dst = append(dst, run[:i]...)
		s.pos += i
		if i == len(run) {
			continue
		}
		if s.IsAtToken(sub.until...) >= 0 {
			return dst, nil
		}
		j := s.IsAtToken(sub.tokens...)
		if j < 0 {
			dst = append(dst, s.buf[s.pos])
			s.pos++
			continue
		}
		rep := &sub.subs[j]
		s.pos += len(rep.Token)
		if rep.Func != nil {
			var err error
			if dst, err = rep.Func(s, dst); err != nil {
				return dst, err
			}
			continue
		}
		dst = append(dst, rep.Replace...)
	}
}
