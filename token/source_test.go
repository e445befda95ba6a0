package token

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"testing"
	"testing/iotest"
	"unicode/utf8"
)

func slowSource(s string) *Source {
	return NewSource(iotest.OneByteReader(strings.NewReader(s)), BufferSize(1), Margin(0))
}

func TestSourceBytes(t *testing.T) {
	src := NewSourceBytes([]byte("hello world"))
	b, err := src.Peek(5, nil)
	if err != nil || string(b) != "hello" {
		t.Fatalf("Peek: %q %v", b, err)
	}
	if err := src.Move(6, nil); err != nil {
		t.Fatal(err)
	}
	b, err = src.ReadBlock(5, nil)
	if err != nil || string(b) != "world" {
		t.Fatalf("ReadBlock: %q %v", b, err)
	}
	if !src.AtEOF() {
		t.Errorf("expected EOF at offset %d", src.Offset())
	}
	if _, err := src.Next(nil); !errors.Is(err, ErrUnexpectedEOF) {
		t.Errorf("Next past end: %v", err)
	}
	custom := errors.New("custom")
	if _, err := src.Peek(1, func(want int) error { return custom }); !errors.Is(err, custom) {
		t.Errorf("callback error not returned: %v", err)
	}
	// a nil result from the callback does not turn a fixed read into success
	if err := src.Move(1, func(int) error { return nil }); !errors.Is(err, ErrUnexpectedEOF) {
		t.Errorf("Move past end: %v", err)
	}
}

func TestSourceReaderRefill(t *testing.T) {
	src := slowSource("abcdefghij")
	var got []byte
	for range 3 {
		b, err := src.ReadBlock(3, nil)
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, b...)
	}
	if string(got) != "abcdefghi" {
		t.Errorf("got %q", got)
	}
	if src.Offset() != 9 {
		t.Errorf("offset %d", src.Offset())
	}
	if c, err := src.Next(nil); err != nil || c != 'j' {
		t.Errorf("Next: %q %v", c, err)
	}
}

func TestSourceAnchorKeepsSlices(t *testing.T) {
	src := slowSource("0123456789")
	prev := src.SetAnchor()
	head, err := src.ReadBlock(3, nil)
	if err != nil {
		t.Fatal(err)
	}
	tail, err := src.ReadBlock(7, nil)
	if err != nil {
		t.Fatal(err)
	}
	src.RestoreAnchor(prev)
	if string(head) != "012" || string(tail) != "3456789" {
		t.Errorf("slices changed: %q %q", head, tail)
	}
}

func TestSourceScans(t *testing.T) {
	for _, mk := range []func(string) *Source{
		func(s string) *Source { return NewSourceBytes([]byte(s)) },
		slowSource,
	} {
		src := mk("12.5e3,rest")
		notify := &Notify{Bytes: ".eE"}
		n, err := src.MoveUntil(nil, notify, []byte(","))
		if err != nil || n != 6 || !notify.Seen {
			t.Errorf("MoveUntil: %d %v %v", n, notify.Seen, err)
		}
		if src.IsAtToken([]byte("x"), []byte(",r")) != 1 {
			t.Errorf("IsAtToken")
		}

		src = mk("   \t x")
		n, err = src.MoveWhile(nil, []byte(" "), []byte("\t"))
		if err != nil || n != 5 {
			t.Errorf("MoveWhile: %d %v", n, err)
		}

		src = mk("key=value")
		b, err := src.ReadBlockUntil(nil, []byte("="))
		if err != nil || string(b) != "key" {
			t.Errorf("ReadBlockUntil: %q %v", b, err)
		}

		src = mk("-12e3]")
		notify = &Notify{Bytes: ".eE"}
		b, err = src.ReadBlockNotify(nil, notify, []byte("]"))
		if err != nil || string(b) != "-12e3" || !notify.Seen {
			t.Errorf("ReadBlockNotify: %q %v %v", b, notify.Seen, err)
		}
		src = mk("-123]")
		notify = &Notify{Bytes: ".eE"}
		b, err = src.ReadBlockNotify(nil, notify, []byte("]"))
		if err != nil || string(b) != "-123" || notify.Seen {
			t.Errorf("ReadBlockNotify: %q %v %v", b, notify.Seen, err)
		}

		src = mk("abc")
		if _, err := src.MoveUntil(nil, nil, []byte(",")); !errors.Is(err, ErrUnexpectedEOF) {
			t.Errorf("scan to end without callback: %v", err)
		}
		src = mk("abc")
		n, err = src.MoveUntil(func(int) error { return nil }, nil, []byte(","))
		if err != nil || n != 3 {
			t.Errorf("scan to end with accepting callback: %d %v", n, err)
		}
	}
}

func jsonSubs() *Substitutions {
	return NewSubstitutions([][]byte{[]byte(`"`)},
		Substitution{Token: []byte(`\"`), Replace: []byte(`"`)},
		Substitution{Token: []byte(`\n`), Replace: []byte("\n")},
		Substitution{Token: []byte(`\u`), Func: func(src *Source, dst []byte) ([]byte, error) {
			h, err := src.ReadBlock(4, nil)
			if err != nil {
				return dst, err
			}
			v, err := strconv.ParseUint(string(h), 16, 32)
			if err != nil {
				return dst, fmt.Errorf("bad escape %q", h)
			}
			return utf8.AppendRune(dst, rune(v)), nil
		}},
	)
}

func TestReadSubstitute(t *testing.T) {
	subs := jsonSubs()
	for _, mk := range []func(string) *Source{
		func(s string) *Source { return NewSourceBytes([]byte(s)) },
		slowSource,
	} {
		src := mk(`a\"b\u0041c\nd"rest`)
		got, err := src.ReadSubstitute(nil, subs, nil)
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != "a\"bAc\nd" {
			t.Errorf("got %q", got)
		}
		if c, _ := src.PeekByte(); c != '"' {
			t.Errorf("terminator consumed: next %q", c)
		}

		src = mk(`ab\u00zz"`)
		if _, err := src.ReadSubstitute(nil, subs, nil); err == nil {
			t.Errorf("expected error for bad escape")
		}
		src = mk(`unterminated`)
		if _, err := src.ReadSubstitute(nil, subs, nil); !errors.Is(err, ErrUnexpectedEOF) {
			t.Errorf("unterminated: %v", err)
		}
	}
}

func TestSkipSpaceAndReset(t *testing.T) {
	src := NewSource(strings.NewReader(" \n\t x"))
	src.SkipSpace()
	if c, ok := src.PeekByte(); !ok || c != 'x' {
		t.Fatalf("SkipSpace left %q", c)
	}
	src.Reset(strings.NewReader("y"))
	if src.Offset() != 0 {
		t.Errorf("offset after reset %d", src.Offset())
	}
	if c, err := src.Next(nil); err != nil || c != 'y' {
		t.Errorf("after reset: %q %v", c, err)
	}
}
