// Package format names the wire formats odoc codecs implement.
package format

import (
	"errors"
	"fmt"
)

type Format int

const (
	BinaryFormat Format = iota
	BSONFormat
	MsgPackFormat
	JSONFormat
	XMLFormat
)

// Kind tells binary formats from text formats.
type Kind int

const (
	Binary Kind = iota
	Text
)

func (k Kind) String() string {
	if k == Text {
		return "text"
	}
	return "binary"
}

var ErrBadFormat = errors.New("bad format")

func ParseFormat(v string) (Format, error) {
	f, ok := map[string]Format{
		"o":       BinaryFormat,
		"obin":    BinaryFormat,
		"b":       BSONFormat,
		"bson":    BSONFormat,
		"m":       MsgPackFormat,
		"msgpack": MsgPackFormat,
		"j":       JSONFormat,
		"json":    JSONFormat,
		"x":       XMLFormat,
		"xml":     XMLFormat,
	}[v]
	if ok {
		return f, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrBadFormat, v)
}

func (f Format) String() string {
	d, err := f.MarshalText()
	if err != nil {
		return err.Error()
	}
	return string(d)
}

func (f Format) MarshalText() ([]byte, error) {
	switch f {
	case BinaryFormat:
		return []byte("obin"), nil
	case BSONFormat:
		return []byte("bson"), nil
	case MsgPackFormat:
		return []byte("msgpack"), nil
	case JSONFormat:
		return []byte("json"), nil
	case XMLFormat:
		return []byte("xml"), nil
	default:
		return nil, fmt.Errorf("<err: %d is not a format>", f)
	}
}

func (f *Format) UnmarshalText(d []byte) error {
	pf, err := ParseFormat(string(d))
	if err != nil {
		return err
	}
	*f = pf
	return nil
}

// Kind returns whether f is a binary or a text format.
func (f Format) Kind() Kind {
	switch f {
	case JSONFormat, XMLFormat:
		return Text
	default:
		return Binary
	}
}

func (f Format) IsJSON() bool { return f == JSONFormat }
func (f Format) IsXML() bool  { return f == XMLFormat }

// Suffix returns the file extension for this format (including the dot).
func (f Format) Suffix() string {
	switch f {
	case BinaryFormat:
		return ".obin"
	case BSONFormat:
		return ".bson"
	case MsgPackFormat:
		return ".msgpack"
	case JSONFormat:
		return ".json"
	case XMLFormat:
		return ".xml"
	default:
		return ""
	}
}

// FromSuffix returns the format whose Suffix is ext.
func FromSuffix(ext string) (Format, bool) {
	for _, f := range AllFormats() {
		if f.Suffix() == ext {
			return f, true
		}
	}
	return 0, false
}

// AllFormats returns all supported formats.
func AllFormats() []Format {
	return []Format{BinaryFormat, BSONFormat, MsgPackFormat, JSONFormat, XMLFormat}
}
