package codec

import (
	"fmt"

	"github.com/signadot/odoc/format"
	"github.com/signadot/odoc/ir"
	"github.com/signadot/odoc/token"
)

// Option configures the text codecs.
type Option func(*opts)

type opts struct {
	indent   int
	rootName string
	itemName string
}

// Indent makes JSON and XML output pretty printed with n spaces per level.
// Zero, the default, writes compact output.
func Indent(n int) Option {
	return func(o *opts) { o.indent = max(n, 0) }
}

// RootName sets the XML root element name.
func RootName(s string) Option {
	return func(o *opts) { o.rootName = s }
}

// ItemName sets the XML element name used for array elements.
func ItemName(s string) Option {
	return func(o *opts) { o.itemName = s }
}

func makeOpts(list []Option) opts {
	o := opts{rootName: "root", itemName: "item"}
	for _, opt := range list {
		opt(&o)
	}
	return o
}

// New returns a fresh codec for f.
func New(f format.Format, options ...Option) (ir.Codec, error) {
	switch f {
	case format.BinaryFormat:
		return NewBinary(), nil
	case format.BSONFormat:
		return NewBSON(), nil
	case format.MsgPackFormat:
		return NewMsgPack(), nil
	case format.JSONFormat:
		return NewJSON(options...), nil
	case format.XMLFormat:
		return NewXML(options...), nil
	}
	return nil, fmt.Errorf("%w: no codec for %d", format.ErrBadFormat, int(f))
}

func errAt(src *token.Source, msg string, args ...any) error {
	return fmt.Errorf("%w: %s at offset %d", ir.ErrParse, fmt.Sprintf(msg, args...), src.Offset())
}

// eofAt reports truncated input as a parse error.
func eofAt(src *token.Source) token.OnBounds {
	return func(want int) error {
		return fmt.Errorf("%w: %w at offset %d (need %d more bytes)", ir.ErrParse, token.ErrUnexpectedEOF, src.Offset(), want)
	}
}

// input is the read side state common to all codecs: the source of the
// current Read and its bounds callback, allocated once per codec.
type input struct {
	src *token.Source
	eof token.OnBounds
}

func (in *input) init() {
	in.eof = func(want int) error {
		return fmt.Errorf("%w: %w at offset %d (need %d more bytes)", ir.ErrParse, token.ErrUnexpectedEOF, in.src.Offset(), want)
	}
}

func (in *input) errf(msg string, args ...any) error {
	return errAt(in.src, msg, args...)
}

func typeErr(f format.Format, v ir.Value, msg string) error {
	return fmt.Errorf("%w: %s cannot encode %s %s: %s", ir.ErrType, f, v.Type(), v, msg)
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func allSpace(b []byte) bool {
	for _, c := range b {
		if !isSpace(c) {
			return false
		}
	}
	return true
}
