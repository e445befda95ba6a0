package codec

import (
	"bytes"
	"errors"
	"math"
	"strconv"
	"unicode/utf16"
	"unicode/utf8"
	"unsafe"

	"github.com/signadot/odoc/debug"
	"github.com/signadot/odoc/format"
	"github.com/signadot/odoc/ir"
	"github.com/signadot/odoc/token"
)

// byte classes of the JSON reader
const (
	jsBad uint8 = iota
	jsSpace
	jsQuote
	jsNumber
	jsLiteral
	jsOpenObject
	jsOpenArray
	jsCloseObject
	jsCloseArray
	jsComma
	jsColon
)

var jsClass = func() (t [256]uint8) {
	for _, c := range " \t\n\r" {
		t[c] = jsSpace
	}
	for _, c := range "-0123456789" {
		t[c] = jsNumber
	}
	for _, c := range "tfn" {
		t[c] = jsLiteral
	}
	t['"'] = jsQuote
	t['{'] = jsOpenObject
	t['['] = jsOpenArray
	t['}'] = jsCloseObject
	t[']'] = jsCloseArray
	t[','] = jsComma
	t[':'] = jsColon
	return
}()

var (
	jsTrue  = []byte("true")
	jsFalse = []byte("false")
	jsNull  = []byte("null")

	jsNumberEnd = [][]byte{{' '}, {'\t'}, {'\n'}, {'\r'}, {','}, {'}'}, {']'}}
	jsQuoteTok  = [][]byte{{'"'}}
)

var jsonEscaper = token.NewEscaper(
	`"`, `\"`,
	`\`, `\\`,
	"\b", `\b`,
	"\f", `\f`,
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
).WithFunc(func(c byte) []byte {
	if c >= 0x20 {
		return nil
	}
	return []byte{'\\', 'u', '0', '0', "0123456789abcdef"[c>>4], "0123456789abcdef"[c&0xf]}
})

var jsonUnescape = token.NewSubstitutions(jsQuoteTok,
	token.Substitution{Token: []byte(`\"`), Replace: []byte(`"`)},
	token.Substitution{Token: []byte(`\\`), Replace: []byte(`\`)},
	token.Substitution{Token: []byte(`\/`), Replace: []byte(`/`)},
	token.Substitution{Token: []byte(`\b`), Replace: []byte("\b")},
	token.Substitution{Token: []byte(`\f`), Replace: []byte("\f")},
	token.Substitution{Token: []byte(`\n`), Replace: []byte("\n")},
	token.Substitution{Token: []byte(`\r`), Replace: []byte("\r")},
	token.Substitution{Token: []byte(`\t`), Replace: []byte("\t")},
	token.Substitution{Token: []byte(`\u`), Func: unescapeUnicode},
	token.Substitution{Token: []byte(`\`), Func: func(src *token.Source, dst []byte) ([]byte, error) {
		return dst, errAt(src, "bad escape")
	}},
)

func readHex4(src *token.Source) (rune, error) {
	b, err := src.ReadBlock(4, eofAt(src))
	if err != nil {
		return 0, err
	}
	x, err := strconv.ParseUint(unsafe.String(unsafe.SliceData(b), 4), 16, 16)
	if err != nil {
		return 0, errAt(src, "bad \\u escape %q", b)
	}
	return rune(x), nil
}

// unescapeUnicode decodes the digits of a \u escape, joining surrogate
// pairs.
func unescapeUnicode(src *token.Source, dst []byte) ([]byte, error) {
	r, err := readHex4(src)
	if err != nil {
		return dst, err
	}
	switch {
	case utf16.IsSurrogate(r) && r < 0xdc00:
		if src.IsAtToken([]byte(`\u`)) < 0 {
			return dst, errAt(src, "unpaired surrogate %U", r)
		}
		if err := src.Move(2, nil); err != nil {
			return dst, err
		}
		lo, err := readHex4(src)
		if err != nil {
			return dst, err
		}
		if r = utf16.DecodeRune(r, lo); r == utf8.RuneError {
			return dst, errAt(src, "bad surrogate pair")
		}
	case utf16.IsSurrogate(r):
		return dst, errAt(src, "unpaired surrogate %U", r)
	}
	return utf8.AppendRune(dst, r), nil
}

type jsFrame struct {
	kind ir.Type
	n    int
}

// JSON is the codec for JSON text, compact by default or indented with
// the Indent option.
//
// Integers read as I64, or UI64 when they only fit unsigned; anything else
// numeric reads as FP64. Binary values are written as base64 strings and
// read back as strings.
type JSON struct {
	input
	indent int
	frames []jsFrame
	began  bool
	done   bool

	name []byte
	str  []byte
}

func NewJSON(options ...Option) *JSON {
	o := makeOpts(options)
	c := &JSON{indent: o.indent}
	c.init()
	return c
}

func (c *JSON) Format() format.Format { return format.JSONFormat }
func (c *JSON) Kind() format.Kind     { return format.Text }

func (c *JSON) Reset() {
	c.frames = c.frames[:0]
	c.began, c.done = false, false
}

func (c *JSON) newline(s *token.Sink, depth int) {
	if c.indent == 0 {
		return
	}
	s.WriteByte('\n')
	s.WriteTimes(depth*c.indent, ' ')
}

func (c *JSON) writeString(s *token.Sink, b []byte) {
	s.WriteByte('"')
	s.WriteSubstitute(b, jsonEscaper)
	s.WriteByte('"')
}

func (c *JSON) Write(name []byte, v ir.Value, s *token.Sink) error {
	t := v.Type()
	if t == ir.EndType {
		if len(c.frames) == 0 {
			return typeErr(format.JSONFormat, v, "no open scope")
		}
		f := c.frames[len(c.frames)-1]
		c.frames = c.frames[:len(c.frames)-1]
		if f.n > 0 {
			c.newline(s, len(c.frames))
		}
		if f.kind == ir.ObjectType {
			s.WriteByte('}')
		} else {
			s.WriteByte(']')
		}
		if len(c.frames) == 0 && c.indent > 0 {
			s.WriteByte('\n')
		}
		return s.Err()
	}
	if len(c.frames) == 0 {
		if !t.IsScope() {
			return typeErr(format.JSONFormat, v, "document root must be a scope")
		}
	} else {
		top := &c.frames[len(c.frames)-1]
		if top.n > 0 {
			s.WriteByte(',')
		}
		top.n++
		c.newline(s, len(c.frames))
		if top.kind == ir.ObjectType {
			c.writeString(s, name)
			s.WriteByte(':')
			if c.indent > 0 {
				s.WriteByte(' ')
			}
		}
	}
	switch t {
	case ir.NullType:
		s.Write(jsNull)
	case ir.BoolType:
		if v.Word() != 0 {
			s.Write(jsTrue)
		} else {
			s.Write(jsFalse)
		}
	case ir.I8Type, ir.I16Type, ir.I32Type, ir.I64Type:
		s.Append(func(b []byte) []byte { return strconv.AppendInt(b, int64(v.Word()), 10) })
	case ir.UI8Type, ir.UI16Type, ir.UI32Type, ir.UI64Type:
		s.Append(func(b []byte) []byte { return strconv.AppendUint(b, v.Word(), 10) })
	case ir.FP32Type, ir.FP64Type:
		f, _ := v.Float64()
		if math.IsInf(f, 0) || math.IsNaN(f) {
			return typeErr(format.JSONFormat, v, "not a finite number")
		}
		s.Append(func(b []byte) []byte { return appendJSONFloat(b, f) })
	case ir.StringType:
		c.writeString(s, v.Data())
	case ir.BinaryType:
		s.WriteByte('"')
		s.Append(func(b []byte) []byte { return AppendBase64(b, v.Data()) })
		s.WriteByte('"')
	case ir.ObjectType:
		s.WriteByte('{')
		c.frames = append(c.frames, jsFrame{kind: t})
	case ir.ArrayType:
		s.WriteByte('[')
		c.frames = append(c.frames, jsFrame{kind: t})
	default:
		return typeErr(format.JSONFormat, v, "unknown type")
	}
	if debug.Store() {
		debug.Logf("json write %q %s\n", name, v)
	}
	return s.Err()
}

// appendJSONFloat writes f so that it reads back as a float.
func appendJSONFloat(b []byte, f float64) []byte {
	n := len(b)
	b = strconv.AppendFloat(b, f, 'g', -1, 64)
	if bytes.IndexAny(b[n:], ".e") < 0 {
		b = append(b, '.', '0')
	}
	return b
}

func (c *JSON) expect(want byte) error {
	c.src.SkipSpace()
	got, err := c.src.Next(c.eof)
	if err != nil {
		return err
	}
	if got != want {
		return c.errf("found %q, want %q", got, want)
	}
	return nil
}

func (c *JSON) Read(src *token.Source) ([]byte, ir.Value, error) {
	c.src = src
	prev := src.SetAnchor()
	defer src.RestoreAnchor(prev)

	if c.done || c.began && len(c.frames) == 0 {
		return nil, ir.Value{}, c.errf("read past document end")
	}
	src.SkipSpace()
	var name []byte
	if !c.began {
		c.began = true
	} else {
		top := &c.frames[len(c.frames)-1]
		b, err := src.Peek(1, c.eof)
		if err != nil {
			return nil, ir.Value{}, err
		}
		if cl := jsClass[b[0]]; cl == jsCloseObject || cl == jsCloseArray {
			if (cl == jsCloseObject) != (top.kind == ir.ObjectType) {
				return nil, ir.Value{}, c.errf("%q closes %s", b[0], top.kind)
			}
			src.Move(1, nil)
			c.frames = c.frames[:len(c.frames)-1]
			if len(c.frames) == 0 {
				c.done = true
				src.SkipSpace()
				if !src.AtEOF() {
					return nil, ir.Value{}, c.errf("data after document end")
				}
			}
			return nil, ir.End(), nil
		}
		if top.n > 0 {
			if err := c.expect(','); err != nil {
				return nil, ir.Value{}, err
			}
			src.SkipSpace()
		}
		top.n++
		if top.kind == ir.ObjectType {
			if err := c.expect('"'); err != nil {
				return nil, ir.Value{}, err
			}
			if c.name, err = c.readString(c.name[:0]); err != nil {
				return nil, ir.Value{}, err
			}
			name = c.name
			if err := c.expect(':'); err != nil {
				return nil, ir.Value{}, err
			}
			src.SkipSpace()
		}
	}
	v, err := c.readValue()
	if err != nil {
		return nil, ir.Value{}, err
	}
	if debug.Parse() {
		debug.Logf("json read %q %s\n", name, v)
	}
	return name, v, nil
}

// readString reads the rest of a string whose opening quote was consumed.
func (c *JSON) readString(dst []byte) ([]byte, error) {
	dst, err := c.src.ReadSubstitute(dst, jsonUnescape, c.eof)
	if err != nil {
		return dst, err
	}
	c.src.Move(1, nil)
	return dst, nil
}

func (c *JSON) readValue() (ir.Value, error) {
	src := c.src
	b, err := src.Peek(1, c.eof)
	if err != nil {
		return ir.Value{}, err
	}
	cl := jsClass[b[0]]
	if len(c.frames) == 0 && cl != jsOpenObject && cl != jsOpenArray {
		return ir.Value{}, c.errf("document root is not an object or array")
	}
	switch cl {
	case jsOpenObject, jsOpenArray:
		src.Move(1, nil)
		kind := ir.ObjectType
		if cl == jsOpenArray {
			kind = ir.ArrayType
		}
		c.frames = append(c.frames, jsFrame{kind: kind})
		return ir.Scope(kind), nil
	case jsQuote:
		src.Move(1, nil)
		if c.str, err = c.readString(c.str[:0]); err != nil {
			return ir.Value{}, err
		}
		return ir.StringBytes(c.str), nil
	case jsLiteral:
		switch src.IsAtToken(jsTrue, jsFalse, jsNull) {
		case 0:
			src.Move(len(jsTrue), nil)
			return ir.Bool(true), nil
		case 1:
			src.Move(len(jsFalse), nil)
			return ir.Bool(false), nil
		case 2:
			src.Move(len(jsNull), nil)
			return ir.Null(), nil
		}
	case jsNumber:
		return c.readNumber()
	}
	return ir.Value{}, c.errf("unexpected %q", b[0])
}

func (c *JSON) readNumber() (ir.Value, error) {
	fraction := token.Notify{Bytes: ".eE"}
	b, err := c.src.ReadBlockNotify(c.eof, &fraction, jsNumberEnd...)
	if err != nil {
		return ir.Value{}, err
	}
	if !validNumber(b) {
		return ir.Value{}, c.errf("bad number %q", b)
	}
	float := fraction.Seen
	str := unsafe.String(unsafe.SliceData(b), len(b))
	if !float {
		if i, err := strconv.ParseInt(str, 10, 64); err == nil {
			return ir.Int64(i), nil
		}
		if b[0] != '-' {
			if u, err := strconv.ParseUint(str, 10, 64); err == nil {
				return ir.Uint64(u), nil
			}
		}
	}
	f, err := strconv.ParseFloat(str, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) || math.IsInf(f, 0) {
		return ir.Value{}, c.errf("number %q out of range", b)
	}
	return ir.Float64(f), nil
}

// validNumber checks b against the JSON number grammar.
func validNumber(b []byte) bool {
	i := 0
	digits := func() int {
		n := 0
		for i < len(b) && b[i] >= '0' && b[i] <= '9' {
			i++
			n++
		}
		return n
	}
	if i < len(b) && b[i] == '-' {
		i++
	}
	start := i
	n := digits()
	if n == 0 || (n > 1 && b[start] == '0') {
		return false
	}
	if i < len(b) && b[i] == '.' {
		i++
		if digits() == 0 {
			return false
		}
	}
	if i < len(b) && (b[i] == 'e' || b[i] == 'E') {
		i++
		if i < len(b) && (b[i] == '+' || b[i] == '-') {
			i++
		}
		if digits() == 0 {
			return false
		}
	}
	return i == len(b)
}
