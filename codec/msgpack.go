package codec

import (
	"encoding/binary"
	"math"

	"github.com/signadot/odoc/debug"
	"github.com/signadot/odoc/format"
	"github.com/signadot/odoc/ir"
	"github.com/signadot/odoc/token"
)

// MessagePack prefix bytes.
const (
	mpNil      byte = 0xc0
	mpNever    byte = 0xc1
	mpFalse    byte = 0xc2
	mpTrue     byte = 0xc3
	mpBin8     byte = 0xc4
	mpBin16    byte = 0xc5
	mpBin32    byte = 0xc6
	mpExt8     byte = 0xc7
	mpExt32    byte = 0xc9
	mpFloat32  byte = 0xca
	mpFloat64  byte = 0xcb
	mpUint8    byte = 0xcc
	mpUint16   byte = 0xcd
	mpUint32   byte = 0xce
	mpUint64   byte = 0xcf
	mpInt8     byte = 0xd0
	mpInt16    byte = 0xd1
	mpInt32    byte = 0xd2
	mpInt64    byte = 0xd3
	mpFixExt1  byte = 0xd4
	mpFixExt16 byte = 0xd8
	mpStr8     byte = 0xd9
	mpStr16    byte = 0xda
	mpStr32    byte = 0xdb
	mpArray16  byte = 0xdc
	mpArray32  byte = 0xdd
	mpMap16    byte = 0xde
	mpMap32    byte = 0xdf

	mpFixMap   byte = 0x80
	mpFixArray byte = 0x90
	mpFixStr   byte = 0xa0
	mpNegFix   byte = 0xe0
)

// mpWidth is the size of the length or payload field following a prefix
// with one.
var mpWidth = [256]uint8{
	mpBin8: 1, mpBin16: 2, mpBin32: 4,
	mpStr8: 1, mpStr16: 2, mpStr32: 4,
	mpArray16: 2, mpArray32: 4, mpMap16: 2, mpMap32: 4,
	mpUint8: 1, mpUint16: 2, mpUint32: 4, mpUint64: 8,
	mpInt8: 1, mpInt16: 2, mpInt32: 4, mpInt64: 8,
	mpFloat32: 4, mpFloat64: 8,
}

type mpFrame struct {
	kind   ir.Type
	ticket token.Ticket
	n      int // write: elements so far; read: elements left
}

// MsgPack is the codec for MessagePack.
//
// Scopes are always written with 32 bit counts, patched when the scope
// closes. On read, fixint values become I64 and explicitly sized integers
// keep their width and signedness.
type MsgPack struct {
	input
	frames []mpFrame
	began  bool
	done   bool
}

func NewMsgPack() *MsgPack {
	c := &MsgPack{}
	c.init()
	return c
}

func (c *MsgPack) Format() format.Format { return format.MsgPackFormat }
func (c *MsgPack) Kind() format.Kind     { return format.Binary }

func (c *MsgPack) Reset() {
	c.frames = c.frames[:0]
	c.began, c.done = false, false
}

func mpAppendUint(b []byte, x uint64) []byte {
	switch {
	case x < 0x80:
		return append(b, byte(x))
	case x <= math.MaxUint8:
		return append(b, mpUint8, byte(x))
	case x <= math.MaxUint16:
		return binary.BigEndian.AppendUint16(append(b, mpUint16), uint16(x))
	case x <= math.MaxUint32:
		return binary.BigEndian.AppendUint32(append(b, mpUint32), uint32(x))
	}
	return binary.BigEndian.AppendUint64(append(b, mpUint64), x)
}

func mpAppendInt(b []byte, x int64) []byte {
	switch {
	case x >= 0:
		return mpAppendUint(b, uint64(x))
	case x >= -32:
		return append(b, byte(x))
	case x >= math.MinInt8:
		return append(b, mpInt8, byte(x))
	case x >= math.MinInt16:
		return binary.BigEndian.AppendUint16(append(b, mpInt16), uint16(x))
	case x >= math.MinInt32:
		return binary.BigEndian.AppendUint32(append(b, mpInt32), uint32(x))
	}
	return binary.BigEndian.AppendUint64(append(b, mpInt64), uint64(x))
}

// mpAppendLen appends a str or bin header; fix is 0 for bin.
func mpAppendLen(b []byte, n int, fix, p8, p16, p32 byte) []byte {
	switch {
	case fix != 0 && n < 32:
		return append(b, fix|byte(n))
	case n <= math.MaxUint8:
		return append(b, p8, byte(n))
	case n <= math.MaxUint16:
		return binary.BigEndian.AppendUint16(append(b, p16), uint16(n))
	}
	return binary.BigEndian.AppendUint32(append(b, p32), uint32(n))
}

func (c *MsgPack) Write(name []byte, v ir.Value, s *token.Sink) error {
	t := v.Type()
	if t == ir.EndType {
		if len(c.frames) == 0 {
			return typeErr(format.MsgPackFormat, v, "no open scope")
		}
		f := c.frames[len(c.frames)-1]
		c.frames = c.frames[:len(c.frames)-1]
		if err := s.PatchUint32BE(f.ticket, uint32(f.n)); err != nil {
			return err
		}
		return s.Err()
	}
	if len(c.frames) == 0 {
		if !t.IsScope() {
			return typeErr(format.MsgPackFormat, v, "document root must be a scope")
		}
	} else {
		top := &c.frames[len(c.frames)-1]
		if int64(top.n) >= math.MaxUint32 {
			return typeErr(format.MsgPackFormat, v, "scope exceeds 2^32-1 elements")
		}
		top.n++
		if top.kind == ir.ObjectType {
			s.Append(func(b []byte) []byte { return mpAppendLen(b, len(name), mpFixStr, mpStr8, mpStr16, mpStr32) })
			s.Write(name)
		}
	}
	if (t == ir.StringType || t == ir.BinaryType) && int64(v.Size()) > math.MaxUint32 {
		return typeErr(format.MsgPackFormat, v, "payload exceeds 4GiB")
	}
	switch t {
	case ir.NullType:
		s.WriteByte(mpNil)
	case ir.BoolType:
		if v.Word() != 0 {
			s.WriteByte(mpTrue)
		} else {
			s.WriteByte(mpFalse)
		}
	case ir.I8Type, ir.I16Type, ir.I32Type, ir.I64Type:
		s.Append(func(b []byte) []byte { return mpAppendInt(b, int64(v.Word())) })
	case ir.UI8Type, ir.UI16Type, ir.UI32Type, ir.UI64Type:
		s.Append(func(b []byte) []byte { return mpAppendUint(b, v.Word()) })
	case ir.FP32Type:
		s.WriteByte(mpFloat32)
		s.WriteUint32BE(uint32(v.Word()))
	case ir.FP64Type:
		s.WriteByte(mpFloat64)
		s.WriteUint64BE(v.Word())
	case ir.StringType:
		d := v.Data()
		s.Append(func(b []byte) []byte { return mpAppendLen(b, len(d), mpFixStr, mpStr8, mpStr16, mpStr32) })
		s.Write(d)
	case ir.BinaryType:
		d := v.Data()
		s.Append(func(b []byte) []byte { return mpAppendLen(b, len(d), 0, mpBin8, mpBin16, mpBin32) })
		s.Write(d)
	case ir.ObjectType, ir.ArrayType:
		p := mpArray32
		if t == ir.ObjectType {
			p = mpMap32
		}
		s.WriteByte(p)
		c.frames = append(c.frames, mpFrame{kind: t, ticket: s.Reserve(4)})
	default:
		return typeErr(format.MsgPackFormat, v, "unknown type")
	}
	if debug.Store() {
		debug.Logf("msgpack write %q %s\n", name, v)
	}
	return s.Err()
}

func (c *MsgPack) Read(src *token.Source) ([]byte, ir.Value, error) {
	c.src = src
	prev := src.SetAnchor()
	defer src.RestoreAnchor(prev)

	if c.done || c.began && len(c.frames) == 0 {
		return nil, ir.Value{}, c.errf("read past document end")
	}
	var name []byte
	if !c.began {
		c.began = true
	} else {
		top := &c.frames[len(c.frames)-1]
		if top.n == 0 {
			c.frames = c.frames[:len(c.frames)-1]
			c.done = len(c.frames) == 0
			return nil, ir.End(), nil
		}
		top.n--
		if top.kind == ir.ObjectType {
			k, err := c.readValue()
			if err != nil {
				return nil, ir.Value{}, err
			}
			if k.Type() != ir.StringType {
				return nil, ir.Value{}, c.errf("map key is %s, not a string", k.Type())
			}
			name = k.Data()
		}
	}
	v, err := c.readValue()
	if err != nil {
		return nil, ir.Value{}, err
	}
	if len(c.frames) == 0 && !v.Type().IsScope() {
		return nil, ir.Value{}, c.errf("document root is not a map or array")
	}
	if debug.Parse() {
		debug.Logf("msgpack read %q %s\n", name, v)
	}
	return name, v, nil
}

func (c *MsgPack) readN(n int) (uint64, error) {
	b, err := c.src.ReadBlock(n, c.eof)
	if err != nil {
		return 0, err
	}
	switch n {
	case 1:
		return uint64(b[0]), nil
	case 2:
		return uint64(binary.BigEndian.Uint16(b)), nil
	case 4:
		return uint64(binary.BigEndian.Uint32(b)), nil
	}
	return binary.BigEndian.Uint64(b), nil
}

func (c *MsgPack) push(kind ir.Type, n uint64) ir.Value {
	c.frames = append(c.frames, mpFrame{kind: kind, n: int(n)})
	return ir.Scope(kind)
}

func (c *MsgPack) readValue() (ir.Value, error) {
	p, err := c.src.Next(c.eof)
	if err != nil {
		return ir.Value{}, err
	}
	switch {
	case p < 0x80:
		return ir.Int64(int64(p)), nil
	case p >= mpNegFix:
		return ir.Int64(int64(int8(p))), nil
	case p&0xf0 == mpFixMap:
		return c.push(ir.ObjectType, uint64(p&0x0f)), nil
	case p&0xf0 == mpFixArray:
		return c.push(ir.ArrayType, uint64(p&0x0f)), nil
	case p&0xe0 == mpFixStr:
		return c.readBlock(ir.StringType, uint64(p&0x1f))
	}
	width := int(mpWidth[p])
	switch p {
	case mpNil:
		return ir.Null(), nil
	case mpFalse, mpTrue:
		return ir.Bool(p == mpTrue), nil
	case mpNever:
		return ir.Value{}, c.errf("reserved prefix %#x", p)
	}
	if width == 0 {
		if (p >= mpExt8 && p <= mpExt32) || (p >= mpFixExt1 && p <= mpFixExt16) {
			return ir.Value{}, c.errf("extension type %#x not supported", p)
		}
		return ir.Value{}, c.errf("bad prefix %#x", p)
	}
	x, err := c.readN(width)
	if err != nil {
		return ir.Value{}, err
	}
	switch p {
	case mpBin8, mpBin16, mpBin32:
		return c.readBlock(ir.BinaryType, x)
	case mpStr8, mpStr16, mpStr32:
		return c.readBlock(ir.StringType, x)
	case mpArray16, mpArray32:
		return c.push(ir.ArrayType, x), nil
	case mpMap16, mpMap32:
		return c.push(ir.ObjectType, x), nil
	case mpUint8:
		return ir.Uint8(uint8(x)), nil
	case mpUint16:
		return ir.Uint16(uint16(x)), nil
	case mpUint32:
		return ir.Uint32(uint32(x)), nil
	case mpUint64:
		return ir.Uint64(x), nil
	case mpInt8:
		return ir.Int8(int8(x)), nil
	case mpInt16:
		return ir.Int16(int16(x)), nil
	case mpInt32:
		return ir.Int32(int32(x)), nil
	case mpInt64:
		return ir.Int64(int64(x)), nil
	case mpFloat32:
		return ir.Float32(math.Float32frombits(uint32(x))), nil
	}
	return ir.Float64(math.Float64frombits(x)), nil
}

func (c *MsgPack) readBlock(t ir.Type, n uint64) (ir.Value, error) {
	b, err := c.src.ReadBlock(int(n), c.eof)
	if err != nil {
		return ir.Value{}, err
	}
	if t == ir.StringType {
		return ir.StringBytes(b), nil
	}
	return ir.Binary(b), nil
}
