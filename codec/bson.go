package codec

import (
	"encoding/binary"
	"math"
	"strconv"

	"github.com/signadot/odoc/debug"
	"github.com/signadot/odoc/format"
	"github.com/signadot/odoc/ir"
	"github.com/signadot/odoc/token"
)

// BSON element types.
const (
	bsonDouble   byte = 0x01
	bsonString   byte = 0x02
	bsonDocument byte = 0x03
	bsonArray    byte = 0x04
	bsonBinary   byte = 0x05
	bsonBool     byte = 0x08
	bsonDateTime byte = 0x09
	bsonNull     byte = 0x0a
	bsonInt32    byte = 0x10
	bsonTime     byte = 0x11
	bsonInt64    byte = 0x12
)

const bsonMinDoc = 5

type bsonFrame struct {
	kind   ir.Type
	ticket token.Ticket // write: size field
	end    int64        // read: offset one past the terminating NUL
	index  int          // next array key
}

// BSON is the codec for the BSON document format.
//
// The root of a BSON document is always a document, so a root Array is
// written with the keys "0", "1", ... and reads back as an Object.
type BSON struct {
	input
	frames []bsonFrame
	key    []byte
	began  bool
	done   bool
}

func NewBSON() *BSON {
	c := &BSON{}
	c.init()
	return c
}

func (c *BSON) Format() format.Format { return format.BSONFormat }
func (c *BSON) Kind() format.Kind     { return format.Binary }

func (c *BSON) Reset() {
	c.frames = c.frames[:0]
	c.began, c.done = false, false
}

func (c *BSON) elemType(v ir.Value) (byte, error) {
	switch v.Type() {
	case ir.NullType:
		return bsonNull, nil
	case ir.BoolType:
		return bsonBool, nil
	case ir.I8Type, ir.I16Type, ir.I32Type, ir.UI8Type, ir.UI16Type:
		return bsonInt32, nil
	case ir.UI32Type, ir.I64Type:
		return bsonInt64, nil
	case ir.UI64Type:
		if v.Word() > math.MaxInt64 {
			return 0, typeErr(format.BSONFormat, v, "exceeds int64")
		}
		return bsonInt64, nil
	case ir.FP32Type, ir.FP64Type:
		return bsonDouble, nil
	case ir.StringType:
		return bsonString, nil
	case ir.BinaryType:
		return bsonBinary, nil
	case ir.ObjectType:
		return bsonDocument, nil
	case ir.ArrayType:
		return bsonArray, nil
	}
	return 0, typeErr(format.BSONFormat, v, "unknown type")
}

func (c *BSON) Write(name []byte, v ir.Value, s *token.Sink) error {
	t := v.Type()
	if t == ir.EndType {
		if len(c.frames) == 0 {
			return typeErr(format.BSONFormat, v, "no open scope")
		}
		s.WriteByte(0)
		f := &c.frames[len(c.frames)-1]
		n := s.Offset() - f.ticket.Offset()
		if n > math.MaxInt32 {
			return typeErr(format.BSONFormat, v, "document exceeds 2GiB")
		}
		if err := s.PatchUint32LE(f.ticket, uint32(n)); err != nil {
			return err
		}
		c.frames = c.frames[:len(c.frames)-1]
		return s.Err()
	}
	if len(c.frames) == 0 {
		if !t.IsScope() {
			return typeErr(format.BSONFormat, v, "document root must be a scope")
		}
		c.frames = append(c.frames, bsonFrame{kind: t, ticket: s.Reserve(4)})
		return s.Err()
	}

	et, err := c.elemType(v)
	if err != nil {
		return err
	}
	top := &c.frames[len(c.frames)-1]
	if top.kind == ir.ArrayType {
		name = strconv.AppendInt(c.key[:0], int64(top.index), 10)
		c.key = name
		top.index++
	} else {
		for _, b := range name {
			if b == 0 {
				return typeErr(format.BSONFormat, v, "field name "+strconv.Quote(string(name))+" contains NUL")
			}
		}
	}
	s.WriteByte(et)
	s.Write(name)
	s.WriteByte(0)

	switch t {
	case ir.NullType:
	case ir.BoolType:
		s.WriteByte(byte(v.Word()))
	case ir.I8Type, ir.I16Type, ir.I32Type, ir.UI8Type, ir.UI16Type:
		s.WriteUint32LE(uint32(v.Word()))
	case ir.UI32Type, ir.I64Type, ir.UI64Type:
		s.WriteUint64LE(v.Word())
	case ir.FP32Type, ir.FP64Type:
		f, _ := v.Float64()
		s.WriteFloat64LE(f)
	case ir.StringType:
		d := v.Data()
		if len(d) >= math.MaxInt32 {
			return typeErr(format.BSONFormat, v, "string exceeds 2GiB")
		}
		s.WriteUint32LE(uint32(len(d) + 1))
		s.Write(d)
		s.WriteByte(0)
	case ir.BinaryType:
		d := v.Data()
		if len(d) > math.MaxInt32 {
			return typeErr(format.BSONFormat, v, "binary exceeds 2GiB")
		}
		s.WriteUint32LE(uint32(len(d)))
		s.WriteByte(0x00)
		s.Write(d)
	case ir.ObjectType, ir.ArrayType:
		c.frames = append(c.frames, bsonFrame{kind: t, ticket: s.Reserve(4)})
	}
	if debug.Store() {
		debug.Logf("bson write %q %s\n", name, v)
	}
	return s.Err()
}

func (c *BSON) readSize() (int64, error) {
	b, err := c.src.ReadBlock(4, c.eof)
	if err != nil {
		return 0, err
	}
	return int64(int32(binary.LittleEndian.Uint32(b))), nil
}

// openDoc reads a document size field and pushes the frame it opens.
func (c *BSON) openDoc(kind ir.Type) error {
	at := c.src.Offset()
	n, err := c.readSize()
	if err != nil {
		return err
	}
	if n < bsonMinDoc {
		return c.errf("document size %d", n)
	}
	end := at + n
	if len(c.frames) > 0 && end >= c.frames[len(c.frames)-1].end {
		return c.errf("document of size %d overruns its parent", n)
	}
	c.frames = append(c.frames, bsonFrame{kind: kind, end: end})
	return nil
}

var nul = []byte{0}

func (c *BSON) Read(src *token.Source) ([]byte, ir.Value, error) {
	c.src = src
	prev := src.SetAnchor()
	defer src.RestoreAnchor(prev)

	if c.done || c.began && len(c.frames) == 0 {
		return nil, ir.Value{}, c.errf("read past document end")
	}
	if !c.began {
		c.began = true
		if err := c.openDoc(ir.ObjectType); err != nil {
			return nil, ir.Value{}, err
		}
		return nil, ir.Object(), nil
	}
	top := &c.frames[len(c.frames)-1]
	if src.Offset() >= top.end {
		return nil, ir.Value{}, c.errf("missing document terminator")
	}
	et, err := src.Next(c.eof)
	if err != nil {
		return nil, ir.Value{}, err
	}
	if et == 0 {
		if src.Offset() != top.end {
			return nil, ir.Value{}, c.errf("document terminator before declared size")
		}
		c.frames = c.frames[:len(c.frames)-1]
		c.done = len(c.frames) == 0
		return nil, ir.End(), nil
	}
	name, err := src.ReadBlockUntil(c.eof, nul)
	if err != nil {
		return nil, ir.Value{}, err
	}
	if err := src.Move(1, c.eof); err != nil {
		return nil, ir.Value{}, err
	}
	if top.kind == ir.ArrayType {
		c.key = strconv.AppendInt(c.key[:0], int64(top.index), 10)
		if string(name) != string(c.key) {
			return nil, ir.Value{}, c.errf("array key %q, want %q", name, c.key)
		}
		top.index++
		name = nil
	}
	end := top.end
	v, err := c.readValue(et)
	if err != nil {
		return nil, ir.Value{}, err
	}
	if src.Offset() >= end {
		return nil, ir.Value{}, c.errf("element overruns its document")
	}
	if debug.Parse() {
		debug.Logf("bson read %q %s\n", name, v)
	}
	return name, v, nil
}

func (c *BSON) readValue(et byte) (ir.Value, error) {
	src := c.src
	switch et {
	case bsonDouble:
		b, err := src.ReadBlock(8, c.eof)
		if err != nil {
			return ir.Value{}, err
		}
		return ir.Float64(math.Float64frombits(binary.LittleEndian.Uint64(b))), nil
	case bsonString:
		n, err := c.readSize()
		if err != nil {
			return ir.Value{}, err
		}
		if n < 1 || n > c.frames[len(c.frames)-1].end-src.Offset() {
			return ir.Value{}, c.errf("string length %d", n)
		}
		b, err := src.ReadBlock(int(n), c.eof)
		if err != nil {
			return ir.Value{}, err
		}
		if b[n-1] != 0 {
			return ir.Value{}, c.errf("string not NUL terminated")
		}
		return ir.StringBytes(b[:n-1]), nil
	case bsonDocument:
		return ir.Object(), c.openDoc(ir.ObjectType)
	case bsonArray:
		return ir.Array(), c.openDoc(ir.ArrayType)
	case bsonBinary:
		n, err := c.readSize()
		if err != nil {
			return ir.Value{}, err
		}
		if n < 0 || n >= c.frames[len(c.frames)-1].end-src.Offset() {
			return ir.Value{}, c.errf("binary length %d", n)
		}
		if err := src.Move(1, c.eof); err != nil {
			return ir.Value{}, err
		}
		b, err := src.ReadBlock(int(n), c.eof)
		if err != nil {
			return ir.Value{}, err
		}
		return ir.Binary(b), nil
	case bsonBool:
		b, err := src.Next(c.eof)
		if err != nil {
			return ir.Value{}, err
		}
		if b > 1 {
			return ir.Value{}, c.errf("bool byte %#x", b)
		}
		return ir.Bool(b == 1), nil
	case bsonNull:
		return ir.Null(), nil
	case bsonInt32:
		b, err := src.ReadBlock(4, c.eof)
		if err != nil {
			return ir.Value{}, err
		}
		return ir.Int32(int32(binary.LittleEndian.Uint32(b))), nil
	case bsonInt64, bsonDateTime:
		b, err := src.ReadBlock(8, c.eof)
		if err != nil {
			return ir.Value{}, err
		}
		return ir.Int64(int64(binary.LittleEndian.Uint64(b))), nil
	case bsonTime:
		b, err := src.ReadBlock(8, c.eof)
		if err != nil {
			return ir.Value{}, err
		}
		return ir.Uint64(binary.LittleEndian.Uint64(b)), nil
	}
	return ir.Value{}, c.errf("unsupported element type %#x", et)
}
