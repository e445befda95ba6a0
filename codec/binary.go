package codec

import (
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/signadot/odoc/arena"
	"github.com/signadot/odoc/debug"
	"github.com/signadot/odoc/format"
	"github.com/signadot/odoc/hashtab"
	"github.com/signadot/odoc/ir"
	"github.com/signadot/odoc/token"
)

// obin field kinds, stored in the low nibble of the flag byte.
const (
	binEnd byte = iota
	binNull
	binFalse
	binTrue
	binUint
	binIntPos
	binIntNeg
	binFP32
	binFP64
	binString
	binBinary
	binObject
	binArray

	binKinds
)

const (
	binNamed   = 0x10
	binIndexed = 0x20
	binWidth   = 6 // shift of the integer width code
)

var binMagic = [3]byte{'O', 'B', 0x01}

// Binary is the obin codec: a compact private format of one flag byte per
// field, VLQ integers and a per document name table.
//
// A document is the magic "OB\x01", a 4 byte little endian body length and
// the body. Each field starts with a flag byte; a named field follows it
// with either the VLQ length and bytes of a new name, which enters the
// table, or the VLQ index of a name already in the table.
type Binary struct {
	input

	// write
	wdepth []ir.Type
	wnames *hashtab.Table[string, int]
	body   token.Ticket
	start  int64

	// read
	rdepth []ir.Type
	rnames [][]byte
	mem    *arena.Arena
	limit  int64
	began  bool
	done   bool
}

func NewBinary() *Binary {
	c := &Binary{
		wnames: hashtab.New[string, int](hashtab.String),
		mem:    arena.New(arena.SegmentSize(1 << 10)),
	}
	c.init()
	return c
}

func (c *Binary) Format() format.Format { return format.BinaryFormat }
func (c *Binary) Kind() format.Kind     { return format.Binary }

func (c *Binary) Reset() {
	c.wdepth = c.wdepth[:0]
	c.wnames.Clear()
	c.rdepth = c.rdepth[:0]
	clear(c.rnames)
	c.rnames = c.rnames[:0]
	c.mem.Reset()
	c.began, c.done = false, false
	c.limit = 0
}

func widthCode(t ir.Type) byte {
	switch t.Width() {
	case 1:
		return 0
	case 2:
		return 1
	case 4:
		return 2
	}
	return 3
}

func (c *Binary) Write(name []byte, v ir.Value, s *token.Sink) error {
	t := v.Type()
	if len(c.wdepth) == 0 {
		if !t.IsScope() {
			return typeErr(format.BinaryFormat, v, "document root must be a scope")
		}
		s.Write(binMagic[:])
		c.body = s.Reserve(4)
		c.start = s.Offset()
		name = nil
	} else if c.wdepth[len(c.wdepth)-1] != ir.ObjectType {
		name = nil
	}
	if t == ir.EndType {
		if len(c.wdepth) == 0 {
			return typeErr(format.BinaryFormat, v, "no open scope")
		}
		s.WriteByte(binEnd)
		c.wdepth = c.wdepth[:len(c.wdepth)-1]
		if len(c.wdepth) == 0 {
			n := s.Offset() - c.start
			if n > math.MaxUint32 {
				return typeErr(format.BinaryFormat, v, "document exceeds 4GiB")
			}
			if err := s.PatchUint32LE(c.body, uint32(n)); err != nil {
				return err
			}
		}
		return s.Err()
	}

	var flag byte
	var mag uint64
	switch t {
	case ir.NullType:
		flag = binNull
	case ir.BoolType:
		flag = binFalse
		if v.Word() != 0 {
			flag = binTrue
		}
	case ir.UI8Type, ir.UI16Type, ir.UI32Type, ir.UI64Type:
		flag = binUint | widthCode(t)<<binWidth
		mag = v.Word()
	case ir.I8Type, ir.I16Type, ir.I32Type, ir.I64Type:
		x := int64(v.Word())
		flag = binIntPos | widthCode(t)<<binWidth
		mag = uint64(x)
		if x < 0 {
			flag = binIntNeg | widthCode(t)<<binWidth
			mag = uint64(-(x + 1)) + 1
		}
	case ir.FP32Type:
		flag = binFP32
	case ir.FP64Type:
		flag = binFP64
	case ir.StringType:
		flag = binString
	case ir.BinaryType:
		flag = binBinary
	case ir.ObjectType:
		flag = binObject
	case ir.ArrayType:
		flag = binArray
	default:
		return typeErr(format.BinaryFormat, v, "unknown type")
	}

	var idx int
	fresh := false
	if len(name) > 0 {
		str := unsafe.String(unsafe.SliceData(name), len(name))
		if _, p, ok := c.wnames.GetHashed(hashtab.Bytes(name), func(k string) bool { return k == str }); ok {
			flag |= binIndexed
			idx = *p
		} else {
			flag |= binNamed
			fresh = true
			c.wnames.Insert(string(name), c.wnames.Len())
		}
	}
	s.WriteByte(flag)
	switch {
	case fresh:
		s.Append(func(b []byte) []byte { return AppendVLQ(b, uint64(len(name))) })
		s.Write(name)
	case flag&binIndexed != 0:
		s.Append(func(b []byte) []byte { return AppendVLQ(b, uint64(idx)) })
	}

	switch flag & 0x0f {
	case binUint, binIntPos, binIntNeg:
		s.Append(func(b []byte) []byte { return AppendVLQ(b, mag) })
	case binFP32:
		s.WriteUint32LE(uint32(v.Word()))
	case binFP64:
		s.WriteUint64LE(v.Word())
	case binString, binBinary:
		d := v.Data()
		s.Append(func(b []byte) []byte { return AppendVLQ(b, uint64(len(d))) })
		s.Write(d)
	case binObject, binArray:
		c.wdepth = append(c.wdepth, t)
	}
	if debug.Store() {
		debug.Logf("obin write %q %s\n", name, v)
	}
	return s.Err()
}

func (c *Binary) Read(src *token.Source) ([]byte, ir.Value, error) {
	c.src = src
	prev := src.SetAnchor()
	defer src.RestoreAnchor(prev)

	if c.done {
		return nil, ir.Value{}, c.errf("read past document end")
	}
	if !c.began {
		hdr, err := src.ReadBlock(len(binMagic)+4, c.eof)
		if err != nil {
			return nil, ir.Value{}, err
		}
		if [3]byte(hdr[:3]) != binMagic {
			return nil, ir.Value{}, c.errf("bad obin magic %x", hdr[:3])
		}
		c.limit = src.Offset() + int64(binary.LittleEndian.Uint32(hdr[3:]))
		c.began = true
	}
	if src.Offset() >= c.limit {
		return nil, ir.Value{}, c.errf("body length %d exceeded", c.limit)
	}
	flag, err := src.Next(c.eof)
	if err != nil {
		return nil, ir.Value{}, err
	}
	kind := flag & 0x0f
	if kind >= binKinds || flag&(binNamed|binIndexed) == binNamed|binIndexed {
		return nil, ir.Value{}, c.errf("bad obin flag %#x", flag)
	}
	isInt := kind == binUint || kind == binIntPos || kind == binIntNeg
	if !isInt && flag>>binWidth != 0 {
		return nil, ir.Value{}, c.errf("width bits on non integer flag %#x", flag)
	}
	if len(c.rdepth) == 0 && kind != binObject && kind != binArray {
		return nil, ir.Value{}, c.errf("document root is not a scope")
	}

	name, err := c.readName(flag)
	if err != nil {
		return nil, ir.Value{}, err
	}

	var v ir.Value
	switch kind {
	case binEnd:
		c.rdepth = c.rdepth[:len(c.rdepth)-1]
		if len(c.rdepth) == 0 {
			c.done = true
			if src.Offset() != c.limit {
				return nil, ir.Value{}, c.errf("document ends before body length %d", c.limit)
			}
		}
		v = ir.End()
	case binNull:
		v = ir.Null()
	case binFalse, binTrue:
		v = ir.Bool(kind == binTrue)
	case binUint, binIntPos, binIntNeg:
		if v, err = c.readInt(kind, flag>>binWidth); err != nil {
			return nil, ir.Value{}, err
		}
	case binFP32:
		b, err := src.ReadBlock(4, c.eof)
		if err != nil {
			return nil, ir.Value{}, err
		}
		v = ir.Float32(math.Float32frombits(binary.LittleEndian.Uint32(b)))
	case binFP64:
		b, err := src.ReadBlock(8, c.eof)
		if err != nil {
			return nil, ir.Value{}, err
		}
		v = ir.Float64(math.Float64frombits(binary.LittleEndian.Uint64(b)))
	case binString, binBinary:
		b, err := c.readBlock()
		if err != nil {
			return nil, ir.Value{}, err
		}
		v = ir.Binary(b)
		if kind == binString {
			v = ir.StringBytes(b)
		}
	case binObject:
		c.rdepth = append(c.rdepth, ir.ObjectType)
		v = ir.Object()
	case binArray:
		c.rdepth = append(c.rdepth, ir.ArrayType)
		v = ir.Array()
	}
	if src.Offset() > c.limit {
		return nil, ir.Value{}, c.errf("field runs past body length %d", c.limit)
	}
	if debug.Parse() {
		debug.Logf("obin read %q %s\n", name, v)
	}
	return name, v, nil
}

func (c *Binary) readName(flag byte) ([]byte, error) {
	if flag&(binNamed|binIndexed) == 0 {
		return nil, nil
	}
	if n := len(c.rdepth); n == 0 || c.rdepth[n-1] != ir.ObjectType || flag&0x0f == binEnd {
		return nil, c.errf("name outside an object")
	}
	if flag&binIndexed != 0 {
		idx, err := readVLQ(c.src, c.eof)
		if err != nil {
			return nil, err
		}
		if idx >= uint64(len(c.rnames)) {
			return nil, c.errf("name index %d outside table of %d", idx, len(c.rnames))
		}
		return c.rnames[idx], nil
	}
	b, err := c.readBlock()
	if err != nil {
		return nil, err
	}
	b = c.mem.Copy(b)
	c.rnames = append(c.rnames, b)
	return b, nil
}

func (c *Binary) readBlock() ([]byte, error) {
	n, err := readVLQ(c.src, c.eof)
	if err != nil {
		return nil, err
	}
	if rem := c.limit - c.src.Offset(); rem < 0 || n > uint64(rem) {
		return nil, c.errf("length %d runs past body length %d", n, c.limit)
	}
	return c.src.ReadBlock(int(n), c.eof)
}

var intTypes = [2][4]ir.Type{
	{ir.UI8Type, ir.UI16Type, ir.UI32Type, ir.UI64Type},
	{ir.I8Type, ir.I16Type, ir.I32Type, ir.I64Type},
}

func (c *Binary) readInt(kind, width byte) (ir.Value, error) {
	mag, err := readVLQ(c.src, c.eof)
	if err != nil {
		return ir.Value{}, err
	}
	bits := uint(8) << width
	if kind == binUint {
		if bits < 64 && mag >= 1<<bits {
			return ir.Value{}, c.errf("%d overflows %d bit unsigned", mag, bits)
		}
		return ir.FromWord(intTypes[0][width], mag), nil
	}
	lim := uint64(1) << (bits - 1)
	switch {
	case kind == binIntPos && mag >= lim:
		return ir.Value{}, c.errf("%d overflows %d bit signed", mag, bits)
	case kind == binIntNeg && (mag == 0 || mag > lim):
		return ir.Value{}, c.errf("negative magnitude %d invalid for %d bits", mag, bits)
	}
	w := mag
	if kind == binIntNeg {
		w = -mag
	}
	return ir.FromWord(intTypes[1][width], w), nil
}
