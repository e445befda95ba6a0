package codec

import (
	"bytes"
	"errors"
	"math"
	"testing"
	"testing/iotest"

	"github.com/signadot/odoc/format"
	"github.com/signadot/odoc/ir"
	"github.com/signadot/odoc/token"
)

// sampleTree builds a document using every leaf type. Text formats do not
// keep Binary apart from String, so withBinary leaves it out.
func sampleTree(withBinary bool) *ir.Tree {
	tr := ir.NewTree()
	root := tr.SetRoot(ir.ObjectType)
	root.Insert("null", ir.Null())
	root.Insert("yes", ir.Bool(true))
	root.Insert("no", ir.Bool(false))
	root.Insert("i8", ir.Int8(-100))
	root.Insert("i16", ir.Int16(-30000))
	root.Insert("i32", ir.Int32(math.MinInt32))
	root.Insert("i64", ir.Int64(math.MinInt64))
	root.Insert("u8", ir.Uint8(200))
	root.Insert("u16", ir.Uint16(60000))
	root.Insert("u32", ir.Uint32(math.MaxUint32))
	root.Insert("u64", ir.Uint64(math.MaxInt64))
	root.Insert("small", ir.Int64(-7))
	root.Insert("f32", ir.Float32(1.5))
	root.Insert("f64", ir.Float64(-2.25e-300))
	root.Insert("str", ir.String("tab\tquote\" <&> é 😀"))
	root.Insert("empty", ir.String(""))
	if withBinary {
		root.Insert("bin", ir.Binary([]byte{0, 1, 2, 0xff}))
	}
	inner := root.InsertNode("inner", ir.ObjectType)
	inner.Insert("x", ir.Int64(1))
	inner.Insert("null", ir.Null())
	list := root.InsertNode("list", ir.ArrayType)
	list.Insert("", ir.Int64(1))
	list.Insert("", ir.String("two"))
	nested := list.InsertNode("", ir.ArrayType)
	nested.Insert("", ir.Float64(3.5))
	obj := list.InsertNode("", ir.ObjectType)
	obj.Insert("x", ir.Int64(2))
	root.InsertNode("none", ir.ArrayType)
	return tr
}

func encode(t *testing.T, c ir.Codec, tr *ir.Tree) []byte {
	t.Helper()
	s := token.NewBufferSink()
	if err := tr.Encode(c, s); err != nil {
		t.Fatalf("%s encode: %v", c.Format(), err)
	}
	return s.Bytes()
}

func decode(c ir.Codec, b []byte) (*ir.Tree, error) {
	tr := ir.NewTree()
	err := tr.Decode(c, token.NewSourceBytes(b))
	return tr, err
}

func allCodecs() []ir.Codec {
	var cs []ir.Codec
	for _, f := range format.AllFormats() {
		c, err := New(f)
		if err != nil {
			panic(err)
		}
		cs = append(cs, c)
	}
	return cs
}

func TestNew(t *testing.T) {
	for _, f := range format.AllFormats() {
		c, err := New(f)
		if err != nil {
			t.Fatal(err)
		}
		if c.Format() != f || c.Kind() != f.Kind() {
			t.Errorf("%s: codec reports %s/%s", f, c.Format(), c.Kind())
		}
	}
	if _, err := New(format.Format(99)); !errors.Is(err, format.ErrBadFormat) {
		t.Errorf("unknown format: %v", err)
	}
}

func TestRoundTrip(t *testing.T) {
	for _, c := range []ir.Codec{NewBinary(), NewBSON(), NewMsgPack(), NewJSON(), NewJSON(Indent(2))} {
		want := sampleTree(c.Kind() == format.Binary)
		b := encode(t, c, want)
		got, err := decode(c, b)
		if err != nil {
			t.Fatalf("%s decode: %v", c.Format(), err)
		}
		if !got.Root().Equal(want.Root()) {
			t.Errorf("%s round trip:\n got %s\nwant %s", c.Format(), got.Root(), want.Root())
		}
		if got.Root().Hash() != want.Root().Hash() {
			t.Errorf("%s: fingerprints differ", c.Format())
		}
		// re-encoding the decoded tree is stable
		if again := encode(t, c, got); !bytes.Equal(again, b) {
			t.Errorf("%s: re-encoding differs", c.Format())
		}
	}
}

func TestCodecReuse(t *testing.T) {
	for _, c := range allCodecs() {
		tr := sampleTree(false)
		first := encode(t, c, tr)
		second := encode(t, c, tr)
		if !bytes.Equal(first, second) {
			t.Errorf("%s: second document differs", c.Format())
		}
		for range 2 {
			if _, err := decode(c, first); err != nil {
				t.Errorf("%s: decode after reuse: %v", c.Format(), err)
			}
		}
	}
}

func TestStreamingSource(t *testing.T) {
	for _, c := range allCodecs() {
		want := sampleTree(false)
		b := encode(t, c, want)
		src := token.NewSource(iotest.OneByteReader(bytes.NewReader(b)), token.BufferSize(1), token.Margin(0))
		got := ir.NewTree()
		if err := got.Open(c, src); err != nil {
			t.Fatalf("%s open: %v", c.Format(), err)
		}
		v, err := got.Root().Value("str")
		if err != nil {
			t.Fatalf("%s: %v", c.Format(), err)
		}
		if s, _ := v.Str(); s != "tab\tquote\" <&> é 😀" {
			t.Errorf("%s: str = %q", c.Format(), s)
		}
		if err := got.Finish(); err != nil {
			t.Fatalf("%s finish: %v", c.Format(), err)
		}
		if c.Format() == format.XMLFormat {
			continue
		}
		if !got.Root().Equal(want.Root()) {
			t.Errorf("%s streaming:\n got %s\nwant %s", c.Format(), got.Root(), want.Root())
		}
	}
}

func TestTruncation(t *testing.T) {
	for _, c := range allCodecs() {
		b := encode(t, c, sampleTree(c.Kind() == format.Binary))
		for i := range len(b) {
			_, err := decode(c, b[:i])
			if err == nil {
				t.Fatalf("%s: decoding %d of %d bytes succeeded", c.Format(), i, len(b))
			}
			if !errors.Is(err, ir.ErrParse) {
				t.Fatalf("%s: truncated at %d: %v", c.Format(), i, err)
			}
		}
	}
}

func TestBitFlips(t *testing.T) {
	for _, c := range allCodecs() {
		b := encode(t, c, sampleTree(c.Kind() == format.Binary))
		for i := range len(b) * 8 {
			d := bytes.Clone(b)
			d[i/8] ^= 1 << (i % 8)
			tr, err := decode(c, d)
			if err != nil {
				if !errors.Is(err, ir.ErrParse) && !errors.Is(err, ir.ErrType) {
					t.Fatalf("%s: flip %d: unexpected error kind %v", c.Format(), i, err)
				}
				continue
			}
			_ = tr.Root().String()
		}
	}
}

func TestEncodeRootMustBeScope(t *testing.T) {
	for _, c := range allCodecs() {
		c.Reset()
		if err := c.Write(nil, ir.Int64(1), token.NewBufferSink()); !errors.Is(err, ir.ErrType) {
			t.Errorf("%s: scalar root: %v", c.Format(), err)
		}
		c.Reset()
		if err := c.Write(nil, ir.End(), token.NewBufferSink()); !errors.Is(err, ir.ErrType) {
			t.Errorf("%s: stray end: %v", c.Format(), err)
		}
	}
}

func TestEmptyRoots(t *testing.T) {
	for _, c := range allCodecs() {
		tr := ir.NewTree()
		tr.SetRoot(ir.ObjectType)
		got, err := decode(c, encode(t, c, tr))
		if err != nil {
			t.Fatalf("%s: %v", c.Format(), err)
		}
		if !got.Root().IsObject() || got.Root().Len() != 0 {
			t.Errorf("%s: empty object read as %s", c.Format(), got.Root())
		}
	}
}

func TestReadAfterFailedRoot(t *testing.T) {
	for _, c := range allCodecs() {
		c.Reset()
		src := token.NewSourceBytes([]byte("1"))
		if _, _, err := c.Read(src); !errors.Is(err, ir.ErrParse) {
			t.Errorf("%s: scalar root: %v", c.Format(), err)
		}
		if _, _, err := c.Read(src); !errors.Is(err, ir.ErrParse) {
			t.Errorf("%s: read after failed root: %v", c.Format(), err)
		}
	}
}
