package codec

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/signadot/odoc/ir"
)

func TestBinaryLayout(t *testing.T) {
	tr := ir.NewTree()
	tr.SetRoot(ir.ObjectType).Insert("k", ir.Int64(-1))
	got := encode(t, NewBinary(), tr)
	want := []byte{
		'O', 'B', 0x01, 6, 0, 0, 0,
		binObject,
		binIntNeg | binNamed | 3<<binWidth, 1, 'k', 1,
		binEnd,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestBinaryNameTable(t *testing.T) {
	tr := ir.NewTree()
	list := tr.SetRoot(ir.ArrayType)
	for i := range 3 {
		obj := list.InsertNode("", ir.ObjectType)
		obj.Insert("alpha", ir.Uint8(uint8(i)))
		obj.Insert("beta", ir.Null())
	}
	b := encode(t, NewBinary(), tr)
	// each name is spelled once
	for _, name := range []string{"alpha", "beta"} {
		if n := countSub(b, name); n != 1 {
			t.Errorf("%q written %d times", name, n)
		}
	}
	got, err := decode(NewBinary(), b)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Root().Equal(tr.Root()) {
		t.Errorf("got %s want %s", got.Root(), tr.Root())
	}
}

func countSub(b []byte, s string) int {
	n := 0
	for i := 0; i+len(s) <= len(b); i++ {
		if string(b[i:i+len(s)]) == s {
			n++
		}
	}
	return n
}

func TestBinaryErrors(t *testing.T) {
	header := func(body ...byte) []byte {
		b := []byte{'O', 'B', 0x01}
		b = binary.LittleEndian.AppendUint32(b, uint32(len(body)))
		return append(b, body...)
	}
	tests := []struct {
		name string
		in   []byte
	}{
		{"magic", []byte{'X', 'B', 0x01, 1, 0, 0, 0, binObject, binEnd}},
		{"unknown kind", header(binObject, 0x0f, binEnd)},
		{"scalar root", header(binNull)},
		{"name index", header(binObject, binNull|binIndexed, 0, binEnd)},
		{"named and indexed", header(binObject, binNull|binNamed|binIndexed, 0, binEnd)},
		{"name in array", header(binArray, binNull|binNamed, 1, 'a', binEnd)},
		{"width on string", header(binObject, binString|1<<binWidth, 0, binEnd)},
		{"uint overflow", header(binArray, binUint, 0x80, 0x02, binEnd)},
		{"int8 overflow", header(binArray, binIntPos, 0x80, 0x01, binEnd)},
		{"negative zero", header(binArray, binIntNeg, 0, binEnd)},
		{"body exceeded", append(header(binArray, binNull), binEnd)},
		{"short body", append(header(binArray, binEnd), 0)[:8]},
		{"body longer than document", header(binArray, binEnd, binNull)},
		{"string past body", header(binArray, binString, 5, 'a', binEnd)},
	}
	for _, tc := range tests {
		if _, err := decode(NewBinary(), tc.in); !errors.Is(err, ir.ErrParse) {
			t.Errorf("%s: %v", tc.name, err)
		}
	}
}

func TestBinaryIntWidths(t *testing.T) {
	tr := ir.NewTree()
	root := tr.SetRoot(ir.ArrayType)
	vals := []ir.Value{
		ir.Int8(-128), ir.Int8(127), ir.Int16(-32768), ir.Int32(-1),
		ir.Int64(-9223372036854775808), ir.Uint8(255), ir.Uint16(65535),
		ir.Uint64(18446744073709551615),
	}
	for _, v := range vals {
		root.Insert("", v)
	}
	got, err := decode(NewBinary(), encode(t, NewBinary(), tr))
	if err != nil {
		t.Fatal(err)
	}
	for i, f := range got.Root().Fields() {
		if f.Value.Type() != vals[i].Type() || f.Value.Word() != vals[i].Word() {
			t.Errorf("%d: got %s %s, want %s %s", i, f.Value.Type(), f.Value, vals[i].Type(), vals[i])
		}
	}
}
