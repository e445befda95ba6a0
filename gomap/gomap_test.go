package gomap

import (
	"bytes"
	"errors"
	"strconv"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/signadot/odoc/codec"
	"github.com/signadot/odoc/ir"
	"github.com/signadot/odoc/token"
)

type point struct {
	X, Y int32
}

type Embedded struct {
	Level int `odoc:"level"`
}

type record struct {
	Name    string           `odoc:"name"`
	Age     uint8            `odoc:"age"`
	Score   float64          `odoc:"score"`
	Ratio   float32
	Admin   bool             `odoc:"admin"`
	Tags    []string         `odoc:"tags"`
	Attrs   map[string]int64 `odoc:"attrs"`
	ByID    map[int]string   `odoc:"by_id"`
	Raw     []byte           `odoc:"raw"`
	Fixed   [2]int16         `odoc:"fixed"`
	At      *point           `odoc:"at"`
	Missing *point           `odoc:"missing"`
	Note    string           `odoc:"note,omitempty"`
	When    time.Time        `odoc:"when"`
	Skip    int              `odoc:"-"`
	Embedded
}

func sampleRecord() record {
	return record{
		Name:     "ada",
		Age:      36,
		Score:    1.5,
		Ratio:    0.25,
		Admin:    true,
		Tags:     []string{"x", "y"},
		Attrs:    map[string]int64{"b": -2, "a": 1},
		ByID:     map[int]string{7: "seven", -1: "minus one"},
		Raw:      []byte{0, 1, 2},
		Fixed:    [2]int16{-300, 300},
		At:       &point{X: 1, Y: -1},
		When:     time.Date(2024, 5, 6, 7, 8, 9, 10, time.UTC),
		Embedded: Embedded{Level: 3},
	}
}

func allCodecs() []func() ir.Codec {
	return []func() ir.Codec{
		func() ir.Codec { return codec.NewBinary() },
		func() ir.Codec { return codec.NewBSON() },
		func() ir.Codec { return codec.NewMsgPack() },
		func() ir.Codec { return codec.NewJSON() },
		func() ir.Codec { return codec.NewXML() },
	}
}

func TestRecordRoundTrip(t *testing.T) {
	want := sampleRecord()
	want.Skip = 9
	for _, mk := range allCodecs() {
		c := mk()
		b, err := Marshal(want, c)
		if err != nil {
			t.Fatalf("%s: %v", c.Format(), err)
		}
		got, err := Unmarshal[record](b, mk())
		if err != nil {
			t.Fatalf("%s: %v", c.Format(), err)
		}
		exp := want
		exp.Skip = 0
		if diff := cmp.Diff(exp, got); diff != "" {
			t.Errorf("%s (-want +got):\n%s", c.Format(), diff)
		}
	}
}

func TestRecordLayout(t *testing.T) {
	tr := ir.NewTree()
	r := sampleRecord()
	r.When = time.Time{}
	if err := ToTree(tr, r); err != nil {
		t.Fatal(err)
	}
	want := `{"name":"ada","age":36,"score":1.5,"Ratio":0.25,"admin":true,"tags":["x","y"],` +
		`"attrs":{"a":1,"b":-2},"by_id":[{"key":-1,"value":"minus one"},{"key":7,"value":"seven"}],` +
		`"raw":b64:AAEC,"fixed":[-300,300],"at":{"X":1,"Y":-1},"missing":null,` +
		`"when":"0001-01-01T00:00:00Z","level":3}`
	if diff := cmp.Diff(want, tr.Root().String()); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestStoreRestoreStream(t *testing.T) {
	want := sampleRecord()
	var buf bytes.Buffer
	if err := Store(&buf, want, codec.NewMsgPack()); err != nil {
		t.Fatal(err)
	}
	got, err := Restore[record](iotest.OneByteReader(&buf), codec.NewMsgPack())
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestWrappedRoots(t *testing.T) {
	tests := []struct {
		v    any
		want string
	}{
		{42, `[42]`},
		{"hi", `["hi"]`},
		{[]byte{1, 2}, `["AQI="]`},
		{nil, `[null]`},
		{[]int{1, 2}, `[1,2]`},
		{map[string]bool{"t": true}, `{"t":true}`},
	}
	for _, tc := range tests {
		b, err := Marshal(tc.v, codec.NewJSON())
		if err != nil {
			t.Fatal(err)
		}
		if string(b) != tc.want {
			t.Errorf("%#v: got %s want %s", tc.v, b, tc.want)
		}
	}
	if x, err := Unmarshal[int]([]byte(`[42]`), codec.NewJSON()); err != nil || x != 42 {
		t.Errorf("int: %d %v", x, err)
	}
	if x, err := Unmarshal[int]([]byte(`[null]`), codec.NewJSON()); err != nil || x != 0 {
		t.Errorf("null int: %d %v", x, err)
	}
	// BSON reads root arrays back as objects
	b, err := Marshal(uint16(7), codec.NewBSON())
	if err != nil {
		t.Fatal(err)
	}
	if x, err := Unmarshal[uint16](b, codec.NewBSON()); err != nil || x != 7 {
		t.Errorf("bson uint16: %d %v", x, err)
	}
	b, err = Marshal([]string{"a", "b"}, codec.NewBSON())
	if err != nil {
		t.Fatal(err)
	}
	if xs, err := Unmarshal[[]string](b, codec.NewBSON()); err != nil || !cmp.Equal(xs, []string{"a", "b"}) {
		t.Errorf("bson slice: %v %v", xs, err)
	}
}

type sharedNode struct {
	Name string
	Next *sharedNode `odoc:"next,shared"`
}

type sharedPair struct {
	A *sharedNode `odoc:"a,shared"`
	B *sharedNode `odoc:"b,shared"`
}

func TestSharedPointers(t *testing.T) {
	n := &sharedNode{Name: "x"}
	n.Next = n
	v := sharedPair{A: n, B: n}

	tr := ir.NewTree()
	if err := ToTree(tr, v); err != nil {
		t.Fatal(err)
	}
	want := `{"a":{"#":0,"v":{"Name":"x","next":{"#":0}}},"b":{"#":0}}`
	if diff := cmp.Diff(want, tr.Root().String()); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}

	for _, mk := range allCodecs()[:4] {
		c := mk()
		b, err := Marshal(v, c)
		if err != nil {
			t.Fatalf("%s: %v", c.Format(), err)
		}
		got, err := Unmarshal[sharedPair](b, mk())
		if err != nil {
			t.Fatalf("%s: %v", c.Format(), err)
		}
		if got.A == nil || got.A != got.B || got.A.Next != got.A || got.A.Name != "x" {
			t.Errorf("%s: identity lost: %+v", c.Format(), got)
		}
	}
	// "#" is not an element name
	if _, err := Marshal(v, codec.NewXML()); !errors.Is(err, ir.ErrType) {
		t.Errorf("xml: %v", err)
	}
}

func TestSharePointersOption(t *testing.T) {
	type pair struct {
		L, R *point
	}
	p := &point{X: 1, Y: 2}
	b, err := Marshal(pair{p, p}, codec.NewBinary())
	if err != nil {
		t.Fatal(err)
	}
	got, err := Unmarshal[pair](b, codec.NewBinary())
	if err != nil {
		t.Fatal(err)
	}
	if got.L == got.R || *got.L != *got.R {
		t.Errorf("unshared pointers: %v %v", got.L, got.R)
	}

	b, err = Marshal(pair{p, p}, codec.NewBinary(), SharePointers())
	if err != nil {
		t.Fatal(err)
	}
	got, err = Unmarshal[pair](b, codec.NewBinary(), SharePointers())
	if err != nil {
		t.Fatal(err)
	}
	if got.L != got.R || *got.L != *p {
		t.Errorf("shared pointers: %v %v", got.L, got.R)
	}
}

func TestCircularReference(t *testing.T) {
	type person struct {
		Name string
		Boss *person
	}
	p := &person{Name: "Alice"}
	p.Boss = p
	_, err := Marshal(p, codec.NewJSON())
	var me *MarshalError
	if !errors.As(err, &me) || !errors.Is(err, ir.ErrType) {
		t.Fatalf("got %v", err)
	}
	if me.FieldPath != "Boss" || !strings.Contains(err.Error(), "circular") {
		t.Errorf("got %v", err)
	}
	if !strings.Contains(err.Error(), "previously seen at root") {
		t.Errorf("got %v", err)
	}

	// a root reached twice through a pointer chain is one object
	pp := &p
	if _, err := Marshal(pp, codec.NewJSON()); !errors.Is(err, ir.ErrType) {
		t.Errorf("pointer to pointer: %v", err)
	}
	q := &person{Name: "Bob", Boss: &person{Name: "Alice"}}
	if _, err := Marshal(q, codec.NewJSON()); err != nil {
		t.Errorf("acyclic: %v", err)
	}
}

func TestSharedRootIsCopied(t *testing.T) {
	type person struct {
		Name string
		Boss *person
	}
	p := &person{Name: "Alice"}
	p.Boss = p
	b, err := Marshal(p, codec.NewJSON(), SharePointers())
	if err != nil {
		t.Fatal(err)
	}
	got, err := Unmarshal[*person](b, codec.NewJSON(), SharePointers())
	if err != nil {
		t.Fatal(err)
	}
	if got.Boss == got || got.Boss.Boss != got.Boss || got.Boss.Name != "Alice" {
		t.Errorf("got %p boss %p boss.boss %p", got, got.Boss, got.Boss.Boss)
	}
}

type shape interface {
	Area() float64
}

type square struct {
	Side float64 `odoc:"side"`
}

func (s square) Area() float64 { return s.Side * s.Side }

type circle struct {
	R float64 `odoc:"r"`
}

func (c *circle) Area() float64 { return 3 * c.R * c.R }

type triangle struct{}

func (triangle) Area() float64 { return 0 }

func init() {
	Register("square", square{})
	Register("circle", (*circle)(nil))
}

func TestInterfaces(t *testing.T) {
	type drawing struct {
		Shapes []shape `odoc:"shapes"`
		Extra  any     `odoc:"extra"`
	}
	want := drawing{
		Shapes: []shape{square{Side: 2}, &circle{R: 1}, nil},
		Extra:  map[string]any{"k": "v"},
	}
	b, err := Marshal(want, codec.NewJSON())
	if err != nil {
		t.Fatal(err)
	}
	doc := `{"shapes":[{"type":"square","value":{"side":2.0}},{"type":"circle","value":{"r":1.0}},null],"extra":{"k":"v"}}`
	if string(b) != doc {
		t.Errorf("got %s", b)
	}
	got, err := Unmarshal[drawing](b, codec.NewJSON())
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}

	_, err = Marshal(drawing{Shapes: []shape{triangle{}}}, codec.NewJSON())
	var me *MarshalError
	if !errors.As(err, &me) || me.FieldPath != "shapes[0]" || !errors.Is(err, ir.ErrType) {
		t.Errorf("unregistered: %v", err)
	}
	_, err = Unmarshal[drawing]([]byte(`{"shapes":[{"side":1}]}`), codec.NewJSON())
	if !errors.Is(err, ir.ErrType) {
		t.Errorf("untagged interface: %v", err)
	}
}

func TestRegisterConflicts(t *testing.T) {
	for _, f := range []func(){
		func() { Register("square", &square{}) },
		func() { Register("box", square{}) },
		func() { Register("", 1) },
	} {
		func() {
			defer func() {
				if recover() == nil {
					t.Errorf("no panic")
				}
			}()
			f()
		}()
	}
	Register("square", square{})
}

func TestAnyKeepsTypes(t *testing.T) {
	want := map[string]any{
		"i8":  int8(-1),
		"u32": uint32(7),
		"s":   "x",
		"b":   []byte{9},
		"l":   []any{float32(1.5), nil, true},
		"m":   map[string]any{"f": 2.5},
	}
	b, err := Marshal(want, codec.NewBinary())
	if err != nil {
		t.Fatal(err)
	}
	got, err := Unmarshal[any](b, codec.NewBinary())
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(any(want), got); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

type celsius float64

func (c celsius) MarshalTree(n *ir.Node, name string) error {
	n.Insert(name, ir.String(strconv.FormatFloat(float64(c), 'f', -1, 64)+"C"))
	return nil
}

func (c *celsius) UnmarshalTree(f ir.Field) error {
	s, err := f.Value.Str()
	if err != nil {
		return err
	}
	x, err := strconv.ParseFloat(strings.TrimSuffix(s, "C"), 64)
	*c = celsius(x)
	return err
}

func TestMethods(t *testing.T) {
	type reading struct {
		T  celsius    `odoc:"t"`
		At *time.Time `odoc:"at"`
	}
	at := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	want := reading{T: 21.5, At: &at}
	b, err := Marshal(want, codec.NewJSON())
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"t":"21.5C","at":"2020-01-02T03:04:05Z"}` {
		t.Errorf("got %s", b)
	}
	got, err := Unmarshal[reading](b, codec.NewJSON())
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestTags(t *testing.T) {
	type tagged struct {
		A int    `odoc:"a,omitempty"`
		B string `odoc:"-"`
		C int
		D int `json:"delta" odoc:"d"`
		Embedded
	}
	tr := ir.NewTree()
	if err := ToTree(tr, tagged{B: "b", C: 3, D: 4, Embedded: Embedded{Level: 5}}); err != nil {
		t.Fatal(err)
	}
	if s := tr.Root().String(); s != `{"C":3,"d":4,"level":5}` {
		t.Errorf("odoc tags: %s", s)
	}
	if err := ToTree(tr, tagged{A: 1, D: 4}, TagName("json")); err != nil {
		t.Fatal(err)
	}
	if s := tr.Root().String(); s != `{"A":1,"B":"","C":0,"delta":4,"Level":0}` {
		t.Errorf("json tags: %s", s)
	}
}

func TestUnmarshalErrors(t *testing.T) {
	type small struct {
		A int8 `odoc:"a"`
	}
	type unsigned struct {
		A uint `odoc:"a"`
	}
	type fixed struct {
		A [2]int `odoc:"a"`
	}
	type nested struct {
		Outer struct {
			List []int `odoc:"list"`
		} `odoc:"outer"`
	}
	tests := []struct {
		name string
		in   string
		f    func([]byte) error
		path string
		want error
	}{
		{"overflow", `{"a":300}`, decodeAs[small], "a", ir.ErrType},
		{"negative", `{"a":-1}`, decodeAs[unsigned], "a", ir.ErrType},
		{"scope for value", `{"a":[1]}`, decodeAs[small], "a", ir.ErrType},
		{"bad number text", `{"a":"x1"}`, decodeAs[small], "a", ir.ErrType},
		{"array too long", `{"a":[1,2,3]}`, decodeAs[fixed], "a", ir.ErrType},
		{"nested", `{"outer":{"list":[1,"x"]}}`, decodeAs[nested], "outer.list[1]", ir.ErrType},
		{"duplicate key", `{"k":1,"k":2}`, decodeAs[map[string]int], "k", ir.ErrLookup},
		{"missing pair key", `[{"value":1}]`, decodeAs[map[int]int], "[0]", ir.ErrLookup},
		{"object for struct", `[1]`, decodeAs[small], "", ir.ErrType},
		{"trailing data", `{"a":1} x`, decodeAs[small], "", ir.ErrParse},
	}
	for _, tc := range tests {
		err := tc.f([]byte(tc.in))
		if !errors.Is(err, tc.want) {
			t.Errorf("%s: %v", tc.name, err)
			continue
		}
		var ue *UnmarshalError
		if tc.path != "" && (!errors.As(err, &ue) || ue.FieldPath != tc.path) {
			t.Errorf("%s: path of %v", tc.name, err)
		}
	}
	if err := FromTree(ir.NewTree(), 1); !errors.Is(err, ir.ErrType) {
		t.Errorf("non pointer destination: %v", err)
	}
}

func decodeAs[T any](b []byte) error {
	_, err := Unmarshal[T](b, codec.NewJSON())
	return err
}

func TestXMLText(t *testing.T) {
	type doc struct {
		N int               `odoc:"n"`
		F float32           `odoc:"f"`
		B bool              `odoc:"b"`
		L []uint8           `odoc:"l"`
		E []int             `odoc:"e"`
		M map[string]string `odoc:"m"`
	}
	in := `<root><n>-4</n><f> 2.5 </f><b>true</b><l>AQI=</l><e></e><m><k>v</k></m></root>`
	got, err := Unmarshal[doc]([]byte(in), codec.NewXML())
	if err != nil {
		t.Fatal(err)
	}
	want := doc{N: -4, F: 2.5, B: true, L: []byte{1, 2}, E: []int{}, M: map[string]string{"k": "v"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestPasteField(t *testing.T) {
	b, err := Marshal(sampleRecord(), codec.NewBinary())
	if err != nil {
		t.Fatal(err)
	}
	tr := ir.NewTree()
	if err := tr.Open(codec.NewBinary(), token.NewSourceBytes(b)); err != nil {
		t.Fatal(err)
	}
	root := tr.Root()
	var name string
	if err := PasteField(root, "name", &name); err != nil || name != "ada" {
		t.Fatalf("name %q %v", name, err)
	}
	if root.State() == ir.Parsed {
		t.Errorf("pasting the first field read the whole document")
	}
	var attrs map[string]int64
	if err := PasteField(root, "attrs", &attrs); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(map[string]int64{"a": 1, "b": -2}, attrs); diff != "" {
		t.Errorf("attrs (-want +got):\n%s", diff)
	}
	var age int
	if err := PasteFieldAt(root, 1, &age); err != nil || age != 36 {
		t.Errorf("age %d %v", age, err)
	}
	var x int
	if err := PasteField(root, "nope", &x); !errors.Is(err, ir.ErrLookup) {
		t.Errorf("missing field: %v", err)
	}
	if err := PasteField(root, "name", &x); !errors.Is(err, ir.ErrType) {
		t.Errorf("string into int: %v", err)
	}
}
