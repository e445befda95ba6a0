package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/scott-cotton/cli"
	"github.com/signadot/odoc/debug"
	"github.com/signadot/odoc/format"
	"github.com/signadot/odoc/ir"
)

func jsonTree(t *testing.T, s string) *ir.Tree {
	t.Helper()
	cfg := &MainConfig{}
	tr, err := cfg.loadTree(input{format: format.JSONFormat}, []byte(s))
	if err != nil {
		t.Fatal(err)
	}
	return tr
}

func TestInputFor(t *testing.T) {
	xml := format.XMLFormat
	tests := []struct {
		path string
		cfg  MainConfig
		want input
	}{
		{"-", MainConfig{}, input{format: format.JSONFormat}},
		{"a.msgpack", MainConfig{}, input{format: format.MsgPackFormat}},
		{"dir.obin/a.bson", MainConfig{}, input{format: format.BSONFormat}},
		{"a.yml", MainConfig{}, input{yaml: true}},
		{"a.yaml", MainConfig{}, input{yaml: true}},
		{"a.json", MainConfig{InFormat: &xml}, input{format: format.XMLFormat}},
		{"a.json", MainConfig{Y: true}, input{yaml: true}},
		{"a.txt", MainConfig{}, input{format: format.JSONFormat}},
	}
	for _, tc := range tests {
		if got := tc.cfg.inputFor(tc.path); got != tc.want {
			t.Errorf("%s: got %+v want %+v", tc.path, got, tc.want)
		}
	}
}

func TestLoadYAML(t *testing.T) {
	in := `
b: [x, true]
a: 1
c: null
f: 1.5
neg: -2
`
	cfg := &MainConfig{}
	tr, err := cfg.loadTree(input{yaml: true}, []byte(in))
	if err != nil {
		t.Fatal(err)
	}
	want := `{"a":1,"b":["x",true],"c":null,"f":1.5,"neg":-2}`
	if diff := cmp.Diff(want, tr.Root().String()); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	if _, err := cfg.loadTree(input{yaml: true}, []byte("a: [")); !errors.Is(err, ir.ErrParse) {
		t.Errorf("bad yaml: %v", err)
	}
}

func TestConvert(t *testing.T) {
	tr := jsonTree(t, `{"a":[1,2.5,"s"],"b":{"c":null}}`)
	cfg := &MainConfig{}
	var buf bytes.Buffer
	if err := cfg.writeTree(&buf, tr, format.MsgPackFormat); err != nil {
		t.Fatal(err)
	}
	back, err := cfg.loadTree(input{format: format.MsgPackFormat}, buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if !back.Root().Equal(tr.Root()) {
		t.Errorf("got %s want %s", back.Root(), tr.Root())
	}

	buf.Reset()
	if err := cfg.writeTree(&buf, back, format.JSONFormat); err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); got != `{"a":[1,2.5,"s"],"b":{"c":null}}`+"\n" {
		t.Errorf("json %q", got)
	}

	buf.Reset()
	cfg = &MainConfig{Root: "doc", Item: "li"}
	if err := cfg.writeTree(&buf, jsonTree(t, `[1]`), format.XMLFormat); err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); got != "<doc><li>1</li></doc>\n" {
		t.Errorf("xml %q", got)
	}
}

func TestDumpTree(t *testing.T) {
	tr := jsonTree(t, `{"a":5,"b":[true,"x"],"c":{}}`)
	var buf bytes.Buffer
	if err := dumpTree(&buf, tr, NoColors()); err != nil {
		t.Fatal(err)
	}
	want := `Object {
  "a": I64 5
  "b": Array [
    Bool true
    String "x"
  ]
  "c": Object {}
}
`
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestVerifyTree(t *testing.T) {
	tr := jsonTree(t, `{"a":5,"b":[true,"x",-1.25],"c":{"d":null}}`)
	cfg := &VerifyConfig{MainConfig: &MainConfig{}}
	formats, err := parseFormats(defaultFormats)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	ok, err := cfg.verifyTree(&buf, tr, formats, NoColors())
	if err != nil {
		t.Fatal(err)
	}
	if !ok || strings.Count(buf.String(), " ok ") != 4 {
		t.Errorf("verify failed:\n%s", buf.String())
	}

	buf.Reset()
	ok, err = cfg.verifyTree(&buf, tr, []format.Format{format.XMLFormat}, NoColors())
	if err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if ok || !strings.HasPrefix(out, "xml      differs\n") {
		t.Fatalf("xml verified:\n%s", out)
	}
	for _, line := range []string{`-   "a": 5,`, `+   "a": "5",`, `  {`} {
		if !strings.Contains(out, line+"\n") {
			t.Errorf("missing %q in\n%s", line, out)
		}
	}
}

func TestVerifyLenient(t *testing.T) {
	tr := ir.NewTree()
	root := tr.SetRoot(ir.ObjectType)
	root.Insert("bin", ir.Binary([]byte{1, 2}))
	root.Insert("s", ir.String("x"))
	xml := []format.Format{format.XMLFormat}

	cfg := &VerifyConfig{MainConfig: &MainConfig{}}
	var buf bytes.Buffer
	ok, err := cfg.verifyTree(&buf, tr, xml, NoColors())
	if err != nil {
		t.Fatal(err)
	}
	if ok || !strings.Contains(buf.String(), "same json") {
		t.Errorf("strict:\n%s", buf.String())
	}
	cfg.Lenient = true
	buf.Reset()
	if ok, _ := cfg.verifyTree(&buf, tr, xml, NoColors()); !ok {
		t.Errorf("lenient:\n%s", buf.String())
	}
}

func TestVerifyEncodeError(t *testing.T) {
	tr := ir.NewTree()
	tr.SetRoot(ir.ObjectType).Insert("big", ir.Uint64(1<<63))
	cfg := &VerifyConfig{MainConfig: &MainConfig{}}
	var buf bytes.Buffer
	ok, err := cfg.verifyTree(&buf, tr, []format.Format{format.BSONFormat}, NoColors())
	if err != nil {
		t.Fatal(err)
	}
	if ok || !strings.HasPrefix(buf.String(), "bson     encode: ") {
		t.Errorf("got %v:\n%s", ok, buf.String())
	}
}

func TestDiffText(t *testing.T) {
	got := diffText("a\nb\nc\n", "a\nx\nc\n", NoColors())
	want := "  a\n- b\n+ x\n  c\n"
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestBenchTree(t *testing.T) {
	tr := jsonTree(t, `{"a":[1,2,3],"s":"text"}`)
	cfg := &BenchConfig{MainConfig: &MainConfig{}, N: 2, Verbose: true}
	var buf bytes.Buffer
	if err := cfg.benchTree(&buf, tr, format.AllFormats()); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, f := range format.AllFormats() {
		if !strings.Contains(out, f.String()+" ") {
			t.Errorf("no line for %s:\n%s", f, out)
		}
	}
	if strings.Count(out, "nodes ") != len(format.AllFormats()) {
		t.Errorf("verbose stats missing:\n%s", out)
	}
}

func TestParseFormats(t *testing.T) {
	got, err := parseFormats("obin, j,,x")
	if err != nil {
		t.Fatal(err)
	}
	want := []format.Format{format.BinaryFormat, format.JSONFormat, format.XMLFormat}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	for _, in := range []string{"", " , ", "obin,nope"} {
		if _, err := parseFormats(in); !errors.Is(err, cli.ErrUsage) {
			t.Errorf("%q: %v", in, err)
		}
	}
}

func TestColorsOffTerminal(t *testing.T) {
	cfg := &MainConfig{}
	c := cfg.colors(&bytes.Buffer{})
	if got := c.Field("%s", "x") + c.Value[ir.StringType]("y"); got != "xy" {
		t.Errorf("got %q", got)
	}
}

func TestGetLazy(t *testing.T) {
	cfg := &MainConfig{}
	in := `{"a":{"x":1},"b":[1,2,{"c":"d"}],"z":true}`
	tr, err := cfg.openTree(input{format: format.JSONFormat}, []byte(in))
	if err != nil {
		t.Fatal(err)
	}
	f, err := tr.Root().GetPath(queryPath("b[2].c"))
	if err != nil {
		t.Fatal(err)
	}
	if s, _ := f.Value.Str(); s != "d" {
		t.Errorf("got %s", f.Value)
	}
	if st := tr.Root().State(); st == ir.Parsed {
		t.Errorf("root read to the end: %s", st)
	}
	var buf bytes.Buffer
	if err := dumpField(&buf, f, NoColors()); err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); got != "String \"d\"\n" {
		t.Errorf("dump %q", got)
	}
	if _, err := tr.Root().GetPath(queryPath("$.nope")); !errors.Is(err, ir.ErrLookup) {
		t.Errorf("missing field: %v", err)
	}
}

func TestQueryPath(t *testing.T) {
	for in, want := range map[string]string{
		"":       "",
		"a.b":    "$.a.b",
		".a":     "$.a",
		"[0]":    "$[0]",
		"$.a[1]": "$.a[1]",
	} {
		if got := queryPath(in); got != want {
			t.Errorf("%q: got %q want %q", in, got, want)
		}
	}
}

func TestSetDebug(t *testing.T) {
	defer debug.Set(false, false, false, false)
	if err := setDebug("parse, lazy"); err != nil {
		t.Fatal(err)
	}
	if !debug.Parse() || !debug.Lazy() || debug.Store() || debug.Arena() {
		t.Errorf("switches parse=%v store=%v arena=%v lazy=%v", debug.Parse(), debug.Store(), debug.Arena(), debug.Lazy())
	}
	if err := setDebug("all"); err != nil || !debug.Store() || !debug.Arena() {
		t.Errorf("all: %v", err)
	}
	if err := setDebug("parse,loud"); !errors.Is(err, cli.ErrUsage) {
		t.Errorf("unknown switch: %v", err)
	}
}
