package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/signadot/odoc/codec"
	"github.com/signadot/odoc/format"
	"github.com/signadot/odoc/ir"
	"github.com/signadot/odoc/token"

	jsonpatch "github.com/evanphx/json-patch"
	"github.com/scott-cotton/cli"
	diffpatch "github.com/sergi/go-diff/diffmatchpatch"
)

func verify(cfg *VerifyConfig, cc *cli.Context, args []string) error {
	args, err := cfg.Verify.Parse(cc, args)
	if err != nil {
		cfg.Verify.Usage(cc, err)
		return cli.ExitCodeErr(1)
	}
	formats, err := parseFormats(cfg.Formats)
	if err != nil {
		return err
	}
	tr, err := cfg.loadArg(cc, args)
	if err != nil {
		return err
	}
	ok, err := cfg.verifyTree(cc.Out, tr, formats, cfg.colors(cc.Out))
	if err != nil {
		return err
	}
	if !ok {
		return cli.ExitCodeErr(1)
	}
	return nil
}

// verifyTree round trips tr through each format, reporting one line per
// format and a diff of the json renderings for each mismatch.
func (cfg *VerifyConfig) verifyTree(w io.Writer, tr *ir.Tree, formats []format.Format, colors *Colors) (bool, error) {
	allOK := true
	want := jsonText(tr)
	for _, f := range formats {
		c, err := codec.New(f, cfg.codecOpts()...)
		if err != nil {
			return false, err
		}
		s := token.NewBufferSink()
		if err := tr.Encode(c, s); err != nil {
			allOK = false
			fmt.Fprintf(w, "%-8s %s: %v\n", f, colors.Value[ir.NullType]("encode"), err)
			continue
		}
		back := ir.NewTree()
		if err := back.Decode(c, token.NewSourceBytes(s.Bytes())); err != nil {
			allOK = false
			fmt.Fprintf(w, "%-8s %s: %v\n", f, colors.Value[ir.NullType]("decode"), err)
			continue
		}
		if back.Root().Hash() == tr.Root().Hash() && back.Root().Equal(tr.Root()) {
			fmt.Fprintf(w, "%-8s %s %d bytes\n", f, colors.Value[ir.StringType]("ok"), len(s.Bytes()))
			continue
		}
		got := jsonText(back)
		if jsonpatch.Equal([]byte(want), []byte(got)) {
			fmt.Fprintf(w, "%-8s %s %d bytes\n", f, colors.Value[ir.BoolType]("same json"), len(s.Bytes()))
			if !cfg.Lenient {
				allOK = false
			}
			continue
		}
		allOK = false
		fmt.Fprintf(w, "%-8s %s\n", f, colors.Value[ir.NullType]("differs"))
		io.WriteString(w, diffText(want, got, colors))
	}
	return allOK, nil
}

// jsonText renders tr as indented json, falling back to the diagnostic
// form for trees json cannot hold.
func jsonText(tr *ir.Tree) string {
	s := token.NewBufferSink()
	if err := tr.Encode(codec.NewJSON(codec.Indent(2)), s); err != nil {
		return tr.Root().String() + "\n"
	}
	return string(s.Bytes())
}

func diffText(a, b string, colors *Colors) string {
	dmp := diffpatch.New()
	ca, cb, lines := dmp.DiffLinesToChars(a, b)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(ca, cb, false), lines)
	var sb strings.Builder
	for _, d := range diffs {
		prefix, paint := "  ", colorDefault
		switch d.Type {
		case diffpatch.DiffInsert:
			prefix, paint = "+ ", colors.Value[ir.StringType]
		case diffpatch.DiffDelete:
			prefix, paint = "- ", colors.Value[ir.NullType]
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			sb.WriteString(paint("%s", prefix+strings.TrimSuffix(line, "\n")))
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}
