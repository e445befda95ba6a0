package main

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/signadot/odoc/ir"

	"github.com/scott-cotton/cli"
)

func dump(cfg *DumpConfig, cc *cli.Context, args []string) error {
	args, err := cfg.Dump.Parse(cc, args)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		args = []string{"-"}
	}
	colors := cfg.colors(cc.Out)
	for i, file := range args {
		if err := dumpFile(cfg, cc, colors, file); err != nil {
			return err
		}
		if i < len(args)-1 {
			if _, err := cc.Out.Write([]byte("\n---\n")); err != nil {
				return err
			}
		}
	}
	return nil
}

func dumpFile(cfg *DumpConfig, cc *cli.Context, colors *Colors, file string) error {
	d, err := readObjFile(cc, file)
	if err != nil {
		return err
	}
	if cfg.Hex {
		_, err := io.WriteString(cc.Out, hex.Dump(d))
		return err
	}
	tr, err := cfg.loadTree(cfg.inputFor(file), d)
	if err != nil {
		return fmt.Errorf("error processing %s: %w", file, err)
	}
	return dumpTree(cc.Out, tr, colors)
}

// dumpTree writes tr one field per line, each leaf with its type.
func dumpTree(w io.Writer, tr *ir.Tree, colors *Colors) error {
	root := tr.Root()
	if root == nil {
		return fmt.Errorf("%w: empty document", ir.ErrLookup)
	}
	return dumpField(w, ir.Field{Node: root}, colors)
}

func dumpField(w io.Writer, f ir.Field, colors *Colors) error {
	bw := bufio.NewWriter(w)
	d := &dumper{w: bw, colors: colors}
	if f.IsNode() {
		if err := d.scope(f.Node, 0); err != nil {
			return err
		}
	} else {
		d.value(f.Value)
	}
	bw.WriteByte('\n')
	return bw.Flush()
}

type dumper struct {
	w      *bufio.Writer
	colors *Colors
}

func (d *dumper) scope(n *ir.Node, depth int) error {
	open, closer := "{", "}"
	if n.IsArray() {
		open, closer = "[", "]"
	}
	d.w.WriteString(d.colors.Tag("%s", n.Kind()))
	d.w.WriteString(" " + d.colors.Sep("%s", open))
	empty := true
	for _, f := range n.Fields() {
		empty = false
		d.w.WriteByte('\n')
		d.w.WriteString(strings.Repeat("  ", depth+1))
		if n.IsObject() {
			d.w.WriteString(d.colors.Field("%s", strconv.Quote(f.Name.String())))
			d.w.WriteString(d.colors.Sep(":") + " ")
		}
		if f.IsNode() {
			if err := d.scope(f.Node, depth+1); err != nil {
				return err
			}
			continue
		}
		d.value(f.Value)
	}
	if err := n.Tree().Err(); err != nil {
		return err
	}
	if !empty {
		d.w.WriteByte('\n')
		d.w.WriteString(strings.Repeat("  ", depth))
	}
	d.w.WriteString(d.colors.Sep("%s", closer))
	return nil
}

func (d *dumper) value(v ir.Value) {
	t := v.Type()
	d.w.WriteString(d.colors.Tag("%s", t) + " ")
	d.w.WriteString(d.colors.Value[t]("%s", v))
}
