package main

import (
	"bytes"
	"fmt"

	"github.com/signadot/odoc/codec"
	"github.com/signadot/odoc/ir"
	"github.com/signadot/odoc/token"

	"github.com/scott-cotton/cli"
)

func get(cfg *GetConfig, cc *cli.Context, args []string) error {
	args, err := cfg.Get.Parse(cc, args)
	if err != nil {
		cfg.Get.Usage(cc, err)
		return cli.ExitCodeErr(1)
	}
	if len(args) == 0 {
		return fmt.Errorf("%w: get requires one argument, an object path", cli.ErrUsage)
	}
	path := queryPath(args[0])
	if path == "" {
		return fmt.Errorf("%w: invalid query \"\"", cli.ErrUsage)
	}
	file, err := singleArg(args[1:])
	if err != nil {
		return err
	}
	d, err := readObjFile(cc, file)
	if err != nil {
		return err
	}
	tr, err := cfg.openTree(cfg.inputFor(file), d)
	if err != nil {
		return fmt.Errorf("error decoding %s: %w", file, err)
	}
	f, err := tr.Root().GetPath(path)
	if err != nil {
		return fmt.Errorf("error querying %s with %s: %w", file, path, err)
	}
	return dumpField(cc.Out, f, cfg.colors(cc.Out))
}

// queryPath accepts "a.b", ".a.b" and "$.a.b" alike.
func queryPath(p string) string {
	switch {
	case p == "":
		return ""
	case p[0] == '$':
		return p
	case p[0] == '.' || p[0] == '[':
		return "$" + p
	}
	return "$." + p
}

// openTree is loadTree without reading past the root: codec input is
// opened lazily so a query only reads what it visits.
func (cfg *MainConfig) openTree(in input, d []byte) (*ir.Tree, error) {
	if in.yaml {
		return cfg.loadTree(in, d)
	}
	c, err := codec.New(in.format, cfg.codecOpts()...)
	if err != nil {
		return nil, err
	}
	tr := ir.NewTree()
	if err := tr.Open(c, token.NewSource(bytes.NewReader(d))); err != nil {
		return nil, err
	}
	return tr, nil
}
