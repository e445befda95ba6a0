package main

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/signadot/odoc/codec"
	"github.com/signadot/odoc/gomap"
	"github.com/signadot/odoc/ir"
	"github.com/signadot/odoc/token"

	"github.com/goccy/go-yaml"
	"github.com/scott-cotton/cli"
)

// readObjFile returns the bytes of path, or of cc.In for "-".
func readObjFile(cc *cli.Context, path string) ([]byte, error) {
	var r io.Reader
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	} else {
		r = cc.In
	}
	d, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("error reading %q: %w", path, err)
	}
	return d, nil
}

// loadTree decodes d as in says.
func (cfg *MainConfig) loadTree(in input, d []byte) (*ir.Tree, error) {
	tr := ir.NewTree()
	if in.yaml {
		var v any
		if err := yaml.Unmarshal(d, &v); err != nil {
			return nil, fmt.Errorf("%w: %w", ir.ErrParse, err)
		}
		if err := gomap.ToTree(tr, v); err != nil {
			return nil, err
		}
		return tr, nil
	}
	c, err := codec.New(in.format, cfg.codecOpts()...)
	if err != nil {
		return nil, err
	}
	if err := tr.Decode(c, token.NewSource(bytes.NewReader(d))); err != nil {
		return nil, err
	}
	return tr, nil
}

func singleArg(args []string) (string, error) {
	switch len(args) {
	case 0:
		return "-", nil
	case 1:
		return args[0], nil
	}
	return "", fmt.Errorf("%w: expected at most one file, got %v", cli.ErrUsage, args)
}

func (cfg *MainConfig) loadArg(cc *cli.Context, args []string) (*ir.Tree, error) {
	path, err := singleArg(args)
	if err != nil {
		return nil, err
	}
	d, err := readObjFile(cc, path)
	if err != nil {
		return nil, err
	}
	tr, err := cfg.loadTree(cfg.inputFor(path), d)
	if err != nil {
		return nil, fmt.Errorf("error decoding %s: %w", path, err)
	}
	return tr, nil
}
