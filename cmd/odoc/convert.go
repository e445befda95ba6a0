package main

import (
	"fmt"
	"io"

	"github.com/signadot/odoc/codec"
	"github.com/signadot/odoc/format"
	"github.com/signadot/odoc/ir"
	"github.com/signadot/odoc/token"

	"github.com/scott-cotton/cli"
)

func convert(cfg *ConvertConfig, cc *cli.Context, args []string) error {
	args, err := cfg.Convert.Parse(cc, args)
	if err != nil {
		return err
	}
	tr, err := cfg.loadArg(cc, args)
	if err != nil {
		return err
	}
	return cfg.writeTree(cc.Out, tr, cfg.outFormat())
}

func (cfg *MainConfig) writeTree(w io.Writer, tr *ir.Tree, f format.Format) error {
	c, err := codec.New(f, cfg.codecOpts()...)
	if err != nil {
		return err
	}
	if err := tr.Encode(c, token.NewSink(w)); err != nil {
		return fmt.Errorf("error encoding %s: %w", f, err)
	}
	if f.Kind() == format.Text && cfg.Indent == 0 {
		_, err = w.Write([]byte{'\n'})
	}
	return err
}
