package main

import (
	"fmt"
	"io"
	"time"

	"github.com/signadot/odoc/codec"
	"github.com/signadot/odoc/format"
	"github.com/signadot/odoc/ir"
	"github.com/signadot/odoc/token"

	"github.com/google/gops/agent"
	"github.com/scott-cotton/cli"
)

func bench(cfg *BenchConfig, cc *cli.Context, args []string) error {
	args, err := cfg.Bench.Parse(cc, args)
	if err != nil {
		return err
	}
	if cfg.N <= 0 {
		return fmt.Errorf("%w: -i must be positive, got %d", cli.ErrUsage, cfg.N)
	}
	formats, err := parseFormats(cfg.Formats)
	if err != nil {
		return err
	}
	if cfg.Gops {
		if err := agent.Listen(agent.Options{}); err != nil {
			fmt.Fprintf(cc.Out, "gops agent failed: %v\n", err)
		} else {
			defer agent.Close()
		}
	}
	tr, err := cfg.loadArg(cc, args)
	if err != nil {
		return err
	}
	return cfg.benchTree(cc.Out, tr, formats)
}

type benchResult struct {
	format format.Format
	size   int
	encode time.Duration
	decode time.Duration
	stats  ir.Stats
}

func (cfg *BenchConfig) benchTree(w io.Writer, tr *ir.Tree, formats []format.Format) error {
	for _, f := range formats {
		res, err := cfg.benchFormat(tr, f)
		if err != nil {
			return fmt.Errorf("%s: %w", f, err)
		}
		fmt.Fprintf(w, "%-8s %8d bytes  encode %10v/op  decode %10v/op\n",
			f, res.size, res.encode, res.decode)
		if cfg.Verbose {
			st := res.stats
			fmt.Fprintf(w, "         nodes %d fields %d names %d arena segments %d reserved %d used %d free %d\n",
				st.Nodes, st.Fields, st.Names, st.Arena.Segments, st.Arena.Reserved, st.Arena.Used, st.Arena.Free)
		}
	}
	return nil
}

func (cfg *BenchConfig) benchFormat(tr *ir.Tree, f format.Format) (*benchResult, error) {
	c, err := codec.New(f, cfg.codecOpts()...)
	if err != nil {
		return nil, err
	}
	s := token.NewBufferSink()
	start := time.Now()
	for range cfg.N {
		s.Reset()
		if err := tr.Encode(c, s); err != nil {
			return nil, err
		}
	}
	res := &benchResult{
		format: f,
		size:   len(s.Bytes()),
		encode: time.Since(start) / time.Duration(cfg.N),
	}
	data := s.Bytes()
	back := ir.NewTree()
	start = time.Now()
	for range cfg.N {
		if err := back.Decode(c, token.NewSourceBytes(data)); err != nil {
			return nil, err
		}
	}
	res.decode = time.Since(start) / time.Duration(cfg.N)
	res.stats = back.Stats()
	return res, nil
}
