package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/signadot/odoc/codec"
	"github.com/signadot/odoc/debug"
	"github.com/signadot/odoc/format"

	"github.com/scott-cotton/cli"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

const defaultFormats = "obin,bson,msgpack,json"

type MainConfig struct {
	Color  bool   `cli:"name=color desc='output with color'"`
	Indent int    `cli:"name=indent desc='indent json and xml output by n spaces'"`
	Y      bool   `cli:"name=y aliases=yaml desc='read input as yaml'"`
	Root   string `cli:"name=root desc='xml root element name'"`
	Item   string `cli:"name=item desc='xml array element name'"`
	Debug  string `cli:"name=debug desc='comma separated debug switches: parse,store,arena,lazy'"`

	InFormat, OutFormat *format.Format

	Out      string
	CloseOut func() error

	Main *cli.Command
}

func (cfg *MainConfig) fmtFunc(fps ...**format.Format) cli.FuncOpt {
	return cli.FuncOpt(func(_ *cli.Context, v string) (any, error) {
		f, err := format.ParseFormat(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", cli.ErrUsage, err)
		}
		for _, fp := range fps {
			*fp = &f
		}
		return f, nil
	})
}

func (cfg *MainConfig) codecOpts() []codec.Option {
	res := []codec.Option{codec.Indent(cfg.Indent)}
	if cfg.Root != "" {
		res = append(res, codec.RootName(cfg.Root))
	}
	if cfg.Item != "" {
		res = append(res, codec.ItemName(cfg.Item))
	}
	return res
}

// input describes how a file is read: yaml is decoded into a host value
// first, everything else goes through a codec.
type input struct {
	yaml   bool
	format format.Format
}

func (cfg *MainConfig) inputFor(path string) input {
	if cfg.Y {
		return input{yaml: true}
	}
	if cfg.InFormat != nil {
		return input{format: *cfg.InFormat}
	}
	ext := filepath.Ext(path)
	switch ext {
	case ".yaml", ".yml":
		return input{yaml: true}
	}
	if f, ok := format.FromSuffix(ext); ok {
		return input{format: f}
	}
	return input{format: format.JSONFormat}
}

func (cfg *MainConfig) outFormat() format.Format {
	if cfg.OutFormat != nil {
		return *cfg.OutFormat
	}
	return format.JSONFormat
}

func (cfg *MainConfig) colors(w io.Writer) *Colors {
	if cfg.Color {
		color.NoColor = false
		return NewColors()
	}
	if cfg.Main != nil {
		for _, opt := range cfg.Main.Opts {
			if opt.Name != "color" {
				continue
			}
			if opt.Value != nil {
				return NoColors()
			}
			break
		}
	}
	f, ok := w.(*os.File)
	if !ok {
		return NoColors()
	}
	if isatty.IsTerminal(f.Fd()) {
		return NewColors()
	}
	return NoColors()
}

func parseFormats(list string) ([]format.Format, error) {
	var res []format.Format
	for _, name := range strings.Split(list, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		f, err := format.ParseFormat(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", cli.ErrUsage, err)
		}
		res = append(res, f)
	}
	if len(res) == 0 {
		return nil, fmt.Errorf("%w: no formats in %q", cli.ErrUsage, list)
	}
	return res, nil
}

// setDebug turns on the named debug switches.
func setDebug(list string) error {
	var parse, store, arena, lazy bool
	for _, name := range strings.Split(list, ",") {
		switch strings.TrimSpace(name) {
		case "":
		case "parse":
			parse = true
		case "store":
			store = true
		case "arena":
			arena = true
		case "lazy":
			lazy = true
		case "all":
			parse, store, arena, lazy = true, true, true, true
		default:
			return fmt.Errorf("%w: unknown debug switch %q", cli.ErrUsage, name)
		}
	}
	debug.Set(parse, store, arena, lazy)
	return nil
}

type ConvertConfig struct {
	*MainConfig

	Convert *cli.Command
}

type DumpConfig struct {
	*MainConfig
	Hex  bool `cli:"name=x desc='hex dump the input bytes'"`
	Dump *cli.Command
}

type GetConfig struct {
	*MainConfig

	Get *cli.Command
}

type VerifyConfig struct {
	*MainConfig
	Formats string `cli:"name=f desc='comma separated formats to round trip'"`
	Lenient bool   `cli:"name=lenient desc='accept results whose json renderings are equal'"`

	Verify *cli.Command
}

type BenchConfig struct {
	*MainConfig
	N       int    `cli:"name=i desc='iterations per format'"`
	Verbose bool   `cli:"name=v desc='print tree memory stats'"`
	Gops    bool   `cli:"name=gops desc='start a gops agent while running'"`
	Formats string `cli:"name=f desc='comma separated formats to time'"`

	Bench *cli.Command
}
