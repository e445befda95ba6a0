package main

import (
	"github.com/scott-cotton/cli"
)

func MainCommand() *cli.Command {
	cfg := &MainConfig{}
	sOpts, err := cli.StructOpts(cfg)
	if err != nil {
		panic(err)
	}
	opts := append(sOpts, []*cli.Opt{
		&cli.Opt{
			Name:        "o",
			Description: "output file (default stdout)",
			Type:        cli.NamedFuncOpt(cfg.outOpt, "(filepath)"),
		},
		&cli.Opt{
			Name:        "I",
			Aliases:     []string{"ifmt"},
			Description: "input format: obin/o, bson/b, msgpack/m, json/j, xml/x",
			Type:        cli.NamedFuncOpt(cfg.fmtFunc(&cfg.InFormat), "(format)"),
		}, &cli.Opt{
			Name:        "O",
			Aliases:     []string{"ofmt"},
			Description: "output format: obin/o, bson/b, msgpack/m, json/j, xml/x",
			Type:        cli.NamedFuncOpt(cfg.fmtFunc(&cfg.OutFormat), "(format)"),
		}}...)

	return cli.NewCommandAt(&cfg.Main, "odoc").
		WithSynopsis("odoc [opts] command [opts]").
		WithDescription("odoc converts, inspects and checks object documents.").
		WithOpts(opts...).
		WithRun(func(cc *cli.Context, args []string) error {
			return odocMain(cfg, cc, args)
		}).
		WithSubs(
			ConvertCommand(cfg),
			DumpCommand(cfg),
			GetCommand(cfg),
			VerifyCommand(cfg),
			BenchCommand(cfg))
}

func ConvertCommand(mainCfg *MainConfig) *cli.Command {
	cfg := &ConvertConfig{MainConfig: mainCfg}
	return cli.NewCommandAt(&cfg.Convert, "convert").
		WithAliases("c", "conv").
		WithSynopsis("convert [file]").
		WithDescription("decode a document and encode it in the -O format").
		WithRun(func(cc *cli.Context, args []string) error {
			return convert(cfg, cc, args)
		})
}

func DumpCommand(mainCfg *MainConfig) *cli.Command {
	cfg := &DumpConfig{MainConfig: mainCfg}
	opts, err := cli.StructOpts(cfg)
	if err != nil {
		panic(err)
	}
	cmd := cli.NewCommand("dump").
		WithAliases("d").
		WithOpts(opts...).
		WithSynopsis("dump [-x] [files]").
		WithDescription("print document trees with their types").
		WithRun(func(cc *cli.Context, args []string) error {
			return dump(cfg, cc, args)
		})
	cfg.Dump = cmd
	return cmd
}

func GetCommand(mainCfg *MainConfig) *cli.Command {
	cfg := &GetConfig{MainConfig: mainCfg}
	cmd := cli.NewCommand("get").
		WithAliases("g", "ge").
		WithSynopsis("get <objectpath> [file]").
		WithDescription("get a document element, reading only as much input as needed").
		WithRun(func(cc *cli.Context, args []string) error {
			return get(cfg, cc, args)
		})
	cfg.Get = cmd
	return cmd
}

func VerifyCommand(mainCfg *MainConfig) *cli.Command {
	cfg := &VerifyConfig{MainConfig: mainCfg, Formats: defaultFormats}
	opts, err := cli.StructOpts(cfg)
	if err != nil {
		panic(err)
	}
	cmd := cli.NewCommand("verify").
		WithAliases("v", "ver").
		WithOpts(opts...).
		WithSynopsis("verify [-f formats] [-lenient] [file]").
		WithDescription("round trip a document through codecs and compare the results").
		WithRun(func(cc *cli.Context, args []string) error {
			return verify(cfg, cc, args)
		})
	cfg.Verify = cmd
	return cmd
}

func BenchCommand(mainCfg *MainConfig) *cli.Command {
	cfg := &BenchConfig{MainConfig: mainCfg, N: 100, Formats: defaultFormats}
	opts, err := cli.StructOpts(cfg)
	if err != nil {
		panic(err)
	}
	return cli.NewCommandAt(&cfg.Bench, "bench").
		WithAliases("b").
		WithOpts(opts...).
		WithSynopsis("bench [-i n] [-v] [-gops] [-f formats] [file]").
		WithDescription("time encoding and decoding of a document").
		WithRun(func(cc *cli.Context, args []string) error {
			return bench(cfg, cc, args)
		})
}
