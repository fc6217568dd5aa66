package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/born-ml/eisnet/backend/cpu"
	"github.com/born-ml/eisnet/internal/arch"
	"github.com/born-ml/eisnet/internal/build"
	"github.com/born-ml/eisnet/internal/export"
	"github.com/born-ml/eisnet/internal/histogram"
)

func (a *app) build(_ context.Context, args []string) int {
	fs := a.flagSet("build", "--type TYPE --output-size N [--input-size N] [--out-dir DIR]")
	var (
		archType   string
		inputSize  int
		outputSize int
		outDir     string
		seed       uint64
	)
	types := strings.Join(arch.ValidTypes, ", ")
	fs.StringVar(&archType, "type", "", "type of network to create: "+types)
	fs.StringVar(&archType, "t", "", "shorthand for --type")
	fs.IntVar(&outputSize, "output-size", 0, "number of output classes")
	fs.IntVar(&outputSize, "o", 0, "shorthand for --output-size")
	fs.IntVar(&inputSize, "input-size", 100, "number of input values, ignored by resnet")
	fs.IntVar(&inputSize, "i", 100, "shorthand for --input-size")
	fs.StringVar(&outDir, "out-dir", a.cfg.OutDir, "directory the network is written to")
	fs.Uint64Var(&seed, "seed", 0, "weight initialization seed for reproducible builds (0 = random)")
	if code, ok := parse(fs, args); !ok {
		return code
	}
	if archType == "" || outputSize == 0 {
		fmt.Fprintln(a.stderr, "eisnet build: --type and --output-size are required")
		fs.Usage()
		return exitUsage
	}

	cfg, err := arch.DefaultConfig(archType, inputSize, outputSize)
	if errors.Is(err, arch.ErrUnknownArchitecture) {
		a.log.Error(fmt.Sprintf("%s is not a valid network type, valid types are: %s", archType, types))
		fs.Usage()
		return exitError
	}
	if err != nil {
		a.log.Error("invalid network configuration", "error", err)
		return exitError
	}
	if _, err := build.Run(cfg, cpu.New(), build.Options{OutDir: outDir, Out: a.stdout, Logger: a.log, Seed: seed}); err != nil {
		a.log.Error("build failed", "type", archType, "error", err)
		return exitError
	}
	return exitOK
}

func (a *app) export(_ context.Context, args []string) int {
	defaults := a.cfg.Export
	fs := a.flagSet("export", "--network FILE.born [flags]")
	var (
		network string
		opts    = export.Options{
			Purpose:       defaults.Purpose,
			InputName:     defaults.InputName,
			Version:       defaults.Version,
			OutputPrepend: defaults.OutputPrepend,
			Train:         defaults.Train,
			Tolerance:     defaults.Tolerance,
		}
	)
	fs.StringVar(&network, "network", "", "network file to export")
	fs.StringVar(&network, "n", "", "shorthand for --network")
	fs.StringVar(&opts.Purpose, "purpose", opts.Purpose, "overrides the purpose string of the network")
	fs.StringVar(&opts.Purpose, "p", opts.Purpose, "shorthand for --purpose")
	fs.StringVar(&opts.InputName, "input-name", opts.InputName, "overrides the input description string")
	fs.StringVar(&opts.InputName, "i", opts.InputName, "shorthand for --input-name")
	fs.StringVar(&opts.Version, "version", opts.Version, "sets the network version string")
	fs.StringVar(&opts.Version, "v", opts.Version, "shorthand for --version")
	fs.BoolVar(&opts.Train, "train", opts.Train, "also export the files required to train the ONNX network")
	fs.BoolVar(&opts.Train, "t", opts.Train, "shorthand for --train")
	fs.StringVar(&opts.OutputPrepend, "output-prepend", opts.OutputPrepend, "string to prepend to the output labels")
	fs.StringVar(&opts.OutDir, "out-dir", a.cfg.OutDir, "directory the exported files are written to")
	fs.Float64Var(&opts.Tolerance, "tolerance", opts.Tolerance, "largest accepted difference between ONNX and native outputs (default 1e-4)")
	if code, ok := parse(fs, args); !ok {
		return code
	}
	if network == "" {
		fmt.Fprintln(a.stderr, "eisnet export: --network is required")
		fs.Usage()
		return exitUsage
	}

	opts.Logger = a.log.With("network", network)
	n, err := export.Open(network, cpu.New())
	if err != nil {
		a.log.Error("cannot open network", "path", network, "error", err)
		return exitError
	}
	res, err := export.Export(n, opts)
	if err != nil {
		a.log.Error("export failed", "path", network, "error", err)
		return exitError
	}
	fmt.Fprintf(a.stdout, "Exported %s (max difference %.3g)\n", res.ONNXPath, res.MaxDiff)
	if res.TrainArchive != "" {
		fmt.Fprintf(a.stdout, "Training artifacts in %s\n", res.TrainArchive)
	}
	return exitOK
}

func (a *app) inspect(_ context.Context, args []string) int {
	fs := a.flagSet("inspect", "FILE.born|FILE.onnx...")
	if code, ok := parse(fs, args); !ok {
		return code
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return exitUsage
	}
	code := exitOK
	for i, path := range fs.Args() {
		if i > 0 {
			fmt.Fprintln(a.stdout)
		}
		if err := export.Describe(path, a.stdout); err != nil {
			a.log.Error("cannot inspect", "path", path, "error", err)
			code = exitError
		}
	}
	return code
}

func (a *app) plot(ctx context.Context, args []string) int {
	fs := a.flagSet("plot", "[--watch] LOGDIR OUTDIR")
	watch := fs.Bool("watch", false, "keep running and re-render files as the trainer writes them")
	debounce := fs.Duration("debounce", a.cfg.Plot.Debounce, "quiet period before a changed file is re-rendered (default 500ms)")
	if code, ok := parse(fs, args); !ok {
		return code
	}
	if fs.NArg() < 2 {
		fs.Usage()
		return exitUsage
	}

	p, err := histogram.NewPlotter(fs.Arg(1), a.log)
	if err != nil {
		a.log.Error("cannot create output directory", "error", err)
		return exitError
	}
	if *watch {
		err = p.Watch(ctx, fs.Arg(0), *debounce)
	} else {
		err = p.LogDir(fs.Arg(0))
	}
	if err != nil {
		a.log.Error("plot failed", "dir", fs.Arg(0), "error", err)
		return exitError
	}
	return exitOK
}

func (a *app) report(_ context.Context, args []string) int {
	fs := a.flagSet("report", "DATASETREPORT OUTDIR")
	if code, ok := parse(fs, args); !ok {
		return code
	}
	if fs.NArg() < 2 {
		fs.Usage()
		return exitUsage
	}

	path := fs.Arg(0)
	p, err := histogram.NewPlotter(fs.Arg(1), a.log)
	if err != nil {
		a.log.Error("cannot create output directory", "error", err)
		return exitError
	}
	start := time.Now()
	out, err := p.Report(path)
	switch {
	case errors.Is(err, histogram.ErrInvalidHistogram):
		a.log.Warn(path+" is not a valid histogram file", "error", err)
		return exitError
	case err != nil:
		a.log.Error("report failed", "path", path, "error", err)
		return exitError
	}
	a.log.Info("plotted report", "path", out, "took", time.Since(start).Round(time.Millisecond))
	return exitOK
}
