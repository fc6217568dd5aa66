// Package main provides the eisnet CLI: build, export and inspect EIS
// classifier networks and plot the logs of their training runs.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/born-ml/eisnet/internal/config"
	"github.com/born-ml/eisnet/internal/logger"
)

// version is overridden at link time with -ldflags "-X main.version=...".
var version = "v0.1.0-dev"

// Exit codes.
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

type app struct {
	cfg    *config.Config
	log    *slog.Logger
	stdout io.Writer
	stderr io.Writer
}

type command struct {
	name    string
	summary string
	run     func(a *app, ctx context.Context, args []string) int
}

var commands = []command{
	{"build", "build a network, validate its shapes and save it as .born", (*app).build},
	{"export", "convert a .born network to ONNX and verify it", (*app).export},
	{"inspect", "print the header and metadata of .born or .onnx files", (*app).inspect},
	{"plot", "render the histograms and loss logs of a training log directory", (*app).plot},
	{"report", "render a dataset report as a log-scale histogram", (*app).report},
	{"version", "print the version", (*app).version},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("eisnet", flag.ContinueOnError)
	global.SetOutput(stderr)
	configPath := global.String("config", "", "YAML config file (default $"+config.EnvConfig+" or "+config.DefaultPath()+")")
	logLevel := global.String("log-level", "", "log level: debug, info, warn or error")
	logFile := global.String("log-file", "", "also write JSON logs to this file, rotated at 10 MB")
	global.Usage = func() {
		printUsage(stderr)
		fmt.Fprintln(stderr, "\nGlobal flags:")
		global.PrintDefaults()
	}
	if err := global.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if global.NArg() == 0 {
		global.Usage()
		return exitUsage
	}

	name := global.Arg(0)
	cmd, ok := lookup(name)
	if !ok {
		fmt.Fprintf(stderr, "eisnet: unknown command %q\n\n", name)
		global.Usage()
		return exitUsage
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(stderr, "eisnet:", err)
		return exitError
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *logFile != "" {
		cfg.LogFile = *logFile
	}
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(stderr, "eisnet:", err)
		return exitUsage
	}
	log, closeLog := logger.New(
		logger.WithConsole(stderr),
		logger.WithNoColor(!isTerminal(stderr)),
		logger.WithLevel(level),
		logger.WithLogFile(cfg.LogFile),
	)
	defer func() {
		if err := closeLog(); err != nil {
			fmt.Fprintln(stderr, "eisnet: closing log file:", err)
		}
	}()

	a := &app{cfg: cfg, log: log, stdout: stdout, stderr: stderr}
	return cmd.run(a, ctx, global.Args()[1:])
}

func lookup(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: eisnet [global flags] <command> [flags] [args]")
	fmt.Fprintln(w, "\nCommands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-8s %s\n", c.name, c.summary)
	}
}

func isTerminal(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}

// flagSet returns a subcommand flag set whose usage line shows synopsis.
func (a *app) flagSet(name, synopsis string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	fs.Usage = func() {
		fmt.Fprintf(a.stderr, "Usage: eisnet %s %s\n", name, synopsis)
		fs.PrintDefaults()
	}
	return fs
}

// parse parses args and reports the exit code to use when parsing stops the
// command.
func parse(fs *flag.FlagSet, args []string) (int, bool) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK, false
		}
		return exitUsage, false
	}
	return exitOK, true
}

func (a *app) version(context.Context, []string) int {
	fmt.Fprintf(a.stdout, "eisnet %s\n", version)
	return exitOK
}
