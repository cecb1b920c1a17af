package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/hbomb79/mediatab/internal"
	"github.com/hbomb79/mediatab/pkg/logger"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

var log = logger.Get("Main")

type (
	// command is the result of parsing the command line: the sub-command to
	// run, the flags which override config values, and the positional arguments.
	command struct {
		name       string
		configPath string
		verbose    bool
		overrides  map[string]string
		args       []string
	}
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cmd, err := parseCommand(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return exitOK
	} else if err != nil {
		fmt.Fprintf(stderr, "mediatab: %v\n", err)
		return exitUsage
	}

	config, err := internal.LoadConfig(cmd.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "mediatab: %v\n", err)
		return exitError
	}

	if err := cmd.applyOverrides(config); err != nil {
		fmt.Fprintf(stderr, "mediatab: %v\n", err)
		return exitError
	}

	closeLog, err := configureLogging(config, cmd.verbose)
	if err != nil {
		fmt.Fprintf(stderr, "mediatab: %v\n", err)
		return exitError
	}
	defer closeLog()

	app, err := internal.New(*config)
	if err != nil {
		fmt.Fprintf(stderr, "mediatab: %v\n", err)
		return exitError
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cmd.name {
	case "scan":
		summary, err := app.Scan(ctx, cmd.args)
		if err != nil {
			log.Emit(logger.FATAL, "Scan failed: %v\n", err)
			return exitError
		}

		fmt.Fprintln(stdout, summary.String())
	case "watch":
		summary, err := app.Watch(ctx, cmd.args[0])
		if err != nil {
			log.Emit(logger.FATAL, "Watch failed: %v\n", err)
			return exitError
		}

		fmt.Fprintln(stdout, summary.String())
	case "serve":
		if err := app.Serve(ctx); err != nil {
			log.Emit(logger.FATAL, "Serve failed: %v\n", err)
			return exitError
		}
	}

	return exitOK
}

// parseCommand parses the sub-command and it's flags. Only flags explicitly
// provided by the user are recorded as overrides, so that values from the
// config file (or environment) hold unless a flag is passed.
func parseCommand(args []string, output io.Writer) (*command, error) {
	if len(args) == 0 {
		printUsage(output, nil)
		return nil, errors.New("missing command")
	}

	cmd := &command{name: args[0], overrides: make(map[string]string)}
	fs := flag.NewFlagSet("mediatab "+cmd.name, flag.ContinueOnError)
	fs.SetOutput(output)
	fs.Usage = func() { printUsage(output, fs) }

	switch cmd.name {
	case "scan", "watch", "serve":
	case "help", "-h", "-help", "--help":
		printUsage(output, nil)
		return nil, flag.ErrHelp
	default:
		printUsage(output, nil)
		return nil, fmt.Errorf("unknown command %q", cmd.name)
	}

	fs.StringVar(&cmd.configPath, "config", "", "Path to YAML config file (default "+internal.DefaultConfigPath+" if present)")
	fs.BoolVar(&cmd.verbose, "v", false, "Verbose output")
	fs.String("profile", "", "Extraction profile: framerate | attributes")
	fs.String("output", "", "Path of the CSV rows are appended to")
	fs.String("concurrency", "", "Number of files inspected at once (0 = number of CPUs)")
	fs.String("ext", "", "Comma separated list of file extensions to inspect (e.g. mxf,mov)")
	fs.String("backend", "", "Probe backend: mediainfo | ffprobe")

	if err := fs.Parse(args[1:]); err != nil {
		return nil, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "config", "v":
		default:
			cmd.overrides[f.Name] = f.Value.String()
		}
	})

	cmd.args = fs.Args()
	switch {
	case cmd.name == "scan" && len(cmd.args) == 0:
		return nil, errors.New("scan requires at least one path")
	case cmd.name == "watch" && len(cmd.args) != 1:
		return nil, errors.New("watch requires exactly one directory")
	case cmd.name == "serve" && len(cmd.args) != 0:
		return nil, errors.New("serve does not accept positional arguments")
	}

	return cmd, nil
}

// applyOverrides copies the flags provided by the user on to the config.
func (cmd *command) applyOverrides(config *internal.Config) error {
	for name, value := range cmd.overrides {
		switch name {
		case "profile":
			config.Profile = value
		case "output":
			config.Output.Path = value
		case "backend":
			config.Probe.Backend = value
		case "ext":
			config.Extensions = strings.Split(value, ",")
		case "concurrency":
			n, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("invalid -concurrency %q: %w", value, err)
			}
			config.Concurrency = n
		}
	}

	return nil
}

func configureLogging(config *internal.Config, verbose bool) (func(), error) {
	level := logger.ParseLevel(config.LogLevel)
	if verbose {
		level = logger.VERBOSE
	}
	logger.SetMinLoggingLevel(level.Level())

	if config.LogFile == "" {
		return func() {}, nil
	}

	closeFile, err := logger.SetOutputFile(config.LogFile)
	if err != nil {
		return nil, err
	}

	return func() { _ = closeFile() }, nil
}

func printUsage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintln(w, `Usage:
  mediatab scan [flags] PATH...   inspect the files beneath each path and append rows to the output
  mediatab watch [flags] DIR      inspect files in DIR, and keep inspecting new files until interrupted
  mediatab serve [flags]          accept batches over the HTTP API`)

	if fs != nil {
		fmt.Fprintln(w, "\nFlags:")
		fs.PrintDefaults()
	}
}
