package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/wasmgen"
	"github.com/wippyai/wasmgen/bf"
	"github.com/wippyai/wasmgen/builder"
	"github.com/wippyai/wasmgen/engine"
	"github.com/wippyai/wasmgen/wasm"
)

const usage = `Usage: bfc [flags] <file.bf | ->
       bfc -i [file.bf]  (interactive mode)

Compiles a tape machine program to a WebAssembly module. Without -o, -run
or -dump the module is written to stdout.

Flags:
`

var errTerminal = errors.New("refusing to write binary to a terminal; use -o or redirect stdout")

type options struct {
	source      string
	output      string
	run         bool
	dump        bool
	verbose     bool
	interactive bool
	compile     bf.Options
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("bfc", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}

	var (
		output      = fs.String("o", "", "Write the module to this file")
		run         = fs.Bool("run", false, "Run the module with stdin as input and stdout as output")
		dump        = fs.Bool("dump", false, "Print a listing of the module")
		strict      = fs.Bool("strict", false, "Reject characters other than commands and whitespace")
		optimize    = fs.Bool("O", false, "Fold runs of + - > < into single instructions")
		inputZero   = fs.Bool("input-zero", false, "Compile , as storing 0 instead of calling read")
		pages       = fs.Uint("pages", bf.DefaultMemoryPages, "Tape size in 64 KiB pages")
		exportMain  = fs.Bool("export-main", false, "Also export the program function as main")
		verbose     = fs.Bool("v", false, "Debug logging to stderr")
		interactive = fs.Bool("i", false, "Interactive mode with TUI")
	)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if *pages == 0 || *pages > wasm.MaxPages {
		return nil, fmt.Errorf("-pages must be between 1 and %d", wasm.MaxPages)
	}

	o := &options{
		output:      *output,
		run:         *run,
		dump:        *dump,
		verbose:     *verbose,
		interactive: *interactive,
		compile:     bf.DefaultOptions(),
	}
	o.compile.Strict = *strict
	o.compile.Optimize = *optimize
	o.compile.MemoryPages = uint32(*pages)
	o.compile.ExportMain = *exportMain
	if *inputZero {
		o.compile.Input = bf.InputZero
	}

	switch fs.NArg() {
	case 0:
		if !o.interactive {
			fs.Usage()
			return nil, errors.New("missing source file")
		}
	case 1:
		o.source = fs.Arg(0)
	default:
		return nil, fmt.Errorf("expected one source file, got %d", fs.NArg())
	}
	return o, nil
}

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	logger := zap.NewNop()
	if opts.verbose {
		if logger, err = zap.NewDevelopment(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
	defer logger.Sync()
	setLogger(logger)

	if opts.interactive {
		if err := runInteractive(opts); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(context.Background(), opts, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func setLogger(l *zap.Logger) {
	bf.SetLogger(l.Named("bf"))
	builder.SetLogger(l.Named("builder"))
	engine.SetLogger(l.Named("engine"))
}

func run(ctx context.Context, opts *options, stdin io.Reader, stdout io.Writer) error {
	src, err := readSource(opts.source, stdin)
	if err != nil {
		return err
	}

	m, err := bf.Compile(src, opts.compile)
	if err != nil {
		return err
	}
	bin, err := wasm.Assemble(m)
	if err != nil {
		return err
	}

	if opts.dump {
		if err := dumpModule(stdout, m); err != nil {
			return fmt.Errorf("dump: %w", err)
		}
	}

	if opts.output != "" {
		if err := os.WriteFile(opts.output, bin, 0o644); err != nil {
			return fmt.Errorf("write module: %w", err)
		}
	}

	if opts.run {
		// Stdin already held the source.
		in := stdin
		if opts.source == "-" {
			in = nil
		}
		r, err := engine.NewRunnerWithConfig(ctx, wasmgen.RunnerConfig(opts.compile))
		if err != nil {
			return err
		}
		defer r.Close(ctx)
		return r.Run(ctx, bin, in, stdout)
	}

	if opts.output == "" && !opts.dump {
		if isTerminal(stdout) {
			return errTerminal
		}
		if _, err := stdout.Write(bin); err != nil {
			return fmt.Errorf("write module: %w", err)
		}
	}
	return nil
}

func readSource(path string, stdin io.Reader) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return string(data), nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
