package wasmgen

import (
	"context"
	"io"

	"github.com/wippyai/wasmgen/bf"
	"github.com/wippyai/wasmgen/engine"
)

// Compile compiles tape machine source into an assembled module.
func Compile(src string, opts bf.Options) ([]byte, error) {
	return bf.CompileBytes(src, opts)
}

// Run compiles src and executes it on a fresh runner whose host imports
// match the names in opts.
func Run(ctx context.Context, src string, opts bf.Options, in io.Reader, out io.Writer) error {
	bin, err := bf.CompileBytes(src, opts)
	if err != nil {
		return err
	}
	r, err := engine.NewRunnerWithConfig(ctx, RunnerConfig(opts))
	if err != nil {
		return err
	}
	defer r.Close(ctx)
	return r.Run(ctx, bin, in, out)
}

// RunnerConfig returns the runner configuration whose host module satisfies
// the imports of modules compiled with opts.
func RunnerConfig(opts bf.Options) *engine.Config {
	return &engine.Config{
		ImportModule: opts.ImportModule,
		PrintName:    opts.PrintName,
		ReadName:     opts.ReadName,
	}
}
