package engine

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/wasmgen/errors"
	"github.com/wippyai/wasmgen/wasm"
)

// Default host import names, matching what the bf compiler emits.
const (
	DefaultImportModule = "js"
	DefaultPrintName    = "print_charcode"
	DefaultReadName     = "read_charcode"
	DefaultEntry        = "main"
)

// Config holds configuration for runner creation
type Config struct {
	// MemoryLimitPages caps every memory a module declares, in pages
	// (64KB each). 0 means the wazero default (65536 pages = 4GB).
	MemoryLimitPages uint32

	// ImportModule is the module name the host functions are exported under.
	ImportModule string
	// PrintName is the (i32) -> () function that writes the low byte of
	// its argument to the run's output.
	PrintName string
	// ReadName is the () -> (i32) function that returns the next input
	// byte, or 0 at end of input.
	ReadName string

	// Entry is the exported function called after instantiation when the
	// module has no start function. Modules with neither are only
	// instantiated.
	Entry string
}

func (c *Config) withDefaults() Config {
	var out Config
	if c != nil {
		out = *c
	}
	if out.ImportModule == "" {
		out.ImportModule = DefaultImportModule
	}
	if out.PrintName == "" {
		out.PrintName = DefaultPrintName
	}
	if out.ReadName == "" {
		out.ReadName = DefaultReadName
	}
	if out.Entry == "" {
		out.Entry = DefaultEntry
	}
	return out
}

// Runner executes generated modules on a single wazero runtime. The host
// module providing print and read is instantiated once; each Run carries
// its own input and output through the context, so Run is safe for
// concurrent use.
type Runner struct {
	runtime wazero.Runtime
	cfg     Config
}

// NewRunner creates a runner with default configuration
func NewRunner(ctx context.Context) (*Runner, error) {
	return NewRunnerWithConfig(ctx, nil)
}

// NewRunnerWithConfig creates a runner with custom configuration
func NewRunnerWithConfig(ctx context.Context, cfg *Config) (*Runner, error) {
	c := cfg.withDefaults()

	runtimeCfg := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if c.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(c.MemoryLimitPages)
	}
	rt := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)

	if _, err := instantiateHost(ctx, rt, c); err != nil {
		_ = rt.Close(ctx)
		return nil, errors.Instantiation(fmt.Errorf("host module %q: %w", c.ImportModule, err))
	}
	return &Runner{runtime: rt, cfg: c}, nil
}

// Config returns the effective configuration.
func (r *Runner) Config() Config {
	return r.cfg
}

// Close releases the runtime and every module compiled by it.
func (r *Runner) Close(ctx context.Context) error {
	return r.runtime.Close(ctx)
}

// Check decodes, compiles and link-checks wasmBytes without running it.
func (r *Runner) Check(ctx context.Context, wasmBytes []byte) error {
	_, compiled, err := r.load(ctx, wasmBytes)
	if err != nil {
		return err
	}
	return compiled.Close(ctx)
}

// Run instantiates wasmBytes, which runs its start function, and then
// calls the entry export when there is no start function. Bytes printed by
// the module go to out; reads consume in, which may be nil for no input.
// A trap or cancelled context yields a runtime trap error; output written
// before the trap stays written.
func (r *Runner) Run(ctx context.Context, wasmBytes []byte, in io.Reader, out io.Writer) error {
	mod, compiled, err := r.load(ctx, wasmBytes)
	if err != nil {
		return err
	}
	defer compiled.Close(ctx)

	sess := newSession(in, out)
	runCtx := withSession(ctx, sess)

	inst, err := r.runtime.InstantiateModule(runCtx, compiled,
		wazero.NewModuleConfig().WithName("").WithStartFunctions())
	if err == nil {
		defer inst.Close(ctx)
		if mod.Start() == nil {
			if fn := inst.ExportedFunction(r.cfg.Entry); fn != nil {
				_, err = fn.Call(runCtx)
			}
		}
	}

	Logger().Debug("run finished",
		zap.Int64("bytes_written", sess.written),
		zap.Int64("bytes_read", sess.read),
		zap.Error(err),
	)

	switch {
	case sess.err != nil:
		return errors.Wrap(errors.PhaseRuntime, errors.KindInvalidInput, sess.err, "host i/o")
	case err != nil && ctx.Err() != nil:
		return errors.Trap(ctx.Err())
	case err != nil:
		return errors.Trap(err)
	}
	return nil
}

// load decodes the module, checks its imports against the host module and
// compiles it.
func (r *Runner) load(ctx context.Context, wasmBytes []byte) (*wasm.Module, wazero.CompiledModule, error) {
	mod, err := wasm.ParseModule(wasmBytes)
	if err != nil {
		return nil, nil, err
	}
	if err := r.link(mod); err != nil {
		return nil, nil, err
	}
	compiled, err := r.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, nil, errors.Instantiation(err)
	}
	return mod, compiled, nil
}

// link reports the first import the host cannot satisfy.
func (r *Runner) link(m *wasm.Module) error {
	imports := m.Imports()
	if imports == nil {
		return nil
	}
	for i, imp := range imports.Imports {
		want, ok := r.hostType(imp)
		if !ok {
			return linkError(i, imp, "no such host import")
		}
		// Every import before i is a host function, so i is also its
		// function index.
		got, _ := m.FuncType(uint32(i))
		if !got.Equal(want) {
			return linkError(i, imp, fmt.Sprintf("signature %s, host provides %s", got, want))
		}
	}
	return nil
}

func (r *Runner) hostType(imp wasm.Import) (wasm.FuncType, bool) {
	if imp.Module != r.cfg.ImportModule || imp.Desc.Kind != wasm.KindFunc {
		return wasm.FuncType{}, false
	}
	switch imp.Name {
	case r.cfg.PrintName:
		return wasm.FuncType{Params: []wasm.ValType{wasm.ValI32}}, true
	case r.cfg.ReadName:
		return wasm.FuncType{Results: []wasm.ValType{wasm.ValI32}}, true
	}
	return wasm.FuncType{}, false
}

func linkError(i int, imp wasm.Import, detail string) error {
	return errors.New(errors.PhaseRuntime, errors.KindInstantiation).
		Path("import", fmt.Sprint(i)).
		Entity("import").
		Name(imp.Module + "." + imp.Name).
		Detail("%s", detail).
		Build()
}

func instantiateHost(ctx context.Context, rt wazero.Runtime, c Config) (api.Module, error) {
	return rt.NewHostModuleBuilder(c.ImportModule).
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(hostPrint),
			[]api.ValueType{api.ValueTypeI32}, nil).
		Export(c.PrintName).
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(hostRead),
			nil, []api.ValueType{api.ValueTypeI32}).
		Export(c.ReadName).
		Instantiate(ctx)
}

func hostPrint(ctx context.Context, _ api.Module, stack []uint64) {
	sess := sessionFrom(ctx)
	if sess == nil {
		return
	}
	sess.print(byte(api.DecodeI32(stack[0])))
}

func hostRead(ctx context.Context, _ api.Module, stack []uint64) {
	sess := sessionFrom(ctx)
	if sess == nil {
		stack[0] = 0
		return
	}
	stack[0] = api.EncodeI32(int32(sess.readByte()))
}

// session is the I/O of one Run.
type session struct {
	in      io.ByteReader
	out     io.Writer
	err     error
	written int64
	read    int64
	buf     [1]byte
}

type sessionKey struct{}

func newSession(in io.Reader, out io.Writer) *session {
	s := &session{out: out}
	if in != nil {
		if br, ok := in.(io.ByteReader); ok {
			s.in = br
		} else {
			s.in = bufio.NewReader(in)
		}
	}
	if s.out == nil {
		s.out = io.Discard
	}
	return s
}

func withSession(ctx context.Context, s *session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

func sessionFrom(ctx context.Context) *session {
	s, _ := ctx.Value(sessionKey{}).(*session)
	return s
}

// print writes one byte. A failed write aborts the run.
func (s *session) print(b byte) {
	s.buf[0] = b
	if _, err := s.out.Write(s.buf[:]); err != nil {
		s.err = err
		panic(err)
	}
	s.written++
}

func (s *session) readByte() byte {
	if s.in == nil {
		return 0
	}
	b, err := s.in.ReadByte()
	if err == io.EOF {
		return 0
	}
	if err != nil {
		s.err = err
		panic(err)
	}
	s.read++
	return b
}
