package builder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wippyai/wasmgen/wasm"
)

func TestSetLogger_BuildLogsModuleShape(t *testing.T) {
	t.Cleanup(func() { SetLogger(nil) })

	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))

	_, err := New().
		ImportFunc("print", "js", "print_charcode", printType).
		Func("main", voidType, nil, []wasm.Instruction{wasm.I32Const(1), wasm.CallName("print")}).
		Start("main").
		Build()
	require.NoError(t, err)

	entries := logs.FilterMessage("module built").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(1), entries[0].ContextMap()["imports"])
	assert.Equal(t, int64(1), entries[0].ContextMap()["functions"])
}
