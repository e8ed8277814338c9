package bf

import (
	"bytes"
	stderrors "errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/wasmgen/errors"
)

func interpret(t *testing.T, src, input string, cfg InterpConfig) ([]byte, error) {
	t.Helper()
	p, err := Parse(src, Options{Optimize: true})
	require.NoError(t, err)
	var out bytes.Buffer
	err = Interpret(p, strings.NewReader(input), &out, cfg)
	return out.Bytes(), err
}

func TestInterpret_Programs(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		input string
		want  []byte
	}{
		{name: "letter A", src: "++++++++[>++++++++<-]>+.", want: []byte("A")},
		{name: "cell wraps down", src: "-.", want: []byte{255}},
		{name: "cell wraps up", src: "-+.", want: []byte{0}},
		{name: "pointer wraps back", src: "<>+.", want: []byte{1}},
		{name: "echo", src: ",[.,]", input: "hi", want: []byte("hi")},
		{name: "eof reads zero", src: "+,.", want: []byte{0}},
		{name: "skipped loop", src: "[.]+.", want: []byte{1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := interpret(t, tt.src, tt.input, InterpConfig{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInterpret_Fibonacci(t *testing.T) {
	got, err := interpret(t, fibonacciSource(t), "", InterpConfig{})
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 1, 1, 2, 3, 5, 8, 13, 21, 34}, got)
}

func TestInterpret_InputZero(t *testing.T) {
	got, err := interpret(t, ",.", "x", InterpConfig{Input: InputZero})
	require.NoError(t, err)
	assert.Equal(t, []byte{0}, got)
}

func TestInterpret_Traps(t *testing.T) {
	trap := &errors.Error{Phase: errors.PhaseRuntime, Kind: errors.KindTrap}

	t.Run("below tape", func(t *testing.T) {
		_, err := interpret(t, "<+", "", InterpConfig{})
		assert.True(t, stderrors.Is(err, trap))
	})

	t.Run("past tape", func(t *testing.T) {
		src := strings.Repeat(">", 65536) + "+"
		_, err := interpret(t, src, "", InterpConfig{})
		assert.True(t, stderrors.Is(err, trap))

		_, err = interpret(t, src, "", InterpConfig{MemoryPages: 2})
		assert.NoError(t, err)
	})

	t.Run("step limit", func(t *testing.T) {
		_, err := interpret(t, "+[]", "", InterpConfig{MaxSteps: 100})
		require.Error(t, err)
		assert.True(t, stderrors.Is(err, trap))
		assert.Contains(t, err.Error(), "step limit")
	})

	t.Run("output before trap is kept", func(t *testing.T) {
		got, err := interpret(t, "+.<<.", "", InterpConfig{})
		assert.Error(t, err)
		assert.Equal(t, []byte{1}, got)
	})
}
