package bf

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/wasmgen/errors"
)

func parseErr(t *testing.T, src string, opts Options) *errors.Error {
	t.Helper()
	_, err := Parse(src, opts)
	require.Error(t, err)
	var e *errors.Error
	require.True(t, stderrors.As(err, &e), "want *errors.Error, got %T", err)
	return e
}

func TestParse_Tree(t *testing.T) {
	p, err := Parse("+[->[.]<]", Options{})
	require.NoError(t, err)

	require.Len(t, p.Nodes, 2)
	assert.Equal(t, OpInc, p.Nodes[0].Op)
	loop := p.Nodes[1]
	assert.Equal(t, OpLoop, loop.Op)
	require.Len(t, loop.Body, 4)
	assert.Equal(t, OpDec, loop.Body[0].Op)
	assert.Equal(t, OpRight, loop.Body[1].Op)
	assert.Equal(t, OpLoop, loop.Body[2].Op)
	assert.Equal(t, OpOutput, loop.Body[2].Body[0].Op)
	assert.Equal(t, OpLeft, loop.Body[3].Op)

	assert.Equal(t, 9, p.Commands)
	assert.Equal(t, 2, p.Loops)
	assert.Equal(t, 2, p.MaxDepth)
	assert.True(t, p.Writes)
	assert.False(t, p.Reads)
}

func TestParse_CommentsIgnored(t *testing.T) {
	p, err := Parse("add two: ++ done\xff", Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, p.Commands)
	assert.Equal(t, errors.Position{Offset: 9, Line: 1, Column: 10}, p.Nodes[0].Pos)
}

func TestParse_Positions(t *testing.T) {
	p, err := Parse("é\n  +\n[.]", Options{})
	require.NoError(t, err)
	require.Len(t, p.Nodes, 2)
	assert.Equal(t, errors.Position{Offset: 5, Line: 2, Column: 3}, p.Nodes[0].Pos)
	assert.Equal(t, errors.Position{Offset: 7, Line: 3, Column: 1}, p.Nodes[1].Pos)
	assert.Equal(t, errors.Position{Offset: 8, Line: 3, Column: 2}, p.Nodes[1].Body[0].Pos)
}

func TestParse_UnmatchedBrackets(t *testing.T) {
	t.Run("unopened close", func(t *testing.T) {
		e := parseErr(t, "+]", Options{})
		assert.Equal(t, errors.PhaseParse, e.Phase)
		assert.Equal(t, errors.KindUnmatchedBracket, e.Kind)
		assert.Equal(t, errors.Position{Offset: 1, Line: 1, Column: 2}, e.Position)
	})

	t.Run("unclosed open reports innermost", func(t *testing.T) {
		e := parseErr(t, "[\n+[", Options{})
		assert.Equal(t, errors.KindUnmatchedBracket, e.Kind)
		assert.Equal(t, errors.Position{Offset: 3, Line: 2, Column: 2}, e.Position)
	})

	t.Run("close after balanced", func(t *testing.T) {
		e := parseErr(t, "[][]]", Options{})
		assert.Equal(t, 4, e.Position.Offset)
	})
}

func TestParse_Strict(t *testing.T) {
	_, err := Parse("+ +\n\t-", Options{Strict: true})
	require.NoError(t, err)

	e := parseErr(t, "+ \n x", Options{Strict: true})
	assert.Equal(t, errors.KindUnexpectedChar, e.Kind)
	assert.Equal(t, errors.Position{Offset: 4, Line: 2, Column: 2}, e.Position)
	assert.Equal(t, 'x', e.Value)
}

func TestParse_Optimize(t *testing.T) {
	p, err := Parse("+++>><-..", Options{Optimize: true})
	require.NoError(t, err)

	var got []string
	for _, n := range p.Nodes {
		got = append(got, fmt.Sprintf("%s:%d", n.Op, n.Count))
	}
	assert.Equal(t, []string{"+:3", ">:2", "<:1", "-:1", ".:1", ".:1"}, got)
	assert.Equal(t, 9, p.Commands)

	p, err = Parse("+++", Options{})
	require.NoError(t, err)
	assert.Len(t, p.Nodes, 3, "no folding without Optimize")
}

func TestParse_Empty(t *testing.T) {
	p, err := Parse("", Options{})
	require.NoError(t, err)
	assert.Empty(t, p.Nodes)
	assert.Zero(t, p.Commands)
}
