package bf

import (
	"math"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/wippyai/wasmgen/errors"
)

// Op is a tape machine command.
type Op byte

const (
	OpRight  Op = '>'
	OpLeft   Op = '<'
	OpInc    Op = '+'
	OpDec    Op = '-'
	OpOutput Op = '.'
	OpInput  Op = ','
	OpLoop   Op = '['
)

func (o Op) String() string {
	if o == OpLoop {
		return "[]"
	}
	return string(rune(o))
}

func (o Op) foldable() bool {
	return o == OpRight || o == OpLeft || o == OpInc || o == OpDec
}

// Node is one command of a parsed program. Loops carry their body.
type Node struct {
	Body []Node
	Pos  errors.Position
	// Count is how many times the command repeats; greater than one only
	// for folded runs.
	Count int
	Op    Op
}

// Program is a parsed tape machine program.
type Program struct {
	Nodes []Node
	// Commands is the number of command characters in the source.
	Commands int
	Loops    int
	MaxDepth int
	// Reads and Writes report whether the program uses , and .
	Reads  bool
	Writes bool
}

// Parse turns source text into a program tree. Characters other than the
// eight commands are comments unless opts.Strict is set, in which case
// only whitespace may appear between commands. A bracket without partner
// fails with the bracket's position.
func Parse(src string, opts Options) (*Program, error) {
	p := &Program{}
	stack := []Node{{}}
	pos := errors.Position{Line: 1, Column: 1}

	for pos.Offset < len(src) {
		r, size := utf8.DecodeRuneInString(src[pos.Offset:])
		at := pos
		pos.Offset += size
		if r == '\n' {
			pos.Line++
			pos.Column = 1
		} else {
			pos.Column++
		}

		top := &stack[len(stack)-1]
		switch r {
		case '>', '<', '+', '-', '.', ',':
			p.Commands++
			op := Op(r)
			switch op {
			case OpInput:
				p.Reads = true
			case OpOutput:
				p.Writes = true
			}
			if n := len(top.Body); opts.Optimize && op.foldable() && n > 0 &&
				top.Body[n-1].Op == op && top.Body[n-1].Count < math.MaxInt32 {
				top.Body[n-1].Count++
				continue
			}
			top.Body = append(top.Body, Node{Op: op, Count: 1, Pos: at})

		case '[':
			p.Commands++
			p.Loops++
			stack = append(stack, Node{Op: OpLoop, Count: 1, Pos: at})
			if depth := len(stack) - 1; depth > p.MaxDepth {
				p.MaxDepth = depth
			}

		case ']':
			p.Commands++
			if len(stack) == 1 {
				return nil, errors.UnmatchedBracket(at, ']')
			}
			loop := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			parent := &stack[len(stack)-1]
			parent.Body = append(parent.Body, loop)

		default:
			if opts.Strict && !unicode.IsSpace(r) {
				return nil, errors.UnexpectedChar(at, r)
			}
		}
	}

	if len(stack) > 1 {
		return nil, errors.UnmatchedBracket(stack[len(stack)-1].Pos, '[')
	}
	p.Nodes = stack[0].Body

	Logger().Debug("program parsed",
		zap.Int("commands", p.Commands),
		zap.Int("loops", p.Loops),
		zap.Int("max_depth", p.MaxDepth),
	)
	return p, nil
}
