package builder

import (
	"github.com/wippyai/wasmgen/errors"
	"github.com/wippyai/wasmgen/wasm"
)

// ScopeKind is the structured instruction that opened a scope.
type ScopeKind uint8

const (
	ScopeBlock ScopeKind = iota + 1
	ScopeLoop
	ScopeIf
)

func (k ScopeKind) String() string {
	switch k {
	case ScopeBlock:
		return "block"
	case ScopeLoop:
		return "loop"
	case ScopeIf:
		return "if"
	}
	return "scope"
}

func (k ScopeKind) opcode() byte {
	switch k {
	case ScopeLoop:
		return wasm.OpLoop
	case ScopeIf:
		return wasm.OpIf
	}
	return wasm.OpBlock
}

// Label names an open scope. Branches to a label are turned into relative
// depths against the scope stack at the point of the branch.
type Label struct {
	id   uint32
	kind ScopeKind
}

// Kind returns the kind of scope the label belongs to.
func (l Label) Kind() ScopeKind { return l.kind }

// IsZero reports whether l is the zero Label, which names no scope.
func (l Label) IsZero() bool { return l.id == 0 }

type scope struct {
	label     Label
	blockType int64
	body      []wasm.Instruction
	els       []wasm.Instruction
	inElse    bool
}

func (s *scope) emit(instrs ...wasm.Instruction) {
	if s.inElse {
		s.els = append(s.els, instrs...)
	} else {
		s.body = append(s.body, instrs...)
	}
}

func (s *scope) close() wasm.Instruction {
	return wasm.Instruction{
		Opcode: s.label.kind.opcode(),
		Imm:    wasm.BlockImm{Type: s.blockType},
		Body:   s.body,
		Else:   s.els,
	}
}

// Body builds a function body with an explicit stack of open scopes.
// The function body itself is the outermost, always-open scope.
type Body struct {
	stack  []*scope
	root   scope
	nextID uint32
}

// NewBody returns an empty body.
func NewBody() *Body {
	return &Body{}
}

// Depth returns the number of open block, loop and if scopes.
func (b *Body) Depth() int { return len(b.stack) }

func (b *Body) top() *scope {
	if n := len(b.stack); n > 0 {
		return b.stack[n-1]
	}
	return &b.root
}

// Emit appends instructions to the innermost open scope.
func (b *Body) Emit(instrs ...wasm.Instruction) {
	b.top().emit(instrs...)
}

func (b *Body) open(kind ScopeKind, blockType int64) Label {
	b.nextID++
	l := Label{id: b.nextID, kind: kind}
	b.stack = append(b.stack, &scope{label: l, blockType: blockType})
	return l
}

// Block opens a block scope. Branching to its label exits the block.
func (b *Body) Block(blockType int64) Label { return b.open(ScopeBlock, blockType) }

// Loop opens a loop scope. Branching to its label restarts the loop.
func (b *Body) Loop(blockType int64) Label { return b.open(ScopeLoop, blockType) }

// If opens an if scope consuming the condition on the stack.
func (b *Body) If(blockType int64) Label { return b.open(ScopeIf, blockType) }

// Else switches the innermost if scope to its else branch.
func (b *Body) Else() error {
	s := b.top()
	if len(b.stack) == 0 || s.label.kind != ScopeIf {
		return errors.New(errors.PhaseBuild, errors.KindInvalidData).
			Entity("else").
			Detail("else outside of an if scope").
			Build()
	}
	if s.inElse {
		return errors.New(errors.PhaseBuild, errors.KindInvalidData).
			Entity("else").
			Detail("if scope already has an else branch").
			Build()
	}
	s.inElse = true
	return nil
}

// End closes the innermost scope and appends the finished structured
// instruction to its parent.
func (b *Body) End() error {
	n := len(b.stack)
	if n == 0 {
		return errors.New(errors.PhaseBuild, errors.KindOpenScope).
			Entity("end").
			Detail("no open scope to close").
			Build()
	}
	s := b.stack[n-1]
	b.stack = b.stack[:n-1]
	b.top().emit(s.close())
	return nil
}

// depthOf returns the relative branch depth of l, or false when l is not
// open.
func (b *Body) depthOf(l Label) (uint32, bool) {
	for i := len(b.stack) - 1; i >= 0; i-- {
		if b.stack[i].label == l {
			return uint32(len(b.stack) - 1 - i), true
		}
	}
	return 0, false
}

func (b *Body) branch(op byte, l Label) error {
	depth, ok := b.depthOf(l)
	if !ok {
		return errors.New(errors.PhaseBuild, errors.KindBranchDepth).
			Entity(l.kind.String()).
			Value(l.id).
			Detail("branch to a label that is not open").
			Build()
	}
	b.Emit(wasm.Instruction{Opcode: op, Imm: wasm.BranchImm{Depth: depth}})
	return nil
}

// Br emits an unconditional branch to l.
func (b *Body) Br(l Label) error { return b.branch(wasm.OpBr, l) }

// BrIf emits a conditional branch to l.
func (b *Body) BrIf(l Label) error { return b.branch(wasm.OpBrIf, l) }

func (b *Body) branchDepth(op byte, depth uint32) error {
	open := uint32(len(b.stack)) + 1
	if depth >= open {
		return errors.BranchDepth(errors.PhaseBuild, nil, depth, open)
	}
	b.Emit(wasm.Instruction{Opcode: op, Imm: wasm.BranchImm{Depth: depth}})
	return nil
}

// BrDepth emits br with a raw relative depth. Depth Depth() targets the
// function body.
func (b *Body) BrDepth(depth uint32) error { return b.branchDepth(wasm.OpBr, depth) }

// BrIfDepth emits br_if with a raw relative depth.
func (b *Body) BrIfDepth(depth uint32) error { return b.branchDepth(wasm.OpBrIf, depth) }

// With opens a scope, runs fn inside it and closes it, also when fn
// fails. Scopes fn left open are closed too; that is reported as an error
// unless fn already returned one.
func (b *Body) With(kind ScopeKind, blockType int64, fn func(Label) error) error {
	base := len(b.stack)
	l := b.open(kind, blockType)
	err := fn(l)

	leaked := len(b.stack) - base
	if _, ok := b.depthOf(l); ok {
		leaked--
	}
	for len(b.stack) > base {
		if endErr := b.End(); endErr != nil {
			return endErr
		}
	}
	if err == nil && leaked > 0 {
		err = errors.New(errors.PhaseBuild, errors.KindOpenScope).
			Entity(kind.String()).
			Value(leaked).
			Detail("%d nested scope(s) left open", leaked).
			Build()
	}
	return err
}

// Finish returns the finished instruction sequence. It fails while any
// scope is still open.
func (b *Body) Finish() ([]wasm.Instruction, error) {
	if n := len(b.stack); n > 0 {
		return nil, errors.New(errors.PhaseBuild, errors.KindOpenScope).
			Entity(b.stack[n-1].label.kind.String()).
			Value(n).
			Detail("%d scope(s) still open", n).
			Build()
	}
	return b.root.body, nil
}
