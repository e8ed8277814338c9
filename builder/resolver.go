package builder

import (
	"fmt"

	"github.com/wippyai/wasmgen/errors"
	"github.com/wippyai/wasmgen/wasm"
)

// Kind selects one of the four module index spaces.
type Kind byte

const (
	KindFunc   = Kind(wasm.KindFunc)
	KindTable  = Kind(wasm.KindTable)
	KindMemory = Kind(wasm.KindMemory)
	KindGlobal = Kind(wasm.KindGlobal)
)

var kinds = [...]Kind{KindFunc, KindTable, KindMemory, KindGlobal}

func (k Kind) String() string {
	switch k {
	case KindFunc:
		return "function"
	case KindTable:
		return "table"
	case KindMemory:
		return "memory"
	case KindGlobal:
		return "global"
	}
	return fmt.Sprintf("kind(%d)", byte(k))
}

func (k Kind) valid() bool {
	return k <= KindGlobal
}

// IndexSpace assigns indices to the named entities of one kind. Imports
// take the low indices in declaration order, local definitions follow.
// Entities declared with an empty name occupy an index but cannot be
// looked up.
type IndexSpace struct {
	index   map[string]uint32
	names   map[string]bool
	imports []string
	locals  []string
	kind    Kind
	sealed  bool
}

func newIndexSpace(kind Kind) *IndexSpace {
	return &IndexSpace{kind: kind, names: make(map[string]bool)}
}

// Kind returns the entity kind of the space.
func (s *IndexSpace) Kind() Kind { return s.kind }

// Len returns the number of entities declared so far.
func (s *IndexSpace) Len() int { return len(s.imports) + len(s.locals) }

// NumImported returns the number of imported entities.
func (s *IndexSpace) NumImported() int { return len(s.imports) }

func (s *IndexSpace) declare(name string, imported bool) (int, error) {
	if s.sealed {
		return 0, errors.New(errors.PhaseResolve, errors.KindInvalidData).
			Entity(s.kind.String()).
			Name(name).
			Detail("index space is sealed").
			Build()
	}
	if name != "" {
		if s.names[name] {
			return 0, errors.Duplicate(errors.PhaseResolve, s.kind.String(), name)
		}
		s.names[name] = true
	}
	if imported {
		s.imports = append(s.imports, name)
		return len(s.imports) - 1, nil
	}
	s.locals = append(s.locals, name)
	return len(s.locals) - 1, nil
}

func (s *IndexSpace) seal() {
	if s.sealed {
		return
	}
	s.index = make(map[string]uint32, len(s.names))
	for i, name := range s.imports {
		if name != "" {
			s.index[name] = uint32(i)
		}
	}
	base := uint32(len(s.imports))
	for i, name := range s.locals {
		if name != "" {
			s.index[name] = base + uint32(i)
		}
	}
	s.sealed = true
}

func (s *IndexSpace) lookup(name string) (uint32, bool) {
	idx, ok := s.index[name]
	return idx, ok
}

// Resolver maps symbolic names to indices in the function, table, memory
// and global index spaces. Declarations may arrive in any order; indices
// are fixed by Seal, after which only lookups are allowed.
type Resolver struct {
	spaces [len(kinds)]*IndexSpace
	sealed bool
}

// NewResolver creates an empty resolver.
func NewResolver() *Resolver {
	r := &Resolver{}
	for _, k := range kinds {
		r.spaces[k] = newIndexSpace(k)
	}
	return r
}

// Space returns the index space for kind, or nil for an unknown kind.
func (r *Resolver) Space(kind Kind) *IndexSpace {
	if !kind.valid() {
		return nil
	}
	return r.spaces[kind]
}

// DeclareImport adds an imported entity.
func (r *Resolver) DeclareImport(kind Kind, name string) error {
	return r.declare(kind, name, true)
}

// Declare adds a locally defined entity.
func (r *Resolver) Declare(kind Kind, name string) error {
	return r.declare(kind, name, false)
}

func (r *Resolver) declare(kind Kind, name string, imported bool) error {
	s := r.Space(kind)
	if s == nil {
		return errors.Unsupported(errors.PhaseResolve, "index space "+kind.String())
	}
	_, err := s.declare(name, imported)
	return err
}

// Seal freezes every index space. Sealing twice is a no-op.
func (r *Resolver) Seal() {
	for _, s := range r.spaces {
		s.seal()
	}
	r.sealed = true
}

// Sealed reports whether Seal was called.
func (r *Resolver) Sealed() bool { return r.sealed }

// Lookup returns the index of name in the kind's space. The resolver must
// be sealed.
func (r *Resolver) Lookup(kind Kind, name string) (uint32, error) {
	if !r.sealed {
		return 0, errors.New(errors.PhaseResolve, errors.KindInvalidData).
			Entity(kind.String()).
			Name(name).
			Detail("lookup before the resolver was sealed").
			Build()
	}
	s := r.Space(kind)
	if s == nil {
		return 0, errors.Unsupported(errors.PhaseResolve, "index space "+kind.String())
	}
	idx, ok := s.lookup(name)
	if !ok {
		return 0, errors.Unresolved(kind.String(), name)
	}
	return idx, nil
}

// Resolve returns a copy of instrs with every symbolic call and global
// reference replaced by its index. All unresolved names are reported
// together in an *errors.UnresolvedError.
func (r *Resolver) Resolve(instrs []wasm.Instruction) ([]wasm.Instruction, error) {
	c := r.newCollector()
	out := c.body(instrs)
	if err := c.err(); err != nil {
		return nil, err
	}
	return out, nil
}

// collector resolves references and remembers every name that failed,
// so one build reports all of them.
type collector struct {
	r       *Resolver
	seen    map[string]bool
	missing []string
}

func (r *Resolver) newCollector() *collector {
	return &collector{r: r, seen: make(map[string]bool)}
}

func (c *collector) index(kind Kind, name string) uint32 {
	idx, err := c.r.Lookup(kind, name)
	if err == nil {
		return idx
	}
	key := kind.String() + "#" + name
	if !c.seen[key] {
		c.seen[key] = true
		c.missing = append(c.missing, key)
	}
	return 0
}

// body copies instrs, rewriting symbolic immediates. The input tree is
// never modified.
func (c *collector) body(instrs []wasm.Instruction) []wasm.Instruction {
	if instrs == nil {
		return nil
	}
	out := make([]wasm.Instruction, len(instrs))
	for i, in := range instrs {
		switch imm := in.Imm.(type) {
		case wasm.CallImm:
			if imm.Name != "" {
				in.Imm = wasm.CallImm{Func: c.index(KindFunc, imm.Name)}
			}
		case wasm.GlobalImm:
			if imm.Name != "" {
				in.Imm = wasm.GlobalImm{Index: c.index(KindGlobal, imm.Name)}
			}
		}
		in.Body = c.body(in.Body)
		in.Else = c.body(in.Else)
		out[i] = in
	}
	return out
}

func (c *collector) err() error {
	if len(c.missing) == 0 {
		return nil
	}
	return errors.NewUnresolvedError(c.missing)
}
