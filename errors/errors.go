package errors

import (
	"fmt"
	"sort"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseParse    Phase = "parse"    // source text to program tree
	PhaseBuild    Phase = "build"    // instruction and module construction
	PhaseResolve  Phase = "resolve"  // symbolic name to index resolution
	PhaseValidate Phase = "validate" // structural checks before encoding
	PhaseEncode   Phase = "encode"   // module to bytes
	PhaseDecode   Phase = "decode"   // bytes to module
	PhaseRuntime  Phase = "runtime"  // host execution
)

// Kind categorizes the error
type Kind string

const (
	KindUnmatchedBracket Kind = "unmatched_bracket"
	KindUnexpectedChar   Kind = "unexpected_char"
	KindOutOfRange       Kind = "out_of_range"
	KindOverflow         Kind = "overflow"
	KindBranchDepth      Kind = "branch_depth"
	KindUnresolved       Kind = "unresolved"
	KindDuplicate        Kind = "duplicate"
	KindInvalidType      Kind = "invalid_type"
	KindInvalidSignature Kind = "invalid_signature"
	KindUnsupported      Kind = "unsupported"
	KindOpenScope        Kind = "open_scope"
	KindInvalidData      Kind = "invalid_data"
	KindDuplicateSection Kind = "duplicate_section"
	KindMissingHeader    Kind = "missing_header"
	KindInvalidInput     Kind = "invalid_input"
	KindInstantiation    Kind = "instantiation"
	KindTrap             Kind = "trap"
)

// Position locates a character in source text. Offset is zero based,
// Line and Column are one based.
type Position struct {
	Offset int
	Line   int
	Column int
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// IsValid reports whether the position was set.
func (p Position) IsValid() bool {
	return p.Line > 0
}

// Error is the structured error type used throughout the module
type Error struct {
	Value    any
	Cause    error
	Phase    Phase
	Kind     Kind
	Entity   string
	Name     string
	Detail   string
	Path     []string
	Position Position
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Position.IsValid() {
		b.WriteString(" at ")
		b.WriteString(e.Position.String())
	}

	if len(e.Path) > 0 {
		b.WriteString(" in ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Entity != "" || e.Name != "" {
		b.WriteString(": ")
		if e.Entity != "" {
			b.WriteString(e.Entity)
		}
		if e.Name != "" {
			if e.Entity != "" {
				b.WriteByte(' ')
			}
			b.WriteString(fmt.Sprintf("%q", e.Name))
		}
	}

	if e.Detail != "" {
		if e.Entity != "" || e.Name != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the location path, e.g. "code", "3", "body"
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Entity sets the kind of entity involved ("function", "export", ...)
func (b *Builder) Entity(entity string) *Builder {
	b.err.Entity = entity
	return b
}

// Name sets the offending symbolic name
func (b *Builder) Name(name string) *Builder {
	b.err.Name = name
	return b
}

// At sets the source position
func (b *Builder) At(pos Position) *Builder {
	b.err.Position = pos
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// UnmatchedBracket creates a source error for a bracket without partner
func UnmatchedBracket(pos Position, bracket byte) *Error {
	partner := byte(']')
	if bracket == ']' {
		partner = '['
	}
	return &Error{
		Phase:    PhaseParse,
		Kind:     KindUnmatchedBracket,
		Position: pos,
		Value:    string(bracket),
		Detail:   fmt.Sprintf("%q has no matching %q", bracket, partner),
	}
}

// UnexpectedChar creates a strict-mode source error
func UnexpectedChar(pos Position, r rune) *Error {
	return &Error{
		Phase:    PhaseParse,
		Kind:     KindUnexpectedChar,
		Position: pos,
		Value:    r,
		Detail:   fmt.Sprintf("unexpected character %q", r),
	}
}

// OutOfRange creates an error for an operand that does not fit its width
func OutOfRange(phase Phase, path []string, value any, width string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfRange,
		Path:   path,
		Value:  value,
		Detail: fmt.Sprintf("value %v does not fit %s", value, width),
	}
}

// Overflow creates an overflow error
func Overflow(phase Phase, path []string, value any, targetType string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOverflow,
		Path:   path,
		Detail: fmt.Sprintf("value %v overflows %s", value, targetType),
		Value:  value,
	}
}

// BranchDepth creates an error for a branch past the open scopes
func BranchDepth(phase Phase, path []string, depth, open uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindBranchDepth,
		Path:   path,
		Value:  depth,
		Detail: fmt.Sprintf("branch depth %d exceeds %d open scope(s)", depth, open),
	}
}

// IndexOutOfRange creates an error for a numeric reference outside its index space
func IndexOutOfRange(phase Phase, path []string, entity string, index, size uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfRange,
		Path:   path,
		Entity: entity,
		Value:  index,
		Detail: fmt.Sprintf("index %d out of range (space has %d)", index, size),
	}
}

// Unresolved creates an error for a symbolic name never declared
func Unresolved(entity, name string) *Error {
	return &Error{
		Phase:  PhaseResolve,
		Kind:   KindUnresolved,
		Entity: entity,
		Name:   name,
		Detail: "not declared",
	}
}

// Duplicate creates an error for a name declared twice
func Duplicate(phase Phase, entity, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindDuplicate,
		Entity: entity,
		Name:   name,
		Detail: "declared more than once",
	}
}

// DuplicateSection creates an assembly error for a repeated section kind
func DuplicateSection(section string) *Error {
	return &Error{
		Phase:  PhaseValidate,
		Kind:   KindDuplicateSection,
		Entity: "section",
		Name:   section,
		Detail: "section may appear at most once",
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// InvalidData creates an invalid data error
func InvalidData(phase Phase, path []string, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Path:   path,
		Detail: detail,
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// Instantiation creates a host instantiation error
func Instantiation(cause error) *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindInstantiation,
		Detail: "instantiate module",
		Cause:  cause,
	}
}

// Trap creates an error for a module that trapped while running
func Trap(cause error) *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindTrap,
		Detail: "module trapped",
		Cause:  cause,
	}
}

// UnresolvedName is a single reference that did not resolve
type UnresolvedName struct {
	Entity string // e.g. "function", "global"
	Name   string
}

// UnresolvedError is returned when a module build references names
// that were never declared. It lists every one of them.
type UnresolvedError struct {
	Names []UnresolvedName
}

// NewUnresolvedError creates an error from "entity#name" keys
func NewUnresolvedError(keys []string) *UnresolvedError {
	result := &UnresolvedError{
		Names: make([]UnresolvedName, 0, len(keys)),
	}
	for _, key := range keys {
		entity, name := parseKey(key)
		result.Names = append(result.Names, UnresolvedName{Entity: entity, Name: name})
	}
	return result
}

func parseKey(key string) (entity, name string) {
	e, n, found := strings.Cut(key, "#")
	if found {
		return e, n
	}
	return "", key
}

func (e *UnresolvedError) Error() string {
	if len(e.Names) == 0 {
		return "[resolve] unresolved: no names specified"
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("[resolve] unresolved: %d name(s) not declared:\n", len(e.Names)))

	byEntity := make(map[string][]string)
	for _, n := range e.Names {
		byEntity[n.Entity] = append(byEntity[n.Entity], n.Name)
	}
	entities := make([]string, 0, len(byEntity))
	for entity := range byEntity {
		entities = append(entities, entity)
	}
	sort.Strings(entities)

	for _, entity := range entities {
		b.WriteString("\n  ")
		if entity == "" {
			b.WriteString("(unknown)")
		} else {
			b.WriteString(entity)
		}
		b.WriteString(":\n")
		for _, name := range byEntity[entity] {
			b.WriteString("    - ")
			b.WriteString(name)
			b.WriteByte('\n')
		}
	}

	return strings.TrimSuffix(b.String(), "\n")
}

// Is reports whether target matches this error type. It also matches an
// *Error with PhaseResolve and KindUnresolved.
func (e *UnresolvedError) Is(target error) bool {
	switch t := target.(type) {
	case *UnresolvedError:
		return true
	case *Error:
		return t.Phase == PhaseResolve && t.Kind == KindUnresolved
	}
	return false
}
