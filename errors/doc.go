// Package errors provides structured error types for the wasmgen module.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error
// category). The Error type carries the context needed to locate a defect:
// source position for tape-program errors, entity kind and symbolic name for
// resolution errors, and a path into the module for construction errors.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseValidate, errors.KindOutOfRange).
//		Path("code", "0", "body", "3").
//		Entity("function").
//		Value(7).
//		Detail("call target beyond function index space").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.UnmatchedBracket(pos, '[')
//	err := errors.Unresolved("function", "print")
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
