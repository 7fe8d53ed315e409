package nativemodule

import (
	"github.com/risor-io/nativemodule/engine"
	"github.com/risor-io/nativemodule/source"
)

// Errors returned by the Loader. Match them with errors.Is.
var (
	// ErrNotFound is returned for a module id that is not bundled.
	ErrNotFound = source.ErrNotFound

	// ErrCompile is returned when a module source cannot be compiled.
	ErrCompile = engine.ErrCompile

	// ErrArity is returned when a callable receives the wrong number of
	// arguments.
	ErrArity = engine.ErrArity

	// ErrCall is returned when a module raises an error while running.
	ErrCall = engine.ErrCall

	// ErrForeignContext is returned when a callable is used outside the
	// context it was compiled for.
	ErrForeignContext = engine.ErrForeignContext
)
