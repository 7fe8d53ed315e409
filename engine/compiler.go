// Package engine compiles bundled module sources with the Risor script
// engine. A module is compiled as the body of an anonymous function whose
// parameters are chosen by the caller, so its top-level bindings never
// reach the globals of the context it runs in.
package engine

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/risor-io/risor/compiler"
	"github.com/risor-io/risor/parser"
	"github.com/rs/zerolog"
)

// ErrCompile is returned when a module source cannot be compiled.
var ErrCompile = errors.New("compile failed")

// Result is the outcome of one wrapped compilation.
type Result struct {
	// Callable is the compiled module function, owned by the context it was
	// compiled for.
	Callable *Callable

	// Blob is the code cache for the compilation: the supplied blob when it
	// was accepted, a freshly produced one otherwise. It may be empty if no
	// blob could be produced.
	Blob []byte

	// Accepted is true if the supplied blob was used.
	Accepted bool
}

// Compiler turns a module source into a callable wrapped with the given
// parameter list. Implementations hold no state between calls.
type Compiler interface {
	CompileWrapped(ctx context.Context, ec *Context, id string, src []byte, params []string, cached []byte) (*Result, error)
}

// CompilerOption configures a RisorCompiler.
type CompilerOption func(*RisorCompiler)

// WithCompilerLogger sets the logger used to report rejected code caches.
func WithCompilerLogger(logger zerolog.Logger) CompilerOption {
	return func(c *RisorCompiler) {
		c.logger = logger
	}
}

// WithEngineVersion overrides the engine version recorded in, and required
// of, code cache blobs.
func WithEngineVersion(version string) CompilerOption {
	return func(c *RisorCompiler) {
		c.version = version
	}
}

// RisorCompiler is the Compiler backed by Risor.
type RisorCompiler struct {
	logger  zerolog.Logger
	version string
}

// NewCompiler returns a RisorCompiler.
func NewCompiler(opts ...CompilerOption) *RisorCompiler {
	c := &RisorCompiler{
		logger:  zerolog.Nop(),
		version: engineVersion(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func checkParams(params []string) error {
	seen := make(map[string]bool, len(params))
	for _, p := range params {
		if !identPattern.MatchString(p) {
			return fmt.Errorf("invalid parameter name: %q", p)
		}
		if seen[p] {
			return fmt.Errorf("duplicate parameter name: %q", p)
		}
		seen[p] = true
	}
	return nil
}

// Wrap returns src as the body of an anonymous function taking params.
func Wrap(src []byte, params []string) string {
	var b strings.Builder
	b.Grow(len(src) + 32)
	b.WriteString("func(")
	b.WriteString(strings.Join(params, ", "))
	b.WriteString(") {\n")
	b.Write(src)
	b.WriteString("\n}\n")
	return b.String()
}

// CompileWrapped compiles src as a function of params for the context ec.
// A cached blob is used only if it was produced from the same wrapped
// source, for the same global names, by the same engine version; otherwise
// the source is compiled and a new blob is produced.
func (c *RisorCompiler) CompileWrapped(
	ctx context.Context,
	ec *Context,
	id string,
	src []byte,
	params []string,
	cached []byte,
) (*Result, error) {
	if err := checkParams(params); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCompile, id, err)
	}
	wrapped := Wrap(src, params)
	want := &envelope{
		Schema:  blobSchema,
		Engine:  c.version,
		Source:  xxhash.Sum64String(wrapped),
		Globals: ec.globalsHash,
	}

	if len(cached) > 0 {
		callable, err := c.fromCache(ctx, ec, id, params, cached, want)
		if err == nil {
			return &Result{Callable: callable, Blob: cached, Accepted: true}, nil
		}
		c.logger.Debug().Str("module", id).Err(err).Msg("code cache rejected")
	}

	program, err := parser.Parse(ctx, wrapped)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCompile, id, err)
	}
	// Unbalanced braces in src would close the wrapper early and leave
	// further statements at program level.
	if n := len(program.Statements()); n != 1 {
		return nil, fmt.Errorf("%w: %s: source escapes the module function (%d top-level statements)",
			ErrCompile, id, n)
	}
	code, err := compiler.Compile(program, compiler.WithGlobalNames(ec.names))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCompile, id, err)
	}
	callable, err := instantiate(ctx, ec, id, params, code)
	if err != nil {
		return nil, err
	}

	result := &Result{Callable: callable}
	if data, err := compiler.MarshalCode(code); err != nil {
		c.logger.Debug().Str("module", id).Err(err).Msg("code cache not produced")
	} else {
		want.Code = data
		if blob, err := encodeBlob(want); err != nil {
			c.logger.Debug().Str("module", id).Err(err).Msg("code cache not produced")
		} else {
			result.Blob = blob
		}
	}
	return result, nil
}

func (c *RisorCompiler) fromCache(
	ctx context.Context,
	ec *Context,
	id string,
	params []string,
	cached []byte,
	want *envelope,
) (*Callable, error) {
	env, err := decodeBlob(cached)
	if err != nil {
		return nil, err
	}
	if err := env.matches(want); err != nil {
		return nil, err
	}
	code, err := compiler.UnmarshalCode(env.Code)
	if err != nil {
		return nil, fmt.Errorf("decoding bytecode: %w", err)
	}
	return instantiate(ctx, ec, id, params, code)
}
