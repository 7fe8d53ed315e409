// Package nativemodule loads the scripts bundled into the binary, compiles
// them with Risor on demand and keeps their code caches.
//
// A Loader is created once per process and shared by every execution
// context:
//
//	loader, err := nativemodule.New(nativemodule.WithLogger(logger))
//	ec := engine.NewContext(globals)
//	fn, err := loader.LookupAndCompile(ctx, ec, "bootstrap/node",
//		lib.BootstrapParameters, nativemodule.NoEnv())
//
// Sources and configuration are read-only after New returns. The code cache
// is the only shared mutable state and is safe for concurrent use;
// compilation happens outside its lock.
package nativemodule

import (
	"bytes"
	"context"
	"time"

	"github.com/risor-io/nativemodule/codecache"
	"github.com/risor-io/nativemodule/engine"
	"github.com/risor-io/nativemodule/lib"
	"github.com/risor-io/nativemodule/source"
	"github.com/rs/zerolog"
)

// Loader serves bundled module sources as compiled callables.
type Loader struct {
	sources     *source.Registry
	config      *source.Config
	cache       *codecache.Store
	compiler    engine.Compiler
	logger      zerolog.Logger
	stats       *acceptance
	warmupLimit int
}

// New creates a Loader. By default it serves the bundled library with an
// empty code cache. It fails if the sources cannot be loaded or if a seeded
// code cache names a module that does not exist.
func New(options ...Option) (*Loader, error) {
	cfg := &config{
		sourceFS:   lib.FS,
		sourceRoot: ".",
		configFS:   lib.FS,
		configName: lib.ConfigFile,
		logger:     zerolog.Nop(),
	}
	for _, opt := range options {
		opt(cfg)
	}

	var (
		sources *source.Registry
		err     error
	)
	switch {
	case cfg.sourceMap != nil:
		sources, err = source.NewRegistry(cfg.sourceMap)
	case cfg.sourceFS != nil:
		sources, err = source.Load(cfg.sourceFS, cfg.sourceRoot)
	default:
		sources, err = source.NewRegistry(nil)
	}
	if err != nil {
		return nil, err
	}

	conf := source.NewConfig(cfg.configData)
	if cfg.configFS != nil {
		if conf, err = source.LoadConfig(cfg.configFS, cfg.configName); err != nil {
			return nil, err
		}
	}

	compiler := cfg.compiler
	if compiler == nil {
		compiler = engine.NewCompiler(engine.WithCompilerLogger(cfg.logger))
	}

	cache := codecache.New()
	if err := cache.Seed(cfg.codeCache, sources.Exists); err != nil {
		return nil, err
	}

	l := &Loader{
		sources:     sources,
		config:      conf,
		cache:       cache,
		compiler:    compiler,
		logger:      cfg.logger,
		stats:       newAcceptance(),
		warmupLimit: cfg.warmupLimit,
	}
	l.logger.Debug().
		Int("modules", sources.Len()).
		Int("seeded_caches", cache.Len()).
		Msg("native module loader initialized")
	return l, nil
}

// Exists reports whether id is a bundled module.
func (l *Loader) Exists(id string) bool {
	return l.sources.Exists(id)
}

// ModuleIDs returns the sorted ids of all bundled modules.
func (l *Loader) ModuleIDs() []string {
	return l.sources.IDs()
}

// ConfigString returns the bundled configuration document verbatim.
func (l *Loader) ConfigString() string {
	return l.config.String()
}

// CodeCache returns the current code cache for id without compiling
// anything. The returned slice must not be modified.
func (l *Loader) CodeCache(id string) ([]byte, bool) {
	return l.cache.Get(id)
}

// LookupAndCompile compiles module id as a function of params for the
// context ec. An existing code cache is offered to the compiler; the cache
// produced by a successful compile replaces it if it differs. Nothing is
// stored when compilation fails.
func (l *Loader) LookupAndCompile(
	ctx context.Context,
	ec *engine.Context,
	id string,
	params []string,
	env OptionalEnv,
) (*engine.Callable, error) {
	src, err := l.sources.Get(id)
	if err != nil {
		return nil, err
	}
	cached, hadCache := l.cache.Get(id)

	start := time.Now()
	res, err := l.compiler.CompileWrapped(ctx, ec, id, src, params, cached)
	if err != nil {
		l.logger.Error().Err(err).Str("module", id).Str("context", ec.ID()).Msg("compile failed")
		return nil, err
	}

	if len(res.Blob) > 0 && !bytes.Equal(res.Blob, cached) {
		l.cache.Put(id, res.Blob)
		l.logger.Debug().Str("module", id).Int("bytes", len(res.Blob)).Msg("code cache updated")
	}
	l.stats.record(id, res.Accepted)
	if e, ok := env.Get(); ok {
		e.stats.record(id, res.Accepted)
	}

	l.logger.Debug().
		Str("module", id).
		Str("context", ec.ID()).
		Bool("had_cache", hadCache).
		Bool("accepted", res.Accepted).
		Dur("took", time.Since(start)).
		Msg("compiled native module")
	return res.Callable, nil
}

// CompileAndCall compiles module id as a function of params and calls it
// with args. Module code runs as if wrapped in a function, so its top-level
// declarations do not affect the context's globals.
func (l *Loader) CompileAndCall(
	ctx context.Context,
	ec *engine.Context,
	id string,
	params []string,
	args []any,
	env OptionalEnv,
) (any, error) {
	fn, err := l.LookupAndCompile(ctx, ec, id, params, env)
	if err != nil {
		return nil, err
	}
	return fn.Call(ctx, ec, args...)
}
