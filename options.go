package nativemodule

import (
	"io/fs"
	"maps"

	"github.com/risor-io/nativemodule/engine"
	"github.com/rs/zerolog"
)

// Option describes a function used to configure a Loader.
type Option func(*config)

type config struct {
	sourceFS    fs.FS
	sourceRoot  string
	sourceMap   map[string][]byte
	configFS    fs.FS
	configName  string
	configData  []byte
	codeCache   map[string][]byte
	compiler    engine.Compiler
	logger      zerolog.Logger
	warmupLimit int
}

// WithSources loads module sources from the script files under root in
// fsys instead of the bundled library.
func WithSources(fsys fs.FS, root string) Option {
	return func(cfg *config) {
		cfg.sourceFS = fsys
		cfg.sourceRoot = root
		cfg.sourceMap = nil
	}
}

// WithSourceMap supplies module sources directly, keyed by module id.
func WithSourceMap(sources map[string][]byte) Option {
	return func(cfg *config) {
		cfg.sourceMap = sources
		cfg.sourceFS = nil
	}
}

// WithConfig supplies the configuration document text.
func WithConfig(data []byte) Option {
	return func(cfg *config) {
		cfg.configData = data
		cfg.configFS = nil
	}
}

// WithCodeCache seeds the code cache with pre-generated blobs. This option
// is additive; if the same module is supplied more than once, the last blob
// wins.
func WithCodeCache(blobs map[string][]byte) Option {
	return func(cfg *config) {
		if cfg.codeCache == nil {
			cfg.codeCache = map[string][]byte{}
		}
		maps.Copy(cfg.codeCache, blobs)
	}
}

// WithCompiler replaces the Risor compiler.
func WithCompiler(c engine.Compiler) Option {
	return func(cfg *config) {
		cfg.compiler = c
	}
}

// WithLogger sets the loader's logger. By default nothing is logged.
func WithLogger(logger zerolog.Logger) Option {
	return func(cfg *config) {
		cfg.logger = logger
	}
}

// WithWarmupLimit bounds the number of modules Warmup compiles at once.
// Values below one mean one per available CPU.
func WithWarmupLimit(n int) Option {
	return func(cfg *config) {
		cfg.warmupLimit = n
	}
}
