package binding

import (
	"context"
	"errors"
	"sync"

	"github.com/risor-io/nativemodule"
	"github.com/risor-io/nativemodule/engine"
	"github.com/risor-io/nativemodule/lib"
	"github.com/risor-io/risor/object"
)

// Requirer loads internal library modules for one context, each at most
// once. It is a minimal stand-in for a full module system: a module is
// called with fresh exports and module maps, and whatever it returns (or
// its exports, if it returns nil) is the module's value.
type Requirer struct {
	loader  *nativemodule.Loader
	ec      *engine.Context
	env     nativemodule.OptionalEnv
	process object.Object
	native  *object.Module

	mu      sync.Mutex
	loaded  map[string]object.Object
	loading map[string]*object.Map
}

// NewRequirer returns a Requirer for the context ec. process is passed to
// every module as its process argument.
func NewRequirer(loader *nativemodule.Loader, ec *engine.Context, env nativemodule.OptionalEnv, process object.Object) *Requirer {
	if process == nil {
		process = object.NewMap(map[string]object.Object{})
	}
	return &Requirer{
		loader:  loader,
		ec:      ec,
		env:     env,
		process: process,
		native:  Module(loader, ec, env),
		loaded:  map[string]object.Object{},
		loading: map[string]*object.Map{},
	}
}

// Builtin returns the require function handed to scripts.
func (r *Requirer) Builtin() *object.Builtin {
	return object.NewBuiltin("require", r.require)
}

func (r *Requirer) require(ctx context.Context, args ...object.Object) object.Object {
	if len(args) != 1 {
		return object.NewArgsError("require", 1, len(args))
	}
	id, err := object.AsString(args[0])
	if err != nil {
		return err
	}
	value, loadErr := r.Require(ctx, id)
	if loadErr != nil {
		return object.NewError(loadErr)
	}
	return value
}

// Require returns the value of module id, loading it on first use. A
// module that is required again while it is still loading sees its
// partially filled exports.
func (r *Requirer) Require(ctx context.Context, id string) (object.Object, error) {
	r.mu.Lock()
	if value, ok := r.loaded[id]; ok {
		r.mu.Unlock()
		return value, nil
	}
	if exports, ok := r.loading[id]; ok {
		r.mu.Unlock()
		return exports, nil
	}
	exports := object.NewMap(map[string]object.Object{})
	r.loading[id] = exports
	r.mu.Unlock()

	value, err := r.load(ctx, id, exports)

	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.loading, id)
	if err != nil {
		return nil, err
	}
	r.loaded[id] = value
	return value, nil
}

func (r *Requirer) load(ctx context.Context, id string, exports *object.Map) (object.Object, error) {
	if !r.loader.Exists(id) {
		return nil, errors.New("ERR_UNKNOWN_BUILTIN_MODULE: no such built-in module: " + id)
	}
	fn, err := r.loader.LookupAndCompile(ctx, r.ec, id, lib.ModuleParameters, r.env)
	if err != nil {
		return nil, err
	}
	module := object.NewMap(map[string]object.Object{
		"id":      object.NewString(id),
		"exports": exports,
	})
	value, err := fn.CallObjects(ctx, r.ec, []object.Object{
		exports,
		r.Builtin(),
		module,
		r.process,
		r.native,
	})
	if err != nil {
		return nil, err
	}
	if value == object.Nil {
		return exports, nil
	}
	return value, nil
}
