// Package binding exposes a Loader to privileged scripts as the Risor
// module native_module. Every function here is bound to one execution
// context; callables it compiles run in that context only.
package binding

import (
	"context"

	"github.com/risor-io/nativemodule"
	"github.com/risor-io/nativemodule/engine"
	"github.com/risor-io/risor/object"
)

// Name is the name of the module object returned by Module.
const Name = "native_module"

type binding struct {
	loader *nativemodule.Loader
	ec     *engine.Context
	env    nativemodule.OptionalEnv
}

// Module returns the native_module object for the context ec.
func Module(loader *nativemodule.Loader, ec *engine.Context, env nativemodule.OptionalEnv) *object.Module {
	b := &binding{loader: loader, ec: ec, env: env}
	return object.NewBuiltinsModule(Name, map[string]object.Object{
		"module_ids":       stringList(loader.ModuleIDs()),
		"config":           object.NewString(loader.ConfigString()),
		"exists":           object.NewBuiltin("exists", b.exists),
		"compile_function": object.NewBuiltin("compile_function", b.compileFunction),
		"get_code_cache":   object.NewBuiltin("get_code_cache", b.getCodeCache),
		"get_cache_usage":  object.NewBuiltin("get_cache_usage", b.getCacheUsage),
	})
}

func (b *binding) exists(ctx context.Context, args ...object.Object) object.Object {
	if len(args) != 1 {
		return object.NewArgsError("native_module.exists", 1, len(args))
	}
	id, err := object.AsString(args[0])
	if err != nil {
		return err
	}
	return object.NewBool(b.loader.Exists(id))
}

// compileFunction returns a builtin that invokes the compiled module. The
// module keeps running in its own VM; only its arguments and result cross
// into the calling script.
func (b *binding) compileFunction(ctx context.Context, args ...object.Object) object.Object {
	if len(args) != 2 {
		return object.NewArgsError("native_module.compile_function", 2, len(args))
	}
	id, err := object.AsString(args[0])
	if err != nil {
		return err
	}
	params, err := stringSlice(args[1])
	if err != nil {
		return err
	}
	fn, compileErr := b.loader.LookupAndCompile(ctx, b.ec, id, params, b.env)
	if compileErr != nil {
		return object.NewError(compileErr)
	}
	return callableBuiltin(fn, b.ec)
}

func (b *binding) getCodeCache(ctx context.Context, args ...object.Object) object.Object {
	if len(args) != 1 {
		return object.NewArgsError("native_module.get_code_cache", 1, len(args))
	}
	id, err := object.AsString(args[0])
	if err != nil {
		return err
	}
	blob, ok := b.loader.CodeCache(id)
	if !ok {
		return object.Nil
	}
	return object.NewByteSlice(append([]byte(nil), blob...))
}

func (b *binding) getCacheUsage(ctx context.Context, args ...object.Object) object.Object {
	if len(args) != 0 {
		return object.NewArgsError("native_module.get_cache_usage", 0, len(args))
	}
	usage := b.loader.CacheUsage()
	sizes := make(map[string]object.Object, len(usage.Bytes))
	for id, n := range usage.Bytes {
		sizes[id] = object.NewInt(int64(n))
	}
	report := map[string]object.Object{
		"bytes":                  object.NewMap(sizes),
		"compiled_with_cache":    stringList(usage.CompiledWithCache),
		"compiled_without_cache": stringList(usage.CompiledWithoutCache),
	}
	if env, ok := b.env.Get(); ok {
		report["env_with_cache"] = stringList(env.CompiledWithCache())
		report["env_without_cache"] = stringList(env.CompiledWithoutCache())
	}
	return object.NewMap(report)
}

func callableBuiltin(fn *engine.Callable, ec *engine.Context) *object.Builtin {
	return object.NewBuiltin(fn.ID(), func(ctx context.Context, args ...object.Object) object.Object {
		result, err := fn.CallObjects(ctx, ec, args)
		if err != nil {
			return object.NewError(err)
		}
		return result
	})
}

func stringList(items []string) *object.List {
	objs := make([]object.Object, len(items))
	for i, s := range items {
		objs[i] = object.NewString(s)
	}
	return object.NewList(objs)
}

func stringSlice(obj object.Object) ([]string, *object.Error) {
	list, err := object.AsList(obj)
	if err != nil {
		return nil, err
	}
	items := list.Value()
	result := make([]string, 0, len(items))
	for _, item := range items {
		s, err := object.AsString(item)
		if err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, nil
}
