package binding

import (
	"context"
	"testing"

	"github.com/risor-io/nativemodule"
	"github.com/risor-io/nativemodule/engine"
	"github.com/risor-io/nativemodule/lib"
	"github.com/risor-io/nativemodule/source"
	"github.com/risor-io/risor/object"
	"github.com/stretchr/testify/require"
)

const introspectSource = `
return {
    "ids": native.module_ids,
    "util": native.exists("internal/util"),
    "missing": native.exists("not/a/real/module"),
    "config": native.config
}
`

const compileSource = `
f := native.compile_function("internal/errors", ["exports", "require", "module", "process", "internal_binding"])
errs := f({}, nil, {}, {}, nil)
return errs["codes"]["ERR_INTERNAL_ASSERTION"]
`

const usageSource = `
return {
    "cache": native.get_code_cache("internal/errors"),
    "none": native.get_code_cache("internal/options"),
    "usage": native.get_cache_usage()
}
`

// newLoader returns a loader serving the bundled library plus extra test
// modules.
func newLoader(t *testing.T, extra map[string]string) *nativemodule.Loader {
	t.Helper()
	bundled, err := source.Load(lib.FS, ".")
	require.Nil(t, err)
	sources := map[string][]byte{}
	for _, id := range bundled.IDs() {
		data, err := bundled.Get(id)
		require.Nil(t, err)
		sources[id] = data
	}
	for id, src := range extra {
		sources[id] = []byte(src)
	}
	loader, err := nativemodule.New(nativemodule.WithSourceMap(sources))
	require.Nil(t, err)
	return loader
}

func callWithNative(t *testing.T, loader *nativemodule.Loader, id string, env nativemodule.OptionalEnv) any {
	t.Helper()
	ctx := context.Background()
	ec := engine.NewContext(nil)
	value, err := loader.CompileAndCall(ctx, ec, id, []string{"native"},
		[]any{Module(loader, ec, env)}, env)
	require.Nil(t, err)
	return value
}

func TestModuleIntrospection(t *testing.T) {
	loader := newLoader(t, map[string]string{"test/introspect": introspectSource})
	value := callWithNative(t, loader, "test/introspect", nativemodule.NoEnv())
	result, ok := value.(map[string]any)
	require.True(t, ok)
	require.Equal(t, true, result["util"])
	require.Equal(t, false, result["missing"])
	require.Equal(t, loader.ConfigString(), result["config"])

	ids, ok := result["ids"].([]any)
	require.True(t, ok)
	require.Len(t, ids, len(loader.ModuleIDs()))
	require.Contains(t, ids, "internal/util")
	require.Contains(t, ids, "test/introspect")
}

func TestModuleCompileFunction(t *testing.T) {
	loader := newLoader(t, map[string]string{"test/compile": compileSource})
	value := callWithNative(t, loader, "test/compile", nativemodule.NoEnv())
	require.Equal(t, "internal assertion failed", value)

	blob, ok := loader.CodeCache("internal/errors")
	require.True(t, ok)
	require.NotEmpty(t, blob)
}

func TestGetCodeCacheReturnsCopy(t *testing.T) {
	ctx := context.Background()
	loader := newLoader(t, nil)
	ec := engine.NewContext(nil)
	_, err := loader.LookupAndCompile(ctx, ec, "internal/errors", lib.ModuleParameters, nativemodule.NoEnv())
	require.Nil(t, err)
	blob, ok := loader.CodeCache("internal/errors")
	require.True(t, ok)

	mod := Module(loader, ec, nativemodule.NoEnv())
	getCodeCache, ok := mod.GetAttr("get_code_cache")
	require.True(t, ok)
	out := getCodeCache.(*object.Builtin).Call(ctx, object.NewString("internal/errors"))
	data, ok := out.(*object.ByteSlice)
	require.True(t, ok)
	require.Equal(t, blob, data.Value())

	data.Value()[0] ^= 0xff
	stored, _ := loader.CodeCache("internal/errors")
	require.Equal(t, blob, stored)
	require.NotEqual(t, stored, data.Value())
}

func TestModuleCacheUsage(t *testing.T) {
	loader := newLoader(t, map[string]string{
		"test/compile": compileSource,
		"test/usage":   usageSource,
	})
	callWithNative(t, loader, "test/compile", nativemodule.NoEnv())

	env := nativemodule.NewEnvironment("test")
	value := callWithNative(t, loader, "test/usage", nativemodule.SomeEnv(env))
	result, ok := value.(map[string]any)
	require.True(t, ok)

	blob, ok := loader.CodeCache("internal/errors")
	require.True(t, ok)
	require.Equal(t, blob, result["cache"])
	require.Nil(t, result["none"])

	usage, ok := result["usage"].(map[string]any)
	require.True(t, ok)
	sizes, ok := usage["bytes"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, int64(len(blob)), sizes["internal/errors"])
	require.Contains(t, usage["compiled_without_cache"], "internal/errors")
	require.Contains(t, usage["env_without_cache"], "test/usage")
}

func TestModuleArgumentErrors(t *testing.T) {
	loader := newLoader(t, nil)
	mod := Module(loader, engine.NewContext(nil), nativemodule.NoEnv())
	ctx := context.Background()

	exists, ok := mod.GetAttr("exists")
	require.True(t, ok)
	result := exists.(*object.Builtin).Call(ctx)
	_, isErr := result.(*object.Error)
	require.True(t, isErr)

	compile, ok := mod.GetAttr("compile_function")
	require.True(t, ok)
	result = compile.(*object.Builtin).Call(ctx,
		object.NewString("not/a/real/module"),
		object.NewList(nil))
	_, isErr = result.(*object.Error)
	require.True(t, isErr)
}

func TestRequireBootstrap(t *testing.T) {
	ctx := context.Background()
	loader := newLoader(t, nil)
	ec := engine.NewContext(nil)

	process, err := engine.ToObject(map[string]any{
		"platform": "linux",
		"argv":     []any{"nativemod", "run"},
	})
	require.Nil(t, err)
	r := NewRequirer(loader, ec, nativemodule.NoEnv(), process)

	fn, err := loader.LookupAndCompile(ctx, ec, "bootstrap/node", lib.BootstrapParameters, nativemodule.NoEnv())
	require.Nil(t, err)
	value, err := fn.Call(ctx, ec, process, r.Builtin())
	require.Nil(t, err)

	result, ok := value.(map[string]any)
	require.True(t, ok)
	require.Equal(t, "linux", result["platform"])
	require.Equal(t, "nativemod", result["title"])
	require.Equal(t, int64(2), result["argc"])
	codes, ok := result["codes"].(map[string]any)
	require.True(t, ok)
	require.Len(t, codes, 3)

	for _, id := range []string{"bootstrap/node", "internal/util", "internal/errors"} {
		_, ok := loader.CodeCache(id)
		require.True(t, ok, id)
	}
}

func TestRequireCachesModules(t *testing.T) {
	ctx := context.Background()
	loader := newLoader(t, nil)
	r := NewRequirer(loader, engine.NewContext(nil), nativemodule.NoEnv(), nil)

	first, err := r.Require(ctx, "internal/util")
	require.Nil(t, err)
	second, err := r.Require(ctx, "internal/util")
	require.Nil(t, err)
	require.Same(t, first, second)

	name, ok := first.(*object.Map).Get("name").(*object.String)
	require.True(t, ok)
	require.Equal(t, "internal/util", name.Value())
}

func TestRequireUnknownModule(t *testing.T) {
	loader := newLoader(t, nil)
	r := NewRequirer(loader, engine.NewContext(nil), nativemodule.NoEnv(), nil)
	_, err := r.Require(context.Background(), "not/a/real/module")
	require.NotNil(t, err)
	require.Contains(t, err.Error(), "ERR_UNKNOWN_BUILTIN_MODULE")
}

func TestRequireCycle(t *testing.T) {
	ctx := context.Background()
	loader := newLoader(t, map[string]string{
		"test/a": `exports["name"] = "a"
b := require("test/b")
exports["b_saw"] = b["a_name"]
return nil`,
		"test/b": `a := require("test/a")
exports["a_name"] = a["name"]
return nil`,
	})
	r := NewRequirer(loader, engine.NewContext(nil), nativemodule.NoEnv(), nil)
	a, err := r.Require(ctx, "test/a")
	require.Nil(t, err)
	sawName, ok := a.(*object.Map).Get("b_saw").(*object.String)
	require.True(t, ok)
	require.Equal(t, "a", sawName.Value())
}
