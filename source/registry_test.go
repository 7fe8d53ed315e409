package source

import (
	"errors"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"
)

func TestRegistryLookup(t *testing.T) {
	r, err := NewRegistry(map[string][]byte{
		"internal/util":  []byte("return 1"),
		"bootstrap/node": []byte("return 2"),
	})
	require.Nil(t, err)
	require.True(t, r.Exists("internal/util"))
	require.False(t, r.Exists("not/a/real/module"))
	require.Equal(t, []string{"bootstrap/node", "internal/util"}, r.IDs())
	require.Equal(t, 2, r.Len())

	data, err := r.Get("internal/util")
	require.Nil(t, err)
	require.Equal(t, "return 1", string(data))

	_, err = r.Get("nope")
	require.True(t, errors.Is(err, ErrNotFound))
	require.Contains(t, err.Error(), `"nope"`)
}

func TestRegistryCopiesInput(t *testing.T) {
	src := []byte("x := 1")
	r, err := NewRegistry(map[string][]byte{"a": src})
	require.Nil(t, err)
	src[0] = 'y'
	data, err := r.Get("a")
	require.Nil(t, err)
	require.Equal(t, "x := 1", string(data))
}

func TestRegistryIDsIsACopy(t *testing.T) {
	r, err := NewRegistry(map[string][]byte{"a": nil, "b": nil})
	require.Nil(t, err)
	ids := r.IDs()
	ids[0] = "z"
	require.Equal(t, []string{"a", "b"}, r.IDs())
}

func TestRegistryRejectsBadIDs(t *testing.T) {
	_, err := NewRegistry(map[string][]byte{"": nil})
	require.NotNil(t, err)
	_, err = NewRegistry(map[string][]byte{"/abs": nil})
	require.NotNil(t, err)
}

func TestLoad(t *testing.T) {
	fsys := fstest.MapFS{
		"lib/internal/util.risor":  {Data: []byte("util")},
		"lib/bootstrap/node.risor": {Data: []byte("node")},
		"lib/README.md":            {Data: []byte("ignored")},
	}
	r, err := Load(fsys, "lib")
	require.Nil(t, err)
	require.Equal(t, []string{"bootstrap/node", "internal/util"}, r.IDs())

	rec, err := r.Record("bootstrap/node")
	require.Nil(t, err)
	require.Equal(t, "bootstrap/node", rec.ID)
	require.Equal(t, "node", string(rec.Data))
}

func TestLoadRoot(t *testing.T) {
	fsys := fstest.MapFS{
		"internal/util.risor": {Data: []byte("util")},
	}
	r, err := Load(fsys, ".")
	require.Nil(t, err)
	require.Equal(t, []string{"internal/util"}, r.IDs())
}

func TestLoadMissingRoot(t *testing.T) {
	_, err := Load(fstest.MapFS{}, "missing")
	require.NotNil(t, err)
}

func TestConfig(t *testing.T) {
	fsys := fstest.MapFS{"config.json": {Data: []byte(`{"variables":{}}`)}}
	c, err := LoadConfig(fsys, "config.json")
	require.Nil(t, err)
	require.Equal(t, `{"variables":{}}`, c.String())
	require.Equal(t, 16, c.Len())

	_, err = LoadConfig(fsys, "missing.json")
	require.NotNil(t, err)

	var empty *Config
	require.Equal(t, "", empty.String())
	require.Equal(t, 0, empty.Len())
}
