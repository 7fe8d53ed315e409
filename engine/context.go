package engine

import (
	"maps"
	"slices"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/segmentio/ksuid"
)

// Context is an independent interpreter state in which compiled callables
// run. Its global bindings are fixed at creation. Callables compiled for one
// Context must not be used from another.
type Context struct {
	id          ksuid.KSUID
	globals     map[string]any
	names       []string
	globalsHash uint64
}

// NewContext returns a Context exposing the given globals to every script
// compiled for it. The map is copied.
func NewContext(globals map[string]any) *Context {
	g := maps.Clone(globals)
	if g == nil {
		g = map[string]any{}
	}
	names := slices.Sorted(maps.Keys(g))
	return &Context{
		id:          ksuid.New(),
		globals:     g,
		names:       names,
		globalsHash: xxhash.Sum64String(strings.Join(names, "\x00")),
	}
}

// ID returns the unique identifier of this context.
func (c *Context) ID() string {
	return c.id.String()
}

// GlobalNames returns the sorted names of the context's globals.
func (c *Context) GlobalNames() []string {
	return slices.Clone(c.names)
}
