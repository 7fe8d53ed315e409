// Package source holds the bundled script sources and the embedded
// configuration document. Both are populated once at startup and are
// read-only afterwards, so no method here takes a lock.
package source

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

// ErrNotFound is returned when a module id is not present in the registry.
var ErrNotFound = errors.New("module not found")

// Extension is the file extension of bundled scripts.
const Extension = ".risor"

// Record is the source of one bundled module.
type Record struct {
	ID   string
	Data []byte
}

// Registry maps module ids to their source text.
type Registry struct {
	records map[string][]byte
	ids     []string
}

// NewRegistry builds a registry from the given id to source mapping. The
// byte slices are copied, so the caller may reuse them.
func NewRegistry(records map[string][]byte) (*Registry, error) {
	r := &Registry{
		records: make(map[string][]byte, len(records)),
		ids:     make([]string, 0, len(records)),
	}
	for id, data := range records {
		if err := checkID(id); err != nil {
			return nil, err
		}
		r.records[id] = append([]byte(nil), data...)
		r.ids = append(r.ids, id)
	}
	sort.Strings(r.ids)
	return r, nil
}

// Load walks root within fsys and registers every file with the script
// extension. The module id is the slash separated path relative to root,
// without the extension.
func Load(fsys fs.FS, root string) (*Registry, error) {
	records := map[string][]byte{}
	err := fs.WalkDir(fsys, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || path.Ext(p) != Extension {
			return nil
		}
		id := strings.TrimSuffix(p, Extension)
		if root != "." {
			id = strings.TrimPrefix(id, strings.TrimSuffix(root, "/")+"/")
		}
		if _, found := records[id]; found {
			return fmt.Errorf("duplicate module id: %q", id)
		}
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return err
		}
		records[id] = data
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading sources: %w", err)
	}
	return NewRegistry(records)
}

func checkID(id string) error {
	if id == "" {
		return errors.New("invalid module id: empty")
	}
	if strings.HasPrefix(id, "/") || strings.HasSuffix(id, "/") {
		return fmt.Errorf("invalid module id: %q", id)
	}
	return nil
}

// Exists reports whether the registry contains the given module.
func (r *Registry) Exists(id string) bool {
	_, ok := r.records[id]
	return ok
}

// Get returns the source of the given module. The returned slice must not
// be modified.
func (r *Registry) Get(id string) ([]byte, error) {
	data, ok := r.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return data, nil
}

// Record returns the given module as a Record.
func (r *Registry) Record(id string) (Record, error) {
	data, err := r.Get(id)
	if err != nil {
		return Record{}, err
	}
	return Record{ID: id, Data: data}, nil
}

// IDs returns the sorted list of module ids.
func (r *Registry) IDs() []string {
	return append([]string(nil), r.ids...)
}

// Len returns the number of modules.
func (r *Registry) Len() int {
	return len(r.ids)
}
