package main

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/risor-io/nativemodule"
)

const cacheExtension = ".cache"

// readCacheDir loads every exported code cache below dir, keyed by module
// id.
func readCacheDir(dir string) (map[string][]byte, error) {
	dir, err := homedir.Expand(dir)
	if err != nil {
		return nil, err
	}
	fsys := os.DirFS(dir)
	blobs := map[string][]byte{}
	err = fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || path.Ext(p) != cacheExtension {
			return nil
		}
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return err
		}
		blobs[strings.TrimSuffix(p, cacheExtension)] = data
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading cache directory: %w", err)
	}
	return blobs, nil
}

// writeCacheDir writes the code cache of every module that has one and
// returns the number of files written.
func writeCacheDir(loader *nativemodule.Loader, dir string) (int, error) {
	dir, err := homedir.Expand(dir)
	if err != nil {
		return 0, err
	}
	var written int
	for _, id := range loader.ModuleIDs() {
		blob, ok := loader.CodeCache(id)
		if !ok {
			continue
		}
		name := filepath.Join(dir, filepath.FromSlash(id)+cacheExtension)
		if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
			return written, err
		}
		if err := os.WriteFile(name, blob, 0o644); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}
