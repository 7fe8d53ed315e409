package engine

import (
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
)

// Increment when the envelope layout changes.
const blobSchema uint16 = 1

const risorModule = "github.com/risor-io/risor"

// envelope is the serialized form of a code cache blob: Risor bytecode plus
// the fields needed to decide whether it still matches the source.
type envelope struct {
	Schema  uint16 `msgpack:"schema"`
	Engine  string `msgpack:"engine"`
	Source  uint64 `msgpack:"source"`
	Globals uint64 `msgpack:"globals"`
	Code    []byte `msgpack:"code"`
}

func encodeBlob(env *envelope) ([]byte, error) {
	return msgpack.Marshal(env)
}

func decodeBlob(data []byte) (*envelope, error) {
	var env envelope
	if err := msgpack.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decoding code cache: %w", err)
	}
	return &env, nil
}

// matches reports why env cannot be used in place of a compilation
// described by want, or nil if it can.
func (env *envelope) matches(want *envelope) error {
	switch {
	case env.Schema != want.Schema:
		return fmt.Errorf("schema mismatch: %d != %d", env.Schema, want.Schema)
	case env.Engine != want.Engine:
		return fmt.Errorf("engine mismatch: %q != %q", env.Engine, want.Engine)
	case env.Source != want.Source:
		return fmt.Errorf("source hash mismatch: %016x != %016x", env.Source, want.Source)
	case env.Globals != want.Globals:
		return fmt.Errorf("globals hash mismatch: %016x != %016x", env.Globals, want.Globals)
	case len(env.Code) == 0:
		return fmt.Errorf("empty bytecode")
	}
	return nil
}

// BlobInfo describes a code cache blob.
type BlobInfo struct {
	Schema     uint16 `json:"schema"`
	Engine     string `json:"engine"`
	SourceHash string `json:"source_hash"`
	CodeBytes  int    `json:"code_bytes"`
}

// InspectBlob decodes the header of a code cache blob.
func InspectBlob(blob []byte) (BlobInfo, error) {
	env, err := decodeBlob(blob)
	if err != nil {
		return BlobInfo{}, err
	}
	return BlobInfo{
		Schema:     env.Schema,
		Engine:     env.Engine,
		SourceHash: fmt.Sprintf("%016x", env.Source),
		CodeBytes:  len(env.Code),
	}, nil
}

var engineVersion = sync.OnceValue(func() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, dep := range info.Deps {
			if dep.Path == risorModule {
				return dep.Path + "@" + dep.Version
			}
		}
	}
	return risorModule
})
