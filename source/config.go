package source

import (
	"fmt"
	"io/fs"
)

// Config holds the serialized configuration document bundled with the
// binary. Its contents are never parsed here.
type Config struct {
	data []byte
}

// NewConfig returns a Config holding a copy of data.
func NewConfig(data []byte) *Config {
	return &Config{data: append([]byte(nil), data...)}
}

// LoadConfig reads the configuration document at name within fsys.
func LoadConfig(fsys fs.FS, name string) (*Config, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return &Config{data: data}, nil
}

// String returns the document text verbatim.
func (c *Config) String() string {
	if c == nil {
		return ""
	}
	return string(c.data)
}

// Len returns the size of the document in bytes.
func (c *Config) Len() int {
	if c == nil {
		return 0
	}
	return len(c.data)
}
