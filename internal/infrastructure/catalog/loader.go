// Package catalog loads the engine catalog from YAML.
package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/majorpath/majorpath-hub/internal/domain/progress"
)

// Load returns the built-in catalog with any sections present in the YAML
// file at path replacing the built-in ones. An empty path returns the
// built-in catalog unchanged. Unknown keys are rejected.
func Load(path string) (*progress.Catalog, error) {
	if path == "" {
		return progress.DefaultCatalog(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a YAML catalog over the built-in one and validates it.
func Parse(data []byte) (*progress.Catalog, error) {
	c := progress.DefaultCatalog()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Dump writes c as YAML.
func Dump(w io.Writer, c *progress.Catalog) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}
	return enc.Close()
}
