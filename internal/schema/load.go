// Package schema reads mapping configurations into the api.Node tree.
//
// Loaders only check that a file exists and parses. Values the exporter
// cannot interpret are kept as api.KindInvalid nodes and reported later,
// by the interpreter, as api.ConfigError.
package schema

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/agentic-research/crater/api"
)

// ErrMissingConfig is matched by MissingFileError.
var ErrMissingConfig = errors.New("schema file not found")

// MissingFileError is returned when a configured schema path does not exist.
type MissingFileError struct {
	Path string
}

func (e *MissingFileError) Error() string {
	return fmt.Sprintf("schema file %s not found", e.Path)
}

func (e *MissingFileError) Is(target error) bool {
	return target == ErrMissingConfig
}

// Format is a schema file syntax.
type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
	FormatHCL  Format = "hcl"
)

//go:embed default.toml
var defaultTOML []byte

// FormatFor picks the syntax from the file extension. JSON is parsed as YAML.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml", ".json":
		return FormatYAML, nil
	case ".hcl":
		return FormatHCL, nil
	default:
		return "", fmt.Errorf("unsupported schema format %q", filepath.Ext(path))
	}
}

// Load reads and parses the schema at path.
func Load(path string) (*api.Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &MissingFileError{Path: path}
		}
		return nil, fmt.Errorf("read schema %s: %w", path, err)
	}
	format, err := FormatFor(path)
	if err != nil {
		return nil, err
	}
	return Parse(data, format, path)
}

// Default returns the built-in schema.
func Default() (*api.Schema, error) {
	return Parse(defaultTOML, FormatTOML, "default.toml")
}

// Parse builds a schema from raw bytes.
func Parse(data []byte, format Format, source string) (*api.Schema, error) {
	var (
		root *api.Node
		err  error
	)
	switch format {
	case FormatTOML:
		root, err = parseTOML(data, source)
	case FormatYAML:
		root, err = parseYAML(data, source)
	case FormatHCL:
		root, err = parseHCL(data, source)
	default:
		return nil, fmt.Errorf("unsupported schema format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("parse schema %s: %w", source, err)
	}
	return &api.Schema{Source: source, Root: root}, nil
}

// descend walks (and creates) nested groups along keys.
func descend(g *api.Node, keys []string) (*api.Node, error) {
	for _, k := range keys {
		child, ok := g.Lookup(k)
		if !ok {
			child = api.Group()
			g.Set(k, child)
		} else if child.Kind != api.KindGroup {
			return nil, fmt.Errorf("key %q is already defined as a value", k)
		}
		g = child
	}
	return g, nil
}
