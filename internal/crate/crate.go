// Package crate materializes an RO-Crate: dataset folders on a
// billy.Filesystem plus the ro-crate-metadata.json manifest, and packs the
// result into a zip archive.
package crate

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode"

	"github.com/agentic-research/crater/api"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

const (
	MetadataFile = "ro-crate-metadata.json"
	ContextURL   = "https://w3id.org/ro/crate/1.1/context"
	ProfileURL   = "https://w3id.org/ro/crate/1.1"
	RootID       = "./"
)

var (
	ErrNotFound        = errors.New("entity not found")
	ErrDuplicateEntity = errors.New("entity already exists")
	ErrWritten         = errors.New("crate already written")
	ErrNotWritten      = errors.New("crate not written yet")
)

// FSError wraps a filesystem failure while materializing the crate.
type FSError struct {
	Op   string
	Path string
	Err  error
}

func (e *FSError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FSError) Unwrap() error { return e.Err }

// Crate accumulates entities and writes them out once.
type Crate struct {
	fs       billy.Filesystem
	root     *Entity
	entities []*Entity
	index    map[string]*Entity
	written  bool
}

// New returns an empty crate rooted at fs.
func New(fs billy.Filesystem) *Crate {
	root := NewEntity(RootID, nil, "Dataset")
	return &Crate{
		fs:    fs,
		root:  root,
		index: map[string]*Entity{RootID: root},
	}
}

// Root returns the root dataset entity.
func (c *Crate) Root() *Entity { return c.root }

// AddDataset creates folder (idempotently) and registers a Dataset entity
// for it, linked from the root's hasPart.
func (c *Crate) AddDataset(folder string, props api.Properties) (*Entity, error) {
	if err := ValidFolder(folder); err != nil {
		return nil, err
	}
	id := DatasetID(folder)
	if _, ok := c.index[id]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateEntity, id)
	}
	if err := c.fs.MkdirAll(folder, 0o755); err != nil {
		return nil, &FSError{Op: "mkdir", Path: c.path(folder), Err: err}
	}

	e := NewEntity(id, props, "Dataset")
	c.insert(e)
	c.root.AddRef("hasPart", id)
	return e, nil
}

// Add registers a contextual entity (person, organization, ...).
func (c *Crate) Add(e *Entity) (*Entity, error) {
	if e.ID == "" {
		return nil, errors.New("entity has no @id")
	}
	if _, ok := c.index[e.ID]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateEntity, e.ID)
	}
	c.insert(e)
	return e, nil
}

// Entity looks up an entity by @id.
func (c *Crate) Entity(id string) (*Entity, error) {
	e, ok := c.index[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e, nil
}

// Entities returns the registered entities, root excluded, in insertion order.
func (c *Crate) Entities() []*Entity {
	return append([]*Entity(nil), c.entities...)
}

func (c *Crate) insert(e *Entity) {
	c.entities = append(c.entities, e)
	c.index[e.ID] = e
}

type document struct {
	Context string    `json:"@context"`
	Graph   []*Entity `json:"@graph"`
}

// Manifest renders the JSON-LD metadata document.
func (c *Crate) Manifest() ([]byte, error) {
	descriptor := NewEntity(MetadataFile, nil, "CreativeWork")
	descriptor.SetRef("conformsTo", ProfileURL)
	descriptor.SetRef("about", RootID)

	graph := make([]*Entity, 0, len(c.entities)+2)
	graph = append(graph, descriptor, c.root)
	graph = append(graph, c.entities...)

	data, err := json.MarshalIndent(document{Context: ContextURL, Graph: graph}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	return data, nil
}

// Write stores the manifest at the crate root. It may only be called once.
func (c *Crate) Write() error {
	if c.written {
		return ErrWritten
	}
	data, err := c.Manifest()
	if err != nil {
		return err
	}
	if err := util.WriteFile(c.fs, MetadataFile, data, 0o644); err != nil {
		return &FSError{Op: "write", Path: c.path(MetadataFile), Err: err}
	}
	c.written = true
	return nil
}

func (c *Crate) path(name string) string {
	return c.fs.Join(c.fs.Root(), name)
}

// DatasetID is the @id of a dataset folder: the escaped folder name with a
// trailing slash.
func DatasetID(folder string) string {
	return (&url.URL{Path: folder}).EscapedPath() + "/"
}

// ValidFolder rejects names that would escape or alias the crate root.
func ValidFolder(folder string) error {
	switch {
	case folder == "", folder == ".", folder == "..":
		return fmt.Errorf("invalid dataset folder %q", folder)
	case strings.ContainsAny(folder, `/\`):
		return fmt.Errorf("dataset folder %q contains a path separator", folder)
	case folder == MetadataFile:
		return fmt.Errorf("dataset folder %q is reserved for the manifest", folder)
	}
	return nil
}

// Slug lowercases s and collapses everything but letters and digits into
// single dashes.
func Slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}
