package crate

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/go-git/go-billy/v5"
	"github.com/klauspost/compress/zip"
	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
)

// WriteZip packs the written crate into w. Directories are stored as their
// own entries so empty dataset folders survive.
func (c *Crate) WriteZip(w io.Writer) error {
	if !c.written {
		return ErrNotWritten
	}
	zw := zip.NewWriter(w)
	err := walk(c.fs, "", func(name string, fi os.FileInfo) error {
		if fi.IsDir() {
			_, err := zw.CreateHeader(&zip.FileHeader{
				Name:     name + "/",
				Method:   zip.Store,
				Modified: fi.ModTime(),
			})
			return err
		}
		return c.zipFile(zw, name, fi)
	})
	if err != nil {
		_ = zw.Close()
		return &FSError{Op: "zip", Path: c.fs.Root(), Err: err}
	}
	if err := zw.Close(); err != nil {
		return &FSError{Op: "zip", Path: c.fs.Root(), Err: err}
	}
	return nil
}

func (c *Crate) zipFile(zw *zip.Writer, name string, fi os.FileInfo) error {
	f, err := c.fs.Open(name)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	fw, err := zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: fi.ModTime(),
	})
	if err != nil {
		return fmt.Errorf("create zip entry %s: %w", name, err)
	}
	if _, err := io.Copy(fw, f); err != nil {
		return fmt.Errorf("write zip entry %s: %w", name, err)
	}
	return nil
}

func walk(fs billy.Filesystem, dir string, fn func(name string, fi os.FileInfo) error) error {
	infos, err := fs.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, fi := range infos {
		name := path.Join(dir, fi.Name())
		if err := fn(name, fi); err != nil {
			return err
		}
		if fi.IsDir() {
			if err := walk(fs, name, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// Archive is the content listing of a crate zip.
type Archive struct {
	Entries  []string
	Manifest []byte
}

// ReadArchive reads a crate zip back.
func ReadArchive(r io.ReaderAt, size int64) (*Archive, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	a := &Archive{}
	for _, f := range zr.File {
		a.Entries = append(a.Entries, f.Name)
		if f.Name != MetadataFile {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", f.Name, err)
		}
		a.Manifest, err = io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.Name, err)
		}
	}
	if a.Manifest == nil {
		return nil, errors.New("archive has no " + MetadataFile)
	}
	return a, nil
}

var graphExpr = jp.R().C("@graph").W()

// EntitiesOfType returns the manifest's graph nodes whose @type includes typ.
func EntitiesOfType(manifest []byte, typ string) ([]map[string]any, error) {
	doc, err := oj.Parse(manifest)
	if err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	var out []map[string]any
	for _, n := range graphExpr.Get(doc) {
		node, ok := n.(map[string]any)
		if !ok {
			continue
		}
		if hasType(node["@type"], typ) {
			out = append(out, node)
		}
	}
	return out, nil
}

func hasType(v any, typ string) bool {
	switch t := v.(type) {
	case string:
		return t == typ
	case []any:
		for _, x := range t {
			if s, ok := x.(string); ok && s == typ {
				return true
			}
		}
	}
	return false
}
