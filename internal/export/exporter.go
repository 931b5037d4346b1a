package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode"

	"github.com/agentic-research/crater/api"
	"github.com/agentic-research/crater/internal/crate"
	"github.com/agentic-research/crater/internal/ctxlog"
	"github.com/agentic-research/crater/internal/metrics"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/helper/chroot"
	"github.com/go-git/go-billy/v5/util"
	"github.com/google/uuid"
)

// WorkDirPrefix prefixes every export's working directory name.
const WorkDirPrefix = "crate-"

// Result describes a finished export.
type Result struct {
	ID string
	// Dir is the crate's working directory.
	Dir string
	// Archive is the zip written next to Dir.
	Archive       string
	Manifest      []byte
	Title         string
	Datasets      int
	Persons       int
	Organizations int
	Placeholders  int
}

// Exporter runs complete exports. Each call gets its own working directory
// under base, so concurrent calls do not share state on disk.
type Exporter struct {
	builder *Builder
	schema  *api.Schema
	base    billy.Filesystem
	metrics *metrics.Recorder

	// NewID names working directories.
	NewID func() string
}

// NewExporter wires an Exporter. rec may be nil.
func NewExporter(b *Builder, s *api.Schema, base billy.Filesystem, rec *metrics.Recorder) *Exporter {
	if rec == nil {
		rec = metrics.New()
	}
	return &Exporter{
		builder: b,
		schema:  s,
		base:    base,
		metrics: rec,
		NewID:   uuid.NewString,
	}
}

// Plan builds the crate graph without writing anything.
func (e *Exporter) Plan(ctx context.Context, sel Selection) (*Plan, error) {
	return e.builder.Build(ctx, e.schema, sel)
}

// Export builds and materializes the crate for sel. Failures leave any
// partially written working directory in place.
func (e *Exporter) Export(ctx context.Context, sel Selection) (*Result, error) {
	start := time.Now()
	res, err := e.export(ctx, sel)
	e.metrics.ObserveExport(outcome(err), time.Since(start))
	if err != nil {
		return nil, err
	}
	e.metrics.AddEntities(res.Datasets, res.Persons, res.Placeholders)
	ctxlog.FromContext(ctx).Info("crate exported",
		"id", res.ID,
		"datasets", res.Datasets,
		"persons", res.Persons,
		"archive", res.Archive,
		"duration", time.Since(start))
	return res, nil
}

func (e *Exporter) export(ctx context.Context, sel Selection) (*Result, error) {
	plan, err := e.builder.Build(ctx, e.schema, sel)
	if err != nil {
		return nil, err
	}

	id, name, err := e.workDir()
	if err != nil {
		return nil, err
	}
	c := crate.New(chroot.New(e.base, name))
	if err := materialize(ctx, c, plan); err != nil {
		return nil, err
	}
	if err := c.Write(); err != nil {
		return nil, err
	}

	archive := name + ".zip"
	f, err := e.base.Create(archive)
	if err != nil {
		return nil, &crate.FSError{Op: "create", Path: e.path(archive), Err: err}
	}
	zerr := c.WriteZip(f)
	if cerr := f.Close(); zerr == nil && cerr != nil {
		zerr = &crate.FSError{Op: "close", Path: e.path(archive), Err: cerr}
	}
	if zerr != nil {
		return nil, zerr
	}

	manifest, err := c.Manifest()
	if err != nil {
		return nil, err
	}
	title, _ := plan.Root.Get("name")
	return &Result{
		ID:            id,
		Dir:           e.path(name),
		Archive:       e.path(archive),
		Manifest:      manifest,
		Title:         title,
		Datasets:      len(plan.Datasets),
		Persons:       len(plan.Persons),
		Organizations: len(plan.Organizations),
		Placeholders:  plan.Placeholders(),
	}, nil
}

// workDir creates a fresh, previously unused directory under base.
func (e *Exporter) workDir() (id, name string, err error) {
	for attempt := 0; attempt < 3; attempt++ {
		id = e.NewID()
		name = WorkDirPrefix + id
		if _, err := e.base.Stat(name); err == nil {
			continue
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", "", &crate.FSError{Op: "stat", Path: e.path(name), Err: err}
		}
		if err := e.base.MkdirAll(name, 0o755); err != nil {
			return "", "", &crate.FSError{Op: "mkdir", Path: e.path(name), Err: err}
		}
		return id, name, nil
	}
	return "", "", fmt.Errorf("no unused working directory after 3 attempts (last %s)", name)
}

func (e *Exporter) path(name string) string {
	return e.base.Join(e.base.Root(), name)
}

// materialize registers persons before datasets so every author reference
// points at an existing entity when the dataset is added.
func materialize(ctx context.Context, c *crate.Crate, plan *Plan) error {
	root := c.Root()
	for _, kv := range plan.Root {
		root.Props.Set(kv.Key, kv.Value)
	}
	for _, o := range plan.Organizations {
		if _, err := c.Add(crate.NewEntity(o.ID, o.Properties, "Organization")); err != nil {
			return err
		}
	}
	for _, p := range plan.Persons {
		ent := crate.NewEntity(p.ID, p.Properties, "Person")
		if p.Affiliation != "" {
			setRef(ctx, ent, "affiliation", p.Affiliation)
		}
		if _, err := c.Add(ent); err != nil {
			return err
		}
	}
	for _, d := range plan.Datasets {
		ent, err := c.AddDataset(d.Folder, d.Properties)
		if err != nil {
			return err
		}
		setRef(ctx, ent, "author", d.Authors...)
		setRef(ctx, ent, "contributor", d.Contributors...)
	}
	dropShadowed(ctx, root, "hasPart")
	return nil
}

// setRef wires ids under key, replacing a schema property of the same name.
func setRef(ctx context.Context, ent *crate.Entity, key string, ids ...string) {
	ent.SetRef(key, ids...)
	dropShadowed(ctx, ent, key)
}

// dropShadowed removes the property key when a reference of the same name
// is wired, since the manifest can hold only one of them.
func dropShadowed(ctx context.Context, ent *crate.Entity, key string) {
	if len(ent.RefIDs(key)) == 0 {
		return
	}
	if v, ok := ent.Props.Delete(key); ok {
		ctxlog.FromContext(ctx).Warn("reference replaces schema property",
			"entity", ent.ID, "key", key, "value", v)
	}
}

func outcome(err error) string {
	var (
		ce  *api.ConfigError
		fse *crate.FSError
	)
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.As(err, &ce):
		return metrics.OutcomeConfigError
	case errors.As(err, &fse):
		return metrics.OutcomeFSError
	default:
		return metrics.OutcomeError
	}
}

// DownloadName is the file name offered for the manifest: the project title
// with path separators and control characters removed.
func DownloadName(title string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\' || r == ':':
			return '-'
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, title)
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." {
		name = "ro-crate-metadata"
	}
	return name + ".json"
}

// WriteDownload stores the manifest as DownloadName(res.Title) in fs and
// returns the file name.
func WriteDownload(fs billy.Filesystem, res *Result) (string, error) {
	name := DownloadName(res.Title)
	if err := util.WriteFile(fs, name, res.Manifest, 0o644); err != nil {
		return "", &crate.FSError{Op: "write", Path: fs.Join(fs.Root(), name), Err: err}
	}
	return name, nil
}
