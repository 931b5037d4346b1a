// Package export turns a schema plus a fact store into an RO-Crate.
//
// Building is split from materializing: Builder.Build interprets the whole
// schema for every selected dataset and wires persons to datasets in
// memory, so configuration errors surface before anything touches disk.
// Exporter then writes the plan through a crate.Crate.
package export

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/agentic-research/crater/api"
	"github.com/agentic-research/crater/internal/crate"
	"github.com/agentic-research/crater/internal/ctxlog"
	"github.com/agentic-research/crater/internal/facts"
	"github.com/agentic-research/crater/internal/mapping"
)

const (
	// DefaultSetPath enumerates the project's datasets.
	DefaultSetPath = "project/dataset/id"
	// FileNameKey names the dataset property used as folder name.
	FileNameKey = "file_name"
	// NameKey is the identity key of persons and organizations.
	NameKey = "name"
)

// ErrUnknownSet is returned for selected indices the fact store lacks.
var ErrUnknownSet = errors.New("unknown dataset set index")

// Choice is one dataset offered for selection.
type Choice struct {
	SetIndex int
	Label    string
	Selected bool
}

// DatasetPlan is a dataset ready to be materialized.
type DatasetPlan struct {
	SetIndex   int
	Folder     string
	Properties api.Properties
	// Placeholders lists the keys filled with "<key> #<n>".
	Placeholders []string
	Authors      []string
	Contributors []string
}

func (d *DatasetPlan) wire(role api.Role, id string) {
	if role == api.RoleContributor {
		if contains(d.Authors, id) || contains(d.Contributors, id) {
			return
		}
		d.Contributors = append(d.Contributors, id)
		return
	}
	if contains(d.Authors, id) {
		return
	}
	d.Authors = append(d.Authors, id)
	d.Contributors = remove(d.Contributors, id)
}

// PersonPlan is a deduplicated person.
type PersonPlan struct {
	ID          string
	Name        string
	Properties  api.Properties
	Affiliation string
}

// OrganizationPlan is a deduplicated organization.
type OrganizationPlan struct {
	ID         string
	Name       string
	Properties api.Properties
}

// Plan is the in-memory crate graph.
type Plan struct {
	Root          api.Properties
	Datasets      []*DatasetPlan
	Persons       []*PersonPlan
	Organizations []*OrganizationPlan

	persons map[string]*PersonPlan
	orgs    map[string]*OrganizationPlan
	ids     map[string]bool
	folders map[string]bool
}

func newPlan() *Plan {
	return &Plan{
		persons: make(map[string]*PersonPlan),
		orgs:    make(map[string]*OrganizationPlan),
		ids:     make(map[string]bool),
		// The manifest shares the crate root with the dataset folders.
		folders: map[string]bool{crate.MetadataFile: true},
	}
}

// Person returns the person registered under name.
func (p *Plan) Person(name string) (*PersonPlan, bool) {
	person, ok := p.persons[name]
	return person, ok
}

// Placeholders counts placeholder substitutions across datasets.
func (p *Plan) Placeholders() int {
	n := 0
	for _, d := range p.Datasets {
		n += len(d.Placeholders)
	}
	return n
}

func (p *Plan) newID(name, fallback string) string {
	slug := crate.Slug(name)
	if slug == "" {
		slug = fallback
	}
	id := "#" + slug
	for i := 2; p.ids[id]; i++ {
		id = fmt.Sprintf("#%s-%d", slug, i)
	}
	p.ids[id] = true
	return id
}

func (p *Plan) newFolder(name string) string {
	folder := name
	for i := 2; p.folders[folder]; i++ {
		folder = fmt.Sprintf("%s-%d", name, i)
	}
	p.folders[folder] = true
	return folder
}

// Builder interprets a schema against a fact store.
type Builder struct {
	facts  *facts.Adapter
	interp *mapping.Interpreter

	// SetPath is the attribute whose sets enumerate the datasets.
	SetPath string
	// Title replaces the project title as root name when set.
	Title string
	// Now stamps datePublished.
	Now func() time.Time
}

// NewBuilder returns a Builder reading from a.
func NewBuilder(a *facts.Adapter) *Builder {
	return &Builder{
		facts:   a,
		interp:  mapping.NewInterpreter(mapping.NewResolver(a)),
		SetPath: DefaultSetPath,
		Now:     time.Now,
	}
}

// Choices lists the datasets available for export, all selected.
func (b *Builder) Choices(ctx context.Context) ([]Choice, error) {
	sets, err := b.facts.Set(ctx, b.SetPath, "")
	if err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	out := make([]Choice, len(sets))
	for i, v := range sets {
		label := v.String()
		if label == "" {
			label = Placeholder("dataset", v.SetIndex)
		}
		out[i] = Choice{SetIndex: v.SetIndex, Label: label, Selected: true}
	}
	return out, nil
}

// Build interprets s for every selected dataset. An empty selection
// exports every available dataset.
func (b *Builder) Build(ctx context.Context, s *api.Schema, sel Selection) (*Plan, error) {
	logger := ctxlog.FromContext(ctx)
	if s == nil || s.Root == nil {
		return nil, api.NewConfigError("", nil, "empty schema")
	}

	indices, err := b.indices(ctx, sel)
	if err != nil {
		return nil, err
	}

	root, err := b.interp.Interpret(ctx, "", s.Root, facts.Global(), api.MarkerDataset, api.MarkerPerson)
	if err != nil {
		return nil, err
	}

	plan := newPlan()
	if err := b.buildRoot(ctx, plan, root); err != nil {
		return nil, err
	}

	var (
		datasetGroup *api.Node
		rootPersons  []api.Field
	)
	for _, g := range root.Groups {
		switch m, _ := api.Classify(g.Key); m {
		case api.MarkerDataset:
			if datasetGroup != nil {
				return nil, api.NewConfigError(g.Key, g.Node, "more than one dataset table")
			}
			datasetGroup = g.Node
		case api.MarkerPerson:
			rootPersons = append(rootPersons, g)
		}
	}
	if datasetGroup == nil {
		if len(indices) > 0 {
			logger.Warn("schema has no dataset table, exporting root only", "schema", s.Source)
		}
		return plan, nil
	}

	for _, idx := range indices {
		ds, err := b.buildDataset(ctx, plan, datasetGroup, idx)
		if err != nil {
			return nil, err
		}
		for _, g := range rootPersons {
			_, role := api.Classify(g.Key)
			if err := b.addPersons(ctx, plan, ds, g.Key, g.Node, role, facts.At(idx, ""), false); err != nil {
				return nil, err
			}
		}
		plan.Datasets = append(plan.Datasets, ds)
		logger.Debug("dataset resolved",
			"set_index", idx,
			"folder", ds.Folder,
			"placeholders", len(ds.Placeholders),
			"authors", len(ds.Authors))
	}
	return plan, nil
}

func (b *Builder) indices(ctx context.Context, sel Selection) ([]int, error) {
	sets, err := b.facts.Set(ctx, b.SetPath, "")
	if err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	all := make([]int, 0, len(sets))
	for _, v := range sets {
		all = append(all, v.SetIndex)
	}
	if sel.IsEmpty() {
		return all, nil
	}
	// Checked on the bitmaps so a huge range is rejected without expanding it.
	if unknown := sel.Without(NewSelection(all...)); !unknown.IsEmpty() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownSet, unknown.Min())
	}
	return sel.Indices(), nil
}

func (b *Builder) buildRoot(ctx context.Context, plan *Plan, root *mapping.Resolved) error {
	project, err := b.facts.Project(ctx)
	if err != nil {
		return fmt.Errorf("read project: %w", err)
	}
	title := project.Title
	if b.Title != "" {
		title = b.Title
	}
	if title != "" {
		plan.Root.Set("name", title)
	}
	if project.Description != "" {
		plan.Root.Set("description", project.Description)
	}
	plan.Root.Set("datePublished", b.Now().UTC().Format("2006-01-02"))
	for _, kv := range root.Properties {
		plan.Root.Set(kv.Key, kv.Value)
	}
	return nil
}

func (b *Builder) buildDataset(ctx context.Context, plan *Plan, group *api.Node, idx int) (*DatasetPlan, error) {
	res, err := b.interp.Interpret(ctx, "dataset", group, facts.At(idx, ""), api.MarkerPerson)
	if err != nil {
		return nil, err
	}

	ds := &DatasetPlan{SetIndex: idx}
	for _, f := range group.Fields {
		if f.Node.Kind == api.KindGroup {
			continue
		}
		if v, ok := res.Properties.Get(f.Key); ok {
			ds.Properties.Set(f.Key, v)
			continue
		}
		ds.Properties.Set(f.Key, Placeholder(f.Key, idx))
		ds.Placeholders = append(ds.Placeholders, f.Key)
	}

	folder, ok := ds.Properties.Delete(FileNameKey)
	if !ok {
		folder = strconv.Itoa(idx + 1)
	}
	ds.Folder = plan.newFolder(sanitizeFolder(folder, idx))

	for _, g := range res.Groups {
		_, role := api.Classify(g.Key)
		if err := b.addPersons(ctx, plan, ds, "dataset."+g.Key, g.Node, role, facts.At(idx, ""), true); err != nil {
			return nil, err
		}
	}
	return ds, nil
}

// addPersons resolves a person group for one dataset. Nested groups may
// repeat per dataset: their sets live under the dataset's index as prefix.
func (b *Builder) addPersons(ctx context.Context, plan *Plan, ds *DatasetPlan, key string, group *api.Node, role api.Role, q facts.Query, nested bool) error {
	queries := []facts.Query{q}
	if nested {
		sub, err := b.subSets(ctx, group, strconv.Itoa(ds.SetIndex))
		if err != nil {
			return err
		}
		if len(sub) > 0 {
			queries = sub
		}
	}

	logger := ctxlog.FromContext(ctx)
	for _, sq := range queries {
		res, err := b.interp.Interpret(ctx, key, group, sq, api.MarkerOrganization)
		if err != nil {
			return err
		}
		var orgs []*OrganizationPlan
		for _, g := range res.Groups {
			org, err := b.addOrganization(ctx, plan, key+"."+g.Key, g.Node, sq)
			if err != nil {
				return err
			}
			if org != nil {
				orgs = append(orgs, org)
			}
		}

		name, ok := res.Properties.Get(NameKey)
		if !ok {
			logger.Warn("person without name skipped", "key", key, "set_index", ds.SetIndex)
			continue
		}
		person, seen := plan.persons[name]
		if seen {
			logger.Debug("person reused", "name", name, "id", person.ID)
		} else {
			person = &PersonPlan{
				ID:         plan.newID(name, "person"),
				Name:       name,
				Properties: res.Properties,
			}
			if len(orgs) > 0 {
				person.Affiliation = orgs[0].ID
			}
			plan.persons[name] = person
			plan.Persons = append(plan.Persons, person)
		}
		ds.wire(role, person.ID)
	}
	return nil
}

// subSets lists the sets under prefix in which any candidate path of the
// group's name has a value.
func (b *Builder) subSets(ctx context.Context, group *api.Node, prefix string) ([]facts.Query, error) {
	n, ok := group.Lookup(NameKey)
	if !ok {
		return nil, nil
	}
	seen := make(map[int]bool)
	var indices []int
	for _, path := range n.FactPaths() {
		sets, err := b.facts.Set(ctx, path, prefix)
		if err != nil {
			return nil, fmt.Errorf("list sets of %s: %w", path, err)
		}
		for _, v := range sets {
			if !seen[v.SetIndex] {
				seen[v.SetIndex] = true
				indices = append(indices, v.SetIndex)
			}
		}
	}
	sort.Ints(indices)
	out := make([]facts.Query, len(indices))
	for i, idx := range indices {
		out[i] = facts.At(idx, prefix)
	}
	return out, nil
}

func (b *Builder) addOrganization(ctx context.Context, plan *Plan, key string, group *api.Node, q facts.Query) (*OrganizationPlan, error) {
	res, err := b.interp.Interpret(ctx, key, group, q)
	if err != nil {
		return nil, err
	}
	name, ok := res.Properties.Get(NameKey)
	if !ok {
		return nil, nil
	}
	if org, ok := plan.orgs[name]; ok {
		return org, nil
	}
	org := &OrganizationPlan{
		ID:         plan.newID(name, "organization"),
		Name:       name,
		Properties: res.Properties,
	}
	plan.orgs[name] = org
	plan.Organizations = append(plan.Organizations, org)
	return org, nil
}

// Placeholder is the value used for a dataset key that did not resolve.
func Placeholder(key string, idx int) string {
	return fmt.Sprintf("%s #%d", key, idx+1)
}

func sanitizeFolder(name string, idx int) string {
	name = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || unicode.IsControl(r) {
			return '-'
		}
		return r
	}, name)
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." {
		return strconv.Itoa(idx + 1)
	}
	return name
}

func contains(ids []string, id string) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

func remove(ids []string, id string) []string {
	out := ids[:0]
	for _, x := range ids {
		if x != id {
			out = append(out, x)
		}
	}
	return out
}
