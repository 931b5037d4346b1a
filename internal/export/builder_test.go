package export

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/agentic-research/crater/api"
	"github.com/agentic-research/crater/internal/facts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

func newBuilder(values ...facts.Value) *Builder {
	s := facts.NewMemoryStore()
	s.SetProject(facts.Project{Title: "Soil Survey"})
	s.Add(values...)
	b := NewBuilder(facts.NewAdapter(s))
	b.Now = fixedNow
	return b
}

func dataset(idx int, path, text string) facts.Value {
	return facts.Value{Path: path, SetIndex: idx, Text: text}
}

func creator(datasetIdx, idx int, path, text string) facts.Value {
	return facts.Value{Path: path, SetPrefix: strconv.Itoa(datasetIdx), SetIndex: idx, Text: text}
}

func schemaOf(fields ...api.Field) *api.Schema {
	return &api.Schema{Source: "test", Root: api.Group(fields...)}
}

func TestBuildFallbackFolderAndTitle(t *testing.T) {
	b := newBuilder(dataset(0, "project/dataset/id", "ds1"))
	s := schemaOf(api.F("dataset", api.Group(
		api.F("file_name", api.Candidates("project/dataset/identifier", "project/dataset/id")),
		api.F("title", api.Candidates("project/dataset/title", "project/dataset/id")),
	)))

	plan, err := b.Build(context.Background(), s, Selection{})
	require.NoError(t, err)
	require.Len(t, plan.Datasets, 1)

	ds := plan.Datasets[0]
	assert.Equal(t, "ds1", ds.Folder)
	assert.Equal(t, api.Properties{{Key: "title", Value: "ds1"}}, ds.Properties, "file_name is consumed as the folder")
	assert.Empty(t, ds.Placeholders)
}

func TestBuildPlaceholders(t *testing.T) {
	b := newBuilder(dataset(0, "project/dataset/id", "ds1"))
	s := schemaOf(api.F("dataset", api.Group(
		api.F("file_name", api.Leaf("project/dataset/id")),
		api.F("title", api.Leaf("project/dataset/title")),
		api.F("description", api.Leaf("project/dataset/description")),
	)))

	plan, err := b.Build(context.Background(), s, NewSelection(0))
	require.NoError(t, err)
	ds := plan.Datasets[0]

	title, _ := ds.Properties.Get("title")
	assert.Equal(t, "title #1", title)
	desc, _ := ds.Properties.Get("description")
	assert.Equal(t, "description #1", desc)
	assert.Equal(t, []string{"title", "description"}, ds.Placeholders)
	assert.Equal(t, 2, plan.Placeholders())
}

func TestBuildFolderRules(t *testing.T) {
	tests := []struct {
		name    string
		values  []facts.Value
		schema  *api.Node
		folders []string
	}{
		{
			name:    "no file_name key uses index",
			values:  []facts.Value{dataset(0, "project/dataset/id", "a"), dataset(1, "project/dataset/id", "b")},
			schema:  api.Group(api.F("title", api.Leaf("project/dataset/id"))),
			folders: []string{"1", "2"},
		},
		{
			name:    "unresolved file_name uses placeholder",
			values:  []facts.Value{dataset(0, "project/dataset/id", "a")},
			schema:  api.Group(api.F("file_name", api.Leaf("project/dataset/identifier"))),
			folders: []string{"file_name #1"},
		},
		{
			name:    "separators replaced",
			values:  []facts.Value{dataset(0, "project/dataset/id", "raw/data")},
			schema:  api.Group(api.F("file_name", api.Leaf("project/dataset/id"))),
			folders: []string{"raw-data"},
		},
		{
			name:    "dot-dot falls back to index",
			values:  []facts.Value{dataset(0, "project/dataset/id", "..")},
			schema:  api.Group(api.F("file_name", api.Leaf("project/dataset/id"))),
			folders: []string{"1"},
		},
		{
			name: "collisions are suffixed",
			values: []facts.Value{
				dataset(0, "project/dataset/id", "a"), dataset(1, "project/dataset/id", "b"),
				dataset(0, "project/dataset/folder", "same"), dataset(1, "project/dataset/folder", "same"),
			},
			schema:  api.Group(api.F("file_name", api.Leaf("project/dataset/folder"))),
			folders: []string{"same", "same-2"},
		},
		{
			name:    "manifest name is reserved",
			values:  []facts.Value{dataset(0, "project/dataset/id", "ro-crate-metadata.json")},
			schema:  api.Group(api.F("file_name", api.Leaf("project/dataset/id"))),
			folders: []string{"ro-crate-metadata.json-2"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBuilder(tt.values...)
			plan, err := b.Build(context.Background(), schemaOf(api.F("dataset", tt.schema)), Selection{})
			require.NoError(t, err)
			var got []string
			for _, ds := range plan.Datasets {
				got = append(got, ds.Folder)
			}
			assert.Equal(t, tt.folders, got)
		})
	}
}

func TestBuildPersonsDeduplicated(t *testing.T) {
	b := newBuilder(
		dataset(0, "project/dataset/id", "ds1"),
		dataset(1, "project/dataset/id", "ds2"),
		creator(0, 0, "project/dataset/creator/name", "Jane Doe"),
		creator(0, 0, "project/dataset/creator/affiliation", "Uni A"),
		creator(0, 1, "project/dataset/creator/name", "John Roe"),
		creator(1, 0, "project/dataset/creator/name", "Jane Doe"),
		creator(1, 0, "project/dataset/contributor/name", "John Roe"),
		creator(1, 1, "project/dataset/contributor/name", "Ann Poe"),
	)
	s := schemaOf(api.F("dataset", api.Group(
		api.F("file_name", api.Leaf("project/dataset/id")),
		api.F("creator", api.Group(
			api.F("name", api.Leaf("project/dataset/creator/name")),
			api.F("affiliation", api.Group(api.F("name", api.Leaf("project/dataset/creator/affiliation")))),
		)),
		api.F("contributor", api.Group(
			api.F("name", api.Leaf("project/dataset/contributor/name")),
		)),
	)))

	plan, err := b.Build(context.Background(), s, Selection{})
	require.NoError(t, err)
	require.Len(t, plan.Datasets, 2)
	require.Len(t, plan.Persons, 3)

	jane, ok := plan.Person("Jane Doe")
	require.True(t, ok)
	assert.Equal(t, "#jane-doe", jane.ID)
	john, _ := plan.Person("John Roe")
	ann, _ := plan.Person("Ann Poe")

	assert.Equal(t, []string{jane.ID, john.ID}, plan.Datasets[0].Authors)
	assert.Empty(t, plan.Datasets[0].Contributors)
	assert.Equal(t, []string{jane.ID}, plan.Datasets[1].Authors, "one person referenced by both datasets")
	assert.Equal(t, []string{john.ID, ann.ID}, plan.Datasets[1].Contributors)

	require.Len(t, plan.Organizations, 1)
	assert.Equal(t, "#uni-a", plan.Organizations[0].ID)
	assert.Equal(t, "#uni-a", jane.Affiliation)
	assert.Empty(t, john.Affiliation)

	_, hasAffiliation := jane.Properties.Get("affiliation")
	assert.False(t, hasAffiliation, "nested groups are entities, not properties")
}

func TestBuildAuthorWinsOverContributor(t *testing.T) {
	b := newBuilder(
		dataset(0, "project/dataset/id", "ds1"),
		creator(0, 0, "project/dataset/contributor/name", "Jane Doe"),
		creator(0, 0, "project/dataset/creator/name", "Jane Doe"),
	)
	s := schemaOf(api.F("dataset", api.Group(
		api.F("contributor", api.Group(api.F("name", api.Leaf("project/dataset/contributor/name")))),
		api.F("creator", api.Group(api.F("name", api.Leaf("project/dataset/creator/name")))),
	)))

	plan, err := b.Build(context.Background(), s, Selection{})
	require.NoError(t, err)
	ds := plan.Datasets[0]
	assert.Equal(t, []string{"#jane-doe"}, ds.Authors)
	assert.Empty(t, ds.Contributors)
}

func TestBuildRootPersonGroup(t *testing.T) {
	// Persons outside the dataset table resolve at the dataset's own index.
	b := newBuilder(
		dataset(0, "project/dataset/id", "ds1"),
		dataset(1, "project/dataset/id", "ds2"),
		dataset(0, "project/dataset/creator/name", "Jane Doe"),
		dataset(1, "project/dataset/creator/name", "Jane Doe"),
	)
	s := schemaOf(
		api.F("dataset", api.Group(api.F("file_name", api.Leaf("project/dataset/id")))),
		api.F("rocrate.model.person.Person", api.Group(api.F("name", api.Leaf("project/dataset/creator/name")))),
	)

	plan, err := b.Build(context.Background(), s, Selection{})
	require.NoError(t, err)
	require.Len(t, plan.Persons, 1)
	for _, ds := range plan.Datasets {
		assert.Equal(t, []string{"#jane-doe"}, ds.Authors)
	}
}

func TestBuildNestedPersonWithoutSubSets(t *testing.T) {
	b := newBuilder(
		dataset(0, "project/dataset/id", "ds1"),
		dataset(0, "project/dataset/creator/name", "Jane Doe"),
	)
	s := schemaOf(api.F("dataset", api.Group(
		api.F("creator", api.Group(api.F("name", api.Leaf("project/dataset/creator/name")))),
	)))
	plan, err := b.Build(context.Background(), s, Selection{})
	require.NoError(t, err)
	assert.Equal(t, []string{"#jane-doe"}, plan.Datasets[0].Authors)
}

func TestBuildNestedPersonSetsFromEveryCandidate(t *testing.T) {
	b := newBuilder(
		dataset(0, "project/dataset/id", "ds1"),
		creator(0, 0, "project/dataset/creator/full_name", "Jane Doe"),
		creator(0, 1, "project/dataset/creator/name", "John Roe"),
		creator(0, 1, "project/dataset/creator/full_name", "Johnny Roe"),
	)
	s := schemaOf(api.F("dataset", api.Group(
		api.F("creator", api.Group(api.F("name", api.Candidates(
			"project/dataset/creator/name",
			"project/dataset/creator/full_name",
		)))),
	)))
	plan, err := b.Build(context.Background(), s, Selection{})
	require.NoError(t, err)
	assert.Equal(t, []string{"#jane-doe", "#john-roe"}, plan.Datasets[0].Authors)
}

func TestBuildSkipsNamelessPersons(t *testing.T) {
	b := newBuilder(
		dataset(0, "project/dataset/id", "ds1"),
		creator(0, 0, "project/dataset/creator/email", "x@example.org"),
	)
	s := schemaOf(api.F("dataset", api.Group(
		api.F("creator", api.Group(
			api.F("name", api.Leaf("project/dataset/creator/name")),
			api.F("email", api.Leaf("project/dataset/creator/email")),
		)),
	)))
	plan, err := b.Build(context.Background(), s, Selection{})
	require.NoError(t, err)
	assert.Empty(t, plan.Persons)
	assert.Empty(t, plan.Datasets[0].Authors)
}

func TestBuildRoot(t *testing.T) {
	b := newBuilder(
		facts.Value{Path: "project/keywords", Text: "soil"},
		facts.Value{Path: "project/keywords", CollectionIndex: 1, Text: "water"},
	)
	s := schemaOf(
		api.F("keywords", api.Leaf("project/keywords")),
		api.F("license", api.Leaf("project/license")),
	)

	plan, err := b.Build(context.Background(), s, Selection{})
	require.NoError(t, err)
	assert.Empty(t, plan.Datasets, "no dataset table, root only")

	name, _ := plan.Root.Get("name")
	assert.Equal(t, "Soil Survey", name)
	date, _ := plan.Root.Get("datePublished")
	assert.Equal(t, "2026-03-01", date)
	kw, _ := plan.Root.Get("keywords")
	assert.Equal(t, "soil, water", kw)
	_, ok := plan.Root.Get("license")
	assert.False(t, ok, "unresolved root keys are omitted")

	b.Title = "Override"
	plan, err = b.Build(context.Background(), s, Selection{})
	require.NoError(t, err)
	name, _ = plan.Root.Get("name")
	assert.Equal(t, "Override", name)
}

func TestBuildSelection(t *testing.T) {
	b := newBuilder(
		dataset(0, "project/dataset/id", "a"),
		dataset(1, "project/dataset/id", "b"),
		dataset(2, "project/dataset/id", "c"),
	)
	s := schemaOf(api.F("dataset", api.Group(api.F("file_name", api.Leaf("project/dataset/id")))))

	plan, err := b.Build(context.Background(), s, NewSelection(2, 0))
	require.NoError(t, err)
	require.Len(t, plan.Datasets, 2)
	assert.Equal(t, "a", plan.Datasets[0].Folder)
	assert.Equal(t, "c", plan.Datasets[1].Folder)

	_, err = b.Build(context.Background(), s, NewSelection(5))
	assert.True(t, errors.Is(err, ErrUnknownSet))

	huge, err := ParseSelection("0-4000000000")
	require.NoError(t, err)
	_, err = b.Build(context.Background(), s, huge)
	require.True(t, errors.Is(err, ErrUnknownSet))
	assert.Contains(t, err.Error(), ": 3")
}

func TestBuildConfigErrors(t *testing.T) {
	b := newBuilder(dataset(0, "project/dataset/id", "ds1"))
	tests := []struct {
		name string
		s    *api.Schema
		key  string
	}{
		{"integer leaf", schemaOf(api.F("dataset", api.Group(api.F("title", api.Invalid("integer 5"))))), "dataset.title"},
		{"nested plain group", schemaOf(api.F("dataset", api.Group(api.F("extra", api.Group())))), "dataset.extra"},
		{"group under root", schemaOf(api.F("extra", api.Group())), "extra"},
		{"affiliation outside person", schemaOf(api.F("dataset", api.Group(api.F("affiliation", api.Group())))), "dataset.affiliation"},
		{"invalid inside person", schemaOf(api.F("dataset", api.Group(api.F("creator", api.Group(api.F("name", api.Invalid("bool true"))))))), "dataset.creator.name"},
		{"nil root", &api.Schema{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.Build(context.Background(), tt.s, Selection{})
			var ce *api.ConfigError
			require.True(t, errors.As(err, &ce), "got %v", err)
			assert.Equal(t, tt.key, ce.Key)
		})
	}
}

func TestChoices(t *testing.T) {
	b := newBuilder(
		dataset(1, "project/dataset/id", "second"),
		dataset(0, "project/dataset/id", "first"),
		facts.Value{Path: "project/dataset/id", SetIndex: 2},
	)
	choices, err := b.Choices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Choice{
		{SetIndex: 0, Label: "first", Selected: true},
		{SetIndex: 1, Label: "second", Selected: true},
		{SetIndex: 2, Label: "dataset #3", Selected: true},
	}, choices)
}

func TestBuildIsIdempotent(t *testing.T) {
	b := newBuilder(
		dataset(0, "project/dataset/id", "ds1"),
		creator(0, 0, "project/dataset/creator/name", "Jane Doe"),
	)
	s := schemaOf(api.F("dataset", api.Group(
		api.F("file_name", api.Leaf("project/dataset/id")),
		api.F("title", api.Leaf("project/dataset/title")),
		api.F("creator", api.Group(api.F("name", api.Leaf("project/dataset/creator/name")))),
	)))
	first, err := b.Build(context.Background(), s, Selection{})
	require.NoError(t, err)
	second, err := b.Build(context.Background(), s, Selection{})
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
