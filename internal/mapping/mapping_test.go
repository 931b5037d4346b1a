package mapping

import (
	"context"
	"errors"
	"testing"

	"github.com/agentic-research/crater/api"
	"github.com/agentic-research/crater/internal/facts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newInterpreter(values ...facts.Value) *Interpreter {
	s := facts.NewMemoryStore()
	s.Add(values...)
	return NewInterpreter(NewResolver(facts.NewAdapter(s)))
}

func TestResolve(t *testing.T) {
	ctx := context.Background()
	in := newInterpreter(
		facts.Value{Path: "p/keywords", Text: "a"},
		facts.Value{Path: "p/keywords", CollectionIndex: 1, Text: "b"},
		facts.Value{Path: "p/id", Text: "ds1"},
		facts.Value{Path: "p/id", SetIndex: 1, Text: "ds2"},
		facts.Value{Path: "p/title", SetIndex: 1, Text: "Second"},
	)
	r := in.resolver

	tests := []struct {
		name string
		node *api.Node
		q    facts.Query
		want string
		ok   bool
	}{
		{"multi-valued leaf joins", api.Leaf("p/keywords"), facts.At(0, ""), "a, b", true},
		{"absent leaf", api.Leaf("p/none"), facts.At(0, ""), "", false},
		{"candidate falls back", api.Candidates("p/title", "p/id"), facts.At(0, ""), "ds1", true},
		{"first candidate wins", api.Candidates("p/title", "p/id"), facts.At(1, ""), "Second", true},
		{"no candidate", api.Candidates("p/none", "p/other"), facts.At(0, ""), "", false},
		{"empty candidate list", api.Candidates(), facts.At(0, ""), "", false},
		{"global lookup spans sets", api.Leaf("p/id"), facts.Global(), "ds1, ds2", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok, err := r.Resolve(ctx, "k", tt.node, tt.q)
			require.NoError(t, err)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("group is a config error", func(t *testing.T) {
		_, _, err := r.Resolve(ctx, "k", api.Group(), facts.Global())
		var ce *api.ConfigError
		require.True(t, errors.As(err, &ce))
		assert.Equal(t, "k", ce.Key)
	})

	t.Run("invalid is a config error", func(t *testing.T) {
		_, _, err := r.Resolve(ctx, "k", api.Invalid("integer 5"), facts.Global())
		var ce *api.ConfigError
		require.True(t, errors.As(err, &ce))
		assert.Contains(t, ce.Msg, "integer 5")
	})
}

func TestInterpret(t *testing.T) {
	ctx := context.Background()
	in := newInterpreter(
		facts.Value{Path: "p/dataset/id", Text: "ds1"},
		facts.Value{Path: "p/dataset/description", Text: "About"},
	)

	group := api.Group(
		api.F("title", api.Candidates("p/dataset/title", "p/dataset/id")),
		api.F("license", api.Leaf("p/dataset/license")),
		api.F("description", api.Leaf("p/dataset/description")),
		api.F("creator", api.Group(api.F("name", api.Leaf("p/dataset/creator/name")))),
	)

	res, err := in.Interpret(ctx, "dataset", group, facts.At(0, ""), api.MarkerPerson)
	require.NoError(t, err)
	assert.Equal(t, []string{"title", "description"}, res.Properties.Keys())
	assert.Equal(t, []string{"license"}, res.Missing)
	require.Len(t, res.Groups, 1)
	assert.Equal(t, "creator", res.Groups[0].Key)
	assert.True(t, res.Present("title"))
	assert.False(t, res.Present("license"))

	t.Run("idempotent", func(t *testing.T) {
		again, err := in.Interpret(ctx, "dataset", group, facts.At(0, ""), api.MarkerPerson)
		require.NoError(t, err)
		assert.Equal(t, res, again)
	})

	t.Run("marker not allowed here", func(t *testing.T) {
		_, err := in.Interpret(ctx, "dataset", group, facts.At(0, ""))
		var ce *api.ConfigError
		require.True(t, errors.As(err, &ce))
		assert.Equal(t, "dataset.creator", ce.Key)
	})

	t.Run("nested non-entity group", func(t *testing.T) {
		bad := api.Group(api.F("extra", api.Group(api.F("x", api.Leaf("y")))))
		_, err := in.Interpret(ctx, "dataset", bad, facts.At(0, ""), api.MarkerPerson)
		var ce *api.ConfigError
		require.True(t, errors.As(err, &ce))
		assert.Equal(t, "dataset.extra", ce.Key)
	})

	t.Run("integer leaf fails fast", func(t *testing.T) {
		bad := api.Group(
			api.F("title", api.Invalid("integer 42")),
			api.F("description", api.Leaf("p/dataset/description")),
		)
		res, err := in.Interpret(ctx, "", bad, facts.At(0, ""))
		assert.Nil(t, res)
		var ce *api.ConfigError
		require.True(t, errors.As(err, &ce))
		assert.Equal(t, "title", ce.Key)
	})

	t.Run("non-group input", func(t *testing.T) {
		_, err := in.Interpret(ctx, "dataset", api.Leaf("x"), facts.At(0, ""))
		var ce *api.ConfigError
		require.True(t, errors.As(err, &ce))
	})
}
