package facts

import (
	"context"
	"sort"
)

// Adapter gives the exporter its lookup vocabulary on top of a Store.
type Adapter struct {
	store Store
}

// NewAdapter wraps s.
func NewAdapter(s Store) *Adapter {
	return &Adapter{store: s}
}

// Project returns the project fields of the underlying store.
func (a *Adapter) Project(ctx context.Context) (Project, error) {
	return a.store.Project(ctx)
}

// Values returns the raw values at path matching q.
func (a *Adapter) Values(ctx context.Context, path string, q Query) ([]Value, error) {
	return a.store.Values(ctx, path, q)
}

// Lookup returns the display strings of the non-empty values at path.
// Pass AnyIndex as setIndex for a global lookup.
func (a *Adapter) Lookup(ctx context.Context, path string, setIndex int, setPrefix string) ([]string, error) {
	return a.List(ctx, path, At(setIndex, setPrefix))
}

// List returns the display strings of the non-empty values at path.
func (a *Adapter) List(ctx context.Context, path string, q Query) ([]string, error) {
	values, err := a.store.Values(ctx, path, q)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v.IsEmpty() {
			continue
		}
		out = append(out, v.String())
	}
	return out, nil
}

// Text returns the first non-empty display string at path.
func (a *Adapter) Text(ctx context.Context, path string, q Query) (string, bool, error) {
	list, err := a.List(ctx, path, q)
	if err != nil || len(list) == 0 {
		return "", false, err
	}
	return list[0], true, nil
}

// Option returns the option text of the first value at path carrying one,
// or def when there is none.
func (a *Adapter) Option(ctx context.Context, path string, q Query, def string) (string, error) {
	values, err := a.store.Values(ctx, path, q)
	if err != nil {
		return "", err
	}
	for _, v := range values {
		if v.Option != "" {
			return v.Option, nil
		}
	}
	return def, nil
}

// Set enumerates the repeating sets recorded at path under setPrefix: one
// value per distinct set index, ordered by index. The returned value is
// the first one stored for that set and may be empty.
func (a *Adapter) Set(ctx context.Context, path, setPrefix string) ([]Value, error) {
	values, err := a.store.Values(ctx, path, Query{SetPrefix: setPrefix, SetIndex: AnyIndex})
	if err != nil {
		return nil, err
	}
	seen := make(map[int]bool, len(values))
	out := make([]Value, 0, len(values))
	for _, v := range values {
		if seen[v.SetIndex] {
			continue
		}
		seen[v.SetIndex] = true
		out = append(out, v)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SetIndex < out[j].SetIndex })
	return out, nil
}
