// Package facts reads project answers ("facts") from a backing store.
//
// A fact is addressed by its attribute path plus the repeating-set
// coordinates (set prefix, set index) it was entered under. Lookups on
// unknown paths return nothing rather than an error.
package facts

import (
	"context"
	"strings"
)

// AnyIndex disables set-index filtering in a Query.
const AnyIndex = -1

// Value is a single stored answer.
type Value struct {
	Path            string
	SetPrefix       string
	SetIndex        int
	CollectionIndex int
	Text            string
	// Option is the display text of a chosen option, if the answer was a choice.
	Option string
	Unit   string
}

// String returns the display form: free text, falling back to the option
// text, followed by the unit when one is recorded.
func (v Value) String() string {
	s := v.Text
	if s == "" {
		s = v.Option
	}
	if s != "" && v.Unit != "" {
		s += " " + v.Unit
	}
	return s
}

// IsEmpty reports whether the value has nothing to display.
func (v Value) IsEmpty() bool {
	return strings.TrimSpace(v.Text) == "" && strings.TrimSpace(v.Option) == ""
}

// Query selects values by repeating-set coordinates.
type Query struct {
	SetPrefix string
	// SetIndex is AnyIndex for global lookups.
	SetIndex int
}

// Global is the query used outside any repeating set.
func Global() Query {
	return Query{SetIndex: AnyIndex}
}

// At returns a query for one set index under prefix.
func At(setIndex int, setPrefix string) Query {
	return Query{SetPrefix: setPrefix, SetIndex: setIndex}
}

// Match reports whether v lies in the queried set.
func (q Query) Match(v Value) bool {
	if v.SetPrefix != q.SetPrefix {
		return false
	}
	return q.SetIndex == AnyIndex || v.SetIndex == q.SetIndex
}

// Project holds the project-level fields that are not answers.
type Project struct {
	Title       string
	Description string
}

// Store is a read-only source of facts.
type Store interface {
	// Project returns the project fields.
	Project(ctx context.Context) (Project, error)
	// Values returns the values stored at path that match q, in the
	// store's natural order.
	Values(ctx context.Context, path string, q Query) ([]Value, error)
	Close() error
}
