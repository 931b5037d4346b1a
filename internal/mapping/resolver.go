// Package mapping turns schema nodes into resolved property values.
package mapping

import (
	"context"
	"strings"

	"github.com/agentic-research/crater/api"
	"github.com/agentic-research/crater/internal/facts"
)

// Separator joins the values of a multi-valued fact.
const Separator = ", "

// Resolver resolves leaf and candidate nodes against a fact store.
type Resolver struct {
	facts *facts.Adapter
}

// NewResolver returns a Resolver reading from a.
func NewResolver(a *facts.Adapter) *Resolver {
	return &Resolver{facts: a}
}

// Resolve returns the value for n in the set selected by q. The boolean is
// false when nothing was found. Groups and invalid nodes are ConfigErrors;
// key only labels the error.
func (r *Resolver) Resolve(ctx context.Context, key string, n *api.Node, q facts.Query) (string, bool, error) {
	switch n.Kind {
	case api.KindLeaf:
		return r.leaf(ctx, n.Path, q)
	case api.KindCandidates:
		for _, path := range n.Paths {
			v, ok, err := r.leaf(ctx, path, q)
			if err != nil || ok {
				return v, ok, err
			}
		}
		return "", false, nil
	case api.KindGroup:
		return "", false, api.NewConfigError(key, n, "expected string or list, got a table")
	default:
		return "", false, api.NewConfigError(key, n, "expected string or list, got %s", n.Raw)
	}
}

func (r *Resolver) leaf(ctx context.Context, path string, q facts.Query) (string, bool, error) {
	values, err := r.facts.List(ctx, path, q)
	if err != nil {
		return "", false, err
	}
	joined := strings.Join(values, Separator)
	if joined == "" {
		return "", false, nil
	}
	return joined, true, nil
}
