package mapping

import (
	"context"

	"github.com/agentic-research/crater/api"
	"github.com/agentic-research/crater/internal/facts"
)

// Resolved is the outcome of interpreting one group in one set.
type Resolved struct {
	// Properties holds the keys that resolved, in schema order.
	Properties api.Properties
	// Missing lists the keys that resolved to nothing, in schema order.
	Missing []string
	// Groups are the nested entity groups the caller allowed, untouched.
	Groups []api.Field
}

// Present reports whether key resolved.
func (r *Resolved) Present(key string) bool {
	_, ok := r.Properties.Get(key)
	return ok
}

// Interpreter walks schema groups.
type Interpreter struct {
	resolver *Resolver
}

// NewInterpreter returns an Interpreter resolving through r.
func NewInterpreter(r *Resolver) *Interpreter {
	return &Interpreter{resolver: r}
}

// Interpret resolves every leaf of group under q. Nested groups whose key
// is one of the allowed entity markers are handed back in Resolved.Groups;
// any other nested group, and any invalid node, stops interpretation with
// an api.ConfigError. prefix labels errors with the dotted key path.
func (in *Interpreter) Interpret(ctx context.Context, prefix string, group *api.Node, q facts.Query, allowed ...api.Marker) (*Resolved, error) {
	if group == nil || group.Kind != api.KindGroup {
		return nil, api.NewConfigError(prefix, group, "expected a table")
	}

	res := &Resolved{}
	for _, f := range group.Fields {
		key := joinKey(prefix, f.Key)
		if f.Node.Kind == api.KindGroup {
			if m, _ := api.Classify(f.Key); m != api.MarkerNone && containsMarker(allowed, m) {
				res.Groups = append(res.Groups, f)
				continue
			}
			return nil, api.NewConfigError(key, f.Node, "expected string or list, got a table")
		}

		v, ok, err := in.resolver.Resolve(ctx, key, f.Node, q)
		if err != nil {
			return nil, err
		}
		if !ok {
			res.Missing = append(res.Missing, f.Key)
			continue
		}
		res.Properties.Set(f.Key, v)
	}
	return res, nil
}

func containsMarker(ms []api.Marker, m api.Marker) bool {
	for _, x := range ms {
		if x == m {
			return true
		}
	}
	return false
}

func joinKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
