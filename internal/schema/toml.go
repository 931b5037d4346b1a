package schema

import (
	"fmt"

	"github.com/agentic-research/crater/api"
	"github.com/pelletier/go-toml/v2/unstable"
)

// parseTOML walks the document expression by expression so that keys keep
// their document order; toml.Unmarshal into a map would lose it.
func parseTOML(data []byte, source string) (*api.Node, error) {
	root := api.Group()
	current := root

	var p unstable.Parser
	p.Reset(data)
	for p.NextExpression() {
		expr := p.Expression()
		switch expr.Kind {
		case unstable.Table:
			g, err := descend(root, tomlKey(expr.Key()))
			if err != nil {
				return nil, err
			}
			current = g
		case unstable.ArrayTable:
			keys := tomlKey(expr.Key())
			parent, err := descend(root, keys[:len(keys)-1])
			if err != nil {
				return nil, err
			}
			bad := api.Invalid("array of tables")
			bad.Pos = tomlPos(&p, source, expr)
			parent.Set(keys[len(keys)-1], bad)
			// Keys below an array table are still parsed but land nowhere.
			current = api.Group()
		case unstable.KeyValue:
			if err := setTOMLKeyValue(&p, source, current, expr); err != nil {
				return nil, err
			}
		}
	}
	if err := p.Error(); err != nil {
		return nil, err
	}
	return root, nil
}

func setTOMLKeyValue(p *unstable.Parser, source string, g *api.Node, kv *unstable.Node) error {
	keys := tomlKey(kv.Key())
	parent, err := descend(g, keys[:len(keys)-1])
	if err != nil {
		return err
	}
	n, err := tomlValue(p, source, kv.Value())
	if err != nil {
		return err
	}
	parent.Set(keys[len(keys)-1], n)
	return nil
}

func tomlValue(p *unstable.Parser, source string, v *unstable.Node) (*api.Node, error) {
	switch v.Kind {
	case unstable.String:
		return api.Leaf(string(v.Data)), nil
	case unstable.Array:
		var paths []string
		it := v.Children()
		for it.Next() {
			el := it.Node()
			if el.Kind != unstable.String {
				bad := api.Invalid(fmt.Sprintf("array containing %s", el.Kind))
				bad.Pos = tomlPos(p, source, v)
				return bad, nil
			}
			paths = append(paths, string(el.Data))
		}
		return api.Candidates(paths...), nil
	case unstable.InlineTable:
		g := api.Group()
		it := v.Children()
		for it.Next() {
			if err := setTOMLKeyValue(p, source, g, it.Node()); err != nil {
				return nil, err
			}
		}
		return g, nil
	default:
		bad := api.Invalid(fmt.Sprintf("%s %s", v.Kind, v.Data))
		bad.Pos = tomlPos(p, source, v)
		return bad, nil
	}
}

func tomlKey(it unstable.Iterator) []string {
	var keys []string
	for it.Next() {
		keys = append(keys, string(it.Node().Data))
	}
	return keys
}

func tomlPos(p *unstable.Parser, source string, n *unstable.Node) string {
	shape := p.Shape(n.Raw)
	if shape.Start.Line == 0 {
		return source
	}
	return fmt.Sprintf("%s:%d", source, shape.Start.Line)
}
