package schema

import (
	"fmt"
	"sort"

	"github.com/agentic-research/crater/api"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
)

// parseHCL accepts attributes (leaves and candidate lists) and unlabeled
// blocks (groups):
//
//	dataset {
//	  file_name = ["project/dataset/identifier", "project/dataset/id"]
//	  title     = "project/dataset/title"
//	}
func parseHCL(data []byte, source string) (*api.Node, error) {
	file, diags := hclsyntax.ParseConfig(data, source, hcl.Pos{Line: 1, Column: 1})
	if diags.HasErrors() {
		return nil, diags
	}
	body, ok := file.Body.(*hclsyntax.Body)
	if !ok {
		return nil, fmt.Errorf("unexpected hcl body type %T", file.Body)
	}
	return hclBody(body, source)
}

type hclItem struct {
	offset int
	key    string
	node   *api.Node
}

func hclBody(body *hclsyntax.Body, source string) (*api.Node, error) {
	items := make([]hclItem, 0, len(body.Attributes)+len(body.Blocks))

	// Attributes come back as a map; source offsets restore document order.
	for name, attr := range body.Attributes {
		n, err := hclExpr(attr.Expr, source)
		if err != nil {
			return nil, fmt.Errorf("attribute %s: %w", name, err)
		}
		n.Pos = fmt.Sprintf("%s:%d", source, attr.SrcRange.Start.Line)
		items = append(items, hclItem{offset: attr.SrcRange.Start.Byte, key: name, node: n})
	}

	for _, blk := range body.Blocks {
		var n *api.Node
		if len(blk.Labels) > 0 {
			n = api.Invalid(fmt.Sprintf("labeled block %q", blk.Labels))
		} else {
			var err error
			if n, err = hclBody(blk.Body, source); err != nil {
				return nil, err
			}
		}
		n.Pos = fmt.Sprintf("%s:%d", source, blk.TypeRange.Start.Line)
		items = append(items, hclItem{offset: blk.TypeRange.Start.Byte, key: blk.Type, node: n})
	}

	sort.Slice(items, func(i, j int) bool { return items[i].offset < items[j].offset })

	g := api.Group()
	for _, it := range items {
		if prev, ok := g.Lookup(it.key); ok {
			return nil, fmt.Errorf("%s: %q repeats the definition at %s", it.node.Pos, it.key, prev.Pos)
		}
		g.Set(it.key, it.node)
	}
	return g, nil
}

func hclExpr(expr hclsyntax.Expression, source string) (*api.Node, error) {
	if obj, ok := expr.(*hclsyntax.ObjectConsExpr); ok {
		g := api.Group()
		for _, item := range obj.Items {
			kv, diags := item.KeyExpr.Value(nil)
			if diags.HasErrors() {
				return nil, diags
			}
			if kv.Type() != cty.String || kv.IsNull() {
				return nil, fmt.Errorf("object keys must be strings")
			}
			child, err := hclExpr(item.ValueExpr, source)
			if err != nil {
				return nil, err
			}
			child.Pos = fmt.Sprintf("%s:%d", source, item.ValueExpr.Range().Start.Line)
			g.Set(kv.AsString(), child)
		}
		return g, nil
	}

	val, diags := expr.Value(nil)
	if diags.HasErrors() {
		return nil, diags
	}
	return ctyNode(val), nil
}

func ctyNode(val cty.Value) *api.Node {
	if val.IsNull() || !val.IsKnown() {
		return api.Invalid("null")
	}
	ty := val.Type()
	switch {
	case ty == cty.String:
		return api.Leaf(val.AsString())
	case ty.IsTupleType() || ty.IsListType():
		var paths []string
		it := val.ElementIterator()
		for it.Next() {
			_, el := it.Element()
			if el.Type() != cty.String || el.IsNull() || !el.IsKnown() {
				return api.Invalid("list containing non-string values")
			}
			paths = append(paths, el.AsString())
		}
		return api.Candidates(paths...)
	case ty == cty.Number:
		return api.Invalid("number " + val.AsBigFloat().String())
	case ty == cty.Bool:
		return api.Invalid(fmt.Sprintf("bool %t", val.True()))
	default:
		return api.Invalid(ty.FriendlyName())
	}
}
