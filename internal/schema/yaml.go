package schema

import (
	"fmt"
	"strings"

	"github.com/agentic-research/crater/api"
	"gopkg.in/yaml.v3"
)

func parseYAML(data []byte, source string) (*api.Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	n := &doc
	if n.Kind == yaml.DocumentNode {
		if len(n.Content) == 0 {
			return api.Group(), nil
		}
		n = n.Content[0]
	}
	if n.Kind == 0 {
		return api.Group(), nil
	}
	return yamlNode(n, source), nil
}

func yamlNode(n *yaml.Node, source string) *api.Node {
	if n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	pos := fmt.Sprintf("%s:%d", source, n.Line)

	var out *api.Node
	switch n.Kind {
	case yaml.ScalarNode:
		if tag := n.ShortTag(); tag == "!!str" {
			out = api.Leaf(n.Value)
		} else {
			out = api.Invalid(fmt.Sprintf("%s %s", strings.TrimPrefix(tag, "!!"), n.Value))
		}
	case yaml.SequenceNode:
		paths := make([]string, 0, len(n.Content))
		for _, el := range n.Content {
			if el.Kind != yaml.ScalarNode || el.ShortTag() != "!!str" {
				out = api.Invalid("sequence containing non-string values")
				break
			}
			paths = append(paths, el.Value)
		}
		if out == nil {
			out = api.Candidates(paths...)
		}
	case yaml.MappingNode:
		out = api.Group()
		for i := 0; i+1 < len(n.Content); i += 2 {
			out.Set(n.Content[i].Value, yamlNode(n.Content[i+1], source))
		}
	default:
		out = api.Invalid("unsupported yaml node")
	}
	out.Pos = pos
	return out
}
