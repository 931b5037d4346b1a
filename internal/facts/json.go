package facts

import (
	"fmt"
	"os"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
)

// DefaultSelector finds the value records in a project export.
const DefaultSelector = "$.values[*]"

// LoadJSON reads a JSON project export into a MemoryStore. The selector
// picks the value records; each record is an object such as
//
//	{"attribute": "project/dataset/id", "set_prefix": "", "set_index": 0,
//	 "collection_index": 0, "text": "ds1", "option": "", "unit": ""}
//
// "path" is accepted in place of "attribute". Top-level "title" and
// "description" fill the project fields.
func LoadJSON(path, selector string) (*MemoryStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read facts %s: %w", path, err)
	}
	return ParseJSON(data, selector)
}

// ParseJSON is LoadJSON on bytes.
func ParseJSON(data []byte, selector string) (*MemoryStore, error) {
	if selector == "" {
		selector = DefaultSelector
	}
	expr, err := jp.ParseString(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", selector, err)
	}
	doc, err := oj.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse facts json: %w", err)
	}

	s := NewMemoryStore()
	if root, ok := doc.(map[string]any); ok {
		s.SetProject(Project{
			Title:       stringField(root, "title"),
			Description: stringField(root, "description"),
		})
	}

	for i, match := range expr.Get(doc) {
		rec, ok := match.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("value record %d: expected object, got %T", i, match)
		}
		v := Value{
			Path:      stringField(rec, "attribute"),
			SetPrefix: stringField(rec, "set_prefix"),
			Text:      stringField(rec, "text"),
			Option:    stringField(rec, "option"),
			Unit:      stringField(rec, "unit"),
		}
		if v.Path == "" {
			v.Path = stringField(rec, "path")
		}
		if v.Path == "" {
			return nil, fmt.Errorf("value record %d: missing attribute", i)
		}
		if v.SetIndex, err = intField(rec, "set_index"); err != nil {
			return nil, fmt.Errorf("value record %d: %w", i, err)
		}
		if v.CollectionIndex, err = intField(rec, "collection_index"); err != nil {
			return nil, fmt.Errorf("value record %d: %w", i, err)
		}
		s.Add(v)
	}
	return s, nil
}

func stringField(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func intField(m map[string]any, key string) (int, error) {
	switch v := m[key].(type) {
	case nil:
		return 0, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	default:
		return 0, fmt.Errorf("%s: expected number, got %T", key, v)
	}
}
