package api

import "strings"

// Kind discriminates the shapes a schema node can take.
type Kind int

const (
	// KindInvalid marks a value the loader could parse but the exporter
	// cannot interpret (numbers, booleans, lists of non-strings, ...).
	// It is reported as a ConfigError when the interpreter reaches it.
	KindInvalid Kind = iota
	// KindLeaf is a single fact path.
	KindLeaf
	// KindCandidates is an ordered list of fact paths; the first one that
	// resolves wins.
	KindCandidates
	// KindGroup is an ordered mapping of keys to child nodes.
	KindGroup
)

func (k Kind) String() string {
	switch k {
	case KindLeaf:
		return "leaf"
	case KindCandidates:
		return "candidates"
	case KindGroup:
		return "group"
	default:
		return "invalid"
	}
}

// Schema is a loaded mapping configuration.
type Schema struct {
	// Source is the file the schema was read from ("" for built-ins).
	Source string
	// Root is always a group.
	Root *Node
}

// Node is one element of the schema tree.
type Node struct {
	Kind Kind
	// Path is the fact path of a leaf.
	Path string
	// Paths are the candidate fact paths, in priority order.
	Paths []string
	// Fields are the children of a group, in document order.
	Fields []Field
	// Raw describes the unsupported value of an invalid node.
	Raw string
	// Pos is the source position, when the loader knows it.
	Pos string
}

// Field is a keyed child of a group.
type Field struct {
	Key  string
	Node *Node
}

// Leaf returns a leaf node for path.
func Leaf(path string) *Node {
	return &Node{Kind: KindLeaf, Path: path}
}

// Candidates returns a candidate-list node.
func Candidates(paths ...string) *Node {
	return &Node{Kind: KindCandidates, Paths: paths}
}

// Group returns a group node with the given fields.
func Group(fields ...Field) *Node {
	return &Node{Kind: KindGroup, Fields: fields}
}

// Invalid returns a node standing in for an unsupported value.
func Invalid(raw string) *Node {
	return &Node{Kind: KindInvalid, Raw: raw}
}

// F is shorthand for building a Field.
func F(key string, n *Node) Field {
	return Field{Key: key, Node: n}
}

// Lookup returns the child stored under key.
func (n *Node) Lookup(key string) (*Node, bool) {
	if n == nil || n.Kind != KindGroup {
		return nil, false
	}
	for _, f := range n.Fields {
		if f.Key == key {
			return f.Node, true
		}
	}
	return nil, false
}

// Set replaces the child under key, or appends it when the key is new.
func (n *Node) Set(key string, child *Node) {
	for i, f := range n.Fields {
		if f.Key == key {
			n.Fields[i].Node = child
			return
		}
	}
	n.Fields = append(n.Fields, Field{Key: key, Node: child})
}

// FactPaths returns every fact path of a leaf or candidate list, in
// priority order.
func (n *Node) FactPaths() []string {
	switch n.Kind {
	case KindLeaf:
		return []string{n.Path}
	case KindCandidates:
		return append([]string(nil), n.Paths...)
	}
	return nil
}

// Marker classifies a group key that introduces an entity rather than
// a plain property.
type Marker int

const (
	MarkerNone Marker = iota
	MarkerDataset
	MarkerPerson
	MarkerOrganization
)

// Role is the relation a person entity has to its dataset.
type Role int

const (
	RoleNone Role = iota
	RoleAuthor
	RoleContributor
)

func (r Role) String() string {
	switch r {
	case RoleAuthor:
		return "author"
	case RoleContributor:
		return "contributor"
	default:
		return ""
	}
}

var markers = map[string]struct {
	marker Marker
	role   Role
}{
	"dataset":      {MarkerDataset, RoleNone},
	"person":       {MarkerPerson, RoleAuthor},
	"author":       {MarkerPerson, RoleAuthor},
	"creator":      {MarkerPerson, RoleAuthor},
	"contributor":  {MarkerPerson, RoleContributor},
	"affiliation":  {MarkerOrganization, RoleNone},
	"organization": {MarkerOrganization, RoleNone},
}

// Classify reports which entity marker a key names. Dotted class names such
// as "rocrate.model.person.Person" are classified by their last segment.
func Classify(key string) (Marker, Role) {
	k := strings.ToLower(key)
	if i := strings.LastIndexByte(k, '.'); i >= 0 {
		k = k[i+1:]
	}
	m, ok := markers[k]
	if !ok {
		return MarkerNone, RoleNone
	}
	return m.marker, m.role
}
