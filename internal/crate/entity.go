package crate

import (
	"encoding/json"

	"github.com/agentic-research/crater/api"
)

// Entity is one node of the crate's JSON-LD graph.
type Entity struct {
	ID    string
	Types []string
	Props api.Properties
	Refs  []Ref
}

// Ref links an entity to others by @id under a property key.
type Ref struct {
	Key string
	IDs []string
}

// NewEntity builds an entity of the given types.
func NewEntity(id string, props api.Properties, types ...string) *Entity {
	return &Entity{ID: id, Types: types, Props: props.Clone()}
}

// SetRef replaces the references under key. No ids removes the key.
func (e *Entity) SetRef(key string, ids ...string) {
	for i, r := range e.Refs {
		if r.Key != key {
			continue
		}
		if len(ids) == 0 {
			e.Refs = append(e.Refs[:i], e.Refs[i+1:]...)
		} else {
			e.Refs[i].IDs = append([]string(nil), ids...)
		}
		return
	}
	if len(ids) > 0 {
		e.Refs = append(e.Refs, Ref{Key: key, IDs: append([]string(nil), ids...)})
	}
}

// AddRef appends id to the references under key, once.
func (e *Entity) AddRef(key, id string) {
	ids := e.RefIDs(key)
	for _, x := range ids {
		if x == id {
			return
		}
	}
	e.SetRef(key, append(ids, id)...)
}

// RefIDs returns the ids referenced under key.
func (e *Entity) RefIDs(key string) []string {
	for _, r := range e.Refs {
		if r.Key == key {
			return append([]string(nil), r.IDs...)
		}
	}
	return nil
}

// HasType reports whether the entity carries typ.
func (e *Entity) HasType(typ string) bool {
	for _, t := range e.Types {
		if t == typ {
			return true
		}
	}
	return false
}

type idRef struct {
	ID string `json:"@id"`
}

// MarshalJSON flattens the entity into a JSON-LD node object. Keys are
// emitted in sorted order by encoding/json, so output is stable.
func (e *Entity) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(e.Props)+len(e.Refs)+2)
	for _, kv := range e.Props {
		m[kv.Key] = kv.Value
	}
	for _, r := range e.Refs {
		if len(r.IDs) == 1 {
			m[r.Key] = idRef{ID: r.IDs[0]}
			continue
		}
		refs := make([]idRef, len(r.IDs))
		for i, id := range r.IDs {
			refs[i] = idRef{ID: id}
		}
		m[r.Key] = refs
	}
	m["@id"] = e.ID
	if len(e.Types) == 1 {
		m["@type"] = e.Types[0]
	} else if len(e.Types) > 1 {
		m["@type"] = e.Types
	}
	return json.Marshal(m)
}
