// Package refgraph models a normalized object cache: a flat map from opaque
// keys to objects whose fields may point at other entries via {"__ref": key}.
package refgraph

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// RefField is the field name carrying a pointer to another entry.
const RefField = "__ref"

// ErrMissingKey is returned for every failed lookup in the graph.
var ErrMissingKey = errors.New("refgraph: missing key")

// ErrNotObject is returned by Decode when the document is not a JSON object.
var ErrNotObject = errors.New("refgraph: not an object")

// Node is a single object in the graph.
type Node map[string]any

// Graph is an explicit key to node map.
type Graph struct {
	nodes map[string]Node
}

// New builds a graph from an already decoded state map. Entries that are not
// objects are dropped.
func New(state map[string]any) *Graph {
	g := &Graph{nodes: make(map[string]Node, len(state))}
	for key, value := range state {
		if obj, ok := asObject(value); ok {
			g.nodes[key] = obj
		}
	}
	return g
}

// Decode parses a raw JSON object. Numbers are kept as json.Number so
// large identifiers survive without float rounding.
func Decode(raw []byte) (Node, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("decode reference graph: %w", err)
	}
	if obj == nil {
		return nil, fmt.Errorf("decode reference graph: %w", ErrNotObject)
	}
	return Node(obj), nil
}

// Len returns the number of entries.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Lookup returns the node stored under key.
func (g *Graph) Lookup(key string) (Node, error) {
	node, ok := g.nodes[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMissingKey, key)
	}
	return node, nil
}

// Follow resolves the reference stored in n[field].
func (g *Graph) Follow(n Node, field string) (Node, error) {
	value, ok := n[field]
	if !ok {
		return nil, fmt.Errorf("%w: field %q", ErrMissingKey, field)
	}
	return g.Resolve(value)
}

// Resolve follows a {"__ref": key} value to its node.
func (g *Graph) Resolve(value any) (Node, error) {
	key, ok := RefOf(value)
	if !ok {
		return nil, fmt.Errorf("%w: value is not a reference", ErrMissingKey)
	}
	return g.Lookup(key)
}

// RefOf extracts the key from a {"__ref": key} value.
func RefOf(value any) (string, bool) {
	obj, ok := asObject(value)
	if !ok {
		return "", false
	}
	key, ok := obj[RefField].(string)
	return key, ok && key != ""
}

// Get walks nested objects along path and returns the value at the end.
func (n Node) Get(path ...string) (any, bool) {
	var current any = map[string]any(n)
	for _, field := range path {
		obj, ok := asObject(current)
		if !ok {
			return nil, false
		}
		current, ok = obj[field]
		if !ok || current == nil {
			return nil, false
		}
	}
	return current, true
}

// String returns the string at path.
func (n Node) String(path ...string) (string, bool) {
	value, ok := n.Get(path...)
	if !ok {
		return "", false
	}
	s, ok := value.(string)
	return s, ok
}

// Number returns the numeric value at path. Strings are not coerced.
func (n Node) Number(path ...string) (float64, bool) {
	value, ok := n.Get(path...)
	if !ok {
		return 0, false
	}
	switch v := value.(type) {
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// Int returns the integer value at path.
func (n Node) Int(path ...string) (int64, bool) {
	value, ok := n.Get(path...)
	if !ok {
		return 0, false
	}
	switch v := value.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i, true
		}
		f, err := strconv.ParseFloat(v.String(), 64)
		if err != nil || f != float64(int64(f)) {
			return 0, false
		}
		return int64(f), true
	case float64:
		if v != float64(int64(v)) {
			return 0, false
		}
		return int64(v), true
	case int:
		return int64(v), true
	case int64:
		return v, true
	}
	return 0, false
}

// Object returns the nested object at path.
func (n Node) Object(path ...string) (Node, bool) {
	value, ok := n.Get(path...)
	if !ok {
		return nil, false
	}
	return asObject(value)
}

// Array returns the list at path.
func (n Node) Array(path ...string) ([]any, bool) {
	value, ok := n.Get(path...)
	if !ok {
		return nil, false
	}
	list, ok := value.([]any)
	return list, ok
}

func asObject(value any) (Node, bool) {
	switch v := value.(type) {
	case Node:
		return v, true
	case map[string]any:
		return Node(v), true
	}
	return nil, false
}
