// Package dsl parses filter trees from data and text.
//
// The data form is what YAML or JSON decode to. A mapping AND-s its
// entries; the keys "and", "or" and "not" nest, every other key is a
// lookup path:
//
//	and:
//	  - best_friend__name: Jim
//	  - or:
//	      - age__gt: 30
//	      - not: {name: Bob}
//
// A value {"$F": "best_friend__age"} references another field.
//
// The text form is a boolean expression over path = value conditions:
//
//	best_friend__name = "Jim" | ~(age__gt = 30) & tags__label = ["a", "b"]
//
// "~" binds tightest, then "&", then "|".
package dsl

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/relq/internal/expr"
	"github.com/roach88/relq/internal/query"
	"github.com/roach88/relq/internal/tree"
)

// Reserved keys of the data form.
const (
	KeyAnd = "and"
	KeyOr  = "or"
	KeyNot = "not"
	KeyRef = "$F"
)

// ParseError reports malformed filter input.
type ParseError struct {
	Path    string // location in the data form, e.g. "and[1].or"
	Message string
}

func (e *ParseError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ParseYAML decodes a filter in the data form from YAML (or JSON).
func ParseYAML(data []byte) (*tree.Node, error) {
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, &ParseError{Message: err.Error()}
	}
	if v == nil {
		return query.All(), nil
	}
	return FromData(v)
}

// FromData builds a filter tree from decoded data.
func FromData(v any) (*tree.Node, error) {
	return fromData(v, "")
}

func fromData(v any, path string) (*tree.Node, error) {
	switch data := v.(type) {
	case map[string]any:
		return fromMap(data, path)
	case []any:
		// A bare list AND-s its items.
		return fromList(data, path, tree.AND)
	default:
		return nil, &ParseError{Path: path, Message: fmt.Sprintf("expected a mapping or list, got %T", v)}
	}
}

func fromMap(m map[string]any, path string) (*tree.Node, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var nodes []*tree.Node
	conds := make(map[string]any)
	for _, k := range keys {
		at := join(path, k)
		switch k {
		case KeyAnd, KeyOr:
			items, ok := m[k].([]any)
			if !ok {
				return nil, &ParseError{Path: at, Message: "expected a list"}
			}
			conn := tree.AND
			if k == KeyOr {
				conn = tree.OR
			}
			n, err := fromList(items, at, conn)
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, n)
		case KeyNot:
			n, err := fromData(m[k], at)
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, n.Not())
		default:
			value, err := fromValue(m[k], at)
			if err != nil {
				return nil, err
			}
			conds[k] = value
		}
	}
	if len(conds) > 0 {
		nodes = append([]*tree.Node{query.Kw(conds)}, nodes...)
	}
	if len(nodes) == 1 {
		return nodes[0], nil
	}
	return query.All(nodes...), nil
}

func fromList(items []any, path string, conn tree.Connector) (*tree.Node, error) {
	if len(items) == 0 {
		return nil, &ParseError{Path: path, Message: "empty list"}
	}
	var out *tree.Node
	for i, item := range items {
		n, err := fromData(item, fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return nil, err
		}
		if out == nil {
			out = n
			continue
		}
		out = out.Combine(n, conn)
	}
	return out, nil
}

func fromValue(v any, path string) (any, error) {
	switch val := v.(type) {
	case map[string]any:
		ref, ok := val[KeyRef].(string)
		if !ok || len(val) != 1 {
			return nil, &ParseError{Path: path, Message: fmt.Sprintf("a mapping value must be {%s: path}", KeyRef)}
		}
		return expr.F{Name: ref}, nil
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			iv, err := fromValue(item, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			out[i] = iv
		}
		return out, nil
	default:
		return v, nil
	}
}

func join(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}
