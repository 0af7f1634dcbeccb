package tree

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/roach88/relq/internal/ir"
)

// Connector joins the children of a Node.
// Custom connectors are plain strings; AND is the default.
type Connector string

const (
	AND Connector = "AND"
	OR  Connector = "OR"
)

// Kind tags the concrete variant of a Node. It is fixed at creation.
type Kind uint8

const (
	// KindNode is a bare boolean tree.
	KindNode Kind = iota
	// KindFilter holds unresolved filter conditions built by callers.
	KindFilter
	// KindWhere holds resolved lookups ready for compilation.
	KindWhere
)

func (k Kind) String() string {
	switch k {
	case KindNode:
		return "node"
	case KindFilter:
		return "filter"
	case KindWhere:
		return "where"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Node is a mutable n-ary boolean tree. Children are either leaves of any
// type or *Node. A Node with no children is empty and constrains nothing.
//
// A Node is not safe for concurrent mutation.
type Node struct {
	kind      Kind
	Connector Connector
	Negated   bool
	Children  []any
}

// Equaler lets a leaf define its own equality. Leaves without it are
// compared with reflect.DeepEqual.
type Equaler interface {
	Equal(other any) bool
}

// Cloner lets a leaf be duplicated by DeepCopy. Leaves without it are
// shared between the original and the copy.
type Cloner interface {
	Clone() any
}

// Create returns a Node of the given kind. An empty connector means AND.
// The children slice is copied.
func Create(kind Kind, children []any, connector Connector, negated bool) *Node {
	if connector == "" {
		connector = AND
	}
	n := &Node{
		kind:      kind,
		Connector: connector,
		Negated:   negated,
	}
	if len(children) > 0 {
		n.Children = append([]any(nil), children...)
	}
	return n
}

// New returns a KindNode AND-ing the given children.
func New(children ...any) *Node {
	return Create(KindNode, children, AND, false)
}

// Kind returns the node's variant.
func (n *Node) Kind() Kind {
	return n.kind
}

// Len returns the number of direct children.
func (n *Node) Len() int {
	if n == nil {
		return 0
	}
	return len(n.Children)
}

// IsEmpty reports whether the node has no children.
func (n *Node) IsEmpty() bool {
	return n.Len() == 0
}

// Contains reports whether child is a direct child of n.
func (n *Node) Contains(child any) bool {
	for _, c := range n.Children {
		if childEqual(c, child) {
			return true
		}
	}
	return false
}

// Negate toggles negation of the whole subtree in place. Children are not
// touched, so NOT(NOT(x)) stays two negated levels.
func (n *Node) Negate() {
	n.Negated = !n.Negated
}

// Add combines data with the node's existing content using conn and returns
// the value the caller should keep a handle on.
//
//   - If conn differs from the node's connector, the existing content moves
//     into a single child (a shallow copy carrying the negation) and the node
//     switches connector. data is appended and returned.
//   - If data is a non-negated *Node whose connector is conn, or which has a
//     single child, its children are spliced in and n is returned.
//   - Otherwise data is appended as one child and returned.
func (n *Node) Add(data any, conn Connector) any {
	if n.Connector != conn {
		if len(n.Children) > 0 {
			obj := n.Copy()
			n.Connector = conn
			n.Negated = false
			n.Children = []any{obj, data}
			return data
		}
		n.Connector = conn
	}

	if other, ok := data.(*Node); ok && !other.Negated && (other.Connector == conn || len(other.Children) == 1) {
		n.Children = append(n.Children, other.Children...)
		return n
	}

	n.Children = append(n.Children, data)
	return data
}

// Copy returns a shallow copy that shares the children with n. The shared
// slice is clipped so an append on either side reallocates instead of
// writing into the other's backing array; element mutation is still shared.
func (n *Node) Copy() *Node {
	return &Node{
		kind:      n.kind,
		Connector: n.Connector,
		Negated:   n.Negated,
		Children:  n.Children[:len(n.Children):len(n.Children)],
	}
}

// DeepCopy duplicates every nested *Node. Leaves implementing Cloner are
// cloned, all other leaves are shared by reference.
func (n *Node) DeepCopy() *Node {
	obj := &Node{
		kind:      n.kind,
		Connector: n.Connector,
		Negated:   n.Negated,
	}
	if n.Children != nil {
		obj.Children = make([]any, len(n.Children))
	}
	for i, c := range n.Children {
		switch v := c.(type) {
		case *Node:
			obj.Children[i] = v.DeepCopy()
		case Cloner:
			obj.Children[i] = v.Clone()
		default:
			obj.Children[i] = c
		}
	}
	return obj
}

// Equal reports deep structural equality: same kind, connector, negation
// and the same children in the same order.
func (n *Node) Equal(other *Node) bool {
	if n == nil || other == nil {
		return n == other
	}
	if n.kind != other.kind ||
		n.Connector != other.Connector ||
		n.Negated != other.Negated ||
		len(n.Children) != len(other.Children) {
		return false
	}
	for i := range n.Children {
		if !childEqual(n.Children[i], other.Children[i]) {
			return false
		}
	}
	return true
}

func childEqual(a, b any) bool {
	if an, ok := a.(*Node); ok {
		bn, ok := b.(*Node)
		return ok && an.Equal(bn)
	}
	if _, ok := b.(*Node); ok {
		return false
	}
	if eq, ok := a.(Equaler); ok {
		return eq.Equal(b)
	}
	return reflect.DeepEqual(a, b)
}

// HashKey implements ir.Hashable. Children are reduced with
// ir.MakeHashable, so mappings and slices inside leaves are accepted.
func (n *Node) HashKey() (ir.IRValue, error) {
	if n == nil {
		return ir.IRNull{}, nil
	}
	children := make(ir.IRArray, len(n.Children))
	for i, c := range n.Children {
		hv, err := ir.MakeHashable(c)
		if err != nil {
			return nil, err
		}
		children[i] = hv
	}
	return ir.IRTagged{
		Tag: "tree." + n.kind.String(),
		Value: ir.IRArray{
			ir.IRString(n.Connector),
			ir.IRBool(n.Negated),
			children,
		},
	}, nil
}

// Hash returns a hash consistent with Equal for hashable leaves.
// It fails with *ir.UnhashableValueError when a leaf holds a func.
func (n *Node) Hash() (uint64, error) {
	key, err := n.HashKey()
	if err != nil {
		return 0, err
	}
	return ir.Hash(key)
}

// String renders the tree as "(AND: a, (NOT (OR: b, c)))".
func (n *Node) String() string {
	parts := make([]string, len(n.Children))
	for i, c := range n.Children {
		parts[i] = fmt.Sprint(c)
	}
	body := fmt.Sprintf("%s: %s", n.Connector, strings.Join(parts, ", "))
	if n.Negated {
		return "(NOT (" + body + "))"
	}
	return "(" + body + ")"
}

// Flatten returns n followed by every descendant node and leaf in
// depth-first order.
func (n *Node) Flatten() []any {
	out := []any{n}
	for _, c := range n.Children {
		if child, ok := c.(*Node); ok {
			out = append(out, child.Flatten()...)
		} else {
			out = append(out, c)
		}
	}
	return out
}

// Leaves returns every non-node descendant in depth-first order.
func (n *Node) Leaves() []any {
	var out []any
	for _, c := range n.Flatten() {
		if _, ok := c.(*Node); !ok {
			out = append(out, c)
		}
	}
	return out
}
