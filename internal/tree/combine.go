package tree

// Combine returns a new node joining n and other with conn. An empty
// operand yields a copy of the other one, so combining with an empty
// filter is a no-op.
func (n *Node) Combine(other *Node, conn Connector) *Node {
	if n.IsEmpty() {
		if other == nil {
			return n.Copy()
		}
		return other.Copy()
	}
	if other.IsEmpty() {
		return n.Copy()
	}
	obj := Create(n.kind, nil, conn, false)
	obj.Add(n, conn)
	obj.Add(other, conn)
	return obj
}

// And is Combine with AND.
func (n *Node) And(other *Node) *Node {
	return n.Combine(other, AND)
}

// Or is Combine with OR.
func (n *Node) Or(other *Node) *Node {
	return n.Combine(other, OR)
}

// Not returns a negated copy of n. n itself is unchanged.
func (n *Node) Not() *Node {
	obj := n.Copy()
	obj.Negate()
	return obj
}
