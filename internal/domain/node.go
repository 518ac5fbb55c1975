package domain

// NodeKind identifies the tree level a TestNode lives at. Matching and
// aggregation logic branches on it, so it is carried explicitly on every
// node rather than inferred from depth.
type NodeKind int

const (
	KindProject NodeKind = iota
	KindSuite
	KindFile
	KindMethod
	KindDataset
)

// String returns the lowercase name of the kind.
func (k NodeKind) String() string {
	switch k {
	case KindProject:
		return "project"
	case KindSuite:
		return "suite"
	case KindFile:
		return "file"
	case KindMethod:
		return "method"
	case KindDataset:
		return "dataset"
	default:
		return "unknown"
	}
}

// Location points at the source behind a node. Suite and project nodes
// reference a directory; file and method nodes a file, with Line set for
// methods (1-based, 0 means unknown).
type Location struct {
	Path string
	Line int
}

// TestNode is one node of the project → suite → file → method → dataset
// tree. IDs are hierarchical by construction (parent id + separator +
// discriminator) and unique within one forest. Children keep insertion
// order; the parent pointer is a non-owning back-reference used only for
// ancestor walks.
type TestNode struct {
	ID          string
	Label       string
	Description string
	Kind        NodeKind
	Location    Location

	parent   *TestNode
	order    []string
	children map[string]*TestNode
}

// NewTestNode creates a detached node.
func NewTestNode(id, label string, kind NodeKind) *TestNode {
	return &TestNode{
		ID:       id,
		Label:    label,
		Kind:     kind,
		children: make(map[string]*TestNode),
	}
}

// AddChild appends child to n, replacing any existing child with the same
// id in place (insertion order is display order, so a replacement keeps
// its slot).
func (n *TestNode) AddChild(child *TestNode) {
	if _, exists := n.children[child.ID]; !exists {
		n.order = append(n.order, child.ID)
	}
	n.children[child.ID] = child
	child.parent = n
}

// Child returns the direct child with the given id, or nil.
func (n *TestNode) Child(id string) *TestNode {
	return n.children[id]
}

// Children returns the direct children in insertion order.
func (n *TestNode) Children() []*TestNode {
	out := make([]*TestNode, 0, len(n.order))
	for _, id := range n.order {
		out = append(out, n.children[id])
	}
	return out
}

// RemoveChild detaches the child with the given id.
func (n *TestNode) RemoveChild(id string) {
	child, ok := n.children[id]
	if !ok {
		return
	}
	delete(n.children, id)
	for i, cid := range n.order {
		if cid == id {
			n.order = append(n.order[:i], n.order[i+1:]...)
			break
		}
	}
	child.parent = nil
}

// Parent returns the owning node, or nil for a root.
func (n *TestNode) Parent() *TestNode {
	return n.parent
}

// Walk visits n and all of its descendants in depth-first insertion order.
func (n *TestNode) Walk(visit func(*TestNode)) {
	visit(n)
	for _, id := range n.order {
		n.children[id].Walk(visit)
	}
}

// Ancestors returns the chain from n's parent up to the root, nearest
// first.
func (n *TestNode) Ancestors() []*TestNode {
	var out []*TestNode
	for a := n.parent; a != nil; a = a.parent {
		out = append(out, a)
	}
	return out
}
