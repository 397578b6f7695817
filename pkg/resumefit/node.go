package resumefit

import (
	"fmt"
)

// Kind is the closed set of node variants in the tree model.
type Kind uint8

const (
	KindParagraph Kind = iota + 1
	KindRun
	KindHyperlink
	KindImage
	KindTable
	KindRow
	KindCell
)

var kindTags = [...]string{
	KindParagraph: "paragraph",
	KindRun:       "run",
	KindHyperlink: "hyperlink",
	KindImage:     "image",
	KindTable:     "table_grid",
	KindRow:       "row",
	KindCell:      "cell",
}

// String returns the tag the kind is serialized as.
func (k Kind) String() string {
	if k == 0 || int(k) >= len(kindTags) {
		return fmt.Sprintf("Kind(%d)", k)
	}
	return kindTags[k]
}

// ParseKind maps a serialized tag back to its kind.
func ParseKind(tag string) (Kind, bool) {
	for k := KindParagraph; int(k) < len(kindTags); k++ {
		if kindTags[k] == tag {
			return k, true
		}
	}
	return 0, false
}

// allows reports whether a node of kind k may contain a child of kind c.
func (k Kind) allows(c Kind) bool {
	switch k {
	case KindParagraph:
		return c == KindRun || c == KindHyperlink || c == KindImage
	case KindHyperlink:
		return c == KindRun
	case KindTable:
		return c == KindRow
	case KindRow:
		return c == KindCell
	case KindCell:
		return c == KindParagraph || c == KindTable
	case KindRun, KindImage:
		return false
	}
	return false
}

// Node is one element of the style-annotated tree. Only runs carry Text.
type Node struct {
	Kind     Kind
	Attrs    Attrs
	Text     string
	Children []*Node
}

// NewNode returns a node of the given kind with its default attributes.
func NewNode(kind Kind) *Node {
	return &Node{Kind: kind, Attrs: Defaults(kind)}
}

// Append adds children and returns the node for chaining.
func (n *Node) Append(children ...*Node) *Node {
	n.Children = append(n.Children, children...)
	return n
}

// Tree is the root of an extracted document: body-level paragraphs and tables.
type Tree struct {
	Nodes []*Node
}

// Walk visits every node depth-first in document order. Returning an error
// from fn stops the walk.
func (t *Tree) Walk(fn func(n *Node, depth int) error) error {
	var visit func(nodes []*Node, depth int) error
	visit = func(nodes []*Node, depth int) error {
		for _, n := range nodes {
			if err := fn(n, depth); err != nil {
				return err
			}
			if err := visit(n.Children, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	return visit(t.Nodes, 0)
}

// Text returns the concatenated run text of the tree, one line per paragraph.
func (t *Tree) Text() string {
	var out []byte
	_ = t.Walk(func(n *Node, _ int) error {
		switch n.Kind {
		case KindParagraph:
			if len(out) > 0 {
				out = append(out, '\n')
			}
		case KindRun:
			out = append(out, n.Text...)
		}
		return nil
	})
	return string(out)
}

// Validate checks parent/child kinds and attribute values for the whole tree.
func (t *Tree) Validate() error {
	for i, n := range t.Nodes {
		if n.Kind != KindParagraph && n.Kind != KindTable {
			return newMalformed("tree", fmt.Sprintf("/%s[%d]", n.Kind, i+1), "only paragraph and table_grid may appear at the top level")
		}
		if err := validateNode(n, fmt.Sprintf("/%s[%d]", n.Kind, i+1)); err != nil {
			return err
		}
	}
	return nil
}

func validateNode(n *Node, at string) error {
	if _, ok := ParseKind(n.Kind.String()); !ok {
		return newMalformed("tree", at, "unknown node kind")
	}
	if n.Text != "" && n.Kind != KindRun {
		return newMalformed("tree", at, n.Kind.String()+" cannot carry text")
	}
	if _, err := NormalizeAttrs(n.Kind, n.Attrs); err != nil {
		return &MalformedError{Part: "tree", Path: at, Reason: "invalid attributes", Cause: err}
	}
	for i, c := range n.Children {
		path := fmt.Sprintf("%s/%s[%d]", at, c.Kind, i+1)
		if !n.Kind.allows(c.Kind) {
			return newMalformed("tree", path, fmt.Sprintf("%s cannot contain %s", n.Kind, c.Kind))
		}
		if err := validateNode(c, path); err != nil {
			return err
		}
	}
	return nil
}

// sameShape reports whether two trees have identical kinds and child counts
// at every position.
func sameShape(a, b []*Node) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Kind != b[i].Kind || !sameShape(a[i].Children, b[i].Children) {
			return false
		}
	}
	return true
}

// ImageAsset is the binary payload of one embedded picture.
type ImageAsset struct {
	Data []byte
	MIME string
	// Part is the container path the payload was read from
	Part string
}

// ImageTable maps original embedding ids to their payloads. It lives for a
// single extract and build cycle.
type ImageTable map[string]ImageAsset
