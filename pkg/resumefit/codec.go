package resumefit

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// Tags of the intermediate form that are not node kinds.
const (
	rootTag = "resume"
	textTag = "text"
)

// MarshalTree serializes a tree to the intermediate form:
//
//	<resume>
//	  <paragraph alignment="left" ...>
//	    <run bold="true" ...><text><![CDATA[Engineer]]></text></run>
//	  </paragraph>
//	</resume>
//
// Every attribute of every node is written, defaults included.
func MarshalTree(t *Tree) ([]byte, error) {
	var buf bytes.Buffer
	e := xml.NewEncoder(&buf)
	e.Indent("", "  ")

	root := xml.StartElement{Name: xml.Name{Local: rootTag}}
	if err := e.EncodeToken(root); err != nil {
		return nil, err
	}
	for _, n := range t.Nodes {
		if err := encodeNode(e, n); err != nil {
			return nil, err
		}
	}
	if err := e.EncodeToken(root.End()); err != nil {
		return nil, err
	}
	if err := e.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type cdataText struct {
	Text string `xml:",cdata"`
}

func encodeNode(e *xml.Encoder, n *Node) error {
	if _, ok := ParseKind(n.Kind.String()); !ok {
		return fmt.Errorf("cannot encode node of %s", n.Kind)
	}
	start := xml.StartElement{Name: xml.Name{Local: n.Kind.String()}}
	for _, name := range AttrNames(n.Kind) {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: name}, Value: n.Attrs.Get(n.Kind, name)})
	}
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	if n.Kind == KindRun {
		if err := e.EncodeElement(cdataText{Text: n.Text}, xml.StartElement{Name: xml.Name{Local: textTag}}); err != nil {
			return err
		}
	}
	for _, c := range n.Children {
		if err := encodeNode(e, c); err != nil {
			return err
		}
	}
	return e.EncodeToken(start.End())
}

// UnmarshalTree parses the intermediate form. Only the closed tag vocabulary
// is accepted; attributes are validated and completed with their defaults.
func UnmarshalTree(data []byte) (*Tree, error) {
	d := xml.NewDecoder(bytes.NewReader(data))

	for {
		tok, err := d.Token()
		if err == io.EOF {
			return nil, newMalformed(rootTag, "", "no <resume> element")
		}
		if err != nil {
			return nil, &MalformedError{Part: rootTag, Reason: "unparseable markup", Cause: err}
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local != rootTag || t.Name.Space != "" {
				return nil, newMalformed(rootTag, "/"+t.Name.Local, "unexpected root element")
			}
			nodes, err := decodeChildren(d, nil, "")
			if err != nil {
				return nil, err
			}
			tree := &Tree{Nodes: nodes}
			if err := tree.Validate(); err != nil {
				return nil, err
			}
			return tree, nil
		case xml.CharData:
			if len(bytes.TrimSpace(t)) > 0 {
				return nil, newMalformed(rootTag, "", "text outside <resume>")
			}
		}
	}
}

// decodeChildren reads the content of parent (nil for the root) until its
// end tag.
func decodeChildren(d *xml.Decoder, parent *Node, at string) ([]*Node, error) {
	var (
		nodes  []*Node
		counts = map[string]int{}
	)
	for {
		tok, err := d.Token()
		if err != nil {
			return nil, &MalformedError{Part: rootTag, Path: at, Reason: "unparseable markup", Cause: err}
		}
		switch t := tok.(type) {
		case xml.StartElement:
			tag := t.Name.Local
			counts[tag]++
			path := fmt.Sprintf("%s/%s[%d]", at, tag, counts[tag])
			if t.Name.Space != "" {
				return nil, newMalformed(rootTag, path, "namespaced element")
			}

			if tag == textTag {
				if parent == nil || parent.Kind != KindRun {
					return nil, newMalformed(rootTag, path, "<text> outside <run>")
				}
				if counts[tag] > 1 {
					return nil, newMalformed(rootTag, path, "run has more than one <text>")
				}
				text, err := decodeText(d, path)
				if err != nil {
					return nil, err
				}
				parent.Text = text
				continue
			}

			kind, ok := ParseKind(tag)
			if !ok {
				return nil, newMalformed(rootTag, path, "unknown tag <"+tag+">")
			}
			if parent != nil && !parent.Kind.allows(kind) {
				return nil, newMalformed(rootTag, path, fmt.Sprintf("%s cannot contain %s", parent.Kind, kind))
			}

			raw := make(Attrs, len(t.Attr))
			for _, a := range t.Attr {
				if a.Name.Space != "" {
					return nil, newMalformed(rootTag, path, "namespaced attribute "+a.Name.Local)
				}
				raw[a.Name.Local] = a.Value
			}
			attrs, err := NormalizeAttrs(kind, raw)
			if err != nil {
				return nil, &MalformedError{Part: rootTag, Path: path, Reason: "invalid attributes", Cause: err}
			}

			node := &Node{Kind: kind, Attrs: attrs}
			children, err := decodeChildren(d, node, path)
			if err != nil {
				return nil, err
			}
			node.Children = children
			nodes = append(nodes, node)
		case xml.CharData:
			if len(bytes.TrimSpace(t)) > 0 {
				return nil, newMalformed(rootTag, at, "stray text "+fmt.Sprintf("%q", truncate(string(t), 40)))
			}
		case xml.EndElement:
			return nodes, nil
		}
	}
}

func decodeText(d *xml.Decoder, at string) (string, error) {
	var sb strings.Builder
	for {
		tok, err := d.Token()
		if err != nil {
			return "", &MalformedError{Part: rootTag, Path: at, Reason: "unparseable text", Cause: err}
		}
		switch t := tok.(type) {
		case xml.CharData:
			sb.Write(t)
		case xml.StartElement:
			return "", newMalformed(rootTag, at, "element inside <text>")
		case xml.EndElement:
			return sb.String(), nil
		}
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
