package wml

import (
	"bytes"
	"encoding/xml"
	"io"
	"strconv"
)

// captureRaw reads the rest of an element whose start tag has already been
// consumed and returns its full markup with conventional prefixes. Namespaces
// that the document root written by NewDocument does not declare are declared
// on the captured element itself.
func captureRaw(d *xml.Decoder, start xml.StartElement) (RawXMLElement, error) {
	names := newRawNamer()
	names.learn(start.Attr)
	root := names.startTag(start)

	var body bytes.Buffer
	depth := 1
	for depth > 0 {
		tok, err := d.Token()
		if err != nil {
			return RawXMLElement{}, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			names.learn(t.Attr)
			body.WriteString(names.startTag(t))
		case xml.EndElement:
			depth--
			body.WriteString("</")
			body.WriteString(names.name(t.Name))
			body.WriteString(">")
		case xml.CharData:
			xml.EscapeText(&body, t)
		}
	}

	var buf bytes.Buffer
	buf.WriteString(root[:len(root)-1])
	for _, uri := range names.uris {
		buf.WriteString(" xmlns:")
		buf.WriteString(names.prefixes[uri])
		buf.WriteString(`="`)
		xml.EscapeText(&buf, []byte(uri))
		buf.WriteString(`"`)
	}
	buf.WriteString(">")
	buf.Write(body.Bytes())

	return RawXMLElement{
		XMLName: start.Name,
		Attrs:   start.Attr,
		Content: buf.Bytes(),
	}, nil
}

// rawNamer assigns prefixes while an element is captured. Namespaces declared
// on the output root keep their conventional prefix; every other namespace is
// bound once, preferring the prefix the source used.
type rawNamer struct {
	prefixes map[string]string
	taken    map[string]bool
	uris     []string
}

func newRawNamer() *rawNamer {
	return &rawNamer{prefixes: make(map[string]string), taken: make(map[string]bool)}
}

// learn records source prefixes from namespace declarations in attrs.
func (n *rawNamer) learn(attrs []xml.Attr) {
	for _, a := range attrs {
		if a.Name.Space == "xmlns" && !rootNamespaces[a.Value] {
			n.bind(a.Value, a.Name.Local)
		}
	}
}

func (n *rawNamer) bind(uri, hint string) string {
	if p, ok := n.prefixes[uri]; ok {
		return p
	}
	p, known := prefixMap[uri]
	if !known {
		p = hint
		for i := len(n.uris) + 1; p == "" || n.taken[p] || conventionalPrefixes[p]; i++ {
			p = "ns" + strconv.Itoa(i)
		}
	}
	n.prefixes[uri] = p
	n.taken[p] = true
	n.uris = append(n.uris, uri)
	return p
}

func (n *rawNamer) name(x xml.Name) string {
	switch {
	case x.Space == "":
		return x.Local
	case rootNamespaces[x.Space]:
		return prefixMap[x.Space] + ":" + x.Local
	}
	return n.bind(x.Space, "") + ":" + x.Local
}

// startTag renders t without its namespace declarations.
func (n *rawNamer) startTag(t xml.StartElement) string {
	var buf bytes.Buffer
	buf.WriteString("<")
	buf.WriteString(n.name(t.Name))
	for _, attr := range t.Attr {
		if attr.Name.Space == "xmlns" || (attr.Name.Space == "" && attr.Name.Local == "xmlns") {
			continue
		}
		buf.WriteString(" ")
		buf.WriteString(n.name(attr.Name))
		buf.WriteString(`="`)
		xml.EscapeText(&buf, []byte(attr.Value))
		buf.WriteString(`"`)
	}
	buf.WriteString(">")
	return buf.String()
}

// flatten turns a raw (unresolved) name into a single prefixed local name so
// the encoder writes it verbatim.
func flatten(n xml.Name) xml.Name {
	if n.Space == "" {
		return n
	}
	return xml.Name{Local: n.Space + ":" + n.Local}
}

// encodeRaw replays captured markup through the encoder. Prefixes are kept as
// written; the document root is expected to declare them.
func encodeRaw(e *xml.Encoder, content []byte) error {
	d := xml.NewDecoder(bytes.NewReader(content))
	for {
		tok, err := d.RawToken()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			out := xml.StartElement{Name: flatten(t.Name)}
			for _, a := range t.Attr {
				out.Attr = append(out.Attr, xml.Attr{Name: flatten(a.Name), Value: a.Value})
			}
			if err := e.EncodeToken(out); err != nil {
				return err
			}
		case xml.EndElement:
			if err := e.EncodeToken(xml.EndElement{Name: flatten(t.Name)}); err != nil {
				return err
			}
		case xml.CharData:
			if err := e.EncodeToken(t.Copy()); err != nil {
				return err
			}
		}
	}
}

// findEmbed returns the r:embed id of the first a:blip in captured markup.
func findEmbed(content []byte) string {
	d := xml.NewDecoder(bytes.NewReader(content))
	for {
		tok, err := d.RawToken()
		if err != nil {
			return ""
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "blip" {
			continue
		}
		for _, a := range start.Attr {
			if a.Name.Local == "embed" {
				return a.Value
			}
		}
	}
}
