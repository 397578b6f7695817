package wml

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
)

// Document represents a Word document structure
type Document struct {
	Body *Body
	// Attrs preserves root element attributes (namespace declarations)
	Attrs []xml.Attr
}

// NewDocument returns an empty document whose root declares the namespaces
// needed by paragraphs, tables and replayed drawings.
func NewDocument() *Document {
	return &Document{
		Body:  &Body{},
		Attrs: namespaceDecls(),
	}
}

// UnmarshalXML implements custom XML unmarshaling to preserve root attributes
func (doc *Document) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for _, a := range start.Attr {
		doc.Attrs = append(doc.Attrs, xml.Attr{Name: xml.Name{Local: qualified(a.Name)}, Value: a.Value})
	}

	for {
		token, err := d.Token()
		if err != nil {
			return err
		}

		switch t := token.(type) {
		case xml.StartElement:
			if t.Name.Local == "body" {
				var body Body
				if err := d.DecodeElement(&body, &t); err != nil {
					return err
				}
				doc.Body = &body
				continue
			}
			if err := d.Skip(); err != nil {
				return err
			}
		case xml.EndElement:
			return nil
		}
	}
}

// Marshal renders the document as a complete word/document.xml part.
func (doc *Document) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)

	e := xml.NewEncoder(&buf)
	root := xml.StartElement{Name: xml.Name{Local: "w:document"}, Attr: doc.Attrs}
	if err := e.EncodeToken(root); err != nil {
		return nil, err
	}
	body := doc.Body
	if body == nil {
		body = &Body{}
	}
	if err := e.EncodeElement(body, xml.StartElement{Name: xml.Name{Local: "w:body"}}); err != nil {
		return nil, err
	}
	if err := e.EncodeToken(root.End()); err != nil {
		return nil, err
	}
	if err := e.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Body represents the document body
type Body struct {
	// Elements maintains the order of all body elements
	Elements []BodyElement
	// SectionProperties at the end of the body (critical for Word compatibility)
	SectionProperties *RawXMLElement
}

// UnmarshalXML implements custom XML unmarshaling to preserve element order
func (b *Body) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	elements, sectPr, err := decodeBlocks(d)
	if err != nil {
		return err
	}
	b.Elements = elements
	b.SectionProperties = sectPr
	return nil
}

// MarshalXML implements custom XML marshaling to preserve element order
func (b Body) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	start.Name = xml.Name{Local: "w:body"}
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	if err := encodeBlocks(e, b.Elements); err != nil {
		return err
	}
	if b.SectionProperties != nil {
		if err := encodeRaw(e, b.SectionProperties.Content); err != nil {
			return err
		}
	}
	return e.EncodeToken(xml.EndElement{Name: start.Name})
}

// decodeBlocks reads block-level content until the enclosing element closes.
// It is shared by w:body and w:tc. Structured document tags are unwrapped so
// their paragraphs stay visible.
func decodeBlocks(d *xml.Decoder) ([]BodyElement, *RawXMLElement, error) {
	var (
		elements []BodyElement
		sectPr   *RawXMLElement
	)

	for {
		token, err := d.Token()
		if err == io.EOF {
			return nil, nil, io.ErrUnexpectedEOF
		}
		if err != nil {
			return nil, nil, err
		}

		switch t := token.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				var para Paragraph
				if err := d.DecodeElement(&para, &t); err != nil {
					return nil, nil, err
				}
				elements = append(elements, &para)
			case "tbl":
				var table Table
				if err := d.DecodeElement(&table, &t); err != nil {
					return nil, nil, err
				}
				elements = append(elements, &table)
			case "sectPr":
				raw, err := captureRaw(d, t)
				if err != nil {
					return nil, nil, err
				}
				sectPr = &raw
			case "sdt", "sdtContent":
				// descend: the children are read by this same loop
			default:
				if err := d.Skip(); err != nil {
					return nil, nil, err
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "sdt", "sdtContent":
				continue
			}
			return elements, sectPr, nil
		}
	}
}

func encodeBlocks(e *xml.Encoder, elements []BodyElement) error {
	for _, elem := range elements {
		switch el := elem.(type) {
		case *Paragraph:
			if err := e.EncodeElement(el, xml.StartElement{Name: xml.Name{Local: "w:p"}}); err != nil {
				return err
			}
		case *Table:
			if err := e.EncodeElement(el, xml.StartElement{Name: xml.Name{Local: "w:tbl"}}); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unsupported body element %T", elem)
		}
	}
	return nil
}

// ParseDocument parses a Word document XML
func ParseDocument(r io.Reader) (*Document, error) {
	decoder := xml.NewDecoder(r)

	var doc Document
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	if doc.Body == nil {
		return nil, fmt.Errorf("failed to parse document: missing w:body")
	}

	return &doc, nil
}
