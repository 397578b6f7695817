package wml

import (
	"encoding/xml"
	"strings"
)

// Paragraph represents a paragraph in the document
type Paragraph struct {
	Properties *ParagraphProperties
	// Content maintains the order of runs and hyperlinks
	Content []ParagraphContent
}

// isBodyElement implements the BodyElement interface
func (p Paragraph) isBodyElement() {}

// UnmarshalXML implements custom XML unmarshaling to preserve element order
func (p *Paragraph) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for {
		token, err := d.Token()
		if err != nil {
			return err
		}

		switch t := token.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "pPr":
				var props ParagraphProperties
				if err := d.DecodeElement(&props, &t); err != nil {
					return err
				}
				p.Properties = &props
			case "r":
				var run Run
				if err := d.DecodeElement(&run, &t); err != nil {
					return err
				}
				p.Content = append(p.Content, &run)
			case "hyperlink":
				var link Hyperlink
				if err := d.DecodeElement(&link, &t); err != nil {
					return err
				}
				p.Content = append(p.Content, &link)
			case "ins", "smartTag", "customXml":
				// transparent wrappers: their runs belong to the paragraph
			default:
				if err := d.Skip(); err != nil {
					return err
				}
			}
		case xml.EndElement:
			if t.Name.Local == "p" {
				return nil
			}
		}
	}
}

// MarshalXML implements custom XML marshaling for Paragraph to ensure proper namespacing
func (p Paragraph) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	start.Name = xml.Name{Local: "w:p"}
	if err := e.EncodeToken(start); err != nil {
		return err
	}

	if p.Properties != nil {
		if err := e.EncodeElement(p.Properties, xml.StartElement{Name: xml.Name{Local: "w:pPr"}}); err != nil {
			return err
		}
	}

	for _, content := range p.Content {
		switch c := content.(type) {
		case *Run:
			if err := e.EncodeElement(c, xml.StartElement{Name: xml.Name{Local: "w:r"}}); err != nil {
				return err
			}
		case *Hyperlink:
			if err := e.EncodeElement(c, xml.StartElement{Name: xml.Name{Local: "w:hyperlink"}}); err != nil {
				return err
			}
		}
	}

	return e.EncodeToken(xml.EndElement{Name: start.Name})
}

// GetText returns the concatenated text of all runs in a paragraph
func (p *Paragraph) GetText() string {
	var sb strings.Builder
	for _, content := range p.Content {
		switch c := content.(type) {
		case *Run:
			sb.WriteString(c.GetText())
		case *Hyperlink:
			sb.WriteString(c.GetText())
		}
	}
	return sb.String()
}

// ParagraphProperties represents paragraph formatting properties.
// Fields are listed in schema order, which MarshalXML relies on.
type ParagraphProperties struct {
	Style       *Value               `xml:"pStyle"`
	Numbering   *NumberingProperties `xml:"numPr"`
	Borders     *ParagraphBorders    `xml:"pBdr"`
	Shading     *Shading             `xml:"shd"`
	Spacing     *Spacing             `xml:"spacing"`
	Indentation *Indentation         `xml:"ind"`
	Alignment   *Value               `xml:"jc"`
}

// MarshalXML implements custom XML marshaling for ParagraphProperties
func (p ParagraphProperties) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	start.Name = xml.Name{Local: "w:pPr"}
	if err := e.EncodeToken(start); err != nil {
		return err
	}

	if p.Style != nil {
		if err := encodeVal(e, "pStyle", p.Style.Val); err != nil {
			return err
		}
	}
	if p.Numbering != nil {
		if err := e.EncodeElement(p.Numbering, xml.StartElement{Name: xml.Name{Local: "w:numPr"}}); err != nil {
			return err
		}
	}
	if p.Borders != nil && p.Borders.Bottom != nil {
		if err := e.EncodeElement(p.Borders, xml.StartElement{Name: xml.Name{Local: "w:pBdr"}}); err != nil {
			return err
		}
	}
	if p.Shading != nil {
		if err := encodeAttrs(e, "shd", wattr("val", p.Shading.Val), wattr("color", p.Shading.Color), wattr("fill", p.Shading.Fill)); err != nil {
			return err
		}
	}
	if p.Spacing != nil {
		s := p.Spacing
		if err := encodeAttrs(e, "spacing", wattr("before", s.Before), wattr("after", s.After), wattr("line", s.Line), wattr("lineRule", s.LineRule)); err != nil {
			return err
		}
	}
	if p.Indentation != nil {
		ind := p.Indentation
		if err := encodeAttrs(e, "ind", wattr("left", ind.Left), wattr("right", ind.Right), wattr("firstLine", ind.FirstLine), wattr("hanging", ind.Hanging)); err != nil {
			return err
		}
	}
	if p.Alignment != nil {
		if err := encodeVal(e, "jc", p.Alignment.Val); err != nil {
			return err
		}
	}

	return e.EncodeToken(xml.EndElement{Name: start.Name})
}

// NumberingProperties links a paragraph to a numbering definition
type NumberingProperties struct {
	Level *Value `xml:"ilvl"`
	NumID *Value `xml:"numId"`
}

// MarshalXML implements custom XML marshaling for NumberingProperties
func (n NumberingProperties) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	start.Name = xml.Name{Local: "w:numPr"}
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	if n.Level != nil {
		if err := encodeVal(e, "ilvl", n.Level.Val); err != nil {
			return err
		}
	}
	if n.NumID != nil {
		if err := encodeVal(e, "numId", n.NumID.Val); err != nil {
			return err
		}
	}
	return e.EncodeToken(xml.EndElement{Name: start.Name})
}

// ParagraphBorders holds paragraph borders; only the bottom edge is modelled
type ParagraphBorders struct {
	Bottom *Border `xml:"bottom"`
}

// MarshalXML implements custom XML marshaling for ParagraphBorders
func (b ParagraphBorders) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	start.Name = xml.Name{Local: "w:pBdr"}
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	if b.Bottom != nil {
		if err := encodeAttrs(e, "bottom", wattr("val", b.Bottom.Val), wattr("sz", b.Bottom.Size), wattr("space", b.Bottom.Space), wattr("color", b.Bottom.Color)); err != nil {
			return err
		}
	}
	return e.EncodeToken(xml.EndElement{Name: start.Name})
}

// Border represents one border edge
type Border struct {
	Val   string `xml:"val,attr"`
	Size  string `xml:"sz,attr"`
	Space string `xml:"space,attr"`
	Color string `xml:"color,attr"`
}

// Shading represents paragraph shading
type Shading struct {
	Val   string `xml:"val,attr"`
	Color string `xml:"color,attr"`
	Fill  string `xml:"fill,attr"`
}

// Spacing represents paragraph spacing in twentieths of a point
type Spacing struct {
	Before   string `xml:"before,attr"`
	After    string `xml:"after,attr"`
	Line     string `xml:"line,attr"`
	LineRule string `xml:"lineRule,attr"`
}

// Indentation represents paragraph indentation in twentieths of a point.
// Start/End are the bidi-aware aliases of Left/Right.
type Indentation struct {
	Left      string `xml:"left,attr"`
	Start     string `xml:"start,attr"`
	Right     string `xml:"right,attr"`
	End       string `xml:"end,attr"`
	FirstLine string `xml:"firstLine,attr"`
	Hanging   string `xml:"hanging,attr"`
}

// Hyperlink represents a hyperlink in a paragraph
type Hyperlink struct {
	ID     string
	Anchor string
	Runs   []Run
}

// isParagraphContent implements the ParagraphContent interface
func (h Hyperlink) isParagraphContent() {}

// UnmarshalXML implements custom XML unmarshaling for Hyperlink
func (h *Hyperlink) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for _, a := range start.Attr {
		switch {
		case a.Name.Local == "id" && (a.Name.Space == NamespaceR || a.Name.Space == "r"):
			h.ID = a.Value
		case a.Name.Local == "anchor":
			h.Anchor = a.Value
		}
	}

	for {
		token, err := d.Token()
		if err != nil {
			return err
		}
		switch t := token.(type) {
		case xml.StartElement:
			if t.Name.Local == "r" {
				var run Run
				if err := d.DecodeElement(&run, &t); err != nil {
					return err
				}
				h.Runs = append(h.Runs, run)
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

// MarshalXML implements custom XML marshaling for Hyperlink to ensure proper namespacing
func (h Hyperlink) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	start.Name = xml.Name{Local: "w:hyperlink"}
	start.Attr = nil
	if h.ID != "" {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "r:id"}, Value: h.ID})
	}
	if h.Anchor != "" {
		start.Attr = append(start.Attr, wattr("anchor", h.Anchor))
	}
	if err := e.EncodeToken(start); err != nil {
		return err
	}

	for i := range h.Runs {
		if err := e.EncodeElement(&h.Runs[i], xml.StartElement{Name: xml.Name{Local: "w:r"}}); err != nil {
			return err
		}
	}

	return e.EncodeToken(xml.EndElement{Name: start.Name})
}

// GetText returns the text of the hyperlink's runs
func (h *Hyperlink) GetText() string {
	var sb strings.Builder
	for i := range h.Runs {
		sb.WriteString(h.Runs[i].GetText())
	}
	return sb.String()
}
