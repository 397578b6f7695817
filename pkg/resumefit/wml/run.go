package wml

import (
	"bytes"
	"encoding/xml"
	"strings"
)

// Run represents a run of text with common properties
type Run struct {
	Properties *RunProperties
	// Content keeps text, tabs, breaks and drawings in document order
	Content []RunContent
}

// isParagraphContent implements the ParagraphContent interface
func (r Run) isParagraphContent() {}

// UnmarshalXML implements custom XML unmarshaling to preserve content order
func (r *Run) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for {
		token, err := d.Token()
		if err != nil {
			return err
		}

		switch t := token.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "rPr":
				var props RunProperties
				if err := d.DecodeElement(&props, &t); err != nil {
					return err
				}
				r.Properties = &props
			case "t":
				var text Text
				if err := d.DecodeElement(&text, &t); err != nil {
					return err
				}
				r.Content = append(r.Content, &text)
			case "tab":
				r.Content = append(r.Content, &Tab{})
				if err := d.Skip(); err != nil {
					return err
				}
			case "br", "cr":
				r.Content = append(r.Content, &Break{Type: attrValue(t.Attr, "type")})
				if err := d.Skip(); err != nil {
					return err
				}
			case "drawing":
				raw, err := captureRaw(d, t)
				if err != nil {
					return err
				}
				r.Content = append(r.Content, &Drawing{Raw: raw})
			default:
				if err := d.Skip(); err != nil {
					return err
				}
			}
		case xml.EndElement:
			return nil
		}
	}
}

// MarshalXML implements custom XML marshaling for Run to ensure proper namespacing
func (r Run) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	start.Name = xml.Name{Local: "w:r"}
	if err := e.EncodeToken(start); err != nil {
		return err
	}

	if r.Properties != nil {
		if err := e.EncodeElement(r.Properties, xml.StartElement{Name: xml.Name{Local: "w:rPr"}}); err != nil {
			return err
		}
	}

	for _, content := range r.Content {
		var err error
		switch c := content.(type) {
		case *Text:
			err = e.EncodeElement(c, xml.StartElement{Name: xml.Name{Local: "w:t"}})
		case *Tab:
			err = e.EncodeElement(struct{}{}, xml.StartElement{Name: xml.Name{Local: "w:tab"}})
		case *Break:
			err = c.encode(e)
		case *Drawing:
			err = encodeRaw(e, c.Raw.Content)
		}
		if err != nil {
			return err
		}
	}

	return e.EncodeToken(xml.EndElement{Name: start.Name})
}

// GetText returns the text content of a run; tabs and breaks become "\t" and "\n"
func (r *Run) GetText() string {
	var sb strings.Builder
	for _, content := range r.Content {
		switch c := content.(type) {
		case *Text:
			sb.WriteString(c.Content)
		case *Tab:
			sb.WriteByte('\t')
		case *Break:
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// Drawings returns the drawings embedded in the run
func (r *Run) Drawings() []*Drawing {
	var drawings []*Drawing
	for _, content := range r.Content {
		if d, ok := content.(*Drawing); ok {
			drawings = append(drawings, d)
		}
	}
	return drawings
}

// RunProperties represents run formatting properties, in schema order
type RunProperties struct {
	Style     *Value `xml:"rStyle"`
	Fonts     *Fonts `xml:"rFonts"`
	Bold      *OnOff `xml:"b"`
	Italic    *OnOff `xml:"i"`
	Strike    *OnOff `xml:"strike"`
	Color     *Value `xml:"color"`
	Size      *Value `xml:"sz"`
	Highlight *Value `xml:"highlight"`
	Underline *Value `xml:"u"`
}

// MarshalXML implements custom XML marshaling for RunProperties
func (p RunProperties) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	start.Name = xml.Name{Local: "w:rPr"}
	if err := e.EncodeToken(start); err != nil {
		return err
	}

	if p.Style != nil {
		if err := encodeVal(e, "rStyle", p.Style.Val); err != nil {
			return err
		}
	}
	if p.Fonts != nil {
		f := p.Fonts
		if err := encodeAttrs(e, "rFonts", wattr("ascii", f.ASCII), wattr("hAnsi", f.HAnsi), wattr("cs", f.CS), wattr("eastAsia", f.EastAsia)); err != nil {
			return err
		}
	}
	for _, toggle := range []struct {
		name string
		on   *OnOff
	}{{"b", p.Bold}, {"i", p.Italic}, {"strike", p.Strike}} {
		if toggle.on == nil {
			continue
		}
		if err := encodeToggle(e, toggle.name, toggle.on); err != nil {
			return err
		}
	}
	if p.Color != nil {
		if err := encodeVal(e, "color", p.Color.Val); err != nil {
			return err
		}
	}
	if p.Size != nil {
		if err := encodeVal(e, "sz", p.Size.Val); err != nil {
			return err
		}
		if err := encodeVal(e, "szCs", p.Size.Val); err != nil {
			return err
		}
	}
	if p.Highlight != nil {
		if err := encodeVal(e, "highlight", p.Highlight.Val); err != nil {
			return err
		}
	}
	if p.Underline != nil {
		if err := encodeVal(e, "u", p.Underline.Val); err != nil {
			return err
		}
	}

	return e.EncodeToken(xml.EndElement{Name: start.Name})
}

func encodeToggle(e *xml.Encoder, name string, o *OnOff) error {
	if o.Val == "" {
		return e.EncodeElement(struct{}{}, xml.StartElement{Name: xml.Name{Local: "w:" + name}})
	}
	return encodeVal(e, name, o.Val)
}

// Fonts represents the rFonts element
type Fonts struct {
	ASCII    string `xml:"ascii,attr"`
	HAnsi    string `xml:"hAnsi,attr"`
	CS       string `xml:"cs,attr"`
	EastAsia string `xml:"eastAsia,attr"`
}

// Name returns the font used for Latin text
func (f *Fonts) Name() string {
	if f == nil {
		return ""
	}
	if f.ASCII != "" {
		return f.ASCII
	}
	return f.HAnsi
}

// Text represents text content
type Text struct {
	Space   string `xml:"space,attr"`
	Content string `xml:",chardata"`
}

// isRunContent implements the RunContent interface
func (t Text) isRunContent() {}

// MarshalXML implements custom XML marshaling for Text to ensure proper namespacing
func (t Text) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	start.Name = xml.Name{Local: "w:t"}
	start.Attr = nil
	if t.Space == "preserve" || NeedsPreserve(t.Content) {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "xml:space"}, Value: "preserve"})
	}
	return e.EncodeElement(t.Content, start)
}

// NeedsPreserve reports whether text would lose whitespace without xml:space="preserve".
func NeedsPreserve(s string) bool {
	return s != strings.TrimSpace(s) || strings.Contains(s, "  ")
}

// Tab represents a tab character
type Tab struct{}

// isRunContent implements the RunContent interface
func (t Tab) isRunContent() {}

// Break represents a line break
type Break struct {
	Type string
}

// isRunContent implements the RunContent interface
func (b Break) isRunContent() {}

func (b *Break) encode(e *xml.Encoder) error {
	start := xml.StartElement{Name: xml.Name{Local: "w:br"}}
	if b.Type != "" {
		start.Attr = append(start.Attr, wattr("type", b.Type))
	}
	return e.EncodeElement(struct{}{}, start)
}

// Drawing is an embedded DrawingML object kept as raw markup
type Drawing struct {
	Raw RawXMLElement
}

// isRunContent implements the RunContent interface
func (d Drawing) isRunContent() {}

// EmbedID returns the relationship id of the first picture blip in the drawing.
func (d *Drawing) EmbedID() string {
	return findEmbed(d.Raw.Content)
}

// Rewire returns a copy of the drawing whose picture points at newID.
func (d *Drawing) Rewire(oldID, newID string) *Drawing {
	content := bytes.ReplaceAll(d.Raw.Content, []byte(`r:embed="`+oldID+`"`), []byte(`r:embed="`+newID+`"`))
	raw := d.Raw
	raw.Content = content
	return &Drawing{Raw: raw}
}

// NewDrawing wraps descriptor markup such as a stored <w:drawing> element.
func NewDrawing(markup string) *Drawing {
	return &Drawing{Raw: RawXMLElement{
		XMLName: xml.Name{Space: NamespaceW, Local: "drawing"},
		Content: []byte(markup),
	}}
}
