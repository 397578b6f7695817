package wml

import (
	"encoding/xml"
)

// BodyElement represents any element that can appear in a document body or table cell
type BodyElement interface {
	isBodyElement()
}

// ParagraphContent represents any content that can appear in a paragraph
type ParagraphContent interface {
	isParagraphContent()
}

// RunContent represents any content that can appear in a run
type RunContent interface {
	isRunContent()
}

// RawXMLElement represents an XML element that we preserve but don't parse.
// Content holds the complete element markup, start and end tags included.
type RawXMLElement struct {
	XMLName xml.Name
	Attrs   []xml.Attr
	Content []byte
}

// Attr returns the value of the first attribute with the given local name.
func (r *RawXMLElement) Attr(local string) string {
	if r == nil {
		return ""
	}
	for _, a := range r.Attrs {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

// Value is the common single-attribute element shape (<w:jc w:val="center"/>).
type Value struct {
	Val string `xml:"val,attr"`
}

// OnOff represents a toggle property such as <w:b/> or <w:b w:val="false"/>.
type OnOff struct {
	Val string `xml:"val,attr"`
}

// Enabled reports whether the toggle is switched on. A nil toggle is off.
func (o *OnOff) Enabled() bool {
	if o == nil {
		return false
	}
	switch o.Val {
	case "", "true", "1", "on":
		return true
	}
	return false
}

// On returns an enabled toggle.
func On() *OnOff { return &OnOff{} }

// encodeVal writes <w:name w:val="val"/>.
func encodeVal(e *xml.Encoder, name, val string) error {
	start := xml.StartElement{
		Name: xml.Name{Local: "w:" + name},
		Attr: []xml.Attr{{Name: xml.Name{Local: "w:val"}, Value: val}},
	}
	return e.EncodeElement(struct{}{}, start)
}

// encodeAttrs writes <w:name a1="v1" .../>, skipping empty values.
func encodeAttrs(e *xml.Encoder, name string, attrs ...xml.Attr) error {
	start := xml.StartElement{Name: xml.Name{Local: "w:" + name}}
	for _, a := range attrs {
		if a.Value != "" {
			start.Attr = append(start.Attr, a)
		}
	}
	return e.EncodeElement(struct{}{}, start)
}

func wattr(local, value string) xml.Attr {
	return xml.Attr{Name: xml.Name{Local: "w:" + local}, Value: value}
}

func attrValue(attrs []xml.Attr, local string) string {
	for _, a := range attrs {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}
