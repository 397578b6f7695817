package wml

import (
	"encoding/xml"
	"strconv"
)

// Table represents a table in the document
type Table struct {
	// Properties is kept as raw markup; it is replayed untouched
	Properties *RawXMLElement
	Grid       []GridColumn
	Rows       []TableRow
}

// isBodyElement implements the BodyElement interface
func (t Table) isBodyElement() {}

// GridColumn is one w:gridCol entry
type GridColumn struct {
	Width int
}

// UnmarshalXML implements custom XML unmarshaling for Table
func (t *Table) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for {
		token, err := d.Token()
		if err != nil {
			return err
		}

		switch tok := token.(type) {
		case xml.StartElement:
			switch tok.Name.Local {
			case "tblPr":
				raw, err := captureRaw(d, tok)
				if err != nil {
					return err
				}
				t.Properties = &raw
			case "gridCol":
				w, _ := strconv.Atoi(attrValue(tok.Attr, "w"))
				t.Grid = append(t.Grid, GridColumn{Width: w})
				if err := d.Skip(); err != nil {
					return err
				}
			case "tblGrid":
				// gridCol children are handled above
			case "tr":
				var row TableRow
				if err := d.DecodeElement(&row, &tok); err != nil {
					return err
				}
				t.Rows = append(t.Rows, row)
			default:
				if err := d.Skip(); err != nil {
					return err
				}
			}
		case xml.EndElement:
			if tok.Name.Local == "tbl" {
				return nil
			}
		}
	}
}

// MarshalXML implements custom XML marshaling for Table to ensure proper namespacing
func (t Table) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	start.Name = xml.Name{Local: "w:tbl"}
	if err := e.EncodeToken(start); err != nil {
		return err
	}

	if t.Properties != nil {
		if err := encodeRaw(e, t.Properties.Content); err != nil {
			return err
		}
	}

	grid := xml.StartElement{Name: xml.Name{Local: "w:tblGrid"}}
	if err := e.EncodeToken(grid); err != nil {
		return err
	}
	for _, col := range t.Grid {
		if err := encodeAttrs(e, "gridCol", wattr("w", strconv.Itoa(col.Width))); err != nil {
			return err
		}
	}
	if err := e.EncodeToken(grid.End()); err != nil {
		return err
	}

	for i := range t.Rows {
		if err := e.EncodeElement(&t.Rows[i], xml.StartElement{Name: xml.Name{Local: "w:tr"}}); err != nil {
			return err
		}
	}

	return e.EncodeToken(xml.EndElement{Name: start.Name})
}

// TableRow represents a row in a table
type TableRow struct {
	Cells []TableCell
}

// UnmarshalXML implements custom XML unmarshaling for TableRow
func (r *TableRow) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for {
		token, err := d.Token()
		if err != nil {
			return err
		}

		switch t := token.(type) {
		case xml.StartElement:
			if t.Name.Local == "tc" {
				var cell TableCell
				if err := d.DecodeElement(&cell, &t); err != nil {
					return err
				}
				r.Cells = append(r.Cells, cell)
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

// MarshalXML implements custom XML marshaling for TableRow
func (r TableRow) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	start.Name = xml.Name{Local: "w:tr"}
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	for i := range r.Cells {
		if err := e.EncodeElement(&r.Cells[i], xml.StartElement{Name: xml.Name{Local: "w:tc"}}); err != nil {
			return err
		}
	}
	return e.EncodeToken(xml.EndElement{Name: start.Name})
}

// TableCell represents a cell in a table row
type TableCell struct {
	// Elements holds the cell's paragraphs and nested tables in order
	Elements []BodyElement
}

// UnmarshalXML implements custom XML unmarshaling for TableCell
func (c *TableCell) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	elements, _, err := decodeBlocks(d)
	if err != nil {
		return err
	}
	c.Elements = elements
	return nil
}

// MarshalXML implements custom XML marshaling for TableCell. Word requires
// every cell to end with a paragraph, so an empty one is added when missing.
func (c TableCell) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	start.Name = xml.Name{Local: "w:tc"}
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	elements := c.Elements
	if len(elements) == 0 {
		elements = []BodyElement{&Paragraph{}}
	} else if _, ok := elements[len(elements)-1].(*Paragraph); !ok {
		elements = append(elements[:len(elements):len(elements)], &Paragraph{})
	}
	if err := encodeBlocks(e, elements); err != nil {
		return err
	}
	return e.EncodeToken(xml.EndElement{Name: start.Name})
}
