// Package wml provides typed WordprocessingML structures for DOCX documents.
//
// DOCX files are ZIP archives whose primary part, word/document.xml, holds the
// body markup. This package decodes that markup into an ordered tree and encodes
// it back, preserving element order inside bodies, paragraphs, runs and table
// cells.
//
// # Structure Organization
//
//   - types.go: sealed interfaces (BodyElement, ParagraphContent, RunContent) and shared value types
//   - namespaces.go: namespace URI to conventional prefix mapping
//   - raw.go: capture and replay of elements that are kept as opaque markup (drawings, sectPr, tblPr)
//   - document.go: Document and Body
//   - paragraph.go: Paragraph, ParagraphProperties and Hyperlink
//   - run.go: Run, RunProperties, Text, Tab, Break and Drawing
//   - table.go: Table, TableRow and TableCell
//
// # Key Concepts
//
// BodyElement: block content that can appear in a body or a table cell (paragraphs, tables).
//
// ParagraphContent: inline content of a paragraph (runs, hyperlinks).
//
// RunContent: the ordered pieces of a run (text, tabs, breaks, drawings).
//
// Elements the model does not interpret but must keep intact, such as
// w:drawing, are stored as RawXMLElement and replayed byte-for-byte modulo
// namespace prefix normalisation.
//
// Example of building a document:
//
//	doc := wml.NewDocument()
//	doc.Body.Elements = append(doc.Body.Elements, &wml.Paragraph{
//	    Content: []wml.ParagraphContent{
//	        &wml.Run{Content: []wml.RunContent{&wml.Text{Content: "Hello, world!"}}},
//	    },
//	})
//	data, err := doc.Marshal()
package wml
