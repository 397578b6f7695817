package wml

import "encoding/xml"

// Namespace URIs used by the primary document part.
const (
	NamespaceW   = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	NamespaceR   = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
	NamespaceWP  = "http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing"
	NamespaceA   = "http://schemas.openxmlformats.org/drawingml/2006/main"
	NamespacePic = "http://schemas.openxmlformats.org/drawingml/2006/picture"
	NamespaceXML = "http://www.w3.org/XML/1998/namespace"
)

var prefixMap = map[string]string{
	// Core Word namespaces
	NamespaceW:   "w",
	NamespaceR:   "r",
	NamespaceXML: "xml",
	"http://schemas.openxmlformats.org/officeDocument/2006/math": "m",
	// Drawing namespaces
	NamespaceWP:  "wp",
	NamespaceA:   "a",
	NamespacePic: "pic",
	"http://schemas.microsoft.com/office/word/2010/wordprocessingDrawing": "wp14",
	"http://schemas.microsoft.com/office/drawing/2010/main":               "a14",
	"http://schemas.microsoft.com/office/drawing/2014/main":               "a16",
	"http://schemas.openxmlformats.org/drawingml/2006/chart":              "c",
	// VML namespaces
	"urn:schemas-microsoft-com:vml":           "v",
	"urn:schemas-microsoft-com:office:office": "o",
	"urn:schemas-microsoft-com:office:word":   "w10",
	// Markup compatibility namespace
	"http://schemas.openxmlformats.org/markup-compatibility/2006": "mc",
	// Word processing shapes and canvas
	"http://schemas.microsoft.com/office/word/2010/wordprocessingShape":  "wps",
	"http://schemas.microsoft.com/office/word/2010/wordprocessingCanvas": "wpc",
	"http://schemas.microsoft.com/office/word/2010/wordprocessingGroup":  "wpg",
	// Extended Word namespaces
	"http://schemas.microsoft.com/office/word/2010/wordml": "w14",
	"http://schemas.microsoft.com/office/word/2012/wordml": "w15",
}

// defaultNamespaces are declared on the root of every document written by
// NewDocument so that replayed drawings resolve their prefixes.
var defaultNamespaces = []string{
	NamespaceW, NamespaceR, NamespaceWP, NamespaceA, NamespacePic,
	"http://schemas.openxmlformats.org/markup-compatibility/2006",
	"http://schemas.microsoft.com/office/word/2010/wordprocessingDrawing",
	"http://schemas.microsoft.com/office/word/2010/wordprocessingShape",
	"http://schemas.microsoft.com/office/drawing/2010/main",
	"http://schemas.microsoft.com/office/word/2010/wordml",
	"urn:schemas-microsoft-com:vml",
	"urn:schemas-microsoft-com:office:office",
}

// rootNamespaces are the namespaces every document written by NewDocument
// declares on its root, plus the predeclared xml namespace.
var rootNamespaces = func() map[string]bool {
	set := map[string]bool{NamespaceXML: true}
	for _, uri := range defaultNamespaces {
		set[uri] = true
	}
	return set
}()

var conventionalPrefixes = func() map[string]bool {
	set := map[string]bool{"xml": true, "xmlns": true}
	for _, p := range prefixMap {
		set[p] = true
	}
	return set
}()

// namespaceToPrefix converts a namespace URI to its conventional prefix.
// Unknown URIs are returned as-is.
func namespaceToPrefix(uri string) string {
	if prefix, ok := prefixMap[uri]; ok {
		return prefix
	}
	return uri
}

// qualified renders a resolved name with its conventional prefix.
func qualified(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return namespaceToPrefix(n.Space) + ":" + n.Local
}

func namespaceDecls() []xml.Attr {
	attrs := make([]xml.Attr, 0, len(defaultNamespaces))
	for _, uri := range defaultNamespaces {
		attrs = append(attrs, xml.Attr{Name: xml.Name{Local: "xmlns:" + prefixMap[uri]}, Value: uri})
	}
	return attrs
}
