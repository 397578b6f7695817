package resumefit

import (
	"bytes"
	"crypto/sha256"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/benjaminschreck/go-resumefit/pkg/resumefit/wml"
)

// Entry is one addressable text leaf of the primary part.
type Entry struct {
	Address string `json:"xpath"`
	Text    string `json:"text"`
}

// Index is the ordered address list of one parse of the primary part. It is
// only valid against the exact bytes it was computed from.
type Index struct {
	Entries []Entry

	digest [sha256.Size]byte
	spans  map[string]textSpan
}

// textSpan locates a w:t element inside the primary part.
type textSpan struct {
	tagStart    int64 // offset of '<' of the start tag
	tagEnd      int64 // offset just past the start tag
	contentEnd  int64 // offset of '<' of the end tag
	selfClosing bool
	preserve    bool // start tag already carries xml:space
	qname       string
}

// Len returns the number of addressed leaves.
func (idx *Index) Len() int { return len(idx.Entries) }

// Lookup returns the original text at address.
func (idx *Index) Lookup(address string) (string, bool) {
	if _, ok := idx.spans[address]; !ok {
		return "", false
	}
	for _, e := range idx.Entries {
		if e.Address == address {
			return e.Text, true
		}
	}
	return "", false
}

// Matches reports whether data is the primary part this index was built from.
func (idx *Index) Matches(data []byte) bool {
	return digestOf(data) == idx.digest
}

// IndexPackage indexes the primary part of a package.
func IndexPackage(pkg *Package) (*Index, error) {
	data, err := pkg.DocumentXML()
	if err != nil {
		return nil, err
	}
	return IndexDocument(data)
}

type indexFrame struct {
	qname  string
	counts map[string]int
}

// IndexDocument walks raw markup and returns one entry per w:t leaf in
// document order, addressed by an XPath-like position path such as
// /w:document[1]/w:body[1]/w:p[2]/w:r[1]/w:t[1]. A leaf whose content cannot
// be interpreted is left out of the index rather than failing the walk.
func IndexDocument(data []byte) (*Index, error) {
	idx := &Index{
		digest: digestOf(data),
		spans:  make(map[string]textSpan),
	}

	d := xml.NewDecoder(bytes.NewReader(data))
	stack := []indexFrame{{counts: map[string]int{}}}
	wPrefix := "w"
	rootSeen := false

	for {
		before := d.InputOffset()
		tok, err := d.RawToken()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &MalformedError{Part: documentPart, Path: stack[len(stack)-1].qname, Reason: "unparseable markup", Cause: err}
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if !rootSeen {
				rootSeen = true
				wPrefix = prefixFor(t.Attr, wml.NamespaceW, wPrefix)
			}
			qname := rawName(t.Name)
			parent := &stack[len(stack)-1]
			parent.counts[qname]++
			address := fmt.Sprintf("%s/%s[%d]", parent.qname, qname, parent.counts[qname])

			if t.Name.Space == wPrefix && t.Name.Local == "t" {
				span := textSpan{tagStart: before, tagEnd: d.InputOffset(), qname: qname}
				for _, a := range t.Attr {
					if a.Name.Space == "xml" && a.Name.Local == "space" {
						span.preserve = true
					}
				}
				text, ok, err := readLeaf(d, &span)
				if err != nil {
					return nil, &MalformedError{Part: documentPart, Path: address, Reason: "unparseable text", Cause: err}
				}
				if !ok {
					continue
				}
				idx.spans[address] = span
				idx.Entries = append(idx.Entries, Entry{Address: address, Text: text})
				continue
			}
			stack = append(stack, indexFrame{qname: address, counts: map[string]int{}})
		case xml.EndElement:
			if len(stack) > 1 {
				stack = stack[:len(stack)-1]
			}
		}
	}

	if !rootSeen {
		return nil, newMalformed(documentPart, "", "empty document")
	}
	return idx, nil
}

// readLeaf consumes a w:t element after its start tag. It reports false for
// leaves with nested elements, which are skipped.
func readLeaf(d *xml.Decoder, span *textSpan) (string, bool, error) {
	var sb strings.Builder
	depth := 0
	clean := true
	for {
		before := d.InputOffset()
		tok, err := d.RawToken()
		if err != nil {
			return "", false, err
		}
		switch t := tok.(type) {
		case xml.CharData:
			if depth == 0 {
				sb.Write(t)
			}
		case xml.StartElement:
			depth++
			clean = false
		case xml.EndElement:
			if depth > 0 {
				depth--
				continue
			}
			span.contentEnd = before
			span.selfClosing = d.InputOffset() == before && before == span.tagEnd
			return sb.String(), clean, nil
		}
	}
}

func rawName(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}

// prefixFor returns the prefix the root element binds to uri.
func prefixFor(attrs []xml.Attr, uri, fallback string) string {
	for _, a := range attrs {
		if a.Name.Space == "xmlns" && a.Value == uri {
			return a.Name.Local
		}
	}
	return fallback
}
