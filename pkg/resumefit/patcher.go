package resumefit

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"sort"

	"github.com/benjaminschreck/go-resumefit/pkg/resumefit/wml"
)

// Patch replaces the text of one addressed leaf.
type Patch struct {
	Address string `json:"xpath"`
	Text    string `json:"optimized_text"`
}

// PatchStats reports how a patch set was applied.
type PatchStats struct {
	Applied int
	// Ignored counts patches whose address is not in the index
	Ignored int
}

// ApplyPatches returns a new container in which every entry except the
// primary part is copied byte for byte. Patches with unknown addresses are
// ignored; when an address repeats, the last patch wins. The index must come
// from the same primary part bytes or ErrStaleIndex is returned.
func ApplyPatches(pkg *Package, idx *Index, patches []Patch) ([]byte, PatchStats, error) {
	var stats PatchStats

	original, err := pkg.DocumentXML()
	if err != nil {
		return nil, stats, err
	}
	if !idx.Matches(original) {
		return nil, stats, fmt.Errorf("%s changed since it was indexed: %w", documentPart, ErrStaleIndex)
	}

	replacements := make(map[string]string, len(patches))
	for _, p := range patches {
		if _, ok := idx.spans[p.Address]; !ok {
			stats.Ignored++
			continue
		}
		replacements[p.Address] = p.Text
	}
	stats.Applied = len(replacements)

	patched := spliceText(original, idx, replacements)

	out, err := rewriteContainer(pkg, map[string][]byte{documentPart: patched})
	if err != nil {
		return nil, stats, err
	}
	return out, stats, nil
}

// spliceText copies data, replacing the content of every addressed leaf
// that has a replacement.
func spliceText(data []byte, idx *Index, replacements map[string]string) []byte {
	type edit struct {
		span textSpan
		text string
	}
	edits := make([]edit, 0, len(replacements))
	for addr, text := range replacements {
		edits = append(edits, edit{span: idx.spans[addr], text: text})
	}
	sort.Slice(edits, func(i, j int) bool { return edits[i].span.tagStart < edits[j].span.tagStart })

	var buf bytes.Buffer
	buf.Grow(len(data))
	cursor := int64(0)
	for _, ed := range edits {
		s := ed.span
		buf.Write(data[cursor:s.tagStart])

		startTag := data[s.tagStart:s.tagEnd]
		if s.selfClosing {
			startTag = bytes.TrimRight(bytes.TrimSuffix(startTag, []byte("/>")), " \t\r\n")
		} else {
			startTag = startTag[:len(startTag)-1]
		}
		buf.Write(startTag)
		if !s.preserve && wml.NeedsPreserve(ed.text) {
			buf.WriteString(` xml:space="preserve"`)
		}
		buf.WriteByte('>')
		xml.EscapeText(&buf, []byte(ed.text))

		if s.selfClosing {
			buf.WriteString("</" + s.qname + ">")
			cursor = s.tagEnd
		} else {
			cursor = s.contentEnd
		}
	}
	buf.Write(data[cursor:])
	return buf.Bytes()
}

// rewriteContainer copies every entry of pkg into a new archive, substituting
// the parts named in replace. Untouched entries keep their compressed bytes.
func rewriteContainer(pkg *Package, replace map[string][]byte) ([]byte, error) {
	buf := new(bytes.Buffer)
	w := zip.NewWriter(buf)

	for _, file := range pkg.reader.File {
		content, ok := replace[file.Name]
		if !ok {
			if err := w.Copy(file); err != nil {
				return nil, fmt.Errorf("failed to copy %s: %w", file.Name, err)
			}
			continue
		}

		fw, err := w.CreateHeader(&zip.FileHeader{
			Name:     file.Name,
			Method:   zip.Deflate,
			Modified: file.Modified,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", file.Name, err)
		}
		if _, err := fw.Write(content); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", file.Name, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to close zip writer: %w", err)
	}
	return buf.Bytes(), nil
}
