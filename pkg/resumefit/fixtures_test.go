package resumefit

import (
	"archive/zip"
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const testContentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
<Default Extension="png" ContentType="image/png"/>
<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
<Override PartName="/word/styles.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"/>
</Types>`

const testPackageRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
</Relationships>`

const testStyles = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:styles xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:style w:type="paragraph" w:styleId="Heading1"><w:name w:val="heading 1"/></w:style>
</w:styles>`

// testPNG is not a decodable image; only its bytes travel through the pipeline.
var testPNG = []byte("\x89PNG\r\n\x1a\nfixture-image")

type testPart struct {
	name string
	data string
}

// wrapBody places body markup inside a complete document part.
func wrapBody(body string) string {
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n" +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"` +
		` xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"` +
		` xmlns:wp="http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing"` +
		` xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main"` +
		` xmlns:pic="http://schemas.openxmlformats.org/drawingml/2006/picture">` +
		`<w:body>` + body + `<w:sectPr><w:pgSz w:w="12240" w:h="15840"/></w:sectPr></w:body></w:document>`
}

// documentRels renders a word/_rels/document.xml.rels part.
func documentRels(rels ...Relationship) string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	sb.WriteString(`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`)
	for _, r := range rels {
		sb.WriteString(`<Relationship Id="` + r.ID + `" Type="` + r.Type + `" Target="` + r.Target + `"`)
		if r.TargetMode != "" {
			sb.WriteString(` TargetMode="` + r.TargetMode + `"`)
		}
		sb.WriteString(`/>`)
	}
	sb.WriteString(`</Relationships>`)
	return sb.String()
}

// drawingXML is a minimal inline picture pointing at rID.
func drawingXML(rID string) string {
	return `<w:drawing><wp:inline><wp:extent cx="914400" cy="914400"/><wp:docPr id="1" name="Picture 1"/>` +
		`<a:graphic><a:graphicData uri="http://schemas.openxmlformats.org/drawingml/2006/picture">` +
		`<pic:pic><pic:blipFill><a:blip r:embed="` + rID + `"/></pic:blipFill></pic:pic>` +
		`</a:graphicData></a:graphic></wp:inline></w:drawing>`
}

// newDocx builds a container around body. Extra parts are appended after the
// standard ones in the given order.
func newDocx(t *testing.T, body string, extra ...testPart) []byte {
	t.Helper()
	parts := []testPart{
		{contentTypesPart, testContentTypes},
		{packageRelsPart, testPackageRels},
		{documentPart, wrapBody(body)},
	}
	return zipParts(t, append(parts, extra...)...)
}

// zipParts writes parts into a container in the given order.
func zipParts(t *testing.T, parts ...testPart) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	w := zip.NewWriter(buf)
	for _, p := range parts {
		fw, err := w.Create(p.name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(p.data))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

// resumeDocx is a small resume with styles, a hyperlink and a picture.
func resumeDocx(t *testing.T) []byte {
	t.Helper()
	body := `<w:p><w:pPr><w:pStyle w:val="Heading1"/><w:jc w:val="center"/></w:pPr>` +
		`<w:r><w:rPr><w:b/><w:sz w:val="32"/></w:rPr><w:t>Jane Doe</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t xml:space="preserve">Senior </w:t></w:r><w:r><w:rPr><w:b/><w:color w:val="FF0000"/><w:sz w:val="28"/></w:rPr><w:t>Engineer</w:t></w:r></w:p>` +
		`<w:p><w:hyperlink r:id="rId3"><w:r><w:rPr><w:rStyle w:val="Hyperlink"/></w:rPr><w:t>github.com/jane</w:t></w:r></w:hyperlink></w:p>` +
		`<w:p><w:r>` + drawingXML("rId4") + `</w:r></w:p>` +
		`<w:p><w:r><w:t/></w:r></w:p>`
	return newDocx(t, body,
		testPart{documentRelsPart, documentRels(
			Relationship{ID: "rId1", Type: stylesRelationshipType, Target: "styles.xml"},
			Relationship{ID: "rId3", Type: hyperlinkRelationshipType, Target: "https://github.com/jane", TargetMode: "External"},
			Relationship{ID: "rId4", Type: imageRelationshipType, Target: "media/image1.png"},
		)},
		testPart{"word/styles.xml", testStyles},
		testPart{"word/media/image1.png", string(testPNG)},
	)
}

// readEntries returns every entry of a container by name.
func readEntries(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	pkg, err := OpenPackage(data)
	require.NoError(t, err)
	out := make(map[string][]byte)
	for _, f := range pkg.reader.File {
		content, err := pkg.Part(f.Name)
		require.NoError(t, err)
		out[f.Name] = content
	}
	return out
}

// staticRewriter returns the same response for every request and keeps the
// last request it saw.
type staticRewriter struct {
	response string
	err      error
	last     RewriteRequest
	calls    int
}

func (s *staticRewriter) Rewrite(_ context.Context, req RewriteRequest) (string, error) {
	s.calls++
	s.last = req
	return s.response, s.err
}

// memoryRecorder keeps transitions in memory.
type memoryRecorder struct {
	transitions []Transition
}

func (m *memoryRecorder) Record(_ context.Context, t Transition) error {
	m.transitions = append(m.transitions, t)
	return nil
}

func (m *memoryRecorder) states() []State {
	out := make([]State, 0, len(m.transitions))
	for _, t := range m.transitions {
		out = append(out, t.To)
	}
	return out
}
