package wml

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDocument = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships" xmlns:wp="http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing" xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:pic="http://schemas.openxmlformats.org/drawingml/2006/picture">
<w:body>
<w:p>
  <w:pPr><w:pStyle w:val="Heading1"/><w:numPr><w:ilvl w:val="1"/><w:numId w:val="3"/></w:numPr><w:spacing w:before="120" w:after="240"/><w:ind w:left="720" w:hanging="360"/><w:jc w:val="center"/></w:pPr>
  <w:r><w:rPr><w:rFonts w:ascii="Calibri" w:hAnsi="Calibri"/><w:b/><w:i w:val="0"/><w:color w:val="1F4E79"/><w:sz w:val="28"/></w:rPr><w:t xml:space="preserve">Jane </w:t><w:tab/><w:t>Doe</w:t><w:br/></w:r>
  <w:hyperlink r:id="rId5"><w:r><w:t>site</w:t></w:r></w:hyperlink>
  <w:proofErr w:type="spellStart"/>
</w:p>
<w:sdt><w:sdtContent><w:p><w:r><w:t>inside sdt</w:t></w:r></w:p></w:sdtContent></w:sdt>
<w:tbl>
  <w:tblPr><w:tblW w:w="0" w:type="auto"/></w:tblPr>
  <w:tblGrid><w:gridCol w:w="4680"/><w:gridCol w:w="4680"/></w:tblGrid>
  <w:tr><w:tc><w:p><w:r><w:t>a</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:drawing><wp:inline><a:graphic><a:graphicData><pic:pic><pic:blipFill><a:blip r:embed="rId7"/></pic:blipFill></pic:pic></a:graphicData></a:graphic></wp:inline></w:drawing></w:r></w:p></w:tc></w:tr>
</w:tbl>
<w:sectPr><w:pgSz w:w="12240" w:h="15840"/></w:sectPr>
</w:body>
</w:document>`

func parse(t *testing.T, data string) *Document {
	t.Helper()
	doc, err := ParseDocument(strings.NewReader(data))
	require.NoError(t, err)
	require.NotNil(t, doc.Body)
	return doc
}

func TestParseDocument(t *testing.T) {
	doc := parse(t, testDocument)
	require.Len(t, doc.Body.Elements, 3, "paragraph, unwrapped sdt paragraph, table")

	p, ok := doc.Body.Elements[0].(*Paragraph)
	require.True(t, ok)
	require.NotNil(t, p.Properties)
	assert.Equal(t, "Heading1", p.Properties.Style.Val)
	assert.Equal(t, "center", p.Properties.Alignment.Val)
	assert.Equal(t, "1", p.Properties.Numbering.Level.Val)
	assert.Equal(t, "3", p.Properties.Numbering.NumID.Val)
	assert.Equal(t, "120", p.Properties.Spacing.Before)
	assert.Equal(t, "360", p.Properties.Indentation.Hanging)
	assert.Equal(t, "Jane \tDoe\nsite", p.GetText())

	require.Len(t, p.Content, 2)
	run := p.Content[0].(*Run)
	assert.Equal(t, "Calibri", run.Properties.Fonts.Name())
	assert.True(t, run.Properties.Bold.Enabled())
	assert.False(t, run.Properties.Italic.Enabled())
	assert.Equal(t, "1F4E79", run.Properties.Color.Val)
	assert.Equal(t, "28", run.Properties.Size.Val)

	link := p.Content[1].(*Hyperlink)
	assert.Equal(t, "rId5", link.ID)

	sdt := doc.Body.Elements[1].(*Paragraph)
	assert.Equal(t, "inside sdt", sdt.GetText())

	table, ok := doc.Body.Elements[2].(*Table)
	require.True(t, ok)
	assert.Equal(t, []GridColumn{{4680}, {4680}}, table.Grid)
	require.Len(t, table.Rows, 1)
	require.Len(t, table.Rows[0].Cells, 2)

	cellPara := table.Rows[0].Cells[1].Elements[0].(*Paragraph)
	drawings := cellPara.Content[0].(*Run).Drawings()
	require.Len(t, drawings, 1)
	assert.Equal(t, "rId7", drawings[0].EmbedID())
	assert.True(t, bytes.HasPrefix(drawings[0].Raw.Content, []byte("<w:drawing>")))

	require.NotNil(t, doc.Body.SectionProperties)
	assert.Contains(t, string(doc.Body.SectionProperties.Content), `<w:pgSz w:w="12240" w:h="15840">`)
}

func TestDocumentRoundTrip(t *testing.T) {
	doc := parse(t, testDocument)
	data, err := doc.Marshal()
	require.NoError(t, err)

	again := parse(t, string(data))
	assert.Equal(t, doc.Body, again.Body)

	out := string(data)
	assert.True(t, strings.HasPrefix(out, `<?xml version="1.0" encoding="UTF-8"?>`))
	assert.Contains(t, out, `xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"`)
	assert.Contains(t, out, `<w:t xml:space="preserve">Jane </w:t>`)
	assert.Contains(t, out, `<w:hyperlink r:id="rId5">`)
	assert.Contains(t, out, `<a:blip r:embed="rId7"></a:blip>`)
}

func TestNewDocumentMarshal(t *testing.T) {
	doc := NewDocument()
	doc.Body.Elements = append(doc.Body.Elements,
		&Paragraph{Content: []ParagraphContent{
			&Run{Properties: &RunProperties{Bold: On()}, Content: []RunContent{&Text{Content: "Hello, world!"}}},
		}},
		&Table{Grid: []GridColumn{{9360}}, Rows: []TableRow{{Cells: []TableCell{{}}}}},
	)

	data, err := doc.Marshal()
	require.NoError(t, err)
	out := string(data)
	for _, prefix := range []string{"w", "r", "wp", "a", "pic"} {
		assert.Contains(t, out, "xmlns:"+prefix+"=")
	}
	assert.Contains(t, out, `<w:r><w:rPr><w:b></w:b></w:rPr><w:t>Hello, world!</w:t></w:r>`)
	assert.Contains(t, out, `<w:tc><w:p></w:p></w:tc>`, "empty cells get a paragraph")

	parsed := parse(t, out)
	assert.Equal(t, "Hello, world!", parsed.Body.Elements[0].(*Paragraph).GetText())
}

func TestDrawingRewire(t *testing.T) {
	d := NewDrawing(`<w:drawing><a:blip r:embed="rId1"></a:blip></w:drawing>`)
	rewired := d.Rewire("rId1", "rId9")
	assert.Equal(t, "rId9", rewired.EmbedID())
	assert.Equal(t, "rId1", d.EmbedID(), "the original is not modified")
}

func TestOnOff(t *testing.T) {
	tests := []struct {
		val  *OnOff
		want bool
	}{
		{nil, false},
		{&OnOff{}, true},
		{&OnOff{Val: "true"}, true},
		{&OnOff{Val: "1"}, true},
		{&OnOff{Val: "0"}, false},
		{&OnOff{Val: "false"}, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.val.Enabled())
	}
}

func TestNeedsPreserve(t *testing.T) {
	assert.True(t, NeedsPreserve(" lead"))
	assert.True(t, NeedsPreserve("trail "))
	assert.True(t, NeedsPreserve("two  spaces"))
	assert.False(t, NeedsPreserve("plain words"))
	assert.False(t, NeedsPreserve(""))
}

func TestParseDocumentMalformed(t *testing.T) {
	_, err := ParseDocument(strings.NewReader(`<w:document xmlns:w="urn:w"><w:body><w:p>`))
	assert.Error(t, err)
}

const decorativeDrawing = `<w:p><w:r><w:drawing><wp:inline><wp:docPr id="1" name="Logo">` +
	`<a:extLst><a:ext uri="{C183D7F6-B498-43B3-948B-1728B52AA6E4}">` +
	`<adec:decorative xmlns:adec="http://schemas.microsoft.com/office/drawing/2017/decorative" val="1"/>` +
	`</a:ext><a:ext uri="{FF2B5EF4-FFF2-40B4-BE49-F238E27FC236}">` +
	`<a16:creationId xmlns:a16="http://schemas.microsoft.com/office/drawing/2014/main" id="{0001}"/>` +
	`</a:ext></a:extLst></wp:docPr>` +
	`<pic:note xmlns:pic="urn:example:not-picture"/>` +
	`<a:graphic><a:graphicData><pic:pic><pic:blipFill><a:blip r:embed="rId7"/></pic:blipFill></pic:pic></a:graphicData></a:graphic>` +
	`</wp:inline></w:drawing></w:r></w:p>`

func TestDrawingWithUndeclaredNamespaces(t *testing.T) {
	doc := parse(t, strings.Replace(testDocument, "<w:body>", "<w:body>"+decorativeDrawing, 1))
	drawings := doc.Body.Elements[0].(*Paragraph).Content[0].(*Run).Drawings()
	require.Len(t, drawings, 1)

	d := drawings[0]
	assert.Equal(t, "rId7", d.EmbedID(), "extension elements before the blip do not hide it")
	content := string(d.Raw.Content)
	assert.True(t, strings.HasPrefix(content, `<w:drawing xmlns:adec="http://schemas.microsoft.com/office/drawing/2017/decorative"`))
	assert.Contains(t, content, `xmlns:a16="http://schemas.microsoft.com/office/drawing/2014/main"`)
	assert.Contains(t, content, `xmlns:ns3="urn:example:not-picture"`, "a source prefix bound to another namespace is renamed")
	assert.Contains(t, content, `<adec:decorative val="1">`)
	assert.Contains(t, content, `<ns3:note>`)
	assert.NotContains(t, content, "http://schemas.microsoft.com/office/drawing/2017/decorative:")

	out := NewDocument()
	out.Body.Elements = append(out.Body.Elements, &Paragraph{Content: []ParagraphContent{
		&Run{Content: []RunContent{d.Rewire("rId7", "rId1")}},
	}})
	data, err := out.Marshal()
	require.NoError(t, err)

	replayed := parse(t, string(data)).Body.Elements[0].(*Paragraph).Content[0].(*Run).Drawings()
	require.Len(t, replayed, 1)
	assert.Equal(t, "rId1", replayed[0].EmbedID())
	assert.Contains(t, string(replayed[0].Raw.Content), `<adec:decorative val="1">`)
}
