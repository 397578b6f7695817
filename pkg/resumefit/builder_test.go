package resumefit

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stripImageIDs blanks the attributes that legitimately change when an image
// is re-embedded.
func stripImageIDs(tree *Tree) {
	_ = tree.Walk(func(n *Node, _ int) error {
		if n.Kind == KindImage {
			n.Attrs["r_id"] = ""
			n.Attrs["drawing_xml"] = ""
		}
		return nil
	})
}

func TestBuildDocumentRoundTrip(t *testing.T) {
	tree, images := readTree(t, resumeDocx(t))

	markup, err := MarshalTree(tree)
	require.NoError(t, err)
	parsed, err := UnmarshalTree(markup)
	require.NoError(t, err)

	out, report, err := BuildDocument(parsed, images, BuildOptions{})
	require.NoError(t, err)
	assert.Empty(t, report.Skipped)

	rebuilt, rebuiltImages := readTree(t, out)
	require.Len(t, rebuiltImages, 1)

	title := rebuilt.Nodes[1].Children[1]
	assert.Equal(t, "Engineer", title.Text)
	assert.Equal(t, "true", title.Attrs["bold"])
	assert.Equal(t, "#FF0000", title.Attrs["font_color"])
	assert.Equal(t, "14", title.Attrs["font_size"])

	for _, asset := range rebuiltImages {
		assert.Equal(t, testPNG, asset.Data)
		assert.Equal(t, "image/png", asset.MIME)
	}

	stripImageIDs(tree)
	stripImageIDs(rebuilt)
	assert.Equal(t, tree, rebuilt)
}

func TestBuildDocumentTableWithImage(t *testing.T) {
	text := func(s string) *Node {
		return NewNode(KindParagraph).Append(&Node{Kind: KindRun, Attrs: Defaults(KindRun), Text: s})
	}
	img := NewNode(KindImage)
	img.Attrs["r_id"] = "rId9"
	img.Attrs["mime_type"] = "image/png"
	img.Attrs["drawing_xml"] = drawingXML("rId9")

	tree := &Tree{Nodes: []*Node{
		NewNode(KindTable).Append(
			NewNode(KindRow).Append(
				NewNode(KindCell).Append(text("2019")),
				NewNode(KindCell).Append(text("Acme")),
				NewNode(KindCell).Append(text("Engineer")),
			),
			NewNode(KindRow).Append(
				NewNode(KindCell).Append(text("2023")),
				NewNode(KindCell).Append(text("Initech")),
				NewNode(KindCell).Append(NewNode(KindParagraph).Append(img)),
			),
		),
	}}
	images := ImageTable{"rId9": {Data: testPNG, MIME: "image/png", Part: "word/media/logo.png"}}

	out, report, err := BuildDocument(tree, images, BuildOptions{})
	require.NoError(t, err)
	assert.Empty(t, report.Skipped)

	rebuilt, rebuiltImages := readTree(t, out)
	require.Len(t, rebuilt.Nodes, 1)
	table := rebuilt.Nodes[0]
	require.Equal(t, KindTable, table.Kind)
	require.Len(t, table.Children, 2)
	for _, row := range table.Children {
		assert.Len(t, row.Children, 3)
	}

	cell := table.Children[1].Children[2]
	require.Len(t, cell.Children, 1)
	require.Len(t, cell.Children[0].Children, 1)
	image := cell.Children[0].Children[0]
	assert.Equal(t, KindImage, image.Kind)
	asset, ok := rebuiltImages[image.Attrs["r_id"]]
	require.True(t, ok, "image resolves to a media part")
	assert.Equal(t, testPNG, asset.Data)

	entries := readEntries(t, out)
	assert.Contains(t, entries, "word/media/image1.png")
	assert.Contains(t, string(entries[contentTypesPart]), `Extension="png"`)
}

func TestBuildDocumentPadsRaggedRows(t *testing.T) {
	tree := &Tree{Nodes: []*Node{
		NewNode(KindTable).Append(
			NewNode(KindRow).Append(NewNode(KindCell), NewNode(KindCell), NewNode(KindCell)),
			NewNode(KindRow).Append(NewNode(KindCell)),
		),
	}}
	out, _, err := BuildDocument(tree, nil, BuildOptions{})
	require.NoError(t, err)

	rebuilt, _ := readTree(t, out)
	for _, row := range rebuilt.Nodes[0].Children {
		assert.Len(t, row.Children, 3)
	}
}

func TestBuildDocumentSkipsMissingAssets(t *testing.T) {
	img := NewNode(KindImage)
	img.Attrs["r_id"] = "rId7"
	img.Attrs["drawing_xml"] = drawingXML("rId7")
	tree := &Tree{Nodes: []*Node{
		NewNode(KindParagraph).Append(&Node{Kind: KindRun, Attrs: Defaults(KindRun), Text: "before"}, img),
	}}

	out, report, err := BuildDocument(tree, ImageTable{}, BuildOptions{})
	require.NoError(t, err)
	require.Len(t, report.Skipped, 1)
	assert.True(t, errors.Is(report.Skipped[0], ErrAssetMissing))

	rebuilt, images := readTree(t, out)
	assert.Empty(t, images)
	assert.Equal(t, "before", rebuilt.Text())
	assert.NotContains(t, string(readEntries(t, out)[documentPart]), "w:drawing")
}

func TestBuildDocumentSkipsEmptyTables(t *testing.T) {
	tree := &Tree{Nodes: []*Node{
		NewNode(KindTable),
		NewNode(KindTable).Append(NewNode(KindRow)),
		NewNode(KindParagraph).Append(&Node{Kind: KindRun, Attrs: Defaults(KindRun), Text: "kept"}),
	}}
	out, report, err := BuildDocument(tree, nil, BuildOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, report.SkippedTables)

	rebuilt, _ := readTree(t, out)
	require.Len(t, rebuilt.Nodes, 1)
	assert.Equal(t, KindParagraph, rebuilt.Nodes[0].Kind)
}

func TestBuildDocumentHyperlink(t *testing.T) {
	link := NewNode(KindHyperlink)
	link.Attrs["url"] = "https://example.com/jane"
	bold := Defaults(KindRun)
	bold["bold"] = "true"
	link.Append(&Node{Kind: KindRun, Attrs: bold, Text: "portfolio"})

	bare := NewNode(KindHyperlink).Append(&Node{Kind: KindRun, Attrs: Defaults(KindRun), Text: " (offline)"})

	tree := &Tree{Nodes: []*Node{NewNode(KindParagraph).Append(link, bare)}}
	out, _, err := BuildDocument(tree, nil, BuildOptions{})
	require.NoError(t, err)

	pkg, err := OpenPackage(out)
	require.NoError(t, err)
	rels, err := pkg.Relationships(documentPart)
	require.NoError(t, err)
	require.Len(t, rels, 1)
	assert.Equal(t, hyperlinkRelationshipType, rels[0].Type)
	assert.Equal(t, "https://example.com/jane", rels[0].Target)
	assert.True(t, rels[0].External())

	rebuilt, _ := readTree(t, out)
	para := rebuilt.Nodes[0]
	require.Len(t, para.Children, 2)
	assert.Equal(t, KindHyperlink, para.Children[0].Kind)
	assert.Equal(t, "https://example.com/jane", para.Children[0].Attrs["url"])
	assert.Equal(t, "true", para.Children[0].Children[0].Attrs["bold"])
	assert.Equal(t, KindRun, para.Children[1].Kind, "a link without url is written as plain runs")
	assert.Equal(t, "portfolio (offline)", rebuilt.Text())
}

func TestBuildDocumentLists(t *testing.T) {
	item := func(listType, level, text string) *Node {
		p := NewNode(KindParagraph)
		p.Attrs["list_type"] = listType
		p.Attrs["list_level"] = level
		return p.Append(&Node{Kind: KindRun, Attrs: Defaults(KindRun), Text: text})
	}
	tree := &Tree{Nodes: []*Node{
		item("bullet", "0", "Go"),
		item("bullet", "1", "Concurrency"),
		item("number", "0", "First"),
	}}

	out, _, err := BuildDocument(tree, nil, BuildOptions{})
	require.NoError(t, err)

	entries := readEntries(t, out)
	assert.Contains(t, entries, numberingPart)
	assert.Contains(t, string(entries[contentTypesPart]), "numbering+xml")

	rebuilt, _ := readTree(t, out)
	assert.Equal(t, "bullet", rebuilt.Nodes[0].Attrs["list_type"])
	assert.Equal(t, "bullet", rebuilt.Nodes[1].Attrs["list_type"])
	assert.Equal(t, "1", rebuilt.Nodes[1].Attrs["list_level"])
	assert.Equal(t, "number", rebuilt.Nodes[2].Attrs["list_type"])
}

func TestBuildDocumentWithoutListsHasNoNumbering(t *testing.T) {
	tree := &Tree{Nodes: []*Node{NewNode(KindParagraph).Append(&Node{Kind: KindRun, Attrs: Defaults(KindRun), Text: "x"})}}
	out, _, err := BuildDocument(tree, nil, BuildOptions{})
	require.NoError(t, err)
	assert.NotContains(t, readEntries(t, out), numberingPart)
}

func TestBuildDocumentCarriesBaseStyles(t *testing.T) {
	base, err := OpenPackage(resumeDocx(t))
	require.NoError(t, err)
	tree, images, err := ReadTree(base)
	require.NoError(t, err)

	out, _, err := BuildDocument(tree, images, BuildOptions{Base: base})
	require.NoError(t, err)

	entries := readEntries(t, out)
	assert.Equal(t, testStyles, string(entries["word/styles.xml"]))
	assert.Contains(t, string(entries[documentPart]), `<w:pStyle w:val="Heading1"></w:pStyle>`)

	pkg, err := OpenPackage(out)
	require.NoError(t, err)
	rels, err := pkg.Relationships(documentPart)
	require.NoError(t, err)
	var types []string
	for _, rel := range rels {
		types = append(types, rel.Type[strings.LastIndex(rel.Type, "/")+1:])
	}
	assert.Equal(t, []string{"styles", "hyperlink", "image"}, types)
}

func TestBuildRun(t *testing.T) {
	r := buildRun("a\tb\nc\r", nil)
	assert.Equal(t, "a\tb\nc", r.GetText())

	empty := buildRun("", nil)
	require.Len(t, empty.Content, 1)
	assert.Equal(t, "", empty.GetText())
}
