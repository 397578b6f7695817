package resumefit

import (
	"archive/zip"
	"bytes"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/benjaminschreck/go-resumefit/pkg/resumefit/wml"
)

// Relationship types carried over from a base package.
var carriedRelationships = map[string]bool{
	stylesRelationshipType:    true,
	numberingRelationshipType: true,
	"http://schemas.openxmlformats.org/officeDocument/2006/relationships/theme":        true,
	"http://schemas.openxmlformats.org/officeDocument/2006/relationships/settings":     true,
	"http://schemas.openxmlformats.org/officeDocument/2006/relationships/fontTable":    true,
	"http://schemas.openxmlformats.org/officeDocument/2006/relationships/webSettings":  true,
}

const (
	// usable page width in twips for US Letter with one inch margins
	textWidth = 9360

	defaultSectionXML = `<w:sectPr><w:pgSz w:w="12240" w:h="15840"/>` +
		`<w:pgMar w:top="1440" w:right="1440" w:bottom="1440" w:left="1440" w:header="720" w:footer="720" w:gutter="0"/>` +
		`</w:sectPr>`
	defaultTableProperties = `<w:tblPr><w:tblW w:w="0" w:type="auto"/>` +
		`<w:tblLook w:val="04A0" w:firstRow="1" w:lastRow="0" w:firstColumn="1" w:lastColumn="0" w:noHBand="0" w:noVBand="1"/>` +
		`</w:tblPr>`
)

// BuildOptions configures TreeBuilder output.
type BuildOptions struct {
	// Base, when set, supplies styles, numbering, theme, settings and font
	// table parts so style ids and list numbering resolve as in the source.
	Base   *Package
	Logger *slog.Logger
}

// BuildReport lists what the builder left out.
type BuildReport struct {
	// Skipped holds one ErrAssetMissing error per omitted image
	Skipped       []error
	SkippedTables int
}

type treeBuilder struct {
	opts   BuildOptions
	logger *slog.Logger
	images ImageTable

	rels      []Relationship
	parts     map[string][]byte
	partOrder []string
	types     *ContentTypes
	numbering *Numbering

	// media maps original embedding ids to the relationships allocated for them
	media          map[string]string
	mediaCount     int
	defaultNumbers bool
	report         BuildReport
}

// BuildDocument writes a new container from a tree and its image side-table.
// Images without a side-table entry are skipped, never fatal.
func BuildDocument(t *Tree, images ImageTable, opts BuildOptions) ([]byte, BuildReport, error) {
	b := &treeBuilder{
		opts:   opts,
		logger: opts.Logger,
		images: images,
		parts:  make(map[string][]byte),
		types:  &ContentTypes{Namespace: contentTypesNS},
		media:  make(map[string]string),
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	b.types.RegisterDefault("rels", "application/vnd.openxmlformats-package.relationships+xml")
	b.types.RegisterDefault("xml", "application/xml")
	b.types.RegisterOverride(documentPart, documentContentType)

	if opts.Base != nil {
		if err := b.carryBaseParts(opts.Base); err != nil {
			return nil, b.report, err
		}
	}

	doc := wml.NewDocument()
	elements, err := b.blocks(t.Nodes)
	if err != nil {
		return nil, b.report, err
	}
	doc.Body.Elements = elements
	doc.Body.SectionProperties = &wml.RawXMLElement{Content: []byte(defaultSectionXML)}

	if b.defaultNumbers {
		b.addPart(numberingPart, defaultNumberingXML(), "application/vnd.openxmlformats-officedocument.wordprocessingml.numbering+xml")
		b.relate(numberingRelationshipType, "numbering.xml", "")
	}

	body, err := doc.Marshal()
	if err != nil {
		return nil, b.report, fmt.Errorf("failed to marshal document: %w", err)
	}
	out, err := b.write(body)
	return out, b.report, err
}

func (b *treeBuilder) carryBaseParts(base *Package) error {
	rels, err := base.Relationships(documentPart)
	if err != nil {
		return err
	}
	baseTypes, err := base.ContentTypes()
	if err != nil {
		return err
	}
	for _, rel := range rels {
		if !carriedRelationships[rel.Type] || rel.External() {
			continue
		}
		part := ResolveTarget(documentPart, rel.Target)
		if !base.Has(part) {
			continue
		}
		data, err := base.Part(part)
		if err != nil {
			return err
		}
		if rel.Type == numberingRelationshipType {
			if b.numbering, err = ParseNumbering(data); err != nil {
				return err
			}
		}
		b.addPart(part, data, baseTypes.TypeOf(part))
		b.relate(rel.Type, rel.Target, "")
	}
	return nil
}

func (b *treeBuilder) addPart(name string, data []byte, contentType string) {
	if _, ok := b.parts[name]; !ok {
		b.partOrder = append(b.partOrder, name)
	}
	b.parts[name] = data
	if contentType != "" {
		b.types.RegisterOverride(name, contentType)
	}
}

func (b *treeBuilder) relate(relType, target, mode string) string {
	id := nextRelationshipID(b.rels)
	b.rels = append(b.rels, Relationship{ID: id, Type: relType, Target: target, TargetMode: mode})
	return id
}

func (b *treeBuilder) blocks(nodes []*Node) ([]wml.BodyElement, error) {
	var elements []wml.BodyElement
	for _, n := range nodes {
		switch n.Kind {
		case KindParagraph:
			p, err := b.paragraph(n)
			if err != nil {
				return nil, err
			}
			elements = append(elements, p)
		case KindTable:
			t, err := b.table(n)
			if err != nil {
				return nil, err
			}
			if t != nil {
				elements = append(elements, t)
			}
		case KindRun, KindHyperlink, KindImage, KindRow, KindCell:
			return nil, newMalformed("tree", "", n.Kind.String()+" cannot appear at block level")
		default:
			return nil, newMalformed("tree", "", "unknown node kind "+n.Kind.String())
		}
	}
	return elements, nil
}

// table pads every row to the widest row. Tables without rows or cells are
// dropped.
func (b *treeBuilder) table(n *Node) (*wml.Table, error) {
	cols := 0
	for _, row := range n.Children {
		cols = max(cols, len(row.Children))
	}
	if len(n.Children) == 0 || cols == 0 {
		b.report.SkippedTables++
		b.logger.Warn("skipping empty table", "rows", len(n.Children), "columns", cols)
		return nil, nil
	}

	t := &wml.Table{Properties: &wml.RawXMLElement{Content: []byte(defaultTableProperties)}}
	for range cols {
		t.Grid = append(t.Grid, wml.GridColumn{Width: textWidth / cols})
	}
	for _, row := range n.Children {
		if row.Kind != KindRow {
			return nil, newMalformed("tree", "", "table_grid cannot contain "+row.Kind.String())
		}
		var r wml.TableRow
		for _, cell := range row.Children {
			if cell.Kind != KindCell {
				return nil, newMalformed("tree", "", "row cannot contain "+cell.Kind.String())
			}
			elements, err := b.blocks(cell.Children)
			if err != nil {
				return nil, err
			}
			r.Cells = append(r.Cells, wml.TableCell{Elements: elements})
		}
		for len(r.Cells) < cols {
			r.Cells = append(r.Cells, wml.TableCell{})
		}
		t.Rows = append(t.Rows, r)
	}
	return t, nil
}

func (b *treeBuilder) paragraph(n *Node) (*wml.Paragraph, error) {
	p := &wml.Paragraph{Properties: b.paragraphProperties(n.Attrs)}
	for _, c := range n.Children {
		switch c.Kind {
		case KindRun:
			p.Content = append(p.Content, buildRun(c.Text, runProperties(c.Attrs)))
		case KindHyperlink:
			p.Content = append(p.Content, b.hyperlink(c)...)
		case KindImage:
			if run := b.image(c); run != nil {
				p.Content = append(p.Content, run)
			}
		case KindParagraph, KindTable, KindRow, KindCell:
			return nil, newMalformed("tree", "", "paragraph cannot contain "+c.Kind.String())
		default:
			return nil, newMalformed("tree", "", "unknown node kind "+c.Kind.String())
		}
	}
	return p, nil
}

// hyperlink registers an external relationship for the url. Link runs keep
// only bold and the Hyperlink character style. A link without a url is
// written as plain runs.
func (b *treeBuilder) hyperlink(n *Node) []wml.ParagraphContent {
	url := n.Attrs["url"]
	if url == "" {
		var runs []wml.ParagraphContent
		for _, r := range n.Children {
			runs = append(runs, buildRun(r.Text, runProperties(r.Attrs)))
		}
		return runs
	}

	link := &wml.Hyperlink{ID: b.relate(hyperlinkRelationshipType, url, "External")}
	for _, r := range n.Children {
		props := &wml.RunProperties{Style: &wml.Value{Val: "Hyperlink"}}
		if r.Attrs.Bool("bold") {
			props.Bold = wml.On()
		}
		link.Runs = append(link.Runs, *buildRun(r.Text, props))
	}
	return []wml.ParagraphContent{link}
}

// image replays the stored drawing with its picture re-pointed at a new media
// relationship.
func (b *treeBuilder) image(n *Node) *wml.Run {
	id := n.Attrs["r_id"]
	asset, ok := b.images[id]
	if !ok || len(asset.Data) == 0 || n.Attrs["drawing_xml"] == "" {
		err := fmt.Errorf("image %q: %w", id, ErrAssetMissing)
		b.report.Skipped = append(b.report.Skipped, err)
		b.logger.Warn("skipping image", "r_id", id, "error", err)
		return nil
	}

	newID, seen := b.media[id]
	if !seen {
		b.mediaCount++
		mime := firstNonEmpty(asset.MIME, n.Attrs["mime_type"], mimeForPart(asset.Part))
		ext := extensionForMIME(mime)
		name := fmt.Sprintf("media/image%d.%s", b.mediaCount, ext)
		b.addPart("word/"+name, asset.Data, "")
		b.types.RegisterDefault(ext, mime)
		newID = b.relate(imageRelationshipType, name, "")
		b.media[id] = newID
	}

	drawing := wml.NewDrawing(n.Attrs["drawing_xml"]).Rewire(id, newID)
	return &wml.Run{Content: []wml.RunContent{drawing}}
}

// buildRun splits text on tabs and line breaks.
func buildRun(text string, props *wml.RunProperties) *wml.Run {
	r := &wml.Run{Properties: props}
	var seg strings.Builder
	flush := func() {
		if seg.Len() > 0 {
			r.Content = append(r.Content, &wml.Text{Content: seg.String()})
			seg.Reset()
		}
	}
	for _, ch := range text {
		switch ch {
		case '\t':
			flush()
			r.Content = append(r.Content, &wml.Tab{})
		case '\n':
			flush()
			r.Content = append(r.Content, &wml.Break{})
		case '\r':
		default:
			seg.WriteRune(ch)
		}
	}
	flush()
	if len(r.Content) == 0 {
		r.Content = append(r.Content, &wml.Text{})
	}
	return r
}

func runProperties(attrs Attrs) *wml.RunProperties {
	set := withoutDefaults(KindRun, attrs)
	if len(set) == 0 {
		return nil
	}
	props := &wml.RunProperties{}
	if set.Bool("bold") {
		props.Bold = wml.On()
	}
	if set.Bool("italic") {
		props.Italic = wml.On()
	}
	if set.Bool("strikethrough") {
		props.Strike = wml.On()
	}
	if set.Bool("underline") {
		props.Underline = &wml.Value{Val: "single"}
	}
	if name, ok := set["font_name"]; ok && name != "" {
		props.Fonts = &wml.Fonts{ASCII: name, HAnsi: name, CS: name}
	}
	if sz := pointsToUnits(set["font_size"], 2); sz != "" {
		props.Size = &wml.Value{Val: sz}
	}
	if color, ok := set["font_color"]; ok && hexColorPattern.MatchString(color) {
		props.Color = &wml.Value{Val: strings.ToUpper(strings.TrimPrefix(color, "#"))}
	}
	if hl, ok := set["highlight_color"]; ok {
		props.Highlight = &wml.Value{Val: hl}
	}
	if *props == (wml.RunProperties{}) {
		return nil
	}
	return props
}

var jcValues = map[string]string{
	"center":  "center",
	"right":   "right",
	"justify": "both",
}

func (b *treeBuilder) paragraphProperties(attrs Attrs) *wml.ParagraphProperties {
	set := withoutDefaults(KindParagraph, attrs)
	if len(set) == 0 {
		return nil
	}
	props := &wml.ParagraphProperties{}

	if style, ok := set["style"]; ok {
		props.Style = &wml.Value{Val: style}
	}
	if jc, ok := jcValues[set["alignment"]]; ok {
		props.Alignment = &wml.Value{Val: jc}
	}

	spacing := &wml.Spacing{
		Before: pointsToUnits(set["space_before"], 20),
		After:  pointsToUnits(set["space_after"], 20),
	}
	switch rule := attrs.Get(KindParagraph, "line_spacing_rule"); rule {
	case "exact", "atLeast":
		if line := pointsToUnits(set["line_spacing"], 20); line != "" {
			spacing.Line, spacing.LineRule = line, rule
		}
	default:
		if line := pointsToUnits(set["line_spacing"], 240); line != "" {
			spacing.Line, spacing.LineRule = line, "auto"
		}
	}
	if *spacing != (wml.Spacing{}) {
		props.Spacing = spacing
	}

	ind := &wml.Indentation{
		Left:  pointsToUnits(set["left_indent"], 20),
		Right: pointsToUnits(set["right_indent"], 20),
	}
	if first, err := strconv.ParseFloat(set["first_line_indent"], 64); err == nil && first != 0 {
		twips := strconv.Itoa(int(math.Round(math.Abs(first) * 20)))
		if first < 0 {
			ind.Hanging = twips
		} else {
			ind.FirstLine = twips
		}
	}
	if *ind != (wml.Indentation{}) {
		props.Indentation = ind
	}

	if listType := set["list_type"]; listType != "" {
		level, _ := strconv.Atoi(attrs.Get(KindParagraph, "list_level"))
		if numID, ok := b.numID(listType, level); ok {
			props.Numbering = &wml.NumberingProperties{
				Level: &wml.Value{Val: strconv.Itoa(level)},
				NumID: &wml.Value{Val: numID},
			}
		}
	}

	color := attrs.Get(KindParagraph, "shading_color")
	fill := attrs.Get(KindParagraph, "shading_fill")
	if color != "auto" || fill != "auto" {
		props.Shading = &wml.Shading{Val: "clear", Color: color, Fill: fill}
	}

	if style := attrs.Get(KindParagraph, "bottom_border_style"); style != "none" {
		props.Borders = &wml.ParagraphBorders{Bottom: &wml.Border{
			Val:   style,
			Size:  firstNonEmpty(pointsToUnits(set["bottom_border_size"], 8), "4"),
			Space: "1",
			Color: attrs.Get(KindParagraph, "bottom_border_color"),
		}}
	}

	if *props == (wml.ParagraphProperties{}) {
		return nil
	}
	return props
}

// numID picks the numbering definition for a list type, falling back to the
// builder's own bullet and decimal lists when there is no base numbering.
func (b *treeBuilder) numID(listType string, level int) (string, bool) {
	if b.numbering != nil {
		return b.numbering.FindNum(listType, level)
	}
	b.defaultNumbers = true
	if listType == "number" {
		return defaultNumberNumID, true
	}
	return defaultBulletNumID, true
}

func (b *treeBuilder) write(documentXML []byte) ([]byte, error) {
	rootRels, err := marshalPart(&Relationships{
		Namespace:    relationshipsNS,
		Relationship: []Relationship{{ID: "rId1", Type: officeDocumentRel, Target: documentPart}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal package relationships: %w", err)
	}
	docRels, err := marshalPart(&Relationships{Namespace: relationshipsNS, Relationship: b.rels})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal relationships: %w", err)
	}
	types, err := marshalPart(b.types)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal content types: %w", err)
	}

	buf := new(bytes.Buffer)
	w := zip.NewWriter(buf)
	entries := []struct {
		name string
		data []byte
	}{
		{contentTypesPart, types},
		{packageRelsPart, rootRels},
		{documentPart, documentXML},
		{documentRelsPart, docRels},
	}
	for _, name := range b.partOrder {
		entries = append(entries, struct {
			name string
			data []byte
		}{name, b.parts[name]})
	}

	for _, entry := range entries {
		fw, err := w.Create(entry.name)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", entry.name, err)
		}
		if _, err := fw.Write(entry.data); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", entry.name, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to close zip writer: %w", err)
	}
	return buf.Bytes(), nil
}
