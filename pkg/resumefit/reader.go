package resumefit

import (
	"bytes"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/benjaminschreck/go-resumefit/pkg/resumefit/wml"
)

// structureReader turns the primary part into a style-annotated tree. One
// reader serves one extraction.
type structureReader struct {
	pkg       *Package
	rels      map[string]Relationship
	types     *ContentTypes
	numbering *Numbering
	images    ImageTable
	logger    *slog.Logger
}

// ReadTree extracts the style-annotated tree and the image side-table from a
// package. Markup that cannot be interpreted aborts the extraction.
func ReadTree(pkg *Package) (*Tree, ImageTable, error) {
	data, err := pkg.DocumentXML()
	if err != nil {
		return nil, nil, err
	}
	doc, err := wml.ParseDocument(bytes.NewReader(data))
	if err != nil {
		return nil, nil, &MalformedError{Part: documentPart, Reason: "unparseable document", Cause: err}
	}

	sr := &structureReader{pkg: pkg, images: make(ImageTable), logger: slog.Default()}
	if err := sr.load(); err != nil {
		return nil, nil, err
	}

	nodes, err := sr.blocks(doc.Body.Elements, "/body")
	if err != nil {
		return nil, nil, err
	}
	return &Tree{Nodes: nodes}, sr.images, nil
}

func (sr *structureReader) load() error {
	rels, err := sr.pkg.Relationships(documentPart)
	if err != nil {
		return err
	}
	sr.rels = make(map[string]Relationship, len(rels))
	for _, rel := range rels {
		sr.rels[rel.ID] = rel
	}

	if sr.types, err = sr.pkg.ContentTypes(); err != nil {
		return err
	}

	if sr.pkg.Has(numberingPart) {
		data, err := sr.pkg.Part(numberingPart)
		if err != nil {
			return err
		}
		if sr.numbering, err = ParseNumbering(data); err != nil {
			return err
		}
	}
	return nil
}

func (sr *structureReader) blocks(elements []wml.BodyElement, at string) ([]*Node, error) {
	var nodes []*Node
	var paras, tables int
	for _, elem := range elements {
		switch el := elem.(type) {
		case *wml.Paragraph:
			paras++
			n, err := sr.paragraph(el, fmt.Sprintf("%s/p[%d]", at, paras))
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, n)
		case *wml.Table:
			tables++
			n, err := sr.table(el, fmt.Sprintf("%s/tbl[%d]", at, tables))
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, n)
		default:
			return nil, newMalformed(documentPart, at, fmt.Sprintf("unsupported block %T", elem))
		}
	}
	return nodes, nil
}

func (sr *structureReader) table(t *wml.Table, at string) (*Node, error) {
	table := NewNode(KindTable)
	for i, row := range t.Rows {
		rowNode := NewNode(KindRow)
		for j, cell := range row.Cells {
			children, err := sr.blocks(cell.Elements, fmt.Sprintf("%s/tr[%d]/tc[%d]", at, i+1, j+1))
			if err != nil {
				return nil, err
			}
			rowNode.Append(NewNode(KindCell).Append(children...))
		}
		table.Append(rowNode)
	}
	return table, nil
}

func (sr *structureReader) paragraph(p *wml.Paragraph, at string) (*Node, error) {
	node := &Node{Kind: KindParagraph, Attrs: sr.paragraphAttrs(p.Properties)}
	runs := 0
	for _, content := range p.Content {
		switch c := content.(type) {
		case *wml.Run:
			runs++
			children, err := sr.run(c, fmt.Sprintf("%s/r[%d]", at, runs))
			if err != nil {
				return nil, err
			}
			node.Append(children...)
		case *wml.Hyperlink:
			link := NewNode(KindHyperlink)
			if rel, ok := sr.rels[c.ID]; ok && rel.External() {
				if err := validateURL(rel.Target); err == nil {
					link.Attrs["url"] = rel.Target
				} else {
					sr.logger.Warn("hyperlink target dropped", "path", at, "error", err)
				}
			}
			// pictures inside link runs follow the link as image nodes
			var images []*Node
			for i := range c.Runs {
				r := &c.Runs[i]
				link.Append(&Node{Kind: KindRun, Attrs: runAttrs(r.Properties), Text: r.GetText()})
				for _, d := range r.Drawings() {
					img, err := sr.image(d, fmt.Sprintf("%s/hyperlink/r[%d]", at, i+1))
					if err != nil {
						return nil, err
					}
					if img != nil {
						images = append(images, img)
					}
				}
			}
			node.Append(link)
			node.Append(images...)
		}
	}
	return node, nil
}

// run yields a run node for the text of r followed by one image node per
// picture. A run that only holds pictures yields no run node.
func (sr *structureReader) run(r *wml.Run, at string) ([]*Node, error) {
	drawings := r.Drawings()
	text := r.GetText()

	var nodes []*Node
	if len(drawings) == 0 || text != "" {
		nodes = append(nodes, &Node{Kind: KindRun, Attrs: runAttrs(r.Properties), Text: text})
	}
	for _, d := range drawings {
		img, err := sr.image(d, at)
		if err != nil {
			return nil, err
		}
		if img != nil {
			nodes = append(nodes, img)
		}
	}
	return nodes, nil
}

// image stores the picture payload in the side-table. Drawings without an
// embedded picture (charts, shapes, linked images) are not represented.
func (sr *structureReader) image(d *wml.Drawing, at string) (*Node, error) {
	id := d.EmbedID()
	if id == "" {
		sr.logger.Debug("drawing without embedded picture skipped", "path", at)
		return nil, nil
	}
	rel, ok := sr.rels[id]
	if !ok || rel.External() {
		return nil, newMalformed(documentPart, at, "drawing references unknown relationship "+id)
	}

	part := ResolveTarget(documentPart, rel.Target)
	if _, seen := sr.images[id]; !seen {
		data, err := sr.pkg.Part(part)
		if err != nil {
			return nil, &MalformedError{Part: documentPart, Path: at, Reason: "image part missing", Cause: err}
		}
		sr.images[id] = ImageAsset{Data: data, MIME: sr.types.TypeOf(part), Part: part}
	}

	node := NewNode(KindImage)
	node.Attrs["r_id"] = id
	node.Attrs["mime_type"] = sr.images[id].MIME
	node.Attrs["drawing_xml"] = string(d.Raw.Content)
	return node, nil
}

func runAttrs(props *wml.RunProperties) Attrs {
	attrs := Defaults(KindRun)
	if props == nil {
		return attrs
	}
	attrs["bold"] = strconv.FormatBool(props.Bold.Enabled())
	attrs["italic"] = strconv.FormatBool(props.Italic.Enabled())
	attrs["strikethrough"] = strconv.FormatBool(props.Strike.Enabled())
	if props.Underline != nil && props.Underline.Val != "none" {
		attrs["underline"] = "true"
	}
	if name := props.Fonts.Name(); name != "" {
		attrs["font_name"] = name
	}
	if props.Size != nil {
		attrs["font_size"] = halfPoints(props.Size.Val)
	}
	if props.Color != nil && wordColorPattern.MatchString(props.Color.Val) && props.Color.Val != "auto" {
		attrs["font_color"] = "#" + strings.ToUpper(props.Color.Val)
	}
	if props.Highlight != nil {
		if v, err := findHighlight(props.Highlight.Val); err == nil {
			attrs["highlight_color"] = v
		}
	}
	return attrs
}

func findHighlight(val string) (string, error) {
	spec, _ := findSpec(schema[KindRun], "highlight_color")
	return spec.check(val)
}

var alignments = map[string]string{
	"left":       "left",
	"start":      "left",
	"center":     "center",
	"right":      "right",
	"end":        "right",
	"both":       "justify",
	"distribute": "justify",
}

func (sr *structureReader) paragraphAttrs(props *wml.ParagraphProperties) Attrs {
	attrs := Defaults(KindParagraph)
	if props == nil {
		return attrs
	}
	if props.Alignment != nil {
		if a, ok := alignments[props.Alignment.Val]; ok {
			attrs["alignment"] = a
		}
	}
	if props.Style != nil && props.Style.Val != "" {
		attrs["style"] = props.Style.Val
	}
	if s := props.Spacing; s != nil {
		attrs["space_before"] = twipsToPoints(s.Before)
		attrs["space_after"] = twipsToPoints(s.After)
		switch s.LineRule {
		case "exact", "atLeast":
			attrs["line_spacing_rule"] = s.LineRule
			attrs["line_spacing"] = twipsToPoints(s.Line)
		default:
			if n, err := strconv.ParseFloat(s.Line, 64); err == nil && n > 0 {
				attrs["line_spacing"] = formatNumber(n / 240)
			}
		}
	}
	if ind := props.Indentation; ind != nil {
		attrs["left_indent"] = twipsToPoints(firstNonEmpty(ind.Left, ind.Start))
		attrs["right_indent"] = twipsToPoints(firstNonEmpty(ind.Right, ind.End))
		if ind.Hanging != "" {
			if hang := twipsToPoints(ind.Hanging); hang != "0" {
				attrs["first_line_indent"] = "-" + hang
			}
		} else {
			attrs["first_line_indent"] = twipsToPoints(ind.FirstLine)
		}
	}
	if n := props.Numbering; n != nil && n.NumID != nil {
		level := 0
		if n.Level != nil {
			level, _ = strconv.Atoi(n.Level.Val)
		}
		if level < 0 || level > 8 {
			level = 0
		}
		attrs["list_type"] = sr.numbering.ListType(n.NumID.Val, level)
		if attrs["list_type"] != "none" {
			attrs["list_level"] = strconv.Itoa(level)
		}
	}
	if sh := props.Shading; sh != nil {
		attrs["shading_color"] = wordColor(sh.Color)
		attrs["shading_fill"] = wordColor(sh.Fill)
	}
	if b := props.Borders; b != nil && b.Bottom != nil && b.Bottom.Val != "" && b.Bottom.Val != "nil" {
		attrs["bottom_border_style"] = b.Bottom.Val
		attrs["bottom_border_size"] = eighthsToPoints(b.Bottom.Size)
		attrs["bottom_border_color"] = wordColor(b.Bottom.Color)
	}
	return attrs
}

func wordColor(val string) string {
	if val == "" || !wordColorPattern.MatchString(val) {
		return "auto"
	}
	if val == "auto" {
		return val
	}
	return strings.ToUpper(val)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
