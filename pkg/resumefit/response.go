package resumefit

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Sentinels delimiting the blocks of a markup response.
const (
	jsonStart = "<GEMINI_JSON_START>"
	jsonEnd   = "<GEMINI_JSON_END>"
	xmlStart  = "<GEMINI_XML_START>"
	xmlEnd    = "<GEMINI_XML_END>"
)

// Analysis is the rewriter's assessment of the document.
type Analysis struct {
	StrongPoints string `json:"strong_points"`
	WeakPoints   string `json:"weak_points"`
	ChangesMade  string `json:"changes_made"`
}

// analysisBlock is the wire form of Analysis. Each key must be present and
// may be a string or a list of strings.
type analysisBlock struct {
	StrongPoints *flexText `json:"strong_points"`
	WeakPoints   *flexText `json:"weak_points"`
	ChangesMade  *flexText `json:"changes_made"`
}

func (a *analysisBlock) analysis() (Analysis, error) {
	var missing []string
	for _, f := range []struct {
		name string
		v    *flexText
	}{{"strong_points", a.StrongPoints}, {"weak_points", a.WeakPoints}, {"changes_made", a.ChangesMade}} {
		if f.v == nil {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return Analysis{}, invalidResponse("analysis lacks "+strings.Join(missing, ", "), nil)
	}
	return Analysis{
		StrongPoints: string(*a.StrongPoints),
		WeakPoints:   string(*a.WeakPoints),
		ChangesMade:  string(*a.ChangesMade),
	}, nil
}

type flexText string

func (f *flexText) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexText(s)
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return errors.New("expected a string or a list of strings")
	}
	*f = flexText(strings.Join(list, "\n"))
	return nil
}

// envelope is the JSON response shape used with addressed text.
type envelope struct {
	Texts    *[]envelopeText `json:"optimized_texts_with_xpaths"`
	Analysis *analysisBlock  `json:"analysis"`
}

type envelopeText struct {
	XPath *string `json:"xpath"`
	Text  *string `json:"optimized_text"`
}

// ParseEnvelope decodes a JSON envelope response into a patch set. Markdown
// fences around the JSON are tolerated; unknown keys are not.
func ParseEnvelope(raw string) ([]Patch, Analysis, error) {
	body := stripFences(raw)
	if body == "" {
		return nil, Analysis{}, invalidResponse("empty response", nil)
	}

	d := json.NewDecoder(strings.NewReader(body))
	d.DisallowUnknownFields()
	var env envelope
	if err := d.Decode(&env); err != nil {
		return nil, Analysis{}, invalidResponse("unparseable JSON envelope", err)
	}
	if d.More() {
		return nil, Analysis{}, invalidResponse("trailing data after JSON envelope", nil)
	}
	if env.Texts == nil {
		return nil, Analysis{}, invalidResponse("missing optimized_texts_with_xpaths", nil)
	}
	if env.Analysis == nil {
		return nil, Analysis{}, invalidResponse("missing analysis", nil)
	}
	analysis, err := env.Analysis.analysis()
	if err != nil {
		return nil, Analysis{}, err
	}

	patches := make([]Patch, 0, len(*env.Texts))
	for i, t := range *env.Texts {
		if t.XPath == nil || strings.TrimSpace(*t.XPath) == "" {
			return nil, Analysis{}, invalidResponse(fmt.Sprintf("entry %d has no xpath", i), nil)
		}
		if t.Text == nil {
			return nil, Analysis{}, invalidResponse(fmt.Sprintf("entry %d has no optimized_text", i), nil)
		}
		patches = append(patches, Patch{Address: strings.TrimSpace(*t.XPath), Text: norm.NFC.String(*t.Text)})
	}
	return patches, analysis, nil
}

// ParseMarkup decodes a sentinel-delimited response: a JSON analysis block
// and a markup block holding the rewritten <resume> tree.
func ParseMarkup(raw string) (*Tree, Analysis, error) {
	jsonBlock, ok := between(raw, jsonStart, jsonEnd)
	if !ok {
		return nil, Analysis{}, invalidResponse("missing analysis block", nil)
	}
	xmlBlock, ok := between(raw, xmlStart, xmlEnd)
	if !ok {
		return nil, Analysis{}, invalidResponse("missing markup block", nil)
	}

	d := json.NewDecoder(strings.NewReader(stripFences(jsonBlock)))
	d.DisallowUnknownFields()
	var block analysisBlock
	if err := d.Decode(&block); err != nil {
		return nil, Analysis{}, invalidResponse("unparseable analysis block", err)
	}
	analysis, err := block.analysis()
	if err != nil {
		return nil, Analysis{}, err
	}

	markup := stripFences(xmlBlock)
	start := strings.Index(markup, "<"+rootTag+">")
	end := strings.LastIndex(markup, "</"+rootTag+">")
	if start < 0 || end < start {
		return nil, Analysis{}, invalidResponse("no <resume> tag found in markup block", nil)
	}
	tree, err := UnmarshalTree([]byte(markup[start : end+len("</"+rootTag+">")]))
	if err != nil {
		return nil, Analysis{}, invalidResponse("markup block rejected", err)
	}
	_ = tree.Walk(func(n *Node, _ int) error {
		n.Text = norm.NFC.String(n.Text)
		return nil
	})
	return tree, analysis, nil
}

// MergeTree checks that a returned tree has the shape of the extracted one
// and pins what the rewriter may not change: image identity and descriptor.
func MergeTree(extracted, returned *Tree) (*Tree, error) {
	if !sameShape(extracted.Nodes, returned.Nodes) {
		return nil, invalidResponse("returned tree does not match the extracted structure", nil)
	}
	var pin func(orig, got []*Node)
	pin = func(orig, got []*Node) {
		for i := range orig {
			if orig[i].Kind == KindImage {
				for _, key := range AttrNames(KindImage) {
					got[i].Attrs[key] = orig[i].Attrs[key]
				}
			}
			pin(orig[i].Children, got[i].Children)
		}
	}
	pin(extracted.Nodes, returned.Nodes)
	return returned, nil
}

func between(s, startMarker, endMarker string) (string, bool) {
	i := strings.Index(s, startMarker)
	if i < 0 {
		return "", false
	}
	rest := s[i+len(startMarker):]
	j := strings.Index(rest, endMarker)
	if j < 0 {
		return "", false
	}
	return rest[:j], true
}

// stripFences removes a surrounding markdown code fence such as ```json.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
