package resumefit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validAnalysis = `"analysis": {"strong_points": "Clear layout", "weak_points": "No metrics", "changes_made": "Added numbers"}`

func TestParseEnvelope(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		want     []Patch
		analysis Analysis
		wantErr  bool
	}{
		{
			name: "plain JSON",
			raw:  `{"optimized_texts_with_xpaths": [{"xpath": "/w:document[1]/w:body[1]/w:p[1]/w:r[1]/w:t[1]", "optimized_text": "Jane Q. Doe"}], ` + validAnalysis + `}`,
			want: []Patch{{"/w:document[1]/w:body[1]/w:p[1]/w:r[1]/w:t[1]", "Jane Q. Doe"}},
			analysis: Analysis{
				StrongPoints: "Clear layout",
				WeakPoints:   "No metrics",
				ChangesMade:  "Added numbers",
			},
		},
		{
			name: "fenced JSON",
			raw:  "```json\n{\"optimized_texts_with_xpaths\": [], " + validAnalysis + "}\n```",
			want: []Patch{},
			analysis: Analysis{
				StrongPoints: "Clear layout",
				WeakPoints:   "No metrics",
				ChangesMade:  "Added numbers",
			},
		},
		{
			name: "analysis as lists",
			raw:  `{"optimized_texts_with_xpaths": [], "analysis": {"strong_points": ["a", "b"], "weak_points": [], "changes_made": "c"}}`,
			want: []Patch{},
			analysis: Analysis{
				StrongPoints: "a\nb",
				WeakPoints:   "",
				ChangesMade:  "c",
			},
		},
		{
			name: "text is NFC normalized and address trimmed",
			raw:  `{"optimized_texts_with_xpaths": [{"xpath": " /a[1] ", "optimized_text": "Rene\u0301"}], ` + validAnalysis + `}`,
			want: []Patch{{"/a[1]", "Ren\u00e9"}},
			analysis: Analysis{
				StrongPoints: "Clear layout",
				WeakPoints:   "No metrics",
				ChangesMade:  "Added numbers",
			},
		},
		{name: "empty", raw: "  ", wantErr: true},
		{name: "not JSON", raw: "Sure! Here is your resume.", wantErr: true},
		{name: "unknown top-level key", raw: `{"optimized_texts_with_xpaths": [], "notes": "x", ` + validAnalysis + `}`, wantErr: true},
		{name: "unknown analysis key", raw: `{"optimized_texts_with_xpaths": [], "analysis": {"strong_points": "", "weak_points": "", "changes_made": "", "score": 9}}`, wantErr: true},
		{name: "missing texts", raw: `{` + validAnalysis + `}`, wantErr: true},
		{name: "missing analysis", raw: `{"optimized_texts_with_xpaths": []}`, wantErr: true},
		{name: "analysis lacks a key", raw: `{"optimized_texts_with_xpaths": [], "analysis": {"strong_points": "", "weak_points": ""}}`, wantErr: true},
		{name: "analysis value of wrong type", raw: `{"optimized_texts_with_xpaths": [], "analysis": {"strong_points": 3, "weak_points": "", "changes_made": ""}}`, wantErr: true},
		{name: "entry without xpath", raw: `{"optimized_texts_with_xpaths": [{"optimized_text": "x"}], ` + validAnalysis + `}`, wantErr: true},
		{name: "entry without text", raw: `{"optimized_texts_with_xpaths": [{"xpath": "/a[1]"}], ` + validAnalysis + `}`, wantErr: true},
		{name: "trailing data", raw: `{"optimized_texts_with_xpaths": [], ` + validAnalysis + `} {}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			patches, analysis, err := ParseEnvelope(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsInvalidResponse(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, patches)
			assert.Equal(t, tt.analysis, analysis)
		})
	}
}

func markupResponse(analysis, markup string) string {
	return "Here you go.\n" + jsonStart + "\n" + analysis + "\n" + jsonEnd + "\n" + xmlStart + "\n" + markup + "\n" + xmlEnd
}

func TestParseMarkup(t *testing.T) {
	analysis := `{"strong_points": "s", "weak_points": "w", "changes_made": "c"}`
	tree := `<resume><paragraph><run bold="true"><text>Café owner</text></run></paragraph></resume>`

	t.Run("valid", func(t *testing.T) {
		got, a, err := ParseMarkup(markupResponse(analysis, tree))
		require.NoError(t, err)
		assert.Equal(t, Analysis{StrongPoints: "s", WeakPoints: "w", ChangesMade: "c"}, a)
		require.Len(t, got.Nodes, 1)
		assert.Equal(t, "true", got.Nodes[0].Children[0].Attrs["bold"])
	})

	t.Run("fenced blocks", func(t *testing.T) {
		raw := markupResponse("```json\n"+analysis+"\n```", "```xml\n"+tree+"\n```")
		_, _, err := ParseMarkup(raw)
		require.NoError(t, err)
	})

	t.Run("text is NFC normalized", func(t *testing.T) {
		composed := `<resume><paragraph><run><text>Cafe` + "\u0301" + `</text></run></paragraph></resume>`
		got, _, err := ParseMarkup(markupResponse(analysis, composed))
		require.NoError(t, err)
		assert.Equal(t, "Caf\u00e9", got.Nodes[0].Children[0].Text)
	})

	failures := []struct {
		name string
		raw  string
	}{
		{"missing analysis block", xmlStart + tree + xmlEnd},
		{"missing markup block", jsonStart + analysis + jsonEnd},
		{"unterminated markup block", jsonStart + analysis + jsonEnd + xmlStart + tree},
		{"analysis not JSON", markupResponse("strong: yes", tree)},
		{"analysis lacks a key", markupResponse(`{"strong_points": "s"}`, tree)},
		{"no resume tag", markupResponse(analysis, `<paragraph/>`)},
		{"unknown tag", markupResponse(analysis, `<resume><section/></resume>`)},
		{"text outside run", markupResponse(analysis, `<resume><paragraph><text>x</text></paragraph></resume>`)},
	}
	for _, tt := range failures {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ParseMarkup(tt.raw)
			require.Error(t, err)
			assert.True(t, IsInvalidResponse(err))
		})
	}
}

func TestMergeTree(t *testing.T) {
	extracted, _ := readTree(t, resumeDocx(t))

	t.Run("pins image attributes", func(t *testing.T) {
		markup, err := MarshalTree(extracted)
		require.NoError(t, err)
		returned, err := UnmarshalTree(markup)
		require.NoError(t, err)

		image := returned.Nodes[3].Children[0]
		require.Equal(t, KindImage, image.Kind)
		image.Attrs["r_id"] = "rId99"
		image.Attrs["drawing_xml"] = "<w:drawing/>"
		returned.Nodes[1].Children[1].Text = "Principal Engineer"

		merged, err := MergeTree(extracted, returned)
		require.NoError(t, err)
		assert.Equal(t, "rId4", merged.Nodes[3].Children[0].Attrs["r_id"])
		assert.Equal(t, extracted.Nodes[3].Children[0].Attrs["drawing_xml"], merged.Nodes[3].Children[0].Attrs["drawing_xml"])
		assert.Equal(t, "Principal Engineer", merged.Nodes[1].Children[1].Text)
	})

	t.Run("rejects a different shape", func(t *testing.T) {
		returned := &Tree{Nodes: []*Node{NewNode(KindParagraph)}}
		_, err := MergeTree(extracted, returned)
		require.Error(t, err)
		assert.True(t, IsInvalidResponse(err))
	})

	t.Run("rejects a dropped image", func(t *testing.T) {
		markup, err := MarshalTree(extracted)
		require.NoError(t, err)
		returned, err := UnmarshalTree(markup)
		require.NoError(t, err)
		returned.Nodes[3].Children = nil

		_, err = MergeTree(extracted, returned)
		assert.True(t, IsInvalidResponse(err))
	})
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFences("  {\"a\":1}  "))
	assert.Equal(t, `<resume/>`, stripFences("```<resume/>```"))
}
