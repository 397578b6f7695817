package resumefit

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
)

var markupPrompt = template.Must(template.New("markup").Parse(`You are an expert resume optimization AI. Optimize the provided resume content to align with the given job role and description: incorporate relevant keywords, rephrase accomplishments to be quantifiable and impactful, and highlight skills that match the job requirements.

### STRICT OUTPUT FORMATTING INSTRUCTIONS

1. Tag and attribute preservation
* Do not add, remove, reorder or modify any tag. The allowed tags are <resume>, <paragraph>, <run>, <text>, <hyperlink>, <image>, <table_grid>, <row> and <cell>.
* Preserve every attribute on every element exactly as given.
* For <image>, keep r_id, mime_type and drawing_xml untouched.

2. Allowed modification
* The ONLY allowed change is the text inside the <text><![CDATA[...]]></text> section of a <run>.

3. Response structure
* Return ONLY two blocks, without conversational text or markdown fences.
* The JSON block starts with {{.JSONStart}} and ends with {{.JSONEnd}}. It holds one object:
  {"strong_points": "...", "weak_points": "...", "changes_made": "..."}
* The markup block starts with {{.XMLStart}} and ends with {{.XMLEnd}}. It holds the full markup from <resume> to </resume>.

---
Job Role:
{{.Role}}

---
Job Description:
{{.Description}}

---
Original Resume Content (markup to be optimized):
{{.Payload}}
`))

var envelopePrompt = template.Must(template.New("envelope").Parse(`You are an expert resume optimization AI. Optimize the provided resume text fragments to align with the given job role and description: incorporate relevant keywords, rephrase accomplishments to be quantifiable and impactful, and highlight skills that match the job requirements.

Each fragment is identified by an xpath. Fragments are consecutive pieces of the same document; a sentence may span several of them.

### STRICT OUTPUT FORMATTING INSTRUCTIONS
* Return ONLY one JSON object, without conversational text or markdown fences:
  {
    "optimized_texts_with_xpaths": [{"xpath": "...", "optimized_text": "..."}],
    "analysis": {"strong_points": "...", "weak_points": "...", "changes_made": "..."}
  }
* Use only xpaths from the input. Never invent, merge or split xpaths.
* Omit fragments you do not change. Keep leading and trailing spaces of a fragment when they separate words.

---
Job Role:
{{.Role}}

---
Job Description:
{{.Description}}

---
Original Resume Fragments (JSON):
{{.Payload}}
`))

type promptData struct {
	RewriteRequest
	JSONStart, JSONEnd, XMLStart, XMLEnd string
}

// BuildPrompt renders the rewriter prompt for a request.
func BuildPrompt(req RewriteRequest) (string, error) {
	tmpl := envelopePrompt
	if req.Mode == ModeTree {
		tmpl = markupPrompt
	}
	var sb strings.Builder
	err := tmpl.Execute(&sb, promptData{
		RewriteRequest: req,
		JSONStart:      jsonStart,
		JSONEnd:        jsonEnd,
		XMLStart:       xmlStart,
		XMLEnd:         xmlEnd,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render prompt: %w", err)
	}
	return sb.String(), nil
}

// envelopePayload lists the non-blank entries of an index as the JSON the
// rewriter receives.
func envelopePayload(idx *Index) (string, error) {
	entries := make([]Entry, 0, len(idx.Entries))
	for _, e := range idx.Entries {
		if strings.TrimSpace(e.Text) != "" {
			entries = append(entries, e)
		}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
