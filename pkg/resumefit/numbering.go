package resumefit

import (
	"encoding/xml"
	"fmt"
	"strconv"
)

const numberingPart = "word/numbering.xml"

// Numbering is the subset of word/numbering.xml needed to tell bullets from
// numbered lists.
type Numbering struct {
	Abstract []abstractNum `xml:"abstractNum"`
	Nums     []num         `xml:"num"`
}

type abstractNum struct {
	ID     string     `xml:"abstractNumId,attr"`
	Levels []numLevel `xml:"lvl"`
}

type numLevel struct {
	Level  string    `xml:"ilvl,attr"`
	Format *valueTag `xml:"numFmt"`
}

type num struct {
	ID       string    `xml:"numId,attr"`
	Abstract *valueTag `xml:"abstractNumId"`
}

type valueTag struct {
	Val string `xml:"val,attr"`
}

// ParseNumbering reads a numbering part.
func ParseNumbering(data []byte) (*Numbering, error) {
	var n Numbering
	if err := xml.Unmarshal(data, &n); err != nil {
		return nil, &MalformedError{Part: numberingPart, Reason: "unparseable numbering", Cause: err}
	}
	return &n, nil
}

// ListType returns "bullet" or "number" for a numbering reference, or "none"
// when the reference cannot be resolved. A nil Numbering resolves every
// reference to "bullet", the common case for resumes.
func (n *Numbering) ListType(numID string, level int) string {
	if numID == "" || numID == "0" {
		return "none"
	}
	if n == nil {
		return "bullet"
	}
	abstractID := ""
	for _, nm := range n.Nums {
		if nm.ID == numID && nm.Abstract != nil {
			abstractID = nm.Abstract.Val
			break
		}
	}
	for _, an := range n.Abstract {
		if an.ID != abstractID {
			continue
		}
		for _, lvl := range an.Levels {
			if lvl.Level != strconv.Itoa(level) || lvl.Format == nil {
				continue
			}
			if lvl.Format.Val == "bullet" {
				return "bullet"
			}
			if lvl.Format.Val == "none" {
				return "none"
			}
			return "number"
		}
	}
	return "none"
}

// FindNum returns the first num id whose format at level matches listType.
func (n *Numbering) FindNum(listType string, level int) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, nm := range n.Nums {
		if n.ListType(nm.ID, level) == listType {
			return nm.ID, true
		}
	}
	return "", false
}

// Default numbering ids used when the output carries no numbering of its own.
const (
	defaultBulletNumID = "1"
	defaultNumberNumID = "2"
)

// defaultNumberingXML defines one bullet list and one decimal list with nine
// levels each.
func defaultNumberingXML() []byte {
	levels := func(bullet bool) string {
		out := ""
		for i := 0; i < 9; i++ {
			indent := 720 * (i + 1)
			if bullet {
				out += fmt.Sprintf(`<w:lvl w:ilvl="%d"><w:start w:val="1"/><w:numFmt w:val="bullet"/><w:lvlText w:val="•"/><w:lvlJc w:val="left"/><w:pPr><w:ind w:left="%d" w:hanging="360"/></w:pPr></w:lvl>`, i, indent)
				continue
			}
			out += fmt.Sprintf(`<w:lvl w:ilvl="%d"><w:start w:val="1"/><w:numFmt w:val="decimal"/><w:lvlText w:val="%%%d."/><w:lvlJc w:val="left"/><w:pPr><w:ind w:left="%d" w:hanging="360"/></w:pPr></w:lvl>`, i, i+1, indent)
		}
		return out
	}
	return []byte(xmlDeclaration +
		`<w:numbering xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">` +
		`<w:abstractNum w:abstractNumId="0">` + levels(true) + `</w:abstractNum>` +
		`<w:abstractNum w:abstractNumId="1">` + levels(false) + `</w:abstractNum>` +
		`<w:num w:numId="` + defaultBulletNumID + `"><w:abstractNumId w:val="0"/></w:num>` +
		`<w:num w:numId="` + defaultNumberNumID + `"><w:abstractNumId w:val="1"/></w:num>` +
		`</w:numbering>`)
}
