package resumefit

import (
	"fmt"
	"maps"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// Attrs maps style attribute names to their serialized values.
type Attrs map[string]string

// Get returns the value of key, falling back to the documented default.
func (a Attrs) Get(kind Kind, key string) string {
	if v, ok := a[key]; ok {
		return v
	}
	for _, spec := range schema[kind] {
		if spec.name == key {
			return spec.def
		}
	}
	return ""
}

// Bool reports whether a boolean attribute is "true".
func (a Attrs) Bool(key string) bool { return a[key] == "true" }

// Float parses a numeric attribute; invalid values read as zero.
func (a Attrs) Float(key string) float64 {
	f, _ := strconv.ParseFloat(a[key], 64)
	return f
}

type attrKind uint8

const (
	attrBool attrKind = iota
	attrNumber
	attrSigned
	attrHexColor  // "#RRGGBB"
	attrWordColor // "RRGGBB" or "auto"
	attrName
	attrEnum
	attrURL
	attrMarkup
	attrLevel
)

type attrSpec struct {
	name   string
	def    string
	kind   attrKind
	values []string
}

// schema lists every attribute of every kind with its default, in
// serialization order.
var schema = map[Kind][]attrSpec{
	KindRun: {
		{name: "bold", def: "false", kind: attrBool},
		{name: "italic", def: "false", kind: attrBool},
		{name: "underline", def: "false", kind: attrBool},
		{name: "strikethrough", def: "false", kind: attrBool},
		{name: "font_name", def: "Unknown", kind: attrName},
		{name: "font_size", def: "0", kind: attrNumber},
		{name: "font_color", def: "#000000", kind: attrHexColor},
		{name: "highlight_color", def: "none", kind: attrEnum, values: highlightColors},
	},
	KindParagraph: {
		{name: "alignment", def: "left", kind: attrEnum, values: []string{"left", "center", "right", "justify"}},
		{name: "style", def: "Normal", kind: attrName},
		{name: "line_spacing", def: "0", kind: attrNumber},
		{name: "line_spacing_rule", def: "auto", kind: attrEnum, values: []string{"auto", "exact", "atLeast"}},
		{name: "space_before", def: "0", kind: attrNumber},
		{name: "space_after", def: "0", kind: attrNumber},
		{name: "left_indent", def: "0", kind: attrNumber},
		{name: "right_indent", def: "0", kind: attrNumber},
		{name: "first_line_indent", def: "0", kind: attrSigned},
		{name: "list_type", def: "none", kind: attrEnum, values: []string{"none", "bullet", "number"}},
		{name: "list_level", def: "0", kind: attrLevel},
		{name: "shading_color", def: "auto", kind: attrWordColor},
		{name: "shading_fill", def: "auto", kind: attrWordColor},
		{name: "bottom_border_style", def: "none", kind: attrName},
		{name: "bottom_border_size", def: "0", kind: attrNumber},
		{name: "bottom_border_color", def: "auto", kind: attrWordColor},
	},
	KindHyperlink: {
		{name: "url", def: "", kind: attrURL},
	},
	KindImage: {
		{name: "r_id", def: "", kind: attrName},
		{name: "mime_type", def: "", kind: attrName},
		{name: "drawing_xml", def: "", kind: attrMarkup},
	},
	KindTable: nil,
	KindRow:   nil,
	KindCell:  nil,
}

var highlightColors = []string{
	"none", "black", "blue", "cyan", "darkBlue", "darkCyan", "darkGray", "darkGreen",
	"darkMagenta", "darkRed", "darkYellow", "green", "lightGray", "magenta", "red",
	"white", "yellow",
}

var (
	hexColorPattern  = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)
	wordColorPattern = regexp.MustCompile(`^(auto|[0-9A-Fa-f]{6})$`)
)

// Defaults returns a fresh map holding every attribute of kind at its
// documented default.
func Defaults(kind Kind) Attrs {
	specs := schema[kind]
	attrs := make(Attrs, len(specs))
	for _, spec := range specs {
		attrs[spec.name] = spec.def
	}
	return attrs
}

// AttrNames returns the attribute names of kind in serialization order.
func AttrNames(kind Kind) []string {
	names := make([]string, 0, len(schema[kind]))
	for _, spec := range schema[kind] {
		names = append(names, spec.name)
	}
	return names
}

// NormalizeAttrs validates in against the schema of kind and returns a
// complete map: missing keys take their default. Unknown names and values of
// the wrong type are rejected.
func NormalizeAttrs(kind Kind, in Attrs) (Attrs, error) {
	specs, ok := schema[kind]
	if !ok {
		return nil, fmt.Errorf("unknown node kind %d", kind)
	}
	out := Defaults(kind)
	for key, value := range in {
		spec, ok := findSpec(specs, key)
		if !ok {
			return nil, fmt.Errorf("%s does not take attribute %q", kind, key)
		}
		normalized, err := spec.check(value)
		if err != nil {
			return nil, fmt.Errorf("%s attribute %s: %w", kind, key, err)
		}
		out[key] = normalized
	}
	return out, nil
}

func findSpec(specs []attrSpec, name string) (attrSpec, bool) {
	for _, s := range specs {
		if s.name == name {
			return s, true
		}
	}
	return attrSpec{}, false
}

func (s attrSpec) check(value string) (string, error) {
	value = strings.TrimSpace(value)
	switch s.kind {
	case attrBool:
		switch strings.ToLower(value) {
		case "true", "1", "on":
			return "true", nil
		case "false", "0", "off", "":
			return "false", nil
		}
		return "", fmt.Errorf("%q is not a boolean", value)
	case attrNumber:
		if value == "" {
			return s.def, nil
		}
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || f < 0 {
			return "", fmt.Errorf("%q is not a non-negative number", value)
		}
		return formatNumber(f), nil
	case attrSigned:
		if value == "" {
			return s.def, nil
		}
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return "", fmt.Errorf("%q is not a number", value)
		}
		return formatNumber(f), nil
	case attrLevel:
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 || n > 8 {
			return "", fmt.Errorf("%q is not a list level 0-8", value)
		}
		return strconv.Itoa(n), nil
	case attrHexColor:
		if !hexColorPattern.MatchString(value) {
			return "", fmt.Errorf("%q is not a #RRGGBB color", value)
		}
		return strings.ToUpper(value), nil
	case attrWordColor:
		if !wordColorPattern.MatchString(value) {
			return "", fmt.Errorf("%q is not a color", value)
		}
		if value == "auto" {
			return value, nil
		}
		return strings.ToUpper(value), nil
	case attrEnum:
		for _, v := range s.values {
			if strings.EqualFold(v, value) {
				return v, nil
			}
		}
		return "", fmt.Errorf("%q is not one of %s", value, strings.Join(s.values, "|"))
	case attrURL:
		if value == "" {
			return "", nil
		}
		return value, validateURL(value)
	case attrName:
		if strings.ContainsAny(value, "<>\"\x00") {
			return "", fmt.Errorf("%q contains markup characters", value)
		}
		if value == "" {
			return s.def, nil
		}
		return value, nil
	case attrMarkup:
		return value, nil
	}
	return "", fmt.Errorf("unhandled attribute type %d", s.kind)
}

// validateURL accepts any relationship target a document can carry except
// script urls and values with markup or control characters.
func validateURL(raw string) error {
	if strings.ContainsAny(raw, "<>\"") || strings.IndexFunc(raw, unicode.IsControl) >= 0 {
		return fmt.Errorf("%q contains markup or control characters", raw)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	switch strings.ToLower(u.Scheme) {
	case "javascript", "vbscript", "data":
		return fmt.Errorf("%q uses a script scheme", raw)
	}
	return nil
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// withoutDefaults returns the attributes whose values differ from the
// documented default, the set a writer needs to emit.
func withoutDefaults(kind Kind, attrs Attrs) Attrs {
	out := maps.Clone(attrs)
	for _, spec := range schema[kind] {
		if v, ok := out[spec.name]; ok && v == spec.def {
			delete(out, spec.name)
		}
	}
	return out
}

// Unit conversions between attribute values and markup values.

// halfPoints converts a w:sz value to points.
func halfPoints(val string) string {
	n, err := strconv.ParseFloat(val, 64)
	if err != nil || n <= 0 {
		return "0"
	}
	return formatNumber(n / 2)
}

// twipsToPoints converts twentieths of a point to points.
func twipsToPoints(val string) string {
	n, err := strconv.ParseFloat(val, 64)
	if err != nil || n <= 0 {
		return "0"
	}
	return formatNumber(n / 20)
}

// eighthsToPoints converts a border w:sz value to points.
func eighthsToPoints(val string) string {
	n, err := strconv.ParseFloat(val, 64)
	if err != nil || n <= 0 {
		return "0"
	}
	return formatNumber(n / 8)
}

func pointsToUnits(points string, factor float64) string {
	f, err := strconv.ParseFloat(points, 64)
	if err != nil || f <= 0 {
		return ""
	}
	return strconv.Itoa(int(f*factor + 0.5))
}
