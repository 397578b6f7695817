package resumefit

import (
	"archive/zip"
	"bytes"
	"crypto/sha256"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path"
	"strconv"
	"strings"
)

const (
	documentPart      = "word/document.xml"
	documentRelsPart  = "word/_rels/document.xml.rels"
	contentTypesPart  = "[Content_Types].xml"
	packageRelsPart   = "_rels/.rels"
	relationshipsNS   = "http://schemas.openxmlformats.org/package/2006/relationships"
	contentTypesNS    = "http://schemas.openxmlformats.org/package/2006/content-types"
	officeDocumentRel = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument"

	imageRelationshipType     = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/image"
	hyperlinkRelationshipType = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/hyperlink"
	stylesRelationshipType    = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles"
	numberingRelationshipType = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/numbering"

	documentContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
	xmlDeclaration      = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n"
)

// Package is an opened word-processing container. It is read-only; every
// writer in this package produces a new container.
type Package struct {
	source []byte
	reader *zip.Reader
	parts  map[string]*zip.File
}

// Relationship represents a relationship in the package
type Relationship struct {
	ID         string `xml:"Id,attr"`
	Type       string `xml:"Type,attr"`
	Target     string `xml:"Target,attr"`
	TargetMode string `xml:"TargetMode,attr,omitempty"`
}

// External reports whether the relationship points outside the package.
func (r Relationship) External() bool {
	return strings.EqualFold(r.TargetMode, "External")
}

// Relationships represents the collection of relationships
type Relationships struct {
	XMLName      xml.Name       `xml:"Relationships"`
	Namespace    string         `xml:"xmlns,attr"`
	Relationship []Relationship `xml:"Relationship"`
}

// ContentTypes represents [Content_Types].xml
type ContentTypes struct {
	XMLName   xml.Name              `xml:"Types"`
	Namespace string                `xml:"xmlns,attr"`
	Defaults  []ContentTypeDefault  `xml:"Default"`
	Overrides []ContentTypeOverride `xml:"Override"`
}

// ContentTypeDefault maps a file extension to a content type
type ContentTypeDefault struct {
	Extension   string `xml:"Extension,attr"`
	ContentType string `xml:"ContentType,attr"`
}

// ContentTypeOverride maps a single part to a content type
type ContentTypeOverride struct {
	PartName    string `xml:"PartName,attr"`
	ContentType string `xml:"ContentType,attr"`
}

// RegisterDefault adds an extension mapping unless one is already present.
func (ct *ContentTypes) RegisterDefault(ext, contentType string) {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, d := range ct.Defaults {
		if strings.EqualFold(d.Extension, ext) {
			return
		}
	}
	ct.Defaults = append(ct.Defaults, ContentTypeDefault{Extension: ext, ContentType: contentType})
}

// RegisterOverride adds or replaces the content type of one part.
func (ct *ContentTypes) RegisterOverride(partName, contentType string) {
	partName = "/" + strings.TrimPrefix(partName, "/")
	for i, o := range ct.Overrides {
		if o.PartName == partName {
			ct.Overrides[i].ContentType = contentType
			return
		}
	}
	ct.Overrides = append(ct.Overrides, ContentTypeOverride{PartName: partName, ContentType: contentType})
}

// TypeOf returns the content type registered for a part, by override first
// and extension second.
func (ct *ContentTypes) TypeOf(partName string) string {
	name := "/" + strings.TrimPrefix(partName, "/")
	for _, o := range ct.Overrides {
		if strings.EqualFold(o.PartName, name) {
			return o.ContentType
		}
	}
	ext := strings.TrimPrefix(path.Ext(partName), ".")
	for _, d := range ct.Defaults {
		if strings.EqualFold(d.Extension, ext) {
			return d.ContentType
		}
	}
	return mimeForPart(partName)
}

// OpenPackage opens a container held in memory. A payload that is not a zip
// archive, or one without word/document.xml, fails with ErrNotFound.
func OpenPackage(data []byte) (*Package, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to read zip file: %w: %w", ErrNotFound, err)
	}

	p := &Package{
		source: data,
		reader: zr,
		parts:  make(map[string]*zip.File, len(zr.File)),
	}
	for _, file := range zr.File {
		p.parts[file.Name] = file
	}

	if _, ok := p.parts[documentPart]; !ok {
		return nil, fmt.Errorf("not a valid DOCX file: missing %s: %w", documentPart, ErrNotFound)
	}
	return p, nil
}

// OpenPackageFile reads a container from disk
func OpenPackageFile(filename string) (*Package, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read file: %w: %w", ErrNotFound, err)
		}
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return OpenPackage(data)
}

// Bytes returns the original container bytes.
func (p *Package) Bytes() []byte { return p.source }

// Has reports whether the package contains the named part.
func (p *Package) Has(name string) bool {
	_, ok := p.parts[name]
	return ok
}

// Part retrieves the content of a specific part
func (p *Package) Part(name string) ([]byte, error) {
	file, ok := p.parts[name]
	if !ok {
		return nil, fmt.Errorf("part %s: %w", name, ErrNotFound)
	}

	rc, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open part %s: %w", name, err)
	}
	defer rc.Close()

	content, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read part %s: %w", name, err)
	}
	return content, nil
}

// DocumentXML returns the primary markup part.
func (p *Package) DocumentXML() ([]byte, error) {
	return p.Part(documentPart)
}

// Relationships retrieves relationships for a given part. A part without a
// relationships file has none.
func (p *Package) Relationships(partName string) ([]Relationship, error) {
	relPath := relationshipsPath(partName)
	if !p.Has(relPath) {
		return nil, nil
	}
	content, err := p.Part(relPath)
	if err != nil {
		return nil, err
	}

	var rels Relationships
	if err := xml.Unmarshal(content, &rels); err != nil {
		return nil, &MalformedError{Part: relPath, Reason: "unparseable relationships", Cause: err}
	}
	return rels.Relationship, nil
}

// ContentTypes parses [Content_Types].xml
func (p *Package) ContentTypes() (*ContentTypes, error) {
	ct := &ContentTypes{Namespace: contentTypesNS}
	if !p.Has(contentTypesPart) {
		return ct, nil
	}
	content, err := p.Part(contentTypesPart)
	if err != nil {
		return nil, err
	}
	if err := xml.Unmarshal(content, ct); err != nil {
		return nil, &MalformedError{Part: contentTypesPart, Reason: "unparseable content types", Cause: err}
	}
	if ct.Namespace == "" {
		ct.Namespace = contentTypesNS
	}
	return ct, nil
}

// ResolveTarget turns a relationship target of sourcePart into a part name.
func ResolveTarget(sourcePart, target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(path.Clean(target), "/")
	}
	return path.Join(path.Dir(sourcePart), target)
}

// relationshipsPath converts a part name to its relationships file name
// e.g., "word/document.xml" -> "word/_rels/document.xml.rels"
func relationshipsPath(partName string) string {
	dir, base := path.Split(partName)
	return dir + "_rels/" + base + ".rels"
}

func digestOf(data []byte) [sha256.Size]byte {
	return sha256.Sum256(data)
}

// nextRelationshipID generates the next available relationship ID
func nextRelationshipID(rels []Relationship) string {
	maxID := 0
	for _, rel := range rels {
		if num, err := strconv.Atoi(strings.TrimPrefix(rel.ID, "rId")); err == nil && num > maxID {
			maxID = num
		}
	}
	return fmt.Sprintf("rId%d", maxID+1)
}

func marshalPart(v any) ([]byte, error) {
	output, err := xml.Marshal(v)
	if err != nil {
		return nil, err
	}
	return append([]byte(xmlDeclaration), output...), nil
}

// extensionContentTypes maps media file extensions to content types
var extensionContentTypes = map[string]string{
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"bmp":  "image/bmp",
	"tiff": "image/tiff",
	"tif":  "image/tiff",
	"svg":  "image/svg+xml",
	"webp": "image/webp",
	"emf":  "image/x-emf",
	"wmf":  "image/x-wmf",
}

// mimeForPart guesses the content type of a media part from its extension.
func mimeForPart(name string) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
	if ct, ok := extensionContentTypes[ext]; ok {
		return ct
	}
	if ext == "" {
		return "application/octet-stream"
	}
	return "image/" + ext
}

// extensionForMIME is the inverse of mimeForPart
func extensionForMIME(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return "jpeg"
	case "image/svg+xml":
		return "svg"
	case "image/x-emf":
		return "emf"
	case "image/x-wmf":
		return "wmf"
	}
	if ext, ok := strings.CutPrefix(mimeType, "image/"); ok && ext != "" {
		return ext
	}
	return "bin"
}
