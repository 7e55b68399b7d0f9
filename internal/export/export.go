// Package export turns directory data into downloadable documents: PDF, JPEG,
// XLSX, vCard and plain text.
package export

import (
	"fmt"
	"strings"
)

type Kind string

const (
	KindPDF         Kind = "pdf"
	KindImage       Kind = "image"
	KindSpreadsheet Kind = "spreadsheet"
	KindVCard       Kind = "vcard"
	KindText        Kind = "text"
)

// ParseKind accepts a kind name or the file extension used in export URLs
// (pdf, jpg, xlsx, vcf, txt).
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "pdf":
		return KindPDF, nil
	case "image", "jpg", "jpeg":
		return KindImage, nil
	case "spreadsheet", "xlsx", "xls", "excel":
		return KindSpreadsheet, nil
	case "vcard", "vcf":
		return KindVCard, nil
	case "text", "txt":
		return KindText, nil
	}
	return "", fmt.Errorf("formato de exportación no soportado: %q", s)
}

// ContentType is the MIME type sent with a document of kind k.
func ContentType(k Kind) string {
	switch k {
	case KindPDF:
		return "application/pdf"
	case KindImage:
		return "image/jpeg"
	case KindSpreadsheet:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case KindVCard:
		return "text/vcard"
	default:
		return "text/plain; charset=utf-8"
	}
}

// Extension is the file extension, without dot, for a document of kind k.
func Extension(k Kind) string {
	switch k {
	case KindPDF:
		return "pdf"
	case KindImage:
		return "jpg"
	case KindSpreadsheet:
		return "xlsx"
	case KindVCard:
		return "vcf"
	default:
		return "txt"
	}
}

// Field is a labelled value rendered as "Label: Value".
type Field struct {
	Label string
	Value string
}

// Contact is one vCard entry.
type Contact struct {
	Given          string
	Family         string
	Additional     string
	Phone          string
	EmergencyPhone string
	Email          string
	Address        string
	Org            string
	Title          string
	Note           string
	PhotoURL       string
}

// FullName joins given, family and additional names.
func (c Contact) FullName() string {
	return strings.Join(strings.Fields(c.Given+" "+c.Family+" "+c.Additional), " ")
}

// Document is the renderer input. Each kind uses the parts that make sense for
// it: Fields and Body for prose formats, Header/Rows for tables, Contacts for
// vCard, ImagePath for an embedded logo or avatar.
type Document struct {
	Title     string
	Fields    []Field
	Body      string
	ImagePath string
	Caption   string
	Sheet     string
	Header    []string
	Rows      [][]string
	Contacts  []Contact
}

// Renderer produces the bytes of a document.
type Renderer interface {
	Render(kind Kind, doc Document) ([]byte, error)
}

// DocumentRenderer dispatches to the per-format renderers.
type DocumentRenderer struct{}

func NewRenderer() *DocumentRenderer { return &DocumentRenderer{} }

func (r *DocumentRenderer) Render(kind Kind, doc Document) ([]byte, error) {
	switch kind {
	case KindPDF:
		return renderPDF(doc)
	case KindImage:
		return renderImage(doc)
	case KindSpreadsheet:
		return renderSpreadsheet(doc)
	case KindVCard:
		return renderVCard(doc)
	case KindText:
		return renderText(doc), nil
	}
	return nil, fmt.Errorf("export: unknown kind %q", kind)
}
