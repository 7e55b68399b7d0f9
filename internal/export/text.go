package export

import "strings"

// renderText writes the title, underline, fields and body as UTF-8 text.
func renderText(doc Document) []byte {
	var b strings.Builder
	if doc.Title != "" {
		b.WriteString(doc.Title)
		b.WriteString("\n")
		b.WriteString(strings.Repeat("=", len([]rune(doc.Title))))
		b.WriteString("\n\n")
	}
	for _, f := range doc.Fields {
		b.WriteString(f.Label)
		b.WriteString(": ")
		b.WriteString(f.Value)
		b.WriteString("\n")
	}
	if doc.Body != "" {
		if len(doc.Fields) > 0 {
			b.WriteString("\n")
		}
		b.WriteString(doc.Body)
		if !strings.HasSuffix(doc.Body, "\n") {
			b.WriteString("\n")
		}
	}
	if doc.Caption != "" {
		b.WriteString("\n")
		b.WriteString(doc.Caption)
		b.WriteString("\n")
	}
	return []byte(b.String())
}
