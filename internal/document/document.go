// Package document turns on-disk files into embeddable text: format
// classification by extension, recursive directory walking, text extraction
// for plain/PDF/Office formats, and UTF-8-safe chunking.
package document

import "strings"

// Format identifies how a file's text is extracted. The string values appear
// verbatim in vector point metadata and directory listings.
type Format string

const (
	PlainText Format = "PlainText"
	Pdf       Format = "Pdf"
	Docx      Format = "Docx"
	Xlsx      Format = "Xlsx"
	Pptx      Format = "Pptx"
)

var extensionFormats = map[string]Format{
	"txt": PlainText, "md": PlainText, "rs": PlainText, "py": PlainText,
	"js": PlainText, "ts": PlainText, "json": PlainText, "yaml": PlainText,
	"yml": PlainText, "toml": PlainText,
	"pdf": Pdf, "docx": Docx, "xlsx": Xlsx, "pptx": Pptx,
}

// FormatForExtension classifies a file extension (without the dot,
// case-insensitive). ok is false for unsupported extensions.
func FormatForExtension(ext string) (Format, bool) {
	f, ok := extensionFormats[strings.ToLower(ext)]
	return f, ok
}
