package document

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"
)

// Extract reads a file and returns its text content according to format.
// The result may be empty (image-only PDFs, blank sheets).
func Extract(path string, format Format) (string, error) {
	switch format {
	case PlainText:
		return extractPlainText(path)
	case Pdf:
		return extractPdf(path)
	case Docx:
		return extractDocx(path)
	case Xlsx:
		return extractXlsx(path)
	case Pptx:
		return extractPptx(path)
	default:
		return "", fmt.Errorf("unsupported format %q", format)
	}
}

func extractPlainText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read text file %s: %w", path, err)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("file %s is not valid UTF-8", path)
	}
	return string(data), nil
}

func extractPdf(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer f.Close()

	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text %s: %w", path, err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("read pdf text %s: %w", path, err)
	}
	return buf.String(), nil
}

func extractDocx(path string) (string, error) {
	archive, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("read docx as zip %s: %w", path, err)
	}
	defer archive.Close()

	for _, entry := range archive.File {
		if entry.Name != "word/document.xml" {
			continue
		}
		content, err := readZipEntry(entry)
		if err != nil {
			return "", fmt.Errorf("read docx entry %s: %w", path, err)
		}
		return scanTagText(content, "w:t"), nil
	}
	return "", fmt.Errorf("no word/document.xml found in docx %s", path)
}

func extractXlsx(path string) (string, error) {
	wb, err := excelize.OpenFile(path)
	if err != nil {
		return "", fmt.Errorf("open xlsx %s: %w", path, err)
	}
	defer wb.Close()

	var lines []string
	for _, sheet := range wb.GetSheetList() {
		rows, err := wb.GetRows(sheet)
		if err != nil {
			continue
		}
		for _, row := range rows {
			var cells []string
			for _, cell := range row {
				if cell != "" {
					cells = append(cells, cell)
				}
			}
			if len(cells) > 0 {
				lines = append(lines, strings.Join(cells, "\t"))
			}
		}
	}
	return strings.Join(lines, "\n"), nil
}

func extractPptx(path string) (string, error) {
	archive, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("read pptx as zip %s: %w", path, err)
	}
	defer archive.Close()

	var slides []string
	for _, entry := range archive.File {
		if !strings.HasPrefix(entry.Name, "ppt/slides/slide") || !strings.HasSuffix(entry.Name, ".xml") {
			continue
		}
		content, err := readZipEntry(entry)
		if err != nil {
			return "", fmt.Errorf("read pptx entry %s: %w", entry.Name, err)
		}
		if text := scanTagText(content, "a:t"); text != "" {
			slides = append(slides, text)
		}
	}
	return strings.Join(slides, "\n\n"), nil
}

func readZipEntry(entry *zip.File) (string, error) {
	rc, err := entry.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// scanTagText pulls the text content of every <tag …>…</tag> occurrence,
// space-joined. It is deliberately a literal scanner, not an XML parser:
// it finds "<tag", advances past the next ">", and reads until "</tag>".
// Office documents with namespace quirks or mild corruption still yield
// their text this way.
func scanTagText(xml, tag string) string {
	openTag := "<" + tag
	closeTag := "</" + tag + ">"

	var texts []string
	searchFrom := 0
	for {
		openPos := strings.Index(xml[searchFrom:], openTag)
		if openPos < 0 {
			break
		}
		absOpen := searchFrom + openPos
		tagEnd := strings.Index(xml[absOpen:], ">")
		if tagEnd < 0 {
			break
		}
		contentStart := absOpen + tagEnd + 1
		closePos := strings.Index(xml[contentStart:], closeTag)
		if closePos < 0 {
			break
		}
		if content := xml[contentStart : contentStart+closePos]; content != "" {
			texts = append(texts, content)
		}
		searchFrom = contentStart + closePos + len(closeTag)
	}
	return strings.Join(texts, " ")
}
