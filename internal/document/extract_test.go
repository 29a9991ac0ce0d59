package document

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
)

type zipEntry struct {
	name    string
	content string
}

func writeZip(t *testing.T, path string, entries []zipEntry) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	w := zip.NewWriter(f)
	for _, entry := range entries {
		e, err := w.Create(entry.name)
		if err != nil {
			t.Fatalf("create entry %s: %v", entry.name, err)
		}
		if _, err := e.Write([]byte(entry.content)); err != nil {
			t.Fatalf("write entry %s: %v", entry.name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
}

func TestExtract_PlainText(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.txt")
	if err := os.WriteFile(path, []byte("こんにちは world"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := Extract(path, FormatPlainText)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got != "こんにちは world" {
		t.Errorf("got %q", got)
	}
}

func TestExtract_PlainTextInvalidUTF8(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "binary.txt")
	if err := os.WriteFile(path, []byte{0xff, 0xfe, 0x00}, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Extract(path, FormatPlainText); err == nil {
		t.Error("expected error for invalid UTF-8")
	}
}

func TestExtract_PlainTextMissingFile(t *testing.T) {
	if _, err := Extract(filepath.Join(t.TempDir(), "nope.txt"), FormatPlainText); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestExtract_Docx(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.docx")
	writeZip(t, path, []zipEntry{
		{"word/document.xml", `<w:document><w:p><w:r><w:t>議事録</w:t></w:r>` +
			`<w:r><w:t xml:space="preserve">2026年</w:t></w:r></w:p></w:document>`},
		{"word/styles.xml", `<w:styles/>`},
	})
	got, err := Extract(path, FormatDocx)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got != "議事録 2026年" {
		t.Errorf("got %q, want %q", got, "議事録 2026年")
	}
}

func TestExtract_DocxMissingDocumentXML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.docx")
	writeZip(t, path, []zipEntry{{"word/styles.xml", `<w:styles/>`}})
	if _, err := Extract(path, FormatDocx); err == nil {
		t.Error("expected error when word/document.xml is absent")
	}
}

func TestExtract_Pptx(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "deck.pptx")
	writeZip(t, path, []zipEntry{
		{"ppt/presentation.xml", `<p:presentation/>`},
		{"ppt/slides/slide1.xml", `<p:sld><a:t>スライド1</a:t><a:t>本文</a:t></p:sld>`},
		{"ppt/slides/_rels/slide1.xml.rels", `<Relationships/>`},
		{"ppt/slides/slide2.xml", `<p:sld><a:t>スライド2</a:t></p:sld>`},
	})
	got, err := Extract(path, FormatPptx)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	want := "スライド1 本文\n\nスライド2"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestExtract_PptxNoSlides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.pptx")
	writeZip(t, path, []zipEntry{{"ppt/presentation.xml", `<p:presentation/>`}})
	got, err := Extract(path, FormatPptx)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got != "" {
		t.Errorf("expected empty text, got %q", got)
	}
}

func TestExtract_Xlsx(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sheet.xlsx")

	f := excelize.NewFile()
	if err := f.SetCellValue("Sheet1", "A1", "名前"); err != nil {
		t.Fatal(err)
	}
	if err := f.SetCellValue("Sheet1", "B1", "部署"); err != nil {
		t.Fatal(err)
	}
	if err := f.SetCellValue("Sheet1", "A2", "山田"); err != nil {
		t.Fatal(err)
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	got, err := Extract(path, FormatXlsx)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	want := "名前\t部署\n山田"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestExtract_PdfMissingFile(t *testing.T) {
	if _, err := Extract(filepath.Join(t.TempDir(), "nope.pdf"), FormatPdf); err == nil {
		t.Error("expected error for missing pdf")
	}
}

func TestScanTagText(t *testing.T) {
	tests := []struct {
		name string
		xml  string
		tag  string
		want string
	}{
		{"simple", `<w:t>hello</w:t>`, "w:t", "hello"},
		{"multiple", `<w:t>a</w:t><w:t>b</w:t>`, "w:t", "a b"},
		{"attributes", `<w:t xml:space="preserve">kept</w:t>`, "w:t", "kept"},
		{"empty content skipped", `<w:t></w:t><w:t>x</w:t>`, "w:t", "x"},
		{"no matches", `<w:p>nothing</w:p>`, "w:t", ""},
		{"unclosed tail ignored", `<w:t>a</w:t><w:t>dangling`, "w:t", "a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := scanTagText(tt.xml, tt.tag); got != tt.want {
				t.Errorf("scanTagText(%q) = %q, want %q", tt.xml, got, tt.want)
			}
		})
	}
}
