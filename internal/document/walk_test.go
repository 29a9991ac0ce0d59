package document

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWalk(t *testing.T) {
	root := t.TempDir()
	mustWrite := func(rel, content string) {
		t.Helper()
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	mustWrite("a.txt", "a")
	mustWrite("b.pdf", "b")
	mustWrite("notes/c.md", "c")
	mustWrite("image.png", "binary")
	mustWrite("noextension", "x")
	mustWrite(".versions/a.txt/v1_123.txt", "old")
	mustWrite("notes/.versions/c.md/v1_456.md", "old")

	files := Walk(root)

	got := map[string]Format{}
	for _, f := range files {
		rel, err := filepath.Rel(root, f.Path)
		if err != nil {
			t.Fatal(err)
		}
		got[filepath.ToSlash(rel)] = f.Format
	}

	want := map[string]Format{
		"a.txt":      FormatPlainText,
		"b.pdf":      FormatPdf,
		"notes/c.md": FormatPlainText,
	}
	if len(got) != len(want) {
		t.Errorf("walked files = %v, want %v", got, want)
	}
	for rel, format := range want {
		if got[rel] != format {
			t.Errorf("file %s: format = %q, want %q", rel, got[rel], format)
		}
	}
	for rel := range got {
		if _, ok := want[rel]; !ok {
			t.Errorf("unexpected file walked: %s", rel)
		}
	}
}

func TestWalk_MissingRoot(t *testing.T) {
	files := Walk(filepath.Join(t.TempDir(), "does-not-exist"))
	if len(files) != 0 {
		t.Errorf("expected no files for missing root, got %d", len(files))
	}
}

func TestWalk_UppercaseExtension(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "README.MD"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	files := Walk(root)
	if len(files) != 1 {
		t.Fatalf("expected 1 file, got %d", len(files))
	}
	if files[0].Format != FormatPlainText {
		t.Errorf("format = %q, want %q", files[0].Format, FormatPlainText)
	}
}
