package gateway

import (
	"context"
	"errors"
	"testing"
)

type stubEmbedder struct {
	vector []float32
	err    error
}

func (e *stubEmbedder) Embed(context.Context, string) ([]float32, error) {
	return e.vector, e.err
}

type stubSearcher struct {
	passages  []string
	searchErr error

	upserted map[string]string
}

func (s *stubSearcher) Search(context.Context, []float32, int) ([]string, error) {
	return s.passages, s.searchErr
}

func (s *stubSearcher) Upsert(_ context.Context, id, text string, _ []float32, _ map[string]any) error {
	if s.upserted == nil {
		s.upserted = make(map[string]string)
	}
	s.upserted[id] = text
	return nil
}

func TestRetrieve_FormatsContext(t *testing.T) {
	r := NewRAGRetriever(&stubEmbedder{vector: []float32{1}}, &stubSearcher{
		passages: []string{"first passage", "second passage"},
	})
	got, err := r.Retrieve(context.Background(), "query", 3)
	if err != nil {
		t.Fatal(err)
	}
	want := "関連情報:\nfirst passage\n\nsecond passage\n\n"
	if got != want {
		t.Errorf("Retrieve = %q, want %q", got, want)
	}
}

func TestRetrieve_EmptyOnNoMatches(t *testing.T) {
	r := NewRAGRetriever(&stubEmbedder{vector: []float32{1}}, &stubSearcher{})
	got, err := r.Retrieve(context.Background(), "query", 3)
	if err != nil {
		t.Fatal(err)
	}
	if got != "" {
		t.Errorf("Retrieve = %q, want empty", got)
	}
}

func TestRetrieve_EmbedFailure(t *testing.T) {
	r := NewRAGRetriever(&stubEmbedder{err: errors.New("embedder down")}, &stubSearcher{})
	if _, err := r.Retrieve(context.Background(), "query", 3); err == nil {
		t.Error("expected error")
	}
}

func TestAddDocument(t *testing.T) {
	store := &stubSearcher{}
	r := NewRAGRetriever(&stubEmbedder{vector: []float32{1}}, store)

	err := r.AddDocument(context.Background(), "doc-1", "社内規定の本文",
		map[string]any{"title": "規定", "category": "hr"})
	if err != nil {
		t.Fatal(err)
	}
	if store.upserted["doc-1"] != "社内規定の本文" {
		t.Errorf("upserted = %v", store.upserted)
	}
}
