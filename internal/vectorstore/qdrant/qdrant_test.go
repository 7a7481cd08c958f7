package qdrant

import (
	"testing"

	"docqa-platform/internal/vectorstore"
)

func TestBuildFilterNilAndEmpty(t *testing.T) {
	if buildFilter(nil) != nil {
		t.Error("nil filter should map to nil")
	}
	if buildFilter(&vectorstore.Filter{}) != nil {
		t.Error("empty filter should map to nil")
	}
}

func TestBuildFilterDocumentID(t *testing.T) {
	f := buildFilter(&vectorstore.Filter{DocumentID: "doc-1"})
	if f == nil {
		t.Fatal("expected non-nil filter")
	}
	if len(f.Must) != 1 || len(f.Should) != 0 {
		t.Fatalf("must=%d should=%d", len(f.Must), len(f.Should))
	}

	field := f.Must[0].GetField()
	if field == nil || field.Key != "document_id" {
		t.Fatalf("unexpected condition: %+v", f.Must[0])
	}
	if kw := field.Match.GetKeyword(); kw != "doc-1" {
		t.Errorf("keyword = %q", kw)
	}
}

func TestBuildFilterSourcesAreShouldConditions(t *testing.T) {
	f := buildFilter(&vectorstore.Filter{Sources: []string{"a.pdf", "b.txt"}})
	if f == nil {
		t.Fatal("expected non-nil filter")
	}
	if len(f.Must) != 0 || len(f.Should) != 2 {
		t.Fatalf("must=%d should=%d", len(f.Must), len(f.Should))
	}
	for i, want := range []string{"a.pdf", "b.txt"} {
		field := f.Should[i].GetField()
		if field == nil || field.Key != "source" {
			t.Fatalf("condition %d: %+v", i, f.Should[i])
		}
		if kw := field.Match.GetKeyword(); kw != want {
			t.Errorf("condition %d keyword = %q, want %q", i, kw, want)
		}
	}
}

var _ vectorstore.Store = (*Store)(nil)
