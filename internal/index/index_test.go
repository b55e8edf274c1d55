package index

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name    string
		vec1    []float32
		vec2    []float32
		want    float32
		wantErr bool
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1.0, false},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0.0, false},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1.0, false},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0.0, false},
		{"dimension mismatch", []float32{1, 2}, []float32{1, 2, 3}, 0, true},
		{"empty", nil, []float32{1}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CosineSimilarity(tt.vec1, tt.vec2)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if math.Abs(float64(got-tt.want)) > 1e-6 {
				t.Errorf("similarity = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestSearch_RanksByDescendingSimilarity(t *testing.T) {
	ix := New([]Chunk{
		{Content: "far", Embedding: []float32{0, 1}},
		{Content: "near", Embedding: []float32{1, 0.1}},
		{Content: "exact", Embedding: []float32{1, 0}},
	})

	results := ix.Search([]float32{1, 0}, 2)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Chunk.Content != "exact" {
		t.Errorf("best match = %q, want \"exact\"", results[0].Chunk.Content)
	}
	if results[1].Chunk.Content != "near" {
		t.Errorf("second match = %q, want \"near\"", results[1].Chunk.Content)
	}
	if results[0].Similarity < results[1].Similarity {
		t.Error("results not in descending similarity order")
	}
}

func TestSearch_SkipsChunksWithoutEmbeddings(t *testing.T) {
	ix := New([]Chunk{
		{Content: "no embedding"},
		{Content: "good", Embedding: []float32{1, 0}},
	})

	results := ix.Search([]float32{1, 0}, 10)
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Chunk.Content != "good" {
		t.Errorf("got %q, want \"good\"", results[0].Chunk.Content)
	}
}

func TestSaveLoad_Roundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")
	original := New([]Chunk{
		{Content: "chunk one", Source: "doc.pdf", Embedding: []float32{0.1, 0.2}},
		{Content: "chunk two", Source: "doc.pdf", Embedding: []float32{0.3, 0.4}},
	})

	if err := original.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Len() != 2 {
		t.Fatalf("loaded %d chunks, want 2", loaded.Len())
	}
	if loaded.Chunks[0].Content != "chunk one" || loaded.Chunks[0].Source != "doc.pdf" {
		t.Errorf("first chunk mismatch: %+v", loaded.Chunks[0])
	}
	if len(loaded.Chunks[1].Embedding) != 2 {
		t.Errorf("embedding not persisted: %+v", loaded.Chunks[1])
	}
}

func TestSave_ReplacesExistingAndLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.json")

	if err := New([]Chunk{{Content: "old"}}).Save(path); err != nil {
		t.Fatalf("first Save failed: %v", err)
	}
	if err := New([]Chunk{{Content: "new"}}).Save(path); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Len() != 1 || loaded.Chunks[0].Content != "new" {
		t.Errorf("old index survived replacement: %+v", loaded.Chunks)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".tmp") {
			t.Errorf("temp file left behind: %s", entry.Name())
		}
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("expected an error for a missing index file")
	}
}
