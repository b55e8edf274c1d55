// Package ingest rebuilds the knowledge index from a folder of PDF documents:
// extract text, split into overlapping chunks, embed every chunk, persist the
// index atomically.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ucundinamarca/cundibot/internal/config"
	"github.com/ucundinamarca/cundibot/internal/index"
	"github.com/ucundinamarca/cundibot/internal/logger"
)

const (
	chunkSize    = 1000
	chunkOverlap = 100

	// Delay between embedding calls to stay under the provider rate limit
	// (1500/min).
	embedDelay = 40 * time.Millisecond
)

var (
	// ErrNoAPIKey means no embedding credential is configured; the rebuild
	// cannot even start.
	ErrNoAPIKey = errors.New("GEMINI_API_KEY is not configured")

	// ErrNoChunks means every source document failed to yield text.
	ErrNoChunks = errors.New("no text could be extracted from any source document")
)

// Embedder generates vector embeddings for text.
type Embedder interface {
	GetEmbedding(ctx context.Context, text string) ([]float32, error)
}

type Pipeline struct {
	cfg      *config.Config
	embedder Embedder
	extract  func(path string) (string, error)
}

func NewPipeline(cfg *config.Config, embedder Embedder) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		embedder: embedder,
		extract:  ExtractPDFText,
	}
}

// Rebuild regenerates the on-disk knowledge index from the knowledge folder.
// A missing folder or a folder without PDFs is a valid "nothing to index"
// outcome and returns an informational summary, not an error; the previously
// saved index, if any, is left untouched. A document that fails to parse is
// skipped with a warning. The new index replaces the old one atomically.
func (p *Pipeline) Rebuild(ctx context.Context) (string, error) {
	if p.cfg.GeminiAPIKey == "" {
		return "", ErrNoAPIKey
	}

	entries, err := os.ReadDir(p.cfg.KnowledgeDir)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Sprintf("The folder %q does not exist; nothing to index.", p.cfg.KnowledgeDir), nil
		}
		return "", fmt.Errorf("failed to read knowledge folder: %w", err)
	}

	var pdfNames []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), ".pdf") {
			pdfNames = append(pdfNames, entry.Name())
		}
	}
	if len(pdfNames) == 0 {
		return fmt.Sprintf("No PDF documents found in %q; nothing to index.", p.cfg.KnowledgeDir), nil
	}

	var chunks []index.Chunk
	docsProcessed := 0
	for _, name := range pdfNames {
		text, err := p.extract(filepath.Join(p.cfg.KnowledgeDir, name))
		if err != nil {
			logger.Log.Warnf("Skipping document %s: %v", name, err)
			continue
		}
		pieces := SplitText(text, chunkSize, chunkOverlap)
		if len(pieces) == 0 {
			logger.Log.Warnf("Skipping document %s: no extractable text", name)
			continue
		}
		for _, piece := range pieces {
			chunks = append(chunks, index.Chunk{Content: piece, Source: name})
		}
		docsProcessed++
	}
	if len(chunks) == 0 {
		return "", ErrNoChunks
	}

	logger.Log.Infof("Embedding %d chunks from %d document(s), this may take a while...", len(chunks), docsProcessed)

	ticker := time.NewTicker(embedDelay)
	defer ticker.Stop()

	for i := range chunks {
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("rebuild cancelled: %w", ctx.Err())
		case <-ticker.C:
		}

		embedding, err := p.embedder.GetEmbedding(ctx, chunks[i].Content)
		if err != nil {
			return "", fmt.Errorf("failed to embed chunk %d/%d: %w", i+1, len(chunks), err)
		}
		chunks[i].Embedding = embedding

		if (i+1)%25 == 0 {
			logger.Log.Infof("Embedded %d/%d chunks...", i+1, len(chunks))
		}
	}

	ix := index.New(chunks)
	if err := ix.Save(p.cfg.IndexPath); err != nil {
		return "", fmt.Errorf("failed to save knowledge index: %w", err)
	}

	logger.Log.Infof("Knowledge index rebuilt: %d chunks from %d document(s)", len(chunks), docsProcessed)
	return fmt.Sprintf("Knowledge index rebuilt from %d document(s).", docsProcessed), nil
}
