// Package sources archives the search results each report section was
// written from and searches them semantically.
package sources

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/mikeboe/deep-research/pkg/metrics"
	"github.com/mikeboe/deep-research/pkg/research"
	"github.com/mikeboe/deep-research/pkg/search"
	"github.com/mikeboe/deep-research/pkg/vectorstore"
)

// ErrEmptyQuery is returned by Search for a blank query.
var ErrEmptyQuery = errors.New("empty archive query")

const defaultLimit = 5

// Store is the subset of the vector store the archive needs.
type Store interface {
	AddChunks(ctx context.Context, chunks []vectorstore.Chunk) error
	Nearest(ctx context.Context, embedding []float32, topK int, filter vectorstore.Filter) ([]vectorstore.Match, error)
	Find(ctx context.Context, filter vectorstore.Filter) ([]vectorstore.Chunk, error)
}

type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

type Splitter interface {
	SplitText(text string) ([]string, error)
}

// Archive implements research.SourceRecorder on top of a vector store.
type Archive struct {
	Store    Store
	Embedder Embedder
	Splitter Splitter
	Logger   *slog.Logger
}

var _ research.SourceRecorder = (*Archive)(nil)

func NewArchive(store Store, embedder Embedder, splitter Splitter) *Archive {
	return &Archive{Store: store, Embedder: embedder, Splitter: splitter, Logger: slog.Default()}
}

// Record splits, embeds and stores results under the run, topic and section.
func (a *Archive) Record(ctx context.Context, runID, topic string, section research.Section, results []search.SearchResult) error {
	var texts []string
	var metas []map[string]any
	for _, r := range results {
		parts, err := a.Splitter.SplitText(r.Content)
		if err != nil {
			return fmt.Errorf("split %s: %w", r.URL, err)
		}
		for i, p := range parts {
			texts = append(texts, p)
			metas = append(metas, map[string]any{
				"run_id":  runID,
				"topic":   topic,
				"section": section.Name,
				"url":     r.URL,
				"title":   r.Title,
				"chunk":   i,
			})
		}
	}
	if len(texts) == 0 {
		return nil
	}

	vectors, err := a.Embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed sources: %w", err)
	}
	if len(vectors) != len(texts) {
		return fmt.Errorf("embed sources: got %d vectors for %d chunks", len(vectors), len(texts))
	}

	chunks := make([]vectorstore.Chunk, len(texts))
	for i := range texts {
		chunks[i] = vectorstore.Chunk{Content: texts[i], Metadata: metas[i], Embedding: vectors[i]}
	}
	if err := a.Store.AddChunks(ctx, chunks); err != nil {
		return err
	}

	metrics.ArchivedChunks.Add(float64(len(chunks)))
	a.logger().Info("Archived sources", "run_id", runID, "section", section.Name, "chunks", len(chunks))
	return nil
}

// Query is a semantic search over archived sources.
type Query struct {
	Text   string             `json:"query"`
	Limit  int                `json:"limit,omitempty"`
	Filter vectorstore.Filter `json:"filter,omitempty"`
}

// Search returns the archived chunks closest to q.Text.
func (a *Archive) Search(ctx context.Context, q Query) ([]vectorstore.Match, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, ErrEmptyQuery
	}
	if q.Limit <= 0 {
		q.Limit = defaultLimit
	}

	vec, err := a.Embedder.EmbedQuery(ctx, q.Text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return a.Store.Nearest(ctx, vec, q.Limit, q.Filter)
}

// ForRun returns every chunk archived by one report run.
func (a *Archive) ForRun(ctx context.Context, runID string) ([]vectorstore.Chunk, error) {
	return a.Store.Find(ctx, vectorstore.Filter{"run_id": runID})
}

func (a *Archive) logger() *slog.Logger {
	if a.Logger == nil {
		return slog.Default()
	}
	return a.Logger
}

// FormatMatches renders matches as text for tool output.
func FormatMatches(matches []vectorstore.Match) string {
	if len(matches) == 0 {
		return "No archived sources matched."
	}

	blocks := make([]string, 0, len(matches))
	for _, m := range matches {
		var sb strings.Builder
		fmt.Fprintf(&sb, "[Source]: %v\n[Score]: %.3f\n[Content]: %s", orUnknown(m.Chunk.Metadata["url"]), m.Score, m.Chunk.Content)

		keys := make([]string, 0, len(m.Chunk.Metadata))
		for k := range m.Chunk.Metadata {
			if k != "url" {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&sb, "\n[%s]: %v", k, m.Chunk.Metadata[k])
		}
		blocks = append(blocks, sb.String())
	}
	return strings.Join(blocks, "\n\n")
}

func orUnknown(v any) any {
	if s, ok := v.(string); !ok || s == "" {
		return "unknown"
	}
	return v
}
