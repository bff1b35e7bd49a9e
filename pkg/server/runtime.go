package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/mikeboe/deep-research/pkg/clients"
	"github.com/mikeboe/deep-research/pkg/config"
	"github.com/mikeboe/deep-research/pkg/database"
	"github.com/mikeboe/deep-research/pkg/embeddings"
	"github.com/mikeboe/deep-research/pkg/research"
	"github.com/mikeboe/deep-research/pkg/search"
	"github.com/mikeboe/deep-research/pkg/sources"
	"github.com/mikeboe/deep-research/pkg/splitter"
	"github.com/mikeboe/deep-research/pkg/vectorstore"
)

// Runtime holds the collaborators every report run shares.
type Runtime struct {
	// Defaults is the environment-resolved base configuration. Requests
	// override it field by field.
	Defaults  config.Report
	Generator clients.Generator
	Search    *search.Gateway
	// Archive is nil when the source archive is disabled.
	Archive          *sources.Archive
	Logger           *slog.Logger
	FinalConcurrency int
}

// NewRuntime wires generation, every search provider and, when db is set
// and the archive enabled, the source archive.
func NewRuntime(ctx context.Context, cfg *config.Config, db *database.PostgresDB, logger *slog.Logger) (*Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}

	registry := clients.NewRegistry(cfg.Keys())
	registry.Logger = logger

	gateway := search.NewGateway(cfg.SearchAPI).
		Register("mock", search.Mock{}).
		Register("tavily", search.NewTavily(cfg.TavilyAPIKey)).
		Register("duckduckgo", search.NewDuckDuckGo()).
		Register("arxiv", search.NewArxiv(search.NewPDFReader(cfg.MistralAPIKey)))
	gateway.Logger = logger

	rt := &Runtime{
		Defaults:  config.Resolve(config.DefaultReport(), config.EnvSnapshot(os.Environ()), config.Overrides{}),
		Generator: registry,
		Search:    gateway,
		Logger:    logger,
	}

	if db == nil || !cfg.Archive.Enabled {
		return rt, nil
	}

	ac := cfg.Archive
	if err := db.EnsureSourceTable(ctx, ac.CollectionName, ac.Dimensions); err != nil {
		return nil, fmt.Errorf("prepare source table: %w", err)
	}
	store, err := vectorstore.NewPGVectorStore(db.Pool, ac.CollectionName)
	if err != nil {
		return nil, err
	}
	embedder, err := embeddings.New(ctx, ac.EmbeddingProvider, ac.EmbeddingModel, ac.Dimensions, cfg.GoogleAPIKey, cfg.OpenAIAPIKey)
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}

	rt.Archive = sources.NewArchive(store, embedder, splitter.NewRecursiveCharacterTextSplitter(ac.ChunkSize, ac.ChunkOverlap))
	rt.Archive.Logger = logger
	logger.Info("Source archive enabled", "table", ac.CollectionName, "embedding_model", ac.EmbeddingModel)
	return rt, nil
}

// Engine builds an engine for one run.
func (rt *Runtime) Engine(o config.Overrides, logger *slog.Logger) *research.Engine {
	cfg := config.Resolve(rt.Defaults, nil, o)
	e := research.NewEngine(cfg, rt.Generator, rt.Search)
	if rt.Archive != nil {
		e.Sources = rt.Archive
	}
	if logger == nil {
		logger = rt.logger()
	}
	e.Logger = logger
	e.FinalConcurrency = rt.FinalConcurrency
	return e
}

func (rt *Runtime) logger() *slog.Logger {
	if rt.Logger == nil {
		return slog.Default()
	}
	return rt.Logger
}

// ReportRequest starts a report over HTTP or MCP.
type ReportRequest struct {
	Topic    string           `json:"topic"`
	Feedback string           `json:"feedback,omitempty"`
	Config   config.Overrides `json:"config,omitempty"`
}
