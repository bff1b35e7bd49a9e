// Package search puts pluggable web search providers behind one gateway.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/mikeboe/deep-research/pkg/metrics"
)

var (
	ErrUnsupportedProvider = errors.New("unsupported search provider")
	ErrEmptyQuery          = errors.New("empty search query")
	// ErrNoQueries means a caller had no non-blank query to run.
	ErrNoQueries = errors.New("no search queries")
)

// SearchError wraps a failed search.
type SearchError struct {
	Provider string
	Query    string
	Err      error
}

func (e *SearchError) Error() string {
	switch {
	case e.Provider != "" && e.Query != "":
		return fmt.Sprintf("search %s %q: %v", e.Provider, e.Query, e.Err)
	case e.Provider != "":
		return fmt.Sprintf("search %s: %v", e.Provider, e.Err)
	default:
		return fmt.Sprintf("search: %v", e.Err)
	}
}

func (e *SearchError) Unwrap() error { return e.Err }

// SearchResult is the normalized form of any provider's result.
type SearchResult struct {
	Title    string         `json:"title"`
	URL      string         `json:"url"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
}

// Provider runs one query against a search backend. Params hold the
// snake_case options the gateway accepted for this provider.
type Provider interface {
	Search(ctx context.Context, query string, params map[string]any) ([]SearchResult, error)
}

// Options are caller-supplied provider options keyed by camelCase name.
type Options map[string]any

// acceptedParams lists the options each provider understands.
var acceptedParams = map[string][]string{
	"exa":        {"maxCharacters", "numResults", "includeDomains", "excludeDomains", "subpages"},
	"tavily":     {"maxResults", "includeDomains", "excludeDomains"},
	"perplexity": {},
	"arxiv":      {"loadMaxDocs", "getFullDocuments", "loadAllAvailableMeta"},
	"pubmed":     {"topKResults", "email", "apiKey", "docContentCharsMax"},
	"linkup":     {"depth"},
	"duckduckgo": {"maxResults"},
	"mock":       {},
}

// FilterParams keeps the options provider accepts, renamed to snake_case.
// Option keys match case-insensitively since config loaders may fold case.
// Anything else is dropped.
func FilterParams(provider string, opts Options) map[string]any {
	folded := make(map[string]any, len(opts))
	for k, v := range opts {
		folded[strings.ToLower(k)] = v
	}

	out := map[string]any{}
	for _, key := range acceptedParams[provider] {
		if v, ok := folded[strings.ToLower(key)]; ok && v != nil {
			out[snakeCase(key)] = v
		}
	}
	return out
}

func snakeCase(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= 'A' && r <= 'Z' {
			b.WriteByte('_')
			b.WriteRune(r + ('a' - 'A'))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Gateway dispatches queries to registered providers.
type Gateway struct {
	// Override, when set, replaces whatever provider the caller asks for.
	Override string
	Logger   *slog.Logger

	mu        sync.RWMutex
	providers map[string]Provider
}

func NewGateway(override string) *Gateway {
	return &Gateway{
		Override:  strings.TrimSpace(override),
		Logger:    slog.Default(),
		providers: make(map[string]Provider),
	}
}

// Register adds or replaces a provider.
func (g *Gateway) Register(name string, p Provider) *Gateway {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.providers[name] = p
	return g
}

// Providers lists registered provider names in sorted order.
func (g *Gateway) Providers() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	names := make([]string, 0, len(g.providers))
	for name := range g.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Effective returns the provider a search for requested would use.
func (g *Gateway) Effective(requested string) string {
	if g.Override != "" {
		return g.Override
	}
	return requested
}

// Search runs query against the effective provider. Provider failures are
// returned unchanged.
func (g *Gateway) Search(ctx context.Context, provider, query string, opts Options) ([]SearchResult, error) {
	name := g.Effective(provider)

	g.mu.RLock()
	p, ok := g.providers[name]
	g.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, name)
	}
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}

	ctx, span := otel.Tracer("deep-research/search").Start(ctx, "search."+name)
	span.SetAttributes(attribute.String("search.query", query))
	defer span.End()

	start := time.Now()
	results, err := p.Search(ctx, query, FilterParams(name, opts))
	metrics.SearchDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.SearchCalls.WithLabelValues(name, "error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		g.Logger.Warn("Search failed", "provider", name, "query", query, "error", err)
		return nil, err
	}

	metrics.SearchCalls.WithLabelValues(name, "ok").Inc()
	span.SetAttributes(attribute.Int("search.results", len(results)))
	g.Logger.Debug("Search complete", "provider", name, "query", query, "results", len(results))
	return results, nil
}

// SearchFirst searches only the first of queries.
func (g *Gateway) SearchFirst(ctx context.Context, provider string, queries []string, opts Options) ([]SearchResult, error) {
	if len(queries) == 0 {
		return nil, ErrEmptyQuery
	}
	return g.Search(ctx, provider, queries[0], opts)
}
