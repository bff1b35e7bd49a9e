package search

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

type arxivEntry struct {
	Title     string      `xml:"title"`
	Summary   string      `xml:"summary"`
	Published string      `xml:"published"`
	ID        string      `xml:"id"`
	Authors   []string    `xml:"author>name"`
	Link      []arxivLink `xml:"link"`
}

type arxivLink struct {
	Href string `xml:"href,attr"`
	Type string `xml:"type,attr"`
}

type arxivFeed struct {
	XMLName xml.Name     `xml:"feed"`
	Entry   []arxivEntry `xml:"entry"`
}

// Arxiv queries the arXiv export API. With get_full_documents set and a
// PDF reader configured, result content is the OCR text of the paper.
type Arxiv struct {
	Endpoint string
	PDF      *PDFReader
	client   *http.Client
}

func NewArxiv(pdf *PDFReader) *Arxiv {
	return &Arxiv{
		Endpoint: "https://export.arxiv.org/api/query",
		PDF:      pdf,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (a *Arxiv) Search(ctx context.Context, query string, params map[string]any) ([]SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, &SearchError{Provider: "arxiv", Err: ErrEmptyQuery}
	}

	maxResults := 5
	if n, ok := intParam(params["load_max_docs"]); ok && n > 0 {
		maxResults = n
	}
	fullDocs, _ := params["get_full_documents"].(bool)
	allMeta, _ := params["load_all_available_meta"].(bool)

	q := url.Values{}
	q.Add("search_query", query)
	q.Add("max_results", strconv.Itoa(maxResults))
	q.Add("start", "0")
	apiURL := a.Endpoint + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, &SearchError{Provider: "arxiv", Query: query, Err: err}
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, &SearchError{Provider: "arxiv", Query: query, Err: fmt.Errorf("failed to make API request: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &SearchError{Provider: "arxiv", Query: query, Err: fmt.Errorf("failed to read response body: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &SearchError{Provider: "arxiv", Query: query, Err: fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))}
	}

	var feed arxivFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, &SearchError{Provider: "arxiv", Query: query, Err: fmt.Errorf("failed to unmarshal XML: %w", err)}
	}

	raw := make([]map[string]any, 0, len(feed.Entry))
	for _, entry := range feed.Entry {
		pdfLink := ""
		for _, link := range entry.Link {
			if link.Type == "application/pdf" {
				pdfLink = link.Href
				break
			}
		}

		link := pdfLink
		if link == "" {
			link = entry.ID
		}

		content := strings.TrimSpace(entry.Summary)
		if fullDocs && a.PDF != nil && pdfLink != "" {
			text, err := a.PDF.Read(ctx, pdfLink)
			if err != nil {
				slog.Warn("Failed to read PDF, using summary", "url", pdfLink, "error", err)
			} else {
				content = text
			}
		}

		meta := map[string]any{
			"published_date": entry.Published,
			"source":         "arxiv",
		}
		if allMeta {
			meta["authors"] = entry.Authors
			meta["entry_id"] = entry.ID
			meta["pdf_url"] = pdfLink
		}

		raw = append(raw, map[string]any{
			"title":    strings.Join(strings.Fields(entry.Title), " "),
			"url":      link,
			"content":  content,
			"metadata": meta,
		})
	}
	return Normalize(raw), nil
}
