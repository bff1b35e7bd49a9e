package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type ocrPage struct {
	Index    int    `json:"index"`
	Markdown string `json:"markdown"`
}

type ocrResponse struct {
	Pages []ocrPage `json:"pages"`
}

// PDFReader extracts the text of a remote PDF with the Mistral OCR API.
type PDFReader struct {
	APIKey   string
	Endpoint string
	client   *http.Client
}

// NewPDFReader returns nil when apiKey is empty, which disables full-text
// retrieval.
func NewPDFReader(apiKey string) *PDFReader {
	if apiKey == "" {
		return nil
	}
	return &PDFReader{
		APIKey:   apiKey,
		Endpoint: "https://api.mistral.ai/v1/ocr",
		client:   &http.Client{Timeout: 2 * time.Minute},
	}
}

// Read returns the markdown of every page of the PDF at docURL.
func (p *PDFReader) Read(ctx context.Context, docURL string) (string, error) {
	docURL = strings.Replace(docURL, "http://", "https://", 1)

	reqBody := map[string]any{
		"model": "mistral-ocr-latest",
		"document": map[string]string{
			"type":         "document_url",
			"document_url": docURL,
		},
	}
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.Endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to make API request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("OCR request failed with status %s: %s", resp.Status, string(body))
	}

	var ocr ocrResponse
	if err := json.Unmarshal(body, &ocr); err != nil {
		return "", fmt.Errorf("failed to unmarshal OCR response: %w", err)
	}

	var b strings.Builder
	for _, page := range ocr.Pages {
		fmt.Fprintf(&b, "- Page %d -\n%s\n\n", page.Index, page.Markdown)
	}
	return strings.TrimSpace(b.String()), nil
}
