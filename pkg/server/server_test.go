package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikeboe/deep-research/pkg/config"
	"github.com/mikeboe/deep-research/pkg/progress"
	"github.com/mikeboe/deep-research/pkg/search"
)

// fakeGenerator answers by the first marker found in the system prompt.
type fakeGenerator struct {
	replies map[string]string
	err     error
}

func (f fakeGenerator) Invoke(_ context.Context, _, _, systemPrompt, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	for marker, reply := range f.replies {
		if strings.Contains(systemPrompt, marker) {
			return reply, nil
		}
	}
	return "", errors.New("unexpected prompt")
}

func reportReplies() map[string]string {
	return map[string]string{
		"helping to plan a report":               `{"queries": [{"search_query": "overview"}]}`,
		"I want a plan for a report":             `{"sections": [{"name": "Introduction", "description": "Intro", "research": false}, {"name": "Findings", "description": "What we found", "research": true}]}`,
		"crafting targeted web search queries":   `{"queries": [{"search_query": "findings"}]}`,
		"Write one section of a research report": `{"content": "Researched body."}`,
		"synthesizes information":                `{"content": "Opening words."}`,
	}
}

func testRuntime(gen fakeGenerator) *Runtime {
	defaults := config.DefaultReport()
	defaults.SearchAPI = "mock"
	defaults.PlannerProvider = "fake"
	defaults.WriterProvider = "fake"
	return &Runtime{
		Defaults:  defaults,
		Generator: gen,
		Search:    search.NewGateway("").Register("mock", search.Mock{}),
		Logger:    slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)),
	}
}

func testRouter(rt *Runtime) (*gin.Engine, *Handler) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewHandler(rt, nil)
	h.RegisterRoutes(r)
	return r, h
}

func postJSON(t *testing.T, r http.Handler, path string, body any, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestStreamReport(t *testing.T) {
	r, _ := testRouter(testRuntime(fakeGenerator{replies: reportReplies()}))

	w := postJSON(t, r, "/api/deep-research", ReportRequest{Topic: "Solar power"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/x-ndjson", w.Header().Get("Content-Type"))

	var percents []int
	report, err := progress.Collect(progress.NewDecoder(w.Body), func(ev progress.Event) {
		if ev.Percent != nil {
			percents = append(percents, *ev.Percent)
		}
	})
	require.NoError(t, err)
	assert.Equal(t, "# Introduction\n\nOpening words.\n\n# Findings\n\nResearched body.", report)

	require.NotEmpty(t, percents)
	assert.Equal(t, 5, percents[0])
	assert.Equal(t, 100, percents[len(percents)-1])
}

func TestStreamReportBlankTopic(t *testing.T) {
	r, _ := testRouter(testRuntime(fakeGenerator{replies: reportReplies()}))

	w := postJSON(t, r, "/api/deep-research", ReportRequest{Topic: "   "}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "topic is required")
}

func TestStreamReportFailureEndsWithErrorEvent(t *testing.T) {
	r, _ := testRouter(testRuntime(fakeGenerator{err: errors.New("model offline")}))

	w := postJSON(t, r, "/api/deep-research", ReportRequest{Topic: "Solar power"}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	_, err := progress.Collect(progress.NewDecoder(w.Body), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model offline")

	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	var last progress.Event
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &last))
	assert.Equal(t, progress.TypeError, last.Type)
}

func TestReportRoutesNeedDatabase(t *testing.T) {
	r, _ := testRouter(testRuntime(fakeGenerator{}))

	w := postJSON(t, r, "/api/reports", ReportRequest{Topic: "Solar power"}, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListProviders(t *testing.T) {
	r, _ := testRouter(testRuntime(fakeGenerator{}))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/search/providers", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"providers": ["mock"], "override": "", "default": "mock"}`, w.Body.String())
}

func mcpCall(t *testing.T, r http.Handler, session, method string, params any) (*httptest.ResponseRecorder, MCPResponse) {
	t.Helper()
	req := map[string]any{"jsonrpc": "2.0", "id": 1, "method": method}
	if params != nil {
		req["params"] = params
	}
	header := map[string]string{}
	if session != "" {
		header[sessionHeader] = session
	}
	w := postJSON(t, r, "/mcp", req, header)
	var resp MCPResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w, resp
}

func openSession(t *testing.T, r http.Handler) string {
	t.Helper()
	w, resp := mcpCall(t, r, "", "initialize", nil)
	require.Nil(t, resp.Error)
	id := w.Header().Get(sessionHeader)
	require.NotEmpty(t, id)
	return id
}

func TestMCPInitialize(t *testing.T) {
	r, _ := testRouter(testRuntime(fakeGenerator{}))

	w, resp := mcpCall(t, r, "", "initialize", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Nil(t, resp.Error)
	assert.NotEmpty(t, w.Header().Get(sessionHeader))

	result := resp.Result.(map[string]any)
	assert.Equal(t, protocolVersion, result["protocolVersion"])
}

func TestMCPRequiresSession(t *testing.T) {
	r, _ := testRouter(testRuntime(fakeGenerator{}))

	w, resp := mcpCall(t, r, "", "tools/list", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, codeBadSession, resp.Error.Code)

	w, resp = mcpCall(t, r, "not-a-session", "ping", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "Invalid session ID", resp.Error.Message)
}

func TestMCPParseError(t *testing.T) {
	r, _ := testRouter(testRuntime(fakeGenerator{}))

	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "-32700")
}

func TestMCPToolsList(t *testing.T) {
	r, _ := testRouter(testRuntime(fakeGenerator{}))
	session := openSession(t, r)

	_, resp := mcpCall(t, r, session, "tools/list", nil)
	require.Nil(t, resp.Error)

	raw, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	var list struct {
		Tools []struct {
			Name string `json:"name"`
		} `json:"tools"`
	}
	require.NoError(t, json.Unmarshal(raw, &list))

	var names []string
	for _, tool := range list.Tools {
		names = append(names, tool.Name)
	}
	assert.Equal(t, []string{"generate_report", "search_web"}, names)
}

func toolText(t *testing.T, resp MCPResponse) string {
	t.Helper()
	require.Nil(t, resp.Error)
	raw, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	var out struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	require.NoError(t, json.Unmarshal(raw, &out))
	require.Len(t, out.Content, 1)
	return out.Content[0].Text
}

func TestMCPSearchWeb(t *testing.T) {
	r, _ := testRouter(testRuntime(fakeGenerator{}))
	session := openSession(t, r)

	_, resp := mcpCall(t, r, session, "tools/call", map[string]any{
		"name":      "search_web",
		"arguments": map[string]any{"query": "tidal energy"},
	})
	text := toolText(t, resp)
	assert.Contains(t, text, "Search result 1")
	assert.Contains(t, text, "tidal energy - Encyclopedia overview")
}

func TestMCPSearchWebQueries(t *testing.T) {
	r, _ := testRouter(testRuntime(fakeGenerator{}))
	session := openSession(t, r)

	_, resp := mcpCall(t, r, session, "tools/call", map[string]any{
		"name":      "search_web",
		"arguments": map[string]any{"queries": []string{"wave power", "geothermal"}},
	})
	text := toolText(t, resp)
	assert.Contains(t, text, "wave power - Encyclopedia overview")
	assert.NotContains(t, text, "geothermal")

	_, resp = mcpCall(t, r, session, "tools/call", map[string]any{
		"name":      "search_web",
		"arguments": map[string]any{"query": "tidal energy", "queries": []string{"wave power"}},
	})
	text = toolText(t, resp)
	assert.Contains(t, text, "tidal energy - Encyclopedia overview")
	assert.NotContains(t, text, "wave power")
}

func TestMCPDeleteSession(t *testing.T) {
	r, h := testRouter(testRuntime(fakeGenerator{}))
	session := openSession(t, r)
	require.Equal(t, 1, h.sessions.count())

	del := func(id string) int {
		req := httptest.NewRequest(http.MethodDelete, "/mcp", nil)
		if id != "" {
			req.Header.Set(sessionHeader, id)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusNoContent, del(session))
	assert.Zero(t, h.sessions.count())
	assert.Equal(t, http.StatusNotFound, del(session))
	assert.Equal(t, http.StatusNotFound, del(""))

	w, resp := mcpCall(t, r, session, "ping", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "Invalid session ID", resp.Error.Message)
}

func TestSessionStoreExpiresIdleSessions(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store := newSessionStore(time.Minute)
	store.now = func() time.Time { return now }

	idle := store.open()
	active := store.open()

	now = now.Add(45 * time.Second)
	require.True(t, store.valid(active))

	now = now.Add(30 * time.Second)
	assert.False(t, store.valid(idle), "idle past the ttl")
	assert.True(t, store.valid(active), "touched within the ttl")

	now = now.Add(2 * time.Minute)
	store.open()
	assert.Equal(t, 1, store.count(), "open sweeps expired sessions")
	assert.False(t, store.valid(active))
}

func TestMCPGenerateReport(t *testing.T) {
	r, _ := testRouter(testRuntime(fakeGenerator{replies: reportReplies()}))
	session := openSession(t, r)

	_, resp := mcpCall(t, r, session, "tools/call", map[string]any{
		"name":      "generate_report",
		"arguments": map[string]any{"topic": "Solar power"},
	})
	assert.Equal(t, "# Introduction\n\nOpening words.\n\n# Findings\n\nResearched body.", toolText(t, resp))
}

func TestMCPErrors(t *testing.T) {
	r, _ := testRouter(testRuntime(fakeGenerator{}))
	session := openSession(t, r)

	tests := []struct {
		name   string
		method string
		params any
		code   int
	}{
		{name: "unknown method", method: "resources/list", code: codeMethodNotFound},
		{name: "unknown tool", method: "tools/call", params: map[string]any{"name": "nope", "arguments": map[string]any{}}, code: codeMethodNotFound},
		{name: "archive disabled", method: "tools/call", params: map[string]any{"name": "search_sources", "arguments": map[string]any{"query": "x"}}, code: codeMethodNotFound},
		{name: "missing topic", method: "tools/call", params: map[string]any{"name": "generate_report", "arguments": map[string]any{}}, code: codeInvalidParams},
		{name: "bad params", method: "tools/call", params: "oops", code: codeInvalidParams},
		{name: "blank query", method: "tools/call", params: map[string]any{"name": "search_web", "arguments": map[string]any{"query": " "}}, code: codeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := mcpCall(t, r, session, tt.method, tt.params)
			assert.Equal(t, http.StatusOK, w.Code)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestRecordAttrs(t *testing.T) {
	r := slog.NewRecord(time.Now(), slog.LevelInfo, "Section written", 0)
	r.AddAttrs(
		slog.String("section", "History"),
		slog.Any("error", errors.New("boom")),
		slog.Group("search", slog.Int("results", 3)),
	)

	got := recordAttrs([]slog.Attr{slog.String("job_id", "abc")}, []string{"run"}, r)
	assert.Equal(t, map[string]any{
		"job_id":             "abc",
		"run.section":        "History",
		"run.error":          "boom",
		"run.search.results": int64(3),
	}, got)
}

func TestDBLogHandlerScopes(t *testing.T) {
	h := NewDBLogHandler(nil, uuid.Nil, nil)

	scoped := h.WithGroup("run").WithAttrs([]slog.Attr{slog.String("topic", "Solar")}).(*DBLogHandler)
	assert.Equal(t, []string{"run"}, scoped.groups)
	assert.Equal(t, "run.topic", scoped.attrs[0].Key)
	assert.Empty(t, h.groups)
	assert.Same(t, h, h.WithGroup(""))

	assert.True(t, h.Enabled(context.Background(), slog.LevelInfo))
	assert.False(t, h.Enabled(context.Background(), slog.LevelDebug))
}
