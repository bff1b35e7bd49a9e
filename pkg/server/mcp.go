package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mikeboe/deep-research/pkg/config"
	"github.com/mikeboe/deep-research/pkg/search"
	"github.com/mikeboe/deep-research/pkg/sources"
)

const (
	codeParseError     = -32700
	codeBadSession     = -32000
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternal       = -32603

	sessionHeader   = "Mcp-Session-Id"
	protocolVersion = "2024-11-05"
)

// MCPRequest is a JSON-RPC 2.0 request.
type MCPRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type MCPResponse struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      any       `json:"id"`
	Result  any       `json:"result,omitempty"`
	Error   *MCPError `json:"error,omitempty"`
}

type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

const sessionTTL = time.Hour

type mcpSession struct {
	ID       string
	Created  time.Time
	LastSeen time.Time
}

// sessionStore drops sessions idle for longer than ttl. Expired entries are
// swept whenever a session is opened.
type sessionStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[string]*mcpSession
}

func newSessionStore(ttl time.Duration) *sessionStore {
	return &sessionStore{ttl: ttl, now: time.Now, sessions: make(map[string]*mcpSession)}
}

func (s *sessionStore) open() string {
	id := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.sweepLocked(now)
	s.sessions[id] = &mcpSession{ID: id, Created: now, LastSeen: now}
	return id
}

// valid reports whether id is live and refreshes its idle timer.
func (s *sessionStore) valid(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return false
	}
	now := s.now()
	if s.expired(sess, now) {
		delete(s.sessions, id)
		return false
	}
	sess.LastSeen = now
	return true
}

func (s *sessionStore) close(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	return ok
}

func (s *sessionStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *sessionStore) sweepLocked(now time.Time) {
	for id, sess := range s.sessions {
		if s.expired(sess, now) {
			delete(s.sessions, id)
		}
	}
}

func (s *sessionStore) expired(sess *mcpSession, now time.Time) bool {
	return s.ttl > 0 && now.Sub(sess.LastSeen) > s.ttl
}

// MCPDeleteHandler ends the session named by the session header.
func (h *Handler) MCPDeleteHandler(c *gin.Context) {
	sessionID := c.GetHeader(sessionHeader)
	if sessionID == "" || !h.sessions.close(sessionID) {
		c.JSON(http.StatusNotFound, MCPResponse{
			JSONRPC: "2.0",
			Error:   &MCPError{Code: codeBadSession, Message: "Invalid session ID"},
		})
		return
	}
	c.Status(http.StatusNoContent)
}

// MCPHandler serves the tool protocol over a single POST endpoint. Every
// method but initialize needs the session id handed out by initialize.
func (h *Handler) MCPHandler(c *gin.Context) {
	var req MCPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, MCPResponse{
			JSONRPC: "2.0",
			Error:   &MCPError{Code: codeParseError, Message: "Parse error"},
		})
		return
	}

	sessionID := c.GetHeader(sessionHeader)
	if req.Method == "initialize" {
		if sessionID == "" || !h.sessions.valid(sessionID) {
			sessionID = h.sessions.open()
		}
		c.Header(sessionHeader, sessionID)
		mcpResult(c, req.ID, map[string]any{
			"protocolVersion": protocolVersion,
			"serverInfo": map[string]any{
				"name":    "deep-research-mcp",
				"version": "1.0.0",
			},
			"capabilities": map[string]any{
				"tools": map[string]any{},
			},
		})
		return
	}

	if sessionID == "" {
		c.JSON(http.StatusBadRequest, MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &MCPError{Code: codeBadSession, Message: "Bad Request: No valid session ID provided"},
		})
		return
	}
	if !h.sessions.valid(sessionID) {
		c.JSON(http.StatusBadRequest, MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &MCPError{Code: codeBadSession, Message: "Invalid session ID"},
		})
		return
	}

	switch req.Method {
	case "ping":
		mcpResult(c, req.ID, map[string]any{})
	case "tools/list":
		mcpResult(c, req.ID, map[string]any{"tools": h.tools()})
	case "tools/call":
		h.callTool(c, req)
	default:
		mcpError(c, req.ID, codeMethodNotFound, "Method not found")
	}
}

func (h *Handler) tools() []map[string]any {
	tools := []map[string]any{
		{
			"name":        "generate_report",
			"description": "Plan, research and write a multi-section report on a topic.",
			"inputSchema": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"topic": map[string]any{
						"type":        "string",
						"description": "The report topic.",
					},
					"feedback": map[string]any{
						"type":        "string",
						"description": "Optional guidance for the report plan.",
					},
				},
				"required": []string{"topic"},
			},
		},
		{
			"name":        "search_web",
			"description": "Run a single web search through the configured providers.",
			"inputSchema": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "The search query.",
					},
					"queries": map[string]any{
						"type":        "array",
						"items":       map[string]any{"type": "string"},
						"description": "Candidate queries. The first is searched when query is absent.",
					},
					"provider": map[string]any{
						"type":        "string",
						"description": "Provider name. Defaults to the server's search API.",
						"enum":        h.Runtime.Search.Providers(),
					},
				},
			},
		},
	}

	if h.Runtime.Archive != nil {
		tools = append(tools, map[string]any{
			"name":        "search_sources",
			"description": "Semantic search over sources archived by earlier reports.",
			"inputSchema": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "The search query.",
					},
					"limit": map[string]any{
						"type":        "number",
						"description": "The number of results to return.",
						"default":     5,
					},
					"filter": map[string]any{
						"type":        "object",
						"description": "Metadata filter, e.g. {\"run_id\": \"...\"} or {\"$or\": [...]}.",
					},
				},
				"required": []string{"query"},
			},
		})
	}
	return tools
}

func (h *Handler) callTool(c *gin.Context, req MCPRequest) {
	var params struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		mcpError(c, req.ID, codeInvalidParams, "Invalid params")
		return
	}

	ctx := c.Request.Context()
	switch params.Name {
	case "generate_report":
		var args struct {
			Topic    string           `json:"topic"`
			Feedback string           `json:"feedback"`
			Config   config.Overrides `json:"config"`
		}
		if err := json.Unmarshal(params.Arguments, &args); err != nil || strings.TrimSpace(args.Topic) == "" {
			mcpError(c, req.ID, codeInvalidParams, "Invalid arguments: topic is required")
			return
		}
		logger := h.Runtime.logger().With("topic", args.Topic, "via", "mcp")
		report, err := h.Runtime.Engine(args.Config, logger).Run(ctx, strings.TrimSpace(args.Topic), args.Feedback)
		if err != nil {
			mcpError(c, req.ID, codeInternal, err.Error())
			return
		}
		mcpText(c, req.ID, report)

	case "search_web":
		var args struct {
			Query    string   `json:"query"`
			Queries  []string `json:"queries"`
			Provider string   `json:"provider"`
		}
		if err := json.Unmarshal(params.Arguments, &args); err != nil {
			mcpError(c, req.ID, codeInvalidParams, "Invalid arguments")
			return
		}
		provider := args.Provider
		if provider == "" {
			provider = h.Runtime.Defaults.SearchAPI
		}
		// query wins over queries. Only one search runs either way.
		queries := args.Queries
		if args.Query != "" || len(queries) == 0 {
			queries = append([]string{args.Query}, queries...)
		}
		results, err := h.Runtime.Search.SearchFirst(ctx, provider, queries, search.Options(h.Runtime.Defaults.SearchOptions))
		if err != nil {
			mcpError(c, req.ID, codeInternal, err.Error())
			return
		}
		mcpText(c, req.ID, search.Format(results))

	case "search_sources":
		if h.Runtime.Archive == nil {
			mcpError(c, req.ID, codeMethodNotFound, fmt.Sprintf("Tool not found: %s", params.Name))
			return
		}
		var q sources.Query
		if err := json.Unmarshal(params.Arguments, &q); err != nil {
			mcpError(c, req.ID, codeInvalidParams, "Invalid arguments")
			return
		}
		matches, err := h.Runtime.Archive.Search(ctx, q)
		if err != nil {
			mcpError(c, req.ID, codeInternal, err.Error())
			return
		}
		mcpText(c, req.ID, sources.FormatMatches(matches))

	default:
		mcpError(c, req.ID, codeMethodNotFound, fmt.Sprintf("Tool not found: %s", params.Name))
	}
}

func mcpResult(c *gin.Context, id any, result any) {
	c.JSON(http.StatusOK, MCPResponse{JSONRPC: "2.0", ID: id, Result: result})
}

func mcpError(c *gin.Context, id any, code int, msg string) {
	c.JSON(http.StatusOK, MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &MCPError{Code: code, Message: msg},
	})
}

func mcpText(c *gin.Context, id any, text string) {
	mcpResult(c, id, map[string]any{
		"content": []map[string]any{
			{"type": "text", "text": text},
		},
	})
}
