package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/colthorp/ordo-cli-go/internal/cache"
	"github.com/colthorp/ordo-cli-go/internal/core"
	appLog "github.com/colthorp/ordo-cli-go/internal/log"
	"github.com/colthorp/ordo-cli-go/internal/ordo"
)

// MCP Protocol types
type MCPRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type MCPResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *MCPError   `json:"error,omitempty"`
}

type MCPError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type MCPToolInfo struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

type MCPServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type MCPInitializeResult struct {
	ProtocolVersion string        `json:"protocolVersion"`
	ServerInfo      MCPServerInfo `json:"serverInfo"`
	Capabilities    interface{}   `json:"capabilities"`
}

// GetDayParams are the parameters for the get_day tool
type GetDayParams struct {
	DateSpec string `json:"date_spec"`
	Raw      bool   `json:"raw"`
}

// GetMonthParams are the parameters for the get_month tool
type GetMonthParams struct {
	MonthSpec string `json:"month_spec"`
	Raw       bool   `json:"raw"`
}

// GetCachedDaysParams are the parameters for the get_cached_days tool
type GetCachedDaysParams struct {
	Year  int      `json:"year"`
	Dates []string `json:"dates"`
}

// mcpServer answers JSON-RPC requests read line by line.
type mcpServer struct {
	manager *cache.Manager
	out     io.Writer
	now     func() time.Time
	mu      sync.Mutex
}

func newMCPServer(manager *cache.Manager, out io.Writer) *mcpServer {
	return &mcpServer{manager: manager, out: out, now: time.Now}
}

// serve reads requests from in until EOF or ctx is cancelled.
func (s *mcpServer) serve(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	// Increase buffer size for large messages
	const maxCapacity = 10 * 1024 * 1024 // 10MB
	buf := make([]byte, 64*1024)
	scanner.Buffer(buf, maxCapacity)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req MCPRequest
		if err := json.Unmarshal(line, &req); err != nil {
			// Without an ID there is nobody to answer
			appLog.Warn("mcp parse error", "err", err)
			continue
		}

		s.handleRequest(ctx, &req)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanner error: %w", err)
	}

	return nil
}

func (s *mcpServer) handleRequest(ctx context.Context, req *MCPRequest) {
	switch req.Method {
	case "initialize":
		s.handleInitialize(req)
	case "initialized", "notifications/initialized":
		// Notifications don't get responses
		return
	case "tools/list":
		s.handleToolsList(req)
	case "tools/call":
		s.handleToolsCall(ctx, req)
	default:
		// Notifications (no ID) are silently ignored per JSON-RPC
		if req.ID != nil {
			s.sendError(req.ID, -32601, "Method not found", req.Method)
		}
	}
}

func (s *mcpServer) handleInitialize(req *MCPRequest) {
	result := MCPInitializeResult{
		ProtocolVersion: "2024-11-05",
		ServerInfo: MCPServerInfo{
			Name:    "ordo-cli",
			Version: core.Version,
		},
		Capabilities: map[string]interface{}{
			"tools": map[string]interface{}{},
		},
	}
	s.sendResponse(req.ID, result)
}

func (s *mcpServer) handleToolsList(req *MCPRequest) {
	rawProp := map[string]interface{}{
		"type":        "boolean",
		"description": "Return the API records instead of summaries",
		"default":     false,
	}
	tools := []MCPToolInfo{
		{
			Name:        "get_day",
			Description: "Get liturgical information for one day: feast, season, rank, color, commemorations and readings.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"date_spec": map[string]interface{}{
						"type":        "string",
						"description": "YYYY-MM-DD, 'today', 'tomorrow', 'yesterday' or relative like d+3",
					},
					"raw": rawProp,
				},
				"required": []string{"date_spec"},
			},
		},
		{
			Name:        "get_month",
			Description: "Get the feasts of every day in a month.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"month_spec": map[string]interface{}{
						"type":        "string",
						"description": "YYYY-MM, 'this-month', 'next-month' or 'last-month'",
					},
					"raw": rawProp,
				},
				"required": []string{"month_spec"},
			},
		},
		{
			Name:        "get_cached_days",
			Description: "Return already-cached day records for a year without contacting the API.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"year":  map[string]interface{}{"type": "integer"},
					"dates": map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
				},
				"required": []string{"year", "dates"},
			},
		},
		{
			Name:        "cache_info",
			Description: "Report which years are cached and how many days each holds.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
	}

	s.sendResponse(req.ID, map[string]interface{}{"tools": tools})
}

func (s *mcpServer) handleToolsCall(ctx context.Context, req *MCPRequest) {
	var params struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}

	if err := json.Unmarshal(req.Params, &params); err != nil {
		s.sendError(req.ID, -32602, "Invalid params", err.Error())
		return
	}
	if len(params.Arguments) == 0 {
		params.Arguments = json.RawMessage("{}")
	}

	switch params.Name {
	case "get_day":
		s.handleGetDay(ctx, req.ID, params.Arguments)
	case "get_month":
		s.handleGetMonth(ctx, req.ID, params.Arguments)
	case "get_cached_days":
		s.handleGetCachedDays(req.ID, params.Arguments)
	case "cache_info":
		s.sendToolResult(req.ID, s.manager.Info())
	default:
		s.sendError(req.ID, -32602, "Unknown tool", params.Name)
	}
}

func (s *mcpServer) handleGetDay(ctx context.Context, id interface{}, argsJSON json.RawMessage) {
	var args GetDayParams
	if err := json.Unmarshal(argsJSON, &args); err != nil {
		s.sendToolError(id, fmt.Sprintf("Invalid arguments: %v", err))
		return
	}

	date, err := core.ParseDateSpec(args.DateSpec, s.now())
	if err != nil {
		s.sendToolResult(id, map[string]interface{}{
			"error":         fmt.Sprintf("Invalid date specification: %s", args.DateSpec),
			"valid_formats": []string{"YYYY-MM-DD", "today", "tomorrow", "yesterday", "d+N", "d-N"},
			"date_spec":     args.DateSpec,
		})
		return
	}

	data, err := s.manager.GetYear(ctx, date.Year())
	if err != nil {
		s.sendToolError(id, fmt.Sprintf("Failed to load %d: %v", date.Year(), err))
		return
	}

	key := core.FormatDate(date)
	rec := data[key]
	result := map[string]interface{}{
		"date":     key,
		"has_data": rec != nil,
	}
	if args.Raw {
		result["record"] = rec
	} else {
		result["day"] = ordo.Summarize(key, rec)
	}

	s.sendToolResult(id, result)
}

func (s *mcpServer) handleGetMonth(ctx context.Context, id interface{}, argsJSON json.RawMessage) {
	var args GetMonthParams
	if err := json.Unmarshal(argsJSON, &args); err != nil {
		s.sendToolError(id, fmt.Sprintf("Invalid arguments: %v", err))
		return
	}

	year, month, err := core.ParseMonthSpec(args.MonthSpec, s.now())
	if err != nil {
		s.sendToolResult(id, map[string]interface{}{
			"error":         err.Error(),
			"valid_formats": []string{"YYYY-MM", "this-month", "next-month", "last-month"},
			"month_spec":    args.MonthSpec,
		})
		return
	}

	data, err := s.manager.GetYear(ctx, year)
	if err != nil {
		s.sendToolError(id, fmt.Sprintf("Failed to load %d: %v", year, err))
		return
	}

	days := make([]interface{}, 0)
	for _, key := range core.MonthDateKeys(year, month) {
		rec, ok := data[key]
		if !ok {
			continue
		}
		if args.Raw {
			days = append(days, rec)
		} else {
			days = append(days, ordo.Summarize(key, rec))
		}
	}

	s.sendToolResult(id, map[string]interface{}{
		"year":       year,
		"month":      int(month),
		"days_count": len(days),
		"days":       days,
	})
}

func (s *mcpServer) handleGetCachedDays(id interface{}, argsJSON json.RawMessage) {
	var args GetCachedDaysParams
	if err := json.Unmarshal(argsJSON, &args); err != nil {
		s.sendToolError(id, fmt.Sprintf("Invalid arguments: %v", err))
		return
	}
	s.sendToolResult(id, s.manager.CachedSlice(args.Year, args.Dates))
}

func (s *mcpServer) write(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		appLog.Error("mcp encode", err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.out, string(data))
}

func (s *mcpServer) sendResponse(id interface{}, result interface{}) {
	s.write(MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Result:  result,
	})
}

func (s *mcpServer) sendError(id interface{}, code int, message, data string) {
	s.write(MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	})
}

func (s *mcpServer) sendToolResult(id interface{}, result interface{}) {
	s.sendResponse(id, map[string]interface{}{
		"content": []map[string]interface{}{
			{
				"type": "text",
				"text": mustMarshal(result),
			},
		},
	})
}

func (s *mcpServer) sendToolError(id interface{}, message string) {
	s.sendResponse(id, map[string]interface{}{
		"content": []map[string]interface{}{
			{
				"type": "text",
				"text": message,
			},
		},
		"isError": true,
	})
}

func mustMarshal(v interface{}) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("error: %v", err)
	}
	return string(data)
}
