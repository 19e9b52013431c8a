package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/ironsheep/carpart-tools/internal/config"
	"github.com/ironsheep/carpart-tools/internal/imaging"
	"github.com/ironsheep/carpart-tools/internal/nn"
)

// Server handles MCP protocol communication
type Server struct {
	cache   *imaging.ImageCache
	cfg     *config.Config
	logger  *zap.SugaredLogger
	version string

	mu     sync.Mutex
	models map[string]*nn.Regressor
}

// MCPRequest represents an incoming JSON-RPC request
type MCPRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// MCPResponse represents an outgoing JSON-RPC response
type MCPResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *MCPError   `json:"error,omitempty"`
}

// MCPError represents a JSON-RPC error
type MCPError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// JSON-RPC error codes used by the server.
const (
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeToolFailure    = -32000
)

// New creates a server with the default configuration and a no-op logger.
func New() *Server {
	return NewWithConfig(config.Default(), nil, "dev")
}

// NewWithConfig creates a server using cfg for selection mode, ideal areas
// and chart style. A nil logger discards log output.
func NewWithConfig(cfg *config.Config, logger *zap.SugaredLogger, version string) *Server {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Server{
		cache:   imaging.NewBoundedImageCache(cfg.Train.CacheSize),
		cfg:     cfg,
		logger:  logger,
		version: version,
		models:  make(map[string]*nn.Regressor),
	}
}

// Run starts the MCP server, reading from stdin and writing to stdout
func (s *Server) Run() error {
	return s.Serve(context.Background(), os.Stdin, os.Stdout)
}

// Serve reads newline-delimited requests from in and writes responses to
// out until in is exhausted or ctx is cancelled.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	// Increase buffer size for large requests
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	encoder := json.NewEncoder(out)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req MCPRequest
		if err := json.Unmarshal(line, &req); err != nil {
			s.logger.Warnw("failed to parse request", "error", err)
			continue
		}

		resp := s.handleRequest(ctx, &req)
		if resp != nil {
			if err := encoder.Encode(resp); err != nil {
				s.logger.Errorw("failed to encode response", "error", err)
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanner error: %w", err)
	}

	return nil
}

// handleRequest routes requests to appropriate handlers
func (s *Server) handleRequest(ctx context.Context, req *MCPRequest) *MCPResponse {
	s.logger.Debugw("request", "method", req.Method, "id", req.ID)
	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "notifications/initialized":
		// Client acknowledgment, no response needed
		return nil
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(ctx, req)
	case "ping":
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result:  map[string]interface{}{},
		}
	default:
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error: &MCPError{
				Code:    codeMethodNotFound,
				Message: fmt.Sprintf("Method not found: %s", req.Method),
			},
		}
	}
}

// handleInitialize responds to the initialize request
func (s *Server) handleInitialize(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"protocolVersion": "2024-11-05",
			"capabilities": map[string]interface{}{
				"tools": map[string]interface{}{},
			},
			"serverInfo": map[string]interface{}{
				"name":    "carpart-mcp",
				"version": s.version,
			},
		},
	}
}
