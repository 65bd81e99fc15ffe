package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/snapsum/internal/config"
	"github.com/ironsheep/snapsum/internal/imaging"
	"github.com/ironsheep/snapsum/internal/logging"
	"github.com/ironsheep/snapsum/internal/recognition"
)

// Recognizer runs one recognition and waits for the result.
//
// *recognition.Worker satisfies it. Recognize returns an error only when the
// request could not be run at all (worker closed, ctx done); a failed
// recognition is a Result with Success false.
type Recognizer interface {
	Recognize(ctx context.Context, req recognition.Request) (recognition.Result, error)
}

// Server handles MCP protocol communication
type Server struct {
	cache      *imaging.ImageCache
	cfg        *config.Config
	recognizer Recognizer
	version    string
	log        *logrus.Entry
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

// New creates a new MCP server instance.
//
// Parameters:
//   - cfg: Temp dir and preprocessing settings for region crops. Nil uses
//     config.Default().
//   - rec: The recognizer behind snapsum_recognize. It may be nil, in which
//     case that tool reports that recognition is unavailable and the other
//     tools still work.
//   - version: Reported in serverInfo. Empty reports "dev".
func New(cfg *config.Config, rec Recognizer, version string) *Server {
	if cfg == nil {
		cfg = config.Default()
	}
	if version == "" {
		version = "dev"
	}
	return &Server{
		cache:      imaging.NewImageCache(),
		cfg:        cfg,
		recognizer: rec,
		version:    version,
		log:        logging.For("mcp"),
	}
}

// Serve runs the MCP protocol loop, reading one JSON-RPC request per line
// from r and writing one response per line to w.
//
// Returns:
//   - nil when r reaches EOF (the client closed stdin).
//   - ctx.Err() when ctx is cancelled; this is noticed between requests.
//   - a wrapped scanner error if r fails or a line exceeds 1 MB.
//
// Lines that are not valid JSON are logged and skipped. Notifications get no
// response. Logging goes to stderr, never to w.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	// Increase buffer size for large requests
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	encoder := json.NewEncoder(w)

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
			s.log.WithError(err).Warn("failed to parse request")
			continue
		}

		resp := s.handleRequest(ctx, &req)
		if resp != nil {
			if err := encoder.Encode(resp); err != nil {
				s.log.WithError(err).Error("failed to encode response")
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
	s.log.WithField("method", req.Method).Debug("request")

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
				Code:    -32601,
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
				"name":    "snapsum",
				"version": s.version,
			},
		},
	}
}
