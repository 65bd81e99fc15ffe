package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"os"
	"strings"

	"github.com/ironsheep/snapsum/internal/imaging"
	"github.com/ironsheep/snapsum/internal/numeric"
	"github.com/ironsheep/snapsum/internal/recognition"
	"github.com/ironsheep/snapsum/internal/selection"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "image_load", "snapsum_recognize").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		s.log.WithError(err).WithField("tool", params.Name).Warn("tool failed")
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
//
// Each tool handler:
//  1. Unmarshals arguments from JSON (missing arguments decode as {})
//  2. Applies default values for optional parameters such as scale
//  3. Loads and crops images through the cache as needed
//  4. Calls the numeric, imaging or recognition function behind the tool
//  5. Returns the result or error
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}

	switch name {
	case "image_load":
		return s.handleImageLoad(args)
	case "snapsum_recognize":
		return s.handleRecognize(ctx, args)
	case "snapsum_sum_lines":
		return s.handleSumLines(args)
	case "snapsum_filter_tokens":
		return s.handleFilterTokens(args)
	case "snapsum_map_region":
		return s.handleMapRegion(args)
	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// regionArgs is shared by the tools that take a rectangle.
type regionArgs struct {
	Region string  `json:"region"`
	X1     *int    `json:"x1"`
	Y1     *int    `json:"y1"`
	X2     *int    `json:"x2"`
	Y2     *int    `json:"y2"`
	Scale  float64 `json:"scale"`
}

// rect returns the requested rectangle, or ok=false when none was given.
// A partial set of coordinates is an error.
func (a regionArgs) rect() (r selection.Rect, ok bool, err error) {
	if a.Region != "" {
		r, err = selection.ParseRect(a.Region)
		return r, err == nil, err
	}

	set := 0
	for _, p := range []*int{a.X1, a.Y1, a.X2, a.Y2} {
		if p != nil {
			set++
		}
	}
	switch set {
	case 0:
		return selection.Rect{}, false, nil
	case 4:
		return selection.Rect{X1: *a.X1, Y1: *a.Y1, X2: *a.X2, Y2: *a.Y2}.Normalize(), true, nil
	}
	return selection.Rect{}, false, errors.New("region needs all of x1, y1, x2 and y2")
}

func (a regionArgs) scale() float64 {
	if a.Scale == 0 {
		return 1.0
	}
	return a.Scale
}

// numbersResult is what the numeric tools return.
type numbersResult struct {
	// Numbers are the accepted values in input order.
	Numbers []numeric.Number `json:"numbers"`

	// Total is their sum; TotalText is the same value as shown in the GUI
	// (one decimal place at least, e.g. "30.0").
	Total     float64 `json:"total"`
	TotalText string  `json:"total_text"`
}

func newNumbersResult(numbers []numeric.Number) numbersResult {
	total := numeric.Sum(numeric.Values(numbers))
	return numbersResult{
		Numbers:   numbers,
		Total:     total,
		TotalText: numeric.FormatTotal(total),
	}
}

// === Image Handlers ===

type imageLoadArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleImageLoad(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return imaging.LoadImageInfo(s.cache, a.Path)
}

type recognizeArgs struct {
	Path string `json:"path"`
	regionArgs
}

// handleRecognize recognizes the numbers in an image.
//
// Without a region the file is recognized in place. With a region, the
// rectangle is mapped from the caller's view through scale, clamped to the
// image, cropped (and preprocessed if configured) into a temp PNG in the
// configured temp dir, and handed to the worker, which deletes it. If the
// worker refuses the request the temp file is removed here.
//
// An unsuccessful recognition is returned as an error, so the client sees a
// -32000 response carrying the message.
func (s *Server) handleRecognize(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a recognizeArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if s.recognizer == nil {
		return nil, errors.New("recognition is not available in this server")
	}
	if a.Path == "" {
		return nil, errors.New("path is required")
	}

	r, hasRegion, err := a.rect()
	if err != nil {
		return nil, err
	}

	req := recognition.Request{ImagePath: a.Path}
	if hasRegion {
		img, err := s.cache.Load(a.Path)
		if err != nil {
			return nil, err
		}
		out, mapped, err := imaging.ExtractRegion(img, r, a.scale(), s.cfg.Preprocess)
		if err != nil {
			return nil, err
		}
		path, err := imaging.SaveTempPNG(out, s.cfg.TempDir, "mcp-region")
		if err != nil {
			return nil, err
		}
		s.log.WithField("region", mapped.String()).Debug("region cropped")
		req = recognition.Request{ImagePath: path, Temporary: true}
	}

	res, err := s.recognizer.Recognize(ctx, req)
	if err != nil {
		if req.Temporary {
			// Not queued, or abandoned; the worker tolerates a missing file.
			if rmErr := os.Remove(req.ImagePath); rmErr != nil && !os.IsNotExist(rmErr) {
				s.log.WithError(rmErr).Warn("failed to delete region image")
			}
		}
		return nil, err
	}
	if !res.Success {
		if res.Err == nil {
			return nil, errors.New("recognition failed")
		}
		return nil, res.Err
	}
	if hasRegion {
		// The temp file is gone by now; report the image the caller named.
		res.ImagePath = a.Path
	}
	return res, nil
}

// === Numeric Handlers ===

type sumLinesArgs struct {
	Text  string   `json:"text"`
	Lines []string `json:"lines"`
}

func (s *Server) handleSumLines(args json.RawMessage) (interface{}, error) {
	var a sumLinesArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	lines := a.Lines
	if lines == nil {
		lines = strings.Split(a.Text, "\n")
	}
	return newNumbersResult(numeric.ExtractNumbers(lines)), nil
}

type filterTokensArgs struct {
	Tokens []string `json:"tokens"`
	Signed bool     `json:"signed"`
}

func (s *Server) handleFilterTokens(args json.RawMessage) (interface{}, error) {
	var a filterTokensArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Signed {
		return newNumbersResult(numeric.ExtractNumbers(a.Tokens)), nil
	}
	return newNumbersResult(numeric.FilterDigitTokens(a.Tokens)), nil
}

// === Region Handlers ===

type mapRegionArgs struct {
	Path string `json:"path"`
	regionArgs
}

type mapRegionResult struct {
	Display selection.Rect `json:"display"`
	Source  selection.Rect `json:"source"`
	Width   int            `json:"width"`
	Height  int            `json:"height"`
	Clamped bool           `json:"clamped"`
}

func (s *Server) handleMapRegion(args json.RawMessage) (interface{}, error) {
	var a mapRegionArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}

	r, ok, err := a.rect()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.New("region is required")
	}

	mapped, err := selection.MapToSource(r, a.scale())
	if err != nil {
		return nil, err
	}

	result := mapRegionResult{Display: r, Source: mapped}
	if a.Path != "" {
		img, err := s.cache.Load(a.Path)
		if err != nil {
			return nil, err
		}
		b := img.Bounds()
		clamped := selection.Clamp(mapped, image.Rect(0, 0, b.Dx(), b.Dy()))
		result.Clamped = clamped != mapped
		result.Source = clamped
	}
	result.Width = result.Source.Dx()
	result.Height = result.Source.Dy()
	return result, nil
}
