package server

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/ironsheep/snapsum/internal/apperr"
	"github.com/ironsheep/snapsum/internal/config"
	"github.com/ironsheep/snapsum/internal/recognition"
)

// createTestImageFile creates a test image file and returns its path
func createTestImageFile(t *testing.T, width, height int, c color.Color) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}

	path := filepath.Join(t.TempDir(), "handler-test.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create file: %v", err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return path
}

// fakeRecognizer records requests and the size of the image each one named,
// then removes temporary files the way the worker does once it accepts them.
type fakeRecognizer struct {
	mu     sync.Mutex
	reqs   []recognition.Request
	sizes  []image.Point
	result recognition.Result
	err    error
}

func (f *fakeRecognizer) Recognize(ctx context.Context, req recognition.Request) (recognition.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	size := image.Point{}
	if file, err := os.Open(req.ImagePath); err == nil {
		if cfg, _, err := image.DecodeConfig(file); err == nil {
			size = image.Pt(cfg.Width, cfg.Height)
		}
		file.Close()
	}
	f.reqs = append(f.reqs, req)
	f.sizes = append(f.sizes, size)

	// A request that fails here was never queued, so the file stays put.
	if f.err != nil {
		return recognition.Result{}, f.err
	}
	if req.Temporary {
		os.Remove(req.ImagePath)
	}

	res := f.result
	res.ID = "fake-1"
	res.ImagePath = req.ImagePath
	return res, nil
}

func newTestServer(t *testing.T, rec Recognizer) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.TempDir = t.TempDir()
	return New(cfg, rec, "test")
}

func callTool(t *testing.T, s *Server, name string, args map[string]interface{}) *MCPResponse {
	t.Helper()

	params := map[string]interface{}{"name": name}
	if args != nil {
		params["arguments"] = args
	}
	paramsJSON, _ := json.Marshal(params)

	resp := s.handleRequest(context.Background(), &MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params:  paramsJSON,
	})
	if resp == nil {
		t.Fatal("handleRequest returned nil")
	}
	return resp
}

// toolText extracts the text content of a tools/call result, either as built
// by the handler or as decoded from the wire.
func toolText(t *testing.T, result interface{}) string {
	t.Helper()

	r, ok := result.(map[string]interface{})
	if !ok {
		t.Fatalf("result should be a map, got %T", result)
	}
	switch content := r["content"].(type) {
	case []map[string]interface{}:
		if len(content) == 1 {
			return content[0]["text"].(string)
		}
	case []interface{}:
		if len(content) == 1 {
			return content[0].(map[string]interface{})["text"].(string)
		}
	}
	t.Fatalf("unexpected content: %v", r["content"])
	return ""
}

func decodeToolResult(t *testing.T, resp *MCPResponse, v interface{}) {
	t.Helper()
	if resp.Error != nil {
		t.Fatalf("Unexpected error: %+v", resp.Error)
	}
	if err := json.Unmarshal([]byte(toolText(t, resp.Result)), v); err != nil {
		t.Fatalf("tool result is not JSON: %v", err)
	}
}

func expectToolError(t *testing.T, resp *MCPResponse, contains string) {
	t.Helper()
	if resp.Error == nil {
		t.Fatalf("Expected error, got result %v", resp.Result)
	}
	if resp.Error.Code != -32000 {
		t.Errorf("Error code: got %d, want -32000", resp.Error.Code)
	}
	if data, _ := resp.Error.Data.(string); !strings.Contains(data, contains) {
		t.Errorf("Error data: got %q, want it to contain %q", data, contains)
	}
}

type numbersPayload struct {
	Numbers []struct {
		Text  string  `json:"text"`
		Value float64 `json:"value"`
	} `json:"numbers"`
	Total     float64 `json:"total"`
	TotalText string  `json:"total_text"`
}

func (p numbersPayload) texts() []string {
	out := make([]string, len(p.Numbers))
	for i, n := range p.Numbers {
		out[i] = n.Text
	}
	return out
}

func TestHandleToolsCall_ImageLoad(t *testing.T) {
	s := newTestServer(t, nil)
	imgPath := createTestImageFile(t, 100, 80, color.RGBA{255, 0, 0, 255})

	var info struct {
		Width  int    `json:"width"`
		Height int    `json:"height"`
		Format string `json:"format"`
	}
	decodeToolResult(t, callTool(t, s, "image_load", map[string]interface{}{"path": imgPath}), &info)

	if info.Width != 100 || info.Height != 80 {
		t.Errorf("dimensions: got %dx%d, want 100x80", info.Width, info.Height)
	}
	if info.Format != "png" {
		t.Errorf("format: got %q, want png", info.Format)
	}
}

func TestHandleToolsCall_NonExistentFile(t *testing.T) {
	s := newTestServer(t, nil)

	resp := callTool(t, s, "image_load", map[string]interface{}{"path": "/nonexistent/image.png"})
	expectToolError(t, resp, "")
}

func TestHandleToolsCall_InvalidTool(t *testing.T) {
	s := newTestServer(t, nil)

	resp := callTool(t, s, "nonexistent_tool", map[string]interface{}{})
	expectToolError(t, resp, "unknown tool")
}

func TestHandleToolsCall_InvalidParams(t *testing.T) {
	s := newTestServer(t, nil)

	resp := s.handleRequest(context.Background(), &MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params:  json.RawMessage(`"not an object"`),
	})

	if resp.Error == nil {
		t.Fatal("Expected error for invalid params")
	}
	if resp.Error.Code != -32602 {
		t.Errorf("Error code: got %d, want -32602", resp.Error.Code)
	}
}

func TestHandleToolsCall_SumLines(t *testing.T) {
	s := newTestServer(t, nil)

	var got numbersPayload
	decodeToolResult(t, callTool(t, s, "snapsum_sum_lines", map[string]interface{}{
		"text": "10\n  20.5 \n\nabc\n-3\n1e5\n",
	}), &got)

	if strings.Join(got.texts(), ",") != "10,20.5,-3" {
		t.Errorf("numbers: got %v", got.texts())
	}
	if got.Total != 27.5 || got.TotalText != "27.5" {
		t.Errorf("total: got %v (%q), want 27.5", got.Total, got.TotalText)
	}
}

func TestHandleToolsCall_SumLines_LinesTakePrecedence(t *testing.T) {
	s := newTestServer(t, nil)

	var got numbersPayload
	decodeToolResult(t, callTool(t, s, "snapsum_sum_lines", map[string]interface{}{
		"text":  "999",
		"lines": []string{"1", "2"},
	}), &got)

	if got.TotalText != "3.0" {
		t.Errorf("total: got %q, want 3.0", got.TotalText)
	}
}

func TestHandleToolsCall_MissingArguments(t *testing.T) {
	s := newTestServer(t, nil)

	var got numbersPayload
	decodeToolResult(t, callTool(t, s, "snapsum_sum_lines", nil), &got)

	if got.Numbers == nil || len(got.Numbers) != 0 {
		t.Errorf("numbers: got %v, want empty list", got.Numbers)
	}
	if got.TotalText != "0.0" {
		t.Errorf("total: got %q, want 0.0", got.TotalText)
	}
}

func TestHandleToolsCall_FilterTokens(t *testing.T) {
	tokens := []string{"20", "1.5", "-3", "abc", "1.2.3", "", "7."}

	tests := []struct {
		name      string
		signed    bool
		wantTexts string
		wantTotal float64
	}{
		{"digits only", false, "20,1.5,7.", 28.5},
		{"signed", true, "20,1.5,-3,7.", 25.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, nil)

			var got numbersPayload
			decodeToolResult(t, callTool(t, s, "snapsum_filter_tokens", map[string]interface{}{
				"tokens": tokens,
				"signed": tt.signed,
			}), &got)

			if strings.Join(got.texts(), ",") != tt.wantTexts {
				t.Errorf("numbers: got %v, want %s", got.texts(), tt.wantTexts)
			}
			if got.Total != tt.wantTotal {
				t.Errorf("total: got %v, want %v", got.Total, tt.wantTotal)
			}
		})
	}
}

type mapRegionPayload struct {
	Source struct {
		X1, Y1, X2, Y2 int
	} `json:"source"`
	Width   int  `json:"width"`
	Height  int  `json:"height"`
	Clamped bool `json:"clamped"`
}

func TestHandleToolsCall_MapRegion(t *testing.T) {
	s := newTestServer(t, nil)

	var got mapRegionPayload
	decodeToolResult(t, callTool(t, s, "snapsum_map_region", map[string]interface{}{
		"region": "181, 81, 21, 41",
		"scale":  2.0,
	}), &got)

	if got.Source.X1 != 10 || got.Source.Y1 != 20 || got.Source.X2 != 90 || got.Source.Y2 != 40 {
		t.Errorf("source: got %+v, want (10,20)-(90,40)", got.Source)
	}
	if got.Width != 80 || got.Height != 20 {
		t.Errorf("size: got %dx%d, want 80x20", got.Width, got.Height)
	}
	if got.Clamped {
		t.Error("no path given, result should not be clamped")
	}
}

func TestHandleToolsCall_MapRegion_Coordinates(t *testing.T) {
	s := newTestServer(t, nil)

	var got mapRegionPayload
	decodeToolResult(t, callTool(t, s, "snapsum_map_region", map[string]interface{}{
		"x1": 10, "y1": 10, "x2": 30, "y2": 50,
	}), &got)

	if got.Width != 20 || got.Height != 40 {
		t.Errorf("size: got %dx%d, want 20x40 at default scale", got.Width, got.Height)
	}
}

func TestHandleToolsCall_MapRegion_ClampsToImage(t *testing.T) {
	s := newTestServer(t, nil)
	imgPath := createTestImageFile(t, 50, 40, color.White)

	var got mapRegionPayload
	decodeToolResult(t, callTool(t, s, "snapsum_map_region", map[string]interface{}{
		"path":   imgPath,
		"region": "20,20,400,400",
		"scale":  2.0,
	}), &got)

	if got.Source.X2 != 50 || got.Source.Y2 != 40 {
		t.Errorf("source: got %+v, want clamped to 50x40", got.Source)
	}
	if !got.Clamped {
		t.Error("clamped should be true")
	}
}

func TestHandleToolsCall_MapRegion_Errors(t *testing.T) {
	tests := []struct {
		name     string
		args     map[string]interface{}
		contains string
	}{
		{"no region", map[string]interface{}{}, "region is required"},
		{"partial coordinates", map[string]interface{}{"x1": 1, "y1": 2}, "x1, y1, x2 and y2"},
		{"malformed region", map[string]interface{}{"region": "1,2,3"}, "x1,y1,x2,y2"},
		{"negative scale", map[string]interface{}{"region": "0,0,10,10", "scale": -1.0}, "scale factor"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, nil)
			expectToolError(t, callTool(t, s, "snapsum_map_region", tt.args), tt.contains)
		})
	}
}

func TestHandleToolsCall_Recognize_WholeImage(t *testing.T) {
	rec := &fakeRecognizer{result: recognition.Result{Success: true, Numbers: []string{"20", "1.5"}, Total: 21.5}}
	s := newTestServer(t, rec)
	imgPath := createTestImageFile(t, 60, 40, color.White)

	var got struct {
		Success   bool     `json:"success"`
		Numbers   []string `json:"numbers"`
		Total     float64  `json:"total"`
		ImagePath string   `json:"image_path"`
	}
	decodeToolResult(t, callTool(t, s, "snapsum_recognize", map[string]interface{}{"path": imgPath}), &got)

	if !got.Success || got.Total != 21.5 || len(got.Numbers) != 2 {
		t.Errorf("result: got %+v", got)
	}
	if len(rec.reqs) != 1 {
		t.Fatalf("Expected 1 request, got %d", len(rec.reqs))
	}
	if rec.reqs[0].ImagePath != imgPath || rec.reqs[0].Temporary {
		t.Errorf("request: got %+v, want the original file, not temporary", rec.reqs[0])
	}
	if _, err := os.Stat(imgPath); err != nil {
		t.Errorf("original image should be kept: %v", err)
	}
}

func TestHandleToolsCall_Recognize_Region(t *testing.T) {
	rec := &fakeRecognizer{result: recognition.Result{Success: true, Numbers: []string{"7"}, Total: 7}}
	s := newTestServer(t, rec)
	imgPath := createTestImageFile(t, 100, 100, color.White)

	var got struct {
		ImagePath string `json:"image_path"`
	}
	decodeToolResult(t, callTool(t, s, "snapsum_recognize", map[string]interface{}{
		"path":   imgPath,
		"region": "20,20,120,80",
		"scale":  2.0,
	}), &got)

	if len(rec.reqs) != 1 {
		t.Fatalf("Expected 1 request, got %d", len(rec.reqs))
	}
	req := rec.reqs[0]
	if !req.Temporary {
		t.Error("cropped region should be handed over as a temporary file")
	}
	if filepath.Dir(req.ImagePath) != s.cfg.TempDir {
		t.Errorf("temp file %s not in configured temp dir %s", req.ImagePath, s.cfg.TempDir)
	}
	if rec.sizes[0] != image.Pt(50, 30) {
		t.Errorf("cropped size: got %v, want (50,30)", rec.sizes[0])
	}
	if got.ImagePath != imgPath {
		t.Errorf("image_path: got %q, want the caller's path %q", got.ImagePath, imgPath)
	}
}

func TestHandleToolsCall_Recognize_Failure(t *testing.T) {
	rec := &fakeRecognizer{result: recognition.Result{
		Success: false,
		Err:     apperr.Recognition(errors.New("engine down"), "OCR failed"),
	}}
	s := newTestServer(t, rec)
	imgPath := createTestImageFile(t, 20, 20, color.White)

	resp := callTool(t, s, "snapsum_recognize", map[string]interface{}{"path": imgPath})
	expectToolError(t, resp, "OCR failed")
}

func TestHandleToolsCall_Recognize_WorkerClosed(t *testing.T) {
	rec := &fakeRecognizer{err: recognition.ErrClosed}
	s := newTestServer(t, rec)
	imgPath := createTestImageFile(t, 20, 20, color.White)

	resp := callTool(t, s, "snapsum_recognize", map[string]interface{}{"path": imgPath})
	expectToolError(t, resp, "closed")
}

func TestHandleToolsCall_Recognize_WorkerClosedRemovesRegion(t *testing.T) {
	rec := &fakeRecognizer{err: recognition.ErrClosed}
	s := newTestServer(t, rec)
	imgPath := createTestImageFile(t, 100, 100, color.White)

	resp := callTool(t, s, "snapsum_recognize", map[string]interface{}{
		"path":   imgPath,
		"region": "0,0,40,40",
	})
	expectToolError(t, resp, "closed")

	if len(rec.reqs) != 1 {
		t.Fatalf("Expected 1 request, got %d", len(rec.reqs))
	}
	if _, err := os.Stat(rec.reqs[0].ImagePath); !os.IsNotExist(err) {
		t.Errorf("region file %s should be removed when the worker rejects it (stat: %v)", rec.reqs[0].ImagePath, err)
	}
	entries, err := os.ReadDir(s.cfg.TempDir)
	if err != nil {
		t.Fatalf("failed to read temp dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("temp dir should be empty, got %d entries", len(entries))
	}
}

func TestHandleToolsCall_Recognize_BadInput(t *testing.T) {
	imgPath := createTestImageFile(t, 20, 20, color.White)

	tests := []struct {
		name     string
		rec      Recognizer
		args     map[string]interface{}
		contains string
	}{
		{"no recognizer", nil, map[string]interface{}{"path": imgPath}, "not available"},
		{"no path", &fakeRecognizer{}, map[string]interface{}{}, "path is required"},
		{"bad region", &fakeRecognizer{}, map[string]interface{}{"path": imgPath, "region": "a,b,c,d"}, "region"},
		{"region outside image", &fakeRecognizer{}, map[string]interface{}{"path": imgPath, "region": "100,100,200,200"}, "zero area"},
		{"missing image", &fakeRecognizer{}, map[string]interface{}{"path": "/nonexistent.png", "region": "0,0,10,10"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, tt.rec)
			expectToolError(t, callTool(t, s, "snapsum_recognize", tt.args), tt.contains)

			if fake, ok := tt.rec.(*fakeRecognizer); ok && len(fake.reqs) != 0 {
				t.Errorf("recognizer should not be called, got %d requests", len(fake.reqs))
			}
		})
	}
}
