package server

import (
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ironsheep/omr-grader/internal/detection"
	"github.com/ironsheep/omr-grader/internal/grading"
	"github.com/ironsheep/omr-grader/internal/omr"
)

// Test sheets have three rows of five options in a single column.
const (
	sheetWidth  = 240
	sheetHeight = 160
)

// fixedDetector reports the same circles for every mask.
type fixedDetector []detection.Circle

func (d fixedDetector) Detect(*image.Gray) []detection.Circle {
	return append([]detection.Circle(nil), d...)
}

func sheetCircles() fixedDetector {
	var circles fixedDetector
	for row := 0; row < 3; row++ {
		for opt := 0; opt < 5; opt++ {
			circles = append(circles, detection.Circle{X: 40 + 40*opt, Y: 40 + 40*row, R: 13})
		}
	}
	return circles
}

func newTestPipeline(t *testing.T) *omr.Pipeline {
	t.Helper()
	params := omr.DefaultParams()
	params.Columns = 1
	p, err := omr.NewPipeline(params, omr.WithDetector(sheetCircles()))
	if err != nil {
		t.Fatalf("NewPipeline failed: %v", err)
	}
	return p
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	return New(newTestPipeline(t), grading.NewKeyStore(nil), nil, "test")
}

// writeSheet draws a sheet whose rows have the given option letters filled
// and returns its path. An empty string leaves the row blank.
func writeSheet(t *testing.T, rows ...string) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, sheetWidth, sheetHeight))
	for y := 0; y < sheetHeight; y++ {
		for x := 0; x < sheetWidth; x++ {
			img.Set(x, y, color.White)
		}
	}
	for row, marks := range rows {
		for _, m := range marks {
			cx, cy := 40+40*int(m-'A'), 40+40*row
			for dy := -12; dy <= 12; dy++ {
				for dx := -12; dx <= 12; dx++ {
					if dx*dx+dy*dy <= 144 {
						img.Set(cx+dx, cy+dy, color.Black)
					}
				}
			}
		}
	}

	path := filepath.Join(t.TempDir(), "sheet.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create sheet: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode sheet: %v", err)
	}
	return path
}

func callTool(t *testing.T, s *Server, name string, args interface{}) *MCPResponse {
	t.Helper()

	params := map[string]interface{}{"name": name}
	if args != nil {
		params["arguments"] = args
	}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		t.Fatalf("failed to marshal params: %v", err)
	}

	resp := s.handleRequest(&MCPRequest{
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

// decodeToolResult unmarshals the text content of a successful tool call.
func decodeToolResult(t *testing.T, resp *MCPResponse, v interface{}) {
	t.Helper()

	if resp.Error != nil {
		t.Fatalf("Unexpected error: %+v", resp.Error)
	}
	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatal("Result should be a map")
	}
	content, ok := result["content"].([]map[string]interface{})
	if !ok || len(content) != 1 {
		t.Fatalf("content should hold one item, got %v", result["content"])
	}
	if content[0]["type"] != "text" {
		t.Errorf("content type: got %v, want text", content[0]["type"])
	}
	text, _ := content[0]["text"].(string)
	if err := json.Unmarshal([]byte(text), v); err != nil {
		t.Fatalf("tool result is not JSON: %v\n%s", err, text)
	}
}

func expectToolError(t *testing.T, resp *MCPResponse, code int, contains string) {
	t.Helper()

	if resp.Error == nil {
		t.Fatal("Expected error response")
	}
	if resp.Error.Code != code {
		t.Errorf("Error code: got %d, want %d", resp.Error.Code, code)
	}
	if data, _ := resp.Error.Data.(string); !strings.Contains(data, contains) {
		t.Errorf("Error data: got %q, want it to contain %q", data, contains)
	}
}

func TestHandleToolsCall_ResponseMap(t *testing.T) {
	s := newTestServer(t)
	path := writeSheet(t, "A", "", "AC")

	var got struct {
		Path      string            `json:"path"`
		Questions int               `json:"questions"`
		Responses map[string]string `json:"responses"`
		Rows      []json.RawMessage `json:"rows"`
	}
	decodeToolResult(t, callTool(t, s, "omr_response_map", map[string]interface{}{"path": path}), &got)

	if got.Path != path {
		t.Errorf("path: got %s, want %s", got.Path, path)
	}
	if got.Questions != 3 {
		t.Errorf("questions: got %d, want 3", got.Questions)
	}
	want := map[string]string{"1": "A", "2": "U", "3": "I"}
	for q, sym := range want {
		if got.Responses[q] != sym {
			t.Errorf("question %s: got %q, want %q", q, got.Responses[q], sym)
		}
	}
	if got.Rows != nil {
		t.Errorf("rows should be omitted without detail, got %d", len(got.Rows))
	}
}

func TestHandleToolsCall_ResponseMap_Detail(t *testing.T) {
	s := newTestServer(t)
	path := writeSheet(t, "B", "", "")

	var got struct {
		Rows []struct {
			Question int    `json:"question"`
			Column   int    `json:"column"`
			Symbol   string `json:"symbol"`
			Bubbles  []struct {
				Label    string  `json:"label"`
				Coverage float64 `json:"coverage"`
				Filled   bool    `json:"filled"`
			} `json:"bubbles"`
		} `json:"rows"`
	}
	args := map[string]interface{}{"path": path, "detail": true}
	decodeToolResult(t, callTool(t, s, "omr_response_map", args), &got)

	if len(got.Rows) != 3 {
		t.Fatalf("rows: got %d, want 3", len(got.Rows))
	}
	first := got.Rows[0]
	if first.Question != 1 || first.Column != 1 || first.Symbol != "B" {
		t.Errorf("row 1: got question %d column %d symbol %s", first.Question, first.Column, first.Symbol)
	}
	if len(first.Bubbles) != 5 {
		t.Fatalf("row 1 bubbles: got %d, want 5", len(first.Bubbles))
	}
	if b := first.Bubbles[1]; b.Label != "B" || !b.Filled || b.Coverage <= 0.5 {
		t.Errorf("bubble B: got %+v, want filled with coverage above 0.5", b)
	}
	if b := first.Bubbles[0]; b.Filled || b.Coverage != 0 {
		t.Errorf("bubble A: got %+v, want empty", b)
	}
}

func TestHandleToolsCall_NonExistentFile(t *testing.T) {
	s := newTestServer(t)

	for _, tool := range []string{"omr_response_map", "omr_detect_bubbles", "omr_annotate"} {
		t.Run(tool, func(t *testing.T) {
			resp := callTool(t, s, tool, map[string]interface{}{"path": "/nonexistent/sheet.png"})
			expectToolError(t, resp, -32000, "image unreadable")
		})
	}
}

func TestHandleToolsCall_MissingPath(t *testing.T) {
	s := newTestServer(t)

	for _, tool := range []string{"omr_response_map", "omr_detect_bubbles", "omr_annotate", "omr_reload_key"} {
		t.Run(tool, func(t *testing.T) {
			expectToolError(t, callTool(t, s, tool, nil), -32000, "path is required")
		})
	}
}

func TestHandleToolsCall_DetectBubbles(t *testing.T) {
	s := newTestServer(t)
	path := writeSheet(t)

	var got struct {
		Width   int                `json:"width"`
		Height  int                `json:"height"`
		Count   int                `json:"count"`
		Circles []detection.Circle `json:"circles"`
	}
	decodeToolResult(t, callTool(t, s, "omr_detect_bubbles", map[string]interface{}{"path": path}), &got)

	if got.Width != sheetWidth || got.Height != sheetHeight {
		t.Errorf("dimensions: got %dx%d, want %dx%d", got.Width, got.Height, sheetWidth, sheetHeight)
	}
	if got.Count != 15 || len(got.Circles) != 15 {
		t.Fatalf("count: got %d (%d circles), want 15", got.Count, len(got.Circles))
	}
	if c := got.Circles[0]; c.X != 40 || c.Y != 40 || c.R != 13 {
		t.Errorf("first circle: got %+v, want (40,40) r13", c)
	}
}

func TestHandleToolsCall_DetectBubbles_UsesCache(t *testing.T) {
	s := newTestServer(t)
	path := writeSheet(t)

	for i := 0; i < 3; i++ {
		if resp := callTool(t, s, "omr_detect_bubbles", map[string]interface{}{"path": path}); resp.Error != nil {
			t.Fatalf("call %d: unexpected error: %+v", i, resp.Error)
		}
	}
	if s.cache.Len() != 1 {
		t.Errorf("cache should hold the sheet once, has %d images", s.cache.Len())
	}
}

func TestHandleToolsCall_Annotate(t *testing.T) {
	s := newTestServer(t)
	path := writeSheet(t, "A", "B", "C")

	tests := []struct {
		name          string
		args          map[string]interface{}
		width, height int
	}{
		{"full page", map[string]interface{}{"path": path}, sheetWidth, sheetHeight},
		{"full page scaled", map[string]interface{}{"path": path, "scale": 0.5}, sheetWidth / 2, sheetHeight / 2},
		// Row 2 bubbles span x 27..213 and y 67..93
		{"question zoom", map[string]interface{}{"path": path, "question": 2, "margin": 0}, 187, 27},
		{"question zoom scaled", map[string]interface{}{"path": path, "question": 2, "margin": 0, "scale": 2.0}, 374, 54},
		{"question zoom default margin", map[string]interface{}{"path": path, "question": 1}, 227, 67},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got struct {
				Width       int    `json:"width"`
				Height      int    `json:"height"`
				ImageBase64 string `json:"image_base64"`
				MimeType    string `json:"mime_type"`
			}
			decodeToolResult(t, callTool(t, s, "omr_annotate", tt.args), &got)

			if got.Width != tt.width || got.Height != tt.height {
				t.Errorf("dimensions: got %dx%d, want %dx%d", got.Width, got.Height, tt.width, tt.height)
			}
			if got.MimeType != "image/png" {
				t.Errorf("MimeType: got %s, want image/png", got.MimeType)
			}
			if got.ImageBase64 == "" {
				t.Error("ImageBase64 is empty")
			}
		})
	}
}

func TestHandleToolsCall_Annotate_UnknownQuestion(t *testing.T) {
	s := newTestServer(t)
	path := writeSheet(t)

	resp := callTool(t, s, "omr_annotate", map[string]interface{}{"path": path, "question": 9})
	expectToolError(t, resp, -32000, "question 9 not found")
}

func TestHandleToolsCall_AnswerKey_NoKey(t *testing.T) {
	s := newTestServer(t)
	expectToolError(t, callTool(t, s, "omr_answer_key", nil), -32000, "no answer key loaded")
}

func TestHandleToolsCall_Grade_NoKey(t *testing.T) {
	s := newTestServer(t)
	path := writeSheet(t, "A")

	resp := callTool(t, s, "omr_grade", map[string]interface{}{"paths": []string{path}})
	expectToolError(t, resp, -32000, "no answer key loaded")
}

func TestHandleToolsCall_Grade_NoPaths(t *testing.T) {
	s := newTestServer(t)
	resp := callTool(t, s, "omr_grade", map[string]interface{}{"paths": []string{}})
	expectToolError(t, resp, -32000, "at least one sheet")
}

func TestHandleToolsCall_ReloadAndGrade(t *testing.T) {
	s := newTestServer(t)
	keyPath := writeSheet(t, "A", "B", "C")

	var info struct {
		Source    string            `json:"source"`
		Questions int               `json:"questions"`
		Answers   map[string]string `json:"answers"`
	}
	decodeToolResult(t, callTool(t, s, "omr_reload_key", map[string]interface{}{"path": keyPath}), &info)
	if info.Source != keyPath || info.Questions != 3 || info.Answers["3"] != "C" {
		t.Fatalf("reloaded key: got %+v", info)
	}

	decodeToolResult(t, callTool(t, s, "omr_answer_key", nil), &info)
	if info.Questions != 3 || info.Answers["1"] != "A" {
		t.Errorf("answer key: got %+v", info)
	}

	sheet := writeSheet(t, "A", "", "AC")
	var got struct {
		Key     string `json:"key"`
		Results []struct {
			Filename   string  `json:"filename"`
			Total      int     `json:"total"`
			Correct    int     `json:"correct"`
			Incorrect  int     `json:"incorrect"`
			Unanswered int     `json:"unanswered"`
			Ambiguous  int     `json:"ambiguous"`
			Percentage float64 `json:"percentage"`
			Error      string  `json:"error"`
			Code       string  `json:"code"`
		} `json:"results"`
	}
	args := map[string]interface{}{"paths": []string{sheet, "/nonexistent/other.png"}}
	decodeToolResult(t, callTool(t, s, "omr_grade", args), &got)

	if got.Key != keyPath {
		t.Errorf("key: got %s, want %s", got.Key, keyPath)
	}
	if len(got.Results) != 2 {
		t.Fatalf("results: got %d, want 2", len(got.Results))
	}

	r := got.Results[0]
	if r.Filename != "sheet.png" || r.Error != "" {
		t.Errorf("first result: got %+v", r)
	}
	if r.Total != 3 || r.Correct != 1 || r.Incorrect != 1 || r.Unanswered != 1 || r.Ambiguous != 1 {
		t.Errorf("first summary: got %+v, want 3 total, 1 correct, 1 incorrect, 1 unanswered, 1 ambiguous", r)
	}
	if r.Percentage != 50 {
		t.Errorf("percentage: got %v, want 50", r.Percentage)
	}

	if f := got.Results[1]; f.Code != grading.CodeImageUnreadable || f.Filename != "other.png" {
		t.Errorf("second result: got %+v, want %s for other.png", f, grading.CodeImageUnreadable)
	}
}

func TestHandleToolsCall_ReloadKey_FailureKeepsKey(t *testing.T) {
	s := newTestServer(t)
	keyPath := writeSheet(t, "D", "E", "A")

	if resp := callTool(t, s, "omr_reload_key", map[string]interface{}{"path": keyPath}); resp.Error != nil {
		t.Fatalf("first reload failed: %+v", resp.Error)
	}

	resp := callTool(t, s, "omr_reload_key", map[string]interface{}{"path": "/nonexistent/key.png"})
	expectToolError(t, resp, -32000, "image unreadable")

	key, err := s.keys.Current()
	if err != nil {
		t.Fatalf("key should still be in service: %v", err)
	}
	if key.Source() != keyPath {
		t.Errorf("key source: got %s, want %s", key.Source(), keyPath)
	}
}

func TestHandleToolsCall_InvalidTool(t *testing.T) {
	s := newTestServer(t)
	expectToolError(t, callTool(t, s, "nonexistent_tool", nil), -32000, "unknown tool")
}

func TestHandleToolsCall_InvalidParams(t *testing.T) {
	s := newTestServer(t)
	req := &MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params:  json.RawMessage(`{invalid json}`),
	}

	resp := s.handleRequest(req)

	if resp.Error == nil {
		t.Fatal("Expected error for invalid params")
	}
	if resp.Error.Code != -32602 {
		t.Errorf("Error code: got %d, want -32602", resp.Error.Code)
	}
}

func TestExecuteTool_InvalidJSON(t *testing.T) {
	s := newTestServer(t)

	for _, tool := range []string{"omr_response_map", "omr_detect_bubbles", "omr_annotate", "omr_grade", "omr_reload_key"} {
		t.Run(tool, func(t *testing.T) {
			if _, err := s.executeTool(tool, json.RawMessage(`{"path": 42, "paths": "x"}`)); err == nil {
				t.Error("expected an error for mistyped arguments")
			}
		})
	}
}

func TestExecuteTool_AllToolsDispatch(t *testing.T) {
	s := newTestServer(t)

	for _, tool := range GetToolDefinitions() {
		t.Run(tool.Name, func(t *testing.T) {
			_, err := s.executeTool(tool.Name, nil)
			if err != nil && strings.Contains(err.Error(), "unknown tool") {
				t.Errorf("tool %s is listed but not dispatched", tool.Name)
			}
		})
	}
}
