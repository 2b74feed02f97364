package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"path/filepath"

	"github.com/ironsheep/omr-grader/internal/detection"
	"github.com/ironsheep/omr-grader/internal/grading"
	"github.com/ironsheep/omr-grader/internal/imaging"
	"github.com/ironsheep/omr-grader/internal/logger"
	"github.com/ironsheep/omr-grader/internal/omr"
)

// defaultZoomMargin leaves room for the row number drawn above the row.
const defaultZoomMargin = 20

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "omr_grade").
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
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(params.Name, params.Arguments)
	if err != nil {
		s.log.Warning("mcp", "tool failed", logger.Fields{"tool": params.Name, "error": err.Error()})
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
//  1. Unmarshals arguments from JSON
//  2. Applies default values for optional parameters
//  3. Runs the sheet pipeline or consults the answer key
//  4. Returns the result or error
func (s *Server) executeTool(name string, args json.RawMessage) (interface{}, error) {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}

	switch name {
	// Sheet reading
	case "omr_response_map":
		return s.handleResponseMap(args)
	case "omr_detect_bubbles":
		return s.handleDetectBubbles(args)
	case "omr_annotate":
		return s.handleAnnotate(args)

	// Grading
	case "omr_grade":
		return s.handleGrade(args)
	case "omr_answer_key":
		return s.handleAnswerKey()
	case "omr_reload_key":
		return s.handleReloadKey(args)

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
// Panics are suppressed; on marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// analyze runs the pipeline on a cached decode of path. Interactive tools
// tend to look at the same sheet several times in a row.
func (s *Server) analyze(path string) (*omr.Analysis, error) {
	if path == "" {
		return nil, errors.New("path is required")
	}
	img, err := s.cache.Load(path)
	if err != nil {
		return nil, err
	}
	a, err := s.pipeline.AnalyzeImage(img)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return a, nil
}

// === Sheet Reading Handlers ===

type sheetArgs struct {
	Path string `json:"path"`
}

type responseMapArgs struct {
	Path   string `json:"path"`
	Detail bool   `json:"detail"`
}

type responseMapResult struct {
	Path      string            `json:"path"`
	Questions int               `json:"questions"`
	Responses omr.ResponseMap   `json:"responses"`
	Rows      []omr.QuestionRow `json:"rows,omitempty"`
}

func (s *Server) handleResponseMap(args json.RawMessage) (interface{}, error) {
	var a responseMapArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	analysis, err := s.analyze(a.Path)
	if err != nil {
		return nil, err
	}

	res := &responseMapResult{
		Path:      a.Path,
		Questions: len(analysis.Responses),
		Responses: analysis.Responses,
	}
	if a.Detail {
		res.Rows = analysis.Rows
	}
	return res, nil
}

type detectBubblesResult struct {
	Width   int                `json:"width"`
	Height  int                `json:"height"`
	Count   int                `json:"count"`
	Circles []detection.Circle `json:"circles"`
}

func (s *Server) handleDetectBubbles(args json.RawMessage) (interface{}, error) {
	var a sheetArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	analysis, err := s.analyze(a.Path)
	if err != nil {
		return nil, err
	}
	return &detectBubblesResult{
		Width:   analysis.Width,
		Height:  analysis.Height,
		Count:   len(analysis.Circles),
		Circles: analysis.Circles,
	}, nil
}

type annotateArgs struct {
	Path     string  `json:"path"`
	Question int     `json:"question"`
	Margin   *int    `json:"margin"`
	Scale    float64 `json:"scale"`
}

func (s *Server) handleAnnotate(args json.RawMessage) (interface{}, error) {
	var a annotateArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Scale == 0 {
		a.Scale = 1.0
	}
	margin := defaultZoomMargin
	if a.Margin != nil {
		margin = *a.Margin
	}

	analysis, err := s.analyze(a.Path)
	if err != nil {
		return nil, err
	}
	overlay := analysis.Overlay()

	region := overlay.Bounds()
	if a.Question != 0 {
		row, ok := analysis.Row(a.Question)
		if !ok {
			return nil, fmt.Errorf("question %d not found on sheet (%d questions)", a.Question, len(analysis.Responses))
		}
		region = row.Bounds(margin)
	}

	var out image.Image = overlay
	if region != overlay.Bounds() || a.Scale != 1.0 {
		out, err = imaging.Zoom(overlay, region, a.Scale)
		if err != nil {
			return nil, err
		}
	}
	return imaging.EncodePNG(out)
}

// === Grading Handlers ===

type gradeArgs struct {
	Paths []string `json:"paths"`
}

type gradeResult struct {
	Key     string           `json:"key"`
	Results []grading.Result `json:"results"`
}

// handleGrade reads every sheet straight from disk so that a sheet rewritten
// in place between calls is never graded from a stale decode.
func (s *Server) handleGrade(args json.RawMessage) (interface{}, error) {
	var a gradeArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if len(a.Paths) == 0 {
		return nil, errors.New("paths must name at least one sheet")
	}

	key, err := s.keys.Current()
	if err != nil {
		return nil, err
	}

	items := make([]grading.Item, len(a.Paths))
	for i, p := range a.Paths {
		items[i] = grading.Item{Filename: filepath.Base(p), Path: p}
	}

	results := grading.GradeFiles(s.pipeline, key, items)
	s.log.Info("mcp", "sheets graded", logger.Fields{"sheets": len(results), "key": key.Source()})

	return &gradeResult{Key: key.Source(), Results: results}, nil
}

func (s *Server) handleAnswerKey() (interface{}, error) {
	key, err := s.keys.Current()
	if err != nil {
		return nil, err
	}
	return key.Info(), nil
}

func (s *Server) handleReloadKey(args json.RawMessage) (interface{}, error) {
	var a sheetArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, errors.New("path is required")
	}

	key, err := s.keys.Reload(s.pipeline, a.Path)
	if err != nil {
		return nil, err
	}
	s.cache.Evict(a.Path)

	s.log.Info("mcp", "answer key reloaded", logger.Fields{"source": key.Source(), "questions": key.Len()})
	return key.Info(), nil
}
