package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func pathProperty(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": description,
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Sheet reading
		{
			Name: "omr_response_map",
			Description: "Read a bubble sheet and return the answer of every question. " +
				"Answers are option letters (A, B, ...), U for unanswered or I for an invalid multi-mark row. " +
				"Set detail to also get the per-row bubble coverage.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty("Absolute path to the sheet image"),
					"detail": map[string]interface{}{
						"type":        "boolean",
						"description": "Include every row with its bubbles, coverage and fill decision. Default false",
						"default":     false,
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "omr_detect_bubbles",
			Description: "Detect the answer bubbles on a sheet and return their centres and radii in reading order, without grading them.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty("Absolute path to the sheet image"),
				},
				"required": []string{"path"},
			},
		},
		{
			Name: "omr_annotate",
			Description: "Draw the grading decisions on a sheet and return it as base64-encoded PNG. " +
				"Filled bubbles are outlined blue, empty ones green shading towards blue the closer they came to the fill threshold, rows are boxed purple and numbered. " +
				"Pass question to zoom into a single row.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty("Absolute path to the sheet image"),
					"question": map[string]interface{}{
						"type":        "integer",
						"description": "Optional question number to zoom into",
					},
					"margin": map[string]interface{}{
						"type":        "integer",
						"description": "Padding in pixels around the zoomed row. Default 20",
						"default":     20,
					},
					"scale": map[string]interface{}{
						"type":        "number",
						"description": "Optional scale factor (e.g., 2.0 to double size). Default 1.0",
						"default":     1.0,
					},
				},
				"required": []string{"path"},
			},
		},

		// Grading
		{
			Name:        "omr_grade",
			Description: "Grade one or more sheets against the answer key in service. Each sheet gets its own result; a sheet that cannot be read does not stop the rest.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"paths": map[string]interface{}{
						"type":        "array",
						"description": "Absolute paths to the sheet images",
						"items":       map[string]interface{}{"type": "string"},
					},
				},
				"required": []string{"paths"},
			},
		},
		{
			Name:        "omr_answer_key",
			Description: "Return the answer key in service: where it was read from, when, and its answers.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		{
			Name:        "omr_reload_key",
			Description: "Read a new answer key from a filled-in key sheet and put it in service. The previous key stays in service if the image cannot be read.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty("Absolute path to the answer key image"),
				},
				"required": []string{"path"},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
