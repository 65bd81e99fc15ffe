package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func pathProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Absolute path to the image file",
	}
}

// regionProperties are the two accepted ways to give a rectangle: a
// "x1,y1,x2,y2" string or four integer coordinates.
func regionProperties(props map[string]interface{}) map[string]interface{} {
	props["region"] = map[string]interface{}{
		"type":        "string",
		"description": "Rectangle as \"x1,y1,x2,y2\". Takes precedence over x1..y2",
	}
	for name, desc := range map[string]string{
		"x1": "Left edge X coordinate",
		"y1": "Top edge Y coordinate",
		"x2": "Right edge X coordinate (exclusive)",
		"y2": "Bottom edge Y coordinate (exclusive)",
	} {
		props[name] = map[string]interface{}{
			"type":        "integer",
			"description": desc,
		}
	}
	props["scale"] = map[string]interface{}{
		"type":        "number",
		"description": "Scale of the view the rectangle was drawn on (2.0 for the 2x preview). Default 1.0",
		"default":     1.0,
	}
	return props
}

// GetToolDefinitions returns all available tools with their input schemas.
//
// The tools fall into three groups:
//   - image_load: metadata of an image file
//   - snapsum_recognize: OCR of an image or a region of it, then the digit
//     filter and the sum
//   - snapsum_sum_lines, snapsum_filter_tokens, snapsum_map_region: the
//     numeric and coordinate steps on their own, without OCR
//
// Every schema lists its required arguments under "required"; those names are
// always also present in "properties".
func GetToolDefinitions() []Tool {
	return []Tool{
		{
			Name:        "image_load",
			Description: "Load an image file and return its dimensions, format and size.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
				},
				"required": []string{"path"},
			},
		},
		{
			Name: "snapsum_recognize",
			Description: "Recognize the numbers in an image, or in a rectangle of it, and return them with their sum. " +
				"Only tokens made of digits with at most one decimal point are kept unless signed numbers are enabled in the configuration.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": regionProperties(map[string]interface{}{
					"path": pathProperty(),
				}),
				"required": []string{"path"},
			},
		},
		{
			Name:        "snapsum_sum_lines",
			Description: "Parse each line as a decimal number, skipping blank and non-numeric lines, and return the numbers and their sum.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"text": map[string]interface{}{
						"type":        "string",
						"description": "Newline-separated text",
					},
					"lines": map[string]interface{}{
						"type":        "array",
						"items":       map[string]interface{}{"type": "string"},
						"description": "Lines to parse. Used instead of text when given",
					},
				},
			},
		},
		{
			Name:        "snapsum_filter_tokens",
			Description: "Apply the OCR token filter to raw recognized texts and return the accepted numbers and their sum.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"tokens": map[string]interface{}{
						"type":        "array",
						"items":       map[string]interface{}{"type": "string"},
						"description": "Raw recognized texts",
					},
					"signed": map[string]interface{}{
						"type":        "boolean",
						"description": "Accept signed decimals such as -3.5. Default false",
						"default":     false,
					},
				},
				"required": []string{"tokens"},
			},
		},
		{
			Name:        "snapsum_map_region",
			Description: "Map a rectangle drawn on a scaled view back to source-image pixels. With path, the result is clamped to the image.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": regionProperties(map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Optional image to clamp the result to",
					},
				}),
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
