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

// configProperties are shared by every tool running the detector.
func configProperties() map[string]interface{} {
	return map[string]interface{}{
		"config": map[string]interface{}{
			"type": "object",
			"description": "Partial detector configuration overlaid on the defaults (or on config_path). " +
				"Fields use the configuration file names, e.g. {\"radiusLimits\": [10, 80], \"centerThresh\": 30}",
		},
		"config_path": map[string]interface{}{
			"type":        "string",
			"description": "Optional path to a JSON configuration file",
		},
	}
}

func withConfig(props map[string]interface{}) map[string]interface{} {
	for k, v := range configProperties() {
		props[k] = v
	}
	return props
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Basic Image Information
		{
			Name:        "image_load",
			Description: "Load an image file and return its dimensions and format. The image stays cached for subsequent operations.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "image_dimensions",
			Description: "Get the width and height of an image file.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
				},
				"required": []string{"path"},
			},
		},

		// Circle Detection
		{
			Name: "hough_detect_circles",
			Description: "Detect circles with a gradient-based circle Hough transform. Returns circles sorted by votes, " +
				"each with center (x = column, y = row), radius, votes and probability.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": withConfig(map[string]interface{}{
					"path": pathProperty(),
					"nb_circles": map[string]interface{}{
						"type":        "integer",
						"description": "Maximum number of circles to return. Negative returns all. Default -1",
						"default":     -1,
					},
				}),
				"required": []string{"path"},
			},
		},
		{
			Name:        "hough_edge_map",
			Description: "Compute the filtered edge map used for voting and return it as base64-encoded PNG, with the edge count and Canny thresholds.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": withConfig(map[string]interface{}{
					"path": pathProperty(),
				}),
				"required": []string{"path"},
			},
		},
		{
			Name:        "hough_candidates",
			Description: "Run detection and return the intermediate center candidates and circle candidates before merging.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": withConfig(map[string]interface{}{
					"path": pathProperty(),
				}),
				"required": []string{"path"},
			},
		},
		{
			Name:        "hough_overlay",
			Description: "Detect circles and draw them over the image. Returns base64-encoded PNG.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": withConfig(map[string]interface{}{
					"path": pathProperty(),
					"nb_circles": map[string]interface{}{
						"type":        "integer",
						"description": "Maximum number of circles to draw. Negative draws all. Default -1",
						"default":     -1,
					},
					"color": map[string]interface{}{
						"type":        "string",
						"description": "Stroke color as #RRGGBB. Default: one hue per circle",
					},
					"labels": map[string]interface{}{
						"type":        "boolean",
						"description": "Draw the rank of each circle at its center",
						"default":     false,
					},
				}),
				"required": []string{"path"},
			},
		},
		{
			Name:        "hough_default_config",
			Description: "Return the default detector configuration as a JSON document.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
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
