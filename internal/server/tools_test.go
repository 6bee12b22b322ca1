package server

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func toolsByName() map[string]Tool {
	toolMap := make(map[string]Tool)
	for _, tool := range GetToolDefinitions() {
		toolMap[tool.Name] = tool
	}
	return toolMap
}

func TestGetToolDefinitions(t *testing.T) {
	expectedTools := []string{
		"image_load",
		"image_dimensions",
		"hough_detect_circles",
		"hough_edge_map",
		"hough_candidates",
		"hough_overlay",
		"hough_default_config",
	}

	toolMap := toolsByName()
	assert.Len(t, toolMap, len(expectedTools))
	for _, name := range expectedTools {
		assert.Contains(t, toolMap, name)
	}
}

func TestToolDefinitions_Structure(t *testing.T) {
	for _, tool := range GetToolDefinitions() {
		t.Run(tool.Name, func(t *testing.T) {
			assert.NotEmpty(t, tool.Description)
			assert.Equal(t, "object", tool.InputSchema["type"])
			assert.IsType(t, map[string]interface{}{}, tool.InputSchema["properties"])

			// Definitions are sent to clients as JSON.
			_, err := json.Marshal(tool)
			assert.NoError(t, err)
		})
	}
}

func TestToolDefinitions_RequiredPath(t *testing.T) {
	toolMap := toolsByName()
	for name, tool := range toolMap {
		if name == "hough_default_config" {
			continue
		}

		t.Run(name, func(t *testing.T) {
			required, ok := tool.InputSchema["required"].([]string)
			require.True(t, ok, "required should be a string slice")
			assert.Contains(t, required, "path")
		})
	}
}

func TestToolDefinitions_DetectorTools(t *testing.T) {
	toolMap := toolsByName()
	for _, name := range []string{"hough_detect_circles", "hough_edge_map", "hough_candidates", "hough_overlay"} {
		props := toolMap[name].InputSchema["properties"].(map[string]interface{})
		assert.Contains(t, props, "config", name)
		assert.Contains(t, props, "config_path", name)
	}

	for _, name := range []string{"hough_detect_circles", "hough_overlay"} {
		props := toolMap[name].InputSchema["properties"].(map[string]interface{})
		nb, ok := props["nb_circles"].(map[string]interface{})
		require.True(t, ok, "%s: nb_circles not found", name)
		assert.Equal(t, -1, nb["default"], name)
	}
}

func TestHandleToolsList(t *testing.T) {
	s := New()
	resp := s.handleToolsList(&MCPRequest{JSONRPC: "2.0", ID: 1})

	require.NotNil(t, resp)
	require.Nil(t, resp.Error)

	result, ok := resp.Result.(map[string]interface{})
	require.True(t, ok, "result should be a map")
	toolsList, ok := result["tools"].([]Tool)
	require.True(t, ok, "tools should be a slice of Tool")
	assert.Len(t, toolsList, len(GetToolDefinitions()))
}
