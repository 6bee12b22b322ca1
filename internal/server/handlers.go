package server

import (
	"encoding/json"
	"fmt"

	"github.com/ironsheep/hough-circles-mcp/internal/detection"
	"github.com/ironsheep/hough-circles-mcp/internal/imaging"
	"github.com/ironsheep/hough-circles-mcp/internal/logging"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "image_load", "hough_detect_circles").
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
		s.logger.Warn().Str("tool", params.Name).Err(err).Msg("tool execution failed")
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
func (s *Server) executeTool(name string, args json.RawMessage) (interface{}, error) {
	switch name {
	// Basic Image Information
	case "image_load":
		return s.handleImageLoad(args)
	case "image_dimensions":
		return s.handleImageDimensions(args)

	// Circle Detection
	case "hough_detect_circles":
		return s.handleHoughDetectCircles(args)
	case "hough_edge_map":
		return s.handleHoughEdgeMap(args)
	case "hough_candidates":
		return s.handleHoughCandidates(args)
	case "hough_overlay":
		return s.handleHoughOverlay(args)
	case "hough_default_config":
		return detection.DefaultParams(), nil

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

// unmarshalArgs decodes tool arguments, accepting a missing argument object.
func unmarshalArgs(args json.RawMessage, v interface{}) error {
	if len(args) == 0 || string(args) == "null" {
		return nil
	}
	return json.Unmarshal(args, v)
}

// === Basic Image Information Handlers ===

type imageLoadArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleImageLoad(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	return imaging.LoadImageInfo(s.cache, a.Path)
}

func (s *Server) handleImageDimensions(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	return imaging.GetDimensions(s.cache, a.Path)
}

// === Circle Detection Handlers ===

// detectionArgs are common to every tool running the detector.
type detectionArgs struct {
	Path       string          `json:"path"`
	Config     json.RawMessage `json:"config,omitempty"`
	ConfigPath string          `json:"config_path,omitempty"`
}

// params resolves the configuration: defaults, then the file at ConfigPath,
// then the inline Config object.
func (a detectionArgs) params() (detection.Params, error) {
	p := detection.DefaultParams()
	if a.ConfigPath != "" {
		loaded, err := detection.LoadParams(a.ConfigPath)
		if err != nil {
			return detection.Params{}, err
		}
		p = loaded
	}
	if len(a.Config) > 0 && string(a.Config) != "null" {
		if err := json.Unmarshal(a.Config, &p); err != nil {
			return detection.Params{}, fmt.Errorf("invalid config: %w", err)
		}
	}
	return p, nil
}

// runDetector loads the image at a.Path and runs a fresh detector on it,
// keeping the nbCircles strongest circles (all when negative).
func (s *Server) runDetector(a detectionArgs, nbCircles int) (*detection.Detector, []detection.Circle, error) {
	if a.Path == "" {
		return nil, nil, fmt.Errorf("path is required")
	}
	params, err := a.params()
	if err != nil {
		return nil, nil, err
	}
	gray, err := s.cache.LoadGray(a.Path)
	if err != nil {
		return nil, nil, err
	}

	logger := logging.Component(s.logger, "detection").With().Str("path", a.Path).Logger()
	d, err := detection.New(params, detection.WithLogger(logger))
	if err != nil {
		return nil, nil, err
	}
	circles, err := d.DetectN(gray, nbCircles)
	if err != nil {
		return nil, nil, err
	}
	return d, circles, nil
}

type houghDetectArgs struct {
	detectionArgs
	NbCircles *int `json:"nb_circles,omitempty"`
}

func (a houghDetectArgs) limit() int {
	if a.NbCircles == nil {
		return -1
	}
	return *a.NbCircles
}

func (s *Server) handleHoughDetectCircles(args json.RawMessage) (interface{}, error) {
	var a houghDetectArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	_, circles, err := s.runDetector(a.detectionArgs, a.limit())
	if err != nil {
		return nil, err
	}
	return &detection.CirclesResult{Circles: circles, Count: len(circles)}, nil
}

// EdgeMapResult is the output of the hough_edge_map tool.
type EdgeMapResult struct {
	imaging.EncodedImage
	EdgeCount      int     `json:"edge_count"`
	LowerThreshold float64 `json:"lower_threshold"`
	UpperThreshold float64 `json:"upper_threshold"`
}

func (s *Server) handleHoughEdgeMap(args json.RawMessage) (interface{}, error) {
	var a detectionArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	d, _, err := s.runDetector(a, -1)
	if err != nil {
		return nil, err
	}
	edges := d.EdgeMap()
	if edges == nil {
		return nil, imaging.ErrEmptyImage
	}
	encoded, err := imaging.EncodePNG(edges)
	if err != nil {
		return nil, err
	}
	lower, upper := d.CannyThresholds()
	return &EdgeMapResult{
		EncodedImage:   *encoded,
		EdgeCount:      imaging.CountEdges(edges),
		LowerThreshold: lower,
		UpperThreshold: upper,
	}, nil
}

// CandidatesResult is the output of the hough_candidates tool.
type CandidatesResult struct {
	CenterCandidates []detection.CenterCandidate `json:"center_candidates"`
	CircleCandidates []detection.Circle          `json:"circle_candidates"`
	Circles          []detection.Circle          `json:"circles"`
}

func (s *Server) handleHoughCandidates(args json.RawMessage) (interface{}, error) {
	var a detectionArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	d, circles, err := s.runDetector(a, -1)
	if err != nil {
		return nil, err
	}
	return &CandidatesResult{
		CenterCandidates: d.CenterCandidates(),
		CircleCandidates: d.CircleCandidates(),
		Circles:          circles,
	}, nil
}

type houghOverlayArgs struct {
	houghDetectArgs
	Color  string `json:"color,omitempty"`
	Labels bool   `json:"labels,omitempty"`
}

// OverlayResult is the output of the hough_overlay tool.
type OverlayResult struct {
	imaging.EncodedImage
	Circles []detection.Circle `json:"circles"`
}

func (s *Server) handleHoughOverlay(args json.RawMessage) (interface{}, error) {
	var a houghOverlayArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	_, circles, err := s.runDetector(a.detectionArgs, a.limit())
	if err != nil {
		return nil, err
	}

	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	drawn, err := imaging.DrawCircles(img, OverlayCircles(circles), imaging.OverlayOptions{
		Color:  a.Color,
		Labels: a.Labels,
	})
	if err != nil {
		return nil, err
	}
	encoded, err := imaging.EncodePNG(drawn)
	if err != nil {
		return nil, err
	}
	return &OverlayResult{EncodedImage: *encoded, Circles: circles}, nil
}

// OverlayCircles converts detections to drawable circles.
func OverlayCircles(circles []detection.Circle) []imaging.OverlayCircle {
	out := make([]imaging.OverlayCircle, len(circles))
	for i, c := range circles {
		out[i] = imaging.OverlayCircle{X: c.Center.X, Y: c.Center.Y, Radius: c.Radius}
	}
	return out
}
