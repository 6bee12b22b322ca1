// Package server implements the MCP (Model Context Protocol) server exposing
// the circle Hough transform detector.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Basic Image Information:
//   - image_load: Load image and get metadata
//   - image_dimensions: Get width and height
//
// Circle Detection:
//   - hough_detect_circles: Detected circles sorted by votes
//   - hough_edge_map: Filtered edge map as PNG, with the Canny thresholds
//   - hough_candidates: Center and circle candidates before merging
//   - hough_overlay: Detected circles drawn over the image
//   - hough_default_config: Default detector configuration
//
// Detection tools accept a "config" object, a partial configuration using
// the same field names as configuration files, and a "config_path" pointing
// to such a file. The object is applied on top of the file, which is applied
// on top of the defaults.
//
// # Image Caching
//
// Images and their gray conversions are cached by path for the lifetime of
// the server process. Every detection call uses a fresh detector.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: Additional error details (typically the Go error string)
//
// # Usage
//
//	srv := server.New(server.WithLogger(logger))
//	if err := srv.Run(); err != nil {
//	    log.Fatal().Err(err).Msg("server error")
//	}
package server
