// Package server implements the MCP (Model Context Protocol) server for car
// part analysis tools.
//
// This package provides a JSON-RPC 2.0 server that exposes region selection,
// radar scoring and shooting-angle prediction through the MCP protocol, so an
// MCP-compatible client can judge how well a car photo is framed.
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
// The server provides 11 tools organized into categories:
//
// Basic Image Information:
//   - image_load: Load a photo and get metadata
//   - image_dimensions: Get width and height
//   - image_evict: Drop one photo, or all of them, from the cache
//
// Detection Operations:
//   - regions_parse: Read a detector output file
//   - regions_select: Pick one region per part relative to the head light
//   - regions_score: Score each part against its ideal area
//
// Chart Operations:
//   - radar_chart: Render part scores as a radar chart PNG
//   - radar_frames: Score and summarize many frames of a clip
//
// Region Operations:
//   - region_crop: Crop the selected part out of the photo
//   - region_overlay: Outline the selected parts on the photo
//
// Prediction:
//   - angle_predict: Run a trained regressor over photos
//
// Tools taking a "mode" argument fall back to the configured selection mode.
// radar_frames defaults to video mode.
//
// # Caching
//
// Loaded photos are kept in a bounded cache keyed by path, and trained models
// are loaded once per path. Both persist for the lifetime of the server
// unless image_evict drops photos from the cache.
//
// # Error Handling
//
// Tool errors are returned as JSON-RPC error responses with:
//   - code: -32602 for missing or malformed arguments, -32000 for any other
//     tool failure (unreadable file, malformed detections, bad model)
//   - message: Human-readable error description
//   - data: The underlying Go error string
//
// # Usage
//
//	cfg, _ := config.Load(path)
//	logger, _ := logging.New("carpart-mcp", cfg.LogLevel)
//	srv := server.NewWithConfig(cfg, logger, version)
//	if err := srv.Run(); err != nil {
//	    logger.Fatal(err)
//	}
package server
