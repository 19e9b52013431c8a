package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"

	"github.com/ironsheep/carpart-tools/internal/config"
	"github.com/ironsheep/carpart-tools/internal/detection"
	"github.com/ironsheep/carpart-tools/internal/imaging"
	"github.com/ironsheep/carpart-tools/internal/nn"
	"github.com/ironsheep/carpart-tools/internal/radar"
	"github.com/ironsheep/carpart-tools/internal/train"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "regions_score", "radar_chart").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// paramError marks tool failures caused by malformed or missing arguments.
// They are reported with JSON-RPC code -32602 instead of -32000.
type paramError struct {
	err error
}

func (e *paramError) Error() string { return e.err.Error() }
func (e *paramError) Unwrap() error { return e.err }

func invalidParams(format string, args ...interface{}) error {
	return &paramError{err: fmt.Errorf(format, args...)}
}

// decodeArgs unmarshals tool arguments, reporting failures as invalid params.
func decodeArgs(args json.RawMessage, v interface{}) error {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	if err := json.Unmarshal(args, v); err != nil {
		return &paramError{err: err}
	}
	return nil
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Argument errors return code -32602; other tool failures return -32000.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, codeInvalidParams, "Invalid params", err.Error())
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		s.logger.Debugw("tool failed", "tool", params.Name, "error", err)
		var pe *paramError
		if errors.As(err, &pe) {
			return s.errorResponse(req.ID, codeInvalidParams, "Invalid params", err.Error())
		}
		return s.errorResponse(req.ID, codeToolFailure, "Tool execution failed", err.Error())
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
//  2. Applies defaults from the server configuration
//  3. Calls the appropriate detection/radar/imaging/train function
//  4. Returns the result or error
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	switch name {
	// Basic Image Information
	case "image_load":
		return s.handleImageLoad(args)
	case "image_dimensions":
		return s.handleImageDimensions(args)
	case "image_evict":
		return s.handleImageEvict(args)

	// Detection Operations
	case "regions_parse":
		return s.handleRegionsParse(args)
	case "regions_select":
		return s.handleRegionsSelect(args)
	case "regions_score":
		return s.handleRegionsScore(args)

	// Chart Operations
	case "radar_chart":
		return s.handleRadarChart(args)
	case "radar_frames":
		return s.handleRadarFrames(ctx, args)

	// Region Operations
	case "region_crop":
		return s.handleRegionCrop(args)
	case "region_overlay":
		return s.handleRegionOverlay(args)

	// Prediction
	case "angle_predict":
		return s.handleAnglePredict(ctx, args)

	default:
		return nil, invalidParams("unknown tool: %s", name)
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

// mode resolves an optional mode argument against the configured default.
func (s *Server) mode(arg string) (detection.Mode, error) {
	if arg == "" {
		return s.cfg.Radar.SelectMode(), nil
	}
	m, err := detection.ParseMode(arg)
	if err != nil {
		return 0, &paramError{err: err}
	}
	return m, nil
}

// idealAreas merges per-call overrides into the configured ideal areas.
func (s *Server) idealAreas(overrides map[string]float64) (radar.IdealAreas, error) {
	ideal, err := s.cfg.Radar.Ideal()
	if err != nil {
		return ideal, err
	}
	if ideal, err = config.MergeIdeal(ideal, overrides); err != nil {
		return ideal, &paramError{err: errors.Wrap(err, "ideal_areas")}
	}
	return ideal, nil
}

// === Basic Image Information Handlers ===

type imageLoadArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleImageLoad(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, invalidParams("path is required")
	}
	return imaging.LoadImageInfo(s.cache, a.Path)
}

func (s *Server) handleImageDimensions(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, invalidParams("path is required")
	}
	return imaging.GetDimensions(s.cache, a.Path)
}

// EvictResult reports what image_evict dropped from the photo cache.
type EvictResult struct {
	Evicted int `json:"evicted"`
	Cached  int `json:"cached"`
}

// handleImageEvict drops one photo from the cache, or every photo when no
// path is given.
func (s *Server) handleImageEvict(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	res := &EvictResult{}
	if a.Path == "" {
		res.Evicted = s.cache.Len()
		s.cache.Clear()
	} else if s.cache.Evict(a.Path) {
		res.Evicted = 1
	}
	res.Cached = s.cache.Len()
	s.logger.Debugw("image cache evicted", "path", a.Path, "evicted", res.Evicted)
	return res, nil
}

// === Detection Handlers ===

type regionsArgs struct {
	Path       string             `json:"path"`
	Mode       string             `json:"mode"`
	IdealAreas map[string]float64 `json:"ideal_areas"`
}

// RegionsResult lists every parsed region.
type RegionsResult struct {
	Count   int                `json:"count"`
	Regions []detection.Region `json:"regions"`
}

func (s *Server) handleRegionsParse(args json.RawMessage) (interface{}, error) {
	var a regionsArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, invalidParams("path is required")
	}
	regions, err := detection.ParseFile(a.Path)
	if err != nil {
		return nil, err
	}
	for i := range regions {
		regions[i] = regions[i].WithArea()
	}
	return &RegionsResult{Count: len(regions), Regions: regions}, nil
}

// SelectResult is a selection together with the mode that produced it.
type SelectResult struct {
	Mode      string              `json:"mode"`
	Selection detection.Selection `json:"selection"`
}

func (s *Server) handleRegionsSelect(args json.RawMessage) (interface{}, error) {
	var a regionsArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, invalidParams("path is required")
	}
	mode, err := s.mode(a.Mode)
	if err != nil {
		return nil, err
	}
	sel, err := detection.SelectFile(a.Path, mode)
	if err != nil {
		return nil, err
	}
	return &SelectResult{Mode: mode.String(), Selection: sel}, nil
}

// ScoreResult carries the selection and the per-part scores.
type ScoreResult struct {
	Mode      string              `json:"mode"`
	Selection detection.Selection `json:"selection"`
	Labels    []string            `json:"labels"`
	Values    []float64           `json:"values"`
	Scores    map[string]float64  `json:"scores"`
}

func (s *Server) handleRegionsScore(args json.RawMessage) (interface{}, error) {
	var a regionsArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, invalidParams("path is required")
	}
	mode, err := s.mode(a.Mode)
	if err != nil {
		return nil, err
	}
	ideal, err := s.idealAreas(a.IdealAreas)
	if err != nil {
		return nil, err
	}
	fs, err := radar.ScoreFile(a.Path, mode, ideal)
	if err != nil {
		return nil, err
	}
	return &ScoreResult{
		Mode:      mode.String(),
		Selection: fs.Selection,
		Labels:    radar.Labels(),
		Values:    append([]float64(nil), fs.Scores[:]...),
		Scores:    fs.Scores.Map(),
	}, nil
}

// === Chart Handlers ===

type radarChartArgs struct {
	Path       string             `json:"path"`
	Scores     map[string]float64 `json:"scores"`
	Mode       string             `json:"mode"`
	IdealAreas map[string]float64 `json:"ideal_areas"`
	Title      string             `json:"title"`
	Size       int                `json:"size"`
}

func (s *Server) handleRadarChart(args json.RawMessage) (interface{}, error) {
	var a radarChartArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}

	var scores radar.Scores
	switch {
	case a.Path != "":
		mode, err := s.mode(a.Mode)
		if err != nil {
			return nil, err
		}
		ideal, err := s.idealAreas(a.IdealAreas)
		if err != nil {
			return nil, err
		}
		fs, err := radar.ScoreFile(a.Path, mode, ideal)
		if err != nil {
			return nil, err
		}
		scores = fs.Scores
	case len(a.Scores) > 0:
		byClass, err := detection.ParseClassValues(a.Scores)
		if err != nil {
			return nil, &paramError{err: errors.Wrap(err, "scores")}
		}
		for c, v := range byClass {
			scores[c] = v
		}
	default:
		return nil, invalidParams("either path or scores is required")
	}

	chart := s.cfg.Radar.Chart
	if a.Title != "" {
		chart.Title = a.Title
	}
	if a.Size != 0 {
		if a.Size < radar.MinChartSize || a.Size > radar.MaxChartSize {
			return nil, invalidParams("size must be between %d and %d, got %d",
				radar.MinChartSize, radar.MaxChartSize, a.Size)
		}
		chart.Size = a.Size
	}
	return chart.Encode(scores)
}

type radarFramesArgs struct {
	Paths         []string `json:"paths"`
	Mode          string   `json:"mode"`
	IncludeFrames bool     `json:"include_frames"`
}

// FramesResult summarizes a batch of scored frames.
type FramesResult struct {
	Mode    string             `json:"mode"`
	Summary radar.Summary      `json:"summary"`
	Frames  []radar.FrameScore `json:"frames,omitempty"`
}

func (s *Server) handleRadarFrames(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a radarFramesArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if len(a.Paths) == 0 {
		return nil, invalidParams("paths must not be empty")
	}
	mode := detection.ModeVideo
	if a.Mode != "" {
		var err error
		if mode, err = s.mode(a.Mode); err != nil {
			return nil, err
		}
	}
	ideal, err := s.cfg.Radar.Ideal()
	if err != nil {
		return nil, err
	}
	frames, err := radar.ScoreFrames(ctx, a.Paths, mode, ideal, s.cfg.Radar.Workers, s.logger)
	if err != nil {
		return nil, err
	}
	summary, err := radar.Summarize(frames)
	if err != nil {
		return nil, err
	}
	res := &FramesResult{Mode: mode.String(), Summary: summary}
	if a.IncludeFrames {
		res.Frames = frames
	}
	return res, nil
}

// === Region Handlers ===

type regionCropArgs struct {
	ImagePath      string  `json:"image_path"`
	DetectionsPath string  `json:"detections_path"`
	Class          string  `json:"class"`
	Mode           string  `json:"mode"`
	Scale          float64 `json:"scale"`
}

func (s *Server) handleRegionCrop(args json.RawMessage) (interface{}, error) {
	var a regionCropArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.ImagePath == "" || a.DetectionsPath == "" {
		return nil, invalidParams("image_path and detections_path are required")
	}
	class, err := detection.ParseClass(a.Class)
	if err != nil {
		return nil, &paramError{err: err}
	}
	mode, err := s.mode(a.Mode)
	if err != nil {
		return nil, err
	}
	if a.Scale == 0 {
		a.Scale = 1.0
	}

	sel, err := detection.SelectFile(a.DetectionsPath, mode)
	if err != nil {
		return nil, err
	}
	region, _ := sel.Get(class)
	img, err := s.cache.Load(a.ImagePath)
	if err != nil {
		return nil, err
	}
	return imaging.CropRegion(img, region, a.Scale)
}

type regionOverlayArgs struct {
	ImagePath      string `json:"image_path"`
	DetectionsPath string `json:"detections_path"`
	Mode           string `json:"mode"`
	All            bool   `json:"all"`
	LineWidth      int    `json:"line_width"`
}

func (s *Server) handleRegionOverlay(args json.RawMessage) (interface{}, error) {
	var a regionOverlayArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.ImagePath == "" || a.DetectionsPath == "" {
		return nil, invalidParams("image_path and detections_path are required")
	}
	mode, err := s.mode(a.Mode)
	if err != nil {
		return nil, err
	}
	if a.LineWidth == 0 {
		a.LineWidth = 2
	}

	var regions []detection.Region
	if a.All {
		regions, err = detection.ParseFile(a.DetectionsPath)
	} else {
		var sel detection.Selection
		sel, err = detection.SelectFile(a.DetectionsPath, mode)
		regions = imaging.SelectionRegions(sel)
	}
	if err != nil {
		return nil, err
	}
	img, err := s.cache.Load(a.ImagePath)
	if err != nil {
		return nil, err
	}
	return imaging.OverlayRegions(img, regions, a.LineWidth)
}

// === Prediction Handlers ===

type anglePredictArgs struct {
	ModelPath string   `json:"model_path"`
	Paths     []string `json:"paths"`
}

// Prediction is the regressor output for one photo.
type Prediction struct {
	Path string  `json:"path"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// PredictResult lists predictions in input order.
type PredictResult struct {
	Predictions []Prediction `json:"predictions"`
}

// model loads a regressor once per path and keeps it for later calls.
func (s *Server) model(path string) (*nn.Regressor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.models[path]; ok {
		return m, nil
	}
	m, err := nn.LoadFile(path)
	if err != nil {
		return nil, err
	}
	s.models[path] = m
	return m, nil
}

func (s *Server) handleAnglePredict(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a anglePredictArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.ModelPath == "" || len(a.Paths) == 0 {
		return nil, invalidParams("model_path and paths are required")
	}
	model, err := s.model(a.ModelPath)
	if err != nil {
		return nil, err
	}

	// Regressor forward passes cache activations, so predictions on one
	// model are serialized.
	s.mu.Lock()
	defer s.mu.Unlock()
	set := train.NewTestSet(a.Paths, model.Topology.InputSize, s.cache)
	targets, err := train.Predict(ctx, model, set, s.cfg.Train.BatchSize)
	if err != nil {
		return nil, err
	}
	res := &PredictResult{Predictions: make([]Prediction, len(targets))}
	for i, t := range targets {
		res.Predictions[i] = Prediction{Path: a.Paths[i], X: t[0], Y: t[1]}
	}
	return res, nil
}
