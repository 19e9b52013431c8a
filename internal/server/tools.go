package server

import "github.com/ironsheep/carpart-tools/internal/radar"

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

var modeProperty = map[string]interface{}{
	"type":        "string",
	"enum":        []string{"image", "video"},
	"description": "Selection rules: image (strict, photos) or video (lenient, frames). Default from server config.",
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Basic Image Information
		{
			Name:        "image_load",
			Description: "Load a car photo and return its dimensions, format and file size. The image is cached for later crop and predict calls.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the image file",
					},
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
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the image file",
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "image_evict",
			Description: "Drop a photo from the server's image cache so the next call rereads it from disk. Without a path the whole cache is cleared.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path of the cached image; omit to clear every image",
					},
				},
			},
		},

		// Detection Operations
		{
			Name:        "regions_parse",
			Description: "Parse a detector output file (one 'class x_center y_center width height' line per region, normalized coordinates) and return every region with its area.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the detections text file",
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "regions_select",
			Description: "Pick one region per part (light, wheel, glass, door, side glass) relative to the largest head light. Missing parts are replaced by placeholders.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the detections text file",
					},
					"mode": modeProperty,
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "regions_score",
			Description: "Select regions and score each part as a percentage of its ideal area (100 = ideal framing). Scores are not clamped.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the detections text file",
					},
					"mode": modeProperty,
					"ideal_areas": map[string]interface{}{
						"type":        "object",
						"description": "Optional per-class ideal area overrides, e.g. {\"wheel\": 0.05}",
						"additionalProperties": map[string]interface{}{
							"type": "number",
						},
					},
				},
				"required": []string{"path"},
			},
		},

		// Chart Operations
		{
			Name:        "radar_chart",
			Description: "Render a radar chart of part scores as base64-encoded PNG. Provide either a detections file or explicit scores.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the detections text file",
					},
					"scores": map[string]interface{}{
						"type":        "object",
						"description": "Scores keyed by part name (Light, Wheel, Glass, Door, Sideglass); used when path is empty",
						"additionalProperties": map[string]interface{}{
							"type": "number",
						},
					},
					"mode": modeProperty,
					"ideal_areas": map[string]interface{}{
						"type":        "object",
						"description": "Optional per-class ideal area overrides used when scoring path",
						"additionalProperties": map[string]interface{}{
							"type": "number",
						},
					},
					"title": map[string]interface{}{
						"type":        "string",
						"description": "Optional chart title",
					},
					"size": map[string]interface{}{
						"type":        "integer",
						"description": "Chart width and height in pixels (default from config, 700)",
						"minimum":     radar.MinChartSize,
						"maximum":     radar.MaxChartSize,
					},
				},
			},
		},
		{
			Name:        "radar_frames",
			Description: "Score many detection files (e.g. video frames) in parallel and summarize each part with mean, median, standard deviation, min and max.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"paths": map[string]interface{}{
						"type":        "array",
						"items":       map[string]interface{}{"type": "string"},
						"description": "Absolute paths to detection files, in frame order",
					},
					"mode": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"image", "video"},
						"description": "Selection rules (default: video)",
					},
					"include_frames": map[string]interface{}{
						"type":        "boolean",
						"description": "Include per-frame scores in the result (default: false)",
					},
				},
				"required": []string{"paths"},
			},
		},

		// Region Operations
		{
			Name:        "region_crop",
			Description: "Select regions from a detections file and crop the chosen part out of the matching photo as base64-encoded PNG.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"image_path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the photo",
					},
					"detections_path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the detections text file for the photo",
					},
					"class": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"light", "wheel", "glass", "door", "sideglass"},
						"description": "Part to crop",
					},
					"mode": modeProperty,
					"scale": map[string]interface{}{
						"type":        "number",
						"description": "Scale factor for output (default: 1.0)",
						"default":     1.0,
					},
				},
				"required": []string{"image_path", "detections_path", "class"},
			},
		},

		{
			Name:        "region_overlay",
			Description: "Outline the selected regions (or every parsed region) on the photo, labeled by part, as base64-encoded PNG.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"image_path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the photo",
					},
					"detections_path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the detections text file for the photo",
					},
					"mode": modeProperty,
					"all": map[string]interface{}{
						"type":        "boolean",
						"description": "Draw every parsed region instead of the selection (default: false)",
						"default":     false,
					},
					"line_width": map[string]interface{}{
						"type":        "integer",
						"description": "Outline thickness in pixels (default: 2)",
						"default":     2,
					},
				},
				"required": []string{"image_path", "detections_path"},
			},
		},

		// Prediction
		{
			Name:        "angle_predict",
			Description: "Predict the shooting angle of photos with a trained regressor model.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"model_path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to a model saved by 'carpart train'",
					},
					"paths": map[string]interface{}{
						"type":        "array",
						"items":       map[string]interface{}{"type": "string"},
						"description": "Absolute paths to the photos",
					},
				},
				"required": []string{"model_path", "paths"},
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
