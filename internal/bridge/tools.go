package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"imaged/pkg/types"
)

var tools = []Tool{
	{
		Name:        "generate_image",
		Description: "Generate an image from a text prompt",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"prompt": map[string]any{
					"type":        "string",
					"description": "Text description of the image to generate",
				},
				"negative_prompt": map[string]any{
					"type":        "string",
					"description": "Concepts to steer away from",
				},
				"image_size": map[string]any{
					"type":        "integer",
					"description": fmt.Sprintf("Image size (%d-%d, multiple of 16, default: %d)", types.MinImageSize, types.MaxImageSize, types.DefaultImageSize),
					"default":     types.DefaultImageSize,
				},
				"denoising_steps": map[string]any{
					"type":        "integer",
					"description": fmt.Sprintf("Number of denoising steps (1-%d, default: %d)", types.MaxSteps, types.DefaultSteps),
					"default":     types.DefaultSteps,
				},
				"cfg_scale": map[string]any{
					"type":        "number",
					"description": fmt.Sprintf("Classifier-free guidance scale (0-%g, default: %g)", types.MaxCFGScale, types.DefaultCFGScale),
					"default":     types.DefaultCFGScale,
				},
				"seed": map[string]any{
					"type":        "integer",
					"description": fmt.Sprintf("Random seed for reproducibility (default: %d)", types.DefaultSeed),
					"default":     types.DefaultSeed,
				},
			},
			"required": []string{"prompt"},
		},
	},
	{
		Name:        "list_images",
		Description: "List all generated images",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
	},
	{
		Name:        "get_image_info",
		Description: "Get information about a generated image",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"filename": map[string]any{
					"type":        "string",
					"description": "Image filename",
				},
			},
			"required": []string{"filename"},
		},
	},
}

// errUnknownTool is reported as invalid params.
type errUnknownTool string

func (e errUnknownTool) Error() string { return "unknown tool: " + string(e) }

// decodeArgs decodes tool arguments into v. Missing or null arguments leave v
// untouched.
func decodeArgs(raw json.RawMessage, v any) error {
	if len(bytes.TrimSpace(raw)) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, v)
}

// call runs one tool. A returned error means the call itself was malformed;
// tool failures come back as a CallResult with IsError set.
func (s *Server) call(ctx context.Context, name string, args json.RawMessage) (CallResult, error) {
	switch name {
	case "generate_image":
		req := types.DefaultGenerationRequest()
		if err := decodeArgs(args, &req); err != nil {
			return CallResult{}, fmt.Errorf("generate_image arguments: %w", err)
		}
		res, err := s.api.Generate(ctx, req)
		if err != nil {
			return errorResult("Error: " + detail(err)), nil
		}
		u := s.api.URL(res.Image)
		return CallResult{Content: []Content{
			{Type: "text", Text: fmt.Sprintf("Image generated successfully!\nURL: %s\nPath: %s\nSeed: %d\nDuration: %d ms", u, res.Image, res.Seed, res.DurationMS)},
			{Type: "resource", Resource: &Resource{URI: u, MIMEType: "image/png"}},
		}}, nil

	case "list_images":
		list, err := s.api.ListImages(ctx)
		if err != nil {
			return errorResult("Error: " + detail(err)), nil
		}
		names := make([]string, 0, len(list))
		for _, img := range list {
			names = append(names, img.Filename)
		}
		return textResult(fmt.Sprintf("Found %d generated images:\n%s", len(names), strings.Join(names, "\n"))), nil

	case "get_image_info":
		var a struct {
			Filename string `json:"filename"`
		}
		if err := decodeArgs(args, &a); err != nil {
			return CallResult{}, fmt.Errorf("get_image_info arguments: %w", err)
		}
		if a.Filename == "" {
			return errorResult("Error: filename is required"), nil
		}
		info, err := s.api.ImageInfo(ctx, a.Filename)
		if err != nil {
			if IsNotFound(err) {
				return errorResult("Image not found: " + a.Filename), nil
			}
			return errorResult("Error: " + detail(err)), nil
		}
		var b strings.Builder
		fmt.Fprintf(&b, "Image: %s\nSize: %d bytes\nURL: %s", info.Filename, info.SizeBytes, s.api.URL(info.URL))
		if r := info.Request; r != nil {
			fmt.Fprintf(&b, "\nPrompt: %s\nSize: %dx%d, steps %d, cfg %g, seed %d", r.Prompt, r.ImageSize, r.ImageSize, r.Steps, r.CFGScale, r.Seed)
		}
		return textResult(b.String()), nil
	}
	return CallResult{}, errUnknownTool(name)
}

func detail(err error) string {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Detail
	}
	return err.Error()
}
