package resumefit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RegisterMCP registers the resumefit tools on an MCP server.
func (p *Pipeline) RegisterMCP(srv *mcp.Server) {
	p.registerOptimizeTool(srv)
	p.registerExtractTool(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// registerTool adds a tool whose arguments decode into Req and whose result
// is returned as JSON text. Failures become tool errors, not protocol errors.
func registerTool[Req any](srv *mcp.Server, tool *mcp.Tool, endpoint func(context.Context, *Req) (any, error)) {
	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var r Req
		if len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
				var res mcp.CallToolResult
				res.SetError(fmt.Errorf("invalid arguments: %w", err))
				return &res, nil
			}
		}

		resp, err := endpoint(ctx, &r)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(errors.New(err.Error()))
			return &res, nil
		}

		data, err := json.Marshal(resp)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(fmt.Errorf("marshal: %w", err))
			return &res, nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		}, nil
	})
}

// --- optimize ---

type optimizeReq struct {
	Path        string `json:"path"`
	Role        string `json:"role"`
	Description string `json:"description"`
	OutputPath  string `json:"output_path"`
}

func (p *Pipeline) registerOptimizeTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "resumefit_optimize",
		Description: "Tailor a .docx resume to a job role and description. Writes the optimized document next to the input unless output_path is given.",
		InputSchema: inputSchema(map[string]any{
			"path":        map[string]any{"type": "string", "description": "Path of the .docx resume"},
			"role":        map[string]any{"type": "string", "description": "Target job role"},
			"description": map[string]any{"type": "string", "description": "Job description text"},
			"output_path": map[string]any{"type": "string", "description": "Where to write the optimized .docx"},
		}, []string{"path", "role", "description"}),
	}

	registerTool(srv, tool, func(ctx context.Context, r *optimizeReq) (any, error) {
		if r.Path == "" || r.Role == "" || r.Description == "" {
			return nil, errors.New("path, role and description are required")
		}
		out := r.OutputPath
		if out == "" {
			out = filepath.Join(filepath.Dir(r.Path), SuggestedFilename(r.Role))
		}
		if sameFile(out, r.Path) {
			return nil, fmt.Errorf("output path %s would overwrite the input", out)
		}
		document, err := os.ReadFile(r.Path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", r.Path, err)
		}

		res, err := p.Optimize(ctx, Input{Document: document, Role: r.Role, Description: r.Description})
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(out, res.Document, 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", out, err)
		}

		resp := newOptimizeResponse(res)
		resp.OutputPath = out
		return resp, nil
	})
}

// --- extract ---

type extractReq struct {
	Path string `json:"path"`
}

func (p *Pipeline) registerExtractTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "resumefit_extract",
		Description: "Show what the rewriter would receive for a .docx resume without calling it.",
		InputSchema: inputSchema(map[string]any{
			"path": map[string]any{"type": "string", "description": "Path of the .docx resume"},
		}, []string{"path"}),
	}

	registerTool(srv, tool, func(_ context.Context, r *extractReq) (any, error) {
		document, err := os.ReadFile(r.Path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", r.Path, err)
		}
		ex, err := p.Extract(document)
		if err != nil {
			return nil, err
		}
		return ExtractResponse{Mode: ex.Mode, Entries: ex.Entries, Payload: ex.Payload, Images: len(ex.Images)}, nil
	})
}

func sameFile(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	return errA == nil && errB == nil && absA == absB
}
