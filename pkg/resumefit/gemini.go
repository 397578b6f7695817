package resumefit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"
)

// GeminiRewriter sends the rewrite prompt to a Gemini model.
type GeminiRewriter struct {
	client *genai.Client
	model  string
	logger *slog.Logger
}

// NewGeminiRewriter creates a rewriter for cfg.Model authenticated with cfg.APIKey.
func NewGeminiRewriter(ctx context.Context, cfg *Config, logger *slog.Logger) (*GeminiRewriter, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("GEMINI_API_KEY not set")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GeminiRewriter{client: client, model: cfg.Model, logger: logger}, nil
}

// Rewrite renders the prompt for req and returns the model's raw text.
func (g *GeminiRewriter) Rewrite(ctx context.Context, req RewriteRequest) (string, error) {
	prompt, err := BuildPrompt(req)
	if err != nil {
		return "", err
	}

	g.logger.Debug("gemini request", "model", g.model, "mode", string(req.Mode), "prompt_bytes", len(prompt))
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", errors.New("gemini returned no text")
	}
	if resp.UsageMetadata != nil {
		g.logger.Debug("gemini response",
			"prompt_tokens", resp.UsageMetadata.PromptTokenCount,
			"candidate_tokens", resp.UsageMetadata.CandidatesTokenCount,
		)
	}
	return text, nil
}
