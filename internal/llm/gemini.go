package llm

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	genai "google.golang.org/genai"
)

const DefaultGeminiModel = "gemini-3-pro-preview"

// GeminiOptions tunes the Gemini client. Zero values are valid.
type GeminiOptions struct {
	Model          string
	ThinkingBudget int32  // 0 leaves the model default
	BaseURL        string // override for tests and proxies
}

// GeminiClient is a thin wrapper around the official genai client.
type GeminiClient struct {
	cli    *genai.Client
	apiKey string
	opts   GeminiOptions
}

// NewGeminiClient never touches the network. A missing key is not an error
// here; GenerateJSON reports it as a ConfigurationError so the failure surfaces
// through the normal analysis path.
func NewGeminiClient(ctx context.Context, apiKey string, opts GeminiOptions) (*GeminiClient, error) {
	apiKey = strings.TrimSpace(apiKey)
	if strings.TrimSpace(opts.Model) == "" {
		opts.Model = DefaultGeminiModel
	}
	g := &GeminiClient{apiKey: apiKey, opts: opts}
	if apiKey == "" {
		return g, nil
	}
	cfg := &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI}
	if opts.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}
	cli, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, &ConfigurationError{Provider: g.Name(), Err: err}
	}
	g.cli = cli
	return g, nil
}

func (g *GeminiClient) Name() string { return "Gemini:" + g.opts.Model }
func (g *GeminiClient) Close() error { return nil }

// GenerateJSON sends one GenerateContent call constrained to req.Schema.
func (g *GeminiClient) GenerateJSON(ctx context.Context, req Request) (Response, error) {
	if g.apiKey == "" || g.cli == nil {
		return Response{}, &ConfigurationError{
			Provider: g.Name(),
			Err:      errors.Join(ErrMissingCredential, errors.New("set API_KEY or GEMINI_API_KEY")),
		}
	}

	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   req.Schema,
	}
	if s := strings.TrimSpace(req.SystemInstruction); s != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: s}}}
	}
	if g.opts.ThinkingBudget > 0 {
		budget := g.opts.ThinkingBudget
		cfg.ThinkingConfig = &genai.ThinkingConfig{ThinkingBudget: &budget}
	}

	resp, err := g.cli.Models.GenerateContent(ctx, g.opts.Model,
		[]*genai.Content{{Role: genai.RoleUser, Parts: []*genai.Part{{Text: req.Prompt}}}},
		cfg,
	)
	if err != nil {
		return Response{}, g.transportError(err)
	}
	txt := responseText(resp)
	if strings.TrimSpace(txt) == "" {
		return Response{}, &TransportError{Provider: g.Name(), Err: ErrEmptyResponse}
	}
	return Response{Raw: json.RawMessage(txt), Usage: usageFrom(resp)}, nil
}

func (g *GeminiClient) transportError(err error) error {
	out := &TransportError{Provider: g.Name(), Err: err}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		out.Status = apiErr.Code
	}
	return out
}

// responseText concatenates the non-thought parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	c := resp.Candidates[0]
	if c == nil || c.Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range c.Content.Parts {
		if p == nil || p.Thought {
			continue
		}
		b.WriteString(p.Text)
	}
	return b.String()
}

func usageFrom(resp *genai.GenerateContentResponse) *Usage {
	if resp == nil || resp.UsageMetadata == nil {
		return nil
	}
	m := resp.UsageMetadata
	if m.TotalTokenCount <= 0 {
		return nil
	}
	return &Usage{
		PromptTokens:   int(m.PromptTokenCount),
		ResponseTokens: int(m.CandidatesTokenCount),
		TotalTokens:    int(m.TotalTokenCount),
	}
}
