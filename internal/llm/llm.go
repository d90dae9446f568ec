package llm

import (
	"context"
	"encoding/json"

	genai "google.golang.org/genai"
)

// Request is one schema-constrained generation call.
type Request struct {
	Prompt            string
	Schema            *genai.Schema
	SystemInstruction string
}

// Usage is token accounting reported by the provider.
type Usage struct {
	PromptTokens   int
	ResponseTokens int
	TotalTokens    int
}

// Response carries the model output exactly as returned. Raw only claims to
// satisfy the requested schema; callers must validate it.
type Response struct {
	Raw   json.RawMessage
	Usage *Usage // nil when the provider did not report usage
}

// LLMClient issues exactly one outbound request per GenerateJSON call.
type LLMClient interface {
	Name() string
	Close() error
	GenerateJSON(ctx context.Context, req Request) (Response, error)
}
