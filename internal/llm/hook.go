package llm

import (
	"context"
)

// PromptHook observes every call passing through WithHooks.
type PromptHook interface {
	Before(ctx context.Context, phase string, req Request)
	After(ctx context.Context, phase string, resp Response, err error)
}

type ctxKeyPhase struct{}

// WithPhase tags ctx with a phase name used in logs and hooks.
func WithPhase(ctx context.Context, phase string) context.Context {
	return context.WithValue(ctx, ctxKeyPhase{}, phase)
}

// PhaseFrom returns the phase string stored in the context.
func PhaseFrom(ctx context.Context) string {
	if v := ctx.Value(ctxKeyPhase{}); v != nil {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return "unknown"
}

// WithHooks calls hook.Before/After around GenerateJSON. A nil hook makes the
// middleware a pass-through.
func WithHooks(hook PromptHook) Middleware {
	return func(next LLMClient) LLMClient {
		if hook == nil {
			return next
		}
		return &hooked{next: next, hook: hook}
	}
}

type hooked struct {
	next LLMClient
	hook PromptHook
}

func (h *hooked) Name() string { return h.next.Name() }
func (h *hooked) Close() error { return h.next.Close() }

func (h *hooked) GenerateJSON(ctx context.Context, req Request) (Response, error) {
	phase := PhaseFrom(ctx)
	h.hook.Before(ctx, phase, req)
	resp, err := h.next.GenerateJSON(ctx, req)
	h.hook.After(ctx, phase, resp, err)
	return resp, err
}
