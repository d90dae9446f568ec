package llm

import (
	"context"
	"log"
	"time"
)

// Middleware decorates an LLMClient to inject cross-cutting concerns
// (rate limiting, logging, hooks, usage accounting). None of them retry:
// one GenerateJSON call is one outbound request.
type Middleware func(LLMClient) LLMClient

// Wrap applies middlewares in left-to-right order.
// Example: Wrap(inner, A, B) => A(B(inner))
func Wrap(inner LLMClient, mws ...Middleware) LLMClient {
	out := inner
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] == nil {
			continue
		}
		out = mws[i](out)
	}
	return out
}

// -------- Rate Limiting --------

// RateLimit limits request rate with a token bucket.
// If rps <= 0, the limiter is effectively disabled.
func RateLimit(rps float64, burst int) Middleware {
	return func(next LLMClient) LLMClient {
		rl := newRPSLimiter(rps, burst) // nil when disabled
		if rl == nil {
			return next
		}
		return &rateLimited{next: next, rl: rl}
	}
}

type rateLimited struct {
	next LLMClient
	rl   *rpsLimiter
}

func (c *rateLimited) Name() string { return c.next.Name() }
func (c *rateLimited) Close() error {
	c.rl.Stop()
	return c.next.Close()
}
func (c *rateLimited) GenerateJSON(ctx context.Context, req Request) (Response, error) {
	if err := c.rl.Acquire(ctx); err != nil {
		return Response{}, err
	}
	return c.next.GenerateJSON(ctx, req)
}

// -------- Logging --------

// WithLogging logs request size, latency and errors. Provide a custom logger
// or nil to use log.Default().
func WithLogging(logger *log.Logger) Middleware {
	if logger == nil {
		logger = log.Default()
	}
	return func(next LLMClient) LLMClient {
		return &logging{next: next, log: logger}
	}
}

type logging struct {
	next LLMClient
	log  *log.Logger
}

func (l *logging) Name() string { return l.next.Name() }
func (l *logging) Close() error { return l.next.Close() }
func (l *logging) GenerateJSON(ctx context.Context, req Request) (Response, error) {
	phase := PhaseFrom(ctx)
	start := time.Now()
	l.log.Printf("LLM call (%s) via %s: prompt=%d bytes", phase, l.next.Name(), len(req.Prompt))
	resp, err := l.next.GenerateJSON(ctx, req)
	if err != nil {
		l.log.Printf("LLM error (%s) after %s: %v", phase, time.Since(start).Round(time.Millisecond), err)
		return resp, err
	}
	l.log.Printf("LLM response (%s) after %s: %d bytes", phase, time.Since(start).Round(time.Millisecond), len(resp.Raw))
	return resp, err
}
