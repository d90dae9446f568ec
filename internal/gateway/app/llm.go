package app

import (
	"context"
	"fmt"
	"log"

	"archaeologist/internal/gateway/config"
	"archaeologist/internal/llm"
)

// NewLLMClient builds the configured provider and wraps it with the ledger,
// prompt dump, rate limit and logging middlewares.
func NewLLMClient(ctx context.Context, cfg config.LLMConfig, l *log.Logger) (llm.LLMClient, error) {
	var base llm.LLMClient
	switch cfg.Provider {
	case "fake":
		base = llm.NewFakeClient()
	case "gemini", "":
		g, err := llm.NewGeminiClient(ctx, cfg.APIKey, llm.GeminiOptions{
			Model:          cfg.Model,
			ThinkingBudget: cfg.ThinkingBudget,
			BaseURL:        cfg.BaseURL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create gemini client: %w", err)
		}
		if cfg.APIKey == "" {
			logger(l).Printf("llm: no API key configured; analyses will fail until one is set")
		}
		base = g
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}

	var mws []llm.Middleware
	if cfg.UsageLedger != "" {
		mws = append(mws, llm.WithUsageLedger(cfg.UsageLedger))
	}
	if cfg.PromptDumpDir != "" {
		mws = append(mws, llm.WithHooks(&llm.PromptSaver{Dir: cfg.PromptDumpDir}))
	}
	mws = append(mws, llm.RateLimit(cfg.RPS, cfg.Burst), llm.WithLogging(logger(l)))
	return llm.Wrap(base, mws...), nil
}
