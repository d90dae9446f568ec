package llm

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// UsageLedger tracks daily LLM usage statistics in a JSON file.
type UsageLedger struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

type usageLedgerFile struct {
	UpdatedAt string              `json:"updated_at"`
	Days      map[string]usageDay `json:"days"`
}

type usageDay struct {
	Requests  int64                `json:"requests"`
	Tokens    int64                `json:"tokens"`
	Estimated int64                `json:"estimated_requests"`
	Errors    int64                `json:"errors"`
	Models    map[string]usageStat `json:"models"`
}

type usageStat struct {
	Requests int64 `json:"requests"`
	Tokens   int64 `json:"tokens"`
	Errors   int64 `json:"errors"`
}

// NewUsageLedger creates a new usage ledger that writes to path.
func NewUsageLedger(path string) *UsageLedger {
	return &UsageLedger{path: path, now: time.Now}
}

// WithUsageLedger returns a middleware that tracks usage to the given path.
// An empty path disables the middleware.
func WithUsageLedger(path string) Middleware {
	if path == "" {
		return nil
	}
	ledger := NewUsageLedger(path)
	return func(next LLMClient) LLMClient {
		return &usageLedgerClient{next: next, ledger: ledger}
	}
}

type usageLedgerClient struct {
	next   LLMClient
	ledger *UsageLedger
}

func (u *usageLedgerClient) Name() string { return u.next.Name() }
func (u *usageLedgerClient) Close() error { return u.next.Close() }

func (u *usageLedgerClient) GenerateJSON(ctx context.Context, req Request) (Response, error) {
	resp, err := u.next.GenerateJSON(ctx, req)
	tokens, estimated := callTokens(req, resp, err)
	u.ledger.record(u.next.Name(), int64(tokens), estimated, err != nil)
	return resp, err
}

// callTokens prefers provider usage and falls back to the length estimate.
// Failed calls are not charged.
func callTokens(req Request, resp Response, err error) (int, bool) {
	if err != nil {
		return 0, false
	}
	if resp.Usage != nil && resp.Usage.TotalTokens > 0 {
		return resp.Usage.TotalTokens, false
	}
	return EstimateTokens(req.SystemInstruction, req.Prompt, string(resp.Raw)), true
}

func (l *UsageLedger) record(model string, tokens int64, estimated, hasErr bool) {
	if l == nil || l.path == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now().UTC()
	dayKey := now.Format("2006-01-02")
	f := usageLedgerFile{Days: map[string]usageDay{}}
	if b, err := os.ReadFile(l.path); err == nil {
		_ = json.Unmarshal(b, &f)
		if f.Days == nil {
			f.Days = map[string]usageDay{}
		}
	}

	d := f.Days[dayKey]
	if d.Models == nil {
		d.Models = map[string]usageStat{}
	}
	d.Requests++
	d.Tokens += tokens
	if estimated {
		d.Estimated++
	}
	if hasErr {
		d.Errors++
	}
	m := d.Models[model]
	m.Requests++
	m.Tokens += tokens
	if hasErr {
		m.Errors++
	}
	d.Models[model] = m
	f.Days[dayKey] = d
	f.UpdatedAt = now.Format(time.RFC3339)

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return
	}
	tmp := l.path + ".tmp"
	b, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return
	}
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return
	}
	_ = os.Rename(tmp, l.path)
}
