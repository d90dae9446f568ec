package llm

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"time"
)

// PromptSaver implements PromptHook to persist prompts & raw responses.
type PromptSaver struct{ Dir string }

// Before appends the system instruction and prompt to <dir>/prompt/<phase>.txt.
func (p *PromptSaver) Before(ctx context.Context, phase string, req Request) {
	var buf bytes.Buffer
	buf.WriteString("==== ")
	buf.WriteString(time.Now().Format(time.RFC3339))
	buf.WriteString(" ====\n")
	if req.SystemInstruction != "" {
		buf.WriteString("[SYSTEM]\n")
		buf.WriteString(req.SystemInstruction)
		buf.WriteString("\n\n")
	}
	buf.WriteString(req.Prompt)
	buf.WriteString("\n\n")
	p.appendLog(phase, buf.Bytes())
}

// After appends the raw response (or error) and dumps <dir>/<phase>.raw.json.
func (p *PromptSaver) After(ctx context.Context, phase string, resp Response, err error) {
	if p == nil || p.Dir == "" {
		return
	}
	var buf bytes.Buffer
	buf.WriteString("[RESPONSE]\n")
	if err != nil {
		buf.WriteString("ERROR: " + err.Error() + "\n\n")
	} else {
		buf.Write(resp.Raw)
		buf.WriteString("\n\n")
	}
	p.appendLog(phase, buf.Bytes())
	if err == nil {
		_ = os.WriteFile(filepath.Join(p.Dir, phase+".raw.json"), resp.Raw, 0o644)
	}
}

func (p *PromptSaver) appendLog(phase string, b []byte) {
	if p == nil || p.Dir == "" {
		return
	}
	_ = os.MkdirAll(filepath.Join(p.Dir, "prompt"), 0o755)
	path := filepath.Join(p.Dir, "prompt", phase+".txt")
	f, _ := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if f != nil {
		_, _ = f.Write(b)
		_ = f.Close()
	}
}
