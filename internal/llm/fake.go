package llm

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"sync"
	"time"
)

// FakeReply is one scripted answer of a FakeClient.
type FakeReply struct {
	Raw   string
	Usage *Usage
	Err   error
	Delay time.Duration // honoured with ctx cancellation
}

// FakeClient returns deterministic payloads for offline runs and tests. With
// no script it derives an offline report from the files found in the prompt.
type FakeClient struct {
	mu       sync.Mutex
	script   []FakeReply
	requests []Request
}

// NewFakeClient returns a client that answers with the scripted replies in
// order; after the script is exhausted the last reply repeats.
func NewFakeClient(replies ...FakeReply) *FakeClient {
	return &FakeClient{script: replies}
}

// Name distinguishes the offline generator from scripted replies so report
// caches never mix the two.
func (f *FakeClient) Name() string {
	if len(f.script) == 0 {
		return "FakeLLM:offline"
	}
	return "FakeLLM"
}

func (f *FakeClient) Close() error { return nil }

// Calls returns how many requests reached the fake.
func (f *FakeClient) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

// Requests returns a copy of every request received.
func (f *FakeClient) Requests() []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Request(nil), f.requests...)
}

func (f *FakeClient) GenerateJSON(ctx context.Context, req Request) (Response, error) {
	f.mu.Lock()
	n := len(f.requests)
	f.requests = append(f.requests, req)
	var reply FakeReply
	switch {
	case len(f.script) == 0:
		reply = FakeReply{Raw: offlineReport(req.Prompt)}
	case n < len(f.script):
		reply = f.script[n]
	default:
		reply = f.script[len(f.script)-1]
	}
	f.mu.Unlock()

	if reply.Delay > 0 {
		t := time.NewTimer(reply.Delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return Response{}, &TransportError{Provider: f.Name(), Err: ctx.Err()}
		case <-t.C:
		}
	}
	if reply.Err != nil {
		return Response{}, reply.Err
	}
	return Response{Raw: json.RawMessage(reply.Raw), Usage: reply.Usage}, nil
}

const fakeFileMarker = "--- FILE: "

var rePy2Print = regexp.MustCompile(`(?m)^(\s*)print (.+)$`)

// offlineReport rewrites Python 2 print statements in every file found in the
// prompt. It reports no vulnerabilities.
func offlineReport(prompt string) string {
	type file struct {
		Filename        string   `json:"filename"`
		OriginalContent string   `json:"originalContent"`
		NewContent      string   `json:"newContent"`
		ChangesSummary  []string `json:"changesSummary"`
	}
	files := make([]file, 0, 4)
	seen := map[string]bool{}
	for _, pf := range filesInPrompt(prompt) {
		if seen[pf[0]] {
			continue
		}
		seen[pf[0]] = true
		notes := []string{}
		updated := rePy2Print.ReplaceAllString(pf[1], "${1}print(${2})")
		if updated != pf[1] {
			notes = append(notes, "Converted print statements to print() calls")
		}
		files = append(files, file{Filename: pf[0], OriginalContent: pf[1], NewContent: updated, ChangesSummary: notes})
	}
	out := map[string]any{
		"prTitle":         "Offline modernization preview",
		"prDescription":   "Generated without contacting the model.",
		"summary":         "Offline analysis: mechanical Python 3 print conversion only.",
		"vulnerabilities": []any{},
		"files":           files,
	}
	b, _ := json.Marshal(out)
	return string(b)
}

// filesInPrompt returns (name, content) pairs delimited by file headers.
func filesInPrompt(prompt string) [][2]string {
	var out [][2]string
	rest := prompt
	for {
		i := strings.Index(rest, fakeFileMarker)
		if i < 0 {
			return out
		}
		rest = rest[i+len(fakeFileMarker):]
		end := strings.Index(rest, " ---\n")
		if end < 0 {
			return out
		}
		name := rest[:end]
		rest = rest[end+len(" ---\n"):]
		stop := strings.Index(rest, "\n\n"+fakeFileMarker)
		if stop < 0 {
			stop = strings.LastIndex(rest, "\n\nAnalyze these files.")
		}
		if stop < 0 {
			stop = len(rest)
		}
		out = append(out, [2]string{name, rest[:stop]})
		rest = rest[stop:]
	}
}
