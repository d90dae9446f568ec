package llm

import (
	"bytes"
	"context"
	"errors"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// spy records timestamps when requests reach the inner client
type spy struct{ times []time.Time }
type spyingClient struct {
	next LLMClient
	rec  *spy
}

func (s *spyingClient) Name() string { return s.next.Name() }
func (s *spyingClient) Close() error { return s.next.Close() }
func (s *spyingClient) GenerateJSON(ctx context.Context, req Request) (Response, error) {
	s.rec.times = append(s.rec.times, time.Now())
	return s.next.GenerateJSON(ctx, req)
}

func okFake() *FakeClient { return NewFakeClient(FakeReply{Raw: `{}`}) }

func TestRate_RPS_2PerSecond_Burst1_Spacing(t *testing.T) {
	rec := &spy{}
	cli := Wrap(&spyingClient{next: okFake(), rec: rec}, RateLimit(2, 1))
	t.Cleanup(func() { _ = cli.Close() })

	ctx := context.Background()
	start := time.Now()
	_, err := cli.GenerateJSON(ctx, Request{Prompt: "p"})
	require.NoError(t, err)
	_, err = cli.GenerateJSON(ctx, Request{Prompt: "p"})
	require.NoError(t, err)
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 450*time.Millisecond, "expected throttling")
	assert.Len(t, rec.times, 2, "two calls should reach inner client")
}

func TestRateLimitDisabledIsPassThrough(t *testing.T) {
	base := okFake()
	cli := RateLimit(0, 0)(base)
	assert.Same(t, LLMClient(base), cli)
}

func TestRateLimitHonoursContext(t *testing.T) {
	cli := RateLimit(0.1, 1)(okFake())
	t.Cleanup(func() { _ = cli.Close() })

	_, err := cli.GenerateJSON(context.Background(), Request{Prompt: "p"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = cli.GenerateJSON(ctx, Request{Prompt: "p"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWrapOrder(t *testing.T) {
	var order []string
	tag := func(name string) Middleware {
		return func(next LLMClient) LLMClient {
			return &orderClient{next: next, name: name, order: &order}
		}
	}
	cli := Wrap(okFake(), tag("A"), nil, tag("B"))
	_, err := cli.GenerateJSON(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, order)
}

type orderClient struct {
	next  LLMClient
	name  string
	order *[]string
}

func (o *orderClient) Name() string { return o.next.Name() }
func (o *orderClient) Close() error { return o.next.Close() }
func (o *orderClient) GenerateJSON(ctx context.Context, req Request) (Response, error) {
	*o.order = append(*o.order, o.name)
	return o.next.GenerateJSON(ctx, req)
}

func TestWithLoggingReportsPhaseAndErrors(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf, "", 0)
	boom := errors.New("boom")
	cli := Wrap(NewFakeClient(FakeReply{Err: boom}), WithLogging(logger))

	_, err := cli.GenerateJSON(WithPhase(context.Background(), "analyze"), Request{Prompt: "hello"})
	require.ErrorIs(t, err, boom)

	out := buf.String()
	assert.Contains(t, out, "LLM call (analyze) via FakeLLM: prompt=5 bytes")
	assert.True(t, strings.Contains(out, "LLM error (analyze)"), "missing error line: %s", out)
}

type recordingHook struct {
	before []string
	after  []error
}

func (r *recordingHook) Before(_ context.Context, phase string, req Request) {
	r.before = append(r.before, phase+":"+req.Prompt)
}

func (r *recordingHook) After(_ context.Context, _ string, _ Response, err error) {
	r.after = append(r.after, err)
}

func TestWithHooksWrapsCall(t *testing.T) {
	hook := &recordingHook{}
	cli := Wrap(okFake(), WithHooks(hook))
	_, err := cli.GenerateJSON(WithPhase(context.Background(), "p1"), Request{Prompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, []string{"p1:x"}, hook.before)
	assert.Equal(t, []error{nil}, hook.after)

	base := okFake()
	assert.Same(t, LLMClient(base), WithHooks(nil)(base))
	assert.Equal(t, "unknown", PhaseFrom(context.Background()))
}
