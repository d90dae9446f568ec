package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"archaeologist/internal/collect"
	"archaeologist/internal/diff"
	"archaeologist/internal/llm"
	"archaeologist/internal/plan"
	"archaeologist/internal/types"
)

const appPyReport = `{
  "prTitle": "Modernize app.py",
  "prDescription": "Python 3 print",
  "summary": "print statement converted",
  "vulnerabilities": [{"severity": "HIGH", "type": "Insecure Deserialization", "description": "pickle.loads on request data", "location": "app.py:1"}],
  "files": [{"filename": "app.py", "originalContent": "print \"hi\"", "newContent": "print(\"hi\")", "changesSummary": ["print()"]}]
}`

var quietLogger = log.New(io.Discard, "", 0)

func appPyFiles() collect.Static {
	return collect.Static{Files: []types.SourceFile{{Name: "app.py", Content: `print "hi"`}}}
}

func newMachine(t *testing.T, opts Options) *Machine {
	t.Helper()
	if opts.Collector == nil {
		opts.Collector = appPyFiles()
	}
	if opts.Logger == nil {
		opts.Logger = quietLogger
	}
	m, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

// collectPhases drains snapshots until a terminal phase or timeout.
func collectPhases(t *testing.T, ch <-chan Snapshot) []Phase {
	t.Helper()
	var out []Phase
	timeout := time.After(5 * time.Second)
	for {
		select {
		case s, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, s.Phase)
			if s.Phase.Terminal() {
				return out
			}
		case <-timeout:
			t.Fatalf("timed out waiting for terminal phase, saw %v", out)
		}
	}
}

func waitPhase(t *testing.T, m *Machine, want Phase) Snapshot {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if s := m.Snapshot(); s.Phase == want {
			return s
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("phase %s not reached, at %s", want, m.Snapshot().Phase)
	return Snapshot{}
}

func TestMachineHappyPath(t *testing.T) {
	m := newMachine(t, Options{Client: llm.NewFakeClient(llm.FakeReply{Raw: appPyReport})})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := m.Subscribe(ctx)

	runID, err := m.Start("https://github.com/legacy-corp/vulnerable-py2-app")
	require.NoError(t, err)

	phases := collectPhases(t, events)
	assert.Equal(t, []Phase{PhaseIdle, PhaseCloning, PhaseAnalyzing, PhaseComplete}, phases)

	snap, err := m.Wait(ctx, runID)
	require.NoError(t, err)
	require.NotNil(t, snap.Report)
	assert.Empty(t, snap.Error)
	assert.Equal(t, 1, snap.FileCount)
}

func TestMachineEndToEndAppPy(t *testing.T) {
	m := newMachine(t, Options{Client: llm.NewFakeClient(llm.FakeReply{Raw: appPyReport, Usage: &llm.Usage{TotalTokens: 321}})})
	runID, err := m.Start("demo")
	require.NoError(t, err)
	snap, err := m.Wait(context.Background(), runID)
	require.NoError(t, err)

	require.Equal(t, PhaseComplete, snap.Phase)
	rep := snap.Report
	require.Len(t, rep.Vulnerabilities, 1)
	assert.Equal(t, types.SeverityHigh, rep.Vulnerabilities[0].Severity)
	f, ok := rep.File("app.py")
	require.True(t, ok)
	assert.Contains(t, f.NewContent, `print("hi")`)
	assert.Equal(t, 321, rep.TokensUsed)

	rows := diff.Compare(f.OriginalContent, f.NewContent)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Changed)
}

func TestMachineMalformedResponse(t *testing.T) {
	broken := strings.Replace(appPyReport, `"summary": "print statement converted",`, "", 1)
	m := newMachine(t, Options{Client: llm.NewFakeClient(llm.FakeReply{Raw: broken})})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := m.Subscribe(ctx)

	runID, err := m.Start("demo")
	require.NoError(t, err)
	assert.Equal(t, []Phase{PhaseIdle, PhaseCloning, PhaseAnalyzing, PhaseError}, collectPhases(t, events))

	snap, err := m.Wait(ctx, runID)
	require.NoError(t, err)
	assert.Nil(t, snap.Report)
	assert.Equal(t, KindMalformed, snap.ErrorKind)
	assert.Contains(t, snap.Error, "summary")
}

func TestMachineCollectorFailure(t *testing.T) {
	m := newMachine(t, Options{
		Collector: collect.Func(func(context.Context, string) ([]types.SourceFile, error) {
			return nil, errors.New("clone refused")
		}),
		Client: llm.NewFakeClient(),
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := m.Subscribe(ctx)

	_, err := m.Start("demo")
	require.NoError(t, err)
	assert.Equal(t, []Phase{PhaseIdle, PhaseCloning, PhaseError}, collectPhases(t, events))
	snap := m.Snapshot()
	assert.Equal(t, KindCollect, snap.ErrorKind)
	assert.Contains(t, snap.Error, "clone refused")
}

func TestMachineMissingCredential(t *testing.T) {
	gem, err := llm.NewGeminiClient(context.Background(), "", llm.GeminiOptions{})
	require.NoError(t, err)
	m := newMachine(t, Options{Client: gem})

	runID, err := m.Start("demo")
	require.NoError(t, err)
	snap, err := m.Wait(context.Background(), runID)
	require.NoError(t, err)
	assert.Equal(t, PhaseError, snap.Phase)
	assert.Equal(t, KindConfiguration, snap.ErrorKind)
	assert.NotEmpty(t, snap.Error)
}

func TestMachineResetFromComplete(t *testing.T) {
	m := newMachine(t, Options{Client: llm.NewFakeClient(llm.FakeReply{Raw: appPyReport})})
	runID, err := m.Start("demo")
	require.NoError(t, err)
	_, err = m.Wait(context.Background(), runID)
	require.NoError(t, err)

	m.Reset()
	snap := m.Snapshot()
	assert.Equal(t, PhaseIdle, snap.Phase)
	assert.Nil(t, snap.Report)
	assert.Empty(t, snap.Error)
	assert.Empty(t, snap.RunID)

	// Reset from IDLE publishes nothing new.
	seq := snap.Seq
	m.Reset()
	assert.Equal(t, seq, m.Snapshot().Seq)
}

func TestMachineRejectsStartInFlight(t *testing.T) {
	m := newMachine(t, Options{Client: llm.NewFakeClient(llm.FakeReply{Raw: appPyReport, Delay: time.Minute})})
	_, err := m.Start("demo")
	require.NoError(t, err)
	waitPhase(t, m, PhaseAnalyzing)

	_, err = m.Start("demo")
	assert.ErrorIs(t, err, ErrRunInFlight)

	_, err = m.Start(" ")
	assert.Error(t, err)
}

func TestMachineStartAfterErrorReplacesResult(t *testing.T) {
	client := llm.NewFakeClient(llm.FakeReply{Err: errors.New("503")}, llm.FakeReply{Raw: appPyReport})
	m := newMachine(t, Options{Client: client})

	first, err := m.Start("demo")
	require.NoError(t, err)
	snap, err := m.Wait(context.Background(), first)
	require.NoError(t, err)
	require.Equal(t, PhaseError, snap.Phase)
	assert.Equal(t, KindTransport, snap.ErrorKind)

	second, err := m.Start("demo")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	snap, err = m.Wait(context.Background(), second)
	require.NoError(t, err)
	assert.Equal(t, PhaseComplete, snap.Phase)
	assert.Empty(t, snap.Error)
	assert.Empty(t, snap.ErrorKind)
}

// gatedClient ignores cancellation and answers only when released.
type gatedClient struct {
	release chan struct{}
	entered chan struct{}
	once    sync.Once
}

func (g *gatedClient) Name() string { return "gated" }
func (g *gatedClient) Close() error { return nil }
func (g *gatedClient) GenerateJSON(context.Context, llm.Request) (llm.Response, error) {
	g.once.Do(func() { close(g.entered) })
	<-g.release
	return llm.Response{Raw: json.RawMessage(appPyReport)}, nil
}

func TestMachineResetDiscardsLateResult(t *testing.T) {
	client := &gatedClient{release: make(chan struct{}), entered: make(chan struct{})}
	m := newMachine(t, Options{Client: client})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := m.Subscribe(ctx)

	runID, err := m.Start("demo")
	require.NoError(t, err)
	<-client.entered
	m.Reset()

	_, err = m.Wait(ctx, runID)
	assert.ErrorIs(t, err, ErrRunDiscarded)

	close(client.release)
	require.NoError(t, m.Close())

	var phases []Phase
	for s := range events {
		phases = append(phases, s.Phase)
	}
	assert.Equal(t, []Phase{PhaseIdle, PhaseCloning, PhaseAnalyzing, PhaseIdle}, phases)
}

func TestMachineTimeout(t *testing.T) {
	m := newMachine(t, Options{
		Client:  llm.NewFakeClient(llm.FakeReply{Raw: appPyReport, Delay: time.Minute}),
		Timeout: 50 * time.Millisecond,
	})
	runID, err := m.Start("demo")
	require.NoError(t, err)
	snap, err := m.Wait(context.Background(), runID)
	require.NoError(t, err)
	assert.Equal(t, PhaseError, snap.Phase)
	assert.Equal(t, KindTimeout, snap.ErrorKind)
	assert.Contains(t, snap.Error, "timed out")
}

func TestMachineReportCache(t *testing.T) {
	client := llm.NewFakeClient(llm.FakeReply{Raw: appPyReport})
	m := newMachine(t, Options{Client: client, CacheSize: 4})

	for i, wantCached := range []bool{false, true} {
		runID, err := m.Start("demo")
		require.NoError(t, err)
		snap, err := m.Wait(context.Background(), runID)
		require.NoError(t, err)
		require.Equal(t, PhaseComplete, snap.Phase, "run %d", i)
		assert.Equal(t, wantCached, snap.Cached, "run %d", i)
	}
	assert.Equal(t, 1, client.Calls())
}

func TestMachineWaitUnknownRun(t *testing.T) {
	m := newMachine(t, Options{Client: llm.NewFakeClient()})
	_, err := m.Wait(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrUnknownRun)
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Options{Client: llm.NewFakeClient()})
	assert.Error(t, err)
	_, err = New(Options{Collector: appPyFiles()})
	assert.Error(t, err)
}

type brokenStore struct{}

func (brokenStore) Put(context.Context, types.PlanRecord) error { return errors.New("firestore down") }
func (brokenStore) Get(context.Context, string) (types.PlanRecord, error) {
	return types.PlanRecord{}, plan.ErrNotFound
}
func (brokenStore) List(context.Context, string) ([]types.PlanRecord, error) { return nil, nil }

func completeRun(t *testing.T, m *Machine) Snapshot {
	t.Helper()
	runID, err := m.Start("https://github.com/legacy-corp/vulnerable-py2-app")
	require.NoError(t, err)
	snap, err := m.Wait(context.Background(), runID)
	require.NoError(t, err)
	require.Equal(t, PhaseComplete, snap.Phase)
	return snap
}

func TestSavePlan(t *testing.T) {
	store := plan.NewMemoryStore()
	m := newMachine(t, Options{
		Client: llm.NewFakeClient(llm.FakeReply{Raw: appPyReport}),
		Plans:  plan.NewGateway(store),
	})
	_, err := m.SavePlan(context.Background())
	assert.ErrorIs(t, err, ErrNoReport)

	before := completeRun(t, m)
	id, err := m.SavePlan(context.Background())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, plan.IDPrefix))

	snap := m.Snapshot()
	assert.Equal(t, PhaseComplete, snap.Phase)
	assert.Same(t, before.Report, snap.Report)
	assert.Equal(t, Persistence{State: SaveSaved, PlanID: id}, snap.Persistence)

	rec, err := store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "https://github.com/legacy-corp/vulnerable-py2-app", rec.Repo)
	assert.Equal(t, "Modernize app.py", rec.Title)
	assert.Equal(t, 1, rec.VulnerabilityCount)
}

func TestSavePlanFailureKeepsReport(t *testing.T) {
	m := newMachine(t, Options{
		Client: llm.NewFakeClient(llm.FakeReply{Raw: appPyReport}),
		Plans:  plan.NewGateway(brokenStore{}),
	})
	before := completeRun(t, m)

	_, err := m.SavePlan(context.Background())
	require.Error(t, err)
	assert.True(t, plan.IsPersistence(err))

	snap := m.Snapshot()
	assert.Equal(t, PhaseComplete, snap.Phase)
	assert.Same(t, before.Report, snap.Report)
	assert.Equal(t, SaveFailed, snap.Persistence.State)
	assert.Contains(t, snap.Persistence.Error, "firestore down")
}

func TestSavePlanWithoutGateway(t *testing.T) {
	m := newMachine(t, Options{Client: llm.NewFakeClient(llm.FakeReply{Raw: appPyReport})})
	completeRun(t, m)
	_, err := m.SavePlan(context.Background())
	assert.ErrorIs(t, err, ErrNoPlanStore)
}

func TestClassify(t *testing.T) {
	ctx := context.Background()
	expired, cancel := context.WithDeadline(ctx, time.Unix(0, 0))
	defer cancel()

	cases := []struct {
		name string
		ctx  context.Context
		err  error
		want ErrorKind
	}{
		{"configuration", ctx, &llm.ConfigurationError{Provider: "p", Err: llm.ErrMissingCredential}, KindConfiguration},
		{"transport", ctx, &llm.TransportError{Provider: "p", Err: errors.New("503")}, KindTransport},
		{"deadline in error", ctx, &llm.TransportError{Provider: "p", Err: context.DeadlineExceeded}, KindTimeout},
		{"expired context", expired, errors.New("boom"), KindTimeout},
		{"untyped", ctx, errors.New("boom"), KindTransport},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, classify(tc.ctx, tc.err))
		})
	}
}
