// Package analysis drives one analysis run at a time through
// IDLE -> CLONING -> ANALYZING -> COMPLETE|ERROR and back to IDLE on reset.
package analysis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"archaeologist/internal/collect"
	"archaeologist/internal/llm"
	"archaeologist/internal/plan"
	"archaeologist/internal/prompt"
	"archaeologist/internal/report"
	"archaeologist/internal/schema"
	"archaeologist/internal/types"
)

var (
	ErrRunInFlight  = errors.New("analysis: a run is already in flight")
	ErrNoReport     = errors.New("analysis: no completed report")
	ErrNoPlanStore  = errors.New("analysis: plan persistence is not configured")
	ErrUnknownRun   = errors.New("analysis: unknown run")
	ErrRunDiscarded = errors.New("analysis: run was reset or superseded")
)

const (
	defaultSaveTimeout = 30 * time.Second
	retainedRuns       = 64
)

type Options struct {
	Collector collect.Collector
	Client    llm.LLMClient
	Plans     *plan.Gateway // optional

	// Timeout bounds one run from CLONING to a terminal phase. 0 disables it.
	Timeout     time.Duration
	SaveTimeout time.Duration
	// Cache remembers reports by client and prompt hash. When nil, CacheSize > 0 enables
	// an in-memory LRU of that size.
	Cache     ReportCache
	CacheSize int
	// StrictSeverity rejects severities that differ from the enum spelling.
	StrictSeverity bool

	Logger *log.Logger
	Tracer trace.Tracer
}

// runRecord lets Wait observe the end of a specific run.
type runRecord struct {
	done      chan struct{}
	once      sync.Once
	final     Snapshot
	discarded bool
}

func (r *runRecord) finish(s Snapshot, discarded bool) {
	r.once.Do(func() {
		r.final = s
		r.discarded = discarded
		close(r.done)
	})
}

// Machine owns the lifecycle state. All transitions happen under mu and are
// published in order.
type Machine struct {
	collector   collect.Collector
	client      llm.LLMClient
	plans       *plan.Gateway
	timeout     time.Duration
	saveTimeout time.Duration
	strict      bool
	log         *log.Logger
	tracer      trace.Tracer
	metrics     *runMetrics
	now         func() time.Time

	cache    ReportCache
	cacheTag string // client, instruction and schema folded into every cache key
	runs     *lru.Cache[string, *runRecord]

	base    context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup
	broker  *broker
	mu      sync.Mutex
	state   Snapshot
	current string // run id whose results may still be applied
	cancel  context.CancelFunc
	started time.Time
}

func New(opts Options) (*Machine, error) {
	if opts.Collector == nil {
		return nil, fmt.Errorf("collector is required")
	}
	if opts.Client == nil {
		return nil, fmt.Errorf("llm client is required")
	}
	m := &Machine{
		collector:   opts.Collector,
		client:      opts.Client,
		plans:       opts.Plans,
		timeout:     opts.Timeout,
		saveTimeout: opts.SaveTimeout,
		strict:      opts.StrictSeverity,
		log:         opts.Logger,
		tracer:      opts.Tracer,
		broker:      newBroker(),
		now:         time.Now,
	}
	if m.saveTimeout <= 0 {
		m.saveTimeout = defaultSaveTimeout
	}
	if m.log == nil {
		m.log = log.Default()
	}
	if m.tracer == nil {
		m.tracer = otel.Tracer("archaeologist/analysis")
	}
	m.cache = opts.Cache
	if m.cache == nil && opts.CacheSize > 0 {
		cache, err := NewMemoryCache(opts.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("report cache: %w", err)
		}
		m.cache = cache
	}
	if m.cache != nil {
		tag, err := cacheTag(m.client.Name(), m.strict)
		if err != nil {
			return nil, fmt.Errorf("report cache: %w", err)
		}
		m.cacheTag = tag
	}
	runs, err := lru.New[string, *runRecord](retainedRuns)
	if err != nil {
		return nil, err
	}
	m.runs = runs
	if rm, err := newRunMetrics(); err != nil {
		m.log.Printf("analysis: metrics disabled: %v", err)
	} else {
		m.metrics = rm
	}
	m.base, m.stop = context.WithCancel(context.Background())
	m.state = Snapshot{Phase: PhaseIdle, UpdatedAt: m.now()}
	return m, nil
}

// Snapshot returns the current state.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Subscribe streams every snapshot from the current one onwards until ctx is
// done. The channel is closed afterwards.
func (m *Machine) Subscribe(ctx context.Context) <-chan Snapshot {
	m.mu.Lock()
	ch := m.broker.add(m.state)
	m.mu.Unlock()
	go func() {
		select {
		case <-ctx.Done():
		case <-m.base.Done():
		}
		m.broker.remove(ch)
	}()
	return ch
}

// Start begins a run for sourceID. Starting from COMPLETE or ERROR replaces
// the previous result. A run in CLONING or ANALYZING rejects Start.
func (m *Machine) Start(sourceID string) (string, error) {
	sourceID = strings.TrimSpace(sourceID)
	if sourceID == "" {
		return "", fmt.Errorf("source id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.base.Err() != nil {
		return "", fmt.Errorf("analysis: machine closed")
	}
	if m.state.Phase.InFlight() {
		return "", ErrRunInFlight
	}

	runID := uuid.NewString()
	var ctx context.Context
	var cancel context.CancelFunc
	if m.timeout > 0 {
		ctx, cancel = context.WithTimeout(m.base, m.timeout)
	} else {
		ctx, cancel = context.WithCancel(m.base)
	}
	m.cancel = cancel
	m.current = runID
	m.started = m.now()
	m.runs.Add(runID, &runRecord{done: make(chan struct{})})
	m.setLocked(Snapshot{RunID: runID, SourceID: sourceID, Phase: PhaseCloning})
	m.metrics.recordStarted(ctx)

	m.wg.Add(1)
	go m.run(ctx, runID, sourceID)
	return runID, nil
}

// Reset cancels any in-flight run and returns to IDLE. Late results of the
// cancelled run are discarded.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked()
}

func (m *Machine) resetLocked() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	if m.current != "" {
		if rec, ok := m.runs.Peek(m.current); ok {
			rec.finish(Snapshot{}, true)
		}
		m.current = ""
	}
	if m.state.Phase != PhaseIdle {
		m.setLocked(Snapshot{Phase: PhaseIdle})
	}
}

// Wait blocks until runID reaches COMPLETE or ERROR and returns that
// snapshot. A run that was reset or superseded yields ErrRunDiscarded.
func (m *Machine) Wait(ctx context.Context, runID string) (Snapshot, error) {
	rec, ok := m.runs.Get(strings.TrimSpace(runID))
	if !ok {
		return Snapshot{}, ErrUnknownRun
	}
	select {
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	case <-rec.done:
	}
	if rec.discarded {
		return Snapshot{}, ErrRunDiscarded
	}
	return rec.final, nil
}

// Close cancels the current run, waits for background work and closes all
// subscriptions.
func (m *Machine) Close() error {
	m.mu.Lock()
	m.resetLocked()
	m.mu.Unlock()
	m.stop()
	m.wg.Wait()
	m.broker.closeAll()
	return nil
}

func (m *Machine) run(ctx context.Context, runID, sourceID string) {
	defer m.wg.Done()
	ctx, span := m.tracer.Start(ctx, "analysis.run", trace.WithAttributes(
		attribute.String("run.id", runID),
		attribute.String("source.id", sourceID),
	))
	defer span.End()

	files, err := m.collect(ctx, sourceID)
	if err != nil {
		m.fail(ctx, span, runID, KindCollect, fmt.Errorf("collect source files: %w", err))
		return
	}
	if !m.transition(runID, func(s *Snapshot) {
		s.Phase = PhaseAnalyzing
		s.FileCount = len(files)
	}) {
		return
	}

	text := prompt.Build(files)
	key := reportKey(m.cacheTag, text)
	if m.cache != nil {
		if rep, ok := m.cache.Get(ctx, key); ok {
			span.SetAttributes(attribute.Bool("cache.hit", true))
			m.complete(ctx, runID, rep, true)
			return
		}
	}

	rep, kind, err := m.generate(ctx, text)
	if err != nil {
		m.fail(ctx, span, runID, kind, err)
		return
	}
	if m.cache != nil {
		m.cache.Add(ctx, key, rep)
	}
	span.SetAttributes(
		attribute.Int("report.vulnerabilities", len(rep.Vulnerabilities)),
		attribute.Int("report.files", len(rep.Files)),
		attribute.Int("report.tokens", rep.TokensUsed),
	)
	m.complete(ctx, runID, rep, false)
}

func (m *Machine) collect(ctx context.Context, sourceID string) ([]types.SourceFile, error) {
	ctx, span := m.tracer.Start(ctx, "analysis.collect")
	defer span.End()
	files, err := m.collector.Collect(ctx, sourceID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if len(files) == 0 {
		return nil, collect.ErrNoFiles
	}
	span.SetAttributes(attribute.Int("files", len(files)))
	return files, nil
}

// generate performs the single model call and validates its payload.
func (m *Machine) generate(ctx context.Context, text string) (*types.AnalysisReport, ErrorKind, error) {
	gctx, span := m.tracer.Start(ctx, "analysis.generate", trace.WithAttributes(
		attribute.String("llm.client", m.client.Name()),
		attribute.Int("prompt.bytes", len(text)),
	))
	resp, err := m.client.GenerateJSON(llm.WithPhase(gctx, "analyze"), llm.Request{
		Prompt:            text,
		Schema:            schema.ReportSchema(),
		SystemInstruction: prompt.SystemInstruction,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()
		return nil, classify(ctx, err), fmt.Errorf("generate report: %w", err)
	}
	span.End()

	_, vspan := m.tracer.Start(ctx, "analysis.normalize")
	defer vspan.End()
	rep, err := report.NormalizeWith(resp, text, report.Options{StrictSeverity: m.strict})
	if err != nil {
		vspan.RecordError(err)
		vspan.SetStatus(codes.Error, err.Error())
		return nil, KindMalformed, fmt.Errorf("validate report: %w", err)
	}
	return rep, "", nil
}

func classify(ctx context.Context, err error) ErrorKind {
	switch {
	case llm.IsConfiguration(err):
		return KindConfiguration
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return KindTimeout
	case llm.IsTransport(err):
		return KindTransport
	default:
		// untyped failures come from middlewares or test doubles standing in
		// for the transport
		return KindTransport
	}
}

// transition applies fn if runID is still current. It reports whether the
// run may continue.
func (m *Machine) transition(runID string, fn func(*Snapshot)) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != runID || !m.state.Phase.InFlight() {
		return false
	}
	next := m.state
	fn(&next)
	m.setLocked(next)
	return true
}

func (m *Machine) complete(ctx context.Context, runID string, rep *types.AnalysisReport, cached bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != runID || !m.state.Phase.InFlight() {
		m.log.Printf("analysis: discarding result of stale run %s", runID)
		return
	}
	next := m.state
	next.Phase = PhaseComplete
	next.Report = rep
	next.Cached = cached
	m.setLocked(next)
	m.endRunLocked(runID)
	m.metrics.recordCompleted(ctx, m.now().Sub(m.started), cached)
}

func (m *Machine) fail(ctx context.Context, span trace.Span, runID string, kind ErrorKind, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != runID || !m.state.Phase.InFlight() {
		m.log.Printf("analysis: discarding failure of stale run %s: %v", runID, err)
		return
	}
	if errors.Is(err, context.DeadlineExceeded) && m.timeout > 0 {
		kind = KindTimeout
		err = fmt.Errorf("analysis timed out after %s: %w", m.timeout, err)
	}
	m.log.Printf("analysis: run %s failed (%s): %v", runID, kind, err)
	next := m.state
	next.Phase = PhaseError
	next.Report = nil
	next.Error = err.Error()
	next.ErrorKind = kind
	m.setLocked(next)
	m.endRunLocked(runID)
	m.metrics.recordFailed(ctx, m.now().Sub(m.started), kind)
}

// endRunLocked releases the run context and wakes waiters. The run stays
// current so that a later SavePlan can be attributed to it.
func (m *Machine) endRunLocked(runID string) {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	if rec, ok := m.runs.Peek(runID); ok {
		rec.finish(m.state, false)
	}
}

func (m *Machine) setLocked(s Snapshot) {
	s.Seq = m.state.Seq + 1
	s.UpdatedAt = m.now()
	m.state = s
	m.broker.publish(s)
}

// cacheTag identifies everything besides the prompt that shapes a report.
func cacheTag(client string, strict bool) (string, error) {
	sch, err := json.Marshal(schema.ReportSchema())
	if err != nil {
		return "", err
	}
	h := sha256.New()
	for _, part := range []string{client, prompt.SystemInstruction, string(sch), strconv.FormatBool(strict)} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func reportKey(tag, text string) string {
	sum := sha256.Sum256([]byte(tag + "\x00" + text))
	return hex.EncodeToString(sum[:])
}
