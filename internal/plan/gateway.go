package plan

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"archaeologist/internal/types"
)

// IDPrefix starts every plan id.
const IDPrefix = "refactor_"

// PersistenceError wraps a store failure. It never affects the report that
// was being saved.
type PersistenceError struct {
	Op  string
	ID  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("plan %s %s: %v", e.Op, e.ID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// IsPersistence reports whether err is (or wraps) a PersistenceError.
func IsPersistence(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}

// Gateway turns reports into plan records and writes them to a Store.
type Gateway struct {
	store Store
	now   func() time.Time
	newID func() string
}

func NewGateway(store Store) *Gateway {
	return &Gateway{
		store: store,
		now:   time.Now,
		newID: func() string { return IDPrefix + uuid.NewString() },
	}
}

// Save writes {repo, title, vulnerabilityCount, timestamp} for report and
// returns the new record id.
func (g *Gateway) Save(ctx context.Context, sourceID string, report *types.AnalysisReport) (string, error) {
	if g == nil || g.store == nil {
		return "", &PersistenceError{Op: "save", Err: fmt.Errorf("store is nil")}
	}
	if report == nil {
		return "", fmt.Errorf("report is required")
	}
	sourceID = strings.TrimSpace(sourceID)
	if sourceID == "" {
		return "", fmt.Errorf("source id is required")
	}
	rec := Record(g.newID(), sourceID, report, g.now())
	if err := g.store.Put(ctx, rec); err != nil {
		return "", &PersistenceError{Op: "save", ID: rec.ID, Err: err}
	}
	return rec.ID, nil
}

// Get reads one record back.
func (g *Gateway) Get(ctx context.Context, id string) (types.PlanRecord, error) {
	if g == nil || g.store == nil {
		return types.PlanRecord{}, &PersistenceError{Op: "get", ID: id, Err: fmt.Errorf("store is nil")}
	}
	rec, err := g.store.Get(ctx, strings.TrimSpace(id))
	if err != nil {
		return types.PlanRecord{}, &PersistenceError{Op: "get", ID: id, Err: err}
	}
	return rec, nil
}

// List returns the saved plans of repo.
func (g *Gateway) List(ctx context.Context, repo string) ([]types.PlanRecord, error) {
	if g == nil || g.store == nil {
		return nil, &PersistenceError{Op: "list", Err: fmt.Errorf("store is nil")}
	}
	out, err := g.store.List(ctx, strings.TrimSpace(repo))
	if err != nil {
		return nil, &PersistenceError{Op: "list", Err: err}
	}
	return out, nil
}

// Record builds the persisted summary of report.
func Record(id, sourceID string, report *types.AnalysisReport, at time.Time) types.PlanRecord {
	return types.PlanRecord{
		ID:                 id,
		Repo:               sourceID,
		Title:              report.PRTitle,
		VulnerabilityCount: len(report.Vulnerabilities),
		Timestamp:          at.UTC().Format(time.RFC3339),
	}
}
