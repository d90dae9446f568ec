package analysis

import (
	"context"
	"errors"
	"fmt"

	"archaeologist/internal/plan"
)

type saveResult struct {
	id  string
	err error
}

// SavePlan hands the current report to the plan gateway. The save continues
// in the background even if ctx ends first; its outcome is recorded on the
// snapshot's Persistence field and never alters the report or the phase.
func (m *Machine) SavePlan(ctx context.Context) (string, error) {
	m.mu.Lock()
	if m.state.Phase != PhaseComplete || m.state.Report == nil {
		m.mu.Unlock()
		return "", ErrNoReport
	}
	if m.plans == nil {
		m.mu.Unlock()
		return "", ErrNoPlanStore
	}
	runID := m.state.RunID
	sourceID := m.state.SourceID
	rep := m.state.Report
	next := m.state
	next.Persistence = Persistence{State: SaveSaving}
	m.setLocked(next)
	m.wg.Add(1)
	m.mu.Unlock()

	done := make(chan saveResult, 1)
	go func() {
		defer m.wg.Done()
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.saveTimeout)
		defer cancel()
		id, err := m.plans.Save(sctx, sourceID, rep)
		m.recordSave(runID, id, err)
		done <- saveResult{id: id, err: err}
	}()

	select {
	case r := <-done:
		return r.id, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (m *Machine) recordSave(runID, id string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != runID || m.state.Phase != PhaseComplete {
		return
	}
	next := m.state
	if err != nil {
		m.log.Printf("analysis: plan save for run %s failed: %v", runID, err)
		next.Persistence = Persistence{State: SaveFailed, Error: describeSaveError(err)}
	} else {
		next.Persistence = Persistence{State: SaveSaved, PlanID: id}
	}
	m.setLocked(next)
}

func describeSaveError(err error) string {
	var pe *plan.PersistenceError
	if errors.As(err, &pe) {
		return fmt.Sprintf("could not save plan: %v", pe.Err)
	}
	return err.Error()
}
