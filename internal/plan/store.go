// Package plan persists a summary record of an accepted modernization plan.
package plan

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"archaeologist/internal/types"
)

// Store defines operations for persisting plan records.
type Store interface {
	Put(ctx context.Context, rec types.PlanRecord) error
	Get(ctx context.Context, id string) (types.PlanRecord, error)
	// List returns records for repo ordered by timestamp, oldest first.
	// An empty repo lists everything.
	List(ctx context.Context, repo string) ([]types.PlanRecord, error)
}

var ErrNotFound = errors.New("plan not found")

func validateRecord(rec types.PlanRecord) error {
	if strings.TrimSpace(rec.ID) == "" {
		return fmt.Errorf("id is required")
	}
	if strings.TrimSpace(rec.Repo) == "" {
		return fmt.Errorf("repo is required")
	}
	return nil
}
