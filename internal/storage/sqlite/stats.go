package sqlite

import (
	"context"
	"fmt"

	"github.com/spectrena/spectrena/internal/storage"
	"github.com/spectrena/spectrena/internal/types"
)

var _ storage.Storage = (*Store)(nil)

// SpecProgress aggregates plan and task state for one spec.
func (s *Store) SpecProgress(ctx context.Context, specID string) (*types.SpecProgress, error) {
	if err := requireSpec(ctx, s.db, specID); err != nil {
		return nil, err
	}

	progress := &types.SpecProgress{SpecID: specID}
	err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM plans WHERE spec_id = ?)", specID).Scan(&progress.HasPlan)
	if err != nil {
		return nil, fmt.Errorf("failed to check plan for %s: %w", specID, err)
	}
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(done), 0), COALESCE(SUM(actual_minutes), 0)
		FROM tasks WHERE spec_id = ?`, specID,
	).Scan(&progress.TotalTasks, &progress.DoneTasks, &progress.MinutesSpent)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate tasks for %s: %w", specID, err)
	}
	return progress, nil
}

// Statistics returns global store counts.
func (s *Store) Statistics(ctx context.Context) (*types.Statistics, error) {
	stats := &types.Statistics{}
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM specs),
			(SELECT COUNT(*) FROM specs WHERE status = 'complete'),
			(SELECT COUNT(*) FROM specs WHERE status = 'in_progress'),
			(SELECT COUNT(*) FROM dependencies),
			(SELECT COUNT(*) FROM tasks),
			(SELECT COUNT(*) FROM tasks WHERE done = 1),
			(SELECT COUNT(*) FROM worktrees WHERE state IN ('created', 'active'))`,
	).Scan(&stats.TotalSpecs, &stats.CompleteSpecs, &stats.InProgressSpecs,
		&stats.TotalEdges, &stats.TotalTasks, &stats.DoneTasks, &stats.ActiveWorktrees)
	if err != nil {
		return nil, fmt.Errorf("failed to gather statistics: %w", err)
	}
	return stats, nil
}
