package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/spectrena/spectrena/internal/storage"
	"github.com/spectrena/spectrena/internal/types"
)

// PutPlan creates or replaces the plan owned by a spec. Replacement is
// explicit here by contract: a spec owns exactly one plan.
func (s *Store) PutPlan(ctx context.Context, plan *types.Plan) error {
	if err := types.ValidateSpecID(plan.SpecID); err != nil {
		return err
	}

	now := time.Now().UTC()
	return s.withWriteTx(ctx, func(conn *sql.Conn) error {
		if err := requireSpec(ctx, conn, plan.SpecID); err != nil {
			return err
		}
		_, err := conn.ExecContext(ctx, `
			INSERT INTO plans (spec_id, summary, created_at, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(spec_id) DO UPDATE SET summary = excluded.summary, updated_at = excluded.updated_at`,
			plan.SpecID, plan.Summary, now, now)
		if err != nil {
			return fmt.Errorf("failed to put plan: %w", err)
		}
		return nil
	})
}

// GetPlan fetches the plan for a spec.
func (s *Store) GetPlan(ctx context.Context, specID string) (*types.Plan, error) {
	plan := &types.Plan{}
	err := s.db.QueryRowContext(ctx, `
		SELECT spec_id, summary, created_at, updated_at
		FROM plans WHERE spec_id = ?`, specID,
	).Scan(&plan.SpecID, &plan.Summary, &plan.CreatedAt, &plan.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, &storage.NotFoundError{Kind: "plan", ID: specID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get plan for %s: %w", specID, err)
	}
	return plan, nil
}

// AddTask appends a task to a spec's plan and returns its ID.
func (s *Store) AddTask(ctx context.Context, task *types.Task) (int64, error) {
	if err := task.Validate(); err != nil {
		return 0, fmt.Errorf("validation failed: %w", err)
	}

	task.CreatedAt = time.Now().UTC()
	var id int64
	err := s.withWriteTx(ctx, func(conn *sql.Conn) error {
		if err := requireSpec(ctx, conn, task.SpecID); err != nil {
			return err
		}
		res, err := conn.ExecContext(ctx, `
			INSERT INTO tasks (spec_id, title, done, created_at)
			VALUES (?, ?, 0, ?)`, task.SpecID, task.Title, task.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert task: %w", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get task id: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	task.ID = id
	return id, nil
}

// ListTasksForSpec returns a spec's tasks in creation order.
func (s *Store) ListTasksForSpec(ctx context.Context, specID string) ([]*types.Task, error) {
	if err := requireSpec(ctx, s.db, specID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, spec_id, title, done, actual_minutes, created_at, completed_at
		FROM tasks WHERE spec_id = ? ORDER BY id`, specID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks for %s: %w", specID, err)
	}
	defer rows.Close()

	var tasks []*types.Task
	for rows.Next() {
		task := &types.Task{}
		if err := rows.Scan(&task.ID, &task.SpecID, &task.Title, &task.Done,
			&task.ActualMinutes, &task.CreatedAt, &task.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// CompleteTask marks a task done. When the owning spec's plan exists
// and no tasks remain open, the spec is promoted to Complete in the
// same transaction, so a crash can never record one without the other.
// Status never regresses: an already-complete spec stays complete.
func (s *Store) CompleteTask(ctx context.Context, taskID int64, actualMinutes *int, actor string) error {
	if actualMinutes != nil && *actualMinutes < 0 {
		return fmt.Errorf("actual_minutes cannot be negative")
	}

	return s.withWriteTx(ctx, func(conn *sql.Conn) error {
		var specID string
		var done bool
		err := conn.QueryRowContext(ctx,
			"SELECT spec_id, done FROM tasks WHERE id = ?", taskID).Scan(&specID, &done)
		if err == sql.ErrNoRows {
			return &storage.NotFoundError{Kind: "task", ID: fmt.Sprintf("%d", taskID)}
		}
		if err != nil {
			return fmt.Errorf("failed to read task %d: %w", taskID, err)
		}
		if done {
			return nil
		}

		now := time.Now().UTC()
		if _, err := conn.ExecContext(ctx, `
			UPDATE tasks SET done = 1, completed_at = ?, actual_minutes = ? WHERE id = ?`,
			now, actualMinutes, taskID); err != nil {
			return fmt.Errorf("failed to complete task %d: %w", taskID, err)
		}

		// Aggregate completion: plan present and zero open tasks.
		var hasPlan bool
		if err := conn.QueryRowContext(ctx,
			"SELECT EXISTS(SELECT 1 FROM plans WHERE spec_id = ?)", specID).Scan(&hasPlan); err != nil {
			return fmt.Errorf("failed to check plan for %s: %w", specID, err)
		}
		var open int
		if err := conn.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM tasks WHERE spec_id = ? AND done = 0", specID).Scan(&open); err != nil {
			return fmt.Errorf("failed to count open tasks for %s: %w", specID, err)
		}
		if !hasPlan || open > 0 {
			return nil
		}

		var status types.Status
		if err := conn.QueryRowContext(ctx,
			"SELECT status FROM specs WHERE id = ?", specID).Scan(&status); err != nil {
			return fmt.Errorf("failed to read status of %s: %w", specID, err)
		}
		if status == types.StatusComplete {
			return nil
		}
		if _, err := conn.ExecContext(ctx,
			"UPDATE specs SET status = ?, updated_at = ? WHERE id = ?",
			types.StatusComplete, now, specID); err != nil {
			return fmt.Errorf("failed to promote %s: %w", specID, err)
		}
		return insertAuditEvent(ctx, conn, &types.AuditEvent{
			SpecID: specID,
			Kind:   types.EventStatusChanged,
			Actor:  actor,
			Detail: fmt.Sprintf("%s -> %s (all tasks complete)", status, types.StatusComplete),
		})
	})
}

// AppendCodeChange records a modified location against a task or spec.
// Append-only: records are never mutated after creation.
func (s *Store) AppendCodeChange(ctx context.Context, change *types.CodeChange) error {
	if err := change.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	if change.ID == "" {
		change.ID = uuid.NewString()
	}
	change.CreatedAt = time.Now().UTC()

	return s.withWriteTx(ctx, func(conn *sql.Conn) error {
		if err := requireSpec(ctx, conn, change.SpecID); err != nil {
			return err
		}
		if change.TaskID != nil {
			var one int
			err := conn.QueryRowContext(ctx, "SELECT 1 FROM tasks WHERE id = ?", *change.TaskID).Scan(&one)
			if err == sql.ErrNoRows {
				return &storage.NotFoundError{Kind: "task", ID: fmt.Sprintf("%d", *change.TaskID)}
			}
			if err != nil {
				return fmt.Errorf("failed to check task %d: %w", *change.TaskID, err)
			}
		}
		_, err := conn.ExecContext(ctx, `
			INSERT INTO code_changes (id, spec_id, task_id, file_path, symbol, commit_sha, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			change.ID, change.SpecID, change.TaskID, change.FilePath, change.Symbol, change.CommitSHA, change.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert code change: %w", err)
		}
		return nil
	})
}

// ListCodeChanges returns a spec's code change records, oldest first.
func (s *Store) ListCodeChanges(ctx context.Context, specID string) ([]*types.CodeChange, error) {
	if err := requireSpec(ctx, s.db, specID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, spec_id, task_id, file_path, symbol, commit_sha, created_at
		FROM code_changes WHERE spec_id = ? ORDER BY created_at, id`, specID)
	if err != nil {
		return nil, fmt.Errorf("failed to list code changes for %s: %w", specID, err)
	}
	defer rows.Close()

	var changes []*types.CodeChange
	for rows.Next() {
		change := &types.CodeChange{}
		if err := rows.Scan(&change.ID, &change.SpecID, &change.TaskID,
			&change.FilePath, &change.Symbol, &change.CommitSHA, &change.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan code change: %w", err)
		}
		changes = append(changes, change)
	}
	return changes, rows.Err()
}
