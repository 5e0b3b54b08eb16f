package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/spectrena/spectrena/internal/storage"
	"github.com/spectrena/spectrena/internal/types"
)

// CreateWorktreeHandle persists a new live handle plus its audit event
// in one transaction. The single-live-handle invariant is checked
// inside the write lock, backed by a partial unique index.
func (s *Store) CreateWorktreeHandle(ctx context.Context, handle *types.WorktreeHandle, event *types.AuditEvent) error {
	if err := types.ValidateSpecID(handle.SpecID); err != nil {
		return err
	}
	if handle.State == "" {
		handle.State = types.WorktreeActive
	}
	if !handle.State.IsValid() || handle.State.Terminal() {
		return fmt.Errorf("invalid initial worktree state: %s", handle.State)
	}

	now := time.Now().UTC()
	handle.CreatedAt = now
	handle.UpdatedAt = now

	return s.withWriteTx(ctx, func(conn *sql.Conn) error {
		if err := requireSpec(ctx, conn, handle.SpecID); err != nil {
			return err
		}

		var one int
		err := conn.QueryRowContext(ctx, `
			SELECT 1 FROM worktrees WHERE spec_id = ? AND state IN ('created', 'active')`,
			handle.SpecID).Scan(&one)
		if err == nil {
			return &storage.ConflictError{Kind: "worktree", ID: handle.SpecID}
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("failed to check live worktree: %w", err)
		}

		res, err := conn.ExecContext(ctx, `
			INSERT INTO worktrees (spec_id, branch, path, state, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			handle.SpecID, handle.Branch, handle.Path, handle.State, handle.CreatedAt, handle.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert worktree handle: %w", err)
		}
		handle.ID, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get worktree id: %w", err)
		}

		if event != nil {
			event.SpecID = handle.SpecID
			return insertAuditEvent(ctx, conn, event)
		}
		return nil
	})
}

// GetActiveWorktree returns the live handle for a spec.
func (s *Store) GetActiveWorktree(ctx context.Context, specID string) (*types.WorktreeHandle, error) {
	handle := &types.WorktreeHandle{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, spec_id, branch, path, state, created_at, updated_at
		FROM worktrees WHERE spec_id = ? AND state IN ('created', 'active')`, specID,
	).Scan(&handle.ID, &handle.SpecID, &handle.Branch, &handle.Path,
		&handle.State, &handle.CreatedAt, &handle.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, &storage.NotFoundError{Kind: "worktree", ID: specID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get worktree for %s: %w", specID, err)
	}
	return handle, nil
}

// ListActiveWorktrees enumerates all non-terminal handles.
func (s *Store) ListActiveWorktrees(ctx context.Context) ([]*types.WorktreeHandle, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, spec_id, branch, path, state, created_at, updated_at
		FROM worktrees WHERE state IN ('created', 'active') ORDER BY spec_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list worktrees: %w", err)
	}
	defer rows.Close()

	var handles []*types.WorktreeHandle
	for rows.Next() {
		handle := &types.WorktreeHandle{}
		if err := rows.Scan(&handle.ID, &handle.SpecID, &handle.Branch, &handle.Path,
			&handle.State, &handle.CreatedAt, &handle.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan worktree: %w", err)
		}
		handles = append(handles, handle)
	}
	return handles, rows.Err()
}

// TransitionWorktree moves a spec's live handle to a terminal state.
// The handle update, the audit event, and the optional spec status
// change commit atomically.
func (s *Store) TransitionWorktree(ctx context.Context, specID string, state types.WorktreeState, event *types.AuditEvent, specStatus *types.Status) error {
	if !state.Terminal() {
		return fmt.Errorf("transition target must be terminal, got %s", state)
	}

	return s.withWriteTx(ctx, func(conn *sql.Conn) error {
		now := time.Now().UTC()
		res, err := conn.ExecContext(ctx, `
			UPDATE worktrees SET state = ?, updated_at = ?
			WHERE spec_id = ? AND state IN ('created', 'active')`,
			state, now, specID)
		if err != nil {
			return fmt.Errorf("failed to transition worktree for %s: %w", specID, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to count transitioned worktrees: %w", err)
		}
		if affected == 0 {
			return &storage.NotFoundError{Kind: "worktree", ID: specID}
		}

		if specStatus != nil {
			var old types.Status
			if err := conn.QueryRowContext(ctx,
				"SELECT status FROM specs WHERE id = ?", specID).Scan(&old); err != nil {
				return fmt.Errorf("failed to read status of %s: %w", specID, err)
			}
			if old != *specStatus {
				if _, err := conn.ExecContext(ctx,
					"UPDATE specs SET status = ?, updated_at = ? WHERE id = ?",
					*specStatus, now, specID); err != nil {
					return fmt.Errorf("failed to update status of %s: %w", specID, err)
				}
			}
		}

		if event != nil {
			event.SpecID = specID
			return insertAuditEvent(ctx, conn, event)
		}
		return nil
	})
}

// AppendAuditEvent appends a standalone audit trail entry.
func (s *Store) AppendAuditEvent(ctx context.Context, event *types.AuditEvent) error {
	return s.withWriteTx(ctx, func(conn *sql.Conn) error {
		if err := requireSpec(ctx, conn, event.SpecID); err != nil {
			return err
		}
		return insertAuditEvent(ctx, conn, event)
	})
}

// ListAuditEvents returns a spec's audit trail, newest first.
func (s *Store) ListAuditEvents(ctx context.Context, specID string, limit int) ([]*types.AuditEvent, error) {
	if err := requireSpec(ctx, s.db, specID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, spec_id, kind, actor, detail, forced, created_at
		FROM audit_events WHERE spec_id = ?
		ORDER BY created_at DESC, id DESC LIMIT ?`, specID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit events for %s: %w", specID, err)
	}
	defer rows.Close()

	var events []*types.AuditEvent
	for rows.Next() {
		event := &types.AuditEvent{}
		if err := rows.Scan(&event.ID, &event.SpecID, &event.Kind, &event.Actor,
			&event.Detail, &event.Forced, &event.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}
