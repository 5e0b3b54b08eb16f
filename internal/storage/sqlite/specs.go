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

// RegisterSpec persists a new spec. Specs are never deleted, only
// archived through status; re-registering an existing identifier is a
// ConflictError.
func (s *Store) RegisterSpec(ctx context.Context, spec *types.Spec) error {
	if spec.Component == "" {
		spec.Component = types.ComponentOf(spec.ID)
	}
	if spec.Status == "" {
		spec.Status = types.StatusNotStarted
	}
	if spec.Weight == "" {
		spec.Weight = types.WeightStandard
	}
	if err := spec.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now().UTC()
	spec.CreatedAt = now
	spec.UpdatedAt = now

	return s.withWriteTx(ctx, func(conn *sql.Conn) error {
		exists, err := specExists(ctx, conn, spec.ID)
		if err != nil {
			return err
		}
		if exists {
			return &storage.ConflictError{Kind: "spec", ID: spec.ID}
		}
		_, err = conn.ExecContext(ctx, `
			INSERT INTO specs (id, component, status, weight, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			spec.ID, spec.Component, spec.Status, spec.Weight, spec.CreatedAt, spec.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert spec: %w", err)
		}
		return nil
	})
}

// GetSpec fetches one spec by identifier.
func (s *Store) GetSpec(ctx context.Context, id string) (*types.Spec, error) {
	spec := &types.Spec{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, component, status, weight, created_at, updated_at
		FROM specs WHERE id = ?`, id,
	).Scan(&spec.ID, &spec.Component, &spec.Status, &spec.Weight, &spec.CreatedAt, &spec.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, &storage.NotFoundError{Kind: "spec", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get spec %s: %w", id, err)
	}
	return spec, nil
}

// ListSpecs returns all specs ordered by identifier.
func (s *Store) ListSpecs(ctx context.Context) ([]*types.Spec, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, component, status, weight, created_at, updated_at
		FROM specs ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list specs: %w", err)
	}
	defer rows.Close()

	var specs []*types.Spec
	for rows.Next() {
		spec := &types.Spec{}
		if err := rows.Scan(&spec.ID, &spec.Component, &spec.Status, &spec.Weight, &spec.CreatedAt, &spec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan spec: %w", err)
		}
		specs = append(specs, spec)
	}
	return specs, rows.Err()
}

// UpdateSpecStatus changes a spec's status and records the audit event
// in the same transaction.
func (s *Store) UpdateSpecStatus(ctx context.Context, id string, status types.Status, actor string) error {
	if !status.IsValid() {
		return fmt.Errorf("invalid status: %s", status)
	}

	return s.withWriteTx(ctx, func(conn *sql.Conn) error {
		var old types.Status
		err := conn.QueryRowContext(ctx, "SELECT status FROM specs WHERE id = ?", id).Scan(&old)
		if err == sql.ErrNoRows {
			return &storage.NotFoundError{Kind: "spec", ID: id}
		}
		if err != nil {
			return fmt.Errorf("failed to read status of %s: %w", id, err)
		}
		if old == status {
			return nil
		}

		now := time.Now().UTC()
		if _, err := conn.ExecContext(ctx,
			"UPDATE specs SET status = ?, updated_at = ? WHERE id = ?", status, now, id); err != nil {
			return fmt.Errorf("failed to update status of %s: %w", id, err)
		}
		return insertAuditEvent(ctx, conn, &types.AuditEvent{
			SpecID: id,
			Kind:   types.EventStatusChanged,
			Actor:  actor,
			Detail: fmt.Sprintf("%s -> %s", old, status),
		})
	})
}

// insertAuditEvent appends one audit row inside an open transaction,
// assigning the ID and timestamp if unset.
func insertAuditEvent(ctx context.Context, q querier, event *types.AuditEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO audit_events (id, spec_id, kind, actor, detail, forced, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.SpecID, event.Kind, event.Actor, event.Detail, event.Forced, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}
