package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/spectrena/spectrena/internal/graph"
	"github.com/spectrena/spectrena/internal/storage"
	"github.com/spectrena/spectrena/internal/types"
)

// AddEdge records that dependent depends on dependency. The acyclic
// invariant is enforced here, at the authority: the full edge set is
// replayed into a graph inside the write transaction, so a cycle-
// closing edge is rejected with a *graph.CycleError before commit.
func (s *Store) AddEdge(ctx context.Context, dependent, dependency, actor string) error {
	if dependent == dependency {
		return &graph.CycleError{Path: []string{dependent, dependent}}
	}

	return s.withWriteTx(ctx, func(conn *sql.Conn) error {
		for _, id := range []string{dependent, dependency} {
			if err := requireSpec(ctx, conn, id); err != nil {
				return err
			}
		}

		var one int
		err := conn.QueryRowContext(ctx,
			"SELECT 1 FROM dependencies WHERE spec_id = ? AND depends_on_id = ?",
			dependent, dependency).Scan(&one)
		if err == nil {
			return &storage.ConflictError{Kind: "dependency", ID: dependent + " --> " + dependency}
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("failed to check edge: %w", err)
		}

		g, err := loadEdgeGraph(ctx, conn)
		if err != nil {
			return err
		}
		if err := g.AddEdge(dependent, dependency); err != nil {
			return err
		}

		if _, err := conn.ExecContext(ctx, `
			INSERT INTO dependencies (spec_id, depends_on_id, created_at)
			VALUES (?, ?, ?)`, dependent, dependency, time.Now().UTC()); err != nil {
			return fmt.Errorf("failed to insert edge: %w", err)
		}
		return insertAuditEvent(ctx, conn, &types.AuditEvent{
			SpecID: dependent,
			Kind:   types.EventEdgeAdded,
			Actor:  actor,
			Detail: dependent + " --> " + dependency,
		})
	})
}

// RemoveEdge deletes a dependency edge. Edge deletion is the only
// supported delete in the store; the graph projection catches up on
// the next sync.
func (s *Store) RemoveEdge(ctx context.Context, dependent, dependency, actor string) error {
	return s.withWriteTx(ctx, func(conn *sql.Conn) error {
		res, err := conn.ExecContext(ctx,
			"DELETE FROM dependencies WHERE spec_id = ? AND depends_on_id = ?",
			dependent, dependency)
		if err != nil {
			return fmt.Errorf("failed to delete edge: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to count deleted edges: %w", err)
		}
		if affected == 0 {
			return &storage.NotFoundError{Kind: "dependency", ID: dependent + " --> " + dependency}
		}
		return insertAuditEvent(ctx, conn, &types.AuditEvent{
			SpecID: dependent,
			Kind:   types.EventEdgeRemoved,
			Actor:  actor,
			Detail: dependent + " --> " + dependency,
		})
	})
}

// ListEdges returns all dependency edges ordered by dependent then
// dependency.
func (s *Store) ListEdges(ctx context.Context) ([]*types.Edge, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT spec_id, depends_on_id, created_at
		FROM dependencies ORDER BY spec_id, depends_on_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list edges: %w", err)
	}
	defer rows.Close()

	var edges []*types.Edge
	for rows.Next() {
		edge := &types.Edge{}
		if err := rows.Scan(&edge.SpecID, &edge.DependsOnID, &edge.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		edges = append(edges, edge)
	}
	return edges, rows.Err()
}

// loadEdgeGraph rebuilds the dependency graph from the edge table.
func loadEdgeGraph(ctx context.Context, q querier) (*graph.Graph, error) {
	rows, err := q.QueryContext(ctx, "SELECT spec_id, depends_on_id FROM dependencies")
	if err != nil {
		return nil, fmt.Errorf("failed to load edges: %w", err)
	}
	defer rows.Close()

	g := graph.New()
	for rows.Next() {
		var dependent, dependency string
		if err := rows.Scan(&dependent, &dependency); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		// Stored edges are acyclic by construction; replay cannot fail.
		if err := g.AddEdge(dependent, dependency); err != nil {
			return nil, fmt.Errorf("stored edge set is inconsistent: %w", err)
		}
	}
	return g, rows.Err()
}
