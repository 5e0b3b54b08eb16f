package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spectrena/spectrena/internal/graph"
	"github.com/spectrena/spectrena/internal/storage"
	"github.com/spectrena/spectrena/internal/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "lineage.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func registerTestSpec(t *testing.T, s *Store, id string) {
	t.Helper()
	require.NoError(t, s.RegisterSpec(context.Background(), &types.Spec{ID: id}))
}

func TestRegisterSpecDefaults(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	spec := &types.Spec{ID: "auth-001-login"}
	require.NoError(t, s.RegisterSpec(ctx, spec))

	got, err := s.GetSpec(ctx, "auth-001-login")
	require.NoError(t, err)
	assert.Equal(t, "auth", got.Component)
	assert.Equal(t, types.StatusNotStarted, got.Status)
	assert.Equal(t, types.WeightStandard, got.Weight)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestRegisterSpecConflict(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	registerTestSpec(t, s, "auth-001-login")

	err := s.RegisterSpec(ctx, &types.Spec{ID: "auth-001-login"})
	var conflict *storage.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "spec", conflict.Kind)
}

func TestGetSpecNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetSpec(context.Background(), "auth-999-missing")
	var notFound *storage.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "auth-999-missing", notFound.ID)
}

func TestUpdateSpecStatusRecordsAudit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	registerTestSpec(t, s, "auth-001-login")

	require.NoError(t, s.UpdateSpecStatus(ctx, "auth-001-login", types.StatusInProgress, "tester"))

	got, err := s.GetSpec(ctx, "auth-001-login")
	require.NoError(t, err)
	assert.Equal(t, types.StatusInProgress, got.Status)

	events, err := s.ListAuditEvents(ctx, "auth-001-login", 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, types.EventStatusChanged, events[0].Kind)
	assert.Equal(t, "tester", events[0].Actor)
	assert.Equal(t, "not_started -> in_progress", events[0].Detail)
}

func TestUpdateSpecStatusNoOpWhenUnchanged(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	registerTestSpec(t, s, "auth-001-login")

	require.NoError(t, s.UpdateSpecStatus(ctx, "auth-001-login", types.StatusNotStarted, "tester"))

	events, err := s.ListAuditEvents(ctx, "auth-001-login", 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestAddEdgeRequiresBothEndpoints(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	registerTestSpec(t, s, "auth-001-login")

	err := s.AddEdge(ctx, "auth-001-login", "core-001-db", "tester")
	var notFound *storage.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "core-001-db", notFound.ID)
}

func TestAddEdgeRejectsDuplicate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	registerTestSpec(t, s, "auth-001-login")
	registerTestSpec(t, s, "core-001-db")
	require.NoError(t, s.AddEdge(ctx, "auth-001-login", "core-001-db", "tester"))

	err := s.AddEdge(ctx, "auth-001-login", "core-001-db", "tester")
	var conflict *storage.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "dependency", conflict.Kind)
}

func TestAddEdgeRejectsCycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	registerTestSpec(t, s, "auth-001-login")
	registerTestSpec(t, s, "core-001-db")
	registerTestSpec(t, s, "api-001-routes")
	require.NoError(t, s.AddEdge(ctx, "auth-001-login", "core-001-db", "tester"))
	require.NoError(t, s.AddEdge(ctx, "api-001-routes", "auth-001-login", "tester"))

	err := s.AddEdge(ctx, "core-001-db", "api-001-routes", "tester")
	var cycle *graph.CycleError
	require.ErrorAs(t, err, &cycle)

	// The rejected edge must not be persisted.
	edges, err := s.ListEdges(ctx)
	require.NoError(t, err)
	assert.Len(t, edges, 2)
}

func TestAddEdgeRejectsSelfLoop(t *testing.T) {
	s := newTestStore(t)
	registerTestSpec(t, s, "auth-001-login")

	err := s.AddEdge(context.Background(), "auth-001-login", "auth-001-login", "tester")
	var cycle *graph.CycleError
	require.ErrorAs(t, err, &cycle)
	assert.Equal(t, []string{"auth-001-login", "auth-001-login"}, cycle.Path)
}

func TestRemoveEdge(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	registerTestSpec(t, s, "auth-001-login")
	registerTestSpec(t, s, "core-001-db")
	require.NoError(t, s.AddEdge(ctx, "auth-001-login", "core-001-db", "tester"))

	require.NoError(t, s.RemoveEdge(ctx, "auth-001-login", "core-001-db", "tester"))

	edges, err := s.ListEdges(ctx)
	require.NoError(t, err)
	assert.Empty(t, edges)

	err = s.RemoveEdge(ctx, "auth-001-login", "core-001-db", "tester")
	var notFound *storage.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestPutPlanUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	registerTestSpec(t, s, "auth-001-login")

	require.NoError(t, s.PutPlan(ctx, &types.Plan{SpecID: "auth-001-login", Summary: "first draft"}))
	require.NoError(t, s.PutPlan(ctx, &types.Plan{SpecID: "auth-001-login", Summary: "revised"}))

	plan, err := s.GetPlan(ctx, "auth-001-login")
	require.NoError(t, err)
	assert.Equal(t, "revised", plan.Summary)
}

func TestGetPlanNotFound(t *testing.T) {
	s := newTestStore(t)
	registerTestSpec(t, s, "auth-001-login")

	_, err := s.GetPlan(context.Background(), "auth-001-login")
	var notFound *storage.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "plan", notFound.Kind)
}

func TestCompleteTaskPromotesSpec(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	registerTestSpec(t, s, "auth-001-login")
	require.NoError(t, s.PutPlan(ctx, &types.Plan{SpecID: "auth-001-login", Summary: "plan"}))

	id1, err := s.AddTask(ctx, &types.Task{SpecID: "auth-001-login", Title: "write handler"})
	require.NoError(t, err)
	id2, err := s.AddTask(ctx, &types.Task{SpecID: "auth-001-login", Title: "write tests"})
	require.NoError(t, err)

	minutes := 30
	require.NoError(t, s.CompleteTask(ctx, id1, &minutes, "tester"))

	got, err := s.GetSpec(ctx, "auth-001-login")
	require.NoError(t, err)
	assert.Equal(t, types.StatusNotStarted, got.Status, "open task remains")

	require.NoError(t, s.CompleteTask(ctx, id2, nil, "tester"))

	got, err = s.GetSpec(ctx, "auth-001-login")
	require.NoError(t, err)
	assert.Equal(t, types.StatusComplete, got.Status)

	events, err := s.ListAuditEvents(ctx, "auth-001-login", 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Contains(t, events[0].Detail, "all tasks complete")
}

func TestCompleteTaskWithoutPlanDoesNotPromote(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	registerTestSpec(t, s, "auth-001-login")

	id, err := s.AddTask(ctx, &types.Task{SpecID: "auth-001-login", Title: "write handler"})
	require.NoError(t, err)
	require.NoError(t, s.CompleteTask(ctx, id, nil, "tester"))

	got, err := s.GetSpec(ctx, "auth-001-login")
	require.NoError(t, err)
	assert.Equal(t, types.StatusNotStarted, got.Status)
}

func TestCompleteTaskIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	registerTestSpec(t, s, "auth-001-login")

	id, err := s.AddTask(ctx, &types.Task{SpecID: "auth-001-login", Title: "write handler"})
	require.NoError(t, err)
	require.NoError(t, s.CompleteTask(ctx, id, nil, "tester"))
	require.NoError(t, s.CompleteTask(ctx, id, nil, "tester"))

	tasks, err := s.ListTasksForSpec(ctx, "auth-001-login")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.True(t, tasks[0].Done)
	require.NotNil(t, tasks[0].CompletedAt)
}

func TestCompleteTaskNotFound(t *testing.T) {
	s := newTestStore(t)

	err := s.CompleteTask(context.Background(), 42, nil, "tester")
	var notFound *storage.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "task", notFound.Kind)
}

func TestAppendCodeChange(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	registerTestSpec(t, s, "auth-001-login")

	taskID, err := s.AddTask(ctx, &types.Task{SpecID: "auth-001-login", Title: "write handler"})
	require.NoError(t, err)

	change := &types.CodeChange{
		SpecID:   "auth-001-login",
		TaskID:   &taskID,
		FilePath: "internal/auth/login.go",
		Symbol:   "HandleLogin",
	}
	require.NoError(t, s.AppendCodeChange(ctx, change))
	assert.NotEmpty(t, change.ID)

	changes, err := s.ListCodeChanges(ctx, "auth-001-login")
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, "HandleLogin", changes[0].Symbol)
	require.NotNil(t, changes[0].TaskID)
	assert.Equal(t, taskID, *changes[0].TaskID)
}

func TestAppendCodeChangeUnknownTask(t *testing.T) {
	s := newTestStore(t)
	registerTestSpec(t, s, "auth-001-login")

	missing := int64(99)
	err := s.AppendCodeChange(context.Background(), &types.CodeChange{
		SpecID:   "auth-001-login",
		TaskID:   &missing,
		FilePath: "internal/auth/login.go",
	})
	var notFound *storage.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "task", notFound.Kind)
}

func TestCreateWorktreeHandleSingleLive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	registerTestSpec(t, s, "auth-001-login")

	handle := &types.WorktreeHandle{
		SpecID: "auth-001-login",
		Branch: "spec/auth-001-login",
		Path:   "../worktrees/auth-001-login",
	}
	require.NoError(t, s.CreateWorktreeHandle(ctx, handle, &types.AuditEvent{
		Kind:  types.EventWorktreeCreated,
		Actor: "tester",
	}))
	assert.NotZero(t, handle.ID)

	err := s.CreateWorktreeHandle(ctx, &types.WorktreeHandle{
		SpecID: "auth-001-login",
		Branch: "spec/auth-001-login",
		Path:   "../worktrees/auth-001-login",
	}, nil)
	var conflict *storage.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "worktree", conflict.Kind)
}

func TestTransitionWorktreeMerge(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	registerTestSpec(t, s, "auth-001-login")
	require.NoError(t, s.CreateWorktreeHandle(ctx, &types.WorktreeHandle{
		SpecID: "auth-001-login",
		Branch: "spec/auth-001-login",
		Path:   "../worktrees/auth-001-login",
	}, nil))

	complete := types.StatusComplete
	require.NoError(t, s.TransitionWorktree(ctx, "auth-001-login", types.WorktreeMerged, &types.AuditEvent{
		Kind:  types.EventWorktreeMerged,
		Actor: "tester",
	}, &complete))

	_, err := s.GetActiveWorktree(ctx, "auth-001-login")
	var notFound *storage.NotFoundError
	require.ErrorAs(t, err, &notFound)

	got, err := s.GetSpec(ctx, "auth-001-login")
	require.NoError(t, err)
	assert.Equal(t, types.StatusComplete, got.Status)

	// A merged handle no longer blocks a new one.
	require.NoError(t, s.CreateWorktreeHandle(ctx, &types.WorktreeHandle{
		SpecID: "auth-001-login",
		Branch: "spec/auth-001-login",
		Path:   "../worktrees/auth-001-login",
	}, nil))
}

func TestTransitionWorktreeRequiresLiveHandle(t *testing.T) {
	s := newTestStore(t)
	registerTestSpec(t, s, "auth-001-login")

	err := s.TransitionWorktree(context.Background(), "auth-001-login", types.WorktreeAbandoned, nil, nil)
	var notFound *storage.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "worktree", notFound.Kind)
}

func TestTransitionWorktreeRejectsNonTerminal(t *testing.T) {
	s := newTestStore(t)

	err := s.TransitionWorktree(context.Background(), "auth-001-login", types.WorktreeActive, nil, nil)
	require.Error(t, err)
	var notFound *storage.NotFoundError
	assert.False(t, errors.As(err, &notFound))
}

func TestListActiveWorktrees(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for _, id := range []string{"core-001-db", "auth-001-login"} {
		registerTestSpec(t, s, id)
		require.NoError(t, s.CreateWorktreeHandle(ctx, &types.WorktreeHandle{
			SpecID: id,
			Branch: "spec/" + id,
			Path:   "../worktrees/" + id,
		}, nil))
	}
	require.NoError(t, s.TransitionWorktree(ctx, "core-001-db", types.WorktreeAbandoned, nil, nil))

	handles, err := s.ListActiveWorktrees(ctx)
	require.NoError(t, err)
	require.Len(t, handles, 1)
	assert.Equal(t, "auth-001-login", handles[0].SpecID)
}

func TestListAuditEventsLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	registerTestSpec(t, s, "auth-001-login")

	for i := 0; i < 5; i++ {
		require.NoError(t, s.AppendAuditEvent(ctx, &types.AuditEvent{
			SpecID: "auth-001-login",
			Kind:   types.EventStatusChanged,
			Actor:  "tester",
		}))
	}

	events, err := s.ListAuditEvents(ctx, "auth-001-login", 3)
	require.NoError(t, err)
	assert.Len(t, events, 3)
}

func TestSpecProgress(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	registerTestSpec(t, s, "auth-001-login")
	require.NoError(t, s.PutPlan(ctx, &types.Plan{SpecID: "auth-001-login", Summary: "plan"}))

	id1, err := s.AddTask(ctx, &types.Task{SpecID: "auth-001-login", Title: "write handler"})
	require.NoError(t, err)
	_, err = s.AddTask(ctx, &types.Task{SpecID: "auth-001-login", Title: "write tests"})
	require.NoError(t, err)

	minutes := 45
	require.NoError(t, s.CompleteTask(ctx, id1, &minutes, "tester"))

	progress, err := s.SpecProgress(ctx, "auth-001-login")
	require.NoError(t, err)
	assert.True(t, progress.HasPlan)
	assert.Equal(t, 2, progress.TotalTasks)
	assert.Equal(t, 1, progress.DoneTasks)
	assert.Equal(t, 45, progress.MinutesSpent)
}

func TestStatistics(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	registerTestSpec(t, s, "auth-001-login")
	registerTestSpec(t, s, "core-001-db")
	require.NoError(t, s.AddEdge(ctx, "auth-001-login", "core-001-db", "tester"))
	require.NoError(t, s.UpdateSpecStatus(ctx, "core-001-db", types.StatusComplete, "tester"))
	require.NoError(t, s.CreateWorktreeHandle(ctx, &types.WorktreeHandle{
		SpecID: "auth-001-login",
		Branch: "spec/auth-001-login",
		Path:   "../worktrees/auth-001-login",
	}, nil))

	stats, err := s.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalSpecs)
	assert.Equal(t, 1, stats.CompleteSpecs)
	assert.Equal(t, 1, stats.TotalEdges)
	assert.Equal(t, 1, stats.ActiveWorktrees)
}

func TestSchemaVersion(t *testing.T) {
	s := newTestStore(t)

	version, err := s.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, version)
}

func TestReopenExistingStore(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lineage.db")

	s, err := New(path)
	require.NoError(t, err)
	registerTestSpec(t, s, "auth-001-login")
	require.NoError(t, s.Close())

	s2, err := New(path)
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.GetSpec(context.Background(), "auth-001-login")
	require.NoError(t, err)
	assert.Equal(t, "auth-001-login", got.ID)
}

func TestFailedMigrationLeavesStoreReadable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lineage.db")

	// A dependencies table with the wrong shape slips past the guarded
	// CREATE TABLE IF NOT EXISTS in version 1 and then breaks the
	// version 3 index over depends_on_id.
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE dependencies (spec_id TEXT PRIMARY KEY)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	s, err := New(path)
	var migErr *storage.MigrationError
	require.ErrorAs(t, err, &migErr)
	assert.Equal(t, 3, migErr.Version)
	require.NotNil(t, s)
	defer s.Close()

	ctx := context.Background()
	version, err := s.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, version)

	// Everything migrated before the failure stays readable.
	specs, err := s.ListSpecs(ctx)
	require.NoError(t, err)
	assert.Empty(t, specs)
}
