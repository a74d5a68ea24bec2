package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/amicus-backend/internal/data/repos/testutil"
	types "github.com/yungbote/amicus-backend/internal/domain"
	"github.com/yungbote/amicus-backend/internal/pkg/dbctx"
)

func TestJobRunRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewJobRunRepo(db, testutil.Logger(t))

	now := time.Now().UTC()
	caseID := uuid.New()

	queued := &types.JobRun{
		JobType:        "test_job",
		EntityType:     "case",
		EntityID:       testutil.PtrUUID(caseID),
		IdempotencyKey: "key-1",
		Status:         types.JobStatusQueued,
		Stage:          "queued",
		Payload:        datatypes.JSON([]byte("{}")),
		Result:         datatypes.JSON([]byte("{}")),
		CreatedAt:      now.Add(-3 * time.Hour),
		UpdatedAt:      now.Add(-3 * time.Hour),
	}
	failed := &types.JobRun{
		JobType:     "test_job",
		EntityType:  "case",
		EntityID:    testutil.PtrUUID(caseID),
		Status:      types.JobStatusFailed,
		Stage:       "failed",
		LastErrorAt: testutil.PtrTime(now.Add(-2 * time.Hour)),
		Payload:     datatypes.JSON([]byte("{}")),
		Result:      datatypes.JSON([]byte("{}")),
		CreatedAt:   now.Add(-2 * time.Hour),
		UpdatedAt:   now.Add(-2 * time.Hour),
	}
	staleRunning := &types.JobRun{
		JobType:     "test_job",
		EntityType:  "case",
		EntityID:    testutil.PtrUUID(uuid.New()),
		Status:      types.JobStatusRunning,
		Stage:       "running",
		HeartbeatAt: testutil.PtrTime(now.Add(-10 * time.Hour)),
		Payload:     datatypes.JSON([]byte("{}")),
		Result:      datatypes.JSON([]byte("{}")),
		CreatedAt:   now.Add(-1 * time.Hour),
		UpdatedAt:   now.Add(-1 * time.Hour),
	}

	created, err := repo.Create(dbc, []*types.JobRun{queued, failed, staleRunning})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(created) != 3 || queued.ID == uuid.Nil {
		t.Fatalf("Create: expected 3 rows with ids, got %d (id=%s)", len(created), queued.ID)
	}

	if rows, err := repo.GetByIDs(dbc, []uuid.UUID{queued.ID, failed.ID, staleRunning.ID}); err != nil || len(rows) != 3 {
		t.Fatalf("GetByIDs: err=%v len=%d", err, len(rows))
	}

	if got, err := repo.GetByIdempotencyKey(dbc, "test_job", "key-1"); err != nil || got == nil || got.ID != queued.ID {
		t.Fatalf("GetByIdempotencyKey: err=%v got=%v", err, got)
	}
	if got, err := repo.GetByIdempotencyKey(dbc, "other_job", "key-1"); err != nil || got != nil {
		t.Fatalf("GetByIdempotencyKey(other type): err=%v got=%v", err, got)
	}

	latest, err := repo.GetLatestByEntity(dbc, "case", caseID, "test_job")
	if err != nil || latest == nil || latest.ID != failed.ID {
		t.Fatalf("GetLatestByEntity: err=%v got=%v", err, latest)
	}

	// Oldest runnable first: queued, then failed (retry window elapsed), then stale running.
	want := []uuid.UUID{queued.ID, failed.ID, staleRunning.ID}
	for i, id := range want {
		claimed, err := repo.ClaimNextRunnable(dbc, 3, time.Minute, time.Hour)
		if err != nil {
			t.Fatalf("ClaimNextRunnable #%d: %v", i, err)
		}
		if claimed == nil || claimed.ID != id {
			t.Fatalf("ClaimNextRunnable #%d: expected %s, got %v", i, id, claimed)
		}
		if claimed.Status != types.JobStatusRunning || claimed.Attempts != 1 {
			t.Fatalf("ClaimNextRunnable #%d: status=%s attempts=%d", i, claimed.Status, claimed.Attempts)
		}
	}
	if claimed, err := repo.ClaimNextRunnable(dbc, 3, time.Minute, time.Hour); err != nil || claimed != nil {
		t.Fatalf("ClaimNextRunnable (empty): err=%v got=%v", err, claimed)
	}

	ok, err := repo.UpdateFieldsUnlessStatus(dbc, queued.ID, []string{types.JobStatusCanceled}, map[string]interface{}{"status": types.JobStatusCanceled})
	if err != nil || !ok {
		t.Fatalf("UpdateFieldsUnlessStatus(cancel): ok=%v err=%v", ok, err)
	}
	ok, err = repo.UpdateFieldsUnlessStatus(dbc, queued.ID, []string{types.JobStatusCanceled}, map[string]interface{}{"progress": 50})
	if err != nil || ok {
		t.Fatalf("UpdateFieldsUnlessStatus(on canceled): ok=%v err=%v", ok, err)
	}

	if err := repo.Heartbeat(dbc, failed.ID); err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}

	counts, err := repo.CountByStatus(dbc, "test_job")
	if err != nil {
		t.Fatalf("CountByStatus: %v", err)
	}
	if counts[types.JobStatusRunning] != 2 || counts[types.JobStatusCanceled] != 1 {
		t.Fatalf("CountByStatus: %v", counts)
	}
}

func TestJobRunEventRepo(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}
	repo := NewJobRunEventRepo(db, testutil.Logger(t))

	jobID := uuid.New()
	base := time.Now().UTC()
	var events []*types.JobRunEvent
	for i, kind := range []types.JobEventKind{types.JobEventCreated, types.JobEventProgress, types.JobEventSucceeded} {
		events = append(events, &types.JobRunEvent{
			JobID:     jobID,
			JobType:   "test_job",
			Kind:      string(kind),
			Status:    types.JobStatusRunning,
			Stage:     "s",
			Progress:  i * 50,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
	}
	if err := repo.Create(dbc, events); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.ListByJob(dbc, jobID, 2)
	if err != nil {
		t.Fatalf("ListByJob: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ListByJob: expected 2, got %d", len(got))
	}
	if got[0].Kind != string(types.JobEventProgress) || got[1].Kind != string(types.JobEventSucceeded) {
		t.Fatalf("ListByJob order: %s, %s", got[0].Kind, got[1].Kind)
	}
}
