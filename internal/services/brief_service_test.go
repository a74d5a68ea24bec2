package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/amicus-backend/internal/data/repos"
	"github.com/yungbote/amicus-backend/internal/data/repos/testutil"
	types "github.com/yungbote/amicus-backend/internal/domain"
	"github.com/yungbote/amicus-backend/internal/pkg/ctxutil"
	"github.com/yungbote/amicus-backend/internal/pkg/dbctx"
	apperrors "github.com/yungbote/amicus-backend/internal/pkg/errors"
	"github.com/yungbote/amicus-backend/internal/platform/apierr"
	"github.com/yungbote/amicus-backend/internal/realtime"
)

type briefFixture struct {
	db     *gorm.DB
	svc    BriefService
	deps   BriefServiceDeps
	sse    *recordingEmitter
	caseID uuid.UUID
}

func newBriefFixture(t *testing.T) *briefFixture {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	kase := testutil.SeedCase(t, context.Background(), db, "Doe v. State")
	sse := &recordingEmitter{}
	deps := BriefServiceDeps{
		Jobs:     repos.NewJobRunRepo(db, log),
		Events:   repos.NewJobRunEventRepo(db, log),
		Cases:    repos.NewCaseRepo(db, log),
		Briefs:   repos.NewBriefRepo(db, log),
		Waves:    repos.NewBriefWaveRepo(db, log),
		WaveLogs: repos.NewBriefWaveLogRepo(db, log),
		Notify:   NewJobNotifier(sse),
	}
	return &briefFixture{db: db, svc: NewBriefService(db, log, deps), deps: deps, sse: sse, caseID: kase.ID}
}

func bg() dbctx.Context { return dbctx.Context{Ctx: context.Background()} }

func statusOf(err error) int {
	if ae := apierr.From(err, "internal"); ae != nil {
		return ae.Status
	}
	return 0
}

func TestStartCreatesJobAndBrief(t *testing.T) {
	f := newBriefFixture(t)
	ctx := ctxutil.WithTraceData(context.Background(), &ctxutil.TraceData{TraceID: "trace-1", RequestID: "req-1"})
	job, brief, created, err := f.svc.Start(dbctx.Context{Ctx: ctx}, StartBriefInput{
		CaseID:          f.caseID,
		ApprovedOutline: "I. Argument",
	})
	if err != nil || !created {
		t.Fatalf("Start: created=%v err=%v", created, err)
	}
	if job.Status != types.JobStatusQueued || job.EntityID == nil || *job.EntityID != f.caseID {
		t.Fatalf("job=%+v", job)
	}
	if brief.JobID != job.ID || brief.Status != types.BriefStatusQueued || brief.Title == "" {
		t.Fatalf("brief=%+v", brief)
	}

	var pl types.GeneratePayload
	if err := json.Unmarshal(job.Payload, &pl); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if pl.CaseID != f.caseID || pl.TraceID != "trace-1" || pl.RequestID != "req-1" {
		t.Fatalf("payload=%+v", pl)
	}

	view, err := f.svc.Get(bg(), job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if view.Brief == nil || view.Brief.ID != brief.ID || len(view.Events) != 1 || view.Events[0].Kind != string(types.JobEventCreated) {
		t.Fatalf("view=%+v", view)
	}
	if len(f.sse.msgs) != 2 || f.sse.msgs[0].Event != realtime.SSEEventJobCreated {
		t.Fatalf("notifications=%d", len(f.sse.msgs))
	}
}

func TestStartValidatesBeforeWriting(t *testing.T) {
	f := newBriefFixture(t)
	if _, _, _, err := f.svc.Start(bg(), StartBriefInput{CaseID: f.caseID, ApprovedOutline: "  "}); statusOf(err) != http.StatusBadRequest {
		t.Fatalf("missing outline: err=%v", err)
	}
	_, _, _, err := f.svc.Start(bg(), StartBriefInput{CaseID: uuid.New(), ApprovedOutline: "I."})
	if !errors.Is(err, apperrors.ErrNotFound) || apierr.From(err, "").Code != "case_not_found" {
		t.Fatalf("unknown case: err=%v", err)
	}
	var n int64
	f.db.Model(&types.JobRun{}).Count(&n)
	if n != 0 {
		t.Fatalf("jobs written: %d", n)
	}
}

func TestStartHonoursIdempotencyKey(t *testing.T) {
	f := newBriefFixture(t)
	in := StartBriefInput{CaseID: f.caseID, ApprovedOutline: "I.", IdempotencyKey: "abc"}
	first, firstBrief, created, err := f.svc.Start(bg(), in)
	if err != nil || !created {
		t.Fatalf("first: %v", err)
	}
	again, againBrief, created, err := f.svc.Start(bg(), in)
	if err != nil || created {
		t.Fatalf("replay: created=%v err=%v", created, err)
	}
	if again.ID != first.ID || againBrief.ID != firstBrief.ID {
		t.Fatalf("replay returned a new job")
	}
}

// staleKeyLookup misses every idempotency lookup, as a request does when a
// concurrent request with the same key has not committed yet.
type staleKeyLookup struct {
	repos.JobRunRepo
	misses int
}

func (r *staleKeyLookup) GetByIdempotencyKey(dbc dbctx.Context, jobType string, key string) (*types.JobRun, error) {
	if r.misses > 0 {
		r.misses--
		return nil, nil
	}
	return r.JobRunRepo.GetByIdempotencyKey(dbc, jobType, key)
}

func TestStartReplaysWhenConcurrentCreateWins(t *testing.T) {
	f := newBriefFixture(t)
	in := StartBriefInput{CaseID: f.caseID, ApprovedOutline: "I.", IdempotencyKey: "race"}
	first, firstBrief, created, err := f.svc.Start(bg(), in)
	if err != nil || !created {
		t.Fatalf("first: created=%v err=%v", created, err)
	}

	deps := f.deps
	deps.Jobs = &staleKeyLookup{JobRunRepo: f.deps.Jobs, misses: 1}
	late := NewBriefService(f.db, testutil.Logger(t), deps)
	sent := len(f.sse.msgs)
	job, brief, created, err := late.Start(bg(), in)
	if err != nil || created {
		t.Fatalf("late: created=%v err=%v", created, err)
	}
	if job.ID != first.ID || brief == nil || brief.ID != firstBrief.ID {
		t.Fatalf("late start returned job=%s brief=%v", job.ID, brief)
	}
	var jobs, briefs int64
	f.db.Model(&types.JobRun{}).Count(&jobs)
	f.db.Model(&types.Brief{}).Count(&briefs)
	if jobs != 1 || briefs != 1 {
		t.Fatalf("jobs=%d briefs=%d", jobs, briefs)
	}
	if len(f.sse.msgs) != sent {
		t.Fatalf("replay should not notify")
	}
}

func TestCancelAndRestart(t *testing.T) {
	f := newBriefFixture(t)
	job, brief, _, err := f.svc.Start(bg(), StartBriefInput{CaseID: f.caseID, ApprovedOutline: "I."})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	if _, err := f.svc.Restart(bg(), job.ID); statusOf(err) != http.StatusConflict {
		t.Fatalf("restart of queued job: err=%v", err)
	}

	canceled, err := f.svc.Cancel(bg(), job.ID)
	if err != nil || canceled.Status != types.JobStatusCanceled {
		t.Fatalf("Cancel: %+v err=%v", canceled, err)
	}
	b, _ := f.deps.Briefs.GetByID(bg(), brief.ID)
	if b.Status != types.BriefStatusCanceled {
		t.Fatalf("brief status=%s", b.Status)
	}
	again, err := f.svc.Cancel(bg(), job.ID)
	if err != nil || again.Status != types.JobStatusCanceled {
		t.Fatalf("second cancel: %v", err)
	}

	restarted, err := f.svc.Restart(bg(), job.ID)
	if err != nil || restarted.Status != types.JobStatusQueued || restarted.Error != "" {
		t.Fatalf("Restart: %+v err=%v", restarted, err)
	}
	stored, _ := f.deps.Jobs.GetByID(bg(), job.ID)
	if stored.Status != types.JobStatusQueued || stored.Attempts != 0 {
		t.Fatalf("stored=%+v", stored)
	}
	events, _ := f.deps.Events.ListByJob(bg(), job.ID, 10)
	kinds := map[string]bool{}
	for _, ev := range events {
		kinds[ev.Kind] = true
	}
	if len(events) != 3 || !kinds[string(types.JobEventCanceled)] || !kinds[string(types.JobEventRestarted)] {
		t.Fatalf("events=%d kinds=%v", len(events), kinds)
	}
}

func TestWaveReads(t *testing.T) {
	f := newBriefFixture(t)
	job, brief, _, err := f.svc.Start(bg(), StartBriefInput{CaseID: f.caseID, ApprovedOutline: "I."})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	testutil.SeedWave(t, context.Background(), f.db, job.ID, brief.ID, 1, "# Brief\n\nBackbone.")

	if _, err := f.svc.Wave(bg(), job.ID, 9); statusOf(err) != http.StatusBadRequest {
		t.Fatalf("wave 9: err=%v", err)
	}
	if _, err := f.svc.Wave(bg(), job.ID, 2); statusOf(err) != http.StatusNotFound {
		t.Fatalf("wave 2: err=%v", err)
	}
	w, err := f.svc.Wave(bg(), job.ID, 1)
	if err != nil || w.Content == "" {
		t.Fatalf("wave 1: %+v err=%v", w, err)
	}
	list, err := f.svc.Waves(bg(), job.ID, false)
	if err != nil || len(list) != 1 || list[0].Content != "" {
		t.Fatalf("list=%v err=%v", list, err)
	}
	logs, err := f.svc.Logs(bg(), job.ID, 0)
	if err != nil || logs.Entries == nil || logs.Status != types.JobStatusQueued {
		t.Fatalf("logs=%+v err=%v", logs, err)
	}
	if _, err := f.svc.Get(bg(), uuid.New()); statusOf(err) != http.StatusNotFound {
		t.Fatalf("unknown job: err=%v", err)
	}
}
