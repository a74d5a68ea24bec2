package briefs

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/amicus-backend/internal/data/repos/testutil"
	types "github.com/yungbote/amicus-backend/internal/domain"
	"github.com/yungbote/amicus-backend/internal/domain/briefs"
	"github.com/yungbote/amicus-backend/internal/pkg/dbctx"
)

func TestCaseReadRepos(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	log := testutil.Logger(t)

	c := testutil.SeedCase(t, ctx, tx, "Doe v. United States")
	other := testutil.SeedCase(t, ctx, tx, "Other")
	d1 := testutil.SeedCaseDocument(t, ctx, tx, c.ID, "Opinion below")
	testutil.SeedCaseDocument(t, ctx, tx, c.ID, "Petition")
	testutil.SeedCaseDocument(t, ctx, tx, other.ID, "Unrelated")
	testutil.SeedResearch(t, ctx, tx, c.ID, briefs.ResearchHistorical, "Founding era")
	testutil.SeedResearch(t, ctx, tx, c.ID, briefs.ResearchPrecedent, "Key precedent")
	testutil.SeedJusticeAnalysis(t, ctx, tx, c.ID, "Justice Roberts")
	ref := testutil.SeedReferenceBrief(t, ctx, tx, testutil.PtrUUID(c.ID), "Model brief")
	testutil.SeedChat(t, ctx, tx, c.ID, "first", "second", "third")

	caseRepo := NewCaseRepo(db, log)
	got, err := caseRepo.GetByID(dbc, c.ID)
	if err != nil || got == nil || got.Title != c.Title {
		t.Fatalf("CaseRepo.GetByID: err=%v got=%v", err, got)
	}
	if missing, err := caseRepo.GetByID(dbc, uuid.New()); err != nil || missing != nil {
		t.Fatalf("CaseRepo.GetByID(missing): err=%v got=%v", err, missing)
	}
	if err := caseRepo.UpdateFacts(dbc, c.ID, datatypes.JSON([]byte(`{"parties":["Doe"]}`))); err != nil {
		t.Fatalf("UpdateFacts: %v", err)
	}
	got, _ = caseRepo.GetByID(dbc, c.ID)
	if got.FactsExtractedAt == nil || string(got.Facts) != `{"parties":["Doe"]}` {
		t.Fatalf("UpdateFacts: facts=%s at=%v", string(got.Facts), got.FactsExtractedAt)
	}

	docs, err := NewCaseDocumentRepo(db, log).ListByCase(dbc, c.ID, nil)
	if err != nil || len(docs) != 2 {
		t.Fatalf("CaseDocumentRepo.ListByCase: err=%v len=%d", err, len(docs))
	}
	docs, err = NewCaseDocumentRepo(db, log).ListByCase(dbc, c.ID, []uuid.UUID{d1.ID})
	if err != nil || len(docs) != 1 || docs[0].ID != d1.ID {
		t.Fatalf("CaseDocumentRepo.ListByCase(ids): err=%v docs=%v", err, docs)
	}

	research, err := NewResearchResultRepo(db, log).ListByCase(dbc, c.ID, nil)
	if err != nil || len(research) != 2 {
		t.Fatalf("ResearchResultRepo.ListByCase: err=%v len=%d", err, len(research))
	}

	justices, err := NewJusticeAnalysisRepo(db, log).ListByCase(dbc, c.ID, nil)
	if err != nil || len(justices) != 1 {
		t.Fatalf("JusticeAnalysisRepo.ListByCase: err=%v len=%d", err, len(justices))
	}

	refRepo := NewReferenceBriefRepo(db, log)
	if rb, err := refRepo.GetByID(dbc, ref.ID); err != nil || rb == nil {
		t.Fatalf("ReferenceBriefRepo.GetByID: err=%v", err)
	}
	if rb, err := refRepo.GetLatestForCase(dbc, c.ID); err != nil || rb == nil || rb.ID != ref.ID {
		t.Fatalf("ReferenceBriefRepo.GetLatestForCase: err=%v rb=%v", err, rb)
	}
	if rb, err := refRepo.GetLatestForCase(dbc, other.ID); err != nil || rb != nil {
		t.Fatalf("ReferenceBriefRepo.GetLatestForCase(none): err=%v rb=%v", err, rb)
	}

	chat, err := NewCaseChatMessageRepo(db, log).ListByCase(dbc, c.ID, 0)
	if err != nil || len(chat) != 3 {
		t.Fatalf("CaseChatMessageRepo.ListByCase: err=%v len=%d", err, len(chat))
	}
	if chat[0].Content != "first" || chat[2].Content != "third" {
		t.Fatalf("chat order: %q .. %q", chat[0].Content, chat[2].Content)
	}
}

func TestBriefWaveRepoInsertIsIdempotent(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	log := testutil.Logger(t)

	c := testutil.SeedCase(t, ctx, tx, "Case")
	job := testutil.SeedJob(t, ctx, tx, "brief_generate", types.JobStatusRunning, "")
	b := testutil.SeedBrief(t, ctx, tx, c.ID, job.ID)

	repo := NewBriefWaveRepo(db, log)
	first := &types.BriefWave{JobID: job.ID, BriefID: b.ID, WaveNumber: 1, WaveName: "Backbone Draft", Content: "first"}
	inserted, err := repo.Insert(dbc, first)
	if err != nil || !inserted {
		t.Fatalf("Insert: inserted=%v err=%v", inserted, err)
	}
	dup := &types.BriefWave{JobID: job.ID, BriefID: b.ID, WaveNumber: 1, WaveName: "Backbone Draft", Content: "second"}
	inserted, err = repo.Insert(dbc, dup)
	if err != nil || inserted {
		t.Fatalf("Insert(dup): inserted=%v err=%v", inserted, err)
	}

	got, err := repo.Get(dbc, job.ID, 1)
	if err != nil || got == nil || got.Content != "first" {
		t.Fatalf("Get: err=%v got=%v", err, got)
	}
	if ok, err := repo.Exists(dbc, job.ID, 2); err != nil || ok {
		t.Fatalf("Exists(2): ok=%v err=%v", ok, err)
	}

	if _, err := repo.Insert(dbc, &types.BriefWave{JobID: job.ID, BriefID: b.ID, WaveNumber: 2, WaveName: "Historical Integration", Content: "two"}); err != nil {
		t.Fatalf("Insert(2): %v", err)
	}
	n, err := repo.LatestWaveNumber(dbc, job.ID)
	if err != nil || n != 2 {
		t.Fatalf("LatestWaveNumber: n=%d err=%v", n, err)
	}
	if n, err := repo.LatestWaveNumber(dbc, uuid.New()); err != nil || n != 0 {
		t.Fatalf("LatestWaveNumber(empty): n=%d err=%v", n, err)
	}

	list, err := repo.ListByJob(dbc, job.ID, false)
	if err != nil || len(list) != 2 {
		t.Fatalf("ListByJob: err=%v len=%d", err, len(list))
	}
	if list[0].WaveNumber != 1 || list[0].Content != "" {
		t.Fatalf("ListByJob without content: wave=%d content=%q", list[0].WaveNumber, list[0].Content)
	}
}

func TestBriefRepoAndWaveLogs(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	log := testutil.Logger(t)

	c := testutil.SeedCase(t, ctx, tx, "Case")
	jobID := uuid.New()
	briefRepo := NewBriefRepo(db, log)
	b := &types.Brief{CaseID: c.ID, JobID: jobID, Status: briefs.BriefStatusQueued}
	if err := briefRepo.Create(dbc, b); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := briefRepo.UpdateFields(dbc, b.ID, map[string]interface{}{"current_wave": 3, "word_count": 120}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	got, err := briefRepo.GetByJobID(dbc, jobID)
	if err != nil || got == nil || got.CurrentWave != 3 || got.WordCount != 120 {
		t.Fatalf("GetByJobID: err=%v got=%v", err, got)
	}

	logs := NewBriefWaveLogRepo(db, log)
	if err := logs.Append(dbc, jobID, 1, []*types.BriefWaveLog{
		{Kind: briefs.WaveLogKindLog, Message: "a"},
		{Kind: briefs.WaveLogKindThought, Message: "b"},
	}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := logs.Append(dbc, jobID, 1, []*types.BriefWaveLog{{Kind: briefs.WaveLogKindLog, Message: "c"}}); err != nil {
		t.Fatalf("Append(second): %v", err)
	}
	if err := logs.Append(dbc, jobID, 2, []*types.BriefWaveLog{{Kind: briefs.WaveLogKindLog, Message: "d"}}); err != nil {
		t.Fatalf("Append(wave 2): %v", err)
	}

	wave1, err := logs.ListByJob(dbc, jobID, 1)
	if err != nil || len(wave1) != 3 {
		t.Fatalf("ListByJob(1): err=%v len=%d", err, len(wave1))
	}
	for i, e := range wave1 {
		if e.Seq != i+1 {
			t.Fatalf("seq[%d]=%d", i, e.Seq)
		}
	}
	if wave1[2].Message != "c" {
		t.Fatalf("expected appended entry last, got %q", wave1[2].Message)
	}
	all, err := logs.ListByJob(dbc, jobID, 0)
	if err != nil || len(all) != 4 || all[3].WaveNumber != 2 {
		t.Fatalf("ListByJob(all): err=%v len=%d", err, len(all))
	}
}
