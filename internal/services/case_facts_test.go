package services

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/amicus-backend/internal/data/repos"
	"github.com/yungbote/amicus-backend/internal/data/repos/testutil"
	"github.com/yungbote/amicus-backend/internal/modules/briefs/facts"
	"github.com/yungbote/amicus-backend/internal/platform/llm"
)

type cannedEngine struct {
	text  string
	err   error
	calls int
}

func (e *cannedEngine) Generate(_ context.Context, req llm.Request) (llm.Response, error) {
	e.calls++
	if e.err != nil {
		return llm.Response{}, e.err
	}
	return llm.Response{Text: e.text, Model: req.Model, Provider: "fake"}, nil
}

func (e *cannedEngine) Stream(ctx context.Context, req llm.Request, _ func(string)) (llm.Response, error) {
	return e.Generate(ctx, req)
}

func newFactsService(t *testing.T, eng llm.Engine) (CaseFactsService, repos.CaseRepo, uuid.UUID) {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	kase := testutil.SeedCase(t, context.Background(), db, "Doe v. State")
	testutil.SeedCaseDocument(t, context.Background(), db, kase.ID, "Petition")
	cases := repos.NewCaseRepo(db, log)
	svc := NewCaseFactsService(db, log, cases, repos.NewCaseDocumentRepo(db, log), facts.NewExtractor(eng, "test-model", log))
	return svc, cases, kase.ID
}

func TestCaseFactsExtractStoresFacts(t *testing.T) {
	eng := &cannedEngine{text: `{"parties":[{"name":"Doe","role":"petitioner"}],"questions_presented":["Q1"],"key_facts":["F1","F2"],"procedural_history":"cert granted"}`}
	svc, cases, caseID := newFactsService(t, eng)

	res, err := svc.Extract(bg(), caseID)
	if err != nil || res.Fallback || len(res.Facts.KeyFacts) != 2 {
		t.Fatalf("res=%+v err=%v", res, err)
	}
	kase, _ := cases.GetByID(bg(), caseID)
	var stored facts.Facts
	if err := json.Unmarshal(kase.Facts, &stored); err != nil || stored.ProceduralHistory != "cert granted" || kase.FactsExtractedAt == nil {
		t.Fatalf("stored=%+v err=%v", stored, err)
	}
}

func TestCaseFactsFallback(t *testing.T) {
	svc, _, caseID := newFactsService(t, &cannedEngine{text: "I could not find any facts."})
	res, err := svc.Extract(bg(), caseID)
	if err != nil || !res.Fallback || res.Facts.Parties == nil || len(res.Facts.Parties) != 0 {
		t.Fatalf("res=%+v err=%v", res, err)
	}
}

func TestCaseFactsErrors(t *testing.T) {
	eng := &cannedEngine{text: "{}"}
	svc, _, _ := newFactsService(t, eng)
	if _, err := svc.Extract(bg(), uuid.New()); statusOf(err) != http.StatusNotFound {
		t.Fatalf("unknown case: err=%v", err)
	}
	if eng.calls != 0 {
		t.Fatalf("model called for unknown case")
	}

	svc, _, caseID := newFactsService(t, &cannedEngine{err: llm.NewError("fake", llm.KindUpstream, "502")})
	if _, err := svc.Extract(bg(), caseID); statusOf(err) != http.StatusBadGateway {
		t.Fatalf("upstream: err=%v", err)
	}
}
