package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/yungbote/amicus-backend/internal/domain"
	"github.com/yungbote/amicus-backend/internal/domain/briefs"
)

func SeedCase(tb testing.TB, ctx context.Context, tx *gorm.DB, title string) *types.Case {
	tb.Helper()
	now := time.Now().UTC()
	c := &types.Case{
		ID:                uuid.New(),
		Title:             title,
		DocketNumber:      "No. 23-1234",
		Court:             "Supreme Court of the United States",
		Position:          "amicus",
		QuestionPresented: "Whether the statute survives review.",
		Description:       "A dispute over statutory scope.",
		Facts:             datatypes.JSON([]byte("{}")),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed case: %v", err)
	}
	return c
}

func SeedCaseDocument(tb testing.TB, ctx context.Context, tx *gorm.DB, caseID uuid.UUID, title string) *types.CaseDocument {
	tb.Helper()
	d := &types.CaseDocument{
		ID:        uuid.New(),
		CaseID:    caseID,
		Title:     title,
		DocType:   "opinion",
		Summary:   "summary of " + title,
		Content:   "content of " + title,
		CreatedAt: time.Now().UTC(),
	}
	if err := tx.WithContext(ctx).Create(d).Error; err != nil {
		tb.Fatalf("seed case document: %v", err)
	}
	return d
}

func SeedResearch(tb testing.TB, ctx context.Context, tx *gorm.DB, caseID uuid.UUID, category string, title string) *types.ResearchResult {
	tb.Helper()
	r := &types.ResearchResult{
		ID:        uuid.New(),
		CaseID:    caseID,
		Category:  category,
		Title:     title,
		Citation:  "1 U.S. 1 (1790)",
		Summary:   "summary of " + title,
		Relevance: 0.5,
		CreatedAt: time.Now().UTC(),
	}
	if err := tx.WithContext(ctx).Create(r).Error; err != nil {
		tb.Fatalf("seed research: %v", err)
	}
	return r
}

func SeedJusticeAnalysis(tb testing.TB, ctx context.Context, tx *gorm.DB, caseID uuid.UUID, justice string) *types.JusticeAnalysis {
	tb.Helper()
	j := &types.JusticeAnalysis{
		ID:        uuid.New(),
		CaseID:    caseID,
		Justice:   justice,
		Alignment: "swing",
		Score:     0.5,
		Analysis:  justice + " tends to favor textualism.",
		CreatedAt: time.Now().UTC(),
	}
	if err := tx.WithContext(ctx).Create(j).Error; err != nil {
		tb.Fatalf("seed justice analysis: %v", err)
	}
	return j
}

func SeedReferenceBrief(tb testing.TB, ctx context.Context, tx *gorm.DB, caseID *uuid.UUID, title string) *types.ReferenceBrief {
	tb.Helper()
	b := &types.ReferenceBrief{
		ID:        uuid.New(),
		CaseID:    caseID,
		Title:     title,
		Court:     "Supreme Court of the United States",
		Content:   "INTEREST OF AMICUS CURIAE\n\nSUMMARY OF ARGUMENT",
		CreatedAt: time.Now().UTC(),
	}
	if err := tx.WithContext(ctx).Create(b).Error; err != nil {
		tb.Fatalf("seed reference brief: %v", err)
	}
	return b
}

// SeedChat writes messages with strictly increasing timestamps.
func SeedChat(tb testing.TB, ctx context.Context, tx *gorm.DB, caseID uuid.UUID, lines ...string) []*types.CaseChatMessage {
	tb.Helper()
	base := time.Now().UTC().Add(-time.Hour)
	out := make([]*types.CaseChatMessage, 0, len(lines))
	for i, line := range lines {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		m := &types.CaseChatMessage{
			ID:        uuid.New(),
			CaseID:    caseID,
			Role:      role,
			Content:   line,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := tx.WithContext(ctx).Create(m).Error; err != nil {
			tb.Fatalf("seed chat message %d: %v", i, err)
		}
		out = append(out, m)
	}
	return out
}

func SeedJob(tb testing.TB, ctx context.Context, tx *gorm.DB, jobType string, status string, payload string) *types.JobRun {
	tb.Helper()
	if payload == "" {
		payload = "{}"
	}
	now := time.Now().UTC()
	j := &types.JobRun{
		ID:        uuid.New(),
		JobType:   jobType,
		Status:    status,
		Stage:     status,
		Payload:   datatypes.JSON([]byte(payload)),
		Result:    datatypes.JSON([]byte("{}")),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.WithContext(ctx).Create(j).Error; err != nil {
		tb.Fatalf("seed job: %v", err)
	}
	return j
}

func SeedBrief(tb testing.TB, ctx context.Context, tx *gorm.DB, caseID uuid.UUID, jobID uuid.UUID) *types.Brief {
	tb.Helper()
	now := time.Now().UTC()
	b := &types.Brief{
		ID:        uuid.New(),
		CaseID:    caseID,
		JobID:     jobID,
		Title:     "Brief of Amicus Curiae",
		Status:    briefs.BriefStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.WithContext(ctx).Create(b).Error; err != nil {
		tb.Fatalf("seed brief: %v", err)
	}
	return b
}

func SeedWave(tb testing.TB, ctx context.Context, tx *gorm.DB, jobID uuid.UUID, briefID uuid.UUID, n int, content string) *types.BriefWave {
	tb.Helper()
	now := time.Now().UTC()
	w := &types.BriefWave{
		ID:          uuid.New(),
		JobID:       jobID,
		WaveNumber:  n,
		BriefID:     briefID,
		WaveName:    fmt.Sprintf("Wave %d", n),
		Content:     content,
		SourcesUsed: datatypes.JSON([]byte("[]")),
		Changes:     datatypes.JSON([]byte("[]")),
		SourceMap:   datatypes.JSON([]byte("{}")),
		Logs:        datatypes.JSON([]byte("[]")),
		Thoughts:    datatypes.JSON([]byte("[]")),
		StartedAt:   now,
		FinishedAt:  now,
		CreatedAt:   now,
	}
	if err := tx.WithContext(ctx).Create(w).Error; err != nil {
		tb.Fatalf("seed wave %d: %v", n, err)
	}
	return w
}

func PtrUUID(v uuid.UUID) *uuid.UUID { return &v }

func PtrTime(v time.Time) *time.Time { return &v }
