package brief_generate

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	types "github.com/yungbote/amicus-backend/internal/domain"
	"github.com/yungbote/amicus-backend/internal/modules/briefs/waves"
	"github.com/yungbote/amicus-backend/internal/pkg/dbctx"
	apperrors "github.com/yungbote/amicus-backend/internal/pkg/errors"
)

// loadContext reads everything a wave may cite. The reads are independent
// and run concurrently; the result is never mutated afterwards.
func (p *Pipeline) loadContext(ctx context.Context, pl *types.GeneratePayload) (*waves.WaveContext, error) {
	var (
		kase     *types.Case
		docs     []*types.CaseDocument
		research []*types.ResearchResult
		justices []*types.JusticeAnalysis
		ref      *types.ReferenceBrief
		chat     []*types.CaseChatMessage
	)

	g, gctx := errgroup.WithContext(ctx)
	dbc := dbctx.Context{Ctx: gctx}
	g.Go(func() (err error) {
		kase, err = p.deps.Cases.GetByID(dbc, pl.CaseID)
		return err
	})
	g.Go(func() (err error) {
		docs, err = p.deps.Documents.ListByCase(dbc, pl.CaseID, pl.DocumentIDs)
		return err
	})
	g.Go(func() (err error) {
		research, err = p.deps.Research.ListByCase(dbc, pl.CaseID, pl.ResearchIDs)
		return err
	})
	g.Go(func() (err error) {
		justices, err = p.deps.Justices.ListByCase(dbc, pl.CaseID, pl.JusticeAnalysisIDs)
		return err
	})
	g.Go(func() (err error) {
		if pl.ReferenceBriefID != nil {
			ref, err = p.deps.References.GetByID(dbc, *pl.ReferenceBriefID)
			return err
		}
		ref, err = p.deps.References.GetLatestForCase(dbc, pl.CaseID)
		return err
	})
	g.Go(func() (err error) {
		chat, err = p.deps.Chat.ListByCase(dbc, pl.CaseID, 0)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load wave context: %w", err)
	}
	if kase == nil {
		return nil, fmt.Errorf("%w: case %s", apperrors.ErrNotFound, pl.CaseID)
	}
	if p.cfg.ChatLimit > 0 && len(chat) > p.cfg.ChatLimit {
		chat = chat[len(chat)-p.cfg.ChatLimit:]
	}

	historical, other := splitResearch(research)
	return waves.NewWaveContext(
		caseInfo(kase),
		pl.ApprovedOutline,
		documentSources(docs),
		justiceSources(justices),
		historical,
		other,
		referenceSource(ref),
		chatLines(chat),
	), nil
}

func caseInfo(c *types.Case) waves.CaseInfo {
	facts := strings.TrimSpace(string(c.Facts))
	if facts == "{}" || facts == "null" {
		facts = ""
	}
	return waves.CaseInfo{
		ID:                c.ID.String(),
		Title:             c.Title,
		DocketNumber:      c.DocketNumber,
		Court:             c.Court,
		ClientName:        c.ClientName,
		Position:          c.Position,
		QuestionPresented: c.QuestionPresented,
		Description:       c.Description,
		FactsJSON:         facts,
	}
}

func documentSources(in []*types.CaseDocument) []waves.SourceDoc {
	out := make([]waves.SourceDoc, 0, len(in))
	for _, d := range in {
		if d == nil {
			continue
		}
		out = append(out, waves.SourceDoc{
			ID:       d.ID.String(),
			Category: d.DocType,
			Title:    d.Title,
			Citation: d.Citation,
			Summary:  d.Summary,
			Content:  d.Content,
		})
	}
	return out
}

// splitResearch separates historical research (wave 2) from everything else (wave 5).
func splitResearch(in []*types.ResearchResult) (historical, other []waves.SourceDoc) {
	for _, r := range in {
		if r == nil {
			continue
		}
		doc := waves.SourceDoc{
			ID:       r.ID.String(),
			Category: r.Category,
			Title:    r.Title,
			Citation: r.Citation,
			Summary:  r.Summary,
			Content:  r.Content,
		}
		if strings.EqualFold(r.Category, types.ResearchHistorical) {
			historical = append(historical, doc)
		} else {
			other = append(other, doc)
		}
	}
	return historical, other
}

func justiceSources(in []*types.JusticeAnalysis) []waves.SourceDoc {
	out := make([]waves.SourceDoc, 0, len(in))
	for _, j := range in {
		if j == nil {
			continue
		}
		summary := j.Analysis
		if j.Alignment != "" {
			summary = fmt.Sprintf("Alignment: %s (%.2f). %s", j.Alignment, j.Score, j.Analysis)
		}
		out = append(out, waves.SourceDoc{
			ID:       j.ID.String(),
			Category: j.Alignment,
			Title:    "Justice " + j.Justice,
			Summary:  summary,
			Content:  j.Strategy,
		})
	}
	return out
}

func referenceSource(r *types.ReferenceBrief) *waves.SourceDoc {
	if r == nil {
		return nil
	}
	return &waves.SourceDoc{
		ID:       r.ID.String(),
		Title:    r.Title,
		Category: r.Court,
		Content:  r.Content,
	}
}

func chatLines(in []*types.CaseChatMessage) []waves.ChatLine {
	out := make([]waves.ChatLine, 0, len(in))
	for _, m := range in {
		if m == nil {
			continue
		}
		out = append(out, waves.ChatLine{Role: m.Role, Speaker: m.Speaker, Content: m.Content, At: m.CreatedAt})
	}
	return out
}
