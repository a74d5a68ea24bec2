// Package waves runs the individual stages of amicus brief generation. Each
// wave is a pure function of the wave number, a WaveContext and the previous
// wave's brief; persistence belongs to the caller.
package waves

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yungbote/amicus-backend/internal/modules/briefs/prompts"
	"github.com/yungbote/amicus-backend/internal/pkg/ctxutil"
	"github.com/yungbote/amicus-backend/internal/pkg/logger"
	"github.com/yungbote/amicus-backend/internal/platform/llm"
)

var (
	ErrInvalidWave    = errors.New("invalid wave number")
	ErrMissingOutline = errors.New("approved outline required")
	ErrMissingBrief   = errors.New("current brief required")
)

// Observer receives narration and draft text as it is produced. Calls happen
// on the executing goroutine.
type Observer interface {
	OnThought(jobID string, wave int, t ThoughtEntry)
	OnLog(jobID string, wave int, line string)
	// OnDelta carries raw model output in arrival order, batched.
	OnDelta(jobID string, wave int, text string)
}

const deltaFlushBytes = 512

type Executor struct {
	engine   llm.Engine
	catalog  *Catalog
	log      *logger.Logger
	observer Observer
}

func NewExecutor(engine llm.Engine, catalog *Catalog, log *logger.Logger) *Executor {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &Executor{engine: engine, catalog: catalog, log: log.With("component", "WaveExecutor")}
}

// WithObserver returns a copy of the executor that reports narration to o.
func (e *Executor) WithObserver(o Observer) *Executor {
	cp := *e
	cp.observer = o
	return &cp
}

func (e *Executor) Catalog() *Catalog { return e.catalog }

// Execute runs one wave. Input errors are returned before any model call. A
// model failure fails the wave with no partial result.
func (e *Executor) Execute(ctx context.Context, waveNumber int, wc *WaveContext, currentBrief string, jobID string) (*WaveResult, error) {
	def, ok := e.catalog.Wave(waveNumber)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrInvalidWave, waveNumber)
	}
	if wc == nil || strings.TrimSpace(wc.ApprovedOutline) == "" {
		return nil, ErrMissingOutline
	}
	if waveNumber > 1 && strings.TrimSpace(currentBrief) == "" {
		return nil, ErrMissingBrief
	}
	if waveNumber == 1 {
		currentBrief = ""
	}

	started := time.Now().UTC()
	var logs []string
	logf := func(format string, args ...any) {
		line := fmt.Sprintf(format, args...)
		logs = append(logs, line)
		if e.observer != nil {
			e.observer.OnLog(jobID, waveNumber, line)
		}
	}
	rec := NewRecorder(waveNumber, def.Name, func(t ThoughtEntry) {
		if e.observer != nil {
			e.observer.OnThought(jobID, waveNumber, t)
		}
	})

	var given []SourceDoc
	if waveNumber > 1 {
		given = wc.SourcesFor(def)
	}
	rec.Add(ThoughtPlanning, planText(def, given), "", "focused")
	logf("wave %d (%s) starting with %d sources", waveNumber, def.Name, len(given))

	in := e.promptInput(def, wc, currentBrief, given)
	p, err := prompts.Build(prompts.PromptName(def.Prompt), in)
	if err != nil {
		return nil, fmt.Errorf("build prompt: %w", err)
	}

	rec.Add(ThoughtWorking, fmt.Sprintf("Drafting with %s", def.Model), "", "")
	resp, err := e.generate(ctx, llm.Request{
		Model:       def.Model,
		System:      p.System,
		User:        p.User,
		MaxTokens:   def.MaxTokens,
		Temperature: def.Temperature,
		JSON:        true,
	}, jobID, waveNumber)
	if err != nil {
		e.log.Warn("wave generation failed", append([]interface{}{"job_id", jobID, "wave", waveNumber, "error", err}, ctxutil.TraceFields(ctx)...)...)
		return nil, err
	}

	out, status := parseModelOutput(resp.Text)
	switch {
	case status == parseTruncated || (status != parseStructured && resp.HitTokenLimit()):
		words := CountWords(out.Brief)
		e.log.Warn("wave response truncated", "job_id", jobID, "wave", waveNumber, "model", resp.Model, "finish_reason", resp.FinishReason, "recovered_words", words)
		logf("response was cut off after %d words; the draft is unchanged", words)
		return nil, llm.Truncated(resp.Provider)
	case status == parseMalformed:
		e.log.Warn("wave response was JSON without a usable brief", "job_id", jobID, "wave", waveNumber, "model", resp.Model)
		logf("response could not be decoded; the draft is unchanged")
		return nil, llm.NewError(resp.Provider, llm.KindUpstream, "unparseable response")
	}
	if strings.TrimSpace(out.Brief) == "" {
		return nil, llm.Empty(resp.Provider)
	}
	fallback := status == parseProse
	if fallback {
		e.log.Warn("wave response was not the expected JSON; using raw text", "job_id", jobID, "wave", waveNumber, "model", resp.Model)
		logf("response was not structured JSON; kept raw text as the brief")
	}

	raw := out.Brief
	sourceMap := BuildSourceMap(raw)
	content := raw
	if waveNumber == WaveCount {
		content = strings.TrimSpace(StripMarkers(raw))
	}

	res := &WaveResult{
		WaveNumber:            waveNumber,
		WaveName:              def.Name,
		Model:                 firstNonEmpty(resp.Model, def.Model),
		Content:               content,
		WordCount:             CountWords(content),
		CitationCount:         CountCitations(content),
		PlaceholdersRemaining: CountPlaceholders(content),
		SourcesUsed:           resolveSources(waveNumber, given, out.SourcesUsed, raw),
		SourceMap:             mapSourceIDs(sourceMap, given, wc),
		ParseFallback:         fallback,
		PromptFingerprint:     p.Fingerprint(),
		StartedAt:             started,
	}
	res.CitationsAdded = res.CitationCount - CountCitations(currentBrief)
	if res.CitationsAdded < 0 {
		res.CitationsAdded = 0
	}
	res.Changes = append(DiffSections(currentBrief, content), out.Changes...)

	logf("wave %d produced %d words, %d new citations, %d placeholders remaining",
		waveNumber, res.WordCount, res.CitationsAdded, res.PlaceholdersRemaining)
	rec.Add(ThoughtCompleted, fmt.Sprintf("%s complete", def.Name),
		fmt.Sprintf("%d words, %d sections changed", res.WordCount, len(res.Changes)), "satisfied")
	if res.PlaceholdersRemaining > 0 && waveNumber >= 7 {
		rec.Add(ThoughtInsight, fmt.Sprintf("%d citation placeholders still need authority", res.PlaceholdersRemaining), "", "concerned")
	}

	res.Logs = logs
	res.Thoughts = rec.Entries()
	res.FinishedAt = time.Now().UTC()
	return res, nil
}

func (e *Executor) promptInput(def WaveDef, wc *WaveContext, currentBrief string, given []SourceDoc) prompts.Input {
	in := prompts.Input{
		CaseTitle:         wc.Case.Title,
		DocketNumber:      wc.Case.DocketNumber,
		Court:             wc.Case.Court,
		ClientName:        wc.Case.ClientName,
		Position:          wc.Case.Position,
		QuestionPresented: wc.Case.QuestionPresented,
		CaseDescription:   wc.Case.Description,
		ApprovedOutline:   wc.ApprovedOutline,
		WaveNumber:        def.Number,
		WaveName:          def.Name,
		CurrentBrief:      currentBrief,
		TargetWords:       def.TargetWords,
		Instructions:      def.Instructions,
	}
	if def.Number == 1 {
		in.ChatTranscript = wc.renderChat()
		return in
	}
	// facts are extracted from case documents, which the backbone never sees
	in.CaseFactsJSON = wc.Case.FactsJSON
	in.Sources = renderSources(given)
	in.SourceKeysCSV = strings.Join(sourceKeys(given), ", ")
	if def.Number == 3 {
		if sums := wc.DocumentSummaries(); len(sums) > 0 {
			in.Instructions = strings.TrimSpace(in.Instructions + "\nDocument summaries:\n- " + strings.Join(sums, "\n- "))
		}
	}
	if def.UsesGroup(GroupReference) && wc.ReferenceBrief != nil {
		in.ReferenceBrief = truncate(wc.ReferenceBrief.Content, 4*maxSourceExcerpt)
	}
	return in
}

// generate streams when someone is watching so drafts render progressively.
func (e *Executor) generate(ctx context.Context, req llm.Request, jobID string, wave int) (llm.Response, error) {
	if e.observer == nil {
		return e.engine.Generate(ctx, req)
	}
	var buf strings.Builder
	flush := func() {
		if buf.Len() > 0 {
			e.observer.OnDelta(jobID, wave, buf.String())
			buf.Reset()
		}
	}
	resp, err := e.engine.Stream(ctx, req, func(delta string) {
		buf.WriteString(delta)
		if buf.Len() >= deltaFlushBytes {
			flush()
		}
	})
	flush()
	return resp, err
}

func planText(def WaveDef, given []SourceDoc) string {
	if def.Number == 1 {
		return "Building the backbone from the approved outline and strategy discussion"
	}
	if len(given) == 0 {
		return fmt.Sprintf("Revising the draft for %s", strings.ToLower(def.Name))
	}
	return fmt.Sprintf("Revising the draft for %s using %d sources", strings.ToLower(def.Name), len(given))
}

// resolveSources maps reported and marked keys onto the sources this wave was
// given. Wave 1 never uses sources.
func resolveSources(wave int, given []SourceDoc, reported []string, text string) []string {
	out := []string{}
	if wave == 1 || len(given) == 0 {
		return out
	}
	used := map[string]bool{}
	for _, k := range reported {
		k = strings.Trim(k, "[] ")
		used[k] = true
		used[strings.ToUpper(k)] = true
	}
	for _, k := range MarkerKeys(text) {
		used[strings.ToUpper(k)] = true
	}
	for _, d := range given {
		if used[d.Key] || used[d.ID] {
			out = append(out, d.ID)
		}
	}
	if len(out) == 0 {
		for _, d := range given {
			out = append(out, d.ID)
		}
	}
	return out
}

// mapSourceIDs rekeys a marker map by source id. Unknown keys keep their key.
func mapSourceIDs(m map[string][]SourceLocation, given []SourceDoc, wc *WaveContext) map[string][]SourceLocation {
	ids := map[string]string{}
	for _, group := range [][]SourceDoc{wc.HistoricalResearch, wc.Documents, wc.JusticeAnalysis, wc.Research, given} {
		for _, d := range group {
			ids[d.Key] = d.ID
		}
	}
	out := make(map[string][]SourceLocation, len(m))
	for k, locs := range m {
		id := k
		if v, ok := ids[k]; ok && v != "" {
			id = v
		}
		out[id] = append(out[id], locs...)
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
