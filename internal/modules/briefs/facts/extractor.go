// Package facts extracts structured case facts from case material with one
// model call.
package facts

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/yungbote/amicus-backend/internal/modules/briefs/prompts"
	"github.com/yungbote/amicus-backend/internal/modules/briefs/waves"
	"github.com/yungbote/amicus-backend/internal/pkg/logger"
	"github.com/yungbote/amicus-backend/internal/platform/llm"
)

type Party struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

type Facts struct {
	Parties            []Party  `json:"parties"`
	QuestionsPresented []string `json:"questions_presented"`
	KeyFacts           []string `json:"key_facts"`
	ProceduralHistory  string   `json:"procedural_history"`
}

// Default is the shape returned when the model output cannot be parsed.
func Default() Facts {
	return Facts{Parties: []Party{}, QuestionsPresented: []string{}, KeyFacts: []string{}}
}

type Document struct {
	Title   string
	Summary string
	Content string
}

type Input struct {
	Title             string
	DocketNumber      string
	Court             string
	QuestionPresented string
	Description       string
	Documents         []Document
}

type Extractor struct {
	engine llm.Engine
	model  string
	log    *logger.Logger
}

func NewExtractor(engine llm.Engine, model string, log *logger.Logger) *Extractor {
	return &Extractor{engine: engine, model: model, log: log.With("component", "FactsExtractor")}
}

const maxDocChars = 8000

// Extract returns the parsed facts. A response that is not a facts object
// yields Default() with fallback set; model failures are returned as errors.
func (x *Extractor) Extract(ctx context.Context, in Input) (Facts, bool, error) {
	var docs strings.Builder
	for _, d := range in.Documents {
		fmt.Fprintf(&docs, "## %s\n", d.Title)
		if s := strings.TrimSpace(d.Summary); s != "" {
			fmt.Fprintf(&docs, "Summary: %s\n", s)
		}
		if c := strings.TrimSpace(d.Content); c != "" {
			if r := []rune(c); len(r) > maxDocChars {
				c = string(r[:maxDocChars])
			}
			docs.WriteString(c)
			docs.WriteString("\n")
		}
		docs.WriteString("\n")
	}
	p, err := prompts.Build(prompts.PromptCaseFactsExtract, prompts.Input{
		CaseTitle:         in.Title,
		DocketNumber:      in.DocketNumber,
		Court:             in.Court,
		QuestionPresented: in.QuestionPresented,
		CaseDescription:   in.Description,
		DocumentsText:     strings.TrimSpace(docs.String()),
	})
	if err != nil {
		return Facts{}, false, err
	}
	resp, err := x.engine.Generate(ctx, llm.Request{
		Model:       x.model,
		System:      p.System,
		User:        p.User,
		MaxTokens:   4000,
		Temperature: llm.FloatPtr(0.1),
		JSON:        true,
	})
	if err != nil {
		return Facts{}, false, err
	}
	f, ok := Parse(resp.Text)
	if !ok {
		x.log.Warn("facts response unparseable; using default", "model", resp.Model, "chars", len(resp.Text))
	}
	return f, !ok, nil
}

// Parse reads the first JSON object in text. Missing lists become empty.
func Parse(text string) (Facts, bool) {
	obj, _, ok := waves.ExtractJSONObject(text, 0)
	if !ok {
		return Default(), false
	}
	var f Facts
	if err := json.Unmarshal([]byte(obj), &f); err != nil {
		return Default(), false
	}
	if f.Parties == nil {
		f.Parties = []Party{}
	}
	if f.QuestionsPresented == nil {
		f.QuestionsPresented = []string{}
	}
	if f.KeyFacts == nil {
		f.KeyFacts = []string{}
	}
	return f, true
}
