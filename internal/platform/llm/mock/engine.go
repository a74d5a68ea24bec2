// Package mock is an offline llm.Engine for local runs and tests.
package mock

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/yungbote/amicus-backend/internal/platform/llm"
)

type Engine struct{}

func New() *Engine { return &Engine{} }

// Generate echoes a digest of the prompt. JSON requests get a brief-shaped
// object so the wave parser succeeds.
func (e *Engine) Generate(ctx context.Context, req llm.Request) (llm.Response, error) {
	if err := ctx.Err(); err != nil {
		return llm.Response{}, llm.Classify(llm.ProviderMock, err)
	}
	text := render(req)
	return llm.Response{
		Text:         text,
		Model:        modelName(req.Model),
		Provider:     llm.ProviderMock,
		InputTokens:  llm.EstimateTokens(req.System + req.User),
		OutputTokens: llm.EstimateTokens(text),
		FinishReason: "stop",
	}, nil
}

func (e *Engine) Stream(ctx context.Context, req llm.Request, onDelta func(delta string)) (llm.Response, error) {
	resp, err := e.Generate(ctx, req)
	if err != nil {
		return llm.Response{}, err
	}
	if onDelta != nil {
		const chunk = 16
		for i := 0; i < len(resp.Text); i += chunk {
			end := i + chunk
			if end > len(resp.Text) {
				end = len(resp.Text)
			}
			onDelta(resp.Text[i:end])
		}
	}
	return resp, nil
}

func modelName(m string) string {
	if strings.TrimSpace(m) == "" {
		return "mock"
	}
	return m
}

func digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:6])
}

func render(req llm.Request) string {
	user := strings.TrimSpace(req.User)
	if !req.JSON {
		return "mock: " + user
	}
	brief := "# Brief of Amicus Curiae\n\n## Interest of Amicus\n\nDraft " + digest(req.System+user) +
		".\n\n## Argument\n\nThe question presented warrants review. [CITATION NEEDED: controlling precedent]\n"
	out := map[string]any{
		"brief":        brief,
		"changes":      []map[string]string{{"section": "Argument", "type": "modified", "summary": "mock revision"}},
		"sources_used": []string{},
	}
	b, _ := json.Marshal(out)
	return string(b)
}

var _ llm.Engine = (*Engine)(nil)
