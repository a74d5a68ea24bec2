package prompts

import (
	"fmt"
	"strings"
)

// Validator rejects an Input before rendering so no model call is spent on a
// prompt that cannot produce a brief.
type Validator func(Input) error

func RequireNonEmpty(field string, get func(Input) string) Validator {
	return func(in Input) error {
		if strings.TrimSpace(get(in)) == "" {
			return fmt.Errorf("%s required", field)
		}
		return nil
	}
}

func RequireAnyNonEmpty(msg string, getters ...func(Input) string) Validator {
	return func(in Input) error {
		for _, g := range getters {
			if strings.TrimSpace(g(in)) != "" {
				return nil
			}
		}
		return fmt.Errorf("%s", msg)
	}
}

// RequireWave pins a wave prompt to the wave numbers it was written for.
func RequireWave(lo, hi int) Validator {
	return func(in Input) error {
		if in.WaveNumber < lo || in.WaveNumber > hi {
			return fmt.Errorf("wave %d outside %d..%d", in.WaveNumber, lo, hi)
		}
		return nil
	}
}

// Sources rendered into a prompt must come with the keys the model cites.
func requireKeyedSources(in Input) error {
	if strings.TrimSpace(in.Sources) != "" && strings.TrimSpace(in.SourceKeysCSV) == "" {
		return fmt.Errorf("sources given without source keys")
	}
	return nil
}

// The backbone is drafted from the outline and the strategy discussion alone.
func excludeDocumentData(in Input) error {
	for _, f := range []struct{ name, val string }{
		{"CurrentBrief", in.CurrentBrief},
		{"Sources", in.Sources},
		{"SourceKeysCSV", in.SourceKeysCSV},
		{"ReferenceBrief", in.ReferenceBrief},
		{"CaseFactsJSON", in.CaseFactsJSON},
		{"DocumentsText", in.DocumentsText},
	} {
		if strings.TrimSpace(f.val) != "" {
			return fmt.Errorf("%s must be empty for the backbone draft", f.name)
		}
	}
	return nil
}

var (
	requireOutline = RequireNonEmpty("ApprovedOutline", func(in Input) string { return in.ApprovedOutline })
	requireBrief   = RequireNonEmpty("CurrentBrief", func(in Input) string { return in.CurrentBrief })
)

// revision is the validator set shared by the prompts that rework an
// existing draft.
func revision() []Validator {
	return []Validator{RequireWave(2, 8), requireOutline, requireBrief, requireKeyedSources}
}
