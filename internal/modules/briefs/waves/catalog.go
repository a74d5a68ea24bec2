package waves

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/amicus-backend/internal/modules/briefs/prompts"
	"github.com/yungbote/amicus-backend/internal/pkg/logger"
	"github.com/yungbote/amicus-backend/internal/utils"
)

// WaveCount is the fixed number of waves in a brief generation run.
const WaveCount = 8

// Source groups a wave may draw on.
const (
	GroupHistorical = "historical"
	GroupDocuments  = "documents"
	GroupJustices   = "justices"
	GroupResearch   = "research"
	GroupReference  = "reference"
)

//go:embed waves.yaml
var defaultCatalogYAML []byte

type WaveDef struct {
	Number       int      `yaml:"number"`
	Key          string   `yaml:"key"`
	Name         string   `yaml:"name"`
	Prompt       string   `yaml:"prompt"`
	Model        string   `yaml:"model"`
	Temperature  *float64 `yaml:"temperature"`
	MaxTokens    int      `yaml:"max_tokens"`
	TargetWords  string   `yaml:"target_words"`
	Instructions string   `yaml:"instructions"`
	Sources      []string `yaml:"sources"`
}

func (d WaveDef) UsesGroup(group string) bool {
	for _, s := range d.Sources {
		if s == group {
			return true
		}
	}
	return false
}

type Catalog struct {
	Waves []WaveDef `yaml:"waves"`
}

// ParseCatalog decodes and validates a catalog. Waves are reordered by number.
func ParseCatalog(data []byte) (*Catalog, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("waves: catalog is empty")
	}
	var raw Catalog
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("waves: decode catalog: %w", err)
	}
	if len(raw.Waves) != WaveCount {
		return nil, fmt.Errorf("waves: catalog must define %d waves, got %d", WaveCount, len(raw.Waves))
	}
	out := &Catalog{Waves: make([]WaveDef, WaveCount)}
	seen := map[int]bool{}
	for _, w := range raw.Waves {
		if w.Number < 1 || w.Number > WaveCount {
			return nil, fmt.Errorf("waves: wave number %d out of range", w.Number)
		}
		if seen[w.Number] {
			return nil, fmt.Errorf("waves: duplicate wave %d", w.Number)
		}
		seen[w.Number] = true
		w.Name = strings.TrimSpace(w.Name)
		w.Model = strings.TrimSpace(w.Model)
		if w.Name == "" || w.Model == "" {
			return nil, fmt.Errorf("waves: wave %d needs name and model", w.Number)
		}
		if !prompts.Has(prompts.PromptName(w.Prompt)) {
			return nil, fmt.Errorf("waves: wave %d references unknown prompt %q", w.Number, w.Prompt)
		}
		if want := prompts.WavePrompts[w.Number-1]; prompts.PromptName(w.Prompt) != want {
			return nil, fmt.Errorf("waves: wave %d must use prompt %q, got %q", w.Number, want, w.Prompt)
		}
		for _, g := range w.Sources {
			switch g {
			case GroupHistorical, GroupDocuments, GroupJustices, GroupResearch, GroupReference:
			default:
				return nil, fmt.Errorf("waves: wave %d has unknown source group %q", w.Number, g)
			}
		}
		if w.Number == 1 && len(w.Sources) > 0 {
			return nil, fmt.Errorf("waves: the backbone draft cannot take sources")
		}
		out.Waves[w.Number-1] = w
	}
	return out, nil
}

func DefaultCatalog() *Catalog {
	c, err := ParseCatalog(defaultCatalogYAML)
	if err != nil {
		panic(err)
	}
	return c
}

// CatalogFromEnv loads BRIEF_WAVES_YAML when set, else the embedded catalog,
// then applies BRIEF_MODEL_OVERRIDE to every wave.
func CatalogFromEnv(log *logger.Logger) (*Catalog, error) {
	c := DefaultCatalog()
	if path := strings.TrimSpace(utils.GetEnv("BRIEF_WAVES_YAML", "", log)); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("waves: read %s: %w", path, err)
		}
		if c, err = ParseCatalog(data); err != nil {
			return nil, fmt.Errorf("waves: %s: %w", path, err)
		}
	}
	if m := strings.TrimSpace(utils.GetEnv("BRIEF_MODEL_OVERRIDE", "", log)); m != "" {
		c = c.WithModel(m)
	}
	return c, nil
}

// WithModel returns a copy that sends every wave to model.
func (c *Catalog) WithModel(model string) *Catalog {
	out := &Catalog{Waves: append([]WaveDef(nil), c.Waves...)}
	for i := range out.Waves {
		out.Waves[i].Model = model
	}
	return out
}

func (c *Catalog) Wave(n int) (WaveDef, bool) {
	if c == nil || n < 1 || n > len(c.Waves) {
		return WaveDef{}, false
	}
	return c.Waves[n-1], true
}

func (c *Catalog) Name(n int) string {
	if d, ok := c.Wave(n); ok {
		return d.Name
	}
	return fmt.Sprintf("Wave %d", n)
}
