package waves

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yungbote/amicus-backend/internal/pkg/logger"
)

func TestDefaultCatalog(t *testing.T) {
	c := DefaultCatalog()
	names := []string{
		"Backbone Draft", "Historical Integration", "Document Integration", "Justice Targeting",
		"Adversarial Analysis", "Style Conformance", "Bluebook Citations", "Final Consolidation",
	}
	for i, want := range names {
		d, ok := c.Wave(i + 1)
		if !ok || d.Name != want || d.Number != i+1 {
			t.Fatalf("wave %d = %+v", i+1, d)
		}
	}
	if _, ok := c.Wave(9); ok {
		t.Fatalf("wave 9 should not exist")
	}
	if c.Name(0) != "Wave 0" {
		t.Fatalf("Name(0)=%s", c.Name(0))
	}
}

func TestParseCatalogValidation(t *testing.T) {
	if _, err := ParseCatalog([]byte("waves: []")); err == nil {
		t.Fatalf("expected count error")
	}
	bad := strings.Replace(string(defaultCatalogYAML), "sources: [historical]", "sources: [tarot]", 1)
	if _, err := ParseCatalog([]byte(bad)); err == nil || !strings.Contains(err.Error(), "tarot") {
		t.Fatalf("expected group error, got %v", err)
	}
	bad = strings.Replace(string(defaultCatalogYAML), "prompt: wave_backbone_draft", "prompt: missing", 1)
	if _, err := ParseCatalog([]byte(bad)); err == nil {
		t.Fatalf("expected prompt error")
	}
	bad = strings.Replace(string(defaultCatalogYAML), "prompt: wave_backbone_draft", "prompt: wave_historical_integration", 1)
	if _, err := ParseCatalog([]byte(bad)); err == nil || !strings.Contains(err.Error(), "wave 1 must use prompt") {
		t.Fatalf("expected prompt order error, got %v", err)
	}
}

func TestCatalogFromEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "waves.yaml")
	custom := strings.Replace(string(defaultCatalogYAML), "name: Backbone Draft", "name: Skeleton", 1)
	if err := os.WriteFile(path, []byte(custom), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("BRIEF_WAVES_YAML", path)
	t.Setenv("BRIEF_MODEL_OVERRIDE", "mock")
	c, err := CatalogFromEnv(logger.Nop())
	if err != nil {
		t.Fatalf("CatalogFromEnv: %v", err)
	}
	if c.Name(1) != "Skeleton" {
		t.Fatalf("override file ignored: %s", c.Name(1))
	}
	for _, d := range c.Waves {
		if d.Model != "mock" {
			t.Fatalf("wave %d model=%s", d.Number, d.Model)
		}
	}
	if DefaultCatalog().Waves[0].Model == "mock" {
		t.Fatalf("WithModel mutated the default catalog")
	}
}
