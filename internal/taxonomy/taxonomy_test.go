package taxonomy

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEmbedded(t *testing.T) {
	tax, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(tax) != 14 {
		t.Errorf("got %d categories, want 14", len(tax))
	}
	areas := tax.Areas("Health and Well-being")
	if len(areas) == 0 {
		t.Fatal("Health and Well-being has no areas")
	}
	if tax.Areas("No Such Category") != nil {
		t.Error("unknown category should return nil")
	}
}

func TestCategoriesSorted(t *testing.T) {
	tax, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cats := tax.Categories()
	for i := 1; i < len(cats); i++ {
		if cats[i-1] >= cats[i] {
			t.Fatalf("categories not sorted: %q before %q", cats[i-1], cats[i])
		}
	}
}

func TestLoadPathOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.json")
	if err := os.WriteFile(path, []byte(`{"Custom": ["Area One"]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TAXONOMY_PATH", path)

	tax, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(tax) != 1 || tax.Areas("Custom")[0] != "Area One" {
		t.Errorf("override not honored: %v", tax)
	}

	t.Run("malformed override errors", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		os.WriteFile(bad, []byte("not json"), 0o644)
		t.Setenv("TAXONOMY_PATH", bad)
		if _, err := Load(); err == nil {
			t.Error("expected error for malformed taxonomy")
		}
	})
}
