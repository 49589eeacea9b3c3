package harvest

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed config/sources.yaml
var embeddedSources []byte

// SourceConfig describes one funding source. The strategy selects the
// harvester implementation; the remaining fields parameterize it.
type SourceConfig struct {
	ID             string `yaml:"id"`
	Name           string `yaml:"name"`
	Strategy       string `yaml:"strategy"`
	URL            string `yaml:"url"`
	Agency         string `yaml:"agency"`
	SheetID        string `yaml:"sheet_id"`
	SheetGID       string `yaml:"sheet_gid"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	Enabled        *bool  `yaml:"enabled"`
}

func (sc SourceConfig) Timeout() time.Duration {
	if sc.TimeoutSeconds <= 0 {
		return 20 * time.Second
	}
	return time.Duration(sc.TimeoutSeconds) * time.Second
}

func (sc SourceConfig) IsEnabled() bool {
	return sc.Enabled == nil || *sc.Enabled
}

type sourcesFile struct {
	Sources []SourceConfig `yaml:"sources"`
}

// LoadSources returns the configured sources, from SOURCES_CONFIG_PATH if
// set and from the embedded default otherwise. Environment references in
// the file (${OPPORTUNITY_SHEET_ID} and friends) are expanded before parse.
func LoadSources() ([]SourceConfig, error) {
	raw := embeddedSources
	if path := os.Getenv("SOURCES_CONFIG_PATH"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read sources config %s: %w", path, err)
		}
		raw = data
	}
	expanded := os.ExpandEnv(string(raw))

	var f sourcesFile
	if err := yaml.Unmarshal([]byte(expanded), &f); err != nil {
		return nil, fmt.Errorf("parse sources config: %w", err)
	}
	if len(f.Sources) == 0 {
		return nil, fmt.Errorf("sources config contains no sources")
	}
	seen := make(map[string]bool, len(f.Sources))
	for _, sc := range f.Sources {
		if sc.ID == "" || sc.Strategy == "" {
			return nil, fmt.Errorf("source %q missing id or strategy", sc.Name)
		}
		if seen[sc.ID] {
			return nil, fmt.Errorf("duplicate source id %q", sc.ID)
		}
		seen[sc.ID] = true
	}
	return f.Sources, nil
}
