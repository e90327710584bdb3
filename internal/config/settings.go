package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Settings represents a glitteral.yaml file.
type Settings struct {
	// Overflow selects integer overflow handling: "wrap" (default) or "fail".
	Overflow string `yaml:"overflow,omitempty"`

	// Color controls listing colors: "auto" (default, only on a terminal),
	// "always" or "never".
	Color string `yaml:"color,omitempty"`

	// Listen is the address `glitteral serve` binds.
	Listen string `yaml:"listen,omitempty"`

	// Journal is the sqlite file calls are recorded into. Empty disables
	// recording unless --journal is passed.
	Journal string `yaml:"journal,omitempty"`

	// MaxRange is the longest list range may build. 0 means
	// DefaultMaxRangeLen.
	MaxRange int64 `yaml:"max_range,omitempty"`
}

// DefaultSettings is what an absent config file means.
func DefaultSettings() *Settings {
	s := &Settings{}
	s.setDefaults()
	return s
}

// LoadSettings reads and parses a glitteral.yaml file.
func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return ParseSettings(data, path)
}

// ParseSettings parses glitteral.yaml content from bytes.
// The path argument is used only for error messages.
func ParseSettings(data []byte, path string) (*Settings, error) {
	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := s.validate(path); err != nil {
		return nil, err
	}
	s.setDefaults()
	return &s, nil
}

// Merge overrides s with the non-empty fields of o, typically command-line
// flags. source names o in error messages.
func (s *Settings) Merge(o Settings, source string) error {
	if err := o.validate(source); err != nil {
		return err
	}
	if o.Overflow != "" {
		s.Overflow = o.Overflow
	}
	if o.Color != "" {
		s.Color = o.Color
	}
	if o.Listen != "" {
		s.Listen = o.Listen
	}
	if o.Journal != "" {
		s.Journal = o.Journal
	}
	if o.MaxRange != 0 {
		s.MaxRange = o.MaxRange
	}
	s.setDefaults()
	return nil
}

// FindSettings searches for glitteral.yaml starting from dir and walking up
// to parent directories. Returns "" and nil error when there is none.
func FindSettings(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving directory: %w", err)
	}

	for {
		candidate := filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}

		candidate = strings.TrimSuffix(candidate, ".yaml") + ".yml"
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

// validate checks the settings for semantic errors.
func (s *Settings) validate(path string) error {
	switch strings.ToLower(s.Overflow) {
	case "", "wrap", "fail":
	default:
		return fmt.Errorf("%s: overflow must be wrap or fail, got %q", path, s.Overflow)
	}
	switch strings.ToLower(s.Color) {
	case "", "auto", "always", "never":
	default:
		return fmt.Errorf("%s: color must be auto, always or never, got %q", path, s.Color)
	}
	if s.MaxRange < 0 {
		return fmt.Errorf("%s: max_range must not be negative, got %d", path, s.MaxRange)
	}
	return nil
}

// setDefaults fills in default values for omitted fields.
func (s *Settings) setDefaults() {
	if s.Overflow == "" {
		s.Overflow = "wrap"
	}
	s.Overflow = strings.ToLower(s.Overflow)
	if s.Color == "" {
		s.Color = "auto"
	}
	s.Color = strings.ToLower(s.Color)
	if s.Listen == "" {
		s.Listen = DefaultListenAddr
	}
	if s.MaxRange == 0 {
		s.MaxRange = DefaultMaxRangeLen
	}
}
