package projection

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ProfileSet is a named collection of calibration profiles, typically one per
// OCR provider or per document class. Loaded from YAML so operators can tune
// alignment without a redeploy.
//
// Example:
//
//	default: textract
//	profiles:
//	  textract:
//	    x_offset_px: 0
//	    y_offset_px: -2
//	    x_scale: 1.0
//	    y_scale: 1.003
type ProfileSet struct {
	Default  string                 `yaml:"default"`
	Profiles map[string]Calibration `yaml:"profiles"`
}

// LoadProfiles reads a profile set from a YAML file.
func LoadProfiles(path string) (*ProfileSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read calibration profiles: %w", err)
	}
	return ParseProfiles(data)
}

// ParseProfiles parses a profile set from YAML bytes.
func ParseProfiles(data []byte) (*ProfileSet, error) {
	var set ProfileSet
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("parse calibration profiles: %w", err)
	}
	for name, cal := range set.Profiles {
		if cal.XScale < 0 || cal.YScale < 0 {
			return nil, fmt.Errorf("profile %q has negative scale", name)
		}
	}
	return &set, nil
}

// Get returns the named profile, or the set's default when name is empty.
// The identity calibration is returned when nothing matches.
func (s *ProfileSet) Get(name string) Calibration {
	if s == nil {
		return Identity()
	}
	if name == "" {
		name = s.Default
	}
	if cal, ok := s.Profiles[name]; ok {
		return cal.withDefaults()
	}
	return Identity()
}
