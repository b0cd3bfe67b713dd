package capability

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// trackFixtureFile is the on-disk shape for YAML-authored track fixtures,
// used to seed FakeSearcher/FakeMetadataProvider in tests without hand
// writing Go literals for every field.
type trackFixtureFile struct {
	Tracks []Track `yaml:"tracks"`
}

// LoadTrackFixtures reads a YAML file of tracks for use as FakeSearcher or
// FakeMetadataProvider test data.
func LoadTrackFixtures(path string) ([]Track, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading fixture file %s: %w", path, err)
	}
	var f trackFixtureFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing fixture file %s: %w", path, err)
	}
	return f.Tracks, nil
}
