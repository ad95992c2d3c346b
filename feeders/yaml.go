package feeders

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// YamlFeeder reads a YAML device-config file.
type YamlFeeder struct {
	Path string
}

// NewYamlFeeder creates a YamlFeeder reading from filePath.
func NewYamlFeeder(filePath string) *YamlFeeder {
	return &YamlFeeder{Path: filePath}
}

// Feed populates structure from the file's YAML content.
func (y *YamlFeeder) Feed(structure interface{}) error {
	raw, err := os.ReadFile(y.Path)
	if err != nil {
		return fmt.Errorf("feeders: reading %s: %w", y.Path, err)
	}
	if err := yaml.Unmarshal(raw, structure); err != nil {
		return fmt.Errorf("feeders: parsing %s: %w", y.Path, err)
	}
	return nil
}
