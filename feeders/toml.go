// Package feeders turns on-disk device-config files into populated Go
// structures. One feeder per source format; package config picks the
// feeder by file extension.
package feeders

import (
	"github.com/golobby/config/v3/pkg/feeder"
)

// TomlFeeder reads a TOML device-config file.
type TomlFeeder struct {
	feeder.Toml
}

// NewTomlFeeder creates a TomlFeeder reading from filePath.
func NewTomlFeeder(filePath string) TomlFeeder {
	return TomlFeeder{feeder.Toml{Path: filePath}}
}
