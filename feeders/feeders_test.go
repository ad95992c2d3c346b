package feeders

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type deviceDoc struct {
	Name  string   `toml:"name" yaml:"name"`
	Count int      `toml:"count" yaml:"count"`
	Tags  []string `toml:"tags" yaml:"tags"`
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestTomlFeederPopulatesStruct(t *testing.T) {
	path := writeTemp(t, "device.toml", `
name = "left-half"
count = 3
tags = ["split", "wireless"]
`)
	var doc deviceDoc
	require.NoError(t, NewTomlFeeder(path).Feed(&doc))
	assert.Equal(t, "left-half", doc.Name)
	assert.Equal(t, 3, doc.Count)
	assert.Equal(t, []string{"split", "wireless"}, doc.Tags)
}

func TestYamlFeederPopulatesStruct(t *testing.T) {
	path := writeTemp(t, "device.yaml", `
name: right-half
count: 5
tags:
  - split
`)
	var doc deviceDoc
	require.NoError(t, NewYamlFeeder(path).Feed(&doc))
	assert.Equal(t, "right-half", doc.Name)
	assert.Equal(t, 5, doc.Count)
	assert.Equal(t, []string{"split"}, doc.Tags)
}

func TestYamlFeederMissingFile(t *testing.T) {
	var doc deviceDoc
	err := NewYamlFeeder(filepath.Join(t.TempDir(), "absent.yaml")).Feed(&doc)
	require.Error(t, err)
}
