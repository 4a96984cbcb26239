package patternsrc

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kapjain-rh/error-resolver/internal/common/logger"
	"github.com/kapjain-rh/error-resolver/internal/detect"
)

func newTestLogger(t *testing.T) *logger.Logger {
	log, err := logger.NewLogger(logger.LoggingConfig{
		Level:      "debug",
		Format:     "console",
		OutputPath: "stdout",
	})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	return log
}

func writePatternFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const validSource = `
patterns:
  - name: deploy-failure
    enabled: true
    type: deploy
    regex: 'deploy failed: (.+)'
    priority: 90
    context:
      above: 1
      below: 2
  - name: custom-oom
    enabled: true
    type: oom
    regex: 'Out of memory'
    priority: 80
`

func TestLoadFile_Valid(t *testing.T) {
	path := writePatternFile(t, "patterns.yaml", validSource)

	patterns, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, patterns, 2)

	assert.Equal(t, "deploy-failure", patterns[0].Name)
	assert.Equal(t, "deploy", patterns[0].Type)
	assert.Equal(t, 90, patterns[0].Priority)
	assert.Equal(t, 1, patterns[0].Context.Above)
	assert.Equal(t, 2, patterns[0].Context.Below)
}

func TestLoadFile_MissingName(t *testing.T) {
	path := writePatternFile(t, "patterns.yaml", `
patterns:
  - enabled: true
    regex: 'boom'
`)
	_, err := LoadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has no name")
}

func TestLoadFile_MissingRegex(t *testing.T) {
	path := writePatternFile(t, "patterns.yaml", `
patterns:
  - name: broken
    enabled: true
`)
	_, err := LoadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has no regex")
}

func TestLoadFile_NotYAML(t *testing.T) {
	path := writePatternFile(t, "patterns.yaml", "{not yaml: [")
	_, err := LoadFile(path)
	assert.Error(t, err)
}

func TestLoadAll_MergesOnTopOfBuiltins(t *testing.T) {
	path := writePatternFile(t, "patterns.yaml", validSource)

	patterns := LoadAll([]string{path}, newTestLogger(t))

	names := make(map[string]detect.Pattern, len(patterns))
	for _, p := range patterns {
		names[p.Name] = p
	}
	assert.Contains(t, names, "deploy-failure")
	assert.Contains(t, names, "custom-oom")

	// Built-ins survive alongside the file sources.
	assert.Greater(t, len(patterns), 2)
}

func TestLoadAll_FileOverridesBuiltin(t *testing.T) {
	builtin := detect.BuiltinPatterns()[0]
	path := writePatternFile(t, "patterns.yaml", `
patterns:
  - name: `+builtin.Name+`
    enabled: true
    type: overridden
    regex: 'custom match'
    priority: 5
`)

	patterns := LoadAll([]string{path}, newTestLogger(t))

	var found detect.Pattern
	count := 0
	for _, p := range patterns {
		if p.Name == builtin.Name {
			found = p
			count++
		}
	}
	require.Equal(t, 1, count)
	assert.Equal(t, "overridden", found.Type)
}

func TestLoadAll_BadSourceIsSkipped(t *testing.T) {
	good := writePatternFile(t, "good.yaml", validSource)
	bad := writePatternFile(t, "bad.yaml", "{not yaml: [")

	patterns := LoadAll([]string{bad, good, filepath.Join(t.TempDir(), "missing.yaml")}, newTestLogger(t))

	names := make(map[string]bool, len(patterns))
	for _, p := range patterns {
		names[p.Name] = true
	}
	assert.True(t, names["deploy-failure"])
	assert.True(t, names["custom-oom"])
}
