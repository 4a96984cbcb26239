// Package patternsrc loads error pattern definitions from YAML files and
// merges them with the built-in set. A malformed source is skipped and logged;
// it never takes down the remaining sources.
package patternsrc

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/kapjain-rh/error-resolver/internal/common/logger"
	"github.com/kapjain-rh/error-resolver/internal/detect"
)

// File is the on-disk shape of a pattern definition file.
type File struct {
	Patterns []detect.Pattern `yaml:"patterns"`
}

// LoadFile parses one YAML pattern file.
func LoadFile(path string) ([]detect.Pattern, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pattern file %s: %w", path, err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse pattern file %s: %w", path, err)
	}

	for i, p := range f.Patterns {
		if p.Name == "" {
			return nil, fmt.Errorf("pattern file %s: pattern %d has no name", path, i)
		}
		if p.Regex == "" {
			return nil, fmt.Errorf("pattern file %s: pattern %q has no regex", path, p.Name)
		}
	}

	return f.Patterns, nil
}

// LoadAll loads every given pattern file and merges the results on top of the
// built-in patterns, deduplicating by name (file sources win over built-ins,
// earlier files win over later ones). A file that fails to load contributes
// nothing; the rest still load.
func LoadAll(paths []string, log *logger.Logger) []detect.Pattern {
	sources := make([][]detect.Pattern, 0, len(paths)+1)

	for _, path := range paths {
		patterns, err := LoadFile(path)
		if err != nil {
			log.Warn("skipping pattern source",
				zap.String("path", path),
				zap.Error(err))
			continue
		}
		log.Info("loaded pattern source",
			zap.String("path", path),
			zap.Int("patterns", len(patterns)))
		sources = append(sources, patterns)
	}

	sources = append(sources, detect.BuiltinPatterns())
	return detect.Merge(sources...)
}
