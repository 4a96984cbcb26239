// Package providers contains the resolution providers shipped with
// error-resolver: local codebase search, the RCA knowledge base, web-search
// links, and the optional AI analysis call.
package providers

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/kapjain-rh/error-resolver/internal/common/logger"
	"github.com/kapjain-rh/error-resolver/internal/detect"
	"github.com/kapjain-rh/error-resolver/internal/resolve"
)

// Limits for the workspace scan. The provider is best-effort: it prefers a
// fast partial answer over an exhaustive one.
const (
	maxScannedFiles     = 2000
	maxFileSize         = 512 * 1024
	maxCodebaseResults  = 5
	codebaseBaseScore   = 70
	codebaseKeywordStep = 5
)

var skippedDirs = map[string]struct{}{
	".git": {}, "node_modules": {}, "vendor": {}, "dist": {}, "build": {},
	".idea": {}, ".vscode": {}, "__pycache__": {}, ".venv": {},
}

var sourceExtensions = map[string]struct{}{
	".go": {}, ".js": {}, ".ts": {}, ".jsx": {}, ".tsx": {}, ".py": {},
	".rb": {}, ".java": {}, ".rs": {}, ".c": {}, ".cc": {}, ".cpp": {},
	".h": {}, ".sh": {}, ".yaml": {}, ".yml": {}, ".json": {}, ".toml": {},
}

// Codebase searches workspace source files for lines mentioning the error's
// keywords and offers the hit locations as jump-to-code resolutions.
type Codebase struct {
	root   string
	logger *logger.Logger
}

// NewCodebase creates a codebase search provider rooted at root.
func NewCodebase(root string, log *logger.Logger) *Codebase {
	return &Codebase{
		root:   root,
		logger: log.WithFields(zap.String("component", "codebase-provider")),
	}
}

// Name implements resolve.Provider.
func (c *Codebase) Name() string { return "codebase" }

// Resolve implements resolve.Provider.
func (c *Codebase) Resolve(ctx context.Context, detected *detect.DetectedError) ([]resolve.Resolution, error) {
	keywords := resolve.Keywords(detected)
	if len(keywords) == 0 {
		return nil, nil
	}

	// An extracted file path is the strongest possible signal: the error
	// already told us where to look.
	var resolutions []resolve.Resolution
	if detected.File != "" {
		resolutions = append(resolutions, resolve.Resolution{
			Source:      resolve.SourceCodebase,
			Title:       fmt.Sprintf("Open %s", detected.File),
			Description: "The error message points directly at this location.",
			File:        detected.File,
			Line:        detected.Line,
			Confidence:  90,
		})
	}

	hits, err := c.scan(ctx, keywords)
	if err != nil {
		return nil, err
	}
	resolutions = append(resolutions, hits...)

	if len(resolutions) > maxCodebaseResults {
		resolutions = resolutions[:maxCodebaseResults]
	}
	return resolutions, nil
}

type codebaseHit struct {
	file    string
	line    int
	text    string
	matched int
}

// scan walks the workspace looking for lines that mention error keywords.
func (c *Codebase) scan(ctx context.Context, keywords []string) ([]resolve.Resolution, error) {
	var hits []codebaseHit
	scanned := 0

	err := filepath.WalkDir(c.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped, not fatal
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if d.IsDir() {
			if _, skip := skippedDirs[d.Name()]; skip {
				return filepath.SkipDir
			}
			return nil
		}

		if _, ok := sourceExtensions[filepath.Ext(path)]; !ok {
			return nil
		}
		if scanned >= maxScannedFiles {
			return filepath.SkipAll
		}
		scanned++

		if info, err := d.Info(); err != nil || info.Size() > maxFileSize {
			return nil
		}

		fileHits := scanFile(path, keywords)
		hits = append(hits, fileHits...)
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("workspace scan failed: %w", err)
	}

	// Most keyword matches first.
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].matched > hits[j].matched
	})
	best := hits
	if len(best) > maxCodebaseResults {
		best = best[:maxCodebaseResults]
	}

	resolutions := make([]resolve.Resolution, 0, len(best))
	for _, h := range best {
		rel, relErr := filepath.Rel(c.root, h.file)
		if relErr != nil {
			rel = h.file
		}
		confidence := codebaseBaseScore + codebaseKeywordStep*h.matched
		if confidence > 90 {
			confidence = 90
		}
		resolutions = append(resolutions, resolve.Resolution{
			Source:      resolve.SourceCodebase,
			Title:       fmt.Sprintf("Related code in %s:%d", rel, h.line),
			Description: strings.TrimSpace(h.text),
			File:        h.file,
			Line:        h.line,
			Confidence:  confidence,
		})
	}
	return resolutions, nil
}

// scanFile returns keyword hits in one file, best line per file.
func scanFile(path string, keywords []string) []codebaseHit {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var best *codebaseHit
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 64*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		lower := strings.ToLower(line)

		matched := 0
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				matched++
			}
		}
		if matched == 0 {
			continue
		}
		if best == nil || matched > best.matched {
			best = &codebaseHit{file: path, line: lineNo, text: line, matched: matched}
		}
	}

	if best == nil {
		return nil
	}
	return []codebaseHit{*best}
}
