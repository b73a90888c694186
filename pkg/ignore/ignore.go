// Package ignore decides which source paths a sync must leave alone.
//
// A path is ignored when it equals or lies under one of the configured ignore
// roots, or when its path relative to the source root matches one of the
// gitignore-style exclude patterns. Destination entries are never matched
// directly: they are mapped to their source equivalent first, so an ignored
// source path shields the matching destination path as well.
package ignore

import (
	"fmt"
	"path/filepath"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"

	"github.com/paulschiretz/pgl-sync/pkg/util"
)

// Matcher tests source and destination paths against ignore roots and patterns.
// It is immutable after construction and safe for concurrent use.
type Matcher struct {
	sourceRoot string
	roots      []string
	patterns   *gitignore.GitIgnore
}

// New builds a Matcher. ignoreRoots are source-space paths, made absolute
// against the working directory when relative. excludePatterns use gitignore
// syntax relative to sourceRoot.
func New(sourceRoot string, ignoreRoots, excludePatterns []string) (*Matcher, error) {
	absRoot, err := filepath.Abs(sourceRoot)
	if err != nil {
		return nil, fmt.Errorf("could not resolve source root %s: %w", sourceRoot, err)
	}

	m := &Matcher{sourceRoot: absRoot}
	for _, r := range ignoreRoots {
		if strings.TrimSpace(r) == "" {
			continue
		}
		abs, err := filepath.Abs(r)
		if err != nil {
			return nil, fmt.Errorf("could not resolve ignore path %s: %w", r, err)
		}
		m.roots = append(m.roots, util.NormalizePath(abs))
	}

	var lines []string
	for _, p := range excludePatterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if util.IsHostCaseInsensitiveFS() {
			p = strings.ToLower(p)
		}
		lines = append(lines, filepath.ToSlash(p))
	}
	if len(lines) > 0 {
		m.patterns = gitignore.CompileIgnoreLines(lines...)
	}
	return m, nil
}

// SourceRoot returns the absolute source root the matcher was built for.
func (m *Matcher) SourceRoot() string { return m.sourceRoot }

// Roots returns the normalized ignore roots.
func (m *Matcher) Roots() []string { return m.roots }

// Matches reports whether sourcePath is ignored. isDir lets directory-only
// patterns such as "build/" apply.
func (m *Matcher) Matches(sourcePath string, isDir bool) bool {
	norm := util.NormalizePath(sourcePath)
	for _, root := range m.roots {
		if util.IsSameOrChild(root, norm) {
			return true
		}
	}
	if m.patterns == nil {
		return false
	}

	rel, err := util.NormalizedRelPath(m.sourceRoot, sourcePath)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, "../") {
		return false
	}
	if m.patterns.MatchesPath(rel) {
		return true
	}
	return isDir && m.patterns.MatchesPath(rel+"/")
}

// SourceEquivalent maps a destination path to the source path it mirrors.
func (m *Matcher) SourceEquivalent(destRoot, destPath string) (string, error) {
	return util.Rebase(destRoot, m.sourceRoot, destPath)
}

// MatchesDestination reports whether the source equivalent of destPath is ignored.
func (m *Matcher) MatchesDestination(destRoot, destPath string, isDir bool) bool {
	src, err := m.SourceEquivalent(destRoot, destPath)
	if err != nil {
		return false
	}
	return m.Matches(src, isDir)
}
