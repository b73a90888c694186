package util

import (
	"path/filepath"
	"strings"
)

// NormalizePath returns the comparison form of an OS path: cleaned, forward
// slashes, lowercased on case-insensitive hosts and without trailing slashes.
// The result is for comparison and set membership only, never for I/O.
func NormalizePath(p string) string {
	return normalizePath(p, IsHostCaseInsensitiveFS())
}

func normalizePath(p string, caseInsensitive bool) string {
	if p == "" {
		return ""
	}
	n := filepath.ToSlash(filepath.Clean(p))
	if caseInsensitive {
		n = strings.ToLower(n)
	}
	return strings.TrimRight(n, "/")
}

// IsSameOrChild reports whether pathNorm equals dirNorm or lies below it.
// Both arguments must already be normalized. A bare prefix test is not enough:
// "/a/bc" is not under "/a/b".
func IsSameOrChild(dirNorm, pathNorm string) bool {
	if pathNorm == dirNorm {
		return true
	}
	return strings.HasPrefix(pathNorm, dirNorm+"/")
}

// NormalizedRelPath returns the normalized path of absPath relative to base,
// or "." for base itself.
func NormalizedRelPath(base, absPath string) (string, error) {
	rel, err := filepath.Rel(base, absPath)
	if err != nil {
		return "", err
	}
	if rel == "." {
		return ".", nil
	}
	return NormalizePath(rel), nil
}

// Rebase maps path, which must lie under fromRoot, to the same relative
// location under toRoot.
func Rebase(fromRoot, toRoot, path string) (string, error) {
	rel, err := filepath.Rel(fromRoot, path)
	if err != nil {
		return "", err
	}
	if rel == "." {
		return toRoot, nil
	}
	return filepath.Join(toRoot, rel), nil
}
