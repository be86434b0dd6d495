// Package security validates filesystem paths built from external input.
// The report writer embeds participant identifiers in file names and writes
// into caller-supplied directories, so both pieces get checked here.
package security

import (
	"fmt"
	"path/filepath"
	"strings"
)

// canonicalize resolves p to an absolute path with symlinks evaluated.
// When p does not exist yet, which is the normal case for a file about to
// be written, the nearest existing ancestor is resolved instead and the
// remainder rebased onto it, so a symlinked parent cannot smuggle the
// result somewhere else.
func canonicalize(p string) (string, error) {
	abs, err := filepath.Abs(filepath.Clean(p))
	if err != nil {
		return "", err
	}

	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}

	for dir := filepath.Dir(abs); ; dir = filepath.Dir(dir) {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			rel, err := filepath.Rel(dir, abs)
			if err != nil {
				return "", err
			}
			return filepath.Join(resolved, rel), nil
		}
		if dir == filepath.Dir(dir) {
			// Walked to the filesystem root without finding an
			// existing ancestor. Fall back to the lexical path.
			return abs, nil
		}
	}
}

// ValidatePathWithinDirectory reports an error when filePath would resolve
// outside safeDir. Both sides are canonicalized first, so a symlink inside
// safeDir pointing elsewhere does not pass.
func ValidatePathWithinDirectory(filePath, safeDir string) error {
	target, err := canonicalize(filePath)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	absDir, err := filepath.Abs(safeDir)
	if err != nil {
		return fmt.Errorf("failed to resolve output directory: %w", err)
	}
	canonDir, err := filepath.EvalSymlinks(absDir)
	if err != nil {
		return fmt.Errorf("failed to resolve output directory symlinks: %w", err)
	}

	rel, err := filepath.Rel(canonDir, target)
	if err != nil {
		return fmt.Errorf("path is outside output directory: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("path traversal detected: %s attempts to escape %s", filePath, safeDir)
	}

	return nil
}

// SanitizeFilename makes a safe file name component from an arbitrary
// string such as a participant ID. Characters outside ASCII letters,
// digits, dot, underscore and dash become underscores, runs of
// underscores collapse, and the result is capped at 128 characters.
func SanitizeFilename(s string) string {
	if s == "" {
		return "unknown"
	}
	const maxLen = 128
	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		if b.Len() >= maxLen {
			break
		}
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			lastUnderscore = false
		case r == '.' || r == '_' || r == '-':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteRune('_')
				lastUnderscore = true
			}
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unknown"
	}
	return out
}
