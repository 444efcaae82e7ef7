// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package pathsafe guards every filesystem operation the core performs.
// A path is admitted only when it is free of traversal and injection
// patterns and resolves underneath the staging root or the process
// working directory.
package pathsafe

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/ManuGH/clipforge/internal/log"
)

// traversalPatterns are rejected case-insensitively anywhere in the path,
// including URL-encoded and double-encoded forms.
var traversalPatterns = []string{
	"..",
	"%2e%2e",
	"%252e%252e",
	"..%2f",
	"%2f..",
	`..\`,
	"..%5c",
	".%00.",
}

// shellMetaChars are characters that must never reach a child process or
// the filesystem layer. The "$" entry also covers $IFS, ${IFS}, ${...}
// and $NAME expansion patterns.
const shellMetaChars = "$`|;&<>(){}[]!#*?~\n\r"

// Gate validates paths against a fixed staging root.
type Gate struct {
	root string // canonical staging root
}

// NewGate resolves root to its canonical form and returns a Gate bound to it.
func NewGate(root string) (*Gate, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	return &Gate{root: canonical(abs)}, nil
}

// Root returns the canonical staging root the gate is bound to.
func (g *Gate) Root() string {
	return g.root
}

// IsPathSafe reports whether path may be touched by the core.
// Refusals are logged at warn level; callers skip the operation.
func (g *Gate) IsPathSafe(path string) bool {
	if !HasSafeSyntax(path) {
		lg := log.WithComponent("pathsafe")
		lg.Warn().
			Str(log.FieldPath, path).
			Msg("path rejected: forbidden pattern")
		return false
	}
	if !g.contains(path) {
		lg := log.WithComponent("pathsafe")
		lg.Warn().
			Str(log.FieldPath, path).
			Str("root", g.root).
			Msg("path rejected: escapes staging root")
		return false
	}
	return true
}

// HasSafeSyntax checks the purely lexical clauses: non-empty, no NUL
// bytes, no traversal patterns, no shell metacharacters.
func HasSafeSyntax(path string) bool {
	if path == "" {
		return false
	}
	if strings.ContainsRune(path, 0) || strings.Contains(path, `\0`) {
		return false
	}
	lower := strings.ToLower(path)
	for _, p := range traversalPatterns {
		if strings.Contains(lower, p) {
			return false
		}
	}
	if strings.ContainsAny(path, shellMetaChars) {
		return false
	}
	return true
}

// contains reports whether path canonically equals the staging root, is a
// descendant of it, or is a descendant of the process working directory.
func (g *Gate) contains(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	real := canonical(abs)

	if real == g.root || strings.HasPrefix(real, g.root+string(filepath.Separator)) {
		return true
	}

	wd, err := os.Getwd()
	if err != nil {
		return false
	}
	wd = canonical(wd)
	return real == wd || strings.HasPrefix(real, wd+string(filepath.Separator))
}

// canonical resolves symlinks where possible. If the path itself does
// not exist yet, its nearest existing parent is resolved and the base
// re-joined, so planned outputs are still checked against the real
// directory tree.
func canonical(abs string) string {
	abs = filepath.Clean(abs)
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		return real
	}

	dir, rest := filepath.Dir(abs), filepath.Base(abs)
	for {
		if real, err := filepath.EvalSymlinks(dir); err == nil {
			return filepath.Join(real, rest)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return abs
		}
		rest = filepath.Join(filepath.Base(dir), rest)
		dir = parent
	}
}
