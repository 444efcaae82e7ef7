// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package processor implements the per-kind job processors dispatched by
// the queue manager: single-video subtitle burn, multi-clip timeline
// export, and AI transcription.
package processor

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ManuGH/clipforge/internal/pathsafe"
)

// checkInput verifies a required input passes the gate and exists.
func checkInput(gate *pathsafe.Gate, path string) error {
	if path == "" {
		return fmt.Errorf("required input path is empty")
	}
	if !gate.IsPathSafe(path) {
		return fmt.Errorf("path refused by safety gate: %s", path)
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("input not readable: %w", err)
	}
	return nil
}

// prepareOutput verifies the output path passes the gate and creates its
// parent directory.
func prepareOutput(gate *pathsafe.Gate, path string) error {
	if path == "" {
		return fmt.Errorf("required output path is empty")
	}
	if !gate.IsPathSafe(path) {
		return fmt.Errorf("path refused by safety gate: %s", path)
	}
	dir := filepath.Dir(path)
	if !gate.IsPathSafe(dir) {
		return fmt.Errorf("output directory refused by safety gate: %s", dir)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	return nil
}
