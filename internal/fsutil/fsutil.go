// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package fsutil owns the staging-root filesystem layout and gated file
// removal. Every destructive operation passes its target through the
// path-safety gate before touching the disk.
package fsutil

import (
	"crypto/rand"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"

	"github.com/ManuGH/clipforge/internal/log"
	"github.com/ManuGH/clipforge/internal/metrics"
	"github.com/ManuGH/clipforge/internal/pathsafe"
)

// Layout is the staging-root directory structure.
type Layout struct {
	Root    string
	Videos  string
	Exports string
	Temp    string
}

// InitLayout creates the staging root and its subdirectories, returning
// the resolved layout. Root defaults to ./storage when empty.
func InitLayout(root string) (*Layout, error) {
	if root == "" {
		root = "storage"
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve staging root: %w", err)
	}

	l := &Layout{
		Root:    abs,
		Videos:  filepath.Join(abs, "videos"),
		Exports: filepath.Join(abs, "exports"),
		Temp:    filepath.Join(abs, "temp"),
	}
	for _, dir := range []string{l.Root, l.Videos, l.Exports, l.Temp} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return l, nil
}

// QueueDBPath returns the path of the queue database file.
func (l *Layout) QueueDBPath() string {
	return filepath.Join(l.Root, "queue.db")
}

// JobVideoDir returns the per-job input directory.
func (l *Layout) JobVideoDir(jobID string) string {
	return filepath.Join(l.Videos, jobID)
}

// JobExportDir returns the per-job output directory.
func (l *Layout) JobExportDir(jobID string) string {
	return filepath.Join(l.Exports, jobID)
}

// Remover deletes job artifacts through the path gate, optionally
// overwriting file contents before unlinking.
type Remover struct {
	gate        *pathsafe.Gate
	secureErase bool
}

// NewRemover builds a Remover over the given gate. When secureErase is
// set, removal performs three random-overwrite passes and one zero pass,
// each fsynced, before the unlink.
func NewRemover(gate *pathsafe.Gate, secureErase bool) *Remover {
	return &Remover{gate: gate, secureErase: secureErase}
}

// Remove deletes the file at path if the gate permits it. Refused paths
// are skipped and logged, never an error. Missing files are a no-op.
func (r *Remover) Remove(path string) error {
	logger := log.WithComponent("fsutil")

	if !r.gate.IsPathSafe(path) {
		logger.Warn().
			Str(log.FieldPath, path).
			Msg("path gate refused removal target, skipping")
		return nil
	}

	info, err := os.Lstat(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	if r.secureErase && info.Mode().IsRegular() && info.Size() > 0 {
		if err := overwrite(path, info.Size()); err != nil {
			logger.Error().
				Str(log.FieldPath, path).
				Err(err).
				Msg("secure overwrite failed, unlinking anyway")
		} else {
			metrics.SecureEraseTotal.Inc()
		}
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("unlink %s: %w", path, err)
	}
	return nil
}

// RemoveAll applies Remove to each path, continuing past failures, and
// returns the first error encountered.
func (r *Remover) RemoveAll(paths []string) error {
	var first error
	for _, p := range paths {
		if err := r.Remove(p); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// overwrite performs three random passes and one zero pass over the
// file, syncing after each pass.
func overwrite(path string, size int64) error {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	for pass := 0; pass < 4; pass++ {
		var src io.Reader
		if pass < 3 {
			src = rand.Reader
		} else {
			src = zeroReader{}
		}
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return err
		}
		if _, err := io.CopyN(f, src, size); err != nil {
			return fmt.Errorf("overwrite pass %d: %w", pass+1, err)
		}
		if err := f.Sync(); err != nil {
			return fmt.Errorf("sync pass %d: %w", pass+1, err)
		}
	}
	return nil
}

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}

// WriteFileAtomic writes data to path durably: temp file, fsync, atomic
// rename. Used for subtitle files and other small artifacts.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	pending, err := renameio.NewPendingFile(path, renameio.WithPermissions(perm))
	if err != nil {
		return fmt.Errorf("create pending file: %w", err)
	}
	defer func() { _ = pending.Cleanup() }()

	if _, err := pending.Write(data); err != nil {
		return fmt.Errorf("write pending file: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace %s: %w", path, err)
	}
	return nil
}
