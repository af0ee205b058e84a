// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/scc-digitalhub/nwp-mirror-sdk/sdk/utils"
)

// FSBackend stores objects as files under a base directory. Writes stream
// into a temp file in the destination directory and are renamed into place,
// so no reader ever observes a partially written file.
type FSBackend struct {
	baseDir string
}

func NewFSBackend(baseDir string) (*FSBackend, error) {
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("%w: cannot create %s: %v", ErrUnavailable, abs, err)
	}
	return &FSBackend{baseDir: abs}, nil
}

func (b *FSBackend) fullPath(key string) string {
	return filepath.Join(b.baseDir, filepath.FromSlash(key))
}

func (b *FSBackend) Exists(ctx context.Context, key string) (bool, error) {
	_, err := os.Stat(b.fullPath(key))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (b *FSBackend) Write(ctx context.Context, key string, r io.Reader) (int64, error) {
	final := b.fullPath(key)
	if err := os.MkdirAll(filepath.Dir(final), 0o755); err != nil {
		return 0, fmt.Errorf("failed to create directory for %s: %w", key, err)
	}

	// Temp file lives next to the final path so the rename stays within one
	// filesystem and is atomic.
	tmp := final + "." + utils.NewUUID() + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file for %s: %w", key, err)
	}

	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		_ = os.Remove(tmp)
		return 0, fmt.Errorf("failed to write %s: %w", key, err)
	}

	if err := os.Rename(tmp, final); err != nil {
		_ = os.Remove(tmp)
		return 0, fmt.Errorf("failed to commit %s: %w", key, err)
	}
	return n, nil
}

func (b *FSBackend) List(ctx context.Context, prefix string) ([]string, error) {
	var results []string
	err := filepath.WalkDir(b.baseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(b.baseDir, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasSuffix(key, ".tmp") {
			// in-flight staging file, never part of the committed state
			return nil
		}
		if strings.HasPrefix(key, prefix) {
			results = append(results, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
	}
	return results, nil
}
