// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

// Package storage unifies the local-directory and S3-compatible destinations
// behind a single Backend interface. Keys are slash-separated relative
// paths; writes are atomic per key on both variants.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/scc-digitalhub/nwp-mirror-sdk/sdk/config"
)

// ErrUnavailable marks a destination that is unreachable or rejects the
// configured credentials. It is fatal for the whole invocation.
var ErrUnavailable = errors.New("storage backend unavailable")

type Backend interface {
	// Exists reports whether key is fully committed at the destination.
	// A miss is a valid negative result, not an error.
	Exists(ctx context.Context, key string) (bool, error)
	// Write commits the full contents of r under key. The object becomes
	// visible only after a successful return; a failed or abandoned write
	// leaves no observable partial state.
	Write(ctx context.Context, key string, r io.Reader) (int64, error)
	// List returns the keys under prefix. An empty result is not an error.
	List(ctx context.Context, prefix string) ([]string, error)
}

// New selects the backend variant once from configuration.
func New(ctx context.Context, cfg config.Config) (Backend, error) {
	switch cfg.Storage.Type {
	case "fs":
		return NewFSBackend(cfg.Storage.DataDir)
	case "s3":
		return NewS3Backend(ctx, cfg.Storage.Bucket, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Storage.Type)
	}
}
