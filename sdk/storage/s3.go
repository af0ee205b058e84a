// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/scc-digitalhub/nwp-mirror-sdk/sdk/config"
)

// S3Backend stores objects in an S3-compatible bucket. A PUT of the complete
// object is atomic per key, so there is no visible partial state.
type S3Backend struct {
	client *config.S3Client
	bucket string
}

func NewS3Backend(ctx context.Context, bucket string, creds config.S3Config) (*S3Backend, error) {
	client, err := config.NewS3Client(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := client.Ping(ctx, bucket); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return &S3Backend{client: client, bucket: bucket}, nil
}

func (b *S3Backend) Exists(ctx context.Context, key string) (bool, error) {
	return b.client.Exists(ctx, b.bucket, key)
}

func (b *S3Backend) Write(ctx context.Context, key string, r io.Reader) (int64, error) {
	// Buffer the body so the PUT carries a content length and retries at the
	// transfer layer can re-read from the start.
	var buf bytes.Buffer
	n, err := io.Copy(&buf, r)
	if err != nil {
		return 0, fmt.Errorf("failed to buffer %s: %w", key, err)
	}
	if err := b.client.Put(ctx, b.bucket, key, bytes.NewReader(buf.Bytes()), n); err != nil {
		return 0, err
	}
	return n, nil
}

func (b *S3Backend) List(ctx context.Context, prefix string) ([]string, error) {
	files, err := b.client.ListFilesAll(ctx, b.bucket, prefix)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(files))
	for _, f := range files {
		keys = append(keys, f.Path)
	}
	return keys, nil
}
