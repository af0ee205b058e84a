// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package sync

import (
	"bytes"
	"compress/bzip2"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/scc-digitalhub/nwp-mirror-sdk/sdk/logging"
	"github.com/scc-digitalhub/nwp-mirror-sdk/sdk/services/catalog"
	"github.com/scc-digitalhub/nwp-mirror-sdk/sdk/storage"
	"github.com/scc-digitalhub/nwp-mirror-sdk/sdk/utils"
)

var log = logging.New("sync")

// Executor performs the fetch-and-store for planned descriptors. Transfers
// within a run are independent and run concurrently up to Concurrency; a
// single file failure never aborts the batch.
type Executor struct {
	Backend     storage.Backend
	Fetcher     Fetcher
	Concurrency int
	MaxRetries  int
	RetryDelay  time.Duration
	Decompress  bool
	Metadata    bool
	Progress    *utils.Progress
}

// Execute walks run plans newest first. In latest mode a run whose attempted
// files all turn out unpublished (404, nothing present either) is not a
// failure: the executor falls back to the next-older candidate. The first
// run that yields real results terminates the walk.
func (e *Executor) Execute(ctx context.Context, plans []RunPlan, latestMode bool) []TransferResult {
	var all []TransferResult
	for _, plan := range plans {
		if len(plan.Pending) == 0 {
			continue
		}
		results := e.executeRun(ctx, plan)

		if latestMode && plan.Present == 0 && allSkipped(results) {
			log.Infof("run %s not yet published upstream, falling back", plan.Run)
			all = append(all, results...)
			continue
		}

		all = append(all, results...)
		if latestMode {
			break
		}
	}
	return all
}

func allSkipped(results []TransferResult) bool {
	if len(results) == 0 {
		return false
	}
	for _, r := range results {
		if r.Status != StatusSkipped {
			return false
		}
	}
	return true
}

// executeRun transfers one run's pending files through a bounded worker
// pool. Results are collected under a lock and sorted by destination key so
// reporting is deterministic.
func (e *Executor) executeRun(ctx context.Context, plan RunPlan) []TransferResult {
	concurrency := e.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	sem := make(chan struct{}, concurrency)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results = make([]TransferResult, 0, len(plan.Pending))
	)

	for _, fd := range plan.Pending {
		wg.Add(1)
		go func(fd catalog.RemoteFileDescriptor) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			res := e.transfer(ctx, fd)

			mu.Lock()
			results = append(results, res)
			mu.Unlock()
		}(fd)
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Key < results[j].Key })
	return results
}

// transfer drives one descriptor through pending → fetching → {committed |
// failed}, looping on fetching up to MaxRetries attempts with exponential
// backoff. 404 is terminal immediately: retrying an unpublished file only
// delays the fallback.
func (e *Executor) transfer(ctx context.Context, fd catalog.RemoteFileDescriptor) TransferResult {
	res := TransferResult{Key: fd.Key, URL: fd.URL}

	maxRetries := e.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			res.Status = StatusFailed
			res.Error = fmt.Sprintf("aborted: %v", err)
			return res
		}

		n, err := e.attempt(ctx, fd)
		if err == nil {
			res.Status = StatusTransferred
			res.Bytes = n
			if e.Progress != nil {
				e.Progress.Add(n)
			}
			log.Infof("transferred %s (%d bytes)", fd.Key, n)
			return res
		}

		if errors.Is(err, ErrRemoteNotFound) {
			log.Debugf("not published: %s", fd.URL)
			res.Status = StatusSkipped
			return res
		}

		lastErr = err
		log.Warnf("attempt %d/%d for %s failed: %v", attempt, maxRetries, fd.URL, err)

		if attempt < maxRetries {
			delay := e.RetryDelay << (attempt - 1)
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				res.Status = StatusFailed
				res.Error = fmt.Sprintf("aborted: %v", ctx.Err())
				return res
			case <-timer.C:
			}
		}
	}

	res.Status = StatusFailed
	res.Error = lastErr.Error()
	return res
}

// attempt is one full fetch-and-commit cycle. The body is buffered (and
// optionally decompressed) before the backend write so the commit is atomic
// on both variants and a retry restarts from a clean slate.
func (e *Executor) attempt(ctx context.Context, fd catalog.RemoteFileDescriptor) (int64, error) {
	body, err := e.Fetcher.Fetch(ctx, fd.URL)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	var reader io.Reader = body
	if e.Decompress && strings.HasSuffix(fd.URL, ".bz2") {
		reader = bzip2.NewReader(body)
	}

	hasher := sha256.New()
	var buf bytes.Buffer
	n, err := io.Copy(io.MultiWriter(&buf, hasher), reader)
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", fd.URL, err)
	}

	if _, err := e.Backend.Write(ctx, fd.Key, &buf); err != nil {
		return 0, err
	}

	if e.Metadata {
		if err := e.writeSidecar(ctx, fd, hex.EncodeToString(hasher.Sum(nil)), n); err != nil {
			// sidecar is best-effort; the data file is already committed
			log.Warnf("failed to write metadata sidecar for %s: %v", fd.Key, err)
		}
	}
	return n, nil
}

type sidecarMeta struct {
	URL          string `json:"url"`
	SHA256       string `json:"sha256"`
	SizeBytes    int64  `json:"size_bytes"`
	TimestampUTC string `json:"timestamp_utc"`
}

func (e *Executor) writeSidecar(ctx context.Context, fd catalog.RemoteFileDescriptor, digest string, size int64) error {
	payload, err := json.MarshalIndent(sidecarMeta{
		URL:          fd.URL,
		SHA256:       digest,
		SizeBytes:    size,
		TimestampUTC: time.Now().UTC().Format(time.RFC3339),
	}, "", "  ")
	if err != nil {
		return err
	}
	_, err = e.Backend.Write(ctx, fd.Key+".json", bytes.NewReader(payload))
	return err
}
