// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package sync

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	stdsync "sync"
	"testing"
	"time"

	"github.com/scc-digitalhub/nwp-mirror-sdk/sdk/config"
	"github.com/scc-digitalhub/nwp-mirror-sdk/sdk/services/catalog"
)

// memBackend is an in-memory storage.Backend for planner/executor tests.
type memBackend struct {
	mu      stdsync.Mutex
	objects map[string][]byte
}

func newMemBackend() *memBackend {
	return &memBackend{objects: make(map[string][]byte)}
}

func (b *memBackend) Exists(ctx context.Context, key string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.objects[key]
	return ok, nil
}

func (b *memBackend) Write(ctx context.Context, key string, r io.Reader) (int64, error) {
	var buf bytes.Buffer
	n, err := io.Copy(&buf, r)
	if err != nil {
		return 0, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = buf.Bytes()
	return n, nil
}

func (b *memBackend) List(ctx context.Context, prefix string) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var keys []string
	for k := range b.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// fakeFetcher serves canned bodies per URL. URLs absent from bodies return
// ErrRemoteNotFound; URLs in failures fail with a transient error.
type fakeFetcher struct {
	mu       stdsync.Mutex
	bodies   map[string]string
	failures map[string]bool
	calls    map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		bodies:   make(map[string]string),
		failures: make(map[string]bool),
		calls:    make(map[string]int),
	}
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	f.mu.Lock()
	f.calls[url]++
	body, ok := f.bodies[url]
	failing := f.failures[url]
	f.mu.Unlock()

	if failing {
		return nil, fmt.Errorf("fetching %s: connection reset", url)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRemoteNotFound, url)
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

func (f *fakeFetcher) callCount(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

func (f *fakeFetcher) publish(files []catalog.RemoteFileDescriptor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, fd := range files {
		f.bodies[fd.URL] = "payload for " + fd.Key
	}
}

func testDataset(variables []string, steps []int) config.DatasetConfig {
	return config.DatasetConfig{
		Name:          "icon-eu",
		BaseURL:       "http://upstream.test/icon-eu/grib",
		FileTemplate:  "icon-eu_{level}_{date}{run}_{step:03d}_{var_upper}.grib2",
		Level:         "single-level",
		Runs:          []string{"00", "06", "12", "18"},
		Variables:     variables,
		ForecastSteps: steps,
	}
}

func testCatalog(t *testing.T, spec config.DatasetConfig) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New(spec, false)
	if err != nil {
		t.Fatalf("failed to build catalog: %v", err)
	}
	return cat
}

func testExecutor(backend *memBackend, fetcher Fetcher) *Executor {
	return &Executor{
		Backend:     backend,
		Fetcher:     fetcher,
		Concurrency: 2,
		MaxRetries:  3,
		RetryDelay:  time.Millisecond,
	}
}

func run(date time.Time, cycle int) catalog.RunIdentifier {
	return catalog.RunIdentifier{
		Date:  time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC),
		Cycle: cycle,
	}
}
