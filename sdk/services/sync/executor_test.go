// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package sync

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"testing"

	"github.com/scc-digitalhub/nwp-mirror-sdk/sdk/services/catalog"
)

// gribPayload is the plaintext behind gribPayloadBz2Hex, a bzip2 stream
// precomputed because the standard library only reads the format.
var gribPayload = bytes.Repeat([]byte("GRIB2 synthetic body for decompression tests\n"), 4)

const gribPayloadBz2Hex = "425a6839314159265359db000a62000011df8000104000100010a010001f63dc" +
	"2020007051a32068d32340aaa4f435369ea2636a6a49624c152e6c6e6c41041e" +
	"1d1424ece4c126a507854765cb9049e953058b1f840f4a199d1f0fe2ee48a70a" +
	"121b60014c40"

func TestExecutorIsolatesRetryExhaustion(t *testing.T) {
	ctx := context.Background()
	cat := testCatalog(t, testDataset([]string{"t_2m"}, []int{0, 3, 6}))
	backend := newMemBackend()
	fetcher := newFakeFetcher()

	files := cat.Expand(run(testDay, 6))
	fetcher.publish(files.Files)
	broken := files.Files[1].URL
	fetcher.failures[broken] = true

	exec := testExecutor(backend, fetcher)
	results := exec.Execute(ctx, []RunPlan{{Run: files.Run, Pending: files.Files}}, true)

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	var report Report
	report.add(results)
	if report.Failed != 1 || report.Transferred != 2 {
		t.Fatalf("one failure must not abort the batch: %+v", report)
	}
	if report.OK() {
		t.Fatal("report with a failed item must not be OK")
	}
	if got := fetcher.callCount(broken); got != exec.MaxRetries {
		t.Fatalf("expected %d bounded attempts, got %d", exec.MaxRetries, got)
	}

	// the two healthy files are committed despite the failure
	for _, fd := range []catalog.RemoteFileDescriptor{files.Files[0], files.Files[2]} {
		ok, err := backend.Exists(ctx, fd.Key)
		if err != nil || !ok {
			t.Fatalf("expected %s committed, ok=%v err=%v", fd.Key, ok, err)
		}
	}
}

func TestExecutorFallsBackWhenNewestRunUnpublished(t *testing.T) {
	ctx := context.Background()
	// spec scenario: 1 variable, 3 forecast steps, look-back 2, newest run
	// fully absent upstream → only the second-newest run is transferred.
	cat := testCatalog(t, testDataset([]string{"t_2m"}, []int{0, 3, 6}))
	backend := newMemBackend()
	fetcher := newFakeFetcher()

	newest := cat.Expand(run(testDay, 12))
	older := cat.Expand(run(testDay, 6))
	fetcher.publish(older.Files) // newest stays 404

	plans := []RunPlan{
		{Run: newest.Run, Pending: newest.Files},
		{Run: older.Run, Pending: older.Files},
	}
	results := testExecutor(backend, fetcher).Execute(ctx, plans, true)

	var report Report
	report.add(results)
	if report.Transferred != 3 {
		t.Fatalf("expected the 3 files of the second-newest run, got %+v", report)
	}
	if report.Skipped != 3 {
		t.Fatalf("expected the newest run recorded as skipped, got %+v", report)
	}
	if report.Failed != 0 || !report.OK() {
		t.Fatalf("an unpublished newest run is not a failure: %+v", report)
	}

	for _, fd := range older.Files {
		if ok, _ := backend.Exists(ctx, fd.Key); !ok {
			t.Fatalf("expected %s committed", fd.Key)
		}
	}
	for _, fd := range newest.Files {
		if ok, _ := backend.Exists(ctx, fd.Key); ok {
			t.Fatalf("nothing of the unpublished run should exist: %s", fd.Key)
		}
	}
}

func TestExecutorLatestModeStopsAfterFirstRealRun(t *testing.T) {
	ctx := context.Background()
	cat := testCatalog(t, testDataset([]string{"t_2m"}, []int{0}))
	backend := newMemBackend()
	fetcher := newFakeFetcher()

	newest := cat.Expand(run(testDay, 12))
	older := cat.Expand(run(testDay, 6))
	fetcher.publish(newest.Files)
	fetcher.publish(older.Files)

	plans := []RunPlan{
		{Run: newest.Run, Pending: newest.Files},
		{Run: older.Run, Pending: older.Files},
	}
	testExecutor(backend, fetcher).Execute(ctx, plans, true)

	if got := fetcher.callCount(older.Files[0].URL); got != 0 {
		t.Fatalf("older run must not be fetched once the newest succeeded, got %d calls", got)
	}
}

func TestExecutorHonorsCancellation(t *testing.T) {
	cat := testCatalog(t, testDataset([]string{"t_2m"}, []int{0, 3}))
	backend := newMemBackend()
	fetcher := newFakeFetcher()

	files := cat.Expand(run(testDay, 6))
	fetcher.publish(files.Files)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := testExecutor(backend, fetcher).Execute(ctx, []RunPlan{{Run: files.Run, Pending: files.Files}}, true)

	var report Report
	report.add(results)
	if report.Failed != len(files.Files) {
		t.Fatalf("cancelled items must end failed: %+v", report)
	}
	for _, res := range report.Results {
		if res.Error == "" {
			t.Fatalf("failed result without a reason: %+v", res)
		}
	}
}

func TestExecutorDecompressesAndWritesSidecar(t *testing.T) {
	ctx := context.Background()
	spec := testDataset([]string{"t_2m"}, []int{0})
	spec.FileTemplate = "icon-eu_{level}_{date}{run}_{step:03d}_{var_upper}.grib2.bz2"
	cat, err := catalog.New(spec, true)
	if err != nil {
		t.Fatalf("failed to build catalog: %v", err)
	}

	files := cat.Expand(run(testDay, 6))
	fd := files.Files[0]
	if !strings.HasSuffix(fd.URL, ".bz2") || strings.HasSuffix(fd.Key, ".bz2") {
		t.Fatalf("expected compressed url and stripped key, got %+v", fd)
	}

	compressed, err := hex.DecodeString(gribPayloadBz2Hex)
	if err != nil {
		t.Fatalf("bad fixture: %v", err)
	}
	fetcher := newFakeFetcher()
	fetcher.bodies[fd.URL] = string(compressed)

	backend := newMemBackend()
	exec := testExecutor(backend, fetcher)
	exec.Decompress = true
	exec.Metadata = true

	results := exec.Execute(ctx, []RunPlan{{Run: files.Run, Pending: files.Files}}, true)
	if len(results) != 1 || results[0].Status != StatusTransferred {
		t.Fatalf("expected a single transferred result, got %+v", results)
	}
	if results[0].Bytes != int64(len(gribPayload)) {
		t.Fatalf("expected decompressed size %d, got %d", len(gribPayload), results[0].Bytes)
	}
	if !bytes.Equal(backend.objects[fd.Key], gribPayload) {
		t.Fatalf("destination does not hold the decompressed bytes")
	}

	raw, ok := backend.objects[fd.Key+".json"]
	if !ok {
		t.Fatal("expected a metadata sidecar next to the data file")
	}
	var meta sidecarMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		t.Fatalf("sidecar is not valid json: %v", err)
	}
	sum := sha256.Sum256(gribPayload)
	if meta.URL != fd.URL || meta.SHA256 != hex.EncodeToString(sum[:]) || meta.SizeBytes != int64(len(gribPayload)) {
		t.Fatalf("unexpected sidecar contents: %+v", meta)
	}

	// sidecars live next to the data files but must not count as presence
	plans, err := Plan(ctx, cat, []catalog.RunFiles{files}, backend, true)
	if err != nil {
		t.Fatalf("plan failed: %v", err)
	}
	if plans[0].Present != 1 || len(plans[0].Pending) != 0 {
		t.Fatalf("sidecar leaked into planning: %+v", plans[0])
	}
}

func TestExecutorZeroRetriesStillAttemptsOnce(t *testing.T) {
	ctx := context.Background()
	cat := testCatalog(t, testDataset([]string{"t_2m"}, []int{0}))
	backend := newMemBackend()
	fetcher := newFakeFetcher()

	files := cat.Expand(run(testDay, 6))
	broken := files.Files[0].URL
	fetcher.failures[broken] = true

	exec := testExecutor(backend, fetcher)
	exec.MaxRetries = 0

	results := exec.Execute(ctx, []RunPlan{{Run: files.Run, Pending: files.Files}}, true)
	if len(results) != 1 || results[0].Status != StatusFailed {
		t.Fatalf("expected a single failed result, got %+v", results)
	}
	if results[0].Error == "" {
		t.Fatalf("failed result without a reason: %+v", results[0])
	}
	if got := fetcher.callCount(broken); got != 1 {
		t.Fatalf("expected exactly one attempt, got %d", got)
	}
}

func TestExecutorResultsSortedByKey(t *testing.T) {
	ctx := context.Background()
	cat := testCatalog(t, testDataset([]string{"t_2m", "tot_prec"}, []int{0, 3, 6, 12}))
	backend := newMemBackend()
	fetcher := newFakeFetcher()

	files := cat.Expand(run(testDay, 6))
	fetcher.publish(files.Files)

	results := testExecutor(backend, fetcher).Execute(ctx, []RunPlan{{Run: files.Run, Pending: files.Files}}, true)
	for i := 1; i < len(results); i++ {
		if results[i-1].Key > results[i].Key {
			t.Fatalf("results not sorted deterministically: %s > %s", results[i-1].Key, results[i].Key)
		}
	}
}
