// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

// Package sync is the incremental resolution and transfer engine: it decides
// which dataset runs are missing at the destination and moves them there.
package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/scc-digitalhub/nwp-mirror-sdk/sdk/config"
	"github.com/scc-digitalhub/nwp-mirror-sdk/sdk/services/catalog"
	"github.com/scc-digitalhub/nwp-mirror-sdk/sdk/storage"
	"github.com/scc-digitalhub/nwp-mirror-sdk/sdk/utils"
)

type SyncService struct {
	cfg      *config.Config
	backend  storage.Backend
	executor *Executor
}

// NewSyncService wires the backend and executor from configuration. Backend
// construction probes the destination; an unreachable or unauthenticated
// destination fails here, before any upstream activity.
func NewSyncService(ctx context.Context, cfg *config.Config, verbose bool) (*SyncService, error) {
	backend, err := storage.New(ctx, *cfg)
	if err != nil {
		return nil, err
	}
	return newSyncService(cfg, backend, NewHTTPFetcher(cfg.Sync.FetchTimeout), verbose), nil
}

// newSyncService lets tests inject backend and fetcher.
func newSyncService(cfg *config.Config, backend storage.Backend, fetcher Fetcher, verbose bool) *SyncService {
	return &SyncService{
		cfg:     cfg,
		backend: backend,
		executor: &Executor{
			Backend:     backend,
			Fetcher:     fetcher,
			Concurrency: cfg.Sync.Concurrency,
			MaxRetries:  cfg.Sync.MaxRetries,
			RetryDelay:  cfg.Sync.RetryDelay,
			Decompress:  cfg.Storage.Decompress,
			Metadata:    cfg.Storage.Metadata,
			Progress:    utils.NewProgress(verbose),
		},
	}
}

// Sync mirrors every configured dataset for the target date, or for the most
// recent published runs when date is nil. Per-file failures are collected in
// the report; only configuration and backend errors abort.
func (s *SyncService) Sync(ctx context.Context, date *time.Time) (*Report, error) {
	return s.syncAt(ctx, date, time.Now().UTC())
}

// syncAt exists so tests can pin "now".
func (s *SyncService) syncAt(ctx context.Context, date *time.Time, now time.Time) (*Report, error) {
	latestMode := date == nil
	report := &Report{}

	for _, ds := range s.cfg.Datasets {
		cat, err := catalog.New(ds, s.cfg.Storage.Decompress)
		if err != nil {
			return nil, err
		}

		runs := cat.Candidates(date, now, s.cfg.Sync.LookBack, s.cfg.Sync.PublicationLag)
		if len(runs) == 0 {
			log.Warnf("dataset %s: no candidate runs for the requested date", ds.Name)
			continue
		}

		candidates := make([]catalog.RunFiles, 0, len(runs))
		for _, run := range runs {
			candidates = append(candidates, cat.Expand(run))
		}

		plans, err := Plan(ctx, cat, candidates, s.backend, latestMode)
		if err != nil {
			return nil, fmt.Errorf("dataset %s: %w", ds.Name, err)
		}

		pending := 0
		for _, p := range plans {
			pending += len(p.Pending)
			report.Present += p.Present
		}
		log.Infof("dataset %s: %d file(s) pending over %d candidate run(s)", ds.Name, pending, len(plans))

		report.add(s.executor.Execute(ctx, plans, latestMode))
	}

	s.executor.Progress.Done()
	log.Infof("sync finished: %d transferred, %d present, %d skipped, %d failed",
		report.Transferred, report.Present, report.Skipped, report.Failed)
	return report, nil
}
