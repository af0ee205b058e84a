// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

// nwpmirror incrementally mirrors NWP open-data files onto a local directory
// or an S3-compatible bucket. Exit code 0 means every pending file was
// committed; anything failed (or a fatal setup error) exits non-zero.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"sigs.k8s.io/yaml"

	"github.com/scc-digitalhub/nwp-mirror-sdk/sdk/config"
	"github.com/scc-digitalhub/nwp-mirror-sdk/sdk/logging"
	syncsvc "github.com/scc-digitalhub/nwp-mirror-sdk/sdk/services/sync"
)

var log = logging.New("nwpmirror")

var (
	configPath string
	dateArg    string
	timeoutArg time.Duration
	verbose    bool
)

func main() {
	flag.StringVar(&configPath, "config", "./config.yaml", "path to YAML configuration file")
	flag.StringVar(&dateArg, "date", "", "target date in YYYYMMDD format (default: most recent published runs)")
	flag.DurationVar(&timeoutArg, "timeout", 0, "overall deadline for the invocation (default: none)")
	flag.BoolVar(&verbose, "verbose", false, "render transfer progress and the full per-file report")
	flag.Parse()

	logging.Setup()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Errorf("configuration error: %v", err)
		os.Exit(2)
	}

	var date *time.Time
	if dateArg != "" {
		d, err := time.ParseInLocation("20060102", dateArg, time.UTC)
		if err != nil {
			log.Errorf("invalid date %q: expected YYYYMMDD", dateArg)
			os.Exit(2)
		}
		date = &d
	}

	ctx := context.Background()
	if timeoutArg > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeoutArg)
		defer cancel()
	}

	svc, err := syncsvc.NewSyncService(ctx, cfg, verbose)
	if err != nil {
		log.Errorf("destination unavailable: %v", err)
		os.Exit(1)
	}

	report, err := svc.Sync(ctx, date)
	if err != nil {
		log.Errorf("sync aborted: %v", err)
		os.Exit(1)
	}

	printReport(report)

	if !report.OK() {
		for _, key := range report.FailedKeys() {
			log.Errorf("failed: %s", key)
		}
		os.Exit(1)
	}
}

func printReport(report *syncsvc.Report) {
	summary := *report
	if !verbose {
		summary.Results = nil
	}
	out, err := yaml.Marshal(&summary)
	if err != nil {
		log.Errorf("failed to render report: %v", err)
		return
	}
	fmt.Println(string(out))
}
