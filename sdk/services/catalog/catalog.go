// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

// Package catalog encodes the upstream naming convention: which runs exist
// for a date and which files each run is expected to contain. Expansion is
// pure; existence at either end is checked elsewhere.
package catalog

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/scc-digitalhub/nwp-mirror-sdk/sdk/config"
)

type Catalog struct {
	spec       config.DatasetConfig
	decompress bool
	cycles     []int
}

// New builds a catalog for one dataset. With decompress set, .bz2 upstream
// names map to destination keys without the suffix, so planner and executor
// agree on what "present" means.
func New(spec config.DatasetConfig, decompress bool) (*Catalog, error) {
	cycles := make([]int, 0, len(spec.Runs))
	for _, r := range spec.Runs {
		h, err := strconv.Atoi(r)
		if err != nil || h < 0 || h > 23 {
			return nil, fmt.Errorf("dataset %s: invalid run cycle %q", spec.Name, r)
		}
		cycles = append(cycles, h)
	}
	sort.Ints(cycles)
	return &Catalog{spec: spec, decompress: decompress, cycles: cycles}, nil
}

func (c *Catalog) Name() string { return c.spec.Name }

// Candidates returns up to lookBack candidate runs, most recent first.
//
// With a target date, every cycle of that date whose issue time is not in
// the future is a candidate. Without one ("latest"), the walk starts at the
// newest cycle whose issue time plus the publication lag has passed, and
// continues backwards across day boundaries. Upstream lag means the newest
// candidate may not be published yet; callers fall back along the slice.
func (c *Catalog) Candidates(target *time.Time, now time.Time, lookBack int, lag time.Duration) []RunIdentifier {
	if lookBack <= 0 {
		lookBack = 1
	}
	now = now.UTC()

	var runs []RunIdentifier
	if target != nil {
		day := time.Date(target.Year(), target.Month(), target.Day(), 0, 0, 0, 0, time.UTC)
		for i := len(c.cycles) - 1; i >= 0 && len(runs) < lookBack; i-- {
			r := RunIdentifier{Date: day, Cycle: c.cycles[i]}
			if r.When().After(now) {
				continue
			}
			runs = append(runs, r)
		}
		return runs
	}

	cutoff := now.Add(-lag)
	day := time.Date(cutoff.Year(), cutoff.Month(), cutoff.Day(), 0, 0, 0, 0, time.UTC)
	for len(runs) < lookBack {
		for i := len(c.cycles) - 1; i >= 0 && len(runs) < lookBack; i-- {
			r := RunIdentifier{Date: day, Cycle: c.cycles[i]}
			if r.When().After(cutoff) {
				continue
			}
			runs = append(runs, r)
		}
		day = day.AddDate(0, 0, -1)
	}
	return runs
}

// Expand derives every expected file of a run. No network calls: this only
// encodes the naming convention. Calling it twice yields identical output.
func (c *Catalog) Expand(run RunIdentifier) RunFiles {
	files := make([]RemoteFileDescriptor, 0, len(c.spec.Variables)*len(c.spec.ForecastSteps))
	for _, v := range c.spec.Variables {
		for _, step := range c.spec.ForecastSteps {
			filename := c.buildFilename(run, v, step)
			files = append(files, RemoteFileDescriptor{
				URL:      c.buildURL(run, v, filename),
				Key:      c.buildKey(run, filename),
				Run:      run,
				Variable: v,
				Step:     step,
			})
		}
	}
	return RunFiles{Run: run, Files: files}
}

// buildFilename renders the dataset file template for one (run, var, step).
func (c *Catalog) buildFilename(run RunIdentifier, variable string, step int) string {
	r := strings.NewReplacer(
		"{grid}", c.spec.Grid,
		"{subgrid}", c.spec.Subgrid,
		"{level}", c.spec.Level,
		"{date}", run.DateString(),
		"{run}", run.CycleString(),
		"{step:03d}", fmt.Sprintf("%03d", step),
		"{step}", strconv.Itoa(step),
		"{var_upper}", strings.ToUpper(variable),
		"{var}", variable,
	)
	return r.Replace(c.spec.FileTemplate)
}

func (c *Catalog) buildURL(run RunIdentifier, variable, filename string) string {
	base := strings.TrimRight(c.spec.BaseURL, "/")
	return base + "/" + run.CycleString() + "/" + variable + "/" + filename
}

// buildKey maps a remote filename onto the date-partitioned destination
// layout. With decompression enabled the stored object is the decompressed
// file, so the .bz2 suffix is dropped from the key.
func (c *Catalog) buildKey(run RunIdentifier, filename string) string {
	if c.decompress {
		filename = strings.TrimSuffix(filename, ".bz2")
	}
	return c.spec.Name + "/" + run.DateString() + "/" + run.CycleString() + "/" + filename
}

// Prefix is the destination key prefix shared by all files of a run.
func (c *Catalog) Prefix(run RunIdentifier) string {
	return c.spec.Name + "/" + run.DateString() + "/" + run.CycleString() + "/"
}
