// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package sync

import (
	"sort"
)

type Status string

const (
	// StatusTransferred: fetched and atomically committed this invocation.
	StatusTransferred Status = "transferred"
	// StatusFailed: retries exhausted or the invocation deadline hit.
	StatusFailed Status = "failed"
	// StatusSkipped: upstream 404, the file is not published (yet).
	// Not a failure; it feeds the run fallback instead.
	StatusSkipped Status = "skipped"
)

// TransferResult is the outcome of one attempted descriptor.
type TransferResult struct {
	Key    string `json:"key"`
	URL    string `json:"url"`
	Status Status `json:"status"`
	Bytes  int64  `json:"bytes,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Report aggregates one invocation. Results are sorted by destination key so
// output ordering is reproducible regardless of transfer interleaving.
type Report struct {
	Transferred int              `json:"transferred"`
	Present     int              `json:"already_present"`
	Failed      int              `json:"failed"`
	Skipped     int              `json:"skipped"`
	Bytes       int64            `json:"bytes"`
	Results     []TransferResult `json:"results,omitempty"`
}

func (r *Report) add(results []TransferResult) {
	for _, res := range results {
		switch res.Status {
		case StatusTransferred:
			r.Transferred++
			r.Bytes += res.Bytes
		case StatusFailed:
			r.Failed++
		case StatusSkipped:
			r.Skipped++
		}
	}
	r.Results = append(r.Results, results...)
	sort.Slice(r.Results, func(i, j int) bool { return r.Results[i].Key < r.Results[j].Key })
}

// FailedKeys lists the destination keys that ended failed, sorted.
func (r *Report) FailedKeys() []string {
	var keys []string
	for _, res := range r.Results {
		if res.Status == StatusFailed {
			keys = append(keys, res.Key)
		}
	}
	return keys
}

// OK reports full success: nothing failed. Already-present and skipped
// items do not count against it.
func (r *Report) OK() bool {
	return r.Failed == 0
}
