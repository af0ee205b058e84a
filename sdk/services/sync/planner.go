// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package sync

import (
	"context"
	"fmt"

	"github.com/scc-digitalhub/nwp-mirror-sdk/sdk/services/catalog"
	"github.com/scc-digitalhub/nwp-mirror-sdk/sdk/storage"
)

// RunPlan is the pending work for one candidate run: the descriptors whose
// destination keys are absent, plus how many were already committed.
type RunPlan struct {
	Run     catalog.RunIdentifier
	Pending []catalog.RemoteFileDescriptor
	Present int
}

// Plan diffs candidate runs against the destination. Sync state is derived
// entirely from what exists at the backend; nothing else is consulted.
//
// candidates must be ordered most recent first. In latest mode the walk
// stops after the first run with at least one file already present: older
// runs were either synced by a previous invocation or deliberately skipped,
// so only the newest unsynced run(s) remain in the plan. Present files are
// not re-verified.
func Plan(ctx context.Context, cat *catalog.Catalog, candidates []catalog.RunFiles, backend storage.Backend, latestMode bool) ([]RunPlan, error) {
	var plans []RunPlan
	for _, rf := range candidates {
		existing, err := backend.List(ctx, cat.Prefix(rf.Run))
		if err != nil {
			return nil, fmt.Errorf("failed to plan run %s: %w", rf.Run, err)
		}
		present := make(map[string]bool, len(existing))
		for _, key := range existing {
			present[key] = true
		}

		plan := RunPlan{Run: rf.Run}
		for _, fd := range rf.Files {
			if present[fd.Key] {
				plan.Present++
			} else {
				plan.Pending = append(plan.Pending, fd)
			}
		}
		plans = append(plans, plan)

		if latestMode && plan.Present > 0 {
			break
		}
	}
	return plans, nil
}
