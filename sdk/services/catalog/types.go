// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"time"
)

// RunIdentifier names one model run: issue date plus cycle hour. Values are
// immutable once constructed and ordered by (date, cycle) ascending.
type RunIdentifier struct {
	Date  time.Time // midnight UTC of the issue date
	Cycle int       // cycle hour, e.g. 0, 6, 12, 18
}

// When returns the run's issue time.
func (r RunIdentifier) When() time.Time {
	return r.Date.Add(time.Duration(r.Cycle) * time.Hour)
}

// DateString renders the issue date as YYYYMMDD.
func (r RunIdentifier) DateString() string {
	return r.Date.Format("20060102")
}

// CycleString renders the cycle hour zero-padded, e.g. "00".
func (r RunIdentifier) CycleString() string {
	return r.When().Format("15")
}

func (r RunIdentifier) String() string {
	return r.DateString() + "/" + r.CycleString()
}

// Before orders runs by issue time.
func (r RunIdentifier) Before(other RunIdentifier) bool {
	return r.When().Before(other.When())
}

// RemoteFileDescriptor is one concrete file of a run: its remote URL and the
// date-partitioned destination key it must be committed under. The mapping
// is a pure function of (dataset, run, variable, step).
type RemoteFileDescriptor struct {
	URL      string
	Key      string // <dataset>/<date>/<cycle>/<filename>
	Run      RunIdentifier
	Variable string
	Step     int
}

// RunFiles groups the expanded descriptors of a single candidate run.
type RunFiles struct {
	Run   RunIdentifier
	Files []RemoteFileDescriptor
}
