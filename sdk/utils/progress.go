// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package utils

import (
	"fmt"
	"os"
	"sync"
	"time"
)

/* ------------ tiny UI helper for single-line progress ------------ */

// Progress is a byte counter shared by concurrent transfers, rendered as a
// single line on stderr. Safe for use from multiple goroutines.
type Progress struct {
	mu        sync.Mutex
	doneBytes int64
	doneFiles int
	spinIdx   int
	lastTick  time.Time
	enabled   bool
}

var spinner = []rune{'|', '/', '-', '\\'}

func NewProgress(enabled bool) *Progress {
	return &Progress{enabled: enabled}
}

func (p *Progress) Add(delta int64) {
	if !p.enabled {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.doneBytes += delta
	p.doneFiles++
	p.render(false)
}

func human(n int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)
	switch {
	case n >= GB:
		return fmt.Sprintf("%.2f GB", float64(n)/float64(GB))
	case n >= MB:
		return fmt.Sprintf("%.2f MB", float64(n)/float64(MB))
	case n >= KB:
		return fmt.Sprintf("%.2f KB", float64(n)/float64(KB))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

func (p *Progress) render(force bool) {
	// throttling: update ~10 times per second to avoid spamming
	if !force && time.Since(p.lastTick) < 100*time.Millisecond {
		return
	}
	p.lastTick = time.Now()

	ch := spinner[p.spinIdx%len(spinner)]
	p.spinIdx++
	fmt.Fprintf(os.Stderr, "\rProgress: [%c] %d files, %s transferred   ",
		ch, p.doneFiles, human(p.doneBytes))
}

func (p *Progress) Done() {
	if !p.enabled {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.render(true)
	fmt.Fprintln(os.Stderr)
}
