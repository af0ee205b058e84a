// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

// Package logging wraps go-log so every package gets a named logger with a
// consistent default level. GOLOG_LOG_LEVEL always wins when set.
package logging

import (
	"os"

	logging "github.com/ipfs/go-log/v2"
)

type Logger = logging.ZapEventLogger

var (
	New         = logging.Logger
	SetLogLevel = logging.SetLogLevel
)

func Setup() {
	if _, set := os.LookupEnv("GOLOG_LOG_LEVEL"); !set {
		_ = logging.SetLogLevel("*", "INFO")
	}
}
