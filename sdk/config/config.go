// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"time"
)

// Config is the fully parsed and validated configuration handed to the sync
// engine. Loading (YAML file, env overrides, INI credentials) happens in
// viper.go; the engine only ever sees this struct.
type Config struct {
	Datasets []DatasetConfig `mapstructure:"datasets"`
	Storage  StorageConfig   `mapstructure:"storage"`
	Sync     SyncConfig      `mapstructure:"sync"`
	S3       S3Config        `mapstructure:"-"`
}

// DatasetConfig describes one upstream product to mirror. The file template
// follows the open-data naming convention and supports the tokens
// {grid} {subgrid} {level} {date} {run} {step} {step:03d} {var} {var_upper}.
type DatasetConfig struct {
	Name          string   `mapstructure:"name"`
	BaseURL       string   `mapstructure:"base_url"`
	FileTemplate  string   `mapstructure:"file_template"`
	Grid          string   `mapstructure:"grid"`
	Subgrid       string   `mapstructure:"subgrid"`
	Level         string   `mapstructure:"level"`
	Runs          []string `mapstructure:"runs"` // cycle hours, e.g. "00","06","12","18"
	Variables     []string `mapstructure:"variables"`
	ForecastSteps []int    `mapstructure:"forecast_steps"`
}

type StorageConfig struct {
	Type       string `mapstructure:"type"` // "fs" or "s3"
	DataDir    string `mapstructure:"data_dir"`
	Bucket     string `mapstructure:"bucket"`
	Decompress bool   `mapstructure:"decompress"`
	Metadata   bool   `mapstructure:"metadata"` // write .json sidecars next to data files
}

type SyncConfig struct {
	LookBack       int           `mapstructure:"look_back"`   // candidate cycles to consider, newest first
	Concurrency    int           `mapstructure:"concurrency"` // simultaneous transfers
	MaxRetries     int           `mapstructure:"max_retries"` // attempts per file
	RetryDelay     time.Duration `mapstructure:"retry_delay"` // base backoff, doubled per attempt
	FetchTimeout   time.Duration `mapstructure:"fetch_timeout"`
	PublicationLag time.Duration `mapstructure:"publication_lag"` // expected upstream delay after cycle time
}

type S3Config struct {
	AccessKey    string
	SecretKey    string
	SessionToken string
	Region       string
	EndpointURL  string
}

const (
	DefaultLookBack       = 4
	DefaultConcurrency    = 4
	DefaultMaxRetries     = 3
	DefaultRetryDelay     = 5 * time.Second
	DefaultFetchTimeout   = 5 * time.Minute
	DefaultPublicationLag = 2 * time.Hour
)

// ApplyDefaults fills unset sync policy values.
func (c *Config) ApplyDefaults() {
	if c.Sync.LookBack <= 0 {
		c.Sync.LookBack = DefaultLookBack
	}
	if c.Sync.Concurrency <= 0 {
		c.Sync.Concurrency = DefaultConcurrency
	}
	if c.Sync.MaxRetries <= 0 {
		c.Sync.MaxRetries = DefaultMaxRetries
	}
	if c.Sync.RetryDelay <= 0 {
		c.Sync.RetryDelay = DefaultRetryDelay
	}
	if c.Sync.FetchTimeout <= 0 {
		c.Sync.FetchTimeout = DefaultFetchTimeout
	}
	if c.Sync.PublicationLag <= 0 {
		c.Sync.PublicationLag = DefaultPublicationLag
	}
	if c.Storage.Type == "" {
		c.Storage.Type = "fs"
	}
	if c.Storage.Type == "fs" && c.Storage.DataDir == "" {
		c.Storage.DataDir = "./data"
	}
}

// Validate rejects configurations the engine cannot act on. It runs before
// any network activity.
func (c *Config) Validate() error {
	if len(c.Datasets) == 0 {
		return errors.New("no datasets configured")
	}
	for _, ds := range c.Datasets {
		if ds.Name == "" {
			return errors.New("dataset without a name")
		}
		if ds.BaseURL == "" {
			return fmt.Errorf("dataset %s: base_url is required", ds.Name)
		}
		if ds.FileTemplate == "" {
			return fmt.Errorf("dataset %s: file_template is required", ds.Name)
		}
		if len(ds.Runs) == 0 {
			return fmt.Errorf("dataset %s: at least one run cycle is required", ds.Name)
		}
		if len(ds.Variables) == 0 {
			return fmt.Errorf("dataset %s: at least one variable is required", ds.Name)
		}
		if len(ds.ForecastSteps) == 0 {
			return fmt.Errorf("dataset %s: at least one forecast step is required", ds.Name)
		}
	}
	switch c.Storage.Type {
	case "fs":
		if c.Storage.DataDir == "" {
			return errors.New("storage type fs requires data_dir")
		}
	case "s3":
		if c.Storage.Bucket == "" {
			return errors.New("storage type s3 requires a bucket")
		}
	default:
		return fmt.Errorf("unknown storage type: %s", c.Storage.Type)
	}
	return nil
}
