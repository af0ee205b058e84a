// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/ini.v1"
)

// envSettings holds all env-driven keys. Tags:
// - vkey: Viper key
// - env: canonical env names, comma-separated, first set value wins
type envSettings struct {
	StorageType    string `vkey:"storage.type"     env:"STORAGE_TYPE"`
	DataDir        string `vkey:"storage.data_dir" env:"NWP_DATA_DIR"`
	Bucket         string `vkey:"storage.bucket"   env:"AWS_BUCKET,S3_BUCKET"`
	AwsAccessKey   string `vkey:"s3.access_key"    env:"AWS_ACCESS_KEY_ID,S3_ACCESS_KEY_ID"`
	AwsSecretKey   string `vkey:"s3.secret_key"    env:"AWS_SECRET_ACCESS_KEY,S3_SECRET_ACCESS_KEY"`
	AwsSession     string `vkey:"s3.session_token" env:"AWS_SESSION_TOKEN,S3_SESSION_TOKEN"`
	AwsRegion      string `vkey:"s3.region"        env:"AWS_REGION,S3_REGION"`
	AwsEndpointURL string `vkey:"s3.endpoint_url"  env:"AWS_ENDPOINT_URL,S3_ENDPOINT_URL"`
}

// CredentialsFile is the optional INI fallback for S3 credentials, in the
// AWS shared-credentials layout ([default] section).
const CredentialsFile = ".nwpmirror-credentials"

// Bind env for all fields of envSettings using struct tags. The first env
// name that is set wins, matching the AWS_* over S3_* precedence.
func bindEnvFromStruct(v *viper.Viper) {
	rt := reflect.TypeOf(envSettings{})
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		key := f.Tag.Get("vkey")
		if key == "" {
			continue
		}
		names := strings.Split(f.Tag.Get("env"), ",")
		args := append([]string{key}, names...)
		_ = v.BindEnv(args...)
	}
}

// Load reads the YAML config file, applies env overrides and the INI
// credentials fallback, and returns a validated Config. CONFIG_PATH takes
// priority over the path argument.
func Load(path string) (*Config, error) {
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		path = envPath
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	bindEnvFromStruct(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	// Unmarshal does not consult env-only bindings; re-read the overridable
	// keys through Get so env wins over the file.
	if s := v.GetString("storage.type"); s != "" {
		cfg.Storage.Type = s
	}
	if s := v.GetString("storage.data_dir"); s != "" {
		cfg.Storage.DataDir = s
	}
	if s := v.GetString("storage.bucket"); s != "" {
		cfg.Storage.Bucket = s
	}

	cfg.S3 = S3Config{
		AccessKey:    v.GetString("s3.access_key"),
		SecretKey:    v.GetString("s3.secret_key"),
		SessionToken: v.GetString("s3.session_token"),
		Region:       v.GetString("s3.region"),
		EndpointURL:  v.GetString("s3.endpoint_url"),
	}
	if cfg.S3.AccessKey == "" || cfg.S3.SecretKey == "" {
		loadIniCredentials(&cfg.S3)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadIniCredentials fills missing S3 credentials from the INI file in the
// user's home directory, if present.
func loadIniCredentials(s3cfg *S3Config) {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	cfg, err := ini.Load(filepath.Join(home, CredentialsFile))
	if err != nil {
		return
	}
	sec := cfg.Section("default")
	if s3cfg.AccessKey == "" {
		s3cfg.AccessKey = sec.Key("aws_access_key_id").String()
	}
	if s3cfg.SecretKey == "" {
		s3cfg.SecretKey = sec.Key("aws_secret_access_key").String()
	}
	if s3cfg.SessionToken == "" {
		s3cfg.SessionToken = sec.Key("aws_session_token").String()
	}
	if s3cfg.Region == "" {
		s3cfg.Region = sec.Key("region").String()
	}
	if s3cfg.EndpointURL == "" {
		s3cfg.EndpointURL = sec.Key("endpoint_url").String()
	}
}
