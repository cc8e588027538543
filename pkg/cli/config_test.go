// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-mantavfs.
//
// go-mantavfs is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package cli

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jeremyhahn/go-mantavfs/pkg/adapters"
)

func TestInitConfigDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	v, err := InitConfig("")
	if err != nil {
		t.Fatalf("InitConfig() error = %v", err)
	}
	cfg := GetConfig(v)
	if cfg.Backend != BackendLocal || cfg.BackendPath != "./storage" || cfg.OutputFormat != "text" {
		t.Errorf("defaults = %+v", cfg)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want warn", cfg.LogLevel)
	}
}

func TestInitConfigEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("MANTAVFS_BACKEND", "memory")
	t.Setenv("MANTAVFS_BACKEND_BUCKET", "bkt")
	t.Setenv("MANTA_USER", "alice")

	v, err := InitConfig("")
	if err != nil {
		t.Fatalf("InitConfig() error = %v", err)
	}
	cfg := GetConfig(v)
	if cfg.Backend != BackendMemory || cfg.BackendBucket != "bkt" {
		t.Errorf("env config = %+v", cfg)
	}
	if cfg.User != "alice" {
		t.Errorf("User = %q, want MANTA_USER fallback", cfg.User)
	}
}

func TestInitConfigFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "config.yaml")
	content := "backend: s3\nbackend-bucket: data\nuser: bob\noutput-format: json\n"
	if err := os.WriteFile(file, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	v, err := InitConfig(file)
	if err != nil {
		t.Fatalf("InitConfig() error = %v", err)
	}
	cfg := GetConfig(v)
	if cfg.Backend != BackendS3 || cfg.BackendBucket != "data" || cfg.User != "bob" || cfg.OutputFormat != "json" {
		t.Errorf("file config = %+v", cfg)
	}

	if _, err := InitConfig(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("InitConfig(explicit missing file) should fail")
	}
}

func TestGetStorageSettings(t *testing.T) {
	base := Config{
		BackendPath:   "/data",
		BackendBucket: "bucket",
		BackendRegion: "eu-west-1",
		BackendKey:    "key",
		BackendSecret: "secret",
		BackendURL:    "http://localhost:9000",
		BackendPrefix: "root",
		SigningKey:    "sign",
	}

	tests := []struct {
		backend string
		want    map[string]string
	}{
		{BackendMemory, map[string]string{"signingKey": "sign"}},
		{BackendLocal, map[string]string{"path": "/data", "signingKey": "sign"}},
		{BackendS3, map[string]string{
			"bucket": "bucket", "region": "eu-west-1", "endpoint": "http://localhost:9000",
			"accessKey": "key", "secretKey": "secret", "prefix": "root",
		}},
		{BackendGCS, map[string]string{
			"bucket": "bucket", "endpoint": "http://localhost:9000", "credentialsFile": "key", "prefix": "root",
		}},
		{BackendAzure, map[string]string{
			"containerName": "bucket", "accountName": "key", "accountKey": "secret",
			"endpoint": "http://localhost:9000", "prefix": "root",
		}},
		{BackendRemote, map[string]string{"url": "http://localhost:9000"}},
	}
	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			cfg := base
			cfg.Backend = tt.backend
			got := cfg.GetStorageSettings()
			if len(got) != len(tt.want) {
				t.Fatalf("settings = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("settings[%s] = %q, want %q", k, got[k], v)
				}
			}
		})
	}
}

func TestSessionAndLogConfig(t *testing.T) {
	cfg := &Config{Backend: BackendMemory, User: "user/sub", Home: "/other", URL: "http://gw", LogLevel: "debug", LogFile: "/tmp/x.log"}

	sc := cfg.SessionConfig()
	if sc.User != "user/sub" || sc.Home() != "/other" || sc.BackendName() != BackendMemory || sc.URL != "http://gw" {
		t.Errorf("SessionConfig() = %+v", sc)
	}

	lc := cfg.LogConfig()
	if lc.Level != adapters.DebugLevel || lc.File != "/tmp/x.log" || lc.MaxSizeMB == 0 {
		t.Errorf("LogConfig() = %+v", lc)
	}
	cfg.LogLevel = "loud"
	if cfg.LogConfig().Level != adapters.WarnLevel {
		t.Error("unknown log level should fall back to warn")
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{"memory", Config{Backend: BackendMemory, OutputFormat: "text"}, nil},
		{"local", Config{Backend: BackendLocal, BackendPath: "/tmp", OutputFormat: "json"}, nil},
		{"local without path", Config{Backend: BackendLocal, OutputFormat: "text"}, ErrBackendPathRequired},
		{"s3 without bucket", Config{Backend: BackendS3, OutputFormat: "text"}, ErrBackendBucketRequired},
		{"gcs", Config{Backend: BackendGCS, BackendBucket: "b", OutputFormat: "table"}, nil},
		{"minio without url", Config{Backend: BackendMinIO, BackendBucket: "b", OutputFormat: "text"}, ErrBackendURLRequired},
		{"minio without keys", Config{Backend: BackendMinIO, BackendBucket: "b", BackendURL: "http://m", OutputFormat: "text"}, ErrBackendCredentialsRequired},
		{"azure without keys", Config{Backend: BackendAzure, BackendBucket: "c", OutputFormat: "text"}, ErrBackendCredentialsRequired},
		{"remote without url", Config{Backend: BackendRemote, OutputFormat: "text"}, ErrBackendURLRequired},
		{"remote", Config{Backend: BackendRemote, BackendURL: "http://gw:8080", OutputFormat: "text"}, nil},
		{"unknown backend", Config{Backend: "ftp", OutputFormat: "text"}, ErrUnsupportedBackend},
		{"bad output", Config{Backend: BackendMemory, OutputFormat: "xml"}, ErrUnsupportedOutputFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			err := ValidateConfig(&cfg)
			if tt.wantErr == nil && err != nil {
				t.Errorf("ValidateConfig() error = %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateConfig() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateConfigExpandsHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	cfg := &Config{Backend: BackendLocal, BackendPath: "~/store", OutputFormat: "text"}
	if err := ValidateConfig(cfg); err != nil {
		t.Fatalf("ValidateConfig() error = %v", err)
	}
	if cfg.BackendPath != filepath.Join(home, "store") {
		t.Errorf("BackendPath = %q", cfg.BackendPath)
	}
}

func TestDisplayConfig(t *testing.T) {
	cfg := &Config{Backend: BackendS3, BackendBucket: "b", BackendSecret: "supersecret", OutputFormat: "text", LogLevel: "warn"}

	text := DisplayConfig(cfg, "text")
	if !strings.Contains(text, "Backend: s3") || !strings.Contains(text, "Backend Secret: supe****") {
		t.Errorf("text config = %q", text)
	}
	if strings.Contains(text, "supersecret") {
		t.Error("secret leaked in text output")
	}
	if strings.Contains(text, "Backend Path") {
		t.Error("empty settings should be omitted")
	}

	table := DisplayConfig(cfg, "table")
	if !strings.Contains(table, "┌") || !strings.Contains(table, "Backend Bucket") {
		t.Errorf("table config = %q", table)
	}

	js := DisplayConfig(cfg, "json")
	if !strings.Contains(js, `"backend": "s3"`) || !strings.Contains(js, `"backend_secret": "supe****"`) {
		t.Errorf("json config = %q", js)
	}
}

func TestMaskSecret(t *testing.T) {
	tests := map[string]string{"": "", "abc": "****", "abcdef": "abcd****"}
	for in, want := range tests {
		if got := maskSecret(in); got != want {
			t.Errorf("maskSecret(%q) = %q, want %q", in, got, want)
		}
	}
}
