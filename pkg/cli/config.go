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
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jeremyhahn/go-mantavfs/pkg/adapters"
	"github.com/jeremyhahn/go-mantavfs/pkg/factory"
	"github.com/jeremyhahn/go-mantavfs/pkg/vfs"
	"github.com/spf13/viper"
)

// Backend names accepted by --backend.
const (
	BackendMemory = "memory"
	BackendLocal  = "local"
	BackendS3     = "s3"
	BackendMinIO  = "minio"
	BackendGCS    = "gcs"
	BackendAzure  = "azure"
	BackendRemote = "remote"
)

// Config holds the CLI configuration settings.
type Config struct {
	Backend       string
	BackendPath   string
	BackendBucket string
	BackendRegion string
	BackendKey    string // access key, azure account name or gcs credentials file
	BackendSecret string
	BackendURL    string // custom endpoint
	BackendPrefix string
	SigningKey    string // memory and local backends

	User string
	URL  string // public base URL handed to the backend
	Home string

	OutputFormat string

	LogLevel  string
	LogFormat string
	LogFile   string
}

// InitConfig initializes the configuration using Viper.
// Configuration priority: flags > env vars > config file > defaults.
func InitConfig(cfgFile string) (*viper.Viper, error) {
	v := viper.New()

	v.SetDefault("backend", BackendLocal)
	v.SetDefault("backend-path", "./storage")
	v.SetDefault("output-format", string(FormatText))
	v.SetDefault("log-level", "warn")
	v.SetDefault("log-format", "text")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigName(".mantavfs")
		v.SetConfigType("yaml")
	}

	// MANTAVFS_BACKEND_PATH binds to backend-path
	v.SetEnvPrefix("MANTAVFS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	// Manta SDK variables are honoured as fallbacks
	_ = v.BindEnv("user", "MANTAVFS_USER", "MANTA_USER")
	_ = v.BindEnv("url", "MANTAVFS_URL", "MANTA_URL")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	return v, nil
}

// GetConfig extracts the configuration from Viper into a Config struct.
func GetConfig(v *viper.Viper) *Config {
	return &Config{
		Backend:       v.GetString("backend"),
		BackendPath:   v.GetString("backend-path"),
		BackendBucket: v.GetString("backend-bucket"),
		BackendRegion: v.GetString("backend-region"),
		BackendKey:    v.GetString("backend-key"),
		BackendSecret: v.GetString("backend-secret"),
		BackendURL:    v.GetString("backend-url"),
		BackendPrefix: v.GetString("backend-prefix"),
		SigningKey:    v.GetString("signing-key"),
		User:          v.GetString("user"),
		URL:           v.GetString("url"),
		Home:          v.GetString("home"),
		OutputFormat:  v.GetString("output-format"),
		LogLevel:      v.GetString("log-level"),
		LogFormat:     v.GetString("log-format"),
		LogFile:       v.GetString("log-file"),
	}
}

// GetStorageSettings converts Config to the settings map of the selected
// backend. Each backend names its credentials differently.
func (c *Config) GetStorageSettings() map[string]string {
	settings := make(map[string]string)
	set := func(key, value string) {
		if value != "" {
			settings[key] = value
		}
	}

	switch c.Backend {
	case BackendMemory:
		set("signingKey", c.SigningKey)
	case BackendLocal:
		set("path", c.BackendPath)
		set("signingKey", c.SigningKey)
	case BackendS3, BackendMinIO:
		set("bucket", c.BackendBucket)
		set("region", c.BackendRegion)
		set("endpoint", c.BackendURL)
		set("accessKey", c.BackendKey)
		set("secretKey", c.BackendSecret)
		set("prefix", c.BackendPrefix)
	case BackendGCS:
		set("bucket", c.BackendBucket)
		set("endpoint", c.BackendURL)
		set("credentialsFile", c.BackendKey)
		set("prefix", c.BackendPrefix)
	case BackendAzure:
		set("containerName", c.BackendBucket)
		set("accountName", c.BackendKey)
		set("accountKey", c.BackendSecret)
		set("endpoint", c.BackendURL)
		set("prefix", c.BackendPrefix)
	case BackendRemote:
		set("url", c.BackendURL)
	}

	return settings
}

// SessionConfig builds the filesystem session configuration.
func (c *Config) SessionConfig() *vfs.Config {
	return &vfs.Config{
		URL:             c.URL,
		User:            c.User,
		HomeDirectory:   c.Home,
		Backend:         c.Backend,
		BackendSettings: c.GetStorageSettings(),
	}
}

// LogConfig builds the logger configuration. An unknown level falls back
// to warn.
func (c *Config) LogConfig() adapters.LogConfig {
	level, err := adapters.ParseLogLevel(c.LogLevel)
	if err != nil {
		level = adapters.WarnLevel
	}
	return adapters.LogConfig{
		Level:      level,
		Format:     c.LogFormat,
		File:       c.LogFile,
		MaxSizeMB:  100,
		MaxBackups: 3,
		MaxAgeDays: 28,
		Compress:   true,
	}
}

// DisplayConfig formats and displays the current configuration.
func DisplayConfig(cfg *Config, format string) string {
	switch format {
	case string(FormatJSON):
		return formatConfigJSON(cfg)
	case string(FormatTable):
		return formatConfigTable(cfg)
	default:
		return formatConfigText(cfg)
	}
}

type configRow struct {
	label string
	key   string
	value string
}

// configRows lists the settings worth showing. Secrets are masked and
// empty optional values are skipped.
func configRows(cfg *Config) []configRow {
	rows := []configRow{{"Backend", "backend", cfg.Backend}}
	optional := []configRow{
		{"Backend Path", "backend_path", cfg.BackendPath},
		{"Backend Bucket", "backend_bucket", cfg.BackendBucket},
		{"Backend Region", "backend_region", cfg.BackendRegion},
		{"Backend URL", "backend_url", cfg.BackendURL},
		{"Backend Prefix", "backend_prefix", cfg.BackendPrefix},
		{"Backend Key", "backend_key", maskSecret(cfg.BackendKey)},
		{"Backend Secret", "backend_secret", maskSecret(cfg.BackendSecret)},
		{"Signing Key", "signing_key", maskSecret(cfg.SigningKey)},
		{"User", "user", cfg.User},
		{"URL", "url", cfg.URL},
		{"Home", "home", cfg.Home},
		{"Log File", "log_file", cfg.LogFile},
	}
	for _, row := range optional {
		if row.value != "" {
			rows = append(rows, row)
		}
	}
	rows = append(rows,
		configRow{"Log Level", "log_level", cfg.LogLevel},
		configRow{"Output Format", "output_format", cfg.OutputFormat})
	return rows
}

func formatConfigText(cfg *Config) string {
	var result string
	for _, row := range configRows(cfg) {
		result += fmt.Sprintf("%s: %s\n", row.label, row.value)
	}
	return result
}

func formatConfigTable(cfg *Config) string {
	var result string
	result += "┌──────────────────┬────────────────────────────────────────┐\n"
	result += "│ Setting          │ Value                                  │\n"
	result += "├──────────────────┼────────────────────────────────────────┤\n"
	for _, row := range configRows(cfg) {
		result += fmt.Sprintf("│ %-16s │ %-38s │\n", row.label, truncate(row.value, 38))
	}
	result += "└──────────────────┴────────────────────────────────────────┘\n"
	return result
}

func formatConfigJSON(cfg *Config) string {
	out := make(map[string]string)
	for _, row := range configRows(cfg) {
		out[row.key] = row.value
	}
	return formatJSON(out)
}

// maskSecret masks sensitive information, showing only first 4 characters.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) < 5 {
		return "****"
	}
	return s[:4] + "****"
}

// truncate truncates a string to maxLen characters.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// ValidateConfig validates the configuration for the given backend.
func ValidateConfig(cfg *Config) error {
	switch cfg.Backend {
	case BackendMemory:
	case BackendLocal:
		if cfg.BackendPath == "" {
			return ErrBackendPathRequired
		}
		if strings.HasPrefix(cfg.BackendPath, "~") {
			home, err := os.UserHomeDir()
			if err != nil {
				return err
			}
			cfg.BackendPath = filepath.Join(home, cfg.BackendPath[1:])
		}
	case BackendS3, BackendGCS:
		if cfg.BackendBucket == "" {
			return ErrBackendBucketRequired
		}
	case BackendMinIO:
		if cfg.BackendBucket == "" {
			return ErrBackendBucketRequired
		}
		if cfg.BackendURL == "" {
			return ErrBackendURLRequired
		}
		if cfg.BackendKey == "" || cfg.BackendSecret == "" {
			return ErrBackendCredentialsRequired
		}
	case BackendAzure:
		if cfg.BackendBucket == "" {
			return ErrBackendBucketRequired
		}
		if cfg.BackendKey == "" || cfg.BackendSecret == "" {
			return ErrBackendCredentialsRequired
		}
	case BackendRemote:
		if cfg.BackendURL == "" {
			return ErrBackendURLRequired
		}
	default:
		return fmt.Errorf("%w: %q (registered: %s)", ErrUnsupportedBackend,
			cfg.Backend, strings.Join(factory.Backends(), ", "))
	}

	switch OutputFormat(cfg.OutputFormat) {
	case FormatText, FormatJSON, FormatTable:
	default:
		return ErrUnsupportedOutputFormat
	}

	return nil
}
