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

package vfs

import (
	"fmt"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Option bag keys. Backend settings are stored under OptBackendPrefix.
const (
	OptURL                        = "manta.url"
	OptUser                       = "manta.user"
	OptKeyID                      = "manta.key_id"
	OptKeyPath                    = "manta.key_path"
	OptKeyContent                 = "manta.key_content"
	OptPassword                   = "manta.password"
	OptTimeout                    = "manta.timeout"
	OptRetries                    = "manta.retries"
	OptMaxConnections             = "manta.max_connections"
	OptHTTPTransport              = "manta.http_transport"
	OptHTTPSProtocols             = "manta.https_protocols"
	OptHTTPSCiphers               = "manta.https_ciphers"
	OptNoAuth                     = "manta.no_auth"
	OptDisableNativeSignatures    = "manta.disable_native_sigs"
	OptSignatureCacheTTL          = "manta.signature_cache_ttl"
	OptHTTPBufferSize             = "manta.http_buffer_size"
	OptClientEncryption           = "manta.client_encryption"
	OptEncryptionKeyID            = "manta.encryption_key_id"
	OptEncryptionAlgorithm        = "manta.encryption_algorithm"
	OptEncryptionKeyPath          = "manta.encryption_key_path"
	OptEncryptionKeyContent       = "manta.encryption_key_content"
	OptPermitUnencryptedDownloads = "manta.permit_unencrypted_downloads"
	OptHomeDirectory              = "manta.home_directory"
	OptBackend                    = "manta.backend"
	OptBackendPrefix              = "backend."
)

// Defaults applied when deriving a configuration from the environment.
const (
	DefaultURL                 = "https://us-east.manta.joyent.com"
	DefaultTimeout             = 20 * time.Second
	DefaultRetries             = 3
	DefaultMaxConnections      = 24
	DefaultHTTPBufferSize      = 4096
	DefaultHTTPSProtocols      = "TLSv1.2"
	DefaultEncryptionAlgorithm = "AES256/CTR/NoPadding"
	DefaultBackend             = "memory"
)

// Config is the connection configuration of a session. Zero values mean
// "not set"; Retries is a pointer because zero retries is meaningful.
type Config struct {
	URL        string `mapstructure:"url"`
	User       string `mapstructure:"user"`
	KeyID      string `mapstructure:"key_id"`
	KeyPath    string `mapstructure:"key_path"`
	KeyContent string `mapstructure:"key_content"`
	Password   string `mapstructure:"password"`

	Timeout        time.Duration `mapstructure:"timeout"`
	Retries        *int          `mapstructure:"retries"`
	MaxConnections int           `mapstructure:"max_connections"`

	HTTPTransport  string `mapstructure:"http_transport"`
	HTTPSProtocols string `mapstructure:"https_protocols"`
	HTTPSCiphers   string `mapstructure:"https_ciphers"`
	HTTPBufferSize int    `mapstructure:"http_buffer_size"`

	// NoAuth and the key settings are carried through the option bag only.
	// Backends authenticate with their own BackendSettings.
	NoAuth                  bool          `mapstructure:"no_auth"`
	DisableNativeSignatures bool          `mapstructure:"disable_native_sigs"`
	SignatureCacheTTL       time.Duration `mapstructure:"signature_cache_ttl"`

	// ClientEncryption must stay false; Validate rejects it.
	ClientEncryption           bool   `mapstructure:"client_encryption"`
	EncryptionKeyID            string `mapstructure:"encryption_key_id"`
	EncryptionAlgorithm        string `mapstructure:"encryption_algorithm"`
	EncryptionKeyPath          string `mapstructure:"encryption_key_path"`
	EncryptionKeyContent       string `mapstructure:"encryption_key_content"`
	PermitUnencryptedDownloads bool   `mapstructure:"permit_unencrypted_downloads"`

	// HomeDirectory overrides the home derived from User.
	HomeDirectory string `mapstructure:"home_directory"`

	// Backend selects the store client registered in pkg/factory.
	Backend         string            `mapstructure:"backend"`
	BackendSettings map[string]string `mapstructure:"backend_settings"`
}

// IntPtr returns a pointer to v, for Config.Retries.
func IntPtr(v int) *int {
	return &v
}

// Validate checks the mutually exclusive key options and numeric ranges.
func (c *Config) Validate() error {
	if c.KeyPath != "" && c.KeyContent != "" {
		return fmt.Errorf("%w: a private key path and private key content can't both be set", ErrConfiguration)
	}
	if c.EncryptionKeyPath != "" && c.EncryptionKeyContent != "" {
		return fmt.Errorf("%w: an encryption key path and encryption key content can't both be set", ErrConfiguration)
	}
	if c.ClientEncryption {
		return fmt.Errorf("%w: client-side encryption is not supported", ErrConfiguration)
	}
	if c.Retries != nil && *c.Retries < 0 {
		return fmt.Errorf("%w: retries must be zero or greater", ErrConfiguration)
	}
	if c.MaxConnections < 0 {
		return fmt.Errorf("%w: maximum number of connections must be 1 or greater", ErrConfiguration)
	}
	if c.Timeout < 0 || c.SignatureCacheTTL < 0 || c.HTTPBufferSize < 0 {
		return fmt.Errorf("%w: timeouts and buffer sizes can't be negative", ErrConfiguration)
	}
	if c.URL != "" {
		u, err := url.Parse(c.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%w: invalid url %q", ErrConfiguration, c.URL)
		}
	}
	return nil
}

// Home returns the home directory: HomeDirectory when set, otherwise the
// account part of User under the root. A sub-user "account/sub" shares the
// account's home.
func (c *Config) Home() string {
	if c.HomeDirectory != "" {
		return Normalize(c.HomeDirectory)
	}
	account, _, _ := strings.Cut(strings.Trim(c.User, Separator), Separator)
	return Normalize(Separator + account)
}

// BackendName returns Backend or DefaultBackend.
func (c *Config) BackendName() string {
	if c.Backend == "" {
		return DefaultBackend
	}
	return c.Backend
}

// ClientSettings returns the settings passed to the backend factory. The
// store URL becomes the client's base URL unless the settings name one, and
// the transport settings are forwarded under the remote client's keys.
func (c *Config) ClientSettings() map[string]string {
	settings := make(map[string]string, len(c.BackendSettings)+6)
	for k, v := range c.BackendSettings {
		settings[k] = v
	}
	if _, ok := settings["baseURL"]; !ok && c.URL != "" {
		settings["baseURL"] = c.URL
	}
	if _, ok := settings["retries"]; !ok && c.Retries != nil {
		settings["retries"] = strconv.Itoa(*c.Retries)
	}
	if _, ok := settings["timeout"]; !ok && c.Timeout > 0 {
		settings["timeout"] = c.Timeout.String()
	}
	if _, ok := settings["maxConnections"]; !ok && c.MaxConnections > 0 {
		settings["maxConnections"] = strconv.Itoa(c.MaxConnections)
	}
	if _, ok := settings["bufferSize"]; !ok && c.HTTPBufferSize > 0 {
		settings["bufferSize"] = strconv.Itoa(c.HTTPBufferSize)
	}
	if _, ok := settings["tlsCiphers"]; !ok && c.HTTPSCiphers != "" {
		settings["tlsCiphers"] = c.HTTPSCiphers
	}
	return settings
}

// Options is the generic key/value option bag a configuration is imported
// into.
type Options map[string]string

// Clone returns a copy of the bag.
func (o Options) Clone() Options {
	out := make(Options, len(o))
	for k, v := range o {
		out[k] = v
	}
	return out
}

// Keys returns the keys in sorted order.
func (o Options) Keys() []string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ImportConfig copies every set field of cfg into a new option bag. Unset
// fields are skipped, never defaulted.
func ImportConfig(cfg *Config) (Options, error) {
	if cfg == nil {
		return Options{}, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := Options{}
	setString := func(key, value string) {
		if value != "" {
			opts[key] = value
		}
	}
	setBool := func(key string, value bool) {
		if value {
			opts[key] = "true"
		}
	}
	setDuration := func(key string, value time.Duration) {
		if value > 0 {
			opts[key] = value.String()
		}
	}
	setInt := func(key string, value int) {
		if value > 0 {
			opts[key] = strconv.Itoa(value)
		}
	}

	setString(OptURL, cfg.URL)
	setString(OptUser, cfg.User)
	setString(OptKeyID, cfg.KeyID)
	setString(OptKeyPath, cfg.KeyPath)
	setString(OptKeyContent, cfg.KeyContent)
	setString(OptPassword, cfg.Password)
	setDuration(OptTimeout, cfg.Timeout)
	if cfg.Retries != nil {
		opts[OptRetries] = strconv.Itoa(*cfg.Retries)
	}
	setInt(OptMaxConnections, cfg.MaxConnections)
	setString(OptHTTPTransport, cfg.HTTPTransport)
	setString(OptHTTPSProtocols, cfg.HTTPSProtocols)
	setString(OptHTTPSCiphers, cfg.HTTPSCiphers)
	setInt(OptHTTPBufferSize, cfg.HTTPBufferSize)
	setBool(OptNoAuth, cfg.NoAuth)
	setBool(OptDisableNativeSignatures, cfg.DisableNativeSignatures)
	setDuration(OptSignatureCacheTTL, cfg.SignatureCacheTTL)
	setBool(OptClientEncryption, cfg.ClientEncryption)
	setString(OptEncryptionKeyID, cfg.EncryptionKeyID)
	setString(OptEncryptionAlgorithm, cfg.EncryptionAlgorithm)
	setString(OptEncryptionKeyPath, cfg.EncryptionKeyPath)
	setString(OptEncryptionKeyContent, cfg.EncryptionKeyContent)
	setBool(OptPermitUnencryptedDownloads, cfg.PermitUnencryptedDownloads)
	setString(OptHomeDirectory, cfg.HomeDirectory)
	setString(OptBackend, cfg.Backend)
	for k, v := range cfg.BackendSettings {
		opts[OptBackendPrefix+k] = v
	}
	return opts, nil
}

// ExportConfig rebuilds a Config from an option bag.
func ExportConfig(opts Options) (*Config, error) {
	cfg := &Config{
		URL:                  opts[OptURL],
		User:                 opts[OptUser],
		KeyID:                opts[OptKeyID],
		KeyPath:              opts[OptKeyPath],
		KeyContent:           opts[OptKeyContent],
		Password:             opts[OptPassword],
		HTTPTransport:        opts[OptHTTPTransport],
		HTTPSProtocols:       opts[OptHTTPSProtocols],
		HTTPSCiphers:         opts[OptHTTPSCiphers],
		EncryptionKeyID:      opts[OptEncryptionKeyID],
		EncryptionAlgorithm:  opts[OptEncryptionAlgorithm],
		EncryptionKeyPath:    opts[OptEncryptionKeyPath],
		EncryptionKeyContent: opts[OptEncryptionKeyContent],
		HomeDirectory:        opts[OptHomeDirectory],
		Backend:              opts[OptBackend],
	}

	var err error
	if cfg.Timeout, err = optDuration(opts, OptTimeout); err != nil {
		return nil, err
	}
	if cfg.SignatureCacheTTL, err = optDuration(opts, OptSignatureCacheTTL); err != nil {
		return nil, err
	}
	if cfg.MaxConnections, err = optInt(opts, OptMaxConnections); err != nil {
		return nil, err
	}
	if cfg.HTTPBufferSize, err = optInt(opts, OptHTTPBufferSize); err != nil {
		return nil, err
	}
	if _, ok := opts[OptRetries]; ok {
		retries, err := optInt(opts, OptRetries)
		if err != nil {
			return nil, err
		}
		cfg.Retries = &retries
	}
	for key, dst := range map[string]*bool{
		OptNoAuth:                     &cfg.NoAuth,
		OptDisableNativeSignatures:    &cfg.DisableNativeSignatures,
		OptClientEncryption:           &cfg.ClientEncryption,
		OptPermitUnencryptedDownloads: &cfg.PermitUnencryptedDownloads,
	} {
		if *dst, err = optBool(opts, key); err != nil {
			return nil, err
		}
	}

	for k, v := range opts {
		if strings.HasPrefix(k, OptBackendPrefix) {
			if cfg.BackendSettings == nil {
				cfg.BackendSettings = map[string]string{}
			}
			cfg.BackendSettings[strings.TrimPrefix(k, OptBackendPrefix)] = v
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func optInt(opts Options, key string) (int, error) {
	v, ok := opts[key]
	if !ok || v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrConfiguration, key, err)
	}
	return n, nil
}

func optBool(opts Options, key string) (bool, error) {
	v, ok := opts[key]
	if !ok || v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%w: %s: %v", ErrConfiguration, key, err)
	}
	return b, nil
}

func optDuration(opts Options, key string) (time.Duration, error) {
	v, ok := opts[key]
	if !ok || v == "" {
		return 0, nil
	}
	d, err := ParseMillisOrDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrConfiguration, key, err)
	}
	return d, nil
}

// ParseMillisOrDuration parses "20s" style durations and bare integers,
// which are read as milliseconds.
func ParseMillisOrDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	return time.ParseDuration(s)
}

// ConfigFromEnv derives a configuration from MANTA_* environment variables.
func ConfigFromEnv() (*Config, error) {
	v := viper.New()
	BindEnv(v)
	cfg, err := ConfigFromViper(v)
	if err != nil {
		return nil, err
	}
	for k, val := range backendSettingsFromEnv(os.Environ()) {
		if cfg.BackendSettings == nil {
			cfg.BackendSettings = map[string]string{}
		}
		cfg.BackendSettings[k] = val
	}
	return cfg, nil
}

// BindEnv registers defaults and the MANTA_* environment bindings on v,
// including the variable names used by other Manta SDKs.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix("MANTA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("retries", "MANTA_HTTP_RETRIES", "MANTA_RETRIES")
	_ = v.BindEnv("max_connections", "MANTA_MAX_CONNS", "MANTA_MAX_CONNECTIONS")
	_ = v.BindEnv("disable_native_sigs", "MANTA_NO_NATIVE_SIGS")
	_ = v.BindEnv("signature_cache_ttl", "MANTA_SIGS_CACHE_TTL")
	_ = v.BindEnv("encryption_key_id", "MANTA_CLIENT_ENCRYPTION_KEY_ID", "MANTA_ENCRYPTION_KEY_ID")
	_ = v.BindEnv("encryption_key_content", "MANTA_ENCRYPTION_KEY_BYTES", "MANTA_ENCRYPTION_KEY_CONTENT")

	v.SetDefault("url", DefaultURL)
	v.SetDefault("timeout", DefaultTimeout.String())
	v.SetDefault("retries", DefaultRetries)
	v.SetDefault("max_connections", DefaultMaxConnections)
	v.SetDefault("http_buffer_size", DefaultHTTPBufferSize)
	v.SetDefault("https_protocols", DefaultHTTPSProtocols)
	v.SetDefault("encryption_algorithm", DefaultEncryptionAlgorithm)
	v.SetDefault("backend", DefaultBackend)
}

// ConfigFromViper reads a configuration from v. Durations accept either Go
// duration strings or integer milliseconds.
func ConfigFromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		URL:                        v.GetString("url"),
		User:                       v.GetString("user"),
		KeyID:                      v.GetString("key_id"),
		KeyPath:                    v.GetString("key_path"),
		KeyContent:                 v.GetString("key_content"),
		Password:                   v.GetString("password"),
		MaxConnections:             v.GetInt("max_connections"),
		HTTPTransport:              v.GetString("http_transport"),
		HTTPSProtocols:             v.GetString("https_protocols"),
		HTTPSCiphers:               v.GetString("https_ciphers"),
		HTTPBufferSize:             v.GetInt("http_buffer_size"),
		NoAuth:                     v.GetBool("no_auth"),
		DisableNativeSignatures:    v.GetBool("disable_native_sigs"),
		ClientEncryption:           v.GetBool("client_encryption"),
		EncryptionKeyID:            v.GetString("encryption_key_id"),
		EncryptionAlgorithm:        v.GetString("encryption_algorithm"),
		EncryptionKeyPath:          v.GetString("encryption_key_path"),
		EncryptionKeyContent:       v.GetString("encryption_key_content"),
		PermitUnencryptedDownloads: v.GetBool("permit_unencrypted_downloads"),
		HomeDirectory:              v.GetString("home_directory"),
		Backend:                    v.GetString("backend"),
	}
	if v.IsSet("retries") {
		cfg.Retries = IntPtr(v.GetInt("retries"))
	}

	var err error
	if s := v.GetString("timeout"); s != "" {
		if cfg.Timeout, err = ParseMillisOrDuration(s); err != nil {
			return nil, fmt.Errorf("%w: timeout: %v", ErrConfiguration, err)
		}
	}
	if s := v.GetString("signature_cache_ttl"); s != "" {
		if cfg.SignatureCacheTTL, err = ParseMillisOrDuration(s); err != nil {
			return nil, fmt.Errorf("%w: signature_cache_ttl: %v", ErrConfiguration, err)
		}
	}
	if settings := v.GetStringMapString("backend_settings"); len(settings) > 0 {
		cfg.BackendSettings = settings
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// backendSettingsFromEnv maps MANTA_BACKEND_ACCESS_KEY=x to accessKey=x.
func backendSettingsFromEnv(environ []string) map[string]string {
	const prefix = "MANTA_BACKEND_"
	settings := map[string]string{}
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, prefix) || len(key) == len(prefix) {
			continue
		}
		settings[camelCase(strings.TrimPrefix(key, prefix))] = value
	}
	return settings
}

func camelCase(upperSnake string) string {
	parts := strings.Split(strings.ToLower(upperSnake), "_")
	var b strings.Builder
	for i, part := range parts {
		if part == "" {
			continue
		}
		if i > 0 {
			b.WriteString(strings.ToUpper(part[:1]))
			b.WriteString(part[1:])
			continue
		}
		b.WriteString(part)
	}
	return b.String()
}
