// Package config defines the gateway's configuration shape and the
// defaults applied before a config file is loaded on top of it.
package config

import "time"

const (
	DefaultTokenTTL  = 2 * time.Hour
	DefaultAddress   = "0.0.0.0"
	DefaultPort      = "8443"
	DefaultLogLevel  = "info"
	DefaultDirPerms  = 0o755
	DefaultFilePerms = 0o644
)

// TLSConfig carries the certificate pair for serving HTTPS. Both fields
// empty means plain HTTP.
type TLSConfig struct {
	Cert string
	Key  string
}

// HTTPConfig controls the listener the gateway binds.
type HTTPConfig struct {
	Address string
	Port    string
	TLS     *TLSConfig `mapstructure:",omitempty"`
}

// OracleConfig locates and bounds calls to the external access-control
// binary.
type OracleConfig struct {
	BinaryPath string
	Timeout    time.Duration
}

// LogConfig controls the main and audit log sinks.
type LogConfig struct {
	Level  string
	Output string
	Audit  string
}

// StorageConfig controls the BlobStore's on-disk layout and permission
// hardening.
type StorageConfig struct {
	RootDirectory string
	DirPerms      uint32
	FilePerms     uint32
}

// TokenConfig controls the TokenStore's on-disk location, lifetime, and
// permission hardening.
type TokenConfig struct {
	Directory string
	TTL       time.Duration
	FilePerms uint32
}

// Config is the gateway's complete runtime configuration, the unit
// loaded from a single config file and passed by reference into every
// component at construction -- no component reaches for a global.
type Config struct {
	Storage      StorageConfig
	Token        TokenConfig
	Oracle       OracleConfig
	HTTP         HTTPConfig
	Log          LogConfig
	Repositories []string
}

// New returns a Config populated with defaults; LoadConfiguration layers
// a config file's values on top of it.
func New() *Config {
	return &Config{
		Storage: StorageConfig{
			DirPerms:  DefaultDirPerms,
			FilePerms: DefaultFilePerms,
		},
		Token: TokenConfig{
			TTL:       DefaultTokenTTL,
			FilePerms: 0o600,
		},
		HTTP: HTTPConfig{
			Address: DefaultAddress,
			Port:    DefaultPort,
		},
		Log: LogConfig{
			Level: DefaultLogLevel,
		},
	}
}
