// Package config provides YAML-based configuration for funcscan.
package config

// Scan defaults.
const (
	DefaultFormat      = "json"
	DefaultWorkers     = 0
	DefaultMaxFileSize = "4MB"
	DefaultSkipVendor  = false
	DefaultMethods     = false
)

// Logging defaults.
const (
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
)

// DefaultConfigName is the file name searched for in the working directory
// and the home directory.
const DefaultConfigName = ".funcscan"

// EnvPrefix prefixes every environment override, e.g. FUNCSCAN_WORKERS.
const EnvPrefix = "FUNCSCAN"
