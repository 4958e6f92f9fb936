package config

// Default configuration values.
const (
	DefaultDefaultRows     = 1000
	DefaultMaxRows         = 10000
	DefaultTimeout         = "30s"
	DefaultMaxPageSize     = 1000
	DefaultConcurrency     = 1
	DefaultAuditPath       = ".scurry/audit.db"
	DefaultAddr            = "127.0.0.1:8470"
	DefaultHeaderTimeout   = "10s"
	DefaultShutdownTimeout = "5s"
	DefaultMaxConnections  = 64
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "text"
	DefaultService         = "scurry"
	DefaultOutput          = "table"
)

func defaults() map[string]any {
	return map[string]any{
		"gateway.default_rows":       DefaultDefaultRows,
		"gateway.max_rows":           DefaultMaxRows,
		"gateway.timeout":            DefaultTimeout,
		"pagination.max_page_size":   DefaultMaxPageSize,
		"sync.atomic":                false,
		"sync.concurrency":           DefaultConcurrency,
		"audit.enabled":              true,
		"audit.path":                 DefaultAuditPath,
		"server.addr":                DefaultAddr,
		"server.read_header_timeout": DefaultHeaderTimeout,
		"server.shutdown_timeout":    DefaultShutdownTimeout,
		"server.max_connections":     DefaultMaxConnections,
		"log.level":                  DefaultLogLevel,
		"log.format":                 DefaultLogFormat,
		"credentials.keyring":        false,
		"credentials.service":        DefaultService,
		"output":                     DefaultOutput,
		"verbose":                    false,
	}
}
