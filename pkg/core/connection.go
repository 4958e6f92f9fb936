package core

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// Engine kinds
// =============================================================================

// EngineKind identifies the relational engine a connection targets.
type EngineKind string

// Supported engine kinds.
const (
	EnginePostgres EngineKind = "postgresql"
	EngineMySQL    EngineKind = "mysql"
	EngineMariaDB  EngineKind = "mariadb"
	EngineSQLite   EngineKind = "sqlite"
	EngineDuckDB   EngineKind = "duckdb"
)

// EngineKinds returns every supported engine kind in a stable order.
func EngineKinds() []EngineKind {
	return []EngineKind{EnginePostgres, EngineMySQL, EngineMariaDB, EngineSQLite, EngineDuckDB}
}

// ParseEngineKind normalizes common spellings ("postgres", "pg", "sqlite3") to an EngineKind.
func ParseEngineKind(s string) (EngineKind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "postgresql", "postgres", "pg":
		return EnginePostgres, true
	case "mysql":
		return EngineMySQL, true
	case "mariadb":
		return EngineMariaDB, true
	case "sqlite", "sqlite3":
		return EngineSQLite, true
	case "duckdb":
		return EngineDuckDB, true
	default:
		return "", false
	}
}

// IsFileBased reports whether the engine addresses a local file instead of a server.
func (k EngineKind) IsFileBased() bool {
	return k == EngineSQLite || k == EngineDuckDB
}

// DefaultPort returns the conventional server port for the engine, or 0 for file engines.
func (k EngineKind) DefaultPort() int {
	switch k {
	case EnginePostgres:
		return 5432
	case EngineMySQL, EngineMariaDB:
		return 3306
	default:
		return 0
	}
}

// =============================================================================
// Connection descriptor
// =============================================================================

// ConnectionConfig describes how to reach one database.
// It is owned by the caller and treated as immutable for the duration of a call;
// credentials are expected to be resolved before it reaches the gateway.
type ConnectionConfig struct {
	ID       string     `koanf:"id" json:"id"`
	Name     string     `koanf:"name" json:"name"`
	Kind     EngineKind `koanf:"kind" json:"kind"`
	Host     string     `koanf:"host" json:"host,omitempty"`
	Port     int        `koanf:"port" json:"port,omitempty"`
	Database string     `koanf:"database" json:"database,omitempty"`
	Username string     `koanf:"username" json:"username,omitempty"`
	Password string     `koanf:"password" json:"-"`
	Schema   string     `koanf:"schema" json:"schema,omitempty"`

	// Path is the database file for file-based engines. ":memory:" is accepted.
	Path string `koanf:"path" json:"path,omitempty"`

	SSL     bool          `koanf:"ssl" json:"ssl,omitempty"`
	Timeout time.Duration `koanf:"timeout" json:"timeout,omitempty"`
	Tunnel  *TunnelConfig `koanf:"tunnel" json:"tunnel,omitempty"`

	// Options contains additional driver-specific DSN options.
	Options map[string]string `koanf:"options" json:"options,omitempty"`

	// Params holds adapter-specific structured settings (e.g. DuckDB extensions).
	Params map[string]any `koanf:"params" json:"params,omitempty"`
}

// TunnelConfig configures an SSH tunnel in front of a network database.
type TunnelConfig struct {
	Host       string `koanf:"host" json:"host"`
	Port       int    `koanf:"port" json:"port,omitempty"`
	Username   string `koanf:"username" json:"username"`
	Password   string `koanf:"password" json:"-"`
	PrivateKey string `koanf:"private_key" json:"-"`
	Passphrase string `koanf:"passphrase" json:"-"`

	// InsecureHostKey skips host key verification when no known_hosts file exists.
	InsecureHostKey bool `koanf:"insecure_host_key" json:"insecureHostKey,omitempty"`
}

// Address returns host:port for the database server, applying the engine default port.
func (c ConnectionConfig) Address() string {
	port := c.Port
	if port == 0 {
		port = c.Kind.DefaultPort()
	}
	host := c.Host
	if host == "" {
		host = "localhost"
	}
	return fmt.Sprintf("%s:%d", host, port)
}

// DisplayName returns the name if set, otherwise the id.
func (c ConnectionConfig) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.ID
}

// Validate checks the descriptor and reports every problem at once.
func (c ConnectionConfig) Validate() error {
	var v ValidationError
	kind, ok := ParseEngineKind(string(c.Kind))
	if !ok {
		v.Add("kind", fmt.Sprintf("unknown engine kind %q", c.Kind))
		return &v
	}

	if kind.IsFileBased() {
		if c.Path == "" {
			v.Add("path", "file path is required for "+string(kind))
		}
	} else {
		if c.Host == "" {
			v.Add("host", "host is required")
		}
		if c.Database == "" {
			v.Add("database", "database is required")
		}
	}

	if c.Port < 0 || c.Port > 65535 {
		v.Add("port", "port must be between 0 and 65535")
	}
	if c.Timeout < 0 {
		v.Add("timeout", "timeout must not be negative")
	}

	if c.Tunnel != nil {
		if kind.IsFileBased() {
			v.Add("tunnel", "tunnels are only supported for network engines")
		}
		if c.Tunnel.Host == "" {
			v.Add("tunnel.host", "tunnel host is required")
		}
		if c.Tunnel.Username == "" {
			v.Add("tunnel.username", "tunnel username is required")
		}
		if c.Tunnel.Password == "" && c.Tunnel.PrivateKey == "" {
			v.Add("tunnel.auth", "tunnel password or private key is required")
		}
		if c.Tunnel.Port < 0 || c.Tunnel.Port > 65535 {
			v.Add("tunnel.port", "tunnel port must be between 0 and 65535")
		}
	}

	return v.OrNil()
}
