// Package config loads scurry configuration from defaults, scurry.yaml, SCURRY_ environment
// variables and command-line flags.
package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mfirdausazizi/scurrydb-sub002/pkg/access"
	"github.com/mfirdausazizi/scurrydb-sub002/pkg/core"
)

// Config is the complete application configuration.
type Config struct {
	// Connections maps a connection name to its descriptor.
	Connections map[string]core.ConnectionConfig `koanf:"connections"`

	// Permissions maps a policy name to a permission descriptor for local use.
	Permissions map[string]access.Permission `koanf:"permissions"`

	Gateway     GatewayConfig     `koanf:"gateway"`
	Pagination  PaginationConfig  `koanf:"pagination"`
	Sync        SyncConfig        `koanf:"sync"`
	Audit       AuditConfig       `koanf:"audit"`
	Server      ServerConfig      `koanf:"server"`
	Log         LogConfig         `koanf:"log"`
	Credentials CredentialsConfig `koanf:"credentials"`

	Output  string `koanf:"output"`
	Verbose bool   `koanf:"verbose"`

	// File is the config file the values were read from, if any.
	File string `koanf:"-"`
}

// GatewayConfig bounds query execution.
type GatewayConfig struct {
	DefaultRows int           `koanf:"default_rows"`
	MaxRows     int           `koanf:"max_rows"`
	Timeout     time.Duration `koanf:"timeout"`
}

// PaginationConfig bounds page sizes.
type PaginationConfig struct {
	MaxPageSize int `koanf:"max_page_size"`
}

// SyncConfig is the default sync policy.
type SyncConfig struct {
	Atomic      bool `koanf:"atomic"`
	Concurrency int  `koanf:"concurrency"`
}

// AuditConfig configures the audit trail.
type AuditConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

// ServerConfig configures the API server.
type ServerConfig struct {
	Addr              string        `koanf:"addr"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout"`
	MaxConnections    int           `koanf:"max_connections"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// CredentialsConfig configures password resolution.
type CredentialsConfig struct {
	Keyring bool   `koanf:"keyring"`
	Service string `koanf:"service"`
}

// connectionNamespace seeds ids derived from connection names.
var connectionNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://scurrydb.dev/connections"))

// ConnectionID returns the stable id for a connection that has none configured.
func ConnectionID(name string) string {
	return uuid.NewSHA1(connectionNamespace, []byte(name)).String()
}

// ConnectionNames returns the configured connection names in sorted order.
func (c *Config) ConnectionNames() []string {
	names := make([]string, 0, len(c.Connections))
	for name := range c.Connections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Connection resolves a connection by name or id.
func (c *Config) Connection(ref string) (core.ConnectionConfig, error) {
	if conn, ok := c.Connections[ref]; ok {
		return conn, nil
	}
	if id, err := uuid.Parse(ref); err == nil {
		for _, conn := range c.Connections {
			if strings.EqualFold(conn.ID, id.String()) {
				return conn, nil
			}
		}
	}
	return core.ConnectionConfig{}, fmt.Errorf("unknown connection %q (available: %s)", ref, strings.Join(c.ConnectionNames(), ", "))
}

// Permission resolves a named permission. The empty name means full access.
func (c *Config) Permission(name string) (access.Permission, error) {
	if name == "" {
		return access.FullAccess(), nil
	}
	if p, ok := c.Permissions[name]; ok {
		return p, nil
	}
	return access.Permission{}, fmt.Errorf("unknown permission %q", name)
}
