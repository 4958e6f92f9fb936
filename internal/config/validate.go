package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mfirdausazizi/scurrydb-sub002/pkg/core"
)

var (
	validLevels  = []string{"debug", "info", "warn", "error"}
	validFormats = []string{"text", "json"}
	validOutputs = []string{"table", "json", "csv", "md", "yaml"}
)

// Validate checks the configuration and reports every bad field.
func (c *Config) Validate() error {
	var v core.ValidationError

	if c.Gateway.DefaultRows < 1 {
		v.Add("gateway.default_rows", "must be at least 1")
	}
	if c.Gateway.MaxRows < 1 {
		v.Add("gateway.max_rows", "must be at least 1")
	} else if c.Gateway.DefaultRows > c.Gateway.MaxRows {
		v.Add("gateway.default_rows", fmt.Sprintf("must not exceed gateway.max_rows (%d)", c.Gateway.MaxRows))
	}
	if c.Gateway.Timeout < 0 {
		v.Add("gateway.timeout", "must not be negative")
	}
	if c.Pagination.MaxPageSize < 1 {
		v.Add("pagination.max_page_size", "must be at least 1")
	}
	if c.Sync.Concurrency < 1 {
		v.Add("sync.concurrency", "must be at least 1")
	}
	if c.Audit.Enabled && c.Audit.Path == "" {
		v.Add("audit.path", "is required when audit is enabled")
	}
	if c.Server.Addr == "" {
		v.Add("server.addr", "is required")
	}
	if c.Server.MaxConnections < 0 {
		v.Add("server.max_connections", "must not be negative")
	}
	if !oneOf(c.Log.Level, validLevels) {
		v.Add("log.level", "must be one of "+strings.Join(validLevels, ", "))
	}
	if !oneOf(c.Log.Format, validFormats) {
		v.Add("log.format", "must be one of "+strings.Join(validFormats, ", "))
	}
	if !oneOf(c.Output, validOutputs) {
		v.Add("output", "must be one of "+strings.Join(validOutputs, ", "))
	}
	if c.Credentials.Keyring && c.Credentials.Service == "" {
		v.Add("credentials.service", "is required when the keyring is enabled")
	}

	seen := make(map[string]string, len(c.Connections))
	for _, name := range c.ConnectionNames() {
		conn := c.Connections[name]
		prefix := "connections." + name
		if _, err := uuid.Parse(conn.ID); err != nil {
			v.Add(prefix+".id", "must be a UUID")
		} else if other, dup := seen[strings.ToLower(conn.ID)]; dup {
			v.Add(prefix+".id", "duplicates the id of connection "+other)
		} else {
			seen[strings.ToLower(conn.ID)] = name
		}
		if err := conn.Validate(); err != nil {
			var ve *core.ValidationError
			if errors.As(err, &ve) {
				v.Merge(prefix, ve)
			}
		}
	}

	return v.OrNil()
}

func oneOf(s string, values []string) bool {
	for _, value := range values {
		if strings.EqualFold(s, value) {
			return true
		}
	}
	return false
}
