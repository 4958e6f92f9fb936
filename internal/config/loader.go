package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/mfirdausazizi/scurrydb-sub002/pkg/access"
	"github.com/mfirdausazizi/scurrydb-sub002/pkg/core"
	"github.com/spf13/pflag"
)

// Config file names, in lookup order.
const (
	ConfigFileName    = "scurry.yaml"
	ConfigFileNameAlt = "scurry.yml"
)

// EnvPrefix prefixes every environment override. Nested keys use "__":
// SCURRY_GATEWAY__MAX_ROWS sets gateway.max_rows.
const EnvPrefix = "SCURRY_"

// flagKeys maps persistent flag names to config keys. Flags not listed here are
// command options and never reach the config.
var flagKeys = map[string]string{
	"output":     "output",
	"verbose":    "verbose",
	"log-level":  "log.level",
	"log-format": "log.format",
	"audit-db":   "audit.path",
	"max-rows":   "gateway.max_rows",
	"timeout":    "gateway.timeout",
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// findConfigFile finds the config file to use.
// Priority: explicit path > scurry.yaml > scurry.yml
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range []string{ConfigFileName, ConfigFileNameAlt} {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// Load loads configuration from file, environment variables, and flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. Load defaults
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Find and load config file
	used := findConfigFile(cfgFile)
	if used != "" {
		if err := k.Load(file.Provider(used), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", used, err)
		}
	}

	// 3. Load environment variables
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Load flags (only explicitly set ones)
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// 5. Unmarshal into Config struct
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.File = used
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey transforms SCURRY_SERVER__ADDR into server.addr.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(key, "__", ".")
}

// normalize fills derived connection fields and expands ${VAR} references.
func (c *Config) normalize() {
	if c.Connections == nil {
		c.Connections = map[string]core.ConnectionConfig{}
	}
	for name, conn := range c.Connections {
		if conn.Name == "" {
			conn.Name = name
		}
		if conn.ID == "" {
			conn.ID = ConnectionID(name)
		}
		if kind, ok := core.ParseEngineKind(string(conn.Kind)); ok {
			conn.Kind = kind
		}
		conn.Host = expandEnvVars(conn.Host)
		conn.Username = expandEnvVars(conn.Username)
		conn.Password = expandEnvVars(conn.Password)
		conn.Database = expandEnvVars(conn.Database)
		conn.Path = expandEnvVars(conn.Path)
		if conn.Tunnel != nil {
			t := *conn.Tunnel
			t.Host = expandEnvVars(t.Host)
			t.Username = expandEnvVars(t.Username)
			t.Password = expandEnvVars(t.Password)
			t.Passphrase = expandEnvVars(t.Passphrase)
			conn.Tunnel = &t
		}
		c.Connections[name] = conn
	}
	if c.Permissions == nil {
		c.Permissions = map[string]access.Permission{}
	}
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
// Unset variables are left as written.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match
	})
}
