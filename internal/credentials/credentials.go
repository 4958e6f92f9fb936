// Package credentials resolves connection secrets before a descriptor reaches the gateway.
//
// Descriptors may reference environment variables as ${VAR} or leave the password empty and
// keep it in the OS keyring under "<service>/<connection id>".
package credentials

import (
	"context"
	"fmt"
	"os"
	"regexp"

	"github.com/mfirdausazizi/scurrydb-sub002/pkg/core"
)

// Resolver fills in the secrets of a connection descriptor.
// Implementations return a copy and never mutate the input.
type Resolver interface {
	Resolve(ctx context.Context, conn core.ConnectionConfig) (core.ConnectionConfig, error)
}

// Chain applies resolvers in order, feeding each the previous output.
type Chain []Resolver

// Resolve implements Resolver.
func (c Chain) Resolve(ctx context.Context, conn core.ConnectionConfig) (core.ConnectionConfig, error) {
	var err error
	for _, r := range c {
		if r == nil {
			continue
		}
		conn, err = r.Resolve(ctx, conn)
		if err != nil {
			return core.ConnectionConfig{}, err
		}
	}
	return conn, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// EnvResolver expands ${VAR} references from the environment.
type EnvResolver struct {
	// Lookup defaults to os.LookupEnv.
	Lookup func(string) (string, bool)
}

// Resolve implements Resolver. A reference to an unset variable is an error.
func (r EnvResolver) Resolve(_ context.Context, conn core.ConnectionConfig) (core.ConnectionConfig, error) {
	lookup := r.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}

	var missing string
	expand := func(s string) string {
		return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
			name := match[2 : len(match)-1]
			if v, ok := lookup(name); ok {
				return v
			}
			if missing == "" {
				missing = name
			}
			return match
		})
	}

	out := conn
	out.Host = expand(conn.Host)
	out.Username = expand(conn.Username)
	out.Password = expand(conn.Password)
	out.Database = expand(conn.Database)
	out.Path = expand(conn.Path)
	if conn.Tunnel != nil {
		t := *conn.Tunnel
		t.Host = expand(t.Host)
		t.Username = expand(t.Username)
		t.Password = expand(t.Password)
		t.PrivateKey = expand(t.PrivateKey)
		t.Passphrase = expand(t.Passphrase)
		out.Tunnel = &t
	}

	if missing != "" {
		return core.ConnectionConfig{}, fmt.Errorf("connection %s references unset environment variable %s", conn.DisplayName(), missing)
	}
	return out, nil
}
