package credentials

import (
	"context"
	"errors"
	"testing"

	"github.com/99designs/keyring"
	"github.com/mfirdausazizi/scurrydb-sub002/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const connID = "0b9f4a52-2f39-4c1e-9c55-0d5a1bfb7a11"

func pgConn() core.ConnectionConfig {
	return core.ConnectionConfig{
		ID:       connID,
		Name:     "warehouse",
		Kind:     core.EnginePostgres,
		Host:     "${DB_HOST}",
		Database: "analytics",
		Username: "${DB_USER}",
		Password: "${DB_PASSWORD}",
		Tunnel:   &core.TunnelConfig{Host: "bastion", Username: "ops", Password: "${SSH_PASSWORD}"},
	}
}

func mapLookup(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestEnvResolver(t *testing.T) {
	in := pgConn()
	r := EnvResolver{Lookup: mapLookup(map[string]string{
		"DB_HOST":      "db.internal",
		"DB_USER":      "reporter",
		"DB_PASSWORD":  "s3cret",
		"SSH_PASSWORD": "tunnelpw",
	})}

	out, err := r.Resolve(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, "db.internal", out.Host)
	assert.Equal(t, "reporter", out.Username)
	assert.Equal(t, "s3cret", out.Password)
	assert.Equal(t, "tunnelpw", out.Tunnel.Password)

	// input untouched
	assert.Equal(t, "${DB_PASSWORD}", in.Password)
	assert.Equal(t, "${SSH_PASSWORD}", in.Tunnel.Password)
}

func TestEnvResolver_MissingVariable(t *testing.T) {
	r := EnvResolver{Lookup: mapLookup(map[string]string{"DB_HOST": "h"})}
	_, err := r.Resolve(context.Background(), pgConn())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_USER")
	assert.Contains(t, err.Error(), "warehouse")
}

func TestEnvResolver_OSEnvironment(t *testing.T) {
	t.Setenv("SCURRY_CRED_TEST", "from-env")
	out, err := EnvResolver{}.Resolve(context.Background(), core.ConnectionConfig{Password: "${SCURRY_CRED_TEST}"})
	require.NoError(t, err)
	assert.Equal(t, "from-env", out.Password)
}

func TestKeyringResolver(t *testing.T) {
	ring := keyring.NewArrayKeyring(nil)
	r := NewKeyringResolver(ring, "scurry")
	conn := pgConn()
	conn.Password = ""

	// nothing stored yet
	out, err := r.Resolve(context.Background(), conn)
	require.NoError(t, err)
	assert.Empty(t, out.Password)

	require.NoError(t, r.Store(conn, "from-keyring"))
	item, err := ring.Get("scurry/" + connID)
	require.NoError(t, err)
	assert.Equal(t, "from-keyring", string(item.Data))

	out, err = r.Resolve(context.Background(), conn)
	require.NoError(t, err)
	assert.Equal(t, "from-keyring", out.Password)

	// explicit passwords win
	conn.Password = "explicit"
	out, err = r.Resolve(context.Background(), conn)
	require.NoError(t, err)
	assert.Equal(t, "explicit", out.Password)

	require.NoError(t, r.Remove(conn))
	require.NoError(t, r.Remove(conn))
	_, err = ring.Get("scurry/" + connID)
	assert.ErrorIs(t, err, keyring.ErrKeyNotFound)
}

func TestKeyringResolver_SkipsFileEngines(t *testing.T) {
	ring := keyring.NewArrayKeyring([]keyring.Item{{Key: "scurry/" + connID, Data: []byte("x")}})
	r := NewKeyringResolver(ring, "scurry")

	out, err := r.Resolve(context.Background(), core.ConnectionConfig{ID: connID, Kind: core.EngineSQLite, Path: "a.db"})
	require.NoError(t, err)
	assert.Empty(t, out.Password)
}

func TestKeyringResolver_StoreRequiresID(t *testing.T) {
	r := NewKeyringResolver(keyring.NewArrayKeyring(nil), "scurry")
	assert.Error(t, r.Store(core.ConnectionConfig{Name: "x"}, "pw"))
}

type failingResolver struct{}

func (failingResolver) Resolve(context.Context, core.ConnectionConfig) (core.ConnectionConfig, error) {
	return core.ConnectionConfig{}, errors.New("vault sealed")
}

func TestChain(t *testing.T) {
	ring := keyring.NewArrayKeyring([]keyring.Item{{Key: "scurry/" + connID, Data: []byte("ring-pw")}})
	conn := pgConn()
	conn.Password = ""

	chain := Chain{
		EnvResolver{Lookup: mapLookup(map[string]string{"DB_HOST": "h", "DB_USER": "u", "SSH_PASSWORD": "t"})},
		nil,
		NewKeyringResolver(ring, "scurry"),
	}
	out, err := chain.Resolve(context.Background(), conn)
	require.NoError(t, err)
	assert.Equal(t, "h", out.Host)
	assert.Equal(t, "ring-pw", out.Password)

	_, err = Chain{failingResolver{}}.Resolve(context.Background(), conn)
	assert.EqualError(t, err, "vault sealed")
}
