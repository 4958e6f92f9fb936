package credentials

import (
	"context"
	"errors"
	"fmt"

	"github.com/99designs/keyring"
	"github.com/mfirdausazizi/scurrydb-sub002/pkg/core"
)

// KeyringResolver reads connection passwords from the OS keyring.
type KeyringResolver struct {
	ring    keyring.Keyring
	service string
}

// OpenKeyring opens the platform keyring for service.
func OpenKeyring(service string) (*KeyringResolver, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName:              service,
		KeychainTrustApplication: true,
		PassPrefix:               service,
		WinCredPrefix:            service,
		LibSecretCollectionName:  service,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open keyring: %w", err)
	}
	return NewKeyringResolver(ring, service), nil
}

// NewKeyringResolver wraps an opened keyring.
func NewKeyringResolver(ring keyring.Keyring, service string) *KeyringResolver {
	return &KeyringResolver{ring: ring, service: service}
}

// Key returns the keyring item key for a connection id.
func (r *KeyringResolver) Key(connectionID string) string {
	return r.service + "/" + connectionID
}

// Resolve implements Resolver. Descriptors that already carry a password, and
// connections with no stored secret, pass through unchanged.
func (r *KeyringResolver) Resolve(_ context.Context, conn core.ConnectionConfig) (core.ConnectionConfig, error) {
	if conn.Password != "" || conn.ID == "" || conn.Kind.IsFileBased() {
		return conn, nil
	}
	item, err := r.ring.Get(r.Key(conn.ID))
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return conn, nil
	}
	if err != nil {
		return core.ConnectionConfig{}, fmt.Errorf("failed to read keyring secret for %s: %w", conn.DisplayName(), err)
	}
	conn.Password = string(item.Data)
	return conn, nil
}

// Store saves the password of a connection.
func (r *KeyringResolver) Store(conn core.ConnectionConfig, password string) error {
	if conn.ID == "" {
		return errors.New("connection id is required")
	}
	err := r.ring.Set(keyring.Item{
		Key:         r.Key(conn.ID),
		Data:        []byte(password),
		Label:       r.service + " " + conn.DisplayName(),
		Description: "database password",
	})
	if err != nil {
		return fmt.Errorf("failed to store keyring secret for %s: %w", conn.DisplayName(), err)
	}
	return nil
}

// Remove deletes the stored password of a connection. Removing a missing secret is not an error.
func (r *KeyringResolver) Remove(conn core.ConnectionConfig) error {
	err := r.ring.Remove(r.Key(conn.ID))
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("failed to remove keyring secret for %s: %w", conn.DisplayName(), err)
	}
	return nil
}
