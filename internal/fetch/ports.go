// Package fetch defines the boundary to the sales report feed: the
// fetcher contract, the credential it is keyed by, and the error taxonomy
// every implementation reports through.
package fetch

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"appsales/internal/core"
)

// Key identifies one App Store Connect API credential. Snapshots, caches
// and refreshes are all keyed by Key.ID.
type Key struct {
	ID           string
	Name         string
	IssuerID     string
	KeyID        string
	PrivateKey   string
	VendorNumber string
}

// NewKey creates a credential with a fresh identifier.
func NewKey(name, issuerID, keyID, privateKey, vendorNumber string) Key {
	return Key{
		ID:           uuid.NewString(),
		Name:         name,
		IssuerID:     issuerID,
		KeyID:        keyID,
		PrivateKey:   privateKey,
		VendorNumber: vendorNumber,
	}
}

// IsZero reports whether no credential is configured.
func (k Key) IsZero() bool {
	return k.ID == "" && k.KeyID == ""
}

func (k Key) Validate() error {
	if strings.TrimSpace(k.IssuerID) == "" || strings.TrimSpace(k.KeyID) == "" {
		return NewError(KindInvalidCredentials, "issuer and key id are required")
	}
	if strings.TrimSpace(k.PrivateKey) == "" {
		return NewError(KindInvalidCredentials, "private key is required")
	}
	return nil
}

// Fetcher retrieves a complete snapshot for a credential, denominated in
// the requested currency. Implementations must be idempotent and safe to
// retry. With useMemoization a recent response may be served instead of a
// new fetch.
type Fetcher interface {
	Fetch(ctx context.Context, key Key, currency string, useMemoization bool) (*core.Store, error)
}
