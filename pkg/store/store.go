// Package store provides server-side persistence for favour records.
//
// All implementations store the record exactly as created plus the evidence
// reference; lifecycle phase and permissions are derived on read and are
// never persisted.
package store

import (
	"context"

	"github.com/favourlabs/favour/pkg/favour"
)

// Store persists favour records. Lookups for unknown ids return a
// fault.NotFound error.
type Store interface {
	// Create inserts a new record. The id must not already exist.
	Create(ctx context.Context, f favour.Favour) error

	// Get returns the record for id.
	Get(ctx context.Context, id string) (favour.Favour, error)

	// SetEvidence records the evidence blob path for id. The path replaces
	// any previous value.
	SetEvidence(ctx context.Context, id, path string) error

	// Delete removes the record for id.
	Delete(ctx context.Context, id string) error

	// ListByParty returns all favours where partyID is the debtor or the
	// recipient, newest first.
	ListByParty(ctx context.Context, partyID string) ([]favour.Favour, error)
}
