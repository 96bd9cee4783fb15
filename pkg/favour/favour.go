// Package favour defines the favour record, the parties to it, and the pure
// lifecycle evaluator that derives phase and per-viewer permissions from the
// record's fields.
package favour

import (
	"fmt"
	"time"
)

// Party identifies one side of a favour.
type Party struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// Favour is the tracked obligation between a debtor and a recipient.
// The remote store owns the record; clients hold a cached copy.
type Favour struct {
	ID        string `json:"id"`
	Debtor    Party  `json:"debtor"`
	Recipient Party  `json:"recipient"`
	// Rewards maps reward kind to a positive quantity. May be empty.
	Rewards map[string]int `json:"rewards"`
	// InitialEvidence is an optional blob reference set at creation.
	InitialEvidence string `json:"initial_evidence,omitempty"`
	// Evidence is the blob reference proving completion. Empty means the
	// favour has not been claimed. Once set it is never cleared.
	Evidence  string    `json:"evidence,omitempty"`
	CreatedAt time.Time `json:"created_at,omitzero"`
}

// Viewer is the acting identity for one workflow invocation.
type Viewer struct {
	ID         string
	Credential string
}

// Validate checks the structural invariants of a record. The evaluator itself
// is total and never calls this; it exists for the store side, where records
// are created.
func (f Favour) Validate() error {
	if f.Debtor.ID == "" || f.Recipient.ID == "" {
		return fmt.Errorf("favour %s: both parties must be identified", f.ID)
	}
	if f.Debtor.ID == f.Recipient.ID {
		return fmt.Errorf("favour %s: debtor and recipient must differ", f.ID)
	}
	for kind, qty := range f.Rewards {
		if qty <= 0 {
			return fmt.Errorf("favour %s: reward %q must be positive, got %d", f.ID, kind, qty)
		}
	}
	return nil
}
