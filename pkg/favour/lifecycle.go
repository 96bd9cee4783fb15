package favour

// Phase is the derived lifecycle state of a favour. It is computed from the
// record, never stored, so it cannot drift from the evidence field.
type Phase string

const (
	// PhasePending means no completion evidence has been submitted.
	PhasePending Phase = "pending"
	// PhaseClaimed means completion evidence is on record.
	PhaseClaimed Phase = "claimed"
)

// PhaseOf derives the lifecycle phase. Claimed iff evidence is present.
func PhaseOf(f Favour) Phase {
	if f.Evidence != "" {
		return PhaseClaimed
	}
	return PhasePending
}

// Permissions is the set of actions a viewer may take on a favour.
// Recompute it from the latest record on every read; caching these flags
// independently of the record is how stale-permission bugs happen.
type Permissions struct {
	CanUploadEvidence bool
	CanDelete         bool
}

// PermissionsOf derives the viewer's permissions:
//   - the debtor may upload evidence while the favour is pending
//   - the recipient may always delete
//   - the debtor may delete once the favour is claimed
//
// Total over any structurally valid favour/viewer pair.
func PermissionsOf(f Favour, v Viewer) Permissions {
	claimed := PhaseOf(f) == PhaseClaimed
	return Permissions{
		CanUploadEvidence: v.ID == f.Debtor.ID && !claimed,
		CanDelete:         v.ID == f.Recipient.ID || (v.ID == f.Debtor.ID && claimed),
	}
}
