package favour_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/favourlabs/favour/pkg/favour"
)

func pendingFavour() favour.Favour {
	return favour.Favour{
		ID:        "fav-1",
		Debtor:    favour.Party{ID: "u1", Name: "Avery"},
		Recipient: favour.Party{ID: "u2", Name: "Brooke"},
		Rewards:   map[string]int{"coffee": 2},
	}
}

func TestPhaseOf(t *testing.T) {
	f := pendingFavour()
	assert.Equal(t, favour.PhasePending, favour.PhaseOf(f))

	f.Evidence = "favours/u1_u2_2026-08-29T10:00:00Z/evidence.png"
	assert.Equal(t, favour.PhaseClaimed, favour.PhaseOf(f))

	// Initial evidence alone does not claim the favour.
	g := pendingFavour()
	g.InitialEvidence = "favours/u1_u2_2026-08-28T10:00:00Z/evidence.png"
	assert.Equal(t, favour.PhasePending, favour.PhaseOf(g))
}

func TestPermissions_PendingFavour(t *testing.T) {
	f := pendingFavour()

	debtor := favour.PermissionsOf(f, favour.Viewer{ID: "u1"})
	assert.True(t, debtor.CanUploadEvidence, "debtor uploads while pending")
	assert.False(t, debtor.CanDelete, "debtor cannot delete a pending favour")

	recipient := favour.PermissionsOf(f, favour.Viewer{ID: "u2"})
	assert.False(t, recipient.CanUploadEvidence)
	assert.True(t, recipient.CanDelete, "recipient may always delete")

	stranger := favour.PermissionsOf(f, favour.Viewer{ID: "u3"})
	assert.False(t, stranger.CanUploadEvidence)
	assert.False(t, stranger.CanDelete)
}

func TestPermissions_ClaimedFavour(t *testing.T) {
	f := pendingFavour()
	f.Evidence = "favours/u1_u2_2026-08-29T10:00:00Z/evidence.png"

	debtor := favour.PermissionsOf(f, favour.Viewer{ID: "u1"})
	assert.False(t, debtor.CanUploadEvidence, "no re-upload once claimed")
	assert.True(t, debtor.CanDelete, "debtor may close a claimed favour")

	recipient := favour.PermissionsOf(f, favour.Viewer{ID: "u2"})
	assert.False(t, recipient.CanUploadEvidence)
	assert.True(t, recipient.CanDelete)
}

func TestValidate(t *testing.T) {
	require.NoError(t, pendingFavour().Validate())

	same := pendingFavour()
	same.Recipient.ID = same.Debtor.ID
	assert.Error(t, same.Validate(), "debtor and recipient must differ")

	missing := pendingFavour()
	missing.Debtor.ID = ""
	assert.Error(t, missing.Validate())

	zeroReward := pendingFavour()
	zeroReward.Rewards = map[string]int{"coffee": 0}
	assert.Error(t, zeroReward.Validate())

	empty := pendingFavour()
	empty.Rewards = nil
	assert.NoError(t, empty.Validate(), "empty reward pool is allowed")
}
