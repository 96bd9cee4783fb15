package identity_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/favourlabs/favour/pkg/favour"
	"github.com/favourlabs/favour/pkg/identity"
)

func TestTokenManager_RoundTrip(t *testing.T) {
	tm, err := identity.NewTokenManager([]byte("test-secret"))
	require.NoError(t, err)

	token, err := tm.Mint("u1", "Avery", time.Hour)
	require.NoError(t, err)

	claims, err := tm.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.Subject)
	assert.Equal(t, "Avery", claims.Name)

	viewer := claims.Viewer(token)
	assert.Equal(t, "u1", viewer.ID)
	assert.Equal(t, token, viewer.Credential)
}

func TestTokenManager_RejectsExpired(t *testing.T) {
	tm, err := identity.NewTokenManager([]byte("test-secret"))
	require.NoError(t, err)

	token, err := tm.Mint("u1", "", -time.Minute)
	require.NoError(t, err)

	_, err = tm.Validate(token)
	assert.Error(t, err)
}

func TestTokenManager_RejectsWrongSecret(t *testing.T) {
	mint, err := identity.NewTokenManager([]byte("secret-a"))
	require.NoError(t, err)
	verify, err := identity.NewTokenManager([]byte("secret-b"))
	require.NoError(t, err)

	token, err := mint.Mint("u1", "", time.Hour)
	require.NoError(t, err)

	_, err = verify.Validate(token)
	assert.Error(t, err)
}

func TestStaticProvider(t *testing.T) {
	p := identity.StaticProvider{Viewer: favour.Viewer{ID: "u1", Credential: "tok"}}
	v, err := p.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "u1", v.ID)

	_, err = identity.StaticProvider{}.Current(context.Background())
	assert.Error(t, err)
}
