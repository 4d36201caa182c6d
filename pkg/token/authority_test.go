package token

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuthority(t *testing.T, opts ...Option) *Authority {
	t.Helper()
	base := []Option{WithCredentials("test-key", "test-secret-at-least-32-bytes-long")}
	a, err := NewAuthority(append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = a.Shutdown(context.Background())
	})
	return a
}

func TestAuthority_MintAndValidate_Participant(t *testing.T) {
	a := newTestAuthority(t)
	ctx := context.Background()

	tok, err := a.Mint(ctx, TypeParticipant, "caller-1", "voice-ai-call-abc", 0, true)
	require.NoError(t, err)
	require.NotEmpty(t, tok)

	result := a.Validate(ctx, tok)
	require.True(t, result.Valid)
	assert.Equal(t, "caller-1", result.Identity)
	assert.Equal(t, "voice-ai-call-abc", result.Room)
	assert.True(t, result.Grants.CanPublish)
	assert.True(t, result.Grants.CanSubscribe)
	assert.False(t, result.Grants.RoomAdmin)
}

func TestAuthority_MintAdmin_HasElevatedGrants(t *testing.T) {
	a := newTestAuthority(t)
	ctx := context.Background()

	tok, err := a.Mint(ctx, TypeAdmin, "operator", "", 0, false)
	require.NoError(t, err)

	result := a.Validate(ctx, tok)
	require.True(t, result.Valid)
	assert.True(t, result.Grants.RoomCreate)
	assert.True(t, result.Grants.RoomAdmin)
}

func TestAuthority_ViewOnlyCannotPublish(t *testing.T) {
	a := newTestAuthority(t)
	ctx := context.Background()

	tok, err := a.Mint(ctx, TypeViewOnly, "observer", "room-1", 0, false)
	require.NoError(t, err)

	result := a.Validate(ctx, tok)
	require.True(t, result.Valid)
	assert.False(t, result.Grants.CanPublish)
	assert.True(t, result.Grants.CanSubscribe)
}

func TestAuthority_Validate_RejectsTamperedToken(t *testing.T) {
	a := newTestAuthority(t)
	ctx := context.Background()

	tok, err := a.Mint(ctx, TypeParticipant, "caller-1", "room-1", 0, false)
	require.NoError(t, err)

	tampered := tok[:len(tok)-2] + "xx"
	result := a.Validate(ctx, tampered)
	assert.False(t, result.Valid)
}

func TestAuthority_CheckAccess_RequiresGrantsAndRoom(t *testing.T) {
	a := newTestAuthority(t)
	ctx := context.Background()

	tok, err := a.Mint(ctx, TypeViewOnly, "observer", "room-1", 0, false)
	require.NoError(t, err)

	ok := a.CheckAccess(ctx, tok, []Grant{GrantCanSubscribe}, "room-1")
	assert.True(t, ok.Valid)

	forbidden := a.CheckAccess(ctx, tok, []Grant{GrantCanPublish}, "room-1")
	assert.False(t, forbidden.Valid)

	wrongRoom := a.CheckAccess(ctx, tok, []Grant{GrantCanSubscribe}, "room-2")
	assert.False(t, wrongRoom.Valid)
}

func TestAuthority_RevokeAndTokensByRoom(t *testing.T) {
	a := newTestAuthority(t)
	ctx := context.Background()

	_, err := a.Mint(ctx, TypeParticipant, "caller-1", "room-1", 0, false)
	require.NoError(t, err)
	_, err = a.Mint(ctx, TypeParticipant, "agent-1", "room-1", 0, false)
	require.NoError(t, err)

	identities := a.TokensByRoom("room-1")
	assert.ElementsMatch(t, []string{"caller-1", "agent-1"}, identities)

	assert.True(t, a.Revoke("caller-1"))
	assert.False(t, a.Revoke("caller-1"))

	identities = a.TokensByRoom("room-1")
	assert.Equal(t, []string{"agent-1"}, identities)
}

func TestAuthority_Mint_RequiresIdentity(t *testing.T) {
	a := newTestAuthority(t)
	_, err := a.Mint(context.Background(), TypeParticipant, "", "room-1", 0, false)
	assert.Error(t, err)
}

func TestNewAuthority_RequiresCredentials(t *testing.T) {
	_, err := NewAuthority()
	assert.Error(t, err)
}

func TestAuthority_AutoRenewal_ReplacesTokenBeforeExpiry(t *testing.T) {
	a := newTestAuthority(t,
		WithDefaultTTL(500*time.Millisecond),
		WithRenewalInterval(20*time.Millisecond),
		WithRenewalWindow(400*time.Millisecond),
	)
	ctx := context.Background()

	first, err := a.Mint(ctx, TypeParticipant, "caller-1", "room-1", 0, true)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		a.mu.Lock()
		defer a.mu.Unlock()
		return a.tokens["caller-1"].Serialized != first
	}, time.Second, 10*time.Millisecond, "expected renewal loop to mint a fresh token")
}
