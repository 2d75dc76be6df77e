package token

import (
	"testing"
	"time"

	"github.com/andreyxaxa/Reschedule-Engine/pkg/types/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApprovalTokenRoundTrip(t *testing.T) {
	s := NewApprovalSigner("approval-secret")

	raw, err := s.Issue("p-1", time.Now().Add(time.Hour))
	require.NoError(t, err)

	id, err := s.ProposalID(raw)
	require.NoError(t, err)
	assert.Equal(t, "p-1", id)
}

func TestApprovalTokenIsReproducible(t *testing.T) {
	s := NewApprovalSigner("approval-secret")
	exp := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	first, err := s.Issue("p-1", exp)
	require.NoError(t, err)
	second, err := s.Issue("p-1", exp)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	other, err := s.Issue("p-2", exp)
	require.NoError(t, err)
	assert.NotEqual(t, first, other)
}

func TestApprovalTokenOutlivesClaimsExpiry(t *testing.T) {
	s := NewApprovalSigner("approval-secret")

	raw, err := s.Issue("p-1", time.Now().Add(-time.Hour))
	require.NoError(t, err)

	id, err := s.ProposalID(raw)
	require.NoError(t, err)
	assert.Equal(t, "p-1", id)
}

func TestApprovalTokenRejectsForeignSignature(t *testing.T) {
	raw, err := NewApprovalSigner("other").Issue("p-1", time.Now().Add(time.Hour))
	require.NoError(t, err)

	_, err = NewApprovalSigner("approval-secret").ProposalID(raw)
	assert.ErrorIs(t, err, errs.ErrNotFoundOrAccessDenied)

	_, err = NewApprovalSigner("approval-secret").ProposalID("not-a-token")
	assert.ErrorIs(t, err, errs.ErrNotFoundOrAccessDenied)
}

func TestHashIsStableAndOpaque(t *testing.T) {
	assert.Equal(t, Hash("abc"), Hash("abc"))
	assert.NotEqual(t, Hash("abc"), Hash("abd"))
	assert.Len(t, Hash("abc"), 64)
	assert.NotContains(t, Hash("abc"), "abc")
}

func TestIdentityVerifier(t *testing.T) {
	v := NewIdentityVerifier("jwt-secret")

	raw, err := v.Issue("tenant-a", time.Minute)
	require.NoError(t, err)

	tenant, err := v.TenantID(raw)
	require.NoError(t, err)
	assert.Equal(t, "tenant-a", tenant)

	expired, err := v.Issue("tenant-a", -time.Minute)
	require.NoError(t, err)
	_, err = v.TenantID(expired)
	assert.ErrorIs(t, err, errs.ErrUnauthorized)

	_, err = NewIdentityVerifier("other").TenantID(raw)
	assert.ErrorIs(t, err, errs.ErrUnauthorized)
}
