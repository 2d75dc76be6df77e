// Package token issues the signed tokens the engine hands out and verifies
// the bearer identities it receives.
package token

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/andreyxaxa/Reschedule-Engine/pkg/types/errs"
	"github.com/golang-jwt/jwt/v5"
)

const _approvalAudience = "proposal-approval"

type approvalClaims struct {
	ProposalID string `json:"pid"`
	jwt.RegisteredClaims
}

// ApprovalSigner issues the external approver's token. Only its hash is stored;
// expiry is enforced against the proposal row, not the token claims.
// Issue is deterministic in (proposalID, expiresAt), so a claim can mint the
// same token again instead of keeping it anywhere.
type ApprovalSigner struct {
	secret []byte
}

func NewApprovalSigner(secret string) *ApprovalSigner {
	return &ApprovalSigner{secret: []byte(secret)}
}

func (s *ApprovalSigner) Issue(proposalID string, expiresAt time.Time) (string, error) {
	claims := approvalClaims{
		ProposalID: proposalID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        proposalID,
			Audience:  jwt.ClaimStrings{_approvalAudience},
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("ApprovalSigner - Issue - SignedString: %w", err)
	}

	return raw, nil
}

// ProposalID checks the signature and returns the proposal the token was issued for.
func (s *ApprovalSigner) ProposalID(raw string) (string, error) {
	t, err := jwt.ParseWithClaims(raw, &approvalClaims{}, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithoutClaimsValidation())
	if err != nil {
		return "", fmt.Errorf("ApprovalSigner - ProposalID: %w", errs.ErrNotFoundOrAccessDenied)
	}

	c, ok := t.Claims.(*approvalClaims)
	if !ok || c.ProposalID == "" {
		return "", fmt.Errorf("ApprovalSigner - ProposalID: %w", errs.ErrNotFoundOrAccessDenied)
	}

	return c.ProposalID, nil
}

func (s *ApprovalSigner) Hash(raw string) string {
	return Hash(raw)
}

// Hash is the at-rest form of a raw token.
func Hash(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

type identityClaims struct {
	TenantID string `json:"tenant_id"`
	jwt.RegisteredClaims
}

// IdentityVerifier turns the identity provider's bearer token into a tenant id.
type IdentityVerifier struct {
	secret []byte
}

func NewIdentityVerifier(secret string) *IdentityVerifier {
	return &IdentityVerifier{secret: []byte(secret)}
}

func (v *IdentityVerifier) TenantID(raw string) (string, error) {
	t, err := jwt.ParseWithClaims(raw, &identityClaims{}, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("IdentityVerifier - TenantID - expired: %w", errs.ErrUnauthorized)
		}
		return "", fmt.Errorf("IdentityVerifier - TenantID: %w", errs.ErrUnauthorized)
	}

	c, ok := t.Claims.(*identityClaims)
	if !ok || !t.Valid {
		return "", fmt.Errorf("IdentityVerifier - TenantID - invalid claims: %w", errs.ErrUnauthorized)
	}

	if c.TenantID != "" {
		return c.TenantID, nil
	}
	if c.Subject != "" {
		return c.Subject, nil
	}

	return "", fmt.Errorf("IdentityVerifier - TenantID - no tenant: %w", errs.ErrUnauthorized)
}

// Issue signs an identity token; used by local tooling and tests.
func (v *IdentityVerifier) Issue(tenantID string, ttl time.Duration) (string, error) {
	claims := identityClaims{
		TenantID: tenantID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   tenantID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}

	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("IdentityVerifier - Issue - SignedString: %w", err)
	}

	return raw, nil
}
