package token

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/andreyxaxa/Reschedule-Engine/internal/dto"
	"github.com/andreyxaxa/Reschedule-Engine/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMinter(t *testing.T) {
	signer := NewApprovalSigner("approval-secret")
	m := NewMinter(signer)

	exp := time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC)
	body, err := json.Marshal(dto.ApprovalRequest{ProposalID: "p-1", EventID: "e-1", Approver: "a@example.com", ExpiresAt: exp})
	require.NoError(t, err)

	stored := &entity.OutboxNotification{ID: "n-1", TemplateID: entity.TemplateApprovalRequest, Payload: body}
	minted, err := m.Mint(stored)
	require.NoError(t, err)

	var got dto.ApprovalRequest
	require.NoError(t, json.Unmarshal(minted.Payload, &got))
	want, err := signer.Issue("p-1", exp)
	require.NoError(t, err)
	assert.Equal(t, want, got.Token)
	assert.Equal(t, "n-1", minted.ID)
	assert.NotContains(t, string(stored.Payload), want, "the stored row is left untouched")

	id, err := signer.ProposalID(got.Token)
	require.NoError(t, err)
	assert.Equal(t, "p-1", id)

	other, err := m.Mint(&entity.OutboxNotification{ID: "n-2", TemplateID: entity.TemplateProposalApplied, Payload: []byte(`{}`)})
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(other.Payload))

	_, err = m.Mint(&entity.OutboxNotification{ID: "n-3", TemplateID: entity.TemplateApprovalRequest, Payload: []byte(`nope`)})
	assert.Error(t, err)
}
