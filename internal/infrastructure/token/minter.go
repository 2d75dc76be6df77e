package token

import (
	"encoding/json"
	"fmt"

	"github.com/andreyxaxa/Reschedule-Engine/internal/dto"
	"github.com/andreyxaxa/Reschedule-Engine/internal/entity"
)

// Minter puts the approver token into approval requests as they are claimed.
type Minter struct {
	signer *ApprovalSigner
}

func NewMinter(signer *ApprovalSigner) *Minter {
	return &Minter{signer: signer}
}

func (m *Minter) Mint(n *entity.OutboxNotification) (*entity.OutboxNotification, error) {
	out := *n
	if n.TemplateID != entity.TemplateApprovalRequest {
		return &out, nil
	}

	var req dto.ApprovalRequest
	if err := json.Unmarshal(n.Payload, &req); err != nil {
		return nil, fmt.Errorf("Minter - Mint - json.Unmarshal: %w", err)
	}

	raw, err := m.signer.Issue(req.ProposalID, req.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("Minter - Mint - m.signer.Issue: %w", err)
	}
	req.Token = raw

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("Minter - Mint - json.Marshal: %w", err)
	}
	out.Payload = payload

	return &out, nil
}
