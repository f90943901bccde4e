package audit

import (
	"time"

	"github.com/google/uuid"
)

// Event is emitted from domain logic to capture key credential and
// disclosure actions. Keep it transport-agnostic so stores and sinks can
// fan out.
type Event struct {
	Timestamp    time.Time
	Action       Action
	CredentialID uuid.UUID
	Actor        string
	Detail       map[string]string
}

type Action string

const (
	ActionCredentialIssued  Action = "credential_issued"
	ActionMintConfirmed     Action = "mint_confirmed"
	ActionCredentialRevoked Action = "credential_revoked"
	ActionShareTokenCreated Action = "share_token_created"
	ActionDisclosurePaid    Action = "disclosure_paid"
	ActionReportViewed      Action = "report_viewed"
	ActionReportUnavailable Action = "report_unavailable"
)
