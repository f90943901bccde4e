package httptransport

import (
	"time"

	"github.com/google/uuid"

	dErrors "credvault/pkg/domain-errors"
)

// issueRequest is the payload for POST /credentials. Scores drive the
// derived summary; highlights seed its bullets.
type issueRequest struct {
	WalletAddress  string             `json:"wallet_address"`
	CandidateEmail string             `json:"candidate_email"`
	SchemaID       string             `json:"schema_id"`
	Report         map[string]any     `json:"report"`
	Scores         map[string]float64 `json:"scores"`
	Highlights     []string           `json:"highlights"`
}

func (r issueRequest) Validate() error {
	if r.WalletAddress == "" && r.CandidateEmail == "" {
		return dErrors.New(dErrors.CodeValidation, "wallet_address or candidate_email is required")
	}
	if r.SchemaID == "" {
		return dErrors.New(dErrors.CodeValidation, "schema_id is required")
	}
	if len(r.Report) == 0 {
		return dErrors.New(dErrors.CodeValidation, "report must not be empty")
	}
	if len(r.Scores) == 0 {
		return dErrors.New(dErrors.CodeValidation, "scores must not be empty")
	}
	return nil
}

// mintRequest is the payload for PATCH /credentials/{id}/mint.
type mintRequest struct {
	SBTID        string `json:"sbt_id"`
	TxID         string `json:"tx_id"`
	BlockchainID string `json:"blockchain_id"`
}

func (r mintRequest) Validate() error {
	if r.SBTID == "" {
		return dErrors.New(dErrors.CodeValidation, "sbt_id is required")
	}
	if r.TxID == "" {
		return dErrors.New(dErrors.CodeValidation, "tx_id is required")
	}
	return nil
}

// shareRequest is the payload for POST /share.
type shareRequest struct {
	CredentialID string `json:"credential_id"`
	TTLSeconds   int    `json:"ttl_seconds"`
}

func (r shareRequest) Validate() error {
	if r.CredentialID == "" {
		return dErrors.New(dErrors.CodeValidation, "credential_id is required")
	}
	if _, err := uuid.Parse(r.CredentialID); err != nil {
		return dErrors.New(dErrors.CodeValidation, "credential_id must be a UUID")
	}
	if r.TTLSeconds < 0 {
		return dErrors.New(dErrors.CodeValidation, "ttl_seconds must not be negative")
	}
	return nil
}

func (r shareRequest) credentialID() uuid.UUID {
	id, _ := uuid.Parse(r.CredentialID)
	return id
}

func (r shareRequest) ttl() time.Duration {
	return time.Duration(r.TTLSeconds) * time.Second
}

// previewRequest is the payload for POST /verify/preview.
type previewRequest struct {
	Token string `json:"token"`
}

func (r previewRequest) Validate() error {
	if r.Token == "" {
		return dErrors.New(dErrors.CodeValidation, "token is required")
	}
	return nil
}

// payRequest is the payload for POST /verify/pay.
type payRequest struct {
	Token    string `json:"token"`
	Employer string `json:"employer"`
}

func (r payRequest) Validate() error {
	if r.Token == "" {
		return dErrors.New(dErrors.CodeValidation, "token is required")
	}
	return nil
}
