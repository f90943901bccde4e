package httptransport

import (
	"time"

	credmodels "credvault/internal/credential/models"
	"credvault/internal/disclosure/broker"
	"credvault/internal/disclosure/models"
)

// credentialResponse mirrors the persisted record field names.
type credentialResponse struct {
	ID             string              `json:"id"`
	WalletAddress  string              `json:"wallet_address,omitempty"`
	CandidateEmail string              `json:"candidate_email,omitempty"`
	SchemaID       string              `json:"schema_id"`
	SBTID          string              `json:"sbt_id,omitempty"`
	CommitmentHash string              `json:"commitment_hash"`
	Summary        *credmodels.Summary `json:"summary,omitempty"`
	StorageKey     string              `json:"storage_key"`
	Status         string              `json:"status"`
	BlockchainID   string              `json:"blockchain_id,omitempty"`
	BlockchainTxID string              `json:"blockchain_tx_id,omitempty"`
	IssuedAt       time.Time           `json:"issued_at"`
	ExpiryAt       time.Time           `json:"expiry_at"`
	MintedAt       *time.Time          `json:"minted_at,omitempty"`
	Revoked        bool                `json:"revoked"`
}

func toCredentialResponse(rec *credmodels.Record) credentialResponse {
	return credentialResponse{
		ID:             rec.ID.String(),
		WalletAddress:  rec.WalletAddress,
		CandidateEmail: rec.CandidateEmail,
		SchemaID:       rec.SchemaID,
		SBTID:          rec.SBTID,
		CommitmentHash: rec.CommitmentHash,
		Summary:        rec.Summary,
		StorageKey:     rec.StorageKey,
		Status:         string(rec.Status),
		BlockchainID:   rec.BlockchainID,
		BlockchainTxID: rec.BlockchainTxID,
		IssuedAt:       rec.IssuedAt,
		ExpiryAt:       rec.ExpiryAt,
		MintedAt:       rec.MintedAt,
		Revoked:        rec.Status == credmodels.StatusRevoked,
	}
}

func toCredentialResponses(records []*credmodels.Record) []credentialResponse {
	out := make([]credentialResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, toCredentialResponse(rec))
	}
	return out
}

// shareTokenResponse mirrors the share token record field names.
type shareTokenResponse struct {
	Token        string    `json:"token"`
	CredentialID string    `json:"credential_id"`
	ExpiresAt    time.Time `json:"expires_at"`
}

func toShareTokenResponse(token *models.ShareToken) shareTokenResponse {
	return shareTokenResponse{
		Token:        token.Token,
		CredentialID: token.CredentialID.String(),
		ExpiresAt:    token.ExpiresAt,
	}
}

// previewResponse is the free summary view of a shared credential.
type previewResponse struct {
	CredentialID string              `json:"credential_id"`
	SchemaID     string              `json:"schema_id"`
	Status       string              `json:"status"`
	Summary      *credmodels.Summary `json:"summary,omitempty"`
	SBTID        string              `json:"sbt_id,omitempty"`
	IssuedAt     time.Time           `json:"issued_at"`
}

func toPreviewResponse(p *broker.Preview) previewResponse {
	return previewResponse{
		CredentialID: p.CredentialID.String(),
		SchemaID:     p.SchemaID,
		Status:       string(p.Status),
		Summary:      p.Summary,
		SBTID:        p.SBTID,
		IssuedAt:     p.IssuedAt,
	}
}

// payResponse mirrors the view token record field names.
type payResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// viewResponse is the paid disclosure. When the full report cannot be
// produced, report is omitted, report_available is false, and note explains
// without detail.
type viewResponse struct {
	CredentialID    string              `json:"credential_id"`
	SchemaID        string              `json:"schema_id"`
	Status          string              `json:"status"`
	Summary         *credmodels.Summary `json:"summary,omitempty"`
	CommitmentHash  string              `json:"commitment_hash"`
	Report          map[string]any      `json:"report,omitempty"`
	ReportAvailable bool                `json:"report_available"`
	Note            string              `json:"note,omitempty"`
}

func toViewResponse(v *broker.View) viewResponse {
	return viewResponse{
		CredentialID:    v.CredentialID.String(),
		SchemaID:        v.SchemaID,
		Status:          string(v.Status),
		Summary:         v.Summary,
		CommitmentHash:  v.CommitmentHash,
		Report:          v.Report,
		ReportAvailable: v.ReportAvailable,
		Note:            v.Note,
	}
}
