package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"credvault/internal/credential/models"
	"credvault/internal/sentinel"
	"credvault/internal/vault"
)

// PostgresStore persists credential records in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed credential store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const credentialColumns = `
	id, wallet_address, candidate_email, schema_id, sbt_id, commitment_hash,
	summary, storage_key, status, blockchain_id, blockchain_tx_id,
	issued_at, expiry_at, minted_at, revoked_at
`

func (s *PostgresStore) Insert(ctx context.Context, rec *models.Record) error {
	if rec == nil {
		return fmt.Errorf("credential record is required")
	}
	summary, err := marshalSummary(rec.Summary)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO credentials (` + credentialColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err = s.db.ExecContext(ctx, query,
		rec.ID,
		rec.WalletAddress,
		rec.CandidateEmail,
		rec.SchemaID,
		nullString(rec.SBTID),
		rec.CommitmentHash,
		summary,
		rec.StorageKey,
		string(rec.Status),
		nullString(rec.BlockchainID),
		nullString(rec.BlockchainTxID),
		rec.IssuedAt,
		rec.ExpiryAt,
		rec.MintedAt,
		rec.RevokedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrAlreadyExists
		}
		return fmt.Errorf("insert credential: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Record, error) {
	query := `SELECT` + credentialColumns + `FROM credentials WHERE id = $1`
	rec, err := scanCredential(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find credential: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) ListByOwner(ctx context.Context, ownerRef string) ([]*models.Record, error) {
	query := `
		SELECT` + credentialColumns + `
		FROM credentials
		WHERE wallet_address = $1 OR candidate_email = $1
		ORDER BY issued_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, ownerRef)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer rows.Close()

	var records []*models.Record
	for rows.Next() {
		rec, err := scanCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credentials: %w", err)
	}
	return records, nil
}

// UpdateStatus locks the row, verifies the expected state, applies the
// mutation, and writes back. Losing the state check maps to ErrRevoked when
// the record is terminally revoked and ErrInvalidState otherwise, so callers
// can distinguish a lost race from a missing record.
func (s *PostgresStore) UpdateStatus(ctx context.Context, id uuid.UUID, from models.Status, apply func(*models.Record)) (*models.Record, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin status update tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `SELECT` + credentialColumns + `FROM credentials WHERE id = $1 FOR UPDATE`
	rec, err := scanCredential(tx.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find credential for update: %w", err)
	}
	if rec.Status != from {
		if rec.Status == models.StatusRevoked {
			return nil, sentinel.ErrRevoked
		}
		return nil, sentinel.ErrInvalidState
	}

	apply(rec)

	summary, err := marshalSummary(rec.Summary)
	if err != nil {
		return nil, err
	}
	update := `
		UPDATE credentials
		SET sbt_id = $2, summary = $3, status = $4, blockchain_id = $5,
		    blockchain_tx_id = $6, minted_at = $7, revoked_at = $8
		WHERE id = $1
	`
	if _, err := tx.ExecContext(ctx, update,
		rec.ID,
		nullString(rec.SBTID),
		summary,
		string(rec.Status),
		nullString(rec.BlockchainID),
		nullString(rec.BlockchainTxID),
		rec.MintedAt,
		rec.RevokedAt,
	); err != nil {
		return nil, fmt.Errorf("update credential status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit status update: %w", err)
	}
	return rec, nil
}

// PostgresBlobStore persists encrypted report envelopes in PostgreSQL.
// The envelope is stored as JSONB; the key has a uniqueness constraint so
// blobs are write-once.
type PostgresBlobStore struct {
	db *sql.DB
}

// NewPostgresBlob constructs a PostgreSQL-backed blob store.
func NewPostgresBlob(db *sql.DB) *PostgresBlobStore {
	return &PostgresBlobStore{db: db}
}

func (s *PostgresBlobStore) Upload(ctx context.Context, key string, env vault.Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	query := `
		INSERT INTO report_blobs (storage_key, envelope, created_at)
		VALUES ($1, $2, now())
		ON CONFLICT (storage_key) DO NOTHING
	`
	res, err := s.db.ExecContext(ctx, query, key, payload)
	if err != nil {
		return fmt.Errorf("upload blob: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("upload blob rows: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrAlreadyExists
	}
	return nil
}

func (s *PostgresBlobStore) Download(ctx context.Context, key string) (vault.Envelope, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT envelope FROM report_blobs WHERE storage_key = $1`, key).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return vault.Envelope{}, sentinel.ErrNotFound
		}
		return vault.Envelope{}, fmt.Errorf("download blob: %w", err)
	}
	var env vault.Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return vault.Envelope{}, fmt.Errorf("unmarshal envelope: %w", err)
	}
	return env, nil
}

type credentialRow interface {
	Scan(dest ...any) error
}

func scanCredential(row credentialRow) (*models.Record, error) {
	var rec models.Record
	var sbtID, blockchainID, blockchainTxID sql.NullString
	var summary []byte
	var status string
	var mintedAt, revokedAt sql.NullTime
	err := row.Scan(
		&rec.ID,
		&rec.WalletAddress,
		&rec.CandidateEmail,
		&rec.SchemaID,
		&sbtID,
		&rec.CommitmentHash,
		&summary,
		&rec.StorageKey,
		&status,
		&blockchainID,
		&blockchainTxID,
		&rec.IssuedAt,
		&rec.ExpiryAt,
		&mintedAt,
		&revokedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.SBTID = sbtID.String
	rec.BlockchainID = blockchainID.String
	rec.BlockchainTxID = blockchainTxID.String
	rec.Status = models.Status(status)
	if len(summary) > 0 {
		var s models.Summary
		if err := json.Unmarshal(summary, &s); err != nil {
			return nil, fmt.Errorf("unmarshal summary: %w", err)
		}
		rec.Summary = &s
	}
	if mintedAt.Valid {
		rec.MintedAt = &mintedAt.Time
	}
	if revokedAt.Valid {
		rec.RevokedAt = &revokedAt.Time
	}
	return &rec, nil
}

func marshalSummary(s *models.Summary) ([]byte, error) {
	if s == nil {
		return nil, nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal summary: %w", err)
	}
	return b, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
