package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"credvault/internal/disclosure/models"
	"credvault/internal/sentinel"
)

// PostgresStore persists disclosure tokens in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed token store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) InsertShare(ctx context.Context, token *models.ShareToken) error {
	query := `
		INSERT INTO share_tokens (token, credential_id, used, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.db.ExecContext(ctx, query,
		token.Token, token.CredentialID, token.Used, token.CreatedAt, token.ExpiresAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrAlreadyExists
		}
		return fmt.Errorf("insert share token: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindShare(ctx context.Context, token string) (*models.ShareToken, error) {
	query := `
		SELECT token, credential_id, used, created_at, expires_at
		FROM share_tokens
		WHERE token = $1
	`
	var st models.ShareToken
	err := s.db.QueryRowContext(ctx, query, token).Scan(
		&st.Token, &st.CredentialID, &st.Used, &st.CreatedAt, &st.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find share token: %w", err)
	}
	return &st, nil
}

// MarkShareUsed is the single-use gate: the conditional UPDATE either flips
// used for exactly one caller or affects zero rows for everyone else. No
// row-level locking is needed beyond the statement itself.
func (s *PostgresStore) MarkShareUsed(ctx context.Context, token string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE share_tokens SET used = TRUE WHERE token = $1 AND used = FALSE`, token)
	if err != nil {
		return fmt.Errorf("mark share token used: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark share token used rows: %w", err)
	}
	if rows == 1 {
		return nil
	}

	// Zero rows: either the token never existed or it was already spent.
	var used bool
	err = s.db.QueryRowContext(ctx, `SELECT used FROM share_tokens WHERE token = $1`, token).Scan(&used)
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check share token: %w", err)
	}
	return sentinel.ErrAlreadyUsed
}

func (s *PostgresStore) InsertView(ctx context.Context, token *models.ViewToken) error {
	query := `
		INSERT INTO view_tokens (token, credential_id, created_at, expires_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := s.db.ExecContext(ctx, query,
		token.Token, token.CredentialID, token.CreatedAt, token.ExpiresAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrAlreadyExists
		}
		return fmt.Errorf("insert view token: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindView(ctx context.Context, token string) (*models.ViewToken, error) {
	query := `
		SELECT token, credential_id, created_at, expires_at
		FROM view_tokens
		WHERE token = $1
	`
	var vt models.ViewToken
	err := s.db.QueryRowContext(ctx, query, token).Scan(
		&vt.Token, &vt.CredentialID, &vt.CreatedAt, &vt.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find view token: %w", err)
	}
	return &vt, nil
}

// PostgresAccessLog records paid disclosures in PostgreSQL.
type PostgresAccessLog struct {
	db *sql.DB
}

// NewPostgresAccessLog constructs a PostgreSQL-backed access log.
func NewPostgresAccessLog(db *sql.DB) *PostgresAccessLog {
	return &PostgresAccessLog{db: db}
}

func (s *PostgresAccessLog) Append(ctx context.Context, entry models.AccessLogEntry) error {
	query := `
		INSERT INTO access_logs (credential_id, employer, accessed_at)
		VALUES ($1, $2, $3)
	`
	if _, err := s.db.ExecContext(ctx, query, entry.CredentialID, entry.Employer, entry.AccessedAt); err != nil {
		return fmt.Errorf("append access log: %w", err)
	}
	return nil
}

func (s *PostgresAccessLog) ListByCredential(ctx context.Context, credentialID uuid.UUID) ([]models.AccessLogEntry, error) {
	query := `
		SELECT credential_id, employer, accessed_at
		FROM access_logs
		WHERE credential_id = $1
		ORDER BY accessed_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, credentialID)
	if err != nil {
		return nil, fmt.Errorf("list access logs: %w", err)
	}
	defer rows.Close()

	var entries []models.AccessLogEntry
	for rows.Next() {
		var e models.AccessLogEntry
		if err := rows.Scan(&e.CredentialID, &e.Employer, &e.AccessedAt); err != nil {
			return nil, fmt.Errorf("scan access log: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate access logs: %w", err)
	}
	return entries, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
