package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// PostgresStore persists audit events in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	var detail []byte
	if len(event.Detail) > 0 {
		b, err := json.Marshal(event.Detail)
		if err != nil {
			return fmt.Errorf("marshal audit detail: %w", err)
		}
		detail = b
	}
	query := `
		INSERT INTO audit_events (event_type, credential_id, actor, detail, occurred_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	var credID any
	if event.CredentialID != uuid.Nil {
		credID = event.CredentialID
	}
	if _, err := s.db.ExecContext(ctx, query,
		string(event.Action), credID, event.Actor, detail, event.Timestamp,
	); err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByCredential(ctx context.Context, credentialID uuid.UUID) ([]Event, error) {
	query := `
		SELECT event_type, credential_id, actor, detail, occurred_at
		FROM audit_events
		WHERE credential_id = $1
		ORDER BY occurred_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, credentialID)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var action string
		var credID sql.NullString
		var detail []byte
		if err := rows.Scan(&action, &credID, &e.Actor, &detail, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.Action = Action(action)
		if credID.Valid {
			if id, err := uuid.Parse(credID.String); err == nil {
				e.CredentialID = id
			}
		}
		if len(detail) > 0 {
			if err := json.Unmarshal(detail, &e.Detail); err != nil {
				return nil, fmt.Errorf("unmarshal audit detail: %w", err)
			}
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
