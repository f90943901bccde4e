// Package chain consumes mint confirmations from the blockchain worker over
// AMQP and applies them to credentials. The worker publishes one message per
// confirmed transaction; the lifecycle service guarantees only the first
// confirmation for a credential wins.
package chain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"credvault/internal/credential/lifecycle"
	"credvault/internal/credential/models"
	dErrors "credvault/pkg/domain-errors"
)

// DefaultQueue is the queue the blockchain worker publishes confirmations to.
const DefaultQueue = "credential.mint.confirmed"

// MintConfirmedMessage is the wire shape published by the blockchain worker.
type MintConfirmedMessage struct {
	CredentialID string `json:"credential_id"`
	SBTID        string `json:"sbt_id"`
	TxID         string `json:"tx_id"`
	BlockchainID string `json:"blockchain_id"`
}

// Confirmer applies a mint confirmation. Satisfied by the lifecycle service.
type Confirmer interface {
	ConfirmMint(ctx context.Context, id uuid.UUID, ref models.MintRef) (*models.Record, error)
}

var _ Confirmer = (*lifecycle.Service)(nil)

// Consumer reads mint confirmations from RabbitMQ.
type Consumer struct {
	conn      *amqp.Connection
	channel   *amqp.Channel
	queueName string
	handler   *Handler
	logger    *slog.Logger
}

// NewConsumer opens a channel on the connection and declares the queue.
func NewConsumer(conn *amqp.Connection, queueName string, confirmer Confirmer, logger *slog.Logger) (*Consumer, error) {
	if queueName == "" {
		queueName = DefaultQueue
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare queue %s: %w", queueName, err)
	}
	return &Consumer{
		conn:      conn,
		channel:   ch,
		queueName: queueName,
		handler:   NewHandler(confirmer, logger),
		logger:    logger,
	}, nil
}

// Start consumes deliveries until the context is canceled or the channel
// closes. Deliveries are manually acked so a crash mid-apply redelivers.
func (c *Consumer) Start(ctx context.Context) error {
	deliveries, err := c.channel.Consume(c.queueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.queueName, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("amqp delivery channel closed")
			}
			if err := c.handler.Handle(ctx, d.Body); err != nil && isRetryable(err) {
				// Requeue only infrastructure failures; domain refusals
				// would redeliver forever.
				_ = d.Nack(false, true)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// Close shuts down the channel. The connection is owned by the caller.
func (c *Consumer) Close() error {
	return c.channel.Close()
}

// Handler applies one raw confirmation message. Split from the consumer so
// tests can drive it without a broker.
type Handler struct {
	confirmer Confirmer
	logger    *slog.Logger
}

func NewHandler(confirmer Confirmer, logger *slog.Logger) *Handler {
	return &Handler{confirmer: confirmer, logger: logger}
}

// Handle decodes and applies a confirmation. Malformed messages and domain
// refusals (unknown credential, repeat confirmation) return nil after
// logging: they are not fixed by redelivery.
func (h *Handler) Handle(ctx context.Context, body []byte) error {
	var msg MintConfirmedMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		h.logger.Error("malformed mint confirmation dropped", "error", err)
		return nil
	}
	credID, err := uuid.Parse(msg.CredentialID)
	if err != nil {
		h.logger.Error("mint confirmation with bad credential id dropped",
			"credential_id", msg.CredentialID,
			"error", err,
		)
		return nil
	}

	_, err = h.confirmer.ConfirmMint(ctx, credID, models.MintRef{
		SBTID:        msg.SBTID,
		TxID:         msg.TxID,
		BlockchainID: msg.BlockchainID,
	})
	if err != nil {
		switch {
		case dErrors.HasCode(err, dErrors.CodeNotFound):
			h.logger.Warn("mint confirmation for unknown credential dropped",
				"credential_id", credID,
			)
			return nil
		case dErrors.HasCode(err, dErrors.CodeConflict),
			dErrors.HasCode(err, dErrors.CodeValidation):
			h.logger.Warn("mint confirmation not applicable, dropped",
				"credential_id", credID,
				"error", err,
			)
			return nil
		}
		h.logger.Error("mint confirmation failed, will retry",
			"credential_id", credID,
			"error", err,
		)
		return err
	}

	h.logger.Info("mint confirmation applied",
		"credential_id", credID,
		"sbt_id", msg.SBTID,
	)
	return nil
}

func isRetryable(err error) bool {
	var dErr *dErrors.Error
	if errors.As(err, &dErr) {
		return dErr.Code == dErrors.CodeInternal || dErr.Code == dErrors.CodeUnavailable
	}
	return true
}
