// Package events publishes receipt lifecycle events for downstream
// consumers (reporting, notifications). Publishing is fire-and-forget:
// issuance never fails because the broker is down.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"fiscal-service/internal/domain"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type ReceiptIssuedEvent struct {
	ReceiptID  int64     `json:"receipt_id"`
	PaymentID  int64     `json:"payment_id"`
	CompanyID  int64     `json:"company_id"`
	ExternalID string    `json:"external_id"`
	FiscalCode string    `json:"fiscal_code,omitempty"`
	Amount     string    `json:"amount"`
	IssuedAt   time.Time `json:"issued_at"`
}

type Publisher struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// NewPublisher builds a kafka publisher. A nil *Publisher is valid and
// publishes nothing, so the broker stays optional per environment.
func NewPublisher(brokers []string, topic string, logger *zap.Logger) *Publisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		BatchTimeout: 10 * time.Millisecond,
	}
	return &Publisher{writer: writer, logger: logger}
}

// ReceiptIssued publishes one issued-receipt event keyed by company so a
// tenant's events stay ordered within a partition.
func (p *Publisher) ReceiptIssued(ctx context.Context, receipt *domain.Receipt) {
	if p == nil {
		return
	}

	event := ReceiptIssuedEvent{
		ReceiptID:  receipt.ID,
		PaymentID:  receipt.PaymentID,
		CompanyID:  receipt.CompanyID,
		ExternalID: receipt.ExternalID,
		FiscalCode: receipt.FiscalCode,
		Amount:     receipt.Amount.StringFixed(2),
		IssuedAt:   receipt.IssuedAt,
	}

	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("failed to marshal receipt event", zap.Error(err))
		return
	}

	msg := kafka.Message{
		Key:   []byte(fmt.Sprintf("company-%d", receipt.CompanyID)),
		Value: payload,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Warn("failed to publish receipt event",
			zap.Int64("receipt_id", receipt.ID),
			zap.Error(err))
	}
}

func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.writer.Close()
}
