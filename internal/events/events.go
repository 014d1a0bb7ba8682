// Package events publishes stock changes to other services. Publishing is
// best effort: callers log failures and never roll back on them.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"kitchen-backend/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// StockAdjusted is emitted after a stock adjustment commits.
type StockAdjusted struct {
	AdjustmentID   uint                  `json:"adjustment_id"`
	SKU            string                `json:"sku"`
	Type           models.AdjustmentType `json:"adjustment_type"`
	QuantityChange decimal.Decimal       `json:"quantity_change"`
	StockAfter     decimal.Decimal       `json:"stock_after"`
	Status         string                `json:"status"`
	CostImpact     decimal.Decimal       `json:"cost_impact"`
	OrderID        *uint                 `json:"order_id,omitempty"`
	RecipeID       *uint                 `json:"recipe_id,omitempty"`
	OccurredAt     time.Time             `json:"occurred_at"`
}

func NewStockAdjusted(adj *models.StockAdjustment, ing *models.Ingredient) StockAdjusted {
	return StockAdjusted{
		AdjustmentID:   adj.ID,
		SKU:            adj.IngredientSKU,
		Type:           adj.Type,
		QuantityChange: adj.QuantityChange,
		StockAfter:     adj.StockAfter,
		Status:         ing.Status,
		CostImpact:     adj.CostImpact,
		OrderID:        adj.OrderID,
		RecipeID:       adj.RecipeID,
		OccurredAt:     adj.CreatedAt,
	}
}

type Publisher interface {
	PublishStockAdjusted(ctx context.Context, e StockAdjusted) error
	Close() error
}

// MessageWriter is the part of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer MessageWriter
	logger *zap.Logger
}

func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
}

func NewKafkaPublisher(w MessageWriter, logger *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: w, logger: logger.Named("events")}
}

// PublishStockAdjusted keys messages by SKU so one ingredient's events stay
// ordered within a partition.
func (p *KafkaPublisher) PublishStockAdjusted(ctx context.Context, e StockAdjusted) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding stock event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(e.SKU),
		Value: payload,
		Time:  e.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte("stock.adjusted")},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publishing stock event for %s: %w", e.SKU, err)
	}
	p.logger.Debug("stock event published", zap.String("sku", e.SKU), zap.Uint("adjustment_id", e.AdjustmentID))
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Nop drops every event. Used when no brokers are configured.
type Nop struct{}

func (Nop) PublishStockAdjusted(context.Context, StockAdjusted) error { return nil }
func (Nop) Close() error                                            { return nil }
