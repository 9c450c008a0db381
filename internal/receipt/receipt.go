// Package receipt dispatches receipt requests for committed sales over kafka.
package receipt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const EventType = "ReceiptRequested"

type Requested struct {
	SaleID      string    `json:"sale_id"`
	TerminalID  string    `json:"terminal_id,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

// Publisher asks the back office to print a receipt by publishing a
// ReceiptRequested event keyed by sale id.
type Publisher struct {
	writer     *kafka.Writer
	terminalID string
	now        func() time.Time
}

func NewPublisher(topic, terminalID string, brokers ...string) *Publisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return &Publisher{writer: w, terminalID: terminalID, now: time.Now}
}

func (p *Publisher) Print(ctx context.Context, saleID string) error {
	msg, err := p.message(saleID)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish receipt request: %w", err)
	}
	return nil
}

func (p *Publisher) message(saleID string) (kafka.Message, error) {
	payload, err := json.Marshal(Requested{SaleID: saleID, TerminalID: p.terminalID, RequestedAt: p.now().UTC()})
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to marshal receipt request: %w", err)
	}
	return kafka.Message{
		Key:   []byte(saleID), // sale id for ordering
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventType)},
		},
	}, nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// Handler prints the receipt for one request.
type Handler func(ctx context.Context, req Requested) error

type Consumer struct {
	reader *kafka.Reader
	handle Handler
	logger *zap.Logger
}

func NewConsumer(topic, groupID string, handle Handler, logger *zap.Logger, brokers ...string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{reader: reader, handle: handle, logger: logger}
}

func (c *Consumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		c.processMessage(ctx)
	}
}

func (c *Consumer) Close() {
	if err := c.reader.Close(); err != nil {
		c.logger.Warn("error closing kafka reader", zap.Error(err))
	}
}

func (c *Consumer) processMessage(ctx context.Context) {
	m, err := c.reader.ReadMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		c.logger.Warn("error reading message", zap.Error(err))
		return
	}

	req, err := decode(m)
	if err != nil {
		c.logger.Warn("skipping receipt message", zap.Int64("offset", m.Offset), zap.Error(err))
		return
	}
	if err := c.handle(ctx, req); err != nil {
		c.logger.Warn("failed to print receipt", zap.String("sale_id", req.SaleID), zap.Error(err))
		return
	}
	c.logger.Info("receipt printed", zap.String("sale_id", req.SaleID))
}

func decode(m kafka.Message) (Requested, error) {
	for _, h := range m.Headers {
		if h.Key == "event_type" && string(h.Value) != EventType {
			return Requested{}, fmt.Errorf("unexpected event type %q", h.Value)
		}
	}
	var req Requested
	if err := json.Unmarshal(m.Value, &req); err != nil {
		return Requested{}, fmt.Errorf("error parsing message: %w", err)
	}
	if req.SaleID == "" {
		return Requested{}, errors.New("missing sale_id")
	}
	return req, nil
}
