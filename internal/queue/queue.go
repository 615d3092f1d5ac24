// Package queue carries summary log commands between the HTTP surface and
// the background worker. Delivery is at-least-once: a received message is
// hidden for the visibility timeout and redelivered unless deleted.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rpattn/wastelog/internal/domain"
)

// ErrMessageNotFound is returned when deleting a message that was already
// deleted or whose receipt has expired.
var ErrMessageNotFound = errors.New("queue message not found")

// DefaultVisibilityTimeout hides a received message from other consumers.
const DefaultVisibilityTimeout = 5 * time.Minute

// Message is a single delivery.
type Message struct {
	ID            string
	ReceiptHandle string
	Body          []byte
	// ReceiveCount includes the current delivery.
	ReceiveCount int
}

// Queue is the transport used by the command consumer.
type Queue interface {
	Send(ctx context.Context, body []byte) error
	Receive(ctx context.Context, max int) ([]Message, error)
	Delete(ctx context.Context, receiptHandle string) error
}

// SendCommand encodes and enqueues a summary log command.
func SendCommand(ctx context.Context, q Queue, command domain.Command) error {
	body, err := json.Marshal(command)
	if err != nil {
		return fmt.Errorf("failed to encode command: %w", err)
	}
	if err := q.Send(ctx, body); err != nil {
		return fmt.Errorf("failed to enqueue %s command for %s: %w", command.Type, command.SummaryLogID, err)
	}
	return nil
}

// Sender adapts a Queue to the narrower interface the HTTP layer needs.
type Sender struct {
	Queue Queue
}

func (s Sender) SendValidate(ctx context.Context, summaryLogID string) error {
	return SendCommand(ctx, s.Queue, domain.Command{Type: domain.CommandValidate, SummaryLogID: summaryLogID})
}

func (s Sender) SendSubmit(ctx context.Context, summaryLogID string) error {
	return SendCommand(ctx, s.Queue, domain.Command{Type: domain.CommandSubmit, SummaryLogID: summaryLogID})
}
