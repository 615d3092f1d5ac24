package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryEntry struct {
	id           string
	body         []byte
	receiveCount int
	visibleAt    time.Time
	receipt      string
}

// Memory is an in-process Queue with the same visibility semantics as
// the Postgres queue.
type Memory struct {
	mu         sync.Mutex
	entries    []*memoryEntry
	visibility time.Duration
	now        func() time.Time
}

var _ Queue = (*Memory)(nil)

// NewMemory builds an empty in-process queue.
func NewMemory(visibility time.Duration) *Memory {
	if visibility <= 0 {
		visibility = DefaultVisibilityTimeout
	}
	return &Memory{visibility: visibility, now: time.Now}
}

// WithClock overrides the time source, for tests.
func (q *Memory) WithClock(now func() time.Time) *Memory {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.now = now
	return q
}

func (q *Memory) Send(_ context.Context, body []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.entries = append(q.entries, &memoryEntry{
		id:        uuid.NewString(),
		body:      append([]byte(nil), body...),
		visibleAt: q.now(),
	})
	return nil
}

func (q *Memory) Receive(ctx context.Context, max int) ([]Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if max <= 0 {
		max = 1
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	var messages []Message
	for _, entry := range q.entries {
		if len(messages) == max {
			break
		}
		if entry.visibleAt.After(now) {
			continue
		}
		entry.receiveCount++
		entry.visibleAt = now.Add(q.visibility)
		entry.receipt = uuid.NewString()
		messages = append(messages, Message{
			ID:            entry.id,
			ReceiptHandle: entry.receipt,
			Body:          append([]byte(nil), entry.body...),
			ReceiveCount:  entry.receiveCount,
		})
	}
	return messages, nil
}

func (q *Memory) Delete(_ context.Context, receiptHandle string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, entry := range q.entries {
		if entry.receipt == receiptHandle {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return nil
		}
	}
	return ErrMessageNotFound
}

// Release makes every in-flight message visible again. Tests use it to
// simulate an expired visibility timeout.
func (q *Memory) Release() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, entry := range q.entries {
		entry.visibleAt = time.Time{}
	}
}

// Len reports the number of undeleted messages.
func (q *Memory) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
