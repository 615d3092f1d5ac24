package queue

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres stores messages in the command_queue table. Receive claims rows
// with FOR UPDATE SKIP LOCKED so concurrent workers never share a delivery.
type Postgres struct {
	pool       *pgxpool.Pool
	name       string
	visibility time.Duration
}

var _ Queue = (*Postgres)(nil)

// NewPostgres builds a queue over the named partition of command_queue.
func NewPostgres(pool *pgxpool.Pool, name string, visibility time.Duration) *Postgres {
	if visibility <= 0 {
		visibility = DefaultVisibilityTimeout
	}
	return &Postgres{pool: pool, name: name, visibility: visibility}
}

func (q *Postgres) Send(ctx context.Context, body []byte) error {
	_, err := q.pool.Exec(ctx,
		`INSERT INTO command_queue (id, queue, body) VALUES ($1, $2, $3)`,
		uuid.New(), q.name, body,
	)
	if err != nil {
		return fmt.Errorf("failed to send queue message: %w", err)
	}
	return nil
}

// Receive bumps receive_count and pushes visible_at forward in the same
// statement that claims the rows. The receipt handle is the message id
// paired with its receive count, so a stale receipt cannot delete a
// redelivered message.
func (q *Postgres) Receive(ctx context.Context, max int) ([]Message, error) {
	if max <= 0 {
		max = 1
	}

	rows, err := q.pool.Query(ctx,
		`UPDATE command_queue
		 SET receive_count = receive_count + 1,
		     visible_at = NOW() + make_interval(secs => $3)
		 WHERE id IN (
		   SELECT id FROM command_queue
		   WHERE queue = $1 AND visible_at <= NOW()
		   ORDER BY created_at
		   LIMIT $2
		   FOR UPDATE SKIP LOCKED
		 )
		 RETURNING id, body, receive_count`,
		q.name, max, q.visibility.Seconds(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to receive queue messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var (
			id  uuid.UUID
			msg Message
		)
		if err := rows.Scan(&id, &msg.Body, &msg.ReceiveCount); err != nil {
			return nil, fmt.Errorf("failed to scan queue message: %w", err)
		}
		msg.ID = id.String()
		msg.ReceiptHandle = fmt.Sprintf("%s:%d", msg.ID, msg.ReceiveCount)
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate queue messages: %w", err)
	}
	return messages, nil
}

func (q *Postgres) Delete(ctx context.Context, receiptHandle string) error {
	id, count, err := parseReceipt(receiptHandle)
	if err != nil {
		return err
	}

	tag, err := q.pool.Exec(ctx,
		`DELETE FROM command_queue WHERE id = $1 AND queue = $2 AND receive_count = $3`,
		id, q.name, count,
	)
	if err != nil {
		return fmt.Errorf("failed to delete queue message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrMessageNotFound
	}
	return nil
}

func parseReceipt(handle string) (uuid.UUID, int, error) {
	sep := strings.LastIndex(handle, ":")
	if sep < 0 {
		return uuid.Nil, 0, fmt.Errorf("invalid receipt handle %q", handle)
	}
	id, err := uuid.Parse(handle[:sep])
	if err != nil {
		return uuid.Nil, 0, fmt.Errorf("invalid receipt handle %q: %w", handle, err)
	}
	count, err := strconv.Atoi(handle[sep+1:])
	if err != nil {
		return uuid.Nil, 0, fmt.Errorf("invalid receipt handle %q: %w", handle, err)
	}
	return id, count, nil
}
