package domain

import (
	"encoding/json"
	"time"
)

// OutboxEvent is a row of the outbox table written in the same transaction
// as the aggregate change it describes.
type OutboxEvent struct {
	ID            int64           `db:"id"`
	AggregateType string          `db:"aggregate_type"`
	AggregateID   string          `db:"aggregate_id"`
	EventType     string          `db:"event_type"`
	Payload       json.RawMessage `db:"payload"`
	Topic         string          `db:"topic"`
	CreatedAt     time.Time       `db:"created_at"`
	PublishedAt   *time.Time      `db:"published_at"`
	Attempts      int64           `db:"attempts"`
	LastError     *string         `db:"last_error"`
}
