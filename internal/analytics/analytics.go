// Package analytics records search activity in ClickHouse for product
// analytics and audit history. Recording is best-effort: a sink failure is
// logged and never fails the request that produced the event.
package analytics

import (
	"context"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SearchEvent is one executed recommend/search request.
type SearchEvent struct {
	Mode        string // "recommend" or "search"
	UserID      string
	Query       string
	Page        int
	ResultCount int
	Total       int
	Cached      bool
	Duration    time.Duration
}

type Sink struct {
	conn   clickhouse.Conn
	logger *zap.Logger
}

func NewSink(conn clickhouse.Conn, logger *zap.Logger) *Sink {
	return &Sink{conn: conn, logger: logger}
}

// EnsureSchema creates the search_events table if needed.
func (s *Sink) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS search_events (
			id UUID,
			mode String,
			user_id String,
			query String,
			page Int32,
			result_count Int32,
			total Int32,
			cached UInt8,
			duration_ms Int64,
			created_at DateTime,
			PRIMARY KEY (id)
		) ENGINE = MergeTree()
		PARTITION BY toYYYYMM(created_at)
		ORDER BY (id, created_at)
	`
	return s.conn.Exec(ctx, query)
}

func (s *Sink) Record(ctx context.Context, event SearchEvent) {
	query := `
		INSERT INTO search_events (
			id, mode, user_id, query, page, result_count, total,
			cached, duration_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	cached := uint8(0)
	if event.Cached {
		cached = 1
	}

	if err := s.conn.Exec(ctx, query,
		uuid.NewString(),
		event.Mode,
		event.UserID,
		event.Query,
		int32(event.Page),
		int32(event.ResultCount),
		int32(event.Total),
		cached,
		event.Duration.Milliseconds(),
		time.Now().UTC(),
	); err != nil {
		s.logger.Warn("failed to record search event",
			zap.String("mode", event.Mode),
			zap.Error(err))
	}
}
