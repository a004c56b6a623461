// Package resume exposes the read side of the résumé subsystem. Upload and
// AI extraction live elsewhere; the pipeline only needs the latest parsed
// résumé for a user.
package resume

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ajeetk7ev/JobLytic/internal/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Resume is the parsed résumé record as the extraction pipeline stores it.
// Experience entries are opaque to the recommender; only their count is used.
type Resume struct {
	ID         string            `json:"id"`
	UserID     string            `json:"userId"`
	Skills     []string          `json:"skills"`
	Experience []json.RawMessage `json:"experience"`
	CreatedAt  time.Time         `json:"createdAt"`
}

// Provider returns the most recently created résumé for a user, or nil when
// the user has never uploaded one.
type Provider interface {
	Latest(ctx context.Context, userID string) (*Resume, error)
}

type postgresProvider struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewPostgresProvider(pool *pgxpool.Pool, logger *zap.Logger) Provider {
	return &postgresProvider{pool: pool, logger: logger}
}

// resumeData mirrors the jsonb `data` column written by the extraction
// pipeline.
type resumeData struct {
	Skills     []string          `json:"skills"`
	Experience []json.RawMessage `json:"experience"`
}

func (p *postgresProvider) Latest(ctx context.Context, userID string) (*Resume, error) {
	var (
		r    Resume
		data []byte
	)
	err := p.pool.QueryRow(ctx,
		`SELECT id, user_id, data, created_at
		 FROM resumes
		 WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT 1`,
		userID,
	).Scan(&r.ID, &r.UserID, &data, &r.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Persistence("querying latest resume", err)
	}

	var parsed resumeData
	if err := json.Unmarshal(data, &parsed); err != nil {
		p.logger.Warn("resume data column is not valid JSON",
			zap.String("user_id", userID),
			zap.Error(err))
		return &r, nil
	}
	r.Skills = parsed.Skills
	r.Experience = parsed.Experience

	return &r, nil
}
