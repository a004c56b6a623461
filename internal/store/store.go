// Package store persists job postings and the query log in PostgreSQL.
// Postings are append-mostly: an upsert on a known external_id is a no-op
// and the original row wins. Freshness is enforced at read time via the
// expires_at column, never by deleting rows.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ajeetk7ev/JobLytic/internal/errors"
	"github.com/ajeetk7ev/JobLytic/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// FreshnessWindow is how long a posting stays eligible for fresh reads after
// first ingestion.
const FreshnessWindow = 24 * time.Hour

// recentMatchLimit caps FindRecentMatching results.
const recentMatchLimit = 50

type Store struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func New(pool *pgxpool.Pool, logger *zap.Logger) *Store {
	return &Store{pool: pool, logger: logger}
}

const postingColumns = "data, ingested_at, expires_at"

// Upsert ingests one posting keyed by its external id. First write wins: if
// the id already exists the stored row is returned unchanged, regardless of
// differing secondary fields in the new payload. A posting arriving with a
// pre-set ExpiresAt keeps it; otherwise the freshness window is stamped from
// the current time.
func (s *Store) Upsert(ctx context.Context, posting models.JobPosting) (*models.JobPosting, error) {
	if posting.ExternalID == "" {
		return nil, errors.Validation("posting has no external id", nil)
	}

	now := time.Now().UTC()
	if posting.IngestedAt.IsZero() {
		posting.IngestedAt = now
	}
	if posting.ExpiresAt.IsZero() {
		posting.ExpiresAt = posting.IngestedAt.Add(FreshnessWindow)
	}

	data, err := json.Marshal(posting)
	if err != nil {
		return nil, errors.Persistence("marshaling posting", err)
	}

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO job_postings
			(external_id, title, employer_name, description, city, posted_at_ts, data, ingested_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (external_id) DO NOTHING`,
		posting.ExternalID,
		posting.Title,
		posting.EmployerName,
		posting.Description,
		posting.City,
		posting.PostedAtTimestamp,
		data,
		posting.IngestedAt,
		posting.ExpiresAt,
	)
	if err != nil {
		return nil, errors.Persistence("inserting posting", err)
	}

	if tag.RowsAffected() == 0 {
		s.logger.Debug("posting already known, keeping original row",
			zap.String("external_id", posting.ExternalID))
	}

	return s.findByID(ctx, posting.ExternalID)
}

func (s *Store) findByID(ctx context.Context, externalID string) (*models.JobPosting, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+postingColumns+` FROM job_postings WHERE external_id = $1`,
		externalID)

	posting, err := scanPosting(row)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("posting not found", nil)
	}
	if err != nil {
		return nil, errors.Persistence("reading posting", err)
	}
	return posting, nil
}

// FindFresh returns unexpired postings, newest first. The posting-timestamp
// ordering is deliberate: equally relevant postings surface newest-first
// after ranking because the ranker's sort is stable.
func (s *Store) FindFresh(ctx context.Context, limit int) ([]models.JobPosting, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+postingColumns+`
		 FROM job_postings
		 WHERE expires_at > now()
		 ORDER BY posted_at_ts DESC
		 LIMIT $1`,
		limit)
	if err != nil {
		return nil, errors.Persistence("querying fresh postings", err)
	}
	return collectPostings(rows)
}

// FindByIDs re-materializes exactly the postings of one upstream page,
// preserving the upstream's pagination contract. Results come back newest
// first; unknown ids are silently absent.
func (s *Store) FindByIDs(ctx context.Context, externalIDs []string) ([]models.JobPosting, error) {
	if len(externalIDs) == 0 {
		return []models.JobPosting{}, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+postingColumns+`
		 FROM job_postings
		 WHERE external_id = ANY($1)
		 ORDER BY posted_at_ts DESC`,
		externalIDs)
	if err != nil {
		return nil, errors.Persistence("querying postings by id", err)
	}
	return collectPostings(rows)
}

// FindRecentMatching serves the search-mode DB cache: a keyword match over
// title, description and city among rows ingested after since and still
// fresh, capped at 50.
func (s *Store) FindRecentMatching(ctx context.Context, queryText string, since time.Time) ([]models.JobPosting, error) {
	pattern := "%" + queryText + "%"

	rows, err := s.pool.Query(ctx,
		`SELECT `+postingColumns+`
		 FROM job_postings
		 WHERE ingested_at > $1
		   AND expires_at > now()
		   AND (title ILIKE $2 OR description ILIKE $2 OR city ILIKE $2)
		 ORDER BY posted_at_ts DESC
		 LIMIT $3`,
		since, pattern, recentMatchLimit)
	if err != nil {
		return nil, errors.Persistence("querying matching postings", err)
	}
	return collectPostings(rows)
}

// TouchQueryLog records that the external source was actually invoked for
// the literal query string: insert on first sight, bump fetched_at after.
func (s *Store) TouchQueryLog(ctx context.Context, queryText string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO query_logs (query, fetched_at)
		 VALUES ($1, now())
		 ON CONFLICT (query) DO UPDATE SET fetched_at = now()`,
		queryText)
	if err != nil {
		return errors.Persistence("touching query log", err)
	}
	return nil
}

// QueryLogFetchedAt reports when the literal query was last fetched from the
// external source. ok is false when the query has never been fetched.
func (s *Store) QueryLogFetchedAt(ctx context.Context, queryText string) (fetchedAt time.Time, ok bool, err error) {
	row := s.pool.QueryRow(ctx,
		`SELECT fetched_at FROM query_logs WHERE query = $1`,
		queryText)

	if scanErr := row.Scan(&fetchedAt); scanErr != nil {
		if scanErr == pgx.ErrNoRows {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, errors.Persistence("reading query log", scanErr)
	}
	return fetchedAt, true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPosting(row rowScanner) (*models.JobPosting, error) {
	var (
		data       []byte
		ingestedAt time.Time
		expiresAt  time.Time
	)
	if err := row.Scan(&data, &ingestedAt, &expiresAt); err != nil {
		return nil, err
	}

	var posting models.JobPosting
	if err := json.Unmarshal(data, &posting); err != nil {
		return nil, err
	}
	posting.IngestedAt = ingestedAt
	posting.ExpiresAt = expiresAt

	return &posting, nil
}

func collectPostings(rows pgx.Rows) ([]models.JobPosting, error) {
	defer rows.Close()

	postings := make([]models.JobPosting, 0)
	for rows.Next() {
		posting, err := scanPosting(rows)
		if err != nil {
			return nil, errors.Persistence("scanning posting row", err)
		}
		postings = append(postings, *posting)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Persistence("iterating posting rows", err)
	}
	return postings, nil
}
