// Package recommend orchestrates the résumé-driven recommendation pipeline:
// cache check, preference normalization, query synthesis, external fetch,
// ingestion, ranking and cache write. It owns the failure semantics of the
// whole request: upstream trouble degrades to an empty result, persistence
// and synthesis failures are fatal.
package recommend

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/ajeetk7ev/JobLytic/internal/analytics"
	"github.com/ajeetk7ev/JobLytic/internal/cache"
	"github.com/ajeetk7ev/JobLytic/internal/errors"
	"github.com/ajeetk7ev/JobLytic/internal/jsearch"
	"github.com/ajeetk7ev/JobLytic/internal/models"
	"github.com/ajeetk7ev/JobLytic/internal/prefs"
	"github.com/ajeetk7ev/JobLytic/internal/query"
	"github.com/ajeetk7ev/JobLytic/internal/rank"
	"github.com/ajeetk7ev/JobLytic/internal/resume"
	"github.com/ajeetk7ev/JobLytic/internal/telemetry"

	"go.uber.org/zap"
)

var tracer = telemetry.GetTracer("joblytic/recommend")

// queryCacheWindow is how long a logged search query may be answered from
// the store instead of the external source (page 1 only).
const queryCacheWindow = 24 * time.Hour

const noJobsMessage = "No jobs found"

// JobStore is the slice of the store the orchestrator needs.
type JobStore interface {
	Upsert(ctx context.Context, posting models.JobPosting) (*models.JobPosting, error)
	FindFresh(ctx context.Context, limit int) ([]models.JobPosting, error)
	FindByIDs(ctx context.Context, externalIDs []string) ([]models.JobPosting, error)
	FindRecentMatching(ctx context.Context, queryText string, since time.Time) ([]models.JobPosting, error)
	TouchQueryLog(ctx context.Context, queryText string) error
	QueryLogFetchedAt(ctx context.Context, queryText string) (time.Time, bool, error)
}

// Auditor receives best-effort search analytics events.
type Auditor interface {
	Record(ctx context.Context, event analytics.SearchEvent)
}

type Service struct {
	cache      cache.Cache
	store      JobStore
	fetcher    jsearch.Fetcher
	synth      query.Synthesizer
	resumes    resume.Provider
	normalizer *prefs.Normalizer
	auditor    Auditor
	logger     *zap.Logger
	cacheTTL   time.Duration
	now        func() time.Time
}

type Options struct {
	CacheTTL time.Duration

	// Auditor may be nil; events are then dropped.
	Auditor Auditor
}

func NewService(
	responseCache cache.Cache,
	jobStore JobStore,
	fetcher jsearch.Fetcher,
	synthesizer query.Synthesizer,
	resumes resume.Provider,
	normalizer *prefs.Normalizer,
	logger *zap.Logger,
	opts Options,
) *Service {
	if opts.CacheTTL == 0 {
		opts.CacheTTL = 24 * time.Hour
	}

	return &Service{
		cache:      responseCache,
		store:      jobStore,
		fetcher:    fetcher,
		synth:      synthesizer,
		resumes:    resumes,
		normalizer: normalizer,
		auditor:    opts.Auditor,
		logger:     logger,
		cacheTTL:   opts.CacheTTL,
		now:        time.Now,
	}
}

// Recommend serves the résumé-driven entry point. On a cache hit the stored
// ranked response is replayed verbatim (annotated cached) and nothing
// downstream runs; on a miss the full pipeline executes and the final
// response is cached for the TTL.
func (s *Service) Recommend(ctx context.Context, userID string, page int, params url.Values) (*models.RecommendResponse, error) {
	ctx, span := tracer.Start(ctx, "Recommend")
	defer span.End()

	if userID == "" {
		return nil, errors.Validation("missing user id", nil)
	}
	if page < 1 {
		page = 1
	}
	span.SetAttributes(
		telemetry.String("user.id", userID),
		telemetry.Int("page", page),
	)
	started := s.now()

	key := cache.RecommendKey(userID, page)
	var cached models.CachedRecommendation
	err := s.cache.Get(ctx, key, &cached)
	if err == nil {
		span.SetAttributes(telemetry.Bool("cache.hit", true))
		s.logger.Debug("recommendation cache hit",
			zap.String("user_id", userID),
			zap.Int("page", page))
		s.audit(ctx, analytics.SearchEvent{
			Mode: "recommend", UserID: userID, Query: cached.Query, Page: page,
			ResultCount: len(cached.Jobs), Total: cached.Total, Cached: true,
			Duration: s.now().Sub(started),
		})
		return &models.RecommendResponse{
			Query:  cached.Query,
			Total:  cached.Total,
			Jobs:   cached.Jobs,
			Page:   page,
			Cached: true,
		}, nil
	}
	if err != cache.ErrNotFound {
		// A broken cache must not break recommendations.
		s.logger.Warn("recommendation cache read failed", zap.Error(err))
	}
	span.SetAttributes(telemetry.Bool("cache.hit", false))

	res, err := s.resumes.Latest(ctx, userID)
	if err != nil {
		return nil, s.fail(err, "loading resume", userID)
	}

	preferences, err := s.normalizer.Normalize(params, res)
	if err != nil {
		return nil, s.fail(err, "normalizing preferences", userID)
	}

	searchQuery, err := s.synth.Synthesize(ctx, preferences)
	if err != nil {
		return nil, s.fail(err, "synthesizing query", userID)
	}
	s.logger.Info("synthesized recommendation query",
		zap.String("user_id", userID),
		zap.String("query", searchQuery))

	filters := s.normalizer.Filters(params)
	filters.Country = preferences.Country
	filters.Remote = preferences.Remote
	filters.EmploymentTypes = preferences.EmploymentTypes

	result := s.fetcher.Fetch(ctx, searchQuery, page, filters)
	if len(result.Postings) == 0 {
		s.audit(ctx, analytics.SearchEvent{
			Mode: "recommend", UserID: userID, Query: searchQuery, Page: page,
			Duration: s.now().Sub(started),
		})
		return &models.RecommendResponse{
			Query:   searchQuery,
			Jobs:    []models.RankedPosting{},
			Page:    page,
			Message: noJobsMessage,
		}, nil
	}

	ids, err := s.ingest(ctx, result.Postings)
	if err != nil {
		return nil, s.fail(err, "ingesting postings", userID)
	}

	stored, err := s.store.FindByIDs(ctx, ids)
	if err != nil {
		return nil, s.fail(err, "reading ingested postings", userID)
	}

	ranked := rank.Rank(stored, preferences.Skills)

	entry := models.CachedRecommendation{
		Query:    searchQuery,
		Jobs:     ranked,
		Total:    result.Total,
		CachedAt: s.now(),
	}
	if err := s.cache.Set(ctx, key, entry, s.cacheTTL); err != nil {
		s.logger.Warn("recommendation cache write failed", zap.Error(err))
	}

	s.audit(ctx, analytics.SearchEvent{
		Mode: "recommend", UserID: userID, Query: searchQuery, Page: page,
		ResultCount: len(ranked), Total: result.Total,
		Duration: s.now().Sub(started),
	})

	return &models.RecommendResponse{
		Query: searchQuery,
		Total: result.Total,
		Jobs:  ranked,
		Page:  page,
	}, nil
}

// Search serves the query-driven entry point. Page 1 of a query fetched from
// the external source within the last 24h is answered from the store;
// everything else goes upstream.
func (s *Service) Search(ctx context.Context, queryText string, page int, filters models.SearchFilters) (*models.SearchResponse, error) {
	ctx, span := tracer.Start(ctx, "Search")
	defer span.End()

	queryText = strings.TrimSpace(queryText)
	if queryText == "" {
		return nil, errors.Validation("missing search query", nil)
	}
	if page < 1 {
		page = 1
	}
	span.SetAttributes(
		telemetry.String("query", queryText),
		telemetry.Int("page", page),
	)
	started := s.now()

	if page == 1 {
		fetchedAt, ok, err := s.store.QueryLogFetchedAt(ctx, queryText)
		if err != nil {
			return nil, s.fail(err, "reading query log", queryText)
		}
		if ok && s.now().Sub(fetchedAt) < queryCacheWindow {
			postings, err := s.store.FindRecentMatching(ctx, queryText, s.now().Add(-queryCacheWindow))
			if err != nil {
				return nil, s.fail(err, "reading cached search results", queryText)
			}
			span.SetAttributes(telemetry.Bool("db_cache.hit", true))
			s.audit(ctx, analytics.SearchEvent{
				Mode: "search", Query: queryText, Page: page,
				ResultCount: len(postings), Total: len(postings), Cached: true,
				Duration: s.now().Sub(started),
			})
			return &models.SearchResponse{
				Data:     postings,
				Total:    len(postings),
				Page:     page,
				DBCached: true,
			}, nil
		}
	}

	result := s.fetcher.Fetch(ctx, queryText, page, filters)
	if len(result.Postings) == 0 {
		s.audit(ctx, analytics.SearchEvent{
			Mode: "search", Query: queryText, Page: page,
			Duration: s.now().Sub(started),
		})
		return &models.SearchResponse{
			Data:    []models.JobPosting{},
			Page:    page,
			Message: noJobsMessage,
		}, nil
	}

	ids, err := s.ingest(ctx, result.Postings)
	if err != nil {
		return nil, s.fail(err, "ingesting postings", queryText)
	}

	// The query log only records fetches that produced postings: a degraded
	// upstream must not poison the next 24h of this query with emptiness.
	if page == 1 {
		if err := s.store.TouchQueryLog(ctx, queryText); err != nil {
			return nil, s.fail(err, "recording query log", queryText)
		}
	}

	stored, err := s.store.FindByIDs(ctx, ids)
	if err != nil {
		return nil, s.fail(err, "reading ingested postings", queryText)
	}

	s.audit(ctx, analytics.SearchEvent{
		Mode: "search", Query: queryText, Page: page,
		ResultCount: len(stored), Total: result.Total,
		Duration: s.now().Sub(started),
	})

	return &models.SearchResponse{
		Data:  stored,
		Total: result.Total,
		Page:  page,
	}, nil
}

// Fresh lists the newest unexpired postings, most recent first. Backs the
// plain browse endpoint; no ranking, no external fetch.
func (s *Service) Fresh(ctx context.Context, limit int) ([]models.JobPosting, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}

	postings, err := s.store.FindFresh(ctx, limit)
	if err != nil {
		return nil, s.fail(err, "listing fresh postings", "")
	}
	return postings, nil
}

// InvalidateUser drops every cached recommendation for a user. Called when
// the user's résumé changes: the old rankings are built on a stale skill set.
func (s *Service) InvalidateUser(ctx context.Context, userID string) error {
	if userID == "" {
		return errors.Validation("missing user id", nil)
	}

	if err := s.cache.DeleteByPrefix(ctx, cache.RecommendPrefix(userID)); err != nil {
		s.logger.Error("failed to invalidate recommendation cache",
			zap.String("user_id", userID),
			zap.Error(err))
		return errors.Internal("invalidating recommendation cache", err)
	}

	s.logger.Info("invalidated recommendation cache", zap.String("user_id", userID))
	return nil
}

// ingest upserts one fetched page. Upserts are idempotent and first-write-
// wins, so re-fetching overlapping pages is harmless. Returns the external
// ids of this page, preserving the upstream's membership for the read-back.
func (s *Service) ingest(ctx context.Context, postings []models.JobPosting) ([]string, error) {
	ids := make([]string, 0, len(postings))
	for _, posting := range postings {
		stored, err := s.store.Upsert(ctx, posting)
		if err != nil {
			return nil, err
		}
		ids = append(ids, stored.ExternalID)
	}
	return ids, nil
}

func (s *Service) audit(ctx context.Context, event analytics.SearchEvent) {
	if s.auditor == nil {
		return
	}
	s.auditor.Record(ctx, event)
}

// fail logs a fatal pipeline error with enough context to reproduce.
func (s *Service) fail(err error, stage, subject string) error {
	if errors.TypeOf(err) != errors.ErrTypeValidation {
		s.logger.Error("recommendation pipeline failed",
			zap.String("stage", stage),
			zap.String("subject", subject),
			zap.Error(err))
	}
	return err
}
