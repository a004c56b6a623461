package recommend

import (
	"context"
	"encoding/json"
	"net/url"
	"testing"
	"time"

	"github.com/ajeetk7ev/JobLytic/internal/analytics"
	"github.com/ajeetk7ev/JobLytic/internal/cache"
	"github.com/ajeetk7ev/JobLytic/internal/errors"
	"github.com/ajeetk7ev/JobLytic/internal/jsearch"
	"github.com/ajeetk7ev/JobLytic/internal/models"
	"github.com/ajeetk7ev/JobLytic/internal/prefs"
	"github.com/ajeetk7ev/JobLytic/internal/resume"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// ── Fakes ──────────────────────────────────────────────────────────────────

type fakeCache struct {
	data map[string][]byte
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string][]byte)}
}

func (c *fakeCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.data[key] = data
	return nil
}

func (c *fakeCache) Get(_ context.Context, key string, value interface{}) error {
	data, ok := c.data[key]
	if !ok {
		return cache.ErrNotFound
	}
	return json.Unmarshal(data, value)
}

func (c *fakeCache) Delete(_ context.Context, key string) error {
	delete(c.data, key)
	return nil
}

func (c *fakeCache) DeleteByPrefix(_ context.Context, prefix string) error {
	for key := range c.data {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			delete(c.data, key)
		}
	}
	return nil
}

func (c *fakeCache) Close() error { return nil }

type fakeStore struct {
	postings    map[string]models.JobPosting
	queryLog    map[string]time.Time
	upsertErr   error
	upsertCalls int
	matching    []models.JobPosting
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		postings: make(map[string]models.JobPosting),
		queryLog: make(map[string]time.Time),
	}
}

func (s *fakeStore) Upsert(_ context.Context, posting models.JobPosting) (*models.JobPosting, error) {
	if s.upsertErr != nil {
		return nil, s.upsertErr
	}
	s.upsertCalls++
	if existing, ok := s.postings[posting.ExternalID]; ok {
		return &existing, nil
	}
	posting.IngestedAt = time.Now()
	posting.ExpiresAt = posting.IngestedAt.Add(24 * time.Hour)
	s.postings[posting.ExternalID] = posting
	return &posting, nil
}

func (s *fakeStore) FindFresh(_ context.Context, limit int) ([]models.JobPosting, error) {
	out := make([]models.JobPosting, 0, len(s.postings))
	for _, p := range s.postings {
		out = append(out, p)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeStore) FindByIDs(_ context.Context, ids []string) ([]models.JobPosting, error) {
	out := make([]models.JobPosting, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.postings[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *fakeStore) FindRecentMatching(_ context.Context, _ string, _ time.Time) ([]models.JobPosting, error) {
	return s.matching, nil
}

func (s *fakeStore) TouchQueryLog(_ context.Context, queryText string) error {
	s.queryLog[queryText] = time.Now()
	return nil
}

func (s *fakeStore) QueryLogFetchedAt(_ context.Context, queryText string) (time.Time, bool, error) {
	at, ok := s.queryLog[queryText]
	return at, ok, nil
}

type fakeFetcher struct {
	result *jsearch.FetchResult
	calls  int
}

func (f *fakeFetcher) Fetch(_ context.Context, _ string, _ int, _ models.SearchFilters) *jsearch.FetchResult {
	f.calls++
	if f.result == nil {
		return jsearch.Empty()
	}
	return f.result
}

type fakeSynth struct {
	query string
	err   error
	calls int
}

func (f *fakeSynth) Synthesize(_ context.Context, _ *models.SearchPreferences) (string, error) {
	f.calls++
	return f.query, f.err
}

func (f *fakeSynth) SynthesizeBatch(_ context.Context, _ *models.SearchPreferences, _ int) ([]string, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []string{f.query}, nil
}

type fakeResumes struct {
	resume *resume.Resume
	err    error
}

func (f *fakeResumes) Latest(_ context.Context, _ string) (*resume.Resume, error) {
	return f.resume, f.err
}

type fakeAuditor struct {
	events []analytics.SearchEvent
}

func (f *fakeAuditor) Record(_ context.Context, event analytics.SearchEvent) {
	f.events = append(f.events, event)
}

// ── Harness ────────────────────────────────────────────────────────────────

type harness struct {
	svc     *Service
	cache   *fakeCache
	store   *fakeStore
	fetcher *fakeFetcher
	synth   *fakeSynth
	resumes *fakeResumes
	auditor *fakeAuditor
}

func newHarness() *harness {
	h := &harness{
		cache:   newFakeCache(),
		store:   newFakeStore(),
		fetcher: &fakeFetcher{},
		synth:   &fakeSynth{query: "react developer jobs in india"},
		resumes: &fakeResumes{resume: &resume.Resume{ID: "r1", UserID: "u1", Skills: []string{"react", "node"}}},
		auditor: &fakeAuditor{},
	}
	h.svc = NewService(
		h.cache, h.store, h.fetcher, h.synth, h.resumes,
		prefs.NewNormalizer("in"), zap.NewNop(),
		Options{Auditor: h.auditor},
	)
	return h
}

func fetchedPage(ids ...string) *jsearch.FetchResult {
	postings := make([]models.JobPosting, 0, len(ids))
	for _, id := range ids {
		postings = append(postings, models.JobPosting{
			ExternalID:   id,
			Title:        "React Developer",
			EmployerName: "Acme",
			Description:  "react and node work",
		})
	}
	return &jsearch.FetchResult{Postings: postings, Total: len(postings) * 10}
}

// ── Recommend mode ─────────────────────────────────────────────────────────

func TestRecommend_FullPipeline(t *testing.T) {
	h := newHarness()
	h.fetcher.result = fetchedPage("j1", "j2")

	resp, err := h.svc.Recommend(context.Background(), "u1", 1, url.Values{})

	require.NoError(t, err)
	assert.Equal(t, "react developer jobs in india", resp.Query)
	assert.False(t, resp.Cached)
	assert.Equal(t, 20, resp.Total)
	require.Len(t, resp.Jobs, 2)
	assert.Equal(t, 100, resp.Jobs[0].MatchScore)
	assert.Equal(t, 2, h.store.upsertCalls)

	// The final ranked response is cached under (user, page).
	_, ok := h.cache.data[cache.RecommendKey("u1", 1)]
	assert.True(t, ok)
}

func TestRecommend_CacheHitShortCircuits(t *testing.T) {
	h := newHarness()
	entry := models.CachedRecommendation{
		Query: "cached query",
		Jobs: []models.RankedPosting{
			{JobPosting: models.JobPosting{ExternalID: "j1"}, MatchScore: 77},
		},
		Total:    42,
		CachedAt: time.Now(),
	}
	require.NoError(t, h.cache.Set(context.Background(), cache.RecommendKey("u1", 1), entry, 0))

	resp, err := h.svc.Recommend(context.Background(), "u1", 1, url.Values{})

	require.NoError(t, err)
	assert.True(t, resp.Cached)
	assert.Equal(t, "cached query", resp.Query)
	assert.Equal(t, 42, resp.Total)
	require.Len(t, resp.Jobs, 1)
	assert.Equal(t, 77, resp.Jobs[0].MatchScore)

	// Nothing downstream of the cache may run on a hit.
	assert.Zero(t, h.fetcher.calls)
	assert.Zero(t, h.synth.calls)
	assert.Zero(t, h.store.upsertCalls)
}

func TestRecommend_CacheMissOnDifferentPage(t *testing.T) {
	h := newHarness()
	entry := models.CachedRecommendation{Query: "cached query"}
	require.NoError(t, h.cache.Set(context.Background(), cache.RecommendKey("u1", 1), entry, 0))
	h.fetcher.result = fetchedPage("j1")

	resp, err := h.svc.Recommend(context.Background(), "u1", 2, url.Values{})

	require.NoError(t, err)
	assert.False(t, resp.Cached)
	assert.Equal(t, 1, h.fetcher.calls)
}

func TestRecommend_UpstreamDegradesToEmptySuccess(t *testing.T) {
	h := newHarness()
	h.fetcher.result = nil // Empty sentinel

	resp, err := h.svc.Recommend(context.Background(), "u1", 1, url.Values{})

	require.NoError(t, err)
	assert.Empty(t, resp.Jobs)
	assert.Zero(t, resp.Total)
	assert.Equal(t, "No jobs found", resp.Message)
	assert.Zero(t, h.store.upsertCalls)
}

func TestRecommend_MissingResumeIsValidationError(t *testing.T) {
	h := newHarness()
	h.resumes.resume = nil

	_, err := h.svc.Recommend(context.Background(), "u1", 1, url.Values{})

	require.Error(t, err)
	assert.Equal(t, errors.ErrTypeValidation, errors.TypeOf(err))
	assert.Zero(t, h.synth.calls)
}

func TestRecommend_EmptySkillsIsValidationError(t *testing.T) {
	h := newHarness()
	h.resumes.resume = &resume.Resume{ID: "r1", UserID: "u1"}

	_, err := h.svc.Recommend(context.Background(), "u1", 1, url.Values{})

	require.Error(t, err)
	assert.Equal(t, errors.ErrTypeValidation, errors.TypeOf(err))
}

func TestRecommend_SynthesisFailureIsFatal(t *testing.T) {
	h := newHarness()
	h.synth.err = errors.Synthesis("model unavailable", nil)

	_, err := h.svc.Recommend(context.Background(), "u1", 1, url.Values{})

	require.Error(t, err)
	assert.Equal(t, errors.ErrTypeSynthesis, errors.TypeOf(err))
	assert.Zero(t, h.fetcher.calls)
}

func TestRecommend_PersistenceFailureIsFatal(t *testing.T) {
	h := newHarness()
	h.fetcher.result = fetchedPage("j1")
	h.store.upsertErr = errors.Persistence("db down", nil)

	_, err := h.svc.Recommend(context.Background(), "u1", 1, url.Values{})

	require.Error(t, err)
	assert.Equal(t, errors.ErrTypePersistence, errors.TypeOf(err))
}

func TestRecommend_RankedOrderDescending(t *testing.T) {
	h := newHarness()
	full := models.JobPosting{ExternalID: "full", Title: "React Node", Description: "react node"}
	partial := models.JobPosting{ExternalID: "partial", Title: "React only", Description: "react"}
	h.fetcher.result = &jsearch.FetchResult{
		Postings: []models.JobPosting{partial, full},
		Total:    2,
	}

	resp, err := h.svc.Recommend(context.Background(), "u1", 1, url.Values{})

	require.NoError(t, err)
	require.Len(t, resp.Jobs, 2)
	assert.Equal(t, "full", resp.Jobs[0].ExternalID)
	assert.Equal(t, "partial", resp.Jobs[1].ExternalID)
}

func TestInvalidateUser_DropsAllPages(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	entry := models.CachedRecommendation{Query: "q"}
	require.NoError(t, h.cache.Set(ctx, cache.RecommendKey("u1", 1), entry, 0))
	require.NoError(t, h.cache.Set(ctx, cache.RecommendKey("u1", 2), entry, 0))
	require.NoError(t, h.cache.Set(ctx, cache.RecommendKey("u2", 1), entry, 0))

	require.NoError(t, h.svc.InvalidateUser(ctx, "u1"))

	assert.NotContains(t, h.cache.data, cache.RecommendKey("u1", 1))
	assert.NotContains(t, h.cache.data, cache.RecommendKey("u1", 2))
	assert.Contains(t, h.cache.data, cache.RecommendKey("u2", 1))
}

// ── Search mode ────────────────────────────────────────────────────────────

func TestSearch_MissingQueryIsValidationError(t *testing.T) {
	h := newHarness()

	_, err := h.svc.Search(context.Background(), "   ", 1, models.SearchFilters{})

	require.Error(t, err)
	assert.Equal(t, errors.ErrTypeValidation, errors.TypeOf(err))
}

func TestSearch_FreshQueryLogServesFromStoreOnPageOne(t *testing.T) {
	h := newHarness()
	h.store.queryLog["react developer"] = time.Now().Add(-1 * time.Hour)
	h.store.matching = []models.JobPosting{{ExternalID: "j1", Title: "React Developer"}}

	resp, err := h.svc.Search(context.Background(), "react developer", 1, models.SearchFilters{})

	require.NoError(t, err)
	assert.True(t, resp.DBCached)
	require.Len(t, resp.Data, 1)
	assert.Zero(t, h.fetcher.calls, "external source must not be invoked")
}

func TestSearch_PageTwoAlwaysHitsExternalSource(t *testing.T) {
	h := newHarness()
	h.store.queryLog["react developer"] = time.Now().Add(-1 * time.Hour)
	h.fetcher.result = fetchedPage("j9")

	resp, err := h.svc.Search(context.Background(), "react developer", 2, models.SearchFilters{})

	require.NoError(t, err)
	assert.False(t, resp.DBCached)
	assert.Equal(t, 1, h.fetcher.calls)
}

func TestSearch_StaleQueryLogRefetches(t *testing.T) {
	h := newHarness()
	h.store.queryLog["react developer"] = time.Now().Add(-25 * time.Hour)
	h.fetcher.result = fetchedPage("j1")

	resp, err := h.svc.Search(context.Background(), "react developer", 1, models.SearchFilters{})

	require.NoError(t, err)
	assert.False(t, resp.DBCached)
	assert.Equal(t, 1, h.fetcher.calls)

	// A successful fetch on page 1 bumps the query log.
	at, ok := h.store.queryLog["react developer"]
	require.True(t, ok)
	assert.WithinDuration(t, time.Now(), at, time.Minute)
}

func TestSearch_UnknownQueryFetchesAndLogs(t *testing.T) {
	h := newHarness()
	h.fetcher.result = fetchedPage("j1", "j2")

	resp, err := h.svc.Search(context.Background(), "golang jobs", 1, models.SearchFilters{})

	require.NoError(t, err)
	assert.False(t, resp.DBCached)
	assert.Equal(t, 20, resp.Total)
	require.Len(t, resp.Data, 2)
	assert.Contains(t, h.store.queryLog, "golang jobs")
}

func TestSearch_LaterPageDoesNotTouchQueryLog(t *testing.T) {
	h := newHarness()
	h.fetcher.result = fetchedPage("j1")

	_, err := h.svc.Search(context.Background(), "golang jobs", 3, models.SearchFilters{})

	require.NoError(t, err)
	assert.NotContains(t, h.store.queryLog, "golang jobs")
}

func TestSearch_DegradedFetchDoesNotPoisonQueryLog(t *testing.T) {
	h := newHarness()
	h.fetcher.result = nil // Empty sentinel

	resp, err := h.svc.Search(context.Background(), "golang jobs", 1, models.SearchFilters{})

	require.NoError(t, err)
	assert.Empty(t, resp.Data)
	assert.Equal(t, "No jobs found", resp.Message)
	assert.NotContains(t, h.store.queryLog, "golang jobs")
}

func TestFresh_ClampsLimit(t *testing.T) {
	h := newHarness()
	h.store.postings["j1"] = models.JobPosting{ExternalID: "j1"}

	postings, err := h.svc.Fresh(context.Background(), -3)

	require.NoError(t, err)
	assert.Len(t, postings, 1)
}

func TestAudit_EventsRecorded(t *testing.T) {
	h := newHarness()
	h.fetcher.result = fetchedPage("j1")

	_, err := h.svc.Recommend(context.Background(), "u1", 1, url.Values{})
	require.NoError(t, err)

	require.Len(t, h.auditor.events, 1)
	assert.Equal(t, "recommend", h.auditor.events[0].Mode)
	assert.Equal(t, "u1", h.auditor.events[0].UserID)
	assert.False(t, h.auditor.events[0].Cached)
}
