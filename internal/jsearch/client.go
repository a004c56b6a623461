// Package jsearch is the client for the third-party job-search API. The
// upstream is slow and occasionally failing; job availability is best-effort,
// so every failure degrades to the empty-result sentinel instead of an error.
package jsearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ajeetk7ev/JobLytic/internal/models"
	"github.com/ajeetk7ev/JobLytic/internal/telemetry"

	"go.uber.org/zap"
)

var tracer = telemetry.GetTracer("joblytic/jsearch")

// FetchResult is one upstream page plus the upstream's reported total.
type FetchResult struct {
	Postings []models.JobPosting
	Total    int
}

// Empty is the degradation sentinel: a successful fetch of nothing.
func Empty() *FetchResult {
	return &FetchResult{Postings: []models.JobPosting{}, Total: 0}
}

// Fetcher fetches one page of postings for a query. Implementations never
// return an error; upstream trouble yields Empty().
type Fetcher interface {
	Fetch(ctx context.Context, query string, page int, filters models.SearchFilters) *FetchResult
}

type Options struct {
	BaseURL           string
	APIKey            string
	APIHost           string
	Timeout           time.Duration
	DefaultDatePosted string
}

type client struct {
	http   *http.Client
	opts   Options
	logger *zap.Logger
}

func NewClient(opts Options, logger *zap.Logger) Fetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.DefaultDatePosted == "" {
		opts.DefaultDatePosted = "today"
	}

	return &client{
		http:   &http.Client{Timeout: opts.Timeout},
		opts:   opts,
		logger: logger,
	}
}

// searchResponse mirrors the JSearch top-level payload.
type searchResponse struct {
	Data  []models.JobPosting `json:"data"`
	Total *int                `json:"total"`
}

func (c *client) Fetch(ctx context.Context, query string, page int, filters models.SearchFilters) *FetchResult {
	ctx, span := tracer.Start(ctx, "jsearch.Fetch")
	defer span.End()
	span.SetAttributes(
		telemetry.String("jsearch.query", query),
		telemetry.Int("jsearch.page", page),
	)

	if page < 1 {
		page = 1
	}

	result, err := c.fetchPage(ctx, query, page, filters)
	if err != nil {
		span.RecordError(err)
		c.logger.Warn("job source fetch degraded to empty result",
			zap.String("query", query),
			zap.Int("page", page),
			zap.Error(err))
		return Empty()
	}

	span.SetAttributes(
		telemetry.Int("jsearch.count", len(result.Postings)),
		telemetry.Int("jsearch.total", result.Total),
	)
	return result
}

func (c *client) fetchPage(ctx context.Context, query string, page int, filters models.SearchFilters) (*FetchResult, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("page", strconv.Itoa(page))
	params.Set("num_pages", "1")

	datePosted := filters.DatePosted
	if datePosted == "" {
		datePosted = c.opts.DefaultDatePosted
	}
	params.Set("date_posted", datePosted)

	if filters.Country != "" {
		params.Set("country", filters.Country)
	}
	if len(filters.EmploymentTypes) > 0 {
		params.Set("employment_types", strings.Join(filters.EmploymentTypes, ","))
	}
	if filters.Remote {
		params.Set("work_from_home", "true")
	}
	if filters.Radius > 0 {
		params.Set("radius", strconv.Itoa(filters.Radius))
	}
	if len(filters.ExcludePublishers) > 0 {
		params.Set("exclude_job_publishers", strings.Join(filters.ExcludePublishers, ","))
	}

	reqURL := fmt.Sprintf("%s/search?%s", c.opts.BaseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-rapidapi-key", c.opts.APIKey)
	req.Header.Set("x-rapidapi-host", c.opts.APIHost)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Warn("failed to close response body", zap.Error(cerr))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var payload searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	postings := payload.Data
	if postings == nil {
		postings = []models.JobPosting{}
	}

	total := len(postings)
	if payload.Total != nil {
		total = *payload.Total
	}

	c.logger.Debug("fetched postings from job source",
		zap.String("query", query),
		zap.Int("page", page),
		zap.Int("count", len(postings)),
		zap.Int("total", total))

	return &FetchResult{Postings: postings, Total: total}, nil
}
