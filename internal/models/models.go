package models

import (
	"encoding/json"
	"time"
)

// JobPosting is the durable entity of the pipeline. Field names mirror the
// JSearch payload so a fetched posting round-trips through the store without
// a separate mapping layer. ExternalID is the upstream job_id and the sole
// dedup key; ExpiresAt is stamped at ingestion (24h freshness window).
type JobPosting struct {
	ExternalID      string     `json:"job_id"`
	Title           string     `json:"job_title"`
	EmployerName    string     `json:"employer_name"`
	EmployerLogo    string     `json:"employer_logo,omitempty"`
	EmployerWebsite string     `json:"employer_website,omitempty"`
	Publisher       string     `json:"job_publisher,omitempty"`
	EmploymentType  string     `json:"job_employment_type,omitempty"`
	EmploymentTypes []string   `json:"job_employment_types,omitempty"`
	ApplyLink       string     `json:"job_apply_link,omitempty"`
	GoogleLink      string     `json:"job_google_link,omitempty"`
	Description     string     `json:"job_description"`
	Highlights      Highlights `json:"job_highlights,omitempty"`
	Benefits        []string   `json:"job_benefits,omitempty"`
	IsRemote        bool       `json:"job_is_remote"`

	PostedAt          string `json:"job_posted_at,omitempty"`
	PostedAtTimestamp int64  `json:"job_posted_at_timestamp,omitempty"`

	Location  string  `json:"job_location,omitempty"`
	City      string  `json:"job_city,omitempty"`
	State     string  `json:"job_state,omitempty"`
	Country   string  `json:"job_country,omitempty"`
	Latitude  float64 `json:"job_latitude,omitempty"`
	Longitude float64 `json:"job_longitude,omitempty"`

	MinSalary    *float64 `json:"job_min_salary,omitempty"`
	MaxSalary    *float64 `json:"job_max_salary,omitempty"`
	SalaryPeriod string   `json:"job_salary_period,omitempty"`

	OnetSOC     string `json:"job_onet_soc,omitempty"`
	OnetJobZone string `json:"job_onet_job_zone,omitempty"`

	IngestedAt time.Time `json:"ingested_at,omitempty"`
	ExpiresAt  time.Time `json:"expires_at,omitempty"`
}

// Highlights holds the structured qualification/responsibility bullets the
// upstream attaches to a posting.
type Highlights struct {
	Qualifications   []string `json:"Qualifications,omitempty"`
	Responsibilities []string `json:"Responsibilities,omitempty"`
	Benefits         []string `json:"Benefits,omitempty"`
}

func (h Highlights) IsEmpty() bool {
	return len(h.Qualifications) == 0 && len(h.Responsibilities) == 0 && len(h.Benefits) == 0
}

// SearchPreferences is built per request from query parameters plus the
// caller's latest résumé. It is consumed immediately and never persisted.
type SearchPreferences struct {
	Skills          []string `json:"skills"`
	ExperienceYears int      `json:"experience"`
	City            string   `json:"city,omitempty"`
	Country         string   `json:"country"`
	Role            string   `json:"role,omitempty"`
	Remote          bool     `json:"remote"`
	EmploymentTypes []string `json:"employmentType,omitempty"`
}

// SearchFilters carries the caller-supplied knobs forwarded to the upstream
// job source, already in internal naming (the client maps them to upstream
// parameter names).
type SearchFilters struct {
	DatePosted        string
	Country           string
	EmploymentTypes   []string
	Remote            bool
	Radius            int
	ExcludePublishers []string
}

// RankedPosting is a posting annotated with the skill overlap computed by
// the ranker. Never persisted.
type RankedPosting struct {
	JobPosting
	MatchedSkills []string `json:"matchedSkills"`
	MatchScore    int      `json:"matchScore"`
}

// CachedRecommendation is the response-cache value for recommend mode: the
// final ranked response, stored verbatim and replayed on a hit.
type CachedRecommendation struct {
	Query    string          `json:"query"`
	Jobs     []RankedPosting `json:"jobs"`
	Total    int             `json:"total"`
	CachedAt time.Time       `json:"cachedAt"`
}

func (c CachedRecommendation) MarshalBinary() ([]byte, error) {
	return json.Marshal(c)
}

func (c *CachedRecommendation) UnmarshalBinary(data []byte) error {
	return json.Unmarshal(data, c)
}

// RecommendResponse is the public payload of GET /jobs/recommend.
type RecommendResponse struct {
	Query   string          `json:"query"`
	Total   int             `json:"total"`
	Jobs    []RankedPosting `json:"jobs"`
	Page    int             `json:"page"`
	Cached  bool            `json:"cached"`
	Message string          `json:"message,omitempty"`
}

// SearchResponse is the public payload of GET /jobs/search.
type SearchResponse struct {
	Data     []JobPosting `json:"data"`
	Total    int          `json:"total"`
	Page     int          `json:"page"`
	DBCached bool         `json:"dbCached"`
	Message  string       `json:"message,omitempty"`
}
