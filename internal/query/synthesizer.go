// Package query compresses search preferences into short natural-language
// search strings via an external text-generation collaborator.
package query

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ajeetk7ev/JobLytic/internal/errors"
	"github.com/ajeetk7ev/JobLytic/internal/models"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const maxBatchQueries = 5

// Synthesizer turns preferences into upstream search queries. The
// collaborator's output is untrusted free text; implementations sanitize it
// locally before returning.
type Synthesizer interface {
	Synthesize(ctx context.Context, prefs *models.SearchPreferences) (string, error)

	// SynthesizeBatch returns up to n distinct queries (n capped at 5) for
	// the multi-query variant of recommend mode.
	SynthesizeBatch(ctx context.Context, prefs *models.SearchPreferences, n int) ([]string, error)
}

type Options struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

type openRouterSynthesizer struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	logger  *zap.Logger
}

// NewOpenRouter builds a Synthesizer backed by OpenRouter's OpenAI-compatible
// chat completions endpoint.
func NewOpenRouter(opts Options, logger *zap.Logger) Synthesizer {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}

	return &openRouterSynthesizer{
		client:  openai.NewClientWithConfig(cfg),
		model:   opts.Model,
		timeout: opts.Timeout,
		logger:  logger,
	}
}

func (s *openRouterSynthesizer) Synthesize(ctx context.Context, prefs *models.SearchPreferences) (string, error) {
	raw, err := s.complete(ctx, buildPrompt(prefs, 1))
	if err != nil {
		return "", err
	}

	query := sanitizeQuery(raw)
	if query == "" {
		return "", errors.Synthesis("collaborator returned no usable query", nil)
	}

	s.logger.Debug("synthesized search query", zap.String("query", query))
	return query, nil
}

func (s *openRouterSynthesizer) SynthesizeBatch(ctx context.Context, prefs *models.SearchPreferences, n int) ([]string, error) {
	if n < 1 {
		n = 1
	}
	if n > maxBatchQueries {
		n = maxBatchQueries
	}

	raw, err := s.complete(ctx, buildPrompt(prefs, n))
	if err != nil {
		return nil, err
	}

	queries := sanitizeQueries(raw, n)
	if len(queries) == 0 {
		return nil, errors.Synthesis("collaborator returned no usable queries", nil)
	}

	s.logger.Debug("synthesized search queries", zap.Int("count", len(queries)))
	return queries, nil
}

func (s *openRouterSynthesizer) complete(ctx context.Context, prompt string) (string, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		s.logger.Error("text-generation call failed", zap.Error(err))
		return "", errors.Synthesis("calling text-generation collaborator", err)
	}

	if len(resp.Choices) == 0 {
		return "", errors.Synthesis("collaborator returned no choices", nil)
	}

	return resp.Choices[0].Message.Content, nil
}

func buildPrompt(prefs *models.SearchPreferences, n int) string {
	serialized, err := json.MarshalIndent(prefs, "", "  ")
	if err != nil {
		serialized = []byte("{}")
	}

	var b strings.Builder
	b.WriteString("You are an AI career expert. Generate ")
	if n == 1 {
		b.WriteString("a SINGLE, highly optimized job search query")
	} else {
		fmt.Fprintf(&b, "%d distinct, highly optimized job search queries (one per line)", n)
	}
	b.WriteString(" for a Google Jobs style search API.\n\n")

	b.WriteString("Analyze the user's profile:\n")
	b.Write(serialized)
	b.WriteString("\n\n### Rules for each query:\n")
	b.WriteString(`1. Format: "[Primary Job Title] jobs in [Location]"
2. Conciseness: keep it under 10 words, avoid long skill lists.
3. Relevance: pick the MOST likely job role based on the top skills.
4. Location: use the provided city/country; if missing, stay global.
5. Output: return ONLY the query string(s). No quotes, no markdown, no explanations.

### Examples of good queries:
- Full Stack Developer jobs in Chicago
- React Developer jobs in India
- Data Analyst jobs in New York
- Python Developer remote jobs
`)

	return b.String()
}

// sanitizeQuery collapses untrusted collaborator output to one clean query:
// code fences and surrounding quotes are stripped, and only the first
// non-empty line survives.
func sanitizeQuery(raw string) string {
	lines := sanitizeQueries(raw, 1)
	if len(lines) == 0 {
		return ""
	}
	return lines[0]
}

func sanitizeQueries(raw string, n int) []string {
	raw = strings.ReplaceAll(raw, "```", "")

	queries := make([]string, 0, n)
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimPrefix(line, "- ")
		line = strings.Trim(line, `"'`)
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		queries = append(queries, line)
		if len(queries) == n {
			break
		}
	}
	return queries
}
