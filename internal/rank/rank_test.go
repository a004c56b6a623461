package rank_test

import (
	"testing"

	"github.com/ajeetk7ev/JobLytic/internal/models"
	"github.com/ajeetk7ev/JobLytic/internal/rank"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func posting(id, title, description string) models.JobPosting {
	return models.JobPosting{ExternalID: id, Title: title, Description: description}
}

func TestRank_PartialMatch(t *testing.T) {
	postings := []models.JobPosting{
		posting("j1", "Frontend Engineer", "We want strong React experience"),
	}

	ranked := rank.Rank(postings, []string{"react", "node"})

	require.Len(t, ranked, 1)
	assert.Equal(t, []string{"react"}, ranked[0].MatchedSkills)
	assert.Equal(t, 50, ranked[0].MatchScore)
}

func TestRank_MatchIsCaseInsensitive(t *testing.T) {
	postings := []models.JobPosting{
		posting("j1", "GoLang Developer", "Experience with POSTGRES required"),
	}

	ranked := rank.Rank(postings, []string{"Golang", "Postgres"})

	require.Len(t, ranked, 1)
	assert.Equal(t, 100, ranked[0].MatchScore)
	assert.Equal(t, []string{"golang", "postgres"}, ranked[0].MatchedSkills)
}

func TestRank_HighlightsCountTowardsMatch(t *testing.T) {
	p := posting("j1", "Backend Engineer", "Great team")
	p.Highlights = models.Highlights{
		Qualifications: []string{"3+ years of Kubernetes"},
	}

	ranked := rank.Rank([]models.JobPosting{p}, []string{"kubernetes"})

	require.Len(t, ranked, 1)
	assert.Equal(t, 100, ranked[0].MatchScore)
}

func TestRank_OrderIsDescendingAndStable(t *testing.T) {
	// Scores land as 30ish/90/90/10 shaped: what matters is that the two
	// full matches keep their relative input order ahead of the rest.
	postings := []models.JobPosting{
		posting("low-a", "Ops", "terraform only"),
		posting("high-1", "Full stack", "react node terraform"),
		posting("high-2", "Full stack too", "react node terraform"),
		posting("low-b", "Unrelated", "sales role"),
	}

	ranked := rank.Rank(postings, []string{"react", "node", "terraform"})

	require.Len(t, ranked, 4)
	assert.Equal(t, "high-1", ranked[0].ExternalID)
	assert.Equal(t, "high-2", ranked[1].ExternalID)
	assert.Equal(t, "low-a", ranked[2].ExternalID)
	assert.Equal(t, "low-b", ranked[3].ExternalID)
}

func TestRank_NoMatchesScoresZero(t *testing.T) {
	ranked := rank.Rank([]models.JobPosting{posting("j1", "Chef", "cooking")}, []string{"react"})

	require.Len(t, ranked, 1)
	assert.Equal(t, 0, ranked[0].MatchScore)
	assert.Empty(t, ranked[0].MatchedSkills)
}

func TestRank_EmptyPostings(t *testing.T) {
	ranked := rank.Rank(nil, []string{"react"})
	assert.Empty(t, ranked)
}
