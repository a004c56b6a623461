package query

import (
	"strings"
	"testing"

	"github.com/ajeetk7ev/JobLytic/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeQuery_PlainText(t *testing.T) {
	assert.Equal(t, "React Developer jobs in India",
		sanitizeQuery("React Developer jobs in India"))
}

func TestSanitizeQuery_StripsCodeFences(t *testing.T) {
	raw := "```\nReact Developer jobs in India\n```"
	assert.Equal(t, "React Developer jobs in India", sanitizeQuery(raw))
}

func TestSanitizeQuery_StripsSurroundingQuotes(t *testing.T) {
	assert.Equal(t, "Data Analyst jobs in New York",
		sanitizeQuery(`"Data Analyst jobs in New York"`))
}

func TestSanitizeQuery_FirstNonEmptyLineWins(t *testing.T) {
	raw := "\n\n  Full Stack Developer jobs in Chicago  \nsecond line the model added"
	assert.Equal(t, "Full Stack Developer jobs in Chicago", sanitizeQuery(raw))
}

func TestSanitizeQuery_EmptyOutput(t *testing.T) {
	assert.Equal(t, "", sanitizeQuery("``` ```"))
}

func TestSanitizeQueries_BulletedMarkdownList(t *testing.T) {
	raw := "```\n- Backend Engineer jobs in Pune\n- \"Golang Developer remote jobs\"\n\n- DevOps Engineer jobs in India\n```"

	queries := sanitizeQueries(raw, 5)

	assert.Equal(t, []string{
		"Backend Engineer jobs in Pune",
		"Golang Developer remote jobs",
		"DevOps Engineer jobs in India",
	}, queries)
}

func TestSanitizeQueries_CapsAtN(t *testing.T) {
	raw := "a\nb\nc\nd\ne\nf\ng"
	assert.Len(t, sanitizeQueries(raw, 5), 5)
}

func TestBuildPrompt_ContainsSerializedPreferences(t *testing.T) {
	prefs := &models.SearchPreferences{
		Skills:  []string{"react", "node"},
		Country: "in",
		City:    "Pune",
	}

	prompt := buildPrompt(prefs, 1)

	assert.True(t, strings.Contains(prompt, `"react"`))
	assert.True(t, strings.Contains(prompt, "Pune"))
	assert.True(t, strings.Contains(prompt, "SINGLE"))
}

func TestBuildPrompt_BatchAsksForCount(t *testing.T) {
	prompt := buildPrompt(&models.SearchPreferences{Skills: []string{"go"}, Country: "in"}, 3)
	assert.True(t, strings.Contains(prompt, "3 distinct"))
}
