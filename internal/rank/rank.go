// Package rank scores postings by skill overlap with the caller's résumé.
package rank

import (
	"math"
	"sort"
	"strings"

	"github.com/ajeetk7ev/JobLytic/internal/models"
)

// Rank annotates each posting with the résumé skills found in its text and
// orders the result by descending match score. The sort is stable: postings
// with equal scores keep their input order, which lets the store's
// newest-first ordering act as the tie-break.
//
// Skills must be non-empty; the normalizer rejects empty skill lists before
// this point.
func Rank(postings []models.JobPosting, skills []string) []models.RankedPosting {
	lowered := make([]string, len(skills))
	for i, s := range skills {
		lowered[i] = strings.ToLower(s)
	}

	ranked := make([]models.RankedPosting, 0, len(postings))
	for _, posting := range postings {
		matched := matchSkills(blob(posting), lowered)

		score := 0
		if len(lowered) > 0 {
			score = int(math.Round(float64(len(matched)) / float64(len(lowered)) * 100))
		}

		ranked = append(ranked, models.RankedPosting{
			JobPosting:    posting,
			MatchedSkills: matched,
			MatchScore:    score,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].MatchScore > ranked[j].MatchScore
	})

	return ranked
}

func matchSkills(text string, loweredSkills []string) []string {
	matched := make([]string, 0, len(loweredSkills))
	for _, skill := range loweredSkills {
		if skill == "" {
			continue
		}
		if strings.Contains(text, skill) {
			matched = append(matched, skill)
		}
	}
	return matched
}

// blob flattens the searchable text of a posting into one lowercase string.
func blob(p models.JobPosting) string {
	parts := []string{p.Title, p.Description}
	parts = append(parts, p.Highlights.Qualifications...)
	parts = append(parts, p.Highlights.Responsibilities...)
	parts = append(parts, p.Highlights.Benefits...)
	return strings.ToLower(strings.Join(parts, " "))
}
