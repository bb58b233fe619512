package services

import (
	"math"
	"sort"
	"strings"

	"github.com/prepwise/backend/models"
)

// Dashboard sort keys.
const (
	SortByScore = "score"
	SortByName  = "name"
	SortByDate  = "date"
)

// DashboardQuery filters and orders the interviewer's candidate list.
type DashboardQuery struct {
	Search string
	SortBy string
}

// DashboardStats summarizes the candidate pool for the interviewer.
type DashboardStats struct {
	TotalCandidates int `json:"total_candidates"`
	Completed       int `json:"completed"`
	InProgress      int `json:"in_progress"`
	NotStarted      int `json:"not_started"`
	AverageScore    int `json:"average_score"`
}

// FilterCandidates returns candidates whose name or email contains the
// search term, case-insensitively. An empty term matches everyone.
func FilterCandidates(candidates []models.Candidate, search string) []models.Candidate {
	search = strings.ToLower(strings.TrimSpace(search))
	if search == "" {
		return candidates
	}

	filtered := make([]models.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if strings.Contains(strings.ToLower(c.Name), search) ||
			strings.Contains(strings.ToLower(c.Email), search) {
			filtered = append(filtered, c)
		}
	}
	return filtered
}

// SortCandidates orders the list in place: score descending (unscored
// last), name ascending, or creation date newest first. Unknown keys sort
// by score.
func SortCandidates(candidates []models.Candidate, sortBy string) {
	switch sortBy {
	case SortByName:
		sort.SliceStable(candidates, func(i, j int) bool {
			return strings.ToLower(candidates[i].Name) < strings.ToLower(candidates[j].Name)
		})
	case SortByDate:
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].CreatedAt.After(candidates[j].CreatedAt)
		})
	default:
		sort.SliceStable(candidates, func(i, j int) bool {
			si, sj := candidates[i].FinalScore, candidates[j].FinalScore
			if si == nil && sj == nil {
				return false
			}
			if si == nil {
				return false
			}
			if sj == nil {
				return true
			}
			return *si > *sj
		})
	}
}

// QueryCandidates applies the query's filter and sort to the list.
func QueryCandidates(candidates []models.Candidate, query DashboardQuery) []models.Candidate {
	result := FilterCandidates(candidates, query.Search)
	SortCandidates(result, query.SortBy)
	return result
}

// ComputeStats aggregates counts and the mean final score over candidates
// that have one. The average is 0 when nobody has been scored yet.
func ComputeStats(candidates []models.Candidate) DashboardStats {
	stats := DashboardStats{TotalCandidates: len(candidates)}

	sum, scored := 0, 0
	for _, c := range candidates {
		switch c.InterviewStatus {
		case models.StatusCompleted:
			stats.Completed++
		case models.StatusInProgress:
			stats.InProgress++
		default:
			stats.NotStarted++
		}
		if c.FinalScore != nil {
			sum += *c.FinalScore
			scored++
		}
	}

	if scored > 0 {
		stats.AverageScore = int(math.Round(float64(sum) / float64(scored)))
	}
	return stats
}

// AverageAnswerScore computes the rounded mean of the scores that were
// actually assigned. Unscored answers are excluded; returns nil if nothing
// was scored.
func AverageAnswerScore(answers []models.Answer) *int {
	sum, scored := 0, 0
	for _, a := range answers {
		if a.Score != nil {
			sum += *a.Score
			scored++
		}
	}
	if scored == 0 {
		return nil
	}
	avg := int(math.Round(float64(sum) / float64(scored)))
	return &avg
}
