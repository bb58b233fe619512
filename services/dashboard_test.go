package services

import (
	"testing"
	"time"

	"github.com/prepwise/backend/models"
)

func intPtr(v int) *int { return &v }

func TestAverageAnswerScoreExcludesUnscored(t *testing.T) {
	tests := []struct {
		name    string
		answers []models.Answer
		want    *int
	}{
		{
			name: "mixed scored and unscored",
			answers: []models.Answer{
				{Score: intPtr(80)},
				{Score: nil},
				{Score: intPtr(60)},
			},
			want: intPtr(70),
		},
		{
			name: "rounding up",
			answers: []models.Answer{
				{Score: intPtr(70)},
				{Score: intPtr(75)},
			},
			want: intPtr(73),
		},
		{
			name:    "nothing scored",
			answers: []models.Answer{{Score: nil}, {Score: nil}},
			want:    nil,
		},
		{
			name:    "empty",
			answers: nil,
			want:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AverageAnswerScore(tt.answers)
			if (got == nil) != (tt.want == nil) {
				t.Fatalf("AverageAnswerScore() = %v, want %v", got, tt.want)
			}
			if got != nil && *got != *tt.want {
				t.Errorf("AverageAnswerScore() = %d, want %d", *got, *tt.want)
			}
		})
	}
}

func TestFilterCandidatesMatchesNameAndEmailCaseInsensitively(t *testing.T) {
	candidates := []models.Candidate{
		{Name: "Alice Johnson", Email: "alice@example.com"},
		{Name: "Bob Smith", Email: "bob@other.com"},
		{Name: "Carol Alvarez", Email: "carol@example.com"},
	}

	tests := []struct {
		search string
		want   int
	}{
		{"", 3},
		{"ALICE", 1},
		{"example.com", 2},
		{"smith", 1},
		{"  bob  ", 1},
		{"nobody", 0},
	}
	for _, tt := range tests {
		if got := FilterCandidates(candidates, tt.search); len(got) != tt.want {
			t.Errorf("FilterCandidates(%q) matched %d, want %d", tt.search, len(got), tt.want)
		}
	}
}

func TestSortCandidates(t *testing.T) {
	base := func() []models.Candidate {
		return []models.Candidate{
			{Name: "bob", FinalScore: intPtr(60), CreatedAt: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)},
			{Name: "Alice", FinalScore: nil, CreatedAt: time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC)},
			{Name: "carol", FinalScore: intPtr(90), CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
		}
	}

	t.Run("score descending, unscored last", func(t *testing.T) {
		c := base()
		SortCandidates(c, SortByScore)
		if c[0].Name != "carol" || c[1].Name != "bob" || c[2].Name != "Alice" {
			t.Errorf("score sort order = %s, %s, %s", c[0].Name, c[1].Name, c[2].Name)
		}
	})

	t.Run("name ascending case-insensitive", func(t *testing.T) {
		c := base()
		SortCandidates(c, SortByName)
		if c[0].Name != "Alice" || c[1].Name != "bob" || c[2].Name != "carol" {
			t.Errorf("name sort order = %s, %s, %s", c[0].Name, c[1].Name, c[2].Name)
		}
	})

	t.Run("date newest first", func(t *testing.T) {
		c := base()
		SortCandidates(c, SortByDate)
		if c[0].Name != "Alice" || c[1].Name != "bob" || c[2].Name != "carol" {
			t.Errorf("date sort order = %s, %s, %s", c[0].Name, c[1].Name, c[2].Name)
		}
	})

	t.Run("unknown key falls back to score", func(t *testing.T) {
		c := base()
		SortCandidates(c, "bogus")
		if c[0].Name != "carol" {
			t.Errorf("fallback sort leader = %s, want carol", c[0].Name)
		}
	})
}

func TestComputeStats(t *testing.T) {
	candidates := []models.Candidate{
		{InterviewStatus: models.StatusCompleted, FinalScore: intPtr(80)},
		{InterviewStatus: models.StatusCompleted, FinalScore: intPtr(61)},
		{InterviewStatus: models.StatusInProgress},
		{InterviewStatus: models.StatusNotStarted},
	}

	stats := ComputeStats(candidates)
	if stats.TotalCandidates != 4 {
		t.Errorf("TotalCandidates = %d, want 4", stats.TotalCandidates)
	}
	if stats.Completed != 2 || stats.InProgress != 1 || stats.NotStarted != 1 {
		t.Errorf("counts = %d/%d/%d, want 2/1/1", stats.Completed, stats.InProgress, stats.NotStarted)
	}
	if stats.AverageScore != 71 {
		t.Errorf("AverageScore = %d, want 71", stats.AverageScore)
	}
}

func TestComputeStatsEmptyPool(t *testing.T) {
	stats := ComputeStats(nil)
	if stats.TotalCandidates != 0 || stats.AverageScore != 0 {
		t.Errorf("empty pool stats = %+v", stats)
	}
}
