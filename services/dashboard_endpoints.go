package services

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prepwise/backend/repository"
)

// DashboardEndpoints serves the interviewer dashboard: candidate listing
// with search and sort, candidate detail with full transcript, and pool
// statistics. All routes require authentication.
type DashboardEndpoints struct {
	repo        *repository.GORMRepository
	authService *AuthService
}

func NewDashboardEndpoints(repo *repository.GORMRepository, authService *AuthService) *DashboardEndpoints {
	return &DashboardEndpoints{
		repo:        repo,
		authService: authService,
	}
}

func (e *DashboardEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/dashboard", func(r chi.Router) {
		r.Use(e.authService.Middleware)
		r.Get("/candidates", e.ListCandidatesHandler)
		r.Get("/candidates/{id}", e.GetCandidateDetailHandler)
		r.Delete("/candidates/{id}", e.DeleteCandidateHandler)
		r.Get("/stats", e.GetStatsHandler)
	})
}

// ListCandidatesHandler returns the candidate list filtered by ?search=
// and ordered by ?sort= (score, name, or date).
func (e *DashboardEndpoints) ListCandidatesHandler(w http.ResponseWriter, r *http.Request) {
	candidates, err := e.repo.GetCandidates(r.Context())
	if err != nil {
		slog.Error("Failed to list candidates", "error", err)
		http.Error(w, "Failed to list candidates", http.StatusInternalServerError)
		return
	}

	query := DashboardQuery{
		Search: r.URL.Query().Get("search"),
		SortBy: r.URL.Query().Get("sort"),
	}
	result := QueryCandidates(candidates, query)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"candidates": result,
		"count":      len(result),
	})
}

// GetCandidateDetailHandler returns one candidate with their interview,
// per-answer scores, chat transcript, and the computed answer average.
func (e *DashboardEndpoints) GetCandidateDetailHandler(w http.ResponseWriter, r *http.Request) {
	candidateID := chi.URLParam(r, "id")

	candidate, err := e.repo.GetCandidateByID(r.Context(), candidateID)
	if err != nil || candidate == nil {
		http.Error(w, "Candidate not found", http.StatusNotFound)
		return
	}

	detail := map[string]interface{}{
		"candidate": candidate,
	}

	if interview, err := e.repo.GetInterviewByCandidate(r.Context(), candidateID); err == nil && interview != nil {
		detail["interview"] = interview
		detail["answer_average"] = AverageAnswerScore(interview.Answers)
	}

	if messages, err := e.repo.GetChatHistory(r.Context(), candidateID); err == nil {
		detail["chat_history"] = messages
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(detail)
}

func (e *DashboardEndpoints) DeleteCandidateHandler(w http.ResponseWriter, r *http.Request) {
	candidateID := chi.URLParam(r, "id")

	if candidate, err := e.repo.GetCandidateByID(r.Context(), candidateID); err != nil || candidate == nil {
		http.Error(w, "Candidate not found", http.StatusNotFound)
		return
	}

	if err := e.repo.DeleteCandidate(r.Context(), candidateID); err != nil {
		slog.Error("Failed to delete candidate", "candidate_id", candidateID, "error", err)
		http.Error(w, "Failed to delete candidate", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
	slog.Info("Candidate deleted", "candidate_id", candidateID)
}

func (e *DashboardEndpoints) GetStatsHandler(w http.ResponseWriter, r *http.Request) {
	candidates, err := e.repo.GetCandidates(r.Context())
	if err != nil {
		slog.Error("Failed to compute dashboard stats", "error", err)
		http.Error(w, "Failed to compute stats", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ComputeStats(candidates))
}
