package services

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prepwise/backend/models"
	"github.com/prepwise/backend/repository"
)

// InterviewEndpoints serves the candidate-facing API: resume intake, the
// interview lifecycle, and chat history.
type InterviewEndpoints struct {
	repo   *repository.GORMRepository
	engine *InterviewEngine
	ai     AIClient
}

func NewInterviewEndpoints(repo *repository.GORMRepository, engine *InterviewEngine, ai AIClient) *InterviewEndpoints {
	return &InterviewEndpoints{
		repo:   repo,
		engine: engine,
		ai:     ai,
	}
}

type CreateCandidateResponse struct {
	Candidate     *models.Candidate `json:"candidate"`
	MissingFields []string          `json:"missing_fields"`
}

type UpdateCandidateRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type SubmitAnswerRequest struct {
	Text string `json:"text"`
}

type ChatMessageRequest struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

func (e *InterviewEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/candidates", func(r chi.Router) {
		r.Post("/", e.CreateCandidateHandler)
		r.Get("/resumable", e.GetResumableCandidatesHandler)
		r.Get("/{id}", e.GetCandidateHandler)
		r.Patch("/{id}", e.UpdateCandidateHandler)
		r.Get("/{id}/chat", e.GetChatHistoryHandler)
		r.Post("/{id}/chat", e.PostChatMessageHandler)
	})

	r.Route("/interviews", func(r chi.Router) {
		r.Post("/{candidateID}/start", e.StartInterviewHandler)
		r.Post("/{candidateID}/answer", e.SubmitAnswerHandler)
		r.Post("/{candidateID}/pause", e.PauseInterviewHandler)
		r.Post("/{candidateID}/resume", e.ResumeInterviewHandler)
		r.Get("/{candidateID}", e.GetInterviewHandler)
	})
}

// CreateCandidateHandler accepts a multipart resume upload, extracts the
// text and contact fields, and creates the candidate. Fields the extraction
// could not find are reported back so the chat flow can collect them.
func (e *InterviewEndpoints) CreateCandidateHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(MaxResumeSize); err != nil {
		http.Error(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("resume")
	if err != nil {
		http.Error(w, "Resume file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, MaxResumeSize+1))
	if err != nil {
		http.Error(w, "Failed to read resume file", http.StatusInternalServerError)
		return
	}
	if len(data) > MaxResumeSize {
		http.Error(w, "Resume file too large", http.StatusRequestEntityTooLarge)
		return
	}

	resumeText, err := ParseResumeText(header.Filename, data)
	if err != nil {
		slog.Warn("Resume parsing failed", "filename", header.Filename, "error", err)
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	fields := e.extractFields(r, resumeText)

	candidate := &models.Candidate{
		Name:            fields.Name,
		Email:           fields.Email,
		Phone:           fields.Phone,
		ResumeText:      resumeText,
		InterviewStatus: models.StatusNotStarted,
	}
	if err := e.repo.CreateCandidate(r.Context(), candidate); err != nil {
		slog.Error("Failed to create candidate", "error", err)
		http.Error(w, "Failed to create candidate", http.StatusInternalServerError)
		return
	}

	missing := missingProfileFields(candidate)
	slog.Info("Candidate created from resume",
		"candidate_id", candidate.ID,
		"filename", header.Filename,
		"missing_fields", missing)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(CreateCandidateResponse{
		Candidate:     candidate,
		MissingFields: missing,
	})
}

// extractFields tries AI extraction and falls back to pattern matching.
func (e *InterviewEndpoints) extractFields(r *http.Request, resumeText string) ResumeFields {
	if e.ai != nil {
		if fields, err := e.ai.ExtractResumeFields(r.Context(), resumeText); err == nil {
			return *fields
		} else {
			slog.Warn("AI resume field extraction failed, using pattern matching", "error", err)
		}
	}
	return ExtractContactFields(resumeText)
}

func missingProfileFields(c *models.Candidate) []string {
	missing := []string{}
	if strings.TrimSpace(c.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(c.Email) == "" {
		missing = append(missing, "email")
	}
	if strings.TrimSpace(c.Phone) == "" {
		missing = append(missing, "phone")
	}
	return missing
}

func (e *InterviewEndpoints) GetCandidateHandler(w http.ResponseWriter, r *http.Request) {
	candidateID := chi.URLParam(r, "id")
	candidate, err := e.repo.GetCandidateByID(r.Context(), candidateID)
	if err != nil || candidate == nil {
		http.Error(w, "Candidate not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"candidate":      candidate,
		"missing_fields": missingProfileFields(candidate),
	})
}

// UpdateCandidateHandler fills in profile fields the resume extraction
// missed. Only empty-to-value transitions for name/email/phone.
func (e *InterviewEndpoints) UpdateCandidateHandler(w http.ResponseWriter, r *http.Request) {
	candidateID := chi.URLParam(r, "id")
	candidate, err := e.repo.GetCandidateByID(r.Context(), candidateID)
	if err != nil || candidate == nil {
		http.Error(w, "Candidate not found", http.StatusNotFound)
		return
	}

	var req UpdateCandidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Name != "" {
		candidate.Name = req.Name
	}
	if req.Email != "" {
		candidate.Email = req.Email
	}
	if req.Phone != "" {
		candidate.Phone = req.Phone
	}

	if err := e.repo.UpdateCandidate(r.Context(), candidate); err != nil {
		slog.Error("Failed to update candidate", "candidate_id", candidateID, "error", err)
		http.Error(w, "Failed to update candidate", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"candidate":      candidate,
		"missing_fields": missingProfileFields(candidate),
	})
}

// GetResumableCandidatesHandler lists candidates with an interrupted
// in-progress interview, most recently active first. Drives the
// welcome-back prompt.
func (e *InterviewEndpoints) GetResumableCandidatesHandler(w http.ResponseWriter, r *http.Request) {
	candidates, err := e.repo.GetResumableCandidates(r.Context())
	if err != nil {
		slog.Error("Failed to get resumable candidates", "error", err)
		http.Error(w, "Failed to get resumable candidates", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"candidates": candidates,
		"count":      len(candidates),
	})
}

func (e *InterviewEndpoints) StartInterviewHandler(w http.ResponseWriter, r *http.Request) {
	candidateID := chi.URLParam(r, "candidateID")
	interview, err := e.engine.StartInterview(r.Context(), candidateID)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"interview": interview,
	})
}

func (e *InterviewEndpoints) SubmitAnswerHandler(w http.ResponseWriter, r *http.Request) {
	candidateID := chi.URLParam(r, "candidateID")

	var req SubmitAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	answer, err := e.engine.SubmitAnswer(r.Context(), candidateID, req.Text)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"answer": answer,
	})
}

func (e *InterviewEndpoints) PauseInterviewHandler(w http.ResponseWriter, r *http.Request) {
	candidateID := chi.URLParam(r, "candidateID")
	if err := e.engine.Pause(r.Context(), candidateID); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (e *InterviewEndpoints) ResumeInterviewHandler(w http.ResponseWriter, r *http.Request) {
	candidateID := chi.URLParam(r, "candidateID")
	if err := e.engine.Resume(r.Context(), candidateID); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetInterviewHandler returns the interview state, rehydrating an
// interrupted session into the engine if needed.
func (e *InterviewEndpoints) GetInterviewHandler(w http.ResponseWriter, r *http.Request) {
	candidateID := chi.URLParam(r, "candidateID")

	interview, err := e.repo.GetInterviewByCandidate(r.Context(), candidateID)
	if err != nil || interview == nil {
		http.Error(w, "Interview not found", http.StatusNotFound)
		return
	}

	if interview.EndTime == nil {
		if _, err := e.engine.RehydrateSession(r.Context(), candidateID); err != nil &&
			!errors.Is(err, ErrSessionCompleted) {
			slog.Error("Failed to rehydrate session", "candidate_id", candidateID, "error", err)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"interview": interview,
	})
}

func (e *InterviewEndpoints) GetChatHistoryHandler(w http.ResponseWriter, r *http.Request) {
	candidateID := chi.URLParam(r, "id")
	messages, err := e.repo.GetChatHistory(r.Context(), candidateID)
	if err != nil {
		slog.Error("Failed to get chat history", "candidate_id", candidateID, "error", err)
		http.Error(w, "Failed to get chat history", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"messages": messages,
		"count":    len(messages),
	})
}

func (e *InterviewEndpoints) PostChatMessageHandler(w http.ResponseWriter, r *http.Request) {
	candidateID := chi.URLParam(r, "id")

	var req ChatMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Type == "" {
		req.Type = models.ChatTypeUser
	}

	message := &models.ChatMessage{
		CandidateID: candidateID,
		Type:        req.Type,
		Content:     req.Content,
		Timestamp:   time.Now(),
	}
	if err := e.repo.SaveChatMessage(r.Context(), message); err != nil {
		slog.Error("Failed to save chat message", "candidate_id", candidateID, "error", err)
		http.Error(w, "Failed to save chat message", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": message,
	})
}

// writeEngineError maps engine state errors to HTTP status codes.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrDuplicateSession),
		errors.Is(err, ErrSessionPaused),
		errors.Is(err, ErrSessionCompleted),
		errors.Is(err, ErrAlreadyAnswered):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, ErrNoActiveSession):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
