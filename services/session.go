package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/prepwise/backend/models"
	"github.com/prepwise/backend/repository"
)

// Answer sentinels recorded when the candidate submits nothing or the
// question timer runs out.
const (
	NoAnswerText    = "No answer provided"
	TimeExpiredText = "Time expired - no answer provided"
)

// Typed errors for session state violations.
var (
	ErrDuplicateSession = errors.New("candidate already has an interview session")
	ErrNoActiveSession  = errors.New("candidate has no active interview session")
	ErrSessionPaused    = errors.New("interview session is paused")
	ErrSessionCompleted = errors.New("interview session is already completed")
	ErrAlreadyAnswered  = errors.New("current question has already been answered")
)

// Event types published to connected clients over the websocket.
const (
	EventQuestion  = "question"
	EventTick      = "tick"
	EventPaused    = "paused"
	EventResumed   = "resumed"
	EventAnswer    = "answer_recorded"
	EventScore     = "score"
	EventCompleted = "completed"
)

// InterviewEvent is a state change pushed to the candidate's websocket.
type InterviewEvent struct {
	Type           string           `json:"type"`
	QuestionIndex  int              `json:"question_index"`
	TotalQuestions int              `json:"total_questions,omitempty"`
	Question       *models.Question `json:"question,omitempty"`
	Remaining      int              `json:"remaining,omitempty"`
	Answer         *models.Answer   `json:"answer,omitempty"`
	Summary        string           `json:"summary,omitempty"`
	FinalScore     *int             `json:"final_score,omitempty"`
	Draft          string           `json:"draft,omitempty"`
}

// EventSink receives interview events for delivery to connected clients.
// The websocket hub implements this; a session with no connected client
// simply drops events.
type EventSink interface {
	Publish(candidateID string, event *InterviewEvent)
}

// InterviewEngine drives interview sessions: question generation, the
// per-question countdown, answer collection, async evaluation, and final
// summary. One session per candidate, at most.
type InterviewEngine struct {
	repo   *repository.GORMRepository
	ai     AIClient
	sink   EventSink
	config InterviewConfig

	// tickInterval overrides the one-second tick in tests
	tickInterval time.Duration

	mu     sync.Mutex
	active map[string]*activeSession
}

type activeSession struct {
	interview *models.Interview
	questions []*models.Question
	timer     *CountdownTimer
	answered  map[int]bool
	evals     sync.WaitGroup
	completed bool
}

func NewInterviewEngine(repo *repository.GORMRepository, ai AIClient, sink EventSink, config InterviewConfig) *InterviewEngine {
	return &InterviewEngine{
		repo:         repo,
		ai:           ai,
		sink:         sink,
		config:       config,
		tickInterval: time.Second,
		active:       make(map[string]*activeSession),
	}
}

// SetTickInterval speeds up countdowns in tests.
func (e *InterviewEngine) SetTickInterval(d time.Duration) {
	e.tickInterval = d
}

// StartInterview creates a session for the candidate, generates the question
// set, and starts the countdown on the first question. A candidate who
// already has an interview gets ErrDuplicateSession.
func (e *InterviewEngine) StartInterview(ctx context.Context, candidateID string) (*models.Interview, error) {
	candidate, err := e.repo.GetCandidateByID(ctx, candidateID)
	if err != nil {
		return nil, fmt.Errorf("candidate not found: %w", err)
	}

	if existing, err := e.repo.GetInterviewByCandidate(ctx, candidateID); err == nil && existing != nil {
		if existing.EndTime != nil {
			return nil, ErrSessionCompleted
		}
		return nil, ErrDuplicateSession
	}

	questions, err := e.buildQuestionSet(ctx, candidate)
	if err != nil {
		return nil, err
	}

	first := questions[0]
	interview := &models.Interview{
		CandidateID:          candidateID,
		CurrentQuestionIndex: 0,
		StartTime:            time.Now(),
		TimeRemaining:        first.TimeLimit,
	}
	if err := e.repo.CreateInterview(ctx, interview, questions); err != nil {
		return nil, fmt.Errorf("failed to create interview: %w", err)
	}

	candidate.InterviewStatus = models.StatusInProgress
	if err := e.repo.UpdateCandidate(ctx, candidate); err != nil {
		return nil, fmt.Errorf("failed to update candidate status: %w", err)
	}

	session := &activeSession{
		interview: interview,
		questions: questions,
		timer:     NewCountdownTimer(first.TimeLimit),
		answered:  make(map[int]bool),
	}
	session.timer.SetInterval(e.tickInterval)

	e.mu.Lock()
	e.active[candidateID] = session
	e.mu.Unlock()

	e.recordChat(candidateID, models.ChatTypeSystem, "Interview started. Good luck!")
	e.recordChat(candidateID, models.ChatTypeAI, first.Text)

	e.armQuestion(candidateID, session, 0)
	session.timer.Start()

	slog.Info("Interview started",
		"candidate_id", candidateID,
		"questions", len(questions),
		"first_limit", first.TimeLimit)

	interview.Questions = make([]models.Question, len(questions))
	for i, q := range questions {
		interview.Questions[i] = *q
	}
	return interview, nil
}

// buildQuestionSet asks the AI for tailored questions, falling back to the
// seeded bank if generation fails terminally.
func (e *InterviewEngine) buildQuestionSet(ctx context.Context, candidate *models.Candidate) ([]*models.Question, error) {
	generated, err := e.ai.GenerateQuestions(ctx, e.config.Category, candidate.ResumeText, DefaultQuestionCounts)
	if err == nil {
		questions := make([]*models.Question, len(generated))
		for i, g := range generated {
			questions[i] = &models.Question{
				Position:       i,
				Text:           g.Text,
				Difficulty:     g.Difficulty,
				TimeLimit:      models.TimeLimitFor(g.Difficulty),
				Category:       g.Category,
				ExpectedTopics: g.ExpectedTopics,
			}
		}
		return questions, nil
	}

	slog.Warn("AI question generation failed, using fallback bank", "candidate_id", candidate.ID, "error", err)
	bank, bankErr := e.repo.GetFallbackQuestions(ctx)
	if bankErr != nil || len(bank) == 0 {
		return nil, fmt.Errorf("no questions available: %w", err)
	}

	questions := make([]*models.Question, len(bank))
	for i, f := range bank {
		questions[i] = &models.Question{
			Position:       i,
			Text:           f.Text,
			Difficulty:     f.Difficulty,
			TimeLimit:      models.TimeLimitFor(f.Difficulty),
			Category:       f.Category,
			ExpectedTopics: f.ExpectedTopics,
		}
	}
	return questions, nil
}

// armQuestion points the timer callbacks at the question at index idx and
// publishes the question event. Caller starts the timer.
func (e *InterviewEngine) armQuestion(candidateID string, session *activeSession, idx int) {
	question := session.questions[idx]

	session.timer.SetOnTick(func(remaining int) {
		e.handleTick(candidateID, session, idx, remaining)
	})
	session.timer.SetOnExpire(func() {
		e.handleExpiry(candidateID, idx)
	})

	e.publish(candidateID, &InterviewEvent{
		Type:           EventQuestion,
		QuestionIndex:  idx,
		TotalQuestions: len(session.questions),
		Question:       question,
		Remaining:      session.timer.Remaining(),
	})
}

func (e *InterviewEngine) handleTick(candidateID string, session *activeSession, idx int, remaining int) {
	e.publish(candidateID, &InterviewEvent{
		Type:          EventTick,
		QuestionIndex: idx,
		Remaining:     remaining,
	})

	// Persist remaining time every five ticks so a crash or disconnect
	// loses at most a few seconds.
	if remaining > 0 && remaining%5 == 0 {
		e.mu.Lock()
		session.interview.TimeRemaining = remaining
		interview := session.interview
		e.mu.Unlock()
		if err := e.repo.UpdateInterview(context.Background(), interview); err != nil {
			slog.Error("Failed to persist timer state", "candidate_id", candidateID, "error", err)
		}
	}
}

// handleExpiry auto-submits whatever text was drafted when the timer ran
// out, falling back to the time-expired sentinel. A submit that won the
// race is respected.
func (e *InterviewEngine) handleExpiry(candidateID string, idx int) {
	e.mu.Lock()
	session, ok := e.active[candidateID]
	if !ok || session.answered[idx] || session.interview.CurrentQuestionIndex != idx {
		e.mu.Unlock()
		return
	}
	session.answered[idx] = true
	question := session.questions[idx]
	draft := strings.TrimSpace(session.interview.CurrentDraft)
	e.mu.Unlock()

	slog.Info("Question timer expired", "candidate_id", candidateID, "question_index", idx)

	text := draft
	evaluate := text != ""
	if !evaluate {
		text = TimeExpiredText
	}

	answer := &models.Answer{
		InterviewID: session.interview.ID,
		QuestionID:  question.ID,
		Text:        text,
		TimeSpent:   question.TimeLimit,
		Timestamp:   time.Now(),
	}
	e.recordAndAdvance(candidateID, session, idx, answer, evaluate)
}

// SubmitAnswer records the candidate's answer for the current question,
// kicks off async evaluation, and advances to the next question or
// completes the interview.
func (e *InterviewEngine) SubmitAnswer(ctx context.Context, candidateID, text string) (*models.Answer, error) {
	e.mu.Lock()
	session, ok := e.active[candidateID]
	if !ok {
		e.mu.Unlock()
		return nil, e.inactiveError(ctx, candidateID)
	}
	if session.interview.IsPaused {
		e.mu.Unlock()
		return nil, ErrSessionPaused
	}
	idx := session.interview.CurrentQuestionIndex
	if idx >= len(session.questions) || session.answered[idx] {
		e.mu.Unlock()
		return nil, ErrAlreadyAnswered
	}
	session.answered[idx] = true
	question := session.questions[idx]
	e.mu.Unlock()

	session.timer.Pause()
	timeSpent := question.TimeLimit - session.timer.Remaining()

	text = strings.TrimSpace(text)
	evaluate := text != ""
	if !evaluate {
		text = NoAnswerText
	}

	answer := &models.Answer{
		InterviewID: session.interview.ID,
		QuestionID:  question.ID,
		Text:        text,
		TimeSpent:   timeSpent,
		Timestamp:   time.Now(),
	}
	if err := e.recordAndAdvance(candidateID, session, idx, answer, evaluate); err != nil {
		return nil, err
	}
	return answer, nil
}

// inactiveError distinguishes a completed interview from one that never
// started.
func (e *InterviewEngine) inactiveError(ctx context.Context, candidateID string) error {
	if interview, err := e.repo.GetInterviewByCandidate(ctx, candidateID); err == nil && interview != nil && interview.EndTime != nil {
		return ErrSessionCompleted
	}
	return ErrNoActiveSession
}

// recordAndAdvance persists the answer, schedules evaluation, and either
// arms the next question or finishes the interview.
func (e *InterviewEngine) recordAndAdvance(candidateID string, session *activeSession, idx int, answer *models.Answer, evaluate bool) error {
	ctx := context.Background()
	if err := e.repo.CreateAnswer(ctx, answer); err != nil {
		slog.Error("Failed to persist answer", "candidate_id", candidateID, "error", err)
		return fmt.Errorf("failed to record answer: %w", err)
	}

	e.recordChat(candidateID, models.ChatTypeUser, answer.Text)

	e.publish(candidateID, &InterviewEvent{
		Type:          EventAnswer,
		QuestionIndex: idx,
		Answer:        answer,
	})

	if evaluate {
		question := session.questions[idx]
		session.evals.Add(1)
		go e.evaluateAnswer(candidateID, session, idx, question, answer)
	}

	e.mu.Lock()
	next := idx + 1
	session.interview.CurrentQuestionIndex = next
	session.interview.CurrentDraft = ""
	done := next >= len(session.questions)
	if !done {
		session.interview.TimeRemaining = session.questions[next].TimeLimit
	} else {
		session.interview.TimeRemaining = 0
	}
	interview := session.interview
	e.mu.Unlock()

	if err := e.repo.UpdateInterview(ctx, interview); err != nil {
		slog.Error("Failed to persist interview progress", "candidate_id", candidateID, "error", err)
	}

	if done {
		e.completeInterview(candidateID, session)
		return nil
	}

	e.recordChat(candidateID, models.ChatTypeAI, session.questions[next].Text)

	session.timer.Reset(session.questions[next].TimeLimit)
	e.armQuestion(candidateID, session, next)
	session.timer.Start()
	return nil
}

// recordChat appends a transcript entry shown on the dashboard detail view.
func (e *InterviewEngine) recordChat(candidateID, msgType, content string) {
	msg := &models.ChatMessage{
		CandidateID: candidateID,
		Type:        msgType,
		Content:     content,
		Timestamp:   time.Now(),
	}
	if err := e.repo.SaveChatMessage(context.Background(), msg); err != nil {
		slog.Error("Failed to record chat message", "candidate_id", candidateID, "error", err)
	}
}

// evaluateAnswer scores an answer through the gateway. Failures leave the
// answer unscored; the interview has already moved on.
func (e *InterviewEngine) evaluateAnswer(candidateID string, session *activeSession, idx int, question *models.Question, answer *models.Answer) {
	defer session.evals.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	eval, err := e.ai.EvaluateAnswer(ctx, question, answer.Text)
	if err != nil {
		slog.Warn("Answer evaluation failed, leaving unscored",
			"candidate_id", candidateID,
			"question_id", question.ID,
			"error", err)
		return
	}

	if err := e.repo.UpdateAnswerScore(ctx, answer.InterviewID, answer.QuestionID, eval.Score, eval.Feedback, eval.Strengths, eval.Improvements); err != nil {
		slog.Error("Failed to persist answer score", "candidate_id", candidateID, "error", err)
		return
	}

	score := eval.Score
	answer.Score = &score
	answer.Feedback = eval.Feedback
	answer.Strengths = eval.Strengths
	answer.Improvements = eval.Improvements
	e.publish(candidateID, &InterviewEvent{
		Type:          EventScore,
		QuestionIndex: idx,
		Answer:        answer,
	})
}

// completeInterview sets the end time exactly once, marks the candidate
// completed, and generates the summary after pending evaluations settle.
func (e *InterviewEngine) completeInterview(candidateID string, session *activeSession) {
	e.mu.Lock()
	if session.completed {
		e.mu.Unlock()
		return
	}
	session.completed = true
	now := time.Now()
	if session.interview.EndTime == nil {
		session.interview.EndTime = &now
	}
	interview := session.interview
	delete(e.active, candidateID)
	e.mu.Unlock()

	session.timer.Pause()

	ctx := context.Background()
	if err := e.repo.UpdateInterview(ctx, interview); err != nil {
		slog.Error("Failed to persist interview completion", "candidate_id", candidateID, "error", err)
	}

	slog.Info("Interview completed", "candidate_id", candidateID, "interview_id", interview.ID)

	go e.finalizeSummary(candidateID, session)
}

// finalizeSummary waits for in-flight evaluations, then asks the AI for the
// overall verdict. On failure the final score falls back to the last
// answer score available.
func (e *InterviewEngine) finalizeSummary(candidateID string, session *activeSession) {
	session.evals.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	candidate, err := e.repo.GetCandidateByID(ctx, candidateID)
	if err != nil {
		slog.Error("Failed to load candidate for summary", "candidate_id", candidateID, "error", err)
		return
	}

	interview, err := e.repo.GetInterviewByCandidate(ctx, candidateID)
	if err != nil || interview == nil {
		slog.Error("Failed to load interview for summary", "candidate_id", candidateID, "error", err)
		return
	}

	results := buildQuestionResults(interview)
	summary, err := e.ai.GenerateSummary(ctx, candidate.Name, results)

	candidate.InterviewStatus = models.StatusCompleted
	if err != nil {
		slog.Warn("Summary generation failed, using last available score",
			"candidate_id", candidateID, "error", err)
		candidate.FinalScore = lastAvailableScore(results)
		candidate.Summary = "Summary unavailable."
	} else {
		score := summary.OverallScore
		candidate.FinalScore = &score
		candidate.Summary = summary.Summary
	}

	if err := e.repo.UpdateCandidate(ctx, candidate); err != nil {
		slog.Error("Failed to persist final verdict", "candidate_id", candidateID, "error", err)
		return
	}

	e.recordChat(candidateID, models.ChatTypeSystem, "Interview completed. Thank you for your time!")

	e.publish(candidateID, &InterviewEvent{
		Type:       EventCompleted,
		Summary:    candidate.Summary,
		FinalScore: candidate.FinalScore,
	})
}

func buildQuestionResults(interview *models.Interview) []QuestionResult {
	answersByQuestion := make(map[string]*models.Answer, len(interview.Answers))
	for i := range interview.Answers {
		answersByQuestion[interview.Answers[i].QuestionID] = &interview.Answers[i]
	}

	results := make([]QuestionResult, 0, len(interview.Questions))
	for _, q := range interview.Questions {
		result := QuestionResult{Question: q.Text, Answer: NoAnswerText}
		if a, ok := answersByQuestion[q.ID]; ok {
			result.Answer = a.Text
			result.Score = a.Score
		}
		results = append(results, result)
	}
	return results
}

// lastAvailableScore walks the results backwards and returns the most
// recent score that was actually assigned.
func lastAvailableScore(results []QuestionResult) *int {
	for i := len(results) - 1; i >= 0; i-- {
		if results[i].Score != nil {
			score := *results[i].Score
			return &score
		}
	}
	return nil
}

// Pause freezes the session's countdown. The remaining time is persisted.
func (e *InterviewEngine) Pause(ctx context.Context, candidateID string) error {
	e.mu.Lock()
	session, ok := e.active[candidateID]
	if !ok {
		e.mu.Unlock()
		return e.inactiveError(ctx, candidateID)
	}
	session.interview.IsPaused = true
	e.mu.Unlock()

	session.timer.Pause()

	e.mu.Lock()
	session.interview.TimeRemaining = session.timer.Remaining()
	interview := session.interview
	idx := interview.CurrentQuestionIndex
	e.mu.Unlock()

	if err := e.repo.UpdateInterview(ctx, interview); err != nil {
		slog.Error("Failed to persist pause", "candidate_id", candidateID, "error", err)
	}

	e.publish(candidateID, &InterviewEvent{
		Type:          EventPaused,
		QuestionIndex: idx,
		Remaining:     session.timer.Remaining(),
	})
	slog.Info("Interview paused", "candidate_id", candidateID, "remaining", session.timer.Remaining())
	return nil
}

// Resume continues a paused session from where the countdown stopped.
func (e *InterviewEngine) Resume(ctx context.Context, candidateID string) error {
	e.mu.Lock()
	session, ok := e.active[candidateID]
	if !ok {
		e.mu.Unlock()
		return e.inactiveError(ctx, candidateID)
	}
	if !session.interview.IsPaused {
		e.mu.Unlock()
		return nil
	}
	session.interview.IsPaused = false
	interview := session.interview
	idx := interview.CurrentQuestionIndex
	e.mu.Unlock()

	if err := e.repo.UpdateInterview(ctx, interview); err != nil {
		slog.Error("Failed to persist resume", "candidate_id", candidateID, "error", err)
	}

	session.timer.Resume()

	e.publish(candidateID, &InterviewEvent{
		Type:          EventResumed,
		QuestionIndex: idx,
		Remaining:     session.timer.Remaining(),
	})
	slog.Info("Interview resumed", "candidate_id", candidateID, "remaining", session.timer.Remaining())
	return nil
}

// SetDraft saves the candidate's unsubmitted answer text so a reconnect
// restores it.
func (e *InterviewEngine) SetDraft(ctx context.Context, candidateID, text string) error {
	e.mu.Lock()
	session, ok := e.active[candidateID]
	if !ok {
		e.mu.Unlock()
		return ErrNoActiveSession
	}
	session.interview.CurrentDraft = text
	interview := session.interview
	e.mu.Unlock()

	return e.repo.UpdateInterview(ctx, interview)
}

// RehydrateSession restores an interrupted in-progress interview from the
// database: the welcome-back flow. The countdown resumes from the persisted
// remaining time, paused until the candidate explicitly resumes.
func (e *InterviewEngine) RehydrateSession(ctx context.Context, candidateID string) (*models.Interview, error) {
	e.mu.Lock()
	if session, ok := e.active[candidateID]; ok {
		interview := session.interview
		e.mu.Unlock()
		return interview, nil
	}
	e.mu.Unlock()

	interview, err := e.repo.GetInterviewByCandidate(ctx, candidateID)
	if err != nil || interview == nil {
		return nil, ErrNoActiveSession
	}
	if interview.EndTime != nil {
		return nil, ErrSessionCompleted
	}

	questions := make([]*models.Question, len(interview.Questions))
	for i := range interview.Questions {
		questions[i] = &interview.Questions[i]
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("interview %s has no questions", interview.ID)
	}

	idx := interview.CurrentQuestionIndex
	if idx >= len(questions) {
		// All questions answered but the summary never ran; finish now.
		idx = len(questions) - 1
	}

	remaining := interview.TimeRemaining
	if remaining <= 0 || remaining > questions[idx].TimeLimit {
		remaining = questions[idx].TimeLimit
	}

	interview.IsPaused = true
	session := &activeSession{
		interview: interview,
		questions: questions,
		timer:     NewCountdownTimer(remaining),
		answered:  rebuildAnswered(interview, questions),
	}
	session.timer.SetInterval(e.tickInterval)

	e.mu.Lock()
	e.active[candidateID] = session
	e.mu.Unlock()

	if interview.CurrentQuestionIndex >= len(questions) {
		e.completeInterview(candidateID, session)
		return interview, nil
	}

	e.armQuestion(candidateID, session, idx)

	slog.Info("Interview session rehydrated",
		"candidate_id", candidateID,
		"question_index", idx,
		"remaining", remaining)
	return interview, nil
}

func rebuildAnswered(interview *models.Interview, questions []*models.Question) map[int]bool {
	byID := make(map[string]int, len(questions))
	for i, q := range questions {
		byID[q.ID] = i
	}
	answered := make(map[int]bool, len(interview.Answers))
	for _, a := range interview.Answers {
		if i, ok := byID[a.QuestionID]; ok {
			answered[i] = true
		}
	}
	return answered
}

// Shutdown pauses every active countdown and persists remaining time so
// sessions survive a restart.
func (e *InterviewEngine) Shutdown(ctx context.Context) {
	e.mu.Lock()
	sessions := make(map[string]*activeSession, len(e.active))
	for id, s := range e.active {
		sessions[id] = s
	}
	e.mu.Unlock()

	for candidateID, session := range sessions {
		session.timer.Pause()
		e.mu.Lock()
		session.interview.TimeRemaining = session.timer.Remaining()
		interview := session.interview
		e.mu.Unlock()
		if err := e.repo.UpdateInterview(ctx, interview); err != nil {
			slog.Error("Failed to persist session on shutdown", "candidate_id", candidateID, "error", err)
		}
	}
	slog.Info("Interview engine shut down", "sessions_persisted", len(sessions))
}

func (e *InterviewEngine) publish(candidateID string, event *InterviewEvent) {
	if e.sink != nil {
		e.sink.Publish(candidateID, event)
	}
}
