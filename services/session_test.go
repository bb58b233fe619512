package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prepwise/backend/models"
	"github.com/prepwise/backend/repository"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestRepo(t *testing.T) *repository.GORMRepository {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	repo := repository.NewGORMRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return repo
}

func newTestCandidate(t *testing.T, repo *repository.GORMRepository) *models.Candidate {
	t.Helper()
	candidate := &models.Candidate{
		Name:            "Jordan Lee",
		Email:           "jordan@example.com",
		Phone:           "555-0137",
		ResumeText:      "Full stack developer with React and Node experience.",
		InterviewStatus: models.StatusNotStarted,
	}
	if err := repo.CreateCandidate(context.Background(), candidate); err != nil {
		t.Fatalf("failed to create candidate: %v", err)
	}
	return candidate
}

// fakeAI is a deterministic stand-in for the Gemini client.
type fakeAI struct {
	mu        sync.Mutex
	questions []GeneratedQuestion
	genErr    error
	evalScore int
	evalErr   error
	summary   *SummaryResult
	sumErr    error
	evaluated []string
}

func (f *fakeAI) GenerateQuestions(ctx context.Context, category, resumeText string, counts QuestionCounts) ([]GeneratedQuestion, error) {
	if f.genErr != nil {
		return nil, f.genErr
	}
	return f.questions, nil
}

func (f *fakeAI) EvaluateAnswer(ctx context.Context, question *models.Question, answerText string) (*Evaluation, error) {
	f.mu.Lock()
	f.evaluated = append(f.evaluated, answerText)
	f.mu.Unlock()
	if f.evalErr != nil {
		return nil, f.evalErr
	}
	return &Evaluation{
		Score:        f.evalScore,
		Feedback:     "solid answer",
		Strengths:    []string{"clear explanation"},
		Improvements: []string{"cover edge cases"},
	}, nil
}

func (f *fakeAI) GenerateSummary(ctx context.Context, candidateName string, results []QuestionResult) (*SummaryResult, error) {
	if f.sumErr != nil {
		return nil, f.sumErr
	}
	if f.summary != nil {
		return f.summary, nil
	}
	return &SummaryResult{OverallScore: 50, Summary: "no verdict"}, nil
}

func (f *fakeAI) ExtractResumeFields(ctx context.Context, resumeText string) (*ResumeFields, error) {
	return &ResumeFields{}, nil
}

func (f *fakeAI) evaluatedAnswers() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.evaluated...)
}

// recordingSink captures published events.
type recordingSink struct {
	mu     sync.Mutex
	events []*InterviewEvent
}

func (s *recordingSink) Publish(candidateID string, event *InterviewEvent) {
	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
}

func (s *recordingSink) byType(eventType string) []*InterviewEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*InterviewEvent
	for _, e := range s.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

func twoQuestionSet() []GeneratedQuestion {
	return []GeneratedQuestion{
		{Text: "What is a closure?", Difficulty: models.DifficultyEasy, Category: "React/Node", ExpectedTopics: []string{"scope"}},
		{Text: "Design a rate limiter.", Difficulty: models.DifficultyHard, Category: "React/Node", ExpectedTopics: []string{"token bucket"}},
	}
}

func newTestEngine(t *testing.T, ai AIClient) (*InterviewEngine, *repository.GORMRepository, *recordingSink) {
	t.Helper()
	repo := newTestRepo(t)
	sink := &recordingSink{}
	engine := NewInterviewEngine(repo, ai, sink, InterviewConfig{Category: "React/Node", QuestionCount: 6})
	// Keep timers effectively frozen unless a test opts in
	engine.SetTickInterval(time.Hour)
	return engine, repo, sink
}

func TestStartInterviewAssignsTimeLimitsByDifficulty(t *testing.T) {
	ai := &fakeAI{questions: twoQuestionSet(), evalScore: 80, summary: &SummaryResult{OverallScore: 80, Summary: "ok"}}
	engine, _, sink := newTestEngine(t, ai)
	candidate := newTestCandidate(t, engine.repo)

	interview, err := engine.StartInterview(context.Background(), candidate.ID)
	if err != nil {
		t.Fatalf("StartInterview() = %v", err)
	}

	if len(interview.Questions) != 2 {
		t.Fatalf("questions = %d, want 2", len(interview.Questions))
	}
	if got := interview.Questions[0].TimeLimit; got != 20 {
		t.Errorf("easy question time limit = %d, want 20", got)
	}
	if got := interview.Questions[1].TimeLimit; got != 120 {
		t.Errorf("hard question time limit = %d, want 120", got)
	}

	updated, err := engine.repo.GetCandidateByID(context.Background(), candidate.ID)
	if err != nil {
		t.Fatalf("GetCandidateByID() = %v", err)
	}
	if updated.InterviewStatus != models.StatusInProgress {
		t.Errorf("candidate status = %q, want %q", updated.InterviewStatus, models.StatusInProgress)
	}

	questionEvents := sink.byType(EventQuestion)
	if len(questionEvents) != 1 || questionEvents[0].QuestionIndex != 0 {
		t.Errorf("expected one question event for index 0, got %d events", len(questionEvents))
	}
}

func TestStartInterviewDuplicateRejected(t *testing.T) {
	ai := &fakeAI{questions: twoQuestionSet()}
	engine, _, _ := newTestEngine(t, ai)
	candidate := newTestCandidate(t, engine.repo)

	if _, err := engine.StartInterview(context.Background(), candidate.ID); err != nil {
		t.Fatalf("first StartInterview() = %v", err)
	}
	if _, err := engine.StartInterview(context.Background(), candidate.ID); !errors.Is(err, ErrDuplicateSession) {
		t.Errorf("second StartInterview() = %v, want ErrDuplicateSession", err)
	}
}

func TestStartInterviewFallsBackToQuestionBank(t *testing.T) {
	ai := &fakeAI{genErr: ErrGenerationFailed}
	engine, repo, _ := newTestEngine(t, ai)
	candidate := newTestCandidate(t, repo)

	seeder := NewDatabaseSeeder(repo)
	if err := seeder.SeedDatabase(); err != nil {
		t.Fatalf("SeedDatabase() = %v", err)
	}

	interview, err := engine.StartInterview(context.Background(), candidate.ID)
	if err != nil {
		t.Fatalf("StartInterview() = %v", err)
	}
	if len(interview.Questions) != 6 {
		t.Fatalf("fallback questions = %d, want 6", len(interview.Questions))
	}
	// Bank ordering: easy, easy, medium, medium, hard, hard
	wantDifficulties := []string{"easy", "easy", "medium", "medium", "hard", "hard"}
	for i, q := range interview.Questions {
		if q.Difficulty != wantDifficulties[i] {
			t.Errorf("question %d difficulty = %q, want %q", i, q.Difficulty, wantDifficulties[i])
		}
	}
}

func TestStartInterviewNoQuestionsAvailable(t *testing.T) {
	ai := &fakeAI{genErr: ErrGenerationFailed}
	engine, repo, _ := newTestEngine(t, ai)
	candidate := newTestCandidate(t, repo)

	if _, err := engine.StartInterview(context.Background(), candidate.ID); err == nil {
		t.Error("StartInterview() succeeded with no AI and an empty bank")
	}
}

func TestSubmitAnswerAdvancesAndCompletes(t *testing.T) {
	ai := &fakeAI{
		questions: twoQuestionSet(),
		evalScore: 85,
		summary:   &SummaryResult{OverallScore: 78, Summary: "Strong fundamentals."},
	}
	engine, repo, sink := newTestEngine(t, ai)
	candidate := newTestCandidate(t, repo)
	ctx := context.Background()

	if _, err := engine.StartInterview(ctx, candidate.ID); err != nil {
		t.Fatalf("StartInterview() = %v", err)
	}

	answer, err := engine.SubmitAnswer(ctx, candidate.ID, "A closure captures its lexical scope.")
	if err != nil {
		t.Fatalf("SubmitAnswer(1) = %v", err)
	}
	if answer.Text != "A closure captures its lexical scope." {
		t.Errorf("answer text = %q", answer.Text)
	}

	interview, _ := repo.GetInterviewByCandidate(ctx, candidate.ID)
	if interview.CurrentQuestionIndex != 1 {
		t.Errorf("CurrentQuestionIndex = %d after first answer, want 1", interview.CurrentQuestionIndex)
	}

	if _, err := engine.SubmitAnswer(ctx, candidate.ID, "Token bucket per client."); err != nil {
		t.Fatalf("SubmitAnswer(2) = %v", err)
	}

	// Completion and summary run asynchronously
	deadline := time.Now().Add(5 * time.Second)
	var updated *models.Candidate
	for time.Now().Before(deadline) {
		updated, _ = repo.GetCandidateByID(ctx, candidate.ID)
		if updated != nil && updated.FinalScore != nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if updated == nil || updated.FinalScore == nil {
		t.Fatal("final score never set after completion")
	}
	if *updated.FinalScore != 78 {
		t.Errorf("FinalScore = %d, want 78", *updated.FinalScore)
	}
	if updated.InterviewStatus != models.StatusCompleted {
		t.Errorf("status = %q, want %q", updated.InterviewStatus, models.StatusCompleted)
	}
	if updated.Summary != "Strong fundamentals." {
		t.Errorf("summary = %q", updated.Summary)
	}

	interview, _ = repo.GetInterviewByCandidate(ctx, candidate.ID)
	if interview.EndTime == nil {
		t.Error("EndTime not set after completion")
	}
	if interview.CurrentQuestionIndex != 2 {
		t.Errorf("final CurrentQuestionIndex = %d, want 2", interview.CurrentQuestionIndex)
	}
	for _, a := range interview.Answers {
		if len(a.Strengths) == 0 || len(a.Improvements) == 0 {
			t.Errorf("answer %s missing evaluation strengths/improvements", a.ID)
		}
	}

	if got := ai.evaluatedAnswers(); len(got) != 2 {
		t.Errorf("evaluated %d answers, want 2", len(got))
	}
	if events := sink.byType(EventCompleted); len(events) != 1 {
		t.Errorf("completed events = %d, want 1", len(events))
	}

	// Further submissions hit the completed guard
	if _, err := engine.SubmitAnswer(ctx, candidate.ID, "late"); !errors.Is(err, ErrSessionCompleted) {
		t.Errorf("SubmitAnswer after completion = %v, want ErrSessionCompleted", err)
	}
}

func TestSubmitAnswerEmptyRecordsSentinelWithoutEvaluation(t *testing.T) {
	ai := &fakeAI{questions: twoQuestionSet(), evalScore: 90}
	engine, repo, _ := newTestEngine(t, ai)
	candidate := newTestCandidate(t, repo)
	ctx := context.Background()

	if _, err := engine.StartInterview(ctx, candidate.ID); err != nil {
		t.Fatalf("StartInterview() = %v", err)
	}

	answer, err := engine.SubmitAnswer(ctx, candidate.ID, "   ")
	if err != nil {
		t.Fatalf("SubmitAnswer() = %v", err)
	}
	if answer.Text != NoAnswerText {
		t.Errorf("answer text = %q, want %q", answer.Text, NoAnswerText)
	}
	if got := ai.evaluatedAnswers(); len(got) != 0 {
		t.Errorf("empty answer was sent for evaluation: %v", got)
	}
}

func TestSubmitAnswerWithNoSession(t *testing.T) {
	ai := &fakeAI{}
	engine, repo, _ := newTestEngine(t, ai)
	candidate := newTestCandidate(t, repo)

	if _, err := engine.SubmitAnswer(context.Background(), candidate.ID, "hello"); !errors.Is(err, ErrNoActiveSession) {
		t.Errorf("SubmitAnswer() = %v, want ErrNoActiveSession", err)
	}
}

func TestPauseBlocksSubmissionUntilResume(t *testing.T) {
	ai := &fakeAI{questions: twoQuestionSet(), evalScore: 50}
	engine, repo, sink := newTestEngine(t, ai)
	candidate := newTestCandidate(t, repo)
	ctx := context.Background()

	if _, err := engine.StartInterview(ctx, candidate.ID); err != nil {
		t.Fatalf("StartInterview() = %v", err)
	}

	if err := engine.Pause(ctx, candidate.ID); err != nil {
		t.Fatalf("Pause() = %v", err)
	}
	if _, err := engine.SubmitAnswer(ctx, candidate.ID, "answer"); !errors.Is(err, ErrSessionPaused) {
		t.Errorf("SubmitAnswer while paused = %v, want ErrSessionPaused", err)
	}

	interview, _ := repo.GetInterviewByCandidate(ctx, candidate.ID)
	if !interview.IsPaused {
		t.Error("IsPaused not persisted")
	}

	if err := engine.Resume(ctx, candidate.ID); err != nil {
		t.Fatalf("Resume() = %v", err)
	}
	if _, err := engine.SubmitAnswer(ctx, candidate.ID, "answer"); err != nil {
		t.Errorf("SubmitAnswer after resume = %v", err)
	}

	if len(sink.byType(EventPaused)) != 1 || len(sink.byType(EventResumed)) != 1 {
		t.Error("expected one paused and one resumed event")
	}
}

func TestTimerExpiryRecordsSentinelAndAdvances(t *testing.T) {
	ai := &fakeAI{questions: twoQuestionSet(), evalScore: 50}
	engine, repo, _ := newTestEngine(t, ai)
	engine.SetTickInterval(2 * time.Millisecond)
	candidate := newTestCandidate(t, repo)
	ctx := context.Background()

	if _, err := engine.StartInterview(ctx, candidate.ID); err != nil {
		t.Fatalf("StartInterview() = %v", err)
	}

	// Easy question: 20 ticks at 2ms
	deadline := time.Now().Add(5 * time.Second)
	var interview *models.Interview
	for time.Now().Before(deadline) {
		interview, _ = repo.GetInterviewByCandidate(ctx, candidate.ID)
		if interview != nil && interview.CurrentQuestionIndex >= 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if interview == nil || interview.CurrentQuestionIndex < 1 {
		t.Fatal("timer expiry did not advance the interview")
	}

	if len(interview.Answers) == 0 {
		t.Fatal("no answer recorded on expiry")
	}
	expired := interview.Answers[0]
	if expired.Text != TimeExpiredText {
		t.Errorf("expired answer text = %q, want %q", expired.Text, TimeExpiredText)
	}
	if expired.TimeSpent != 20 {
		t.Errorf("expired answer TimeSpent = %d, want 20", expired.TimeSpent)
	}
	if got := ai.evaluatedAnswers(); len(got) != 0 {
		t.Errorf("expired sentinel was sent for evaluation: %v", got)
	}
}

func TestTimerExpirySubmitsDraftForEvaluation(t *testing.T) {
	ai := &fakeAI{
		questions: []GeneratedQuestion{
			{Text: "Design a rate limiter.", Difficulty: models.DifficultyHard, Category: "React/Node", ExpectedTopics: []string{"token bucket"}},
			{Text: "What is a closure?", Difficulty: models.DifficultyEasy, Category: "React/Node", ExpectedTopics: []string{"scope"}},
		},
		evalScore: 55,
	}
	engine, repo, _ := newTestEngine(t, ai)
	engine.SetTickInterval(2 * time.Millisecond)
	candidate := newTestCandidate(t, repo)
	ctx := context.Background()

	if _, err := engine.StartInterview(ctx, candidate.ID); err != nil {
		t.Fatalf("StartInterview() = %v", err)
	}
	if err := engine.SetDraft(ctx, candidate.ID, "Token bucket, never finished typing"); err != nil {
		t.Fatalf("SetDraft() = %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	var interview *models.Interview
	for time.Now().Before(deadline) {
		interview, _ = repo.GetInterviewByCandidate(ctx, candidate.ID)
		if interview != nil && interview.CurrentQuestionIndex >= 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if interview == nil || interview.CurrentQuestionIndex < 1 {
		t.Fatal("timer expiry did not advance the interview")
	}

	if len(interview.Answers) == 0 {
		t.Fatal("no answer recorded on expiry")
	}
	expired := interview.Answers[0]
	if expired.Text != "Token bucket, never finished typing" {
		t.Errorf("expired answer text = %q, want the drafted text", expired.Text)
	}
	if expired.TimeSpent != 120 {
		t.Errorf("expired answer TimeSpent = %d, want the full limit 120", expired.TimeSpent)
	}

	waitFor(t, 2*time.Second, func() bool {
		return len(ai.evaluatedAnswers()) == 1
	})
	if got := ai.evaluatedAnswers(); got[0] != "Token bucket, never finished typing" {
		t.Errorf("evaluated text = %q, want the drafted text", got[0])
	}
}

func TestSubmitAnswerTwiceForSameQuestionRecordsOneAnswer(t *testing.T) {
	ai := &fakeAI{questions: twoQuestionSet(), evalScore: 70, summary: &SummaryResult{OverallScore: 70, Summary: "ok"}}
	engine, repo, _ := newTestEngine(t, ai)
	candidate := newTestCandidate(t, repo)
	ctx := context.Background()

	if _, err := engine.StartInterview(ctx, candidate.ID); err != nil {
		t.Fatalf("StartInterview() = %v", err)
	}

	start := make(chan struct{})
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			<-start
			_, err := engine.SubmitAnswer(ctx, candidate.ID, "double-tapped submit")
			results <- err
		}()
	}
	close(start)

	var successes int
	for i := 0; i < 2; i++ {
		switch err := <-results; {
		case err == nil:
			successes++
		case errors.Is(err, ErrAlreadyAnswered):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if successes < 1 {
		t.Fatal("no submit succeeded")
	}

	interview, err := repo.GetInterviewByCandidate(ctx, candidate.ID)
	if err != nil {
		t.Fatalf("GetInterviewByCandidate() = %v", err)
	}
	perQuestion := map[string]int{}
	for _, a := range interview.Answers {
		perQuestion[a.QuestionID]++
	}
	for qid, n := range perQuestion {
		if n != 1 {
			t.Errorf("question %s has %d answers, want exactly 1", qid, n)
		}
	}
	if len(interview.Answers) != successes {
		t.Errorf("persisted %d answers for %d successful submits", len(interview.Answers), successes)
	}
}

func TestSummaryFailureFallsBackToLastScore(t *testing.T) {
	ai := &fakeAI{
		questions: twoQuestionSet(),
		evalScore: 64,
		sumErr:    ErrSummaryFailed,
	}
	engine, repo, _ := newTestEngine(t, ai)
	candidate := newTestCandidate(t, repo)
	ctx := context.Background()

	if _, err := engine.StartInterview(ctx, candidate.ID); err != nil {
		t.Fatalf("StartInterview() = %v", err)
	}
	if _, err := engine.SubmitAnswer(ctx, candidate.ID, "first"); err != nil {
		t.Fatalf("SubmitAnswer(1) = %v", err)
	}
	if _, err := engine.SubmitAnswer(ctx, candidate.ID, "second"); err != nil {
		t.Fatalf("SubmitAnswer(2) = %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	var updated *models.Candidate
	for time.Now().Before(deadline) {
		updated, _ = repo.GetCandidateByID(ctx, candidate.ID)
		if updated != nil && updated.InterviewStatus == models.StatusCompleted {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if updated == nil || updated.InterviewStatus != models.StatusCompleted {
		t.Fatal("interview never completed")
	}
	if updated.FinalScore == nil || *updated.FinalScore != 64 {
		t.Errorf("FinalScore = %v, want fallback to last answer score 64", updated.FinalScore)
	}
}

func TestEvaluationFailureLeavesAnswerUnscored(t *testing.T) {
	ai := &fakeAI{
		questions: twoQuestionSet(),
		evalErr:   ErrEvaluationFailed,
		summary:   &SummaryResult{OverallScore: 40, Summary: "incomplete"},
	}
	engine, repo, _ := newTestEngine(t, ai)
	candidate := newTestCandidate(t, repo)
	ctx := context.Background()

	if _, err := engine.StartInterview(ctx, candidate.ID); err != nil {
		t.Fatalf("StartInterview() = %v", err)
	}
	if _, err := engine.SubmitAnswer(ctx, candidate.ID, "an answer"); err != nil {
		t.Fatalf("SubmitAnswer() = %v", err)
	}

	// The interview advanced despite the evaluation failing
	interview, _ := repo.GetInterviewByCandidate(ctx, candidate.ID)
	if interview.CurrentQuestionIndex != 1 {
		t.Errorf("CurrentQuestionIndex = %d, want 1", interview.CurrentQuestionIndex)
	}

	waitFor(t, 2*time.Second, func() bool {
		return len(ai.evaluatedAnswers()) == 1
	})
	interview, _ = repo.GetInterviewByCandidate(ctx, candidate.ID)
	if len(interview.Answers) != 1 || interview.Answers[0].Score != nil {
		t.Error("answer should remain unscored after evaluation failure")
	}
}

func TestRehydrateRestoresInterruptedSession(t *testing.T) {
	ai := &fakeAI{questions: twoQuestionSet(), evalScore: 70, summary: &SummaryResult{OverallScore: 70, Summary: "ok"}}
	engine, repo, _ := newTestEngine(t, ai)
	candidate := newTestCandidate(t, repo)
	ctx := context.Background()

	if _, err := engine.StartInterview(ctx, candidate.ID); err != nil {
		t.Fatalf("StartInterview() = %v", err)
	}
	if _, err := engine.SubmitAnswer(ctx, candidate.ID, "first answer"); err != nil {
		t.Fatalf("SubmitAnswer() = %v", err)
	}
	if err := engine.SetDraft(ctx, candidate.ID, "half-typed thought"); err != nil {
		t.Fatalf("SetDraft() = %v", err)
	}

	engine.Shutdown(ctx)

	// Fresh engine, same database: the restart case
	sink := &recordingSink{}
	restarted := NewInterviewEngine(repo, ai, sink, InterviewConfig{Category: "React/Node"})
	restarted.SetTickInterval(time.Hour)

	interview, err := restarted.RehydrateSession(ctx, candidate.ID)
	if err != nil {
		t.Fatalf("RehydrateSession() = %v", err)
	}
	if interview.CurrentQuestionIndex != 1 {
		t.Errorf("rehydrated index = %d, want 1", interview.CurrentQuestionIndex)
	}
	if interview.CurrentDraft != "half-typed thought" {
		t.Errorf("rehydrated draft = %q", interview.CurrentDraft)
	}

	// Session comes back paused; resume and finish it
	if err := restarted.Resume(ctx, candidate.ID); err != nil {
		t.Fatalf("Resume() = %v", err)
	}
	if _, err := restarted.SubmitAnswer(ctx, candidate.ID, "second answer"); err != nil {
		t.Fatalf("SubmitAnswer after rehydrate = %v", err)
	}
}

func TestInterviewTranscriptRecorded(t *testing.T) {
	ai := &fakeAI{questions: twoQuestionSet(), evalScore: 70, summary: &SummaryResult{OverallScore: 70, Summary: "ok"}}
	engine, repo, _ := newTestEngine(t, ai)
	candidate := newTestCandidate(t, repo)
	ctx := context.Background()

	if _, err := engine.StartInterview(ctx, candidate.ID); err != nil {
		t.Fatalf("StartInterview() = %v", err)
	}
	if _, err := engine.SubmitAnswer(ctx, candidate.ID, "first answer"); err != nil {
		t.Fatalf("SubmitAnswer(1) = %v", err)
	}
	if _, err := engine.SubmitAnswer(ctx, candidate.ID, "second answer"); err != nil {
		t.Fatalf("SubmitAnswer(2) = %v", err)
	}

	waitFor(t, 5*time.Second, func() bool {
		updated, _ := repo.GetCandidateByID(ctx, candidate.ID)
		return updated != nil && updated.InterviewStatus == models.StatusCompleted
	})

	history, err := repo.GetChatHistory(ctx, candidate.ID)
	if err != nil {
		t.Fatalf("GetChatHistory() = %v", err)
	}

	counts := map[string]int{}
	for _, m := range history {
		counts[m.Type]++
	}
	// Welcome + completion notices, both questions, both answers
	if counts[models.ChatTypeSystem] != 2 || counts[models.ChatTypeAI] != 2 || counts[models.ChatTypeUser] != 2 {
		t.Errorf("transcript counts = %v, want 2 system / 2 ai / 2 user", counts)
	}
}

func TestResumableCandidatesListsOnlyInterrupted(t *testing.T) {
	ai := &fakeAI{questions: twoQuestionSet(), evalScore: 70, summary: &SummaryResult{OverallScore: 70, Summary: "ok"}}
	engine, repo, _ := newTestEngine(t, ai)
	ctx := context.Background()

	inProgress := newTestCandidate(t, repo)
	if _, err := engine.StartInterview(ctx, inProgress.ID); err != nil {
		t.Fatalf("StartInterview() = %v", err)
	}

	fresh := &models.Candidate{Name: "Casey Kim", Email: "casey@example.com", InterviewStatus: models.StatusNotStarted}
	if err := repo.CreateCandidate(ctx, fresh); err != nil {
		t.Fatalf("CreateCandidate() = %v", err)
	}

	resumables, err := repo.GetResumableCandidates(ctx)
	if err != nil {
		t.Fatalf("GetResumableCandidates() = %v", err)
	}
	if len(resumables) != 1 {
		t.Fatalf("resumable candidates = %d, want 1", len(resumables))
	}
	if resumables[0].ID != inProgress.ID {
		t.Errorf("resumable candidate = %s, want %s", resumables[0].ID, inProgress.ID)
	}
}
