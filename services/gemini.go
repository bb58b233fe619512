package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/prepwise/backend/models"

	"google.golang.org/genai"
)

// Typed errors surfaced to handlers when an AI operation fails after retries.
var (
	ErrGenerationFailed = errors.New("question generation failed")
	ErrEvaluationFailed = errors.New("answer evaluation failed")
	ErrSummaryFailed    = errors.New("summary generation failed")
)

// GeneratedQuestion is one question returned by the AI provider.
type GeneratedQuestion struct {
	Text           string   `json:"question"`
	Difficulty     string   `json:"difficulty"`
	Category       string   `json:"category"`
	ExpectedTopics []string `json:"expectedTopics"`
}

// Evaluation is the AI's judgment of a single answer.
type Evaluation struct {
	Score        int      `json:"score"`
	Feedback     string   `json:"feedback"`
	Strengths    []string `json:"strengths"`
	Improvements []string `json:"improvements"`
}

// SummaryResult is the AI's overall verdict on a completed interview.
type SummaryResult struct {
	OverallScore int    `json:"overallScore"`
	Summary      string `json:"summary"`
}

// ResumeFields holds contact details the AI extracted from resume text.
type ResumeFields struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// QuestionResult pairs a question with the candidate's answer for summary
// prompts.
type QuestionResult struct {
	Question string
	Answer   string
	Score    *int
}

// AIClient is the interview engine's view of the AI provider. The engine
// depends on this interface so tests can substitute a fake.
type AIClient interface {
	GenerateQuestions(ctx context.Context, category, resumeText string, counts QuestionCounts) ([]GeneratedQuestion, error)
	EvaluateAnswer(ctx context.Context, question *models.Question, answerText string) (*Evaluation, error)
	GenerateSummary(ctx context.Context, candidateName string, results []QuestionResult) (*SummaryResult, error)
	ExtractResumeFields(ctx context.Context, resumeText string) (*ResumeFields, error)
}

// QuestionCounts specifies how many questions to generate per difficulty.
type QuestionCounts struct {
	Easy   int
	Medium int
	Hard   int
}

func (c QuestionCounts) Total() int { return c.Easy + c.Medium + c.Hard }

// DefaultQuestionCounts is the standard interview shape: two questions at
// each difficulty, easy first.
var DefaultQuestionCounts = QuestionCounts{Easy: 2, Medium: 2, Hard: 2}

// unavailableAI stands in when no API key is configured. Question
// generation fails so the engine falls back to the seeded bank; answers
// stay unscored.
type unavailableAI struct{}

func (unavailableAI) GenerateQuestions(ctx context.Context, category, resumeText string, counts QuestionCounts) ([]GeneratedQuestion, error) {
	return nil, fmt.Errorf("%w: AI provider not configured", ErrGenerationFailed)
}

func (unavailableAI) EvaluateAnswer(ctx context.Context, question *models.Question, answerText string) (*Evaluation, error) {
	return nil, fmt.Errorf("%w: AI provider not configured", ErrEvaluationFailed)
}

func (unavailableAI) GenerateSummary(ctx context.Context, candidateName string, results []QuestionResult) (*SummaryResult, error) {
	return nil, fmt.Errorf("%w: AI provider not configured", ErrSummaryFailed)
}

func (unavailableAI) ExtractResumeFields(ctx context.Context, resumeText string) (*ResumeFields, error) {
	return nil, fmt.Errorf("AI provider not configured")
}

// GeminiService talks to the Gemini API. All calls are funneled through the
// request gateway so only one request is in flight at a time.
type GeminiService struct {
	genaiClient *genai.Client
	gateway     *RequestGateway
	model       string
}

// NewGeminiService creates the Gemini client. Returns nil if the client
// cannot be constructed; the caller falls back to the seeded question bank.
func NewGeminiService(apiKey, model string, gateway *RequestGateway) *GeminiService {
	genaiClient, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		slog.Error("Failed to create genai client", "error", err)
		return nil
	}

	return &GeminiService{
		genaiClient: genaiClient,
		gateway:     gateway,
		model:       model,
	}
}

// GenerateQuestions asks Gemini for a full interview question set tailored
// to the candidate's resume.
func (g *GeminiService) GenerateQuestions(ctx context.Context, category, resumeText string, counts QuestionCounts) ([]GeneratedQuestion, error) {
	prompt := fmt.Sprintf(`You are a technical interviewer for %s roles. Generate exactly %d interview questions: %d easy, %d medium, %d hard, in that order.

Candidate resume (use it to tailor questions where relevant):
%s

Respond with ONLY a JSON array, no other text:
[{"question": "...", "difficulty": "easy|medium|hard", "category": "%s", "expectedTopics": ["topic1", "topic2"]}]`,
		category, counts.Total(), counts.Easy, counts.Medium, counts.Hard,
		truncate(resumeText, 8000), category)

	var questions []GeneratedQuestion
	err := g.gateway.Do(ctx, "generate_questions", func(ctx context.Context) error {
		raw, err := g.generate(ctx, prompt)
		if err != nil {
			return err
		}
		return json.Unmarshal([]byte(extractJSON(raw)), &questions)
	})
	if err != nil {
		slog.Error("Question generation failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	if len(questions) != counts.Total() {
		slog.Error("Question generation returned wrong count", "want", counts.Total(), "got", len(questions))
		return nil, fmt.Errorf("%w: expected %d questions, got %d", ErrGenerationFailed, counts.Total(), len(questions))
	}

	slog.Info("Generated interview questions", "count", len(questions), "category", category)
	return questions, nil
}

// EvaluateAnswer scores one answer against its question. Scores are clamped
// to the 0-100 range.
func (g *GeminiService) EvaluateAnswer(ctx context.Context, question *models.Question, answerText string) (*Evaluation, error) {
	prompt := fmt.Sprintf(`You are a technical interviewer. Evaluate this answer to a %s difficulty question about %s.

Question: %s
Expected topics: %s
Candidate's answer: %s

Score from 0 to 100 based on correctness, depth, and coverage of expected topics. An empty or irrelevant answer scores 0.

Respond with ONLY a JSON object, no other text:
{"score": <number>, "feedback": "<one or two sentences>", "strengths": ["..."], "improvements": ["..."]}`,
		question.Difficulty, question.Category, question.Text,
		strings.Join(question.ExpectedTopics, ", "), answerText)

	var eval Evaluation
	err := g.gateway.Do(ctx, "evaluate_answer", func(ctx context.Context) error {
		raw, err := g.generate(ctx, prompt)
		if err != nil {
			return err
		}
		return json.Unmarshal([]byte(extractJSON(raw)), &eval)
	})
	if err != nil {
		slog.Error("Answer evaluation failed", "question_id", question.ID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrEvaluationFailed, err)
	}

	eval.Score = clampScore(eval.Score)
	return &eval, nil
}

// GenerateSummary asks Gemini for an overall score and verdict across the
// whole interview.
func (g *GeminiService) GenerateSummary(ctx context.Context, candidateName string, results []QuestionResult) (*SummaryResult, error) {
	var transcript strings.Builder
	for i, r := range results {
		score := "not scored"
		if r.Score != nil {
			score = fmt.Sprintf("%d/100", *r.Score)
		}
		fmt.Fprintf(&transcript, "Q%d: %s\nAnswer: %s\nScore: %s\n\n", i+1, r.Question, r.Answer, score)
	}

	prompt := fmt.Sprintf(`You are a technical interviewer. The candidate %s completed an interview. Here is the transcript with per-question scores:

%s
Provide an overall score from 0 to 100 and a short summary (2-3 sentences) of the candidate's performance, strengths, and weaknesses.

Respond with ONLY a JSON object, no other text:
{"overallScore": <number>, "summary": "<text>"}`, candidateName, transcript.String())

	var summary SummaryResult
	err := g.gateway.Do(ctx, "generate_summary", func(ctx context.Context) error {
		raw, err := g.generate(ctx, prompt)
		if err != nil {
			return err
		}
		return json.Unmarshal([]byte(extractJSON(raw)), &summary)
	})
	if err != nil {
		slog.Error("Summary generation failed", "candidate", candidateName, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrSummaryFailed, err)
	}

	summary.OverallScore = clampScore(summary.OverallScore)
	return &summary, nil
}

// ExtractResumeFields pulls name, email, and phone out of resume text.
// Missing fields come back empty; the candidate fills them via chat.
func (g *GeminiService) ExtractResumeFields(ctx context.Context, resumeText string) (*ResumeFields, error) {
	prompt := fmt.Sprintf(`Extract the candidate's contact details from this resume text. Use empty strings for fields you cannot find.

Resume:
%s

Respond with ONLY a JSON object, no other text:
{"name": "...", "email": "...", "phone": "..."}`, truncate(resumeText, 8000))

	var fields ResumeFields
	err := g.gateway.Do(ctx, "extract_resume_fields", func(ctx context.Context) error {
		raw, err := g.generate(ctx, prompt)
		if err != nil {
			return err
		}
		return json.Unmarshal([]byte(extractJSON(raw)), &fields)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to extract resume fields: %w", err)
	}

	return &fields, nil
}

// generate performs one raw Gemini call, translating provider errors into
// RemoteError so the gateway can classify them.
func (g *GeminiService) generate(ctx context.Context, prompt string) (string, error) {
	if g.genaiClient == nil {
		return "", fmt.Errorf("genai client not initialized")
	}

	result, err := g.genaiClient.Models.GenerateContent(
		ctx,
		g.model,
		genai.Text(prompt),
		nil,
	)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return "", &RemoteError{StatusCode: apiErr.Code, Message: apiErr.Message}
		}
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	return result.Text(), nil
}

// extractJSON strips markdown code fences the model sometimes wraps around
// JSON payloads.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)
	if start := strings.Index(s, "```json"); start >= 0 {
		s = s[start+len("```json"):]
	} else if start := strings.Index(s, "```"); start >= 0 {
		s = s[start+len("```"):]
	}
	if end := strings.LastIndex(s, "```"); end >= 0 {
		s = s[:end]
	}
	return strings.TrimSpace(s)
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
