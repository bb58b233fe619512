package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prepwise/backend/models"
	"github.com/prepwise/backend/repository"
	"golang.org/x/crypto/bcrypt"
)

// DatabaseSeeder handles database seeding operations
type DatabaseSeeder struct {
	repo *repository.GORMRepository
}

// NewDatabaseSeeder creates a new database seeder
func NewDatabaseSeeder(repo *repository.GORMRepository) *DatabaseSeeder {
	return &DatabaseSeeder{repo: repo}
}

// SeedDatabase seeds the fallback question bank and a default interviewer
// account (idempotent).
func (s *DatabaseSeeder) SeedDatabase() error {
	ctx := context.Background()

	if err := s.seedFallbackQuestions(ctx); err != nil {
		return fmt.Errorf("failed to seed fallback questions: %w", err)
	}
	if err := s.seedDefaultInterviewer(ctx); err != nil {
		return fmt.Errorf("failed to seed default interviewer: %w", err)
	}

	slog.Info("Database seeding completed")
	return nil
}

// seedFallbackQuestions loads the bank used when AI generation is
// unavailable: two questions per difficulty tier, easy first.
func (s *DatabaseSeeder) seedFallbackQuestions(ctx context.Context) error {
	count, err := s.repo.CountFallbackQuestions(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		slog.Info("Fallback question bank already seeded", "count", count)
		return nil
	}

	bank := []models.FallbackQuestion{
		{
			Position:       0,
			Text:           "What is the difference between let, const, and var in JavaScript?",
			Difficulty:     models.DifficultyEasy,
			Category:       "React/Node",
			ExpectedTopics: models.StringList{"scoping", "hoisting", "reassignment"},
		},
		{
			Position:       1,
			Text:           "What is JSX and how does it differ from plain JavaScript?",
			Difficulty:     models.DifficultyEasy,
			Category:       "React/Node",
			ExpectedTopics: models.StringList{"JSX syntax", "transpilation", "React.createElement"},
		},
		{
			Position:       2,
			Text:           "Explain how the useEffect hook works and when you would use it over useLayoutEffect.",
			Difficulty:     models.DifficultyMedium,
			Category:       "React/Node",
			ExpectedTopics: models.StringList{"side effects", "dependency array", "cleanup", "render timing"},
		},
		{
			Position:       3,
			Text:           "How does the Node.js event loop handle asynchronous I/O?",
			Difficulty:     models.DifficultyMedium,
			Category:       "React/Node",
			ExpectedTopics: models.StringList{"event loop phases", "callback queue", "microtasks", "non-blocking I/O"},
		},
		{
			Position:       4,
			Text:           "Design a strategy for optimizing a React application that renders a list of 10,000 items with frequent updates.",
			Difficulty:     models.DifficultyHard,
			Category:       "React/Node",
			ExpectedTopics: models.StringList{"virtualization", "memoization", "key stability", "state colocation"},
		},
		{
			Position:       5,
			Text:           "How would you scale a Node.js API to handle 100,000 concurrent websocket connections?",
			Difficulty:     models.DifficultyHard,
			Category:       "React/Node",
			ExpectedTopics: models.StringList{"horizontal scaling", "sticky sessions", "pub/sub", "backpressure"},
		},
	}

	for i := range bank {
		if err := s.repo.CreateFallbackQuestion(ctx, &bank[i]); err != nil {
			slog.Error("Failed to seed fallback question", "position", bank[i].Position, "error", err)
			return err
		}
	}

	slog.Info("Fallback question bank seeded", "count", len(bank))
	return nil
}

func (s *DatabaseSeeder) seedDefaultInterviewer(ctx context.Context) error {
	const email = "interviewer@example.com"

	existing, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return err
	}
	if existing != nil {
		slog.Info("Default interviewer already exists", "email", email)
		return nil
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Email:    email,
		Password: string(hashedPassword),
		FullName: "Default Interviewer",
		Role:     "interviewer",
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return err
	}

	slog.Info("Default interviewer seeded", "email", email)
	return nil
}
