package repository

import (
	"context"
	"log/slog"
	"time"

	"github.com/prepwise/backend/models"
	"gorm.io/gorm"
)

type GORMRepository struct {
	db *gorm.DB
}

func NewGORMRepository(db *gorm.DB) *GORMRepository {
	return &GORMRepository{db: db}
}

// DB exposes the underlying connection for health checks
func (r *GORMRepository) DB() *gorm.DB {
	return r.db
}

// AutoMigrate runs database migrations
func (r *GORMRepository) AutoMigrate() error {
	return r.db.AutoMigrate(
		&models.User{},
		&models.RefreshToken{},
		&models.Candidate{},
		&models.Interview{},
		&models.Question{},
		&models.Answer{},
		&models.FallbackQuestion{},
		&models.ChatMessage{},
	)
}

// User operations
func (r *GORMRepository) CreateUser(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		slog.Error("Failed to create user", "error", err)
		return err
	}
	slog.Info("User created", "user_id", user.ID, "email", user.Email)
	return nil
}

func (r *GORMRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		slog.Error("Failed to get user by email", "error", err, "email", email)
		return nil, err
	}
	return &user, nil
}

func (r *GORMRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		slog.Error("Failed to get user by ID", "error", err, "user_id", id)
		return nil, err
	}
	return &user, nil
}

// Token operations
func (r *GORMRepository) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if err := r.db.WithContext(ctx).Create(token).Error; err != nil {
		slog.Error("Failed to create refresh token", "error", err)
		return err
	}
	return nil
}

func (r *GORMRepository) GetRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	var refreshToken models.RefreshToken
	if err := r.db.WithContext(ctx).Where("token = ? AND expires_at > ?", token, time.Now()).First(&refreshToken).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		slog.Error("Failed to get refresh token", "error", err)
		return nil, err
	}
	return &refreshToken, nil
}

func (r *GORMRepository) DeleteRefreshToken(ctx context.Context, token string) error {
	if err := r.db.WithContext(ctx).Where("token = ?", token).Delete(&models.RefreshToken{}).Error; err != nil {
		slog.Error("Failed to delete refresh token", "error", err)
		return err
	}
	return nil
}

func (r *GORMRepository) DeleteAllUserTokens(ctx context.Context, userID string) error {
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.RefreshToken{}).Error; err != nil {
		slog.Error("Failed to delete user refresh tokens", "error", err, "user_id", userID)
		return err
	}
	return nil
}

// Candidate operations
func (r *GORMRepository) CreateCandidate(ctx context.Context, candidate *models.Candidate) error {
	if err := r.db.WithContext(ctx).Create(candidate).Error; err != nil {
		slog.Error("Failed to create candidate", "error", err)
		return err
	}
	slog.Info("Candidate created", "candidate_id", candidate.ID, "email", candidate.Email)
	return nil
}

func (r *GORMRepository) GetCandidateByID(ctx context.Context, id string) (*models.Candidate, error) {
	var candidate models.Candidate
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&candidate).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		slog.Error("Failed to get candidate by ID", "error", err, "candidate_id", id)
		return nil, err
	}
	return &candidate, nil
}

func (r *GORMRepository) GetCandidates(ctx context.Context) ([]models.Candidate, error) {
	var candidates []models.Candidate
	if err := r.db.WithContext(ctx).Find(&candidates).Error; err != nil {
		slog.Error("Failed to get candidates", "error", err)
		return nil, err
	}
	return candidates, nil
}

func (r *GORMRepository) UpdateCandidate(ctx context.Context, candidate *models.Candidate) error {
	if err := r.db.WithContext(ctx).Save(candidate).Error; err != nil {
		slog.Error("Failed to update candidate", "error", err, "candidate_id", candidate.ID)
		return err
	}
	return nil
}

func (r *GORMRepository) DeleteCandidate(ctx context.Context, candidateID string) error {
	if err := r.db.WithContext(ctx).Where("candidate_id = ?", candidateID).Delete(&models.ChatMessage{}).Error; err != nil {
		slog.Error("Failed to delete candidate chat messages", "error", err, "candidate_id", candidateID)
		return err
	}
	if err := r.db.WithContext(ctx).Where("candidate_id = ?", candidateID).Delete(&models.Interview{}).Error; err != nil {
		slog.Error("Failed to delete candidate interview", "error", err, "candidate_id", candidateID)
		return err
	}
	if err := r.db.WithContext(ctx).Where("id = ?", candidateID).Delete(&models.Candidate{}).Error; err != nil {
		slog.Error("Failed to delete candidate", "error", err, "candidate_id", candidateID)
		return err
	}
	slog.Info("Candidate deleted", "candidate_id", candidateID)
	return nil
}

// GetResumableCandidates returns candidates left in_progress whose interview
// has no end time, most recently updated first. The caller surfaces only the
// first match for the resume-or-restart prompt.
func (r *GORMRepository) GetResumableCandidates(ctx context.Context) ([]models.Candidate, error) {
	var candidates []models.Candidate
	err := r.db.WithContext(ctx).
		Joins("JOIN interviews ON interviews.candidate_id = candidates.id AND interviews.end_time IS NULL AND interviews.deleted_at IS NULL").
		Where("candidates.interview_status = ?", models.StatusInProgress).
		Order("candidates.updated_at DESC").
		Find(&candidates).Error
	if err != nil {
		slog.Error("Failed to get resumable candidates", "error", err)
		return nil, err
	}
	return candidates, nil
}

// Interview operations

// CreateInterview persists the interview and its question set in one
// transaction. Questions get their interview ID and position assigned here.
func (r *GORMRepository) CreateInterview(ctx context.Context, interview *models.Interview, questions []*models.Question) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Questions", "Answers", "Candidate").Create(interview).Error; err != nil {
			return err
		}
		for i, q := range questions {
			q.InterviewID = interview.ID
			q.Position = i
			if err := tx.Create(q).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		slog.Error("Failed to create interview", "error", err)
		return err
	}
	slog.Info("Interview created", "interview_id", interview.ID, "candidate_id", interview.CandidateID, "questions", len(questions))
	return nil
}

func (r *GORMRepository) GetInterviewByCandidate(ctx context.Context, candidateID string) (*models.Interview, error) {
	var interview models.Interview
	err := r.db.WithContext(ctx).
		Where("candidate_id = ?", candidateID).
		Preload("Questions", func(db *gorm.DB) *gorm.DB { return db.Order("questions.position") }).
		Preload("Answers", func(db *gorm.DB) *gorm.DB { return db.Order("answers.created_at") }).
		First(&interview).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		slog.Error("Failed to get interview", "error", err, "candidate_id", candidateID)
		return nil, err
	}
	return &interview, nil
}

func (r *GORMRepository) UpdateInterview(ctx context.Context, interview *models.Interview) error {
	if err := r.db.WithContext(ctx).Omit("Questions", "Answers", "Candidate").Save(interview).Error; err != nil {
		slog.Error("Failed to update interview", "error", err, "interview_id", interview.ID)
		return err
	}
	return nil
}

func (r *GORMRepository) CreateAnswer(ctx context.Context, answer *models.Answer) error {
	if err := r.db.WithContext(ctx).Create(answer).Error; err != nil {
		slog.Error("Failed to create answer", "error", err)
		return err
	}
	slog.Info("Answer recorded", "answer_id", answer.ID, "interview_id", answer.InterviewID, "question_id", answer.QuestionID)
	return nil
}

// UpdateAnswerScore attaches an evaluation result to the answer identified by
// questionID. Late-arriving evaluations go through here so a result never
// lands on "whatever question is current".
func (r *GORMRepository) UpdateAnswerScore(ctx context.Context, interviewID, questionID string, score int, feedback string, strengths, improvements models.StringList) error {
	err := r.db.WithContext(ctx).
		Model(&models.Answer{}).
		Where("interview_id = ? AND question_id = ?", interviewID, questionID).
		Updates(map[string]interface{}{
			"score":        score,
			"feedback":     feedback,
			"strengths":    strengths,
			"improvements": improvements,
		}).Error
	if err != nil {
		slog.Error("Failed to update answer score", "error", err, "interview_id", interviewID, "question_id", questionID)
		return err
	}
	slog.Info("Answer scored", "interview_id", interviewID, "question_id", questionID, "score", score)
	return nil
}

// Fallback question bank
func (r *GORMRepository) GetFallbackQuestions(ctx context.Context) ([]models.FallbackQuestion, error) {
	var questions []models.FallbackQuestion
	if err := r.db.WithContext(ctx).Order("position").Find(&questions).Error; err != nil {
		slog.Error("Failed to get fallback questions", "error", err)
		return nil, err
	}
	return questions, nil
}

func (r *GORMRepository) CountFallbackQuestions(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.FallbackQuestion{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *GORMRepository) CreateFallbackQuestion(ctx context.Context, question *models.FallbackQuestion) error {
	if err := r.db.WithContext(ctx).Create(question).Error; err != nil {
		slog.Error("Failed to create fallback question", "error", err)
		return err
	}
	return nil
}
