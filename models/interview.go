package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Difficulty tiers with fixed time limits
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// TimeLimitFor returns the per-question time limit in seconds for a difficulty
// tier. Difficulty determines the limit deterministically: easy=20, medium=60,
// hard=120.
func TimeLimitFor(difficulty string) int {
	switch difficulty {
	case DifficultyEasy:
		return 20
	case DifficultyMedium:
		return 60
	case DifficultyHard:
		return 120
	default:
		return 60
	}
}

// StringList stores a list of strings as a JSON text column
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("unsupported type for StringList: %T", value)
	}
}

// Interview is the stateful question/answer session for one candidate
type Interview struct {
	ID                   string         `gorm:"type:uuid;primaryKey" json:"id"`
	CandidateID          string         `gorm:"type:uuid;not null;uniqueIndex" json:"candidate_id"`
	CurrentQuestionIndex int            `gorm:"not null;default:0" json:"current_question_index"`
	IsPaused             bool           `gorm:"not null;default:false" json:"is_paused"`
	TimeRemaining        int            `gorm:"not null;default:0" json:"time_remaining"` // Seconds left on the current question
	CurrentDraft         string         `gorm:"type:text" json:"current_draft"`           // Unsubmitted answer text
	StartTime            time.Time      `gorm:"not null" json:"start_time"`
	EndTime              *time.Time     `json:"end_time,omitempty"` // Set exactly once, at completion
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
	DeletedAt            gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	Candidate Candidate  `gorm:"foreignKey:CandidateID" json:"-"`
	Questions []Question `gorm:"foreignKey:InterviewID" json:"questions,omitempty"`
	Answers   []Answer   `gorm:"foreignKey:InterviewID" json:"answers,omitempty"`
}

func (i *Interview) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.New().String()
	}
	return nil
}

// Question is immutable once generated; Position gives the stable ordering
type Question struct {
	ID             string         `gorm:"type:uuid;primaryKey" json:"id"`
	InterviewID    string         `gorm:"type:uuid;not null;index" json:"interview_id"`
	Position       int            `gorm:"not null" json:"position"`
	Text           string         `gorm:"type:text;not null" json:"text"`
	Difficulty     string         `gorm:"size:20;not null;check:difficulty IN ('easy', 'medium', 'hard')" json:"difficulty"`
	TimeLimit      int            `gorm:"not null" json:"time_limit"` // Seconds
	Category       string         `gorm:"size:100" json:"category"`
	ExpectedTopics StringList     `gorm:"type:text" json:"expected_topics"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}

func (q *Question) BeforeCreate(tx *gorm.DB) error {
	if q.ID == "" {
		q.ID = uuid.New().String()
	}
	return nil
}

// Answer references its Question by ID only; Score stays nil until the
// evaluation resolves (or never, if evaluation fails terminally)
type Answer struct {
	ID           string         `gorm:"type:uuid;primaryKey" json:"id"`
	InterviewID  string         `gorm:"type:uuid;not null;index" json:"interview_id"`
	QuestionID   string         `gorm:"type:uuid;not null;index" json:"question_id"`
	Text         string         `gorm:"type:text;not null" json:"text"`
	TimeSpent    int            `gorm:"not null" json:"time_spent"` // Seconds
	Score        *int           `json:"score,omitempty"`            // 0-100
	Feedback     string         `gorm:"type:text" json:"feedback,omitempty"`
	Strengths    StringList     `gorm:"type:text" json:"strengths,omitempty"`
	Improvements StringList     `gorm:"type:text" json:"improvements,omitempty"`
	Timestamp    time.Time      `gorm:"not null" json:"timestamp"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

func (a *Answer) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	return nil
}

// FallbackQuestion is a seeded bank entry used when AI question generation
// fails terminally; the bank spans all three difficulty tiers
type FallbackQuestion struct {
	ID             string         `gorm:"type:uuid;primaryKey" json:"id"`
	Position       int            `gorm:"not null" json:"position"`
	Text           string         `gorm:"type:text;not null" json:"text"`
	Difficulty     string         `gorm:"size:20;not null" json:"difficulty"`
	Category       string         `gorm:"size:100" json:"category"`
	ExpectedTopics StringList     `gorm:"type:text" json:"expected_topics"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}

func (f *FallbackQuestion) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	return nil
}
