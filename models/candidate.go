package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Interview status values for a candidate
const (
	StatusNotStarted = "not_started"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

// Candidate represents a person taking the interview; seeded from their resume
type Candidate struct {
	ID              string         `gorm:"type:uuid;primaryKey" json:"id"`
	Name            string         `gorm:"size:255;not null" json:"name"`
	Email           string         `gorm:"size:255;not null;index" json:"email"`
	Phone           string         `gorm:"size:50" json:"phone"`
	ResumeText      string         `gorm:"type:text" json:"-"` // Raw extracted resume text (excluded from JSON)
	InterviewStatus string         `gorm:"not null;default:'not_started';check:interview_status IN ('not_started', 'in_progress', 'completed')" json:"interview_status"`
	FinalScore      *int           `json:"final_score,omitempty"` // 0-100, set only when completed
	Summary         string         `gorm:"type:text" json:"summary,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	Interview *Interview `gorm:"foreignKey:CandidateID" json:"interview,omitempty"`
}

// BeforeCreate hook to set the ID if not provided
func (c *Candidate) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return nil
}
