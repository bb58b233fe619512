package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Chat message sender types
const (
	ChatTypeUser   = "user"
	ChatTypeAI     = "ai"
	ChatTypeSystem = "system"
)

// ChatMessage is one entry of a candidate's interview transcript: the welcome
// note, each question as it is asked, each answer, and system notices. The
// interviewer dashboard renders these in order.
type ChatMessage struct {
	ID          string         `json:"id" gorm:"type:uuid;primaryKey"`
	CandidateID string         `json:"candidate_id" gorm:"type:uuid;not null;index"`
	Type        string         `json:"type" gorm:"size:20;not null;check:type IN ('user', 'ai', 'system')"`
	Content     string         `json:"content" gorm:"type:text;not null"`
	Timestamp   time.Time      `json:"timestamp" gorm:"not null"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`

	// Relationships
	Candidate Candidate `json:"-" gorm:"foreignKey:CandidateID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for the ChatMessage model
func (ChatMessage) TableName() string {
	return "chat_messages"
}

func (m *ChatMessage) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return nil
}
