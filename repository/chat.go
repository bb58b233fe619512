package repository

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prepwise/backend/models"
)

// Chat transcript operations, kept on the same repository

// SaveChatMessage appends a transcript entry for a candidate
func (r *GORMRepository) SaveChatMessage(ctx context.Context, message *models.ChatMessage) error {
	if err := r.db.WithContext(ctx).Create(message).Error; err != nil {
		slog.Error("Failed to save chat message", "error", err, "candidate_id", message.CandidateID)
		return fmt.Errorf("failed to save chat message: %w", err)
	}
	return nil
}

// GetChatHistory retrieves a candidate's transcript in order
func (r *GORMRepository) GetChatHistory(ctx context.Context, candidateID string) ([]models.ChatMessage, error) {
	var messages []models.ChatMessage
	err := r.db.WithContext(ctx).
		Where("candidate_id = ?", candidateID).
		Order("timestamp").
		Find(&messages).Error
	if err != nil {
		slog.Error("Failed to get chat history", "error", err, "candidate_id", candidateID)
		return nil, fmt.Errorf("failed to get chat history: %w", err)
	}
	return messages, nil
}

// ClearChatHistory removes a candidate's transcript
func (r *GORMRepository) ClearChatHistory(ctx context.Context, candidateID string) error {
	if err := r.db.WithContext(ctx).Where("candidate_id = ?", candidateID).Delete(&models.ChatMessage{}).Error; err != nil {
		slog.Error("Failed to clear chat history", "error", err, "candidate_id", candidateID)
		return fmt.Errorf("failed to clear chat history: %w", err)
	}
	return nil
}
