package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	ws "github.com/prepwise/backend/websocket"
)

// safeSend tries to send a message to the client channel, recovers if closed
func safeSend(ch chan<- []byte, msg []byte) {
	defer func() {
		if r := recover(); r != nil {
			// Channel is closed, ignore
		}
	}()
	select {
	case ch <- msg:
	default:
	}
}

// WebSocketHandler bridges the hub and the interview engine. Outbound, it
// implements EventSink so engine events reach the candidate's browser;
// inbound, it routes answer/draft/pause/resume messages into the engine.
type WebSocketHandler struct {
	hub    *ws.Hub
	engine *InterviewEngine
}

func NewWebSocketHandler(hub *ws.Hub, engine *InterviewEngine) *WebSocketHandler {
	return &WebSocketHandler{
		hub:    hub,
		engine: engine,
	}
}

// Publish implements EventSink.
func (h *WebSocketHandler) Publish(candidateID string, event *InterviewEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		slog.Error("Failed to marshal interview event", "type", event.Type, "error", err)
		return
	}
	h.hub.SendToCandidate(candidateID, payload)
}

// HandleConnection restores the candidate's session state when they connect,
// so a reopened tab picks up the current question and remaining time.
func (h *WebSocketHandler) HandleConnection(client *ws.Client) {
	slog.Info("WebSocket connection handled", "candidate_id", client.CandidateID)

	interview, err := h.engine.RehydrateSession(context.Background(), client.CandidateID)
	if err != nil {
		if !errors.Is(err, ErrNoActiveSession) && !errors.Is(err, ErrSessionCompleted) {
			slog.Error("Failed to rehydrate session on connect", "candidate_id", client.CandidateID, "error", err)
		}
		return
	}

	if interview.CurrentDraft != "" {
		event := &InterviewEvent{
			Type:          EventQuestion,
			QuestionIndex: interview.CurrentQuestionIndex,
			Draft:         interview.CurrentDraft,
		}
		if payload, err := json.Marshal(event); err == nil {
			safeSend(client.Send, payload)
		}
	}
}

// HandleMessage routes one inbound client message into the engine.
func (h *WebSocketHandler) HandleMessage(client *ws.Client, messageBytes []byte) {
	var msg ws.InboundMessage
	if err := json.Unmarshal(messageBytes, &msg); err != nil {
		slog.Error("Failed to unmarshal WebSocket message", "candidate_id", client.CandidateID, "error", err)
		return
	}

	ctx := context.Background()
	var err error
	switch msg.Type {
	case "answer":
		_, err = h.engine.SubmitAnswer(ctx, client.CandidateID, msg.Content)
	case "draft":
		err = h.engine.SetDraft(ctx, client.CandidateID, msg.Content)
	case "pause":
		err = h.engine.Pause(ctx, client.CandidateID)
	case "resume":
		err = h.engine.Resume(ctx, client.CandidateID)
	default:
		slog.Warn("Unknown message type", "type", msg.Type, "candidate_id", client.CandidateID)
		return
	}

	if err != nil {
		slog.Warn("WebSocket command rejected",
			"type", msg.Type,
			"candidate_id", client.CandidateID,
			"error", err)
		errMsg := map[string]any{"type": "error", "content": err.Error()}
		if b, jerr := json.Marshal(errMsg); jerr == nil {
			safeSend(client.Send, b)
		}
	}
}
