package models

// This file serves as the central export point for all database models
// Import this package to access all model types

// All models are automatically exported from their respective files:
// - Candidate from candidate.go
// - Interview, Question, Answer, FallbackQuestion from interview.go
// - ChatMessage from chat.go
// - User, RefreshToken from user.go

// Database schema overview:
// 1. candidates - One row per interviewee, seeded from an uploaded resume
// 2. interviews - The stateful session for a candidate (1:1 by candidate_id)
// 3. questions - The fixed, ordered question list generated at interview start
// 4. answers - One per question, score attached when the evaluation resolves
// 5. fallback_questions - Seeded bank used when AI question generation fails
// 6. chat_messages - Per-candidate transcript shown on the dashboard
// 7. users - Interviewer accounts with cookie-based authentication
