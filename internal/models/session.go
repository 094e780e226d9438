package models

import "time"

// SessionStatus represents the status of a review session.
type SessionStatus string

const (
	SessionStatusPending   SessionStatus = "pending"
	SessionStatusReviewing SessionStatus = "reviewing"
	SessionStatusComplete  SessionStatus = "complete"
	SessionStatusError     SessionStatus = "error"
)

// ReviewSession tracks one submitted batch.
type ReviewSession struct {
	ID               string        `json:"id"`
	Status           SessionStatus `json:"status"`
	Progress         float64       `json:"progress"` // 0-100
	FileCount        int           `json:"fileCount"`
	DrawingCount     int           `json:"drawingCount"`
	ReviewedCount    int           `json:"reviewedCount"`
	FailedCount      int           `json:"failedCount"`
	CreatedAt        time.Time     `json:"createdAt"`
	ProcessingTimeMs int64         `json:"processingTimeMs,omitempty"`
	Error            string        `json:"error,omitempty"`
}

// NewReviewSession creates a new ReviewSession in pending status.
func NewReviewSession(id string, createdAt time.Time) *ReviewSession {
	return &ReviewSession{
		ID:        id,
		Status:    SessionStatusPending,
		CreatedAt: createdAt,
	}
}

// Terminal reports whether the session has finished, successfully or not.
func (s *ReviewSession) Terminal() bool {
	return s.Status == SessionStatusComplete || s.Status == SessionStatusError
}
