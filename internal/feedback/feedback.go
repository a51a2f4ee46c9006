// Package feedback captures user quality ratings on generated content.
package feedback

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

// Quality is the user's verdict on a generated artifact.
type Quality string

const (
	QualityGood Quality = "good"
	QualityBad  Quality = "bad"
)

var (
	// ErrInvalidQuality indicates the rating was neither good nor bad.
	ErrInvalidQuality = errors.New("feedback quality must be good or bad")
	// ErrEmptyReason indicates a rating arrived without an explanation.
	ErrEmptyReason = errors.New("feedback reason must not be empty")
	// ErrAlreadySubmitting indicates a submission for the same subject is in flight.
	ErrAlreadySubmitting = errors.New("feedback submission already in progress")
)

// Submission is a validated feedback record.
type Submission struct {
	TenantID  string    `json:"tenantId"`
	UserID    string    `json:"userId"`
	SubjectID string    `json:"subjectId"`
	Quality   Quality   `json:"quality"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Sink persists accepted submissions.
type Sink interface {
	SaveFeedback(ctx context.Context, sub Submission) error
}

// Service validates and records feedback, rejecting concurrent double
// submissions for the same subject.
type Service struct {
	sink Sink

	mu       sync.Mutex
	inFlight map[string]bool
}

// NewService creates a feedback service.
func NewService(sink Sink) *Service {
	return &Service{sink: sink, inFlight: make(map[string]bool)}
}

// Submit validates and persists one feedback record. Every rating
// requires a non-empty reason; the reason is trimmed before the check so
// whitespace-only input is rejected.
func (s *Service) Submit(ctx context.Context, sub Submission) error {
	if sub.Quality != QualityGood && sub.Quality != QualityBad {
		return ErrInvalidQuality
	}
	sub.Reason = strings.TrimSpace(sub.Reason)
	if sub.Reason == "" {
		return ErrEmptyReason
	}

	key := sub.UserID + ":" + sub.SubjectID
	s.mu.Lock()
	if s.inFlight[key] {
		s.mu.Unlock()
		return ErrAlreadySubmitting
	}
	s.inFlight[key] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.inFlight, key)
		s.mu.Unlock()
	}()

	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now()
	}
	return s.sink.SaveFeedback(ctx, sub)
}
