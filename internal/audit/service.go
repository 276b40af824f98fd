package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for assignment events.
//
// It MUST be append-only.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service records assignment history. Callers treat it as best-effort.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

// WithClock overrides the time source.
func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.LeadID == "" || e.Type == "" {
		return ErrInvalidEvent
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// LogAssignment records an automatic or manual assignment.
func (s *Service) LogAssignment(ctx context.Context, t EventType, leadID, fromWorkerID, toWorkerID, actorID string) error {
	return s.Append(ctx, Event{
		Type:         t,
		LeadID:       leadID,
		FromWorkerID: fromWorkerID,
		ToWorkerID:   toWorkerID,
		ActorID:      actorID,
	})
}

// LogCapReached records a skipped reassignment because the lead hit its cap.
func (s *Service) LogCapReached(ctx context.Context, leadID, currentWorkerID string, count int) error {
	return s.Append(ctx, Event{
		Type:         EventTypeCapReached,
		LeadID:       leadID,
		FromWorkerID: currentWorkerID,
		ActorID:      "system",
		Message:      fmt.Sprintf("reassignment cap reached (%d)", count),
	})
}
