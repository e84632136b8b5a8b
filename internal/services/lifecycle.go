package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"explorewithme/internal/domain"
)

type eventService struct {
	eventRepo domain.EventRepository
	log       *slog.Logger
	now       func() time.Time
}

// NewEventService creates an EventService enforcing the publication state
// machine and the shared temporal guards.
func NewEventService(eventRepo domain.EventRepository, log *slog.Logger) domain.EventService {
	return &eventService{
		eventRepo: eventRepo,
		log:       log,
		now:       time.Now,
	}
}

func (s *eventService) Publish(ctx context.Context, eventID string) (*domain.Event, error) {
	s.log.DebugContext(ctx, "publish event", "event_id", eventID)

	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewNotFound(domain.KindEvent, eventID)
		}
		return nil, fmt.Errorf("get event: %w", err)
	}

	if event.State != domain.EventPending {
		return nil, fmt.Errorf("cannot publish event in state %s: %w", event.State, domain.ErrWrongState)
	}

	now := s.now()
	// Publication must leave at least an hour before the event starts.
	if event.EventDate.Before(now.Add(domain.PublishLeadTime)) {
		return nil, fmt.Errorf("event starts at %s: %w", event.EventDate.Format(time.RFC3339), domain.ErrInvalidSchedule)
	}

	event.State = domain.EventPublished
	event.PublishedOn = &now
	if err := s.eventRepo.Update(ctx, event); err != nil {
		return nil, fmt.Errorf("update event: %w", err)
	}
	return event, nil
}

func (s *eventService) Reject(ctx context.Context, eventID string) (*domain.Event, error) {
	s.log.DebugContext(ctx, "reject event", "event_id", eventID)

	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewNotFound(domain.KindEvent, eventID)
		}
		return nil, fmt.Errorf("get event: %w", err)
	}

	if event.State != domain.EventPending {
		return nil, fmt.Errorf("cannot reject event in state %s: %w", event.State, domain.ErrWrongState)
	}

	event.State = domain.EventCanceled
	if err := s.eventRepo.Update(ctx, event); err != nil {
		return nil, fmt.Errorf("update event: %w", err)
	}
	return event, nil
}

func (s *eventService) OwnerEdit(ctx context.Context, eventID, initiatorID string, changes domain.EventChanges) (*domain.Event, error) {
	s.log.DebugContext(ctx, "owner edit event", "event_id", eventID, "initiator_id", initiatorID)

	event, err := s.eventRepo.GetByIDAndInitiator(ctx, eventID, initiatorID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewNotFound(domain.KindEvent, eventID)
		}
		return nil, fmt.Errorf("get event: %w", err)
	}

	if err := s.validateOwnerEdit(event, changes); err != nil {
		return nil, err
	}

	changes.Apply(event)
	// An owner edit sends the event back through moderation.
	event.PublishedOn = nil
	if err := s.eventRepo.Update(ctx, event); err != nil {
		return nil, fmt.Errorf("update event: %w", err)
	}
	return event, nil
}

func (s *eventService) validateOwnerEdit(event *domain.Event, changes domain.EventChanges) error {
	now := s.now()

	if event.State == domain.EventPublished {
		return fmt.Errorf("only pending or canceled events can be changed: %w", domain.ErrWrongState)
	}

	// A started or past event is immutable except for counters.
	if !event.Mutable(now) {
		return fmt.Errorf("event already started: %w", domain.ErrInvalidSchedule)
	}

	if changes.EventDate != nil && changes.EventDate.Before(now.Add(domain.EditLeadTime)) {
		return fmt.Errorf("new event date %s is too soon: %w", changes.EventDate.Format(time.RFC3339), domain.ErrInvalidSchedule)
	}

	if changes.ParticipantLimit != nil {
		if *changes.ParticipantLimit < 0 {
			return fmt.Errorf("participant limit must be non-negative: %w", domain.ErrInvalidCapacity)
		}
		if *changes.ParticipantLimit != 0 && *changes.ParticipantLimit < event.ConfirmedRequests {
			return fmt.Errorf("limit %d below %d confirmed: %w",
				*changes.ParticipantLimit, event.ConfirmedRequests, domain.ErrInvalidCapacity)
		}
	}

	return nil
}
