package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"explorewithme/internal/domain"
)

type voteService struct {
	eventRepo   domain.EventRepository
	requestRepo domain.RequestRepository
	voteRepo    domain.VoteRepository
	ratingRepo  domain.RatingRepository
	userRepo    domain.UserRepository
	log         *slog.Logger
	now         func() time.Time
}

// NewVoteService creates the like/dislike and rating facade. Every vote
// mutation adjusts the event aggregates; every rating mutation triggers a
// recompute of the event's average.
func NewVoteService(
	eventRepo domain.EventRepository,
	requestRepo domain.RequestRepository,
	voteRepo domain.VoteRepository,
	ratingRepo domain.RatingRepository,
	userRepo domain.UserRepository,
	log *slog.Logger,
) domain.VoteService {
	return &voteService{
		eventRepo:   eventRepo,
		requestRepo: requestRepo,
		voteRepo:    voteRepo,
		ratingRepo:  ratingRepo,
		userRepo:    userRepo,
		log:         log,
		now:         time.Now,
	}
}

func (s *voteService) CastVote(ctx context.Context, userID, eventID string, isLike bool) error {
	s.log.DebugContext(ctx, "cast vote", "user_id", userID, "event_id", eventID, "is_like", isLike)

	if _, err := s.publishedEvent(ctx, userID, eventID); err != nil {
		return err
	}

	existing, err := s.voteRepo.Get(ctx, userID, eventID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("get vote: %w", err)
		}
		vote := &domain.Vote{UserID: userID, EventID: eventID, IsLike: isLike, CreatedOn: s.now()}
		if err := s.voteRepo.Cast(ctx, vote); err != nil {
			return fmt.Errorf("cast vote: %w", err)
		}
		return nil
	}

	if existing.IsLike == isLike {
		return fmt.Errorf("vote already cast: %w", domain.ErrVoteConflict)
	}
	// Opposite vote exists: flip it in place, moving one count between
	// the aggregates.
	if err := s.voteRepo.Flip(ctx, userID, eventID, isLike); err != nil {
		return fmt.Errorf("flip vote: %w", err)
	}
	return nil
}

func (s *voteService) UndoVote(ctx context.Context, userID, eventID string, isLike bool) error {
	s.log.DebugContext(ctx, "undo vote", "user_id", userID, "event_id", eventID, "is_like", isLike)

	if _, err := s.publishedEvent(ctx, userID, eventID); err != nil {
		return err
	}

	existing, err := s.voteRepo.Get(ctx, userID, eventID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("no vote to undo: %w", domain.ErrVoteConflict)
		}
		return fmt.Errorf("get vote: %w", err)
	}
	if existing.IsLike != isLike {
		return fmt.Errorf("vote has the opposite polarity: %w", domain.ErrVoteConflict)
	}

	if err := s.voteRepo.Delete(ctx, userID, eventID, existing.IsLike); err != nil {
		return fmt.Errorf("delete vote: %w", err)
	}
	return nil
}

func (s *voteService) Rate(ctx context.Context, userID, eventID string, value int) error {
	s.log.DebugContext(ctx, "rate event", "user_id", userID, "event_id", eventID, "rating", value)

	if value < domain.MinRating || value > domain.MaxRating {
		return fmt.Errorf("rating %d out of range [%d, %d]: %w",
			value, domain.MinRating, domain.MaxRating, domain.ErrVoteConflict)
	}

	event, err := s.publishedEvent(ctx, userID, eventID)
	if err != nil {
		return err
	}

	// Only confirmed participants of events over for a full day may rate.
	if _, err := s.requestRepo.GetConfirmedByRequesterAndEvent(ctx, userID, eventID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.NewNotFound(domain.KindRequest, "")
		}
		return fmt.Errorf("get confirmed request: %w", err)
	}
	if s.now().Before(event.EventDate.Add(domain.RatingDelay)) {
		return domain.ErrNotYetRateable
	}

	rating := &domain.Rating{UserID: userID, EventID: eventID, Value: value, CreatedOn: s.now()}
	if err := s.ratingRepo.Upsert(ctx, rating); err != nil {
		return fmt.Errorf("save rating: %w", err)
	}

	return s.recompute(ctx, eventID)
}

func (s *voteService) Unrate(ctx context.Context, userID, eventID string) error {
	s.log.DebugContext(ctx, "unrate event", "user_id", userID, "event_id", eventID)

	if _, err := s.publishedEvent(ctx, userID, eventID); err != nil {
		return err
	}

	if _, err := s.ratingRepo.Get(ctx, userID, eventID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.NewNotFound(domain.KindRating, "")
		}
		return fmt.Errorf("get rating: %w", err)
	}
	if err := s.ratingRepo.Delete(ctx, userID, eventID); err != nil {
		return fmt.Errorf("delete rating: %w", err)
	}

	return s.recompute(ctx, eventID)
}

// recompute stores the mean of eligible ratings, rounded half-up to two
// decimal places.
func (s *voteService) recompute(ctx context.Context, eventID string) error {
	avg, err := s.ratingRepo.AverageForEvent(ctx, eventID)
	if err != nil {
		return fmt.Errorf("average ratings: %w", err)
	}
	if err := s.eventRepo.UpdateRating(ctx, eventID, roundHalfUp(avg)); err != nil {
		return fmt.Errorf("update event rating: %w", err)
	}
	return nil
}

func (s *voteService) publishedEvent(ctx context.Context, userID, eventID string) (*domain.Event, error) {
	ok, err := s.userRepo.Exists(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("check user: %w", err)
	}
	if !ok {
		return nil, domain.NewNotFound(domain.KindUser, userID)
	}

	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewNotFound(domain.KindEvent, eventID)
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	if event.State != domain.EventPublished {
		return nil, fmt.Errorf("event %s is not published: %w", eventID, domain.ErrWrongState)
	}
	return event, nil
}

// roundHalfUp rounds to two decimal places with ties going away from zero.
func roundHalfUp(v float64) float64 {
	return math.Floor(v*100+0.5) / 100
}
