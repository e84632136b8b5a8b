package domain

import (
	"context"
	"time"
)

// Vote is a user's like or dislike of an event. Identity is the
// (user, event) pair; flipping polarity mutates the row in place.
type Vote struct {
	UserID    string    `json:"user_id"`
	EventID   string    `json:"event_id"`
	IsLike    bool      `json:"is_like"`
	CreatedOn time.Time `json:"created_on"`
}

// Rating is an integer score (0-10) from a confirmed participant of an
// event that has already occurred.
type Rating struct {
	UserID    string    `json:"user_id"`
	EventID   string    `json:"event_id"`
	Value     int       `json:"rating"`
	CreatedOn time.Time `json:"created_on"`
}

// MinRating and MaxRating bound the accepted rating values.
const (
	MinRating = 0
	MaxRating = 10
)

// VoteRepository defines storage for like/dislike votes. The Cast/Flip/
// Delete operations pair the vote-row write with the matching aggregate
// delta on the event in one durable unit.
type VoteRepository interface {
	Get(ctx context.Context, userID, eventID string) (*Vote, error)
	// Cast inserts a new vote and bumps the corresponding aggregate.
	Cast(ctx context.Context, v *Vote) error
	// Flip reverses an existing vote's polarity and moves one count
	// between the aggregates.
	Flip(ctx context.Context, userID, eventID string, isLike bool) error
	// Delete removes a vote and decrements the corresponding aggregate.
	Delete(ctx context.Context, userID, eventID string, wasLike bool) error
}

// RatingRepository defines storage for event ratings.
type RatingRepository interface {
	Get(ctx context.Context, userID, eventID string) (*Rating, error)
	// Upsert inserts a rating or replaces an existing one in place.
	Upsert(ctx context.Context, r *Rating) error
	Delete(ctx context.Context, userID, eventID string) error
	// AverageForEvent computes the mean of ratings submitted by users
	// holding a CONFIRMED request for the event; 0 when none qualify.
	AverageForEvent(ctx context.Context, eventID string) (float64, error)
}

// VoteService is the counter/aggregator facade: like and dislike votes,
// their undo operations, and participant ratings.
type VoteService interface {
	// CastVote records a like (isLike) or dislike against a published
	// event, flipping an existing opposite vote in place.
	CastVote(ctx context.Context, userID, eventID string, isLike bool) error
	// UndoVote removes the user's existing vote of the given polarity.
	UndoVote(ctx context.Context, userID, eventID string, isLike bool) error
	// Rate stores a rating from a confirmed participant of a past event
	// and recomputes the event's average.
	Rate(ctx context.Context, userID, eventID string, value int) error
	// Unrate removes the user's rating and recomputes the average.
	Unrate(ctx context.Context, userID, eventID string) error
}
