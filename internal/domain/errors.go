package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by every service. Callers map these to transport
// status codes; nothing in this package is fatal to the process.
var (
	// ErrNotFound matches any NotFoundError via errors.Is.
	ErrNotFound = errors.New("not found")

	// ErrWrongState means the event or request is not in a state that
	// permits the operation.
	ErrWrongState = errors.New("wrong state for this operation")

	// ErrInvalidSchedule means a temporal guard was violated (publish
	// window, edit window, event already started).
	ErrInvalidSchedule = errors.New("event date violates the schedule constraints")

	// ErrSelfParticipation means the requester is the event's initiator.
	ErrSelfParticipation = errors.New("initiator cannot join own event")

	// ErrDuplicateRequest means a non-canceled request already exists for
	// this requester and event.
	ErrDuplicateRequest = errors.New("participation request already exists")

	// ErrCapacityExceeded means the participant limit has been reached.
	ErrCapacityExceeded = errors.New("the participant limit has been reached")

	// ErrWrongRequestState means a moderation batch contains a request
	// that is not PENDING; the whole batch is rejected.
	ErrWrongRequestState = errors.New("request is not in the right state: PENDING")

	// ErrInvalidCapacity means a new participant limit is below the number
	// of already confirmed participants.
	ErrInvalidCapacity = errors.New("participant limit is below confirmed count")

	// ErrNotYetRateable means the event has not been over for a full day.
	ErrNotYetRateable = errors.New("event cannot be rated until a day after it starts")

	// ErrVoteConflict means the vote to cast already exists, or the vote
	// to undo does not.
	ErrVoteConflict = errors.New("conflicting vote state")
)

// EntityKind names the aggregate a NotFoundError refers to.
type EntityKind string

const (
	KindEvent   EntityKind = "event"
	KindRequest EntityKind = "request"
	KindUser    EntityKind = "user"
	KindVote    EntityKind = "vote"
	KindRating  EntityKind = "rating"
)

// NotFoundError reports a missing entity of a given kind. It replaces the
// per-entity error zoo with one type tagged by kind; errors.Is(err, ErrNotFound)
// holds for every instance.
type NotFoundError struct {
	Kind EntityKind
	ID   string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Kind)
	}
	return fmt.Sprintf("%s with id=%s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	if target == ErrNotFound {
		return true
	}
	var other *NotFoundError
	if errors.As(target, &other) {
		return other.Kind == e.Kind && (other.ID == "" || other.ID == e.ID)
	}
	return false
}

// NewNotFound returns a NotFoundError for the given kind and id.
func NewNotFound(kind EntityKind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

// BatchNotFoundError reports the ids missing from a moderation batch load.
type BatchNotFoundError struct {
	Kind       EntityKind
	MissingIDs []string
}

func (e *BatchNotFoundError) Error() string {
	return fmt.Sprintf("%ss with ids=%v not found", e.Kind, e.MissingIDs)
}

func (e *BatchNotFoundError) Is(target error) bool {
	return target == ErrNotFound
}
