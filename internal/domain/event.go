package domain

import (
	"context"
	"time"
)

// EventState is the moderation state of an event.
type EventState string

const (
	// EventPending is the initial state; the event awaits moderation.
	EventPending EventState = "PENDING"
	// EventPublished is terminal for moderation purposes; only a published
	// event accepts participation requests.
	EventPublished EventState = "PUBLISHED"
	// EventCanceled is terminal.
	EventCanceled EventState = "CANCELED"
)

// Publish/edit windows. An event cannot be published less than an hour
// before it starts, and an owner cannot move it closer than two hours out.
const (
	PublishLeadTime = time.Hour
	EditLeadTime    = 2 * time.Hour
	// RatingDelay is how long after the event date ratings open.
	RatingDelay = 24 * time.Hour
)

// Event represents a meetup event with its derived counters.
//
// ParticipantLimit == 0 means unlimited. ConfirmedRequests, Likes, Dislikes
// and Rating are only ever mutated through the counter operations of
// EventRepository; services never write them back via Update.
type Event struct {
	ID                string     `json:"id"`
	Title             string     `json:"title"`
	Annotation        string     `json:"annotation"`
	Description       string     `json:"description"`
	InitiatorID       string     `json:"initiator_id"`
	CategoryID        string     `json:"category_id"`
	State             EventState `json:"state"`
	EventDate         time.Time  `json:"event_date"`
	CreatedOn         time.Time  `json:"created_on"`
	PublishedOn       *time.Time `json:"published_on,omitempty"`
	Paid              bool       `json:"paid"`
	RequestModeration bool       `json:"request_moderation"`
	ParticipantLimit  int        `json:"participant_limit"`
	ConfirmedRequests int        `json:"confirmed_requests"`
	Views             int64      `json:"views"`
	Likes             int64      `json:"likes"`
	Dislikes          int64      `json:"dislikes"`
	Rating            float64    `json:"rating"`
}

// Mutable reports whether the event may still be written at the given
// instant. Every write path checks this before touching the event or its
// requests; once the event date has passed only counters change.
func (e *Event) Mutable(now time.Time) bool {
	return e.EventDate.After(now)
}

// HasFreeSeat reports whether the event can admit one more participant.
// Advisory only: the authoritative check is the conditional update in the
// store (EventRepository.TryReserveSeat).
func (e *Event) HasFreeSeat() bool {
	return e.ParticipantLimit == 0 || e.ConfirmedRequests < e.ParticipantLimit
}

// AutoConfirm reports whether a new request bypasses moderation and is
// confirmed immediately.
func (e *Event) AutoConfirm() bool {
	return !e.RequestModeration || e.ParticipantLimit == 0
}

// EventChanges is an optional-field changeset for owner edits. Only fields
// that are set are applied to the loaded event; everything else keeps its
// current value.
type EventChanges struct {
	Title             *string
	Annotation        *string
	Description       *string
	CategoryID        *string
	EventDate         *time.Time
	Paid              *bool
	RequestModeration *bool
	ParticipantLimit  *int
}

// Apply overwrites the event's fields with the set members of the changeset.
func (c EventChanges) Apply(e *Event) {
	if c.Title != nil {
		e.Title = *c.Title
	}
	if c.Annotation != nil {
		e.Annotation = *c.Annotation
	}
	if c.Description != nil {
		e.Description = *c.Description
	}
	if c.CategoryID != nil {
		e.CategoryID = *c.CategoryID
	}
	if c.EventDate != nil {
		e.EventDate = *c.EventDate
	}
	if c.Paid != nil {
		e.Paid = *c.Paid
	}
	if c.RequestModeration != nil {
		e.RequestModeration = *c.RequestModeration
	}
	if c.ParticipantLimit != nil {
		e.ParticipantLimit = *c.ParticipantLimit
	}
}

// EventRepository defines the interface for event storage.
//
// TryReserveSeat, ReleaseSeat, AdjustVotes and UpdateRating are the only
// paths that mutate the derived counters. TryReserveSeat must be a single
// conditional write in the store so concurrent admissions cannot both see
// a free seat.
type EventRepository interface {
	GetByID(ctx context.Context, id string) (*Event, error)
	GetByIDAndInitiator(ctx context.Context, id, initiatorID string) (*Event, error)
	Create(ctx context.Context, e *Event) error
	// Update persists the event's editable fields and state. Counters are
	// not written; they belong to the dedicated counter operations below.
	Update(ctx context.Context, e *Event) error

	// TryReserveSeat atomically increments confirmed_requests if the
	// participant limit allows it. Returns false, without mutation, when
	// the event is full.
	TryReserveSeat(ctx context.Context, eventID string) (bool, error)
	// ReleaseSeat decrements confirmed_requests, floored at zero.
	ReleaseSeat(ctx context.Context, eventID string) error
	// AdjustVotes applies signed deltas to the likes/dislikes aggregates,
	// floored at zero.
	AdjustVotes(ctx context.Context, eventID string, dLikes, dDislikes int) error
	// UpdateRating stores a freshly computed average rating.
	UpdateRating(ctx context.Context, eventID string, rating float64) error
}

// EventService owns the event publication state machine and the temporal
// guards shared by every mutation path.
type EventService interface {
	// Publish moves a PENDING event to PUBLISHED. The event date must be
	// at least PublishLeadTime away.
	Publish(ctx context.Context, eventID string) (*Event, error)
	// Reject moves a PENDING event to CANCELED.
	Reject(ctx context.Context, eventID string) (*Event, error)
	// OwnerEdit applies a changeset to an unpublished, not-yet-started
	// event on behalf of its initiator.
	OwnerEdit(ctx context.Context, eventID, initiatorID string, changes EventChanges) (*Event, error)
}
