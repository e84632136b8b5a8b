package domain

import (
	"context"
	"time"
)

// RequestStatus is the lifecycle state of a participation request.
type RequestStatus string

const (
	RequestPending   RequestStatus = "PENDING"
	RequestConfirmed RequestStatus = "CONFIRMED"
	RequestRejected  RequestStatus = "REJECTED"
	RequestCanceled  RequestStatus = "CANCELED"
)

// ParticipationRequest is a user's request to join an event. At most one
// non-canceled request exists per (requester, event); the ledger service is
// the sole mutator of Status.
type ParticipationRequest struct {
	ID          string        `json:"id"`
	EventID     string        `json:"event_id"`
	RequesterID string        `json:"requester_id"`
	Status      RequestStatus `json:"status"`
	CreatedOn   time.Time     `json:"created_on"`
}

// NewParticipationRequest returns a request in the given initial status.
// ID is set by the repository on create.
func NewParticipationRequest(eventID, requesterID string, status RequestStatus, createdOn time.Time) *ParticipationRequest {
	return &ParticipationRequest{
		EventID:     eventID,
		RequesterID: requesterID,
		Status:      status,
		CreatedOn:   createdOn,
	}
}

// ModerationResult splits a moderation batch into its confirmed and
// rejected requests.
type ModerationResult struct {
	Confirmed []*ParticipationRequest `json:"confirmed_requests"`
	Rejected  []*ParticipationRequest `json:"rejected_requests"`
}

// RequestRepository defines storage operations for participation requests.
//
// CreateConfirmed, CancelConfirmed and ConfirmInOrder pair the request-row
// write with the matching counter change in one durable unit, so an aborted
// call can never leave the counter and the status row inconsistent.
type RequestRepository interface {
	GetByID(ctx context.Context, id string) (*ParticipationRequest, error)
	GetByRequesterAndEvent(ctx context.Context, requesterID, eventID string) (*ParticipationRequest, error)
	GetConfirmedByRequesterAndEvent(ctx context.Context, requesterID, eventID string) (*ParticipationRequest, error)
	ListByRequester(ctx context.Context, requesterID string) ([]*ParticipationRequest, error)
	ListByEvent(ctx context.Context, eventID string) ([]*ParticipationRequest, error)
	ListByEventAndIDs(ctx context.Context, eventID string, ids []string) ([]*ParticipationRequest, error)

	// Create inserts a PENDING request. A live duplicate for the same
	// requester and event yields ErrDuplicateRequest.
	Create(ctx context.Context, req *ParticipationRequest) error
	// CreateConfirmed inserts a CONFIRMED request and reserves a seat in
	// the same transaction; a full event yields ErrCapacityExceeded and
	// no row is written.
	CreateConfirmed(ctx context.Context, req *ParticipationRequest) error
	// UpdateStatus persists a status change with no counter effect.
	UpdateStatus(ctx context.Context, id string, status RequestStatus) error
	// CancelConfirmed flips a CONFIRMED request to CANCELED and releases
	// its seat in the same transaction.
	CancelConfirmed(ctx context.Context, id string) error
	// ConfirmInOrder confirms the given pending requests in the supplied
	// order under a per-event lock, cascading to REJECTED once the
	// participant limit is reached. Statuses and the final counter commit
	// as one unit; the two slices report the split.
	ConfirmInOrder(ctx context.Context, eventID string, ids []string) (confirmed, rejected []string, err error)
	// RejectAll marks the given pending requests REJECTED as one unit.
	RejectAll(ctx context.Context, eventID string, ids []string) error
}

// RequestService is the participation ledger: admission control for join
// requests against a published event's capacity, self-cancellation, and
// organizer-driven batch moderation.
type RequestService interface {
	CreateRequest(ctx context.Context, eventID, requesterID string) (*ParticipationRequest, error)
	CancelSelf(ctx context.Context, requestID, requesterID string) (*ParticipationRequest, error)
	// BatchModerate confirms or rejects the pending requests named by ids,
	// in the supplied order, on behalf of the event's initiator.
	BatchModerate(ctx context.Context, eventID, initiatorID string, ids []string, target RequestStatus) (*ModerationResult, error)
	ListEventRequests(ctx context.Context, eventID, initiatorID string) ([]*ParticipationRequest, error)
	ListOwnRequests(ctx context.Context, requesterID string) ([]*ParticipationRequest, error)
}
