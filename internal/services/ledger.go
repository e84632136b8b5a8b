package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"explorewithme/internal/domain"
)

type requestService struct {
	eventRepo   domain.EventRepository
	requestRepo domain.RequestRepository
	userRepo    domain.UserRepository
	notifier    *decisionNotifier
	log         *slog.Logger
	now         func() time.Time
}

// NewRequestService creates the participation ledger. The email service and
// lookup are optional; when either is nil moderation results are not mailed.
func NewRequestService(
	eventRepo domain.EventRepository,
	requestRepo domain.RequestRepository,
	userRepo domain.UserRepository,
	emailService domain.EmailService,
	emails domain.RequesterEmailLookup,
	log *slog.Logger,
) domain.RequestService {
	var notifier *decisionNotifier
	if emailService != nil && emails != nil {
		notifier = &decisionNotifier{emailService: emailService, emails: emails, log: log}
	}
	return &requestService{
		eventRepo:   eventRepo,
		requestRepo: requestRepo,
		userRepo:    userRepo,
		notifier:    notifier,
		log:         log,
		now:         time.Now,
	}
}

func (s *requestService) CreateRequest(ctx context.Context, eventID, requesterID string) (*domain.ParticipationRequest, error) {
	s.log.DebugContext(ctx, "create participation request", "event_id", eventID, "requester_id", requesterID)

	if err := s.requesterExists(ctx, requesterID); err != nil {
		return nil, err
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
	if event.InitiatorID == requesterID {
		return nil, fmt.Errorf("requester %s initiated event %s: %w", requesterID, eventID, domain.ErrSelfParticipation)
	}

	if _, err := s.requestRepo.GetByRequesterAndEvent(ctx, requesterID, eventID); err == nil {
		return nil, fmt.Errorf("requester %s, event %s: %w", requesterID, eventID, domain.ErrDuplicateRequest)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("get existing request: %w", err)
	}

	// Advisory pre-check; the auto-confirm path re-decides atomically in
	// the store, so a concurrent admission can still lose there.
	if !event.HasFreeSeat() {
		return nil, domain.ErrCapacityExceeded
	}

	if event.AutoConfirm() {
		req := domain.NewParticipationRequest(eventID, requesterID, domain.RequestConfirmed, s.now())
		if err := s.requestRepo.CreateConfirmed(ctx, req); err != nil {
			if errors.Is(err, domain.ErrCapacityExceeded) || errors.Is(err, domain.ErrDuplicateRequest) {
				return nil, err
			}
			return nil, fmt.Errorf("create confirmed request: %w", err)
		}
		return req, nil
	}

	req := domain.NewParticipationRequest(eventID, requesterID, domain.RequestPending, s.now())
	if err := s.requestRepo.Create(ctx, req); err != nil {
		if errors.Is(err, domain.ErrDuplicateRequest) {
			return nil, err
		}
		return nil, fmt.Errorf("create request: %w", err)
	}
	return req, nil
}

func (s *requestService) CancelSelf(ctx context.Context, requestID, requesterID string) (*domain.ParticipationRequest, error) {
	s.log.DebugContext(ctx, "cancel own request", "request_id", requestID, "requester_id", requesterID)

	if err := s.requesterExists(ctx, requesterID); err != nil {
		return nil, err
	}

	req, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewNotFound(domain.KindRequest, requestID)
		}
		return nil, fmt.Errorf("get request: %w", err)
	}
	if req.RequesterID != requesterID {
		return nil, domain.NewNotFound(domain.KindRequest, requestID)
	}

	switch req.Status {
	case domain.RequestCanceled:
		// Idempotent: the record is returned unchanged and no seat is
		// released twice.
		return req, nil
	case domain.RequestConfirmed:
		if err := s.requestRepo.CancelConfirmed(ctx, req.ID); err != nil {
			return nil, fmt.Errorf("cancel confirmed request: %w", err)
		}
	default:
		// A PENDING (or rejected) request holds no seat.
		if err := s.requestRepo.UpdateStatus(ctx, req.ID, domain.RequestCanceled); err != nil {
			return nil, fmt.Errorf("cancel request: %w", err)
		}
	}

	req.Status = domain.RequestCanceled
	return req, nil
}

func (s *requestService) BatchModerate(ctx context.Context, eventID, initiatorID string, ids []string, target domain.RequestStatus) (*domain.ModerationResult, error) {
	s.log.DebugContext(ctx, "batch moderate requests",
		"event_id", eventID, "initiator_id", initiatorID, "target", target, "count", len(ids))

	if target != domain.RequestConfirmed && target != domain.RequestRejected {
		return nil, fmt.Errorf("target status must be CONFIRMED or REJECTED: %w", domain.ErrWrongRequestState)
	}

	event, err := s.eventRepo.GetByIDAndInitiator(ctx, eventID, initiatorID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewNotFound(domain.KindEvent, eventID)
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	if event.State != domain.EventPublished {
		return nil, fmt.Errorf("event %s is not published: %w", eventID, domain.ErrWrongState)
	}

	result := &domain.ModerationResult{
		Confirmed: []*domain.ParticipationRequest{},
		Rejected:  []*domain.ParticipationRequest{},
	}
	if len(ids) == 0 {
		return result, nil
	}
	ids = uniqueIDs(ids)

	requests, err := s.loadBatch(ctx, eventID, ids)
	if err != nil {
		return nil, err
	}

	// One bad item fails the whole batch; no partial application.
	for _, req := range requests {
		if req.Status != domain.RequestPending {
			return nil, fmt.Errorf("request %s is %s: %w", req.ID, req.Status, domain.ErrWrongRequestState)
		}
	}

	byID := make(map[string]*domain.ParticipationRequest, len(requests))
	for _, req := range requests {
		byID[req.ID] = req
	}

	if target == domain.RequestRejected {
		if err := s.requestRepo.RejectAll(ctx, eventID, ids); err != nil {
			return nil, fmt.Errorf("reject requests: %w", err)
		}
		for _, id := range ids {
			req := byID[id]
			req.Status = domain.RequestRejected
			result.Rejected = append(result.Rejected, req)
		}
		s.notifyDecisions(ctx, event, result)
		return result, nil
	}

	if event.ParticipantLimit != 0 && event.ConfirmedRequests == event.ParticipantLimit {
		return nil, domain.ErrCapacityExceeded
	}

	// The repository walks the ids in caller-supplied order under a
	// per-event lock and cascades to REJECTED once the limit is reached.
	confirmedIDs, rejectedIDs, err := s.requestRepo.ConfirmInOrder(ctx, eventID, ids)
	if err != nil {
		return nil, fmt.Errorf("confirm requests: %w", err)
	}
	for _, id := range confirmedIDs {
		req := byID[id]
		req.Status = domain.RequestConfirmed
		result.Confirmed = append(result.Confirmed, req)
	}
	for _, id := range rejectedIDs {
		req := byID[id]
		req.Status = domain.RequestRejected
		result.Rejected = append(result.Rejected, req)
	}

	s.notifyDecisions(ctx, event, result)
	return result, nil
}

func (s *requestService) ListEventRequests(ctx context.Context, eventID, initiatorID string) ([]*domain.ParticipationRequest, error) {
	s.log.DebugContext(ctx, "list event requests", "event_id", eventID, "initiator_id", initiatorID)

	if _, err := s.eventRepo.GetByIDAndInitiator(ctx, eventID, initiatorID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewNotFound(domain.KindEvent, eventID)
		}
		return nil, fmt.Errorf("get event: %w", err)
	}

	requests, err := s.requestRepo.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	if requests == nil {
		requests = []*domain.ParticipationRequest{}
	}
	return requests, nil
}

func (s *requestService) ListOwnRequests(ctx context.Context, requesterID string) ([]*domain.ParticipationRequest, error) {
	s.log.DebugContext(ctx, "list own requests", "requester_id", requesterID)

	if err := s.requesterExists(ctx, requesterID); err != nil {
		return nil, err
	}

	requests, err := s.requestRepo.ListByRequester(ctx, requesterID)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	if requests == nil {
		requests = []*domain.ParticipationRequest{}
	}
	return requests, nil
}

func (s *requestService) loadBatch(ctx context.Context, eventID string, ids []string) ([]*domain.ParticipationRequest, error) {
	requests, err := s.requestRepo.ListByEventAndIDs(ctx, eventID, ids)
	if err != nil {
		return nil, fmt.Errorf("load requests: %w", err)
	}

	if len(requests) != len(ids) {
		got := make(map[string]struct{}, len(requests))
		for _, req := range requests {
			got[req.ID] = struct{}{}
		}
		var missing []string
		for _, id := range ids {
			if _, ok := got[id]; !ok {
				missing = append(missing, id)
			}
		}
		return nil, &domain.BatchNotFoundError{Kind: domain.KindRequest, MissingIDs: missing}
	}
	return requests, nil
}

func (s *requestService) requesterExists(ctx context.Context, requesterID string) error {
	ok, err := s.userRepo.Exists(ctx, requesterID)
	if err != nil {
		return fmt.Errorf("check user: %w", err)
	}
	if !ok {
		return domain.NewNotFound(domain.KindUser, requesterID)
	}
	return nil
}

func (s *requestService) notifyDecisions(ctx context.Context, event *domain.Event, result *domain.ModerationResult) {
	if s.notifier == nil {
		return
	}
	s.notifier.notify(ctx, event, result)
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// decisionNotifier mails moderation outcomes to requesters. Sending is
// best-effort: failures are logged and never fail the moderation call.
type decisionNotifier struct {
	emailService domain.EmailService
	emails       domain.RequesterEmailLookup
	log          *slog.Logger
}

func (n *decisionNotifier) notify(ctx context.Context, event *domain.Event, result *domain.ModerationResult) {
	for _, req := range result.Confirmed {
		n.send(ctx, event, req, true)
	}
	for _, req := range result.Rejected {
		n.send(ctx, event, req, false)
	}
}

func (n *decisionNotifier) send(ctx context.Context, event *domain.Event, req *domain.ParticipationRequest, confirmed bool) {
	addr, err := n.emails.EmailByUserID(ctx, req.RequesterID)
	if err != nil || addr == "" {
		n.log.WarnContext(ctx, "skip decision email, no address",
			"requester_id", req.RequesterID, "error", err)
		return
	}
	data := &domain.RequestDecisionEmailData{
		Email:      addr,
		EventTitle: event.Title,
		Confirmed:  confirmed,
	}
	if err := n.emailService.SendRequestDecision(ctx, data); err != nil {
		n.log.WarnContext(ctx, "send decision email failed",
			"requester_id", req.RequesterID, "error", err)
	}
}
