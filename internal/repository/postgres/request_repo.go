package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"explorewithme/internal/domain"
)

// uniqueViolation is the postgres error code raised by the partial unique
// index on (requester_id, event_id) for non-canceled requests.
const uniqueViolation = "23505"

type requestRepository struct {
	DB *sql.DB
}

func NewRequestRepository(db *sql.DB) domain.RequestRepository {
	return &requestRepository{
		DB: db,
	}
}

const requestColumns = `id, event_id, requester_id, status, created_on`

func (r *requestRepository) GetByID(ctx context.Context, id string) (*domain.ParticipationRequest, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM requests
		WHERE id = $1
	`
	return scanRequest(r.DB.QueryRowContext(ctx, query, id))
}

func (r *requestRepository) GetByRequesterAndEvent(ctx context.Context, requesterID, eventID string) (*domain.ParticipationRequest, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM requests
		WHERE requester_id = $1 AND event_id = $2 AND status <> 'CANCELED'
	`
	return scanRequest(r.DB.QueryRowContext(ctx, query, requesterID, eventID))
}

func (r *requestRepository) GetConfirmedByRequesterAndEvent(ctx context.Context, requesterID, eventID string) (*domain.ParticipationRequest, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM requests
		WHERE requester_id = $1 AND event_id = $2 AND status = 'CONFIRMED'
	`
	return scanRequest(r.DB.QueryRowContext(ctx, query, requesterID, eventID))
}

func (r *requestRepository) ListByRequester(ctx context.Context, requesterID string) ([]*domain.ParticipationRequest, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM requests
		WHERE requester_id = $1
		ORDER BY created_on DESC
	`
	rows, err := r.DB.QueryContext(ctx, query, requesterID)
	if err != nil {
		return nil, err
	}
	return collectRequests(rows)
}

func (r *requestRepository) ListByEvent(ctx context.Context, eventID string) ([]*domain.ParticipationRequest, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM requests
		WHERE event_id = $1
		ORDER BY created_on ASC
	`
	rows, err := r.DB.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, err
	}
	return collectRequests(rows)
}

func (r *requestRepository) ListByEventAndIDs(ctx context.Context, eventID string, ids []string) ([]*domain.ParticipationRequest, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM requests
		WHERE event_id = $1 AND id = ANY($2)
	`
	rows, err := r.DB.QueryContext(ctx, query, eventID, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	return collectRequests(rows)
}

func (r *requestRepository) Create(ctx context.Context, req *domain.ParticipationRequest) error {
	query := `
		INSERT INTO requests (event_id, requester_id, status, created_on)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	err := r.DB.QueryRowContext(ctx, query, req.EventID, req.RequesterID, req.Status, req.CreatedOn).
		Scan(&req.ID)
	if isUniqueViolation(err) {
		return domain.ErrDuplicateRequest
	}
	return err
}

// CreateConfirmed reserves a seat and inserts the CONFIRMED request in one
// transaction. The reservation is a conditional write, so concurrent
// admissions against the last seat serialize in the store; the loser gets
// ErrCapacityExceeded and no row is written.
func (r *requestRepository) CreateConfirmed(ctx context.Context, req *domain.ParticipationRequest) (err error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	result, err := tx.ExecContext(ctx, `
		UPDATE events
		SET confirmed_requests = confirmed_requests + 1
		WHERE id = $1 AND (participant_limit = 0 OR confirmed_requests < participant_limit)
	`, req.EventID)
	if err != nil {
		return fmt.Errorf("reserve seat: %w", err)
	}
	if n, rerr := result.RowsAffected(); rerr != nil {
		err = rerr
		return err
	} else if n == 0 {
		err = domain.ErrCapacityExceeded
		return err
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO requests (event_id, requester_id, status, created_on)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, req.EventID, req.RequesterID, req.Status, req.CreatedOn).Scan(&req.ID)
	if err != nil {
		if isUniqueViolation(err) {
			err = domain.ErrDuplicateRequest
		}
		return err
	}

	return tx.Commit()
}

func (r *requestRepository) UpdateStatus(ctx context.Context, id string, status domain.RequestStatus) error {
	query := `UPDATE requests SET status = $2 WHERE id = $1`
	result, err := r.DB.ExecContext(ctx, query, id, status)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// CancelConfirmed flips a CONFIRMED request to CANCELED and releases its
// seat in the same transaction, so an abort partway can never leave the
// counter and the status row inconsistent.
func (r *requestRepository) CancelConfirmed(ctx context.Context, id string) (err error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var eventID string
	err = tx.QueryRowContext(ctx, `
		UPDATE requests SET status = 'CANCELED'
		WHERE id = $1 AND status = 'CONFIRMED'
		RETURNING event_id
	`, id).Scan(&eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = domain.ErrWrongRequestState
		}
		return err
	}

	if _, err = tx.ExecContext(ctx, `
		UPDATE events
		SET confirmed_requests = confirmed_requests - 1
		WHERE id = $1 AND confirmed_requests > 0
	`, eventID); err != nil {
		return fmt.Errorf("release seat: %w", err)
	}

	return tx.Commit()
}

// ConfirmInOrder is the batch admission path. It locks the event row, so
// only one moderation batch (or auto-confirm, which contends on the same
// row update) proceeds per event at a time, re-reads the named requests
// under the lock, confirms them in the caller-supplied order until the
// limit is reached, rejects the rest, and commits statuses plus the final
// counter as one unit.
func (r *requestRepository) ConfirmInOrder(ctx context.Context, eventID string, ids []string) (confirmed, rejected []string, err error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var limit, confirmedCount int
	err = tx.QueryRowContext(ctx, `
		SELECT participant_limit, confirmed_requests
		FROM events
		WHERE id = $1
		FOR UPDATE
	`, eventID).Scan(&limit, &confirmedCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = domain.ErrNotFound
		}
		return nil, nil, err
	}

	statuses := make(map[string]domain.RequestStatus, len(ids))
	rows, err := tx.QueryContext(ctx, `
		SELECT id, status
		FROM requests
		WHERE event_id = $1 AND id = ANY($2)
		FOR UPDATE
	`, eventID, pq.Array(ids))
	if err != nil {
		return nil, nil, err
	}
	for rows.Next() {
		var id string
		var status domain.RequestStatus
		if err = rows.Scan(&id, &status); err != nil {
			rows.Close()
			return nil, nil, err
		}
		statuses[id] = status
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return nil, nil, err
	}

	for _, id := range ids {
		status, ok := statuses[id]
		if !ok {
			err = domain.ErrNotFound
			return nil, nil, err
		}
		// Re-checked under the lock: a request raced into a terminal
		// state fails the whole batch.
		if status != domain.RequestPending {
			err = domain.ErrWrongRequestState
			return nil, nil, err
		}
		if limit == 0 || confirmedCount < limit {
			confirmed = append(confirmed, id)
			confirmedCount++
		} else {
			rejected = append(rejected, id)
		}
	}

	if len(confirmed) > 0 {
		if _, err = tx.ExecContext(ctx,
			`UPDATE requests SET status = 'CONFIRMED' WHERE id = ANY($1)`,
			pq.Array(confirmed)); err != nil {
			return nil, nil, err
		}
	}
	if len(rejected) > 0 {
		if _, err = tx.ExecContext(ctx,
			`UPDATE requests SET status = 'REJECTED' WHERE id = ANY($1)`,
			pq.Array(rejected)); err != nil {
			return nil, nil, err
		}
	}
	if _, err = tx.ExecContext(ctx,
		`UPDATE events SET confirmed_requests = $2 WHERE id = $1`,
		eventID, confirmedCount); err != nil {
		return nil, nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, nil, err
	}
	return confirmed, rejected, nil
}

// RejectAll marks the given pending requests REJECTED as one atomic unit.
// No counter changes: a pending request holds no seat.
func (r *requestRepository) RejectAll(ctx context.Context, eventID string, ids []string) (err error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	result, err := tx.ExecContext(ctx, `
		UPDATE requests SET status = 'REJECTED'
		WHERE event_id = $1 AND id = ANY($2) AND status = 'PENDING'
	`, eventID, pq.Array(ids))
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if int(n) != len(ids) {
		err = domain.ErrWrongRequestState
		return err
	}

	return tx.Commit()
}

func scanRequest(row *sql.Row) (*domain.ParticipationRequest, error) {
	req := &domain.ParticipationRequest{}
	err := row.Scan(&req.ID, &req.EventID, &req.RequesterID, &req.Status, &req.CreatedOn)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return req, nil
}

func collectRequests(rows *sql.Rows) ([]*domain.ParticipationRequest, error) {
	defer rows.Close()

	var requests []*domain.ParticipationRequest
	for rows.Next() {
		req := &domain.ParticipationRequest{}
		if err := rows.Scan(&req.ID, &req.EventID, &req.RequesterID, &req.Status, &req.CreatedOn); err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if requests == nil {
		requests = []*domain.ParticipationRequest{}
	}
	return requests, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
