package postgres

import (
	"context"
	"database/sql"
	"errors"

	"explorewithme/internal/domain"
)

type eventRepository struct {
	DB *sql.DB
}

func NewEventRepository(db *sql.DB) domain.EventRepository {
	return &eventRepository{
		DB: db,
	}
}

const eventColumns = `id, title, annotation, description, initiator_id, category_id, state,
		event_date, created_on, published_on, paid, request_moderation,
		participant_limit, confirmed_requests, views, likes, dislikes, rating`

func (r *eventRepository) Create(ctx context.Context, e *domain.Event) error {
	query := `
		INSERT INTO events (title, annotation, description, initiator_id, category_id, state,
			event_date, created_on, paid, request_moderation, participant_limit)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`
	return r.DB.QueryRowContext(ctx, query,
		e.Title, e.Annotation, e.Description, e.InitiatorID, e.CategoryID, e.State,
		e.EventDate, e.CreatedOn, e.Paid, e.RequestModeration, e.ParticipantLimit,
	).Scan(&e.ID)
}

func (r *eventRepository) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE id = $1
	`
	return r.scanEvent(r.DB.QueryRowContext(ctx, query, id))
}

func (r *eventRepository) GetByIDAndInitiator(ctx context.Context, id, initiatorID string) (*domain.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE id = $1 AND initiator_id = $2
	`
	return r.scanEvent(r.DB.QueryRowContext(ctx, query, id, initiatorID))
}

func (r *eventRepository) Update(ctx context.Context, e *domain.Event) error {
	// Counters are deliberately absent: they only move through the
	// dedicated counter statements below.
	query := `
		UPDATE events
		SET title = $2, annotation = $3, description = $4, category_id = $5, state = $6,
			event_date = $7, published_on = $8, paid = $9, request_moderation = $10,
			participant_limit = $11
		WHERE id = $1
	`
	var publishedOn sql.NullTime
	if e.PublishedOn != nil {
		publishedOn = sql.NullTime{Time: *e.PublishedOn, Valid: true}
	}
	result, err := r.DB.ExecContext(ctx, query,
		e.ID, e.Title, e.Annotation, e.Description, e.CategoryID, e.State,
		e.EventDate, publishedOn, e.Paid, e.RequestModeration, e.ParticipantLimit,
	)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// TryReserveSeat is the single synchronization point for the capacity
// invariant: the limit check and the increment are one conditional write,
// so two concurrent admissions can never both take the last seat.
func (r *eventRepository) TryReserveSeat(ctx context.Context, eventID string) (bool, error) {
	query := `
		UPDATE events
		SET confirmed_requests = confirmed_requests + 1
		WHERE id = $1 AND (participant_limit = 0 OR confirmed_requests < participant_limit)
	`
	result, err := r.DB.ExecContext(ctx, query, eventID)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (r *eventRepository) ReleaseSeat(ctx context.Context, eventID string) error {
	query := `
		UPDATE events
		SET confirmed_requests = confirmed_requests - 1
		WHERE id = $1 AND confirmed_requests > 0
	`
	_, err := r.DB.ExecContext(ctx, query, eventID)
	return err
}

func (r *eventRepository) AdjustVotes(ctx context.Context, eventID string, dLikes, dDislikes int) error {
	query := `
		UPDATE events
		SET likes = GREATEST(likes + $2, 0), dislikes = GREATEST(dislikes + $3, 0)
		WHERE id = $1
	`
	result, err := r.DB.ExecContext(ctx, query, eventID, dLikes, dDislikes)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *eventRepository) UpdateRating(ctx context.Context, eventID string, rating float64) error {
	query := `UPDATE events SET rating = $2 WHERE id = $1`
	result, err := r.DB.ExecContext(ctx, query, eventID, rating)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *eventRepository) scanEvent(row *sql.Row) (*domain.Event, error) {
	e := &domain.Event{}
	var publishedOn sql.NullTime
	err := row.Scan(
		&e.ID, &e.Title, &e.Annotation, &e.Description, &e.InitiatorID, &e.CategoryID, &e.State,
		&e.EventDate, &e.CreatedOn, &publishedOn, &e.Paid, &e.RequestModeration,
		&e.ParticipantLimit, &e.ConfirmedRequests, &e.Views, &e.Likes, &e.Dislikes, &e.Rating,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if publishedOn.Valid {
		e.PublishedOn = &publishedOn.Time
	}
	return e, nil
}
