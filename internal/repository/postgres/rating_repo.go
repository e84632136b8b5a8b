package postgres

import (
	"context"
	"database/sql"
	"errors"

	"explorewithme/internal/domain"
)

type ratingRepository struct {
	DB *sql.DB
}

func NewRatingRepository(db *sql.DB) domain.RatingRepository {
	return &ratingRepository{
		DB: db,
	}
}

func (r *ratingRepository) Get(ctx context.Context, userID, eventID string) (*domain.Rating, error) {
	query := `
		SELECT user_id, event_id, rating, created_on
		FROM ratings
		WHERE user_id = $1 AND event_id = $2
	`
	rating := &domain.Rating{}
	err := r.DB.QueryRowContext(ctx, query, userID, eventID).
		Scan(&rating.UserID, &rating.EventID, &rating.Value, &rating.CreatedOn)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return rating, nil
}

func (r *ratingRepository) Upsert(ctx context.Context, rating *domain.Rating) error {
	query := `
		INSERT INTO ratings (user_id, event_id, rating, created_on)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, event_id) DO UPDATE SET rating = EXCLUDED.rating
	`
	_, err := r.DB.ExecContext(ctx, query, rating.UserID, rating.EventID, rating.Value, rating.CreatedOn)
	return err
}

func (r *ratingRepository) Delete(ctx context.Context, userID, eventID string) error {
	query := `DELETE FROM ratings WHERE user_id = $1 AND event_id = $2`
	result, err := r.DB.ExecContext(ctx, query, userID, eventID)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// AverageForEvent averages the ratings of users who hold a CONFIRMED
// request for the event. Ratings from anyone else are ignored; no eligible
// ratings yields 0.
func (r *ratingRepository) AverageForEvent(ctx context.Context, eventID string) (float64, error) {
	query := `
		SELECT COALESCE(AVG(r.rating), 0)
		FROM ratings r
		JOIN requests pr ON pr.event_id = r.event_id AND pr.requester_id = r.user_id
		WHERE r.event_id = $1 AND pr.status = 'CONFIRMED'
	`
	var avg float64
	if err := r.DB.QueryRowContext(ctx, query, eventID).Scan(&avg); err != nil {
		return 0, err
	}
	return avg, nil
}
