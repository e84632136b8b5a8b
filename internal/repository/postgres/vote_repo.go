package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"explorewithme/internal/domain"
)

type voteRepository struct {
	DB *sql.DB
}

func NewVoteRepository(db *sql.DB) domain.VoteRepository {
	return &voteRepository{
		DB: db,
	}
}

func (r *voteRepository) Get(ctx context.Context, userID, eventID string) (*domain.Vote, error) {
	query := `
		SELECT user_id, event_id, is_like, created_on
		FROM likes
		WHERE user_id = $1 AND event_id = $2
	`
	v := &domain.Vote{}
	err := r.DB.QueryRowContext(ctx, query, userID, eventID).
		Scan(&v.UserID, &v.EventID, &v.IsLike, &v.CreatedOn)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return v, nil
}

// Cast inserts the vote row and bumps the matching aggregate in one
// transaction.
func (r *voteRepository) Cast(ctx context.Context, v *domain.Vote) (err error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO likes (user_id, event_id, is_like, created_on)
		VALUES ($1, $2, $3, $4)
	`, v.UserID, v.EventID, v.IsLike, v.CreatedOn); err != nil {
		if isUniqueViolation(err) {
			err = domain.ErrVoteConflict
		}
		return err
	}

	dLikes, dDislikes := voteDeltas(v.IsLike, +1)
	if err = adjustVotesTx(ctx, tx, v.EventID, dLikes, dDislikes); err != nil {
		return err
	}

	return tx.Commit()
}

// Flip reverses the vote's polarity and moves one count between the
// aggregates in one transaction.
func (r *voteRepository) Flip(ctx context.Context, userID, eventID string, isLike bool) (err error) {
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
		UPDATE likes SET is_like = $3
		WHERE user_id = $1 AND event_id = $2 AND is_like = $4
	`, userID, eventID, isLike, !isLike)
	if err != nil {
		return err
	}
	if n, rerr := result.RowsAffected(); rerr != nil {
		err = rerr
		return err
	} else if n == 0 {
		err = domain.ErrNotFound
		return err
	}

	// One count moves from the old aggregate to the new one.
	var dLikes, dDislikes int
	if isLike {
		dLikes, dDislikes = +1, -1
	} else {
		dLikes, dDislikes = -1, +1
	}
	if err = adjustVotesTx(ctx, tx, eventID, dLikes, dDislikes); err != nil {
		return err
	}

	return tx.Commit()
}

// Delete removes the vote row and decrements the matching aggregate in one
// transaction.
func (r *voteRepository) Delete(ctx context.Context, userID, eventID string, wasLike bool) (err error) {
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
		DELETE FROM likes
		WHERE user_id = $1 AND event_id = $2 AND is_like = $3
	`, userID, eventID, wasLike)
	if err != nil {
		return err
	}
	if n, rerr := result.RowsAffected(); rerr != nil {
		err = rerr
		return err
	} else if n == 0 {
		err = domain.ErrNotFound
		return err
	}

	dLikes, dDislikes := voteDeltas(wasLike, -1)
	if err = adjustVotesTx(ctx, tx, eventID, dLikes, dDislikes); err != nil {
		return err
	}

	return tx.Commit()
}

func adjustVotesTx(ctx context.Context, tx *sql.Tx, eventID string, dLikes, dDislikes int) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE events
		SET likes = GREATEST(likes + $2, 0), dislikes = GREATEST(dislikes + $3, 0)
		WHERE id = $1
	`, eventID, dLikes, dDislikes)
	if err != nil {
		return fmt.Errorf("adjust vote counters: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func voteDeltas(isLike bool, sign int) (dLikes, dDislikes int) {
	if isLike {
		return sign, 0
	}
	return 0, sign
}
