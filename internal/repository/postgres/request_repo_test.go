package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"explorewithme/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
)

var requestRowColumns = []string{"id", "event_id", "requester_id", "status", "created_on"}

func TestRequestRepository_Create(t *testing.T) {
	ctx := context.Background()
	createdOn := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		req     *domain.ParticipationRequest
		mock    func(mock sqlmock.Sqlmock)
		wantID  string
		wantErr error
	}{
		{
			name: "success",
			req:  domain.NewParticipationRequest("ev-1", "user-1", domain.RequestPending, createdOn),
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`INSERT INTO requests`).
					WithArgs("ev-1", "user-1", domain.RequestPending, createdOn).
					WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("req-uuid-1"))
			},
			wantID: "req-uuid-1",
		},
		{
			name: "live duplicate",
			req:  domain.NewParticipationRequest("ev-1", "user-1", domain.RequestPending, createdOn),
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`INSERT INTO requests`).
					WillReturnError(&pq.Error{Code: uniqueViolation})
			},
			wantErr: domain.ErrDuplicateRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			tt.mock(mock)
			repo := NewRequestRepository(db)
			err = repo.Create(ctx, tt.req)
			if tt.wantErr != nil {
				require.True(t, errors.Is(err, tt.wantErr))
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.wantID, tt.req.ID)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRequestRepository_GetByRequesterAndEvent(t *testing.T) {
	ctx := context.Background()
	createdOn := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	t.Run("live request found", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		rows := sqlmock.NewRows(requestRowColumns).
			AddRow("req-1", "ev-1", "user-1", "PENDING", createdOn)
		mock.ExpectQuery(`SELECT (.+) FROM requests`).
			WithArgs("user-1", "ev-1").
			WillReturnRows(rows)

		repo := NewRequestRepository(db)
		req, err := repo.GetByRequesterAndEvent(ctx, "user-1", "ev-1")
		require.NoError(t, err)
		require.Equal(t, domain.RequestPending, req.Status)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no live request", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(`SELECT (.+) FROM requests`).
			WithArgs("user-1", "ev-1").
			WillReturnError(sql.ErrNoRows)

		repo := NewRequestRepository(db)
		_, err = repo.GetByRequesterAndEvent(ctx, "user-1", "ev-1")
		require.True(t, errors.Is(err, domain.ErrNotFound))
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRequestRepository_ListByEventAndIDs(t *testing.T) {
	ctx := context.Background()
	createdOn := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ids := []string{"req-1", "req-2"}
	rows := sqlmock.NewRows(requestRowColumns).
		AddRow("req-1", "ev-1", "user-1", "PENDING", createdOn).
		AddRow("req-2", "ev-1", "user-2", "PENDING", createdOn)
	mock.ExpectQuery(`SELECT (.+) FROM requests`).
		WithArgs("ev-1", pq.Array(ids)).
		WillReturnRows(rows)

	repo := NewRequestRepository(db)
	requests, err := repo.ListByEventAndIDs(ctx, "ev-1", ids)
	require.NoError(t, err)
	require.Len(t, requests, 2)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepository_CreateConfirmed(t *testing.T) {
	ctx := context.Background()
	createdOn := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	t.Run("reserves a seat and inserts in one transaction", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE events`).
			WithArgs("ev-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`INSERT INTO requests`).
			WithArgs("ev-1", "user-1", domain.RequestConfirmed, createdOn).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("req-uuid-1"))
		mock.ExpectCommit()

		repo := NewRequestRepository(db)
		req := domain.NewParticipationRequest("ev-1", "user-1", domain.RequestConfirmed, createdOn)
		require.NoError(t, repo.CreateConfirmed(ctx, req))
		require.Equal(t, "req-uuid-1", req.ID)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("full event rolls back without a row", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE events`).
			WithArgs("ev-1").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		repo := NewRequestRepository(db)
		req := domain.NewParticipationRequest("ev-1", "user-1", domain.RequestConfirmed, createdOn)
		err = repo.CreateConfirmed(ctx, req)
		require.True(t, errors.Is(err, domain.ErrCapacityExceeded))
		require.Empty(t, req.ID)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate rolls back the reservation", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE events`).
			WithArgs("ev-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`INSERT INTO requests`).
			WillReturnError(&pq.Error{Code: uniqueViolation})
		mock.ExpectRollback()

		repo := NewRequestRepository(db)
		req := domain.NewParticipationRequest("ev-1", "user-1", domain.RequestConfirmed, createdOn)
		err = repo.CreateConfirmed(ctx, req)
		require.True(t, errors.Is(err, domain.ErrDuplicateRequest))
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRequestRepository_CancelConfirmed(t *testing.T) {
	ctx := context.Background()

	t.Run("cancels and releases the seat in one transaction", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectQuery(`UPDATE requests SET status`).
			WithArgs("req-1").
			WillReturnRows(sqlmock.NewRows([]string{"event_id"}).AddRow("ev-1"))
		mock.ExpectExec(`UPDATE events`).
			WithArgs("ev-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		repo := NewRequestRepository(db)
		require.NoError(t, repo.CancelConfirmed(ctx, "req-1"))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("request not confirmed rolls back", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectQuery(`UPDATE requests SET status`).
			WithArgs("req-1").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		repo := NewRequestRepository(db)
		err = repo.CancelConfirmed(ctx, "req-1")
		require.True(t, errors.Is(err, domain.ErrWrongRequestState))
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRequestRepository_ConfirmInOrder(t *testing.T) {
	ctx := context.Background()

	lockColumns := []string{"participant_limit", "confirmed_requests"}
	statusColumns := []string{"id", "status"}

	t.Run("confirms everything within the limit", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		ids := []string{"req-1", "req-2"}
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT participant_limit, confirmed_requests`).
			WithArgs("ev-1").
			WillReturnRows(sqlmock.NewRows(lockColumns).AddRow(5, 0))
		mock.ExpectQuery(`SELECT id, status`).
			WithArgs("ev-1", pq.Array(ids)).
			WillReturnRows(sqlmock.NewRows(statusColumns).
				AddRow("req-1", "PENDING").
				AddRow("req-2", "PENDING"))
		mock.ExpectExec(`UPDATE requests SET status = 'CONFIRMED'`).
			WithArgs(pq.Array([]string{"req-1", "req-2"})).
			WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectExec(`UPDATE events SET confirmed_requests`).
			WithArgs("ev-1", 2).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		repo := NewRequestRepository(db)
		confirmed, rejected, err := repo.ConfirmInOrder(ctx, "ev-1", ids)
		require.NoError(t, err)
		require.Equal(t, ids, confirmed)
		require.Empty(t, rejected)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("limit exhaustion cascades in caller order", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		ids := []string{"req-1", "req-2", "req-3"}
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT participant_limit, confirmed_requests`).
			WithArgs("ev-1").
			WillReturnRows(sqlmock.NewRows(lockColumns).AddRow(2, 0))
		mock.ExpectQuery(`SELECT id, status`).
			WithArgs("ev-1", pq.Array(ids)).
			WillReturnRows(sqlmock.NewRows(statusColumns).
				AddRow("req-1", "PENDING").
				AddRow("req-2", "PENDING").
				AddRow("req-3", "PENDING"))
		mock.ExpectExec(`UPDATE requests SET status = 'CONFIRMED'`).
			WithArgs(pq.Array([]string{"req-1", "req-2"})).
			WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectExec(`UPDATE requests SET status = 'REJECTED'`).
			WithArgs(pq.Array([]string{"req-3"})).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE events SET confirmed_requests`).
			WithArgs("ev-1", 2).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		repo := NewRequestRepository(db)
		confirmed, rejected, err := repo.ConfirmInOrder(ctx, "ev-1", ids)
		require.NoError(t, err)
		require.Equal(t, []string{"req-1", "req-2"}, confirmed)
		require.Equal(t, []string{"req-3"}, rejected)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unlimited event confirms everything", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		ids := []string{"req-1"}
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT participant_limit, confirmed_requests`).
			WithArgs("ev-1").
			WillReturnRows(sqlmock.NewRows(lockColumns).AddRow(0, 99))
		mock.ExpectQuery(`SELECT id, status`).
			WithArgs("ev-1", pq.Array(ids)).
			WillReturnRows(sqlmock.NewRows(statusColumns).AddRow("req-1", "PENDING"))
		mock.ExpectExec(`UPDATE requests SET status = 'CONFIRMED'`).
			WithArgs(pq.Array(ids)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE events SET confirmed_requests`).
			WithArgs("ev-1", 100).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		repo := NewRequestRepository(db)
		confirmed, rejected, err := repo.ConfirmInOrder(ctx, "ev-1", ids)
		require.NoError(t, err)
		require.Equal(t, ids, confirmed)
		require.Empty(t, rejected)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("a raced terminal status rolls back the whole batch", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		ids := []string{"req-1", "req-2"}
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT participant_limit, confirmed_requests`).
			WithArgs("ev-1").
			WillReturnRows(sqlmock.NewRows(lockColumns).AddRow(5, 0))
		mock.ExpectQuery(`SELECT id, status`).
			WithArgs("ev-1", pq.Array(ids)).
			WillReturnRows(sqlmock.NewRows(statusColumns).
				AddRow("req-1", "PENDING").
				AddRow("req-2", "CANCELED"))
		mock.ExpectRollback()

		repo := NewRequestRepository(db)
		_, _, err = repo.ConfirmInOrder(ctx, "ev-1", ids)
		require.True(t, errors.Is(err, domain.ErrWrongRequestState))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("a vanished request rolls back with not found", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		ids := []string{"req-1", "req-gone"}
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT participant_limit, confirmed_requests`).
			WithArgs("ev-1").
			WillReturnRows(sqlmock.NewRows(lockColumns).AddRow(5, 0))
		mock.ExpectQuery(`SELECT id, status`).
			WithArgs("ev-1", pq.Array(ids)).
			WillReturnRows(sqlmock.NewRows(statusColumns).AddRow("req-1", "PENDING"))
		mock.ExpectRollback()

		repo := NewRequestRepository(db)
		_, _, err = repo.ConfirmInOrder(ctx, "ev-1", ids)
		require.True(t, errors.Is(err, domain.ErrNotFound))
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRequestRepository_RejectAll(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects every pending request", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		ids := []string{"req-1", "req-2"}
		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE requests SET status = 'REJECTED'`).
			WithArgs("ev-1", pq.Array(ids)).
			WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectCommit()

		repo := NewRequestRepository(db)
		require.NoError(t, repo.RejectAll(ctx, "ev-1", ids))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("a non-pending request rolls back the batch", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		ids := []string{"req-1", "req-2"}
		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE requests SET status = 'REJECTED'`).
			WithArgs("ev-1", pq.Array(ids)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectRollback()

		repo := NewRequestRepository(db)
		err = repo.RejectAll(ctx, "ev-1", ids)
		require.True(t, errors.Is(err, domain.ErrWrongRequestState))
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRequestRepository_UpdateStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec(`UPDATE requests SET status`).
			WithArgs("req-1", domain.RequestCanceled).
			WillReturnResult(sqlmock.NewResult(0, 1))

		repo := NewRequestRepository(db)
		require.NoError(t, repo.UpdateStatus(ctx, "req-1", domain.RequestCanceled))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing request", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec(`UPDATE requests SET status`).
			WithArgs("missing", domain.RequestCanceled).
			WillReturnResult(sqlmock.NewResult(0, 0))

		repo := NewRequestRepository(db)
		err = repo.UpdateStatus(ctx, "missing", domain.RequestCanceled)
		require.True(t, errors.Is(err, domain.ErrNotFound))
		require.NoError(t, mock.ExpectationsWereMet())
	})
}
