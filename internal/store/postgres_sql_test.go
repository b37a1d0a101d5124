package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/payflow/approval-service/internal/domain"
	"github.com/stretchr/testify/require"
)

var (
	lockDueTemplateSQL = `FROM recurring_templates\s+WHERE id = \$1 AND active AND next_due_date = \$2::date\s+FOR UPDATE`
	insertRequestSQL   = regexp.QuoteMeta(`INSERT INTO payment_requests`)
	advanceTemplateSQL = `UPDATE recurring_templates\s+SET next_due_date = \$2::date`
	lockStateSQL       = `(?s)UPDATE users\s+SET failed_attempts = \$3.*WHERE id = \$1 AND version = \$2`

	templateColumnNames = []string{
		"id", "owner_id", "department", "amount", "destination_account", "concept",
		"payment_type", "frequency", "next_due_date", "active", "created_at", "updated_at",
	}
)

func newMockRepository(t *testing.T) (*PostgresRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresRepository(mock), mock
}

func templateRow(id, ownerID uuid.UUID, due time.Time) *pgxmock.Rows {
	created := time.Date(2026, time.January, 5, 8, 0, 0, 0, time.UTC)
	return pgxmock.NewRows(templateColumnNames).AddRow(
		id.String(), ownerID.String(), "Finance", "1500.00", "0123456789", "Office rent",
		"transfer", domain.FrequencyMonthly, due, true, created, created,
	)
}

func fireParams(id uuid.UUID) FireParams {
	return FireParams{
		TemplateID:  id,
		Date:        time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC),
		NextDueDate: time.Date(2026, time.April, 10, 0, 0, 0, 0, time.UTC),
	}
}

func TestFireTemplate_InsertsAndAdvancesInOneTransaction(t *testing.T) {
	repo, mock := newMockRepository(t)
	tplID, ownerID, requestID := uuid.New(), uuid.New(), uuid.New()
	params := fireParams(tplID)
	createdAt := time.Date(2026, time.March, 10, 6, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(lockDueTemplateSQL).
		WithArgs(tplID, "2026-03-10").
		WillReturnRows(templateRow(tplID, ownerID, params.Date))
	mock.ExpectQuery(insertRequestSQL).
		WithArgs(
			ownerID, "Finance", pgxmock.AnyArg(), "0123456789", pgxmock.AnyArg(),
			"Office rent", "transfer", "2026-03-10", pgxmock.AnyArg(), domain.StatusPending, &tplID,
		).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(requestID.String(), createdAt))
	mock.ExpectExec(advanceTemplateSQL).
		WithArgs(tplID, "2026-04-10").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	req, err := repo.FireTemplate(context.Background(), params)

	require.NoError(t, err)
	require.Equal(t, requestID, req.ID)
	require.Equal(t, ownerID, req.RequesterID)
	require.Equal(t, domain.StatusPending, req.Status)
	require.NotNil(t, req.TemplateID)
	require.Equal(t, tplID, *req.TemplateID)
	require.True(t, req.DueDate.Equal(params.Date))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFireTemplate_AlreadyAdvancedIsNotDue(t *testing.T) {
	repo, mock := newMockRepository(t)
	tplID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(lockDueTemplateSQL).
		WithArgs(tplID, "2026-03-10").
		WillReturnRows(pgxmock.NewRows(templateColumnNames))
	mock.ExpectRollback()

	_, err := repo.FireTemplate(context.Background(), fireParams(tplID))

	require.ErrorIs(t, err, ErrTemplateNotDue)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFireTemplate_InsertFailureLeavesTemplateUnadvanced(t *testing.T) {
	repo, mock := newMockRepository(t)
	tplID := uuid.New()
	params := fireParams(tplID)
	insertErr := errors.New("connection reset")

	mock.ExpectBegin()
	mock.ExpectQuery(lockDueTemplateSQL).
		WithArgs(tplID, "2026-03-10").
		WillReturnRows(templateRow(tplID, uuid.New(), params.Date))
	mock.ExpectQuery(insertRequestSQL).WillReturnError(insertErr)
	mock.ExpectRollback()

	_, err := repo.FireTemplate(context.Background(), params)

	require.ErrorIs(t, err, insertErr)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateLockState_VersionGuard(t *testing.T) {
	until := time.Date(2026, time.March, 10, 9, 5, 0, 0, time.UTC)
	state := domain.LockState{FailedAttempts: 3, TempLockUntil: &until, TempLockActivated: true}

	cases := []struct {
		name     string
		affected int64
		want     error
	}{
		{name: "current version writes", affected: 1},
		{name: "stale version conflicts", affected: 0, want: ErrVersionConflict},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo, mock := newMockRepository(t)
			id := uuid.New()

			mock.ExpectExec(lockStateSQL).
				WithArgs(id, int64(7), 3, &until, true, false).
				WillReturnResult(pgxmock.NewResult("UPDATE", tc.affected))

			err := repo.UpdateLockState(context.Background(), id, 7, state)

			if tc.want == nil {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, tc.want)
			}
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
