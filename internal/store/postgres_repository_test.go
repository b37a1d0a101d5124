package store

import (
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestMapUserWriteError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{
			name: "duplicate email",
			err:  &pgconn.PgError{Code: uniqueViolation, ConstraintName: "users_email_key"},
			want: ErrEmailTaken,
		},
		{
			name: "second admin",
			err:  &pgconn.PgError{Code: uniqueViolation, ConstraintName: singleAdminIndex},
			want: ErrAdminExists,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := mapUserWriteError(tc.err); !errors.Is(got, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestMapUserWriteError_WrapsOtherErrors(t *testing.T) {
	base := &pgconn.PgError{Code: "23514", ConstraintName: "users_role_check"}

	got := mapUserWriteError(base)

	if errors.Is(got, ErrEmailTaken) || errors.Is(got, ErrAdminExists) {
		t.Fatalf("check violation must not map to a conflict, got %v", got)
	}
	var pgErr *pgconn.PgError
	if !errors.As(got, &pgErr) || pgErr.Code != "23514" {
		t.Fatalf("expected wrapped pg error, got %v", got)
	}
}

func TestPgDateKeepsCalendarDay(t *testing.T) {
	lagos := time.FixedZone("WAT", 60*60)
	cases := map[string]time.Time{
		"utc midnight":   time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC),
		"local midnight": time.Date(2026, time.March, 10, 0, 0, 0, 0, lagos),
		"late evening":   time.Date(2026, time.March, 10, 23, 59, 0, 0, lagos),
	}
	for name, in := range cases {
		if got := pgDate(in); got != "2026-03-10" {
			t.Errorf("%s: expected 2026-03-10, got %s", name, got)
		}
	}
}
