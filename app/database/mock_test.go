package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return &DB{DB: sqlx.NewDb(db, "sqlmock")}, mock
}

func TestProductStoreCountErrors(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProductStore(db)
	ctx := context.Background()

	testCases := []struct {
		name      string
		setupMock func()
		call      func() (int, error)
		want      int
		wantErr   bool
	}{
		{
			name: "returns product count",
			setupMock: func() {
				mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM products").
					WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))
			},
			call: func() (int, error) { return repo.GetProductCount(ctx) },
			want: 7,
		},
		{
			name: "wraps product count failure",
			setupMock: func() {
				mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM products").
					WillReturnError(sql.ErrConnDone)
			},
			call:    func() (int, error) { return repo.GetProductCount(ctx) },
			wantErr: true,
		},
		{
			name: "wraps observation count failure",
			setupMock: func() {
				mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM price_observations").
					WillReturnError(sql.ErrConnDone)
			},
			call:    func() (int, error) { return repo.GetObservationCount(ctx) },
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tc.setupMock()

			got, err := tc.call()
			if (err != nil) != tc.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tc.wantErr)
			}
			if tc.wantErr && !errors.Is(err, sql.ErrConnDone) {
				t.Errorf("error %v does not wrap sql.ErrConnDone", err)
			}
			if got != tc.want {
				t.Errorf("count = %d, want %d", got, tc.want)
			}
		})
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestAlertStoreDatabaseFailures(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAlertStore(db)
	ctx := context.Background()

	mock.ExpectQuery("SELECT .+ FROM alerts ORDER BY created_at, id").
		WillReturnError(sql.ErrConnDone)

	if _, err := repo.ListAlerts(ctx); !errors.Is(err, sql.ErrConnDone) {
		t.Errorf("ListAlerts() error = %v, want sql.ErrConnDone", err)
	}

	mock.ExpectExec("UPDATE alerts").
		WithArgs(sqlmock.AnyArg(), 90.0, "alert-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.MarkAlertTriggered(ctx, "alert-1", 90, time.Now())
	if err == nil {
		t.Error("MarkAlertTriggered() on a missing alert should fail")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}
