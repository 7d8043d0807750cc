package storage

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"

	"github.com/roaddamage/report-gateway/internal/models"
)

func newMockStore(t *testing.T) (*PostgresStorage, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewPostgresStoreFromDB(db, time.Second), mock
}

func TestPostgresCreate(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO reports (id, doc) VALUES ($1, $2)`)).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	id, err := store.Create(context.Background(), &models.Report{
		Description: "Nid-de-poule",
		Severity:    models.SeverityCritical,
		Status:      models.StatusReported,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := uuid.Parse(id); err != nil {
		t.Errorf("id = %q, want uuid", id)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestPostgresCreate_Failure(t *testing.T) {
	store, mock := newMockStore(t)
	dbErr := errors.New("connection reset")

	mock.ExpectExec("INSERT INTO reports").WillReturnError(dbErr)

	_, err := store.Create(context.Background(), &models.Report{Description: "x"})
	var perr *PersistenceError
	if !errors.As(err, &perr) || !errors.Is(err, dbErr) {
		t.Errorf("Create() error = %v, want PersistenceError wrapping %v", err, dbErr)
	}
}

func TestPostgresListAll(t *testing.T) {
	tests := []struct {
		name         string
		setup        func(sqlmock.Sqlmock)
		wantDegraded bool
		wantIDs      []string
	}{
		{
			name: "rows decoded",
			setup: func(m sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"id", "doc"}).
					AddRow("a", []byte(`{"description":"Route fissurée","gravite":"elevee","statut":"nouveau","latitude":1.5,"longitude":2.5,"date_creation":"2024-02-01T08:00:00.000000000Z"}`)).
					AddRow("b", []byte(`{"description":"Trou","gravite":"faible","statut":"termine","latitude":0,"longitude":0,"imageUrl":"https://host/b.jpg","date_creation":"2024-02-02T08:00:00.000000000Z"}`))
				m.ExpectQuery(regexp.QuoteMeta(`SELECT id, doc FROM reports ORDER BY created_at`)).WillReturnRows(rows)
			},
			wantIDs: []string{"a", "b"},
		},
		{
			name: "empty table",
			setup: func(m sqlmock.Sqlmock) {
				m.ExpectQuery("SELECT id, doc FROM reports").WillReturnRows(sqlmock.NewRows([]string{"id", "doc"}))
			},
			wantIDs: []string{},
		},
		{
			name: "query failure",
			setup: func(m sqlmock.Sqlmock) {
				m.ExpectQuery("SELECT id, doc FROM reports").WillReturnError(errors.New("timeout"))
			},
			wantDegraded: true,
			wantIDs:      []string{"1", "2"},
		},
		{
			name: "corrupt document is skipped",
			setup: func(m sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"id", "doc"}).
					AddRow("a", []byte(`{`)).
					AddRow("b", []byte(`{"description":"Trou","gravite":"faible","statut":"termine","latitude":0,"longitude":0,"date_creation":"2024-02-02T08:00:00.000000000Z"}`))
				m.ExpectQuery("SELECT id, doc FROM reports").WillReturnRows(rows)
			},
			wantIDs: []string{"b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mock := newMockStore(t)
			tt.setup(mock)

			res, err := store.ListAll(context.Background())
			if err != nil {
				t.Fatalf("ListAll() error = %v, want nil", err)
			}
			if res.Degraded != tt.wantDegraded {
				t.Errorf("Degraded = %v, want %v", res.Degraded, tt.wantDegraded)
			}
			if len(res.Reports) != len(tt.wantIDs) {
				t.Fatalf("got %d reports, want %d", len(res.Reports), len(tt.wantIDs))
			}
			for i, id := range tt.wantIDs {
				if res.Reports[i].ID != id {
					t.Errorf("Reports[%d].ID = %q, want %q", i, res.Reports[i].ID, id)
				}
			}
		})
	}
}

func TestPostgresListAll_DecodesFields(t *testing.T) {
	store, mock := newMockStore(t)
	rows := sqlmock.NewRows([]string{"id", "doc"}).
		AddRow("a", []byte(`{"description":"Trou","gravite":"critique","statut":"verifie","latitude":-18.9,"longitude":47.5,"imageUrl":"https://host/a.jpg","date_creation":"2024-02-01T08:00:00.000000000Z"}`))
	mock.ExpectQuery("SELECT id, doc FROM reports").WillReturnRows(rows)

	res, _ := store.ListAll(context.Background())
	if len(res.Reports) != 1 {
		t.Fatalf("got %d reports, want 1", len(res.Reports))
	}
	want := models.Report{
		ID:          "a",
		Description: "Trou",
		Severity:    models.SeverityCritical,
		Status:      models.StatusVerified,
		Latitude:    -18.9,
		Longitude:   47.5,
		ImageURL:    "https://host/a.jpg",
		CreatedAt:   "2024-02-01T08:00:00.000000000Z",
	}
	if res.Reports[0] != want {
		t.Errorf("report = %+v, want %+v", res.Reports[0], want)
	}
}

func TestPostgresCount(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id FROM reports`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("a").AddRow("b").AddRow("c").AddRow("d"))

	n, err := store.Count(context.Background())
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 4 {
		t.Errorf("Count() = %d, want 4", n)
	}

	mock.ExpectQuery("SELECT id FROM reports").WillReturnError(errors.New("timeout"))
	if _, err := store.Count(context.Background()); err == nil {
		t.Error("Count() expected error")
	}
}

func TestPostgresNotConnected(t *testing.T) {
	store := NewPostgresStoreFromDB(nil, 0)

	res, err := store.ListAll(context.Background())
	if err != nil {
		t.Fatalf("ListAll() error = %v", err)
	}
	assertFallback(t, res)

	if _, err := store.Create(context.Background(), &models.Report{}); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Create() error = %v, want ErrNotConnected", err)
	}
	if err := store.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
