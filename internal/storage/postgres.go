package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/roaddamage/report-gateway/internal/models"
)

// PostgresStorage keeps each report as a JSONB document keyed by a UUID.
// A nil db puts the store in degraded mode, same as MongoStore.
type PostgresStorage struct {
	db      *sql.DB
	timeout time.Duration
}

func NewPostgresStorage(host, port, user, password, dbName, sslMode string, timeout time.Duration) (*PostgresStorage, error) {
	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, dbName, sslMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	storage := NewPostgresStoreFromDB(db, timeout)

	ctx, cancel := context.WithTimeout(context.Background(), storage.timeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	if err := storage.Init(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize db schema: %w", err)
	}

	return storage, nil
}

// NewPostgresStoreFromDB wraps an already opened handle
func NewPostgresStoreFromDB(db *sql.DB, timeout time.Duration) *PostgresStorage {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &PostgresStorage{db: db, timeout: timeout}
}

// Init creates necessary tables
func (s *PostgresStorage) Init(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS reports (
		id VARCHAR(36) PRIMARY KEY,
		doc JSONB NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_reports_created_at ON reports(created_at);`

	_, err := s.db.ExecContext(ctx, query)
	return err
}

func (s *PostgresStorage) Create(ctx context.Context, report *models.Report) (string, error) {
	if s.db == nil {
		return "", &PersistenceError{Op: "create", Err: ErrNotConnected}
	}

	doc, err := json.Marshal(report)
	if err != nil {
		return "", &PersistenceError{Op: "encode", Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	id := uuid.New().String()
	if _, err := s.db.ExecContext(ctx, `INSERT INTO reports (id, doc) VALUES ($1, $2)`, id, doc); err != nil {
		log.Error().Err(err).Msg("Failed to save report to postgres")
		return "", &PersistenceError{Op: "create", Err: err}
	}

	return id, nil
}

// ListAll returns all reports in insertion order
func (s *PostgresStorage) ListAll(ctx context.Context) (models.ListResult, error) {
	if s.db == nil {
		log.Warn().Msg("Postgres not connected, serving fallback reports")
		return degradedList(), nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `SELECT id, doc FROM reports ORDER BY created_at`)
	if err != nil {
		log.Error().Err(err).Msg("Failed to query reports, serving fallback reports")
		return degradedList(), nil
	}
	defer rows.Close()

	reports := make([]models.Report, 0)
	for rows.Next() {
		var id string
		var doc []byte
		if err := rows.Scan(&id, &doc); err != nil {
			log.Warn().Err(err).Msg("Skipping unreadable report row")
			continue
		}

		var r models.Report
		if err := json.Unmarshal(doc, &r); err != nil {
			log.Warn().Err(err).Str("report_id", id).Msg("Skipping undecodable report")
			continue
		}
		r.ID = id
		reports = append(reports, r)
	}
	if err := rows.Err(); err != nil {
		log.Error().Err(err).Msg("Report rows failed, serving fallback reports")
		return degradedList(), nil
	}

	return models.ListResult{Reports: reports}, nil
}

// Count reads every id and counts the rows
func (s *PostgresStorage) Count(ctx context.Context) (int64, error) {
	if s.db == nil {
		return 0, ErrNotConnected
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `SELECT id FROM reports`)
	if err != nil {
		return 0, fmt.Errorf("count reports: %w", err)
	}
	defer rows.Close()

	var n int64
	for rows.Next() {
		n++
	}
	if err := rows.Err(); err != nil {
		return n, fmt.Errorf("count reports: %w", err)
	}
	return n, nil
}

func (s *PostgresStorage) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return ErrNotConnected
	}
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres health check failed: %w", err)
	}
	return nil
}

func (s *PostgresStorage) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
