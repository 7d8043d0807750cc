package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/roaddamage/report-gateway/internal/models"
)

// ReportsCollection is the single collection holding report documents
const ReportsCollection = "reports"

// ConnectMongo dials and pings the document database.
// The returned client is the process-wide handle; close it with Disconnect.
func ConnectMongo(ctx context.Context, uri string, timeout time.Duration) (*mongo.Client, error) {
	start := time.Now()
	log.Info().Str("uri", redactURI(uri)).Msg("Connecting to MongoDB...")

	dctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(dctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(dctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	log.Info().Dur("elapsed", time.Since(start).Round(time.Millisecond)).Msg("MongoDB connected")
	return client, nil
}

// MongoStore keeps reports in a MongoDB collection.
// A store built from a nil database runs degraded: reads serve the fallback
// dataset and writes fail with ErrNotConnected.
type MongoStore struct {
	coll    *mongo.Collection
	timeout time.Duration
}

// NewMongoStore creates a store on the reports collection of db, which may be nil
func NewMongoStore(db *mongo.Database, timeout time.Duration) *MongoStore {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	s := &MongoStore{timeout: timeout}
	if db != nil {
		s.coll = db.Collection(ReportsCollection)
	}
	return s
}

// storedReport is a report document as read back, with its backend key
type storedReport struct {
	ID            interface{} `bson:"_id"`
	models.Report `bson:",inline"`
}

// Create inserts every report field except the id and returns the generated key
func (s *MongoStore) Create(ctx context.Context, report *models.Report) (string, error) {
	if s.coll == nil {
		return "", &PersistenceError{Op: "create", Err: ErrNotConnected}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.coll.InsertOne(ctx, report)
	if err != nil {
		return "", &PersistenceError{Op: "create", Err: err}
	}

	id := formatID(res.InsertedID)
	log.Debug().Str("report_id", id).Msg("Report inserted into MongoDB")
	return id, nil
}

// ListAll returns every report in backend order.
// A missing connection or failing query is logged and answered with the fallback dataset.
// Single documents that fail to decode are skipped.
func (s *MongoStore) ListAll(ctx context.Context) (models.ListResult, error) {
	if s.coll == nil {
		log.Warn().Msg("MongoDB not connected, serving fallback reports")
		return degradedList(), nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cur, err := s.coll.Find(ctx, bson.D{})
	if err != nil {
		log.Error().Err(err).Msg("Failed to query reports, serving fallback reports")
		return degradedList(), nil
	}
	defer cur.Close(ctx)

	reports := make([]models.Report, 0)
	for cur.Next(ctx) {
		var doc storedReport
		if err := cur.Decode(&doc); err != nil {
			log.Warn().Err(err).Str("report_id", cur.Current.Lookup("_id").String()).Msg("Skipping undecodable report")
			continue
		}
		doc.Report.ID = formatID(doc.ID)
		reports = append(reports, doc.Report)
	}
	if err := cur.Err(); err != nil {
		log.Error().Err(err).Msg("Report cursor failed, serving fallback reports")
		return degradedList(), nil
	}

	return models.ListResult{Reports: reports}, nil
}

// Count walks the whole collection and returns the number of documents
func (s *MongoStore) Count(ctx context.Context) (int64, error) {
	if s.coll == nil {
		return 0, ErrNotConnected
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cur, err := s.coll.Find(ctx, bson.D{}, options.Find().SetProjection(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return 0, fmt.Errorf("count reports: %w", err)
	}
	defer cur.Close(ctx)

	var n int64
	for cur.Next(ctx) {
		n++
	}
	if err := cur.Err(); err != nil {
		return n, fmt.Errorf("count reports: %w", err)
	}
	return n, nil
}

// HealthCheck pings the database
func (s *MongoStore) HealthCheck(ctx context.Context) error {
	if s.coll == nil {
		return ErrNotConnected
	}
	if err := s.coll.Database().Client().Ping(ctx, nil); err != nil {
		return fmt.Errorf("MongoDB health check failed: %w", err)
	}
	return nil
}

// EnsureIndexes creates a descending index on date_creation
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	if s.coll == nil {
		return errors.New("collection is nil")
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "date_creation", Value: -1}},
	})
	return err
}

func formatID(id interface{}) string {
	switch v := id.(type) {
	case primitive.ObjectID:
		return v.Hex()
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func redactURI(raw string) string {
	if raw == "" || !strings.Contains(raw, "://") {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return u.Redacted()
}
