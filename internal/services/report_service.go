package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/roaddamage/report-gateway/internal/metrics"
	"github.com/roaddamage/report-gateway/internal/models"
)

// MediaUploader stores an image somewhere publicly reachable and returns its URL
type MediaUploader interface {
	Upload(ctx context.Context, payload []byte, filename, contentType, preset string) (string, error)
}

// ReportStore persists reports and reads them back
type ReportStore interface {
	Create(ctx context.Context, report *models.Report) (string, error)
	ListAll(ctx context.Context) (models.ListResult, error)
	Count(ctx context.Context) (int64, error)
}

// EventPublisher announces persisted reports to other services
type EventPublisher interface {
	PublishReportSubmitted(ctx context.Context, event models.ReportSubmittedEvent) error
}

// ImageInput is an uploaded photo attached to a submission
type ImageInput struct {
	Data        []byte
	Filename    string
	ContentType string
}

// SubmitInput holds the raw form values of a submission
type SubmitInput struct {
	Description string
	Severity    string
	Status      string
	Latitude    string
	Longitude   string
	Image       *ImageInput
}

// SubmitResult is returned for a persisted report
type SubmitResult struct {
	ID       string
	ImageURL string
}

// ServiceOptions configures a ReportService
type ServiceOptions struct {
	// Preset is passed to the uploader with every image
	Preset string
	// StrictCoordinates rejects latitude/longitude outside their geographic range
	StrictCoordinates bool
	// Publisher is optional; nil disables submitted events
	Publisher EventPublisher
	// Now overrides the clock, for tests
	Now func() time.Time
}

// ReportService validates submissions, relays images and persists reports
type ReportService struct {
	store             ReportStore
	uploader          MediaUploader
	publisher         EventPublisher
	preset            string
	strictCoordinates bool
	now               func() time.Time

	mu          sync.Mutex
	lastCreated time.Time
}

// NewReportService creates the ingestion service.
// A nil uploader disables image relay: attached images are ignored.
func NewReportService(store ReportStore, uploader MediaUploader, opts ServiceOptions) *ReportService {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &ReportService{
		store:             store,
		uploader:          uploader,
		publisher:         opts.Publisher,
		preset:            opts.Preset,
		strictCoordinates: opts.StrictCoordinates,
		now:               now,
	}
}

// Submit validates in, uploads its image if any and persists the report.
// An image upload failure aborts the submission before anything is stored.
func (s *ReportService) Submit(ctx context.Context, in SubmitInput) (SubmitResult, error) {
	report, err := validateSubmission(in, s.strictCoordinates)
	if err != nil {
		metrics.RecordSubmission("invalid")
		return SubmitResult{}, err
	}

	if in.Image != nil && len(in.Image.Data) > 0 {
		if s.uploader == nil {
			log.Warn().Str("filename", in.Image.Filename).Msg("Image upload disabled, ignoring attached image")
		} else {
			imageURL, err := s.uploader.Upload(ctx, in.Image.Data, in.Image.Filename, in.Image.ContentType, s.preset)
			if err != nil {
				log.Error().Err(err).Msg("Failed to upload report image")
				metrics.RecordSubmission("upload_failed")
				return SubmitResult{}, err
			}
			report.ImageURL = imageURL
		}
	}

	report.CreatedAt = s.createdAt()

	id, err := s.store.Create(ctx, report)
	if err != nil {
		log.Error().Err(err).Msg("Failed to persist report")
		metrics.RecordSubmission("persist_failed")
		return SubmitResult{}, err
	}
	report.ID = id
	metrics.RecordSubmission("created")

	if s.publisher != nil {
		if err := s.publisher.PublishReportSubmitted(ctx, models.NewSubmittedEvent(report, s.now())); err != nil {
			log.Error().Err(err).Str("report_id", id).Msg("Failed to publish report.submitted event")
			// Don't fail the request - report is persisted
		}
	}

	log.Info().
		Str("report_id", id).
		Str("gravite", string(report.Severity)).
		Bool("has_image", report.ImageURL != "").
		Msg("Report created successfully")

	return SubmitResult{ID: id, ImageURL: report.ImageURL}, nil
}

// List returns every stored report, or the fallback dataset when the store is degraded
func (s *ReportService) List(ctx context.Context) (models.ListResult, error) {
	res, err := s.store.ListAll(ctx)
	if err != nil {
		return models.ListResult{}, err
	}
	if res.Degraded {
		metrics.RecordDegradedRead("list")
	}
	return res, nil
}

// createdAt returns the current UTC instant, never earlier than the previous one
func (s *ReportService) createdAt() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	if now.Before(s.lastCreated) {
		now = s.lastCreated
	}
	s.lastCreated = now
	return now.Format(models.CreatedAtLayout)
}

// IsValidation reports whether err was caused by bad input
func IsValidation(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}
