package models

import "time"

// Severity classifies how badly a road segment is damaged
type Severity string

const (
	SeverityLow      Severity = "faible"
	SeverityMedium   Severity = "moyenne"
	SeverityHigh     Severity = "elevee"
	SeverityCritical Severity = "critique"
)

// Status is the workflow state of a report
type Status string

const (
	StatusNew        Status = "nouveau"
	StatusReported   Status = "signale"
	StatusVerified   Status = "verifie"
	StatusInProgress Status = "en_cours"
	StatusResolved   Status = "termine"
)

// Severities lists the accepted severity values
var Severities = []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}

// Statuses lists the accepted status values
var Statuses = []Status{StatusNew, StatusReported, StatusVerified, StatusInProgress, StatusResolved}

// CreatedAtLayout is RFC3339 with fixed-width nanoseconds so that timestamps
// sort lexically in the same order as chronologically.
const CreatedAtLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Report represents a citizen-submitted road damage report.
// Field names on the wire and in the document store match the visitor clients.
type Report struct {
	ID          string   `json:"id,omitempty" bson:"-"`
	Description string   `json:"description" bson:"description"`
	Severity    Severity `json:"gravite" bson:"gravite"`
	Status      Status   `json:"statut" bson:"statut"`
	Latitude    float64  `json:"latitude" bson:"latitude"`
	Longitude   float64  `json:"longitude" bson:"longitude"`
	ImageURL    string   `json:"imageUrl,omitempty" bson:"imageUrl,omitempty"`
	CreatedAt   string   `json:"date_creation" bson:"date_creation"`
}

// ListResult is the outcome of reading every report.
// Degraded is set when the backend could not be queried and Reports holds
// the static fallback dataset instead of real data.
type ListResult struct {
	Reports  []Report
	Degraded bool
}

// Summary holds aggregate statistics over the report collection
type Summary struct {
	Total    int64 `json:"total"`
	Degraded bool  `json:"degraded,omitempty"`
}

// ReportSubmittedEvent represents the event published to RabbitMQ
type ReportSubmittedEvent struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	Severity    Severity  `json:"gravite"`
	Status      Status    `json:"statut"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	CreatedAt   string    `json:"date_creation"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewSubmittedEvent builds the event for a persisted report
func NewSubmittedEvent(r *Report, now time.Time) ReportSubmittedEvent {
	return ReportSubmittedEvent{
		ID:          r.ID,
		Description: r.Description,
		Severity:    r.Severity,
		Status:      r.Status,
		Latitude:    r.Latitude,
		Longitude:   r.Longitude,
		ImageURL:    r.ImageURL,
		CreatedAt:   r.CreatedAt,
		Timestamp:   now,
	}
}
