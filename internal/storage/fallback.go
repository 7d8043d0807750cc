package storage

import "github.com/roaddamage/report-gateway/internal/models"

// FallbackReports returns the fixed dataset served when the store cannot be read.
// A fresh slice is returned on every call so callers may modify it.
func FallbackReports() []models.Report {
	return []models.Report{
		{
			ID:          "1",
			Latitude:    -18.8792,
			Longitude:   47.5079,
			Severity:    models.SeverityCritical,
			Description: "Grand nid-de-poule avenue de l'Indépendance",
			Status:      models.StatusReported,
			CreatedAt:   "2024-01-15T10:30:00Z",
		},
		{
			ID:          "2",
			Latitude:    -18.9123,
			Longitude:   47.5234,
			Severity:    models.SeverityMedium,
			Description: "Route dégradée près du marché",
			Status:      models.StatusVerified,
			CreatedAt:   "2024-01-14T14:20:00Z",
		},
	}
}

func degradedList() models.ListResult {
	return models.ListResult{Reports: FallbackReports(), Degraded: true}
}
