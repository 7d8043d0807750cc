package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sort"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/roaddamage/report-gateway/internal/models"
	"github.com/roaddamage/report-gateway/internal/services"
	"github.com/roaddamage/report-gateway/internal/storage"
)

// MaxUploadSize bounds the whole submission body
const MaxUploadSize = 10 << 20

// ImageResizer builds delivery URLs for transformed copies of hosted images
type ImageResizer interface {
	ResizedURL(publicID string, width, height int) string
}

// HealthChecker is implemented by every backend the gateway depends on
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Handler contains all HTTP handlers
type Handler struct {
	reports *services.ReportService
	stats   *services.StatsAggregator
	resizer ImageResizer
	checks  map[string]HealthChecker
}

// NewHandler creates a new handler instance.
// resizer may be nil when the media backend has no transformation support.
func NewHandler(
	reports *services.ReportService,
	stats *services.StatsAggregator,
	resizer ImageResizer,
	checks map[string]HealthChecker,
) *Handler {
	return &Handler{
		reports: reports,
		stats:   stats,
		resizer: resizer,
		checks:  checks,
	}
}

type listResponse struct {
	Success  bool            `json:"success"`
	Data     []models.Report `json:"data"`
	Degraded bool            `json:"degraded"`
}

// ListReportsHandler returns every report
func (h *Handler) ListReportsHandler(w http.ResponseWriter, r *http.Request) {
	res, err := h.reports.List(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list reports")
		writeError(w, http.StatusInternalServerError, "Erreur lors de la récupération des signalements")
		return
	}

	data := res.Reports
	if data == nil {
		data = []models.Report{}
	}
	writeJSON(w, http.StatusOK, listResponse{Success: true, Data: data, Degraded: res.Degraded})
}

type createResponse struct {
	Success  bool    `json:"success"`
	Message  string  `json:"message"`
	ReportID string  `json:"reportId"`
	ImageURL *string `json:"imageUrl"`
}

// CreateReportHandler accepts a visitor submission, as multipart with an
// optional image or as a plain urlencoded form.
func (h *Handler) CreateReportHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)

	if err := r.ParseMultipartForm(MaxUploadSize); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Fichier trop volumineux")
			return
		}
		log.Error().Err(err).Msg("Failed to parse form")
		writeError(w, http.StatusBadRequest, "Formulaire invalide")
		return
	}

	in := services.SubmitInput{
		Description: r.FormValue("description"),
		Severity:    r.FormValue("gravite"),
		Status:      r.FormValue("statut"),
		Latitude:    r.FormValue("latitude"),
		Longitude:   r.FormValue("longitude"),
	}

	image, err := readImage(r)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read image from form")
		writeError(w, http.StatusBadRequest, "Image illisible")
		return
	}
	in.Image = image

	res, err := h.reports.Submit(r.Context(), in)
	if err != nil {
		var verr *services.ValidationError
		var perr *storage.PersistenceError
		switch {
		case errors.As(err, &verr):
			writeJSON(w, http.StatusBadRequest, errorResponse{
				Success: false,
				Message: "Données du signalement invalides",
				Errors:  verr.Fields,
			})
		case errors.As(err, &perr):
			log.Error().Err(err).Msg("Failed to persist report")
			writeError(w, http.StatusInternalServerError, "Erreur lors de la création du signalement")
		default:
			log.Error().Err(err).Msg("Failed to create report")
			writeError(w, http.StatusInternalServerError, "Erreur lors de la création du signalement: "+err.Error())
		}
		return
	}

	resp := createResponse{
		Success:  true,
		Message:  "Signalement créé avec succès",
		ReportID: res.ID,
	}
	if res.ImageURL != "" {
		resp.ImageURL = &res.ImageURL
	}
	writeJSON(w, http.StatusOK, resp)
}

// readImage returns the "image" file part, or nil when the form carries none
func readImage(r *http.Request) (*services.ImageInput, error) {
	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	return &services.ImageInput{
		Data:        data,
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
	}, nil
}

type statsResponse struct {
	Success bool           `json:"success"`
	Data    models.Summary `json:"data"`
}

// StatsHandler returns aggregate counts
func (h *Handler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statsResponse{Success: true, Data: h.stats.Summary(r.Context())})
}

type resizedResponse struct {
	Success bool   `json:"success"`
	URL     string `json:"url"`
}

// ResizedImageHandler returns the CDN URL of an image scaled to w x h.
// The image is named by the publicId path variable or by its full delivery URL in ?url=.
func (h *Handler) ResizedImageHandler(w http.ResponseWriter, r *http.Request) {
	if h.resizer == nil {
		writeError(w, http.StatusServiceUnavailable, "Redimensionnement d'image non disponible")
		return
	}

	publicID := mux.Vars(r)["publicId"]
	if publicID == "" {
		publicID = services.ExtractPublicID(r.URL.Query().Get("url"))
	}
	if publicID == "" {
		writeError(w, http.StatusBadRequest, "Identifiant d'image manquant")
		return
	}

	width, werr := positiveInt(r.URL.Query().Get("w"))
	height, herr := positiveInt(r.URL.Query().Get("h"))
	if werr != nil || herr != nil {
		writeError(w, http.StatusBadRequest, "Les paramètres w et h doivent être des entiers positifs")
		return
	}

	writeJSON(w, http.StatusOK, resizedResponse{Success: true, URL: h.resizer.ResizedURL(publicID, width, height)})
}

func positiveInt(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, strconv.ErrRange
	}
	return n, nil
}

// HealthCheckHandler returns health status
func (h *Handler) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := "healthy"
	checks := make(map[string]string, len(names))
	for _, name := range names {
		if err := h.checks[name].HealthCheck(ctx); err != nil {
			status = "unhealthy"
			checks[name] = err.Error()
			log.Warn().Err(err).Str("check", name).Msg("Health check failed")
			continue
		}
		checks[name] = "ok"
	}

	statusCode := http.StatusOK
	if status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSON(w, statusCode, map[string]interface{}{
		"status": status,
		"checks": checks,
	})
}
