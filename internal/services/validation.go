package services

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/roaddamage/report-gateway/internal/models"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// reportFields carries the raw text fields of a submission.
// Field names in errors come from the form tag so they match the wire names.
type reportFields struct {
	Description string `form:"description" validate:"required"`
	Severity    string `form:"gravite" validate:"required,severity"`
	Status      string `form:"statut" validate:"required,status"`
}

type coordinates struct {
	Latitude  float64 `form:"latitude" validate:"latitude"`
	Longitude float64 `form:"longitude" validate:"longitude"`
}

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			if name := f.Tag.Get("form"); name != "" {
				return name
			}
			return f.Name
		})

		_ = validate.RegisterValidation("severity", func(fl validator.FieldLevel) bool {
			return isSeverity(fl.Field().String())
		})
		_ = validate.RegisterValidation("status", func(fl validator.FieldLevel) bool {
			return isStatus(fl.Field().String())
		})
	})
	return validate
}

func isSeverity(v string) bool {
	for _, s := range models.Severities {
		if string(s) == v {
			return true
		}
	}
	return false
}

func isStatus(v string) bool {
	for _, s := range models.Statuses {
		if string(s) == v {
			return true
		}
	}
	return false
}

// validateSubmission checks the raw input and builds the report it describes.
// With strictCoordinates, latitude and longitude must also lie in their geographic ranges.
func validateSubmission(in SubmitInput, strictCoordinates bool) (*models.Report, error) {
	fields := reportFields{
		Description: strings.TrimSpace(in.Description),
		Severity:    strings.TrimSpace(in.Severity),
		Status:      strings.TrimSpace(in.Status),
	}

	var problems []FieldError
	problems = append(problems, structErrors(getValidator().Struct(fields))...)

	lat, latErr := parseCoordinate(in.Latitude)
	if latErr != nil {
		problems = append(problems, FieldError{Field: "latitude", Message: "latitude " + latErr.Error()})
	}
	lng, lngErr := parseCoordinate(in.Longitude)
	if lngErr != nil {
		problems = append(problems, FieldError{Field: "longitude", Message: "longitude " + lngErr.Error()})
	}

	if strictCoordinates && latErr == nil && lngErr == nil {
		problems = append(problems, structErrors(getValidator().Struct(coordinates{Latitude: lat, Longitude: lng}))...)
	}

	if len(problems) > 0 {
		return nil, &ValidationError{Fields: problems}
	}

	return &models.Report{
		Description: fields.Description,
		Severity:    models.Severity(fields.Severity),
		Status:      models.Status(fields.Status),
		Latitude:    lat,
		Longitude:   lng,
	}, nil
}

func parseCoordinate(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, errors.New("is required")
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("must be a number, got %q", raw)
	}
	return v, nil
}

func structErrors(err error) []FieldError {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []FieldError{{Field: "unknown", Message: err.Error()}}
	}

	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{Field: fe.Field(), Message: translateError(fe)})
	}
	return out
}

func translateError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "severity":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), joinValues(models.Severities))
	case "status":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), joinValues(models.Statuses))
	case "latitude":
		return fmt.Sprintf("%s must be a valid latitude (-90 to 90)", fe.Field())
	case "longitude":
		return fmt.Sprintf("%s must be a valid longitude (-180 to 180)", fe.Field())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}

func joinValues[T ~string](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}
