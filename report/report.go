package report

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// CreateRequest is the body sent to the backend when submitting a go-live report.
type CreateRequest struct {
	ServerName     string         `json:"server_name" validate:"required"`
	RepositoryURL  string         `json:"repository_url"`
	DeveloperEmail string         `json:"developer_email"`
	ReportData     string         `json:"report_data"`
	ReportJSON     map[string]any `json:"report_json,omitzero"`
}

// Report is a go-live report as stored by the backend.
type Report struct {
	ID             string         `json:"id" validate:"required"`
	ServerName     string         `json:"server_name" validate:"required"`
	RepositoryURL  string         `json:"repository_url"`
	DeveloperEmail string         `json:"developer_email"`
	ReportData     string         `json:"report_data"`
	ReportJSON     map[string]any `json:"report_json,omitempty"`
	Status         Status         `json:"status" validate:"required"`
	SubmittedAt    string         `json:"submitted_at" validate:"required"`
	ReviewedAt     *string        `json:"reviewed_at"`
	ReviewedBy     *string        `json:"reviewed_by"`
	ReviewNotes    *string        `json:"review_notes"`
}

var validate = validator.New()

// ValidationError reports the first field that failed validation.
type ValidationError struct {
	Struct string
	Field  string
	Tag    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: validation failed for field '%s' on tag '%s'", e.Struct, e.Field, e.Tag)
}

func (r CreateRequest) Validate() error {
	return validateStruct("report request", r)
}

func (r Report) Validate() error {
	return validateStruct("report", r)
}

func validateStruct(name string, v any) error {
	if err := validate.Struct(v); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			fieldError := validationErrors[0]
			return &ValidationError{Struct: name, Field: fieldError.Field(), Tag: fieldError.Tag()}
		}
		return err
	}
	return nil
}

// RepoShort returns the owner/repo part of a GitHub URL, or the URL unchanged.
func (r Report) RepoShort() string {
	if !strings.Contains(r.RepositoryURL, "github.com") {
		return r.RepositoryURL
	}
	parts := strings.Split(r.RepositoryURL, "github.com/")
	return parts[len(parts)-1]
}

// SubmittedDate is the date portion of SubmittedAt.
func (r Report) SubmittedDate() string {
	date, _, _ := strings.Cut(r.SubmittedAt, "T")
	return date
}

func (r Report) Reviewed() bool {
	return r.ReviewedAt != nil && *r.ReviewedAt != ""
}

func (r Report) ReviewerOr(placeholder string) string {
	if r.ReviewedBy == nil || *r.ReviewedBy == "" {
		return placeholder
	}
	return *r.ReviewedBy
}
