package dto

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spec-kit/occurrence-client/internal/domain"
)

// CreateOccurrenceRequest carries the form fields of POST /occurrence. It is
// sent as multipart/form-data, not JSON; the json tags name the parts.
type CreateOccurrenceRequest struct {
	Title       string                  `json:"title" validate:"required,notblank,min=3"`
	Description string                  `json:"description" validate:"required,notblank,min=10"`
	Status      domain.OccurrenceStatus `json:"status" validate:"required"`
	DateTime    time.Time               `json:"dateTime"`
	Location    *domain.Location        `json:"location" validate:"required"`
	UserID      string                  `json:"userId" validate:"required"`
}

// UpdateOccurrenceRequest payload for PUT /occurrence/:id.
type UpdateOccurrenceRequest struct {
	Title       string `json:"title" validate:"required,notblank,min=3"`
	Description string `json:"description" validate:"required,notblank,min=10"`
}

// CloseOccurrenceRequest payload for PATCH /occurrence/:id/CLOSED.
type CloseOccurrenceRequest struct {
	Feedback string `json:"feedback" validate:"required,notblank"`
}

// OccurrenceResponse is the occurrence record as the backend returns it.
type OccurrenceResponse struct {
	domain.Occurrence
}

type occurrenceWire struct {
	domain.Occurrence
	ImageOccurrence []domain.Image `json:"imageOccurrence"`
	CreatedAtAlt    *time.Time     `json:"createdAt"`
	UpdatedAtAlt    *time.Time     `json:"updatedAt"`
}

// UnmarshalJSON accepts images under "images" or "imageOccurrence" and
// timestamps in snake or camel case.
func (r *OccurrenceResponse) UnmarshalJSON(data []byte) error {
	var w occurrenceWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	o := w.Occurrence
	if len(o.Images) == 0 && len(w.ImageOccurrence) > 0 {
		o.Images = w.ImageOccurrence
	}
	if o.Images == nil {
		o.Images = []domain.Image{}
	}
	if o.CreatedAt.IsZero() && w.CreatedAtAlt != nil {
		o.CreatedAt = *w.CreatedAtAlt
	}
	if o.UpdatedAt.IsZero() && w.UpdatedAtAlt != nil {
		o.UpdatedAt = *w.UpdatedAtAlt
	}
	r.Occurrence = o
	return nil
}

// Validate rejects records the lifecycle controller cannot work with.
func (r *OccurrenceResponse) Validate() error {
	if r.ID == "" {
		return errors.New("occurrence id missing")
	}
	if !r.Status.Valid() {
		return fmt.Errorf("occurrence %s: unknown status %q", r.ID, r.Status)
	}
	return nil
}

// OccurrenceListResponse is the body of the list endpoints.
type OccurrenceListResponse []OccurrenceResponse

// Validate validates every element.
func (l OccurrenceListResponse) Validate() error {
	for i := range l {
		if err := l[i].Validate(); err != nil {
			return fmt.Errorf("item %d: %w", i, err)
		}
	}
	return nil
}

// Occurrences unwraps the list into domain values.
func (l OccurrenceListResponse) Occurrences() []domain.Occurrence {
	out := make([]domain.Occurrence, 0, len(l))
	for _, item := range l {
		out = append(out, item.Occurrence)
	}
	return out
}

// ErrorResponse covers the error bodies the backend sends: a flat
// {"message": ...} or a nested {"error": {"code", "message"}}.
type ErrorResponse struct {
	Message string `json:"message"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Text returns the most specific message in the body.
func (e ErrorResponse) Text() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Error != nil {
		return e.Error.Message
	}
	return ""
}
