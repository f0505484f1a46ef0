package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"time"

	"github.com/spec-kit/occurrence-client/internal/api/dto"
	"github.com/spec-kit/occurrence-client/internal/domain"
	apperrors "github.com/spec-kit/occurrence-client/pkg/util"
)

const (
	routeOccurrenceAll    = "/occurrence/all"
	routeOccurrenceByUser = "/occurrence/byUser/:userId"
	routeOccurrence       = "/occurrence/:id"
	routeOccurrenceCreate = "/occurrence"
	routeOccurrenceStart  = "/occurrence/:id/IN_PROGRESS"
	routeOccurrenceClose  = "/occurrence/:id/CLOSED"
)

// ImageFile is one picture attached to a new occurrence.
type ImageFile struct {
	Name        string
	ContentType string
	Content     io.Reader
}

// ListOccurrences fetches every occurrence.
func (c *Client) ListOccurrences(ctx context.Context) ([]domain.Occurrence, error) {
	return c.list(ctx, routeOccurrenceAll, routeOccurrenceAll)
}

// ListOccurrencesByUser fetches the occurrences reported by userID.
func (c *Client) ListOccurrencesByUser(ctx context.Context, userID string) ([]domain.Occurrence, error) {
	return c.list(ctx, routeOccurrenceByUser, "/occurrence/byUser/"+url.PathEscape(userID))
}

func (c *Client) list(ctx context.Context, route, path string) ([]domain.Occurrence, error) {
	payload, err := c.sendJSON(ctx, route, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	var out dto.OccurrenceListResponse
	if err := decode("occurrence list", payload, &out); err != nil {
		return nil, err
	}
	return out.Occurrences(), nil
}

// GetOccurrence fetches one occurrence.
func (c *Client) GetOccurrence(ctx context.Context, id string) (*domain.Occurrence, error) {
	payload, err := c.sendJSON(ctx, routeOccurrence, http.MethodGet, occurrencePath(id), nil)
	if err != nil {
		return nil, err
	}
	var out dto.OccurrenceResponse
	if err := decode("occurrence", payload, &out); err != nil {
		return nil, err
	}
	return &out.Occurrence, nil
}

// CreateOccurrence submits a new occurrence and its images in one multipart request.
func (c *Client) CreateOccurrence(ctx context.Context, req dto.CreateOccurrenceRequest, images []ImageFile) (*domain.Occurrence, error) {
	body, contentType, err := encodeCreateForm(req, images)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	payload, err := c.send(ctx, routeOccurrenceCreate, http.MethodPost, routeOccurrenceCreate, body, contentType)
	if err != nil {
		return nil, err
	}
	var out dto.OccurrenceResponse
	if err := decode("occurrence", payload, &out); err != nil {
		return nil, err
	}
	return &out.Occurrence, nil
}

// UpdateOccurrence edits title and description. The returned record is nil
// when the backend does not echo it.
func (c *Client) UpdateOccurrence(ctx context.Context, id string, req dto.UpdateOccurrenceRequest) (*domain.Occurrence, error) {
	payload, err := c.sendJSON(ctx, routeOccurrence, http.MethodPut, occurrencePath(id), req)
	if err != nil {
		return nil, err
	}
	return optionalOccurrence(payload)
}

// StartOccurrence claims an OPEN occurrence for processing.
func (c *Client) StartOccurrence(ctx context.Context, id string) (*domain.Occurrence, error) {
	path := occurrencePath(id) + "/" + string(domain.OccurrenceStatusInProgress)
	payload, err := c.sendJSON(ctx, routeOccurrenceStart, http.MethodPatch, path, nil)
	if err != nil {
		return nil, err
	}
	return optionalOccurrence(payload)
}

// CloseOccurrence closes an IN_PROGRESS occurrence with feedback for the citizen.
func (c *Client) CloseOccurrence(ctx context.Context, id string, req dto.CloseOccurrenceRequest) (*domain.Occurrence, error) {
	path := occurrencePath(id) + "/" + string(domain.OccurrenceStatusClosed)
	payload, err := c.sendJSON(ctx, routeOccurrenceClose, http.MethodPatch, path, req)
	if err != nil {
		return nil, err
	}
	return optionalOccurrence(payload)
}

// DeleteOccurrence removes an occurrence.
func (c *Client) DeleteOccurrence(ctx context.Context, id string) error {
	_, err := c.sendJSON(ctx, routeOccurrence, http.MethodDelete, occurrencePath(id), nil)
	return err
}

func occurrencePath(id string) string {
	return "/occurrence/" + url.PathEscape(id)
}

func optionalOccurrence(payload []byte) (*domain.Occurrence, error) {
	out, ok, err := decodeOccurrenceOptional("occurrence", payload)
	if err != nil || !ok {
		return nil, err
	}
	return &out.Occurrence, nil
}

func encodeCreateForm(req dto.CreateOccurrenceRequest, images []ImageFile) (io.Reader, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	location := ""
	if req.Location != nil {
		location = req.Location.String()
	}
	fields := []struct{ name, value string }{
		{"title", req.Title},
		{"description", req.Description},
		{"status", string(req.Status)},
		{"dateTime", req.DateTime.UTC().Format(time.RFC3339Nano)},
		{"location", location},
		{"userId", req.UserID},
	}
	for _, f := range fields {
		if err := w.WriteField(f.name, f.value); err != nil {
			return nil, "", err
		}
	}

	for i, img := range images {
		name := img.Name
		if name == "" {
			name = fmt.Sprintf("image_%d.jpg", i)
		}
		contentType := img.ContentType
		if contentType == "" {
			contentType = "image/jpeg"
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="images"; filename=%q`, name))
		h.Set("Content-Type", contentType)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if img.Content != nil {
			if _, err := io.Copy(part, img.Content); err != nil {
				return nil, "", fmt.Errorf("image %s: %w", name, err)
			}
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf, w.FormDataContentType(), nil
}
