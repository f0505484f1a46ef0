package events

import (
	"time"

	"github.com/spec-kit/occurrence-client/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventSessionStarted          EventType = "session_started"
	EventSessionEnded            EventType = "session_ended"
	EventOccurrenceCreated       EventType = "occurrence_created"
	EventOccurrenceUpdated       EventType = "occurrence_updated"
	EventOccurrenceStatusChanged EventType = "occurrence_status_changed"
	EventOccurrenceDeleted       EventType = "occurrence_deleted"
	EventProfileUpdated          EventType = "profile_updated"
	EventRequestFailed           EventType = "request_failed"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Type domain.SubjectType `json:"type"`
	ID   string             `json:"id,omitempty"`
}

// Event represents something the client observed and the presentation layer
// may want to surface.
type Event struct {
	Type         EventType `json:"type"`
	OccurrenceID string    `json:"occurrence_id,omitempty"`
	Actor        Actor     `json:"actor"`
	Timestamp    time.Time `json:"timestamp"`
	Payload      any       `json:"payload"`
}

// SessionPayload payload.
type SessionPayload struct {
	Route domain.Route `json:"route,omitempty"`
}

// OccurrencePayload payload.
type OccurrencePayload struct {
	Title  string                  `json:"title"`
	Status domain.OccurrenceStatus `json:"status"`
}

// StatusChangedPayload payload.
type StatusChangedPayload struct {
	OldStatus domain.OccurrenceStatus `json:"old_status"`
	NewStatus domain.OccurrenceStatus `json:"new_status"`
	Feedback  string                  `json:"feedback,omitempty"`
}

// Operation names used in RequestFailedPayload.
const (
	OpLogin         = "login"
	OpRegister      = "register"
	OpList          = "list"
	OpGet           = "get"
	OpCreate        = "create"
	OpUpdate        = "update"
	OpStartProcess  = "start_process"
	OpClose         = "close"
	OpDelete        = "delete"
	OpUpdateProfile = "update_profile"
)

// RequestFailedPayload payload.
type RequestFailedPayload struct {
	Operation string `json:"operation"`
	Err       error  `json:"-"`
	Message   string `json:"message"`
}
