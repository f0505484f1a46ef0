package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/occurrence-client/internal/api/client"
	"github.com/spec-kit/occurrence-client/internal/api/dto"
	"github.com/spec-kit/occurrence-client/internal/domain"
	"github.com/spec-kit/occurrence-client/internal/events"
	"github.com/spec-kit/occurrence-client/internal/repository"
	"github.com/spec-kit/occurrence-client/internal/validation"
	apperrors "github.com/spec-kit/occurrence-client/pkg/util"
)

// ErrRequestInFlight is returned when a mutation targets an occurrence whose
// previous mutation has not completed yet.
var ErrRequestInFlight = errors.New("a request for this occurrence is already in progress")

// OccurrenceAPI is the slice of the REST client the lifecycle controller uses.
type OccurrenceAPI interface {
	ListOccurrences(ctx context.Context) ([]domain.Occurrence, error)
	ListOccurrencesByUser(ctx context.Context, userID string) ([]domain.Occurrence, error)
	GetOccurrence(ctx context.Context, id string) (*domain.Occurrence, error)
	CreateOccurrence(ctx context.Context, req dto.CreateOccurrenceRequest, images []client.ImageFile) (*domain.Occurrence, error)
	UpdateOccurrence(ctx context.Context, id string, req dto.UpdateOccurrenceRequest) (*domain.Occurrence, error)
	StartOccurrence(ctx context.Context, id string) (*domain.Occurrence, error)
	CloseOccurrence(ctx context.Context, id string, req dto.CloseOccurrenceRequest) (*domain.Occurrence, error)
	DeleteOccurrence(ctx context.Context, id string) error
}

// AssigneeSource knows which employee is acting, if any.
type AssigneeSource interface {
	EmployeeID() (string, bool)
}

// OccurrenceService mediates occurrence CRUD and status transitions against
// the backend and keeps a local, non-authoritative copy of what it has seen.
type OccurrenceService struct {
	api        OccurrenceAPI
	repo       repository.OccurrenceRepository
	assignee   AssigneeSource
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time

	mu       sync.Mutex
	inFlight map[string]struct{}
	refresh  func(context.Context) ([]domain.Occurrence, error)
}

// OccurrenceDependencies bundles collaborators for the occurrence service.
type OccurrenceDependencies struct {
	API        OccurrenceAPI
	Repo       repository.OccurrenceRepository
	Assignee   AssigneeSource
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Clock      func() time.Time
}

// CreateOccurrenceInput describes a new report.
type CreateOccurrenceInput struct {
	Title       string
	Description string
	Location    *domain.Location
	// DateTime defaults to now.
	DateTime time.Time
	UserID   string
	Images   []client.ImageFile
}

// UpdateOccurrenceInput describes an edit. Status is never changed by an edit.
type UpdateOccurrenceInput struct {
	Title       string
	Description string
}

// NewOccurrenceService constructs the service.
func NewOccurrenceService(deps OccurrenceDependencies) *OccurrenceService {
	s := &OccurrenceService{
		api:        deps.API,
		repo:       deps.Repo,
		assignee:   deps.Assignee,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		now:        deps.Clock,
		inFlight:   make(map[string]struct{}),
	}
	if s.repo == nil {
		s.repo = repository.NewOccurrenceRepository()
	}
	if s.dispatcher == nil {
		s.dispatcher = events.Nop{}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s
}

// ListAll replaces the local collection with every occurrence.
func (s *OccurrenceService) ListAll(ctx context.Context) ([]domain.Occurrence, error) {
	return s.list(ctx, s.api.ListOccurrences)
}

// ListByUser replaces the local collection with the occurrences of userID.
func (s *OccurrenceService) ListByUser(ctx context.Context, userID string) ([]domain.Occurrence, error) {
	if err := validation.Var("userId", userID, "required,notblank"); err != nil {
		return nil, err
	}
	return s.list(ctx, func(ctx context.Context) ([]domain.Occurrence, error) {
		return s.api.ListOccurrencesByUser(ctx, userID)
	})
}

// Refresh re-runs the last list query, or ListAll when there was none.
func (s *OccurrenceService) Refresh(ctx context.Context) ([]domain.Occurrence, error) {
	s.mu.Lock()
	query := s.refresh
	s.mu.Unlock()
	if query == nil {
		return s.ListAll(ctx)
	}
	return s.list(ctx, query)
}

func (s *OccurrenceService) list(ctx context.Context, query func(context.Context) ([]domain.Occurrence, error)) ([]domain.Occurrence, error) {
	items, err := query(ctx)
	if err != nil {
		s.publishFailure(ctx, events.OpList, "", err)
		return nil, err
	}
	s.repo.ReplaceAll(items)

	s.mu.Lock()
	s.refresh = query
	s.mu.Unlock()
	return s.repo.List(repository.OccurrenceFilter{}), nil
}

// Get fetches one occurrence and refreshes its cached copy.
func (s *OccurrenceService) Get(ctx context.Context, id string) (*domain.Occurrence, error) {
	if err := validation.Var("id", id, "required,notblank"); err != nil {
		return nil, err
	}
	o, err := s.api.GetOccurrence(ctx, id)
	if err != nil {
		s.publishFailure(ctx, events.OpGet, id, err)
		return nil, err
	}
	s.repo.Upsert(*o)
	return o, nil
}

// Create validates and submits a new occurrence with status OPEN, then
// appends it to the local collection.
func (s *OccurrenceService) Create(ctx context.Context, input CreateOccurrenceInput) (*domain.Occurrence, error) {
	req := dto.CreateOccurrenceRequest{
		Title:       input.Title,
		Description: input.Description,
		Status:      domain.OccurrenceStatusOpen,
		DateTime:    input.DateTime,
		Location:    input.Location,
		UserID:      input.UserID,
	}
	if req.DateTime.IsZero() {
		req.DateTime = s.now()
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	created, err := s.api.CreateOccurrence(ctx, req, input.Images)
	if err != nil {
		s.publishFailure(ctx, events.OpCreate, "", err)
		return nil, err
	}
	s.repo.Upsert(*created)

	s.publishEvent(ctx, events.Event{
		Type:         events.EventOccurrenceCreated,
		OccurrenceID: created.ID,
		Actor:        events.Actor{Type: domain.SubjectTypeCitizen, ID: created.UserID},
		Payload:      events.OccurrencePayload{Title: created.Title, Status: created.Status},
	})
	return created, nil
}

// Update edits title and description.
func (s *OccurrenceService) Update(ctx context.Context, id string, input UpdateOccurrenceInput) (*domain.Occurrence, error) {
	req := dto.UpdateOccurrenceRequest{Title: input.Title, Description: input.Description}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	if err := s.begin(id); err != nil {
		return nil, err
	}
	defer s.end(id)

	current, err := s.current(ctx, id, events.OpUpdate)
	if err != nil {
		return nil, err
	}

	echoed, err := s.api.UpdateOccurrence(ctx, id, req)
	if err != nil {
		s.publishFailure(ctx, events.OpUpdate, id, err)
		return nil, err
	}
	updated := current
	if echoed != nil {
		updated = *echoed
	} else {
		updated.Title, updated.Description = req.Title, req.Description
		updated.UpdatedAt = s.now()
	}
	s.repo.Upsert(updated)

	s.publishEvent(ctx, events.Event{
		Type:         events.EventOccurrenceUpdated,
		OccurrenceID: id,
		Actor:        events.Actor{Type: domain.SubjectTypeCitizen, ID: updated.UserID},
		Payload:      events.OccurrencePayload{Title: updated.Title, Status: updated.Status},
	})
	return &updated, nil
}

// AdvanceToInProgress claims an OPEN occurrence. Any other status is rejected
// without contacting the backend.
func (s *OccurrenceService) AdvanceToInProgress(ctx context.Context, id string) (*domain.Occurrence, error) {
	if err := s.begin(id); err != nil {
		return nil, err
	}
	defer s.end(id)

	current, err := s.current(ctx, id, events.OpStartProcess)
	if err != nil {
		return nil, err
	}
	if err := s.checkTransition(ctx, events.OpStartProcess, current, domain.OccurrenceStatusInProgress); err != nil {
		return nil, err
	}

	echoed, err := s.api.StartOccurrence(ctx, id)
	if err != nil {
		s.publishFailure(ctx, events.OpStartProcess, id, err)
		return nil, err
	}
	updated := current
	if echoed != nil {
		updated = *echoed
	} else {
		updated.Status = domain.OccurrenceStatusInProgress
		updated.UpdatedAt = s.now()
	}
	actor := events.Actor{Type: domain.SubjectTypeEmployee}
	if s.assignee != nil {
		if employeeID, ok := s.assignee.EmployeeID(); ok {
			actor.ID = employeeID
			if updated.EmployeeID == nil {
				updated.EmployeeID = &employeeID
			}
		}
	}
	s.repo.Upsert(updated)

	s.publishEvent(ctx, events.Event{
		Type:         events.EventOccurrenceStatusChanged,
		OccurrenceID: id,
		Actor:        actor,
		Payload: events.StatusChangedPayload{
			OldStatus: current.Status,
			NewStatus: updated.Status,
		},
	})
	return &updated, nil
}

// CloseWithFeedback closes an IN_PROGRESS occurrence. Blank feedback is
// rejected before anything else happens.
func (s *OccurrenceService) CloseWithFeedback(ctx context.Context, id, feedback string) (*domain.Occurrence, error) {
	req := dto.CloseOccurrenceRequest{Feedback: feedback}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	if err := s.begin(id); err != nil {
		return nil, err
	}
	defer s.end(id)

	current, err := s.current(ctx, id, events.OpClose)
	if err != nil {
		return nil, err
	}
	if err := s.checkTransition(ctx, events.OpClose, current, domain.OccurrenceStatusClosed); err != nil {
		return nil, err
	}

	echoed, err := s.api.CloseOccurrence(ctx, id, req)
	if err != nil {
		s.publishFailure(ctx, events.OpClose, id, err)
		return nil, err
	}
	updated := current
	if echoed != nil {
		updated = *echoed
	} else {
		updated.Status = domain.OccurrenceStatusClosed
		updated.Feedback = &req.Feedback
		updated.UpdatedAt = s.now()
	}
	s.repo.Upsert(updated)

	actor := events.Actor{Type: domain.SubjectTypeEmployee}
	if s.assignee != nil {
		actor.ID, _ = s.assignee.EmployeeID()
	}
	s.publishEvent(ctx, events.Event{
		Type:         events.EventOccurrenceStatusChanged,
		OccurrenceID: id,
		Actor:        actor,
		Payload: events.StatusChangedPayload{
			OldStatus: current.Status,
			NewStatus: updated.Status,
			Feedback:  feedback,
		},
	})
	return &updated, nil
}

// Remove deletes an occurrence. Whether deletion is offered for a given
// status is the caller's decision (see domain.CanRemove).
func (s *OccurrenceService) Remove(ctx context.Context, id string) error {
	if err := s.begin(id); err != nil {
		return err
	}
	defer s.end(id)

	if err := s.api.DeleteOccurrence(ctx, id); err != nil {
		s.publishFailure(ctx, events.OpDelete, id, err)
		return err
	}
	s.repo.Remove(id)

	s.publishEvent(ctx, events.Event{
		Type:         events.EventOccurrenceDeleted,
		OccurrenceID: id,
	})
	return nil
}

// Occurrences returns a snapshot of the local collection. It reflects the last
// fetch plus this client's own mutations, not other clients' changes.
func (s *OccurrenceService) Occurrences() []domain.Occurrence {
	return s.repo.List(repository.OccurrenceFilter{})
}

// Filter returns the cached occurrences matching filter.
func (s *OccurrenceService) Filter(filter repository.OccurrenceFilter) []domain.Occurrence {
	return s.repo.List(filter)
}

// current returns the cached record, fetching it when it is not cached.
func (s *OccurrenceService) current(ctx context.Context, id, op string) (domain.Occurrence, error) {
	if o, ok := s.repo.Get(id); ok {
		return o, nil
	}
	o, err := s.api.GetOccurrence(ctx, id)
	if err != nil {
		s.publishFailure(ctx, op, id, err)
		return domain.Occurrence{}, err
	}
	s.repo.Upsert(*o)
	return *o, nil
}

func (s *OccurrenceService) checkTransition(ctx context.Context, op string, o domain.Occurrence, to domain.OccurrenceStatus) error {
	if domain.CanTransition(o.Status, to) {
		return nil
	}
	err := apperrors.NewIllegalTransition(string(o.Status), string(to))
	s.publishFailure(ctx, op, o.ID, err)
	return err
}

func (s *OccurrenceService) begin(id string) error {
	if err := validation.Var("id", id, "required,notblank"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[id]; busy {
		return ErrRequestInFlight
	}
	s.inFlight[id] = struct{}{}
	return nil
}

func (s *OccurrenceService) end(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, id)
}

func (s *OccurrenceService) publishFailure(ctx context.Context, op, id string, err error) {
	s.logger.Warn("occurrence request failed",
		zap.String("operation", op),
		zap.String("occurrence_id", id),
		zap.Error(err))
	publishFailure(ctx, s.dispatcher, s.logger, op, id, err)
}

func (s *OccurrenceService) publishEvent(ctx context.Context, event events.Event) {
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("publish event", zap.String("type", string(event.Type)), zap.Error(err))
	}
}
