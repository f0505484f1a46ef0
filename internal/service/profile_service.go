package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/occurrence-client/internal/api/dto"
	"github.com/spec-kit/occurrence-client/internal/domain"
	"github.com/spec-kit/occurrence-client/internal/events"
	"github.com/spec-kit/occurrence-client/internal/validation"
	apperrors "github.com/spec-kit/occurrence-client/pkg/util"
)

// ProfileAPI is the slice of the REST client used for profile edits.
type ProfileAPI interface {
	UpdateUser(ctx context.Context, id string, req dto.UpdateUserRequest) (*domain.User, error)
}

// ProfileService edits the logged in citizen's profile.
type ProfileService struct {
	api        ProfileAPI
	session    CitizenSession
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewProfileService builds the service.
func NewProfileService(api ProfileAPI, session CitizenSession, dispatcher events.Dispatcher, logger *zap.Logger) *ProfileService {
	if dispatcher == nil {
		dispatcher = events.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProfileService{api: api, session: session, dispatcher: dispatcher, logger: logger}
}

// UpdateCitizen validates and submits the profile form, then refreshes the
// identity held by the session.
func (s *ProfileService) UpdateCitizen(ctx context.Context, req dto.UpdateUserRequest) (*domain.User, error) {
	current := s.session.User()
	if current == nil {
		return nil, apperrors.NewUnauthorized("not logged in")
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	updated, err := s.api.UpdateUser(ctx, current.ID, req)
	if err != nil {
		s.logger.Warn("profile update failed", zap.Error(err))
		publishFailure(ctx, s.dispatcher, s.logger, events.OpUpdateProfile, "", err)
		return nil, err
	}
	if updated == nil {
		merged := *current
		merged.Name, merged.Email, merged.Phone = req.Name, req.Email, req.Phone
		updated = &merged
	}

	if err := s.session.SetUser(ctx, updated); err != nil {
		return updated, err
	}

	if err := s.dispatcher.Publish(ctx, events.Event{
		Type:  events.EventProfileUpdated,
		Actor: events.Actor{Type: domain.SubjectTypeCitizen, ID: updated.ID},
	}); err != nil {
		s.logger.Warn("publish event", zap.String("type", string(events.EventProfileUpdated)), zap.Error(err))
	}
	return updated, nil
}
