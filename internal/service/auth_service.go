package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/occurrence-client/internal/api/dto"
	"github.com/spec-kit/occurrence-client/internal/domain"
	"github.com/spec-kit/occurrence-client/internal/events"
	"github.com/spec-kit/occurrence-client/internal/validation"
)

// AuthAPI is the slice of the REST client used by the auth flows.
type AuthAPI interface {
	LoginCitizen(ctx context.Context, req dto.CitizenLoginRequest) (*dto.CitizenAuthResponse, error)
	RegisterCitizen(ctx context.Context, req dto.CitizenRegisterRequest) (*dto.CitizenAuthResponse, error)
	LoginEmployee(ctx context.Context, req dto.EmployeeLoginRequest) (*dto.EmployeeAuthResponse, error)
	RegisterEmployee(ctx context.Context, req dto.EmployeeRegisterRequest) (*dto.EmployeeAuthResponse, error)
}

// CitizenSession is what the auth and profile flows need from the citizen session.
type CitizenSession interface {
	Login(ctx context.Context, user *domain.User, token string) error
	User() *domain.User
	SetUser(ctx context.Context, user *domain.User) error
}

// EmployeeSession is what the auth flows need from the admin session.
type EmployeeSession interface {
	Login(ctx context.Context, employee *domain.Employee, token string) error
}

// AuthService coordinates the login and registration forms of both roles.
type AuthService struct {
	api        AuthAPI
	citizens   CitizenSession
	employees  EmployeeSession
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// AuthDependencies bundles collaborators for the auth service.
type AuthDependencies struct {
	API        AuthAPI
	Citizens   CitizenSession
	Employees  EmployeeSession
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(deps AuthDependencies) *AuthService {
	s := &AuthService{
		api:        deps.API,
		citizens:   deps.Citizens,
		employees:  deps.Employees,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
	}
	if s.dispatcher == nil {
		s.dispatcher = events.Nop{}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// LoginCitizen validates the form, exchanges credentials and starts the
// citizen session. A session persistence error is returned together with the
// user; the session is live in memory regardless.
func (s *AuthService) LoginCitizen(ctx context.Context, req dto.CitizenLoginRequest) (*domain.User, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	res, err := s.api.LoginCitizen(ctx, req)
	if err != nil {
		s.publishFailure(ctx, events.OpLogin, err)
		return nil, err
	}
	return res.User, s.citizens.Login(ctx, res.User, res.Token)
}

// RegisterCitizen validates the form, creates the account and starts the session.
func (s *AuthService) RegisterCitizen(ctx context.Context, req dto.CitizenRegisterRequest) (*domain.User, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	res, err := s.api.RegisterCitizen(ctx, req)
	if err != nil {
		s.publishFailure(ctx, events.OpRegister, err)
		return nil, err
	}
	return res.User, s.citizens.Login(ctx, res.User, res.Token)
}

// LoginEmployee validates the form, exchanges credentials and starts the admin session.
func (s *AuthService) LoginEmployee(ctx context.Context, req dto.EmployeeLoginRequest) (*domain.Employee, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	res, err := s.api.LoginEmployee(ctx, req)
	if err != nil {
		s.publishFailure(ctx, events.OpLogin, err)
		return nil, err
	}
	return res.Employee, s.employees.Login(ctx, res.Employee, res.Token)
}

// RegisterEmployee validates the form, creates the account and starts the admin session.
func (s *AuthService) RegisterEmployee(ctx context.Context, req dto.EmployeeRegisterRequest) (*domain.Employee, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	res, err := s.api.RegisterEmployee(ctx, req)
	if err != nil {
		s.publishFailure(ctx, events.OpRegister, err)
		return nil, err
	}
	return res.Employee, s.employees.Login(ctx, res.Employee, res.Token)
}

func (s *AuthService) publishFailure(ctx context.Context, op string, err error) {
	s.logger.Warn("auth request failed", zap.String("operation", op), zap.Error(err))
	publishFailure(ctx, s.dispatcher, s.logger, op, "", err)
}
