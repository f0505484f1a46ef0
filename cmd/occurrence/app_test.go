package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/occurrence-client/internal/api/dto"
	"github.com/spec-kit/occurrence-client/internal/apitest"
	"github.com/spec-kit/occurrence-client/internal/config"
	"github.com/spec-kit/occurrence-client/internal/domain"
	"github.com/spec-kit/occurrence-client/internal/persistence"
	"github.com/spec-kit/occurrence-client/internal/service"
	apperrors "github.com/spec-kit/occurrence-client/pkg/util"
)

func testConfig() *config.Config {
	return &config.Config{
		App:    config.AppConfig{Name: "occurrence-client", Env: "test"},
		API:    config.APIConfig{BaseURL: "http://backend.test"},
		Store:  config.StoreConfig{Driver: config.StoreDriverMemory, AdminNamespace: "admin"},
		Logger: config.LoggerConfig{Level: "error"},
	}
}

func newTestApp(t *testing.T, srv *apitest.Server, store persistence.Store, out *bytes.Buffer) *app {
	t.Helper()
	a, err := newApp(context.Background(), appOptions{cfg: testConfig(), doer: srv, store: store, out: out})
	require.NoError(t, err)
	return a
}

func TestSessionsSurviveRestart(t *testing.T) {
	ctx := context.Background()
	srv := apitest.New(config.AuthConfig{}, nil)
	_, err := srv.AddCitizen(domain.User{Name: "Maria Souza", Email: "maria@example.com", CPF: "12345678901"}, "segredo123")
	require.NoError(t, err)
	_, err = srv.AddEmployee(domain.Employee{Name: "Ana Lima", Email: "ana@prefeitura.gov.br"}, "segredo123")
	require.NoError(t, err)
	store := persistence.NewMemoryStore()
	var out bytes.Buffer

	first := newTestApp(t, srv, store, &out)
	_, err = first.auth.LoginCitizen(ctx, dto.CitizenLoginRequest{Email: "maria@example.com", Password: "segredo123"})
	require.NoError(t, err)
	_, err = first.auth.LoginEmployee(ctx, dto.EmployeeLoginRequest{Email: "ana@prefeitura.gov.br", Password: "segredo123"})
	require.NoError(t, err)
	first.Close()

	second := newTestApp(t, srv, store, &out)
	defer second.Close()
	user, err := second.requireCitizen()
	require.NoError(t, err)
	assert.Equal(t, "Maria Souza", user.Name)
	employee, err := second.requireEmployee()
	require.NoError(t, err)
	assert.Equal(t, "Ana Lima", employee.Name)
	assert.True(t, second.admins.IsAdmin())

	created, err := second.occurrences.Create(ctx, service.CreateOccurrenceInput{
		Title:       "Vazamento de água",
		Description: "Há um vazamento na rua principal há dias",
		Location:    &domain.Location{Latitude: -23.5, Longitude: -46.6},
		UserID:      user.ID,
	})
	require.NoError(t, err)

	started, err := second.processing.AdvanceToInProgress(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, started.EmployeeID)
	assert.Equal(t, employee.ID, *started.EmployeeID)
}

func TestGatesWhenLoggedOut(t *testing.T) {
	a := newTestApp(t, apitest.New(config.AuthConfig{}, nil), persistence.NewMemoryStore(), &bytes.Buffer{})
	defer a.Close()

	_, err := a.requireCitizen()
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))
	assert.Contains(t, err.Error(), string(domain.RouteCitizenLogin))

	_, err = a.requireEmployee()
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))
	assert.Contains(t, err.Error(), string(domain.RouteAdminLogin))
}

func TestNotificationsPrintedOnClose(t *testing.T) {
	ctx := context.Background()
	srv := apitest.New(config.AuthConfig{}, nil)
	_, err := srv.AddCitizen(domain.User{Name: "Maria Souza", Email: "maria@example.com"}, "segredo123")
	require.NoError(t, err)
	var out bytes.Buffer

	a := newTestApp(t, srv, persistence.NewMemoryStore(), &out)
	_, err = a.auth.LoginCitizen(ctx, dto.CitizenLoginRequest{Email: "maria@example.com", Password: "wrong-password"})
	require.Error(t, err)
	a.Close()

	assert.Contains(t, out.String(), "[error] Something went wrong: Invalid credentials")
}

func TestFormErrListsFields(t *testing.T) {
	err := formErr(apperrors.NewValidationError("title is required", map[string]any{
		"title":       "title is required",
		"description": "description must be at least 10 characters long",
	}))
	assert.Equal(t, "invalid input:\n  description: description must be at least 10 characters long\n  title: title is required", err.Error())

	plain := apperrors.NewNotFound("occurrence", nil)
	assert.Equal(t, plain, formErr(plain))
}
