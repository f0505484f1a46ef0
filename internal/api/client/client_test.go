package client

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/occurrence-client/internal/api/dto"
	"github.com/spec-kit/occurrence-client/internal/apitest"
	"github.com/spec-kit/occurrence-client/internal/config"
	"github.com/spec-kit/occurrence-client/internal/domain"
	"github.com/spec-kit/occurrence-client/internal/observability"
	apperrors "github.com/spec-kit/occurrence-client/pkg/util"
)

const baseURL = "http://backend.test"

type staticTokens struct {
	token string
	err   error
}

func (s *staticTokens) Token(context.Context) (string, error) {
	return s.token, s.err
}

type doerFunc func(*http.Request) (*http.Response, error)

func (f doerFunc) Do(req *http.Request) (*http.Response, error) { return f(req) }

func newTestClient(t *testing.T) (*Client, *apitest.Server, *staticTokens, *observability.Metrics) {
	t.Helper()
	srv := apitest.New(config.AuthConfig{}, nil)
	tokens := &staticTokens{}
	metrics := observability.NewMetrics()
	c := New(baseURL+"/", WithDoer(srv), WithTokenSource(tokens), WithMetrics(metrics))
	return c, srv, tokens, metrics
}

func TestLoginCitizenIsUnauthenticated(t *testing.T) {
	c, srv, _, _ := newTestClient(t)
	user, err := srv.AddCitizen(domain.User{Name: "Maria", Email: "maria@example.com", CPF: "12345678901"}, "segredo123")
	require.NoError(t, err)

	res, err := c.LoginCitizen(context.Background(), dto.CitizenLoginRequest{Email: "maria@example.com", Password: "segredo123"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, user, *res.User)

	last, ok := srv.LastRequest()
	require.True(t, ok)
	assert.Equal(t, "/userLogin", last.Path)
	assert.Empty(t, last.Header.Get("Authorization"))
	assert.Equal(t, "application/json", last.Header.Get("Content-Type"))
	_, err = uuid.Parse(last.Header.Get("X-Request-ID"))
	assert.NoError(t, err)
}

func TestLoginWrongPasswordCarriesServerMessage(t *testing.T) {
	c, srv, _, _ := newTestClient(t)
	_, err := srv.AddCitizen(domain.User{Name: "Maria", Email: "maria@example.com"}, "segredo123")
	require.NoError(t, err)

	_, err = c.LoginCitizen(context.Background(), dto.CitizenLoginRequest{Email: "maria@example.com", Password: "errado123"})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))
	assert.Equal(t, "Invalid credentials", apperrors.UserMessage(err, "generic"))
}

func TestEmployeeAuthAcceptsBothShapes(t *testing.T) {
	for _, flat := range []bool{false, true} {
		c, srv, _, _ := newTestClient(t)
		srv.FlatEmployeeAuth = flat
		employee, err := srv.AddEmployee(domain.Employee{Name: "Ana", Email: "ana@prefeitura.gov.br", RegistrationNumber: "123.45"}, "segredo")
		require.NoError(t, err)

		res, err := c.LoginEmployee(context.Background(), dto.EmployeeLoginRequest{Email: employee.Email, Password: "segredo"})
		require.NoError(t, err, "flat=%v", flat)
		assert.NotEmpty(t, res.Token)
		assert.Equal(t, employee, *res.Employee, "flat=%v", flat)
	}
}

func TestRegisterCitizenConflict(t *testing.T) {
	c, _, _, _ := newTestClient(t)
	req := dto.CitizenRegisterRequest{
		CPF: "12345678901", Name: "Maria", Email: "maria@example.com", Phone: "11912345678",
		Password: "segredo123", ConfirmPassword: "segredo123",
	}

	res, err := c.RegisterCitizen(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "12345678901", res.User.CPF)

	_, err = c.RegisterCitizen(context.Background(), req)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))
}

func TestRequestsCarryBearerToken(t *testing.T) {
	c, srv, tokens, _ := newTestClient(t)
	user, err := srv.AddCitizen(domain.User{Name: "Maria", Email: "maria@example.com"}, "segredo123")
	require.NoError(t, err)
	tokens.token = srv.TokenFor(&user)
	srv.AddOccurrence(domain.Occurrence{Title: "Buraco", Description: "Buraco na calçada", UserID: user.ID})
	srv.AddOccurrence(domain.Occurrence{Title: "Poste", Description: "Poste apagado na praça", UserID: "someone-else"})

	all, err := c.ListOccurrences(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 2)

	mine, err := c.ListOccurrencesByUser(context.Background(), user.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "Buraco", mine[0].Title)
	assert.NotNil(t, mine[0].Images)

	last, _ := srv.LastRequest()
	assert.Equal(t, "Bearer "+tokens.token, last.Header.Get("Authorization"))
	assert.Equal(t, "/occurrence/byUser/"+user.ID, last.Path)
}

func TestMissingTokenIsRejectedByServer(t *testing.T) {
	c, srv, tokens, _ := newTestClient(t)
	tokens.err = errors.New("corrupt store")

	_, err := c.ListOccurrences(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))

	last, _ := srv.LastRequest()
	assert.Empty(t, last.Header.Get("Authorization"))
}

func TestCreateOccurrenceSendsMultipart(t *testing.T) {
	c, srv, tokens, _ := newTestClient(t)
	user, err := srv.AddCitizen(domain.User{Name: "Maria", Email: "maria@example.com"}, "segredo123")
	require.NoError(t, err)
	tokens.token = srv.TokenFor(&user)

	when := time.Date(2024, 5, 10, 12, 30, 0, 0, time.UTC)
	created, err := c.CreateOccurrence(context.Background(), dto.CreateOccurrenceRequest{
		Title:       "Vazamento de água",
		Description: "Há um vazamento na rua principal há dias",
		Status:      domain.OccurrenceStatusOpen,
		DateTime:    when,
		Location:    &domain.Location{Latitude: -23.5, Longitude: -46.6},
		UserID:      user.ID,
	}, []ImageFile{
		{Content: strings.NewReader("jpeg-bytes")},
		{Name: "photo.png", ContentType: "image/png", Content: bytes.NewReader([]byte("png-bytes"))},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, created.ID)
	assert.Equal(t, domain.OccurrenceStatusOpen, created.Status)
	assert.Equal(t, &domain.Location{Latitude: -23.5, Longitude: -46.6}, created.Location)
	assert.True(t, when.Equal(created.DateTime))
	assert.Len(t, created.Images, 2)
	assert.Nil(t, created.Feedback)

	last, _ := srv.LastRequest()
	assert.True(t, strings.HasPrefix(last.Header.Get("Content-Type"), "multipart/form-data; boundary="))
	body := string(last.Body)
	assert.Contains(t, body, `name="location"`)
	assert.Contains(t, body, "-23.5 -46.6")
	assert.Contains(t, body, `filename="image_0.jpg"`)
	assert.Contains(t, body, `filename="photo.png"`)

	stored, ok := srv.Occurrence(created.ID)
	require.True(t, ok)
	assert.Equal(t, user.ID, stored.UserID)
}

func TestStatusEndpoints(t *testing.T) {
	c, srv, tokens, _ := newTestClient(t)
	employee, err := srv.AddEmployee(domain.Employee{Name: "Ana", Email: "ana@prefeitura.gov.br"}, "segredo")
	require.NoError(t, err)
	tokens.token = srv.TokenFor(&employee)
	o := srv.AddOccurrence(domain.Occurrence{Title: "Buraco", Description: "Buraco na calçada", UserID: "u-1"})

	started, err := c.StartOccurrence(context.Background(), o.ID)
	require.NoError(t, err)
	require.NotNil(t, started)
	assert.Equal(t, domain.OccurrenceStatusInProgress, started.Status)
	require.NotNil(t, started.EmployeeID)
	assert.Equal(t, employee.ID, *started.EmployeeID)

	last, _ := srv.LastRequest()
	assert.Equal(t, http.MethodPatch, last.Method)
	assert.Equal(t, "/occurrence/"+o.ID+"/IN_PROGRESS", last.Path)

	_, err = c.StartOccurrence(context.Background(), o.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))

	closed, err := c.CloseOccurrence(context.Background(), o.ID, dto.CloseOccurrenceRequest{Feedback: "Reparo concluído"})
	require.NoError(t, err)
	require.NotNil(t, closed.Feedback)
	assert.Equal(t, "Reparo concluído", *closed.Feedback)

	last, _ = srv.LastRequest()
	assert.JSONEq(t, `{"feedback":"Reparo concluído"}`, string(last.Body))
}

func TestDeleteAndNotFound(t *testing.T) {
	c, srv, tokens, metrics := newTestClient(t)
	user, err := srv.AddCitizen(domain.User{Name: "Maria", Email: "maria@example.com"}, "segredo123")
	require.NoError(t, err)
	tokens.token = srv.TokenFor(&user)
	o := srv.AddOccurrence(domain.Occurrence{Title: "Buraco", Description: "Buraco na calçada", UserID: user.ID})

	require.NoError(t, c.DeleteOccurrence(context.Background(), o.ID))

	_, err = c.GetOccurrence(context.Background(), o.ID)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
	assert.Equal(t, "Occurrence not found", apperrors.UserMessage(err, "generic"))

	snap := metrics.Snapshot()
	assert.Equal(t, int64(1), snap.Requests["/occurrence/:id|DELETE|204"])
	assert.Equal(t, int64(1), snap.Errors["/occurrence/:id|GET|NOT_FOUND"])
}

func TestServerErrorWithoutMessageUsesFallback(t *testing.T) {
	c, srv, tokens, _ := newTestClient(t)
	user, err := srv.AddCitizen(domain.User{Name: "Maria", Email: "maria@example.com"}, "segredo123")
	require.NoError(t, err)
	tokens.token = srv.TokenFor(&user)
	srv.FailNext(http.MethodGet, "/occurrence/all", http.StatusInternalServerError, "")

	_, err = c.ListOccurrences(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeAPI))
	assert.Equal(t, "generic", apperrors.UserMessage(err, "generic"))
}

func TestTransportFailureIsNetworkError(t *testing.T) {
	c, srv, _, metrics := newTestClient(t)
	srv.DropNext("", "")

	_, err := c.LoginCitizen(context.Background(), dto.CitizenLoginRequest{Email: "a@b.co", Password: "12345678"})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNetwork))
	assert.Equal(t, 0, srv.RequestCount())
	assert.Equal(t, int64(1), metrics.Snapshot().Errors["/userLogin|POST|NETWORK_ERROR"])
}

func TestMalformedPayloadIsDecodeError(t *testing.T) {
	respond := func(body string) Doer {
		return doerFunc(func(req *http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode: http.StatusOK,
				Header:     http.Header{"Content-Type": []string{"application/json"}},
				Body:       io.NopCloser(strings.NewReader(body)),
				Request:    req,
			}, nil
		})
	}

	cases := map[string]string{
		"not json":       `<html>`,
		"empty":          ``,
		"missing id":     `{"title":"x","status":"OPEN"}`,
		"unknown status": `{"id":"o-1","status":"REOPENED"}`,
		"bad location":   `{"id":"o-1","status":"OPEN","location":{"x":1}}`,
	}
	for name, body := range cases {
		c := New(baseURL, WithDoer(respond(body)))
		_, err := c.GetOccurrence(context.Background(), "o-1")
		assert.True(t, apperrors.HasCode(err, apperrors.CodeDecode), name)
	}

	c := New(baseURL, WithDoer(respond(`{"token":"","user":{"id":"u-1"}}`)))
	_, err := c.LoginCitizen(context.Background(), dto.CitizenLoginRequest{})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeDecode))
}

func TestOptionalEchoBodies(t *testing.T) {
	for _, body := range []string{``, `"ok"`, `{"message":"updated"}`} {
		c := New(baseURL, WithDoer(doerFunc(func(req *http.Request) (*http.Response, error) {
			return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader(body)), Request: req}, nil
		})))
		o, err := c.UpdateOccurrence(context.Background(), "o-1", dto.UpdateOccurrenceRequest{Title: "abc", Description: "0123456789"})
		require.NoError(t, err, body)
		assert.Nil(t, o, body)

		u, err := c.UpdateUser(context.Background(), "u-1", dto.UpdateUserRequest{})
		require.NoError(t, err, body)
		assert.Nil(t, u, body)
	}
}

func TestTimeoutOption(t *testing.T) {
	blocked := doerFunc(func(req *http.Request) (*http.Response, error) {
		<-req.Context().Done()
		return nil, req.Context().Err()
	})
	c := New(baseURL, WithDoer(blocked), WithTimeout(10*time.Millisecond))

	_, err := c.ListOccurrences(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNetwork))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestImageURL(t *testing.T) {
	c := New("http://10.0.2.2:3000/")
	assert.Equal(t, "http://10.0.2.2:3000/images/abc.jpg", c.ImageURL("abc.jpg"))
	assert.Equal(t, "http://10.0.2.2:3000/images/abc.jpg", c.ImageURL("/abc.jpg"))
	assert.Equal(t, "https://cdn.test/x.jpg", c.ImageURL("https://cdn.test/x.jpg"))
}

func TestWithTokensClonesClient(t *testing.T) {
	base := New(baseURL, WithTokenSource(&staticTokens{token: "citizen"}))
	admin := base.WithTokens(&staticTokens{token: "admin"})

	assert.NotSame(t, base, admin)
	token, _ := base.tokens.Token(context.Background())
	assert.Equal(t, "citizen", token)
	token, _ = admin.tokens.Token(context.Background())
	assert.Equal(t, "admin", token)
}
