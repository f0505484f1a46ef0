// Package apitest is an in-process fake of the occurrence REST backend. It
// implements just enough server behavior for client-side tests and the demo
// command, and is served through fiber's in-memory test transport.
package apitest

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/occurrence-client/internal/auth"
	"github.com/spec-kit/occurrence-client/internal/config"
	"github.com/spec-kit/occurrence-client/internal/domain"
	apperrors "github.com/spec-kit/occurrence-client/pkg/util"
)

const defaultSecret = "apitest-secret"

// RecordedRequest is a copy of one request the server received.
type RecordedRequest struct {
	Method string
	Path   string
	Header http.Header
	Body   []byte
}

type fault struct {
	method  string
	path    string
	status  int
	message string
	drop    bool
}

type citizenRecord struct {
	user         domain.User
	passwordHash string
}

type employeeRecord struct {
	employee     domain.Employee
	passwordHash string
}

// Server is the fake backend.
type Server struct {
	app        *fiber.App
	tokens     *auth.TokenManager
	bcryptCost int
	logger     *zap.Logger

	mu          sync.Mutex
	citizens    map[string]*citizenRecord
	employees   map[string]*employeeRecord
	occurrences map[string]*domain.Occurrence
	order       []string
	requests    []RecordedRequest
	faults      []fault

	// FlatEmployeeAuth makes employee auth endpoints answer with the identity
	// fields next to the token instead of under "user".
	FlatEmployeeAuth bool

	now func() time.Time
}

// New builds a server. Zero-valued auth settings fall back to test defaults.
func New(cfg config.AuthConfig, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	secret := cfg.JWTSecret
	if secret == "" {
		secret = defaultSecret
	}
	cost := cfg.BcryptCost
	if cost == 0 {
		cost = bcrypt.MinCost
	}
	s := &Server{
		tokens:      auth.NewTokenManager(secret, cfg.AccessTokenTTLMinutes),
		bcryptCost:  cost,
		logger:      logger,
		citizens:    make(map[string]*citizenRecord),
		employees:   make(map[string]*employeeRecord),
		occurrences: make(map[string]*domain.Occurrence),
		now:         func() time.Time { return time.Now().UTC() },
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "occurrence-apitest",
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})
	s.app.Use(s.recoverPanics)
	s.app.Use(s.record)
	s.registerRoutes()
	return s
}

// Do serves req in process. It satisfies client.Doer.
func (s *Server) Do(req *http.Request) (*http.Response, error) {
	if err := req.Context().Err(); err != nil {
		return nil, err
	}
	if s.takeDrop(req.Method, req.URL.Path) {
		return nil, fmt.Errorf("apitest: connection dropped for %s %s", req.Method, req.URL.Path)
	}
	return s.app.Test(req, -1)
}

// App exposes the fiber app, e.g. for Listen in the demo command.
func (s *Server) App() *fiber.App {
	return s.app
}

// FailNext makes the next request matching method and path answer with
// status and message. An empty path matches any path.
func (s *Server) FailNext(method, path string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = append(s.faults, fault{method: method, path: path, status: status, message: message})
}

// DropNext makes the next matching request fail before any response, as a
// broken connection would.
func (s *Server) DropNext(method, path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = append(s.faults, fault{method: method, path: path, drop: true})
}

// Requests returns a copy of every request received so far.
func (s *Server) Requests() []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RecordedRequest(nil), s.requests...)
}

// LastRequest returns the most recent request.
func (s *Server) LastRequest() (RecordedRequest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return RecordedRequest{}, false
	}
	return s.requests[len(s.requests)-1], true
}

// RequestCount counts requests received so far.
func (s *Server) RequestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func (s *Server) takeDrop(method, path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, f := range s.faults {
		if f.drop && f.matches(method, path) {
			s.faults = append(s.faults[:i], s.faults[i+1:]...)
			return true
		}
	}
	return false
}

func (s *Server) takeFault(method, path string) (fault, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, f := range s.faults {
		if !f.drop && f.matches(method, path) {
			s.faults = append(s.faults[:i], s.faults[i+1:]...)
			return f, true
		}
	}
	return fault{}, false
}

func (f fault) matches(method, path string) bool {
	if f.method != "" && !strings.EqualFold(f.method, method) {
		return false
	}
	return f.path == "" || f.path == path
}

func (s *Server) record(c *fiber.Ctx) error {
	header := http.Header{}
	for k, v := range c.GetReqHeaders() {
		header[http.CanonicalHeaderKey(k)] = append([]string(nil), v...)
	}
	rec := RecordedRequest{
		Method: c.Method(),
		Path:   c.Path(),
		Header: header,
		Body:   append([]byte(nil), c.Body()...),
	}

	s.mu.Lock()
	s.requests = append(s.requests, rec)
	s.mu.Unlock()

	if f, ok := s.takeFault(rec.Method, rec.Path); ok {
		if f.message == "" {
			c.Status(f.status)
			return nil
		}
		return apperrors.FromStatus(f.status, f.message)
	}
	return c.Next()
}

func (s *Server) recoverPanics(c *fiber.Ctx) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic recovered", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			err = apperrors.NewInternalError(nil)
		}
	}()
	return c.Next()
}

// handleError renders errors as {"message": ...}, the shape the mobile
// client reads.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	status := http.StatusInternalServerError
	message := "internal error"

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		status, message = fiberErr.Code, fiberErr.Message
	} else {
		domainErr := apperrors.ToDomainError(err)
		if domainErr.HTTPStatus != 0 {
			status = domainErr.HTTPStatus
		}
		message = domainErr.Message
		if domainErr.Code == apperrors.CodeInternal {
			s.logger.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
		}
	}

	body := fiber.Map{}
	if message != "" {
		body["message"] = message
	}
	return c.Status(status).JSON(body)
}
