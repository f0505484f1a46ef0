package apitest

import (
	"context"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/spec-kit/occurrence-client/internal/api/dto"
	"github.com/spec-kit/occurrence-client/internal/auth"
	"github.com/spec-kit/occurrence-client/internal/domain"
	apperrors "github.com/spec-kit/occurrence-client/pkg/util"
)

func (s *Server) registerRoutes() {
	s.app.Get("/health/live", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "alive", "service": "occurrence-apitest"})
	})

	s.app.Post("/userLogin", s.loginCitizen)
	s.app.Post("/users", s.registerCitizen)
	s.app.Post("/employeeLogin", s.loginEmployee)
	s.app.Post("/employee", s.registerEmployee)

	authn := auth.NewAuthMiddleware(s.tokens, s.resolveIdentity)
	protected := s.app.Group("", authn.Handle, auth.RequireAnyRole())

	protected.Get("/occurrence/all", s.listOccurrences)
	protected.Get("/occurrence/byUser/:userId", s.listOccurrencesByUser)
	protected.Get("/occurrence/:id", s.getOccurrence)
	protected.Post("/occurrence", auth.RequireCitizen(), s.createOccurrence)
	protected.Put("/occurrence/:id", auth.RequireCitizen(), s.updateOccurrence)
	protected.Patch("/occurrence/:id/IN_PROGRESS", auth.RequireEmployee(), s.startOccurrence)
	protected.Patch("/occurrence/:id/CLOSED", auth.RequireEmployee(), s.closeOccurrence)
	protected.Delete("/occurrence/:id", auth.RequireCitizen(), s.deleteOccurrence)
	protected.Put("/user/:id", auth.RequireCitizen(), s.updateUser)
}

func (s *Server) resolveIdentity(_ context.Context, subjectType domain.SubjectType, id string) (domain.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch subjectType {
	case domain.SubjectTypeCitizen:
		if rec, ok := s.citizens[id]; ok {
			user := rec.user
			return &user, nil
		}
	case domain.SubjectTypeEmployee:
		if rec, ok := s.employees[id]; ok {
			employee := rec.employee
			return &employee, nil
		}
	}
	return nil, apperrors.NewNotFound("account", nil)
}

func (s *Server) loginCitizen(c *fiber.Ctx) error {
	var req dto.CitizenLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	s.mu.Lock()
	rec := s.citizenByEmail(req.Email)
	s.mu.Unlock()
	if rec == nil || auth.ComparePassword(rec.passwordHash, req.Password) != nil {
		return apperrors.NewUnauthorized("Invalid credentials")
	}
	return s.respondCitizenAuth(c, http.StatusOK, rec.user)
}

func (s *Server) registerCitizen(c *fiber.Ctx) error {
	var req dto.CitizenRegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if req.Email == "" || req.Password == "" || req.Name == "" {
		return apperrors.NewValidationError("name, email, password required", nil)
	}
	user, err := s.AddCitizen(domain.User{Name: req.Name, Email: req.Email, CPF: req.CPF, Phone: req.Phone}, req.Password)
	if err != nil {
		return err
	}
	return s.respondCitizenAuth(c, http.StatusCreated, user)
}

func (s *Server) loginEmployee(c *fiber.Ctx) error {
	var req dto.EmployeeLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	s.mu.Lock()
	rec := s.employeeByEmail(req.Email)
	s.mu.Unlock()
	if rec == nil || auth.ComparePassword(rec.passwordHash, req.Password) != nil {
		return apperrors.NewUnauthorized("Invalid credentials")
	}
	return s.respondEmployeeAuth(c, http.StatusOK, rec.employee)
}

func (s *Server) registerEmployee(c *fiber.Ctx) error {
	var req dto.EmployeeRegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if req.Email == "" || req.Password == "" || req.Name == "" {
		return apperrors.NewValidationError("name, email, password required", nil)
	}
	employee, err := s.AddEmployee(domain.Employee{
		Name:               req.Name,
		Email:              req.Email,
		RegistrationNumber: req.RegistrationNumber,
		Phone:              req.Phone,
	}, req.Password)
	if err != nil {
		return err
	}
	return s.respondEmployeeAuth(c, http.StatusCreated, employee)
}

func (s *Server) respondCitizenAuth(c *fiber.Ctx, status int, user domain.User) error {
	token, _, err := s.tokens.GenerateToken(&user, user.Name)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	return c.Status(status).JSON(fiber.Map{"token": token, "user": user})
}

func (s *Server) respondEmployeeAuth(c *fiber.Ctx, status int, employee domain.Employee) error {
	token, _, err := s.tokens.GenerateToken(&employee, employee.Name)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	if !s.FlatEmployeeAuth {
		return c.Status(status).JSON(fiber.Map{"token": token, "user": employee})
	}
	return c.Status(status).JSON(fiber.Map{
		"token":              token,
		"id":                 employee.ID,
		"name":               employee.Name,
		"email":              employee.Email,
		"registrationNumber": employee.RegistrationNumber,
		"phone":              employee.Phone,
	})
}

func (s *Server) listOccurrences(c *fiber.Ctx) error {
	return c.JSON(s.snapshot(func(*domain.Occurrence) bool { return true }))
}

func (s *Server) listOccurrencesByUser(c *fiber.Ctx) error {
	userID := c.Params("userId")
	return c.JSON(s.snapshot(func(o *domain.Occurrence) bool { return o.UserID == userID }))
}

func (s *Server) getOccurrence(c *fiber.Ctx) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.occurrences[c.Params("id")]
	if !ok {
		return occurrenceNotFound()
	}
	return c.JSON(o)
}

func (s *Server) createOccurrence(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "multipart form expected")
	}
	value := func(key string) string {
		if v := form.Value[key]; len(v) > 0 {
			return v[0]
		}
		return ""
	}

	location, err := domain.ParseLocation(value("location"))
	if err != nil {
		return apperrors.NewValidationError("invalid location", map[string]any{"location": err.Error()})
	}
	status := domain.OccurrenceStatus(value("status"))
	if status == "" {
		status = domain.OccurrenceStatusOpen
	}
	if status != domain.OccurrenceStatusOpen {
		return apperrors.NewValidationError("new occurrences must be OPEN", nil)
	}
	if value("title") == "" || value("description") == "" {
		return apperrors.NewValidationError("title and description required", nil)
	}

	now := s.now()
	dateTime := now
	if raw := value("dateTime"); raw != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return apperrors.NewValidationError("invalid dateTime", nil)
		}
		dateTime = parsed
	}

	principal, _ := auth.PrincipalFromContext(c)
	userID := value("userId")
	if userID == "" {
		userID = principal.Identity.SubjectID()
	}

	images := []domain.Image{}
	for _, fh := range form.File["images"] {
		id := uuid.NewString()
		images = append(images, domain.Image{ID: id, Path: id + strings.ToLower(filepath.Ext(fh.Filename))})
	}

	o := &domain.Occurrence{
		ID:          uuid.NewString(),
		Title:       value("title"),
		Description: value("description"),
		Status:      status,
		DateTime:    dateTime,
		CreatedAt:   now,
		UpdatedAt:   now,
		Location:    &location,
		Images:      images,
		UserID:      userID,
	}

	s.mu.Lock()
	s.occurrences[o.ID] = o
	s.order = append(s.order, o.ID)
	out := *o
	s.mu.Unlock()

	return c.Status(http.StatusCreated).JSON(out)
}

func (s *Server) updateOccurrence(c *fiber.Ctx) error {
	var req dto.UpdateOccurrenceRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.occurrences[c.Params("id")]
	if !ok {
		return occurrenceNotFound()
	}
	if req.Title != "" {
		o.Title = req.Title
	}
	if req.Description != "" {
		o.Description = req.Description
	}
	o.UpdatedAt = s.now()
	return c.JSON(o)
}

func (s *Server) startOccurrence(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)

	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.occurrences[c.Params("id")]
	if !ok {
		return occurrenceNotFound()
	}
	if !domain.CanTransition(o.Status, domain.OccurrenceStatusInProgress) {
		return apperrors.NewIllegalTransition(string(o.Status), string(domain.OccurrenceStatusInProgress))
	}
	employeeID := principal.Identity.SubjectID()
	o.Status = domain.OccurrenceStatusInProgress
	o.EmployeeID = &employeeID
	o.UpdatedAt = s.now()
	return c.JSON(o)
}

func (s *Server) closeOccurrence(c *fiber.Ctx) error {
	var req dto.CloseOccurrenceRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if strings.TrimSpace(req.Feedback) == "" {
		return apperrors.NewValidationError("feedback is required", nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.occurrences[c.Params("id")]
	if !ok {
		return occurrenceNotFound()
	}
	if !domain.CanTransition(o.Status, domain.OccurrenceStatusClosed) {
		return apperrors.NewIllegalTransition(string(o.Status), string(domain.OccurrenceStatusClosed))
	}
	feedback := req.Feedback
	o.Status = domain.OccurrenceStatusClosed
	o.Feedback = &feedback
	o.UpdatedAt = s.now()
	return c.JSON(o)
}

func (s *Server) deleteOccurrence(c *fiber.Ctx) error {
	id := c.Params("id")

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.occurrences[id]; !ok {
		return occurrenceNotFound()
	}
	delete(s.occurrences, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return c.SendStatus(http.StatusNoContent)
}

func (s *Server) updateUser(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	id := c.Params("id")
	if principal.Identity.SubjectID() != id {
		return apperrors.NewForbidden("cannot edit another user")
	}

	var req dto.UpdateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.citizens[id]
	if !ok {
		return apperrors.NewNotFound("user", nil)
	}
	if other := s.citizenByEmail(req.Email); other != nil && other.user.ID != id {
		return apperrors.NewConflict("Email already in use", nil)
	}
	rec.user.Name = req.Name
	rec.user.Email = req.Email
	rec.user.Phone = req.Phone
	return c.JSON(rec.user)
}

func occurrenceNotFound() error {
	return apperrors.NewDomainError(apperrors.CodeNotFound, "Occurrence not found", http.StatusNotFound, nil)
}
