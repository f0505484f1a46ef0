package apitest

import (
	"strings"

	"github.com/google/uuid"

	"github.com/spec-kit/occurrence-client/internal/auth"
	"github.com/spec-kit/occurrence-client/internal/domain"
	apperrors "github.com/spec-kit/occurrence-client/pkg/util"
)

// AddCitizen registers a citizen account. An empty ID gets a fresh uuid.
func (s *Server) AddCitizen(user domain.User, password string) (domain.User, error) {
	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return domain.User{}, apperrors.NewInternalError(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.citizenByEmail(user.Email) != nil {
		return domain.User{}, apperrors.NewConflict("Email already registered", nil)
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	s.citizens[user.ID] = &citizenRecord{user: user, passwordHash: hash}
	return user, nil
}

// AddEmployee registers an employee account. An empty ID gets a fresh uuid.
func (s *Server) AddEmployee(employee domain.Employee, password string) (domain.Employee, error) {
	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return domain.Employee{}, apperrors.NewInternalError(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.employeeByEmail(employee.Email) != nil {
		return domain.Employee{}, apperrors.NewConflict("Email already registered", nil)
	}
	if employee.ID == "" {
		employee.ID = uuid.NewString()
	}
	s.employees[employee.ID] = &employeeRecord{employee: employee, passwordHash: hash}
	return employee, nil
}

// AddOccurrence stores o as if a citizen had created it.
func (s *Server) AddOccurrence(o domain.Occurrence) domain.Occurrence {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.Status == "" {
		o.Status = domain.OccurrenceStatusOpen
	}
	if o.Images == nil {
		o.Images = []domain.Image{}
	}
	now := s.now()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	if o.UpdatedAt.IsZero() {
		o.UpdatedAt = now
	}
	if o.DateTime.IsZero() {
		o.DateTime = now
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.occurrences[o.ID]; !exists {
		s.order = append(s.order, o.ID)
	}
	stored := o
	s.occurrences[o.ID] = &stored
	return o
}

// Occurrence returns the server-side copy of an occurrence.
func (s *Server) Occurrence(id string) (domain.Occurrence, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.occurrences[id]
	if !ok {
		return domain.Occurrence{}, false
	}
	return *o, true
}

// TokenFor signs a token the server accepts for identity.
func (s *Server) TokenFor(identity domain.Identity) string {
	token, _, err := s.tokens.GenerateToken(identity, "")
	if err != nil {
		panic(err)
	}
	return token
}

func (s *Server) citizenByEmail(email string) *citizenRecord {
	for _, rec := range s.citizens {
		if strings.EqualFold(rec.user.Email, email) {
			return rec
		}
	}
	return nil
}

func (s *Server) employeeByEmail(email string) *employeeRecord {
	for _, rec := range s.employees {
		if strings.EqualFold(rec.employee.Email, email) {
			return rec
		}
	}
	return nil
}

func (s *Server) snapshot(keep func(*domain.Occurrence) bool) []domain.Occurrence {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Occurrence, 0, len(s.order))
	for _, id := range s.order {
		if o := s.occurrences[id]; o != nil && keep(o) {
			out = append(out, *o)
		}
	}
	return out
}
