package session

import "github.com/spec-kit/occurrence-client/internal/domain"

// UserSession is the citizen session.
type UserSession struct {
	*manager[*domain.User]
}

// NewUserSession builds a citizen session over deps.Store.
func NewUserSession(deps Deps) *UserSession {
	return &UserSession{newManager[*domain.User](deps, domain.SubjectTypeCitizen, domain.RouteCitizenHome, domain.RouteCitizenLogin, false)}
}

// AdminSession is the employee session. It also tracks the isAdmin flag.
type AdminSession struct {
	*manager[*domain.Employee]
}

// NewAdminSession builds an employee session. deps.Store should be scoped
// with persistence.Namespace so it never shares keys with the citizen session.
func NewAdminSession(deps Deps) *AdminSession {
	return &AdminSession{newManager[*domain.Employee](deps, domain.SubjectTypeEmployee, domain.RouteAdminHome, domain.RouteAdminLogin, true)}
}

// IsAdmin reports the admin flag.
func (s *AdminSession) IsAdmin() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isAdmin
}

// EmployeeID returns the logged in employee's id, for stamping claimed
// occurrences. ok is false when logged out.
func (s *AdminSession) EmployeeID() (string, bool) {
	e := s.User()
	if e == nil {
		return "", false
	}
	return e.ID, true
}
