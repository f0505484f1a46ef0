package dto

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spec-kit/occurrence-client/internal/domain"
)

// CitizenLoginRequest payload for POST /userLogin.
type CitizenLoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// EmployeeLoginRequest payload for POST /employeeLogin.
type EmployeeLoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// CitizenRegisterRequest payload for POST /users.
type CitizenRegisterRequest struct {
	CPF             string `json:"cpf" validate:"required,len=11"`
	Name            string `json:"name" validate:"required,min=3,max=255"`
	Email           string `json:"email" validate:"required,email"`
	Phone           string `json:"phone" validate:"required,phone"`
	Password        string `json:"password" validate:"required,min=8"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
}

// EmployeeRegisterRequest payload for POST /employee.
type EmployeeRegisterRequest struct {
	RegistrationNumber string `json:"registrationNumber" validate:"required,min=3,max=18,registration"`
	Name               string `json:"name" validate:"required,min=3,max=255"`
	Email              string `json:"email" validate:"required,email"`
	Phone              string `json:"phone" validate:"required,phone"`
	Password           string `json:"password" validate:"required,min=8"`
	ConfirmPassword    string `json:"confirmPassword" validate:"required,eqfield=Password"`
}

// UpdateUserRequest payload for PUT /user/:id.
type UpdateUserRequest struct {
	Name  string `json:"name" validate:"required,min=3"`
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone" validate:"required,phone"`
}

// CitizenAuthResponse is returned by the citizen login and registration endpoints.
type CitizenAuthResponse struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

func (r *CitizenAuthResponse) UnmarshalJSON(data []byte) error {
	token, raw, err := splitAuthEnvelope(data, "user")
	if err != nil {
		return err
	}
	var user domain.User
	if err := json.Unmarshal(raw, &user); err != nil {
		return fmt.Errorf("user: %w", err)
	}
	r.Token, r.User = token, &user
	return nil
}

// Validate checks the fields the session relies on.
func (r *CitizenAuthResponse) Validate() error {
	if r.Token == "" {
		return errors.New("token missing")
	}
	if r.User == nil || r.User.ID == "" {
		return errors.New("user id missing")
	}
	return nil
}

// EmployeeAuthResponse is returned by the employee login and registration
// endpoints. The identity may be nested under "user" or "employee", or
// flattened next to the token.
type EmployeeAuthResponse struct {
	Token    string           `json:"token"`
	Employee *domain.Employee `json:"user"`
}

func (r *EmployeeAuthResponse) UnmarshalJSON(data []byte) error {
	token, raw, err := splitAuthEnvelope(data, "user", "employee")
	if err != nil {
		return err
	}
	var employee domain.Employee
	if err := json.Unmarshal(raw, &employee); err != nil {
		return fmt.Errorf("employee: %w", err)
	}
	r.Token, r.Employee = token, &employee
	return nil
}

// Validate checks the fields the session relies on.
func (r *EmployeeAuthResponse) Validate() error {
	if r.Token == "" {
		return errors.New("token missing")
	}
	if r.Employee == nil || r.Employee.ID == "" {
		return errors.New("employee id missing")
	}
	return nil
}

// splitAuthEnvelope separates the token from the identity document. When none
// of the nested keys is present, the remaining top-level fields are the identity.
func splitAuthEnvelope(data []byte, nested ...string) (string, json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return "", nil, err
	}

	var token string
	if raw, ok := fields["token"]; ok {
		if err := json.Unmarshal(raw, &token); err != nil {
			return "", nil, fmt.Errorf("token: %w", err)
		}
	}
	delete(fields, "token")

	for _, key := range nested {
		raw, ok := fields[key]
		if ok && !bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			return token, raw, nil
		}
	}

	flat, err := json.Marshal(fields)
	if err != nil {
		return "", nil, err
	}
	return token, flat, nil
}
