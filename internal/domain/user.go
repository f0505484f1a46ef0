package domain

// User is the citizen who reports occurrences.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	CPF   string `json:"cpf,omitempty"`
	Phone string `json:"phone,omitempty"`
}

func (u *User) SubjectID() string { return u.ID }

func (u *User) SubjectType() SubjectType { return SubjectTypeCitizen }

// Employee models an administrator who processes occurrences.
type Employee struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	Email              string `json:"email"`
	RegistrationNumber string `json:"registrationNumber,omitempty"`
	Phone              string `json:"phone,omitempty"`
}

func (e *Employee) SubjectID() string { return e.ID }

func (e *Employee) SubjectType() SubjectType { return SubjectTypeEmployee }
