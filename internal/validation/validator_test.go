package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/occurrence-client/internal/api/dto"
	"github.com/spec-kit/occurrence-client/internal/domain"
	apperrors "github.com/spec-kit/occurrence-client/pkg/util"
)

func validRegistration() dto.CitizenRegisterRequest {
	return dto.CitizenRegisterRequest{
		CPF:             "12345678901",
		Name:            "Maria Silva",
		Email:           "maria@example.com",
		Phone:           "(11) 91234-5678",
		Password:        "segredo123",
		ConfirmPassword: "segredo123",
	}
}

func TestCitizenRegistration(t *testing.T) {
	require.NoError(t, Struct(validRegistration()))

	req := validRegistration()
	req.CPF = "123"
	req.ConfirmPassword = "outra-senha"
	req.Phone = "abc"

	err := Struct(req)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	fields := apperrors.FieldErrors(err)
	assert.Equal(t, "cpf must be exactly 11 characters long", fields["cpf"])
	assert.Equal(t, "passwords do not match", fields["confirmPassword"])
	assert.Equal(t, "invalid telephone number", fields["phone"])
	assert.NotContains(t, fields, "email")
}

func TestPhoneFormats(t *testing.T) {
	for _, phone := range []string{"11912345678", "+55 11 91234-5678", "(11) 1234-5678", "1191234 5678"} {
		assert.NoError(t, Var("phone", phone, "phone"), phone)
	}
	for _, phone := range []string{"", "12-34", "phone", "+555 11 91234-5678"} {
		assert.Error(t, Var("phone", phone, "phone"), phone)
	}
}

func TestLoginPasswordLengthsDifferByRole(t *testing.T) {
	citizen := dto.CitizenLoginRequest{Email: "a@b.co", Password: "123456"}
	employee := dto.EmployeeLoginRequest{Email: "a@b.co", Password: "123456"}

	err := Struct(citizen)
	require.Error(t, err)
	assert.Equal(t, "password must be at least 8 characters long", apperrors.FieldErrors(err)["password"])

	assert.NoError(t, Struct(employee))
}

func TestEmployeeRegistrationNumber(t *testing.T) {
	req := dto.EmployeeRegisterRequest{
		RegistrationNumber: "12.345-6",
		Name:               "João Souza",
		Email:              "joao@prefeitura.gov.br",
		Phone:              "11912345678",
		Password:           "segredo123",
		ConfirmPassword:    "segredo123",
	}
	require.NoError(t, Struct(req))

	req.RegistrationNumber = "AB-123"
	err := Struct(req)
	require.Error(t, err)
	assert.Equal(t, "invalid registration number", apperrors.FieldErrors(err)["registrationNumber"])

	req.RegistrationNumber = "1234567890123456789"
	err = Struct(req)
	require.Error(t, err)
	assert.Contains(t, apperrors.FieldErrors(err)["registrationNumber"], "at most 18")
}

func TestOccurrenceLengthsCountCharacters(t *testing.T) {
	req := dto.CreateOccurrenceRequest{
		Title:       "Céu",
		Description: "Águas é ão",
		Status:      domain.OccurrenceStatusOpen,
		Location:    &domain.Location{Latitude: -23.5, Longitude: -46.6},
		UserID:      "u-1",
	}
	require.NoError(t, Struct(req))

	// two characters, four bytes
	req.Title = "éé"
	req.Location = nil
	err := Struct(req)
	require.Error(t, err)
	fields := apperrors.FieldErrors(err)
	assert.Contains(t, fields, "title")
	assert.Equal(t, "location is required", fields["location"])
}

func TestBlankFeedbackRejected(t *testing.T) {
	err := Struct(dto.CloseOccurrenceRequest{Feedback: " \t\n"})
	require.Error(t, err)
	assert.Equal(t, "feedback must not be blank", apperrors.FieldErrors(err)["feedback"])

	assert.NoError(t, Struct(dto.CloseOccurrenceRequest{Feedback: "Reparo concluído"}))
}

func TestNonStructIsInternalError(t *testing.T) {
	err := Struct(42)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInternal))
}
