package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/occurrence-client/internal/domain"
	apperrors "github.com/spec-kit/occurrence-client/pkg/util"
)

// RequireCitizen ensures a citizen is authenticated.
func RequireCitizen() fiber.Handler {
	return requireSubject(domain.SubjectTypeCitizen, "citizen required")
}

// RequireEmployee ensures an employee is authenticated.
func RequireEmployee() fiber.Handler {
	return requireSubject(domain.SubjectTypeEmployee, "employee required")
}

func requireSubject(subject domain.SubjectType, message string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok || principal.SubjectType != subject {
			return apperrors.NewForbidden(message)
		}
		return c.Next()
	}
}

// RequireAnyRole ensures caller is authenticated (citizen or employee).
func RequireAnyRole() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := PrincipalFromContext(c); !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		return c.Next()
	}
}
