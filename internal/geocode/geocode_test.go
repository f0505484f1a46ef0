package geocode

import (
	"context"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/occurrence-client/internal/config"
	"github.com/spec-kit/occurrence-client/internal/domain"
	apperrors "github.com/spec-kit/occurrence-client/pkg/util"
)

type fiberDoer struct {
	app *fiber.App
}

func (d fiberDoer) Do(req *http.Request) (*http.Response, error) {
	return d.app.Test(req, -1)
}

func newNominatim(t *testing.T) (*fiber.App, *[]string) {
	t.Helper()
	var agents []string
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/reverse", func(c *fiber.Ctx) error {
		agents = append(agents, c.Get(fiber.HeaderUserAgent))
		if c.Query("format") != "jsonv2" {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "format"})
		}
		if c.Query("lat") == "0" {
			return c.JSON(fiber.Map{"error": "Unable to geocode"})
		}
		if c.Query("lat") == "1" {
			return c.Status(http.StatusInternalServerError).SendString("")
		}
		return c.JSON(fiber.Map{
			"display_name": "Rua Principal, São Paulo",
			"address": fiber.Map{
				"road":  "Rua Principal",
				"city":  "São Paulo",
				"state": "São Paulo",
			},
		})
	})
	return app, &agents
}

func TestDescribeFormatsAddress(t *testing.T) {
	app, agents := newNominatim(t)
	c := New(config.GeocodeConfig{BaseURL: "http://geo.test/", UserAgent: "occurrence-client-test"}, fiberDoer{app}, nil)

	got := c.Describe(context.Background(), &domain.Location{Latitude: -23.5, Longitude: -46.6})
	assert.Equal(t, "Rua Principal - São Paulo, São Paulo", got)
	assert.Equal(t, []string{"occurrence-client-test"}, *agents)
}

func TestDescribeFallsBack(t *testing.T) {
	app, _ := newNominatim(t)
	c := New(config.GeocodeConfig{BaseURL: "http://geo.test"}, fiberDoer{app}, nil)
	ctx := context.Background()

	assert.Equal(t, "address not found for location (0, 5)", c.Describe(ctx, &domain.Location{Latitude: 0, Longitude: 5}))
	assert.Equal(t, "address not found for location (1, 5)", c.Describe(ctx, &domain.Location{Latitude: 1, Longitude: 5}))
	assert.Equal(t, "location not provided", c.Describe(ctx, nil))
}

func TestReverseErrors(t *testing.T) {
	app, _ := newNominatim(t)
	c := New(config.GeocodeConfig{BaseURL: "http://geo.test"}, fiberDoer{app}, nil)
	ctx := context.Background()

	_, err := c.Reverse(ctx, domain.Location{Latitude: 0, Longitude: 5})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	_, err = c.Reverse(ctx, domain.Location{Latitude: 1, Longitude: 5})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeAPI))
}

func TestLocalityPrefersCity(t *testing.T) {
	assert.Equal(t, "Campinas", Address{City: "Campinas", Town: "Barão Geraldo"}.Locality())
	assert.Equal(t, "Paraty", Address{Town: "Paraty"}.Locality())
	assert.Empty(t, Address{}.Locality())
}
