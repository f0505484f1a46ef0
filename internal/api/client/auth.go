package client

import (
	"context"
	"net/http"

	"github.com/spec-kit/occurrence-client/internal/api/dto"
)

const (
	routeUserLogin        = "/userLogin"
	routeEmployeeLogin    = "/employeeLogin"
	routeRegisterUser     = "/users"
	routeRegisterEmployee = "/employee"
)

// LoginCitizen exchanges citizen credentials for a token.
func (c *Client) LoginCitizen(ctx context.Context, req dto.CitizenLoginRequest) (*dto.CitizenAuthResponse, error) {
	return c.citizenAuth(ctx, routeUserLogin, req)
}

// RegisterCitizen creates a citizen account and signs it in.
func (c *Client) RegisterCitizen(ctx context.Context, req dto.CitizenRegisterRequest) (*dto.CitizenAuthResponse, error) {
	return c.citizenAuth(ctx, routeRegisterUser, req)
}

// LoginEmployee exchanges employee credentials for a token.
func (c *Client) LoginEmployee(ctx context.Context, req dto.EmployeeLoginRequest) (*dto.EmployeeAuthResponse, error) {
	return c.employeeAuth(ctx, routeEmployeeLogin, req)
}

// RegisterEmployee creates an employee account and signs it in.
func (c *Client) RegisterEmployee(ctx context.Context, req dto.EmployeeRegisterRequest) (*dto.EmployeeAuthResponse, error) {
	return c.employeeAuth(ctx, routeRegisterEmployee, req)
}

func (c *Client) citizenAuth(ctx context.Context, route string, in any) (*dto.CitizenAuthResponse, error) {
	payload, err := c.sendJSON(ctx, route, http.MethodPost, route, in)
	if err != nil {
		return nil, err
	}
	var out dto.CitizenAuthResponse
	if err := decode("auth", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) employeeAuth(ctx context.Context, route string, in any) (*dto.EmployeeAuthResponse, error) {
	payload, err := c.sendJSON(ctx, route, http.MethodPost, route, in)
	if err != nil {
		return nil, err
	}
	var out dto.EmployeeAuthResponse
	if err := decode("auth", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
