package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/spec-kit/occurrence-client/internal/apitest"
	"github.com/spec-kit/occurrence-client/internal/config"
	"github.com/spec-kit/occurrence-client/internal/domain"
	"github.com/spec-kit/occurrence-client/internal/observability"
)

// backendCommand serves the in-process fake backend over TCP so the client
// commands can be tried without the real API.
func backendCommand() *cli.Command {
	return &cli.Command{
		Name:  "backend",
		Usage: "Run a local fake of the occurrence API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Value: ":3000", Usage: "listen address"},
			&cli.BoolFlag{Name: "seed", Usage: "create a demo citizen and employee"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			logger, err := observability.NewLogger(cfg.App, cfg.Logger)
			if err != nil {
				return fmt.Errorf("failed to init logger: %w", err)
			}
			defer logger.Sync() //nolint:errcheck

			srv := apitest.New(cfg.Auth, logger)
			if c.Bool("seed") {
				if err := seed(srv, logger); err != nil {
					return err
				}
			}
			return serve(ctx, srv, c.String("addr"), logger)
		},
	}
}

func seed(srv *apitest.Server, logger *zap.Logger) error {
	citizen, err := srv.AddCitizen(domain.User{Name: "Maria Souza", Email: "maria@example.com", CPF: "12345678901", Phone: "11987654321"}, "segredo123")
	if err != nil {
		return err
	}
	employee, err := srv.AddEmployee(domain.Employee{Name: "Ana Lima", Email: "ana@prefeitura.gov.br", RegistrationNumber: "2024.001"}, "segredo123")
	if err != nil {
		return err
	}
	logger.Info("seeded accounts",
		zap.String("citizen", citizen.Email),
		zap.String("employee", employee.Email),
		zap.String("password", "segredo123"))
	return nil
}

func serve(ctx context.Context, srv *apitest.Server, addr string, logger *zap.Logger) error {
	app := srv.App()
	errCh := make(chan error, 1)
	go func() {
		logger.Info("fake backend listening", zap.String("addr", addr))
		errCh <- app.Listen(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("shutting down", zap.Error(ctx.Err()))
		return app.Shutdown()
	}
}
