package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/spec-kit/occurrence-client/internal/api/client"
	"github.com/spec-kit/occurrence-client/internal/config"
	"github.com/spec-kit/occurrence-client/internal/domain"
	"github.com/spec-kit/occurrence-client/internal/events"
	"github.com/spec-kit/occurrence-client/internal/geocode"
	"github.com/spec-kit/occurrence-client/internal/observability"
	"github.com/spec-kit/occurrence-client/internal/persistence"
	"github.com/spec-kit/occurrence-client/internal/service"
	"github.com/spec-kit/occurrence-client/internal/session"
	"github.com/spec-kit/occurrence-client/internal/worker"
	apperrors "github.com/spec-kit/occurrence-client/pkg/util"
)

// app is the composition root shared by every command.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *observability.Metrics

	citizens *session.UserSession
	admins   *session.AdminSession

	api         *client.Client
	auth        *service.AuthService
	profile     *service.ProfileService
	occurrences *service.OccurrenceService
	processing  *service.OccurrenceService
	geocoder    *geocode.Client

	cancel     context.CancelFunc
	workerDone <-chan struct{}
	closeStore func()
}

type appOptions struct {
	cfg   *config.Config
	doer  client.Doer
	store persistence.Store
	out   io.Writer
}

func newApp(ctx context.Context, opts appOptions) (*app, error) {
	cfg := opts.cfg
	if cfg == nil {
		loaded, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	logger, err := observability.NewLogger(cfg.App, cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to init logger: %w", err)
	}

	store, closeStore := opts.store, func() {}
	if store == nil {
		store, closeStore, err = persistence.NewStore(ctx, cfg.Store, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open store: %w", err)
		}
	}
	adminStore := persistence.Namespace(store, cfg.Store.AdminNamespace)

	out := opts.out
	if out == nil {
		out = os.Stderr
	}

	dispatcher := events.NewInMemoryDispatcher()
	nav := session.NavigatorFunc(func(route domain.Route) {
		logger.Debug("navigate", zap.String("route", string(route)))
	})
	citizens := session.NewUserSession(session.Deps{Store: store, Navigator: nav, Events: dispatcher, Logger: logger})
	admins := session.NewAdminSession(session.Deps{Store: adminStore, Navigator: nav, Events: dispatcher, Logger: logger})
	citizens.Restore(ctx)
	admins.Restore(ctx)

	metrics := observability.NewMetrics()
	clientOpts := []client.Option{
		client.WithLogger(logger),
		client.WithMetrics(metrics),
		client.WithTimeout(cfg.API.RequestTimeout()),
	}
	if opts.doer != nil {
		clientOpts = append(clientOpts, client.WithDoer(opts.doer))
	}
	api := client.New(cfg.API.BaseURL, clientOpts...)
	citizenAPI := api.WithTokens(persistence.NewTokenSource(store))
	adminAPI := api.WithTokens(persistence.NewTokenSource(adminStore))

	workerCtx, cancel := context.WithCancel(context.Background())
	notifications := service.NewNotificationService(dispatcher, logger, 0)

	a := &app{
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
		citizens: citizens,
		admins:   admins,
		api:      api,
		auth: service.NewAuthService(service.AuthDependencies{
			API:        api,
			Citizens:   citizens,
			Employees:  admins,
			Dispatcher: dispatcher,
			Logger:     logger,
		}),
		profile: service.NewProfileService(citizenAPI, citizens, dispatcher, logger),
		occurrences: service.NewOccurrenceService(service.OccurrenceDependencies{
			API:        citizenAPI,
			Dispatcher: dispatcher,
			Logger:     logger,
		}),
		processing: service.NewOccurrenceService(service.OccurrenceDependencies{
			API:        adminAPI,
			Assignee:   admins,
			Dispatcher: dispatcher,
			Logger:     logger,
		}),
		geocoder:   geocode.New(cfg.Geocode, nil, logger),
		cancel:     cancel,
		closeStore: closeStore,
	}
	a.workerDone = worker.StartNotificationWorker(workerCtx, notifications, &writerNotifier{w: out}, logger)
	return a, nil
}

// Close flushes pending notifications and releases the store.
func (a *app) Close() {
	a.cancel()
	<-a.workerDone
	a.closeStore()
	a.logger.Debug("client metrics", zap.Any("requests", a.metrics.Snapshot()))
	_ = a.logger.Sync()
}

// requireCitizen applies the citizen route gate.
func (a *app) requireCitizen() (*domain.User, error) {
	if route, redirect := a.citizens.Gate(); redirect {
		return nil, apperrors.NewUnauthorized(fmt.Sprintf("not logged in as a citizen (login screen %s); run `occurrence login`", route))
	}
	return a.citizens.User(), nil
}

// requireEmployee applies the admin route gate.
func (a *app) requireEmployee() (*domain.Employee, error) {
	if route, redirect := a.admins.Gate(); redirect {
		return nil, apperrors.NewUnauthorized(fmt.Sprintf("not logged in as an employee (login screen %s); run `occurrence admin login`", route))
	}
	return a.admins.User(), nil
}

// writerNotifier prints notifications as single lines.
type writerNotifier struct {
	w io.Writer
}

func (n *writerNotifier) Notify(_ context.Context, note service.Notification) error {
	line := fmt.Sprintf("[%s] %s", note.Level, note.Title)
	if note.Message != "" {
		line += ": " + note.Message
	}
	_, err := fmt.Fprintln(n.w, line)
	return err
}
