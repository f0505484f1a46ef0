package main

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/spec-kit/occurrence-client/internal/api/client"
	"github.com/spec-kit/occurrence-client/internal/api/dto"
	"github.com/spec-kit/occurrence-client/internal/domain"
	"github.com/spec-kit/occurrence-client/internal/repository"
	"github.com/spec-kit/occurrence-client/internal/service"
	apperrors "github.com/spec-kit/occurrence-client/pkg/util"
)

type appAction func(ctx context.Context, c *cli.Command, a *app) error

// withApp builds the composition root for one command invocation.
func withApp(action appAction) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		a, err := newApp(ctx, appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()
		return action(ctx, c, a)
	}
}

func jsonFlag() cli.Flag {
	return &cli.BoolFlag{Name: "json", Usage: "output raw JSON"}
}

func requireArg(c *cli.Command, name string) (string, error) {
	v := strings.TrimSpace(c.Args().First())
	if v == "" {
		return "", fmt.Errorf("missing <%s> argument", name)
	}
	return v, nil
}

func loginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "Log in as a citizen",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "email", Required: true},
			&cli.StringFlag{Name: "password", Required: true},
		},
		Action: withApp(func(ctx context.Context, c *cli.Command, a *app) error {
			user, err := a.auth.LoginCitizen(ctx, dto.CitizenLoginRequest{
				Email:    c.String("email"),
				Password: c.String("password"),
			})
			if user == nil {
				return formErr(err)
			}
			printUser(user)
			return err
		}),
	}
}

func registerCommand() *cli.Command {
	return &cli.Command{
		Name:  "register",
		Usage: "Create a citizen account and log in",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "cpf", Required: true},
			&cli.StringFlag{Name: "name", Required: true},
			&cli.StringFlag{Name: "email", Required: true},
			&cli.StringFlag{Name: "phone", Required: true},
			&cli.StringFlag{Name: "password", Required: true},
			&cli.StringFlag{Name: "confirm-password", Required: true},
		},
		Action: withApp(func(ctx context.Context, c *cli.Command, a *app) error {
			user, err := a.auth.RegisterCitizen(ctx, dto.CitizenRegisterRequest{
				CPF:             c.String("cpf"),
				Name:            c.String("name"),
				Email:           c.String("email"),
				Phone:           c.String("phone"),
				Password:        c.String("password"),
				ConfirmPassword: c.String("confirm-password"),
			})
			if user == nil {
				return formErr(err)
			}
			printUser(user)
			return err
		}),
	}
}

func logoutCommand() *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "End the citizen session",
		Action: withApp(func(ctx context.Context, _ *cli.Command, a *app) error {
			return a.citizens.Logout(ctx)
		}),
	}
}

func whoamiCommand() *cli.Command {
	return &cli.Command{
		Name:  "whoami",
		Usage: "Show the restored citizen and employee sessions",
		Flags: []cli.Flag{jsonFlag()},
		Action: withApp(func(_ context.Context, c *cli.Command, a *app) error {
			report := sessionReport{
				Citizen:  describeSession(a.citizens.User(), a.citizens.Token()),
				Employee: describeSession(a.admins.User(), a.admins.Token()),
			}
			report.Employee.IsAdmin = a.admins.IsAdmin()
			if c.Bool("json") {
				return printJSON(report)
			}
			printSessionReport(report)
			return nil
		}),
	}
}

func profileCommand() *cli.Command {
	return &cli.Command{
		Name:  "profile",
		Usage: "Edit the citizen profile",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name"},
			&cli.StringFlag{Name: "email"},
			&cli.StringFlag{Name: "phone"},
		},
		Action: withApp(func(ctx context.Context, c *cli.Command, a *app) error {
			current, err := a.requireCitizen()
			if err != nil {
				return err
			}
			req := dto.UpdateUserRequest{Name: current.Name, Email: current.Email, Phone: current.Phone}
			if c.IsSet("name") {
				req.Name = c.String("name")
			}
			if c.IsSet("email") {
				req.Email = c.String("email")
			}
			if c.IsSet("phone") {
				req.Phone = c.String("phone")
			}
			user, err := a.profile.UpdateCitizen(ctx, req)
			if user == nil {
				return formErr(err)
			}
			printUser(user)
			return err
		}),
	}
}

func occurrencesCommand() *cli.Command {
	return &cli.Command{
		Name:    "occurrences",
		Aliases: []string{"oc"},
		Usage:   "Citizen occurrence reports",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List every occurrence",
				Flags: []cli.Flag{jsonFlag()},
				Action: withApp(func(ctx context.Context, c *cli.Command, a *app) error {
					if _, err := a.requireCitizen(); err != nil {
						return err
					}
					items, err := a.occurrences.ListAll(ctx)
					if err != nil {
						return err
					}
					return outputOccurrences(c, items)
				}),
			},
			{
				Name:  "mine",
				Usage: "List my occurrences",
				Flags: []cli.Flag{jsonFlag()},
				Action: withApp(func(ctx context.Context, c *cli.Command, a *app) error {
					user, err := a.requireCitizen()
					if err != nil {
						return err
					}
					items, err := a.occurrences.ListByUser(ctx, user.ID)
					if err != nil {
						return err
					}
					return outputOccurrences(c, items)
				}),
			},
			{
				Name:      "get",
				Usage:     "Show one occurrence",
				ArgsUsage: "<id>",
				Flags: []cli.Flag{
					jsonFlag(),
					&cli.BoolFlag{Name: "address", Usage: "reverse geocode the location"},
				},
				Action: withApp(func(ctx context.Context, c *cli.Command, a *app) error {
					if _, err := a.requireCitizen(); err != nil {
						return err
					}
					return showOccurrence(ctx, c, a, a.occurrences)
				}),
			},
			{
				Name:  "create",
				Usage: "Report a new occurrence",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "title", Required: true},
					&cli.StringFlag{Name: "description", Required: true},
					&cli.FloatFlag{Name: "lat", Required: true},
					&cli.FloatFlag{Name: "lon", Required: true},
					&cli.StringFlag{Name: "date", Usage: "RFC3339 date-time; defaults to now"},
					&cli.StringSliceFlag{Name: "image", Usage: "image file to attach (repeatable)"},
					jsonFlag(),
				},
				Action: withApp(func(ctx context.Context, c *cli.Command, a *app) error {
					user, err := a.requireCitizen()
					if err != nil {
						return err
					}
					var when time.Time
					if raw := c.String("date"); raw != "" {
						if when, err = time.Parse(time.RFC3339, raw); err != nil {
							return apperrors.NewValidationError("date must be RFC3339", map[string]any{"dateTime": err.Error()})
						}
					}
					images, closeImages, err := openImages(c.StringSlice("image"))
					if err != nil {
						return err
					}
					defer closeImages()

					created, err := a.occurrences.Create(ctx, service.CreateOccurrenceInput{
						Title:       c.String("title"),
						Description: c.String("description"),
						Location:    &domain.Location{Latitude: c.Float("lat"), Longitude: c.Float("lon")},
						DateTime:    when,
						UserID:      user.ID,
						Images:      images,
					})
					if err != nil {
						return formErr(err)
					}
					return outputOccurrence(c, a, created, "")
				}),
			},
			{
				Name:      "edit",
				Usage:     "Edit title and description",
				ArgsUsage: "<id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "title"},
					&cli.StringFlag{Name: "description"},
				},
				Action: withApp(func(ctx context.Context, c *cli.Command, a *app) error {
					if _, err := a.requireCitizen(); err != nil {
						return err
					}
					id, err := requireArg(c, "id")
					if err != nil {
						return err
					}
					current, err := a.occurrences.Get(ctx, id)
					if err != nil {
						return err
					}
					input := service.UpdateOccurrenceInput{Title: current.Title, Description: current.Description}
					if c.IsSet("title") {
						input.Title = c.String("title")
					}
					if c.IsSet("description") {
						input.Description = c.String("description")
					}
					updated, err := a.occurrences.Update(ctx, id, input)
					if err != nil {
						return formErr(err)
					}
					printOccurrence(a.api, updated, "")
					return nil
				}),
			},
			{
				Name:      "delete",
				Usage:     "Delete one of my occurrences",
				ArgsUsage: "<id>",
				Action: withApp(func(ctx context.Context, c *cli.Command, a *app) error {
					if _, err := a.requireCitizen(); err != nil {
						return err
					}
					id, err := requireArg(c, "id")
					if err != nil {
						return err
					}
					current, err := a.occurrences.Get(ctx, id)
					if err != nil {
						return err
					}
					if !domain.CanRemove(current) {
						return apperrors.NewForbidden("closed occurrences cannot be deleted")
					}
					return a.occurrences.Remove(ctx, id)
				}),
			},
		},
	}
}

func adminCommand() *cli.Command {
	return &cli.Command{
		Name:  "admin",
		Usage: "Employee session and occurrence processing",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Log in as an employee",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Required: true},
					&cli.StringFlag{Name: "password", Required: true},
				},
				Action: withApp(func(ctx context.Context, c *cli.Command, a *app) error {
					employee, err := a.auth.LoginEmployee(ctx, dto.EmployeeLoginRequest{
						Email:    c.String("email"),
						Password: c.String("password"),
					})
					if employee == nil {
						return formErr(err)
					}
					printEmployee(employee)
					return err
				}),
			},
			{
				Name:  "register",
				Usage: "Create an employee account and log in",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "registration", Required: true, Usage: "registration number"},
					&cli.StringFlag{Name: "name", Required: true},
					&cli.StringFlag{Name: "email", Required: true},
					&cli.StringFlag{Name: "phone", Required: true},
					&cli.StringFlag{Name: "password", Required: true},
					&cli.StringFlag{Name: "confirm-password", Required: true},
				},
				Action: withApp(func(ctx context.Context, c *cli.Command, a *app) error {
					employee, err := a.auth.RegisterEmployee(ctx, dto.EmployeeRegisterRequest{
						RegistrationNumber: c.String("registration"),
						Name:               c.String("name"),
						Email:              c.String("email"),
						Phone:              c.String("phone"),
						Password:           c.String("password"),
						ConfirmPassword:    c.String("confirm-password"),
					})
					if employee == nil {
						return formErr(err)
					}
					printEmployee(employee)
					return err
				}),
			},
			{
				Name:  "logout",
				Usage: "End the employee session",
				Action: withApp(func(ctx context.Context, _ *cli.Command, a *app) error {
					return a.admins.Logout(ctx)
				}),
			},
			{
				Name:  "list",
				Usage: "List occurrences to process",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{Name: "status", Usage: "OPEN, IN_PROGRESS or CLOSED (repeatable)"},
					jsonFlag(),
				},
				Action: withApp(func(ctx context.Context, c *cli.Command, a *app) error {
					if _, err := a.requireEmployee(); err != nil {
						return err
					}
					if _, err := a.processing.ListAll(ctx); err != nil {
						return err
					}
					filter := repository.OccurrenceFilter{}
					for _, raw := range c.StringSlice("status") {
						status := domain.OccurrenceStatus(strings.ToUpper(raw))
						if !status.Valid() {
							return apperrors.NewValidationError(fmt.Sprintf("unknown status %q", raw), nil)
						}
						filter.Statuses = append(filter.Statuses, status)
					}
					return outputOccurrences(c, a.processing.Filter(filter))
				}),
			},
			{
				Name:      "get",
				Usage:     "Show one occurrence",
				ArgsUsage: "<id>",
				Flags: []cli.Flag{
					jsonFlag(),
					&cli.BoolFlag{Name: "address", Usage: "reverse geocode the location"},
				},
				Action: withApp(func(ctx context.Context, c *cli.Command, a *app) error {
					if _, err := a.requireEmployee(); err != nil {
						return err
					}
					return showOccurrence(ctx, c, a, a.processing)
				}),
			},
			{
				Name:      "start",
				Usage:     "Move an OPEN occurrence to IN_PROGRESS",
				ArgsUsage: "<id>",
				Action: withApp(func(ctx context.Context, c *cli.Command, a *app) error {
					if _, err := a.requireEmployee(); err != nil {
						return err
					}
					id, err := requireArg(c, "id")
					if err != nil {
						return err
					}
					updated, err := a.processing.AdvanceToInProgress(ctx, id)
					if err != nil {
						return err
					}
					printOccurrence(a.api, updated, "")
					return nil
				}),
			},
			{
				Name:      "close",
				Usage:     "Close an IN_PROGRESS occurrence with feedback",
				ArgsUsage: "<id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "feedback", Required: true},
				},
				Action: withApp(func(ctx context.Context, c *cli.Command, a *app) error {
					if _, err := a.requireEmployee(); err != nil {
						return err
					}
					id, err := requireArg(c, "id")
					if err != nil {
						return err
					}
					updated, err := a.processing.CloseWithFeedback(ctx, id, c.String("feedback"))
					if err != nil {
						return formErr(err)
					}
					printOccurrence(a.api, updated, "")
					return nil
				}),
			},
		},
	}
}

func geocodeCommand() *cli.Command {
	return &cli.Command{
		Name:  "geocode",
		Usage: "Describe the street address at a coordinate",
		Flags: []cli.Flag{
			&cli.FloatFlag{Name: "lat", Required: true},
			&cli.FloatFlag{Name: "lon", Required: true},
		},
		Action: withApp(func(ctx context.Context, c *cli.Command, a *app) error {
			fmt.Println(a.geocoder.Describe(ctx, &domain.Location{Latitude: c.Float("lat"), Longitude: c.Float("lon")}))
			return nil
		}),
	}
}

func imageURLCommand() *cli.Command {
	return &cli.Command{
		Name:      "image-url",
		Usage:     "Print the download URL of an occurrence image",
		ArgsUsage: "<path>",
		Action: withApp(func(_ context.Context, c *cli.Command, a *app) error {
			path, err := requireArg(c, "path")
			if err != nil {
				return err
			}
			fmt.Println(a.api.ImageURL(path))
			return nil
		}),
	}
}

func showOccurrence(ctx context.Context, c *cli.Command, a *app, svc *service.OccurrenceService) error {
	id, err := requireArg(c, "id")
	if err != nil {
		return err
	}
	o, err := svc.Get(ctx, id)
	if err != nil {
		return err
	}
	address := ""
	if c.Bool("address") {
		address = a.geocoder.Describe(ctx, o.Location)
	}
	return outputOccurrence(c, a, o, address)
}

func outputOccurrences(c *cli.Command, items []domain.Occurrence) error {
	if c.Bool("json") {
		return printJSON(items)
	}
	printOccurrences(items)
	return nil
}

func outputOccurrence(c *cli.Command, a *app, o *domain.Occurrence, address string) error {
	if c.Bool("json") {
		return printJSON(o)
	}
	printOccurrence(a.api, o, address)
	return nil
}

// openImages opens attachments for upload. The returned func closes them.
func openImages(paths []string) ([]client.ImageFile, func(), error) {
	var files []*os.File
	closeAll := func() {
		for _, f := range files {
			_ = f.Close()
		}
	}
	images := make([]client.ImageFile, 0, len(paths))
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			closeAll()
			return nil, func() {}, fmt.Errorf("open image: %w", err)
		}
		files = append(files, f)
		images = append(images, client.ImageFile{
			Name:        filepath.Base(p),
			ContentType: mime.TypeByExtension(strings.ToLower(filepath.Ext(p))),
			Content:     f,
		})
	}
	return images, closeAll, nil
}

// formErr expands validation failures into one line per field.
func formErr(err error) error {
	fields := apperrors.FieldErrors(err)
	if len(fields) == 0 {
		return err
	}
	lines := make([]string, 0, len(fields))
	for _, field := range sortedKeys(fields) {
		lines = append(lines, fmt.Sprintf("  %s: %s", field, fields[field]))
	}
	return errors.New("invalid input:\n" + strings.Join(lines, "\n"))
}
