// heartrisk is the terminal front end for the heart disease risk predictor.
//
// Usage:
//
//	heartrisk interactive
//	heartrisk predict --set age=63 --set slope=2 [--json]
//	heartrisk schema
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/urfave/cli/v2"

	"heart-risk-dashboard/internal/common/config"
	apperrors "heart-risk-dashboard/internal/common/errors"
	"heart-risk-dashboard/internal/common/logger"
	"heart-risk-dashboard/internal/form"
	"heart-risk-dashboard/internal/predict"
	"heart-risk-dashboard/internal/schema"
	"heart-risk-dashboard/internal/terminal"
)

var version = "dev"

func main() {
	app := &cli.App{
		Name:    "heartrisk",
		Usage:   "Heart disease risk prediction from the terminal",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a config file (default: ./configs/config.yaml)",
			},
			&cli.StringFlag{
				Name:    "backend",
				Usage:   "Prediction backend base URL",
				EnvVars: []string{"HEARTRISK_BACKEND"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Value: "warn",
				Usage: "Log level (debug, info, warn, error)",
			},
		},
		Commands: []*cli.Command{
			interactiveCommand(),
			predictCommand(),
			schemaCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type deps struct {
	schema *schema.Schema
	client *predict.Client
	ctrl   *form.Controller
}

func setup(c *cli.Context) (*deps, error) {
	var (
		cfg *config.Config
		err error
	)
	if path := c.String("config"); path != "" {
		cfg, err = config.LoadFromFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if backend := c.String("backend"); backend != "" {
		cfg.Prediction.BaseURL = strings.TrimRight(backend, "/")
	}

	log := logger.NewStructured(c.String("log-level"), "console", "stderr")

	s, err := schema.LoadFile(cfg.Form.SchemaPath)
	if err != nil {
		return nil, apperrors.NewSchemaInvalidError(err)
	}
	client := predict.NewClient(cfg.Prediction, predict.WithSchema(s), predict.WithLogger(log))
	ctrl := form.New(s, client,
		form.WithOrdering(form.ParseOrdering(cfg.Form.Ordering)),
		form.WithBackendURL(client.BaseURL()),
		form.WithLogger(log),
	)
	return &deps{schema: s, client: client, ctrl: ctrl}, nil
}

func interactiveCommand() *cli.Command {
	return &cli.Command{
		Name:    "interactive",
		Aliases: []string{"i"},
		Usage:   "Fill in the form field by field and predict",
		Action: func(c *cli.Context) error {
			d, err := setup(c)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
			defer stop()

			runner := terminal.NewRunner(d.ctrl, terminal.NewSurveyDriver(c.App.Writer), d.client.Gallery())
			return runner.Run(ctx)
		},
	}
}

func predictCommand() *cli.Command {
	return &cli.Command{
		Name:  "predict",
		Usage: "Predict once from field values given as flags",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "set",
				Aliases: []string{"s"},
				Usage:   "Field value as key=value; fields not set keep their defaults",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the result as JSON",
			},
		},
		Action: func(c *cli.Context) error {
			d, err := setup(c)
			if err != nil {
				return err
			}

			for _, assignment := range c.StringSlice("set") {
				key, raw, ok := strings.Cut(assignment, "=")
				if !ok {
					return cli.Exit(fmt.Sprintf("invalid --set %q: expected key=value", assignment), 2)
				}
				if _, err := d.ctrl.ChangeField(strings.TrimSpace(key), raw); err != nil {
					return cli.Exit(err.Error(), 2)
				}
			}

			state, submitErr := d.ctrl.Submit(context.Background())
			if err := terminal.WriteState(c.App.Writer, d.schema, state, d.client.Gallery(), c.Bool("json")); err != nil {
				return err
			}
			if submitErr != nil {
				return cli.Exit("", 3)
			}
			return nil
		},
	}
}

func schemaCommand() *cli.Command {
	return &cli.Command{
		Name:  "schema",
		Usage: "Print the JSON Schema of the prediction request",
		Action: func(c *cli.Context) error {
			d, err := setup(c)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(c.App.Writer)
			enc.SetIndent("", "  ")
			return enc.Encode(d.schema.PayloadJSONSchema())
		},
	}
}
