package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/urfave/cli/v2"

	"github.com/vik-s/pymeasure/internal/bench"
	"github.com/vik-s/pymeasure/internal/command"
	"github.com/vik-s/pymeasure/internal/config"
	"github.com/vik-s/pymeasure/internal/logging"
	"github.com/vik-s/pymeasure/internal/property"
)

// Build information, set via ldflags.
var (
	Version = "dev"
	Commit  = "unknown"
)

// AdHocName names the instrument given by --resource.
const AdHocName = "dut"

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "pymeasure",
		Usage:   "Drive SCPI instruments from the command line",
		Version: fmt.Sprintf("%s (commit: %s)", Version, Commit),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			modelsCommand(),
			listCommand(),
			propsCommand(),
			getCommand(),
			setCommand(),
			idnCommand(),
			errorsCommand(),
			resetCommand(),
		},
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Configuration file",
			EnvVars: []string{"PYMEASURE_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "resource",
			Aliases: []string{"r"},
			Usage:   "Address of a one-off instrument, e.g. TCPIP::10.0.0.5::SOCKET or SIM::rs-fsq",
		},
		&cli.StringFlag{
			Name:    "model",
			Aliases: []string{"m"},
			Usage:   "Driver model for --resource",
		},
		&cli.StringFlag{
			Name:  "frequency-unit",
			Usage: "Frequency unit appended to written frequencies",
			Value: property.DefaultUnits().Frequency,
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Per-command timeout",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
			Value:   FormatTable,
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level: trace, debug, info, warn, error",
			EnvVars: []string{"PYMEASURE_LOG_LEVEL"},
			Value:   "warn",
		},
	}
}

// loadConfig reads the configuration and adds the --resource instrument.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if c.IsSet("log-level") || c.String("config") == "" {
		cfg.Log.Level = c.String("log-level")
	}
	if c.Duration("timeout") > 0 {
		cfg.API.CommandTimeout = c.Duration("timeout")
	}

	if res := c.String("resource"); res != "" {
		if c.String("model") == "" {
			return nil, errors.New("--resource needs --model")
		}
		units := property.DefaultUnits()
		units.Frequency = c.String("frequency-unit")
		cfg.Instruments = append(cfg.Instruments, config.InstrumentConfig{
			Name:     AdHocName,
			Model:    c.String("model"),
			Resource: res,
			Units:    units,
		})
		if err := config.Validate(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// withOrchestrator opens the bench for the duration of fn.
func withOrchestrator(c *cli.Context, fn func(ctx context.Context, o *command.Orchestrator) error) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	logger, closer := logging.New("pymeasure", cfg.Log, c.App.ErrWriter)
	defer closer.Close()

	ctx := c.Context
	if ctx == nil {
		ctx = context.Background()
	}
	b, err := bench.Load(ctx, cfg.Instruments, &bench.Opener{GPIB: cfg.GPIB, Logger: logger})
	if err != nil {
		return err
	}
	defer b.Close()

	o := command.NewOrchestrator(b, cfg.API.CommandTimeout, command.WithLogger(logger.Named("command")))
	return fn(ctx, o)
}

// target resolves the instrument argument: explicit, the --resource
// instrument, or the active one.
func target(c *cli.Context, args int) string {
	if c.NArg() > args {
		return c.Args().Get(0)
	}
	if c.String("resource") != "" {
		return AdHocName
	}
	return ""
}

func out(c *cli.Context) io.Writer { return c.App.Writer }
