package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/vik-s/pymeasure/internal/command"
	"github.com/vik-s/pymeasure/internal/instruments"
)

func modelsCommand() *cli.Command {
	return &cli.Command{
		Name:  "models",
		Usage: "List supported instrument models",
		Action: func(c *cli.Context) error {
			models := instruments.Models()
			tbl := &table{headers: []string{"MODEL", "DESCRIPTION"}}
			for _, m := range models {
				tbl.rows = append(tbl.rows, []string{m.Model, m.Description})
			}
			return render(out(c), c.String("output"), models, tbl)
		},
	}
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "List configured instruments",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "identify", Usage: "Query *IDN? on every instrument"},
		},
		Action: func(c *cli.Context) error {
			return withOrchestrator(c, func(ctx context.Context, o *command.Orchestrator) error {
				if c.Bool("identify") {
					for _, name := range o.Bench().Names() {
						if _, err := o.Identify(ctx, name); err != nil {
							fmt.Fprintf(c.App.ErrWriter, "%s: %v\n", name, err)
						}
					}
				}
				list := o.Bench().List()
				tbl := &table{headers: []string{"NAME", "MODEL", "RESOURCE", "STATUS", "IDENTITY"}}
				for _, inst := range list.Items {
					name := inst.Name
					if name == list.Active {
						name += "*"
					}
					tbl.rows = append(tbl.rows, []string{name, inst.Model, inst.Resource, inst.Status, inst.Identity})
				}
				return render(out(c), c.String("output"), list, tbl)
			})
		},
	}
}

func propsCommand() *cli.Command {
	return &cli.Command{
		Name:      "props",
		Usage:     "Describe the properties of an instrument",
		ArgsUsage: "[INSTRUMENT]",
		Action: func(c *cli.Context) error {
			return withOrchestrator(c, func(ctx context.Context, o *command.Orchestrator) error {
				descs, err := o.Describe(target(c, 0))
				if err != nil {
					return err
				}
				tbl := &table{headers: []string{"NAME", "ACCESS", "VALIDATOR", "CONSTRAINT", "DOC"}}
				for _, d := range descs {
					access := ""
					if d.Query != "" {
						access += "r"
					}
					if d.Write != "" {
						access += "w"
					}
					tbl.rows = append(tbl.rows, []string{d.Name, access, d.Validator, d.Constraint, d.Doc})
				}
				return render(out(c), c.String("output"), descs, tbl)
			})
		},
	}
}

// valueResult is the structured output of get and set.
type valueResult struct {
	Instrument string `json:"instrument" yaml:"instrument"`
	Property   string `json:"property" yaml:"property"`
	Value      string `json:"value" yaml:"value"`
}

func getCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Read a property",
		ArgsUsage: "[INSTRUMENT] PROPERTY",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return cli.Exit("missing PROPERTY", 2)
			}
			name := target(c, 1)
			prop := c.Args().Get(c.NArg() - 1)
			return withOrchestrator(c, func(ctx context.Context, o *command.Orchestrator) error {
				v, err := o.Get(ctx, name, prop)
				if err != nil {
					return err
				}
				if c.String("output") == FormatTable {
					_, err = fmt.Fprintln(out(c), v)
					return err
				}
				return render(out(c), c.String("output"), valueResult{name, prop, v}, nil)
			})
		},
	}
}

func setCommand() *cli.Command {
	return &cli.Command{
		Name:      "set",
		Usage:     "Write a property",
		ArgsUsage: "[INSTRUMENT] PROPERTY VALUE",
		Action: func(c *cli.Context) error {
			if c.NArg() < 2 {
				return cli.Exit("missing PROPERTY or VALUE", 2)
			}
			name := target(c, 2)
			prop, value := c.Args().Get(c.NArg()-2), c.Args().Get(c.NArg()-1)
			return withOrchestrator(c, func(ctx context.Context, o *command.Orchestrator) error {
				return o.Set(ctx, name, prop, value)
			})
		},
	}
}

func idnCommand() *cli.Command {
	return &cli.Command{
		Name:      "idn",
		Usage:     "Query the instrument identity",
		ArgsUsage: "[INSTRUMENT]",
		Action: func(c *cli.Context) error {
			return withOrchestrator(c, func(ctx context.Context, o *command.Orchestrator) error {
				id, err := o.Identify(ctx, target(c, 0))
				if err != nil {
					return err
				}
				tbl := &table{rows: [][]string{
					{"Manufacturer", id.Manufacturer},
					{"Model", id.Model},
					{"Serial", id.Serial},
					{"Firmware", id.Firmware},
				}}
				return render(out(c), c.String("output"), id, tbl)
			})
		},
	}
}

func errorsCommand() *cli.Command {
	return &cli.Command{
		Name:      "errors",
		Usage:     "Drain the instrument error queue",
		ArgsUsage: "[INSTRUMENT]",
		Action: func(c *cli.Context) error {
			return withOrchestrator(c, func(ctx context.Context, o *command.Orchestrator) error {
				errs, err := o.Errors(ctx, target(c, 0))
				if err != nil {
					return err
				}
				tbl := &table{headers: []string{"CODE", "MESSAGE"}}
				for _, e := range errs {
					tbl.rows = append(tbl.rows, []string{strconv.Itoa(e.Code), e.Message})
				}
				return render(out(c), c.String("output"), errs, tbl)
			})
		},
	}
}

func resetCommand() *cli.Command {
	return &cli.Command{
		Name:      "reset",
		Usage:     "Send *RST and *CLS",
		ArgsUsage: "[INSTRUMENT]",
		Action: func(c *cli.Context) error {
			return withOrchestrator(c, func(ctx context.Context, o *command.Orchestrator) error {
				return o.Reset(ctx, target(c, 0))
			})
		},
	}
}
