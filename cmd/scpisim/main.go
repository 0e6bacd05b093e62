// Command scpisim serves a simulated SCPI instrument on a raw TCP socket.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/vik-s/pymeasure/internal/config"
	"github.com/vik-s/pymeasure/internal/logging"
	"github.com/vik-s/pymeasure/internal/simulator"
)

func main() {
	app := &cli.App{
		Name:  "scpisim",
		Usage: "Simulate a SCPI instrument over TCP",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "Configuration file", EnvVars: []string{"PYMEASURE_CONFIG"}},
			&cli.StringFlag{Name: "listen", Aliases: []string{"l"}, Usage: "Listen address"},
			&cli.StringFlag{Name: "model", Aliases: []string{"m"}, Usage: "Built-in profile: " + strings.Join(simulator.Models(), ", ")},
			&cli.StringFlag{Name: "profile", Aliases: []string{"p"}, Usage: "Profile file, overrides --model"},
			&cli.StringSliceFlag{Name: "allow", Usage: "Allowed client CIDR (repeatable)"},
			&cli.DurationFlag{Name: "latency", Usage: "Delay before every response"},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "scpisim: %v\n", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	sc := cfg.Simulator
	if c.IsSet("listen") {
		sc.Listen = c.String("listen")
	}
	if c.IsSet("model") {
		sc.Model = c.String("model")
	}
	if c.IsSet("allow") {
		sc.AllowedCIDRs = c.StringSlice("allow")
	}
	if c.IsSet("latency") {
		sc.Latency = c.Duration("latency")
	}

	logger, closer := logging.New("scpisim", cfg.Log, os.Stderr)
	defer closer.Close()

	var profile *simulator.Profile
	if path := c.String("profile"); path != "" {
		profile, err = simulator.LoadProfileFile(path)
	} else {
		profile, err = simulator.LoadProfile(sc.Model)
	}
	if err != nil {
		return err
	}

	device := simulator.New(profile, simulator.WithLogger(logger), simulator.WithLatency(sc.Latency))
	defer device.Close()

	server, err := simulator.NewServer(device, sc.AllowedCIDRs, logger,
		simulator.WithMaxConnections(sc.MaxConnections),
		simulator.WithIdleTimeout(sc.IdleTimeout),
	)
	if err != nil {
		return err
	}
	if err := server.Listen(sc.Listen); err != nil {
		return err
	}
	logger.Info("simulating", "model", profile.Model, "addr", server.Addr().String())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		logger.Info("shutting down")
		server.Close()
	}()
	return server.Serve()
}
