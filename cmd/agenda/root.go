package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"agendacal/internal/agenda"
	"agendacal/internal/config"
	"agendacal/internal/ics"
	appLog "agendacal/internal/log"
	"agendacal/internal/web"
)

// app carries flag values and the loaded configuration shared by all
// subcommands.
type app struct {
	configPath string
	agendaSrc  string
	logLevel   string
	strict     bool

	cfg    *config.Config
	loc    *time.Location
	loader *ics.Loader
	now    func() time.Time
}

func newRootCmd() *cobra.Command {
	a := &app{loader: ics.NewLoader(), now: time.Now}

	root := &cobra.Command{
		Use:           "agendacal",
		Short:         "Query single and recurring calendar events from an iCalendar agenda",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "/etc/agendacal/config.yaml", "Path to config file")
	flags.StringVar(&a.agendaSrc, "agenda", "", "iCalendar file or http(s) URL (overrides config if set)")
	flags.StringVar(&a.logLevel, "log-level", "", "debug, info or error (overrides config if set)")
	flags.BoolVar(&a.strict, "strict", false, "Skip events that fail validation")

	root.AddCommand(
		newDayCmd(a),
		newFindCmd(a),
		newFreeCmd(a),
		newOccurrencesCmd(a),
		newExportCmd(a),
		newServeCmd(a),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		if cfg == nil {
			return err
		}
		// Unwritable default config; carry on with the in-memory defaults.
		appLog.Error("failed to write default config", err, "config_path", a.configPath)
	}

	if a.agendaSrc != "" {
		cfg.Agenda = a.agendaSrc
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if cmd.Flags().Changed("strict") {
		cfg.Strict = a.strict
	}
	cfg.Normalize()

	appLog.SetLevel(appLog.ParseLevel(cfg.LogLevel))
	appLog.Debug("effective config",
		"listen", cfg.Listen,
		"timezone", cfg.Timezone,
		"agenda", cfg.Agenda,
		"reload", cfg.ReloadCron,
		"strict", cfg.Strict,
		"max_occurrences", cfg.MaxOccurrences,
	)

	a.cfg = cfg
	a.loc = web.ResolveLocation(cfg.Timezone)
	return nil
}

func (a *app) loadAgenda(ctx context.Context) (*agenda.Agenda, error) {
	return a.loader.LoadAgenda(ctx, a.cfg.Agenda, ics.DecodeOptions{
		Location: a.loc,
		Strict:   a.cfg.Strict,
	})
}
