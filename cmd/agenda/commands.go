package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"cloud.google.com/go/civil"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"agendacal/internal/agenda"
	"agendacal/internal/ics"
	appLog "agendacal/internal/log"
	"agendacal/internal/model"
	"agendacal/internal/reload"
	"agendacal/internal/web"
)

func newDayCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "day [YYYY-MM-DD]",
		Short: "List the events occurring on a day (default today)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			day := civil.DateOf(a.now().In(a.loc))
			if len(args) == 1 {
				d, err := civil.ParseDate(args[0])
				if err != nil {
					return fmt.Errorf("invalid day %q: %w", args[0], err)
				}
				day = d
			}

			ag, err := a.loadAgenda(cmd.Context())
			if err != nil {
				return err
			}
			return printEvents(cmd.OutOrStdout(), ag.EventsInDay(day))
		},
	}
}

func newFindCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "find TITLE",
		Short: "List the events with exactly this title",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ag, err := a.loadAgenda(cmd.Context())
			if err != nil {
				return err
			}
			return printEvents(cmd.OutOrStdout(), ag.FindByTitle(args[0]))
		},
	}
}

func newFreeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "free START DURATION",
		Short: "Check whether a slot overlaps any single event (e.g. free 2020-11-02T10:00 30m)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := web.ParseDateTime(args[0], a.loc)
			if err != nil {
				return fmt.Errorf("invalid start %q: %w", args[0], err)
			}
			d, err := time.ParseDuration(args[1])
			if err != nil {
				return fmt.Errorf("invalid duration %q: %w", args[1], err)
			}

			ag, err := a.loadAgenda(cmd.Context())
			if err != nil {
				return err
			}
			candidate := model.NewEvent("candidate", start, d)
			if ag.IsFreeFor(candidate) {
				fmt.Fprintf(cmd.OutOrStdout(), "free: %s - %s\n", formatWall(candidate.Start()), formatWall(candidate.End()))
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "busy: %s - %s\n", formatWall(candidate.Start()), formatWall(candidate.End()))
			return nil
		},
	}
}

func newOccurrencesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "occurrences FROM TO",
		Short: "List every occurrence between two dates, inclusive",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := civil.ParseDate(args[0])
			if err != nil {
				return fmt.Errorf("invalid from %q: %w", args[0], err)
			}
			to, err := civil.ParseDate(args[1])
			if err != nil {
				return fmt.Errorf("invalid to %q: %w", args[1], err)
			}

			ag, err := a.loadAgenda(cmd.Context())
			if err != nil {
				return err
			}
			res, err := ag.Expand(agenda.ExpandConfig{
				From:                   from,
				To:                     to,
				MaxOccurrencesPerEvent: a.cfg.MaxOccurrences,
			})
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "START\tEND\tTITLE")
			for _, occ := range res.Occurrences {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", formatWall(occ.Start), formatWall(occ.End), occ.Title)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			for _, title := range res.TruncatedEvents {
				fmt.Fprintf(cmd.ErrOrStderr(), "truncated: %s (cap %d)\n", title, a.cfg.MaxOccurrences)
			}
			return nil
		},
	}
}

func newExportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Re-encode the agenda as normalized iCalendar on stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ag, err := a.loadAgenda(cmd.Context())
			if err != nil {
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), ics.Encode(ag, a.now()))
			return err
		},
	}
}

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the query API and reload the agenda on the configured schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			ag, err := a.loadAgenda(ctx)
			if err != nil {
				return err
			}
			srv := web.NewServer(a.cfg, ag)

			watchPath := ""
			if a.cfg.Watch && !ics.IsURL(a.cfg.Agenda) {
				watchPath = a.cfg.Agenda
			}
			rl := reload.New(a.cfg.ReloadCron, watchPath, func(ctx context.Context) error {
				next, err := a.loadAgenda(ctx)
				srv.RecordReload(err)
				if err != nil {
					return err
				}
				srv.SetAgenda(next)
				return nil
			})

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error { return srv.Run(ctx) })
			g.Go(func() error { return rl.Run(ctx) })
			err = g.Wait()
			appLog.Info("agendacal exiting")
			return err
		},
	}
}

func printEvents(w io.Writer, events []*model.Event) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "START\tDURATION\tREPEATS\tTITLE")
	for _, e := range events {
		repeats := "-"
		if r, ok := e.Repetition(); ok {
			repeats = r.Frequency().String()
			if end, ok := e.TerminationDate(); ok {
				repeats += " until " + end.String()
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", formatWall(e.Start()), e.Duration(), repeats, e.Title())
	}
	return tw.Flush()
}

func formatWall(t time.Time) string {
	return t.Format("2006-01-02 15:04")
}
