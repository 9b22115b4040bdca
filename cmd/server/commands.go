package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/warp/permiplan/generic"
	"github.com/warp/permiplan/planner"
	"github.com/warp/permiplan/rotation"
)

// =============================================================================
// PLAN
// =============================================================================

func planCmd(a *app) *cobra.Command {
	var today, profileID string

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print a profile's annotated timeline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := generic.ParseTimePoint(today)
			if err != nil {
				return err
			}

			store, svc, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			if profileID == "" {
				profileID = svc.Active().ID
			}
			p, err := svc.Profile(profileID)
			if err != nil {
				return err
			}
			plan, err := svc.Plan(profileID, day)
			if err != nil {
				return err
			}
			if day.IsZero() {
				day = svc.Today()
			}
			if err := printPlan(cmd.OutOrStdout(), p, plan, day); err != nil {
				return err
			}

			savedAt, ok, err := store.UpdatedAt(cmd.Context(), planner.StorageKey)
			if err != nil {
				return err
			}
			if ok {
				fmt.Fprintf(cmd.OutOrStdout(), "Last saved %s\n", savedAt.Local().Format(time.RFC1123))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&today, "today", "", "date to report progress for (YYYY-MM-DD)")
	cmd.Flags().StringVarP(&profileID, "profile", "p", "", "profile id (default: active profile)")
	return cmd
}

func printPlan(out io.Writer, p rotation.Profile, plan rotation.Plan, today generic.TimePoint) error {
	fmt.Fprintf(out, "%s  (ref year %d, target wave %s)\n\n", p.Name, p.RefYear, plan.Target)

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tKIND\tSTART\tEND\tDAYS\tNOTES")
	for _, e := range plan.Entries {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%s\n",
			e.Index+1, e.Kind, e.Start, e.End, e.DurationDays, entryNotes(e))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\nTotals: %d work, %d rest, %d leave days, ends %s\n",
		plan.Totals.WorkDays, plan.Totals.RestDays, plan.Totals.LeaveDays, plan.Totals.End)

	pr := plan.Progress
	switch pr.State {
	case rotation.ProgressActive:
		fmt.Fprintf(out, "On %s: block %d (%s) %d%% done, %d days left", today, pr.Index+1, pr.Kind, pr.Percent, pr.DaysLeft)
		if pr.FinalStretch {
			fmt.Fprint(out, ", final stretch before leave")
		}
		fmt.Fprintln(out)
	default:
		fmt.Fprintf(out, "On %s: %s\n", today, pr.State)
	}
	return nil
}

func entryNotes(e rotation.Entry) string {
	var notes []string
	if e.Label != "" {
		notes = append(notes, e.Label)
	}
	for _, c := range e.Conflicts {
		notes = append(notes, fmt.Sprintf("%s %s (%s)", c.Holiday.Name, c.Holiday.Date, c.Position))
	}
	if e.Sequence != nil {
		notes = append(notes, e.Sequence.String())
	}
	if e.Gap != nil {
		if e.Gap.State == rotation.GapSynchronized {
			notes = append(notes, "on the target wave")
		} else {
			notes = append(notes, fmt.Sprintf("%s by %d days", e.Gap.State, e.Gap.Days))
		}
	}
	if e.RestZone != nil {
		notes = append(notes, fmt.Sprintf("rest %d days from the wave", e.RestZone.DaysToWave))
	}
	return strings.Join(notes, "; ")
}

// =============================================================================
// BACKUP
// =============================================================================

func exportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export <file>",
		Short: "Write a backup document (\"-\" for stdout)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, svc, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			data, _, err := svc.Export()
			if err != nil {
				return err
			}
			if args[0] == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(args[0], data, 0o600); err != nil {
				return fmt.Errorf("write backup: %w", err)
			}
			a.logger.Info().Str("file", args[0]).Int("bytes", len(data)).Msg("backup written")
			return nil
		},
	}
}

func importCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Restore a backup or merge a profile fragment (\"-\" for stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var data []byte
			var err error
			if args[0] == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return fmt.Errorf("read backup: %w", err)
			}

			store, svc, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			res, err := svc.Import(cmd.Context(), data)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported version %d document: %d profiles, active %s\n",
				res.Version, res.Profiles, res.ProfileID)
			return nil
		},
	}
}

// =============================================================================
// WAVES
// =============================================================================

func wavesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "waves <ref-year>",
		Short: "Print the wave schedule of a season",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			refYear, err := strconv.Atoi(args[0])
			if err != nil || !rotation.ValidRefYear(refYear) {
				return fmt.Errorf("invalid reference year %q", args[0])
			}

			out := cmd.OutOrStdout()
			season := rotation.SeasonOf(refYear)
			fmt.Fprintf(out, "Season %s\n", season)
			for _, w := range rotation.GenerateWaves(refYear) {
				fmt.Fprintf(out, "  wave %2d  %s\n", w.Index, w.Date)
			}
			return nil
		},
	}
}
