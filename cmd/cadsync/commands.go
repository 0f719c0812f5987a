package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/luke-gs/cadsync/internal/app"
	"github.com/luke-gs/cadsync/internal/cad"
	"github.com/luke-gs/cadsync/internal/filter"
	"github.com/luke-gs/cadsync/internal/logging"
	"github.com/luke-gs/cadsync/internal/logtail"
)

// withEnv opens the configured session, runs fn and closes it.
func withEnv(ctx context.Context, fn func(context.Context, *app.Env) error) error {
	env, err := app.Open(opts)
	if err != nil {
		return err
	}
	defer func() { _ = env.Close() }()
	return fn(ctx, env)
}

func listCmd() *cobra.Command {
	var (
		search  string
		tasking string
		outside bool
		grades  []string
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "list [incidents|patrols|broadcasts|resources]",
		Short: "Sync once and print a list",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, env *app.Env) error {
				f := env.Prefs.Filter.ToFilter()
				if len(args) == 1 {
					k, ok := filter.ParseKind(args[0])
					if !ok {
						return fmt.Errorf("unknown list %q", args[0])
					}
					f.Selected = k
				}
				if cmd.Flags().Changed("tasking") {
					t, ok := filter.ParseTasking(tasking)
					if !ok {
						return fmt.Errorf("unknown tasking %q (want all, tasked or untasked)", tasking)
					}
					f.Tasking = t
				}
				if cmd.Flags().Changed("outside") {
					f.ShowResultsOutsidePatrolArea = outside
				}
				if cmd.Flags().Changed("grade") {
					f.Grades = nil
					for _, g := range grades {
						f.Grades = append(f.Grades, cad.Grade(strings.ToUpper(strings.TrimSpace(g))))
					}
				}
				f.Search = search

				if _, err := env.Session.SyncAll(ctx); err != nil {
					return err
				}
				sections := filter.NewEngine(env.Session.PatrolGroup()).Sections(env.Session.Snapshot(), f)
				if asJSON {
					return printJSON(cmd.OutOrStdout(), sections)
				}
				renderSections(cmd.OutOrStdout(), f.Selected, sections)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&search, "search", "", "prefix search")
	cmd.Flags().StringVar(&tasking, "tasking", "all", "all, tasked or untasked")
	cmd.Flags().BoolVar(&outside, "outside", false, "include results outside the patrol group")
	cmd.Flags().StringArrayVar(&grades, "grade", []string{}, "incident grade to include (repeatable)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output JSON")
	return cmd
}

func incidentCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "incident <id>",
		Short: "Show an incident with its resources and narrative",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, env *app.Env) error {
				details, err := env.Session.IncidentDetails(ctx, args[0])
				if err != nil {
					return err
				}
				if asJSON {
					return printJSON(cmd.OutOrStdout(), details)
				}
				renderIncident(cmd.OutOrStdout(), details)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output JSON")
	return cmd
}

func bookOnCmd() *cobra.Command {
	var (
		officers []string
		shiftEnd string
		remarks  string
	)
	cmd := &cobra.Command{
		Use:   "book-on",
		Short: "Book a callsign on for a shift",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, env *app.Env) error {
				callsign := env.Config.Callsign
				if callsign == "" {
					return fmt.Errorf("callsign required (--callsign or config)")
				}
				roster := officers
				if len(roster) == 0 && env.Config.OfficerID != "" {
					roster = []string{env.Config.OfficerID}
				}
				req := cad.BookOnRequest{
					Callsign:   callsign,
					OfficerIDs: roster,
					ShiftStart: time.Now(),
					Remarks:    remarks,
				}
				if shiftEnd != "" {
					end, err := parseShiftEnd(shiftEnd, req.ShiftStart)
					if err != nil {
						return err
					}
					req.ShiftEnd = &end
				}
				if err := env.Session.BookOn(ctx, req); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s booked on\n", callsign)
				return nil
			})
		},
	}
	cmd.Flags().StringArrayVar(&officers, "officer", []string{}, "officer ID on the roster (repeatable)")
	cmd.Flags().StringVar(&shiftEnd, "shift-end", "", "shift end as HH:MM or RFC 3339")
	cmd.Flags().StringVar(&remarks, "remarks", "", "book-on remarks")
	return cmd
}

func statusCmd() *cobra.Command {
	var (
		incident string
		comments string
	)
	cmd := &cobra.Command{
		Use:   "status <status>",
		Short: "Change the callsign's status",
		Long: `Change the status of the configured callsign. Incident statuses
(Proceeding, At Incident, Traffic Stop, Court) apply to --incident or the
callsign's current incident. Finalise closes the current incident.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, ok := cad.ParseResourceStatus(args[0])
			if !ok {
				return fmt.Errorf("unknown status %q", args[0])
			}
			return withEnv(cmd.Context(), func(ctx context.Context, env *app.Env) error {
				if _, err := env.Session.SyncAll(ctx); err != nil {
					return err
				}
				if err := env.Session.UpdateCallsignStatus(ctx, st, incident, comments, ""); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", env.Session.CurrentCallsign(), st)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&incident, "incident", "", "incident ID")
	cmd.Flags().StringVar(&comments, "comments", "", "status comments")
	return cmd
}

func logsCmd() *cobra.Command {
	var (
		lines int
		level string
	)
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Print the tail of the session log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			min, err := logging.ParseLevel(level)
			if err != nil {
				return err
			}
			return withEnv(cmd.Context(), func(ctx context.Context, env *app.Env) error {
				tail, err := logtail.Read(env.Config.LogFile, 0)
				if err != nil {
					return err
				}
				tail = logtail.Filter(tail, min)
				if lines > 0 && len(tail) > lines {
					tail = tail[len(tail)-lines:]
				}
				for _, line := range tail {
					fmt.Fprintln(cmd.OutOrStdout(), line)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "number of lines to print (0 for all)")
	cmd.Flags().StringVar(&level, "level", "trace", "minimum level to print")
	return cmd
}

// parseShiftEnd accepts RFC 3339 or a wall-clock HH:MM. A clock time at or
// before start is taken to mean the next day.
func parseShiftEnd(value string, start time.Time) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	clock, err := time.ParseInLocation("15:04", value, start.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("shift end %q: want HH:MM or RFC 3339", value)
	}
	end := time.Date(start.Year(), start.Month(), start.Day(), clock.Hour(), clock.Minute(), 0, 0, start.Location())
	if !end.After(start) {
		end = end.AddDate(0, 0, 1)
	}
	return end, nil
}

func renderSections(w io.Writer, kind filter.Kind, sections []filter.Section) {
	if len(sections) == 0 {
		fmt.Fprintf(w, "No %s\n", strings.ToLower(kind.String()))
		return
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetTitle(kind.String())
	tw.AppendHeader(table.Row{"Section", "Bucket", "ID", "Title", "Status", "Suburb", "Flags"})
	for _, s := range sections {
		for _, b := range s.Buckets {
			for _, it := range b.Items {
				tw.AppendRow(table.Row{s.Title, b.Title, it.ID, it.Title, it.Status, it.Suburb, itemFlags(it)})
			}
		}
		tw.AppendSeparator()
	}
	tw.Render()
}

func itemFlags(it filter.Item) string {
	var flags []string
	if it.Duress {
		flags = append(flags, "DURESS")
	}
	if it.Tasked {
		flags = append(flags, "tasked")
	}
	return strings.Join(flags, " ")
}

func renderIncident(w io.Writer, d *cad.IncidentDetails) {
	inc := d.Incident
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetTitle(inc.ID + " " + inc.Title())
	tw.AppendRow(table.Row{"Status", inc.Status})
	tw.AppendRow(table.Row{"Grade", inc.Grade})
	if inc.Location != nil {
		tw.AppendRow(table.Row{"Location", inc.Location.FullAddress})
	}
	tw.AppendRow(table.Row{"Patrol group", inc.PatrolGroup})
	if !inc.CreatedAt.IsZero() {
		tw.AppendRow(table.Row{"Created", inc.CreatedAt.Local().Format("2006-01-02 15:04")})
	}
	if inc.Details != "" {
		tw.AppendRow(table.Row{"Details", inc.Details})
	}
	tw.Render()

	if len(d.Resources) > 0 {
		rt := table.NewWriter()
		rt.SetOutputMirror(w)
		rt.AppendHeader(table.Row{"Callsign", "Status", "Type"})
		for _, r := range d.Resources {
			rt.AppendRow(table.Row{r.Callsign, r.Status, r.Type})
		}
		rt.Render()
	}
	for _, line := range d.Narrative {
		fmt.Fprintln(w, "  "+line)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
