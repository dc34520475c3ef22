package commands

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dyluth/rollcall/internal/apperror"
	"github.com/dyluth/rollcall/internal/filter"
	"github.com/dyluth/rollcall/internal/overview"
	"github.com/dyluth/rollcall/internal/printer"
	"github.com/dyluth/rollcall/internal/timespec"
	"github.com/spf13/cobra"
)

var (
	overviewOutputFormat string
	overviewSince        string
	overviewUntil        string
	overviewClass        string
	overviewTeacher      string
	overviewMinRate      int
	overviewDedupe       bool
	overviewSummary      bool
)

var overviewCmd = &cobra.Command{
	Use:   "overview",
	Short: "List submitted sessions from every recorder",
	Long: `List submitted attendance sessions in a date range.

Sessions from the remote store are listed first, newest first. Sessions
submitted on this device that have not synced yet follow, marked in the
SYNC column. If the remote store is unreachable only local sessions are
shown.

Output Formats:
  default - Human-readable table with a summary line
  jsonl   - Line-delimited JSON, one session per line

Date Filters:
  --since  - First day to include (today, yesterday, 7d, 36h, 2024-03-04)
  --until  - Last day to include

Content Filters:
  --class    - Filter by class ID or name (glob pattern: "grade4*")
  --teacher  - Filter by teacher ID (exact match)
  --min-rate - Only sessions with at least this attendance rate

Examples:
  # This week's submissions
  rollcall overview --since=7d

  # One class, as JSONL for jq
  rollcall overview --class="grade4*" --output=jsonl | jq .stats

  # Totals only
  rollcall overview --since=2024-03-01 --until=2024-03-31 --summary`,
	Args: cobra.NoArgs,
	RunE: runOverview,
}

func init() {
	overviewCmd.Flags().StringVarP(&overviewOutputFormat, "output", "o", "default", "Output format: default or jsonl")

	overviewCmd.Flags().StringVar(&overviewSince, "since", "", "First day to include (relative or ISO date)")
	overviewCmd.Flags().StringVar(&overviewUntil, "until", "", "Last day to include (relative or ISO date)")

	overviewCmd.Flags().StringVar(&overviewClass, "class", "", "Filter by class ID or name (glob pattern)")
	overviewCmd.Flags().StringVar(&overviewTeacher, "teacher", "", "Filter by teacher ID (exact match)")
	overviewCmd.Flags().IntVar(&overviewMinRate, "min-rate", 0, "Minimum attendance rate in percent")

	overviewCmd.Flags().BoolVar(&overviewDedupe, "dedupe", false, "Hide queued copies of sessions already in the remote store")
	overviewCmd.Flags().BoolVar(&overviewSummary, "summary", false, "Print only the totals")

	rootCmd.AddCommand(overviewCmd)
}

func runOverview(cmd *cobra.Command, args []string) error {
	format, err := overview.ParseOutputFormat(overviewOutputFormat)
	if err != nil {
		return printer.Error(
			"invalid output format",
			err.Error(),
			[]string{"Valid formats: default, jsonl"},
		)
	}

	now := time.Now()
	start, end, err := timespec.ParseRange(overviewSince, overviewUntil, now)
	if err != nil {
		return printer.Error("invalid date range", err.Error(), nil)
	}

	env, err := openEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	reader := overview.NewReader(env.store, env.queue, env.logger)
	sessions, err := reader.Query(context.Background(), start, end)
	if err != nil {
		if !apperror.IsConnectivity(err) {
			return printer.FromError(err)
		}
		printer.Warning("Remote store unreachable, showing sessions from this device only\n")
	}

	criteria := &filter.Criteria{
		ClassGlob: overviewClass,
		TeacherID: overviewTeacher,
		MinRate:   overviewMinRate,
	}
	sessions = criteria.Apply(sessions)
	if overviewDedupe {
		sessions = overview.Dedupe(sessions)
	}

	if overviewSummary {
		if format == overview.OutputFormatJSONL {
			return json.NewEncoder(printer.Out).Encode(overview.Summarize(sessions))
		}
		return printSummary(overview.Summarize(sessions))
	}

	switch format {
	case overview.OutputFormatJSONL:
		return overview.FormatJSONL(printer.Out, sessions)
	default:
		overview.FormatTable(printer.Out, sessions, now)
		return nil
	}
}

func printSummary(sum overview.Summary) error {
	printer.Printf("Sessions:   %d (%d not yet synced)\n", sum.Sessions, sum.Pending)
	printer.Printf("Learners:   %d marked\n", sum.Totals.Total)
	printer.Printf("Present:    %d\n", sum.Totals.Present)
	printer.Printf("Absent:     %d\n", sum.Totals.Absent)
	printer.Printf("Late:       %d\n", sum.Totals.Late)
	printer.Printf("Excused:    %d\n", sum.Totals.Excused)
	printer.Printf("Attendance: %d%%\n", sum.Totals.AttendanceRate)
	return nil
}
