package commands

import (
	"context"
	"time"

	"github.com/dyluth/rollcall/internal/overview"
	"github.com/dyluth/rollcall/internal/printer"
	"github.com/dyluth/rollcall/internal/watch"
	"github.com/dyluth/rollcall/pkg/attendance"
	"github.com/spf13/cobra"
)

var getWait time.Duration

var getCmd = &cobra.Command{
	Use:   "get SESSION_ID",
	Short: "Print one stored session as JSON",
	Long: `Print a session from the remote store as pretty-printed JSON.

SESSION_ID is the canonical ID (see 'rollcall id'). With --wait, keep
polling until the session appears, for example while another device syncs.

Examples:
  rollcall get grade4-b_t-001_20240304
  rollcall get --wait=30s grade4-b_t-001_20240304`,
	Args: cobra.ExactArgs(1),
	RunE: runGet,
}

func init() {
	getCmd.Flags().DurationVar(&getWait, "wait", 0, "Poll until the session exists, up to this long")
	rootCmd.AddCommand(getCmd)
}

func runGet(cmd *cobra.Command, args []string) error {
	env, err := openEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	ctx := context.Background()
	var session *attendance.Session
	if getWait > 0 {
		session, err = watch.PollForSession(ctx, env.store, args[0], getWait)
		if err != nil {
			return printer.Error("session did not appear", err.Error(), []string{
				"Check the ID with:\n  rollcall id CLASS_ID TEACHER_ID DATE",
			})
		}
	} else {
		session, err = overview.NewReader(env.store, env.queue, env.logger).Get(ctx, args[0])
		if err != nil {
			return printer.FromError(err)
		}
	}

	return overview.FormatSingleJSON(printer.Out, session)
}
