package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dyluth/rollcall/internal/pending"
	"github.com/dyluth/rollcall/internal/printer"
	"github.com/dyluth/rollcall/internal/syncer"
	"github.com/spf13/cobra"
)

var syncTimeout time.Duration

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Push queued offline sessions to the remote store",
	Long: `Drain the local pending queue once.

Each queued session is written under its canonical ID with the status it was
saved with. Synced sessions leave the queue; sessions that fail stay queued
for the next attempt. A queued draft for a session that has since been
submitted is discarded.

If another rollcall process is already draining the queue, sync backs off
and reports which one.

For continuous synchronization use 'rollcall agent'.`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().DurationVar(&syncTimeout, "timeout", 30*time.Second, "Give up on the drain after this long")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	env, err := openEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
	defer cancel()

	engine := syncer.NewEngine(env.store, env.queue, env.logger, env.engineOptions(holderSync)...)
	result := engine.Drain(ctx)

	return reportDrain(result)
}

func reportDrain(result syncer.Result) error {
	if result.Blocked != nil {
		return reportBlocked(result.Blocked)
	}

	if result.Empty() {
		printer.Info("Nothing to sync\n")
		return nil
	}

	if n := len(result.Succeeded); n > 0 {
		printer.Synced(n)
	}
	if n := len(result.Superseded); n > 0 {
		printer.Info("%d queued draft(s) discarded, already submitted\n", n)
	}
	if n := len(result.Failed); n > 0 {
		return printer.Error(
			fmt.Sprintf("%d session(s) still pending", n),
			"Some queued sessions could not be written and remain in the local queue.",
			[]string{
				"Run 'rollcall pending list' to inspect them",
				"Re-run 'rollcall sync' once the remote store is reachable",
			},
		)
	}
	return nil
}

func reportBlocked(err error) error {
	var held *pending.LeaseHeldError
	if !errors.As(err, &held) {
		return printer.Error("queue busy", err.Error(), nil)
	}

	suggestions := []string{"Re-run 'rollcall sync' once it finishes"}
	if held.Holder == holderAgent {
		suggestions = []string{
			fmt.Sprintf("Ask the agent to sync now: kill -USR1 %d", held.PID),
			"Or leave it to the agent, which syncs on every reconnect",
		}
	}
	return printer.Error("queue busy",
		fmt.Sprintf("The local queue is being synced by %s (pid %d).", held.Holder, held.PID),
		suggestions)
}
