package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dyluth/rollcall/internal/overview"
	"github.com/dyluth/rollcall/internal/pending"
	"github.com/dyluth/rollcall/internal/printer"
	"github.com/dyluth/rollcall/internal/resolver"
	"github.com/spf13/cobra"
)

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "Inspect the local queue of sessions awaiting sync",
	Long: `Inspect the local queue of sessions that were saved while offline.

Queued sessions are identified by provisional keys ("offline_..."). Any
unique prefix of at least 6 characters can be used, with or without the
"offline_" marker.`,
}

var pendingListCmd = &cobra.Command{
	Use:   "list",
	Short: "List queued sessions in the order they will sync",
	Args:  cobra.NoArgs,
	RunE:  runPendingList,
}

var pendingShowCmd = &cobra.Command{
	Use:   "show KEY",
	Short: "Print a queued session as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runPendingShow,
}

var pendingDiscardCmd = &cobra.Command{
	Use:   "discard KEY",
	Short: "Drop a queued session without syncing it",
	Args:  cobra.ExactArgs(1),
	RunE:  runPendingDiscard,
}

func init() {
	pendingCmd.AddCommand(pendingListCmd, pendingShowCmd, pendingDiscardCmd)
	rootCmd.AddCommand(pendingCmd)
}

func runPendingList(cmd *cobra.Command, args []string) error {
	env, err := openEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	entries, err := env.queue.ListPending(context.Background())
	if err != nil {
		return printer.FromError(err)
	}

	formatPending(printer.Out, entries, time.Now())
	return nil
}

func runPendingShow(cmd *cobra.Command, args []string) error {
	env, err := openEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	ctx := context.Background()
	entry, err := findPending(ctx, env.queue, args[0])
	if err != nil {
		return err
	}

	return overview.FormatSingleJSON(printer.Out, &entry.Session)
}

func runPendingDiscard(cmd *cobra.Command, args []string) error {
	env, err := openEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	ctx := context.Background()
	entry, err := findPending(ctx, env.queue, args[0])
	if err != nil {
		return err
	}

	if err := env.queue.Remove(ctx, []string{entry.Key()}); err != nil {
		return printer.FromError(err)
	}

	printer.Success("Discarded %s (%s, %s)\n", entry.Key(), entry.ClassID, entry.Date)
	return nil
}

// findPending resolves a short key and returns the matching entry.
func findPending(ctx context.Context, queue pending.Queue, shortID string) (*pending.Entry, error) {
	key, err := resolver.ResolvePendingKey(ctx, queue, shortID)
	if err != nil {
		if resolver.IsNotFoundError(err) {
			return nil, printer.Error(
				fmt.Sprintf("no queued session matches '%s'", shortID),
				err.Error(),
				[]string{"List queued sessions:\n  rollcall pending list"},
			)
		}
		if resolver.IsAmbiguousError(err) {
			ambigErr := err.(*resolver.AmbiguousError)
			fmt.Fprintln(printer.ErrOut, resolver.FormatAmbiguousError(ambigErr))
			return nil, fmt.Errorf("ambiguous short ID")
		}
		return nil, printer.Error("invalid key", err.Error(), nil)
	}

	entries, err := queue.ListPending(ctx)
	if err != nil {
		return nil, printer.FromError(err)
	}
	for _, e := range entries {
		if e.Key() == key {
			return e, nil
		}
	}
	// Synced or discarded between the two reads
	return nil, printer.Error("not found", fmt.Sprintf("%s is no longer queued", key), nil)
}

func formatPending(w io.Writer, entries []*pending.Entry, now time.Time) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No sessions waiting to sync")
		return
	}

	fmt.Fprintf(w, "%-20s %-10s %-20s %-10s %-7s %s\n", "KEY", "DATE", "CLASS", "INTENT", "LEARN", "STORED")
	fmt.Fprintf(w, "%-20s %-10s %-20s %-10s %-7s %s\n",
		"--------------------", "----------", "--------------------", "----------", "-------", "--------")

	for _, e := range entries {
		class := e.ClassName
		if class == "" {
			class = e.ClassID
		}
		fmt.Fprintf(w, "%-20s %-10s %-20s %-10s %-7d %s\n",
			shortKey(e.Key()),
			e.Date,
			truncateRunes(class, 20),
			e.OriginalStatus,
			len(e.Records),
			now.Sub(e.StoredAt).Truncate(time.Second).String()+" ago",
		)
	}

	fmt.Fprintf(w, "\n%d session(s) waiting to sync\n", len(entries))
}

// shortKey trims a provisional key to its marker plus the leading timestamp bits,
// which is enough to resolve it later.
func shortKey(key string) string {
	const keep = len("offline_") + 12
	if len(key) <= keep {
		return key
	}
	return key[:keep]
}

func truncateRunes(v string, limit int) string {
	r := []rune(v)
	if len(r) <= limit {
		return v
	}
	return string(r[:limit-3]) + "..."
}
