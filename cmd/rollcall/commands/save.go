package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/dyluth/rollcall/internal/printer"
	"github.com/dyluth/rollcall/internal/writer"
	"github.com/dyluth/rollcall/pkg/attendance"
	"github.com/spf13/cobra"
)

var saveSubmit bool

var saveCmd = &cobra.Command{
	Use:   "save FILE",
	Short: "Save an attendance session as a draft or submit it",
	Long: `Save an attendance session read from a JSON file ("-" for stdin).

The session is written under its canonical ID (class, recorder and day), so
saving the same class again on the same day updates the existing session.
Stats are recomputed from the records on every save.

If the remote store is unreachable the session is saved to the local queue
and synchronized later by 'rollcall sync' or 'rollcall agent'.

Examples:
  # Save a draft
  rollcall save session.json

  # Submit a session
  rollcall save --submit session.json

  # Pipe from another tool
  marker export | rollcall save --submit -`,
	Args: cobra.ExactArgs(1),
	RunE: runSave,
}

func init() {
	saveCmd.Flags().BoolVar(&saveSubmit, "submit", false, "Submit the session instead of saving a draft")
	rootCmd.AddCommand(saveCmd)
}

func runSave(cmd *cobra.Command, args []string) error {
	session, err := readSession(args[0], cmd.InOrStdin())
	if err != nil {
		return printer.Error("invalid session file", err.Error(), []string{
			"The file must hold one session as JSON, e.g. {\"classId\": \"...\", \"date\": \"2024-03-04\", \"records\": [...]}",
		})
	}

	env, err := openEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	intended := attendance.StatusDraft
	if saveSubmit {
		intended = attendance.StatusSubmitted
	}

	w := writer.New(env.store, env.queue, env.identity, env.logger)
	result, err := w.Save(context.Background(), session, intended)
	if err != nil {
		return printer.FromError(err)
	}

	return reportSave(result, intended)
}

func reportSave(result writer.Result, intended attendance.Status) error {
	switch {
	case !result.Offline:
		verb := "Saved draft"
		if intended == attendance.StatusSubmitted {
			verb = "Submitted"
		}
		printer.Success("%s %s\n", verb, result.ID)
		return nil

	case result.Durable:
		printer.SavedOffline(result.ID)
		return nil

	default:
		return printer.ErrorWithContext(
			"session not saved",
			"The remote store is unreachable and the local queue could not store the session.",
			map[string]string{"Session": result.ID},
			[]string{"Keep the session file and save it again once the connection is back"},
		)
	}
}

func readSession(path string, stdin io.Reader) (*attendance.Session, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	var s attendance.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse session: %w", err)
	}
	return &s, nil
}
