package commands

import (
	"time"

	"github.com/dyluth/rollcall/internal/printer"
	"github.com/dyluth/rollcall/pkg/attendance"
	"github.com/spf13/cobra"
)

var idCmd = &cobra.Command{
	Use:   "id CLASS_ID TEACHER_ID [DATE]",
	Short: "Print the canonical session ID for a class, recorder and day",
	Long: `Print the canonical session ID. The same class, recorder and day always
produce the same ID, which is how repeated saves converge on one session.

DATE may be an ISO day or an RFC3339 timestamp; only the day is used.
Without DATE, today's local date is used.

Example:
  rollcall id grade4-b t-001 2024-03-04`,
	Args: cobra.RangeArgs(2, 3),
	RunE: runID,
}

// idNow is the clock used when DATE is omitted.
var idNow = time.Now

func init() {
	rootCmd.AddCommand(idCmd)
}

func runID(cmd *cobra.Command, args []string) error {
	var (
		id  string
		err error
	)
	if len(args) == 3 {
		id, err = attendance.IdentifierFor(args[0], args[1], args[2])
	} else {
		id, err = attendance.IdentifierForTime(args[0], args[1], idNow())
	}
	if err != nil {
		return printer.Error("invalid identity", err.Error(), nil)
	}
	printer.Println(id)
	return nil
}
