package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/dyluth/rollcall/internal/filter"
	"github.com/dyluth/rollcall/internal/printer"
	"github.com/dyluth/rollcall/internal/watch"
	"github.com/spf13/cobra"
)

var (
	watchOutputFormat string
	watchClass        string
	watchTeacher      string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Monitor sessions as they are saved",
	Long: `Stream every session written to the remote store, from any device.

Output Formats:
  default - Human-readable output with timestamps and emojis
  json    - Line-delimited JSON for programmatic processing

Examples:
  rollcall watch
  rollcall watch --class="grade4*"
  rollcall watch --output=json > events.jsonl`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchOutputFormat, "output", "o", "default", "Output format (default or json)")
	watchCmd.Flags().StringVar(&watchClass, "class", "", "Only sessions for classes matching this glob")
	watchCmd.Flags().StringVar(&watchTeacher, "teacher", "", "Only sessions recorded by this teacher ID")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	var outputFormat watch.OutputFormat
	switch watchOutputFormat {
	case "default":
		outputFormat = watch.OutputFormatDefault
	case "json":
		outputFormat = watch.OutputFormatJSON
	default:
		return printer.Error(
			"invalid output format",
			"Unknown format: "+watchOutputFormat,
			[]string{"Valid formats: default, json"},
		)
	}

	env, err := openEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := env.store.Ping(ctx); err != nil {
		return printer.ErrorWithContext(
			"Redis connection failed",
			"Could not connect to the remote store.",
			map[string]string{"URL": env.cfg.Redis.URL},
			[]string{"Check redis.url in rollcall.yml or ROLLCALL_REDIS_URL"},
		)
	}

	criteria := &filter.Criteria{ClassGlob: watchClass, TeacherID: watchTeacher}
	return watch.StreamActivity(ctx, env.store, criteria, outputFormat, printer.Out)
}
