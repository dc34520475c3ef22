package commands

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/dyluth/rollcall/internal/connectivity"
	"github.com/dyluth/rollcall/internal/health"
	"github.com/dyluth/rollcall/internal/printer"
	"github.com/dyluth/rollcall/internal/syncer"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Keep the local queue in sync until interrupted",
	Long: `Run the background sync agent.

The agent probes the remote store every sync.probe_interval. Whenever the
store becomes reachable the local queue is drained, so sessions saved while
offline reach the remote store without further action.

SIGUSR1 asks the agent to drain the queue now. Drains hold a lease on the
queue file, so a concurrent 'rollcall sync' backs off instead of replaying
the same sessions.

Unless sync.health_addr is "off", /healthz reports store reachability and
the number of sessions waiting to sync.

Stop with Ctrl-C or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: runAgent,
}

func init() {
	rootCmd.AddCommand(agentCmd)
}

func runAgent(cmd *cobra.Command, args []string) error {
	env, err := openEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	monitor := connectivity.New(false, env.logger)
	opts := append(env.engineOptions(holderAgent),
		syncer.WithOnSynced(func(r syncer.Result) {
			printer.Synced(len(r.Succeeded))
		}))
	engine := syncer.NewEngine(env.store, env.queue, env.logger, opts...)

	printer.Step("Agent started for namespace '%s' (probe every %v)\n",
		env.cfg.Namespace, env.cfg.Sync.ProbeInterval)

	g, gctx := errgroup.WithContext(ctx)

	if len(triggerSignals) > 0 {
		triggers := make(chan os.Signal, 1)
		signal.Notify(triggers, triggerSignals...)
		defer signal.Stop(triggers)

		printer.Info("Run 'kill -USR1 %d' to sync immediately\n", os.Getpid())
		g.Go(func() error {
			return relayTriggers(gctx, triggers, engine.Trigger, env.logger)
		})
	}

	g.Go(func() error {
		return monitor.Probe(gctx, env.store, env.cfg.Sync.ProbeInterval)
	})

	g.Go(func() error {
		return engine.Run(gctx, monitor)
	})

	g.Go(func() error {
		sub := monitor.Subscribe()
		defer sub.Close()
		for {
			select {
			case <-gctx.Done():
				return nil
			case ev, ok := <-sub.Events():
				if !ok {
					return nil
				}
				if ev.Online {
					printer.Info("Remote store reachable\n")
				} else {
					printer.Warning("Remote store unreachable, saves will be queued\n")
				}
			}
		}
	})

	if env.cfg.HealthEnabled() {
		srv := health.NewServer(env.store, env.queueDepth, env.logger)
		g.Go(func() error {
			return srv.Run(gctx, env.cfg.Sync.HealthAddr)
		})
	}

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		env.logger.Error("agent stopped", zap.Error(err))
		return printer.Error("agent stopped", err.Error(), nil)
	}

	printer.Info("Agent stopped\n")
	return nil
}
