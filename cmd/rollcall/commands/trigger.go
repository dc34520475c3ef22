package commands

import (
	"context"
	"os"

	"go.uber.org/zap"
)

// relayTriggers calls trigger for every signal received on sigs until ctx ends.
func relayTriggers(ctx context.Context, sigs <-chan os.Signal, trigger func(), logger *zap.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case sig := <-sigs:
			logger.Info("sync requested", zap.String("signal", sig.String()))
			trigger()
		}
	}
}
