package commands

import (
	"context"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRelayTriggers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sigs := make(chan os.Signal, 1)

	var triggered atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- relayTriggers(ctx, sigs, func() { triggered.Add(1) }, zap.NewNop())
	}()

	sigs <- os.Interrupt
	sigs <- os.Interrupt
	assert.Eventually(t, func() bool { return triggered.Load() == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("relay did not stop on cancel")
	}
}

func TestTriggerSignalsDoNotIncludeShutdown(t *testing.T) {
	for _, sig := range triggerSignals {
		assert.NotEqual(t, os.Interrupt, sig)
	}
}
