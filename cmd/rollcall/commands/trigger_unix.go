//go:build !windows

package commands

import (
	"os"
	"syscall"
)

// triggerSignals ask a running agent to drain now.
var triggerSignals = []os.Signal{syscall.SIGUSR1}
