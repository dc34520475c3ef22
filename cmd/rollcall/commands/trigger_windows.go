package commands

import "os"

// Windows has no user signal; use 'rollcall sync' instead.
var triggerSignals []os.Signal
