// Package systemsignal ties process lifetime to termination signals.
package systemsignal

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// Signals ending the process. SIGKILL and SIGSTOP cannot be caught.
var Signals = []os.Signal{syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT}

// HookSignals returns a context canceled on the first termination signal.
// stop releases the hook.
func HookSignals(parent context.Context) (ctx context.Context, stop context.CancelFunc) {
	return signal.NotifyContext(parent, Signals...)
}
