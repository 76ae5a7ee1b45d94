//go:build unix

package station

import (
	"os"
	"os/signal"
	"syscall"
)

// withSignalsMasked runs start (which forks/execs a child process) while
// temporarily intercepting SIGINT and SIGTERM delivery to this process, so
// a signal arriving in the narrow window around process creation cannot
// race the bookkeeping that records the new child. Any signal caught
// during the window is re-delivered to this process immediately after
// start returns.
func withSignalsMasked(start func() error) error {
	caught := make(chan os.Signal, 2)
	signal.Notify(caught, syscall.SIGINT, syscall.SIGTERM)

	err := start()
	signal.Stop(caught)

	for len(caught) > 0 {
		sig := <-caught
		proc, findErr := os.FindProcess(os.Getpid())
		if findErr == nil {
			proc.Signal(sig)
		}
	}
	return err
}
