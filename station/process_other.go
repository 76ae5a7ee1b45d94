//go:build !unix

package station

// withSignalsMasked is a no-op on non-POSIX platforms, which have no
// fork/signal-mask race to guard against.
func withSignalsMasked(start func() error) error {
	return start()
}
