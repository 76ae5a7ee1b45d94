package workshop

import "time"

// Config holds Workshop configuration.
type Config struct {
	// InboxSize defines the buffer size of the workshop's own inbox, the
	// entry point external callers post mail to. Mail from worker
	// stations' outboxes is polled and routed without passing through it.
	// Default: 64.
	InboxSize int

	// PollInterval is how long each run-loop tick waits on the workshop's
	// own inbox before moving on to poll every registered station's
	// outbox.
	// Default: 20ms.
	PollInterval time.Duration
}

// defaultConfig centralizes default values for Config. These defaults are
// the base that NewWorkshop applies its options to.
func defaultConfig() Config {
	return Config{
		InboxSize:    64,
		PollInterval: 20 * time.Millisecond,
	}
}

// validateConfig performs lightweight invariant checks.
func validateConfig(cfg *Config) error {
	if cfg.InboxSize <= 0 {
		return errInvalidInboxSize
	}
	if cfg.PollInterval <= 0 {
		return errInvalidPollInterval
	}
	return nil
}

// Option configures a Workshop. Use NewWorkshop(classID, registry, observer, opts...).
type Option func(*Config)

// WithInboxSize sets the buffer size of the workshop's own inbox.
func WithInboxSize(n int) Option {
	return func(c *Config) { c.InboxSize = n }
}

// WithPollInterval sets the run loop's own-inbox poll timeout.
func WithPollInterval(d time.Duration) Option {
	return func(c *Config) { c.PollInterval = d }
}
