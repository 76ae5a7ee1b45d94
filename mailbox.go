package flexplan

import (
	"context"
	"time"
)

// Mailbox is a FIFO, blocking queue of mail between the outside world, the
// supervisor, and stations, backed by a buffered channel. A nil mail is a
// poison pill used to signal termination.
type Mailbox struct {
	ch chan *Mail
}

// NewMailbox constructs a Mailbox with the given channel buffer size (0 for
// unbuffered).
func NewMailbox(bufferSize int) *Mailbox {
	return &Mailbox{ch: make(chan *Mail, bufferSize)}
}

// Put blocking-enqueues mail. A nil mail enqueues a poison pill.
func (m *Mailbox) Put(mail *Mail) {
	m.ch <- mail
}

// Get waits up to timeout for the next mail. ok is false on timeout. A nil
// mail with ok true is the poison pill / terminate signal.
func (m *Mailbox) Get(timeout time.Duration) (mail *Mail, ok bool) {
	if timeout <= 0 {
		select {
		case mail = <-m.ch:
			return mail, true
		default:
			return nil, false
		}
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case mail = <-m.ch:
		return mail, true
	case <-t.C:
		return nil, false
	}
}

// GetContext waits for the next mail or for ctx to be done.
func (m *Mailbox) GetContext(ctx context.Context) (mail *Mail, ok bool) {
	select {
	case mail = <-m.ch:
		return mail, true
	case <-ctx.Done():
		return nil, false
	}
}

// Empty reports whether the mailbox currently has no buffered mail.
func (m *Mailbox) Empty() bool { return len(m.ch) == 0 }

// Len reports the number of mails currently buffered.
func (m *Mailbox) Len() int { return len(m.ch) }

// outboxKey is the private context key used to discover the enclosing
// workbench's outbox so that Message.Submit/Emit, called from inside a
// running worker, can post onto that worker's outbox without an explicit
// parameter — the "current context" pointer from the design notes,
// threaded via context.Context rather than a package-level global so it
// stays safe across concurrent stations.
type outboxKey struct{}

// ContextWithOutbox returns a copy of ctx carrying outbox as the current
// workbench context. A workbench installs this around every instruction
// invocation and the value does not outlive that call.
func ContextWithOutbox(ctx context.Context, outbox *Mailbox) context.Context {
	return context.WithValue(ctx, outboxKey{}, outbox)
}

// OutboxFromContext retrieves the outbox installed by ContextWithOutbox, if
// any.
func OutboxFromContext(ctx context.Context) (*Mailbox, bool) {
	ob, ok := ctx.Value(outboxKey{}).(*Mailbox)
	return ob, ok
}
