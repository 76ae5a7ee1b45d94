package flexplan

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Contact addresses a worker class, optionally narrowed to one running
// instance. A zero-value InstanceID means "any/all instances of this
// worker class", matching the workshop's class-vs-instance routing.
type Contact struct {
	WorkerClassID string
	InstanceID    string
	Tags          *Set[string]
}

// NewContact addresses every instance of workerClassID carrying all of tags.
func NewContact(workerClassID string, tags ...string) Contact {
	return Contact{WorkerClassID: workerClassID, Tags: NewSet(tags...)}
}

// WithInstance narrows c to a single freshly minted instance identity.
func (c Contact) WithInstance() Contact {
	c.InstanceID = uuid.NewString()
	return c
}

// ForInstance narrows c to a specific, already-known instance id.
func (c Contact) ForInstance(instanceID string) Contact {
	c.InstanceID = instanceID
	return c
}

// IsInstance reports whether c addresses one running instance rather than a
// whole worker class.
func (c Contact) IsInstance() bool { return c.InstanceID != "" }

// Instruction identifies what a worker should do with a mail: either a
// method reference on a worker class, or a reserved runtime sentinel
// (terminate, introspect, and the like). Reserved instructions never
// reach user worker code.
type Instruction struct {
	WorkerClassID string
	MethodID      string
	Reserved      string
	Call          func(ctx context.Context, receiver any, args []any, kwargs map[string]any) (any, error)
}

// IsReserved reports whether this is a runtime-reserved instruction rather
// than a user method call.
func (i Instruction) IsReserved() bool { return i.Reserved != "" }

// Reserved instruction sentinels. The workshop rejects mail carrying one
// with ErrReservedInstruction; stations and workbenches do not act on them.
const (
	ReservedTerminate  = "terminate"
	ReservedIntrospect = "introspect"
	ReservedHeartbeat  = "heartbeat"
)

// NewMethodInstruction builds an Instruction that invokes method on
// instances of workerClassID.
func NewMethodInstruction(workerClassID, methodID string, call func(ctx context.Context, receiver any, args []any, kwargs map[string]any) (any, error)) Instruction {
	return Instruction{WorkerClassID: workerClassID, MethodID: methodID, Call: call}
}

// futureSetter is the type-erased write side of a Future[R], letting a Mail
// carry a result sink without the mailbox/station plumbing needing to know
// R.
type futureSetter interface {
	setResult(any) error
	setException(error) error
}

type futureSetterAdapter[R any] struct{ f *Future[R] }

func (a futureSetterAdapter[R]) setResult(v any) error {
	rv, ok := v.(R)
	if !ok {
		return fmt.Errorf("%s: result type %T does not match expected type", Namespace, v)
	}
	return a.f.SetResult(rv)
}

func (a futureSetterAdapter[R]) setException(err error) error { return a.f.SetException(err) }

// MailMeta carries routing metadata that travels with a Mail but is not
// part of its payload. Trace accumulates the id of every router that
// forwarded the mail, in hop order.
type MailMeta struct {
	Source Contact
	Target Contact
	Trace  []string
}

// Mail is the wire unit a Mailbox transports: an instruction to run, its
// arguments, and where to deliver the result. Mail is deliberately
// untyped (any-valued future sink) since a single mailbox carries
// instructions bound for many differently-typed tasks.
type Mail struct {
	Instruction Instruction
	Args        []any
	KwArgs      map[string]any
	Meta        MailMeta

	// Fatal, when set, marks this mail as an already-failed delivery (e.g.
	// a worker failed to construct) rather than an instruction to run. A
	// workbench that pulls a fatal mail delivers the error to its sink (if
	// any) and then terminates its loop, matching the "exception mail
	// propagates as a fatal worker error" rule.
	Fatal error

	sink futureSetter
}

// NewFatalMail wraps err as a fatal mail, optionally delivering it to a
// sink future of type R.
func NewFatalMail[R any](err error, future *Future[R]) *Mail {
	m := &Mail{Fatal: err}
	if future != nil {
		m.sink = futureSetterAdapter[R]{f: future}
	}
	return m
}

// Deliver records result on the mail's future sink, or err if non-nil.
func (m *Mail) Deliver(result any, err error) error {
	if m.sink == nil {
		return nil
	}
	if err != nil {
		return m.sink.setException(err)
	}
	return m.sink.setResult(result)
}

// Message is the builder a caller uses to address, parameterize, and send
// an Instruction. Each step returns *Message[R] so calls chain, and
// Submit/Emit are the only terminal operations.
type Message[R any] struct {
	instruction Instruction
	args        []any
	kwargs      map[string]any
	paramsSet   bool
	receivers   []Contact
	notifyAll   bool
	toSet       bool
}

// NewMessage starts building a message carrying instruction.
func NewMessage[R any](instruction Instruction) *Message[R] {
	return &Message[R]{instruction: instruction}
}

// Params attaches positional and keyword arguments. It may be called at
// most once per message.
func (m *Message[R]) Params(args []any, kwargs map[string]any) (*Message[R], error) {
	if m.paramsSet {
		return nil, ErrMessageParamsSet
	}
	m.args = args
	m.kwargs = kwargs
	m.paramsSet = true
	return m, nil
}

// To addresses the message to one or more receivers. notifyAll marks a
// broadcast: Submit rejects a broadcast message, and Emit sends one copy
// of the mail to every receiver whether or not notifyAll is set.
func (m *Message[R]) To(receivers []Contact, notifyAll bool) *Message[R] {
	m.receivers = receivers
	m.notifyAll = notifyAll
	m.toSet = true
	return m
}

// Submit sends the message and returns a Future resolving to the single
// receiver's result. It requires exactly one receiver and no broadcast;
// use Emit for fire-and-forget or multi-receiver sends.
func (m *Message[R]) Submit(ctx context.Context) (*Future[R], error) {
	if !m.toSet || len(m.receivers) != 1 || m.notifyAll {
		return nil, fmt.Errorf("%s: submit requires exactly one receiver and no broadcast", Namespace)
	}
	outbox, ok := OutboxFromContext(ctx)
	if !ok {
		return nil, ErrNoContext
	}
	future := NewFuture[R]()
	outbox.Put(&Mail{
		Instruction: m.instruction,
		Args:        m.args,
		KwArgs:      m.kwargs,
		Meta:        MailMeta{Target: m.receivers[0]},
		sink:        futureSetterAdapter[R]{f: future},
	})
	return future, nil
}

// Emit sends the message to every receiver without waiting for or
// exposing a result; it is the fire-and-forget counterpart to Submit and
// is the only way to address a broadcast (notifyAll) target.
func (m *Message[R]) Emit(ctx context.Context) error {
	if !m.toSet || len(m.receivers) == 0 {
		return fmt.Errorf("%s: emit requires at least one receiver", Namespace)
	}
	outbox, ok := OutboxFromContext(ctx)
	if !ok {
		return ErrNoContext
	}
	for _, r := range m.receivers {
		outbox.Put(&Mail{
			Instruction: m.instruction,
			Args:        m.args,
			KwArgs:      m.kwargs,
			Meta:        MailMeta{Target: r},
		})
	}
	return nil
}
