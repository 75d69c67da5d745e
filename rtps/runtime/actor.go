// Package runtime implements the actor substrate of spec.md §5: an Actor
// runs the operations sent to it on its own goroutine, one at a time, in
// the order they were enqueued. In this module each DataWriter owns an
// Actor for its write/dispose/unregister calls; the other entities call
// into the endpoint package directly, whose writers and readers guard their
// state with their own mutexes.
//
// The mailbox is a bounded channel: Tell's send is non-blocking and logs and
// drops on overflow rather than stalling the sender, while Ask waits until
// its mail is queued and has run, or until its context is done.
package runtime

import (
	"context"

	"github.com/rs/xid"
	"github.com/rs/zerolog/log"

	"rtpsgo/rtps/metrics"
)

// mailboxCapacity bounds how many pending mails an actor can queue before
// Tell starts dropping instead of blocking the caller.
const mailboxCapacity = 256

// Mail is one unit of work delivered to an actor: Run executes on the
// actor's own goroutine, and Reply (if non-nil) is closed after Run
// returns so a caller can block on a one-shot response.
type Mail struct {
	CorrelationId string
	Run           func(ctx context.Context)
	Reply         chan struct{}
}

// Actor is a single-threaded message loop: every Mail delivered to it runs
// to completion before the next one starts, giving the handler closures
// exclusive access to whatever state they close over without their own
// locks.
type Actor struct {
	name    string
	mailbox chan Mail
	done    chan struct{}
}

// NewActor starts an actor's message loop under ctx and returns a handle
// for sending it work. The loop exits when ctx is cancelled.
func NewActor(ctx context.Context, name string) *Actor {
	a := &Actor{
		name:    name,
		mailbox: make(chan Mail, mailboxCapacity),
		done:    make(chan struct{}),
	}
	go a.loop(ctx)
	return a
}

func (a *Actor) loop(ctx context.Context) {
	defer close(a.done)
	for {
		metrics.MailboxDepth.WithLabelValues(a.name).Set(float64(len(a.mailbox)))
		select {
		case <-ctx.Done():
			return
		case mail := <-a.mailbox:
			mail.Run(ctx)
			if mail.Reply != nil {
				close(mail.Reply)
			}
		}
	}
}

// Tell enqueues fn for asynchronous execution on the actor's goroutine,
// dropping it (and logging) if the mailbox is full rather than blocking the
// caller — fire-and-forget operations like an inbound DATA submessage must
// never stall the receiver's dispatch loop over one slow actor.
func (a *Actor) Tell(fn func(ctx context.Context)) {
	select {
	case a.mailbox <- Mail{CorrelationId: xid.New().String(), Run: fn}:
	default:
		log.Warn().Str("actor", a.name).Msg("runtime: mailbox full, dropping mail")
	}
}

// Ask enqueues fn and blocks until it has run (or ctx is cancelled),
// for request/response operations like write() that must observe their own
// effect before returning.
func (a *Actor) Ask(ctx context.Context, fn func(ctx context.Context)) error {
	reply := make(chan struct{})
	mail := Mail{CorrelationId: xid.New().String(), Run: fn, Reply: reply}
	select {
	case a.mailbox <- mail:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-reply:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Name returns the actor's label, used for mailbox-depth metrics and logs.
func (a *Actor) Name() string { return a.name }

// Wait blocks until the actor's loop has exited.
func (a *Actor) Wait() { <-a.done }
