package runtime

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Supervisor groups every background loop a DomainParticipant owns — SPDP
// announce, the periodic reliability flush, the transport receive loop —
// under one errgroup.Group, so a fatal error in any one of them
// cancels the shared context and Wait reports the first failure instead of
// leaking the rest as orphaned goroutines.
type Supervisor struct {
	group  *errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc
}

// NewSupervisor derives a cancellable context from parent and returns a
// Supervisor ready to Go() background loops onto it.
func NewSupervisor(parent context.Context) *Supervisor {
	ctx, cancel := context.WithCancel(parent)
	group, ctx := errgroup.WithContext(ctx)
	return &Supervisor{group: group, ctx: ctx, cancel: cancel}
}

// Context returns the context every supervised goroutine should select on
// to notice shutdown.
func (s *Supervisor) Context() context.Context { return s.ctx }

// Go runs fn on its own goroutine; a non-nil return cancels every other
// supervised goroutine's context.
func (s *Supervisor) Go(name string, fn func(ctx context.Context) error) {
	s.group.Go(func() error {
		err := fn(s.ctx)
		if err != nil && s.ctx.Err() == nil {
			log.Error().Err(err).Str("loop", name).Msg("runtime: supervised loop exited with error")
		}
		return err
	})
}

// Shutdown cancels every supervised goroutine and waits for them to exit,
// returning the first non-context-cancellation error, if any.
func (s *Supervisor) Shutdown() error {
	s.cancel()
	if err := s.group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
