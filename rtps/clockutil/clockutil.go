// Package clockutil isolates wall-clock reads behind a small interface, so
// deadline/lifespan/lease-duration logic and the timer driver can be driven
// by a fake clock in tests instead of real sleeps.
package clockutil

import "time"

// Clock abstracts wall-clock access.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
	NewTimer(d time.Duration) Timer
}

// Timer abstracts a restartable, stoppable timer.
type Timer interface {
	C() <-chan time.Time
	Reset(d time.Duration) bool
	Stop() bool
}

// System is the real wall-clock Clock, backed by the standard library.
type System struct{}

func (System) Now() time.Time { return time.Now() }

func (System) After(d time.Duration) <-chan time.Time { return time.After(d) }

func (System) NewTimer(d time.Duration) Timer { return &systemTimer{t: time.NewTimer(d)} }

type systemTimer struct{ t *time.Timer }

func (s *systemTimer) C() <-chan time.Time        { return s.t.C }
func (s *systemTimer) Reset(d time.Duration) bool { return s.t.Reset(d) }
func (s *systemTimer) Stop() bool                 { return s.t.Stop() }
