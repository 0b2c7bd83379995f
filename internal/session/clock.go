// apps/go-server/internal/session/clock.go
//
// Clock abstraction for the settle timer, swapped out in tests.

package session

import "time"

// Timer is the part of *time.Timer the screen needs.
type Timer interface {
	Stop() bool
}

// Clock schedules the settle callback. Tests inject a manual clock.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
	Now() time.Time
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }
func (realClock) Now() time.Time                            { return time.Now() }

// RealClock returns the wall clock.
func RealClock() Clock { return realClock{} }
