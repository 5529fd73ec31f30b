package service

import (
	"math/rand/v2"
	"time"
)

// Clock supplies the current time to the engine
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// SystemClock returns the wall clock in UTC
func SystemClock() Clock { return systemClock{} }

// RandomSource supplies the randomness for coin flips and challenge symbols
type RandomSource interface {
	IntN(n int) int
	Perm(n int) []int
}

type globalRandom struct{}

func (globalRandom) IntN(n int) int   { return rand.IntN(n) }
func (globalRandom) Perm(n int) []int { return rand.Perm(n) }

// DefaultRandom uses the process wide generator, safe for concurrent use
func DefaultRandom() RandomSource { return globalRandom{} }

// CalendarDay returns the UTC calendar day used to count active days
func CalendarDay(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}
