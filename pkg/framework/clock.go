package framework

import "time"

type wallClock struct{}

// WallClock is the Clock backed by package time.
var WallClock Clock = wallClock{}

func (wallClock) Now() time.Time {
	return time.Now()
}

func (wallClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
