package fxtest

import (
	"context"
	"time"

	fx "github.com/robotalks/tws.go/pkg/framework"
)

// Epoch is the start time of clocks created by NewHarness.
var Epoch = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

// Harness runs a Kernel synchronously on a ManualClock.
type Harness struct {
	Kernel *fx.Kernel
	Clock  *ManualClock
}

// NewHarness creates a Harness. opts are applied after the clock option.
func NewHarness(opts ...fx.Option) *Harness {
	clock := NewManualClock(Epoch)
	opts = append([]fx.Option{fx.WithClock(clock)}, opts...)
	return &Harness{Kernel: fx.NewKernel(opts...), Clock: clock}
}

// Drain dispatches everything queued.
func (h *Harness) Drain() int {
	return h.Kernel.HandlePending(context.Background())
}

// Advance moves time forward, dispatching after every timer that fires.
func (h *Harness) Advance(d time.Duration) {
	h.Clock.AdvanceWith(d, func() { h.Drain() })
	h.Drain()
}

// Do runs fn with a DispatchContext and dispatches whatever it queued.
func (h *Harness) Do(fn func(fx.DispatchContext)) {
	if err := h.Kernel.Post(fn); err != nil {
		panic(err)
	}
	h.Drain()
}

// Elapsed returns the time passed since Epoch.
func (h *Harness) Elapsed() time.Duration {
	return h.Clock.Now().Sub(Epoch)
}
