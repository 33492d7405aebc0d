package framework

import (
	"context"
	"fmt"
	"time"
)

// Named is an abstraction for things with a name.
type Named interface {
	Name() string
}

// Runnable defines a generic interface for background runners.
type Runnable interface {
	Run(context.Context) error
}

// Tag identifies the subsystem owning a message.
type Tag uint8

// Subsystem tags. One handler slot each.
const (
	TagBT Tag = iota
	TagConn
	TagWWS
	TagEvt
	TagAudio
	TagTone
	TagCharger
	TagBattery
	TagButton
	TagLED
	TagPM
	TagInEar
	TagROConfig
	TagUserConfig
	TagEConn
	TagCLI
	TagOTA
	TagOTASync
	TagMain
	TagMax
)

var tagNames = [TagMax]string{
	"bt", "conn", "wws", "evt", "audio", "tone", "charger", "battery",
	"button", "led", "pm", "inear", "ro-cfg", "usr-cfg", "econn", "cli",
	"ota", "ota-sync", "main",
}

// Valid reports whether the tag is in range.
func (t Tag) Valid() bool {
	return t < TagMax
}

// String implements fmt.Stringer.
func (t Tag) String() string {
	if t.Valid() {
		return tagNames[t]
	}
	return fmt.Sprintf("tag(%d)", uint8(t))
}

// ParseTag converts a tag name back into Tag.
func ParseTag(name string) (Tag, bool) {
	for n, s := range tagNames {
		if s == name {
			return Tag(n), true
		}
	}
	return TagMax, false
}

// Message is the unit of work dispatched by Kernel.
type Message struct {
	Tag     Tag
	ID      uint16
	Payload []byte

	// fn is set on one-shot hooks posted by Kernel.Post.
	fn func(DispatchContext)
	// trigger is set when a delayed message of a timer slot is due.
	trigger *timerTrigger
}

// Sender enqueues messages. It's safe to use from any goroutine.
type Sender interface {
	Send(tag Tag, id uint16, payload []byte) error
}

// TimeSource provides the time for handlers.
type TimeSource interface {
	Time() time.Time
}

// DispatchContext is handed to a Handler for the duration of one dispatch.
// Delayed sends and cancellation are only reachable through it, so they
// always happen on the dispatching goroutine.
type DispatchContext interface {
	TimeSource
	Sender
	// Context retrieves context.Context.
	Context() context.Context
	// SendDelay posts the message after delay. A non-positive delay
	// is the same as Send. At most one delayed message may exist per
	// (tag, id).
	SendDelay(tag Tag, id uint16, payload []byte, delay time.Duration) error
	// Cancel removes the delayed message of (tag, id) and every queued
	// copy not yet dispatched.
	Cancel(tag Tag, id uint16)
}

// Handler processes messages of one subsystem.
type Handler interface {
	HandleMessage(dc DispatchContext, id uint16, payload []byte)
}

// HandlerFunc is the func form of Handler.
type HandlerFunc func(dc DispatchContext, id uint16, payload []byte)

// HandleMessage implements Handler.
func (f HandlerFunc) HandleMessage(dc DispatchContext, id uint16, payload []byte) {
	f(dc, id, payload)
}

// Timer is a pending callback created by Clock.
type Timer interface {
	Stop() bool
}

// Clock abstracts time so timers can be driven in tests.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// KernelAdder registers handlers to a Kernel.
type KernelAdder interface {
	AddToKernel(*Kernel) error
}
