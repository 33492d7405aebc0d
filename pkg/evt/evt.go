// Package evt lists the system events surfaced by the connectivity core.
package evt

import "strconv"

// Event is a system event id. User events from the button layer share
// the same space and are forwarded between earbuds verbatim.
type Event uint16

// System events.
const (
	None Event = iota
	LinkLoss
	PowerOnReconnectFailed
	LinkLossReconnectFailed
	WWSConnected
	WWSDisconnected
	WWSRoleSwitch
	// ClearPDL asks to forget every paired phone.
	ClearPDL
	// UserBase is the first id available to user events.
	UserBase Event = 0x100
)

var names = map[Event]string{
	None:                    "none",
	LinkLoss:                "link-loss",
	PowerOnReconnectFailed:  "power-on-reconnect-failed",
	LinkLossReconnectFailed: "link-loss-reconnect-failed",
	WWSConnected:            "wws-connected",
	WWSDisconnected:         "wws-disconnected",
	WWSRoleSwitch:           "wws-role-switch",
	ClearPDL:                "clear-pdl",
}

// String implements fmt.Stringer.
func (e Event) String() string {
	if name, ok := names[e]; ok {
		return name
	}
	if e >= UserBase {
		return "user-" + strconv.Itoa(int(e-UserBase))
	}
	return "event-" + strconv.Itoa(int(e))
}

// Emitter publishes events to the rest of the system.
type Emitter interface {
	Emit(Event)
}

// EmitFunc is the func form of Emitter.
type EmitFunc func(Event)

// Emit implements Emitter.
func (f EmitFunc) Emit(e Event) {
	f(e)
}

// Recorder is an Emitter keeping every event, for tests.
type Recorder struct {
	Events    []Event
	Forwarded []Event
}

// Forward records a user event received from the peer.
func (r *Recorder) Forward(e Event) {
	r.Forwarded = append(r.Forwarded, e)
}

// Emit implements Emitter.
func (r *Recorder) Emit(e Event) {
	r.Events = append(r.Events, e)
}

// Count returns how many times e was emitted.
func (r *Recorder) Count(e Event) (n int) {
	for _, v := range r.Events {
		if v == e {
			n++
		}
	}
	return
}
