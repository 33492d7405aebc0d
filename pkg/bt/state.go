package bt

import (
	"fmt"
	"strings"
)

// SysState is the capability tier of the local phone link. Tiers are
// ordered, so "at least connected" is SysState >= Connected.
type SysState uint16

// System states.
const (
	Disabled      SysState = 0x0001
	WWSPairing    SysState = 0x0002
	Idle          SysState = 0x0004
	Connectable   SysState = 0x0008
	AGPairing     SysState = 0x0010
	Connected     SysState = 0x0020
	A2DPStreaming SysState = 0x0040
	IncomingCall  SysState = 0x0080
	OutgoingCall  SysState = 0x0100
	ActiveCall    SysState = 0x0200
	TWCWaiting    SysState = 0x0400
	TWCHeld       SysState = 0x0800
	Custom1       SysState = 0x4000
	Custom2       SysState = 0x8000
)

var sysStateNames = []struct {
	state SysState
	name  string
}{
	{Disabled, "disabled"},
	{WWSPairing, "wws-pairing"},
	{Idle, "idle"},
	{Connectable, "connectable"},
	{AGPairing, "ag-pairing"},
	{Connected, "connected"},
	{A2DPStreaming, "a2dp-streaming"},
	{IncomingCall, "incoming-call"},
	{OutgoingCall, "outgoing-call"},
	{ActiveCall, "active-call"},
	{TWCWaiting, "twc-waiting"},
	{TWCHeld, "twc-held"},
	{Custom1, "custom1"},
	{Custom2, "custom2"},
}

// String implements fmt.Stringer.
func (s SysState) String() string {
	var names []string
	for _, n := range sysStateNames {
		if s&n.state != 0 {
			names = append(names, n.name)
		}
	}
	if len(names) == 0 {
		return fmt.Sprintf("state(0x%x)", uint16(s))
	}
	return strings.Join(names, "|")
}

// ParseSysState parses a single tier name.
func ParseSysState(name string) (SysState, bool) {
	for _, n := range sysStateNames {
		if n.name == name {
			return n.state, true
		}
	}
	return 0, false
}

// IsConnected reports whether the phone link is at least connected.
func (s SysState) IsConnected() bool {
	return s >= Connected
}
