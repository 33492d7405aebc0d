package bt

import "time"

// PairParams identifies the product line an earbud pairs with.
type PairParams struct {
	VID     uint16
	PID     uint16
	Magic   uint16
	Timeout time.Duration
}

// Stack is the command surface of the radio stack.
type Stack interface {
	SysState() SysState
	LinkQuality() LinkQuality

	// Connect starts connecting the phone at addr.
	Connect(addr Addr) error
	// Disconnect drops the phone link.
	Disconnect() error
	SetDiscoverable(bool) error
	SetConnectable(bool) error
	IsDiscoverable() bool
	IsConnectable() bool
	// EnterAGPairing makes the device visible for a new phone.
	EnterAGPairing() error
	// ClearPairList forgets all paired phones.
	ClearPairList() error

	// TWSState queries the earbud link.
	TWSState() (TWSState, Role, Channel, error)
	TWSPeerAddr() (Addr, error)
	TWSStartPair(PairParams) error
	TWSRoleSwitch() error
	// TWSSendData sends a packet to the peer. exitSniff wakes the link
	// from low power mode first.
	TWSSendData(data []byte, exitSniff bool) error
	// TWSSetTDSData updates the data advertised to the phone.
	TWSSetTDSData(data []byte) error
}
