package bt

import (
	"fmt"
	"strconv"
	"strings"
)

// TWSState is the state of the earbud-to-earbud link.
type TWSState uint8

// TWS link states.
const (
	TWSDisabled TWSState = iota
	TWSDisconnected
	TWSPairing
	TWSConnecting
	TWSConnected
	TWSRoleSwitching
)

func (s TWSState) String() string {
	switch s {
	case TWSDisabled:
		return "disabled"
	case TWSDisconnected:
		return "disconnected"
	case TWSPairing:
		return "pairing"
	case TWSConnecting:
		return "connecting"
	case TWSConnected:
		return "connected"
	case TWSRoleSwitching:
		return "role-switching"
	}
	return "tws-state(" + strconv.Itoa(int(s)) + ")"
}

// Role is the role in the TWS link.
type Role uint8

// TWS roles.
const (
	RoleUnknown Role = iota
	RoleMaster
	RoleSlave
)

// IsMaster is true for master and for an undecided role.
func (r Role) IsMaster() bool {
	return r == RoleMaster || r == RoleUnknown
}

func (r Role) String() string {
	switch r {
	case RoleMaster:
		return "master"
	case RoleSlave:
		return "slave"
	}
	return "unknown"
}

// Channel is the audio channel of the device.
type Channel uint8

// Channels.
const (
	ChannelLeft Channel = iota
	ChannelRight
	ChannelStereo
)

func (c Channel) String() string {
	switch c {
	case ChannelLeft:
		return "left"
	case ChannelRight:
		return "right"
	}
	return "stereo"
}

// ParseChannel accepts "left", "right", "stereo" or their initials.
func ParseChannel(s string) (Channel, error) {
	switch strings.ToLower(s) {
	case "left", "l":
		return ChannelLeft, nil
	case "right", "r":
		return ChannelRight, nil
	case "stereo", "s":
		return ChannelStereo, nil
	}
	return ChannelStereo, fmt.Errorf("invalid channel %q", s)
}

// Peer returns the channel of the other earbud.
func (c Channel) Peer() Channel {
	switch c {
	case ChannelLeft:
		return ChannelRight
	case ChannelRight:
		return ChannelLeft
	}
	return ChannelStereo
}

// RoleChangedReason explains a role change reported by the radio.
type RoleChangedReason uint8

// Role change reasons.
const (
	RoleChangedUser RoleChangedReason = iota
	RoleChangedConnectFail
	RoleChangedRSSI
	RoleChangedLinkLoss
	RoleChangedPeerPowerOff
	RoleChangedPeerNotFound
)

// BoxState is the state of the charging case.
type BoxState uint8

// Charging case states.
const (
	BoxUnknown BoxState = iota
	BoxOpened
	BoxClosed
)

// ListenMode is the ambient sound mode.
type ListenMode uint8

// Listen modes.
const (
	ListenUnknown      ListenMode = 0
	ListenNormal       ListenMode = 1
	ListenANC          ListenMode = 2
	ListenTransparency ListenMode = 3
)

// Addr is a Bluetooth device address.
type Addr [6]byte

// TestAddr is the address used by factory test equipment.
var TestAddr = Addr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// IsZero reports whether the address is unset.
func (a Addr) IsZero() bool {
	return a == Addr{}
}

// String formats the address as colon separated hex, most significant first.
func (a Addr) String() string {
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X", a[5], a[4], a[3], a[2], a[1], a[0])
}

// ParseAddr parses the String format.
func ParseAddr(s string) (a Addr, err error) {
	parts := strings.Split(s, ":")
	if len(parts) != len(a) {
		return a, fmt.Errorf("invalid address %q", s)
	}
	for n, part := range parts {
		v, err := strconv.ParseUint(part, 16, 8)
		if err != nil {
			return a, fmt.Errorf("invalid address %q: %v", s, err)
		}
		a[len(a)-1-n] = byte(v)
	}
	return a, nil
}

// RSSIInvalid marks an RSSI sample that is not available.
const RSSIInvalid int8 = -127

// LinkQuality is sampled from the radio.
type LinkQuality struct {
	CRCErrRate uint8
	SeqErrRate uint8
	// PhoneRSSI is the average RSSI of the phone link.
	PhoneRSSI int8
	// PeerRSSI is the average RSSI of the earbud link.
	PeerRSSI int8
}
