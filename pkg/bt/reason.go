package bt

import "fmt"

// DisconnectReason is the reason code reported with a link drop.
type DisconnectReason uint8

// Disconnect reasons.
const (
	ReasonNone                  DisconnectReason = 0x00
	ReasonConnTimeout           DisconnectReason = 0x04
	ReasonAuthFail              DisconnectReason = 0x05
	ReasonKeyMiss               DisconnectReason = 0x06
	ReasonLinkLoss              DisconnectReason = 0x08
	ReasonAlreadyExists         DisconnectReason = 0x0B
	ReasonInsufficientResources DisconnectReason = 0x0D
	ReasonRemote                DisconnectReason = 0x13
	ReasonRemotePowerOff        DisconnectReason = 0x15
	ReasonLocal                 DisconnectReason = 0x16
	ReasonLMPTimeout            DisconnectReason = 0x22
	ReasonTWSPairing            DisconnectReason = 0xF1
	ReasonSwitchedSlave         DisconnectReason = 0xF2
)

var reasonNames = map[DisconnectReason]string{
	ReasonNone:                  "none",
	ReasonConnTimeout:           "conn-timeout",
	ReasonAuthFail:              "auth-fail",
	ReasonKeyMiss:               "key-miss",
	ReasonLinkLoss:              "link-loss",
	ReasonAlreadyExists:         "already-exists",
	ReasonInsufficientResources: "insufficient-resources",
	ReasonRemote:                "remote",
	ReasonRemotePowerOff:        "remote-power-off",
	ReasonLocal:                 "local",
	ReasonLMPTimeout:            "lmp-timeout",
	ReasonTWSPairing:            "tws-pairing",
	ReasonSwitchedSlave:         "switched-slave",
}

// String implements fmt.Stringer.
func (r DisconnectReason) String() string {
	if name, ok := reasonNames[r]; ok {
		return name
	}
	return fmt.Sprintf("reason(0x%02x)", uint8(r))
}
