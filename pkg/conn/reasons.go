package conn

import "github.com/robotalks/tws.go/pkg/bt"

// disconnectAction is how a phone link drop is followed up.
type disconnectAction uint8

const (
	actNone disconnectAction = iota
	actTimeout
	actPairingIfAllowed
	actLinkLoss
	actAlreadyExists
	actForget
)

var disconnectActions = map[bt.DisconnectReason]disconnectAction{
	bt.ReasonConnTimeout:           actTimeout,
	bt.ReasonAuthFail:              actPairingIfAllowed,
	bt.ReasonKeyMiss:               actPairingIfAllowed,
	bt.ReasonRemote:                actPairingIfAllowed,
	bt.ReasonRemotePowerOff:        actPairingIfAllowed,
	bt.ReasonInsufficientResources: actPairingIfAllowed,
	bt.ReasonLMPTimeout:            actLinkLoss,
	bt.ReasonLinkLoss:              actLinkLoss,
	bt.ReasonAlreadyExists:         actAlreadyExists,
	bt.ReasonLocal:                 actNone,
	bt.ReasonTWSPairing:            actForget,
	bt.ReasonSwitchedSlave:         actForget,
}

func actionFor(reason bt.DisconnectReason) disconnectAction {
	return disconnectActions[reason]
}
