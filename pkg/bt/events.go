package bt

import (
	"encoding/binary"
	"errors"
)

// Radio events, posted as fx.TagBT messages.
const (
	EvtPowerOn uint16 = iota + 1
	EvtPowerOff
	EvtConnState
	EvtSysState
	EvtTWSState
	EvtTWSRole
	EvtTWSData
	EvtTDSData
	EvtModeChanged
	EvtVisibility
)

// ErrEventLength indicates a radio event payload of unexpected size.
var ErrEventLength = errors.New("bad event length")

// ConnStateEvent reports the phone link going up or down.
type ConnStateEvent struct {
	Connected bool
	Reason    DisconnectReason
}

// Encode encodes the event payload.
func (e ConnStateEvent) Encode() []byte {
	return []byte{boolByte(e.Connected), byte(e.Reason)}
}

// DecodeConnState decodes a ConnStateEvent.
func DecodeConnState(b []byte) (e ConnStateEvent, err error) {
	if len(b) != 2 {
		return e, ErrEventLength
	}
	return ConnStateEvent{Connected: b[0] != 0, Reason: DisconnectReason(b[1])}, nil
}

// EncodeSysState encodes the payload of EvtSysState.
func EncodeSysState(s SysState) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, uint16(s))
	return b
}

// DecodeSysState decodes the payload of EvtSysState.
func DecodeSysState(b []byte) (SysState, error) {
	if len(b) != 2 {
		return 0, ErrEventLength
	}
	return SysState(binary.LittleEndian.Uint16(b)), nil
}

// TWSStateEvent reports a change of the earbud link state.
type TWSStateEvent struct {
	State  TWSState
	Reason DisconnectReason
	Addr   Addr
}

// Encode encodes the event payload.
func (e TWSStateEvent) Encode() []byte {
	b := make([]byte, 8)
	b[0], b[1] = byte(e.State), byte(e.Reason)
	copy(b[2:], e.Addr[:])
	return b
}

// DecodeTWSState decodes a TWSStateEvent.
func DecodeTWSState(b []byte) (e TWSStateEvent, err error) {
	if len(b) != 8 {
		return e, ErrEventLength
	}
	e.State, e.Reason = TWSState(b[0]), DisconnectReason(b[1])
	copy(e.Addr[:], b[2:])
	return e, nil
}

// TWSRoleEvent reports a role change.
type TWSRoleEvent struct {
	Role   Role
	Reason RoleChangedReason
	Addr   Addr
}

// Encode encodes the event payload.
func (e TWSRoleEvent) Encode() []byte {
	b := make([]byte, 8)
	b[0], b[1] = byte(e.Role), byte(e.Reason)
	copy(b[2:], e.Addr[:])
	return b
}

// DecodeTWSRole decodes a TWSRoleEvent.
func DecodeTWSRole(b []byte) (e TWSRoleEvent, err error) {
	if len(b) != 8 {
		return e, ErrEventLength
	}
	e.Role, e.Reason = Role(b[0]), RoleChangedReason(b[1])
	copy(e.Addr[:], b[2:])
	return e, nil
}

// TDSData is the volume pair the master advertises through TDS, as
// received by the slave. Addr is the phone that carried it.
type TDSData struct {
	Call  uint8
	Music uint8
	Addr  Addr
}

// Encode encodes the advertised volumes, without the address.
func (d TDSData) Encode() []byte {
	return []byte{d.Call, d.Music}
}

// EncodeEvent encodes the payload of EvtTDSData.
func (d TDSData) EncodeEvent() []byte {
	b := make([]byte, 8)
	b[0], b[1] = d.Call, d.Music
	copy(b[2:], d.Addr[:])
	return b
}

// DecodeTDSData decodes the payload of EvtTDSData.
func DecodeTDSData(b []byte) (d TDSData, err error) {
	if len(b) != 8 {
		return d, ErrEventLength
	}
	d.Call, d.Music = b[0], b[1]
	copy(d.Addr[:], b[2:])
	return d, nil
}

// EncodeModeChanged encodes the payload of EvtModeChanged. single is
// true when the earbud works alone.
func EncodeModeChanged(single bool) []byte {
	return []byte{boolByte(single)}
}

// DecodeModeChanged decodes the payload of EvtModeChanged.
func DecodeModeChanged(b []byte) (single bool, err error) {
	if len(b) != 1 {
		return false, ErrEventLength
	}
	return b[0] != 0, nil
}

// VisibilityEvent reports the local visibility after it was applied.
type VisibilityEvent struct {
	Discoverable bool
	Connectable  bool
}

// Encode encodes the event payload.
func (e VisibilityEvent) Encode() []byte {
	return []byte{boolByte(e.Discoverable), boolByte(e.Connectable)}
}

// DecodeVisibility decodes a VisibilityEvent.
func DecodeVisibility(b []byte) (e VisibilityEvent, err error) {
	if len(b) != 2 {
		return e, ErrEventLength
	}
	return VisibilityEvent{Discoverable: b[0] != 0, Connectable: b[1] != 0}, nil
}

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}
