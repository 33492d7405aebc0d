package wws

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/robotalks/tws.go/pkg/bt"
	"github.com/robotalks/tws.go/pkg/evt"
	fx "github.com/robotalks/tws.go/pkg/framework"
)

// MsgID is the first byte of every packet between earbuds.
type MsgID uint8

// Message ids on the earbud link. The values are part of the wire format.
const (
	IDConnectedSync MsgID = iota
	IDUsrEvt
	IDInEar
	IDInEarEnableReq
	IDCharger
	IDBattery
	IDBoxState
	IDResetPDL
	IDVolume
	IDCallVolume
	IDMusicVolume
	IDListenMode
	IDANCLevel
	IDTransparencyLevel
	IDSetKeyConfig
	IDGetKeyConfig
	IDGetKeyConfigRsp
	IDResetKeyConfig
	IDVisibility
	IDVolSetReq
	IDListenModeSetReq
	IDPDLClearReq
	IDVolumeSyncReq
	IDRemoteMsg
	IDGetRSSIReq
	IDGetRSSIRsp
	IDGameMode
	idMax
)

var msgNames = [idMax]string{
	"connected-sync", "usr-evt", "in-ear", "in-ear-enable-req", "charger",
	"battery", "box-state", "reset-pdl", "volume", "call-volume",
	"music-volume", "listen-mode", "anc-level", "transparency-level",
	"set-key-config", "get-key-config", "get-key-config-rsp",
	"reset-key-config", "visibility", "vol-set-req", "listen-mode-set-req",
	"pdl-clear-req", "volume-sync-req", "remote-msg", "get-rssi-req",
	"get-rssi-rsp", "game-mode",
}

func (id MsgID) String() string {
	if id < idMax {
		return msgNames[id]
	}
	return fmt.Sprintf("msg(%d)", uint8(id))
}

// Limits of variable length messages.
const (
	MaxKeyStates        = 8
	RemoteHeaderLen     = 8
	MaxRemoteMsgParam   = 520
	connectedSyncLen    = 13
	remoteParamLenOff   = 4
	getKeyConfigItemLen = 3
)

var (
	// ErrMsgLength indicates a packet of wrong size for its id.
	ErrMsgLength = errors.New("bad message length")
	// ErrUnknownMsg indicates an unknown message id.
	ErrUnknownMsg = errors.New("unknown message")
	// ErrTooManyKeys is returned when more than MaxKeyStates are queried.
	ErrTooManyKeys = errors.New("too many key states")
	// ErrParamTooLarge is returned for a remote message over MaxRemoteMsgParam.
	ErrParamTooLarge = errors.New("remote param too large")
)

// MsgError is a decoding error of a message.
type MsgError struct {
	ID  MsgID
	Len int
	Err error
}

func (e *MsgError) Error() string {
	return fmt.Sprintf("%s (%d bytes): %v", e.ID, e.Len, e.Err)
}

// Unwrap returns the underlying error.
func (e *MsgError) Unwrap() error {
	return e.Err
}

// Msg is a message between earbuds.
type Msg interface {
	ID() MsgID
	Encode() []byte
}

type decodeFunc func([]byte) (Msg, error)

var decoders = [idMax]decodeFunc{
	IDConnectedSync:     decodeConnectedSync,
	IDUsrEvt:            decodeUsrEvt,
	IDInEar:             decodeInEar,
	IDInEarEnableReq:    decodeInEarEnableReq,
	IDCharger:           decodeCharger,
	IDBattery:           decodeBattery,
	IDBoxState:          decodeBoxState,
	IDResetPDL:          decodeEmpty(ResetPDL{}),
	IDVolume:            decodeVolume,
	IDCallVolume:        decodeCallVolume,
	IDMusicVolume:       decodeMusicVolume,
	IDListenMode:        decodeListenMode,
	IDANCLevel:          decodeANCLevel,
	IDTransparencyLevel: decodeTransparencyLevel,
	IDSetKeyConfig:      decodeSetKeyConfig,
	IDGetKeyConfig:      decodeGetKeyConfig,
	IDGetKeyConfigRsp:   decodeGetKeyConfigRsp,
	IDResetKeyConfig:    decodeEmpty(ResetKeyConfig{}),
	IDVisibility:        decodeVisibility,
	IDVolSetReq:         decodeVolSetReq,
	IDListenModeSetReq:  decodeListenModeSetReq,
	IDPDLClearReq:       decodeEmpty(PDLClearReq{}),
	IDVolumeSyncReq:     decodeVolumeSyncReq,
	IDRemoteMsg:         decodeRemoteMsg,
	IDGetRSSIReq:        decodeEmpty(GetRSSIReq{}),
	IDGetRSSIRsp:        decodeGetRSSIRsp,
	IDGameMode:          decodeGameMode,
}

// DecodeMsg decodes a packet received from the peer.
func DecodeMsg(b []byte) (Msg, error) {
	if len(b) == 0 {
		return nil, ErrMsgLength
	}
	id := MsgID(b[0])
	if id >= idMax {
		return nil, &MsgError{ID: id, Len: len(b), Err: ErrUnknownMsg}
	}
	msg, err := decoders[id](b)
	if err != nil {
		return nil, &MsgError{ID: id, Len: len(b), Err: err}
	}
	return msg, nil
}

func checkLen(b []byte, n int) error {
	if len(b) != n {
		return ErrMsgLength
	}
	return nil
}

func flag(v bool, bit uint) byte {
	if v {
		return 1 << bit
	}
	return 0
}

func hasFlag(b byte, bit uint) bool {
	return b&(1<<bit) != 0
}

func decodeEmpty(m Msg) decodeFunc {
	return func(b []byte) (Msg, error) {
		return m, checkLen(b, 1)
	}
}

// ConnectedSync is exchanged right after the earbuds connect.
type ConnectedSync struct {
	InEarEnabled bool
	InEar        bool
	Charging     bool
	Discoverable bool
	Connectable  bool
	GameMode     bool
	Battery      uint8
	CallVolume   uint8
	MusicVolume  uint8
	ListenMode   bt.ListenMode
	Box          bt.BoxState
	FWBuild      uint16
	FWKV         uint32
}

// ID implements Msg.
func (ConnectedSync) ID() MsgID { return IDConnectedSync }

// Encode implements Msg.
func (m ConnectedSync) Encode() []byte {
	b := make([]byte, connectedSyncLen)
	b[0] = byte(IDConnectedSync)
	b[1] = flag(m.InEarEnabled, 0) | flag(m.InEar, 1) | flag(m.Charging, 2) |
		flag(m.Discoverable, 3) | flag(m.Connectable, 4) | flag(m.GameMode, 5)
	b[2], b[3], b[4] = m.Battery, m.CallVolume, m.MusicVolume
	b[5], b[6] = byte(m.ListenMode), byte(m.Box)
	binary.LittleEndian.PutUint16(b[7:], m.FWBuild)
	binary.LittleEndian.PutUint32(b[9:], m.FWKV)
	return b
}

func decodeConnectedSync(b []byte) (Msg, error) {
	if err := checkLen(b, connectedSyncLen); err != nil {
		return nil, err
	}
	return ConnectedSync{
		InEarEnabled: hasFlag(b[1], 0),
		InEar:        hasFlag(b[1], 1),
		Charging:     hasFlag(b[1], 2),
		Discoverable: hasFlag(b[1], 3),
		Connectable:  hasFlag(b[1], 4),
		GameMode:     hasFlag(b[1], 5),
		Battery:      b[2],
		CallVolume:   b[3],
		MusicVolume:  b[4],
		ListenMode:   bt.ListenMode(b[5]),
		Box:          bt.BoxState(b[6]),
		FWBuild:      binary.LittleEndian.Uint16(b[7:]),
		FWKV:         binary.LittleEndian.Uint32(b[9:]),
	}, nil
}

// UsrEvt forwards a user event with the system state of the sender.
type UsrEvt struct {
	Event evt.Event
	State bt.SysState
}

// ID implements Msg.
func (UsrEvt) ID() MsgID { return IDUsrEvt }

// Encode implements Msg.
func (m UsrEvt) Encode() []byte {
	b := make([]byte, 7)
	b[0] = byte(IDUsrEvt)
	binary.LittleEndian.PutUint16(b[1:], uint16(m.Event))
	binary.LittleEndian.PutUint32(b[3:], uint32(m.State))
	return b
}

func decodeUsrEvt(b []byte) (Msg, error) {
	if err := checkLen(b, 7); err != nil {
		return nil, err
	}
	return UsrEvt{
		Event: evt.Event(binary.LittleEndian.Uint16(b[1:])),
		State: bt.SysState(binary.LittleEndian.Uint32(b[3:])),
	}, nil
}

// InEar reports in-ear detection. Enabled from the slave is ignored.
type InEar struct {
	Enabled bool
	InEar   bool
}

// ID implements Msg.
func (InEar) ID() MsgID { return IDInEar }

// Encode implements Msg.
func (m InEar) Encode() []byte {
	return []byte{byte(IDInEar), flag(m.Enabled, 0) | flag(m.InEar, 1)}
}

func decodeInEar(b []byte) (Msg, error) {
	if err := checkLen(b, 2); err != nil {
		return nil, err
	}
	return InEar{Enabled: hasFlag(b[1], 0), InEar: hasFlag(b[1], 1)}, nil
}

// InEarEnableReq asks the master to turn in-ear detection on or off.
type InEarEnableReq struct {
	Enable bool
}

// ID implements Msg.
func (InEarEnableReq) ID() MsgID { return IDInEarEnableReq }

// Encode implements Msg.
func (m InEarEnableReq) Encode() []byte {
	return []byte{byte(IDInEarEnableReq), flag(m.Enable, 0)}
}

func decodeInEarEnableReq(b []byte) (Msg, error) {
	if err := checkLen(b, 2); err != nil {
		return nil, err
	}
	return InEarEnableReq{Enable: hasFlag(b[1], 0)}, nil
}

// Charger reports the charging state.
type Charger struct {
	Charging bool
}

// ID implements Msg.
func (Charger) ID() MsgID { return IDCharger }

// Encode implements Msg.
func (m Charger) Encode() []byte {
	return []byte{byte(IDCharger), flag(m.Charging, 0)}
}

func decodeCharger(b []byte) (Msg, error) {
	if err := checkLen(b, 2); err != nil {
		return nil, err
	}
	return Charger{Charging: hasFlag(b[1], 0)}, nil
}

// Battery reports the battery level, 0 to 100.
type Battery struct {
	Level uint8
}

// ID implements Msg.
func (Battery) ID() MsgID { return IDBattery }

// Encode implements Msg.
func (m Battery) Encode() []byte {
	return []byte{byte(IDBattery), m.Level}
}

func decodeBattery(b []byte) (Msg, error) {
	if err := checkLen(b, 2); err != nil {
		return nil, err
	}
	return Battery{Level: b[1]}, nil
}

// BoxState reports the charging case state.
type BoxState struct {
	State bt.BoxState
}

// ID implements Msg.
func (BoxState) ID() MsgID { return IDBoxState }

// Encode implements Msg.
func (m BoxState) Encode() []byte {
	return []byte{byte(IDBoxState), byte(m.State)}
}

func decodeBoxState(b []byte) (Msg, error) {
	if err := checkLen(b, 2); err != nil {
		return nil, err
	}
	return BoxState{State: bt.BoxState(b[1])}, nil
}

// ResetPDL makes the peer forget all phones.
type ResetPDL struct{}

// ID implements Msg.
func (ResetPDL) ID() MsgID { return IDResetPDL }

// Encode implements Msg.
func (ResetPDL) Encode() []byte { return []byte{byte(IDResetPDL)} }

// Volume carries both volumes.
type Volume struct {
	Call  uint8
	Music uint8
}

// ID implements Msg.
func (Volume) ID() MsgID { return IDVolume }

// Encode implements Msg.
func (m Volume) Encode() []byte {
	return []byte{byte(IDVolume), m.Call, m.Music}
}

func decodeVolume(b []byte) (Msg, error) {
	if err := checkLen(b, 3); err != nil {
		return nil, err
	}
	return Volume{Call: b[1], Music: b[2]}, nil
}

// CallVolume carries the call volume.
type CallVolume struct {
	Vol uint8
}

// ID implements Msg.
func (CallVolume) ID() MsgID { return IDCallVolume }

// Encode implements Msg.
func (m CallVolume) Encode() []byte {
	return []byte{byte(IDCallVolume), m.Vol}
}

func decodeCallVolume(b []byte) (Msg, error) {
	if err := checkLen(b, 2); err != nil {
		return nil, err
	}
	return CallVolume{Vol: b[1]}, nil
}

// MusicVolume carries the music volume.
type MusicVolume struct {
	Vol uint8
}

// ID implements Msg.
func (MusicVolume) ID() MsgID { return IDMusicVolume }

// Encode implements Msg.
func (m MusicVolume) Encode() []byte {
	return []byte{byte(IDMusicVolume), m.Vol}
}

func decodeMusicVolume(b []byte) (Msg, error) {
	if err := checkLen(b, 2); err != nil {
		return nil, err
	}
	return MusicVolume{Vol: b[1]}, nil
}

// ListenMode carries the ambient sound mode.
type ListenMode struct {
	Mode bt.ListenMode
}

// ID implements Msg.
func (ListenMode) ID() MsgID { return IDListenMode }

// Encode implements Msg.
func (m ListenMode) Encode() []byte {
	return []byte{byte(IDListenMode), byte(m.Mode)}
}

func decodeListenMode(b []byte) (Msg, error) {
	if err := checkLen(b, 2); err != nil {
		return nil, err
	}
	return ListenMode{Mode: bt.ListenMode(b[1])}, nil
}

// ANCLevel carries the noise cancelling level.
type ANCLevel struct {
	Level uint8
}

// ID implements Msg.
func (ANCLevel) ID() MsgID { return IDANCLevel }

// Encode implements Msg.
func (m ANCLevel) Encode() []byte {
	return []byte{byte(IDANCLevel), m.Level}
}

func decodeANCLevel(b []byte) (Msg, error) {
	if err := checkLen(b, 2); err != nil {
		return nil, err
	}
	return ANCLevel{Level: b[1]}, nil
}

// TransparencyLevel carries the transparency level.
type TransparencyLevel struct {
	Level uint8
}

// ID implements Msg.
func (TransparencyLevel) ID() MsgID { return IDTransparencyLevel }

// Encode implements Msg.
func (m TransparencyLevel) Encode() []byte {
	return []byte{byte(IDTransparencyLevel), m.Level}
}

func decodeTransparencyLevel(b []byte) (Msg, error) {
	if err := checkLen(b, 2); err != nil {
		return nil, err
	}
	return TransparencyLevel{Level: b[1]}, nil
}

// GameMode turns low latency mode on or off.
type GameMode struct {
	Enabled bool
}

// ID implements Msg.
func (GameMode) ID() MsgID { return IDGameMode }

// Encode implements Msg.
func (m GameMode) Encode() []byte {
	return []byte{byte(IDGameMode), flag(m.Enabled, 0)}
}

func decodeGameMode(b []byte) (Msg, error) {
	if err := checkLen(b, 2); err != nil {
		return nil, err
	}
	return GameMode{Enabled: hasFlag(b[1], 0)}, nil
}

// KeyState selects a custom key binding.
type KeyState struct {
	StateMask uint16
	KeyType   uint8
}

// SetKeyConfig binds an event to a key in the given states.
type SetKeyConfig struct {
	StateMask uint16
	Event     uint16
	KeyType   uint8
}

// ID implements Msg.
func (SetKeyConfig) ID() MsgID { return IDSetKeyConfig }

// Encode implements Msg.
func (m SetKeyConfig) Encode() []byte {
	b := make([]byte, 6)
	b[0] = byte(IDSetKeyConfig)
	binary.LittleEndian.PutUint16(b[1:], m.StateMask)
	binary.LittleEndian.PutUint16(b[3:], m.Event)
	b[5] = m.KeyType
	return b
}

func decodeSetKeyConfig(b []byte) (Msg, error) {
	if err := checkLen(b, 6); err != nil {
		return nil, err
	}
	return SetKeyConfig{
		StateMask: binary.LittleEndian.Uint16(b[1:]),
		Event:     binary.LittleEndian.Uint16(b[3:]),
		KeyType:   b[5],
	}, nil
}

// ResetKeyConfig restores the default key bindings.
type ResetKeyConfig struct{}

// ID implements Msg.
func (ResetKeyConfig) ID() MsgID { return IDResetKeyConfig }

// Encode implements Msg.
func (ResetKeyConfig) Encode() []byte { return []byte{byte(IDResetKeyConfig)} }

// GetKeyConfig queries the events bound to keys.
type GetKeyConfig struct {
	Keys []KeyState
}

// ID implements Msg.
func (GetKeyConfig) ID() MsgID { return IDGetKeyConfig }

// Encode implements Msg. At most MaxKeyStates are encoded.
func (m GetKeyConfig) Encode() []byte {
	keys := m.Keys
	if len(keys) > MaxKeyStates {
		keys = keys[:MaxKeyStates]
	}
	b := make([]byte, 2+getKeyConfigItemLen*len(keys))
	b[0], b[1] = byte(IDGetKeyConfig), byte(len(keys))
	for n, k := range keys {
		off := 2 + n*getKeyConfigItemLen
		binary.LittleEndian.PutUint16(b[off:], k.StateMask)
		b[off+2] = k.KeyType
	}
	return b
}

func decodeGetKeyConfig(b []byte) (Msg, error) {
	if len(b) < 2 {
		return nil, ErrMsgLength
	}
	count := int(b[1])
	if count > MaxKeyStates {
		return nil, ErrTooManyKeys
	}
	if err := checkLen(b, 2+getKeyConfigItemLen*count); err != nil {
		return nil, err
	}
	m := GetKeyConfig{Keys: make([]KeyState, count)}
	for n := range m.Keys {
		off := 2 + n*getKeyConfigItemLen
		m.Keys[n] = KeyState{StateMask: binary.LittleEndian.Uint16(b[off:]), KeyType: b[off+2]}
	}
	return m, nil
}

// GetKeyConfigRsp answers GetKeyConfig, one event per queried key.
type GetKeyConfigRsp struct {
	Events []uint16
}

// ID implements Msg.
func (GetKeyConfigRsp) ID() MsgID { return IDGetKeyConfigRsp }

// Encode implements Msg.
func (m GetKeyConfigRsp) Encode() []byte {
	b := make([]byte, 2+2*len(m.Events))
	b[0], b[1] = byte(IDGetKeyConfigRsp), byte(len(m.Events))
	for n, e := range m.Events {
		binary.LittleEndian.PutUint16(b[2+2*n:], e)
	}
	return b
}

func decodeGetKeyConfigRsp(b []byte) (Msg, error) {
	if len(b) < 2 {
		return nil, ErrMsgLength
	}
	count := int(b[1])
	if err := checkLen(b, 2+2*count); err != nil {
		return nil, err
	}
	m := GetKeyConfigRsp{Events: make([]uint16, count)}
	for n := range m.Events {
		m.Events[n] = binary.LittleEndian.Uint16(b[2+2*n:])
	}
	return m, nil
}

// Visibility reports whether the sender is discoverable and connectable.
type Visibility struct {
	Discoverable bool
	Connectable  bool
}

// ID implements Msg.
func (Visibility) ID() MsgID { return IDVisibility }

// Encode implements Msg.
func (m Visibility) Encode() []byte {
	return []byte{byte(IDVisibility), flag(m.Discoverable, 0) | flag(m.Connectable, 1)}
}

func decodeVisibility(b []byte) (Msg, error) {
	if err := checkLen(b, 2); err != nil {
		return nil, err
	}
	return Visibility{Discoverable: hasFlag(b[1], 0), Connectable: hasFlag(b[1], 1)}, nil
}

// VolSetReq asks the peer to set volumes. Music goes first on the wire.
type VolSetReq struct {
	Music uint8
	Call  uint8
}

// ID implements Msg.
func (VolSetReq) ID() MsgID { return IDVolSetReq }

// Encode implements Msg.
func (m VolSetReq) Encode() []byte {
	return []byte{byte(IDVolSetReq), m.Music, m.Call}
}

func decodeVolSetReq(b []byte) (Msg, error) {
	if err := checkLen(b, 3); err != nil {
		return nil, err
	}
	return VolSetReq{Music: b[1], Call: b[2]}, nil
}

// ListenModeSetReq asks the peer to change the listen mode.
type ListenModeSetReq struct {
	Mode bt.ListenMode
}

// ID implements Msg.
func (ListenModeSetReq) ID() MsgID { return IDListenModeSetReq }

// Encode implements Msg.
func (m ListenModeSetReq) Encode() []byte {
	return []byte{byte(IDListenModeSetReq), byte(m.Mode)}
}

func decodeListenModeSetReq(b []byte) (Msg, error) {
	if err := checkLen(b, 2); err != nil {
		return nil, err
	}
	return ListenModeSetReq{Mode: bt.ListenMode(b[1])}, nil
}

// PDLClearReq asks the peer to clear its paired device list.
type PDLClearReq struct{}

// ID implements Msg.
func (PDLClearReq) ID() MsgID { return IDPDLClearReq }

// Encode implements Msg.
func (PDLClearReq) Encode() []byte { return []byte{byte(IDPDLClearReq)} }

// VolumeSyncReq carries the volumes the slave got from TDS.
type VolumeSyncReq struct {
	Call  uint8
	Music uint8
}

// ID implements Msg.
func (VolumeSyncReq) ID() MsgID { return IDVolumeSyncReq }

// Encode implements Msg.
func (m VolumeSyncReq) Encode() []byte {
	return []byte{byte(IDVolumeSyncReq), m.Call, m.Music}
}

func decodeVolumeSyncReq(b []byte) (Msg, error) {
	if err := checkLen(b, 3); err != nil {
		return nil, err
	}
	return VolumeSyncReq{Call: b[1], Music: b[2]}, nil
}

// RemoteMsg tunnels a kernel message to the peer.
type RemoteMsg struct {
	Tag   fx.Tag
	MsgID uint16
	Param []byte
}

// ID implements Msg.
func (RemoteMsg) ID() MsgID { return IDRemoteMsg }

// Encode implements Msg.
func (m RemoteMsg) Encode() []byte {
	b := make([]byte, RemoteHeaderLen+len(m.Param))
	putRemoteHeader(b, m.Tag, m.MsgID, len(m.Param))
	copy(b[RemoteHeaderLen:], m.Param)
	return b
}

func putRemoteHeader(b []byte, tag fx.Tag, id uint16, paramLen int) {
	b[0], b[1] = byte(IDRemoteMsg), byte(tag)
	binary.LittleEndian.PutUint16(b[2:], id)
	binary.LittleEndian.PutUint16(b[remoteParamLenOff:], uint16(paramLen))
	binary.LittleEndian.PutUint16(b[6:], 0)
}

func decodeRemoteMsg(b []byte) (Msg, error) {
	if len(b) < RemoteHeaderLen {
		return nil, ErrMsgLength
	}
	paramLen := int(binary.LittleEndian.Uint16(b[remoteParamLenOff:]))
	if err := checkLen(b, RemoteHeaderLen+paramLen); err != nil {
		return nil, err
	}
	return RemoteMsg{
		Tag:   fx.Tag(b[1]),
		MsgID: binary.LittleEndian.Uint16(b[2:]),
		Param: append([]byte(nil), b[RemoteHeaderLen:]...),
	}, nil
}

// GetRSSIReq asks the peer for its RSSI readings.
type GetRSSIReq struct{}

// ID implements Msg.
func (GetRSSIReq) ID() MsgID { return IDGetRSSIReq }

// Encode implements Msg.
func (GetRSSIReq) Encode() []byte { return []byte{byte(IDGetRSSIReq)} }

// GetRSSIRsp answers GetRSSIReq.
type GetRSSIRsp struct {
	Phone int8
	WWS   int8
}

// ID implements Msg.
func (GetRSSIRsp) ID() MsgID { return IDGetRSSIRsp }

// Encode implements Msg.
func (m GetRSSIRsp) Encode() []byte {
	return []byte{byte(IDGetRSSIRsp), byte(m.Phone), byte(m.WWS)}
}

func decodeGetRSSIRsp(b []byte) (Msg, error) {
	if err := checkLen(b, 3); err != nil {
		return nil, err
	}
	return GetRSSIRsp{Phone: int8(b[1]), WWS: int8(b[2])}, nil
}
