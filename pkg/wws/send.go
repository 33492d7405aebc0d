package wws

import (
	"errors"

	"github.com/golang/glog"

	"github.com/robotalks/tws.go/pkg/bt"
	"github.com/robotalks/tws.go/pkg/evt"
	fx "github.com/robotalks/tws.go/pkg/framework"
)

var (
	// ErrNotConnected is returned when sending without the earbud link.
	ErrNotConnected = errors.New("wws not connected")
	// ErrHeadroom is returned by SendRemoteMsgExt without room for the header.
	ErrHeadroom = errors.New("insufficient headroom")
)

func (e *Engine) send(m Msg, exitSniff bool) error {
	return e.sendRaw(m.ID(), m.Encode(), exitSniff)
}

func (e *Engine) sendRaw(id MsgID, data []byte, exitSniff bool) error {
	if e.ctx.State != bt.TWSConnected {
		glog.Errorf("wws: send %s in state %s", id, e.ctx.State)
		return ErrNotConnected
	}
	if err := e.Stack.TWSSendData(data, exitSniff); err != nil {
		glog.Errorf("wws: send %s: %v", id, err)
		return err
	}
	glog.V(2).Infof("wws: sent %s (%d bytes)", id, len(data))
	return nil
}

func (e *Engine) sendConnectedSync() error {
	build, kv := e.Local.FWVersion()
	m := ConnectedSync{
		InEarEnabled: e.Local.InEarEnabled(),
		InEar:        e.Local.InEar(),
		Charging:     e.Local.Charging(),
		Discoverable: e.Stack.IsDiscoverable(),
		Connectable:  e.Stack.IsConnectable(),
		GameMode:     e.Local.GameMode(),
		Battery:      e.Local.Battery(),
		CallVolume:   e.Local.CallVolume(),
		MusicVolume:  e.Local.MusicVolume(),
		ListenMode:   e.Local.ListenMode(),
		Box:          e.Local.BoxState(),
		FWBuild:      build,
		FWKV:         kv,
	}
	glog.V(2).Infof("wws: connected sync %+v", m)
	return e.send(m, true)
}

// SendUsrEvt forwards a user event along with the local system state.
func (e *Engine) SendUsrEvt(event evt.Event) error {
	return e.send(UsrEvt{Event: event, State: e.Stack.SysState()}, true)
}

// SendInEar reports the in-ear sensor and re-evaluates the roles.
func (e *Engine) SendInEar(dc fx.DispatchContext, enabled, inEar bool) error {
	err := e.send(InEar{Enabled: enabled, InEar: inEar}, true)
	e.TriggerRoleSwitch(dc, SwitchInEar)
	return err
}

// SendInEarEnableReq asks the master to turn in-ear detection on or off.
func (e *Engine) SendInEarEnableReq(enable bool) error {
	return e.send(InEarEnableReq{Enable: enable}, true)
}

// SendCharger reports the charger and re-evaluates the roles.
func (e *Engine) SendCharger(dc fx.DispatchContext, charging bool) error {
	err := e.send(Charger{Charging: charging}, true)
	e.TriggerRoleSwitch(dc, SwitchCharging)
	return err
}

// SendBattery reports the battery level.
func (e *Engine) SendBattery(dc fx.DispatchContext, level uint8) error {
	err := e.send(Battery{Level: level}, false)
	if e.batterySwitching() {
		e.TriggerRoleSwitch(dc, SwitchBattery)
	}
	return err
}

// SendBoxState reports the charging case state.
func (e *Engine) SendBoxState(state bt.BoxState) error {
	return e.send(BoxState{State: state}, false)
}

// SendResetPDL makes the peer forget all phones.
func (e *Engine) SendResetPDL() error {
	return e.send(ResetPDL{}, true)
}

// SendVolume sends both volumes.
func (e *Engine) SendVolume(call, music uint8) error {
	return e.send(Volume{Call: call, Music: music}, true)
}

// SendCallVolume sends the call volume.
func (e *Engine) SendCallVolume(vol uint8) error {
	return e.send(CallVolume{Vol: vol}, true)
}

// SendMusicVolume sends the music volume.
func (e *Engine) SendMusicVolume(vol uint8) error {
	return e.send(MusicVolume{Vol: vol}, true)
}

// SendListenMode sends the listen mode.
func (e *Engine) SendListenMode(mode bt.ListenMode) error {
	return e.send(ListenMode{Mode: mode}, true)
}

// SendGameMode sends the game mode.
func (e *Engine) SendGameMode(enabled bool) error {
	return e.send(GameMode{Enabled: enabled}, true)
}

// SendANCLevel sends the noise cancelling level.
func (e *Engine) SendANCLevel(level uint8) error {
	return e.send(ANCLevel{Level: level}, true)
}

// SendTransparencyLevel sends the transparency level.
func (e *Engine) SendTransparencyLevel(level uint8) error {
	return e.send(TransparencyLevel{Level: level}, true)
}

// SendSetCusKey binds an event to a key on the peer.
func (e *Engine) SendSetCusKey(keyType uint8, stateMask, event uint16) error {
	return e.send(SetKeyConfig{StateMask: stateMask, Event: event, KeyType: keyType}, false)
}

// SendGetCusKey queries key bindings of the peer. cb receives one event
// per key, all zero when the peer is not connected. Only the latest
// query gets a callback.
func (e *Engine) SendGetCusKey(keys []KeyState, cb func(events []uint16)) error {
	if len(keys) > MaxKeyStates {
		return ErrTooManyKeys
	}
	if e.ctx.State != bt.TWSConnected {
		cb(make([]uint16, len(keys)))
		return nil
	}
	if e.keyCallback != nil {
		glog.Warning("wws: pending key config query replaced")
	}
	e.keyCallback = cb
	return e.send(GetKeyConfig{Keys: keys}, true)
}

// SendResetCusKey restores default key bindings on the peer.
func (e *Engine) SendResetCusKey() error {
	return e.send(ResetKeyConfig{}, false)
}

// SendVisibility reports the local visibility.
func (e *Engine) SendVisibility(discoverable, connectable bool) error {
	return e.send(Visibility{Discoverable: discoverable, Connectable: connectable}, false)
}

// SendVolSetReq asks the peer to set volumes.
func (e *Engine) SendVolSetReq(call, music uint8) error {
	return e.send(VolSetReq{Music: music, Call: call}, true)
}

// SendListenModeSetReq asks the peer to set the listen mode.
func (e *Engine) SendListenModeSetReq(mode bt.ListenMode) error {
	return e.send(ListenModeSetReq{Mode: mode}, true)
}

// SendPDLClearReq asks the peer to clear its paired device list.
func (e *Engine) SendPDLClearReq() error {
	return e.send(PDLClearReq{}, true)
}

// SendRemoteMsg delivers a kernel message to the peer's kernel.
func (e *Engine) SendRemoteMsg(tag fx.Tag, id uint16, param []byte) error {
	return e.sendRemote(tag, id, param, true)
}

// SendRemoteMsgNoActivate is SendRemoteMsg leaving the link in low power
// mode, for background traffic.
func (e *Engine) SendRemoteMsgNoActivate(tag fx.Tag, id uint16, param []byte) error {
	return e.sendRemote(tag, id, param, false)
}

func (e *Engine) sendRemote(tag fx.Tag, id uint16, param []byte, exitSniff bool) error {
	if len(param) > MaxRemoteMsgParam {
		glog.Errorf("wws: remote %s/%d param %d bytes too large", tag, id, len(param))
		return ErrParamTooLarge
	}
	return e.send(RemoteMsg{Tag: tag, MsgID: id, Param: param}, exitSniff)
}

// SendRemoteMsgExt is SendRemoteMsg without copying: the param starts at
// buf[headroom:] and the header is written into the RemoteHeaderLen
// bytes right before it.
func (e *Engine) SendRemoteMsgExt(tag fx.Tag, id uint16, buf []byte, headroom int) error {
	if headroom < RemoteHeaderLen || headroom > len(buf) {
		return ErrHeadroom
	}
	paramLen := len(buf) - headroom
	if paramLen > MaxRemoteMsgParam {
		return ErrParamTooLarge
	}
	pkt := buf[headroom-RemoteHeaderLen:]
	putRemoteHeader(pkt, tag, id, paramLen)
	return e.sendRaw(IDRemoteMsg, pkt, true)
}

func (e *Engine) sendGetRSSIReq() error {
	return e.send(GetRSSIReq{}, true)
}

func (e *Engine) sendGetRSSIRsp() error {
	q := e.Stack.LinkQuality()
	return e.send(GetRSSIRsp{Phone: q.PhoneRSSI, WWS: q.PeerRSSI}, true)
}
