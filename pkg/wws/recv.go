package wws

import (
	"github.com/golang/glog"

	"github.com/robotalks/tws.go/pkg/bt"
	"github.com/robotalks/tws.go/pkg/evt"
	fx "github.com/robotalks/tws.go/pkg/framework"
)

// HandleRecvData handles a packet from the peer. Malformed packets are
// logged and dropped.
func (e *Engine) HandleRecvData(dc fx.DispatchContext, data []byte) {
	msg, err := DecodeMsg(data)
	if err != nil {
		glog.Errorf("wws: recv: %v", err)
		return
	}
	glog.V(2).Infof("wws: recv %s", msg.ID())
	switch m := msg.(type) {
	case ConnectedSync:
		e.recvConnectedSync(m)
	case UsrEvt:
		e.recvUsrEvt(m)
	case InEar:
		e.recvInEar(dc, m)
	case InEarEnableReq:
		if e.IsMaster() {
			e.Local.SetInEarEnabled(m.Enable)
		}
		if e.IsConnectedMaster() {
			e.SendInEar(dc, m.Enable, e.Local.InEar())
		}
	case Charger:
		e.ctx.Peer.Charging = m.Charging
		e.TriggerRoleSwitch(dc, SwitchPeerCharging)
	case Battery:
		e.ctx.Peer.Battery = m.Level
		if e.batterySwitching() {
			e.TriggerRoleSwitch(dc, SwitchPeerBattery)
		}
	case BoxState:
		e.ctx.Peer.Box = m.State
	case ResetPDL:
		e.clearPDL()
	case PDLClearReq:
		e.Events.Emit(evt.ClearPDL)
	case Volume:
		if e.IsSlave() {
			e.Local.SetCallVolume(m.Call)
			e.Local.SetMusicVolume(m.Music)
		}
	case CallVolume:
		if e.IsSlave() {
			e.Local.SetCallVolume(m.Vol)
		}
	case MusicVolume:
		if e.IsSlave() {
			e.Local.SetMusicVolume(m.Vol)
		}
	case ListenMode:
		if e.IsSlave() {
			e.Local.SetListenMode(m.Mode)
		}
	case GameMode:
		if e.IsSlave() {
			e.Local.SetGameMode(m.Enabled)
		}
	case ANCLevel:
		if e.IsSlave() {
			e.Local.SetANCLevel(m.Level)
		}
	case TransparencyLevel:
		if e.IsSlave() {
			e.Local.SetTransparencyLevel(m.Level)
		}
	case SetKeyConfig:
		e.Local.AddKey(m.KeyType, m.StateMask, m.Event)
	case ResetKeyConfig:
		e.Local.ResetKeys()
	case GetKeyConfig:
		rsp := GetKeyConfigRsp{Events: make([]uint16, len(m.Keys))}
		for n, k := range m.Keys {
			rsp.Events[n] = e.Local.ReadKey(k.KeyType, k.StateMask)
		}
		e.send(rsp, false)
	case GetKeyConfigRsp:
		cb := e.keyCallback
		if cb == nil {
			glog.Error("wws: key config response without query")
			return
		}
		e.keyCallback = nil
		cb(m.Events)
	case Visibility:
		e.ctx.Peer.Discoverable, e.ctx.Peer.Connectable = m.Discoverable, m.Connectable
		e.Local.SetPeerVisibility(m.Discoverable, m.Connectable)
	case VolSetReq:
		e.Local.SetCallVolume(m.Call)
		e.Local.ReportCallVolume(m.Call)
		e.Local.SetMusicVolume(m.Music)
		e.Local.ReportMusicVolume(m.Music)
		if e.IsConnected() {
			e.SendVolume(e.Local.CallVolume(), e.Local.MusicVolume())
		}
	case ListenModeSetReq:
		e.Local.SetListenMode(m.Mode)
	case VolumeSyncReq:
		e.recvVolumeSyncReq(m)
	case RemoteMsg:
		glog.V(2).Infof("wws: remote %s/%d (%d bytes)", m.Tag, m.MsgID, len(m.Param))
		if err := dc.Send(m.Tag, m.MsgID, m.Param); err != nil {
			glog.Errorf("wws: remote %s/%d: %v", m.Tag, m.MsgID, err)
		}
	case GetRSSIReq:
		e.sendGetRSSIRsp()
	case GetRSSIRsp:
		e.ctx.Peer.PhoneRSSI, e.ctx.Peer.WWSRSSI = m.Phone, m.WWS
		if e.rssiSwitching() {
			e.TriggerRoleSwitch(dc, SwitchRSSI)
		}
	}
}

func (e *Engine) recvConnectedSync(m ConnectedSync) {
	p := &e.ctx.Peer
	p.InEar, p.Charging, p.Battery = m.InEar, m.Charging, m.Battery
	p.FWBuild, p.FWKV, p.Box = m.FWBuild, m.FWKV, m.Box
	if !e.IsSlave() {
		return
	}
	p.Discoverable, p.Connectable = m.Discoverable, m.Connectable
	e.Local.SetInEarEnabled(m.InEarEnabled)
	e.Local.SetCallVolume(m.CallVolume)
	e.Local.SetMusicVolume(m.MusicVolume)
	e.Local.SetListenMode(m.ListenMode)
	e.Local.SetPeerVisibility(m.Discoverable, m.Connectable)
	e.Local.SetGameMode(m.GameMode)
}

func (e *Engine) recvUsrEvt(m UsrEvt) {
	local := e.Stack.SysState()
	if m.State < bt.Connected && local >= bt.Connected {
		glog.Warningf("wws: peer event %s dropped, peer %s local %s", m.Event, m.State, local)
		return
	}
	e.Events.Forward(m.Event)
}

func (e *Engine) recvInEar(dc fx.DispatchContext, m InEar) {
	if e.ctx.Peer.InEar != m.InEar {
		e.ctx.Peer.InEar = m.InEar
		glog.V(2).Infof("wws: peer in-ear %v", m.InEar)
	}
	if e.IsSlave() {
		e.Local.SetInEarEnabled(m.Enabled)
	}
	e.TriggerRoleSwitch(dc, SwitchPeerInEar)
}

func (e *Engine) recvVolumeSyncReq(m VolumeSyncReq) {
	call, music := e.Local.CallVolume(), e.Local.MusicVolume()
	switch {
	case m.Call != call && m.Music != music:
		e.SendVolume(call, music)
	case m.Call != call:
		e.SendCallVolume(call)
	case m.Music != music:
		e.SendMusicVolume(music)
	}
}

func (e *Engine) clearPDL() {
	e.PDL.Clear()
	if err := e.Stack.ClearPairList(); err != nil {
		glog.Errorf("wws: clear pair list: %v", err)
	}
}
