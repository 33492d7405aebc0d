// Package wws keeps the two earbuds in sync over the earbud link: it
// mirrors the peer, forwards settings and user events, tunnels kernel
// messages and decides which earbud holds the phone link.
package wws

import (
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/tws.go/pkg/bt"
	"github.com/robotalks/tws.go/pkg/evt"
	fx "github.com/robotalks/tws.go/pkg/framework"
)

// Message ids on fx.TagWWS.
const (
	MsgTriggerRoleSwitch uint16 = iota + 1
	MsgRSSIDetect
)

// Local is the local device model.
type Local interface {
	InEarEnabled() bool
	SetInEarEnabled(bool)
	InEar() bool
	Charging() bool
	Battery() uint8
	ReportBattery(level uint8)
	CallVolume() uint8
	SetCallVolume(uint8)
	ReportCallVolume(uint8)
	MusicVolume() uint8
	SetMusicVolume(uint8)
	ReportMusicVolume(uint8)
	ListenMode() bt.ListenMode
	SetListenMode(bt.ListenMode)
	GameMode() bool
	SetGameMode(bool)
	SetANCLevel(uint8)
	SetTransparencyLevel(uint8)
	BoxState() bt.BoxState
	FWVersion() (build uint16, kv uint32)
	AddKey(keyType uint8, stateMask uint16, event uint16)
	ReadKey(keyType uint8, stateMask uint16) uint16
	ResetKeys()
	SetPeerVisibility(discoverable, connectable bool)
}

// ConnObserver follows role changes, normally the connection manager.
type ConnObserver interface {
	HandleWWSRoleChanged(dc fx.DispatchContext, isMaster bool, reason bt.RoleChangedReason)
}

// Events receives system events and user events from the peer.
type Events interface {
	evt.Emitter
	Forward(evt.Event)
}

// PDL is the writable paired device list.
type PDL interface {
	Add(bt.Addr)
	Clear()
}

// OTA reports a firmware transfer in progress.
type OTA interface {
	Running() bool
}

// PeerState mirrors what the peer reported.
type PeerState struct {
	Discoverable bool
	Connectable  bool
	InEar        bool
	Charging     bool
	Box          bt.BoxState
	Battery      uint8
	PhoneRSSI    int8
	WWSRSSI      int8
	FWBuild      uint16
	FWKV         uint32
}

// Context is the state owned by Engine.
type Context struct {
	State             bt.TWSState
	Role              bt.Role
	Channel           bt.Channel
	PeerAddr          bt.Addr
	Peer              PeerState
	RSSIDetectEnabled bool
	LastRoleSwitch    time.Time
}

// Engine is the peer sync engine, handling fx.TagWWS.
type Engine struct {
	Config Config
	Stack  bt.Stack
	Local  Local
	Conn   ConnObserver
	Events Events
	PDL    PDL
	// OTA is optional.
	OTA OTA

	ctx         Context
	keyCallback func(events []uint16)
	policies    []RoleSwitchPolicy
}

// New creates an Engine.
func New(cfg Config, stack bt.Stack, local Local, events Events, pdl PDL) *Engine {
	return &Engine{
		Config: cfg,
		Stack:  stack,
		Local:  local,
		Events: events,
		PDL:    pdl,
		ctx:    Context{Peer: PeerState{PhoneRSSI: bt.RSSIInvalid, WWSRSSI: bt.RSSIInvalid}},
	}
}

// AddToKernel implements fx.KernelAdder.
func (e *Engine) AddToKernel(k *fx.Kernel) error {
	return k.Register(fx.TagWWS, e)
}

// State returns a snapshot of the context.
func (e *Engine) State() Context {
	return e.ctx
}

// IsConnected reports whether the earbud link is up.
func (e *Engine) IsConnected() bool {
	return e.ctx.State >= bt.TWSConnected
}

// IsMaster is true for master and while the role is undecided.
func (e *Engine) IsMaster() bool {
	return e.ctx.Role.IsMaster()
}

// IsSlave reports the slave role.
func (e *Engine) IsSlave() bool {
	return e.ctx.Role == bt.RoleSlave
}

// IsConnectedMaster reports a master with the peer connected.
func (e *Engine) IsConnectedMaster() bool {
	return e.IsConnected() && e.IsMaster()
}

// Role returns the current role.
func (e *Engine) Role() bt.Role { return e.ctx.Role }

// Channel returns the audio channel of this earbud.
func (e *Engine) Channel() bt.Channel { return e.ctx.Channel }

// PeerAddr returns the address of the peer earbud.
func (e *Engine) PeerAddr() bt.Addr { return e.ctx.PeerAddr }

// PeerDiscoverable reports the mirrored peer visibility.
func (e *Engine) PeerDiscoverable() bool { return e.ctx.Peer.Discoverable }

// PeerConnectable reports the mirrored peer visibility.
func (e *Engine) PeerConnectable() bool { return e.ctx.Peer.Connectable }

// PeerBattery returns the mirrored peer battery level.
func (e *Engine) PeerBattery() uint8 { return e.ctx.Peer.Battery }

// PeerInEar returns the mirrored peer in-ear state.
func (e *Engine) PeerInEar() bool { return e.ctx.Peer.InEar }

// PeerCharging returns the mirrored peer charging state.
func (e *Engine) PeerCharging() bool { return e.ctx.Peer.Charging }

// PeerBoxState returns the mirrored peer charging case state.
func (e *Engine) PeerBoxState() bt.BoxState { return e.ctx.Peer.Box }

// PeerFWVersion returns the firmware version of the peer.
func (e *Engine) PeerFWVersion() (uint16, uint32) {
	return e.ctx.Peer.FWBuild, e.ctx.Peer.FWKV
}

// HandleMessage implements fx.Handler.
func (e *Engine) HandleMessage(dc fx.DispatchContext, id uint16, payload []byte) {
	switch id {
	case MsgTriggerRoleSwitch:
		e.TriggerRoleSwitch(dc, SwitchTimer)
	case MsgRSSIDetect:
		e.detectRSSI(dc)
	default:
		glog.Warningf("wws: unknown message %d", id)
	}
}

// HandleStateChanged follows the earbud link state reported by the radio.
func (e *Engine) HandleStateChanged(dc fx.DispatchContext, state bt.TWSState, reason bt.DisconnectReason, addr bt.Addr) {
	prev := e.ctx.State
	e.ctx.State = state
	glog.Infof("wws: state %s -> %s reason %s", prev, state, reason)
	if state < bt.TWSConnected && prev >= bt.TWSConnected {
		e.ctx.Role = bt.RoleUnknown
		dc.Cancel(fx.TagWWS, MsgTriggerRoleSwitch)
	}
	switch {
	case state == bt.TWSConnected && prev < bt.TWSConnected:
		if !addr.IsZero() {
			e.ctx.PeerAddr = addr
		}
		glog.Infof("wws: peer %s connected", e.ctx.PeerAddr)
		if err := e.sendConnectedSync(); err != nil {
			glog.Errorf("wws: connected sync: %v", err)
		}
		e.Events.Emit(evt.WWSConnected)
	case state == bt.TWSDisconnected && prev >= bt.TWSConnected:
		if e.Stack.SysState() <= bt.Disabled {
			glog.V(2).Info("wws: disconnected while powering off")
			return
		}
		e.Events.Emit(evt.WWSDisconnected)
	}
}

// HandleRoleChanged follows a role change reported by the radio.
func (e *Engine) HandleRoleChanged(dc fx.DispatchContext, role bt.Role, addr bt.Addr, reason bt.RoleChangedReason) {
	glog.Infof("wws: role %s -> %s reason %d", e.ctx.Role, role, reason)
	if role != e.ctx.Role {
		e.ctx.Role = role
		e.Events.Emit(evt.WWSRoleSwitch)
	}
	if !addr.IsZero() {
		e.ctx.PeerAddr = addr
	}
	if e.Conn != nil {
		e.Conn.HandleWWSRoleChanged(dc, role == bt.RoleMaster, reason)
	}
	if role == bt.RoleMaster {
		e.Local.ReportBattery(e.Local.Battery())
	}
	e.ctx.LastRoleSwitch = dc.Time()
}

// HandleBTConnected starts arbitration once the phone connects.
func (e *Engine) HandleBTConnected(dc fx.DispatchContext) {
	e.ctx.LastRoleSwitch = dc.Time()
	e.TriggerRoleSwitch(dc, SwitchConnected)
}

// HandleSysState starts the RSSI poll while streaming or in a call and
// stops it otherwise.
func (e *Engine) HandleSysState(dc fx.DispatchContext, state bt.SysState) {
	if state < bt.A2DPStreaming {
		if e.ctx.RSSIDetectEnabled {
			dc.Cancel(fx.TagWWS, MsgRSSIDetect)
			e.ctx.RSSIDetectEnabled = false
		}
		return
	}
	if !e.ctx.RSSIDetectEnabled {
		e.ctx.RSSIDetectEnabled = true
		e.schedule(dc, MsgRSSIDetect, e.Config.RSSIDetectInterval)
	}
}

// HandlePowerOn loads the link state from the radio and starts pairing
// when no peer is known.
func (e *Engine) HandlePowerOn(dc fx.DispatchContext) {
	e.HandleVolumeChanged()
	state, role, channel, err := e.Stack.TWSState()
	if err != nil {
		glog.Errorf("wws: query state: %v", err)
		return
	}
	e.ctx.State, e.ctx.Role, e.ctx.Channel = state, role, channel
	glog.Infof("wws: power on state %s channel %s role %s", state, channel, role)

	addr, err := e.Stack.TWSPeerAddr()
	if err != nil {
		glog.Errorf("wws: query peer: %v", err)
		return
	}
	if !addr.IsZero() {
		e.ctx.PeerAddr = addr
		return
	}
	if channel != bt.ChannelStereo {
		e.StartPair()
	}
}

// StartPair starts pairing with another earbud.
func (e *Engine) StartPair() error {
	err := e.Stack.TWSStartPair(bt.PairParams{
		VID:     e.Config.VID,
		PID:     e.Config.PID,
		Magic:   e.Config.Magic,
		Timeout: e.Config.PairTimeout,
	})
	if err != nil {
		glog.Errorf("wws: start pair: %v", err)
		return err
	}
	e.ctx.PeerAddr = bt.Addr{}
	return nil
}

// HandlePowerOff marks the link disabled.
func (e *Engine) HandlePowerOff(dc fx.DispatchContext) {
	e.ctx.State = bt.TWSDisabled
}

// HandleVolumeChanged advertises the local volumes through TDS.
func (e *Engine) HandleVolumeChanged() {
	data := bt.TDSData{Call: e.Local.CallVolume(), Music: e.Local.MusicVolume()}
	if err := e.Stack.TWSSetTDSData(data.Encode()); err != nil {
		glog.Errorf("wws: set tds data: %v", err)
	}
}

// HandleModeChanged re-sends the listen mode when the master leaves
// single mode.
func (e *Engine) HandleModeChanged(dc fx.DispatchContext, single bool) {
	if !single && e.IsMaster() {
		e.SendListenMode(e.Local.ListenMode())
	}
}

// HandleVisibilityChanged mirrors the local visibility to the slave.
func (e *Engine) HandleVisibilityChanged(dc fx.DispatchContext, discoverable, connectable bool) {
	if e.IsConnectedMaster() {
		e.SendVisibility(discoverable, connectable)
	}
}

// HandleTDSData applies the volumes advertised by the master.
func (e *Engine) HandleTDSData(dc fx.DispatchContext, data bt.TDSData) {
	glog.V(2).Infof("wws: tds call %d music %d from %s", data.Call, data.Music, data.Addr)
	if !data.Addr.IsZero() {
		e.PDL.Add(data.Addr)
	}
	e.Local.SetMusicVolume(data.Music)
	e.Local.SetCallVolume(data.Call)
	e.send(VolumeSyncReq{Call: data.Call, Music: data.Music}, true)
}

func (e *Engine) schedule(dc fx.DispatchContext, id uint16, delay time.Duration) {
	if err := dc.SendDelay(fx.TagWWS, id, nil, delay); err != nil {
		glog.Errorf("wws: schedule %d: %v", id, err)
	}
}
