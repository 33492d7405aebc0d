// Package conn keeps the phone link alive: it reconnects the last phone
// on power on and after a link loss, and falls back to pairing when that
// is hopeless.
package conn

import (
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/tws.go/pkg/bt"
	"github.com/robotalks/tws.go/pkg/evt"
	fx "github.com/robotalks/tws.go/pkg/framework"
)

// Message ids on fx.TagConn.
const (
	MsgPowerOnConnect uint16 = iota + 1
	MsgReconnect
)

// ConnectReason is why the current reconnection started.
type ConnectReason uint8

// Connect reasons.
const (
	ConnectNone ConnectReason = iota
	ConnectPowerOn
	ConnectLinkLoss
	ConnectUser
)

func (r ConnectReason) String() string {
	switch r {
	case ConnectPowerOn:
		return "power-on"
	case ConnectLinkLoss:
		return "link-loss"
	case ConnectUser:
		return "user"
	}
	return "none"
}

// Action is the deferred decision applied on the next power on or role
// change.
type Action uint8

// Actions.
const (
	ActionReconnect Action = iota
	ActionPairing
)

// PowerOnReason tells why the device booted.
type PowerOnReason uint8

// Power on reasons.
const (
	PowerOnNormal PowerOnReason = iota
	// PowerOnOTA is a reboot after a firmware update.
	PowerOnOTA
)

// Context is the state owned by Manager.
type Context struct {
	RetryCount       uint8
	ConnectReason    ConnectReason
	DisconnectReason bt.DisconnectReason
	PowerOnAction    Action
	RoleChangeAction Action
}

// PDL is the paired device list.
type PDL interface {
	First() (bt.Addr, bool)
	Empty() bool
}

// Peer is the view of the earbud link.
type Peer interface {
	IsMaster() bool
	IsSlave() bool
	IsConnected() bool
	IsConnectedMaster() bool
	PeerDiscoverable() bool
	PeerAddr() bt.Addr
}

// Power reports the power on reason.
type Power interface {
	PowerOnReason() PowerOnReason
}

// Manager is the connection manager, handling fx.TagConn.
type Manager struct {
	Config Config
	Stack  bt.Stack
	PDL    PDL
	Peer   Peer
	Events evt.Emitter
	// Power is optional, nil means a normal power on.
	Power Power

	ctx Context
}

// New creates a Manager.
func New(cfg Config, stack bt.Stack, pdl PDL, peer Peer, events evt.Emitter) *Manager {
	return &Manager{Config: cfg, Stack: stack, PDL: pdl, Peer: peer, Events: events}
}

// AddToKernel implements fx.KernelAdder.
func (m *Manager) AddToKernel(k *fx.Kernel) error {
	return k.Register(fx.TagConn, m)
}

// State returns a snapshot of the context.
func (m *Manager) State() Context {
	return m.ctx
}

// Reset restores the initial context.
func (m *Manager) Reset() {
	m.ctx = Context{}
}

// DisconnectReason returns the last recorded disconnect reason.
func (m *Manager) DisconnectReason() bt.DisconnectReason {
	return m.ctx.DisconnectReason
}

// SetPowerOnAction sets the action for the next power on.
func (m *Manager) SetPowerOnAction(a Action) {
	glog.V(2).Infof("conn: power on action %d", a)
	m.ctx.PowerOnAction = a
}

// SetRoleChangeAction sets the action for the next role change.
func (m *Manager) SetRoleChangeAction(a Action) {
	m.ctx.RoleChangeAction = a
}

// HandleMessage implements fx.Handler.
func (m *Manager) HandleMessage(dc fx.DispatchContext, id uint16, payload []byte) {
	switch id {
	case MsgPowerOnConnect:
		m.ctx.ConnectReason = ConnectPowerOn
		if m.Power != nil && m.Power.PowerOnReason() == PowerOnOTA {
			glog.V(2).Info("conn: reconnect after ota")
			m.ctx.ConnectReason = ConnectLinkLoss
		}
		m.ctx.RetryCount = 1
		m.ConnectLast()
	case MsgReconnect:
		if state := m.Stack.SysState(); state >= bt.AGPairing {
			glog.V(2).Infof("conn: reconnect skipped in state %s", state)
			return
		}
		m.ctx.RetryCount++
		m.ConnectLast()
	default:
		glog.Warningf("conn: unknown message %d", id)
	}
}

// ConnectLast connects the most recent phone in the paired device list.
func (m *Manager) ConnectLast() {
	state := m.Stack.SysState()
	if state < bt.Idle || state >= bt.Connected {
		glog.V(2).Infof("conn: connect last in state %s ignored", state)
		return
	}
	if m.Peer.IsSlave() {
		glog.V(2).Info("conn: connect last by slave ignored")
		return
	}
	addr, ok := m.PDL.First()
	if !ok || addr.IsZero() {
		glog.V(2).Info("conn: paired device list empty")
		m.setVisibility(true, true)
		return
	}
	if m.Peer.PeerAddr() == bt.TestAddr {
		glog.V(2).Info("conn: auto connect disabled for test peer")
		m.setVisibility(true, true)
		return
	}
	if err := m.Stack.Connect(addr); err != nil {
		glog.Errorf("conn: connect %s: %v", addr, err)
		m.setVisibility(true, true)
		return
	}
	glog.V(2).Infof("conn: connecting %s", addr)
}

// UserConnectLast reconnects on user request.
func (m *Manager) UserConnectLast() {
	m.ctx.ConnectReason = ConnectUser
	glog.V(2).Info("conn: connect last by user")
	if err := m.Stack.SetDiscoverable(false); err != nil {
		glog.Errorf("conn: set discoverable: %v", err)
	}
	m.ConnectLast()
}

// Disconnect drops the phone link if there is one.
func (m *Manager) Disconnect() {
	if !m.Stack.SysState().IsConnected() {
		glog.V(2).Info("conn: disconnect while not connected")
		return
	}
	if err := m.Stack.Disconnect(); err != nil {
		glog.Errorf("conn: disconnect: %v", err)
	}
}

// HandlePowerOn starts reconnecting or pairing after the radio is up.
func (m *Manager) HandlePowerOn(dc fx.DispatchContext) {
	m.ctx.DisconnectReason = bt.ReasonNone
	m.ctx.RetryCount = 0
	if m.Peer.IsSlave() {
		glog.V(2).Info("conn: power on ignored for slave")
		return
	}
	switch {
	case m.ctx.PowerOnAction == ActionPairing:
		m.ctx.PowerOnAction = ActionReconnect
		glog.V(2).Info("conn: power on action pairing")
		m.enterPairing()
	case m.PDL.Empty():
		glog.V(2).Info("conn: power on with empty paired device list")
		m.enterPairing()
	case m.Config.AutoReconnectOnPowerOn:
		glog.V(2).Info("conn: power on reconnect")
		if err := dc.Send(fx.TagConn, MsgPowerOnConnect, nil); err != nil {
			glog.Errorf("conn: power on connect: %v", err)
		}
		m.setConnectable(true)
	default:
		m.setConnectable(true)
	}
}

// HandlePowerOff stops pending reconnections.
func (m *Manager) HandlePowerOff(dc fx.DispatchContext) {
	m.ctx.PowerOnAction = ActionReconnect
	m.cancelAll(dc)
}

// HandleConnState follows up on the phone link going up or down.
func (m *Manager) HandleConnState(dc fx.DispatchContext, connected bool, reason bt.DisconnectReason) {
	glog.V(2).Infof("conn: state master=%v connected=%v reason=%s", m.Peer.IsMaster(), connected, reason)
	if connected {
		m.ctx.RetryCount = 0
		m.ctx.ConnectReason = ConnectNone
		m.cancelAll(dc)
		m.setVisibility(false, false)
		m.ctx.PowerOnAction = ActionReconnect
		return
	}
	if m.Peer.IsMaster() {
		m.setConnectable(true)
	}
	m.handleDisconnect(dc, reason)
}

func (m *Manager) handleDisconnect(dc fx.DispatchContext, reason bt.DisconnectReason) {
	m.ctx.DisconnectReason = reason
	switch actionFor(reason) {
	case actTimeout:
		m.HandleConnTimeout(dc)
	case actPairingIfAllowed:
		if m.Peer.IsMaster() && m.Config.DiscoverableOnDisconnect {
			m.enterPairing()
		}
	case actLinkLoss:
		m.Events.Emit(evt.LinkLoss)
		m.handleLinkLoss(dc)
	case actAlreadyExists:
		if m.Peer.IsConnectedMaster() {
			if m.ctx.RetryCount > 0 {
				m.ctx.RetryCount--
			}
			m.HandleConnTimeout(dc)
		}
	case actForget:
		m.ctx.DisconnectReason = bt.ReasonNone
		m.ctx.RetryCount = 0
	}
}

func (m *Manager) handleLinkLoss(dc fx.DispatchContext) {
	m.ctx.ConnectReason = ConnectLinkLoss
	m.ctx.RetryCount = 0
	m.sendDelay(dc, MsgReconnect, m.Config.LinkLossInterval)
}

// HandleConnTimeout retries the connection or gives up into pairing.
func (m *Manager) HandleConnTimeout(dc fx.DispatchContext) {
	glog.V(2).Infof("conn: timeout, reason %s", m.ctx.ConnectReason)
	switch m.ctx.ConnectReason {
	case ConnectPowerOn:
		m.retryOrGiveUp(dc, m.Config.PowerOnRetry, m.Config.PowerOnInterval, evt.PowerOnReconnectFailed)
	case ConnectLinkLoss:
		m.retryOrGiveUp(dc, m.Config.LinkLossRetry, m.Config.LinkLossInterval, evt.LinkLossReconnectFailed)
	default:
		if m.Peer.IsMaster() {
			m.enterPairing()
		}
	}
}

func (m *Manager) retryOrGiveUp(dc fx.DispatchContext, limit uint8, interval time.Duration, failed evt.Event) {
	if limit == RetryForever || m.ctx.RetryCount < limit {
		m.sendDelay(dc, MsgReconnect, interval)
		return
	}
	glog.Errorf("conn: reconnect failed, reason %s, retry %d", m.ctx.ConnectReason, m.ctx.RetryCount)
	m.Events.Emit(failed)
	if m.Peer.IsMaster() {
		m.enterPairing()
	}
}

// HandleWWSRoleChanged decides what the phone link does after the role
// in the earbud link changed.
func (m *Manager) HandleWWSRoleChanged(dc fx.DispatchContext, isMaster bool, reason bt.RoleChangedReason) {
	if !isMaster {
		m.setVisibility(false, false)
		m.ctx.RoleChangeAction = ActionReconnect
		return
	}
	if m.Stack.SysState().IsConnected() {
		m.ctx.RoleChangeAction = ActionReconnect
		return
	}
	if m.ctx.RoleChangeAction == ActionPairing {
		glog.V(2).Info("conn: role change action pairing")
		m.enterPairing()
		m.ctx.RoleChangeAction = ActionReconnect
		return
	}
	if m.Peer.IsConnected() {
		if m.Peer.PeerDiscoverable() {
			glog.V(2).Info("conn: visible as peer was")
			m.setVisibility(true, true)
			return
		}
	} else {
		if m.ctx.PowerOnAction == ActionPairing {
			m.ctx.PowerOnAction = ActionReconnect
			glog.V(2).Info("conn: became master, power on action pairing")
			m.enterPairing()
			return
		}
		if m.PDL.Empty() {
			if reason == bt.RoleChangedPeerNotFound {
				m.enterPairing()
			} else {
				m.setVisibility(true, true)
			}
			glog.V(2).Info("conn: became master with empty paired device list")
			return
		}
	}

	if reason == bt.RoleChangedLinkLoss {
		m.ctx.DisconnectReason = bt.ReasonLinkLoss
	}
	glog.V(2).Infof("conn: role changed, last disconnect %s", m.ctx.DisconnectReason)
	switch m.ctx.DisconnectReason {
	case bt.ReasonNone, bt.ReasonConnTimeout:
		if m.Config.AutoReconnectOnPowerOn {
			dc.Cancel(fx.TagConn, MsgPowerOnConnect)
			m.sendDelay(dc, MsgPowerOnConnect, m.Config.RoleChangeReconnectDelay)
		}
		m.setConnectable(true)
	case bt.ReasonLinkLoss, bt.ReasonLMPTimeout:
		m.setConnectable(true)
		m.handleLinkLoss(dc)
	case bt.ReasonRemote:
		m.setVisibility(true, true)
	default:
		glog.Errorf("conn: role changed after unexpected disconnect %s", m.ctx.DisconnectReason)
		m.setVisibility(true, true)
	}
}

func (m *Manager) sendDelay(dc fx.DispatchContext, id uint16, delay time.Duration) {
	if err := dc.SendDelay(fx.TagConn, id, nil, delay); err != nil {
		glog.Errorf("conn: schedule %d: %v", id, err)
	}
}

func (m *Manager) cancelAll(dc fx.DispatchContext) {
	dc.Cancel(fx.TagConn, MsgPowerOnConnect)
	dc.Cancel(fx.TagConn, MsgReconnect)
}

func (m *Manager) enterPairing() {
	if err := m.Stack.EnterAGPairing(); err != nil {
		glog.Errorf("conn: enter pairing: %v", err)
	}
}

func (m *Manager) setConnectable(v bool) {
	if err := m.Stack.SetConnectable(v); err != nil {
		glog.Errorf("conn: set connectable: %v", err)
	}
}

func (m *Manager) setVisibility(discoverable, connectable bool) {
	if err := m.Stack.SetDiscoverable(discoverable); err != nil {
		glog.Errorf("conn: set discoverable: %v", err)
	}
	m.setConnectable(connectable)
}
