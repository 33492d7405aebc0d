// Package app wires the connectivity core of one earbud: the radio
// events are routed to the connection manager and the peer sync engine,
// system events are reported and shell commands are executed.
package app

import (
	"github.com/golang/glog"

	"github.com/robotalks/tws.go/pkg/bt"
	"github.com/robotalks/tws.go/pkg/conn"
	"github.com/robotalks/tws.go/pkg/device"
	"github.com/robotalks/tws.go/pkg/evt"
	fx "github.com/robotalks/tws.go/pkg/framework"
	"github.com/robotalks/tws.go/pkg/status"
	"github.com/robotalks/tws.go/pkg/wws"
)

const maxRecentEvents = 32

// Reporter publishes status, events and command replies.
type Reporter interface {
	ReportStatus(*status.DeviceStatus) error
	ReportEvent(*status.EventReport) error
	Reply(*status.Reply) error
}

// App is one earbud.
type App struct {
	Config Config
	Stack  bt.Stack
	Device *device.Device
	PDL    *PDL
	Conn   *conn.Manager
	WWS    *wws.Engine
	// Reporter is optional.
	Reporter Reporter
	// Events keeps the recent events.
	Events []evt.Event
}

// New creates an App sending its events through sender, normally the
// kernel.
func New(cfg Config, stack bt.Stack, sender fx.Sender) *App {
	a := &App{
		Config: cfg,
		Stack:  stack,
		Device: device.New(),
		PDL:    NewPDL(MaxPhones),
	}
	for _, phone := range cfg.Phones {
		if addr, err := bt.ParseAddr(phone); err == nil {
			a.PDL.Add(addr)
		}
	}
	sink := &eventSink{sender: sender}
	a.WWS = wws.New(cfg.WWS, stack, a.Device, sink, a.PDL)
	a.Conn = conn.New(cfg.Conn, stack, a.PDL, a.WWS, sink)
	a.WWS.Conn = a.Conn
	a.Device.OnVolumeChanged = a.WWS.HandleVolumeChanged
	return a
}

// AddToKernel implements fx.KernelAdder.
func (a *App) AddToKernel(k *fx.Kernel) error {
	errs := &fx.AggregatedError{}
	errs.Add(
		k.Add(a.Conn, a.WWS),
		k.Register(fx.TagBT, fx.HandlerFunc(a.handleBT)),
		k.Register(fx.TagEvt, fx.HandlerFunc(a.handleEvent)),
		k.Register(fx.TagCLI, fx.HandlerFunc(a.handleCLI)),
	)
	return errs.Aggregate()
}

func (a *App) handleBT(dc fx.DispatchContext, id uint16, payload []byte) {
	if err := a.routeBT(dc, id, payload); err != nil {
		glog.Errorf("bt: event %d: %v", id, err)
		return
	}
	a.reportStatus(dc)
}

func (a *App) routeBT(dc fx.DispatchContext, id uint16, payload []byte) error {
	switch id {
	case bt.EvtPowerOn:
		glog.Info("bt: power on")
		a.WWS.HandlePowerOn(dc)
		a.Conn.HandlePowerOn(dc)
	case bt.EvtPowerOff:
		glog.Info("bt: power off")
		a.Conn.HandlePowerOff(dc)
		a.WWS.HandlePowerOff(dc)
	case bt.EvtConnState:
		e, err := bt.DecodeConnState(payload)
		if err != nil {
			return err
		}
		a.Conn.HandleConnState(dc, e.Connected, e.Reason)
		if e.Connected {
			a.WWS.HandleBTConnected(dc)
		}
	case bt.EvtSysState:
		s, err := bt.DecodeSysState(payload)
		if err != nil {
			return err
		}
		glog.V(2).Infof("bt: state %s", s)
		a.WWS.HandleSysState(dc, s)
	case bt.EvtTWSState:
		e, err := bt.DecodeTWSState(payload)
		if err != nil {
			return err
		}
		a.WWS.HandleStateChanged(dc, e.State, e.Reason, e.Addr)
	case bt.EvtTWSRole:
		e, err := bt.DecodeTWSRole(payload)
		if err != nil {
			return err
		}
		a.WWS.HandleRoleChanged(dc, e.Role, e.Addr, e.Reason)
	case bt.EvtTWSData:
		a.WWS.HandleRecvData(dc, payload)
	case bt.EvtTDSData:
		d, err := bt.DecodeTDSData(payload)
		if err != nil {
			return err
		}
		a.WWS.HandleTDSData(dc, d)
	case bt.EvtModeChanged:
		single, err := bt.DecodeModeChanged(payload)
		if err != nil {
			return err
		}
		a.WWS.HandleModeChanged(dc, single)
	case bt.EvtVisibility:
		v, err := bt.DecodeVisibility(payload)
		if err != nil {
			return err
		}
		a.WWS.HandleVisibilityChanged(dc, v.Discoverable, v.Connectable)
	default:
		glog.Warningf("bt: unknown event %d", id)
	}
	return nil
}

// Status takes a snapshot of the earbud.
func (a *App) Status(dc fx.DispatchContext) *status.DeviceStatus {
	ws := a.WWS.State()
	q := a.Stack.LinkQuality()
	return &status.DeviceStatus{
		DeviceId:     a.Config.DeviceID,
		Channel:      ws.Channel.String(),
		Role:         ws.Role.String(),
		TwsState:     ws.State.String(),
		SysState:     a.Stack.SysState().String(),
		Battery:      uint32(a.Device.Battery()),
		PeerBattery:  uint32(ws.Peer.Battery),
		InEar:        a.Device.InEar(),
		PeerInEar:    ws.Peer.InEar,
		Charging:     a.Device.Charging(),
		PeerCharging: ws.Peer.Charging,
		CallVolume:   uint32(a.Device.CallVolume()),
		MusicVolume:  uint32(a.Device.MusicVolume()),
		ListenMode:   listenModeName(a.Device.ListenMode()),
		PhoneRssi:    int32(q.PhoneRSSI),
		PeerRssi:     int32(q.PeerRSSI),
		RetryCount:   uint32(a.Conn.State().RetryCount),
		PairedPhones: uint32(a.PDL.Len()),
		Timestamp:    dc.Time().UnixNano(),
	}
}

func (a *App) reportStatus(dc fx.DispatchContext) {
	if a.Reporter == nil {
		return
	}
	if err := a.Reporter.ReportStatus(a.Status(dc)); err != nil {
		glog.Errorf("status: %v", err)
	}
}

// ReportStatus publishes the status from the kernel loop.
func (a *App) ReportStatus(k *fx.Kernel) error {
	return k.Post(a.reportStatus)
}

func listenModeName(m bt.ListenMode) string {
	switch m {
	case bt.ListenNormal:
		return "normal"
	case bt.ListenANC:
		return "anc"
	case bt.ListenTransparency:
		return "transparency"
	}
	return "unknown"
}
