package app

import (
	"encoding/binary"

	"github.com/golang/glog"

	"github.com/robotalks/tws.go/pkg/evt"
	fx "github.com/robotalks/tws.go/pkg/framework"
	"github.com/robotalks/tws.go/pkg/status"
)

// Message ids on fx.TagEvt. The payload is the event id.
const (
	// MsgEvent is a system event raised locally.
	MsgEvent uint16 = iota + 1
	// MsgPeerEvent is a user event forwarded by the peer.
	MsgPeerEvent
	// MsgUserEvent is a user event raised locally, shared with the peer.
	MsgUserEvent
)

func encodeEvent(e evt.Event) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, uint16(e))
	return b
}

func decodeEvent(b []byte) (evt.Event, bool) {
	if len(b) != 2 {
		return evt.None, false
	}
	return evt.Event(binary.LittleEndian.Uint16(b)), true
}

// eventSink queues events to fx.TagEvt so they are handled after the
// current dispatch.
type eventSink struct {
	sender fx.Sender
}

func (s *eventSink) send(id uint16, e evt.Event) {
	if err := s.sender.Send(fx.TagEvt, id, encodeEvent(e)); err != nil {
		glog.Errorf("evt: queue %s: %v", e, err)
	}
}

// Emit implements evt.Emitter.
func (s *eventSink) Emit(e evt.Event) {
	s.send(MsgEvent, e)
}

// Forward implements wws.Events.
func (s *eventSink) Forward(e evt.Event) {
	s.send(MsgPeerEvent, e)
}

func (a *App) handleEvent(dc fx.DispatchContext, id uint16, payload []byte) {
	e, ok := decodeEvent(payload)
	if !ok {
		glog.Errorf("evt: bad payload %d bytes", len(payload))
		return
	}
	switch id {
	case MsgEvent:
		glog.Infof("evt: %s", e)
	case MsgPeerEvent:
		glog.Infof("evt: %s from peer", e)
	case MsgUserEvent:
		glog.Infof("evt: user %s", e)
		if a.WWS.IsConnected() {
			a.WWS.SendUsrEvt(e)
		}
	default:
		glog.Warningf("evt: unknown message %d", id)
		return
	}
	a.Events = append(a.Events, e)
	if len(a.Events) > maxRecentEvents {
		a.Events = a.Events[1:]
	}
	if a.Reporter != nil {
		err := a.Reporter.ReportEvent(&status.EventReport{
			DeviceId:  a.Config.DeviceID,
			Event:     uint32(e),
			Name:      e.String(),
			FromPeer:  id == MsgPeerEvent,
			Timestamp: dc.Time().UnixNano(),
		})
		if err != nil {
			glog.Errorf("evt: report %s: %v", e, err)
		}
	}
	switch e {
	case evt.WWSConnected, evt.WWSDisconnected, evt.WWSRoleSwitch:
		a.reportStatus(dc)
	case evt.ClearPDL:
		if err := a.clearPDL(); err != nil {
			glog.Errorf("evt: clear pair list: %v", err)
		}
		if a.WWS.IsConnectedMaster() {
			a.WWS.SendResetPDL()
		}
		a.reportStatus(dc)
	}
}

func (a *App) clearPDL() error {
	a.PDL.Clear()
	return a.Stack.ClearPairList()
}
