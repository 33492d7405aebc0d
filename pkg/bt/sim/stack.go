// Package sim simulates the radio stack of one earbud on a host. The
// earbud link is carried by a link.PacketWriter, and a simulated phone
// accepts connections on request.
package sim

import (
	"errors"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/tws.go/pkg/bt"
	fx "github.com/robotalks/tws.go/pkg/framework"
	"github.com/robotalks/tws.go/pkg/link"
)

// ErrTWSNotConnected is returned when sending to a missing peer.
var ErrTWSNotConnected = errors.New("tws not connected")

// Frame kinds on the simulated earbud link.
const (
	frameData byte = iota
	frameHello
	frameHelloAck
	frameRoleSwitch
)

// Calls counts commands issued to the stack.
type Calls struct {
	Connect        int
	Disconnect     int
	EnterAGPairing int
	ClearPairList  int
	RoleSwitch     int
	StartPair      int
}

// Stack implements bt.Stack.
type Stack struct {
	// Addr is the address of this earbud.
	Addr bt.Addr
	// Poster receives radio events, normally the kernel.
	Poster fx.Sender
	// Link carries frames to the peer earbud.
	Link link.PacketWriter
	// PhonePresent makes Connect succeed immediately.
	PhonePresent bool
	// ConnectErr is returned by Connect when set.
	ConnectErr error
	// OnClearPairList is invoked by ClearPairList.
	OnClearPairList func()

	lock         sync.Mutex
	state        bt.SysState
	discoverable bool
	connectable  bool
	quality      bt.LinkQuality
	twsState     bt.TWSState
	role         bt.Role
	channel      bt.Channel
	peerAddr     bt.Addr
	lastConnect  bt.Addr
	tdsData      []byte
	sent         [][]byte
	exitSniff    []bool
	calls        Calls
}

// New creates a Stack for the given channel, powered on and idle.
func New(addr bt.Addr, channel bt.Channel) *Stack {
	return &Stack{
		Addr:     addr,
		state:    bt.Idle,
		twsState: bt.TWSDisconnected,
		channel:  channel,
		quality:  bt.LinkQuality{PhoneRSSI: -50, PeerRSSI: -50},
	}
}

func (s *Stack) post(id uint16, payload []byte) {
	if s.Poster == nil {
		return
	}
	if err := s.Poster.Send(fx.TagBT, id, payload); err != nil {
		glog.Errorf("sim: post event %d: %v", id, err)
	}
}

// SysState implements bt.Stack.
func (s *Stack) SysState() bt.SysState {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.state
}

// SetSysState forces the system state and reports it.
func (s *Stack) SetSysState(state bt.SysState) {
	s.lock.Lock()
	s.state = state
	s.lock.Unlock()
	s.post(bt.EvtSysState, bt.EncodeSysState(state))
}

// LinkQuality implements bt.Stack.
func (s *Stack) LinkQuality() bt.LinkQuality {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.quality
}

// SetLinkQuality changes the sampled link quality.
func (s *Stack) SetLinkQuality(q bt.LinkQuality) {
	s.lock.Lock()
	s.quality = q
	s.lock.Unlock()
}

// Connect implements bt.Stack.
func (s *Stack) Connect(addr bt.Addr) error {
	s.lock.Lock()
	s.calls.Connect++
	s.lastConnect = addr
	if s.ConnectErr != nil {
		s.lock.Unlock()
		return s.ConnectErr
	}
	present := s.PhonePresent
	if present {
		s.state = bt.Connected
	}
	s.lock.Unlock()
	if present {
		s.post(bt.EvtConnState, bt.ConnStateEvent{Connected: true}.Encode())
		s.post(bt.EvtSysState, bt.EncodeSysState(bt.Connected))
	}
	return nil
}

// LastConnect returns the address of the last Connect call.
func (s *Stack) LastConnect() bt.Addr {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.lastConnect
}

// Disconnect implements bt.Stack.
func (s *Stack) Disconnect() error {
	s.lock.Lock()
	s.calls.Disconnect++
	wasConnected := s.state >= bt.Connected
	if wasConnected {
		s.state = s.visibleStateLocked()
	}
	state := s.state
	s.lock.Unlock()
	if wasConnected {
		s.post(bt.EvtConnState, bt.ConnStateEvent{Reason: bt.ReasonLocal}.Encode())
		s.post(bt.EvtSysState, bt.EncodeSysState(state))
	}
	return nil
}

// DropPhone simulates the phone link going away with reason.
func (s *Stack) DropPhone(reason bt.DisconnectReason) {
	s.lock.Lock()
	s.state = s.visibleStateLocked()
	state := s.state
	s.lock.Unlock()
	s.post(bt.EvtConnState, bt.ConnStateEvent{Reason: reason}.Encode())
	s.post(bt.EvtSysState, bt.EncodeSysState(state))
}

func (s *Stack) visibleStateLocked() bt.SysState {
	switch {
	case s.discoverable:
		return bt.AGPairing
	case s.connectable:
		return bt.Connectable
	}
	return bt.Idle
}

// updateVisibility applies fn and reports the visibility when it changed,
// along with the system state it leads to.
func (s *Stack) updateVisibility(fn func()) error {
	s.lock.Lock()
	prev := bt.VisibilityEvent{Discoverable: s.discoverable, Connectable: s.connectable}
	fn()
	vis := bt.VisibilityEvent{Discoverable: s.discoverable, Connectable: s.connectable}
	changed := false
	if s.state >= bt.Idle && s.state < bt.Connected {
		next := s.visibleStateLocked()
		changed, s.state = next != s.state, next
	}
	state := s.state
	s.lock.Unlock()
	if changed {
		s.post(bt.EvtSysState, bt.EncodeSysState(state))
	}
	if vis != prev {
		s.post(bt.EvtVisibility, vis.Encode())
	}
	return nil
}

// SetDiscoverable implements bt.Stack.
func (s *Stack) SetDiscoverable(v bool) error {
	return s.updateVisibility(func() { s.discoverable = v })
}

// SetConnectable implements bt.Stack.
func (s *Stack) SetConnectable(v bool) error {
	return s.updateVisibility(func() { s.connectable = v })
}

// IsDiscoverable implements bt.Stack.
func (s *Stack) IsDiscoverable() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.discoverable
}

// IsConnectable implements bt.Stack.
func (s *Stack) IsConnectable() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.connectable
}

// EnterAGPairing implements bt.Stack.
func (s *Stack) EnterAGPairing() error {
	return s.updateVisibility(func() {
		s.calls.EnterAGPairing++
		s.discoverable, s.connectable = true, true
	})
}

// ClearPairList implements bt.Stack.
func (s *Stack) ClearPairList() error {
	s.lock.Lock()
	s.calls.ClearPairList++
	fn := s.OnClearPairList
	s.lock.Unlock()
	if fn != nil {
		fn()
	}
	return nil
}

// Calls returns the command counters.
func (s *Stack) Calls() Calls {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.calls
}

// TWSState implements bt.Stack.
func (s *Stack) TWSState() (bt.TWSState, bt.Role, bt.Channel, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.twsState, s.role, s.channel, nil
}

// TWSPeerAddr implements bt.Stack.
func (s *Stack) TWSPeerAddr() (bt.Addr, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.peerAddr, nil
}

// SetPeerAddr presets the paired earbud.
func (s *Stack) SetPeerAddr(addr bt.Addr) {
	s.lock.Lock()
	s.peerAddr = addr
	s.lock.Unlock()
}

// TWSStartPair implements bt.Stack.
func (s *Stack) TWSStartPair(p bt.PairParams) error {
	s.lock.Lock()
	s.calls.StartPair++
	if s.twsState == bt.TWSConnected {
		s.lock.Unlock()
		return nil
	}
	s.twsState = bt.TWSPairing
	s.lock.Unlock()
	glog.Infof("sim: tws pairing %04x:%04x for %v", p.VID, p.PID, p.Timeout)
	s.post(bt.EvtTWSState, bt.TWSStateEvent{State: bt.TWSPairing}.Encode())
	s.sendHello(frameHello)
	return nil
}

// TWSRoleSwitch implements bt.Stack. The peer is asked to take over.
func (s *Stack) TWSRoleSwitch() error {
	s.lock.Lock()
	s.calls.RoleSwitch++
	if s.twsState != bt.TWSConnected || s.role != bt.RoleMaster {
		s.lock.Unlock()
		return ErrTWSNotConnected
	}
	s.role = bt.RoleSlave
	peer := s.peerAddr
	s.lock.Unlock()
	if err := s.write([]byte{frameRoleSwitch}); err != nil {
		return err
	}
	s.post(bt.EvtTWSRole, bt.TWSRoleEvent{Role: bt.RoleSlave, Reason: bt.RoleChangedUser, Addr: peer}.Encode())
	return nil
}

// TWSSendData implements bt.Stack.
func (s *Stack) TWSSendData(data []byte, exitSniff bool) error {
	s.lock.Lock()
	if s.twsState != bt.TWSConnected {
		s.lock.Unlock()
		return ErrTWSNotConnected
	}
	s.sent = append(s.sent, append([]byte(nil), data...))
	s.exitSniff = append(s.exitSniff, exitSniff)
	s.lock.Unlock()
	return s.write(append([]byte{frameData}, data...))
}

// Sent returns the data packets sent to the peer.
func (s *Stack) Sent() [][]byte {
	s.lock.Lock()
	defer s.lock.Unlock()
	return append([][]byte(nil), s.sent...)
}

// SentExitSniff returns the exitSniff flag of each packet in Sent.
func (s *Stack) SentExitSniff() []bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return append([]bool(nil), s.exitSniff...)
}

// TWSSetTDSData implements bt.Stack.
func (s *Stack) TWSSetTDSData(data []byte) error {
	s.lock.Lock()
	s.tdsData = append([]byte(nil), data...)
	s.lock.Unlock()
	return nil
}

func (s *Stack) write(frame []byte) error {
	if s.Link == nil {
		return nil
	}
	return s.Link.WritePacket(frame)
}

func (s *Stack) sendHello(kind byte) {
	frame := make([]byte, 8)
	frame[0], frame[1] = kind, byte(s.channel)
	copy(frame[2:], s.Addr[:])
	if err := s.write(frame); err != nil {
		glog.V(2).Infof("sim: hello not sent: %v", err)
	}
}

// LinkUp implements link.Observer.
func (s *Stack) LinkUp() {
	s.sendHello(frameHello)
}

// LinkDown implements link.Observer.
func (s *Stack) LinkDown(error) {
	s.lock.Lock()
	wasConnected := s.twsState == bt.TWSConnected
	s.twsState, s.role = bt.TWSDisconnected, bt.RoleUnknown
	peer := s.peerAddr
	s.lock.Unlock()
	if wasConnected {
		s.post(bt.EvtTWSState, bt.TWSStateEvent{State: bt.TWSDisconnected, Reason: bt.ReasonLinkLoss, Addr: peer}.Encode())
	}
}

// HandlePacket implements link.PacketHandler for frames from the peer.
func (s *Stack) HandlePacket(frame []byte) error {
	if len(frame) == 0 {
		return errors.New("empty frame")
	}
	switch frame[0] {
	case frameData:
		s.post(bt.EvtTWSData, frame[1:])
	case frameHello, frameHelloAck:
		if len(frame) != 8 {
			return errors.New("bad hello")
		}
		var addr bt.Addr
		copy(addr[:], frame[2:])
		if frame[0] == frameHello {
			s.sendHello(frameHelloAck)
		}
		s.peerConnected(addr, bt.Channel(frame[1]))
	case frameRoleSwitch:
		s.lock.Lock()
		s.role = bt.RoleMaster
		peer := s.peerAddr
		s.lock.Unlock()
		s.post(bt.EvtTWSRole, bt.TWSRoleEvent{Role: bt.RoleMaster, Reason: bt.RoleChangedUser, Addr: peer}.Encode())
	default:
		return errors.New("unknown frame")
	}
	return nil
}

// ConnectPeer brings the earbud link up as if the peer at addr said hello.
func (s *Stack) ConnectPeer(addr bt.Addr, channel bt.Channel) {
	s.peerConnected(addr, channel)
}

// peerConnected settles roles: the left earbud starts as master unless
// the peer claims left too, then the lower address wins.
func (s *Stack) peerConnected(addr bt.Addr, peerChannel bt.Channel) {
	s.lock.Lock()
	if s.twsState == bt.TWSConnected {
		s.lock.Unlock()
		return
	}
	role := bt.RoleSlave
	switch {
	case s.channel == bt.ChannelLeft && peerChannel != bt.ChannelLeft:
		role = bt.RoleMaster
	case s.channel == peerChannel && lessAddr(s.Addr, addr):
		role = bt.RoleMaster
	}
	s.twsState, s.role, s.peerAddr = bt.TWSConnected, role, addr
	s.lock.Unlock()
	s.post(bt.EvtTWSState, bt.TWSStateEvent{State: bt.TWSConnected, Addr: addr}.Encode())
	s.post(bt.EvtTWSRole, bt.TWSRoleEvent{Role: role, Reason: bt.RoleChangedUser, Addr: addr}.Encode())
}

func lessAddr(a, b bt.Addr) bool {
	for n := len(a) - 1; n >= 0; n-- {
		if a[n] != b[n] {
			return a[n] < b[n]
		}
	}
	return false
}
