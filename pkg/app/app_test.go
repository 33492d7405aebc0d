package app_test

import (
	"errors"
	"testing"

	"github.com/golang/protobuf/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/tws.go/pkg/app"
	"github.com/robotalks/tws.go/pkg/bt"
	"github.com/robotalks/tws.go/pkg/bt/sim"
	"github.com/robotalks/tws.go/pkg/evt"
	fx "github.com/robotalks/tws.go/pkg/framework"
	"github.com/robotalks/tws.go/pkg/framework/fxtest"
	"github.com/robotalks/tws.go/pkg/status"
)

var phone = bt.Addr{0x11, 0x22, 0x33, 0x44, 0x55, 0x66}

type reporter struct {
	statuses []*status.DeviceStatus
	events   []*status.EventReport
	replies  []*status.Reply
	eventErr error
}

func (r *reporter) ReportStatus(st *status.DeviceStatus) error {
	r.statuses = append(r.statuses, st)
	return nil
}

func (r *reporter) ReportEvent(ev *status.EventReport) error {
	r.events = append(r.events, ev)
	return r.eventErr
}

func (r *reporter) Reply(rep *status.Reply) error {
	r.replies = append(r.replies, rep)
	return nil
}

func (r *reporter) eventNames() (names []string) {
	for _, ev := range r.events {
		names = append(names, ev.Name)
	}
	return
}

func (r *reporter) lastReply() *status.Reply {
	return r.replies[len(r.replies)-1]
}

type packetFunc func([]byte) error

func (f packetFunc) WritePacket(pkt []byte) error { return f(pkt) }

type earbud struct {
	*fxtest.Harness
	stack *sim.Stack
	app   *app.App
	rep   *reporter
	peers []*earbud
}

func newEarbud(t *testing.T, channel bt.Channel, addr bt.Addr, phones ...string) *earbud {
	h := fxtest.NewHarness()
	stack := sim.New(addr, channel)
	stack.Poster = h.Kernel
	stack.PhonePresent = true
	cfg := app.NewConfig()
	cfg.DeviceID = channel.String()
	cfg.Channel = channel.String()
	cfg.Phones = phones
	b := &earbud{Harness: h, stack: stack, app: app.New(*cfg, stack, h.Kernel), rep: &reporter{}}
	b.app.Reporter = b.rep
	require.NoError(t, h.Kernel.Add(b.app))
	return b
}

func (b *earbud) command(t *testing.T, name string, args ...string) *status.Reply {
	n := len(b.rep.replies)
	require.NoError(t, app.SubmitCommand(b.Kernel, &status.Command{CorrelationId: name + "-1", Name: name, Args: args}))
	return b.reply(t, n)
}

func (b *earbud) reply(t *testing.T, n int) *status.Reply {
	settle(b.peers...)
	require.Len(t, b.rep.replies, n+1)
	return b.rep.lastReply()
}

type pair struct {
	left, right *earbud
}

// settle dispatches on all earbuds until every queue is empty.
func settle(bs ...*earbud) {
	for {
		n := 0
		for _, b := range bs {
			n += b.Drain()
		}
		if n == 0 {
			return
		}
	}
}

func newPair(t *testing.T) *pair {
	p := &pair{
		left:  newEarbud(t, bt.ChannelLeft, bt.Addr{0x0a}, phone.String()),
		right: newEarbud(t, bt.ChannelRight, bt.Addr{0x0b}),
	}
	p.left.peers = []*earbud{p.left, p.right}
	p.right.peers = p.left.peers
	return p
}

func (p *pair) powerOn(t *testing.T) {
	require.NoError(t, p.left.Kernel.Send(fx.TagBT, bt.EvtPowerOn, nil))
	require.NoError(t, p.right.Kernel.Send(fx.TagBT, bt.EvtPowerOn, nil))
	settle(p.left, p.right)

	p.left.stack.Link = packetFunc(p.right.stack.HandlePacket)
	p.right.stack.Link = packetFunc(p.left.stack.HandlePacket)
	p.left.stack.LinkUp()
	settle(p.left, p.right)
}

func TestPowerOnPairsAndConnects(t *testing.T) {
	p := newPair(t)
	p.left.app.Device.SetBattery(80)
	p.left.app.Device.SetCallVolume(3)
	p.right.app.Device.SetBattery(60)
	p.powerOn(t)

	l, r := p.left.app, p.right.app
	assert.True(t, l.WWS.IsConnectedMaster())
	assert.True(t, r.WWS.IsSlave())
	assert.Equal(t, bt.Connected, p.left.stack.SysState())
	assert.Equal(t, phone, p.left.stack.LastConnect())
	assert.Equal(t, 0, p.right.stack.Calls().Connect)

	assert.Equal(t, uint8(60), l.WWS.PeerBattery())
	assert.Equal(t, uint8(80), r.WWS.PeerBattery())
	assert.Equal(t, uint8(3), r.Device.CallVolume())

	assert.Contains(t, p.left.rep.eventNames(), evt.WWSConnected.String())
	assert.Contains(t, p.right.rep.eventNames(), evt.WWSConnected.String())
	st := p.left.rep.statuses[len(p.left.rep.statuses)-1]
	assert.Equal(t, "master", st.Role)
	assert.Equal(t, "left", st.DeviceId)
	assert.Equal(t, uint32(1), st.PairedPhones)
	assert.Equal(t, uint32(60), st.PeerBattery)
}

func TestCommands(t *testing.T) {
	p := newPair(t)
	p.powerOn(t)
	l, r := p.left.app, p.right.app

	rep := p.left.command(t, "battery", "5")
	assert.Empty(t, rep.Error)
	assert.Equal(t, "battery-1", rep.CorrelationId)
	assert.Equal(t, uint32(5), rep.Status.Battery)
	assert.Equal(t, uint8(5), r.WWS.PeerBattery())

	p.left.command(t, "charging", "on")
	assert.True(t, l.Device.Charging())
	assert.True(t, r.WWS.PeerCharging())

	p.right.command(t, "in-ear", "on")
	assert.True(t, l.WWS.PeerInEar())

	p.right.command(t, "volume", "4", "6")
	assert.Equal(t, uint8(4), l.Device.CallVolume())
	assert.Equal(t, uint8(6), l.Device.MusicVolume())

	rep = p.left.command(t, "status")
	assert.Empty(t, rep.Error)
	assert.Equal(t, "connected", rep.Status.TwsState)
}

func TestCommandErrors(t *testing.T) {
	p := newPair(t)
	p.powerOn(t)

	assert.Equal(t, app.ErrUnsupportedCommand.Error(), p.left.command(t, "fly").Error)
	assert.Equal(t, app.ErrMissingArgs.Error(), p.left.command(t, "battery").Error)
	assert.NotEmpty(t, p.left.command(t, "battery", "101").Error)
	assert.NotEmpty(t, p.left.command(t, "charging", "maybe").Error)
	assert.NotEmpty(t, p.right.command(t, "role-switch").Error)
}

func TestUserEventReachesPeer(t *testing.T) {
	p := newPair(t)
	p.powerOn(t)

	p.left.command(t, "event", "0x102")
	var forwarded *status.EventReport
	for _, ev := range p.right.rep.events {
		if ev.FromPeer {
			forwarded = ev
		}
	}
	require.NotNil(t, forwarded)
	assert.Equal(t, uint32(evt.UserBase+2), forwarded.Event)
	assert.Equal(t, "user-2", forwarded.Name)
}

func TestInjectAndPeerCommand(t *testing.T) {
	p := newPair(t)
	p.powerOn(t)

	inner, err := proto.Marshal(&status.Command{Name: "battery", Args: []string{"7"}})
	require.NoError(t, err)
	n := len(p.left.rep.replies)
	require.NoError(t, app.SubmitCommand(p.left.Kernel, &status.Command{
		CorrelationId: "inject-1",
		Name:          "inject",
		Inject:        &status.Inject{Tag: uint32(fx.TagCLI), Id: uint32(app.MsgCommand), Payload: inner},
	}))
	assert.Empty(t, p.left.reply(t, n).Error)
	assert.Equal(t, uint8(7), p.left.app.Device.Battery())

	p.left.command(t, "peer", "battery", "9")
	assert.Equal(t, uint8(9), p.right.app.Device.Battery())
	assert.Equal(t, uint8(9), p.left.app.WWS.PeerBattery())
}

func TestRoleSwitchCommand(t *testing.T) {
	p := newPair(t)
	p.powerOn(t)

	rep := p.left.command(t, "role-switch")
	assert.Empty(t, rep.Error)
	assert.True(t, p.left.app.WWS.IsSlave())
	assert.True(t, p.right.app.WWS.IsMaster())
	assert.Contains(t, p.right.rep.eventNames(), evt.WWSRoleSwitch.String())
}

func TestResetPDL(t *testing.T) {
	p := newPair(t)
	p.powerOn(t)
	p.right.app.PDL.Add(phone)

	p.left.command(t, "reset-pdl")
	assert.True(t, p.left.app.PDL.Empty())
	assert.True(t, p.right.app.PDL.Empty())
	assert.Equal(t, 1, p.right.stack.Calls().ClearPairList)
}

func TestResetPDLFromSlave(t *testing.T) {
	p := newPair(t)
	p.powerOn(t)
	p.right.app.PDL.Add(phone)
	require.False(t, p.left.app.PDL.Empty())

	rep := p.right.command(t, "reset-pdl")
	assert.Empty(t, rep.Error)
	assert.True(t, p.left.app.PDL.Empty())
	assert.True(t, p.right.app.PDL.Empty())
	assert.Equal(t, 1, p.left.stack.Calls().ClearPairList)
	assert.Equal(t, 1, p.right.stack.Calls().ClearPairList)
	assert.Contains(t, p.left.rep.eventNames(), evt.ClearPDL.String())
}

func TestEventHandledWhenReportFails(t *testing.T) {
	p := newPair(t)
	p.powerOn(t)
	p.right.app.PDL.Add(phone)
	p.left.rep.eventErr = errors.New("broker offline")
	statuses := len(p.left.rep.statuses)

	p.right.command(t, "reset-pdl")
	assert.Contains(t, p.left.rep.eventNames(), evt.ClearPDL.String())
	assert.True(t, p.left.app.PDL.Empty())
	assert.True(t, p.right.app.PDL.Empty())
	assert.Greater(t, len(p.left.rep.statuses), statuses)
}

func TestVisibilityFollowsMaster(t *testing.T) {
	p := newPair(t)
	p.powerOn(t)
	l, r := p.left.app, p.right.app

	require.NoError(t, p.left.stack.SetDiscoverable(false))
	settle(p.left, p.right)
	assert.False(t, r.WWS.PeerDiscoverable())

	require.NoError(t, p.left.stack.EnterAGPairing())
	settle(p.left, p.right)
	assert.True(t, r.WWS.PeerDiscoverable())
	assert.True(t, r.WWS.PeerConnectable())
	disc, conn := r.Device.PeerVisibility()
	assert.True(t, disc)
	assert.True(t, conn)

	require.NoError(t, p.left.stack.SetConnectable(false))
	settle(p.left, p.right)
	assert.True(t, r.WWS.PeerDiscoverable())
	assert.False(t, r.WWS.PeerConnectable())

	// the slave doesn't publish its own
	require.NoError(t, p.right.stack.EnterAGPairing())
	settle(p.left, p.right)
	assert.False(t, l.WWS.PeerDiscoverable())
}

func TestSettingCommands(t *testing.T) {
	p := newPair(t)
	p.powerOn(t)
	l, r := p.left.app, p.right.app

	p.left.command(t, "box", "closed")
	assert.Equal(t, bt.BoxClosed, l.Device.BoxState())
	assert.Equal(t, bt.BoxClosed, r.WWS.PeerBoxState())
	assert.NotEmpty(t, p.left.command(t, "box", "ajar").Error)

	p.left.command(t, "game-mode", "on")
	assert.True(t, r.Device.GameMode())

	p.left.command(t, "anc-level", "2")
	p.left.command(t, "transparency-level", "3")
	assert.Equal(t, uint8(2), r.Device.ANCLevel())
	assert.Equal(t, uint8(3), r.Device.TransparencyLevel())

	p.left.command(t, "key", "2", "1", "0x150")
	assert.Equal(t, uint16(0x150), l.Device.ReadKey(2, 1))
	assert.Equal(t, uint16(0x150), r.Device.ReadKey(2, 1))
	p.left.command(t, "key", "reset")
	assert.Zero(t, r.Device.ReadKey(2, 1))

	p.left.command(t, "in-ear-detect", "off")
	assert.False(t, l.Device.InEarEnabled())
	assert.False(t, r.Device.InEarEnabled())
	p.right.command(t, "in-ear-detect", "on")
	assert.True(t, l.Device.InEarEnabled())
	assert.True(t, r.Device.InEarEnabled())
}
