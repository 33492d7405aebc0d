package conn_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/tws.go/pkg/bt"
	"github.com/robotalks/tws.go/pkg/bt/sim"
	"github.com/robotalks/tws.go/pkg/conn"
	"github.com/robotalks/tws.go/pkg/evt"
	fx "github.com/robotalks/tws.go/pkg/framework"
	"github.com/robotalks/tws.go/pkg/framework/fxtest"
)

type peer struct {
	slave        bool
	connected    bool
	discoverable bool
	addr         bt.Addr
}

func (p *peer) IsMaster() bool          { return !p.slave }
func (p *peer) IsSlave() bool           { return p.slave }
func (p *peer) IsConnected() bool       { return p.connected }
func (p *peer) IsConnectedMaster() bool { return p.connected && !p.slave }
func (p *peer) PeerDiscoverable() bool  { return p.discoverable }
func (p *peer) PeerAddr() bt.Addr       { return p.addr }

type pdl []bt.Addr

func (l pdl) First() (bt.Addr, bool) {
	if len(l) == 0 {
		return bt.Addr{}, false
	}
	return l[0], true
}

func (l pdl) Empty() bool { return len(l) == 0 }

type otaPower struct{}

func (otaPower) PowerOnReason() conn.PowerOnReason { return conn.PowerOnOTA }

var phone = bt.Addr{1, 2, 3, 4, 5, 6}

type fixture struct {
	*fxtest.Harness
	stack  *sim.Stack
	peer   *peer
	events *evt.Recorder
	mgr    *conn.Manager
}

func newFixture(t *testing.T, paired ...bt.Addr) *fixture {
	f := &fixture{
		Harness: fxtest.NewHarness(),
		stack:   sim.New(bt.Addr{0xa}, bt.ChannelLeft),
		peer:    &peer{},
		events:  &evt.Recorder{},
	}
	f.mgr = conn.New(conn.DefaultConfig(), f.stack, pdl(paired), f.peer, f.events)
	require.NoError(t, f.Kernel.Add(f.mgr))
	return f
}

func (f *fixture) connState(connected bool, reason bt.DisconnectReason) {
	f.Do(func(dc fx.DispatchContext) { f.mgr.HandleConnState(dc, connected, reason) })
}

func (f *fixture) roleChanged(master bool, reason bt.RoleChangedReason) {
	f.Do(func(dc fx.DispatchContext) { f.mgr.HandleWWSRoleChanged(dc, master, reason) })
}

func (f *fixture) reconnectPending() bool {
	return f.Kernel.HasTimer(fx.TagConn, conn.MsgReconnect)
}

func TestPowerOnReconnects(t *testing.T) {
	f := newFixture(t, phone)
	f.Do(f.mgr.HandlePowerOn)
	assert.Equal(t, 1, f.stack.Calls().Connect)
	assert.Equal(t, phone, f.stack.LastConnect())
	assert.True(t, f.stack.IsConnectable())
	st := f.mgr.State()
	assert.Equal(t, uint8(1), st.RetryCount)
	assert.Equal(t, conn.ConnectPowerOn, st.ConnectReason)
}

func TestPowerOnAfterOTAIsLinkLoss(t *testing.T) {
	f := newFixture(t, phone)
	f.mgr.Power = otaPower{}
	f.Do(f.mgr.HandlePowerOn)
	assert.Equal(t, conn.ConnectLinkLoss, f.mgr.State().ConnectReason)
}

func TestPowerOnPairing(t *testing.T) {
	f := newFixture(t)
	f.Do(f.mgr.HandlePowerOn)
	assert.Equal(t, 1, f.stack.Calls().EnterAGPairing)
	assert.Zero(t, f.stack.Calls().Connect)

	f = newFixture(t, phone)
	f.mgr.SetPowerOnAction(conn.ActionPairing)
	f.Do(f.mgr.HandlePowerOn)
	assert.Equal(t, 1, f.stack.Calls().EnterAGPairing)
	assert.Equal(t, conn.ActionReconnect, f.mgr.State().PowerOnAction)
}

func TestPowerOnSlaveIgnored(t *testing.T) {
	f := newFixture(t, phone)
	f.peer.slave = true
	f.Do(f.mgr.HandlePowerOn)
	assert.Zero(t, f.stack.Calls().Connect)
	assert.False(t, f.stack.IsConnectable())
}

func TestPowerOnRetryLimit(t *testing.T) {
	f := newFixture(t, phone)
	f.Do(f.mgr.HandlePowerOn)
	for n := 0; n < 3; n++ {
		f.connState(false, bt.ReasonConnTimeout)
		require.True(t, f.reconnectPending())
		f.Advance(5 * time.Second)
	}
	assert.Equal(t, 4, f.stack.Calls().Connect)
	assert.Equal(t, uint8(4), f.mgr.State().RetryCount)
	assert.Zero(t, f.events.Count(evt.PowerOnReconnectFailed))

	f.connState(false, bt.ReasonConnTimeout)
	assert.False(t, f.reconnectPending())
	assert.Equal(t, 1, f.events.Count(evt.PowerOnReconnectFailed))
	assert.Equal(t, 1, f.stack.Calls().EnterAGPairing)
	assert.Equal(t, 15*time.Second, f.Elapsed())
}

func TestRetryLimitSlaveDoesNotPair(t *testing.T) {
	f := newFixture(t, phone)
	f.mgr.Config.PowerOnRetry = 1
	f.Do(f.mgr.HandlePowerOn)
	f.peer.slave = true
	f.connState(false, bt.ReasonConnTimeout)
	assert.Equal(t, 1, f.events.Count(evt.PowerOnReconnectFailed))
	assert.Zero(t, f.stack.Calls().EnterAGPairing)
}

func TestRetryForever(t *testing.T) {
	f := newFixture(t, phone)
	f.mgr.Config.PowerOnRetry = conn.RetryForever
	f.Do(f.mgr.HandlePowerOn)
	for n := 0; n < 10; n++ {
		f.connState(false, bt.ReasonConnTimeout)
		require.True(t, f.reconnectPending())
		f.Advance(5 * time.Second)
	}
	assert.Equal(t, 11, f.stack.Calls().Connect)
	assert.Empty(t, f.events.Events)
}

func TestConnectedResets(t *testing.T) {
	f := newFixture(t, phone)
	f.Do(f.mgr.HandlePowerOn)
	f.connState(false, bt.ReasonConnTimeout)
	require.True(t, f.reconnectPending())

	f.connState(true, bt.ReasonNone)
	assert.False(t, f.reconnectPending())
	st := f.mgr.State()
	assert.Zero(t, st.RetryCount)
	assert.Equal(t, conn.ConnectNone, st.ConnectReason)
	assert.False(t, f.stack.IsDiscoverable())
	assert.False(t, f.stack.IsConnectable())
	f.Advance(time.Minute)
	assert.Equal(t, 1, f.stack.Calls().Connect)
}

func TestLinkLoss(t *testing.T) {
	f := newFixture(t, phone)
	f.connState(false, bt.ReasonLinkLoss)
	assert.Equal(t, []evt.Event{evt.LinkLoss}, f.events.Events)
	assert.True(t, f.stack.IsConnectable())
	st := f.mgr.State()
	assert.Equal(t, conn.ConnectLinkLoss, st.ConnectReason)
	assert.Equal(t, bt.ReasonLinkLoss, st.DisconnectReason)
	require.True(t, f.reconnectPending())

	f.Advance(5 * time.Second)
	assert.Equal(t, 1, f.stack.Calls().Connect)
	assert.Equal(t, uint8(1), f.mgr.State().RetryCount)
}

func TestLinkLossGivesUp(t *testing.T) {
	f := newFixture(t, phone)
	f.mgr.Config.LinkLossRetry = 1
	f.connState(false, bt.ReasonLMPTimeout)
	f.Advance(5 * time.Second)
	f.connState(false, bt.ReasonConnTimeout)
	assert.Equal(t, 1, f.events.Count(evt.LinkLossReconnectFailed))
	assert.Equal(t, 1, f.stack.Calls().EnterAGPairing)
}

func TestReconnectSkippedWhilePairing(t *testing.T) {
	f := newFixture(t, phone)
	f.connState(false, bt.ReasonLinkLoss)
	f.stack.SetSysState(bt.AGPairing)
	f.Advance(5 * time.Second)
	assert.Zero(t, f.stack.Calls().Connect)
	assert.Zero(t, f.mgr.State().RetryCount)
}

func TestAlreadyExists(t *testing.T) {
	f := newFixture(t, phone)
	f.peer.connected = true
	f.Do(f.mgr.HandlePowerOn)
	require.Equal(t, uint8(1), f.mgr.State().RetryCount)

	f.connState(false, bt.ReasonAlreadyExists)
	assert.Zero(t, f.mgr.State().RetryCount)
	assert.True(t, f.reconnectPending())

	f = newFixture(t, phone)
	f.connState(false, bt.ReasonAlreadyExists)
	assert.False(t, f.reconnectPending())
}

func TestDisconnectReasons(t *testing.T) {
	for _, reason := range []bt.DisconnectReason{
		bt.ReasonAuthFail, bt.ReasonKeyMiss, bt.ReasonRemote,
		bt.ReasonRemotePowerOff, bt.ReasonInsufficientResources,
	} {
		f := newFixture(t, phone)
		f.connState(false, reason)
		assert.Zero(t, f.stack.Calls().EnterAGPairing, reason.String())
		assert.Equal(t, reason, f.mgr.DisconnectReason())

		f = newFixture(t, phone)
		f.mgr.Config.DiscoverableOnDisconnect = true
		f.connState(false, reason)
		assert.Equal(t, 1, f.stack.Calls().EnterAGPairing, reason.String())
	}

	f := newFixture(t, phone)
	f.connState(false, bt.ReasonLocal)
	assert.Equal(t, bt.ReasonLocal, f.mgr.DisconnectReason())
	assert.False(t, f.reconnectPending())

	for _, reason := range []bt.DisconnectReason{bt.ReasonTWSPairing, bt.ReasonSwitchedSlave} {
		f := newFixture(t, phone)
		f.Do(f.mgr.HandlePowerOn)
		f.connState(false, reason)
		assert.Equal(t, bt.ReasonNone, f.mgr.DisconnectReason())
		assert.Zero(t, f.mgr.State().RetryCount)
	}
}

func TestConnectLastFallbacks(t *testing.T) {
	f := newFixture(t)
	f.mgr.ConnectLast()
	assert.Zero(t, f.stack.Calls().Connect)
	assert.True(t, f.stack.IsDiscoverable())
	assert.True(t, f.stack.IsConnectable())

	f = newFixture(t, phone)
	f.peer.addr = bt.TestAddr
	f.mgr.ConnectLast()
	assert.Zero(t, f.stack.Calls().Connect)
	assert.True(t, f.stack.IsDiscoverable())

	f = newFixture(t, phone)
	f.stack.ConnectErr = errors.New("busy")
	f.mgr.ConnectLast()
	assert.Equal(t, 1, f.stack.Calls().Connect)
	assert.True(t, f.stack.IsDiscoverable())

	f = newFixture(t, phone)
	f.stack.SetSysState(bt.Connected)
	f.mgr.ConnectLast()
	assert.Zero(t, f.stack.Calls().Connect)

	f = newFixture(t, phone)
	f.stack.SetSysState(bt.Disabled)
	f.mgr.ConnectLast()
	assert.Zero(t, f.stack.Calls().Connect)
}

func TestUserConnectLast(t *testing.T) {
	f := newFixture(t, phone)
	require.NoError(t, f.stack.SetDiscoverable(true))
	f.mgr.UserConnectLast()
	assert.Equal(t, conn.ConnectUser, f.mgr.State().ConnectReason)
	assert.Equal(t, 1, f.stack.Calls().Connect)

	f.connState(false, bt.ReasonConnTimeout)
	assert.Equal(t, 1, f.stack.Calls().EnterAGPairing)
	assert.False(t, f.reconnectPending())
}

func TestDisconnect(t *testing.T) {
	f := newFixture(t, phone)
	f.mgr.Disconnect()
	assert.Zero(t, f.stack.Calls().Disconnect)

	f.stack.PhonePresent = true
	f.mgr.ConnectLast()
	require.True(t, f.stack.SysState().IsConnected())
	f.mgr.Disconnect()
	assert.Equal(t, 1, f.stack.Calls().Disconnect)
	assert.False(t, f.stack.SysState().IsConnected())
}

func TestPowerOff(t *testing.T) {
	f := newFixture(t, phone)
	f.mgr.SetPowerOnAction(conn.ActionPairing)
	f.connState(false, bt.ReasonLinkLoss)
	f.Do(f.mgr.HandlePowerOff)
	assert.False(t, f.reconnectPending())
	assert.Equal(t, conn.ActionReconnect, f.mgr.State().PowerOnAction)
}

func TestRoleChanged(t *testing.T) {
	t.Run("slave", func(t *testing.T) {
		f := newFixture(t, phone)
		require.NoError(t, f.stack.EnterAGPairing())
		f.mgr.SetRoleChangeAction(conn.ActionPairing)
		f.roleChanged(false, bt.RoleChangedUser)
		assert.False(t, f.stack.IsDiscoverable())
		assert.False(t, f.stack.IsConnectable())
		assert.Equal(t, conn.ActionReconnect, f.mgr.State().RoleChangeAction)
	})
	t.Run("connected", func(t *testing.T) {
		f := newFixture(t, phone)
		f.mgr.SetRoleChangeAction(conn.ActionPairing)
		f.stack.SetSysState(bt.A2DPStreaming)
		f.roleChanged(true, bt.RoleChangedUser)
		assert.Zero(t, f.stack.Calls().EnterAGPairing)
		assert.Equal(t, conn.ActionReconnect, f.mgr.State().RoleChangeAction)
	})
	t.Run("pairing action", func(t *testing.T) {
		f := newFixture(t, phone)
		f.mgr.SetRoleChangeAction(conn.ActionPairing)
		f.roleChanged(true, bt.RoleChangedUser)
		assert.Equal(t, 1, f.stack.Calls().EnterAGPairing)
		assert.Equal(t, conn.ActionReconnect, f.mgr.State().RoleChangeAction)
	})
	t.Run("peer discoverable", func(t *testing.T) {
		f := newFixture(t, phone)
		f.peer.connected, f.peer.discoverable = true, true
		f.roleChanged(true, bt.RoleChangedUser)
		assert.True(t, f.stack.IsDiscoverable())
		assert.False(t, f.Kernel.HasTimer(fx.TagConn, conn.MsgPowerOnConnect))
	})
	t.Run("power on pairing", func(t *testing.T) {
		f := newFixture(t, phone)
		f.mgr.SetPowerOnAction(conn.ActionPairing)
		f.roleChanged(true, bt.RoleChangedUser)
		assert.Equal(t, 1, f.stack.Calls().EnterAGPairing)
		assert.Equal(t, conn.ActionReconnect, f.mgr.State().PowerOnAction)
	})
	t.Run("empty list peer not found", func(t *testing.T) {
		f := newFixture(t)
		f.roleChanged(true, bt.RoleChangedPeerNotFound)
		assert.Equal(t, 1, f.stack.Calls().EnterAGPairing)
	})
	t.Run("empty list", func(t *testing.T) {
		f := newFixture(t)
		f.roleChanged(true, bt.RoleChangedUser)
		assert.Zero(t, f.stack.Calls().EnterAGPairing)
		assert.True(t, f.stack.IsDiscoverable())
	})
	t.Run("fresh reconnect", func(t *testing.T) {
		f := newFixture(t, phone)
		f.roleChanged(true, bt.RoleChangedUser)
		assert.True(t, f.Kernel.HasTimer(fx.TagConn, conn.MsgPowerOnConnect))
		assert.True(t, f.stack.IsConnectable())
		f.Advance(500 * time.Millisecond)
		assert.Equal(t, 1, f.stack.Calls().Connect)
	})
	t.Run("repeated fresh reconnect", func(t *testing.T) {
		f := newFixture(t, phone)
		f.roleChanged(true, bt.RoleChangedUser)
		f.Advance(300 * time.Millisecond)
		f.roleChanged(true, bt.RoleChangedUser)
		f.Advance(300 * time.Millisecond)
		assert.Zero(t, f.stack.Calls().Connect)
		f.Advance(200 * time.Millisecond)
		assert.Equal(t, 1, f.stack.Calls().Connect)
	})
	t.Run("link loss", func(t *testing.T) {
		f := newFixture(t, phone)
		f.roleChanged(true, bt.RoleChangedLinkLoss)
		assert.Equal(t, bt.ReasonLinkLoss, f.mgr.DisconnectReason())
		assert.True(t, f.reconnectPending())
		assert.Equal(t, conn.ConnectLinkLoss, f.mgr.State().ConnectReason)
	})
	t.Run("peer connected not discoverable", func(t *testing.T) {
		f := newFixture(t, phone)
		f.peer.connected = true
		f.connState(false, bt.ReasonRemote)
		f.roleChanged(true, bt.RoleChangedUser)
		assert.True(t, f.stack.IsDiscoverable())
		assert.False(t, f.reconnectPending())
	})
	t.Run("unexpected reason", func(t *testing.T) {
		f := newFixture(t, phone)
		f.connState(false, bt.ReasonAuthFail)
		f.roleChanged(true, bt.RoleChangedUser)
		assert.True(t, f.stack.IsDiscoverable())
		assert.True(t, f.stack.IsConnectable())
	})
}
