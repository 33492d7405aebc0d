package bt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSysStateOrder(t *testing.T) {
	ordered := []SysState{Disabled, WWSPairing, Idle, Connectable, AGPairing,
		Connected, A2DPStreaming, IncomingCall, OutgoingCall, ActiveCall,
		TWCWaiting, TWCHeld, Custom1, Custom2}
	for n := 1; n < len(ordered); n++ {
		assert.True(t, ordered[n] > ordered[n-1], ordered[n].String())
	}
	assert.True(t, A2DPStreaming.IsConnected())
	assert.False(t, AGPairing.IsConnected())
	assert.Equal(t, "idle|connectable", (Idle | Connectable).String())
}

func TestAddrString(t *testing.T) {
	a := Addr{0x01, 0x02, 0x03, 0x04, 0x05, 0x06}
	assert.Equal(t, "06:05:04:03:02:01", a.String())
	parsed, err := ParseAddr(a.String())
	require.NoError(t, err)
	assert.Equal(t, a, parsed)
	assert.True(t, Addr{}.IsZero())
	_, err = ParseAddr("01:02")
	assert.Error(t, err)
}

func TestRoleIsMaster(t *testing.T) {
	assert.True(t, RoleMaster.IsMaster())
	assert.True(t, RoleUnknown.IsMaster())
	assert.False(t, RoleSlave.IsMaster())
}

func TestEvents(t *testing.T) {
	cs, err := DecodeConnState(ConnStateEvent{Connected: false, Reason: ReasonLinkLoss}.Encode())
	require.NoError(t, err)
	assert.Equal(t, ConnStateEvent{Reason: ReasonLinkLoss}, cs)

	ts := TWSStateEvent{State: TWSConnected, Reason: ReasonRemote, Addr: Addr{1, 2, 3, 4, 5, 6}}
	decodedState, err := DecodeTWSState(ts.Encode())
	require.NoError(t, err)
	assert.Equal(t, ts, decodedState)

	tr := TWSRoleEvent{Role: RoleSlave, Reason: RoleChangedRSSI, Addr: Addr{6}}
	decodedRole, err := DecodeTWSRole(tr.Encode())
	require.NoError(t, err)
	assert.Equal(t, tr, decodedRole)

	s, err := DecodeSysState(EncodeSysState(A2DPStreaming))
	require.NoError(t, err)
	assert.Equal(t, A2DPStreaming, s)

	v, err := DecodeVisibility(VisibilityEvent{Connectable: true}.Encode())
	require.NoError(t, err)
	assert.Equal(t, VisibilityEvent{Connectable: true}, v)

	_, err = DecodeTWSRole([]byte{1})
	assert.Equal(t, ErrEventLength, err)
}
