package sh

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fx "github.com/robotalks/tws.go/pkg/framework"
	"github.com/robotalks/tws.go/pkg/link/mqtt"
	"github.com/robotalks/tws.go/pkg/status"
)

func TestParseInject(t *testing.T) {
	in, err := ParseInject([]string{"cli", "1", "0a0b"})
	require.NoError(t, err)
	assert.Equal(t, uint32(fx.TagCLI), in.Tag)
	assert.Equal(t, uint32(1), in.Id)
	assert.Equal(t, []byte{0x0a, 0x0b}, in.Payload)

	in, err = ParseInject([]string{"3", "0x102"})
	require.NoError(t, err)
	assert.Equal(t, uint32(fx.TagEvt), in.Tag)
	assert.Equal(t, uint32(0x102), in.Id)
	assert.Nil(t, in.Payload)

	for _, args := range [][]string{
		{"cli"},
		{"nosuch", "1"},
		{"200", "1"},
		{"cli", "70000"},
		{"cli", "1", "xyz"},
	} {
		_, err := ParseInject(args)
		assert.Error(t, err, "%v", args)
	}
}

func TestCollect(t *testing.T) {
	left := &status.DeviceStatus{Channel: "left"}
	right := &status.DeviceStatus{Channel: "right"}
	earbuds := collect(map[string]*status.DeviceStatus{
		"tws/p2/left/status":  left,
		"tws/p1/right/status": right,
		"tws/p1/left/status":  left,
		"tws/bad":             right,
	})
	require.Len(t, earbuds, 3)
	assert.Equal(t, mqtt.Topics{Pair: "p1", Channel: "left"}, earbuds[0].Topics)
	assert.Equal(t, mqtt.Topics{Pair: "p1", Channel: "right"}, earbuds[1].Topics)
	assert.Equal(t, mqtt.Topics{Pair: "p2", Channel: "left"}, earbuds[2].Topics)
}

func TestFormatStatus(t *testing.T) {
	out := FormatStatus(&status.DeviceStatus{Channel: "left", Role: "master", TwsState: "connected", Battery: 80, PeerBattery: 70})
	assert.Contains(t, out, "left master")
	assert.Contains(t, out, "battery=80/70")
}
