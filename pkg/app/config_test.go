package app_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/tws.go/pkg/app"
	"github.com/robotalks/tws.go/pkg/bt"
	"github.com/robotalks/tws.go/pkg/link/mqtt"
	"github.com/robotalks/tws.go/pkg/wws"
)

func TestLoadFile(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "tws.yaml")
	require.NoError(t, os.WriteFile(fn, []byte(`
pair: p7
channel: right
phones: ["11:22:33:44:55:66"]
conn:
  power-on-retry: 2
  link-loss-interval: 1500ms
wws:
  role-switch: battery
`), 0644))

	cfg := app.NewConfig()
	cfg.DeviceID = "dev"
	cfg.File = fn
	require.NoError(t, cfg.Load())
	assert.Equal(t, "p7", cfg.Pair)
	assert.Equal(t, uint8(2), cfg.Conn.PowerOnRetry)
	assert.Equal(t, 1500*time.Millisecond, cfg.Conn.LinkLossInterval)
	// untouched fields keep the defaults
	assert.Equal(t, uint8(4), cfg.Conn.LinkLossRetry)
	assert.Equal(t, wws.StrategyBattery, cfg.WWS.RoleSwitch)
	assert.Equal(t, 3*time.Second, cfg.WWS.AntiShake)
	assert.Equal(t, mqtt.Topics{Pair: "p7", Channel: "right"}, cfg.Topics())

	assert.Error(t, cfg.LoadFile(filepath.Join(t.TempDir(), "missing.yaml")))
}

func TestValidate(t *testing.T) {
	cfg := app.NewConfig()
	cfg.DeviceID = "dev"
	cfg.Channel = "left"
	require.NoError(t, cfg.Validate())

	addr, err := cfg.BTAddr()
	require.NoError(t, err)
	again, _ := cfg.BTAddr()
	assert.Equal(t, addr, again)
	cfg.Channel = "right"
	other, _ := cfg.BTAddr()
	assert.NotEqual(t, addr, other)

	cfg.Addr = "01:02:03:04:05:06"
	addr, err = cfg.BTAddr()
	require.NoError(t, err)
	parsed, _ := bt.ParseAddr("01:02:03:04:05:06")
	assert.Equal(t, parsed, addr)

	cfg.Channel = "stereo"
	assert.Error(t, cfg.Validate())
	cfg.Channel = "left"
	cfg.Phones = []string{"nope"}
	assert.Error(t, cfg.Validate())
	cfg.Phones = nil
	cfg.DeviceID = ""
	assert.Error(t, cfg.Validate())
}

func TestPeerDialer(t *testing.T) {
	cfg := app.NewConfig()
	cfg.Channel, cfg.Pair = "left", "p1"

	d, r, err := cfg.PeerDialer(nil)
	require.NoError(t, err)
	assert.Nil(t, d)
	assert.Nil(t, r)

	cfg.PeerURL = "mqtt://"
	_, _, err = cfg.PeerDialer(nil)
	assert.Error(t, err)

	q, err := mqtt.NewQueueFromURL("mqtt://localhost:1883/", "test-")
	require.NoError(t, err)
	d, r, err = cfg.PeerDialer(q)
	require.NoError(t, err)
	assert.Nil(t, r)
	md, ok := d.(*mqtt.Dialer)
	require.True(t, ok)
	assert.Equal(t, "tws/p1/right/data", md.Peer.Data())
	assert.Equal(t, "tws/p1/left/data", md.Local.Data())

	cfg.PeerURL = "tcp://127.0.0.1:0"
	cfg.Listen = true
	d, r, err = cfg.PeerDialer(nil)
	require.NoError(t, err)
	require.NotNil(t, d)
	require.NotNil(t, r)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, context.Canceled, r.Run(ctx))

	cfg.PeerURL = "udp://127.0.0.1:1"
	_, _, err = cfg.PeerDialer(nil)
	assert.Error(t, err)
}

func TestPDL(t *testing.T) {
	a, b, c := bt.Addr{1}, bt.Addr{2}, bt.Addr{3}
	p := app.NewPDL(2)
	assert.True(t, p.Empty())
	_, ok := p.First()
	assert.False(t, ok)

	p.Add(a)
	p.Add(b)
	p.Add(bt.Addr{})
	assert.Equal(t, []bt.Addr{b, a}, p.List())

	p.Add(a)
	assert.Equal(t, []bt.Addr{a, b}, p.List())

	p.Add(c)
	assert.Equal(t, []bt.Addr{c, a}, p.List())
	first, ok := p.First()
	assert.True(t, ok)
	assert.Equal(t, c, first)

	p.Clear()
	assert.True(t, p.Empty())
	assert.Equal(t, 0, p.Len())
}
