// Package device models the local earbud peripherals the connectivity
// core reads and drives: in-ear sensor, charger, battery, audio settings
// and custom keys.
package device

import (
	"github.com/golang/glog"

	"github.com/robotalks/tws.go/pkg/bt"
)

// Version of the firmware reported to the peer.
const (
	FWBuild uint16 = 1
	FWKV    uint32 = 0x00010000
)

// Key identifies a custom key binding.
type Key struct {
	Type      uint8
	StateMask uint16
}

// Device is the in-memory model of one earbud. It's owned by the kernel
// loop and not safe for concurrent use.
type Device struct {
	inEarEnabled bool
	inEar        bool
	charging     bool
	battery      uint8
	callVolume   uint8
	musicVolume  uint8
	listenMode   bt.ListenMode
	gameMode     bool
	ancLevel     uint8
	transparency uint8
	box          bt.BoxState
	keys         map[Key]uint16

	peerDiscoverable bool
	peerConnectable  bool
	reportedBattery  uint8
	reportedCall     uint8
	reportedMusic    uint8

	// OnVolumeChanged is invoked after either volume changes.
	OnVolumeChanged func()
}

// New creates a Device with factory settings.
func New() *Device {
	return &Device{
		inEarEnabled: true,
		battery:      100,
		callVolume:   10,
		musicVolume:  10,
		listenMode:   bt.ListenNormal,
		box:          bt.BoxUnknown,
		keys:         make(map[Key]uint16),
	}
}

// InEarEnabled reports whether in-ear detection is on.
func (d *Device) InEarEnabled() bool { return d.inEarEnabled }

// SetInEarEnabled turns in-ear detection on or off.
func (d *Device) SetInEarEnabled(v bool) {
	if d.inEarEnabled != v {
		glog.Infof("device: in-ear detection %v", v)
	}
	d.inEarEnabled = v
}

// InEar reports the in-ear sensor.
func (d *Device) InEar() bool { return d.inEar }

// SetInEar updates the in-ear sensor.
func (d *Device) SetInEar(v bool) { d.inEar = v }

// Charging reports whether the earbud is charging.
func (d *Device) Charging() bool { return d.charging }

// SetCharging updates the charger state.
func (d *Device) SetCharging(v bool) { d.charging = v }

// Battery returns the battery level.
func (d *Device) Battery() uint8 { return d.battery }

// SetBattery updates the battery level, capped at 100.
func (d *Device) SetBattery(level uint8) {
	if level > 100 {
		level = 100
	}
	d.battery = level
}

// ReportBattery reports the battery level to the phone.
func (d *Device) ReportBattery(level uint8) {
	glog.V(2).Infof("device: report battery %d", level)
	d.reportedBattery = level
}

// ReportedBattery returns the last level reported to the phone.
func (d *Device) ReportedBattery() uint8 { return d.reportedBattery }

// ReportCallVolume reports the call volume to the phone.
func (d *Device) ReportCallVolume(v uint8) {
	glog.V(2).Infof("device: report call volume %d", v)
	d.reportedCall = v
}

// ReportMusicVolume reports the music volume to the phone.
func (d *Device) ReportMusicVolume(v uint8) {
	glog.V(2).Infof("device: report music volume %d", v)
	d.reportedMusic = v
}

// ReportedVolumes returns the last volumes reported to the phone.
func (d *Device) ReportedVolumes() (call, music uint8) {
	return d.reportedCall, d.reportedMusic
}

// CallVolume returns the call volume.
func (d *Device) CallVolume() uint8 { return d.callVolume }

// SetCallVolume sets the call volume.
func (d *Device) SetCallVolume(v uint8) {
	changed := d.callVolume != v
	d.callVolume = v
	if changed {
		d.volumeChanged()
	}
}

// MusicVolume returns the music volume.
func (d *Device) MusicVolume() uint8 { return d.musicVolume }

// SetMusicVolume sets the music volume.
func (d *Device) SetMusicVolume(v uint8) {
	changed := d.musicVolume != v
	d.musicVolume = v
	if changed {
		d.volumeChanged()
	}
}

func (d *Device) volumeChanged() {
	if fn := d.OnVolumeChanged; fn != nil {
		fn()
	}
}

// ListenMode returns the ambient sound mode.
func (d *Device) ListenMode() bt.ListenMode { return d.listenMode }

// SetListenMode sets the ambient sound mode.
func (d *Device) SetListenMode(m bt.ListenMode) { d.listenMode = m }

// GameMode reports whether low latency mode is on.
func (d *Device) GameMode() bool { return d.gameMode }

// SetGameMode turns low latency mode on or off.
func (d *Device) SetGameMode(v bool) { d.gameMode = v }

// ANCLevel returns the noise cancelling level.
func (d *Device) ANCLevel() uint8 { return d.ancLevel }

// SetANCLevel sets the noise cancelling level.
func (d *Device) SetANCLevel(v uint8) { d.ancLevel = v }

// TransparencyLevel returns the transparency level.
func (d *Device) TransparencyLevel() uint8 { return d.transparency }

// SetTransparencyLevel sets the transparency level.
func (d *Device) SetTransparencyLevel(v uint8) { d.transparency = v }

// BoxState returns the charging case state.
func (d *Device) BoxState() bt.BoxState { return d.box }

// SetBoxState updates the charging case state.
func (d *Device) SetBoxState(s bt.BoxState) { d.box = s }

// FWVersion returns the firmware version.
func (d *Device) FWVersion() (uint16, uint32) { return FWBuild, FWKV }

// AddKey binds event to a key.
func (d *Device) AddKey(keyType uint8, stateMask uint16, event uint16) {
	d.keys[Key{Type: keyType, StateMask: stateMask}] = event
}

// ReadKey returns the event bound to a key, 0 if none.
func (d *Device) ReadKey(keyType uint8, stateMask uint16) uint16 {
	return d.keys[Key{Type: keyType, StateMask: stateMask}]
}

// ResetKeys removes all custom bindings.
func (d *Device) ResetKeys() {
	d.keys = make(map[Key]uint16)
}

// SetPeerVisibility records the visibility of the peer.
func (d *Device) SetPeerVisibility(discoverable, connectable bool) {
	glog.V(2).Infof("device: peer visibility disc=%v conn=%v", discoverable, connectable)
	d.peerDiscoverable, d.peerConnectable = discoverable, connectable
}

// PeerVisibility returns the last recorded visibility of the peer.
func (d *Device) PeerVisibility() (discoverable, connectable bool) {
	return d.peerDiscoverable, d.peerConnectable
}
