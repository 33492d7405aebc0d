package wws

import (
	"fmt"
	"time"
)

// RoleSwitchStrategy selects the role arbitration policies evaluated
// after charging.
type RoleSwitchStrategy uint8

// Strategies.
const (
	StrategyRSSI RoleSwitchStrategy = iota
	StrategyNone
	StrategyInEar
	StrategyBattery
	StrategyAll
)

var strategyNames = map[RoleSwitchStrategy]string{
	StrategyRSSI:    "rssi",
	StrategyNone:    "none",
	StrategyInEar:   "in-ear",
	StrategyBattery: "battery",
	StrategyAll:     "all",
}

func (s RoleSwitchStrategy) String() string {
	if name, ok := strategyNames[s]; ok {
		return name
	}
	return fmt.Sprintf("strategy(%d)", uint8(s))
}

// Set implements flag.Value.
func (s *RoleSwitchStrategy) Set(name string) error {
	for v, n := range strategyNames {
		if n == name {
			*s = v
			return nil
		}
	}
	return fmt.Errorf("invalid role switch strategy %q", name)
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *RoleSwitchStrategy) UnmarshalText(text []byte) error {
	return s.Set(string(text))
}

// MarshalText implements encoding.TextMarshaler.
func (s RoleSwitchStrategy) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Config tunes the peer sync engine.
type Config struct {
	RoleSwitch         RoleSwitchStrategy `yaml:"role-switch"`
	AntiShake          time.Duration      `yaml:"anti-shake"`
	RSSIDetectInterval time.Duration      `yaml:"rssi-detect-interval"`
	GoodRSSI           int8               `yaml:"good-rssi"`
	BadRSSI            int8               `yaml:"bad-rssi"`
	BatteryLow         uint8              `yaml:"battery-low"`
	BatteryHigh        uint8              `yaml:"battery-high"`
	PairTimeout        time.Duration      `yaml:"pair-timeout"`
	VID                uint16             `yaml:"vid"`
	PID                uint16             `yaml:"pid"`
	Magic              uint16             `yaml:"magic"`
}

// DefaultConfig returns the factory settings.
func DefaultConfig() Config {
	return Config{
		RoleSwitch:         StrategyRSSI,
		AntiShake:          3 * time.Second,
		RSSIDetectInterval: time.Second,
		GoodRSSI:           -65,
		BadRSSI:            -75,
		BatteryLow:         10,
		BatteryHigh:        30,
		PairTimeout:        120 * time.Second,
		VID:                0x0A12,
		PID:                0x0001,
		Magic:              0x5A5A,
	}
}
