package conn

import "time"

// RetryForever disables the retry limit.
const RetryForever uint8 = 0xFF

// Config tunes reconnection.
type Config struct {
	PowerOnRetry             uint8         `yaml:"power-on-retry"`
	PowerOnInterval          time.Duration `yaml:"power-on-interval"`
	LinkLossRetry            uint8         `yaml:"link-loss-retry"`
	LinkLossInterval         time.Duration `yaml:"link-loss-interval"`
	AutoReconnectOnPowerOn   bool          `yaml:"auto-reconnect-power-on"`
	DiscoverableOnDisconnect bool          `yaml:"discoverable-on-disconnect"`
	RoleChangeReconnectDelay time.Duration `yaml:"role-change-reconnect-delay"`
}

// DefaultConfig returns the factory settings.
func DefaultConfig() Config {
	return Config{
		PowerOnRetry:             4,
		PowerOnInterval:          5 * time.Second,
		LinkLossRetry:            4,
		LinkLossInterval:         5 * time.Second,
		AutoReconnectOnPowerOn:   true,
		RoleChangeReconnectDelay: 500 * time.Millisecond,
	}
}
