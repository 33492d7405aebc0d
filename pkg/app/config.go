package app

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/denisbrodbeck/machineid"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/robotalks/tws.go/pkg/bt"
	"github.com/robotalks/tws.go/pkg/conn"
	"github.com/robotalks/tws.go/pkg/wws"
)

// Config provides the options of one earbud.
type Config struct {
	// DeviceID identifies the earbud on the broker.
	DeviceID string `yaml:"device-id"`
	// Pair groups the two earbuds on the broker.
	Pair string `yaml:"pair"`
	// Channel is left or right.
	Channel string `yaml:"channel"`
	// Addr is the Bluetooth address of the earbud, derived from
	// DeviceID when empty.
	Addr string `yaml:"addr"`
	// MQTTBrokerURL specifies the MQTT broker for status and commands.
	// e.g. mqtt://host:port/topic-prefix
	MQTTBrokerURL string `yaml:"mqtt"`
	// PeerURL selects the peer link: tcp://, ws:// or mqtt://.
	PeerURL string `yaml:"peer"`
	// Listen accepts the peer instead of dialing it.
	Listen bool `yaml:"listen"`
	// Phones are preloaded into the paired device list.
	Phones []string `yaml:"phones"`
	// PhonePresent makes the simulated phone accept connections.
	PhonePresent bool `yaml:"phone-present"`
	// StatusInterval is the period of status reports.
	StatusInterval time.Duration `yaml:"status-interval"`

	Conn conn.Config `yaml:"conn"`
	WWS  wws.Config  `yaml:"wws"`

	// File is the YAML file overlaying this config.
	File string `yaml:"-"`
}

var defaultConfig = Config{
	Pair:           "default",
	Channel:        "left",
	MQTTBrokerURL:  "mqtt://localhost:1883/",
	PhonePresent:   true,
	StatusInterval: 5 * time.Second,
	Conn:           conn.DefaultConfig(),
	WWS:            wws.DefaultConfig(),
}

func init() {
	if val := os.Getenv("TWS_MQTT_URL"); val != "" {
		defaultConfig.MQTTBrokerURL = val
	}
	if val := os.Getenv("TWS_CHANNEL"); val != "" {
		defaultConfig.Channel = val
	}
	if val := os.Getenv("TWS_PAIR_ID"); val != "" {
		defaultConfig.Pair = val
	}
	defaultConfig.File = os.Getenv("TWS_CONFIG")
	defaultConfig.DeviceID = MachineID()
}

// MachineID retrieves an id unique to the machine, or a random one when
// the machine has none.
func MachineID() string {
	id, err := machineid.ProtectedID("tws")
	if err != nil {
		return uuid.New().String()
	}
	return id
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.DeviceID, "id", defaultConfig.DeviceID, "Device ID")
	flag.StringVar(&defaultConfig.Pair, "pair", defaultConfig.Pair, "Pair ID")
	flag.StringVar(&defaultConfig.Channel, "channel", defaultConfig.Channel, "Channel: left or right")
	flag.StringVar(&defaultConfig.Addr, "addr", defaultConfig.Addr, "Bluetooth address")
	flag.StringVar(&defaultConfig.MQTTBrokerURL, "mqtt", defaultConfig.MQTTBrokerURL, "MQTT broker URL")
	flag.StringVar(&defaultConfig.PeerURL, "peer", defaultConfig.PeerURL, "Peer link URL")
	flag.BoolVar(&defaultConfig.Listen, "listen", defaultConfig.Listen, "Accept the peer instead of dialing")
	flag.BoolVar(&defaultConfig.PhonePresent, "phone", defaultConfig.PhonePresent, "Simulated phone accepts connections")
	flag.StringVar(&defaultConfig.File, "config", defaultConfig.File, "YAML config file")
	flag.Var(&defaultConfig.WWS.RoleSwitch, "role-switch", "Role switch strategy: rssi, none, in-ear, battery, all")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// LoadFile overlays the YAML file on the config. Fields missing in the
// file keep their values.
func (c *Config) LoadFile(fn string) error {
	data, err := os.ReadFile(fn)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse %s: %v", fn, err)
	}
	return nil
}

// Load loads File if specified and validates.
func (c *Config) Load() error {
	if c.File != "" {
		if err := c.LoadFile(c.File); err != nil {
			return err
		}
	}
	return c.Validate()
}

// Validate checks the config.
func (c *Config) Validate() error {
	if c.DeviceID == "" {
		return fmt.Errorf("device id must be specified")
	}
	ch, err := c.BTChannel()
	if err != nil {
		return err
	}
	if ch == bt.ChannelStereo {
		return fmt.Errorf("channel must be left or right")
	}
	if _, err := c.BTAddr(); err != nil {
		return err
	}
	for _, phone := range c.Phones {
		if _, err := bt.ParseAddr(phone); err != nil {
			return fmt.Errorf("invalid phone %q: %v", phone, err)
		}
	}
	return nil
}

// BTChannel parses Channel.
func (c *Config) BTChannel() (bt.Channel, error) {
	return bt.ParseChannel(c.Channel)
}

// BTAddr parses Addr, or derives an address from DeviceID.
func (c *Config) BTAddr() (bt.Addr, error) {
	if c.Addr != "" {
		return bt.ParseAddr(c.Addr)
	}
	var addr bt.Addr
	id := uuid.NewSHA1(uuid.NameSpaceOID, []byte(c.DeviceID+"/"+c.Channel))
	copy(addr[:], id[:len(addr)])
	return addr, nil
}

// SetupClientFlags sets the command line flags of tools talking to an
// earbud through the broker.
func SetupClientFlags() {
	flag.StringVar(&defaultConfig.MQTTBrokerURL, "mqtt", defaultConfig.MQTTBrokerURL, "MQTT broker URL")
	flag.StringVar(&defaultConfig.Pair, "pair", defaultConfig.Pair, "Pair ID")
	flag.StringVar(&defaultConfig.Channel, "channel", defaultConfig.Channel, "Channel of the earbud")
}
