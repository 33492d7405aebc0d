// Package sh provides the interactive shell talking to earbuds through
// the MQTT broker.
package sh

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/abiosoft/ishell"
	"github.com/golang/glog"

	"github.com/robotalks/tws.go/pkg/app"
	"github.com/robotalks/tws.go/pkg/link/mqtt"
	"github.com/robotalks/tws.go/pkg/status"
)

// CommandTimeout bounds the wait for a reply.
const CommandTimeout = time.Second

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool
	AutoSelect  bool

	Shell  *ishell.Shell
	Config *app.Config
	Queue  *mqtt.Queue
	Target *mqtt.Topics
	Client *status.Client
}

const (
	shellKey         = "$shell"
	unselectedPrompt = "[none] > "
)

var (
	// flags

	evalOnly   bool
	outputJSON bool

	// commands
	commands = []*ishell.Cmd{
		&DiscoverCmd,
		&UseCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New(conf *app.Config) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,

		Shell:  ishell.New(),
		Config: conf,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(unselectedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MustBeSelected wraps command func requires a target earbud.
func MustBeSelected(fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if ShellFrom(c).Client == nil {
			c.Err(fmt.Errorf("no earbud selected"))
			return
		}
		fn(c)
	}
}

// FormatStatus prints DeviceStatus into friendly string for display.
func FormatStatus(st *status.DeviceStatus) string {
	return fmt.Sprintf("%s %s tws=%s sys=%s battery=%d/%d in-ear=%v/%v charging=%v/%v rssi=%d/%d",
		st.Channel, st.Role, st.TwsState, st.SysState,
		st.Battery, st.PeerBattery, st.InEar, st.PeerInEar,
		st.Charging, st.PeerCharging, st.PhoneRssi, st.PeerRssi)
}

// DoCommand runs a command on the target and waits for result.
func DoCommand(c *ishell.Context, cmd *status.Command) error {
	s := ShellFrom(c)
	if s.Client == nil {
		err := fmt.Errorf("no earbud selected")
		c.Err(err)
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), CommandTimeout)
	defer cancel()
	rep, err := s.Client.Do(ctx, cmd)
	if err != nil {
		if err == context.DeadlineExceeded {
			err = fmt.Errorf("command timeout")
		}
		c.Err(err)
		return err
	}
	if s.OutputJSON {
		out, err := json.Marshal(rep)
		if err != nil {
			c.Err(err)
			return err
		}
		c.Println(string(out))
		return nil
	}
	if cmd.Name == "status" && rep.Status != nil {
		c.Println(FormatStatus(rep.Status))
		return nil
	}
	c.Println("OK")
	return nil
}

// Open connects the broker.
func (s *Shell) Open() error {
	q, err := mqtt.NewQueueFromURL(s.Config.MQTTBrokerURL, "twscli-")
	if err != nil {
		return err
	}
	if err := q.Connect(); err != nil {
		return err
	}
	s.Queue = q
	return nil
}

// WithAutoSelect sets AutoSelect.
func (s *Shell) WithAutoSelect(en bool) *Shell {
	s.AutoSelect = en
	return s
}

// Earbud is a discovered earbud.
type Earbud struct {
	Topics mqtt.Topics           `json:"topics"`
	Status *status.DeviceStatus `json:"status"`
}

// Discover collects the retained status of every earbud on the broker.
func (s *Shell) Discover(wait time.Duration) []Earbud {
	var lock sync.Mutex
	found := make(map[string]*status.DeviceStatus)
	sub := s.Queue.Sub(mqtt.AllStatus, func(topic string, payload []byte) {
		msg, err := status.Decode(payload)
		if err != nil {
			glog.V(2).Infof("%s: %v", topic, err)
			return
		}
		if st, ok := msg.(*status.DeviceStatus); ok {
			lock.Lock()
			found[topic] = st
			lock.Unlock()
		}
	})
	time.Sleep(wait)
	sub.Close()

	lock.Lock()
	defer lock.Unlock()
	return collect(found)
}

func collect(found map[string]*status.DeviceStatus) []Earbud {
	earbuds := make([]Earbud, 0, len(found))
	for topic, st := range found {
		if t, ok := parseStatusTopic(topic); ok {
			earbuds = append(earbuds, Earbud{Topics: t, Status: st})
		}
	}
	sort.Slice(earbuds, func(i, j int) bool {
		a, b := earbuds[i].Topics, earbuds[j].Topics
		return a.Pair < b.Pair || (a.Pair == b.Pair && a.Channel < b.Channel)
	})
	return earbuds
}

// parseStatusTopic reverses Topics.Status.
func parseStatusTopic(topic string) (mqtt.Topics, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != "tws" || parts[3] != "status" {
		return mqtt.Topics{}, false
	}
	return mqtt.Topics{Pair: parts[1], Channel: parts[2]}, true
}

// Use selects the target earbud.
func (s *Shell) Use(t mqtt.Topics) {
	s.Target = &t
	s.Client = status.NewClient(s.Queue, t).Open()
	s.Shell.SetPrompt(fmt.Sprintf("%s/%s > ", t.Pair, t.Channel))
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if err := s.Open(); err != nil {
		glog.Exitf("connect %s failed: %v", s.Config.MQTTBrokerURL, err)
	}
	defer s.Queue.Close()
	if s.AutoSelect && s.Config.Pair != "" && s.Config.Channel != "" {
		s.Use(s.Config.Topics())
	}

	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			glog.Exit(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	glog.Exit("command expected")
}

var (
	// DiscoverCmd lists earbuds with a retained status.
	DiscoverCmd = ishell.Cmd{
		Name:    "discover",
		Aliases: []string{"list", "l"},
		Help:    "",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			earbuds := s.Discover(500 * time.Millisecond)
			if s.OutputJSON {
				out, err := json.Marshal(earbuds)
				if err != nil {
					c.Err(err)
					return
				}
				c.Println(string(out))
				return
			}
			if len(earbuds) == 0 {
				c.Println("No earbuds found")
				return
			}
			for _, e := range earbuds {
				c.Printf("%s/%s: %s\n", e.Topics.Pair, e.Topics.Channel, FormatStatus(e.Status))
			}
		},
	}

	// UseCmd selects the target earbud.
	UseCmd = ishell.Cmd{
		Name:    "use",
		Aliases: []string{"u"},
		Help:    "PAIR CHANNEL",
		Func: func(c *ishell.Context) {
			if len(c.Args) != 2 {
				c.Err(fmt.Errorf("PAIR CHANNEL expected"))
				return
			}
			ShellFrom(c).Use(mqtt.Topics{Pair: c.Args[0], Channel: c.Args[1]})
		},
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	New(app.NewConfig()).WithAutoSelect(true).Run(flag.Args()...)
}
