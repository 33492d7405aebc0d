package app

import (
	"context"
	"fmt"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/tws.go/pkg/bt"
	"github.com/robotalks/tws.go/pkg/bt/sim"
	fx "github.com/robotalks/tws.go/pkg/framework"
	"github.com/robotalks/tws.go/pkg/link"
	"github.com/robotalks/tws.go/pkg/link/mqtt"
	"github.com/robotalks/tws.go/pkg/status"
)

// Daemon runs one simulated earbud on a host.
type Daemon struct {
	Config *Config
	Kernel *fx.Kernel
	Stack  *sim.Stack
	App    *App
	// Queue is nil without a broker.
	Queue *mqtt.Queue
	// Link is nil without a peer.
	Link *link.Link

	runnables []fx.Runnable
}

// NewDaemon builds the earbud from the config.
func (c *Config) NewDaemon() (*Daemon, error) {
	addr, err := c.BTAddr()
	if err != nil {
		return nil, err
	}
	ch, err := c.BTChannel()
	if err != nil {
		return nil, err
	}
	k := fx.NewKernel()
	stack := sim.New(addr, ch)
	stack.Poster = k
	stack.PhonePresent = c.PhonePresent
	a := New(*c, stack, k)
	if err := k.Add(a); err != nil {
		return nil, err
	}
	d := &Daemon{Config: c, Kernel: k, Stack: stack, App: a}
	d.runnables = append(d.runnables, fx.NamedRun("kernel", k))

	if c.MQTTBrokerURL != "" {
		q, err := mqtt.NewQueueFromURL(c.MQTTBrokerURL, "twsd-")
		if err != nil {
			return nil, fmt.Errorf("create MQTT queue error: %v", err)
		}
		d.Queue = q
		rep := status.NewReporter(q, c.Topics())
		rep.ServeCommands(func(cmd *status.Command) {
			if err := SubmitCommand(k, cmd); err != nil {
				glog.Errorf("cli: submit %s: %v", cmd.Name, err)
			}
		})
		a.Reporter = rep
		d.runnables = append(d.runnables, fx.NamedRun("status", fx.RunFunc(d.reportStatus)))
	}

	dialer, server, err := c.PeerDialer(d.Queue)
	if err != nil {
		return nil, err
	}
	if dialer != nil {
		d.Link = link.New(dialer, stack)
		d.Link.Observer = stack
		stack.Link = d.Link
		d.runnables = append(d.runnables, d.Link)
	}
	if server != nil {
		d.runnables = append(d.runnables, server)
	}
	return d, nil
}

func (d *Daemon) reportStatus(ctx context.Context) error {
	interval := d.Config.StatusInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := d.App.ReportStatus(d.Kernel); err != nil {
				glog.Warningf("status: %v", err)
			}
		}
	}
}

// Run powers the earbud on and runs until a signal arrives.
func (d *Daemon) Run() error {
	if d.Queue != nil {
		if err := d.Queue.Connect(); err != nil {
			return fmt.Errorf("connect %s: %v", d.Config.MQTTBrokerURL, err)
		}
		defer d.Queue.Close()
	}
	glog.Infof("twsd: %s %s/%s addr %s", d.Config.DeviceID, d.Config.Pair, d.Config.Channel, d.Stack.Addr)
	if err := d.Kernel.Send(fx.TagBT, bt.EvtPowerOn, nil); err != nil {
		return err
	}
	return fx.NewRunner().HandleSignals().Go(d.runnables...).Wait()
}
