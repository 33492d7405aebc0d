package status

import (
	"context"
	"errors"
	"sync"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"
	"github.com/google/uuid"

	"github.com/robotalks/tws.go/pkg/link/mqtt"
)

// Bus is the part of mqtt.Queue used here.
type Bus interface {
	Sub(topic string, handler mqtt.Handler) *mqtt.Subscription
	PubWith(topic string, payload []byte, qos byte, retain bool) paho.Token
}

// ErrNoReply is returned when a reply doesn't decode to a Reply.
var ErrNoReply = errors.New("not a reply")

func publish(bus Bus, topic string, msg Message, retain bool) error {
	data, err := Encode(msg)
	if err != nil {
		return err
	}
	token := bus.PubWith(topic, data, 1, retain)
	go func() {
		if token.Wait() && token.Error() != nil {
			glog.Errorf("status: publish %s: %v", topic, token.Error())
		}
	}()
	return nil
}

// Reporter publishes status and events of one earbud and receives its
// shell commands.
type Reporter struct {
	Bus    Bus
	Topics mqtt.Topics
}

// NewReporter creates a Reporter.
func NewReporter(bus Bus, topics mqtt.Topics) *Reporter {
	return &Reporter{Bus: bus, Topics: topics}
}

// ReportStatus publishes the retained status.
func (r *Reporter) ReportStatus(st *DeviceStatus) error {
	return publish(r.Bus, r.Topics.Status(), st, true)
}

// ReportEvent publishes an event.
func (r *Reporter) ReportEvent(ev *EventReport) error {
	return publish(r.Bus, r.Topics.Events(), ev, false)
}

// Reply publishes the reply of a command.
func (r *Reporter) Reply(rep *Reply) error {
	return publish(r.Bus, r.Topics.Replies(), rep, false)
}

// ServeCommands calls handler for every command received.
func (r *Reporter) ServeCommands(handler func(*Command)) *mqtt.Subscription {
	return r.Bus.Sub(r.Topics.Commands(), func(topic string, payload []byte) {
		msg, err := Decode(payload)
		if err != nil {
			glog.Errorf("status: command: %v", err)
			return
		}
		cmd, ok := msg.(*Command)
		if !ok {
			glog.Errorf("status: unexpected %T on %s", msg, topic)
			return
		}
		handler(cmd)
	})
}

// Client sends commands to one earbud and waits for the replies.
type Client struct {
	Bus    Bus
	Topics mqtt.Topics

	lock    sync.Mutex
	pending map[string]chan *Reply
	sub     *mqtt.Subscription
}

// NewClient creates a Client.
func NewClient(bus Bus, topics mqtt.Topics) *Client {
	return &Client{Bus: bus, Topics: topics, pending: make(map[string]chan *Reply)}
}

// Open subscribes the replies.
func (c *Client) Open() *Client {
	c.sub = c.Bus.Sub(c.Topics.Replies(), c.handleReply)
	return c
}

func (c *Client) handleReply(topic string, payload []byte) {
	msg, err := Decode(payload)
	if err != nil {
		glog.Errorf("status: reply: %v", err)
		return
	}
	rep, ok := msg.(*Reply)
	if !ok {
		glog.Errorf("status: %v", ErrNoReply)
		return
	}
	c.lock.Lock()
	ch := c.pending[rep.CorrelationId]
	delete(c.pending, rep.CorrelationId)
	c.lock.Unlock()
	if ch == nil {
		glog.V(2).Infof("status: stale reply %s", rep.CorrelationId)
		return
	}
	ch <- rep
}

// Do sends cmd and waits for its reply. The reply error is returned
// as error.
func (c *Client) Do(ctx context.Context, cmd *Command) (*Reply, error) {
	if cmd.CorrelationId == "" {
		cmd.CorrelationId = uuid.New().String()
	}
	ch := make(chan *Reply, 1)
	c.lock.Lock()
	c.pending[cmd.CorrelationId] = ch
	c.lock.Unlock()
	defer func() {
		c.lock.Lock()
		delete(c.pending, cmd.CorrelationId)
		c.lock.Unlock()
	}()

	if err := publish(c.Bus, c.Topics.Commands(), cmd, false); err != nil {
		return nil, err
	}
	select {
	case rep := <-ch:
		if rep.Error != "" {
			return rep, errors.New(rep.Error)
		}
		return rep, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
