package mqtt

import (
	"context"
	"io"
	"sync"

	"github.com/robotalks/tws.go/pkg/link"
)

// Topics builds topic names for one earbud of a pair:
// tws/<pair>/<channel>/<kind>.
type Topics struct {
	Pair    string
	Channel string
}

func (t Topics) topic(kind string) string {
	return "tws/" + t.Pair + "/" + t.Channel + "/" + kind
}

// Data is where the earbud publishes peer packets.
func (t Topics) Data() string { return t.topic("data") }

// Status is the retained status topic.
func (t Topics) Status() string { return t.topic("status") }

// Events carries event reports.
func (t Topics) Events() string { return t.topic("events") }

// Commands carries shell commands to the earbud.
func (t Topics) Commands() string { return t.topic("cmd") }

// Replies carries command replies from the earbud.
func (t Topics) Replies() string { return t.topic("reply") }

// Peer returns the Topics of the other earbud.
func (t Topics) Peer(channel string) Topics {
	return Topics{Pair: t.Pair, Channel: channel}
}

// AllStatus matches the status topic of every earbud.
const AllStatus = "tws/+/+/status"

// AllEvents matches the event topic of every earbud.
const AllEvents = "tws/+/+/events"

// ReadWriter implements PacketReadWriter.
type ReadWriter struct {
	Queue    *Queue
	SubTopic string
	PubTopic string

	sub       *Subscription
	packetCh  chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// NewPacketReadWriter creates the ReadWriter.
func NewPacketReadWriter(q *Queue) *ReadWriter {
	return &ReadWriter{Queue: q, packetCh: make(chan []byte, 16), done: make(chan struct{})}
}

// WithTopics specifies the topics.
func (p *ReadWriter) WithTopics(sub, pub string) *ReadWriter {
	p.SubTopic, p.PubTopic = sub, pub
	return p
}

// Open subscribes SubTopic.
func (p *ReadWriter) Open() *ReadWriter {
	p.sub = p.Queue.Sub(p.SubTopic, Handler(p.handleMsg))
	return p
}

// ReadPacket implements PacketReader.
func (p *ReadWriter) ReadPacket() ([]byte, error) {
	select {
	case pkt := <-p.packetCh:
		return pkt, nil
	case <-p.done:
		return nil, io.EOF
	}
}

// WritePacket implements PacketWriter.
func (p *ReadWriter) WritePacket(pkt []byte) error {
	token := p.Queue.Pub(p.PubTopic, pkt)
	token.Wait()
	return token.Error()
}

// Close implements io.Closer.
func (p *ReadWriter) Close() (err error) {
	p.closeOnce.Do(func() {
		close(p.done)
		if p.sub != nil {
			err = p.sub.Close()
		}
	})
	return
}

func (p *ReadWriter) handleMsg(_ string, payload []byte) {
	pkt := append([]byte(nil), payload...)
	select {
	case p.packetCh <- pkt:
	case <-p.done:
	}
}

// Dialer opens the peer link of an earbud through the broker.
type Dialer struct {
	Queue *Queue
	Local Topics
	Peer  Topics
}

// Dial implements link.Dialer.
func (d *Dialer) Dial(ctx context.Context) (link.PacketReadWriter, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return NewPacketReadWriter(d.Queue).WithTopics(d.Peer.Data(), d.Local.Data()).Open(), nil
}
