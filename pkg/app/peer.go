package app

import (
	"context"
	"fmt"
	"net/url"

	"github.com/golang/glog"

	fx "github.com/robotalks/tws.go/pkg/framework"
	"github.com/robotalks/tws.go/pkg/link"
	"github.com/robotalks/tws.go/pkg/link/mqtt"
	"github.com/robotalks/tws.go/pkg/link/stream"
	"github.com/robotalks/tws.go/pkg/link/websocket"
)

// Topics returns the broker topics of this earbud.
func (c *Config) Topics() mqtt.Topics {
	return mqtt.Topics{Pair: c.Pair, Channel: c.Channel}
}

// PeerDialer builds the peer link selected by the scheme of PeerURL. q
// carries mqtt:// links. The returned Runnable, if not nil, serves
// incoming peers and must run alongside the link.
func (c *Config) PeerDialer(q *mqtt.Queue) (link.Dialer, fx.Runnable, error) {
	if c.PeerURL == "" {
		return nil, nil, nil
	}
	u, err := url.Parse(c.PeerURL)
	if err != nil {
		return nil, nil, err
	}
	switch u.Scheme {
	case "tcp":
		if c.Listen {
			return tcpListener(u.Host)
		}
		return link.DialFunc(func(ctx context.Context) (link.PacketReadWriter, error) {
			rw, err := stream.Dial(ctx, u.Host)
			if err != nil {
				return nil, err
			}
			return rw, nil
		}), nil, nil
	case "ws":
		if c.Listen {
			server := websocket.NewServer(u.Host)
			return link.DialFunc(func(ctx context.Context) (link.PacketReadWriter, error) {
				rw, err := server.Accept(ctx)
				if err != nil {
					return nil, err
				}
				return rw, nil
			}), fx.NamedRun("peer-server", server), nil
		}
		origin := "http://" + u.Host + "/"
		return link.DialFunc(func(ctx context.Context) (link.PacketReadWriter, error) {
			rw, err := websocket.Dial(c.PeerURL, origin)
			if err != nil {
				return nil, err
			}
			return rw, nil
		}), nil, nil
	case "mqtt":
		if q == nil {
			return nil, nil, fmt.Errorf("peer link %s requires a broker", c.PeerURL)
		}
		ch, err := c.BTChannel()
		if err != nil {
			return nil, nil, err
		}
		local := c.Topics()
		return &mqtt.Dialer{Queue: q, Local: local, Peer: local.Peer(ch.Peer().String())}, nil, nil
	}
	return nil, nil, fmt.Errorf("unsupported peer link %q", c.PeerURL)
}

func tcpListener(addr string) (link.Dialer, fx.Runnable, error) {
	l, err := stream.Listen(addr)
	if err != nil {
		return nil, nil, err
	}
	glog.Infof("peer: listening on %s", l.Addr())
	dialer := link.DialFunc(func(ctx context.Context) (link.PacketReadWriter, error) {
		rw, err := l.Accept(ctx)
		if err != nil {
			return nil, err
		}
		return rw, nil
	})
	closer := fx.RunFunc(func(ctx context.Context) error {
		<-ctx.Done()
		l.Close()
		return ctx.Err()
	})
	return dialer, fx.NamedRun("peer-listener", closer), nil
}
