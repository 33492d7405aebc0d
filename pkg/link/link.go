package link

import (
	"context"
	"sync"
	"time"

	"github.com/golang/glog"
)

// DefaultRetryInterval is the wait between two dial attempts.
const DefaultRetryInterval = time.Second

// Link keeps a peer link alive: it dials, pumps packets until the
// connection breaks, then dials again.
type Link struct {
	Dialer        Dialer
	Handler       PacketHandler
	Observer      Observer
	RetryInterval time.Duration

	lock sync.Mutex
	pipe *Pipe
}

// New creates a Link.
func New(dialer Dialer, handler PacketHandler) *Link {
	return &Link{Dialer: dialer, Handler: handler, RetryInterval: DefaultRetryInterval}
}

// Name implements Named.
func (l *Link) Name() string {
	return "link"
}

// Connected reports whether a pipe is active.
func (l *Link) Connected() bool {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.pipe != nil
}

// WritePacket implements PacketWriter.
func (l *Link) WritePacket(pkt []byte) error {
	l.lock.Lock()
	pipe := l.pipe
	l.lock.Unlock()
	if pipe == nil {
		return ErrNotConnected
	}
	return pipe.WritePacket(pkt)
}

// Run implements Runnable.
func (l *Link) Run(ctx context.Context) error {
	for {
		rw, err := l.Dialer.Dial(ctx)
		if err == nil {
			err = l.serve(ctx, rw)
		} else {
			glog.Warningf("link: dial failed: %v", err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		interval := l.RetryInterval
		if interval <= 0 {
			interval = DefaultRetryInterval
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

func (l *Link) serve(ctx context.Context, rw PacketReadWriter) error {
	pipe := NewPipe(rw, l.Handler)
	l.lock.Lock()
	l.pipe = pipe
	l.lock.Unlock()
	glog.Info("link: up")
	if o := l.Observer; o != nil {
		o.LinkUp()
	}
	err := pipe.Run(ctx)
	l.lock.Lock()
	l.pipe = nil
	l.lock.Unlock()
	glog.Warningf("link: down: %v", err)
	if o := l.Observer; o != nil {
		o.LinkDown(err)
	}
	return err
}
