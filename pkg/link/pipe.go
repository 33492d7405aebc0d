package link

import (
	"context"
	"io"
	"sync"

	"github.com/golang/glog"

	fx "github.com/robotalks/tws.go/pkg/framework"
)

// Pipe pumps packets from a PacketReadWriter into a PacketHandler and
// serializes writes.
type Pipe struct {
	ReadWriter PacketReadWriter
	Handler    PacketHandler

	sendLock sync.Mutex
}

// NewPipe creates a Pipe with given PacketReadWriter.
func NewPipe(rw PacketReadWriter, h PacketHandler) *Pipe {
	return &Pipe{ReadWriter: rw, Handler: h}
}

// WritePacket implements PacketWriter.
func (p *Pipe) WritePacket(pkt []byte) error {
	p.sendLock.Lock()
	defer p.sendLock.Unlock()
	return p.ReadWriter.WritePacket(pkt)
}

// Run implements Runnable.
func (p *Pipe) Run(ctx context.Context) error {
	return fx.RunWithContextCloser(ctx, p, func() error {
		for {
			pkt, err := p.ReadWriter.ReadPacket()
			if err != nil {
				return err
			}
			if h := p.Handler; h != nil {
				if err = h.HandlePacket(pkt); err != nil {
					// a bad packet never takes the link down.
					glog.Warningf("link: packet (%d bytes) dropped: %v", len(pkt), err)
				}
			}
		}
	})
}

// Close implements io.Closer.
func (p *Pipe) Close() error {
	if closer, ok := p.ReadWriter.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
