// Package link carries raw peer packets between the two earbuds.
package link

import (
	"context"
	"errors"
)

// ErrNotConnected indicates there's no peer link at the moment.
var ErrNotConnected = errors.New("peer link not connected")

// PacketReader reads packets in bytes.
type PacketReader interface {
	ReadPacket() ([]byte, error)
}

// PacketWriter writes packets in bytes.
type PacketWriter interface {
	WritePacket([]byte) error
}

// PacketReadWriter reads/writes packets in bytes.
type PacketReadWriter interface {
	PacketReader
	PacketWriter
}

// PacketHandler consumes inbound packets.
type PacketHandler interface {
	HandlePacket([]byte) error
}

// HandlePacketFunc is the func form of PacketHandler.
type HandlePacketFunc func([]byte) error

// HandlePacket implements PacketHandler.
func (f HandlePacketFunc) HandlePacket(pkt []byte) error {
	return f(pkt)
}

// Dialer establishes a peer link.
type Dialer interface {
	Dial(context.Context) (PacketReadWriter, error)
}

// DialFunc is the func form of Dialer.
type DialFunc func(context.Context) (PacketReadWriter, error)

// Dial implements Dialer.
func (f DialFunc) Dial(ctx context.Context) (PacketReadWriter, error) {
	return f(ctx)
}

// Observer is notified when the link goes up or down.
type Observer interface {
	LinkUp()
	LinkDown(error)
}
