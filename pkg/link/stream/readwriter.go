// Package stream frames peer packets over a byte stream such as TCP.
package stream

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"time"

	fx "github.com/robotalks/tws.go/pkg/framework"
)

// MaxPacketLen bounds a single frame.
const MaxPacketLen = 1024

// ErrPacketTooLarge indicates a frame longer than MaxPacketLen.
var ErrPacketTooLarge = errors.New("packet too large")

// ReadWriter implements PacketReadWriter.
// Each packet is prefixed by its length as a little-endian uint16.
type ReadWriter struct {
	io.ReadWriter
}

// New creates a ReadWriter with io.ReadWriter.
func New(s io.ReadWriter) *ReadWriter {
	return &ReadWriter{s}
}

// ReadPacket implements PacketReader.
func (p *ReadWriter) ReadPacket() ([]byte, error) {
	var head [2]byte
	if _, err := io.ReadFull(p.ReadWriter, head[:]); err != nil {
		return nil, err
	}
	size := binary.LittleEndian.Uint16(head[:])
	if size > MaxPacketLen {
		return nil, ErrPacketTooLarge
	}
	pkt := make([]byte, size)
	_, err := io.ReadFull(p.ReadWriter, pkt)
	return pkt, err
}

// WritePacket implements PacketWriter.
func (p *ReadWriter) WritePacket(pkt []byte) error {
	if len(pkt) > MaxPacketLen {
		return ErrPacketTooLarge
	}
	frame := make([]byte, len(pkt)+2)
	binary.LittleEndian.PutUint16(frame, uint16(len(pkt)))
	copy(frame[2:], pkt)
	_, err := p.Write(frame)
	return err
}

// Close implements io.Closer.
func (p *ReadWriter) Close() error {
	if closer, ok := p.ReadWriter.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// Dial connects to a listening peer.
func Dial(ctx context.Context, addr string) (*ReadWriter, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return New(conn), nil
}

// Listener accepts peer connections one at a time.
type Listener struct {
	*net.TCPListener
}

// Listen creates a Listener on addr.
func Listen(addr string) (*Listener, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Listener{l.(*net.TCPListener)}, nil
}

// Accept waits for the next peer connection or ctx.
func (l *Listener) Accept(ctx context.Context) (*ReadWriter, error) {
	var conn net.Conn
	err := fx.RunWithContextCancel(ctx, func() {
		l.SetDeadline(time.Now())
	}, func() (err error) {
		conn, err = l.AcceptTCP()
		return
	})
	if err != nil {
		if conn != nil {
			conn.Close()
		}
		l.SetDeadline(time.Time{})
		return nil, err
	}
	return New(conn), nil
}
