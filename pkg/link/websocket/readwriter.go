// Package websocket carries peer packets as binary websocket messages.
package websocket

import (
	"context"
	"net/http"
	"sync"

	"github.com/golang/glog"
	"golang.org/x/net/websocket"
)

// ReadWriter implements PacketReadWriter.
type ReadWriter struct {
	Conn *websocket.Conn

	closeOnce sync.Once
	closed    chan struct{}
}

// New wraps websocket.Conn.
func New(conn *websocket.Conn) *ReadWriter {
	conn.PayloadType = websocket.BinaryFrame
	return &ReadWriter{Conn: conn, closed: make(chan struct{})}
}

// ReadPacket implements PacketReader.
func (p *ReadWriter) ReadPacket() (pkt []byte, err error) {
	err = websocket.Message.Receive(p.Conn, &pkt)
	return
}

// WritePacket implements PacketWriter.
func (p *ReadWriter) WritePacket(pkt []byte) error {
	return websocket.Message.Send(p.Conn, pkt)
}

// Close implements io.Closer.
func (p *ReadWriter) Close() (err error) {
	p.closeOnce.Do(func() {
		err = p.Conn.Close()
		close(p.closed)
	})
	return
}

// Done is closed once Close is called.
func (p *ReadWriter) Done() <-chan struct{} {
	return p.closed
}

// Dial connects a websocket server.
func Dial(url, origin string) (*ReadWriter, error) {
	conn, err := websocket.Dial(url, "", origin)
	if err != nil {
		return nil, err
	}
	return New(conn), nil
}

// Server accepts peer connections over HTTP.
type Server struct {
	Addr string

	connCh chan *ReadWriter
}

// NewServer creates a Server listening on addr once Run.
func NewServer(addr string) *Server {
	return &Server{Addr: addr, connCh: make(chan *ReadWriter)}
}

// Handler returns the websocket endpoint.
func (s *Server) Handler() http.Handler {
	return websocket.Handler(func(conn *websocket.Conn) {
		rw := New(conn)
		select {
		case s.connCh <- rw:
			// the connection is closed when the handler returns.
			<-rw.Done()
		case <-conn.Request().Context().Done():
		}
	})
}

// Accept waits for the next peer connection.
func (s *Server) Accept(ctx context.Context) (*ReadWriter, error) {
	select {
	case rw := <-s.connCh:
		return rw, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Run implements Runnable.
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{Addr: s.Addr, Handler: s.Handler()}
	errCh := make(chan error, 1)
	go func() {
		glog.Infof("websocket: listening on %s", s.Addr)
		errCh <- server.ListenAndServe()
	}()
	select {
	case <-ctx.Done():
		server.Close()
		<-errCh
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}
