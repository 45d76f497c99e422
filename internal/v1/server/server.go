// Package server owns the TCP listener. It accepts connections and
// hands each one to the dispatcher as a Connected event; everything
// after the accept happens elsewhere.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"go.uber.org/zap"

	"github.com/kaya3/incognita-socket-server/internal/v1/dispatch"
	"github.com/kaya3/incognita-socket-server/internal/v1/logging"
)

// TCPServer runs the accept loop and coordinates shutdown with the
// dispatcher it feeds.
type TCPServer struct {
	dispatcher *dispatch.Dispatcher

	listenerMu sync.Mutex
	listener   net.Listener
}

// New creates a TCPServer around an already-constructed dispatcher.
func New(dispatcher *dispatch.Dispatcher) *TCPServer {
	return &TCPServer{dispatcher: dispatcher}
}

// Serve starts the dispatcher and accepts connections until the
// listener closes. It returns net.ErrClosed on normal shutdown.
func (s *TCPServer) Serve(listener net.Listener) error {
	s.listenerMu.Lock()
	s.listener = listener
	s.listenerMu.Unlock()

	go s.dispatcher.Run()

	logging.Info(context.Background(), "listening",
		zap.String("addr", listener.Addr().String()))

	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return net.ErrClosed
			}
			return fmt.Errorf("accept connection: %w", err)
		}

		if !s.dispatcher.Connect(conn) {
			logging.Warn(context.Background(), "connection dropped, dispatcher closed",
				zap.String("remote_addr", conn.RemoteAddr().String()))
			_ = conn.Close()
		}
	}
}

// Shutdown closes the listener and stops the dispatcher. Sessions are
// released by the dispatcher closing their outbound queues; in-flight
// writes are not awaited beyond ctx.
func (s *TCPServer) Shutdown(ctx context.Context) error {
	s.listenerMu.Lock()
	listener := s.listener
	s.listenerMu.Unlock()

	if listener != nil {
		_ = listener.Close()
	}

	s.dispatcher.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-s.dispatcher.Done()
		s.dispatcher.WaitSessions()
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	case <-done:
		return nil
	}
}
