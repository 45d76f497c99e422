// Package session implements the per-connection task. A session owns
// its socket, reads and parses inbound lines, writes outbound
// messages, and tells the dispatcher when the connection is gone. It
// never touches server state.
package session

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kaya3/incognita-socket-server/internal/v1/framing"
	"github.com/kaya3/incognita-socket-server/internal/v1/logging"
	"github.com/kaya3/incognita-socket-server/internal/v1/protocol"
)

// Events is the session's handle back to the dispatcher. Both calls
// enqueue and never block.
type Events interface {
	Request(user protocol.UserID, req protocol.Request)
	Disconnect(user protocol.UserID)
}

// Session bridges one accepted connection and the dispatcher. Run
// drives two pumps: the read side parses lines into requests, the
// write side drains the outbound queue onto the socket.
type Session struct {
	id     protocol.UserID
	conn   net.Conn
	out    <-chan protocol.Message
	events Events

	reader *framing.LineReader

	// writeMu serializes welcome lines, invalid-request replies from
	// the read side, and outbound messages from the write side, so
	// frames never interleave on the socket.
	writeMu sync.Mutex
	writer  *framing.LineWriter

	closeOnce sync.Once
}

// New wires a session for an already-admitted user. out is the
// receiving end of the user's outbound queue.
func New(id protocol.UserID, conn net.Conn, out <-chan protocol.Message, events Events, maxFrameBytes int) *Session {
	return &Session{
		id:     id,
		conn:   conn,
		out:    out,
		events: events,
		reader: framing.NewLineReader(conn, maxFrameBytes),
		writer: framing.NewLineWriter(conn),
	}
}

// Run blocks until the connection is finished, then notifies the
// dispatcher. The Disconnect notification is sent strictly after the
// write pump has stopped consuming the outbound queue, so the
// dispatcher can drop the queue without racing a consumer.
func (s *Session) Run() {
	ctx := logging.WithUserID(
		logging.WithCorrelationID(context.Background(), uuid.NewString()),
		uint32(s.id),
	)
	logging.Info(ctx, "client connected",
		zap.String("remote_addr", s.conn.RemoteAddr().String()))

	if err := s.write(protocol.Welcome{User: s.id}); err != nil {
		logging.Warn(ctx, "welcome write failed", zap.Error(err))
	} else {
		readerDone := make(chan struct{})
		var writers sync.WaitGroup
		writers.Add(1)
		go func() {
			defer writers.Done()
			s.writePump(ctx, readerDone)
		}()

		s.readPump(ctx)
		close(readerDone)
		writers.Wait()
	}

	s.closeConn()
	s.events.Disconnect(s.id)
	logging.Info(ctx, "client disconnected")
}

// readPump parses inbound lines until EOF, a read error, a failed
// write of an error reply, or a QUIT.
func (s *Session) readPump(ctx context.Context) {
	for {
		line, err := s.reader.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				logging.Debug(ctx, "connection closed by peer")
			} else {
				logging.Warn(ctx, "read failed", zap.Error(err))
			}
			return
		}
		logging.Debug(ctx, "received", zap.String("line", line))

		req, err := protocol.Decode(line)
		if err != nil {
			if werr := s.write(protocol.ErrorMessage{Cause: protocol.ErrInvalidRequest}); werr != nil {
				logging.Warn(ctx, "write failed", zap.Error(werr))
				return
			}
			continue
		}

		// QUIT ends the connection here; it never reaches the core.
		if _, quit := req.(protocol.Quit); quit {
			logging.Debug(ctx, "client quit")
			return
		}

		s.events.Request(s.id, req)
	}
}

// writePump drains the outbound queue onto the socket. It stops when
// the queue closes, a write fails, or the read side is done. On a
// write failure it closes the connection so the read side unblocks.
func (s *Session) writePump(ctx context.Context, readerDone <-chan struct{}) {
	for {
		select {
		case msg, ok := <-s.out:
			if !ok {
				s.closeConn()
				return
			}
			logging.Debug(ctx, "sending", zap.String("line", msg.Encode()))
			if err := s.write(msg); err != nil {
				logging.Warn(ctx, "write failed", zap.Error(err))
				s.closeConn()
				return
			}
		case <-readerDone:
			return
		}
	}
}

func (s *Session) write(msg protocol.Message) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.writer.WriteLine(msg.Encode())
}

func (s *Session) closeConn() {
	s.closeOnce.Do(func() {
		_ = s.conn.Close()
	})
}
