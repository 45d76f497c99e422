// Package dispatch implements the single consumer that owns the state
// core. Every mutation in the server happens on this goroutine, in the
// order events arrive on the inbound queue; that total order is the
// design's whole concurrency story.
package dispatch

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kaya3/incognita-socket-server/internal/v1/framing"
	"github.com/kaya3/incognita-socket-server/internal/v1/logging"
	"github.com/kaya3/incognita-socket-server/internal/v1/metrics"
	"github.com/kaya3/incognita-socket-server/internal/v1/protocol"
	"github.com/kaya3/incognita-socket-server/internal/v1/queue"
	"github.com/kaya3/incognita-socket-server/internal/v1/session"
	"github.com/kaya3/incognita-socket-server/internal/v1/state"
)

// Event is one item on the dispatcher's inbound queue.
type Event interface {
	isEvent()
}

// Connected announces an accepted connection not yet tied to a user.
type Connected struct {
	Conn net.Conn
}

// RequestFrom carries one parsed request from a live session.
type RequestFrom struct {
	User    protocol.UserID
	Request protocol.Request
}

// Disconnected announces that a session has fully stopped: its write
// pump no longer consumes the outbound queue, so the queue can be
// dropped.
type Disconnected struct {
	User protocol.UserID
}

func (Connected) isEvent()    {}
func (RequestFrom) isEvent()  {}
func (Disconnected) isEvent() {}

// Dispatcher owns the state core and the per-user outbound queues.
// Run consumes the inbound queue until Close; everything else only
// enqueues.
type Dispatcher struct {
	core          *state.Core
	maxFrameBytes int

	inbound  *queue.Queue[Event]
	outbound map[protocol.UserID]*queue.Queue[protocol.Message]

	sessions sync.WaitGroup
	done     chan struct{}

	// Mirrors of the core's counts, readable off the dispatcher
	// goroutine (health endpoint).
	userCount atomic.Int64
	roomCount atomic.Int64
}

// New creates a dispatcher around the given core. maxFrameBytes caps
// inbound lines on every session it spawns.
func New(core *state.Core, maxFrameBytes int) *Dispatcher {
	return &Dispatcher{
		core:          core,
		maxFrameBytes: maxFrameBytes,
		inbound:       queue.New[Event](),
		outbound:      make(map[protocol.UserID]*queue.Queue[protocol.Message]),
		done:          make(chan struct{}),
	}
}

// Connect submits an accepted connection. Returns false if the
// dispatcher has shut down, in which case the caller still owns the
// connection.
func (d *Dispatcher) Connect(conn net.Conn) bool {
	return d.inbound.Push(Connected{Conn: conn})
}

// Request submits a parsed request on behalf of a session.
func (d *Dispatcher) Request(user protocol.UserID, req protocol.Request) {
	if !d.inbound.Push(RequestFrom{User: user, Request: req}) {
		logging.Warn(context.Background(), "request dropped, dispatcher closed", zap.Uint32("user_id", uint32(user)))
	}
}

// Disconnect submits a disconnect notification on behalf of a session.
func (d *Dispatcher) Disconnect(user protocol.UserID) {
	if !d.inbound.Push(Disconnected{User: user}) {
		logging.Debug(context.Background(), "disconnect dropped, dispatcher closed", zap.Uint32("user_id", uint32(user)))
	}
}

// Close stops the inbound queue; Run drains out and returns.
func (d *Dispatcher) Close() {
	d.inbound.Close()
}

// Done is closed once Run has returned and every outbound queue is
// dropped.
func (d *Dispatcher) Done() <-chan struct{} {
	return d.done
}

// WaitSessions blocks until every spawned session has terminated.
func (d *Dispatcher) WaitSessions() {
	d.sessions.Wait()
}

// Snapshot reports current user and room counts. Safe from any
// goroutine.
func (d *Dispatcher) Snapshot() (users, rooms int) {
	return int(d.userCount.Load()), int(d.roomCount.Load())
}

// Run consumes events until Close. On exit it closes every remaining
// outbound queue, which lets still-connected sessions wind down on
// their own.
func (d *Dispatcher) Run() {
	defer close(d.done)
	for ev := range d.inbound.Out() {
		start := time.Now()
		switch e := ev.(type) {
		case Connected:
			d.handleConnect(e.Conn)
		case RequestFrom:
			d.handleRequest(e.User, e.Request)
		case Disconnected:
			d.handleDisconnect(e.User)
		}
		metrics.DispatchDuration.Observe(time.Since(start).Seconds())
		d.refreshCounts()
	}

	for id, q := range d.outbound {
		q.Close()
		delete(d.outbound, id)
	}
}

func (d *Dispatcher) handleConnect(conn net.Conn) {
	id, ok := d.core.AddUser()
	if !ok {
		metrics.RejectedConnections.Inc()
		logging.Warn(context.Background(), "connection rejected, server full",
			zap.String("remote_addr", conn.RemoteAddr().String()))
		writer := framing.NewLineWriter(conn)
		if err := writer.WriteLine(protocol.ErrorMessage{Cause: protocol.ErrServerFull}.Encode()); err != nil {
			logging.Debug(context.Background(), "failed to write rejection", zap.Error(err))
		}
		_ = conn.Close()
		return
	}

	out := queue.New[protocol.Message]()
	d.outbound[id] = out
	metrics.IncConnection()

	sess := session.New(id, conn, out.Out(), d, d.maxFrameBytes)
	d.sessions.Add(1)
	go func() {
		defer d.sessions.Done()
		sess.Run()
	}()
}

func (d *Dispatcher) handleRequest(user protocol.UserID, req protocol.Request) {
	resp := d.core.HandleRequest(user, req)

	status := "ok"
	if _, failed := resp.Returns.(protocol.ErrorMessage); failed {
		status = "error"
	}
	metrics.Requests.WithLabelValues(protocol.Verb(req), status).Inc()

	d.route(user, resp)
}

func (d *Dispatcher) handleDisconnect(user protocol.UserID) {
	resp, err := d.core.RemoveUser(user)
	if err != nil {
		// Unreachable for any id the dispatcher issued; log rather
		// than crash (protocol errors are never fatal).
		logging.Error(context.Background(), "disconnect cleanup failed",
			zap.Uint32("user_id", uint32(user)), zap.Error(err))
	} else {
		d.route(user, resp)
	}

	if out, ok := d.outbound[user]; ok {
		out.Close()
		delete(d.outbound, user)
		metrics.DecConnection()
	}
}

// route delivers the return message to the requester and each fan-out
// message to its target. A missing or closed queue means the peer is
// going away; the message is dropped.
func (d *Dispatcher) route(requester protocol.UserID, resp state.Response) {
	if resp.Returns != nil {
		d.deliver(requester, resp.Returns)
	}
	for _, send := range resp.Sends {
		d.deliver(send.To, send.Msg)
	}
}

func (d *Dispatcher) deliver(user protocol.UserID, msg protocol.Message) {
	out, ok := d.outbound[user]
	if !ok {
		logging.Debug(context.Background(), "message for unknown user dropped",
			zap.Uint32("user_id", uint32(user)))
		return
	}
	if !out.Push(msg) {
		logging.Debug(context.Background(), "message for closing user dropped",
			zap.Uint32("user_id", uint32(user)))
		return
	}
	metrics.MessagesDelivered.Inc()
}

func (d *Dispatcher) refreshCounts() {
	users := d.core.UserCount()
	rooms := d.core.RoomCount()
	d.userCount.Store(int64(users))
	d.roomCount.Store(int64(rooms))
	metrics.ActiveRooms.Set(float64(rooms))
}
