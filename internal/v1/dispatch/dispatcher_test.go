package dispatch

import (
	"bufio"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/kaya3/incognita-socket-server/internal/v1/state"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const waitFor = 2 * time.Second

// harness runs a dispatcher the way the accept loop would, with
// in-memory connections instead of sockets.
type harness struct {
	t          *testing.T
	dispatcher *Dispatcher
	clients    []*testClient
}

func newHarness(t *testing.T, maxConnections int) *harness {
	t.Helper()
	d := New(state.New(maxConnections), 64*1024)
	go d.Run()

	h := &harness{t: t, dispatcher: d}
	t.Cleanup(func() {
		for _, c := range h.clients {
			_ = c.conn.Close()
		}
		d.WaitSessions()
		d.Close()
		<-d.Done()
	})
	return h
}

type testClient struct {
	t     *testing.T
	conn  net.Conn
	lines chan string
}

// connect submits one end of a pipe as an accepted connection and
// returns the client end with a background line reader.
func (h *harness) connect() *testClient {
	h.t.Helper()
	serverEnd, clientEnd := net.Pipe()
	require.True(h.t, h.dispatcher.Connect(serverEnd))

	c := &testClient{t: h.t, conn: clientEnd, lines: make(chan string, 64)}
	go func() {
		scanner := bufio.NewScanner(clientEnd)
		for scanner.Scan() {
			c.lines <- scanner.Text()
		}
		close(c.lines)
	}()
	h.clients = append(h.clients, c)
	return c
}

func (c *testClient) send(line string) {
	c.t.Helper()
	_ = c.conn.SetWriteDeadline(time.Now().Add(waitFor))
	_, err := fmt.Fprintf(c.conn, "%s\n", line)
	require.NoError(c.t, err)
}

func (c *testClient) expect(want string) {
	c.t.Helper()
	select {
	case got, ok := <-c.lines:
		require.True(c.t, ok, "connection closed while expecting %q", want)
		assert.Equal(c.t, want, got)
	case <-time.After(waitFor):
		c.t.Fatalf("timed out expecting %q", want)
	}
}

func (c *testClient) expectClosed() {
	c.t.Helper()
	select {
	case got, ok := <-c.lines:
		require.False(c.t, ok, "expected close, got %q", got)
	case <-time.After(waitFor):
		c.t.Fatal("timed out expecting close")
	}
}

func (c *testClient) disconnect() {
	c.t.Helper()
	_ = c.conn.Close()
}

// lobby sets up the standard two-user fixture: A owns room 1, B is an
// accepted member.
func lobby(t *testing.T) (*harness, *testClient, *testClient) {
	t.Helper()
	h := newHarness(t, 16)

	a := h.connect()
	a.expect("WELCOME|1")
	b := h.connect()
	b.expect("WELCOME|2")

	a.send("CREATE_GAME|hello")
	a.expect("CREATED_GAME|1")

	b.send("JOIN_GAME|1|please")
	a.expect("PLAYER_JOINED|1|2|please")

	a.send("ACCEPT_JOIN|1|2")
	b.expect("JOINED|1")

	return h, a, b
}

func TestConnectCreateAndList(t *testing.T) {
	h := newHarness(t, 16)

	a := h.connect()
	a.expect("WELCOME|1")
	b := h.connect()
	b.expect("WELCOME|2")

	b.send("LIST_OPEN_GAMES")
	b.expect("NO_OPEN_GAMES")

	a.send("CREATE_GAME|hello")
	a.expect("CREATED_GAME|1")

	b.send("LIST_OPEN_GAMES")
	b.expect("OPEN_GAMES|1|hello")
}

func TestJoinHandshake(t *testing.T) {
	lobby(t)
}

func TestSendRouting(t *testing.T) {
	_, a, b := lobby(t)

	b.send("SEND|1|hi")
	a.expect("RECEIVED|1|2|hi")

	a.send("SEND|1|hey")
	b.expect("RECEIVED|1|hey")
}

func TestSendToRouting(t *testing.T) {
	_, a, b := lobby(t)

	a.send("SEND_TO|1|2|secret")
	b.expect("RECEIVED|1|secret")

	b.send("SEND_TO|1|1|x")
	b.expect("ERROR|You are not the game owner")
}

func TestEchoFromSkipsSource(t *testing.T) {
	h, a, b := lobby(t)

	c := h.connect()
	c.expect("WELCOME|3")
	c.send("JOIN_GAME|1|me too")
	a.expect("PLAYER_JOINED|1|3|me too")
	a.send("ACCEPT_JOIN|1|3")
	c.expect("JOINED|1")

	a.send("ECHO_FROM|1|2|whee")
	c.expect("RECEIVED|1|whee")

	// B was the source; only C hears the echo. B's next reply proves
	// nothing else was queued for it.
	b.send("PING|9")
	b.expect("PONG|9")
}

func TestDisconnectNotifiesOwnerThenClosesRoom(t *testing.T) {
	_, a, b := lobby(t)

	b.disconnect()
	a.expect("PLAYER_LEFT|1|2")

	// Owner leaving last closes the room with nobody to notify.
	a.disconnect()
}

func TestOwnerLeaveBroadcastsGameOver(t *testing.T) {
	h, a, b := lobby(t)

	c := h.connect()
	c.expect("WELCOME|3")
	c.send("JOIN_GAME|1|waiting")
	a.expect("PLAYER_JOINED|1|3|waiting")

	// Members and pending joiners both hear the closure.
	a.send("LEAVE_GAME|1")
	b.expect("GAME_OVER|1")
	c.expect("GAME_OVER|1")
}

func TestOwnerDisconnectBroadcastsGameOver(t *testing.T) {
	_, a, b := lobby(t)

	a.disconnect()
	b.expect("GAME_OVER|1")
}

func TestServerFull(t *testing.T) {
	h := newHarness(t, 1)

	a := h.connect()
	a.expect("WELCOME|1")

	b := h.connect()
	b.expect("ERROR|Server is full")
	b.expectClosed()

	// A is unaffected.
	a.send("PING|1")
	a.expect("PONG|1")
}

func TestSlotFreedAfterDisconnect(t *testing.T) {
	h := newHarness(t, 1)

	a := h.connect()
	a.expect("WELCOME|1")
	a.disconnect()

	// The slot frees once the disconnect is processed; retry until the
	// dispatcher catches up.
	deadline := time.Now().Add(waitFor)
	for {
		if users, _ := h.dispatcher.Snapshot(); users == 0 {
			break
		}
		require.True(t, time.Now().Before(deadline), "slot never freed")
		time.Sleep(5 * time.Millisecond)
	}

	b := h.connect()
	b.expect("WELCOME|2")
}

func TestInvalidRequests(t *testing.T) {
	h := newHarness(t, 16)

	a := h.connect()
	a.expect("WELCOME|1")

	a.send("DANCE")
	a.expect("ERROR|Invalid request")

	a.send("PING|notanumber")
	a.expect("ERROR|Invalid request")

	a.send("PING|7")
	a.expect("PONG|7")
}

func TestQuitClosesConnection(t *testing.T) {
	h := newHarness(t, 16)

	a := h.connect()
	a.expect("WELCOME|1")

	a.send("QUIT")
	a.expectClosed()
}

func TestPingBounds(t *testing.T) {
	h := newHarness(t, 16)

	a := h.connect()
	a.expect("WELCOME|1")

	a.send("PING|0")
	a.expect("PONG|0")
	a.send("PING|4294967295")
	a.expect("PONG|4294967295")
}

func TestCreateWhileInRoom(t *testing.T) {
	_, _, b := lobby(t)

	b.send("CREATE_GAME|another")
	b.expect("ERROR|Already in a game")
}

func TestSnapshotTracksCounts(t *testing.T) {
	h, _, _ := lobby(t)

	deadline := time.Now().Add(waitFor)
	for {
		users, rooms := h.dispatcher.Snapshot()
		if users == 2 && rooms == 1 {
			return
		}
		require.True(t, time.Now().Before(deadline),
			"counts never settled: users=%d rooms=%d", users, rooms)
		time.Sleep(5 * time.Millisecond)
	}
}
