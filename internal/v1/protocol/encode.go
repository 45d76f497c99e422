package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// Message is one server-to-client frame. Encode returns the wire form
// without the trailing '\n'; the framing layer appends the terminator.
type Message interface {
	Encode() string
}

// Welcome is the first frame on every accepted connection.
type Welcome struct {
	User UserID
}

// Pong answers a Ping with the same sequence number.
type Pong struct {
	Seq uint32
}

// RoomList answers ListRooms. An empty listing encodes as
// NO_OPEN_GAMES; otherwise fields pair up strictly id|data in
// listing order.
type RoomList struct {
	Rooms []RoomSummary
}

// RoomCreated confirms CreateRoom to the new owner.
type RoomCreated struct {
	Room RoomID
}

// RoomJoined tells a pending joiner their request was accepted.
type RoomJoined struct {
	Room RoomID
}

// RoomClosed tells members and pending joiners their room is gone.
type RoomClosed struct {
	Room RoomID
}

// RoomRejected tells a pending joiner their request was declined.
type RoomRejected struct {
	Room   RoomID
	Reason string
}

// JoinRequested tells the owner a user wants in.
type JoinRequested struct {
	Room RoomID
	User UserID
	Msg  string
}

// PlayerLeft tells the owner a member or pending joiner is gone.
type PlayerLeft struct {
	Room RoomID
	User UserID
}

// ReceivedBroadcast carries an owner broadcast to one member.
type ReceivedBroadcast struct {
	Room    RoomID
	Payload string
}

// ReceivedIndividual carries an owner-to-member individual payload.
// Identical on the wire to ReceivedBroadcast; kept separate because
// the two are produced by different operations.
type ReceivedIndividual struct {
	Room    RoomID
	Payload string
}

// ReceivedFrom carries a member payload to the owner, tagged with the
// sender.
type ReceivedFrom struct {
	Room    RoomID
	User    UserID
	Payload string
}

// ErrorMessage reports a protocol failure to the requester.
type ErrorMessage struct {
	Cause Error
}

func (m Welcome) Encode() string {
	return fmt.Sprintf("WELCOME|%d", m.User)
}

func (m Pong) Encode() string {
	return fmt.Sprintf("PONG|%d", m.Seq)
}

func (m RoomList) Encode() string {
	if len(m.Rooms) == 0 {
		return "NO_OPEN_GAMES"
	}
	var b strings.Builder
	b.WriteString("OPEN_GAMES")
	for _, room := range m.Rooms {
		b.WriteByte('|')
		b.WriteString(strconv.FormatUint(uint64(room.ID), 10))
		b.WriteByte('|')
		b.WriteString(room.Data)
	}
	return b.String()
}

func (m RoomCreated) Encode() string {
	return fmt.Sprintf("CREATED_GAME|%d", m.Room)
}

func (m RoomJoined) Encode() string {
	return fmt.Sprintf("JOINED|%d", m.Room)
}

func (m RoomClosed) Encode() string {
	return fmt.Sprintf("GAME_OVER|%d", m.Room)
}

func (m RoomRejected) Encode() string {
	return fmt.Sprintf("REJECTED|%d|%s", m.Room, m.Reason)
}

func (m JoinRequested) Encode() string {
	return fmt.Sprintf("PLAYER_JOINED|%d|%d|%s", m.Room, m.User, m.Msg)
}

func (m PlayerLeft) Encode() string {
	return fmt.Sprintf("PLAYER_LEFT|%d|%d", m.Room, m.User)
}

func (m ReceivedBroadcast) Encode() string {
	return fmt.Sprintf("RECEIVED|%d|%s", m.Room, m.Payload)
}

func (m ReceivedIndividual) Encode() string {
	return fmt.Sprintf("RECEIVED|%d|%s", m.Room, m.Payload)
}

func (m ReceivedFrom) Encode() string {
	return fmt.Sprintf("RECEIVED|%d|%d|%s", m.Room, m.User, m.Payload)
}

func (m ErrorMessage) Encode() string {
	return "ERROR|" + m.Cause.Error()
}
