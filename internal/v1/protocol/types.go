// Package protocol defines the wire-level vocabulary of the lobby
// protocol: identifier types, client requests, server messages, and the
// error kinds that travel as ERROR lines.
//
// Frames are UTF-8 lines terminated by '\n' with '|'-separated fields.
// Fields are opaque and may contain spaces, but never '|' or '\n'.
// Decoding (decode.go) turns one inbound line into a Request; encoding
// (encode.go) turns one Message into an outbound line without the
// terminator.
package protocol

// UserID identifies a connected client. Assigned by the server at
// connect time; zero is never issued.
type UserID uint32

// RoomID identifies a room. Zero is never issued.
type RoomID uint32

// RoomSummary is one entry of a room listing: the room id and the
// opaque descriptor supplied at creation.
type RoomSummary struct {
	ID   RoomID
	Data string
}

// Request is one decoded client-to-server frame.
type Request interface {
	isRequest()
}

// ListRooms asks for the current room listing.
type ListRooms struct{}

// Ping asks for a Pong echoing the same sequence number.
type Ping struct {
	Seq uint32
}

// CreateRoom opens a new room with the caller as owner. Data is the
// opaque room descriptor attached to every listing entry.
type CreateRoom struct {
	Data string
}

// SetOwner is recognised on the wire but currently has no server-side
// behaviour; the state core returns an empty response for it.
type SetOwner struct {
	Room RoomID
	User UserID
}

// AskJoinRoom registers a pending join request with the room owner.
type AskJoinRoom struct {
	Room RoomID
	Msg  string
}

// AcceptJoinRoom promotes a pending joiner to member. Owner only.
type AcceptJoinRoom struct {
	Room RoomID
	User UserID
}

// RejectJoinRoom declines a pending join request. Owner only.
type RejectJoinRoom struct {
	Room   RoomID
	User   UserID
	Reason string
}

// LeaveRoom leaves a room; when the caller owns the room, the room
// closes.
type LeaveRoom struct {
	Room RoomID
}

// Send routes a payload: owner to every member, member to the owner.
type Send struct {
	Room    RoomID
	Payload string
}

// SendTo routes a payload from the owner to a single member.
type SendTo struct {
	Room    RoomID
	User    UserID
	Payload string
}

// EchoFrom broadcasts a payload on behalf of a member to every other
// member. Owner only.
type EchoFrom struct {
	Room    RoomID
	From    UserID
	Payload string
}

// Quit ends the connection. The session consumes it before it reaches
// the state core.
type Quit struct{}

func (ListRooms) isRequest()      {}
func (Ping) isRequest()           {}
func (CreateRoom) isRequest()     {}
func (SetOwner) isRequest()       {}
func (AskJoinRoom) isRequest()    {}
func (AcceptJoinRoom) isRequest() {}
func (RejectJoinRoom) isRequest() {}
func (LeaveRoom) isRequest()      {}
func (Send) isRequest()           {}
func (SendTo) isRequest()         {}
func (EchoFrom) isRequest()       {}
func (Quit) isRequest()           {}

// Verb returns the wire verb of a request, for logging and metrics
// labels.
func Verb(r Request) string {
	switch r.(type) {
	case ListRooms:
		return "LIST_OPEN_GAMES"
	case Ping:
		return "PING"
	case CreateRoom:
		return "CREATE_GAME"
	case SetOwner:
		return "SET_OWNER"
	case AskJoinRoom:
		return "JOIN_GAME"
	case AcceptJoinRoom:
		return "ACCEPT_JOIN"
	case RejectJoinRoom:
		return "REJECT_JOIN"
	case LeaveRoom:
		return "LEAVE_GAME"
	case Send:
		return "SEND"
	case SendTo:
		return "SEND_TO"
	case EchoFrom:
		return "ECHO_FROM"
	case Quit:
		return "QUIT"
	default:
		return "UNKNOWN"
	}
}
