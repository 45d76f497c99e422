package state

import "github.com/kaya3/incognita-socket-server/internal/v1/protocol"

// Core holds every user and room. The dispatcher is its only caller;
// each method runs to completion before the next event is handled, so
// no method needs synchronization.
type Core struct {
	maxConnections int

	lastUserID protocol.UserID
	users      map[protocol.UserID]*User

	lastRoomID protocol.RoomID
	rooms      map[protocol.RoomID]*Room
	// roomOrder preserves creation order for listings; Go map
	// iteration is randomized and the listing must be deterministic.
	roomOrder []protocol.RoomID
}

// New creates an empty core admitting at most maxConnections users.
func New(maxConnections int) *Core {
	return &Core{
		maxConnections: maxConnections,
		users:          make(map[protocol.UserID]*User),
		rooms:          make(map[protocol.RoomID]*Room),
	}
}

// UserCount reports the number of connected users.
func (c *Core) UserCount() int {
	return len(c.users)
}

// RoomCount reports the number of open rooms.
func (c *Core) RoomCount() int {
	return len(c.rooms)
}

// nextUserID allocates a fresh user id: wrapping 32-bit increment from
// the last issued id, skipping zero and ids still live.
func (c *Core) nextUserID() protocol.UserID {
	id := c.lastUserID
	for {
		id++
		if _, live := c.users[id]; !live && id != 0 {
			return id
		}
	}
}

func (c *Core) nextRoomID() protocol.RoomID {
	id := c.lastRoomID
	for {
		id++
		if _, live := c.rooms[id]; !live && id != 0 {
			return id
		}
	}
}

// AddUser admits a new connection. It returns false when the server is
// at capacity; otherwise the new user starts nowhere.
func (c *Core) AddUser() (protocol.UserID, bool) {
	if len(c.users) >= c.maxConnections {
		return 0, false
	}
	id := c.nextUserID()
	c.users[id] = newUser(id)
	c.lastUserID = id
	return id, true
}

// RemoveUser destroys a user at disconnect time and repairs the room
// graph: an owner's room closes, a member or pending joiner is
// detached and the owner notified.
func (c *Core) RemoveUser(userID protocol.UserID) (Response, error) {
	user, ok := c.users[userID]
	if !ok {
		return Response{}, protocol.ErrNoSuchUser
	}
	delete(c.users, userID)

	switch user.State.Place {
	case PlaceRoomOwner:
		return c.closeRoom(user.State.Room)
	case PlaceInRoom:
		room, ok := c.rooms[user.State.Room]
		if !ok {
			return Response{}, protocol.ErrNoSuchRoom
		}
		if err := room.removeMember(userID); err != nil {
			return Response{}, err
		}
		return sends(room.OwnerID, protocol.PlayerLeft{Room: room.ID, User: userID}), nil
	case PlaceRequestedJoin:
		room, ok := c.rooms[user.State.Room]
		if !ok {
			return Response{}, protocol.ErrNoSuchRoom
		}
		if err := room.cancelJoinRequest(user); err != nil {
			return Response{}, err
		}
		return sends(room.OwnerID, protocol.PlayerLeft{Room: room.ID, User: userID}), nil
	default:
		return emptyResponse(), nil
	}
}

// closeRoom removes a room and returns everyone in it to nowhere. Each
// member and pending joiner gets one RoomClosed message; the owner is
// the caller and gets nothing.
func (c *Core) closeRoom(roomID protocol.RoomID) (Response, error) {
	room, ok := c.rooms[roomID]
	if !ok {
		return Response{}, protocol.ErrNoSuchRoom
	}
	delete(c.rooms, roomID)
	c.dropRoomOrder(roomID)

	if owner, ok := c.users[room.OwnerID]; ok {
		owner.State = Nowhere()
	}

	var msgs []Addressed
	occupants := append(append([]protocol.UserID{}, room.Members...), room.JoinRequests...)
	for _, id := range occupants {
		u, ok := c.users[id]
		if !ok {
			return Response{}, protocol.ErrNoSuchUser
		}
		u.State = Nowhere()
		msgs = append(msgs, Addressed{To: id, Msg: protocol.RoomClosed{Room: roomID}})
	}
	return sendsAll(msgs), nil
}

func (c *Core) dropRoomOrder(roomID protocol.RoomID) {
	for i, id := range c.roomOrder {
		if id == roomID {
			c.roomOrder = append(c.roomOrder[:i], c.roomOrder[i+1:]...)
			return
		}
	}
}

// HandleRequest runs one request against the core. Protocol failures
// never escape: they come back as an ERROR return inside the Response.
func (c *Core) HandleRequest(userID protocol.UserID, req protocol.Request) Response {
	switch r := req.(type) {
	case protocol.ListRooms:
		return c.listRooms()
	case protocol.Ping:
		return returns(protocol.Pong{Seq: r.Seq})
	case protocol.CreateRoom:
		return asResponse(c.createRoom(userID, r.Data))
	case protocol.AskJoinRoom:
		return asResponse(c.askJoin(userID, r.Room, r.Msg))
	case protocol.AcceptJoinRoom:
		return asResponse(c.acceptJoin(userID, r.Room, r.User))
	case protocol.RejectJoinRoom:
		return asResponse(c.rejectJoin(userID, r.Room, r.User, r.Reason))
	case protocol.LeaveRoom:
		return asResponse(c.leaveRoom(userID, r.Room))
	case protocol.Send:
		return asResponse(c.send(userID, r.Room, r.Payload))
	case protocol.SendTo:
		return asResponse(c.sendTo(userID, r.Room, r.User, r.Payload))
	case protocol.EchoFrom:
		return asResponse(c.echoFrom(userID, r.Room, r.From, r.Payload))
	default:
		// Quit is consumed by the session; SetOwner is recognised on
		// the wire but deliberately unhandled.
		return emptyResponse()
	}
}

func (c *Core) user(userID protocol.UserID) (*User, error) {
	u, ok := c.users[userID]
	if !ok {
		return nil, protocol.ErrNoSuchUser
	}
	return u, nil
}

func (c *Core) room(roomID protocol.RoomID) (*Room, error) {
	r, ok := c.rooms[roomID]
	if !ok {
		return nil, protocol.ErrNoSuchRoom
	}
	return r, nil
}

func (c *Core) userAndRoom(userID protocol.UserID, roomID protocol.RoomID) (*User, *Room, error) {
	u, err := c.user(userID)
	if err != nil {
		return nil, nil, err
	}
	r, err := c.room(roomID)
	if err != nil {
		return nil, nil, err
	}
	return u, r, nil
}

func (c *Core) listRooms() Response {
	summaries := make([]protocol.RoomSummary, 0, len(c.rooms))
	for _, id := range c.roomOrder {
		room := c.rooms[id]
		summaries = append(summaries, protocol.RoomSummary{ID: room.ID, Data: room.Data})
	}
	return returns(protocol.RoomList{Rooms: summaries})
}

func (c *Core) createRoom(userID protocol.UserID, data string) (Response, error) {
	user, err := c.user(userID)
	if err != nil {
		return Response{}, err
	}
	if err := user.expectNowhere(); err != nil {
		return Response{}, err
	}
	roomID := c.nextRoomID()
	c.rooms[roomID] = newRoom(roomID, userID, data)
	c.roomOrder = append(c.roomOrder, roomID)
	c.lastRoomID = roomID
	user.State = UserState{Place: PlaceRoomOwner, Room: roomID}
	return returns(protocol.RoomCreated{Room: roomID}), nil
}

func (c *Core) askJoin(userID protocol.UserID, roomID protocol.RoomID, msg string) (Response, error) {
	user, room, err := c.userAndRoom(userID, roomID)
	if err != nil {
		return Response{}, err
	}
	if err := room.addJoinRequest(user); err != nil {
		return Response{}, err
	}
	return sends(room.OwnerID, protocol.JoinRequested{Room: roomID, User: userID, Msg: msg}), nil
}

func (c *Core) acceptJoin(userID protocol.UserID, roomID protocol.RoomID, otherID protocol.UserID) (Response, error) {
	other, room, err := c.userAndRoom(otherID, roomID)
	if err != nil {
		return Response{}, err
	}
	if err := room.expectOwner(userID); err != nil {
		return Response{}, err
	}
	if err := room.acceptJoinRequest(other); err != nil {
		return Response{}, err
	}
	return sends(otherID, protocol.RoomJoined{Room: roomID}), nil
}

func (c *Core) rejectJoin(userID protocol.UserID, roomID protocol.RoomID, otherID protocol.UserID, reason string) (Response, error) {
	other, room, err := c.userAndRoom(otherID, roomID)
	if err != nil {
		return Response{}, err
	}
	if err := room.expectOwner(userID); err != nil {
		return Response{}, err
	}
	if err := room.cancelJoinRequest(other); err != nil {
		return Response{}, err
	}
	return sends(otherID, protocol.RoomRejected{Room: roomID, Reason: reason}), nil
}

func (c *Core) leaveRoom(userID protocol.UserID, roomID protocol.RoomID) (Response, error) {
	user, room, err := c.userAndRoom(userID, roomID)
	if err != nil {
		return Response{}, err
	}
	if room.OwnerID == userID {
		return c.closeRoom(roomID)
	}
	if err := user.leave(room); err != nil {
		return Response{}, err
	}
	return sends(room.OwnerID, protocol.PlayerLeft{Room: roomID, User: userID}), nil
}

func (c *Core) send(fromID protocol.UserID, roomID protocol.RoomID, payload string) (Response, error) {
	room, err := c.room(roomID)
	if err != nil {
		return Response{}, err
	}
	if fromID == room.OwnerID {
		msgs := make([]Addressed, 0, len(room.Members))
		for _, member := range room.Members {
			msgs = append(msgs, Addressed{
				To:  member,
				Msg: protocol.ReceivedBroadcast{Room: roomID, Payload: payload},
			})
		}
		return sendsAll(msgs), nil
	}
	return sends(room.OwnerID, protocol.ReceivedFrom{Room: roomID, User: fromID, Payload: payload}), nil
}

func (c *Core) sendTo(fromID protocol.UserID, roomID protocol.RoomID, toID protocol.UserID, payload string) (Response, error) {
	room, err := c.room(roomID)
	if err != nil {
		return Response{}, err
	}
	if err := room.expectOwner(fromID); err != nil {
		return Response{}, err
	}
	if err := room.expectMember(toID); err != nil {
		return Response{}, err
	}
	return sends(toID, protocol.ReceivedIndividual{Room: roomID, Payload: payload}), nil
}

func (c *Core) echoFrom(userID protocol.UserID, roomID protocol.RoomID, fromID protocol.UserID, payload string) (Response, error) {
	room, err := c.room(roomID)
	if err != nil {
		return Response{}, err
	}
	if err := room.expectOwner(userID); err != nil {
		return Response{}, err
	}
	if err := room.expectMember(fromID); err != nil {
		return Response{}, err
	}
	msgs := make([]Addressed, 0, len(room.Members))
	for _, member := range room.Members {
		if member == fromID {
			continue
		}
		msgs = append(msgs, Addressed{
			To:  member,
			Msg: protocol.ReceivedBroadcast{Room: roomID, Payload: payload},
		})
	}
	return sendsAll(msgs), nil
}
