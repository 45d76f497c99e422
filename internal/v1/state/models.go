// Package state implements the session core: a single-owner data
// structure holding every user and room, mutated one request at a
// time by the dispatcher. It performs no I/O and holds no locks; the
// dispatcher's event loop is the serialization point.
package state

import (
	"github.com/kaya3/incognita-socket-server/internal/v1/protocol"
)

// UserPlace says where a user currently is in the room graph.
type UserPlace int

const (
	// PlaceNowhere is the initial state: in no room at all.
	PlaceNowhere UserPlace = iota
	// PlaceRoomOwner means the user owns the room it references.
	PlaceRoomOwner
	// PlaceInRoom means the user is an accepted member.
	PlaceInRoom
	// PlaceRequestedJoin means the user has a pending join request.
	PlaceRequestedJoin
)

// UserState is a user's location: a place, and for every place except
// PlaceNowhere, the room it refers to.
type UserState struct {
	Place UserPlace
	Room  protocol.RoomID
}

// Nowhere is the state of a freshly connected user.
func Nowhere() UserState {
	return UserState{Place: PlaceNowhere}
}

// User is one connected client and its location in the room graph.
type User struct {
	ID    protocol.UserID
	State UserState
}

func newUser(id protocol.UserID) *User {
	return &User{ID: id, State: Nowhere()}
}

// expectNowhere fails when the user is already attached to any room.
func (u *User) expectNowhere() error {
	switch u.State.Place {
	case PlaceRoomOwner, PlaceInRoom:
		return protocol.ErrAlreadyInARoom
	case PlaceRequestedJoin:
		return protocol.ErrAlreadyRequestedJoin
	default:
		return nil
	}
}

// Room is one lobby: an owner, its opaque descriptor, accepted
// members, and pending join requests. Members and joinRequests keep
// insertion order; the two sets are disjoint and never contain the
// owner.
type Room struct {
	ID           protocol.RoomID
	OwnerID      protocol.UserID
	Data         string
	Members      []protocol.UserID
	JoinRequests []protocol.UserID
}

func newRoom(id protocol.RoomID, owner protocol.UserID, data string) *Room {
	return &Room{ID: id, OwnerID: owner, Data: data}
}

// expectOwner fails unless the caller owns this room.
func (r *Room) expectOwner(user protocol.UserID) error {
	if r.OwnerID != user {
		return protocol.ErrNotRoomOwner
	}
	return nil
}

// expectMember fails unless the given user is an accepted member.
func (r *Room) expectMember(user protocol.UserID) error {
	if indexOf(r.Members, user) < 0 {
		return protocol.ErrNoSuchUser
	}
	return nil
}

// addJoinRequest records a pending join for a user that is nowhere.
func (r *Room) addJoinRequest(u *User) error {
	if err := u.expectNowhere(); err != nil {
		return err
	}
	r.JoinRequests = append(r.JoinRequests, u.ID)
	u.State = UserState{Place: PlaceRequestedJoin, Room: r.ID}
	return nil
}

// cancelJoinRequest drops a pending join and returns the user to
// nowhere.
func (r *Room) cancelJoinRequest(u *User) error {
	i := indexOf(r.JoinRequests, u.ID)
	if i < 0 {
		return protocol.ErrNoSuchJoinRequest
	}
	r.JoinRequests = removeAt(r.JoinRequests, i)
	u.State = Nowhere()
	return nil
}

// acceptJoinRequest promotes a pending joiner to member.
func (r *Room) acceptJoinRequest(u *User) error {
	if err := r.cancelJoinRequest(u); err != nil {
		return err
	}
	r.Members = append(r.Members, u.ID)
	u.State = UserState{Place: PlaceInRoom, Room: r.ID}
	return nil
}

// removeMember drops an accepted member from the room.
func (r *Room) removeMember(user protocol.UserID) error {
	if user == r.OwnerID {
		return protocol.ErrIsRoomOwner
	}
	i := indexOf(r.Members, user)
	if i < 0 {
		return protocol.ErrNoSuchUser
	}
	r.Members = removeAt(r.Members, i)
	return nil
}

// leave detaches a non-owner user from this room, whichever collection
// it sits in.
func (u *User) leave(r *Room) error {
	switch u.State.Place {
	case PlaceRoomOwner:
		return protocol.ErrIsRoomOwner
	case PlaceInRoom:
		if u.State.Room != r.ID {
			return protocol.ErrNotInThatRoom
		}
		if err := r.removeMember(u.ID); err != nil {
			return err
		}
		u.State = Nowhere()
		return nil
	case PlaceRequestedJoin:
		if u.State.Room != r.ID {
			return protocol.ErrNotInThatRoom
		}
		return r.cancelJoinRequest(u)
	default:
		return protocol.ErrNotInThatRoom
	}
}

func indexOf(ids []protocol.UserID, id protocol.UserID) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}

func removeAt(ids []protocol.UserID, i int) []protocol.UserID {
	return append(ids[:i], ids[i+1:]...)
}
