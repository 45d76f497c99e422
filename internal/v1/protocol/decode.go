package protocol

import (
	"strconv"
	"strings"
)

// fieldScanner consumes the '|'-separated fields of one frame in order.
type fieldScanner struct {
	parts []string
	pos   int
}

func scan(line string) *fieldScanner {
	return &fieldScanner{parts: strings.Split(line, "|")}
}

func (s *fieldScanner) str() (string, bool) {
	if s.pos >= len(s.parts) {
		return "", false
	}
	v := s.parts[s.pos]
	s.pos++
	return v, true
}

func (s *fieldScanner) u32() (uint32, bool) {
	raw, ok := s.str()
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(v), true
}

// exhausted reports whether every field has been consumed. A frame
// with fields left over after its declared arity is invalid.
func (s *fieldScanner) exhausted() bool {
	return s.pos == len(s.parts)
}

// Decode parses one inbound line into a Request.
//
// A line is invalid if the verb is unknown, an integer field is not a
// non-negative 32-bit decimal, a required field is missing, or extra
// fields remain after the declared arity. Invalid lines yield
// ErrInvalidRequest and must not reach the state core.
func Decode(line string) (Request, error) {
	s := scan(line)
	verb, ok := s.str()
	if !ok {
		return nil, ErrInvalidRequest
	}

	switch verb {
	case "LIST_OPEN_GAMES":
		return done(s, ListRooms{})

	case "PING":
		seq, ok := s.u32()
		if !ok {
			return nil, ErrInvalidRequest
		}
		return done(s, Ping{Seq: seq})

	case "CREATE_GAME":
		data, ok := s.str()
		if !ok {
			return nil, ErrInvalidRequest
		}
		return done(s, CreateRoom{Data: data})

	case "SET_OWNER":
		room, ok := s.u32()
		if !ok {
			return nil, ErrInvalidRequest
		}
		user, ok := s.u32()
		if !ok {
			return nil, ErrInvalidRequest
		}
		return done(s, SetOwner{Room: RoomID(room), User: UserID(user)})

	case "JOIN_GAME":
		room, ok := s.u32()
		if !ok {
			return nil, ErrInvalidRequest
		}
		msg, ok := s.str()
		if !ok {
			return nil, ErrInvalidRequest
		}
		return done(s, AskJoinRoom{Room: RoomID(room), Msg: msg})

	case "LEAVE_GAME":
		room, ok := s.u32()
		if !ok {
			return nil, ErrInvalidRequest
		}
		return done(s, LeaveRoom{Room: RoomID(room)})

	case "ACCEPT_JOIN":
		room, ok := s.u32()
		if !ok {
			return nil, ErrInvalidRequest
		}
		user, ok := s.u32()
		if !ok {
			return nil, ErrInvalidRequest
		}
		return done(s, AcceptJoinRoom{Room: RoomID(room), User: UserID(user)})

	case "REJECT_JOIN":
		room, ok := s.u32()
		if !ok {
			return nil, ErrInvalidRequest
		}
		user, ok := s.u32()
		if !ok {
			return nil, ErrInvalidRequest
		}
		reason, ok := s.str()
		if !ok {
			return nil, ErrInvalidRequest
		}
		return done(s, RejectJoinRoom{Room: RoomID(room), User: UserID(user), Reason: reason})

	case "SEND":
		room, ok := s.u32()
		if !ok {
			return nil, ErrInvalidRequest
		}
		payload, ok := s.str()
		if !ok {
			return nil, ErrInvalidRequest
		}
		return done(s, Send{Room: RoomID(room), Payload: payload})

	case "SEND_TO":
		room, ok := s.u32()
		if !ok {
			return nil, ErrInvalidRequest
		}
		user, ok := s.u32()
		if !ok {
			return nil, ErrInvalidRequest
		}
		payload, ok := s.str()
		if !ok {
			return nil, ErrInvalidRequest
		}
		return done(s, SendTo{Room: RoomID(room), User: UserID(user), Payload: payload})

	case "ECHO_FROM":
		room, ok := s.u32()
		if !ok {
			return nil, ErrInvalidRequest
		}
		from, ok := s.u32()
		if !ok {
			return nil, ErrInvalidRequest
		}
		payload, ok := s.str()
		if !ok {
			return nil, ErrInvalidRequest
		}
		return done(s, EchoFrom{Room: RoomID(room), From: UserID(from), Payload: payload})

	case "QUIT":
		return done(s, Quit{})

	default:
		return nil, ErrInvalidRequest
	}
}

func done(s *fieldScanner, r Request) (Request, error) {
	if !s.exhausted() {
		return nil, ErrInvalidRequest
	}
	return r, nil
}
