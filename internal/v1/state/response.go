package state

import "github.com/kaya3/incognita-socket-server/internal/v1/protocol"

// Addressed is one fan-out message with its recipient.
type Addressed struct {
	To  protocol.UserID
	Msg protocol.Message
}

// Response is the complete output of one request: an optional message
// back to the requester, plus an ordered list of addressed fan-out
// messages. The dispatcher routes both; the core never touches a
// queue.
type Response struct {
	Returns protocol.Message
	Sends   []Addressed
}

func emptyResponse() Response {
	return Response{}
}

func returns(m protocol.Message) Response {
	return Response{Returns: m}
}

func sends(to protocol.UserID, m protocol.Message) Response {
	return Response{Sends: []Addressed{{To: to, Msg: m}}}
}

func sendsAll(msgs []Addressed) Response {
	return Response{Sends: msgs}
}

// asResponse packages a handler result: protocol errors become an
// ERROR return to the requester, never a failure of the call itself.
func asResponse(r Response, err error) Response {
	if err != nil {
		return errorResponse(err)
	}
	return r
}

func errorResponse(err error) Response {
	cause, ok := err.(protocol.Error)
	if !ok {
		cause = protocol.ErrInvalidRequest
	}
	return returns(protocol.ErrorMessage{Cause: cause})
}
