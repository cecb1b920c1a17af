package websocket

import (
	"fmt"

	"github.com/google/uuid"
)

type socketMessageType int

const (
	Update socketMessageType = iota
	Command
	Response
	ErrorResponse
	Welcome
)

// SocketMessage is a struct that allows us to define the
// command that has been passed through the web socket.
// The Id field can be used when replying to this message
// so the receiving client is aware of which message this reply
// is for. Origin is much for the same - it allows us to
// send the reply to the websocket attached to the client
// with the matching UUID
type SocketMessage struct {
	Title  string                 `json:"title"`
	Body   map[string]interface{} `json:"arguments"`
	Id     int                    `json:"id"`
	Type   socketMessageType      `json:"type"`
	Origin *uuid.UUID             `json:"-"`
	Target *uuid.UUID             `json:"-"`
}

var argumentCheckers = map[string]func(v interface{}) bool{
	"number": isNumber,
	"int":    isNumber,
	"string": func(v interface{}) bool { return fmt.Sprintf("%v", v) != "" },
	"uuid": func(v interface{}) bool {
		str, ok := v.(string)
		if !ok {
			return false
		}

		_, err := uuid.Parse(str)
		return err == nil
	},
}

// JSON decoding produces float64 for every number.
func isNumber(v interface{}) bool {
	_, ok := v.(float64)
	return ok
}

// ValidateArguments checks that each of the keys in required is present in
// the body of the message, and that the value matches the named type
// (one of "number"/"int", "string" or "uuid").
func (message *SocketMessage) ValidateArguments(required map[string]string) error {
	for key, kind := range required {
		v, ok := message.Body[key]
		if !ok {
			return fmt.Errorf("failed to validate argument '%v': key is missing", key)
		}

		check, ok := argumentCheckers[kind]
		if !ok {
			return fmt.Errorf("failed to validate argument '%v': unknown type '%v'", key, kind)
		} else if !check(v) {
			return fmt.Errorf("failed to validate argument '%v': expected %v, got %#v", key, kind, v)
		}
	}

	return nil
}

// FormReply is a method on a SocketMessage that will
// return a NEW message that has the same origin/id as
// the original message, but with a new (caller provided) title,
// type, and arguments.
func (message *SocketMessage) FormReply(replyTitle string, replyBody map[string]interface{}, replyType socketMessageType) *SocketMessage {
	if replyBody != nil {
		replyBody["command"] = message.Body
	}

	return &SocketMessage{
		Title:  replyTitle,
		Body:   replyBody,
		Type:   replyType,
		Id:     message.Id,
		Target: message.Origin,
	}
}

func (t socketMessageType) String() string {
	switch t {
	case Update:
		return "UPDATE"
	case Command:
		return "COMMAND"
	case Response:
		return "RESPONSE"
	case ErrorResponse:
		return "ERROR_RESPONSE"
	case Welcome:
		return "WELCOME"
	default:
		return fmt.Sprintf("UNKNOWN[%d]", int(t))
	}
}
