package model

import "encoding/json"

type EventType string

// Server to client.
const (
	EventOnlineUsers    EventType = "getOnlineUsers"
	EventNewMessage     EventType = "newMessage"
	EventNewRoomMessage EventType = "newRoomMessage"
	EventTyping         EventType = "typing"
	EventJoinedRoom     EventType = "joinedRoom"
	EventLeftRoom       EventType = "leftRoom"
	EventError          EventType = "error"
)

// Client to server.
const (
	EventJoinRoom   EventType = "joinRoom"
	EventLeaveRoom  EventType = "leaveRoom"
	EventStopTyping EventType = "stopTyping"
)

// Event is one push frame sent to a live connection.
type Event struct {
	Type EventType `json:"event"`
	Data any       `json:"data,omitempty"`
}

// InboundFrame is a frame read from a client connection. Data is decoded
// according to Type.
type InboundFrame struct {
	Type EventType       `json:"event"`
	Data json.RawMessage `json:"data,omitempty"`
}

type TypingState struct {
	FromUserID string `json:"fromUserId"`
	IsTyping   bool   `json:"isTyping"`
}

// TypingRequest is the data of an inbound typing/stopTyping frame.
type TypingRequest struct {
	To string `json:"to"`
}

// RoomRequest is the data of an inbound joinRoom/leaveRoom frame and of the
// joinedRoom/leftRoom acknowledgements.
type RoomRequest struct {
	RoomID string `json:"roomId"`
}

type ErrorData struct {
	Message string `json:"message"`
}
