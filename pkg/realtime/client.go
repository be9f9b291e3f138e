package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mahaj/chatter-box/pkg/model"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096

	sendBufferSize = 256

	authorizeTimeout = 5 * time.Second
)

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	id          string
	userID      string
	connectedAt time.Time

	hub     *Hub
	conn    *websocket.Conn
	rooms   RoomAuthorizer
	limiter *rate.Limiter
	log     *zap.Logger

	// Buffered channel of outbound frames. It is never closed; done signals
	// shutdown instead so a late Push cannot panic.
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func (c *Client) ID() string             { return c.id }
func (c *Client) UserID() string         { return c.userID }
func (c *Client) ConnectedAt() time.Time { return c.connectedAt }

// Push enqueues ev without blocking. A client whose buffer is full is too
// slow to keep up and gets closed.
func (c *Client) Push(ev model.Event) error {
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrConnClosed
	default:
		_ = c.Close()
		return ErrSendBufferFull
	}
}

// Close asks the pumps to stop. The write pump sends a close frame and
// releases the socket.
func (c *Client) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}

// readPump pumps frames from the websocket connection to the hub.
func (c *Client) readPump() {
	defer func() {
		c.hub.Disconnect(c)
		_ = c.Close()
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn("ws_read_failed", zap.String("conn_id", c.id), zap.Error(err))
			}
			return
		}

		if !c.limiter.Allow() {
			c.replyError("rate limit exceeded")
			continue
		}

		var frame model.InboundFrame
		if err := json.Unmarshal(message, &frame); err != nil {
			c.replyError("malformed frame")
			continue
		}
		c.handle(frame)
	}
}

func (c *Client) handle(frame model.InboundFrame) {
	switch frame.Type {
	case model.EventJoinRoom:
		var req model.RoomRequest
		if err := json.Unmarshal(frame.Data, &req); err != nil || req.RoomID == "" {
			c.replyError("roomId is required")
			return
		}
		c.joinRoom(req.RoomID)

	case model.EventLeaveRoom:
		var req model.RoomRequest
		if err := json.Unmarshal(frame.Data, &req); err != nil || req.RoomID == "" {
			c.replyError("roomId is required")
			return
		}
		c.hub.LeaveRoom(c, req.RoomID)
		c.hub.Send(c, model.Event{Type: model.EventLeftRoom, Data: req})

	case model.EventTyping, model.EventStopTyping:
		var req model.TypingRequest
		if err := json.Unmarshal(frame.Data, &req); err != nil || req.To == "" {
			c.replyError("to is required")
			return
		}
		c.hub.RelayTyping(c.userID, req.To, frame.Type == model.EventTyping)

	default:
		c.replyError("unknown event " + string(frame.Type))
	}
}

func (c *Client) joinRoom(roomID string) {
	if c.rooms != nil {
		ctx, cancel := context.WithTimeout(context.Background(), authorizeTimeout)
		ok, err := c.rooms.IsMember(ctx, roomID, c.userID)
		cancel()
		if err != nil {
			c.log.Error("room_authorize_failed",
				zap.String("room_id", roomID),
				zap.String("user_id", c.userID),
				zap.Error(err),
			)
			c.replyError("could not join room")
			return
		}
		if !ok {
			c.replyError("not a member of this room")
			return
		}
	}
	c.hub.JoinRoom(c, roomID)
	c.hub.Send(c, model.Event{Type: model.EventJoinedRoom, Data: model.RoomRequest{RoomID: roomID}})
}

func (c *Client) replyError(msg string) {
	c.hub.Send(c, model.Event{Type: model.EventError, Data: model.ErrorData{Message: msg}})
}

// writePump pumps frames from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				_ = c.Close()
				return
			}
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = c.Close()
				return
			}
		}
	}
}
