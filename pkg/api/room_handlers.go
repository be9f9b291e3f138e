package api

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/mahaj/chatter-box/pkg/model"
)

type createRoomRequest struct {
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

func (s *Server) createRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if !s.decode(w, r, &req) {
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeError(w, http.StatusBadRequest, "Room name is required")
		return
	}

	me := currentUser(r)
	room := &model.Room{ID: uuid.NewString(), Name: name}
	if err := s.Rooms.Create(r.Context(), room, append([]string{me}, req.Members...)); err != nil {
		s.fail(w, r, err)
		return
	}
	s.Log.Info("room_created", zap.String("room_id", room.ID), zap.String("by", me))
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "room": room})
}

func (s *Server) listRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := s.Rooms.List(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "rooms": rooms})
}

func (s *Server) myRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := s.Rooms.ListForMember(r.Context(), currentUser(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "rooms": rooms})
}

func (s *Server) joinRoom(w http.ResponseWriter, r *http.Request) {
	room, err := s.Rooms.AddMember(r.Context(), mux.Vars(r)["roomId"], currentUser(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "room": room})
}

// memberRoom loads the room in the path and checks the caller belongs to it.
func (s *Server) memberRoom(w http.ResponseWriter, r *http.Request) (*model.Room, bool) {
	room, err := s.Rooms.FindByID(r.Context(), mux.Vars(r)["roomId"])
	if err != nil {
		s.fail(w, r, err)
		return nil, false
	}
	if !room.HasMember(currentUser(r)) {
		writeError(w, http.StatusForbidden, "You are not a member of this room")
		return nil, false
	}
	return room, true
}

func (s *Server) roomHistory(w http.ResponseWriter, r *http.Request) {
	room, ok := s.memberRoom(w, r)
	if !ok {
		return
	}
	msgs, err := s.Messages.RoomHistory(r.Context(), room.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "messages": msgs})
}

func (s *Server) sendRoom(w http.ResponseWriter, r *http.Request) {
	room, ok := s.memberRoom(w, r)
	if !ok {
		return
	}

	msg := &model.Message{SenderID: currentUser(r), RoomID: room.ID}
	if !s.buildMessage(w, r, msg) {
		return
	}
	if err := s.Messages.Create(r.Context(), msg); err != nil {
		s.fail(w, r, err)
		return
	}

	s.publish(r, msg)
	delivered := s.Notifier.DeliverRoom(room, msg)
	s.Log.Debug("room_message_sent",
		zap.Int64("message_id", msg.ID),
		zap.String("room_id", room.ID),
		zap.Int("delivered", delivered),
	)
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "newMessage": msg})
}

func (s *Server) deleteRoom(w http.ResponseWriter, r *http.Request) {
	room, ok := s.memberRoom(w, r)
	if !ok {
		return
	}
	if err := s.Rooms.Delete(r.Context(), room.ID); err != nil {
		s.fail(w, r, err)
		return
	}
	s.Notifier.DropRoom(room.ID)
	s.Log.Info("room_deleted", zap.String("room_id", room.ID), zap.String("by", currentUser(r)))
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Room deleted"})
}
