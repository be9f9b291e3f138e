package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/mahaj/chatter-box/pkg/model"
)

type sendRequest struct {
	Text  string `json:"text"`
	Image string `json:"image"`
}

type typingRequest struct {
	IsTyping bool `json:"isTyping"`
}

// listUsers returns every other user with the number of unseen direct
// messages each has sent the caller.
func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	me := currentUser(r)
	users, err := s.Users.ListExcept(r.Context(), me)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	unseen, err := s.Messages.UnseenCounts(r.Context(), me)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"users":          users,
		"unseenMessages": unseen,
	})
}

// conversation returns the direct history with the user in the path and
// marks what that user sent the caller as seen.
func (s *Server) conversation(w http.ResponseWriter, r *http.Request) {
	me, other := currentUser(r), mux.Vars(r)["id"]

	if _, err := s.Messages.MarkConversationSeen(r.Context(), other, me); err != nil {
		s.fail(w, r, err)
		return
	}
	msgs, err := s.Messages.Conversation(r.Context(), me, other)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "messages": msgs})
}

// buildMessage validates the body and uploads its image, if any.
func (s *Server) buildMessage(w http.ResponseWriter, r *http.Request, msg *model.Message) bool {
	var req sendRequest
	if !s.decode(w, r, &req) {
		return false
	}
	msg.Text = strings.TrimSpace(req.Text)
	if msg.Text == "" && req.Image == "" {
		writeError(w, http.StatusBadRequest, "Message must have text or an image")
		return false
	}
	if req.Image != "" {
		url, err := s.Uploader.Upload(r.Context(), req.Image)
		if err != nil {
			s.fail(w, r, err)
			return false
		}
		msg.Image = url
	}
	return true
}

// publish streams msg to the archive pipeline. Failures are logged only.
func (s *Server) publish(r *http.Request, msg *model.Message) {
	if err := s.Publisher.Publish(r.Context(), msg); err != nil {
		s.Log.Warn("publish_failed", zap.Int64("message_id", msg.ID), zap.Error(err))
	}
}

func (s *Server) sendDirect(w http.ResponseWriter, r *http.Request) {
	me, to := currentUser(r), mux.Vars(r)["id"]
	if _, err := s.Users.FindByID(r.Context(), to); err != nil {
		s.fail(w, r, err)
		return
	}

	msg := &model.Message{SenderID: me, ReceiverID: to}
	if !s.buildMessage(w, r, msg) {
		return
	}
	if err := s.Messages.Create(r.Context(), msg); err != nil {
		s.fail(w, r, err)
		return
	}

	s.publish(r, msg)
	delivered := s.Notifier.DeliverDirect(msg)
	s.Log.Debug("direct_message_sent",
		zap.Int64("message_id", msg.ID),
		zap.String("to", to),
		zap.Int("delivered", delivered),
	)
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "newMessage": msg})
}

func (s *Server) markSeen(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid message id")
		return
	}
	if err := s.Messages.MarkSeen(r.Context(), id, currentUser(r)); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) typing(w http.ResponseWriter, r *http.Request) {
	var req typingRequest
	if !s.decode(w, r, &req) {
		return
	}
	n := s.Notifier.RelayTyping(currentUser(r), mux.Vars(r)["id"], req.IsTyping)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "delivered": n})
}
