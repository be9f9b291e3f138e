package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/mahaj/chatter-box/pkg/model"
)

func (s *Server) archiveConversations(w http.ResponseWriter, r *http.Request) {
	convs, err := s.Archive.Conversations(r.Context(), currentUser(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "conversations": convs})
}

// archiveRead resets the caller's unread counter for the user in the path.
func (s *Server) archiveRead(w http.ResponseWriter, r *http.Request) {
	if err := s.Archive.ResetUnread(r.Context(), currentUser(r), mux.Vars(r)["id"]); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// archiveHistory returns archived direct messages between the caller and the
// user in the path, newest first.
func (s *Server) archiveHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	channel := (&model.Message{SenderID: currentUser(r), ReceiverID: mux.Vars(r)["id"]}).ChannelID()
	msgs, err := s.Archive.History(r.Context(), channel, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "messages": msgs})
}
