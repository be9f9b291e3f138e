// Package api serves the REST surface: accounts, direct messages, rooms and
// presence. Handlers persist first and then hand the stored objects to the
// realtime layer through Notifier.
package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/mahaj/chatter-box/pkg/archive"
	"github.com/mahaj/chatter-box/pkg/auth"
	"github.com/mahaj/chatter-box/pkg/events"
	"github.com/mahaj/chatter-box/pkg/media"
	"github.com/mahaj/chatter-box/pkg/model"
	"github.com/mahaj/chatter-box/pkg/store"
)

// Notifier pushes persisted state to live connections. *realtime.Hub
// satisfies it.
type Notifier interface {
	DeliverDirect(msg *model.Message) int
	DeliverRoom(room *model.Room, msg *model.Message) int
	RelayTyping(from, to string, isTyping bool) int
	OnlineUserIDs() []string
	DropRoom(roomID string) int
}

type TokenManager interface {
	GenerateToken(userID string) (string, error)
	ValidateToken(token string) (*auth.Claims, error)
}

// ArchiveReader reads the Scylla message archive. *archive.Reader satisfies it.
type ArchiveReader interface {
	History(ctx context.Context, channelID string, limit int) ([]model.Message, error)
	Conversations(ctx context.Context, userID string) ([]archive.Conversation, error)
	ResetUnread(ctx context.Context, userID, otherUserID string) error
}

type Deps struct {
	Users     *store.UserRepository
	Rooms     *store.RoomRepository
	Messages  *store.MessageRepository
	Tokens    TokenManager
	Passwords *auth.PasswordHasher
	Notifier  Notifier
	Publisher events.Publisher
	Uploader  media.Uploader
	// Archive is optional; the archive routes are only served when set.
	Archive ArchiveReader
	Log     *zap.Logger

	CORSOrigins  []string
	MaxBodyBytes int64
}

type Server struct {
	Deps
}

func NewServer(d Deps) *Server {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Publisher == nil {
		d.Publisher = events.NopPublisher{}
	}
	if d.Passwords == nil {
		d.Passwords = auth.NewPasswordHasher(0)
	}
	if d.MaxBodyBytes <= 0 {
		d.MaxBodyBytes = 16 << 20
	}
	return &Server{Deps: d}
}

// Router returns a router carrying the API routes and /health. Callers may
// add more routes before wrapping it with Middleware.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.health).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/auth/signup", s.signup).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", s.login).Methods(http.MethodPost)

	protected := api.NewRoute().Subrouter()
	protected.Use(s.requireAuth)

	protected.HandleFunc("/auth/check", s.checkAuth).Methods(http.MethodGet)
	protected.HandleFunc("/auth/update-profile", s.updateProfile).Methods(http.MethodPut)

	protected.HandleFunc("/messages/users", s.listUsers).Methods(http.MethodGet)
	protected.HandleFunc("/messages/send/{id}", s.sendDirect).Methods(http.MethodPost)
	protected.HandleFunc("/messages/mark/{id}", s.markSeen).Methods(http.MethodPut)
	protected.HandleFunc("/messages/typing/{id}", s.typing).Methods(http.MethodPost)
	protected.HandleFunc("/messages/{id}", s.conversation).Methods(http.MethodGet)

	protected.HandleFunc("/rooms/create", s.createRoom).Methods(http.MethodPost)
	protected.HandleFunc("/rooms/all", s.listRooms).Methods(http.MethodGet)
	protected.HandleFunc("/rooms/getRooms", s.myRooms).Methods(http.MethodGet)
	protected.HandleFunc("/rooms/join/{roomId}", s.joinRoom).Methods(http.MethodPost)
	protected.HandleFunc("/rooms/{roomId}/messages", s.roomHistory).Methods(http.MethodGet)
	protected.HandleFunc("/rooms/{roomId}/messages", s.sendRoom).Methods(http.MethodPost)
	protected.HandleFunc("/rooms/{roomId}", s.deleteRoom).Methods(http.MethodDelete)

	protected.HandleFunc("/presence", s.presence).Methods(http.MethodGet)

	if s.Archive != nil {
		protected.HandleFunc("/archive/conversations", s.archiveConversations).Methods(http.MethodGet)
		protected.HandleFunc("/archive/conversations/{id}/read", s.archiveRead).Methods(http.MethodPut)
		protected.HandleFunc("/archive/history/{id}", s.archiveHistory).Methods(http.MethodGet)
	}
	return r
}

// Middleware wraps h with panic recovery, request logging and CORS.
func (s *Server) Middleware(h http.Handler) http.Handler {
	return s.recoverer(s.logRequests(cors(s.CORSOrigins, h)))
}

// Handler is Middleware(Router()).
func (s *Server) Handler() http.Handler {
	return s.Middleware(s.Router())
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "status": "ok"})
}

func (s *Server) presence(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"onlineUsers": s.Notifier.OnlineUserIDs(),
	})
}
