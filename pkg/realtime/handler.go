package realtime

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mahaj/chatter-box/pkg/auth"
)

// TokenValidator resolves a bearer token to its claims.
type TokenValidator interface {
	ValidateToken(token string) (*auth.Claims, error)
}

// RoomAuthorizer decides whether a user may subscribe to a room.
type RoomAuthorizer interface {
	IsMember(ctx context.Context, roomID, userID string) (bool, error)
}

type HandlerConfig struct {
	// Rate and Burst bound inbound frames per connection.
	Rate  float64
	Burst int
	// AllowedOrigins lists the accepted Origin headers; empty or "*" accepts all.
	AllowedOrigins []string
}

// Handler upgrades authenticated requests on /ws to push connections.
type Handler struct {
	hub      *Hub
	tokens   TokenValidator
	rooms    RoomAuthorizer
	upgrader websocket.Upgrader
	limit    rate.Limit
	burst    int
	log      *zap.Logger
}

// NewHandler returns the /ws handler. A nil rooms authorizer lets every
// connection join any room.
func NewHandler(hub *Hub, tokens TokenValidator, rooms RoomAuthorizer, cfg HandlerConfig, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Rate <= 0 {
		cfg.Rate = 10
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 20
	}
	return &Handler{
		hub:    hub,
		tokens: tokens,
		rooms:  rooms,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(cfg.AllowedOrigins),
		},
		limit: rate.Limit(cfg.Rate),
		burst: cfg.Burst,
		log:   log,
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[strings.TrimRight(o, "/")] = struct{}{}
	}
	if len(set) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// ServeHTTP authenticates the request before upgrading. Rejected requests
// never reach the registry.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := auth.TokenFromHeader(r.Header)
	if token == "" {
		// Browsers cannot set headers on a websocket handshake.
		token = r.URL.Query().Get("token")
	}
	if token == "" {
		h.log.Info("ws_rejected", zap.String("reason", "missing token"))
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	claims, err := h.tokens.ValidateToken(token)
	if err != nil {
		h.log.Info("ws_rejected", zap.String("reason", "invalid token"), zap.Error(err))
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if want := r.URL.Query().Get("userId"); want != "" && want != claims.UserID {
		h.log.Info("ws_rejected",
			zap.String("reason", "user mismatch"),
			zap.String("user_id", claims.UserID),
			zap.String("requested", want),
		)
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws_upgrade_failed", zap.Error(err))
		return
	}

	client := &Client{
		id:          uuid.NewString(),
		userID:      claims.UserID,
		connectedAt: time.Now(),
		hub:         h.hub,
		conn:        conn,
		rooms:       h.rooms,
		limiter:     rate.NewLimiter(h.limit, h.burst),
		log:         h.log,
		send:        make(chan []byte, sendBufferSize),
		done:        make(chan struct{}),
	}

	go client.writePump()
	h.hub.Connect(client)
	go client.readPump()
}
