package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"github.com/mahaj/chatter-box/pkg/archive"
	"github.com/mahaj/chatter-box/pkg/auth"
	"github.com/mahaj/chatter-box/pkg/media"
	"github.com/mahaj/chatter-box/pkg/model"
	"github.com/mahaj/chatter-box/pkg/snowflake"
	"github.com/mahaj/chatter-box/pkg/store"
)

// 1x1 transparent PNG.
const pixelPNG = "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNkYAAAAAYAAjCB0C8AAAAASUVORK5CYII="

type typingCall struct {
	from, to string
	isTyping bool
}

type fakeNotifier struct {
	mu      sync.Mutex
	direct  []*model.Message
	room    []*model.Message
	rooms   []*model.Room
	typing  []typingCall
	dropped []string
	online  []string
}

func (f *fakeNotifier) DeliverDirect(msg *model.Message) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.direct = append(f.direct, msg)
	return 1
}

func (f *fakeNotifier) DeliverRoom(room *model.Room, msg *model.Message) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rooms = append(f.rooms, room)
	f.room = append(f.room, msg)
	return len(room.Members) - 1
}

func (f *fakeNotifier) RelayTyping(from, to string, isTyping bool) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.typing = append(f.typing, typingCall{from, to, isTyping})
	return 1
}

func (f *fakeNotifier) OnlineUserIDs() []string { return f.online }

func (f *fakeNotifier) DropRoom(roomID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dropped = append(f.dropped, roomID)
	return 0
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []*model.Message
}

func (p *fakePublisher) Publish(_ context.Context, msg *model.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

type testEnv struct {
	handler   http.Handler
	notifier  *fakeNotifier
	publisher *fakePublisher
}

func newTestEnv(t *testing.T, opts ...func(*Deps)) *testEnv {
	t.Helper()

	db, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close(db) })

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	uploader, err := media.NewLocalUploader(t.TempDir(), "http://localhost:3000/uploads", 1<<20)
	require.NoError(t, err)

	env := &testEnv{notifier: &fakeNotifier{}, publisher: &fakePublisher{}}
	deps := Deps{
		Users:     store.NewUserRepository(db),
		Rooms:     store.NewRoomRepository(db),
		Messages:  store.NewMessageRepository(db, node),
		Tokens:    auth.NewJWTManager("test-secret", time.Hour),
		Passwords: auth.NewPasswordHasher(bcrypt.MinCost),
		Notifier:  env.notifier,
		Publisher: env.publisher,
		Uploader:  uploader,
		Log:       zaptest.NewLogger(t),
	}
	for _, opt := range opts {
		opt(&deps)
	}
	env.handler = NewServer(deps).Handler()
	return env
}

// do sends a request and decodes the JSON response.
func (e *testEnv) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec.Code, out
}

type account struct {
	id    string
	token string
}

func (e *testEnv) signup(t *testing.T, name string) account {
	t.Helper()
	status, body := e.do(t, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"fullName": name,
		"email":    name + "@example.com",
		"password": "password123",
	})
	require.Equal(t, http.StatusCreated, status, body)
	user := body["userData"].(map[string]any)
	return account{id: user["_id"].(string), token: body["token"].(string)}
}

func TestAuth(t *testing.T) {
	env := newTestEnv(t)
	alice := env.signup(t, "alice")

	t.Run("signup validation", func(t *testing.T) {
		status, body := env.do(t, http.MethodPost, "/api/auth/signup", "", map[string]string{
			"fullName": "Alice Again", "email": "ALICE@example.com ", "password": "password123",
		})
		assert.Equal(t, http.StatusConflict, status)
		assert.Equal(t, false, body["success"])

		status, _ = env.do(t, http.MethodPost, "/api/auth/signup", "", map[string]string{"email": "x@example.com"})
		assert.Equal(t, http.StatusBadRequest, status)

		status, body = env.do(t, http.MethodPost, "/api/auth/signup", "", map[string]string{
			"fullName": "Shorty", "email": "s@example.com", "password": "abc",
		})
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Contains(t, body["message"], "at least 6")
	})

	t.Run("login", func(t *testing.T) {
		status, body := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
			"email": "alice@example.com", "password": "wrong-password",
		})
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "Invalid credentials", body["message"])

		status, body = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
			"email": "nobody@example.com", "password": "password123",
		})
		assert.Equal(t, http.StatusBadRequest, status)

		status, body = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
			"email": "alice@example.com", "password": "password123",
		})
		require.Equal(t, http.StatusOK, status)
		assert.NotEmpty(t, body["token"])
		user := body["userData"].(map[string]any)
		assert.Equal(t, alice.id, user["_id"])
		assert.NotContains(t, user, "passwordHash")
	})

	t.Run("check", func(t *testing.T) {
		status, body := env.do(t, http.MethodGet, "/api/auth/check", alice.token, nil)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "alice", body["user"].(map[string]any)["fullName"])

		status, _ = env.do(t, http.MethodGet, "/api/auth/check", "", nil)
		assert.Equal(t, http.StatusUnauthorized, status)

		status, _ = env.do(t, http.MethodGet, "/api/auth/check", "not-a-jwt", nil)
		assert.Equal(t, http.StatusUnauthorized, status)
	})

	t.Run("token header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/auth/check", nil)
		req.Header.Set("token", alice.token)
		rec := httptest.NewRecorder()
		env.handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("update profile", func(t *testing.T) {
		status, body := env.do(t, http.MethodPut, "/api/auth/update-profile", alice.token, map[string]string{
			"bio": "hello there", "profilePic": pixelPNG,
		})
		require.Equal(t, http.StatusOK, status, body)
		user := body["user"].(map[string]any)
		assert.Equal(t, "hello there", user["bio"])
		assert.True(t, strings.HasPrefix(user["profilePic"].(string), "http://localhost:3000/uploads/"))
		assert.Equal(t, "alice", user["fullName"])

		status, _ = env.do(t, http.MethodPut, "/api/auth/update-profile", alice.token, map[string]string{
			"profilePic": "data:text/plain;base64,aGVsbG8gd29ybGQ=",
		})
		assert.Equal(t, http.StatusBadRequest, status)
	})
}

func TestDirectMessages(t *testing.T) {
	env := newTestEnv(t)
	alice := env.signup(t, "alice")
	bob := env.signup(t, "bob")

	status, body := env.do(t, http.MethodPost, "/api/messages/send/"+bob.id, alice.token, map[string]string{"text": "hi bob"})
	require.Equal(t, http.StatusCreated, status, body)
	sent := body["newMessage"].(map[string]any)
	assert.Equal(t, "hi bob", sent["text"])
	assert.Equal(t, alice.id, sent["senderId"])

	require.Len(t, env.notifier.direct, 1)
	assert.Equal(t, bob.id, env.notifier.direct[0].ReceiverID)
	require.Len(t, env.publisher.msgs, 1)
	assert.Equal(t, env.notifier.direct[0].ID, env.publisher.msgs[0].ID)

	t.Run("rejects", func(t *testing.T) {
		status, _ := env.do(t, http.MethodPost, "/api/messages/send/nobody", alice.token, map[string]string{"text": "x"})
		assert.Equal(t, http.StatusNotFound, status)

		status, _ = env.do(t, http.MethodPost, "/api/messages/send/"+bob.id, alice.token, map[string]string{"text": "  "})
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Len(t, env.notifier.direct, 1)
	})

	t.Run("unseen counts and history", func(t *testing.T) {
		status, body := env.do(t, http.MethodGet, "/api/messages/users", bob.token, nil)
		require.Equal(t, http.StatusOK, status)
		assert.Len(t, body["users"], 1)
		assert.Equal(t, map[string]any{alice.id: float64(1)}, body["unseenMessages"])

		status, body = env.do(t, http.MethodGet, "/api/messages/"+alice.id, bob.token, nil)
		require.Equal(t, http.StatusOK, status)
		msgs := body["messages"].([]any)
		require.Len(t, msgs, 1)
		assert.Equal(t, "hi bob", msgs[0].(map[string]any)["text"])

		_, body = env.do(t, http.MethodGet, "/api/messages/users", bob.token, nil)
		assert.Empty(t, body["unseenMessages"])
	})

	t.Run("image message", func(t *testing.T) {
		status, body := env.do(t, http.MethodPost, "/api/messages/send/"+alice.id, bob.token, map[string]string{"image": pixelPNG})
		require.Equal(t, http.StatusCreated, status, body)
		assert.Contains(t, body["newMessage"].(map[string]any)["image"], "/uploads/")
	})

	t.Run("mark seen", func(t *testing.T) {
		_, body := env.do(t, http.MethodPost, "/api/messages/send/"+bob.id, alice.token, map[string]string{"text": "again"})
		id := body["newMessage"].(map[string]any)["_id"].(string)

		status, _ := env.do(t, http.MethodPut, "/api/messages/mark/"+id, alice.token, nil)
		assert.Equal(t, http.StatusNotFound, status, "only the receiver may mark")

		status, _ = env.do(t, http.MethodPut, "/api/messages/mark/"+id, bob.token, nil)
		assert.Equal(t, http.StatusOK, status)

		status, _ = env.do(t, http.MethodPut, "/api/messages/mark/abc", bob.token, nil)
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("typing", func(t *testing.T) {
		status, body := env.do(t, http.MethodPost, "/api/messages/typing/"+bob.id, alice.token, map[string]bool{"isTyping": true})
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, float64(1), body["delivered"])
		assert.Equal(t, []typingCall{{alice.id, bob.id, true}}, env.notifier.typing)
	})
}

func TestRooms(t *testing.T) {
	env := newTestEnv(t)
	alice := env.signup(t, "alice")
	bob := env.signup(t, "bob")
	carol := env.signup(t, "carol")
	dave := env.signup(t, "dave")

	status, body := env.do(t, http.MethodPost, "/api/rooms/create", alice.token, map[string]any{
		"name": "general", "members": []string{bob.id},
	})
	require.Equal(t, http.StatusCreated, status, body)
	room := body["room"].(map[string]any)
	roomID := room["_id"].(string)
	assert.ElementsMatch(t, []any{alice.id, bob.id}, room["members"])

	t.Run("duplicate name", func(t *testing.T) {
		status, _ := env.do(t, http.MethodPost, "/api/rooms/create", bob.token, map[string]any{"name": "general"})
		assert.Equal(t, http.StatusConflict, status)

		status, _ = env.do(t, http.MethodPost, "/api/rooms/create", bob.token, map[string]any{"name": " "})
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("join is idempotent", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			status, body := env.do(t, http.MethodPost, "/api/rooms/join/"+roomID, carol.token, nil)
			require.Equal(t, http.StatusOK, status)
			assert.Len(t, body["room"].(map[string]any)["members"], 3)
		}
		status, _ := env.do(t, http.MethodPost, "/api/rooms/join/missing", carol.token, nil)
		assert.Equal(t, http.StatusNotFound, status)
	})

	t.Run("listing", func(t *testing.T) {
		_, body := env.do(t, http.MethodGet, "/api/rooms/all", dave.token, nil)
		assert.Len(t, body["rooms"], 1)

		_, body = env.do(t, http.MethodGet, "/api/rooms/getRooms", dave.token, nil)
		assert.Empty(t, body["rooms"])

		_, body = env.do(t, http.MethodGet, "/api/rooms/getRooms", carol.token, nil)
		assert.Len(t, body["rooms"], 1)
	})

	t.Run("members only", func(t *testing.T) {
		status, _ := env.do(t, http.MethodPost, "/api/rooms/"+roomID+"/messages", dave.token, map[string]string{"text": "let me in"})
		assert.Equal(t, http.StatusForbidden, status)

		status, _ = env.do(t, http.MethodGet, "/api/rooms/"+roomID+"/messages", dave.token, nil)
		assert.Equal(t, http.StatusForbidden, status)

		status, _ = env.do(t, http.MethodDelete, "/api/rooms/"+roomID, dave.token, nil)
		assert.Equal(t, http.StatusForbidden, status)
		assert.Empty(t, env.notifier.room)
	})

	t.Run("send and read", func(t *testing.T) {
		status, body := env.do(t, http.MethodPost, "/api/rooms/"+roomID+"/messages", bob.token, map[string]string{"text": "hello room"})
		require.Equal(t, http.StatusCreated, status, body)
		require.Len(t, env.notifier.room, 1)
		assert.Equal(t, roomID, env.notifier.room[0].RoomID)
		assert.ElementsMatch(t, []string{alice.id, bob.id, carol.id}, env.notifier.rooms[0].Members)
		assert.Len(t, env.publisher.msgs, 1)

		status, body = env.do(t, http.MethodGet, "/api/rooms/"+roomID+"/messages", carol.token, nil)
		require.Equal(t, http.StatusOK, status)
		assert.Len(t, body["messages"], 1)
	})

	t.Run("delete", func(t *testing.T) {
		status, _ := env.do(t, http.MethodDelete, "/api/rooms/"+roomID, carol.token, nil)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, []string{roomID}, env.notifier.dropped)

		status, _ = env.do(t, http.MethodGet, "/api/rooms/"+roomID+"/messages", carol.token, nil)
		assert.Equal(t, http.StatusNotFound, status)
	})
}

func TestPresenceAndHealth(t *testing.T) {
	env := newTestEnv(t)
	env.notifier.online = []string{"a", "b"}
	alice := env.signup(t, "alice")

	status, body := env.do(t, http.MethodGet, "/api/presence", alice.token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []any{"a", "b"}, body["onlineUsers"])

	status, body = env.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
}

func TestCORS(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) { d.CORSOrigins = []string{"http://localhost:5173"} })

	req := httptest.NewRequest(http.MethodOptions, "/api/auth/login", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "token")

	req = httptest.NewRequest(http.MethodOptions, "/api/auth/login", nil)
	req.Header.Set("Origin", "http://evil.test")
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

type fakeArchive struct {
	channel string
	limit   int
	reset   [2]string
}

func (f *fakeArchive) History(_ context.Context, channelID string, limit int) ([]model.Message, error) {
	f.channel, f.limit = channelID, limit
	return []model.Message{{ID: 1, Text: "old"}}, nil
}

func (f *fakeArchive) Conversations(_ context.Context, userID string) ([]archive.Conversation, error) {
	return []archive.Conversation{{UserID: userID, OtherUserID: "zed", UnreadCount: 3}}, nil
}

func (f *fakeArchive) ResetUnread(_ context.Context, userID, otherUserID string) error {
	f.reset = [2]string{userID, otherUserID}
	return nil
}

func TestArchiveRoutes(t *testing.T) {
	t.Run("not served without archive", func(t *testing.T) {
		env := newTestEnv(t)
		alice := env.signup(t, "alice")
		req := httptest.NewRequest(http.MethodGet, "/api/archive/conversations", nil)
		req.Header.Set("Authorization", "Bearer "+alice.token)
		rec := httptest.NewRecorder()
		env.handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	arch := &fakeArchive{}
	env := newTestEnv(t, func(d *Deps) { d.Archive = arch })
	alice := env.signup(t, "alice")

	status, body := env.do(t, http.MethodGet, "/api/archive/conversations", alice.token, nil)
	require.Equal(t, http.StatusOK, status)
	conv := body["conversations"].([]any)[0].(map[string]any)
	assert.Equal(t, float64(3), conv["unreadCount"])

	status, _ = env.do(t, http.MethodPut, "/api/archive/conversations/zed/read", alice.token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, [2]string{alice.id, "zed"}, arch.reset)

	status, body = env.do(t, http.MethodGet, "/api/archive/history/zed?limit=5", alice.token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["messages"], 1)
	assert.Equal(t, 5, arch.limit)
	assert.Equal(t, (&model.Message{SenderID: alice.id, ReceiverID: "zed"}).ChannelID(), arch.channel)

	status, _ = env.do(t, http.MethodGet, "/api/archive/history/zed?limit=-1", alice.token, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}
