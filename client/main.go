// Command client is a terminal chat client: it logs in over REST, holds a
// /ws push connection and sends messages and typing signals.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mahaj/chatter-box/pkg/model"
)

const usage = `commands:
  /users                 list users and unseen counts
  /dm <userId> <text>    send a direct message
  /room <roomId> <text>  send a room message
  /join <roomId>         join a room and subscribe to it
  /leave <roomId>        unsubscribe from a room
  /typing <userId>       signal typing
  /stop <userId>         signal stop typing
  /online                show who is online and typing
  /quit`

type apiClient struct {
	base  string
	token string
	http  *http.Client
}

func (a *apiClient) do(method, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(buf)
	}
	req, err := http.NewRequest(method, a.base+path, r)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: %d %s", method, path, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}

type authResponse struct {
	Token    string     `json:"token"`
	UserData model.User `json:"userData"`
}

// login signs in, creating the account first when name is set.
func (a *apiClient) login(name, email, password string) (*model.User, error) {
	var resp authResponse
	if name != "" {
		err := a.do(http.MethodPost, "/api/auth/signup", map[string]string{
			"fullName": name, "email": email, "password": password,
		}, &resp)
		if err == nil {
			a.token = resp.Token
			return &resp.UserData, nil
		}
		log.Printf("signup failed, trying login: %v", err)
	}
	if err := a.do(http.MethodPost, "/api/auth/login", map[string]string{
		"email": email, "password": password,
	}, &resp); err != nil {
		return nil, err
	}
	a.token = resp.Token
	return &resp.UserData, nil
}

func wsURL(base, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/ws"
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func main() {
	addr := flag.String("addr", "http://localhost:3000", "gateway base URL")
	email := flag.String("email", "", "account email")
	password := flag.String("password", "", "account password")
	name := flag.String("name", "", "full name; signs up when set")
	typingTimeout := flag.Duration("typing-timeout", 5*time.Second, "clear a peer's typing state after this long")
	flag.Parse()

	if *email == "" || *password == "" {
		log.Fatal("-email and -password are required")
	}

	api := &apiClient{base: strings.TrimRight(*addr, "/"), http: &http.Client{Timeout: 10 * time.Second}}
	me, err := api.login(*name, *email, *password)
	if err != nil {
		log.Fatal("login failed: ", err)
	}
	log.Printf("logged in as %s (%s)", me.FullName, me.ID)

	target, err := wsURL(api.base, api.token)
	if err != nil {
		log.Fatal(err)
	}
	c, _, err := websocket.DefaultDialer.Dial(target, nil)
	if err != nil {
		log.Fatal("dial: ", err)
	}
	defer c.Close()

	typing := newTypingTracker(*typingTimeout)
	var (
		onlineMu sync.Mutex
		online   []string
	)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			_, raw, err := c.ReadMessage()
			if err != nil {
				log.Println("read:", err)
				return
			}
			var frame model.InboundFrame
			if err := json.Unmarshal(raw, &frame); err != nil {
				fmt.Printf("\rraw: %s\n> ", raw)
				continue
			}
			switch frame.Type {
			case model.EventOnlineUsers:
				var ids []string
				_ = json.Unmarshal(frame.Data, &ids)
				onlineMu.Lock()
				online = ids
				onlineMu.Unlock()
				fmt.Printf("\ronline: %s\n> ", strings.Join(ids, ", "))
			case model.EventNewMessage, model.EventNewRoomMessage:
				var msg model.Message
				if err := json.Unmarshal(frame.Data, &msg); err != nil {
					continue
				}
				typing.message(msg.SenderID)
				where := "dm"
				if msg.RoomID != "" {
					where = "room " + msg.RoomID
				}
				body := msg.Text
				if msg.Image != "" {
					body = strings.TrimSpace(body + " [image " + msg.Image + "]")
				}
				fmt.Printf("\r[%s] %s: %s\n> ", where, msg.SenderID, body)
			case model.EventTyping:
				var st model.TypingState
				if err := json.Unmarshal(frame.Data, &st); err != nil {
					continue
				}
				typing.apply(st.FromUserID, st.IsTyping)
				if st.IsTyping {
					fmt.Printf("\r%s is typing...\n> ", st.FromUserID)
				}
			case model.EventJoinedRoom, model.EventLeftRoom:
				var rr model.RoomRequest
				_ = json.Unmarshal(frame.Data, &rr)
				fmt.Printf("\r%s %s\n> ", frame.Type, rr.RoomID)
			case model.EventError:
				var e model.ErrorData
				_ = json.Unmarshal(frame.Data, &e)
				fmt.Printf("\rerror: %s\n> ", e.Message)
			default:
				fmt.Printf("\r%s: %s\n> ", frame.Type, frame.Data)
			}
		}
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	send := func(ev model.EventType, data any) {
		buf, err := json.Marshal(model.Event{Type: ev, Data: data})
		if err != nil {
			log.Println("encode:", err)
			return
		}
		if err := c.WriteMessage(websocket.TextMessage, buf); err != nil {
			log.Println("write:", err)
		}
	}

	go func() {
		fmt.Println(usage)
		scanner := bufio.NewScanner(os.Stdin)
		fmt.Print("> ")
		for scanner.Scan() {
			cmd, rest, _ := strings.Cut(strings.TrimSpace(scanner.Text()), " ")
			arg, text, _ := strings.Cut(strings.TrimSpace(rest), " ")

			var err error
			switch cmd {
			case "":
			case "/quit":
				interrupt <- os.Interrupt
				return
			case "/users":
				var out map[string]any
				if err = api.do(http.MethodGet, "/api/messages/users", nil, &out); err == nil {
					pretty, _ := json.MarshalIndent(out, "", "  ")
					fmt.Println(string(pretty))
				}
			case "/dm":
				err = api.do(http.MethodPost, "/api/messages/send/"+arg, map[string]string{"text": text}, nil)
			case "/room":
				err = api.do(http.MethodPost, "/api/rooms/"+arg+"/messages", map[string]string{"text": text}, nil)
			case "/join":
				if err = api.do(http.MethodPost, "/api/rooms/join/"+arg, nil, nil); err == nil {
					send(model.EventJoinRoom, model.RoomRequest{RoomID: arg})
				}
			case "/leave":
				send(model.EventLeaveRoom, model.RoomRequest{RoomID: arg})
			case "/typing":
				send(model.EventTyping, model.TypingRequest{To: arg})
			case "/stop":
				send(model.EventStopTyping, model.TypingRequest{To: arg})
			case "/online":
				onlineMu.Lock()
				ids := strings.Join(online, ", ")
				onlineMu.Unlock()
				fmt.Printf("online: %s\ntyping: %s\n", ids, strings.Join(typing.active(), ", "))
			default:
				fmt.Println(usage)
			}
			if err != nil {
				log.Println(err)
			}
			fmt.Print("> ")
		}
	}()

	for {
		select {
		case <-done:
			return
		case <-interrupt:
			log.Println("interrupt")

			err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				log.Println("write close:", err)
				return
			}
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return
		}
	}
}
