// Command verify_api runs a smoke test against a live gateway: two signups,
// a direct message, the unseen count and the conversation history.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

type authResponse struct {
	Token    string `json:"token"`
	UserData struct {
		ID string `json:"_id"`
	} `json:"userData"`
}

func call(method, url, token string, body, out any) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			log.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		log.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("%s %s failed: %v", method, url, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		log.Fatalf("%s %s: %d %s", method, url, resp.StatusCode, raw)
	}
	log.Printf("%s %s: %d %s", method, url, resp.StatusCode, raw)
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			log.Fatal(err)
		}
	}
}

func signup(apiAddr, name string) authResponse {
	var resp authResponse
	call(http.MethodPost, apiAddr+"/api/auth/signup", "", map[string]string{
		"fullName": name,
		"email":    fmt.Sprintf("%s-%d@example.com", name, time.Now().UnixNano()),
		"password": "password123",
	}, &resp)
	return resp
}

func main() {
	apiAddr := flag.String("api", "http://localhost:3000", "gateway base URL")
	flag.Parse()

	// 1. Two fresh accounts
	a := signup(*apiAddr, "userA")
	b := signup(*apiAddr, "userB")

	// 2. A sends B a direct message
	call(http.MethodPost, *apiAddr+"/api/messages/send/"+b.UserData.ID, a.Token, map[string]string{"text": "hello from A"}, nil)

	// 3. B sees one unseen message from A
	var users struct {
		Unseen map[string]int `json:"unseenMessages"`
	}
	call(http.MethodGet, *apiAddr+"/api/messages/users", b.Token, nil, &users)
	if users.Unseen[a.UserData.ID] != 1 {
		log.Fatalf("expected 1 unseen message from A, got %d", users.Unseen[a.UserData.ID])
	}

	// 4. Reading the history marks it seen
	call(http.MethodGet, *apiAddr+"/api/messages/"+a.UserData.ID, b.Token, nil, nil)
	call(http.MethodGet, *apiAddr+"/api/messages/users", b.Token, nil, &users)
	if n := users.Unseen[a.UserData.ID]; n != 0 {
		log.Fatalf("expected no unseen messages after reading, got %d", n)
	}

	log.Println("API verified")
}
