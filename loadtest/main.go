package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-telegram/bot/models"
	"github.com/gorilla/websocket"
)

const (
	BaseURL   = "http://localhost:9527"
	WSURL     = "ws://localhost:9527/ws"
	UserCount = 200 // ⚠️ every user gets a forum thread on first contact, keep this small against a real group
	MsgCount  = 10  // Messages per user
)

type LoginResponse struct {
	Token string `json:"access_token"`
}

var (
	updateID  atomic.Int64
	delivered atomic.Int64
	rejected  atomic.Int64
)

func main() {
	secret := os.Getenv("WEBHOOK_SECRET")
	adminUser := envOr("ADMIN_USERNAME", "admin")
	adminPass := os.Getenv("ADMIN_PASSWORD")

	updateID.Store(time.Now().UnixNano() / int64(time.Millisecond))
	log.Printf("🔥 STARTING STRESS TEST: %d Users, %d Messages each...", UserCount, MsgCount)

	// Watch the monitor feed while the webhook is hammered.
	var events atomic.Int64
	stop := make(chan struct{})
	if adminPass != "" {
		token := login(adminUser, adminPass)
		if token != "" {
			go watchFeed(token, &events, stop)
		}
	}

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < UserCount; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			runUser(secret, int64(9_000_000+n))
		}(i)
	}
	wg.Wait()

	// Give the relay a moment to drain before reading the feed counter.
	time.Sleep(5 * time.Second)
	close(stop)

	log.Printf("✅ LOAD TEST COMPLETE in %s: %d accepted, %d rejected, %d feed events",
		time.Since(start).Round(time.Millisecond), delivered.Load(), rejected.Load(), events.Load())
}

func runUser(secret string, userID int64) {
	for i := 0; i < MsgCount; i++ {
		u := privateUpdate(userID, i, fmt.Sprintf("LoadTest Msg %d from %d", i, userID))
		if err := postUpdate(secret, u); err != nil {
			rejected.Add(1)
			log.Printf("❌ Send Fail [%d]: %v", userID, err)
			continue
		}
		delivered.Add(1)
		// Small sleep to simulate a real client typing
		time.Sleep(10 * time.Millisecond)
	}
}

func privateUpdate(userID int64, seq int, text string) *models.Update {
	return &models.Update{
		ID: updateID.Add(1),
		Message: &models.Message{
			ID:   seq + 1,
			Date: int(time.Now().Unix()),
			From: &models.User{ID: userID, FirstName: "Load", LastName: strconv.FormatInt(userID, 10)},
			Chat: models.Chat{ID: userID, Type: models.ChatTypePrivate},
			Text: text,
		},
	}
}

func postUpdate(secret string, u *models.Update) error {
	body, _ := json.Marshal(u)
	req, _ := http.NewRequest(http.MethodPost, BaseURL+"/webhook", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Telegram-Bot-Api-Secret-Token", secret)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

func login(username, password string) string {
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	resp, err := http.Post(BaseURL+"/api/login", "application/json", bytes.NewBuffer(body))
	if err != nil {
		log.Printf("❌ Login Failed: %v", err)
		return ""
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Printf("❌ Login Failed: status %d", resp.StatusCode)
		return ""
	}

	var data LoginResponse
	json.NewDecoder(resp.Body).Decode(&data)
	return data.Token
}

func watchFeed(token string, events *atomic.Int64, stop <-chan struct{}) {
	conn, _, err := websocket.DefaultDialer.Dial(fmt.Sprintf("%s?token=%s", WSURL, token), nil)
	if err != nil {
		log.Printf("❌ WS Connect Fail: %v", err)
		return
	}
	defer conn.Close()

	go func() {
		<-stop
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		events.Add(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
