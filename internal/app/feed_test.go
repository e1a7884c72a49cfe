package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"cuemesh/api/internal/store"
)

func dialFeed(t *testing.T, ts *httptest.Server, showID, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/shows/" + showID + "/feed?token=" + token
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial feed: %v", err)
	}
	return ws
}

func readFeed(t *testing.T, ws *websocket.Conn) map[string]any {
	t.Helper()
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg map[string]any
	if err := ws.ReadJSON(&msg); err != nil {
		t.Fatalf("read feed message: %v", err)
	}
	return msg
}

func setupShowOverHTTP(t *testing.T, server *HTTPServer) (token, showID string) {
	t.Helper()
	_, payload := doJSON(t, server, http.MethodPost, "/api/auth/guest", "", `{"displayName":"Ada"}`)
	token, _ = payload["token"].(string)
	_, payload = doJSON(t, server, http.MethodPost, "/api/shows", token, `{"name":"Swan Lake"}`)
	show, _ := payload["show"].(map[string]any)
	showID, _ = show["id"].(string)
	if token == "" || showID == "" {
		t.Fatal("setup: missing token or show id")
	}
	return token, showID
}

func TestFeedAnnouncesGoOncePerConnection(t *testing.T) {
	ms := newMemoryStore()
	server := newTestHTTPServer(&ms.fakeStore)
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	token, showID := setupShowOverHTTP(t, server)
	_, payload := doJSON(t, server, http.MethodPost, "/api/shows/"+showID+"/cues", token,
		`{"cueType":"LIGHT","title":"Blackout"}`)
	created, _ := payload["cue"].(map[string]any)
	cueID, _ := created["id"].(string)
	doJSON(t, server, http.MethodPost, "/api/shows/"+showID+"/cues/"+cueID+"/status", token, `{"to":"STANDBY"}`)
	doJSON(t, server, http.MethodPost, "/api/shows/"+showID+"/cues/"+cueID+"/status", token, `{"to":"GO"}`)

	ws := dialFeed(t, ts, showID, token)
	defer ws.Close()

	if msg := readFeed(t, ws); msg["type"] != "snapshot" {
		t.Fatalf("expected snapshot first, got %v", msg["type"])
	}
	msg := readFeed(t, ws)
	if msg["type"] != "goCue" || msg["cueId"] != cueID {
		t.Fatalf("expected goCue for %s, got %v", cueID, msg)
	}

	if err := ws.WriteJSON(map[string]any{"type": "filter", "department": "DECK"}); err != nil {
		t.Fatalf("send filter: %v", err)
	}
	if msg := readFeed(t, ws); msg["type"] != "snapshot" {
		t.Fatalf("expected snapshot after filter change, got %v", msg)
	}

	// The untargeted cue is still on the Go rail under the new filter; the
	// notice must not repeat on this connection.
	_ = ws.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	var extra map[string]any
	if err := ws.ReadJSON(&extra); err == nil && extra["type"] == "goCue" {
		t.Fatalf("goCue repeated after filter change: %v", extra)
	}
}

func TestFeedSignalsDegradedWhenSnapshotFails(t *testing.T) {
	ms := newMemoryStore()
	var storeDown atomic.Bool
	getShow := ms.getShowFn
	ms.getShowFn = func(ctx context.Context, showID string) (store.Show, error) {
		if storeDown.Load() {
			return store.Show{}, errors.New("store offline")
		}
		return getShow(ctx, showID)
	}
	server := newTestHTTPServer(&ms.fakeStore)
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	token, showID := setupShowOverHTTP(t, server)

	ws := dialFeed(t, ts, showID, token)
	defer ws.Close()
	if msg := readFeed(t, ws); msg["type"] != "snapshot" {
		t.Fatalf("expected snapshot first, got %v", msg["type"])
	}

	storeDown.Store(true)
	if err := ws.WriteJSON(map[string]any{"type": "filter", "department": "AUDIO_A1"}); err != nil {
		t.Fatalf("send filter: %v", err)
	}
	if msg := readFeed(t, ws); msg["type"] != "degraded" {
		t.Fatalf("expected degraded when the snapshot cannot be rebuilt, got %v", msg)
	}
}
