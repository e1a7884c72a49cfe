package app

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"cuemesh/api/internal/cue"
	"cuemesh/api/internal/realtime"
	"cuemesh/api/internal/store"
)

// memoryStore keeps enough state in maps to drive multi-request flows through
// the HTTP surface. The per-method fakeStore stays the tool for single-call
// behavior checks.
type memoryStore struct {
	fakeStore
	mu           sync.Mutex
	participants map[string]store.Participant
	shows        map[string]store.Show
	members      map[string]store.Member
	cues         map[string]store.Cue
	events       []store.ShowEvent
}

func newMemoryStore() *memoryStore {
	m := &memoryStore{
		participants: map[string]store.Participant{},
		shows:        map[string]store.Show{},
		members:      map[string]store.Member{},
		cues:         map[string]store.Cue{},
	}
	m.createParticipantFn = func(_ context.Context, p store.Participant) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.participants[p.ID] = p
		return nil
	}
	m.getParticipantFn = func(_ context.Context, id string) (store.Participant, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		p, ok := m.participants[id]
		if !ok {
			return store.Participant{}, errNotFound()
		}
		return p, nil
	}
	m.createShowWithDirectorFn = func(_ context.Context, show store.Show, director store.Member) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.shows[show.ID] = show
		m.members[memberKey(show.ID, director.ParticipantID)] = director
		return nil
	}
	m.getShowFn = func(_ context.Context, showID string) (store.Show, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		show, ok := m.shows[showID]
		if !ok {
			return store.Show{}, errNotFound()
		}
		return show, nil
	}
	m.upsertMemberFn = func(_ context.Context, member store.Member) (store.Member, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.members[memberKey(member.ShowID, member.ParticipantID)] = member
		return member, nil
	}
	m.getMemberFn = func(_ context.Context, showID, participantID string) (store.Member, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		member, ok := m.members[memberKey(showID, participantID)]
		if !ok {
			return store.Member{}, errNotFound()
		}
		return member, nil
	}
	m.insertCueFn = func(_ context.Context, c store.Cue) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.cues[c.ID] = c
		return nil
	}
	m.getCueFn = func(_ context.Context, showID, cueID string) (store.Cue, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		c, ok := m.cues[cueID]
		if !ok || c.ShowID != showID {
			return store.Cue{}, errNotFound()
		}
		return c, nil
	}
	m.listCuesFn = func(_ context.Context, showID string) ([]store.Cue, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		var out []store.Cue
		for _, c := range m.cues {
			if c.ShowID == showID {
				out = append(out, c)
			}
		}
		return out, nil
	}
	m.updateCueStatusFn = func(_ context.Context, showID, cueID string, status cue.Status, goAt *time.Time) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		c, ok := m.cues[cueID]
		if !ok || c.ShowID != showID {
			return errNotFound()
		}
		c.Status = status
		if goAt != nil {
			c.GoAt = goAt
		}
		m.cues[cueID] = c
		return nil
	}
	m.insertShowEventFn = func(_ context.Context, event store.ShowEvent) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.events = append(m.events, event)
		return nil
	}
	return m
}

func memberKey(showID, participantID string) string {
	return showID + "/" + participantID
}

func errNotFound() error {
	return fmt.Errorf("not found: %w", sql.ErrNoRows)
}

func newTestHTTPServer(fs *fakeStore) *HTTPServer {
	return NewHTTPServer(newTestService(fs, nil, nil), realtime.NewHub(), "*")
}

func doJSON(t *testing.T, server *HTTPServer, method, path, token string, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	payload := map[string]any{}
	_ = json.Unmarshal(rr.Body.Bytes(), &payload)
	return rr, payload
}

func TestHealthEndpoint(t *testing.T) {
	server := newTestHTTPServer(&fakeStore{})
	rr, payload := doJSON(t, server, http.MethodGet, "/api/health", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if payload["ok"] != true {
		t.Fatalf("expected ok=true, got %v", payload)
	}
}

func TestReadyEndpoint(t *testing.T) {
	server := newTestHTTPServer(&fakeStore{})
	rr, payload := doJSON(t, server, http.MethodGet, "/api/ready", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	if payload["status"] != "ready" {
		t.Fatalf("expected ready, got %v", payload)
	}
}

func TestAuthRequired(t *testing.T) {
	server := newTestHTTPServer(&fakeStore{})
	rr, payload := doJSON(t, server, http.MethodGet, "/api/shows/show-1", "", "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	if payload["code"] != "UNAUTHORIZED" {
		t.Fatalf("expected UNAUTHORIZED, got %v", payload)
	}
}

func TestGuestLoginRejectsInvalidBody(t *testing.T) {
	server := newTestHTTPServer(&fakeStore{})
	rr, payload := doJSON(t, server, http.MethodPost, "/api/auth/guest", "", `{"displayName":`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if payload["code"] != "INVALID_BODY" {
		t.Fatalf("expected INVALID_BODY, got %v", payload)
	}
}

func TestShowLifecycleOverHTTP(t *testing.T) {
	ms := newMemoryStore()
	server := newTestHTTPServer(&ms.fakeStore)

	rr, payload := doJSON(t, server, http.MethodPost, "/api/auth/guest", "", `{"displayName":"Ada"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("guest: expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	token, _ := payload["token"].(string)
	if token == "" {
		t.Fatal("guest: expected token")
	}
	if payload["heartbeatInterval"] != float64(25) {
		t.Fatalf("guest: expected heartbeat interval hint, got %v", payload["heartbeatInterval"])
	}

	rr, payload = doJSON(t, server, http.MethodPost, "/api/shows", token, `{"name":"Swan Lake","venue":"Opera House"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create show: expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	show, _ := payload["show"].(map[string]any)
	showID, _ := show["id"].(string)
	joinCode, _ := payload["joinCode"].(string)
	if showID == "" || joinCode == "" {
		t.Fatalf("create show: missing id or join code in %v", payload)
	}

	rr, payload = doJSON(t, server, http.MethodGet, "/api/shows/"+showID, token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("get show: expected 200, got %d", rr.Code)
	}

	rr, payload = doJSON(t, server, http.MethodPost, "/api/shows/"+showID+"/cues", token,
		`{"cueType":"LIGHT","title":"Blackout","priority":"HIGH","targets":{"departments":["LIGHTING_LX_OP"]}}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create cue: expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	created, _ := payload["cue"].(map[string]any)
	cueID, _ := created["id"].(string)
	if cueID == "" || created["status"] != "DRAFT" {
		t.Fatalf("create cue: unexpected payload %v", created)
	}

	rr, payload = doJSON(t, server, http.MethodPost, "/api/shows/"+showID+"/cues/"+cueID+"/status", token, `{"to":"STANDBY"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("standby: expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	updated, _ := payload["cue"].(map[string]any)
	if updated["status"] != "STANDBY" {
		t.Fatalf("standby: expected STANDBY, got %v", updated["status"])
	}

	rr, payload = doJSON(t, server, http.MethodGet,
		"/api/shows/"+showID+"/rails?department=LIGHTING_LX_OP", token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("rails: expected 200, got %d", rr.Code)
	}
	standby, _ := payload["standby"].([]any)
	if len(standby) != 1 {
		t.Fatalf("rails: expected the cue on standby, got %v", payload)
	}

	rr, payload = doJSON(t, server, http.MethodGet,
		"/api/shows/"+showID+"/rails?department=AUDIO_A1", token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("rails: expected 200, got %d", rr.Code)
	}
	standby, _ = payload["standby"].([]any)
	if len(standby) != 0 {
		t.Fatalf("rails: targeted cue must be hidden from other departments, got %v", payload)
	}
}

func TestUnknownShowIs404(t *testing.T) {
	ms := newMemoryStore()
	server := newTestHTTPServer(&ms.fakeStore)

	_, payload := doJSON(t, server, http.MethodPost, "/api/auth/guest", "", `{"displayName":"Ada"}`)
	token, _ := payload["token"].(string)

	rr, payload := doJSON(t, server, http.MethodGet, "/api/shows/show-missing", token, "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d body=%s", rr.Code, rr.Body.String())
	}
	if payload["code"] != "NOT_FOUND" {
		t.Fatalf("expected NOT_FOUND, got %v", payload)
	}
}

func TestCantOverHTTPAppendsEvent(t *testing.T) {
	ms := newMemoryStore()
	server := newTestHTTPServer(&ms.fakeStore)

	_, payload := doJSON(t, server, http.MethodPost, "/api/auth/guest", "", `{"displayName":"Ada"}`)
	token, _ := payload["token"].(string)

	_, payload = doJSON(t, server, http.MethodPost, "/api/shows", token, `{"name":"Swan Lake"}`)
	show, _ := payload["show"].(map[string]any)
	showID, _ := show["id"].(string)

	_, payload = doJSON(t, server, http.MethodPost, "/api/shows/"+showID+"/cues", token,
		`{"cueType":"SOUND","title":"Thunder"}`)
	created, _ := payload["cue"].(map[string]any)
	cueID, _ := created["id"].(string)

	rr, _ := doJSON(t, server, http.MethodPost, "/api/shows/"+showID+"/cues/"+cueID+"/cant", token,
		`{"note":"speaker stack is down"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("cant: expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()
	var cants int
	for _, ev := range ms.events {
		if ev.Type == store.EventCueCant {
			cants++
		}
	}
	if cants != 1 {
		t.Fatalf("expected one refusal event, got %d", cants)
	}
}
