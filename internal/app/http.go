package app

import (
	"bufio"
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"cuemesh/api/internal/auth"
	"cuemesh/api/internal/cue"
	"cuemesh/api/internal/realtime"
	"cuemesh/api/internal/search"
	"cuemesh/api/internal/view"
)

type HTTPServer struct {
	service    *Service
	hub        *realtime.Hub
	corsOrigin string
	upgrader   websocket.Upgrader
}

func NewHTTPServer(service *Service, hub *realtime.Hub, corsOrigin string) *HTTPServer {
	return &HTTPServer{
		service:    service,
		hub:        hub,
		corsOrigin: corsOrigin,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browser clients connect from the show network; origin policy is
			// the deployment's CORS setting, enforced upstream.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"database": map[string]any{"status": "ok"},
			"redis":    map[string]any{"status": "ok"},
		}

		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["database"] = map[string]any{"status": "error", "error": err.Error()}
		}
		if err := s.service.PresencePing(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["redis"] = map[string]any{"status": "error", "error": err.Error()}
		}

		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/guest" {
		var body struct {
			DisplayName string `json:"displayName"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		session, err := s.service.GuestSession(r.Context(), body.DisplayName)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"token":             session.Token,
			"participantId":     session.ParticipantID,
			"displayName":       session.DisplayName,
			"expiresAt":         session.ExpiresAt.Unix(),
			"heartbeatInterval": int(s.service.HeartbeatInterval().Seconds()),
		})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/debug/probe" {
		writeJSON(w, http.StatusOK, map[string]any{"entries": s.service.ProbeReport()})
		return
	}

	session, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/search" {
		q := strings.TrimSpace(r.URL.Query().Get("q"))
		filterType := strings.TrimSpace(r.URL.Query().Get("type"))
		showID := strings.TrimSpace(r.URL.Query().Get("show"))
		limit := 20
		if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil {
				writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "limit must be an integer", nil)
				return
			}
			limit = parsed
		}

		payload, err := s.service.Search(search.Query{
			Text:         q,
			FilterType:   search.ResultType(filterType),
			FilterShowID: showID,
			Limit:        limit,
		})
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/shows" {
		var body struct {
			Name       string `json:"name"`
			Venue      string `json:"venue"`
			JoinCode   string `json:"joinCode"`
			Department string `json:"department"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.CreateShow(r.Context(), session, body.Name, body.Venue, body.JoinCode, body.Department)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusCreated, payload)
		return
	}

	parts := splitPath(r.URL.Path)

	if len(parts) >= 3 && parts[0] == "api" && parts[1] == "shows" {
		showID := parts[2]
		rest := parts[3:]
		s.handleShow(w, r, session, showID, rest)
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleShow(w http.ResponseWriter, r *http.Request, session Session, showID string, rest []string) {
	switch {
	case len(rest) == 0 && r.Method == http.MethodGet:
		payload, err := s.service.GetShow(r.Context(), showID)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	case len(rest) == 1 && rest[0] == "join" && r.Method == http.MethodPost:
		var body JoinShowInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.JoinShow(r.Context(), session, showID, body)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	case len(rest) == 1 && rest[0] == "members" && r.Method == http.MethodGet:
		payload, err := s.service.Members(r.Context(), showID)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	case len(rest) == 2 && rest[0] == "presence" && rest[1] == "heartbeat" && r.Method == http.MethodPost:
		var body struct {
			DeviceID string `json:"deviceId"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.Heartbeat(r.Context(), session, showID, body.DeviceID); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	case len(rest) == 2 && rest[0] == "presence" && rest[1] == "goodbye" && r.Method == http.MethodPost:
		s.service.Goodbye(r.Context(), session, showID)
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	case len(rest) == 1 && rest[0] == "cues" && r.Method == http.MethodPost:
		var body CreateCueInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.CreateCue(r.Context(), session, showID, body)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusCreated, payload)

	case len(rest) == 1 && rest[0] == "cues" && r.Method == http.MethodGet:
		payload, err := s.service.ListCues(r.Context(), showID)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	case len(rest) == 3 && rest[0] == "cues" && r.Method == http.MethodPost:
		cueID := rest[1]
		switch rest[2] {
		case "status":
			var body TransitionInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			payload, err := s.service.TransitionCue(r.Context(), session, showID, cueID, body)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, payload)
		case "ack":
			if err := s.service.Ack(r.Context(), session, showID, cueID); err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		case "confirm":
			if err := s.service.Confirm(r.Context(), session, showID, cueID); err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		case "cant":
			var body struct {
				Note string `json:"note"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			if err := s.service.Cant(r.Context(), session, showID, cueID, body.Note); err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		default:
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		}

	case len(rest) == 1 && rest[0] == "rails" && r.Method == http.MethodGet:
		filter := view.Filter{
			Department: cue.Department(strings.TrimSpace(r.URL.Query().Get("department"))),
			AccessRole: cue.AccessRole(strings.TrimSpace(r.URL.Query().Get("accessRole"))),
			Priority:   cue.Priority(strings.TrimSpace(r.URL.Query().Get("priority"))),
		}
		payload, err := s.service.Rails(r.Context(), showID, filter)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	case len(rest) == 1 && rest[0] == "events" && r.Method == http.MethodGet:
		limit := 0
		if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil {
				writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "limit must be an integer", nil)
				return
			}
			limit = parsed
		}
		payload, err := s.service.Events(r.Context(), showID, strings.TrimSpace(r.URL.Query().Get("type")), limit)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	case len(rest) == 1 && rest[0] == "feed" && r.Method == http.MethodGet:
		s.handleFeed(w, r, session, showID)

	case len(rest) == 1 && rest[0] == "export" && r.Method == http.MethodGet:
		format := strings.TrimSpace(r.URL.Query().Get("format"))
		if format == "" {
			format = "pdf"
		}
		result, err := s.service.Export(r.Context(), showID, format, strings.TrimSpace(r.URL.Query().Get("department")))
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		w.Header().Set("Content-Type", result.MimeType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(result.Data)

	case len(rest) == 2 && rest[0] == "rundown" && rest[1] == "history" && r.Method == http.MethodGet:
		limit := 50
		if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil {
				writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "limit must be an integer", nil)
				return
			}
			limit = parsed
		}
		payload, err := s.service.RundownHistory(r.Context(), showID, limit)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

type feedClientMessage struct {
	Type       string `json:"type"`
	DeviceID   string `json:"deviceId"`
	Department string `json:"department"`
	AccessRole string `json:"accessRole"`
	Priority   string `json:"priority"`
}

// handleFeed upgrades to a websocket and streams view snapshots. Every change
// notification for the show triggers a full recompute; the connection keeps
// at-most-once goCue notices via the view's SeenGo set.
func (s *HTTPServer) handleFeed(w http.ResponseWriter, r *http.Request, session Session, showID string) {
	if _, err := s.service.GetShow(r.Context(), showID); err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("feed: upgrade failed: %v", err)
		return
	}

	conn := realtime.NewConn(ws)
	conn.Start()
	defer conn.Close(websocket.CloseNormalClosure, "bye")

	changes, cancel := s.hub.Subscribe(showID)
	defer cancel()

	// Default filter from the member record; a filter message can override.
	filter := view.Filter{}
	if member, err := s.service.store.GetMember(r.Context(), showID, session.ParticipantID); err == nil {
		filter.Department = member.Department
		filter.AccessRole = member.AccessRole
	}

	ctx := context.Background()
	current := view.View{}
	sendSnapshot := func() bool {
		snap, err := s.service.Snapshot(ctx, showID)
		if err != nil {
			// The client keeps rendering its last good snapshot; tell it the
			// feed is degraded rather than going silent.
			log.Printf("feed: snapshot for show %s: %v", showID, err)
			return s.sendFeedMessage(conn, map[string]any{"type": "degraded"})
		}
		next, firstGo := view.Reduce(current, snap, filter)
		current = next
		if !s.sendFeedMessage(conn, map[string]any{
			"type":    "snapshot",
			"show":    showPayload(next.Show),
			"members": feedMemberPayloads(next.Members),
			"rails": map[string]any{
				"standby": cuePayloads(next.Rails.Standby),
				"go":      cuePayloads(next.Rails.Go),
			},
		}) {
			return false
		}
		for _, cueID := range firstGo {
			if !s.sendFeedMessage(conn, map[string]any{"type": "goCue", "cueId": cueID}) {
				return false
			}
		}
		return true
	}

	if !sendSnapshot() {
		return
	}

	done := make(chan struct{})
	defer close(done)
	inbound := make(chan feedClientMessage)
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			var msg feedClientMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			select {
			case inbound <- msg:
			case <-done:
				return
			}
		}
	}()

	for {
		select {
		case <-readDone:
			return
		case msg := <-inbound:
			switch msg.Type {
			case "hello", "heartbeat":
				if err := s.service.Heartbeat(ctx, session, showID, msg.DeviceID); err != nil {
					log.Printf("feed: heartbeat: %v", err)
				}
			case "filter":
				// SeenGo survives filter changes: a cue the client was told
				// about once is never announced again on this connection.
				// Cues newly visible under the new filter get their notice
				// from the recompute regardless.
				filter = view.Filter{
					Department: cue.Department(msg.Department),
					AccessRole: cue.AccessRole(msg.AccessRole),
					Priority:   cue.Priority(msg.Priority),
				}
				if !sendSnapshot() {
					return
				}
			case "bye":
				s.service.Goodbye(ctx, session, showID)
				return
			}
		case change, ok := <-changes:
			if !ok {
				return
			}
			if change.Stream == realtime.StreamDegraded {
				if !s.sendFeedMessage(conn, map[string]any{"type": "degraded"}) {
					return
				}
				continue
			}
			if !sendSnapshot() {
				return
			}
		}
	}
}

func (s *HTTPServer) sendFeedMessage(conn *realtime.Conn, payload map[string]any) bool {
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Printf("feed: marshal message: %v", err)
		return true
	}
	if err := conn.Send(raw); err != nil {
		return false
	}
	return true
}

func feedMemberPayloads(roster []view.MemberPresence) []map[string]any {
	items := make([]map[string]any, 0, len(roster))
	for _, mp := range roster {
		items = append(items, memberPresencePayload(mp))
	}
	return items
}

func (s *HTTPServer) requireSession(w http.ResponseWriter, r *http.Request) (Session, bool) {
	token := bearerToken(r)
	if token == "" {
		// Websocket clients cannot set headers from the browser API.
		token = strings.TrimSpace(r.URL.Query().Get("token"))
	}
	if token == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return Session{}, false
	}
	session, err := s.service.SessionFromToken(r.Context(), token)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) || errors.Is(err, auth.ErrInvalidToken) {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
			return Session{}, false
		}
		writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Session lookup failed", nil)
		return Session{}, false
	}
	return session, true
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Hijack passes through to the underlying writer so websocket upgrades work
// behind the logging middleware.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hijacker.Hijack()
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, sql.ErrNoRows) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrExpiredToken) {
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
