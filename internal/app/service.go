package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"cuemesh/api/internal/auth"
	"cuemesh/api/internal/config"
	"cuemesh/api/internal/cue"
	"cuemesh/api/internal/export"
	"cuemesh/api/internal/notify"
	"cuemesh/api/internal/presence"
	"cuemesh/api/internal/probe"
	"cuemesh/api/internal/realtime"
	"cuemesh/api/internal/rundown"
	"cuemesh/api/internal/search"
	"cuemesh/api/internal/store"
	"cuemesh/api/internal/util"
	"cuemesh/api/internal/view"
)

type Session struct {
	Token         string
	ParticipantID string
	DisplayName   string
	JTI           string
	ExpiresAt     time.Time
}

type JoinShowInput struct {
	DisplayName     string `json:"displayName"`
	Department      string `json:"department"`
	CustomDeptLabel string `json:"customDeptLabel"`
	DeviceID        string `json:"deviceId"`
	JoinCode        string `json:"joinCode"`
}

type CreateCueInput struct {
	CueType         string          `json:"cueType"`
	Title           string          `json:"title"`
	Details         string          `json:"details"`
	Targets         json.RawMessage `json:"targets"`
	Priority        string          `json:"priority"`
	RequiresConfirm bool            `json:"requiresConfirm"`
}

type TransitionInput struct {
	To              string `json:"to"`
	ConfirmCritical bool   `json:"confirmCritical"`
}

type dataStore interface {
	CreateParticipant(context.Context, store.Participant) error
	GetParticipant(context.Context, string) (store.Participant, error)
	CreateShowWithDirector(context.Context, store.Show, store.Member) error
	GetShow(context.Context, string) (store.Show, error)
	UpsertMember(context.Context, store.Member) (store.Member, error)
	GetMember(context.Context, string, string) (store.Member, error)
	ListMembers(context.Context, string) ([]store.Member, error)
	InsertCue(context.Context, store.Cue) error
	GetCue(context.Context, string, string) (store.Cue, error)
	ListCues(context.Context, string) ([]store.Cue, error)
	UpdateCueStatus(context.Context, string, string, cue.Status, *time.Time) error
	UpdateCueDetails(context.Context, string, string, string) error
	UpsertAck(context.Context, store.Ack) error
	UpsertConfirm(context.Context, store.Confirm) error
	ListAcks(context.Context, string) ([]store.Ack, error)
	ListConfirms(context.Context, string) ([]store.Confirm, error)
	InsertShowEvent(context.Context, store.ShowEvent) error
	ListShowEvents(context.Context, string, string, int) ([]store.ShowEvent, error)
	Ping(ctx context.Context) error
}

type presenceStore interface {
	MarkOnline(ctx context.Context, showID, memberID, deviceID string) error
	MarkOffline(ctx context.Context, showID, memberID string) error
	Get(ctx context.Context, showID, memberID string) (presence.Status, error)
	List(ctx context.Context, showID string) (map[string]presence.Status, error)
	Ping(ctx context.Context) error
}

type changePublisher interface {
	Publish(ctx context.Context, change realtime.Change) error
}

type rundownService interface {
	EnsureShowRepo(showID string, initial rundown.Snapshot, author string) error
	CommitSnapshot(showID string, snap rundown.Snapshot, author, message string) (rundown.CommitInfo, error)
	History(showID string, limit int) ([]rundown.CommitInfo, error)
}

type searchService interface {
	Search(q search.Query) search.Response
	IndexCue(c search.CueRecord)
	IndexEvent(e search.EventRecord)
}

type exportService interface {
	Export(ctx context.Context, req export.Request) (*export.Result, error)
}

type Service struct {
	cfg      config.Config
	store    dataStore
	presence presenceStore
	bus      changePublisher
	rundowns rundownService
	search   searchService
	exporter exportService
	notifier *notify.Service
	probe    *probe.Ring
}

func New(
	cfg config.Config,
	dataStore *store.PostgresStore,
	presenceStore *presence.RedisStore,
	bus *realtime.Bus,
	rundowns *rundown.Service,
	searchSvc *search.Service,
	exporter *export.Service,
	notifier *notify.Service,
	probeRing *probe.Ring,
) *Service {
	return &Service{
		cfg:      cfg,
		store:    dataStore,
		presence: presenceStore,
		bus:      bus,
		rundowns: rundowns,
		search:   searchSvc,
		exporter: exporter,
		notifier: notifier,
		probe:    probeRing,
	}
}

// GuestSession mints a participant and a signed token for it. There are no
// accounts; a display name is all it takes to get on headset.
func (s *Service) GuestSession(ctx context.Context, displayName string) (Session, error) {
	name := strings.TrimSpace(displayName)
	if name == "" {
		return Session{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "displayName is required", nil)
	}

	participant := store.Participant{ID: util.NewID("part"), DisplayName: name}
	if err := s.store.CreateParticipant(ctx, participant); err != nil {
		return Session{}, err
	}

	return s.issueSession(participant)
}

func (s *Service) issueSession(participant store.Participant) (Session, error) {
	expiresAt := time.Now().Add(s.cfg.SessionTTL)
	claims := auth.Claims{
		Sub:  participant.ID,
		Name: participant.DisplayName,
		JTI:  util.NewID(""),
		Exp:  expiresAt.Unix(),
	}
	token, err := auth.IssueToken([]byte(s.cfg.TokenSecret), claims)
	if err != nil {
		return Session{}, err
	}
	return Session{
		Token:         token,
		ParticipantID: participant.ID,
		DisplayName:   participant.DisplayName,
		JTI:           claims.JTI,
		ExpiresAt:     expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.TokenSecret), token)
	if err != nil {
		return Session{}, err
	}

	participant, err := s.store.GetParticipant(ctx, claims.Sub)
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:         token,
		ParticipantID: participant.ID,
		DisplayName:   participant.DisplayName,
		JTI:           claims.JTI,
		ExpiresAt:     time.Unix(claims.Exp, 0),
	}, nil
}

// CreateShow opens a show and seats its creator as the director member in a
// single transaction. The join code comes back in plaintext exactly once.
func (s *Service) CreateShow(ctx context.Context, session Session, name, venue, joinCode, department string) (map[string]any, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}

	if joinCode == "" {
		joinCode = util.NewJoinCode()
	}
	codeHash, err := bcrypt.GenerateFromPassword([]byte(joinCode), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash join code: %w", err)
	}

	dept := cue.Department(department)
	if department == "" {
		dept = cue.DeptDirectorTD
	}
	if !cue.ValidDepartment(dept) {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown department", nil)
	}

	show := store.Show{
		ID:           util.NewID("show"),
		Name:         name,
		Venue:        strings.TrimSpace(venue),
		Status:       "ACTIVE",
		JoinCodeHash: string(codeHash),
		CreatedBy:    session.ParticipantID,
	}
	director := store.Member{
		ShowID:        show.ID,
		ParticipantID: session.ParticipantID,
		DisplayName:   session.DisplayName,
		Department:    dept,
		AccessRole:    cue.RoleDirector,
	}
	if err := s.store.CreateShowWithDirector(ctx, show, director); err != nil {
		return nil, err
	}

	if s.rundowns != nil {
		initial := rundown.Snapshot{ShowID: show.ID, Name: show.Name, Venue: show.Venue}
		if err := s.rundowns.EnsureShowRepo(show.ID, initial, session.DisplayName); err != nil {
			log.Printf("rundown: open repo for show %s: %v", show.ID, err)
		}
	}

	s.publish(ctx, show.ID, realtime.StreamShow)

	return map[string]any{
		"show":     showPayload(show),
		"member":   memberPayload(director),
		"joinCode": joinCode,
	}, nil
}

func (s *Service) GetShow(ctx context.Context, showID string) (map[string]any, error) {
	show, err := s.store.GetShow(ctx, showID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"show": showPayload(show)}, nil
}

// JoinShow seats a participant in a show, deriving their access role from
// the department. Re-joins merge field-wise and never clear presence.
func (s *Service) JoinShow(ctx context.Context, session Session, showID string, input JoinShowInput) (map[string]any, error) {
	show, err := s.store.GetShow(ctx, showID)
	if err != nil {
		return nil, err
	}

	dept := cue.Department(input.Department)
	if input.Department != "" && !cue.ValidDepartment(dept) {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown department", nil)
	}
	if dept == cue.DeptCustom && strings.TrimSpace(input.CustomDeptLabel) == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "customDeptLabel is required for CUSTOM", nil)
	}

	_, memberErr := s.store.GetMember(ctx, showID, session.ParticipantID)
	firstJoin := memberErr != nil
	if firstJoin {
		// First-time joins must pick a desk and present the code; returning
		// members are already on the roster and may merge partial fields.
		if input.Department == "" {
			return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "department is required to join", nil)
		}
		if show.JoinCodeHash != "" {
			if bcrypt.CompareHashAndPassword([]byte(show.JoinCodeHash), []byte(input.JoinCode)) != nil {
				return nil, domainError(http.StatusForbidden, "BAD_JOIN_CODE", "Join code does not match", nil)
			}
		}
	}

	member := store.Member{
		ShowID:        showID,
		ParticipantID: session.ParticipantID,
		DisplayName:   strings.TrimSpace(input.DisplayName),
		Department:    dept,
		DeviceID:      input.DeviceID,
	}
	if member.DisplayName == "" {
		member.DisplayName = session.DisplayName
	}
	if input.Department != "" {
		member.AccessRole = cue.DeriveAccessRole(dept)
	}
	if label := strings.TrimSpace(input.CustomDeptLabel); label != "" {
		member.CustomDeptLabel = &label
	}

	saved, err := s.store.UpsertMember(ctx, member)
	if err != nil {
		return nil, err
	}

	if input.DeviceID != "" {
		if err := s.presence.MarkOnline(ctx, showID, session.ParticipantID, input.DeviceID); err != nil {
			log.Printf("presence: mark online on join: %v", err)
		}
	}

	s.publish(ctx, showID, realtime.StreamMembers)
	return map[string]any{"member": memberPayload(saved)}, nil
}

// Members returns the roster with live presence merged in.
func (s *Service) Members(ctx context.Context, showID string) (map[string]any, error) {
	roster, err := s.memberPresences(ctx, showID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(roster))
	for _, mp := range roster {
		items = append(items, memberPresencePayload(mp))
	}
	return map[string]any{"members": items}, nil
}

func (s *Service) memberPresences(ctx context.Context, showID string) ([]view.MemberPresence, error) {
	members, err := s.store.ListMembers(ctx, showID)
	if err != nil {
		return nil, err
	}
	statuses, err := s.presence.List(ctx, showID)
	if err != nil {
		log.Printf("presence: list for show %s: %v", showID, err)
		statuses = map[string]presence.Status{}
	}

	roster := make([]view.MemberPresence, 0, len(members))
	for _, m := range members {
		roster = append(roster, view.MemberPresence{Member: m, Presence: statuses[m.ParticipantID]})
	}
	return roster, nil
}

// Heartbeat re-marks a member online. Presence has no TTL; stale entries are
// a consumer-side judgment, never server-side expiry.
func (s *Service) Heartbeat(ctx context.Context, session Session, showID, deviceID string) error {
	if _, err := s.store.GetMember(ctx, showID, session.ParticipantID); err != nil {
		return err
	}
	if err := s.presence.MarkOnline(ctx, showID, session.ParticipantID, deviceID); err != nil {
		return err
	}
	s.publish(ctx, showID, realtime.StreamMembers)
	return nil
}

// Goodbye marks a member offline. Best-effort: failures are logged, never
// surfaced, because teardown paths cannot retry.
func (s *Service) Goodbye(ctx context.Context, session Session, showID string) {
	if err := s.presence.MarkOffline(ctx, showID, session.ParticipantID); err != nil {
		log.Printf("presence: mark offline: %v", err)
		return
	}
	s.publish(ctx, showID, realtime.StreamMembers)
}

func (s *Service) CreateCue(ctx context.Context, session Session, showID string, input CreateCueInput) (map[string]any, error) {
	if _, err := s.store.GetShow(ctx, showID); err != nil {
		return nil, err
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title is required", nil)
	}
	cueType := cue.Type(input.CueType)
	if !cue.ValidType(cueType) {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown cue type", nil)
	}
	priority := cue.Priority(input.Priority)
	if input.Priority == "" {
		priority = cue.PriorityMedium
	}
	if !cue.ValidPriority(priority) {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown priority", nil)
	}

	c := store.Cue{
		ID:              util.NewID("cue"),
		ShowID:          showID,
		Type:            cueType,
		Title:           title,
		Details:         input.Details,
		RawTargets:      input.Targets,
		Priority:        priority,
		Status:          cue.StatusDraft,
		RequiresConfirm: input.RequiresConfirm,
		CreatedBy:       session.ParticipantID,
	}
	if len(c.RawTargets) == 0 {
		c.RawTargets = json.RawMessage(`{}`)
	}
	c.Targets = cue.ParseTargets(c.RawTargets)

	if err := s.store.InsertCue(ctx, c); err != nil {
		return nil, err
	}

	s.appendEvent(ctx, showID, session, store.EventCueCreated, map[string]any{
		"cueId": c.ID,
		"title": c.Title,
	})
	if s.search != nil {
		s.search.IndexCue(search.CueRecord{
			ID: c.ID, Title: c.Title, Details: c.Details,
			ShowID: showID, Status: string(c.Status), Priority: string(c.Priority),
		})
	}
	s.commitRundown(ctx, showID, session.DisplayName, fmt.Sprintf("Add cue %q", c.Title))
	s.publish(ctx, showID, realtime.StreamCues)

	return map[string]any{"cue": cuePayload(c)}, nil
}

func (s *Service) ListCues(ctx context.Context, showID string) (map[string]any, error) {
	cues, err := s.store.ListCues(ctx, showID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(cues))
	for _, c := range cues {
		items = append(items, cuePayload(c))
	}
	return map[string]any{"cues": items}, nil
}

// TransitionCue moves a cue along the lifecycle. GO on a CRITICAL cue needs
// the caller's explicit confirmCritical; the transition table itself never
// looks at priority. Concurrent valid transitions resolve last-write-wins.
func (s *Service) TransitionCue(ctx context.Context, session Session, showID, cueID string, input TransitionInput) (map[string]any, error) {
	c, err := s.store.GetCue(ctx, showID, cueID)
	if err != nil {
		return nil, err
	}

	to := cue.Status(input.To)
	if !cue.ValidStatus(to) {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown status", nil)
	}
	if !cue.CanTransition(c.Status, to) {
		return nil, domainError(http.StatusConflict, "INVALID_TRANSITION",
			fmt.Sprintf("cannot move cue from %s to %s", c.Status, to), nil)
	}
	if to == cue.StatusGo && c.Priority == cue.PriorityCritical && !input.ConfirmCritical {
		return nil, domainError(http.StatusConflict, "CONFIRM_REQUIRED",
			"critical cues need confirmCritical to fire", nil)
	}

	var goAt *time.Time
	if to == cue.StatusGo {
		now := time.Now().UTC()
		goAt = &now
	}
	if err := s.store.UpdateCueStatus(ctx, showID, cueID, to, goAt); err != nil {
		return nil, err
	}

	s.appendEvent(ctx, showID, session, store.EventCueStatus, map[string]any{
		"cueId": cueID,
		"from":  string(c.Status),
		"to":    string(to),
	})
	if s.search != nil {
		s.search.IndexCue(search.CueRecord{
			ID: c.ID, Title: c.Title, Details: c.Details,
			ShowID: showID, Status: string(to), Priority: string(c.Priority),
		})
	}
	s.commitRundown(ctx, showID, session.DisplayName, fmt.Sprintf("Cue %q to %s", c.Title, to))
	s.publish(ctx, showID, realtime.StreamCues)

	c.Status = to
	// Leaving GO keeps the existing stamp; only entering GO writes a new one.
	if goAt != nil {
		c.GoAt = goAt
	}
	return map[string]any{"cue": cuePayload(c)}, nil
}

// Ack records "seen". Repeats are idempotent; the timestamp moves forward.
func (s *Service) Ack(ctx context.Context, session Session, showID, cueID string) error {
	if _, err := s.store.GetCue(ctx, showID, cueID); err != nil {
		return err
	}
	if err := s.store.UpsertAck(ctx, store.Ack{CueID: cueID, MemberID: session.ParticipantID}); err != nil {
		return err
	}
	s.publish(ctx, showID, realtime.StreamCues)
	return nil
}

func (s *Service) Confirm(ctx context.Context, session Session, showID, cueID string) error {
	if _, err := s.store.GetCue(ctx, showID, cueID); err != nil {
		return err
	}
	if err := s.store.UpsertConfirm(ctx, store.Confirm{CueID: cueID, MemberID: session.ParticipantID}); err != nil {
		return err
	}
	s.publish(ctx, showID, realtime.StreamCues)
	return nil
}

// Cant flags a cue the member cannot execute. Every refusal appends its own
// event; the note also overwrites the cue's details so the latest reason is
// what the rails show.
func (s *Service) Cant(ctx context.Context, session Session, showID, cueID, note string) error {
	c, err := s.store.GetCue(ctx, showID, cueID)
	if err != nil {
		return err
	}

	member, err := s.store.GetMember(ctx, showID, session.ParticipantID)
	if err != nil {
		return err
	}

	s.appendEvent(ctx, showID, session, store.EventCueCant, map[string]any{
		"cueId":      cueID,
		"note":       note,
		"department": string(member.Department),
	})
	if note != "" {
		if err := s.store.UpdateCueDetails(ctx, showID, cueID, note); err != nil {
			return err
		}
	}

	if s.probe != nil {
		s.probe.Record("cant", showID, fmt.Sprintf("%s refused %q", member.DisplayName, c.Title))
	}
	if s.notifier != nil && s.notifier.IsConfigured() && s.cfg.NotifyEmail != "" {
		show, showErr := s.store.GetShow(ctx, showID)
		if showErr == nil {
			go func() {
				if err := s.notifier.SendRefusalNotification(
					s.cfg.NotifyEmail, show.Name, c.Title,
					member.DisplayName, string(member.Department), note,
				); err != nil {
					log.Printf("notify: refusal email: %v", err)
				}
			}()
		}
	}

	s.publish(ctx, showID, realtime.StreamCues)
	return nil
}

// Rails computes the member-filtered standby/go rails server-side, for
// clients that poll instead of holding a feed open.
func (s *Service) Rails(ctx context.Context, showID string, filter view.Filter) (map[string]any, error) {
	cues, err := s.store.ListCues(ctx, showID)
	if err != nil {
		return nil, err
	}
	rails := view.BuildRails(cues, filter)
	return map[string]any{
		"standby": cuePayloads(rails.Standby),
		"go":      cuePayloads(rails.Go),
	}, nil
}

func (s *Service) Events(ctx context.Context, showID, eventType string, limit int) (map[string]any, error) {
	if _, err := s.store.GetShow(ctx, showID); err != nil {
		return nil, err
	}
	events, err := s.store.ListShowEvents(ctx, showID, eventType, limit)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(events))
	for _, e := range events {
		items = append(items, map[string]any{
			"id":        e.ID,
			"type":      e.Type,
			"payload":   e.Payload,
			"createdAt": e.CreatedAt,
			"createdBy": e.CreatedBy,
		})
	}
	return map[string]any{"events": items}, nil
}

func (s *Service) Search(q search.Query) (search.Response, error) {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: q.Text}, nil
	}
	return s.search.Search(q), nil
}

func (s *Service) Export(ctx context.Context, showID, format, department string) (*export.Result, error) {
	if s.exporter == nil {
		return nil, domainError(http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "Export is not configured", nil)
	}
	return s.exporter.Export(ctx, export.Request{
		ShowID:           showID,
		Format:           export.Format(format),
		FilterDepartment: department,
		IncludeEvents:    true,
	})
}

func (s *Service) RundownHistory(ctx context.Context, showID string, limit int) (map[string]any, error) {
	if _, err := s.store.GetShow(ctx, showID); err != nil {
		return nil, err
	}
	if s.rundowns == nil {
		return map[string]any{"history": []rundown.CommitInfo{}}, nil
	}
	history, err := s.rundowns.History(showID, limit)
	if err != nil {
		return nil, err
	}
	return map[string]any{"history": history}, nil
}

// Snapshot assembles the full feed state for one show. Feed connections call
// this on subscribe and after every change notification.
func (s *Service) Snapshot(ctx context.Context, showID string) (view.Snapshot, error) {
	show, err := s.store.GetShow(ctx, showID)
	if err != nil {
		return view.Snapshot{}, err
	}
	roster, err := s.memberPresences(ctx, showID)
	if err != nil {
		return view.Snapshot{}, err
	}
	cues, err := s.store.ListCues(ctx, showID)
	if err != nil {
		return view.Snapshot{}, err
	}
	return view.Snapshot{Show: show, Members: roster, Cues: cues}, nil
}

func (s *Service) ProbeReport() []probe.Entry {
	if s.probe == nil {
		return []probe.Entry{}
	}
	return s.probe.Report()
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) PresencePing(ctx context.Context) error {
	return s.presence.Ping(ctx)
}

func (s *Service) HeartbeatInterval() time.Duration {
	return s.cfg.HeartbeatInterval
}

func (s *Service) appendEvent(ctx context.Context, showID string, session Session, eventType string, payload map[string]any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Printf("events: marshal %s payload: %v", eventType, err)
		return
	}
	if err := s.store.InsertShowEvent(ctx, store.ShowEvent{
		ShowID:    showID,
		Type:      eventType,
		Payload:   raw,
		CreatedBy: session.ParticipantID,
	}); err != nil {
		log.Printf("events: append %s for show %s: %v", eventType, showID, err)
		return
	}
	if s.search != nil && eventType == store.EventCueCant {
		note, _ := payload["note"].(string)
		cueID, _ := payload["cueId"].(string)
		s.search.IndexEvent(search.EventRecord{
			ID:     util.NewID("evt"),
			Type:   eventType,
			Note:   note,
			CueID:  cueID,
			ShowID: showID,
		})
	}
}

// commitRundown records the current cue list in the show's git history.
// Best-effort: the rundown trail must never fail a cue operation.
func (s *Service) commitRundown(ctx context.Context, showID, author, message string) {
	if s.rundowns == nil {
		return
	}
	show, err := s.store.GetShow(ctx, showID)
	if err != nil {
		log.Printf("rundown: load show %s: %v", showID, err)
		return
	}
	cues, err := s.store.ListCues(ctx, showID)
	if err != nil {
		log.Printf("rundown: load cues for show %s: %v", showID, err)
		return
	}

	snap := rundown.Snapshot{ShowID: show.ID, Name: show.Name, Venue: show.Venue}
	for _, c := range cues {
		snap.Cues = append(snap.Cues, rundown.Entry{
			ID:       c.ID,
			Type:     string(c.Type),
			Title:    c.Title,
			Details:  c.Details,
			Targets:  c.RawTargets,
			Priority: string(c.Priority),
			Status:   string(c.Status),
			GoAt:     c.GoAt,
		})
	}

	if err := s.rundowns.EnsureShowRepo(showID, snap, author); err != nil {
		log.Printf("rundown: ensure repo for show %s: %v", showID, err)
		return
	}
	if _, err := s.rundowns.CommitSnapshot(showID, snap, author, message); err != nil {
		log.Printf("rundown: commit for show %s: %v", showID, err)
	}
}

func (s *Service) publish(ctx context.Context, showID string, stream realtime.Stream) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, realtime.Change{ShowID: showID, Stream: stream}); err != nil {
		log.Printf("bus: publish %s change for show %s: %v", stream, showID, err)
		if s.probe != nil {
			s.probe.Record("bus", showID, fmt.Sprintf("publish failed: %v", err))
		}
	}
}

func showPayload(show store.Show) map[string]any {
	return map[string]any{
		"id":        show.ID,
		"name":      show.Name,
		"venue":     show.Venue,
		"status":    show.Status,
		"createdAt": show.CreatedAt,
		"createdBy": show.CreatedBy,
	}
}

func memberPayload(m store.Member) map[string]any {
	payload := map[string]any{
		"showId":        m.ShowID,
		"participantId": m.ParticipantID,
		"displayName":   m.DisplayName,
		"department":    m.Department,
		"accessRole":    m.AccessRole,
		"deviceId":      m.DeviceID,
		"joinedAt":      m.JoinedAt,
		"updatedAt":     m.UpdatedAt,
	}
	if m.CustomDeptLabel != nil {
		payload["customDeptLabel"] = *m.CustomDeptLabel
	}
	return payload
}

func memberPresencePayload(mp view.MemberPresence) map[string]any {
	payload := memberPayload(mp.Member)
	payload["online"] = mp.Presence.Online
	if !mp.Presence.LastSeenAt.IsZero() {
		payload["lastSeenAt"] = mp.Presence.LastSeenAt
	}
	return payload
}

func cuePayload(c store.Cue) map[string]any {
	return map[string]any{
		"id":              c.ID,
		"showId":          c.ShowID,
		"cueType":         c.Type,
		"title":           c.Title,
		"details":         c.Details,
		"targets":         c.Targets.Raw(),
		"priority":        c.Priority,
		"status":          c.Status,
		"requiresConfirm": c.RequiresConfirm,
		"createdAt":       c.CreatedAt,
		"createdBy":       c.CreatedBy,
		"goAt":            c.GoAt,
	}
}

func cuePayloads(cues []store.Cue) []map[string]any {
	items := make([]map[string]any, 0, len(cues))
	for _, c := range cues {
		items = append(items, cuePayload(c))
	}
	return items
}
