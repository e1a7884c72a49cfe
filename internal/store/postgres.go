package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cuemesh/api/internal/cue"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) CreateParticipant(ctx context.Context, p Participant) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO participants (id, display_name)
		VALUES ($1, $2)
	`, p.ID, p.DisplayName)
	if err != nil {
		return fmt.Errorf("insert participant: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetParticipant(ctx context.Context, id string) (Participant, error) {
	var p Participant
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, created_at FROM participants WHERE id=$1
	`, id).Scan(&p.ID, &p.DisplayName, &p.CreatedAt)
	if err != nil {
		return Participant{}, err
	}
	return p, nil
}

// CreateShowWithDirector creates a show and its first (director) member in a
// single transaction: both documents exist or neither does.
func (s *PostgresStore) CreateShowWithDirector(ctx context.Context, show Show, director Member) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create show tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO shows (id, name, venue, status, join_code_hash, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, show.ID, show.Name, show.Venue, show.Status, show.JoinCodeHash, show.CreatedBy); err != nil {
		return fmt.Errorf("insert show %s: %w", show.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO members (show_id, participant_id, display_name, department, access_role, custom_dept_label, device_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, show.ID, director.ParticipantID, director.DisplayName, director.Department, director.AccessRole, director.CustomDeptLabel, director.DeviceID); err != nil {
		return fmt.Errorf("insert director member for show %s: %w", show.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create show %s: %w", show.ID, err)
	}
	return nil
}

func (s *PostgresStore) GetShow(ctx context.Context, showID string) (Show, error) {
	var show Show
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, venue, status, join_code_hash, created_at, created_by
		FROM shows WHERE id=$1
	`, showID).Scan(&show.ID, &show.Name, &show.Venue, &show.Status, &show.JoinCodeHash, &show.CreatedAt, &show.CreatedBy)
	if err != nil {
		return Show{}, err
	}
	return show, nil
}

// UpsertMember creates or merges a member record keyed by (show,
// participant). The merge is field-wise: empty incoming fields keep the
// stored value, so a re-join cannot blank out what another device wrote.
// Presence is not stored here at all, which is what guarantees a join can
// never clear a concurrent heartbeat.
func (s *PostgresStore) UpsertMember(ctx context.Context, m Member) (Member, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO members (show_id, participant_id, display_name, department, access_role, custom_dept_label, device_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (show_id, participant_id) DO UPDATE SET
			display_name = COALESCE(NULLIF(EXCLUDED.display_name, ''), members.display_name),
			department = COALESCE(NULLIF(EXCLUDED.department, ''), members.department),
			access_role = COALESCE(NULLIF(EXCLUDED.access_role, ''), members.access_role),
			custom_dept_label = COALESCE(EXCLUDED.custom_dept_label, members.custom_dept_label),
			device_id = COALESCE(NULLIF(EXCLUDED.device_id, ''), members.device_id),
			updated_at = NOW()
		RETURNING show_id, participant_id, display_name, department, access_role, custom_dept_label, device_id, joined_at, updated_at
	`, m.ShowID, m.ParticipantID, m.DisplayName, m.Department, m.AccessRole, m.CustomDeptLabel, m.DeviceID)

	var out Member
	if err := row.Scan(&out.ShowID, &out.ParticipantID, &out.DisplayName, &out.Department, &out.AccessRole, &out.CustomDeptLabel, &out.DeviceID, &out.JoinedAt, &out.UpdatedAt); err != nil {
		return Member{}, fmt.Errorf("upsert member for show %s: %w", m.ShowID, err)
	}
	return out, nil
}

func (s *PostgresStore) GetMember(ctx context.Context, showID, participantID string) (Member, error) {
	var m Member
	err := s.db.QueryRowContext(ctx, `
		SELECT show_id, participant_id, display_name, department, access_role, custom_dept_label, device_id, joined_at, updated_at
		FROM members WHERE show_id=$1 AND participant_id=$2
	`, showID, participantID).Scan(&m.ShowID, &m.ParticipantID, &m.DisplayName, &m.Department, &m.AccessRole, &m.CustomDeptLabel, &m.DeviceID, &m.JoinedAt, &m.UpdatedAt)
	if err != nil {
		return Member{}, err
	}
	return m, nil
}

func (s *PostgresStore) ListMembers(ctx context.Context, showID string) ([]Member, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT show_id, participant_id, display_name, department, access_role, custom_dept_label, device_id, joined_at, updated_at
		FROM members WHERE show_id=$1 ORDER BY joined_at
	`, showID)
	if err != nil {
		return nil, fmt.Errorf("list members for show %s: %w", showID, err)
	}
	defer rows.Close()

	var members []Member
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.ShowID, &m.ParticipantID, &m.DisplayName, &m.Department, &m.AccessRole, &m.CustomDeptLabel, &m.DeviceID, &m.JoinedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (s *PostgresStore) InsertCue(ctx context.Context, c Cue) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cues (id, show_id, cue_type, title, details, targets, priority, status, requires_confirm, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, c.ID, c.ShowID, c.Type, c.Title, c.Details, string(c.RawTargets), c.Priority, c.Status, c.RequiresConfirm, c.CreatedBy)
	if err != nil {
		return fmt.Errorf("insert cue for show %s: %w", c.ShowID, err)
	}
	return nil
}

func (s *PostgresStore) GetCue(ctx context.Context, showID, cueID string) (Cue, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, show_id, cue_type, title, details, targets, priority, status, requires_confirm, created_at, created_by, go_at
		FROM cues WHERE show_id=$1 AND id=$2
	`, showID, cueID)
	return scanCue(row)
}

// ListCues returns a show's cues newest-first. Target shapes are normalized
// here, at the read boundary, and nowhere else.
func (s *PostgresStore) ListCues(ctx context.Context, showID string) ([]Cue, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, show_id, cue_type, title, details, targets, priority, status, requires_confirm, created_at, created_by, go_at
		FROM cues WHERE show_id=$1 ORDER BY created_at DESC
	`, showID)
	if err != nil {
		return nil, fmt.Errorf("list cues for show %s: %w", showID, err)
	}
	defer rows.Close()

	var cues []Cue
	for rows.Next() {
		c, err := scanCue(rows)
		if err != nil {
			return nil, err
		}
		cues = append(cues, c)
	}
	return cues, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCue(row rowScanner) (Cue, error) {
	var c Cue
	var rawTargets []byte
	var goAt sql.NullTime
	err := row.Scan(&c.ID, &c.ShowID, &c.Type, &c.Title, &c.Details, &rawTargets, &c.Priority, &c.Status, &c.RequiresConfirm, &c.CreatedAt, &c.CreatedBy, &goAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Cue{}, err
	}
	if err != nil {
		return Cue{}, fmt.Errorf("scan cue: %w", err)
	}
	c.RawTargets = json.RawMessage(rawTargets)
	c.Targets = cue.ParseTargets(c.RawTargets)
	if goAt.Valid {
		t := goAt.Time
		c.GoAt = &t
	}
	return c, nil
}

// UpdateCueStatus writes the new status (and goAt when provided) as a plain
// field update. Concurrent valid transitions from different writers resolve
// last-write-wins; the transition guard runs in the service, per writer.
func (s *PostgresStore) UpdateCueStatus(ctx context.Context, showID, cueID string, status cue.Status, goAt *time.Time) error {
	var err error
	if goAt != nil {
		_, err = s.db.ExecContext(ctx, `
			UPDATE cues SET status=$3, go_at=$4 WHERE show_id=$1 AND id=$2
		`, showID, cueID, status, *goAt)
	} else {
		_, err = s.db.ExecContext(ctx, `
			UPDATE cues SET status=$3 WHERE show_id=$1 AND id=$2
		`, showID, cueID, status)
	}
	if err != nil {
		return fmt.Errorf("update cue %s status for show %s: %w", cueID, showID, err)
	}
	return nil
}

func (s *PostgresStore) UpdateCueDetails(ctx context.Context, showID, cueID, details string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE cues SET details=$3 WHERE show_id=$1 AND id=$2
	`, showID, cueID, details)
	if err != nil {
		return fmt.Errorf("update cue %s details for show %s: %w", cueID, showID, err)
	}
	return nil
}

// UpsertAck records "seen". Re-acking refreshes the timestamp; there is never
// more than one row per (cue, member).
func (s *PostgresStore) UpsertAck(ctx context.Context, ack Ack) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cue_acks (cue_id, member_id, ack_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (cue_id, member_id) DO UPDATE SET ack_at=NOW()
	`, ack.CueID, ack.MemberID)
	if err != nil {
		return fmt.Errorf("upsert ack for cue %s: %w", ack.CueID, err)
	}
	return nil
}

func (s *PostgresStore) UpsertConfirm(ctx context.Context, confirm Confirm) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cue_confirms (cue_id, member_id, confirm_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (cue_id, member_id) DO UPDATE SET confirm_at=NOW()
	`, confirm.CueID, confirm.MemberID)
	if err != nil {
		return fmt.Errorf("upsert confirm for cue %s: %w", confirm.CueID, err)
	}
	return nil
}

func (s *PostgresStore) ListAcks(ctx context.Context, cueID string) ([]Ack, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT cue_id, member_id, ack_at FROM cue_acks WHERE cue_id=$1 ORDER BY ack_at
	`, cueID)
	if err != nil {
		return nil, fmt.Errorf("list acks for cue %s: %w", cueID, err)
	}
	defer rows.Close()

	var acks []Ack
	for rows.Next() {
		var a Ack
		if err := rows.Scan(&a.CueID, &a.MemberID, &a.AckAt); err != nil {
			return nil, fmt.Errorf("scan ack: %w", err)
		}
		acks = append(acks, a)
	}
	return acks, rows.Err()
}

func (s *PostgresStore) ListConfirms(ctx context.Context, cueID string) ([]Confirm, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT cue_id, member_id, confirm_at FROM cue_confirms WHERE cue_id=$1 ORDER BY confirm_at
	`, cueID)
	if err != nil {
		return nil, fmt.Errorf("list confirms for cue %s: %w", cueID, err)
	}
	defer rows.Close()

	var confirms []Confirm
	for rows.Next() {
		var c Confirm
		if err := rows.Scan(&c.CueID, &c.MemberID, &c.ConfirmAt); err != nil {
			return nil, fmt.Errorf("scan confirm: %w", err)
		}
		confirms = append(confirms, c)
	}
	return confirms, rows.Err()
}

// InsertShowEvent appends to the trail. Events are immutable; refusals from
// the same member are distinct rows on purpose.
func (s *PostgresStore) InsertShowEvent(ctx context.Context, event ShowEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO show_events (show_id, type, payload, created_by)
		VALUES ($1, $2, $3, $4)
	`, event.ShowID, event.Type, string(event.Payload), event.CreatedBy)
	if err != nil {
		return fmt.Errorf("insert event for show %s: %w", event.ShowID, err)
	}
	return nil
}

func (s *PostgresStore) ListShowEvents(ctx context.Context, showID, eventType string, limit int) ([]ShowEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > 500 {
		limit = 500
	}
	query := `
		SELECT id, show_id, type, payload, created_at, created_by
		FROM show_events WHERE show_id=$1
	`
	args := []any{showID}
	if eventType != "" {
		query += ` AND type=$2`
		args = append(args, eventType)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d`, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events for show %s: %w", showID, err)
	}
	defer rows.Close()

	var events []ShowEvent
	for rows.Next() {
		var e ShowEvent
		var payload []byte
		if err := rows.Scan(&e.ID, &e.ShowID, &e.Type, &payload, &e.CreatedAt, &e.CreatedBy); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Payload = json.RawMessage(payload)
		events = append(events, e)
	}
	return events, rows.Err()
}
