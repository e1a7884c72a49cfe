package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true. If Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search executes a UNION ALL query across cues and show_events using
// plainto_tsquery and ts_rank, with ts_headline for snippets.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	tsQuery := "plainto_tsquery('english', $1)"
	args := []any{q.Text}
	argN := 2

	var subQueries []string

	if q.FilterType == "" || q.FilterType == ResultCue {
		cueWhere := "c.fts @@ " + tsQuery
		if q.FilterShowID != "" {
			cueWhere += fmt.Sprintf(" AND c.show_id = $%d", argN)
			args = append(args, q.FilterShowID)
			argN++
		}
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'cue'::text AS type, c.id, c.title,
				ts_headline('english', coalesce(c.details, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				c.id AS cue_id, c.show_id, c.status,
				ts_rank(c.fts, %s) AS rank
			FROM cues c
			WHERE %s`, tsQuery, tsQuery, cueWhere))
	}

	if q.FilterType == "" || q.FilterType == ResultEvent {
		eventWhere := "e.fts @@ " + tsQuery
		if q.FilterShowID != "" {
			eventWhere += fmt.Sprintf(" AND e.show_id = $%d", argN)
			args = append(args, q.FilterShowID)
			argN++
		}
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'event'::text AS type, e.id::text, e.type AS title,
				ts_headline('english', coalesce(e.payload->>'note', ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				coalesce(e.payload->>'cueId', '') AS cue_id, e.show_id,
				''::text AS status,
				ts_rank(e.fts, %s) AS rank
			FROM show_events e
			WHERE %s`, tsQuery, tsQuery, eventWhere))
	}

	if len(subQueries) == 0 {
		return nil, 0, nil
	}

	countSQL := fmt.Sprintf("SELECT count(*) FROM (%s) sub",
		strings.Join(subQueries, " UNION ALL "))

	dataSQL := fmt.Sprintf(`SELECT type, id, title, snippet, cue_id, show_id, status
		FROM (%s) sub
		ORDER BY rank DESC
		LIMIT %d OFFSET %d`,
		strings.Join(subQueries, " UNION ALL "),
		limit, offset)

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var typ string
		if err := rows.Scan(&typ, &r.ID, &r.Title, &r.Snippet, &r.CueID, &r.ShowID, &r.Status); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Type = ResultType(typ)
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns all searchable records for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]CueRecord, []EventRecord, error) {
	cueRows, err := p.db.QueryContext(ctx, `
		SELECT id, title, coalesce(details, ''), show_id, status, priority
		FROM cues
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load cues: %w", err)
	}
	defer cueRows.Close()

	cues := make([]CueRecord, 0)
	for cueRows.Next() {
		var c CueRecord
		if err := cueRows.Scan(&c.ID, &c.Title, &c.Details, &c.ShowID, &c.Status, &c.Priority); err != nil {
			return nil, nil, fmt.Errorf("scan cue: %w", err)
		}
		cues = append(cues, c)
	}
	if err := cueRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate cues: %w", err)
	}

	eventRows, err := p.db.QueryContext(ctx, `
		SELECT id::text, type, coalesce(payload->>'note', ''), coalesce(payload->>'cueId', ''), show_id
		FROM show_events
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load events: %w", err)
	}
	defer eventRows.Close()

	events := make([]EventRecord, 0)
	for eventRows.Next() {
		var e EventRecord
		if err := eventRows.Scan(&e.ID, &e.Type, &e.Note, &e.CueID, &e.ShowID); err != nil {
			return nil, nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	if err := eventRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate events: %w", err)
	}

	return cues, events, nil
}
