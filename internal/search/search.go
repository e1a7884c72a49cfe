package search

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultCue   ResultType = "cue"
	ResultEvent ResultType = "event"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type    ResultType `json:"type"`
	ID      string     `json:"id"`
	Title   string     `json:"title"`
	Snippet string     `json:"snippet"`
	CueID   string     `json:"cueId,omitempty"`
	ShowID  string     `json:"showId"`
	Status  string     `json:"status,omitempty"`
}

// Query describes a search request.
type Query struct {
	Text         string
	FilterType   ResultType // empty = all types
	FilterShowID string
	Limit        int
	Offset       int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer can push entities into a search index.
type Indexer interface {
	IndexCue(c CueRecord) error
	IndexEvent(e EventRecord) error
	DeleteCue(id string) error
}

// CueRecord is the data we index for a cue.
type CueRecord struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Details  string `json:"details"`
	ShowID   string `json:"showId"`
	Status   string `json:"status"`
	Priority string `json:"priority"`
}

// EventRecord is the data we index for a show event. Note carries the
// refusal reason for CANT events; other event types index their type only.
type EventRecord struct {
	ID     string `json:"id"`
	Type   string `json:"eventType"`
	Note   string `json:"note"`
	CueID  string `json:"cueId"`
	ShowID string `json:"showId"`
}
