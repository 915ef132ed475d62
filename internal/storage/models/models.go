package models

import "time"

type User struct {
	ID               string
	Username         string
	PreferredSources []string
	KnowledgeLevel   string
	Interests        []string
	CreatedAt        time.Time
}

// Interaction is one logged user/agent exchange. Records are append
// only: the server assigns the timestamp and nothing mutates or deletes
// them here (retention is handled elsewhere).
type Interaction struct {
	ID                 string
	UserID             string
	Username           string
	SessionID          string
	Timestamp          time.Time
	InputText          string
	InputAudioDuration float64
	AgentResponse      string
	ResponseAudioURL   string
	Metadata           map[string]interface{}
}

// WeeklySummary is the persisted digest for one user and one
// Monday-to-Sunday period. At most one row exists per
// (username, period_start, period_end); once written it is immutable.
type WeeklySummary struct {
	ID          string
	Username    string
	PeriodStart time.Time
	PeriodEnd   time.Time
	SummaryText string
	CreatedAt   time.Time
}

type Achievement struct {
	ID          string
	Username    string
	Title       string
	Description string
	Date        string
	CreatedAt   time.Time
}

// InternalDocument is an ingested document served to the internal-docs
// knowledge source alongside the remote sub-sources.
type InternalDocument struct {
	ID         string
	Title      string
	Content    string
	Tags       []string
	Source     string
	URL        string
	Complexity int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
