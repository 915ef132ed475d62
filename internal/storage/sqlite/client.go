package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/voicetutor/backend/internal/knowledge/sources/internaldocs"
	"github.com/voicetutor/backend/internal/storage/models"
	"github.com/voicetutor/backend/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) Ping() error {
	return c.db.Ping()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT UNIQUE NOT NULL,
		preferred_sources TEXT,
		knowledge_level TEXT NOT NULL DEFAULT 'beginner',
		interests TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_users_username ON users(username);

	CREATE TABLE IF NOT EXISTS interactions (
		id TEXT PRIMARY KEY,
		user_id TEXT,
		username TEXT NOT NULL,
		session_id TEXT,
		timestamp INTEGER NOT NULL,
		input_text TEXT,
		input_audio_duration REAL,
		agent_response TEXT NOT NULL,
		response_audio_url TEXT,
		metadata TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_interactions_user_time ON interactions(username, timestamp);

	CREATE TABLE IF NOT EXISTS weekly_summaries (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		period_start INTEGER NOT NULL,
		period_end INTEGER NOT NULL,
		summary_text TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		UNIQUE(username, period_start, period_end)
	);
	CREATE INDEX IF NOT EXISTS idx_summaries_username ON weekly_summaries(username);

	CREATE TABLE IF NOT EXISTS achievements (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT,
		date TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_achievements_username ON achievements(username);

	CREATE TABLE IF NOT EXISTS internal_documents (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		content TEXT NOT NULL,
		tags TEXT,
		source TEXT NOT NULL,
		url TEXT UNIQUE NOT NULL,
		complexity INTEGER NOT NULL DEFAULT 1,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_documents_source ON internal_documents(source);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func (c *Client) UpsertUser(user *models.User) error {
	sources, _ := json.Marshal(user.PreferredSources)
	interests, _ := json.Marshal(user.Interests)

	query := `
		INSERT INTO users (id, username, preferred_sources, knowledge_level, interests, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(username) DO UPDATE SET
			preferred_sources = excluded.preferred_sources,
			knowledge_level = excluded.knowledge_level,
			interests = excluded.interests
	`

	_, err := c.db.Exec(
		query,
		user.ID,
		user.Username,
		string(sources),
		user.KnowledgeLevel,
		string(interests),
		user.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}

	return nil
}

func (c *Client) GetUser(username string) (*models.User, error) {
	query := `SELECT id, username, preferred_sources, knowledge_level, interests, created_at FROM users WHERE username = ?`

	var user models.User
	var sources, interests sql.NullString
	var createdAt int64

	err := c.db.QueryRow(query, username).Scan(
		&user.ID,
		&user.Username,
		&sources,
		&user.KnowledgeLevel,
		&interests,
		&createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if sources.Valid && sources.String != "" {
		json.Unmarshal([]byte(sources.String), &user.PreferredSources)
	}
	if interests.Valid && interests.String != "" {
		json.Unmarshal([]byte(interests.String), &user.Interests)
	}
	user.CreatedAt = time.Unix(createdAt, 0)

	return &user, nil
}

func (c *Client) InsertInteraction(record *models.Interaction) error {
	metadata, _ := json.Marshal(record.Metadata)

	query := `
		INSERT INTO interactions (id, user_id, username, session_id, timestamp, input_text,
			input_audio_duration, agent_response, response_audio_url, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.Exec(
		query,
		record.ID,
		record.UserID,
		record.Username,
		record.SessionID,
		record.Timestamp.Unix(),
		record.InputText,
		record.InputAudioDuration,
		record.AgentResponse,
		record.ResponseAudioURL,
		string(metadata),
	)
	if err != nil {
		return fmt.Errorf("failed to insert interaction: %w", err)
	}

	logger.Debug("Interaction recorded",
		zap.String("interaction_id", record.ID),
		zap.String("username", record.Username),
	)

	return nil
}

func (c *Client) GetRecentInteractions(username string, limit int) ([]models.Interaction, error) {
	query := `
		SELECT id, username, session_id, timestamp, input_text, agent_response, metadata
		FROM interactions
		WHERE username = ?
		ORDER BY timestamp DESC
		LIMIT ?
	`

	rows, err := c.db.Query(query, username, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent interactions: %w", err)
	}
	defer rows.Close()

	return scanInteractions(rows)
}

// GetInteractionsForPeriod returns a user's interactions with a
// timestamp inside [start, end] in chronological order. end is treated
// as inclusive through the end of that day.
func (c *Client) GetInteractionsForPeriod(username string, start, end time.Time) ([]models.Interaction, error) {
	endOfDay := end.AddDate(0, 0, 1)

	query := `
		SELECT id, username, session_id, timestamp, input_text, agent_response, metadata
		FROM interactions
		WHERE username = ? AND timestamp >= ? AND timestamp < ?
		ORDER BY timestamp ASC
	`

	rows, err := c.db.Query(query, username, start.Unix(), endOfDay.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to get interactions for period: %w", err)
	}
	defer rows.Close()

	return scanInteractions(rows)
}

// GetActiveUsernames lists the distinct usernames with at least one
// interaction in [start, end], for the scheduled summary run.
func (c *Client) GetActiveUsernames(start, end time.Time) ([]string, error) {
	endOfDay := end.AddDate(0, 0, 1)

	query := `
		SELECT DISTINCT username FROM interactions
		WHERE timestamp >= ? AND timestamp < ?
	`

	rows, err := c.db.Query(query, start.Unix(), endOfDay.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to list active usernames: %w", err)
	}
	defer rows.Close()

	var usernames []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		usernames = append(usernames, name)
	}

	return usernames, rows.Err()
}

func scanInteractions(rows *sql.Rows) ([]models.Interaction, error) {
	var records []models.Interaction
	for rows.Next() {
		var r models.Interaction
		var timestamp int64
		var metadata sql.NullString

		err := rows.Scan(&r.ID, &r.Username, &r.SessionID, &timestamp, &r.InputText, &r.AgentResponse, &metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		r.Timestamp = time.Unix(timestamp, 0)
		if metadata.Valid && metadata.String != "" {
			json.Unmarshal([]byte(metadata.String), &r.Metadata)
		}
		records = append(records, r)
	}

	return records, rows.Err()
}

// CreateWeeklySummaryIfAbsent persists a summary unless one already
// exists for the same (username, period). The unique index plus INSERT
// OR IGNORE makes concurrent duplicate requests converge on a single
// row. It returns the row that ended up stored.
func (c *Client) CreateWeeklySummaryIfAbsent(summary *models.WeeklySummary) (*models.WeeklySummary, error) {
	query := `
		INSERT OR IGNORE INTO weekly_summaries (id, username, period_start, period_end, summary_text, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.Exec(
		query,
		summary.ID,
		summary.Username,
		summary.PeriodStart.Unix(),
		summary.PeriodEnd.Unix(),
		summary.SummaryText,
		summary.CreatedAt.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert weekly summary: %w", err)
	}

	stored, err := c.GetWeeklySummary(summary.Username, summary.PeriodStart, summary.PeriodEnd)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("weekly summary missing after insert")
	}

	return stored, nil
}

func (c *Client) GetWeeklySummary(username string, periodStart, periodEnd time.Time) (*models.WeeklySummary, error) {
	query := `
		SELECT id, username, period_start, period_end, summary_text, created_at
		FROM weekly_summaries
		WHERE username = ? AND period_start = ? AND period_end = ?
	`

	var s models.WeeklySummary
	var start, end, createdAt int64

	err := c.db.QueryRow(query, username, periodStart.Unix(), periodEnd.Unix()).Scan(
		&s.ID,
		&s.Username,
		&start,
		&end,
		&s.SummaryText,
		&createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get weekly summary: %w", err)
	}

	s.PeriodStart = time.Unix(start, 0)
	s.PeriodEnd = time.Unix(end, 0)
	s.CreatedAt = time.Unix(createdAt, 0)

	return &s, nil
}

func (c *Client) InsertAchievement(a *models.Achievement) error {
	query := `INSERT INTO achievements (id, username, title, description, date, created_at) VALUES (?, ?, ?, ?, ?, ?)`

	_, err := c.db.Exec(query, a.ID, a.Username, a.Title, a.Description, a.Date, a.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert achievement: %w", err)
	}

	return nil
}

func (c *Client) GetAchievements(username string) ([]models.Achievement, error) {
	query := `
		SELECT id, username, title, description, date, created_at
		FROM achievements
		WHERE username = ?
		ORDER BY created_at DESC
	`

	rows, err := c.db.Query(query, username)
	if err != nil {
		return nil, fmt.Errorf("failed to get achievements: %w", err)
	}
	defer rows.Close()

	var achievements []models.Achievement
	for rows.Next() {
		var a models.Achievement
		var createdAt int64

		err := rows.Scan(&a.ID, &a.Username, &a.Title, &a.Description, &a.Date, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		a.CreatedAt = time.Unix(createdAt, 0)
		achievements = append(achievements, a)
	}

	return achievements, rows.Err()
}

func (c *Client) UpsertInternalDocument(doc *models.InternalDocument) error {
	tags, _ := json.Marshal(doc.Tags)

	query := `
		INSERT INTO internal_documents (id, title, content, tags, source, url, complexity, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET
			title = excluded.title,
			content = excluded.content,
			tags = excluded.tags,
			complexity = excluded.complexity,
			updated_at = excluded.updated_at
	`

	_, err := c.db.Exec(
		query,
		doc.ID,
		doc.Title,
		doc.Content,
		string(tags),
		doc.Source,
		doc.URL,
		doc.Complexity,
		doc.CreatedAt.Unix(),
		doc.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}

	logger.Debug("Internal document stored", zap.String("doc_id", doc.ID), zap.String("url", doc.URL))
	return nil
}

// ListDocuments serves the ingested document table to the internal-docs
// source as one of its sub-sources.
func (c *Client) ListDocuments(ctx context.Context) ([]internaldocs.Document, error) {
	query := `SELECT title, content, tags, source, url, complexity, updated_at FROM internal_documents`

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []internaldocs.Document
	for rows.Next() {
		var d internaldocs.Document
		var tags sql.NullString
		var updatedAt int64

		err := rows.Scan(&d.Title, &d.Content, &tags, &d.Source, &d.URL, &d.Complexity, &updatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		if tags.Valid && tags.String != "" {
			json.Unmarshal([]byte(tags.String), &d.Tags)
		}
		d.UpdatedAt = time.Unix(updatedAt, 0).UTC().Format(time.RFC3339)
		docs = append(docs, d)
	}

	return docs, rows.Err()
}
