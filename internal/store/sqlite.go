package store

import (
	"database/sql"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	// Cascade delete of ratings relies on foreign key enforcement, which
	// SQLite keeps off unless asked per connection.
	if !strings.Contains(dataSourceName, "_foreign_keys") {
		if strings.Contains(dataSourceName, "?") {
			dataSourceName += "&_foreign_keys=on"
		} else {
			dataSourceName += "?_foreign_keys=on"
		}
	}

	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err = store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err = store.migrateSchema(); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS stories (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        universe TEXT NOT NULL,
        what_if TEXT NOT NULL,
        story TEXT NOT NULL,
        word_count INTEGER NOT NULL DEFAULT 0,
        rating INTEGER NOT NULL DEFAULT 0,
        is_public BOOLEAN NOT NULL DEFAULT TRUE,
        share_token TEXT UNIQUE,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );

    CREATE TABLE IF NOT EXISTS ratings (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        story_id INTEGER NOT NULL,
        session_id TEXT NOT NULL,
        rating_value INTEGER NOT NULL CHECK (rating_value BETWEEN 1 AND 5),
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        FOREIGN KEY (story_id) REFERENCES stories (id) ON DELETE CASCADE
    );

    CREATE UNIQUE INDEX IF NOT EXISTS idx_ratings_story_session
        ON ratings (story_id, session_id);
    `
	_, err := s.db.Exec(schema)
	return err
}

// migrateSchema brings databases created by older deployments up to the
// current shape. Only additive, nullable-default column additions are
// allowed here; existing rows are never touched.
func (s *SQLiteStore) migrateSchema() error {
	columns, err := s.tableColumns("stories")
	if err != nil {
		return err
	}

	if _, ok := columns["share_token"]; !ok {
		log.Println("Migrating stories table: adding share_token column")
		if _, err := s.db.Exec("ALTER TABLE stories ADD COLUMN share_token TEXT"); err != nil {
			return fmt.Errorf("failed to add share_token column: %w", err)
		}
		// ALTER TABLE ADD COLUMN cannot carry UNIQUE; the index covers it.
		if _, err := s.db.Exec("CREATE UNIQUE INDEX IF NOT EXISTS idx_stories_share_token ON stories (share_token)"); err != nil {
			return fmt.Errorf("failed to index share_token column: %w", err)
		}
	}

	if _, ok := columns["is_public"]; !ok {
		log.Println("Migrating stories table: adding is_public column")
		if _, err := s.db.Exec("ALTER TABLE stories ADD COLUMN is_public BOOLEAN NOT NULL DEFAULT TRUE"); err != nil {
			return fmt.Errorf("failed to add is_public column: %w", err)
		}
	}

	return nil
}

func (s *SQLiteStore) tableColumns(table string) (map[string]bool, error) {
	rows, err := s.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, fmt.Errorf("failed to inspect table %s: %w", table, err)
	}
	defer rows.Close()

	columns := make(map[string]bool)
	for rows.Next() {
		var (
			cid        int
			name       string
			colType    string
			notNull    int
			defaultVal sql.NullString
			primaryKey int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &defaultVal, &primaryKey); err != nil {
			return nil, fmt.Errorf("failed to scan table_info row: %w", err)
		}
		columns[name] = true
	}
	return columns, rows.Err()
}

// Story methods

func (s *SQLiteStore) CreateStory(story *Story) error {
	story.CreatedAt = time.Now().UTC()

	stmt, err := s.db.Prepare("INSERT INTO stories (universe, what_if, story, word_count, rating, is_public, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare story insert: %w", err)
	}
	defer stmt.Close()

	res, err := stmt.Exec(story.Universe, story.WhatIf, story.Story, story.WordCount, story.Rating, story.IsPublic, story.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to execute story insert: %w", err)
	}
	story.ID, _ = res.LastInsertId()
	return nil
}

func (s *SQLiteStore) GetStoryByID(id int64) (*Story, error) {
	return s.getStory("SELECT id, universe, what_if, story, word_count, rating, is_public, share_token, created_at FROM stories WHERE id = ?", id)
}

func (s *SQLiteStore) GetStoryByShareToken(token string) (*Story, error) {
	return s.getStory("SELECT id, universe, what_if, story, word_count, rating, is_public, share_token, created_at FROM stories WHERE share_token = ?", token)
}

func (s *SQLiteStore) getStory(query string, arg any) (*Story, error) {
	var story Story
	var shareToken sql.NullString
	err := s.db.QueryRow(query, arg).Scan(&story.ID, &story.Universe, &story.WhatIf, &story.Story, &story.WordCount, &story.Rating, &story.IsPublic, &shareToken, &story.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get story: %w", err)
	}
	if shareToken.Valid {
		story.ShareToken = &shareToken.String
	}
	return &story, nil
}

const summaryQuery = `
    SELECT s.id, s.universe, s.what_if, s.word_count, s.rating,
           COALESCE(AVG(r.rating_value), 0) AS avg_rating,
           COUNT(r.id) AS rating_count,
           s.created_at
    FROM stories s
    LEFT JOIN ratings r ON r.story_id = s.id
    WHERE s.is_public = TRUE
    GROUP BY s.id
`

func (s *SQLiteStore) ListRecentStories(limit int) ([]StorySummary, error) {
	return s.listSummaries(summaryQuery+" ORDER BY s.created_at DESC LIMIT ?", limit)
}

func (s *SQLiteStore) ListTrendingStories(limit int) ([]StorySummary, error) {
	return s.listSummaries(summaryQuery+" ORDER BY avg_rating DESC, rating_count DESC LIMIT ?", limit)
}

func (s *SQLiteStore) listSummaries(query string, limit int) ([]StorySummary, error) {
	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query stories: %w", err)
	}
	defer rows.Close()

	var summaries []StorySummary
	for rows.Next() {
		var sum StorySummary
		if err := rows.Scan(&sum.ID, &sum.Universe, &sum.WhatIf, &sum.WordCount, &sum.Rating, &sum.AverageRating, &sum.RatingCount, &sum.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan story row: %w", err)
		}
		sum.AverageRating = roundToOneDecimal(sum.AverageRating)
		summaries = append(summaries, sum)
	}
	return summaries, rows.Err()
}

// UpdateLegacyRating sets the legacy single rating column. This write path is
// independent of the per-session ratings table and never touches it.
func (s *SQLiteStore) UpdateLegacyRating(storyID int64, rating int) error {
	res, err := s.db.Exec("UPDATE stories SET rating = ? WHERE id = ?", rating, storyID)
	if err != nil {
		return fmt.Errorf("failed to execute rating update: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("story not found, rating not updated")
	}
	return nil
}

// DeleteStory removes a story and, via the foreign key cascade, all of its
// ratings. Administrative use only; there is no HTTP route for it.
func (s *SQLiteStore) DeleteStory(storyID int64) error {
	res, err := s.db.Exec("DELETE FROM stories WHERE id = ?", storyID)
	if err != nil {
		return fmt.Errorf("failed to delete story: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("story not found, nothing deleted")
	}
	return nil
}

// AssignShareToken stores the given token on the story if it has none yet and
// returns whichever token the story ends up with. First write wins; a second
// call returns the original token untouched. An empty return means the story
// does not exist.
func (s *SQLiteStore) AssignShareToken(storyID int64, token string) (string, error) {
	_, err := s.db.Exec("UPDATE stories SET share_token = ? WHERE id = ? AND share_token IS NULL", token, storyID)
	if err != nil {
		return "", fmt.Errorf("failed to assign share token: %w", err)
	}

	var assigned sql.NullString
	err = s.db.QueryRow("SELECT share_token FROM stories WHERE id = ?", storyID).Scan(&assigned)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil // Story not found
		}
		return "", fmt.Errorf("failed to read share token: %w", err)
	}
	return assigned.String, nil
}

// Rating methods

// UpsertRating inserts a rating or, when the (story, session) pair already
// has one, updates its value and updated_at in a single atomic statement.
func (s *SQLiteStore) UpsertRating(storyID int64, sessionID string, value int) error {
	stmt, err := s.db.Prepare(`
        INSERT INTO ratings (story_id, session_id, rating_value)
        VALUES (?, ?, ?)
        ON CONFLICT (story_id, session_id)
        DO UPDATE SET rating_value = excluded.rating_value, updated_at = CURRENT_TIMESTAMP`)
	if err != nil {
		return fmt.Errorf("failed to prepare rating upsert: %w", err)
	}
	defer stmt.Close()

	if _, err := stmt.Exec(storyID, sessionID, value); err != nil {
		return fmt.Errorf("failed to execute rating upsert: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetRatingStats(storyID int64) (*RatingStats, error) {
	var avg sql.NullFloat64
	var count int
	err := s.db.QueryRow("SELECT AVG(rating_value), COUNT(*) FROM ratings WHERE story_id = ?", storyID).Scan(&avg, &count)
	if err != nil {
		return nil, fmt.Errorf("failed to query rating stats: %w", err)
	}

	stats := &RatingStats{Count: count}
	if avg.Valid {
		stats.Average = roundToOneDecimal(avg.Float64)
	}
	return stats, nil
}

// GetRatingDistribution returns the count of ratings per star value, with all
// five buckets present even when empty.
func (s *SQLiteStore) GetRatingDistribution(storyID int64) (map[int]int, error) {
	rows, err := s.db.Query("SELECT rating_value, COUNT(*) FROM ratings WHERE story_id = ? GROUP BY rating_value", storyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rating distribution: %w", err)
	}
	defer rows.Close()

	distribution := map[int]int{1: 0, 2: 0, 3: 0, 4: 0, 5: 0}
	for rows.Next() {
		var value, count int
		if err := rows.Scan(&value, &count); err != nil {
			return nil, fmt.Errorf("failed to scan distribution row: %w", err)
		}
		distribution[value] = count
	}
	return distribution, rows.Err()
}

func roundToOneDecimal(v float64) float64 {
	return math.Round(v*10) / 10
}
