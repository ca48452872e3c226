package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"GroupWatch/internal/domain"
	"GroupWatch/internal/ports"
)

// SQLiteStore is the embedded post store, the default backend.
type SQLiteStore struct {
	db *sql.DB
}

var _ ports.PostStore = (*SQLiteStore)(nil)

// NewSQLite opens or creates the database file and ensures the schema.
func NewSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set wal mode: %w", err)
	}
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close releases the underlying connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS posts (
		post_id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		body TEXT NOT NULL,
		body_normalized TEXT NOT NULL,
		source_url TEXT NOT NULL,
		group_name TEXT NOT NULL,
		group_url TEXT NOT NULL,
		raw_timestamp TEXT NOT NULL,
		posted_at DATETIME,
		category TEXT NOT NULL DEFAULT 'General',
		secondary_categories TEXT NOT NULL DEFAULT '[]',
		location TEXT NOT NULL DEFAULT 'Unknown',
		classification_state TEXT NOT NULL DEFAULT 'unclassified',
		notified BOOLEAN NOT NULL DEFAULT 0,
		scraped_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_posts_body ON posts(body_normalized);
	CREATE INDEX IF NOT EXISTS idx_posts_group_url ON posts(group_url);
	CREATE INDEX IF NOT EXISTS idx_posts_notified ON posts(notified);
	CREATE INDEX IF NOT EXISTS idx_posts_scraped_at ON posts(scraped_at DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

// FindByID looks up a post by its identifier, nil when absent.
func (s *SQLiteStore) FindByID(ctx context.Context, postID string) (*domain.Post, error) {
	query, args, err := selectPosts(ports.PostFilter{Limit: 1}).
		Where(sq.Eq{"post_id": postID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build id query: %w", err)
	}

	row := s.db.QueryRowContext(ctx, query, args...)
	post, err := scanPostRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find by id %s: %w", postID, err)
	}
	return post, nil
}

// FindByBody looks up a post by its whitespace-normalized body text.
func (s *SQLiteStore) FindByBody(ctx context.Context, normalizedBody string) (*domain.Post, error) {
	query, args, err := selectPosts(ports.PostFilter{Limit: 1}).
		Where(sq.Eq{"body_normalized": normalizedBody}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build body query: %w", err)
	}

	row := s.db.QueryRowContext(ctx, query, args...)
	post, err := scanPostRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find by body: %w", err)
	}
	return post, nil
}

// Insert stores a new post. A uniqueness violation on post_id reports
// inserted=false; a legacy schema missing optional columns triggers one
// retry with the reduced column set.
func (s *SQLiteStore) Insert(ctx context.Context, post domain.Post) (bool, error) {
	inserted, err := s.insertFull(ctx, post)
	if err == nil || !isSchemaMismatch(err) {
		return inserted, err
	}
	return s.insertBasic(ctx, post)
}

func (s *SQLiteStore) insertFull(ctx context.Context, post domain.Post) (bool, error) {
	var postedAt any
	if !post.PostedAt.IsZero() {
		postedAt = post.PostedAt
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO posts (post_id, title, body, body_normalized, source_url, group_name, group_url,
			raw_timestamp, posted_at, category, secondary_categories, location,
			classification_state, notified, scraped_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?)
		ON CONFLICT(post_id) DO NOTHING`,
		post.PostID, post.Title, post.Body, domain.NormalizeBody(post.Body),
		post.SourceURL, post.GroupName, post.GroupURL, post.RawTimestamp,
		postedAt, string(post.Category), encodeSecondaries(post.SecondaryCategories),
		post.Location, string(post.State), post.ScrapedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("insert %s: %w", post.PostID, err)
	}
	affected, _ := res.RowsAffected()
	return affected > 0, nil
}

func (s *SQLiteStore) insertBasic(ctx context.Context, post domain.Post) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO posts (post_id, title, body, body_normalized, source_url, group_name, group_url,
			raw_timestamp, notified, scraped_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?)
		ON CONFLICT(post_id) DO NOTHING`,
		post.PostID, post.Title, post.Body, domain.NormalizeBody(post.Body),
		post.SourceURL, post.GroupName, post.GroupURL, post.RawTimestamp,
		post.ScrapedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("insert basic %s: %w", post.PostID, err)
	}
	affected, _ := res.RowsAffected()
	return affected > 0, nil
}

// UpdateCategory backfills classification results onto a stored post.
func (s *SQLiteStore) UpdateCategory(ctx context.Context, postID string, category domain.Category, secondaries []domain.Category, location string, state domain.ClassificationState) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE posts SET category = ?, secondary_categories = ?, location = ?, classification_state = ?
		WHERE post_id = ?`,
		string(category), encodeSecondaries(secondaries), location, string(state), postID)
	if err != nil {
		return fmt.Errorf("update category %s: %w", postID, err)
	}
	return nil
}

// MarkNotified flips the monotonic notified flag for the given posts.
func (s *SQLiteStore) MarkNotified(ctx context.Context, postIDs []string) error {
	if len(postIDs) == 0 {
		return nil
	}
	query, args, err := sq.Update("posts").
		Set("notified", true).
		Where(sq.Eq{"post_id": postIDs}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build mark notified: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("mark notified: %w", err)
	}
	return nil
}

// Query returns filtered posts plus the unpaginated total.
func (s *SQLiteStore) Query(ctx context.Context, filter ports.PostFilter) ([]domain.Post, int, error) {
	query, args, err := selectPosts(filter).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query posts: %w", err)
	}
	defer rows.Close()

	var posts []domain.Post
	for rows.Next() {
		post, err := scanPostRow(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, *post)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate posts: %w", err)
	}

	countQuery, countArgs, err := countPosts(filter).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count: %w", err)
	}
	var total int
	if err := s.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count posts: %w", err)
	}

	return posts, total, nil
}

// Stats summarizes the store for the downstream read API.
func (s *SQLiteStore) Stats(ctx context.Context) (ports.StoreStats, error) {
	var stats ports.StoreStats

	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(CASE WHEN notified = 0 THEN 1 ELSE 0 END), 0) FROM posts").
		Scan(&stats.Total, &stats.New)
	if err != nil {
		return stats, fmt.Errorf("stats totals: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT group_name, COUNT(*) FROM posts GROUP BY group_name ORDER BY COUNT(*) DESC")
	if err != nil {
		return stats, fmt.Errorf("stats by group: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var gc ports.GroupCount
		if err := rows.Scan(&gc.GroupName, &gc.Count); err != nil {
			return stats, fmt.Errorf("scan group count: %w", err)
		}
		stats.ByGroup = append(stats.ByGroup, gc)
	}
	return stats, rows.Err()
}

// rowScanner covers both sql.Row and sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanPostRow(row rowScanner) (*domain.Post, error) {
	var (
		post        domain.Post
		category    string
		state       string
		secondaries string
		postedAt    sql.NullTime
	)
	err := row.Scan(
		&post.PostID, &post.Title, &post.Body, new(string), &post.SourceURL,
		&post.GroupName, &post.GroupURL, &post.RawTimestamp, &postedAt,
		&category, &secondaries, &post.Location, &state, &post.Notified,
		&post.ScrapedAt)
	if err != nil {
		return nil, err
	}
	if postedAt.Valid {
		post.PostedAt = postedAt.Time
	}
	post.Category = domain.NormalizeCategory(category)
	post.SecondaryCategories = decodeSecondaries(secondaries)
	post.State = domain.ClassificationState(state)
	return &post, nil
}
