package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"GroupWatch/internal/domain"
	"GroupWatch/internal/ports"
)

// uniqueViolationCode is the Postgres error code for a duplicate key.
const uniqueViolationCode = "23505"

// undefinedColumnCode is the Postgres error code for a missing column.
const undefinedColumnCode = "42703"

// PostgresStore is the shared-database post store backend.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ ports.PostStore = (*PostgresStore)(nil)

// NewPostgres connects a pool and ensures the schema.
func NewPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := &PostgresStore{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close releases the pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) migrate(ctx context.Context) error {
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
		posted_at TIMESTAMPTZ,
		category TEXT NOT NULL DEFAULT 'General',
		secondary_categories TEXT NOT NULL DEFAULT '[]',
		location TEXT NOT NULL DEFAULT 'Unknown',
		classification_state TEXT NOT NULL DEFAULT 'unclassified',
		notified BOOLEAN NOT NULL DEFAULT FALSE,
		scraped_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_posts_body ON posts(body_normalized);
	CREATE INDEX IF NOT EXISTS idx_posts_group_url ON posts(group_url);
	CREATE INDEX IF NOT EXISTS idx_posts_notified ON posts(notified);
	CREATE INDEX IF NOT EXISTS idx_posts_scraped_at ON posts(scraped_at DESC);
	`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// FindByID looks up a post by its identifier, nil when absent.
func (s *PostgresStore) FindByID(ctx context.Context, postID string) (*domain.Post, error) {
	query, args, err := selectPosts(ports.PostFilter{Limit: 1}).
		Where(sq.Eq{"post_id": postID}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build id query: %w", err)
	}

	row := s.pool.QueryRow(ctx, query, args...)
	post, err := scanPgPost(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find by id %s: %w", postID, err)
	}
	return post, nil
}

// FindByBody looks up a post by its whitespace-normalized body text.
func (s *PostgresStore) FindByBody(ctx context.Context, normalizedBody string) (*domain.Post, error) {
	query, args, err := selectPosts(ports.PostFilter{Limit: 1}).
		Where(sq.Eq{"body_normalized": normalizedBody}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build body query: %w", err)
	}

	row := s.pool.QueryRow(ctx, query, args...)
	post, err := scanPgPost(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find by body: %w", err)
	}
	return post, nil
}

// Insert stores a new post; ON CONFLICT DO NOTHING is the uniqueness
// backstop against concurrent writers. A legacy schema missing optional
// columns triggers one retry with the reduced column set.
func (s *PostgresStore) Insert(ctx context.Context, post domain.Post) (bool, error) {
	inserted, err := s.insertFull(ctx, post)
	if err == nil || !isPgSchemaMismatch(err) {
		return inserted, err
	}
	return s.insertBasic(ctx, post)
}

func (s *PostgresStore) insertFull(ctx context.Context, post domain.Post) (bool, error) {
	var postedAt *time.Time
	if !post.PostedAt.IsZero() {
		postedAt = &post.PostedAt
	}

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO posts (post_id, title, body, body_normalized, source_url, group_name, group_url,
			raw_timestamp, posted_at, category, secondary_categories, location,
			classification_state, notified, scraped_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, FALSE, $14)
		ON CONFLICT (post_id) DO NOTHING`,
		post.PostID, post.Title, post.Body, domain.NormalizeBody(post.Body),
		post.SourceURL, post.GroupName, post.GroupURL, post.RawTimestamp,
		postedAt, string(post.Category), encodeSecondaries(post.SecondaryCategories),
		post.Location, string(post.State), post.ScrapedAt)
	if err != nil {
		if isPgUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("insert %s: %w", post.PostID, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) insertBasic(ctx context.Context, post domain.Post) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO posts (post_id, title, body, body_normalized, source_url, group_name, group_url,
			raw_timestamp, notified, scraped_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, FALSE, $9)
		ON CONFLICT (post_id) DO NOTHING`,
		post.PostID, post.Title, post.Body, domain.NormalizeBody(post.Body),
		post.SourceURL, post.GroupName, post.GroupURL, post.RawTimestamp,
		post.ScrapedAt)
	if err != nil {
		if isPgUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("insert basic %s: %w", post.PostID, err)
	}
	return tag.RowsAffected() > 0, nil
}

// UpdateCategory backfills classification results onto a stored post.
func (s *PostgresStore) UpdateCategory(ctx context.Context, postID string, category domain.Category, secondaries []domain.Category, location string, state domain.ClassificationState) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE posts SET category = $1, secondary_categories = $2, location = $3, classification_state = $4
		WHERE post_id = $5`,
		string(category), encodeSecondaries(secondaries), location, string(state), postID)
	if err != nil {
		return fmt.Errorf("update category %s: %w", postID, err)
	}
	return nil
}

// MarkNotified flips the monotonic notified flag for the given posts.
func (s *PostgresStore) MarkNotified(ctx context.Context, postIDs []string) error {
	if len(postIDs) == 0 {
		return nil
	}
	query, args, err := sq.Update("posts").
		Set("notified", true).
		Where(sq.Eq{"post_id": postIDs}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("build mark notified: %w", err)
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("mark notified: %w", err)
	}
	return nil
}

// Query returns filtered posts plus the unpaginated total.
func (s *PostgresStore) Query(ctx context.Context, filter ports.PostFilter) ([]domain.Post, int, error) {
	query, args, err := selectPosts(filter).PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query posts: %w", err)
	}
	defer rows.Close()

	var posts []domain.Post
	for rows.Next() {
		post, err := scanPgPost(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, *post)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate posts: %w", err)
	}

	countQuery, countArgs, err := countPosts(filter).PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count: %w", err)
	}
	var total int
	if err := s.pool.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count posts: %w", err)
	}

	return posts, total, nil
}

// Stats summarizes the store for the downstream read API.
func (s *PostgresStore) Stats(ctx context.Context) (ports.StoreStats, error) {
	var stats ports.StoreStats

	err := s.pool.QueryRow(ctx,
		"SELECT COUNT(*), COALESCE(SUM(CASE WHEN notified THEN 0 ELSE 1 END), 0) FROM posts").
		Scan(&stats.Total, &stats.New)
	if err != nil {
		return stats, fmt.Errorf("stats totals: %w", err)
	}

	rows, err := s.pool.Query(ctx,
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

func scanPgPost(row pgx.Row) (*domain.Post, error) {
	var (
		post        domain.Post
		bodyNorm    string
		category    string
		state       string
		secondaries string
		postedAt    *time.Time
	)
	err := row.Scan(
		&post.PostID, &post.Title, &post.Body, &bodyNorm, &post.SourceURL,
		&post.GroupName, &post.GroupURL, &post.RawTimestamp, &postedAt,
		&category, &secondaries, &post.Location, &state, &post.Notified,
		&post.ScrapedAt)
	if err != nil {
		return nil, err
	}
	if postedAt != nil {
		post.PostedAt = *postedAt
	}
	post.Category = domain.NormalizeCategory(category)
	post.SecondaryCategories = decodeSecondaries(secondaries)
	post.State = domain.ClassificationState(state)
	return &post, nil
}

func isPgUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolationCode
	}
	return isUniqueViolation(err)
}

func isPgSchemaMismatch(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == undefinedColumnCode
	}
	return isSchemaMismatch(err)
}
