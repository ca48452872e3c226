// Package storage provides the durable post store on SQLite (embedded,
// default) or PostgreSQL, selected by configuration.
package storage

import (
	"encoding/json"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"GroupWatch/internal/domain"
	"GroupWatch/internal/ports"
)

var postColumns = []string{
	"post_id", "title", "body", "body_normalized", "source_url", "group_name",
	"group_url", "raw_timestamp", "posted_at", "category",
	"secondary_categories", "location", "classification_state", "notified",
	"scraped_at",
}

// selectPosts builds the filtered post query shared by both backends.
// Placeholder format is applied by the caller.
func selectPosts(filter ports.PostFilter) sq.SelectBuilder {
	b := sq.Select(postColumns...).
		From("posts").
		OrderBy("scraped_at DESC", "post_id DESC")

	b = applyFilter(b, filter)

	if filter.Limit > 0 {
		b = b.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		b = b.Offset(uint64(filter.Offset))
	}
	return b
}

// countPosts builds the matching total for Query pagination.
func countPosts(filter ports.PostFilter) sq.SelectBuilder {
	return applyFilter(sq.Select("COUNT(*)").From("posts"), filter)
}

func applyFilter(b sq.SelectBuilder, filter ports.PostFilter) sq.SelectBuilder {
	if filter.GroupURL != "" {
		b = b.Where(sq.Eq{"group_url": filter.GroupURL})
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		b = b.Where(sq.Or{
			sq.Like{"title": pattern},
			sq.Like{"body": pattern},
		})
	}
	if filter.OnlyNew {
		b = b.Where(sq.Eq{"notified": false})
	}
	return b
}

func encodeSecondaries(cats []domain.Category) string {
	if len(cats) == 0 {
		return "[]"
	}
	raw, err := json.Marshal(cats)
	if err != nil {
		return "[]"
	}
	return string(raw)
}

func decodeSecondaries(raw string) []domain.Category {
	if raw == "" || raw == "[]" {
		return nil
	}
	var cats []domain.Category
	if err := json.Unmarshal([]byte(raw), &cats); err != nil {
		return nil
	}
	return cats
}

// isSchemaMismatch detects inserts rejected because an optional column is
// missing from a legacy table; callers retry with the reduced column set.
func isSchemaMismatch(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "no such column") ||
		strings.Contains(msg, "has no column") ||
		strings.Contains(msg, "does not exist") && strings.Contains(msg, "column")
}

// isUniqueViolation detects the uniqueness backstop on post_id; callers
// treat it as a successful dedup outcome.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "constraint failed")
}
