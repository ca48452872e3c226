package domain

import "strings"

// Category is a member of the closed job-category taxonomy.
type Category string

const (
	CategoryTransport Category = "Transport / Moving"
	CategoryPainting  Category = "Painting / Renovation"
	CategoryCleaning  Category = "Cleaning / Garden"
	CategoryPlumbing  Category = "Plumbing / Electrical"
	CategoryAssembly  Category = "Assembly / Furniture"
	CategoryGeneral   Category = "General"
)

// Taxonomy lists every valid category. CategoryGeneral doubles as the
// default when classification fails or returns an unknown label.
var Taxonomy = []Category{
	CategoryTransport,
	CategoryPainting,
	CategoryCleaning,
	CategoryPlumbing,
	CategoryAssembly,
	CategoryGeneral,
}

// NormalizeCategory maps an arbitrary label onto the taxonomy. Exact matches
// win, then case-insensitive substring matches in either direction, then the
// default. Invalid labels can never reach the store.
func NormalizeCategory(raw string) Category {
	label := strings.TrimSpace(raw)
	if label == "" {
		return CategoryGeneral
	}
	for _, cat := range Taxonomy {
		if strings.EqualFold(label, string(cat)) {
			return cat
		}
	}
	lower := strings.ToLower(label)
	for _, cat := range Taxonomy {
		catLower := strings.ToLower(string(cat))
		if strings.Contains(catLower, lower) || strings.Contains(lower, catLower) {
			return cat
		}
	}
	return CategoryGeneral
}

// NormalizeSecondaries validates a secondary-category list against the
// taxonomy, dropping duplicates and any entry equal to the primary.
func NormalizeSecondaries(primary Category, raw []string) []Category {
	var out []Category
	seen := map[Category]struct{}{primary: {}}
	for _, label := range raw {
		cat := NormalizeCategory(label)
		if _, ok := seen[cat]; ok {
			continue
		}
		seen[cat] = struct{}{}
		out = append(out, cat)
	}
	return out
}
