package view

import (
	"strings"

	"github.com/mozillazg/go-unidecode"

	"watchdeck/models"
)

// Search applies the client-side substring filter, the last stage of the
// pipeline. Matching is case- and accent-insensitive and considers the item's
// own title plus, for collections and series, the titles of their children.
// A blank query returns the input unchanged.
func Search(items []models.DisplayItem, query string) []models.DisplayItem {
	needle := normalizeSearchText(query)
	if needle == "" {
		return items
	}

	out := make([]models.DisplayItem, 0, len(items))
	for _, item := range items {
		if matchesQuery(item, needle) {
			out = append(out, item)
		}
	}
	return out
}

func matchesQuery(item models.DisplayItem, needle string) bool {
	if strings.Contains(normalizeSearchText(item.Title()), needle) {
		return true
	}

	switch item.Kind {
	case models.KindCollection:
		for _, m := range item.Collection.Movies {
			if strings.Contains(normalizeSearchText(m.Title), needle) {
				return true
			}
		}
	case models.KindSeries:
		for _, ep := range item.Series.Episodes {
			if strings.Contains(normalizeSearchText(ep.Title), needle) {
				return true
			}
		}
	}
	return false
}

func normalizeSearchText(value string) string {
	return strings.ToLower(strings.TrimSpace(unidecode.Unidecode(value)))
}
