package view_test

import (
	"testing"

	"watchdeck/models"
	"watchdeck/services/view"
)

func TestSearchSubstringMatch(t *testing.T) {
	items := []models.DisplayItem{
		movieItem(models.Movie{ID: 1, Title: "Catwoman"}),
		movieItem(models.Movie{ID: 2, Title: "Dog Movie"}),
	}

	got := view.Search(items, "cat")
	if len(got) != 1 || got[0].Title() != "Catwoman" {
		t.Fatalf("expected only Catwoman, got %d items", len(got))
	}
}

func TestSearchBlankQueryIsIdentity(t *testing.T) {
	items := []models.DisplayItem{
		movieItem(models.Movie{ID: 1, Title: "Anything"}),
		movieItem(models.Movie{ID: 2, Title: "At All"}),
	}

	for _, query := range []string{"", "   ", "\t"} {
		got := view.Search(items, query)
		if len(got) != len(items) {
			t.Fatalf("query %q: expected input unchanged, got %d items", query, len(got))
		}
	}
}

func TestSearchMatchesCollectionChildTitles(t *testing.T) {
	col := collectionItem(models.Collection{
		ID:    1,
		Title: "Superhero Box Set",
		Movies: []models.Movie{
			{ID: 1, Title: "Catwoman"},
		},
	})

	got := view.Search([]models.DisplayItem{col}, "catwoman")
	if len(got) != 1 {
		t.Fatalf("expected collection to match via member title")
	}
}

func TestSearchMatchesEpisodeTitles(t *testing.T) {
	show := seriesItem(models.Series{
		ID:    1,
		Title: "Anthology",
		Episodes: []models.Episode{
			{ID: 1, Title: "The Cat Returns"},
		},
	})

	got := view.Search([]models.DisplayItem{show}, "cat")
	if len(got) != 1 {
		t.Fatalf("expected series to match via episode title")
	}
}

func TestSearchIsAccentInsensitive(t *testing.T) {
	items := []models.DisplayItem{
		movieItem(models.Movie{ID: 1, Title: "Amélie"}),
		movieItem(models.Movie{ID: 2, Title: "Brazil"}),
	}

	got := view.Search(items, "amelie")
	if len(got) != 1 || got[0].ID() != 1 {
		t.Fatalf("expected accent-folded match for Amélie, got %d items", len(got))
	}
}

func TestSearchIsCaseInsensitive(t *testing.T) {
	items := []models.DisplayItem{
		movieItem(models.Movie{ID: 1, Title: "CATWOMAN"}),
	}

	if got := view.Search(items, "CatWoman"); len(got) != 1 {
		t.Fatalf("expected case-insensitive match")
	}
}
