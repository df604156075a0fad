package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"watchdeck/config"
	"watchdeck/internal/cache"
	"watchdeck/models"
	"watchdeck/services/gateway"
	"watchdeck/services/lists"
	"watchdeck/services/view"
	"watchdeck/services/watchlist"
	"watchdeck/utils"
)

func main() {
	configPath := flag.String("config", "watchdeck.json", "path to the settings file")
	sortKey := flag.String("sort", string(view.SortTitle), "sort key: title, date, type, release_date")
	desc := flag.Bool("desc", false, "descending sort direction")
	query := flag.String("query", "", "substring search over titles")
	showWatched := flag.Bool("watched", false, "include fully watched items")
	flag.Parse()

	if err := run(*configPath, *sortKey, *desc, *query, *showWatched); err != nil {
		log.Printf("[main] fatal: %v", err)
		os.Exit(1)
	}
}

func run(configPath, sortKey string, desc bool, query string, showWatched bool) error {
	manager := config.NewManager(configPath)
	settings, err := manager.Load()
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	utils.SetupLogging(settings.LogFile)

	store, err := cache.Open(settings.CachePath, time.Duration(settings.CacheTTLHours)*time.Hour)
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	defer store.Close()

	client := gateway.NewClient(settings.BackendURL, settings.Token)
	client.OnAuthLost(func() {
		log.Printf("[main] session expired, clearing stored token")
		settings.Token = ""
		if err := manager.Save(settings); err != nil {
			log.Printf("[main] failed to persist cleared token: %v", err)
		}
	})

	registry := lists.NewRegistry(client)
	service := watchlist.NewService(client, store, registry)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	if client.Online(ctx) {
		if err := registry.Refresh(ctx); err != nil {
			log.Printf("[main] list refresh failed: %v", err)
		}
	}

	if err := service.Reload(ctx); err != nil {
		return err
	}

	filters := service.Filters()
	filters.Unwatched = !showWatched
	service.SetFilters(filters)

	dir := view.Ascending
	if desc {
		dir = view.Descending
	}
	service.SetSort(view.SortKey(sortKey), dir)
	service.SetQuery(query)

	snapshot := service.Snapshot()
	if snapshot.Stale {
		fmt.Printf("showing cached data from %s\n", snapshot.FetchedAt.Format(time.RFC822))
	}
	for _, item := range snapshot.Items {
		fmt.Println(formatItem(item))
	}
	fmt.Printf("%d item(s)\n", len(snapshot.Items))
	return nil
}

func formatItem(item models.DisplayItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", item.Kind, item.Title())

	if year, has, ok := item.ReleaseYear(); has && ok {
		fmt.Fprintf(&b, " (%d)", year)
	}
	fmt.Fprintf(&b, " - %s", item.WatchState())

	switch item.Kind {
	case models.KindCollection:
		fmt.Fprintf(&b, ", %d movies", len(item.Collection.Movies))
	case models.KindSeries:
		fmt.Fprintf(&b, ", %d episodes", len(item.Series.Episodes))
	}
	return b.String()
}
