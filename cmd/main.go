package main

import (
	"context"
	"fmt"
	"os"

	"github.com/gramlytics/gramlytics-backend/internal/clients/provider"
	redisclient "github.com/gramlytics/gramlytics-backend/internal/clients/redis"
	"github.com/gramlytics/gramlytics-backend/internal/db"
	"github.com/gramlytics/gramlytics-backend/internal/handlers"
	"github.com/gramlytics/gramlytics-backend/internal/logger"
	"github.com/gramlytics/gramlytics-backend/internal/repos"
	"github.com/gramlytics/gramlytics-backend/internal/server"
	"github.com/gramlytics/gramlytics-backend/internal/services"
	"github.com/gramlytics/gramlytics-backend/internal/utils"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Error("Postgres auto migration failed", "error", err)
		os.Exit(1)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up Repos from main...")
	profileRepo := repos.NewProfileRepo(thePG, log)
	mediaPostRepo := repos.NewMediaPostRepo(thePG, log)
	storyRepo := repos.NewStoryRepo(thePG, log)
	highlightRepo := repos.NewHighlightRepo(thePG, log)
	commentRepo := repos.NewCommentRepo(thePG, log)
	hashtagRepo := repos.NewHashtagRepo(thePG, log)
	locationRepo := repos.NewLocationRepo(thePG, log)
	audioRepo := repos.NewAudioRepo(thePG, log)
	similarRepo := repos.NewSimilarAccountRepo(thePG, log)
	searchResultRepo := repos.NewSearchResultRepo(thePG, log)
	usageLogRepo := repos.NewUsageLogRepo(thePG, log)
	collectionLogRepo := repos.NewCollectionLogRepo(thePG, log)

	// Run event bus (optional)
	var notifier services.RunNotifier
	runBus, err := redisclient.NewRunBus(log)
	if err != nil {
		log.Warn("Run event bus unavailable, continuing without it", "error", err)
	} else {
		notifier = runBus
		defer runBus.Close()
		err = runBus.StartForwarder(context.Background(), func(evt redisclient.RunEvent) {
			log.Info("run event received",
				"run_id", evt.RunID,
				"target", evt.Target,
				"status", evt.Status,
				"inserted", evt.Inserted,
				"updated", evt.Updated,
			)
		})
		if err != nil {
			log.Warn("Run event forwarder failed to start", "error", err)
		}
	}

	// Services
	log.Info("Setting up Services from main...")
	usageTracker := services.NewUsageTracker(usageLogRepo, log)

	providerClient, err := provider.NewClient(log, usageTracker)
	if err != nil {
		log.Error("Could not init ProviderClient", "error", err)
		os.Exit(1)
	}

	collectorService := services.NewCollectorService(services.CollectorDeps{
		Client:     providerClient,
		Usage:      usageTracker,
		Profiles:   profileRepo,
		Posts:      mediaPostRepo,
		Stories:    storyRepo,
		Highlights: highlightRepo,
		Comments:   commentRepo,
		Hashtags:   hashtagRepo,
		Locations:  locationRepo,
		Audios:     audioRepo,
		Similar:    similarRepo,
		RunLog:     collectionLogRepo,
		Notifier:   notifier,
	}, log)

	searchService := services.NewSearchService(providerClient, searchResultRepo, usageTracker, log)

	pool := services.NewCollectorPool(collectorService, log)
	pool.Start(context.Background())
	defer pool.Stop()

	// Handlers
	log.Info("Setting up handlers from main...")
	collectionHandler := handlers.NewCollectionHandler(collectorService, pool)
	searchHandler := handlers.NewSearchHandler(searchService)
	usageHandler := handlers.NewUsageHandler(usageTracker)

	// Router
	log.Info("Setting up router from main...")
	router := server.NewRouter(server.RouterConfig{
		Log:               log,
		CollectionHandler: collectionHandler,
		SearchHandler:     searchHandler,
		UsageHandler:      usageHandler,
	})

	port := utils.GetEnv("PORT", "8080", log)
	log.Info("Server listening", "port", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatal("Server exited", "error", err)
	}
}
