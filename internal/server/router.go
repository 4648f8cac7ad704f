package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/gramlytics/gramlytics-backend/internal/handlers"
	"github.com/gramlytics/gramlytics-backend/internal/logger"
	"github.com/gramlytics/gramlytics-backend/internal/middleware"
)

type RouterConfig struct {
	Log               *logger.Logger
	CollectionHandler *handlers.CollectionHandler
	SearchHandler     *handlers.SearchHandler
	UsageHandler      *handlers.UsageHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(cfg.Log))

	// Cors
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{
			"http://localhost:80",
			"http://localhost:3000",
			"http://localhost:5174",
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)

	api := router.Group("/api")
	{
		api.POST("/collect", cfg.CollectionHandler.Collect)
		api.GET("/collect/:username", cfg.CollectionHandler.Status)
		api.GET("/search", cfg.SearchHandler.Search)
		api.GET("/quota", cfg.UsageHandler.Quota)
	}

	return router
}
