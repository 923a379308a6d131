package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tablebot/config"
	"tablebot/services"
	"tablebot/store"
)

// Dependencies everything the ops API serves from. Archive and Kafka may be
// nil when they are not configured.
type Dependencies struct {
	Config  *config.Config
	Store   store.Store
	Tables  *services.TableService
	Help    *services.HelpService
	Archive HistoryReader
	Feed    *services.FeedHub
	Kafka   *services.KafkaService
	Log     *zap.Logger
}

// RegisterRoutes registers the ops API on r.
func RegisterRoutes(r *gin.Engine, deps Dependencies) {
	authController := NewAuthController(deps.Config, deps.Log)
	requestController := NewRequestController(deps.Help, deps.Log)
	tableController := NewTableController(deps.Tables, deps.Log)
	historyController := NewHistoryController(deps.Archive, deps.Log)
	feedController := NewFeedController(deps.Feed, deps.Log)
	monitorController := NewMonitorController(deps.Feed, deps.Kafka, deps.Store)

	public := r.Group("/api")
	{
		public.POST("/login", authController.Login)
		public.GET("/monitor/system", monitorController.GetSystemStatus)
	}

	api := r.Group("/api")
	{
		// help requests
		api.GET("/requests", requestController.List)
		api.DELETE("/requests/:id", requestController.Complete)

		// tables
		api.GET("/tables/:participantId", tableController.GetState)

		// archived events
		api.GET("/history", historyController.List)

		// live event feed
		api.GET("/ws", feedController.HandleWebSocket)
	}
}
