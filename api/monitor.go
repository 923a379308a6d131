package api

import (
	"net/http"
	"runtime"

	"github.com/gin-gonic/gin"

	"tablebot/services"
	"tablebot/store"
)

// MonitorController process and dependency health
type MonitorController struct {
	feed  *services.FeedHub
	kafka *services.KafkaService
	store store.Store
}

// NewMonitorController creates the monitor controller; kafka may be nil.
func NewMonitorController(feed *services.FeedHub, kafka *services.KafkaService, s store.Store) *MonitorController {
	return &MonitorController{feed: feed, kafka: kafka, store: s}
}

// GetSystemStatus reports runtime, store and event pipeline state.
func (c *MonitorController) GetSystemStatus(ctx *gin.Context) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	storeStatus := "ok"
	if err := c.store.Ping(ctx.Request.Context()); err != nil {
		storeStatus = err.Error()
	}

	kafka := gin.H{"enabled": false}
	if c.kafka != nil {
		metrics := c.kafka.GetMetrics()
		kafka = gin.H{
			"enabled":           true,
			"messages_sent":     metrics["messages_sent"],
			"messages_received": metrics["messages_received"],
			"errors":            metrics["errors"],
		}
	}

	ctx.JSON(http.StatusOK, gin.H{
		"feed_connections": c.feed.GetConnectionCount(),
		"goroutines":       runtime.NumGoroutine(),
		"store":            storeStatus,
		"memory": gin.H{
			"alloc":       m.Alloc / 1024 / 1024,      // MB
			"total_alloc": m.TotalAlloc / 1024 / 1024, // MB
			"sys":         m.Sys / 1024 / 1024,        // MB
			"num_gc":      m.NumGC,
		},
		"kafka": kafka,
	})
}
