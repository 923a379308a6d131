package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tablebot/models"
	"tablebot/services"
)

// HistoryReader reads archived events.
type HistoryReader interface {
	History(ctx context.Context, f services.HistoryFilter) ([]models.EventRecord, error)
}

// HistoryController archived event queries
type HistoryController struct {
	archive HistoryReader
	log     *zap.Logger
}

// NewHistoryController creates the history controller; archive may be nil.
func NewHistoryController(archive HistoryReader, log *zap.Logger) *HistoryController {
	return &HistoryController{archive: archive, log: log.With(zap.String("component", "api"))}
}

// List returns archived events, newest first.
func (c *HistoryController) List(ctx *gin.Context) {
	if c.archive == nil {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": "event archive is not configured"})
		return
	}

	filter := services.HistoryFilter{
		ParticipantID: ctx.Query("participant_id"),
		RequestID:     ctx.Query("request_id"),
		Type:          models.EventType(ctx.Query("type")),
	}
	if raw := ctx.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive number"})
			return
		}
		filter.Limit = limit
	}

	records, err := c.archive.History(ctx.Request.Context(), filter)
	if err != nil {
		c.log.Error("read history", zap.Error(err))
		ctx.JSON(http.StatusBadGateway, gin.H{"error": "failed to read history"})
		return
	}
	if records == nil {
		records = []models.EventRecord{}
	}

	ctx.JSON(http.StatusOK, gin.H{"events": records, "count": len(records)})
}
