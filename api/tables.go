package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tablebot/services"
)

// TableController membership lookups
type TableController struct {
	tables *services.TableService
	log    *zap.Logger
}

// NewTableController creates the table controller.
func NewTableController(tables *services.TableService, log *zap.Logger) *TableController {
	return &TableController{tables: tables, log: log.With(zap.String("component", "api"))}
}

// GetState returns a participant's membership as the platform reports it.
func (c *TableController) GetState(ctx *gin.Context) {
	participantID := ctx.Param("participantId")

	state, err := c.tables.State(ctx.Request.Context(), participantID)
	if err != nil {
		c.log.Error("resolve membership", zap.String("participant", participantID), zap.Error(err))
		ctx.JSON(http.StatusBadGateway, gin.H{"error": "failed to resolve membership"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"participant_id": participantID,
		"teamless":       state.IsTeamless(),
		"label":          state.Label(),
	})
}
