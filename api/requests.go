package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tablebot/models"
	"tablebot/services"
)

// RequestController help request endpoints
type RequestController struct {
	help *services.HelpService
	log  *zap.Logger
}

// NewRequestController creates the request controller.
func NewRequestController(help *services.HelpService, log *zap.Logger) *RequestController {
	return &RequestController{help: help, log: log.With(zap.String("component", "api"))}
}

// List returns the pending help requests, oldest first.
func (c *RequestController) List(ctx *gin.Context) {
	pending, err := c.help.List(ctx.Request.Context())
	if err != nil {
		c.log.Error("list help requests", zap.Error(err))
		ctx.JSON(http.StatusBadGateway, gin.H{"error": "failed to read help requests"})
		return
	}
	if pending == nil {
		pending = []models.HelpRequest{}
	}

	ctx.JSON(http.StatusOK, gin.H{
		"requests": pending,
		"count":    len(pending),
	})
}

// Complete marks a help request done on behalf of the logged-in operator.
func (c *RequestController) Complete(ctx *gin.Context) {
	id := ctx.Param("id")
	if !models.ValidHelpRequestID(id) {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid help request id"})
		return
	}

	operator := ctx.GetString("username")
	if err := c.help.Complete(ctx.Request.Context(), id, operator); err != nil {
		c.log.Error("complete help request", zap.String("id", id), zap.Error(err))
		ctx.JSON(http.StatusBadGateway, gin.H{"error": "failed to complete help request"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "help request completed", "id": id})
}
