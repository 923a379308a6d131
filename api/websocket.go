package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tablebot/services"
)

// FeedController live event stream
type FeedController struct {
	feed *services.FeedHub
	log  *zap.Logger
}

// NewFeedController creates the feed controller.
func NewFeedController(feed *services.FeedHub, log *zap.Logger) *FeedController {
	return &FeedController{feed: feed, log: log.With(zap.String("component", "api"))}
}

// HandleWebSocket upgrades the request and streams events to it.
func (c *FeedController) HandleWebSocket(ctx *gin.Context) {
	if err := c.feed.Serve(ctx.Writer, ctx.Request); err != nil {
		// the upgrader has already written the error response
		c.log.Warn("feed upgrade failed", zap.String("username", ctx.GetString("username")), zap.Error(err))
	}
}
