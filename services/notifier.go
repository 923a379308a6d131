package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"tablebot/config"
	"tablebot/models"
	"tablebot/platform"
)

// Notifier forwards requests and reports to the staff channels.
type Notifier struct {
	platform platform.Platform
	cfg      *config.Config
	log      *zap.Logger
}

// NewNotifier creates a notifier.
func NewNotifier(p platform.Platform, cfg *config.Config, log *zap.Logger) *Notifier {
	return &Notifier{
		platform: p,
		cfg:      cfg,
		log:      log.With(zap.String("component", "notifier")),
	}
}

// NewRequest tells the mentors that participantID asked for help.
func (n *Notifier) NewRequest(ctx context.Context, participantID string, req models.HelpRequest) error {
	content := "New help request from " + platform.Mention(participantID)
	if req.FromTable() {
		content += " in " + req.Attribution
	}
	return n.platform.SendMessage(ctx, n.cfg.MentorsChannelID, content)
}

// Report forwards a non-urgent report and removes the original message.
func (n *Notifier) Report(ctx context.Context, authorID, channelID, messageID, text string) error {
	content := fmt.Sprintf("%s reported message '%s' from channel #%s",
		platform.Mention(authorID), text, n.channelName(ctx, channelID))
	if err := n.platform.SendMessage(ctx, n.cfg.ReportsChannelID, content); err != nil {
		return err
	}
	return n.platform.DeleteMessage(ctx, channelID, messageID)
}

// Emergency forwards an urgent report, pinging managers and mentors, and
// removes the original message.
func (n *Notifier) Emergency(ctx context.Context, authorID, channelID, messageID, text string) error {
	content := fmt.Sprintf("(%s %s) **EMERGENCY!!** %s reported an emergency from #%s with message '%s'",
		platform.MentionRole(n.cfg.ManagerRoleID),
		platform.MentionRole(n.cfg.MentorRoleID),
		platform.Mention(authorID),
		n.channelName(ctx, channelID),
		text)
	if err := n.platform.SendMessage(ctx, n.cfg.ReportsChannelID, content); err != nil {
		return err
	}
	return n.platform.DeleteMessage(ctx, channelID, messageID)
}

// channelName resolves a channel's name; an unknown name renders empty.
func (n *Notifier) channelName(ctx context.Context, channelID string) string {
	name, err := n.platform.ChannelName(ctx, channelID)
	if err != nil {
		n.log.Warn("resolve channel name", zap.String("channel", channelID), zap.Error(err))
		return ""
	}
	return name
}
