// Package bot connects the command handler to the Discord gateway.
package bot

import (
	"context"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"tablebot/config"
)

// defaultCommandTimeout applies when the configured timeout is unset.
const defaultCommandTimeout = 10 * time.Second

// Bot manages the gateway connection and feeds guild messages to the
// command handler.
type Bot struct {
	session  *discordgo.Session
	commands *CommandHandler
	cfg      *config.Config
	log      *zap.Logger

	wg sync.WaitGroup
}

// NewSession creates a discordgo session with the intents the bot needs.
func NewSession(cfg *config.Config) (*discordgo.Session, error) {
	s, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, err
	}
	s.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentMessageContent
	return s, nil
}

// NewBot creates the bot over an unopened session.
func NewBot(session *discordgo.Session, commands *CommandHandler, cfg *config.Config, log *zap.Logger) *Bot {
	b := &Bot{
		session:  session,
		commands: commands,
		cfg:      cfg,
		log:      log.With(zap.String("component", "bot")),
	}
	session.AddHandler(b.onReady)
	session.AddHandler(b.onResumed)
	session.AddHandler(b.onMessageCreate)
	return b
}

// Start opens the gateway connection.
func (b *Bot) Start() error {
	if err := b.session.Open(); err != nil {
		return err
	}
	b.log.Info("bot connected to discord")
	return nil
}

// Stop closes the gateway and waits for running commands.
func (b *Bot) Stop() {
	if err := b.session.Close(); err != nil {
		b.log.Warn("closing discord session", zap.Error(err))
	}
	b.wg.Wait()
	b.log.Info("bot disconnected")
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	b.log.Info("connected", zap.String("user", r.User.Username))
	b.setActivity(s)
}

func (b *Bot) onResumed(s *discordgo.Session, _ *discordgo.Resumed) {
	b.log.Info("successfully reconnected")
	b.setActivity(s)
}

func (b *Bot) setActivity(s *discordgo.Session) {
	if err := s.UpdateGameStatus(0, b.cfg.CommandPrefix+"help"); err != nil {
		b.log.Warn("set activity", zap.Error(err))
	}
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	if s.State != nil && s.State.User != nil && m.Author.ID == s.State.User.ID {
		return
	}
	if m.GuildID != b.cfg.GuildID {
		return
	}

	b.wg.Add(1)
	defer b.wg.Done()

	timeout := b.cfg.CommandTimeout
	if timeout <= 0 {
		timeout = defaultCommandTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	b.commands.Handle(ctx, messageFrom(m), m.Content)
}

func messageFrom(m *discordgo.MessageCreate) Message {
	return Message{
		ID:         m.ID,
		ChannelID:  m.ChannelID,
		AuthorID:   m.Author.ID,
		AuthorName: m.Author.Username,
	}
}
