package bot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"tablebot/config"
	"tablebot/models"
	"tablebot/platform"
	"tablebot/services"
)

const (
	listColor     = 0x3498DB
	helpColor     = 0x2ECC71
	maxListFields = 25

	// embed size limits enforced by Discord, in characters
	maxFieldValue = 1024
	maxEmbedChars = 6000

	maxListDescription = 600
	maxListLink        = 200
	listOverflowRoom   = 64
)

// Message the parts of an incoming chat message a command needs.
type Message struct {
	ID         string
	ChannelID  string
	AuthorID   string
	AuthorName string
}

// command one prefix command
type command struct {
	name        string
	aliases     []string
	usage       string
	description string
	mentorOnly  bool
	ownerOnly   bool
	hidden      bool
	run         func(ctx context.Context, msg Message, args []string) error
}

// CommandHandler parses and dispatches prefix commands.
type CommandHandler struct {
	tables   *services.TableService
	help     *services.HelpService
	notifier *services.Notifier
	platform platform.Platform
	cfg      *config.Config
	log      *zap.Logger
	shutdown func()

	commands map[string]*command
	ordered  []*command
}

// NewCommandHandler creates the handler. shutdown is called by the owner-only
// shutdown command.
func NewCommandHandler(
	tables *services.TableService,
	help *services.HelpService,
	notifier *services.Notifier,
	p platform.Platform,
	cfg *config.Config,
	log *zap.Logger,
	shutdown func(),
) *CommandHandler {
	h := &CommandHandler{
		tables:   tables,
		help:     help,
		notifier: notifier,
		platform: p,
		cfg:      cfg,
		log:      log.With(zap.String("component", "commands")),
		shutdown: shutdown,
		commands: make(map[string]*command),
	}

	h.register(&command{name: "join", usage: "<table_number>", description: "Add yourself to a table", run: h.cmdJoin})
	h.register(&command{name: "leave", usage: "<table_number>", description: "Remove yourself from a table", run: h.cmdLeave})
	h.register(&command{name: "request", usage: "<description> [<link to code>]", description: "Request help from a mentor", run: h.cmdRequest})
	h.register(&command{name: "list", description: "List all help requests", mentorOnly: true, run: h.cmdList})
	h.register(&command{name: "complete", usage: "<id>", description: "Mark a help request as completed", mentorOnly: true, run: h.cmdComplete})
	h.register(&command{name: "report", usage: "<message>", description: "Send a report of non-immediate importance", run: h.cmdReport})
	h.register(&command{name: "emergency", aliases: []string{"em"}, usage: "[<message>]", description: "Send a report of immediate importance with an optional message. This pings the mods/admins", run: h.cmdEmergency})
	h.register(&command{name: "shutdown", description: "Shutdown the bot", ownerOnly: true, hidden: true, run: h.cmdShutdown})
	h.register(&command{name: "help", description: "Show this list", run: h.cmdHelp})

	return h
}

func (h *CommandHandler) register(c *command) {
	h.commands[c.name] = c
	for _, alias := range c.aliases {
		h.commands[alias] = c
	}
	h.ordered = append(h.ordered, c)
}

// Handle runs the command in content, if any. It never returns an error; all
// failures are answered in the channel and logged.
func (h *CommandHandler) Handle(ctx context.Context, msg Message, content string) {
	name, args, ok, err := parseCommand(content, h.cfg.CommandPrefix)
	if !ok {
		return
	}
	if err != nil {
		h.reply(ctx, msg, fmt.Sprintf("Failed parsing arguments: %s", err))
		return
	}
	if name == "" {
		h.reply(ctx, msg, fmt.Sprintf("Please use `%shelp` to view the commands", h.cfg.CommandPrefix))
		return
	}

	cmd, found := h.commands[name]
	if !found {
		h.log.Info("unknown command", zap.String("command", name), zap.String("author", msg.AuthorName))
		h.reply(ctx, msg, fmt.Sprintf("Unknown command '%s'", name))
		return
	}

	h.log.Info("got command", zap.String("command", cmd.name), zap.String("author", msg.AuthorName), zap.String("author_id", msg.AuthorID))

	if cmd.ownerOnly && !h.cfg.IsOwner(msg.AuthorID) {
		h.reply(ctx, msg, platform.Mention(msg.AuthorID)+" You must be a bot owner to run this command!")
		return
	}
	if cmd.mentorOnly {
		mentor, err := h.isMentor(ctx, msg.AuthorID)
		if err != nil {
			h.fail(ctx, msg, cmd.name, err)
			return
		}
		if !mentor {
			h.reply(ctx, msg, platform.Mention(msg.AuthorID)+" You must be a mentor to run this command!")
			return
		}
	}

	if err := cmd.run(ctx, msg, args); err != nil {
		h.fail(ctx, msg, cmd.name, err)
	}
}

func (h *CommandHandler) cmdJoin(ctx context.Context, msg Message, args []string) error {
	n, err := parseTableNumber(args)
	if err != nil {
		return err
	}
	handle, err := h.tables.Join(ctx, msg.AuthorID, n)
	if err != nil {
		return err
	}
	h.reply(ctx, msg, fmt.Sprintf("Successfully added %s to `%s`.", platform.Mention(msg.AuthorID), handle.Label))
	return nil
}

func (h *CommandHandler) cmdLeave(ctx context.Context, msg Message, args []string) error {
	n, err := parseTableNumber(args)
	if err != nil {
		return err
	}
	label, err := h.tables.Leave(ctx, msg.AuthorID, n)
	if err != nil {
		return err
	}
	h.reply(ctx, msg, fmt.Sprintf("Successfully removed %s from `%s`.", platform.Mention(msg.AuthorID), label))
	return nil
}

func (h *CommandHandler) cmdRequest(ctx context.Context, msg Message, args []string) error {
	description, link := splitRequest(args)
	if _, err := h.help.Request(ctx, msg.AuthorID, msg.AuthorName, description, link); err != nil {
		return err
	}
	h.reply(ctx, msg, fmt.Sprintf("Successfully requested help for %s.", platform.Mention(msg.AuthorID)))
	return nil
}

func (h *CommandHandler) cmdList(ctx context.Context, msg Message, _ []string) error {
	pending, err := h.help.List(ctx)
	if err != nil {
		return err
	}
	return h.platform.SendEmbed(ctx, msg.ChannelID, listEmbed(pending))
}

func (h *CommandHandler) cmdComplete(ctx context.Context, msg Message, args []string) error {
	if len(args) == 0 {
		return &services.ValidationError{Field: "id"}
	}
	id := args[0]
	if err := h.help.Complete(ctx, id, msg.AuthorID); err != nil {
		return err
	}
	h.reply(ctx, msg, fmt.Sprintf("Deleted help request %s for %s.", id, platform.Mention(msg.AuthorID)))
	return nil
}

func (h *CommandHandler) cmdReport(ctx context.Context, msg Message, args []string) error {
	text := strings.Join(args, " ")
	if text == "" {
		return &services.ValidationError{Field: "message"}
	}
	return h.notifier.Report(ctx, msg.AuthorID, msg.ChannelID, msg.ID, text)
}

func (h *CommandHandler) cmdEmergency(ctx context.Context, msg Message, args []string) error {
	return h.notifier.Emergency(ctx, msg.AuthorID, msg.ChannelID, msg.ID, strings.Join(args, " "))
}

func (h *CommandHandler) cmdShutdown(ctx context.Context, msg Message, _ []string) error {
	h.reply(ctx, msg, "I'm going down for maintenance!")
	h.log.Warn("shutdown requested", zap.String("author_id", msg.AuthorID))
	if h.shutdown != nil {
		h.shutdown()
	}
	return nil
}

func (h *CommandHandler) cmdHelp(ctx context.Context, msg Message, _ []string) error {
	embed := platform.Embed{
		Title:       "Commands",
		Description: fmt.Sprintf("Prefix every command with `%s`.", h.cfg.CommandPrefix),
		Color:       helpColor,
	}
	for _, c := range h.ordered {
		if c.hidden {
			continue
		}
		usage := h.cfg.CommandPrefix + c.name
		if c.usage != "" {
			usage += " " + c.usage
		}
		value := c.description
		if len(c.aliases) > 0 {
			value += "\nAliases: " + strings.Join(c.aliases, ", ")
		}
		if c.mentorOnly {
			value += "\nMentors only"
		}
		embed.Fields = append(embed.Fields, platform.EmbedField{Name: usage, Value: value})
	}
	return h.platform.SendEmbed(ctx, msg.ChannelID, embed)
}

// listEmbed renders pending requests, oldest first, within the platform's
// field count and size limits.
func listEmbed(pending []models.HelpRequest) platform.Embed {
	const intro = "Here is a list of all the uncompleted help requests:"
	embed := platform.Embed{
		Description: intro,
		Color:       listColor,
		Timestamp:   time.Now(),
	}
	sort.SliceStable(pending, func(i, j int) bool { return pending[i].CreatedAt < pending[j].CreatedAt })

	budget := maxEmbedChars - utf8.RuneCountInString(intro) - listOverflowRoom
	for _, req := range pending {
		if len(embed.Fields) == maxListFields {
			break
		}
		value := truncate(fmt.Sprintf("**Timestamp**: %s\n**Description**: %s\n**Link**: %s\n**For**: %s",
			req.Time().Format("2006-01-02 15:04:05 -07:00"),
			truncate(req.Description, maxListDescription),
			truncate(req.Link, maxListLink),
			req.Attribution), maxFieldValue)
		size := utf8.RuneCountInString(req.ID) + utf8.RuneCountInString(value)
		if size > budget {
			break
		}
		budget -= size
		embed.Fields = append(embed.Fields, platform.EmbedField{
			Name:   req.ID,
			Value:  value,
			Inline: true,
		})
	}
	if len(embed.Fields) < len(pending) {
		embed.Description += fmt.Sprintf("\n(showing the oldest %d of %d)", len(embed.Fields), len(pending))
	}
	return embed
}

// truncate shortens s to at most limit characters, marking the cut with an ellipsis.
func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return string(r[:limit-1]) + "…"
}

func (h *CommandHandler) isMentor(ctx context.Context, userID string) (bool, error) {
	roles, err := h.platform.MemberRoles(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, r := range roles {
		if r.ID == h.cfg.MentorRoleID {
			return true, nil
		}
	}
	return false, nil
}

// fail answers a failed command. User errors are answered as they are;
// anything else is logged and answered with retry guidance.
func (h *CommandHandler) fail(ctx context.Context, msg Message, name string, err error) {
	text := services.UserMessage(name, err)
	var precondition *services.PreconditionError
	switch {
	case errors.As(err, &precondition):
		text = platform.Mention(msg.AuthorID) + " " + text
	case !services.IsUserError(err):
		h.log.Error("command failed",
			zap.String("command", name), zap.String("author", msg.AuthorName), zap.Error(err))
	}
	h.reply(ctx, msg, text)
}

func (h *CommandHandler) reply(ctx context.Context, msg Message, content string) {
	if err := h.platform.SendMessage(ctx, msg.ChannelID, content); err != nil {
		h.log.Error("failed to send message", zap.String("channel", msg.ChannelID), zap.Error(err))
	}
}
