package platform

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
)

// Discord Platform over a discordgo session, scoped to one guild.
type Discord struct {
	session *discordgo.Session
	guildID string
}

// NewDiscord creates the Discord platform for guildID.
func NewDiscord(session *discordgo.Session, guildID string) *Discord {
	return &Discord{session: session, guildID: guildID}
}

// Roles are always read through REST so a concurrent create by another
// command is visible to the next lookup.
func (d *Discord) RolesByName(ctx context.Context, name string) ([]Role, error) {
	roles, err := d.session.GuildRoles(d.guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	var out []Role
	for _, r := range roles {
		if r.Name == name {
			out = append(out, Role{ID: r.ID, Name: r.Name})
		}
	}
	return out, nil
}

func (d *Discord) CreateRole(ctx context.Context, spec RoleSpec) (Role, error) {
	role, err := d.session.GuildRoleCreate(d.guildID, &discordgo.RoleParams{
		Name:        spec.Name,
		Color:       &spec.Color,
		Hoist:       &spec.Hoist,
		Permissions: &spec.Permissions,
		Mentionable: &spec.Mentionable,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return Role{}, err
	}
	return Role{ID: role.ID, Name: role.Name}, nil
}

func (d *Discord) DeleteRole(ctx context.Context, roleID string) error {
	return d.session.GuildRoleDelete(d.guildID, roleID, discordgo.WithContext(ctx))
}

func (d *Discord) ChannelsByName(ctx context.Context, name string) ([]Channel, error) {
	channels, err := d.session.GuildChannels(d.guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	var out []Channel
	for _, c := range channels {
		if c.Type == discordgo.ChannelTypeGuildText && c.Name == name {
			out = append(out, Channel{ID: c.ID, Name: c.Name, ParentID: c.ParentID})
		}
	}
	return out, nil
}

func (d *Discord) CreateChannel(ctx context.Context, spec ChannelSpec) (Channel, error) {
	overwrites := make([]*discordgo.PermissionOverwrite, 0, len(spec.Overwrites))
	for _, o := range spec.Overwrites {
		overwrites = append(overwrites, &discordgo.PermissionOverwrite{
			ID:    o.RoleID,
			Type:  discordgo.PermissionOverwriteTypeRole,
			Allow: o.Allow,
			Deny:  o.Deny,
		})
	}

	ch, err := d.session.GuildChannelCreateComplex(d.guildID, discordgo.GuildChannelCreateData{
		Name:                 spec.Name,
		Type:                 discordgo.ChannelTypeGuildText,
		Topic:                spec.Topic,
		ParentID:             spec.ParentID,
		PermissionOverwrites: overwrites,
		NSFW:                 false,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return Channel{}, err
	}
	return Channel{ID: ch.ID, Name: ch.Name, ParentID: ch.ParentID}, nil
}

func (d *Discord) DeleteChannel(ctx context.Context, channelID string) error {
	_, err := d.session.ChannelDelete(channelID, discordgo.WithContext(ctx))
	return err
}

func (d *Discord) ChannelName(ctx context.Context, channelID string) (string, error) {
	if ch, err := d.session.State.Channel(channelID); err == nil {
		return ch.Name, nil
	}
	ch, err := d.session.Channel(channelID, discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}
	return ch.Name, nil
}

func (d *Discord) MemberRoles(ctx context.Context, userID string) ([]Role, error) {
	member, err := d.session.GuildMember(d.guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	roles, err := d.session.GuildRoles(d.guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, err
	}

	names := make(map[string]string, len(roles))
	for _, r := range roles {
		names[r.ID] = r.Name
	}
	out := make([]Role, 0, len(member.Roles))
	for _, id := range member.Roles {
		out = append(out, Role{ID: id, Name: names[id]})
	}
	return out, nil
}

func (d *Discord) AddRole(ctx context.Context, userID, roleID string) error {
	return d.session.GuildMemberRoleAdd(d.guildID, userID, roleID, discordgo.WithContext(ctx))
}

func (d *Discord) RemoveRole(ctx context.Context, userID, roleID string) error {
	return d.session.GuildMemberRoleRemove(d.guildID, userID, roleID, discordgo.WithContext(ctx))
}

func (d *Discord) SendMessage(ctx context.Context, channelID, content string) error {
	_, err := d.session.ChannelMessageSend(channelID, content, discordgo.WithContext(ctx))
	return err
}

func (d *Discord) SendEmbed(ctx context.Context, channelID string, embed Embed) error {
	msg := &discordgo.MessageEmbed{
		Title:       embed.Title,
		Description: embed.Description,
		Color:       embed.Color,
	}
	if !embed.Timestamp.IsZero() {
		msg.Timestamp = embed.Timestamp.UTC().Format(time.RFC3339)
	}
	for _, f := range embed.Fields {
		msg.Fields = append(msg.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	_, err := d.session.ChannelMessageSendEmbed(channelID, msg, discordgo.WithContext(ctx))
	return err
}

func (d *Discord) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	return d.session.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx))
}
