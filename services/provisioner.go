package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"tablebot/config"
	"tablebot/models"
	"tablebot/platform"
)

// tableColors palette table roles are coloured from
var tableColors = []int{
	0x6FC6E2, 0x7289DA, 0x206694, 0xC27C0E, 0x607D8B,
	0xAD1457, 0xA84300, 0x71368A, 0x11806A, 0x546E7A,
	0xFAB1ED, 0x8882C4, 0x11CA80, 0xF1C40F, 0xBADA55,
	0x979C9F, 0x95A5A6, 0xE91E63, 0xE68397, 0xE67E22,
	0x9B59B6, 0xE74C3C, 0x7596FF, 0xF6DBD8, 0x1ABC9C,
}

// tableRolePermissions guild-wide permissions of a table role; nothing administrative
const tableRolePermissions = platform.PermChangeNickname |
	platform.PermViewChannel |
	platform.PermSendMessages |
	platform.PermEmbedLinks |
	platform.PermAttachFiles |
	platform.PermReadMessageHistory |
	platform.PermUseExternalEmojis |
	platform.PermAddReactions |
	platform.PermVoiceConnect |
	platform.PermVoiceSpeak |
	platform.PermVoiceUseVAD

const (
	readWrite = platform.PermViewChannel | platform.PermReadMessageHistory | platform.PermSendMessages
	readOnly  = platform.PermViewChannel | platform.PermReadMessageHistory
)

// Provisioner makes sure the role and private channel of a table exist.
//
// Role and channel creation are separate platform calls. Every step looks up
// before it creates, so a retry after a partial failure reuses whatever the
// previous attempt left behind. When two commands create the same object
// concurrently, both re-query after creating and the oldest object wins; the
// loser deletes its own copy.
type Provisioner struct {
	platform platform.Platform
	cfg      *config.Config
	log      *zap.Logger
}

// NewProvisioner creates a provisioner.
func NewProvisioner(p platform.Platform, cfg *config.Config, log *zap.Logger) *Provisioner {
	return &Provisioner{
		platform: p,
		cfg:      cfg,
		log:      log.With(zap.String("component", "provisioner")),
	}
}

// EnsureTable returns the role and channel of table n, creating what is missing.
func (p *Provisioner) EnsureTable(ctx context.Context, n int64) (models.TableHandle, error) {
	label := models.TableLabel(n)

	role, err := p.ensureRole(ctx, n, label)
	if err != nil {
		return models.TableHandle{}, err
	}

	channel, err := p.ensureChannel(ctx, n, role.ID)
	if err != nil {
		return models.TableHandle{}, err
	}

	return models.TableHandle{
		Number:    n,
		Label:     label,
		RoleID:    role.ID,
		ChannelID: channel.ID,
	}, nil
}

// TableColor returns the palette colour of table n.
func TableColor(n int64) int {
	i := n % int64(len(tableColors))
	if i < 0 {
		i = -i
	}
	return tableColors[i]
}

func (p *Provisioner) ensureRole(ctx context.Context, n int64, label string) (platform.Role, error) {
	roles, err := p.platform.RolesByName(ctx, label)
	if err != nil {
		return platform.Role{}, err
	}
	if len(roles) > 0 {
		return oldestRole(roles), nil
	}

	created, err := p.platform.CreateRole(ctx, platform.RoleSpec{
		Name:        label,
		Color:       TableColor(n),
		Permissions: tableRolePermissions,
		Hoist:       true,
		Mentionable: false,
	})
	if err != nil {
		return platform.Role{}, err
	}
	p.log.Info("created table role", zap.String("label", label), zap.String("role_id", created.ID))

	// another command may have created the same label meanwhile
	roles, err = p.platform.RolesByName(ctx, label)
	if err != nil {
		p.log.Warn("re-query after role create failed", zap.String("label", label), zap.Error(err))
		return created, nil
	}
	canonical := oldestRole(append(roles, created))
	if canonical.ID != created.ID {
		p.log.Warn("duplicate table role, keeping the older one",
			zap.String("label", label), zap.String("kept", canonical.ID), zap.String("dropped", created.ID))
		if err := p.platform.DeleteRole(ctx, created.ID); err != nil {
			p.log.Warn("failed to delete duplicate role", zap.String("role_id", created.ID), zap.Error(err))
		}
	}
	return canonical, nil
}

func (p *Provisioner) ensureChannel(ctx context.Context, n int64, roleID string) (platform.Channel, error) {
	name := models.TableChannelName(n)

	channels, err := p.platform.ChannelsByName(ctx, name)
	if err != nil {
		return platform.Channel{}, err
	}
	if len(channels) > 0 {
		return oldestChannel(channels), nil
	}

	created, err := p.platform.CreateChannel(ctx, platform.ChannelSpec{
		Name:       name,
		Topic:      fmt.Sprintf("Private discussion space for %s", models.TableLabel(n)),
		ParentID:   p.cfg.TablesCategoryID,
		Overwrites: p.channelOverwrites(roleID),
	})
	if err != nil {
		return platform.Channel{}, err
	}
	p.log.Info("created table channel", zap.String("name", name), zap.String("channel_id", created.ID))

	channels, err = p.platform.ChannelsByName(ctx, name)
	if err != nil {
		p.log.Warn("re-query after channel create failed", zap.String("name", name), zap.Error(err))
		return created, nil
	}
	canonical := oldestChannel(append(channels, created))
	if canonical.ID != created.ID {
		p.log.Warn("duplicate table channel, keeping the older one",
			zap.String("name", name), zap.String("kept", canonical.ID), zap.String("dropped", created.ID))
		if err := p.platform.DeleteChannel(ctx, created.ID); err != nil {
			p.log.Warn("failed to delete duplicate channel", zap.String("channel_id", created.ID), zap.Error(err))
		}
	}
	return canonical, nil
}

// channelOverwrites permission template of a table channel
func (p *Provisioner) channelOverwrites(roleID string) []platform.Overwrite {
	return []platform.Overwrite{
		{RoleID: roleID, Allow: readWrite},
		{RoleID: p.cfg.EveryoneRoleID, Deny: readOnly},
		{RoleID: p.cfg.MentorRoleID, Allow: readWrite},
		{RoleID: p.cfg.ManagerRoleID, Allow: readWrite | platform.PermManageMessages},
		{RoleID: p.cfg.BotRoleID, Allow: readOnly},
	}
}

func oldestRole(roles []platform.Role) platform.Role {
	oldest := roles[0]
	for _, r := range roles[1:] {
		if platform.OlderID(r.ID, oldest.ID) {
			oldest = r
		}
	}
	return oldest
}

func oldestChannel(channels []platform.Channel) platform.Channel {
	oldest := channels[0]
	for _, c := range channels[1:] {
		if platform.OlderID(c.ID, oldest.ID) {
			oldest = c
		}
	}
	return oldest
}
