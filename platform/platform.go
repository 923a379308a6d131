// Package platform is the chat-platform collaborator: role, channel, member
// and message operations on a single guild.
package platform

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
)

// Permission bits, in the platform's wire representation.
const (
	PermViewChannel        int64 = discordgo.PermissionViewChannel
	PermSendMessages       int64 = discordgo.PermissionSendMessages
	PermReadMessageHistory int64 = discordgo.PermissionReadMessageHistory
	PermManageMessages     int64 = discordgo.PermissionManageMessages
	PermEmbedLinks         int64 = discordgo.PermissionEmbedLinks
	PermAttachFiles        int64 = discordgo.PermissionAttachFiles
	PermAddReactions       int64 = discordgo.PermissionAddReactions
	PermUseExternalEmojis  int64 = discordgo.PermissionUseExternalEmojis
	PermChangeNickname     int64 = discordgo.PermissionChangeNickname
	PermVoiceConnect       int64 = discordgo.PermissionVoiceConnect
	PermVoiceSpeak         int64 = discordgo.PermissionVoiceSpeak
	PermVoiceUseVAD        int64 = discordgo.PermissionVoiceUseVAD
)

// Role a guild role
type Role struct {
	ID   string
	Name string
}

// Channel a guild channel
type Channel struct {
	ID       string
	Name     string
	ParentID string
}

// RoleSpec parameters of a role to create
type RoleSpec struct {
	Name        string
	Color       int
	Permissions int64
	Hoist       bool
	Mentionable bool
}

// Overwrite a per-role permission overwrite on a channel
type Overwrite struct {
	RoleID string
	Allow  int64
	Deny   int64
}

// ChannelSpec parameters of a private text channel to create
type ChannelSpec struct {
	Name       string
	Topic      string
	ParentID   string
	Overwrites []Overwrite
}

// EmbedField one field of an embed
type EmbedField struct {
	Name   string
	Value  string
	Inline bool
}

// Embed a structured message
type Embed struct {
	Title       string
	Description string
	Color       int
	Fields      []EmbedField
	Timestamp   time.Time
}

// Platform guild operations used by the services. All calls are blocking
// network calls; ctx bounds them.
type Platform interface {
	RolesByName(ctx context.Context, name string) ([]Role, error)
	CreateRole(ctx context.Context, spec RoleSpec) (Role, error)
	DeleteRole(ctx context.Context, roleID string) error

	ChannelsByName(ctx context.Context, name string) ([]Channel, error)
	CreateChannel(ctx context.Context, spec ChannelSpec) (Channel, error)
	DeleteChannel(ctx context.Context, channelID string) error
	ChannelName(ctx context.Context, channelID string) (string, error)

	MemberRoles(ctx context.Context, userID string) ([]Role, error)
	AddRole(ctx context.Context, userID, roleID string) error
	RemoveRole(ctx context.Context, userID, roleID string) error

	SendMessage(ctx context.Context, channelID, content string) error
	SendEmbed(ctx context.Context, channelID string, embed Embed) error
	DeleteMessage(ctx context.Context, channelID, messageID string) error
}

// OlderID reports whether snowflake a was issued before b.
func OlderID(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}

// Mention formats a user mention.
func Mention(userID string) string {
	return "<@" + userID + ">"
}

// MentionRole formats a role mention.
func MentionRole(roleID string) string {
	return "<@&" + roleID + ">"
}
