package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tablebot/platform"
	"tablebot/platform/platformtest"
)

func TestEnsureTableCreates(t *testing.T) {
	ctx := context.Background()
	p := newTestPlatform()
	prov := NewProvisioner(p, testConfig(), zap.NewNop())

	handle, err := prov.EnsureTable(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), handle.Number)
	assert.Equal(t, "Table 7", handle.Label)

	role, ok := p.Role(handle.RoleID)
	require.True(t, ok)
	assert.Equal(t, "Table 7", role.Name)
	assert.Equal(t, TableColor(7), role.Color)
	assert.Equal(t, tableRolePermissions, role.Permissions)
	assert.True(t, role.Hoist)
	assert.False(t, role.Mentionable)

	channel, ok := p.Channel(handle.ChannelID)
	require.True(t, ok)
	assert.Equal(t, "table-7", channel.Name)
	assert.Equal(t, tablesCategory, channel.ParentID)
	assert.Equal(t, "Private discussion space for Table 7", channel.Topic)
	assert.ElementsMatch(t, []platform.Overwrite{
		{RoleID: handle.RoleID, Allow: readWrite},
		{RoleID: everyoneRole, Deny: readOnly},
		{RoleID: mentorRole, Allow: readWrite},
		{RoleID: managerRole, Allow: readWrite | platform.PermManageMessages},
		{RoleID: botRole, Allow: readOnly},
	}, channel.Overwrites)
}

func TestEnsureTableIdempotent(t *testing.T) {
	ctx := context.Background()
	p := newTestPlatform()
	prov := NewProvisioner(p, testConfig(), zap.NewNop())

	first, err := prov.EnsureTable(ctx, 3)
	require.NoError(t, err)
	second, err := prov.EnsureTable(ctx, 3)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, p.CountRoles("Table 3"))
	assert.Equal(t, 1, p.CountChannels("table-3"))
	assert.Equal(t, 1, p.Calls("CreateRole"))
	assert.Equal(t, 1, p.Calls("CreateChannel"))
}

func TestEnsureTableRetryAfterChannelFailure(t *testing.T) {
	ctx := context.Background()
	p := newTestPlatform()
	prov := NewProvisioner(p, testConfig(), zap.NewNop())

	p.FailOn("CreateChannel", errors.New("discord unavailable"))
	_, err := prov.EnsureTable(ctx, 4)
	require.Error(t, err)
	assert.Equal(t, 1, p.CountRoles("Table 4"), "role survives the failed channel create")
	assert.Equal(t, 0, p.CountChannels("table-4"))

	p.FailOn("CreateChannel", nil)
	handle, err := prov.EnsureTable(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, 1, p.CountRoles("Table 4"), "retry reuses the role")
	assert.Equal(t, 1, p.CountChannels("table-4"))
	assert.Equal(t, 1, p.Calls("CreateRole"))
	assert.NotEmpty(t, handle.ChannelID)
}

func TestEnsureTableConcurrentCreate(t *testing.T) {
	ctx := context.Background()
	p := newTestPlatform()
	prov := NewProvisioner(p, testConfig(), zap.NewNop())

	var rival string
	p.BeforeCreateRole = func(p *platformtest.Platform, spec platform.RoleSpec) {
		// a concurrent join created the same role first
		rival = p.InsertRole(spec)
	}

	handle, err := prov.EnsureTable(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, rival, handle.RoleID, "the older role is canonical")
	assert.Equal(t, 1, p.CountRoles("Table 9"))
	assert.Equal(t, 1, p.Calls("DeleteRole"))

	channel, ok := p.Channel(handle.ChannelID)
	require.True(t, ok)
	assert.Equal(t, rival, channel.Overwrites[0].RoleID)
}

func TestEnsureTableReusesExisting(t *testing.T) {
	ctx := context.Background()
	p := newTestPlatform()
	p.SeedRole("900", "Table 2")
	p.SetChannelName("901", "table-2")
	prov := NewProvisioner(p, testConfig(), zap.NewNop())

	handle, err := prov.EnsureTable(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "900", handle.RoleID)
	assert.Equal(t, "901", handle.ChannelID)
	assert.Equal(t, 0, p.Calls("CreateRole"))
	assert.Equal(t, 0, p.Calls("CreateChannel"))
}

func TestTableColor(t *testing.T) {
	assert.Equal(t, tableColors[0], TableColor(0))
	assert.Equal(t, tableColors[1], TableColor(int64(len(tableColors)+1)))
}
