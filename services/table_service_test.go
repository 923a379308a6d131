package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tablebot/models"
)

func TestJoinTeamless(t *testing.T) {
	ctx := context.Background()
	env := newTableEnv(t)
	env.platform.AddMember("42", teamlessRole)

	handle, err := env.tables.Join(ctx, "42", 7)
	require.NoError(t, err)

	assert.Equal(t, 1, env.platform.CountRoles("Table 7"))
	assert.Equal(t, 1, env.platform.CountChannels("table-7"))
	assert.True(t, env.platform.HasRole("42", handle.RoleID))
	assert.False(t, env.platform.HasRole("42", teamlessRole))

	label, ok, err := env.directory.Get(ctx, "42")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Table 7", label)

	state, err := env.tables.State(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, models.Assigned("Table 7"), state)

	assert.Equal(t, []string{"table.joined|42|Table 7|"}, env.events.drain())
}

func TestJoinAlreadyGrouped(t *testing.T) {
	ctx := context.Background()
	env := newTableEnv(t)
	env.platform.AddMember("42", teamlessRole)

	_, err := env.tables.Join(ctx, "42", 7)
	require.NoError(t, err)
	env.events.drain()

	_, err = env.tables.Join(ctx, "42", 8)
	require.ErrorIs(t, err, ErrAlreadyGrouped)
	assert.Equal(t, "You're already part of a team!", UserMessage("join", err))

	assert.Equal(t, 0, env.platform.CountRoles("Table 8"), "no side effects")
	label, _, err := env.directory.Get(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, "Table 7", label)
	assert.Empty(t, env.events.drain())
}

func TestJoinInvalidNumber(t *testing.T) {
	ctx := context.Background()
	env := newTableEnv(t)
	env.platform.AddMember("42", teamlessRole)

	_, err := env.tables.Join(ctx, "42", -1)
	var validation *ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "table_number", validation.Field)
	assert.Equal(t, 0, env.platform.Calls("MemberRoles"))
}

func TestLeave(t *testing.T) {
	ctx := context.Background()
	env := newTableEnv(t)
	env.platform.AddMember("42", teamlessRole)

	handle, err := env.tables.Join(ctx, "42", 7)
	require.NoError(t, err)
	env.events.drain()

	label, err := env.tables.Leave(ctx, "42", 7)
	require.NoError(t, err)
	assert.Equal(t, "Table 7", label)

	assert.False(t, env.platform.HasRole("42", handle.RoleID))
	assert.True(t, env.platform.HasRole("42", teamlessRole))
	_, ok, err := env.directory.Get(ctx, "42")
	require.NoError(t, err)
	assert.False(t, ok)

	// the table outlives its members
	assert.Equal(t, 1, env.platform.CountRoles("Table 7"))
	assert.Equal(t, 1, env.platform.CountChannels("table-7"))
	assert.Equal(t, 0, env.platform.Calls("DeleteRole"))
	assert.Equal(t, 0, env.platform.Calls("DeleteChannel"))

	assert.Equal(t, []string{"table.left|42|Table 7|"}, env.events.drain())
}

func TestLeaveNotInGroup(t *testing.T) {
	ctx := context.Background()
	env := newTableEnv(t)
	env.platform.AddMember("42", teamlessRole)

	t.Run("teamless", func(t *testing.T) {
		_, err := env.tables.Leave(ctx, "42", 7)
		require.ErrorIs(t, err, ErrNotInGroup)
		assert.Equal(t, "You're not part of 'Table 7'!", UserMessage("leave", err))
	})

	t.Run("other table", func(t *testing.T) {
		_, err := env.tables.Join(ctx, "42", 7)
		require.NoError(t, err)

		_, err = env.tables.Leave(ctx, "42", 8)
		require.ErrorIs(t, err, ErrNotInGroup)

		state, err := env.tables.State(ctx, "42")
		require.NoError(t, err)
		assert.Equal(t, models.Assigned("Table 7"), state)
	})
}

func TestLeaveWithTwoTableRoles(t *testing.T) {
	ctx := context.Background()
	env := newTableEnv(t)
	env.platform.AddMember("42", teamlessRole)

	table3, err := env.tables.Join(ctx, "42", 3)
	require.NoError(t, err)
	table7 := env.platform.InsertRole(platformRoleSpec("Table 7"))
	require.NoError(t, env.platform.AddRole(ctx, "42", table7))
	env.events.drain()

	label, err := env.tables.Leave(ctx, "42", 7)
	require.NoError(t, err)
	assert.Equal(t, "Table 7", label)
	assert.False(t, env.platform.HasRole("42", table7))
	assert.True(t, env.platform.HasRole("42", table3.RoleID))
	assert.False(t, env.platform.HasRole("42", teamlessRole), "still seated at Table 3")

	recorded, ok, err := env.directory.Get(ctx, "42")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Table 3", recorded)

	require.NoError(t, env.platform.AddRole(ctx, "42", table7))
	_, err = env.tables.Leave(ctx, "42", 3)
	require.NoError(t, err)
	assert.False(t, env.platform.HasRole("42", table3.RoleID))
	recorded, _, err = env.directory.Get(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, "Table 7", recorded)

	_, err = env.tables.Leave(ctx, "42", 7)
	require.NoError(t, err)
	assert.True(t, env.platform.HasRole("42", teamlessRole))
	_, ok, err = env.directory.Get(ctx, "42")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, []string{
		"table.left|42|Table 7|",
		"table.left|42|Table 3|",
		"table.left|42|Table 7|",
	}, env.events.drain())
}

func TestTableZero(t *testing.T) {
	ctx := context.Background()
	env := newTableEnv(t)
	env.platform.AddMember("42", teamlessRole)

	handle, err := env.tables.Join(ctx, "42", 0)
	require.NoError(t, err)
	assert.Equal(t, "Table 0", handle.Label)

	label, err := env.tables.Leave(ctx, "42", 0)
	require.NoError(t, err)
	assert.Equal(t, "Table 0", label)
	assert.True(t, env.platform.HasRole("42", teamlessRole))
}

func TestJoinLeaveRoundTrip(t *testing.T) {
	ctx := context.Background()
	env := newTableEnv(t)
	env.platform.AddMember("42", teamlessRole)

	for i := 0; i < 3; i++ {
		_, err := env.tables.Join(ctx, "42", 5)
		require.NoError(t, err)
		_, err = env.tables.Leave(ctx, "42", 5)
		require.NoError(t, err)
	}

	state, err := env.tables.State(ctx, "42")
	require.NoError(t, err)
	assert.True(t, state.IsTeamless())
	assert.Equal(t, 1, env.platform.CountRoles("Table 5"))
	assert.Equal(t, 1, env.platform.CountChannels("table-5"))
}

func TestJoinDirectoryWriteFailureIsRepaired(t *testing.T) {
	ctx := context.Background()
	env := newTableEnv(t)
	env.platform.AddMember("42", teamlessRole)

	handle, err := env.platform.CreateRole(ctx, platformRoleSpec("Table 3"))
	require.NoError(t, err)
	// the grant landed but the directory write never happened
	require.NoError(t, env.platform.AddRole(ctx, "42", handle.ID))
	require.NoError(t, env.platform.RemoveRole(ctx, "42", teamlessRole))

	state, err := env.tables.State(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, models.Assigned("Table 3"), state)

	label, ok, err := env.directory.Get(ctx, "42")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Table 3", label)
}

func TestStaleDirectoryIsCleared(t *testing.T) {
	ctx := context.Background()
	env := newTableEnv(t)
	env.platform.AddMember("42", teamlessRole)
	require.NoError(t, env.directory.Set(ctx, "42", "Table 9"))

	state, err := env.tables.State(ctx, "42")
	require.NoError(t, err)
	assert.True(t, state.IsTeamless())

	_, ok, err := env.directory.Get(ctx, "42")
	require.NoError(t, err)
	assert.False(t, ok)

	// the platform says teamless, so joining is allowed
	_, err = env.tables.Join(ctx, "42", 1)
	require.NoError(t, err)
}

func TestJoinPlatformFailure(t *testing.T) {
	ctx := context.Background()
	env := newTableEnv(t)
	env.platform.AddMember("42", teamlessRole)

	env.platform.FailOn("AddRole", errors.New("discord unavailable"))
	_, err := env.tables.Join(ctx, "42", 2)
	require.Error(t, err)
	assert.False(t, IsUserError(err))
	assert.Equal(t, "Command 'join' failed, please try again in a moment.", UserMessage("join", err))

	_, ok, err := env.directory.Get(ctx, "42")
	require.NoError(t, err)
	assert.False(t, ok, "directory is written only after the grant")

	// the retry reuses the role and channel from the first attempt
	env.platform.FailOn("AddRole", nil)
	_, err = env.tables.Join(ctx, "42", 2)
	require.NoError(t, err)
	assert.Equal(t, 1, env.platform.CountRoles("Table 2"))
	assert.Equal(t, 1, env.platform.CountChannels("table-2"))
}

func TestPickLabel(t *testing.T) {
	env := newTableEnv(t)
	ctx := context.Background()

	r3, err := env.platform.CreateRole(ctx, platformRoleSpec("Table 3"))
	require.NoError(t, err)
	r11, err := env.platform.CreateRole(ctx, platformRoleSpec("Table 11"))
	require.NoError(t, err)
	env.platform.AddMember("42", r3.ID, r11.ID)

	t.Run("lowest table without a record", func(t *testing.T) {
		state, err := env.tables.State(ctx, "42")
		require.NoError(t, err)
		assert.Equal(t, "Table 3", state.Label())
	})

	t.Run("recorded table when held", func(t *testing.T) {
		require.NoError(t, env.directory.Set(ctx, "42", "Table 11"))
		state, err := env.tables.State(ctx, "42")
		require.NoError(t, err)
		assert.Equal(t, "Table 11", state.Label())
	})
}
