package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T, settings string) (*cogRegistry, *AuthResolver) {
	t.Helper()
	s := newTestSettings(t, settings)
	auth := newAuthResolver(s)
	return newCogRegistry(auth, s), auth
}

func noop(*CommandContext) error { return nil }

func TestCogRegistry_RegisterDerivesID(t *testing.T) {
	r, _ := newTestRegistry(t, "")

	cog := &Cog{Name: "WeeklyReminder"}
	require.NoError(t, r.Register(cog))
	assert.Equal(t, "weekly_reminder", cog.ID)

	assert.Error(t, r.Register(&Cog{ID: "weekly_reminder"}), "duplicate id")
	assert.Error(t, r.Register(&Cog{}), "no id and no name")
	assert.Equal(t, []string{"weekly_reminder"}, r.Unloaded())
}

func TestCogRegistry_LoadUnloadReload(t *testing.T) {
	r, auth := newTestRegistry(t, "")
	require.NoError(t, r.Register(&Cog{ID: "fun", Commands: []*Command{{Name: "roll", Handler: noop}}}))

	assert.ErrorIs(t, r.Load("missing"), ErrUnknownCog)
	assert.ErrorIs(t, r.Unload("fun"), ErrCogNotLoaded)

	require.NoError(t, r.Load("fun"))
	assert.ErrorIs(t, r.Load("fun"), ErrCogLoaded)
	assert.Equal(t, []string{"fun"}, r.Loaded())

	cog, cmd, ok := r.Command("roll")
	require.True(t, ok)
	assert.Equal(t, "fun", cog.ID)
	assert.Equal(t, "roll", cmd.Name)
	_, ok = auth.ResolveCommand("roll")
	assert.True(t, ok)

	require.NoError(t, r.Reload("fun"))
	assert.Equal(t, []string{"fun"}, r.Loaded())

	require.NoError(t, r.Unload("fun"))
	_, _, ok = r.Command("roll")
	assert.False(t, ok)
	_, ok = auth.ResolveCommand("roll")
	assert.False(t, ok, "unloaded commands leave the resolver")
	assert.ErrorIs(t, r.Reload("fun"), ErrCogNotLoaded)
}

func TestCogRegistry_AdminCogStaysLoaded(t *testing.T) {
	r, _ := newTestRegistry(t, "")
	require.NoError(t, r.Register(&Cog{ID: "ctl", Admin: true, Commands: []*Command{{Name: "print_cogs", Handler: noop}}}))
	require.NoError(t, r.Load("ctl"))

	assert.Error(t, r.Unload("ctl"))
	assert.Equal(t, []string{"ctl"}, r.Loaded())
}

func TestCogRegistry_CommandConflict(t *testing.T) {
	r, _ := newTestRegistry(t, "")
	require.NoError(t, r.Register(&Cog{ID: "a", Commands: []*Command{{Name: "ping", Handler: noop}}}))
	require.NoError(t, r.Register(&Cog{ID: "b", Commands: []*Command{{Name: "ping", Handler: noop}}}))

	r.LoadAll()
	assert.Equal(t, []string{"a"}, r.Loaded())
	assert.Equal(t, []string{"b"}, r.Unloaded())
}

func TestCogRegistry_LoadCreatesCogRecord(t *testing.T) {
	r, _ := newTestRegistry(t, "")
	require.NoError(t, r.Register(&Cog{ID: "fun", Commands: []*Command{{Name: "roll", Handler: noop}}}))
	require.NoError(t, r.Load("fun"))

	roles, found := r.settings.cogRoles("fun")
	assert.True(t, found)
	assert.Empty(t, roles)
	assert.Empty(t, r.settings.CogGuilds("fun"))
}

func TestCogRegistry_ApplicationCommands(t *testing.T) {
	r, _ := newTestRegistry(t, `{"admin_guild_ids": ["1"],
		"cog_auth": {"fun": {"guilds": ["2", "3"], "roles": [], "permissions": {}, "commands": {}}}}`)
	require.NoError(t, r.Register(&Cog{ID: "ctl", Admin: true, Commands: []*Command{{Name: "sync", Handler: noop}}}))
	require.NoError(t, r.Register(&Cog{ID: "fun", Commands: []*Command{{Name: "roll", Handler: noop}, {Name: "flip", Handler: noop}}}))
	require.NoError(t, r.Register(&Cog{ID: "base", Commands: []*Command{{Name: "help", Handler: noop}}}))
	require.NoError(t, r.Register(&Cog{ID: "idle", Commands: []*Command{{Name: "idle", Handler: noop}}}))
	for _, id := range []string{"ctl", "fun", "base"} {
		require.NoError(t, r.Load(id))
	}

	assert.Equal(t, []string{"help"}, commandNames(r.ApplicationCommands("")))
	assert.Equal(t, []string{"sync"}, commandNames(r.ApplicationCommands("1")))
	assert.Equal(t, []string{"flip", "roll"}, commandNames(r.ApplicationCommands("2")))
	assert.Equal(t, []string{"flip", "roll"}, commandNames(r.ApplicationCommands("3")))

	empty := r.ApplicationCommands("4")
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestCogRegistry_LoadedCogsByName(t *testing.T) {
	r, _ := newTestRegistry(t, "")
	require.NoError(t, r.Register(&Cog{ID: "z", Name: "Alpha"}))
	require.NoError(t, r.Register(&Cog{ID: "a", Name: "Zulu"}))
	r.LoadAll()

	cogs := r.LoadedCogs()
	require.Len(t, cogs, 2)
	assert.Equal(t, "Alpha", cogs[0].Name)
	assert.Equal(t, "Zulu", cogs[1].Name)
}
