package main

import (
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintCogs(t *testing.T) {
	tb := newTestBot(t, "")
	require.NoError(t, tb.cogs.Unload("notification"))

	resp := tb.run(t, member.command("print_cogs"))
	require.Len(t, resp.Data.Embeds, 1)
	embed := resp.Data.Embeds[0]
	assert.Equal(t, "**Available cogs**", embed.Title)
	require.Len(t, embed.Fields, 2)
	assert.Equal(t, "Loaded", embed.Fields[0].Name)
	assert.Contains(t, embed.Fields[0].Value, "> **base:**\n> Basic commands")
	assert.NotContains(t, embed.Fields[0].Value, "notification")
	assert.Equal(t, "> **notification:**\n> Weekly notifications", embed.Fields[1].Value)

	require.NoError(t, tb.cogs.Load("notification"))
	resp = tb.run(t, member.command("print_cogs"))
	assert.Equal(t, "> **(none)**", resp.Data.Embeds[0].Fields[1].Value)
}

func TestCogActions(t *testing.T) {
	tb := newTestBot(t, "")

	resp := tb.run(t, member.command("unload_cog", stringOpt("cog_name", "notification")))
	assert.Equal(t, "Unloaded notification", resp.Data.Content)
	assert.Equal(t, []string{"notification"}, tb.cogs.Unloaded())

	resp = tb.run(t, member.command("reload_cog", stringOpt("cog_name", "notification")))
	assert.Contains(t, resp.Data.Content, "Failed to reload notification\n```")

	resp = tb.run(t, member.command("load_cog", stringOpt("cog_name", "notification"), boolOpt("sync", true)))
	assert.Equal(t, "Loaded notification", resp.Data.Content)
	assert.Equal(t, []string{
		"Loaded notification\nSyncing commands, please wait...",
		"Loaded notification\nSynced successfully.",
	}, tb.session.edits)
	assert.Contains(t, commandNames(tb.session.overwrites[""]), "add_notification")

	resp = tb.run(t, member.command("reload_cog", stringOpt("cog_name", "base")))
	assert.Equal(t, "Reloaded base", resp.Data.Content)

	resp = tb.run(t, member.command("unload_cog", stringOpt("cog_name", "cog_control")))
	assert.Contains(t, resp.Data.Content, "Failed to unload cog_control")
	assert.Contains(t, tb.cogs.Loaded(), "cog_control")
}

func TestCogAutocomplete(t *testing.T) {
	tb := newTestBot(t, "")
	require.NoError(t, tb.cogs.Unload("admin"))

	resp := tb.run(t, member.autocomplete("load_cog", focusedOpt("cog_name", "")))
	require.Len(t, resp.Data.Choices, 1)
	assert.Equal(t, "admin", resp.Data.Choices[0].Value)

	resp = tb.run(t, member.autocomplete("unload_cog", focusedOpt("cog_name", "NOTI")))
	require.Len(t, resp.Data.Choices, 1)
	assert.Equal(t, "notification", resp.Data.Choices[0].Value)
}

func TestSyncCommandsCommand(t *testing.T) {
	tb := newTestBot(t, "")
	tb.session.guilds = []*discordgo.Guild{{ID: "100", Name: "Ops"}, {ID: "200", Name: "Home"}}

	resp := tb.run(t, member.command("sync_commands", stringOpt("server", "Ops (100)")))
	assert.Equal(t, "Starting sync", resp.Data.Content)
	assert.Equal(t, []string{"Syncing commands, please wait...", "Synced successfully."}, tb.session.edits)
	assert.Contains(t, tb.session.overwrites, "100")
	assert.NotContains(t, tb.session.overwrites, "")

	resp = tb.run(t, member.command("sync_commands", stringOpt("server", "somewhere")))
	assert.Equal(t, "Unknown server: somewhere", resp.Data.Content)

	resp = tb.run(t, member.autocomplete("sync_commands", focusedOpt("server", "home")))
	require.Len(t, resp.Data.Choices, 2)
	assert.Equal(t, "All servers", resp.Data.Choices[0].Name)
	assert.Equal(t, "Home (200)", resp.Data.Choices[1].Name)
	assert.Equal(t, "200", resp.Data.Choices[1].Value)
}

func TestParseSyncTarget(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"all", "", true},
		{"ALL", "", true},
		{"All servers", "", true},
		{"Ops (123)", "123", true},
		{"Weird (name) (456)", "456", true},
		{" 789 ", "789", true},
		{"", "", false},
		{"Ops", "", false},
		{"12a", "", false},
	}
	for _, tt := range tests {
		got, ok := parseSyncTarget(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
