package main

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/bwmarrin/discordgo"
)

const (
	syncAllServers      = "all"
	syncAllServersLabel = "All servers"
	embedColorBlurple   = 0x5865F2
)

var guildSuffixRe = regexp.MustCompile(`\((\d+)\)\s*$`)

// newControlCog builds the cog-management commands. They are authorized by
// the admin role list and synced to the admin guilds.
func newControlCog(b *Bot) *Cog {
	cogOptions := func() []*discordgo.ApplicationCommandOption {
		return []*discordgo.ApplicationCommandOption{
			{
				Type:         discordgo.ApplicationCommandOptionString,
				Name:         "cog_name",
				Description:  "Cog id",
				Required:     true,
				Autocomplete: true,
			},
			{
				Type:        discordgo.ApplicationCommandOptionBoolean,
				Name:        "sync",
				Description: "Sync commands afterwards",
			},
		}
	}
	return &Cog{
		ID:          "cog_control",
		Name:        "CogControl",
		Description: "Cog management",
		Admin:       true,
		Commands: []*Command{
			{Name: "print_cogs", Description: "Show loaded and unloaded cogs", Handler: b.cmdPrintCogs},
			{
				Name:         "load_cog",
				Description:  "Load a cog",
				Options:      cogOptions(),
				Handler:      b.cogAction("Loaded", "load", b.cogs.Load),
				Autocomplete: b.completeCogs(false),
			},
			{
				Name:         "unload_cog",
				Description:  "Unload a cog",
				Options:      cogOptions(),
				Handler:      b.cogAction("Unloaded", "unload", b.cogs.Unload),
				Autocomplete: b.completeCogs(true),
			},
			{
				Name:         "reload_cog",
				Description:  "Reload a cog",
				Options:      cogOptions(),
				Handler:      b.cogAction("Reloaded", "reload", b.cogs.Reload),
				Autocomplete: b.completeCogs(true),
			},
			{
				Name:        "sync_commands",
				Description: "Sync slash commands to servers",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:         discordgo.ApplicationCommandOptionString,
						Name:         "server",
						Description:  "Server, or all",
						Required:     true,
						Autocomplete: true,
					},
				},
				Handler:      b.cmdSyncCommands,
				Autocomplete: b.completeGuilds,
			},
		},
	}
}

func (b *Bot) cmdPrintCogs(c *CommandContext) error {
	format := func(ids []string) string {
		if len(ids) == 0 {
			return "> **(none)**"
		}
		lines := make([]string, 0, len(ids))
		for _, id := range ids {
			desc := "No description"
			if cog, ok := b.cogs.Cog(id); ok && cog.Description != "" {
				desc = cog.Description
			}
			lines = append(lines, fmt.Sprintf("> **%s:**\n> %s", id, desc))
		}
		return truncate(strings.Join(lines, "\n"), 1024)
	}
	return c.ReplyEmbed(&discordgo.MessageEmbed{
		Title: "**Available cogs**",
		Color: embedColorBlurple,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Loaded", Value: format(b.cogs.Loaded())},
			{Name: "Unloaded", Value: format(b.cogs.Unloaded())},
		},
	})
}

// cogAction builds load/unload/reload handlers. Failures are reported in the
// channel rather than as command errors.
func (b *Bot) cogAction(done, verb string, fn func(id string) error) CommandHandler {
	return func(c *CommandContext) error {
		id := c.String("cog_name")
		if err := fn(id); err != nil {
			logWarnCtx(c.Context(), "cog "+verb+" failed", "cog", id, "user", c.UserID(), "error", err)
			return c.Reply(fmt.Sprintf("Failed to %s %s\n```%v```", verb, id, err))
		}
		msg := fmt.Sprintf("%s %s", done, id)
		logInfoCtx(c.Context(), "cog "+verb, "cog", id, "user", c.UserID())
		if err := c.Reply(msg); err != nil {
			return err
		}
		if c.Bool("sync") {
			return b.syncWithProgress(c, msg, "")
		}
		return nil
	}
}

func (b *Bot) cmdSyncCommands(c *CommandContext) error {
	server := c.String("server")
	guildID, ok := parseSyncTarget(server)
	if !ok {
		return c.ReplyEphemeral("Unknown server: " + server)
	}
	if err := c.Reply("Starting sync"); err != nil {
		return err
	}
	logInfoCtx(c.Context(), "sync commands", "target", b.guildName(guildID), "user", c.UserID())
	return b.syncWithProgress(c, "", guildID)
}

// syncWithProgress edits the reply while commands are synced.
func (b *Bot) syncWithProgress(c *CommandContext, msg, guildID string) error {
	if msg != "" {
		msg += "\n"
	}
	if err := c.EditReply(msg + "Syncing commands, please wait..."); err != nil {
		return err
	}
	return c.EditReply(msg + b.syncReport(b.SyncCommands(guildID)))
}

// parseSyncTarget accepts "all", a guild id, or an autocomplete label
// "Name (id)". All servers is the empty guild id.
func parseSyncTarget(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, syncAllServers) || s == syncAllServersLabel {
		return "", true
	}
	if m := guildSuffixRe.FindStringSubmatch(s); m != nil {
		return m[1], true
	}
	if s != "" && strings.Trim(s, "0123456789") == "" {
		return s, true
	}
	return "", false
}

func (b *Bot) completeCogs(loaded bool) AutocompleteHandler {
	return func(c *CommandContext, option, current string) []*discordgo.ApplicationCommandOptionChoice {
		if loaded {
			return matchChoices(b.cogs.Loaded(), current)
		}
		return matchChoices(b.cogs.Unloaded(), current)
	}
}

func (b *Bot) completeGuilds(c *CommandContext, option, current string) []*discordgo.ApplicationCommandOptionChoice {
	choices := []*discordgo.ApplicationCommandOptionChoice{{Name: syncAllServersLabel, Value: syncAllServers}}
	current = strings.ToLower(current)
	for _, g := range b.session.Guilds() {
		label := fmt.Sprintf("%s (%s)", g.Name, g.ID)
		if strings.Contains(strings.ToLower(label), current) {
			choices = append(choices, &discordgo.ApplicationCommandOptionChoice{Name: label, Value: g.ID})
		}
	}
	return choices
}
