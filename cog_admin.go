package main

import (
	"errors"
	"os"
	"path/filepath"
	"sort"

	"github.com/bwmarrin/discordgo"
)

func newAdminCog(b *Bot) *Cog {
	return &Cog{
		ID:          "admin",
		Name:        "Admin",
		Description: "Administrator commands",
		Commands: []*Command{
			{Name: "stop_bot", Description: "Stop the bot", Handler: b.processControl("stop", "Bot is going to stop")},
			{Name: "restart_bot", Description: "Restart the bot", Handler: b.processControl("restart", "Bot is going to restart")},
			{Name: "update_bot", Description: "Pull the latest version and restart", Handler: b.processControl("update", "Bot is going to update")},
			{Name: "load_conf", Description: "Reload the bot settings", Handler: b.cmdLoadConf},
			{
				Name:        "log_viewer",
				Description: "Browse a log file",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:         discordgo.ApplicationCommandOptionString,
						Name:         "filename",
						Description:  "Log file name",
						Required:     true,
						Autocomplete: true,
					},
				},
				Handler:      b.cmdLogViewer,
				Autocomplete: b.completeLogFiles,
			},
		},
	}
}

// processControl replies and then hands the subcommand to the CLI, which
// signals this process through the PID file.
func (b *Bot) processControl(subcommand, reply string) CommandHandler {
	return func(c *CommandContext) error {
		if err := c.Reply(reply); err != nil {
			return err
		}
		logInfoCtx(c.Context(), "process control", "action", subcommand, "user", c.UserID())
		return b.spawn(subcommand)
	}
}

func (b *Bot) cmdLoadConf(c *CommandContext) error {
	if err := b.settings.Reload(); err != nil {
		return err
	}
	logInfoCtx(c.Context(), "bot settings reloaded", "path", b.settings.Path(), "user", c.UserID())
	return c.Reply("Bot settings reloaded.")
}

func (b *Bot) cmdLogViewer(c *CommandContext) error {
	name := c.String("filename")
	if !validLogName(name) {
		return c.ReplyEphemeral("Invalid file name.")
	}
	pages, err := loadPageViewer(filepath.Join(b.settings.LogDir(), name), logPageLimit)
	if errors.Is(err, os.ErrNotExist) {
		return c.ReplyEphemeral("No such log file.")
	}
	if err != nil {
		return err
	}
	return c.ReplyView(&logViewerView{pages: pages}, "", false)
}

// validLogName accepts a bare file name inside the log directory.
func validLogName(name string) bool {
	return name != "" && name != "." && name != ".." && filepath.Base(name) == name
}

func (b *Bot) completeLogFiles(c *CommandContext, option, current string) []*discordgo.ApplicationCommandOptionChoice {
	entries, err := os.ReadDir(b.settings.LogDir())
	if err != nil {
		logWarn("log dir unreadable", "dir", b.settings.LogDir(), "error", err)
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return matchChoices(names, current)
}
