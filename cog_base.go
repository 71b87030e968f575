package main

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
)

func newBaseCog(b *Bot) *Cog {
	return &Cog{
		ID:          "base",
		Name:        "Base",
		Description: "Basic commands",
		Commands: []*Command{
			{
				Name:        "help",
				Description: "Show the commands you can use",
				Handler:     b.cmdHelp,
			},
			{
				Name:        "pong",
				Description: "Gateway latency",
				Handler:     b.cmdPong,
			},
			{
				Name:        "say",
				Description: "Post a message in this channel anonymously",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "text",
						Description: "Message to post",
						Required:    true,
					},
				},
				Handler: b.cmdSay,
			},
		},
	}
}

func (b *Bot) cmdHelp(c *CommandContext) error {
	text := b.helpText(c)
	if text == "" {
		return c.ReplyEphemeral("No commands available.")
	}
	return c.ReplyEphemeral("Available commands:```\n" + text + "```")
}

// helpText lists the commands the caller may run: admin commands first, then
// each cog synced to the current guild, in name order.
func (b *Bot) helpText(c *CommandContext) string {
	var sb strings.Builder
	cogs := b.cogs.LoadedCogs()

	var admin []string
	for _, cog := range cogs {
		if cog.Admin {
			admin = append(admin, b.allowedCommands(c, cog)...)
		}
	}
	if len(admin) > 0 {
		sb.WriteString("Admin commands:\n")
		for _, line := range admin {
			sb.WriteString("\t" + line + "\n")
		}
	}

	for _, cog := range cogs {
		if cog.Admin {
			continue
		}
		if guilds := b.settings.CogGuilds(cog.ID); len(guilds) > 0 && !guilds.contains(c.GuildID()) {
			continue
		}
		lines := b.allowedCommands(c, cog)
		if len(lines) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "%s: %s\n", pascalToSpace(cog.Name), cog.Description)
		for _, line := range lines {
			sb.WriteString("\t" + line + "\n")
		}
	}
	return sb.String()
}

func (b *Bot) allowedCommands(c *CommandContext, cog *Cog) []string {
	var out []string
	for _, cmd := range cog.Commands {
		resolved, ok := b.auth.ResolveCommand(cmd.Name)
		if !ok || !Authorize(c.roles(), c.permissions(), resolved) {
			continue
		}
		out = append(out, cmd.Name+": "+cmd.Description)
	}
	return out
}

func (b *Bot) cmdPong(c *CommandContext) error {
	ms := b.session.HeartbeatLatency().Milliseconds()
	return c.Reply(fmt.Sprintf("Pong!!!  `%d` ms", ms))
}

func (b *Bot) cmdSay(c *CommandContext) error {
	text := strings.TrimSpace(c.String("text"))
	if text == "" {
		return c.ReplyEphemeral("Nothing to send.")
	}
	if err := c.ReplyEphemeral("Sending message..."); err != nil {
		return err
	}
	if _, err := b.session.ChannelMessageSend(c.ChannelID(), text); err != nil {
		logWarnCtx(c.Context(), "say failed", "user", c.UserID(), "channel", c.ChannelID(), "error", err)
		return c.EditReply("Failed to send.")
	}
	logInfoCtx(c.Context(), "say", "user", c.UserID(), "channel", c.ChannelID(), "text", truncate(text, 200))
	return c.EditReply("Sent.")
}
