package main

import (
	"errors"

	"github.com/bwmarrin/discordgo"
)

func newNotificationCog(b *Bot) *Cog {
	messageOption := func(autocomplete bool) []*discordgo.ApplicationCommandOption {
		return []*discordgo.ApplicationCommandOption{
			{
				Type:         discordgo.ApplicationCommandOptionString,
				Name:         "message",
				Description:  "Notification message",
				Required:     true,
				Autocomplete: autocomplete,
			},
		}
	}
	return &Cog{
		ID:          "notification",
		Name:        "Notification",
		Description: "Weekly notifications",
		Commands: []*Command{
			{
				Name:        "add_notification",
				Description: "Add a weekly notification",
				Options:     messageOption(false),
				Handler:     b.cmdAddNotification,
			},
			{
				Name:         "edit_notification",
				Description:  "Edit a notification",
				Options:      messageOption(true),
				Handler:      b.cmdEditNotification,
				Autocomplete: b.completeNotifications,
			},
			{
				Name:         "del_notification",
				Description:  "Delete a notification",
				Options:      messageOption(true),
				Handler:      b.cmdDelNotification,
				Autocomplete: b.completeNotifications,
			},
		},
	}
}

func (b *Bot) cmdAddNotification(c *CommandContext) error {
	user, message := c.UserID(), c.String("message")
	if _, found, err := b.notify.Get(user, message); err != nil {
		return err
	} else if found {
		return c.ReplyEphemeral("This notification already exists.")
	}
	return b.openNotificationForm(c, user, message)
}

func (b *Bot) cmdEditNotification(c *CommandContext) error {
	user, message := c.UserID(), c.String("message")
	if _, found, err := b.notify.Get(user, message); err != nil {
		return err
	} else if !found {
		return c.ReplyEphemeral("No such notification.")
	}
	return b.openNotificationForm(c, user, message)
}

func (b *Bot) openNotificationForm(c *CommandContext, user, message string) error {
	form, err := newNotificationForm(b.notify, user, message)
	if err != nil {
		return err
	}
	return c.ReplyView(form, user, true)
}

func (b *Bot) cmdDelNotification(c *CommandContext) error {
	user, message := c.UserID(), c.String("message")
	err := b.notify.Delete(user, message)
	if errors.Is(err, ErrNotificationNotFound) {
		return c.ReplyEphemeral("No such notification.")
	}
	if err != nil {
		return err
	}
	logInfoCtx(c.Context(), "notification deleted", "user", user)
	return c.ReplyEphemeral("Notification deleted.")
}

func (b *Bot) completeNotifications(c *CommandContext, option, current string) []*discordgo.ApplicationCommandOptionChoice {
	messages, err := b.notify.Messages(c.UserID())
	if err != nil {
		logWarn("notification autocomplete failed", "user", c.UserID(), "error", err)
		return nil
	}
	return matchChoices(messages, current)
}
