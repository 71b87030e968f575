package main

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
)

var weekdayLabels = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// notificationFormView collects hour, minute and weekdays for one message.
// Unset selections are -1 / nil.
type notificationFormView struct {
	manager *NotificationManager
	user    string
	message string
	editing bool

	hour     int
	minute   int
	weekdays []int

	status string
	done   bool
}

// newNotificationForm pre-fills the form from the stored record when the
// user already has one for message.
func newNotificationForm(m *NotificationManager, user, message string) (*notificationFormView, error) {
	v := &notificationFormView{manager: m, user: user, message: message, hour: -1, minute: -1}
	rec, found, err := m.Get(user, message)
	if err != nil {
		return nil, err
	}
	if found {
		v.editing = true
		v.hour, v.minute = rec.Hour, rec.Minute
		v.weekdays = append([]int(nil), rec.Weekdays...)
		sort.Ints(v.weekdays)
	}
	return v, nil
}

func (v *notificationFormView) title() string {
	if v.editing {
		return "# Edit notification"
	}
	return "# Add notification"
}

func (v *notificationFormView) render(id string) *discordgo.InteractionResponseData {
	hours := make([]discordgo.SelectMenuOption, 0, 24)
	for h := 0; h < 24; h++ {
		hours = append(hours, selectOption(fmt.Sprintf("%d h", h), strconv.Itoa(h), h == v.hour))
	}
	minutes := make([]discordgo.SelectMenuOption, 0, 12)
	for m := 0; m < 60; m += 5 {
		minutes = append(minutes, selectOption(fmt.Sprintf("%d min", m), strconv.Itoa(m), m == v.minute))
	}
	days := make([]discordgo.SelectMenuOption, 0, len(weekdayLabels))
	for i, label := range weekdayLabels {
		d := i + 1
		days = append(days, selectOption(label, strconv.Itoa(d), containsInt(v.weekdays, d)))
	}

	rows := []discordgo.MessageComponent{
		discordActionRow(discordSelectMenu(componentID(id, "hour"), "Hour", hours, 1, 1)),
		discordActionRow(discordSelectMenu(componentID(id, "minute"), "Minute", minutes, 1, 1)),
		discordActionRow(discordSelectMenu(componentID(id, "days"), "Weekdays", days, 1, len(days))),
		discordActionRow(
			discordButton(componentID(id, "save"), "Save", discordgo.PrimaryButton, false),
			discordButton(componentID(id, "cancel"), "Cancel", discordgo.SecondaryButton, false),
		),
	}
	if v.done {
		rows = disableComponents(rows)
	}

	content := v.title() + "\n" + v.message
	if v.status != "" {
		content += "\n" + v.status
	}
	return &discordgo.InteractionResponseData{Content: content, Components: rows}
}

func (v *notificationFormView) handle(c *ComponentContext) error {
	if v.done {
		return nil
	}
	switch c.Action {
	case "hour":
		n, err := singleInt(c.Values)
		if err != nil {
			return err
		}
		v.hour = n
	case "minute":
		n, err := singleInt(c.Values)
		if err != nil {
			return err
		}
		v.minute = n
	case "days":
		days := make([]int, 0, len(c.Values))
		for _, s := range c.Values {
			d, err := strconv.Atoi(s)
			if err != nil {
				return fmt.Errorf("weekday %q: %w", s, err)
			}
			days = append(days, d)
		}
		sort.Ints(days)
		v.weekdays = days
	case "save":
		v.save(c)
	case "cancel":
		v.status = "Cancelled."
		v.done = true
		c.Close()
	default:
		return fmt.Errorf("notification form: unknown action %q", c.Action)
	}
	return nil
}

func (v *notificationFormView) save(c *ComponentContext) {
	if v.hour < 0 || v.minute < 0 || len(v.weekdays) == 0 {
		v.status = "Pick an hour, a minute and at least one weekday first."
		return
	}
	channelID := c.Interaction.ChannelID
	if channelID == "" {
		v.status = "Notifications cannot be added in this channel."
		v.done = true
		c.Close()
		return
	}

	rec := NotificationRecord{
		Hour:      v.hour,
		Minute:    v.minute,
		Weekdays:  append([]int(nil), v.weekdays...),
		ChannelID: Snowflake(channelID),
	}
	var err error
	if v.editing {
		err = v.manager.Edit(v.user, v.message, rec)
	} else {
		err = v.manager.Add(v.user, v.message, rec)
	}
	switch {
	case errors.Is(err, ErrNotificationExists):
		v.status = "This notification already exists."
	case err != nil:
		logErrorCtx(c.Context(), "notification save failed", "user", v.user, "error", err)
		v.status = "Could not save the notification."
	default:
		logInfoCtx(c.Context(), "notification saved", "user", v.user, "trigger", rec.trigger().String(), "channel", channelID)
		v.status = "Saved: " + rec.trigger().String()
	}
	v.done = true
	c.Close()
}

func singleInt(values []string) (int, error) {
	if len(values) != 1 {
		return 0, fmt.Errorf("expected one value, got %d", len(values))
	}
	n, err := strconv.Atoi(strings.TrimSpace(values[0]))
	if err != nil {
		return 0, fmt.Errorf("value %q: %w", values[0], err)
	}
	return n, nil
}

func containsInt(list []int, v int) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
