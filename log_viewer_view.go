package main

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// logPageLimit keeps a page plus its code fence inside one Discord message.
const logPageLimit = 1990

// logViewerView pages through a log file inside a code block.
type logViewerView struct {
	pages *PageViewer
}

func (v *logViewerView) render(id string) *discordgo.InteractionResponseData {
	label := fmt.Sprintf("Page %d", v.pages.Index()+1)
	indicator := discordSelectMenu(componentID(id, "page"), label,
		[]discordgo.SelectMenuOption{selectOption(label, "page", false)}, 1, 1)
	indicator.Disabled = true

	return &discordgo.InteractionResponseData{
		Content: "```js\n" + v.pages.Content() + "\n```",
		Components: []discordgo.MessageComponent{
			discordActionRow(indicator),
			discordActionRow(
				discordButton(componentID(id, "prev"), "Previous", discordgo.PrimaryButton, v.pages.First()),
				discordButton(componentID(id, "next"), "Next", discordgo.PrimaryButton, v.pages.Last()),
			),
		},
	}
}

func (v *logViewerView) handle(c *ComponentContext) error {
	switch c.Action {
	case "prev":
		v.pages.Prev()
	case "next":
		v.pages.Next()
	default:
		return fmt.Errorf("log viewer: unknown action %q", c.Action)
	}
	return nil
}
