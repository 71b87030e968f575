package main

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
)

// Views stop answering this long after they were sent.
const viewTTL = 5 * time.Minute

// --- Views ---

// componentView is a message whose components keep state between clicks.
// render builds the message for the view id; handle applies one interaction.
type componentView interface {
	render(id string) *discordgo.InteractionResponseData
	handle(c *ComponentContext) error
}

// componentID builds a custom id "<viewID>:<action>".
func componentID(viewID, action string) string {
	return viewID + ":" + action
}

func parseComponentID(customID string) (viewID, action string, ok bool) {
	viewID, action, ok = strings.Cut(customID, ":")
	if !ok || viewID == "" || action == "" {
		return "", "", false
	}
	return viewID, action, true
}

// --- View State ---

type viewState struct {
	mu        sync.Mutex // serialises clicks on one message
	view      componentView
	owner     string // restricts clicks to one user; empty allows all
	expiresAt time.Time
}

// viewRegistry tracks live views by id.
type viewRegistry struct {
	mu    sync.Mutex
	views map[string]*viewState
	ttl   time.Duration
	now   func() time.Time
}

func newViewRegistry(ttl time.Duration) *viewRegistry {
	return &viewRegistry{
		views: make(map[string]*viewState),
		ttl:   ttl,
		now:   time.Now,
	}
}

func (r *viewRegistry) register(v componentView, owner string) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	r.mu.Lock()
	defer r.mu.Unlock()
	r.views[id] = &viewState{view: v, owner: owner, expiresAt: r.now().Add(r.ttl)}
	return id
}

func (r *viewRegistry) lookup(id string) (*viewState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.views[id]
	if !ok {
		return nil, false
	}
	if !r.now().Before(st.expiresAt) {
		delete(r.views, id)
		return nil, false
	}
	return st, true
}

func (r *viewRegistry) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.views, id)
}

func (r *viewRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.views)
}

// sweep drops expired views and returns how many were removed.
func (r *viewRegistry) sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	n := 0
	for id, st := range r.views {
		if !now.Before(st.expiresAt) {
			delete(r.views, id)
			n++
		}
	}
	return n
}

func (r *viewRegistry) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.sweep(); n > 0 {
				logDebug("expired views removed", "count", n)
			}
		}
	}
}

// --- Component Interactions ---

// ComponentContext is handed to a view for one button click or selection.
type ComponentContext struct {
	ctx         context.Context
	bot         *Bot
	Interaction *discordgo.Interaction
	ViewID      string
	Action      string
	Values      []string

	responded bool
	closed    bool
}

func (c *ComponentContext) Context() context.Context { return c.ctx }
func (c *ComponentContext) UserID() string           { return interactionUserID(c.Interaction) }

// Update edits the message the component belongs to.
func (c *ComponentContext) Update(data *discordgo.InteractionResponseData) error {
	err := c.bot.session.InteractionRespond(c.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: data,
	})
	if err == nil {
		c.responded = true
	}
	return err
}

// ReplyEphemeral answers the click with a private message.
func (c *ComponentContext) ReplyEphemeral(content string) error {
	err := c.bot.session.InteractionRespond(c.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: content, Flags: discordgo.MessageFlagsEphemeral},
	})
	if err == nil {
		c.responded = true
	}
	return err
}

// Close forgets the view once this interaction has been answered.
func (c *ComponentContext) Close() { c.closed = true }

func (b *Bot) handleComponent(ctx context.Context, i *discordgo.Interaction) {
	ctx = withTraceID(ctx, interactionTraceID("component", i))
	data := i.MessageComponentData()
	userID := interactionUserID(i)

	viewID, action, ok := parseComponentID(data.CustomID)
	var st *viewState
	if ok {
		st, ok = b.views.lookup(viewID)
	}
	if !ok {
		logInfoCtx(ctx, "component: unknown or expired view", "customID", data.CustomID, "user", userID)
		b.respondEphemeral(i, "This view has expired.")
		return
	}
	if st.owner != "" && st.owner != userID {
		logInfoCtx(ctx, "component: not owner", "customID", data.CustomID, "user", userID)
		b.respondEphemeral(i, "You are not allowed to use this component.")
		return
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	c := &ComponentContext{
		ctx:         ctx,
		bot:         b,
		Interaction: i,
		ViewID:      viewID,
		Action:      action,
		Values:      data.Values,
	}
	if err := st.view.handle(c); err != nil {
		logErrorCtx(ctx, "component failed", "customID", data.CustomID, "user", userID, "error", err)
		if !c.responded {
			if rerr := c.ReplyEphemeral("Something went wrong."); rerr != nil {
				logWarnCtx(ctx, "component reply failed", "error", rerr)
			}
		}
		return
	}
	if !c.responded {
		if err := c.Update(st.view.render(viewID)); err != nil {
			logWarnCtx(ctx, "component update failed", "customID", data.CustomID, "error", err)
		}
	}
	if c.closed {
		b.views.remove(viewID)
	}
}

// --- Component Builders ---

// discordActionRow creates an action row containing components.
func discordActionRow(components ...discordgo.MessageComponent) discordgo.ActionsRow {
	return discordgo.ActionsRow{Components: components}
}

// discordButton creates a button component.
func discordButton(customID, label string, style discordgo.ButtonStyle, disabled bool) discordgo.Button {
	return discordgo.Button{
		CustomID: customID,
		Label:    label,
		Style:    style,
		Disabled: disabled,
	}
}

// discordSelectMenu creates a string select menu.
func discordSelectMenu(customID, placeholder string, options []discordgo.SelectMenuOption, minValues, maxValues int) discordgo.SelectMenu {
	return discordgo.SelectMenu{
		MenuType:    discordgo.StringSelectMenu,
		CustomID:    customID,
		Placeholder: placeholder,
		MinValues:   &minValues,
		MaxValues:   maxValues,
		Options:     options,
	}
}

// disableComponents returns rows with every button and select disabled.
func disableComponents(rows []discordgo.MessageComponent) []discordgo.MessageComponent {
	out := make([]discordgo.MessageComponent, 0, len(rows))
	for _, row := range rows {
		ar, ok := row.(discordgo.ActionsRow)
		if !ok {
			out = append(out, row)
			continue
		}
		inner := make([]discordgo.MessageComponent, 0, len(ar.Components))
		for _, comp := range ar.Components {
			switch v := comp.(type) {
			case discordgo.Button:
				v.Disabled = true
				inner = append(inner, v)
			case discordgo.SelectMenu:
				v.Disabled = true
				inner = append(inner, v)
			default:
				inner = append(inner, comp)
			}
		}
		out = append(out, discordgo.ActionsRow{Components: inner})
	}
	return out
}

func selectOption(label, value string, selected bool) discordgo.SelectMenuOption {
	return discordgo.SelectMenuOption{Label: label, Value: value, Default: selected}
}
