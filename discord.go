package main

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

// --- Constants ---

const (
	// Discord caps autocomplete results and choice name/value lengths.
	maxAutocompleteChoices = 25
	maxChoiceLength        = 100

	latencySampleEvery = 30 * time.Second
)

// --- Session ---

// discordSession is the part of the discordgo session the bot calls. Tests
// substitute a recording fake.
type discordSession interface {
	InteractionRespond(i *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	InteractionResponseEdit(i *discordgo.Interaction, edit *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ApplicationCommandBulkOverwrite(appID, guildID string, cmds []*discordgo.ApplicationCommand, options ...discordgo.RequestOption) ([]*discordgo.ApplicationCommand, error)
	HeartbeatLatency() time.Duration
	Guilds() []*discordgo.Guild
	AppID() string
}

// gatewaySession adapts a live discordgo session.
type gatewaySession struct {
	*discordgo.Session
	appID string
}

func (g gatewaySession) Guilds() []*discordgo.Guild {
	if g.State == nil {
		return nil
	}
	g.State.RLock()
	defer g.State.RUnlock()
	return append([]*discordgo.Guild(nil), g.State.Guilds...)
}

func (g gatewaySession) AppID() string {
	if g.appID != "" {
		return g.appID
	}
	if g.State != nil && g.State.User != nil {
		return g.State.User.ID
	}
	return ""
}

// --- Bot ---

// Bot owns the gateway session and routes interactions to the loaded cogs.
type Bot struct {
	cfg      *Config
	settings *BotSettings
	auth     *AuthResolver
	cogs     *cogRegistry
	notify   *NotificationManager
	views    *viewRegistry
	session  discordSession

	// spawn runs a process-control subcommand (stop, restart, update).
	spawn func(subcommand string) error
}

func newBot(cfg *Config, settings *BotSettings, notifications *NotificationStore) *Bot {
	b := &Bot{
		cfg:      cfg,
		settings: settings,
		views:    newViewRegistry(viewTTL),
		spawn:    spawnCLI,
	}
	b.auth = newAuthResolver(settings)
	b.cogs = newCogRegistry(b.auth, settings)
	b.notify = newNotificationManager(notifications, newWeeklyScheduler(cfg.location()), b.sendMessage)
	return b
}

// registerCogs registers and loads every built-in cog.
func (b *Bot) registerCogs() error {
	for _, cog := range []*Cog{
		newControlCog(b),
		newBaseCog(b),
		newAdminCog(b),
		newNotificationCog(b),
	} {
		if err := b.cogs.Register(cog); err != nil {
			return err
		}
	}
	b.cogs.LoadAll()
	return nil
}

// Run opens the gateway and blocks until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	if b.cfg.Discord.Token == "" {
		return errors.New("discord token not configured")
	}
	if err := b.registerCogs(); err != nil {
		return err
	}

	s, err := discordgo.New("Bot " + b.cfg.Discord.Token)
	if err != nil {
		return fmt.Errorf("discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuilds
	s.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) { b.onReady(ctx, r) })
	s.AddHandler(func(_ *discordgo.Session, ic *discordgo.InteractionCreate) { b.handleInteraction(ctx, ic) })
	b.session = gatewaySession{Session: s, appID: b.cfg.Discord.AppID}

	if err := s.Open(); err != nil {
		return fmt.Errorf("open gateway: %w", err)
	}
	go b.views.cleanupLoop(ctx)
	go b.latencyLoop(ctx)

	<-ctx.Done()
	logInfo("bot stopping")
	b.notify.Stop()
	return s.Close()
}

func (b *Bot) onReady(ctx context.Context, r *discordgo.Ready) {
	name := ""
	if r.User != nil {
		name = r.User.Username
	}
	logInfo("bot ready", "user", name, "guilds", len(r.Guilds))

	if err := b.notify.Start(ctx); err != nil {
		logError("notification start failed", "error", err)
	}
	if b.cfg.Discord.SyncOnReady {
		b.SyncCommands("")
	}
}

func (b *Bot) latencyLoop(ctx context.Context) {
	ticker := time.NewTicker(latencySampleEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			gatewayLatency.Set(b.session.HeartbeatLatency().Seconds())
		}
	}
}

// sendMessage posts plain text to a channel. It is the notification delivery
// path.
func (b *Bot) sendMessage(ctx context.Context, channelID, content string) error {
	if b.session == nil {
		return errors.New("discord session not open")
	}
	_, err := b.session.ChannelMessageSend(channelID, content)
	return err
}

// --- Interaction Handling ---

func (b *Bot) handleInteraction(ctx context.Context, ic *discordgo.InteractionCreate) {
	switch ic.Type {
	case discordgo.InteractionApplicationCommand:
		b.handleCommand(ctx, ic.Interaction)
	case discordgo.InteractionApplicationCommandAutocomplete:
		b.handleAutocomplete(ctx, ic.Interaction)
	case discordgo.InteractionMessageComponent:
		b.handleComponent(ctx, ic.Interaction)
	default:
		logDebug("interaction ignored", "type", ic.Type.String())
	}
}

func (b *Bot) handleCommand(ctx context.Context, i *discordgo.Interaction) {
	ctx = withTraceID(ctx, interactionTraceID("cmd", i))
	start := time.Now()
	data := i.ApplicationCommandData()

	cog, cmd, ok := b.cogs.Command(data.Name)
	if !ok {
		logWarnCtx(ctx, "unknown command", "command", data.Name, "user", interactionUserID(i))
		b.respondEphemeral(i, "This command is not available.")
		return
	}
	c := newCommandContext(ctx, b, i, cog, cmd, data.Options)

	resolved, _ := b.auth.ResolveCommand(cmd.Name)
	if !Authorize(c.roles(), c.permissions(), resolved) {
		logInfoCtx(ctx, "command denied", "command", cmd.Name, "user", c.UserID(), "auth", describeAuth(resolved))
		recordCommand(cmd.Name, statusDenied, time.Since(start))
		if err := c.ReplyEphemeral(denialMessage(c.roles(), resolved)); err != nil {
			logWarnCtx(ctx, "denial reply failed", "command", cmd.Name, "error", err)
		}
		return
	}

	logInfoCtx(ctx, "command", "command", cmd.Name, "cog", cog.ID, "user", c.UserID(), "guild", i.GuildID)
	status := statusOK
	if err := runCommand(c); err != nil {
		status = statusError
		logErrorCtx(ctx, "command failed", "command", cmd.Name, "user", c.UserID(), "error", err)
		c.replyFailure()
	}
	recordCommand(cmd.Name, status, time.Since(start))
}

func runCommand(c *CommandContext) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return c.Command.Handler(c)
}

func denialMessage(callerRoles []string, resolved ResolvedAuth) string {
	if !rolesAllowed(callerRoles, resolved.Roles) {
		return "Your roles cannot use this command."
	}
	return "You do not have the permissions required for this command."
}

func (b *Bot) handleAutocomplete(ctx context.Context, i *discordgo.Interaction) {
	data := i.ApplicationCommandData()
	choices := []*discordgo.ApplicationCommandOptionChoice{}

	if cog, cmd, ok := b.cogs.Command(data.Name); ok && cmd.Autocomplete != nil {
		c := newCommandContext(ctx, b, i, cog, cmd, data.Options)
		resolved, _ := b.auth.ResolveCommand(cmd.Name)
		// Unauthorized callers get no suggestions.
		if Authorize(c.roles(), c.permissions(), resolved) {
			if opt := focusedOption(data.Options); opt != nil {
				choices = limitChoices(cmd.Autocomplete(c, opt.Name, fmt.Sprint(opt.Value)))
			}
		}
	}

	err := b.session.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionApplicationCommandAutocompleteResult,
		Data: &discordgo.InteractionResponseData{Choices: choices},
	})
	if err != nil {
		logWarn("autocomplete response failed", "command", data.Name, "error", err)
	}
}

func focusedOption(opts []*discordgo.ApplicationCommandInteractionDataOption) *discordgo.ApplicationCommandInteractionDataOption {
	for _, o := range opts {
		if o.Focused {
			return o
		}
		if f := focusedOption(o.Options); f != nil {
			return f
		}
	}
	return nil
}

func limitChoices(choices []*discordgo.ApplicationCommandOptionChoice) []*discordgo.ApplicationCommandOptionChoice {
	if len(choices) > maxAutocompleteChoices {
		choices = choices[:maxAutocompleteChoices]
	}
	for _, c := range choices {
		c.Name = truncate(c.Name, maxChoiceLength)
		if s, ok := c.Value.(string); ok {
			c.Value = truncate(s, maxChoiceLength)
		}
	}
	return choices
}

// matchChoices keeps the candidates containing current, case-insensitively.
func matchChoices(candidates []string, current string) []*discordgo.ApplicationCommandOptionChoice {
	current = strings.ToLower(current)
	out := []*discordgo.ApplicationCommandOptionChoice{}
	for _, c := range candidates {
		if strings.Contains(strings.ToLower(c), current) {
			out = append(out, &discordgo.ApplicationCommandOptionChoice{Name: c, Value: c})
		}
	}
	return out
}

func (b *Bot) respondEphemeral(i *discordgo.Interaction, content string) {
	err := b.session.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: content, Flags: discordgo.MessageFlagsEphemeral},
	})
	if err != nil {
		logWarn("interaction response failed", "error", err)
	}
}

// --- Command Sync ---

// SyncCommands overwrites the application commands of one guild, or of the
// global scope and every joined guild when guildID is empty. It returns the
// targets that failed ("" is the global scope).
func (b *Bot) SyncCommands(guildID string) map[string]error {
	targets := []string{guildID}
	if guildID == "" {
		for _, g := range b.session.Guilds() {
			targets = append(targets, g.ID)
		}
	}

	failed := map[string]error{}
	for _, target := range targets {
		name := b.guildName(target)
		synced, err := b.session.ApplicationCommandBulkOverwrite(b.session.AppID(), target, b.cogs.ApplicationCommands(target))
		if err != nil {
			failed[target] = err
			logError("command sync failed", "target", name, "error", err)
			continue
		}
		rows := make([][]string, 0, len(synced))
		for _, c := range synced {
			rows = append(rows, []string{"name: " + c.Name, "guild_id: " + c.GuildID})
		}
		logInfo("commands synced", "target", name, "count", len(synced), "table", "\n"+listToTable(rows))
	}
	return failed
}

// syncReport renders a SyncCommands result for a chat reply.
func (b *Bot) syncReport(failed map[string]error) string {
	if len(failed) == 0 {
		return "Synced successfully."
	}
	targets := make([]string, 0, len(failed))
	for t := range failed {
		targets = append(targets, t)
	}
	sort.Strings(targets)

	names := make([]string, len(targets))
	var details strings.Builder
	for i, t := range targets {
		names[i] = b.guildName(t)
		fmt.Fprintf(&details, "%s:\n%v\n", names[i], failed[t])
	}
	return fmt.Sprintf("Could not sync to %s\n```\n%s```", strings.Join(names, ", "), details.String())
}

func (b *Bot) guildName(id string) string {
	if id == "" {
		return "Global"
	}
	for _, g := range b.session.Guilds() {
		if g.ID == id && g.Name != "" {
			return g.Name
		}
	}
	return id
}

// --- Command Context ---

// CommandContext is handed to command and autocomplete handlers.
type CommandContext struct {
	ctx         context.Context
	bot         *Bot
	Interaction *discordgo.Interaction
	Cog         *Cog
	Command     *Command

	options   map[string]*discordgo.ApplicationCommandInteractionDataOption
	responded bool
}

func newCommandContext(ctx context.Context, b *Bot, i *discordgo.Interaction, cog *Cog, cmd *Command, opts []*discordgo.ApplicationCommandInteractionDataOption) *CommandContext {
	c := &CommandContext{
		ctx:         ctx,
		bot:         b,
		Interaction: i,
		Cog:         cog,
		Command:     cmd,
		options:     make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(opts)),
	}
	for _, o := range opts {
		c.options[o.Name] = o
	}
	return c
}

func (c *CommandContext) Context() context.Context { return c.ctx }
func (c *CommandContext) UserID() string           { return interactionUserID(c.Interaction) }
func (c *CommandContext) GuildID() string          { return c.Interaction.GuildID }
func (c *CommandContext) ChannelID() string        { return c.Interaction.ChannelID }

// String returns a string option, or "" when it was not given.
func (c *CommandContext) String(name string) string {
	o, ok := c.options[name]
	if !ok || o.Value == nil {
		return ""
	}
	return fmt.Sprint(o.Value)
}

// Bool returns a boolean option, or false when it was not given.
func (c *CommandContext) Bool(name string) bool {
	o, ok := c.options[name]
	if !ok {
		return false
	}
	v, _ := o.Value.(bool)
	return v
}

func (c *CommandContext) roles() []string {
	if c.Interaction.Member == nil {
		return nil
	}
	return c.Interaction.Member.Roles
}

func (c *CommandContext) permissions() map[string]bool {
	if c.Interaction.Member == nil {
		return permissionFlags(0)
	}
	return permissionFlags(c.Interaction.Member.Permissions)
}

// Respond sends the initial response.
func (c *CommandContext) Respond(data *discordgo.InteractionResponseData) error {
	err := c.bot.session.InteractionRespond(c.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
	if err == nil {
		c.responded = true
	}
	return err
}

func (c *CommandContext) Reply(content string) error {
	return c.Respond(&discordgo.InteractionResponseData{Content: content})
}

func (c *CommandContext) ReplyEphemeral(content string) error {
	return c.Respond(&discordgo.InteractionResponseData{Content: content, Flags: discordgo.MessageFlagsEphemeral})
}

func (c *CommandContext) ReplyEmbed(embed *discordgo.MessageEmbed) error {
	return c.Respond(&discordgo.InteractionResponseData{Embeds: []*discordgo.MessageEmbed{embed}})
}

// ReplyView registers v and sends its first render. A non-empty owner
// restricts the components to that user.
func (c *CommandContext) ReplyView(v componentView, owner string, ephemeral bool) error {
	id := c.bot.views.register(v, owner)
	data := v.render(id)
	if ephemeral {
		data.Flags |= discordgo.MessageFlagsEphemeral
	}
	if err := c.Respond(data); err != nil {
		c.bot.views.remove(id)
		return err
	}
	return nil
}

// EditReply replaces the content of the initial response.
func (c *CommandContext) EditReply(content string) error {
	_, err := c.bot.session.InteractionResponseEdit(c.Interaction, &discordgo.WebhookEdit{Content: &content})
	return err
}

func (c *CommandContext) replyFailure() {
	const msg = "Command failed."
	var err error
	if c.responded {
		err = c.EditReply(msg)
	} else {
		err = c.ReplyEphemeral(msg)
	}
	if err != nil {
		logWarnCtx(c.ctx, "failure reply failed", "command", c.Command.Name, "error", err)
	}
}

// interactionUserID extracts the user ID from an interaction (guild or DM).
func interactionUserID(i *discordgo.Interaction) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}
