package main

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/bwmarrin/discordgo"
)

var (
	// ErrUnknownCog is returned for a cog id that was never registered.
	ErrUnknownCog = errors.New("unknown cog")
	// ErrCogLoaded is returned when loading a cog that is already loaded.
	ErrCogLoaded = errors.New("cog already loaded")
	// ErrCogNotLoaded is returned when unloading a cog that is not loaded.
	ErrCogNotLoaded = errors.New("cog not loaded")
)

// CommandHandler runs a slash command.
type CommandHandler func(c *CommandContext) error

// AutocompleteHandler returns choices for the focused option.
type AutocompleteHandler func(c *CommandContext, option, current string) []*discordgo.ApplicationCommandOptionChoice

// Command is one slash command inside a cog.
type Command struct {
	Name         string
	Description  string
	Options      []*discordgo.ApplicationCommandOption
	Handler      CommandHandler
	Autocomplete AutocompleteHandler
}

func (c *Command) applicationCommand() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name,
		Description: c.Description,
		Options:     c.Options,
	}
}

// Cog is a bundle of commands loaded and unloaded together. Its id is the
// authorization scope for its commands.
type Cog struct {
	ID          string
	Name        string
	Description string
	Commands    []*Command
	// Admin cogs are authorized and synced by the admin settings and cannot
	// be unloaded.
	Admin bool
}

// cogRegistry holds every registered cog and which of them are loaded.
type cogRegistry struct {
	auth     *AuthResolver
	settings *BotSettings

	mu     sync.RWMutex
	cogs   map[string]*Cog
	loaded map[string]bool
}

func newCogRegistry(auth *AuthResolver, settings *BotSettings) *cogRegistry {
	return &cogRegistry{
		auth:     auth,
		settings: settings,
		cogs:     make(map[string]*Cog),
		loaded:   make(map[string]bool),
	}
}

// Register adds a cog without loading it. An empty id is derived from the
// display name.
func (r *cogRegistry) Register(cog *Cog) error {
	if cog.ID == "" {
		cog.ID = pascalToSnake(cog.Name)
	}
	if cog.Name == "" {
		cog.Name = cog.ID
	}
	if cog.ID == "" {
		return fmt.Errorf("register cog: empty id")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.cogs[cog.ID]; ok {
		return fmt.Errorf("register cog %q: duplicate id", cog.ID)
	}
	r.cogs[cog.ID] = cog
	return nil
}

// Load activates a cog and registers its commands with the resolver.
func (r *cogRegistry) Load(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cog, ok := r.cogs[id]
	if !ok {
		return fmt.Errorf("%q: %w", id, ErrUnknownCog)
	}
	if r.loaded[id] {
		return fmt.Errorf("%q: %w", id, ErrCogLoaded)
	}
	for _, cmd := range cog.Commands {
		if other, _, found := r.commandLocked(cmd.Name); found {
			return fmt.Errorf("load %q: command %q already provided by %q", id, cmd.Name, other.ID)
		}
	}

	for _, cmd := range cog.Commands {
		d := authDescriptor{Scope: AuthScope{Cog: cog.ID, Command: cmd.Name}, Admin: cog.Admin}
		if err := r.auth.Register(cmd.Name, d); err != nil {
			for _, c := range cog.Commands {
				r.auth.Unregister(c.Name)
			}
			return fmt.Errorf("load %q: %w", id, err)
		}
	}
	r.loaded[id] = true
	cogsLoaded.Set(float64(len(r.loaded)))
	logInfo("cog loaded", "cog", id, "commands", len(cog.Commands))
	return nil
}

// Unload deactivates a cog.
func (r *cogRegistry) Unload(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cog, ok := r.cogs[id]
	if !ok {
		return fmt.Errorf("%q: %w", id, ErrUnknownCog)
	}
	if !r.loaded[id] {
		return fmt.Errorf("%q: %w", id, ErrCogNotLoaded)
	}
	if cog.Admin {
		return fmt.Errorf("cog %q cannot be unloaded", id)
	}
	for _, cmd := range cog.Commands {
		r.auth.Unregister(cmd.Name)
	}
	delete(r.loaded, id)
	cogsLoaded.Set(float64(len(r.loaded)))
	logInfo("cog unloaded", "cog", id)
	return nil
}

// Reload unloads and loads a cog, re-reading its authorization records.
func (r *cogRegistry) Reload(id string) error {
	if err := r.Unload(id); err != nil {
		return err
	}
	return r.Load(id)
}

// LoadAll loads every registered cog that is not loaded yet. Failures are
// logged and skipped.
func (r *cogRegistry) LoadAll() {
	for _, id := range r.Unloaded() {
		if err := r.Load(id); err != nil {
			logError("cog load failed", "cog", id, "error", err)
		}
	}
}

// Loaded returns loaded cog ids in sorted order.
func (r *cogRegistry) Loaded() []string {
	return r.ids(true)
}

// Unloaded returns registered but unloaded cog ids in sorted order.
func (r *cogRegistry) Unloaded() []string {
	return r.ids(false)
}

func (r *cogRegistry) ids(loaded bool) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for id := range r.cogs {
		if r.loaded[id] == loaded {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// Cog returns a registered cog.
func (r *cogRegistry) Cog(id string) (*Cog, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.cogs[id]
	return c, ok
}

// LoadedCogs returns loaded cogs ordered by display name.
func (r *cogRegistry) LoadedCogs() []*Cog {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Cog
	for id, c := range r.cogs {
		if r.loaded[id] {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Command finds a command among the loaded cogs.
func (r *cogRegistry) Command(name string) (*Cog, *Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.commandLocked(name)
}

func (r *cogRegistry) commandLocked(name string) (*Cog, *Command, bool) {
	for id, cog := range r.cogs {
		if !r.loaded[id] {
			continue
		}
		for _, cmd := range cog.Commands {
			if cmd.Name == name {
				return cog, cmd, true
			}
		}
	}
	return nil, nil, false
}

// syncedTo reports whether the cog's commands belong to target ("" = global).
func (r *cogRegistry) syncedTo(cog *Cog, target string) bool {
	var guilds IDList
	if cog.Admin {
		guilds = r.settings.AdminGuilds()
	} else {
		guilds = r.settings.CogGuilds(cog.ID)
	}
	if len(guilds) == 0 {
		return target == ""
	}
	return target != "" && guilds.contains(target)
}

// ApplicationCommands builds the command list for one sync target. An empty
// guildID is the global scope.
func (r *cogRegistry) ApplicationCommands(guildID string) []*discordgo.ApplicationCommand {
	out := []*discordgo.ApplicationCommand{}
	for _, cog := range r.LoadedCogs() {
		if !r.syncedTo(cog, guildID) {
			continue
		}
		for _, cmd := range cog.Commands {
			out = append(out, cmd.applicationCommand())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
