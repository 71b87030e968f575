package main

import (
	"fmt"
	"path/filepath"
)

// Top-level keys of bot_setting.json.
const (
	settingLogDir      = "log_dir_path"
	settingAdminGuilds = "admin_guild_ids"
	settingAdminRoles  = "admin_role_ids"
	settingCogAuth     = "cog_auth"
)

func botSettingDefaults() map[string]any {
	return map[string]any{
		settingLogDir:      "./log",
		settingAdminGuilds: []string{},
		settingAdminRoles:  []string{},
		settingCogAuth:     map[string]any{},
	}
}

// cogAuthRecord is one entry of cog_auth. A nil Roles or Permissions means
// the key is absent from the file.
type cogAuthRecord struct {
	Guilds      IDList                        `json:"guilds"`
	Roles       *RoleSet                      `json:"roles,omitempty"`
	Permissions *PermissionSet                `json:"permissions,omitempty"`
	Commands    map[string]*commandAuthRecord `json:"commands"`
}

type commandAuthRecord struct {
	Roles       *RoleSet       `json:"roles,omitempty"`
	Permissions *PermissionSet `json:"permissions,omitempty"`
}

// BotSettings is the bot_setting.json document: log directory, admin scope
// and per-cog authorization.
type BotSettings struct {
	store *jsonStore
}

func openBotSettings(path string) (*BotSettings, error) {
	s, err := openJSONStore(path, botSettingDefaults())
	if err != nil {
		return nil, fmt.Errorf("bot settings: %w", err)
	}
	return &BotSettings{store: s}, nil
}

// Reload re-reads the file from disk.
func (b *BotSettings) Reload() error {
	return b.store.read()
}

func (b *BotSettings) Path() string { return b.store.path }

func (b *BotSettings) LogDir() string {
	var dir string
	if _, err := b.store.get(settingLogDir, &dir); err != nil || dir == "" {
		dir = "./log"
	}
	return filepath.Clean(dir)
}

func (b *BotSettings) AdminGuilds() IDList {
	var ids IDList
	if _, err := b.store.get(settingAdminGuilds, &ids); err != nil {
		logWarn("bot settings: bad admin guilds", "error", err)
	}
	return ids
}

func (b *BotSettings) adminRoles() IDList {
	var ids IDList
	if _, err := b.store.get(settingAdminRoles, &ids); err != nil {
		logWarn("bot settings: bad admin roles", "error", err)
	}
	return ids
}

func (b *BotSettings) cogAuth() map[string]*cogAuthRecord {
	out := map[string]*cogAuthRecord{}
	if _, err := b.store.get(settingCogAuth, &out); err != nil {
		logWarn("bot settings: bad cog_auth", "error", err)
	}
	return out
}

func (b *BotSettings) cog(id string) *cogAuthRecord {
	return b.cogAuth()[id]
}

// CogGuilds returns the guilds a cog's commands are synced to. Empty means
// global.
func (b *BotSettings) CogGuilds(cog string) IDList {
	if rec := b.cog(cog); rec != nil {
		return rec.Guilds
	}
	return nil
}

func (b *BotSettings) cogRoles(cog string) (RoleSet, bool) {
	rec := b.cog(cog)
	if rec == nil || rec.Roles == nil {
		return nil, false
	}
	return *rec.Roles, true
}

func (b *BotSettings) cogPermissions(cog string) (PermissionSet, bool) {
	rec := b.cog(cog)
	if rec == nil || rec.Permissions == nil {
		return nil, false
	}
	return *rec.Permissions, true
}

func (b *BotSettings) command(cog, command string) *commandAuthRecord {
	rec := b.cog(cog)
	if rec == nil {
		return nil
	}
	return rec.Commands[command]
}

func (b *BotSettings) commandRoles(cog, command string) (RoleSet, bool) {
	c := b.command(cog, command)
	if c == nil || c.Roles == nil {
		return nil, false
	}
	return *c.Roles, true
}

func (b *BotSettings) commandPermissions(cog, command string) (PermissionSet, bool) {
	c := b.command(cog, command)
	if c == nil || c.Permissions == nil {
		return nil, false
	}
	return *c.Permissions, true
}

// ensureCog creates the cog record when missing: no guilds, no roles, no
// permissions, no commands.
func (b *BotSettings) ensureCog(cog string) error {
	if b.cog(cog) != nil {
		return nil
	}
	return b.store.update(func(tx *storeTx) error {
		all := map[string]*cogAuthRecord{}
		if _, err := tx.get(settingCogAuth, &all); err != nil {
			return err
		}
		if all[cog] != nil {
			return nil
		}
		all[cog] = &cogAuthRecord{
			Guilds:      IDList{},
			Roles:       &RoleSet{},
			Permissions: &PermissionSet{},
			Commands:    map[string]*commandAuthRecord{},
		}
		logInfo("bot settings: created cog record", "cog", cog)
		return tx.set(settingCogAuth, all)
	})
}

// ensureCommand creates an empty command record. Both axes stay unset so the
// cog values keep applying until someone edits the file.
func (b *BotSettings) ensureCommand(cog, command string) error {
	if rec := b.cog(cog); rec != nil && rec.Commands[command] != nil {
		return nil
	}
	return b.store.update(func(tx *storeTx) error {
		all := map[string]*cogAuthRecord{}
		if _, err := tx.get(settingCogAuth, &all); err != nil {
			return err
		}
		rec := all[cog]
		if rec == nil {
			rec = &cogAuthRecord{Guilds: IDList{}, Roles: &RoleSet{}, Permissions: &PermissionSet{}}
			all[cog] = rec
		}
		if rec.Commands == nil {
			rec.Commands = map[string]*commandAuthRecord{}
		}
		if rec.Commands[command] != nil {
			return nil
		}
		rec.Commands[command] = &commandAuthRecord{}
		logInfo("bot settings: created command record", "cog", cog, "command", command)
		return tx.set(settingCogAuth, all)
	})
}
