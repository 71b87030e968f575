package main

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	json "github.com/goccy/go-json"
)

// roleNone is the deny-all sentinel. A role list holding only this value
// rejects every caller. It is stored as JSON null.
const roleNone = "none"

// RoleSet is a set of role ids required to run a command. Empty means no
// restriction.
type RoleSet []string

func (r *RoleSet) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return err
	}
	out := make(RoleSet, 0, len(raws))
	for _, raw := range raws {
		v, isNull, err := decodeSnowflake(raw)
		if err != nil {
			return err
		}
		if isNull {
			v = roleNone
		}
		out = append(out, v)
	}
	*r = out
	return nil
}

func (r RoleSet) MarshalJSON() ([]byte, error) {
	out := make([]*string, len(r))
	for i := range r {
		if r[i] != roleNone {
			out[i] = &r[i]
		}
	}
	return json.Marshal(out)
}

// denyAll reports whether the set is the deny-all sentinel.
func (r RoleSet) denyAll() bool {
	return len(r) == 1 && r[0] == roleNone
}

// PermissionSet maps a Discord permission flag name to the value the caller
// must have.
type PermissionSet map[string]bool

// AuthScope names a command inside a cog, or the cog itself when Command is
// empty.
type AuthScope struct {
	Cog     string
	Command string
}

func (s AuthScope) String() string {
	if s.Command == "" {
		return s.Cog
	}
	return s.Cog + "/" + s.Command
}

// ResolvedAuth is the effective requirement for one command.
type ResolvedAuth struct {
	Roles       RoleSet
	Permissions PermissionSet
}

// authSource is the scoped settings lookup the resolver reads from. The
// found result separates "absent" from "present but empty".
type authSource interface {
	commandRoles(cog, command string) (RoleSet, bool)
	commandPermissions(cog, command string) (PermissionSet, bool)
	cogRoles(cog string) (RoleSet, bool)
	cogPermissions(cog string) (PermissionSet, bool)
	adminRoles() IDList
	ensureCog(cog string) error
	ensureCommand(cog, command string) error
}

// authDescriptor is what a command declares about its authorization when it
// is registered.
type authDescriptor struct {
	Scope AuthScope
	// Admin commands ignore cog scopes and use the admin role list.
	Admin bool
}

// AuthResolver resolves effective requirements from the registered command
// descriptors and the scoped settings.
type AuthResolver struct {
	src authSource

	mu          sync.RWMutex
	descriptors map[string]authDescriptor // command name → descriptor
}

func newAuthResolver(src authSource) *AuthResolver {
	return &AuthResolver{src: src, descriptors: make(map[string]authDescriptor)}
}

// Register records the descriptor for a command and makes sure the cog
// record exists.
func (r *AuthResolver) Register(command string, d authDescriptor) error {
	if !d.Admin {
		if err := r.src.ensureCog(d.Scope.Cog); err != nil {
			return fmt.Errorf("register %s: %w", command, err)
		}
	}
	r.mu.Lock()
	r.descriptors[command] = d
	r.mu.Unlock()
	return nil
}

// Unregister drops a command descriptor (used when a cog is unloaded).
func (r *AuthResolver) Unregister(command string) {
	r.mu.Lock()
	delete(r.descriptors, command)
	r.mu.Unlock()
}

// ResolveCommand resolves by command name through the descriptor table.
func (r *AuthResolver) ResolveCommand(command string) (ResolvedAuth, bool) {
	r.mu.RLock()
	d, ok := r.descriptors[command]
	r.mu.RUnlock()
	if !ok {
		return ResolvedAuth{}, false
	}
	if d.Admin {
		return ResolvedAuth{Roles: RoleSet(r.src.adminRoles())}, true
	}
	return r.Resolve(d.Scope), true
}

// Resolve looks up roles and permissions for scope. Each axis is resolved
// independently: the command value wins when present (even if empty),
// otherwise the cog value applies. The first resolution of a command creates
// its empty record.
func (r *AuthResolver) Resolve(scope AuthScope) ResolvedAuth {
	if scope.Command != "" {
		if err := r.src.ensureCommand(scope.Cog, scope.Command); err != nil {
			logWarn("auth: create command record failed", "scope", scope.String(), "error", err)
		}
	}

	var out ResolvedAuth
	var found bool
	if scope.Command != "" {
		out.Roles, found = r.src.commandRoles(scope.Cog, scope.Command)
	}
	if !found {
		out.Roles, _ = r.src.cogRoles(scope.Cog)
	}

	found = false
	if scope.Command != "" {
		out.Permissions, found = r.src.commandPermissions(scope.Cog, scope.Command)
	}
	if !found {
		out.Permissions, _ = r.src.cogPermissions(scope.Cog)
	}
	return out
}

// Authorize reports whether a caller satisfies resolved. Permission flags
// are compared by equality: a flag required false must be false.
func Authorize(callerRoles []string, callerPerms map[string]bool, resolved ResolvedAuth) bool {
	return rolesAllowed(callerRoles, resolved.Roles) && permissionsAllowed(callerPerms, resolved.Permissions)
}

func rolesAllowed(callerRoles []string, required RoleSet) bool {
	if required.denyAll() {
		return false
	}
	if len(required) == 0 {
		return true
	}
	for _, have := range callerRoles {
		for _, want := range required {
			if want != roleNone && have == want {
				return true
			}
		}
	}
	return false
}

func permissionsAllowed(callerPerms map[string]bool, required PermissionSet) bool {
	for name, want := range required {
		if callerPerms[name] != want {
			return false
		}
	}
	return true
}

// --- Discord permission flags ---

// permissionBits maps permission flag names to Discord permission bits.
var permissionBits = map[string]int64{
	"create_instant_invite":    1 << 0,
	"kick_members":             1 << 1,
	"ban_members":              1 << 2,
	"administrator":            1 << 3,
	"manage_channels":          1 << 4,
	"manage_guild":             1 << 5,
	"add_reactions":            1 << 6,
	"view_audit_log":           1 << 7,
	"priority_speaker":         1 << 8,
	"stream":                   1 << 9,
	"view_channel":             1 << 10,
	"read_messages":            1 << 10,
	"send_messages":            1 << 11,
	"send_tts_messages":        1 << 12,
	"manage_messages":          1 << 13,
	"embed_links":              1 << 14,
	"attach_files":             1 << 15,
	"read_message_history":     1 << 16,
	"mention_everyone":         1 << 17,
	"use_external_emojis":      1 << 18,
	"external_emojis":          1 << 18,
	"view_guild_insights":      1 << 19,
	"connect":                  1 << 20,
	"speak":                    1 << 21,
	"mute_members":             1 << 22,
	"deafen_members":           1 << 23,
	"move_members":             1 << 24,
	"use_voice_activation":     1 << 25,
	"change_nickname":          1 << 26,
	"manage_nicknames":         1 << 27,
	"manage_roles":             1 << 28,
	"manage_webhooks":          1 << 29,
	"manage_emojis":            1 << 30,
	"use_application_commands": 1 << 31,
	"request_to_speak":         1 << 32,
	"manage_events":            1 << 33,
	"manage_threads":           1 << 34,
	"create_public_threads":    1 << 35,
	"create_private_threads":   1 << 36,
	"send_messages_in_threads": 1 << 38,
	"moderate_members":         1 << 40,
}

// permissionFlags expands a permission bitfield into named flags. As in the
// Discord client, administrator does not imply the other flags here; the
// caller's raw bits are compared.
func permissionFlags(bits int64) map[string]bool {
	out := make(map[string]bool, len(permissionBits))
	for name, bit := range permissionBits {
		out[name] = bits&bit != 0
	}
	return out
}

// describeAuth renders a resolved requirement for logs and the help text.
func describeAuth(a ResolvedAuth) string {
	var parts []string
	switch {
	case a.Roles.denyAll():
		parts = append(parts, "roles=deny-all")
	case len(a.Roles) > 0:
		parts = append(parts, "roles="+strings.Join(a.Roles, ","))
	}
	if len(a.Permissions) > 0 {
		names := make([]string, 0, len(a.Permissions))
		for n, v := range a.Permissions {
			names = append(names, fmt.Sprintf("%s:%t", n, v))
		}
		sort.Strings(names)
		parts = append(parts, "perms="+strings.Join(names, ","))
	}
	if len(parts) == 0 {
		return "unrestricted"
	}
	return strings.Join(parts, " ")
}
