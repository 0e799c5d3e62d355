package permissions

import (
	"slices"
	"strings"
)

// Permission is a bitfield representing a set of permissions.
type Permission int64

const (
	PermViewHistory    Permission = 1 << 0
	PermSendMessages   Permission = 1 << 1
	PermReact          Permission = 1 << 2
	PermRunStandup     Permission = 1 << 3
	PermManageMessages Permission = 1 << 4 // edit or remove other members' messages
	PermPinMessages    Permission = 1 << 5
	PermPurgeHistory   Permission = 1 << 6
	PermAdministrator  Permission = 1 << 31 // bypasses all checks

	// Convenience sets
	PermMember    = PermViewHistory | PermSendMessages | PermReact | PermRunStandup
	PermModerator = PermManageMessages | PermPinMessages
	PermAll       = Permission(0x7FFFFFFFFFFFFFFF)
)

// Has returns true if p contains all bits in perm.
func (p Permission) Has(perm Permission) bool { return p&perm == perm }

// Add returns p with the bits from perm set.
func (p Permission) Add(perm Permission) Permission { return p | perm }

// Remove returns p with the bits from perm cleared.
func (p Permission) Remove(perm Permission) Permission { return p &^ perm }

var permNames = map[Permission]string{
	PermViewHistory:    "VIEW_HISTORY",
	PermSendMessages:   "SEND_MESSAGES",
	PermReact:          "REACT",
	PermRunStandup:     "RUN_STANDUP",
	PermManageMessages: "MANAGE_MESSAGES",
	PermPinMessages:    "PIN_MESSAGES",
	PermPurgeHistory:   "PURGE_HISTORY",
	PermAdministrator:  "ADMINISTRATOR",
}

// String lists the set permission names, lowest bit first, separated by
// " | ".
func (p Permission) String() string {
	if p == 0 {
		return "NONE"
	}

	bits := make([]Permission, 0, len(permNames))
	for bit := range permNames {
		if p.Has(bit) {
			bits = append(bits, bit)
		}
	}
	if len(bits) == 0 {
		return "UNKNOWN"
	}
	slices.Sort(bits)

	names := make([]string, len(bits))
	for i, bit := range bits {
		names[i] = permNames[bit]
	}
	return strings.Join(names, " | ")
}
