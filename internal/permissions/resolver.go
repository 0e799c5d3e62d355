package permissions

// Standing is what the directory knows about a user relative to one
// conversation.
type Standing struct {
	Member   bool
	Owner    bool
	Elevated bool
}

// Compute resolves a standing to a permission set.
//  1. Members get PermMember; owners add PermModerator.
//  2. An elevated member is an administrator and gets PermAll.
//  3. The elevated role alone grants PermPurgeHistory, since a purged
//     conversation no longer has members.
func Compute(s Standing) Permission {
	var perms Permission
	if s.Member {
		perms = PermMember
		if s.Owner {
			perms = perms.Add(PermModerator)
		}
	}
	if s.Elevated {
		if s.Member {
			perms = perms.Add(PermAdministrator)
		}
		perms = perms.Add(PermPurgeHistory)
	}

	if perms.Has(PermAdministrator) {
		return PermAll
	}
	return perms
}
