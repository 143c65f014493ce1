package rbac

type Role string
type Action string

const (
	RoleVisitor Role = "visitor"
	RoleMember  Role = "member"
	RoleAdmin   Role = "admin"
)

const (
	ActionRead                Action = "read"
	ActionPost                Action = "post"
	ActionComment             Action = "comment"
	ActionLike                Action = "like"
	ActionManageNotifications Action = "manage_notifications"
	ActionManageAccount       Action = "manage_account"
	ActionModerate            Action = "moderate"
	ActionManageThemes        Action = "manage_themes"
	ActionManageEvents        Action = "manage_events"
	ActionAdmin               Action = "admin"
)

// Anonymous posting is allowed, so visitors share the public actions.
func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleMember:
		return isPublic(action) || action == ActionManageNotifications || action == ActionManageAccount
	case RoleVisitor:
		return isPublic(action)
	default:
		return false
	}
}

func isPublic(action Action) bool {
	return action == ActionRead || action == ActionPost || action == ActionComment || action == ActionLike
}

// Normalize maps a stored role to a known one. Signed-in users with an
// unrecognised role are treated as members.
func Normalize(role string) Role {
	switch Role(role) {
	case RoleMember, RoleAdmin:
		return Role(role)
	case "":
		return RoleVisitor
	default:
		return RoleMember
	}
}

// Valid reports whether role may be assigned to an account.
func Valid(role string) bool {
	return Role(role) == RoleMember || Role(role) == RoleAdmin
}
