package enum

// UserRole represents the authorization level of an account.
type UserRole int

const (
	// UserRoleStandard is a regular account with no moderation powers.
	UserRoleStandard UserRole = iota
	// UserRoleModerator may view redacted content and redact posts.
	UserRoleModerator
	// UserRoleAdmin has all moderator powers.
	UserRoleAdmin
)

// String returns the lowercase name of the role.
func (r UserRole) String() string {
	switch r {
	case UserRoleStandard:
		return "standard"
	case UserRoleModerator:
		return "moderator"
	case UserRoleAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

// IsPrivileged reports whether the role may see and manage redacted content.
func (r UserRole) IsPrivileged() bool {
	return r >= UserRoleModerator
}
