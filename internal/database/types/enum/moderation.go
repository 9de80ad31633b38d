package enum

// ModerationAction represents the kind of event recorded in the moderation log.
type ModerationAction int

const (
	// ModerationActionAll matches any action when filtering log queries.
	ModerationActionAll ModerationAction = iota
	// ModerationActionReport records a user reporting a post.
	ModerationActionReport
	// ModerationActionRedact records a post being hidden.
	ModerationActionRedact
	// ModerationActionUnredact records a post being restored.
	ModerationActionUnredact
)

// String returns the lowercase name of the action.
func (a ModerationAction) String() string {
	switch a {
	case ModerationActionAll:
		return "all"
	case ModerationActionReport:
		return "report"
	case ModerationActionRedact:
		return "redact"
	case ModerationActionUnredact:
		return "unredact"
	default:
		return "unknown"
	}
}
