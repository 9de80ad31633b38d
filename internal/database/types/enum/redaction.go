package enum

// RedactionSource represents what triggered a post redaction.
type RedactionSource int

const (
	// RedactionSourceNone means the post is not redacted.
	RedactionSourceNone RedactionSource = iota
	// RedactionSourceManual means a moderator redacted the post.
	RedactionSourceManual
	// RedactionSourceAuto means the report threshold redacted the post.
	RedactionSourceAuto
)

// String returns the lowercase name of the source.
func (s RedactionSource) String() string {
	switch s {
	case RedactionSourceNone:
		return "none"
	case RedactionSourceManual:
		return "manual"
	case RedactionSourceAuto:
		return "auto"
	default:
		return "unknown"
	}
}
