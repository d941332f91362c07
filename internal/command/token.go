package command

// Dialect identifies the shell or interpreter syntax convention governing
// how a command line is tokenized. It is resolved once from the leading
// token and drives a closed dispatch in Normalize.
type Dialect int

const (
	DialectPosix Dialect = iota
	DialectCmd
	DialectPowerShell
)

func (d Dialect) String() string {
	switch d {
	case DialectCmd:
		return "cmd"
	case DialectPowerShell:
		return "powershell"
	default:
		return "posix"
	}
}

// Role classifies one token within a segment.
type Role int

const (
	// RoleCommand is the leading word of a segment: the executable or
	// interpreter whose base name becomes the canonical command name.
	RoleCommand Role = iota
	// RoleFlag is an option argument (-x, --long, /C).
	RoleFlag
	// RoleLiteral is a plain argument.
	RoleLiteral
	// RolePayload is inline program source following an execute-code flag.
	// Payload is opaque: it is never tokenized as further shell commands.
	RolePayload
	// RoleSubexpr marks a word containing a command substitution; the
	// substituted commands surface as their own segments.
	RoleSubexpr
)

func (r Role) String() string {
	switch r {
	case RoleCommand:
		return "command"
	case RoleFlag:
		return "flag"
	case RolePayload:
		return "payload"
	case RoleSubexpr:
		return "subexpr"
	default:
		return "literal"
	}
}

// Token is one decoded unit of a parsed command line.
type Token struct {
	Raw  string
	Role Role
}

// Segment is one independently policy-checked command within a line.
// A compound line (a && b | c) yields one segment per command; every
// segment must be individually allowed for the line to be allowed.
type Segment struct {
	Canonical string
	Tokens    []Token
	Subexpr   bool // segment came from a $() or backtick substitution
	Opaque    bool // tokenization was ambiguous; canonical is the first field
}

// Line is the normalized form of one raw command string.
type Line struct {
	Raw      string
	Dialect  Dialect
	Segments []Segment
}

// CanonicalNames returns the canonical command name of every segment,
// in source order.
func (l Line) CanonicalNames() []string {
	names := make([]string, 0, len(l.Segments))
	for _, s := range l.Segments {
		names = append(names, s.Canonical)
	}
	return names
}
