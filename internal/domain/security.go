package domain

import "context"

// Verdict is the outcome of a policy evaluation.
type Verdict string

const (
	VerdictAllow Verdict = "allow"
	VerdictDeny  Verdict = "deny"
)

// ReasonCode is a machine-readable explanation for a Decision.
type ReasonCode string

const (
	ReasonAllowed         ReasonCode = "allowed"
	ReasonExplicitDeny    ReasonCode = "explicitly_denied"
	ReasonNotInAllowlist  ReasonCode = "not_in_allowlist"
	ReasonArgumentBlocked ReasonCode = "argument_pattern_blocked"
	ReasonMalformed       ReasonCode = "malformed_command"
	ReasonPathEscape      ReasonCode = "path_escape"
	ReasonToolNotExposed  ReasonCode = "tool_not_exposed"
)

// Decision is the result of evaluating one proposed command against the
// active security profile. Identical (profile, raw command) inputs always
// produce an identical Decision.
type Decision struct {
	Verdict     Verdict    `json:"verdict"`
	Canonical   string     `json:"canonical"` // canonical name of the deciding segment
	Reason      ReasonCode `json:"reason"`
	Detail      string     `json:"detail,omitempty"`
	MatchedRule string     `json:"matchedRule,omitempty"`
	Profile     string     `json:"profile"`
}

// Allowed reports whether the decision permits execution.
func (d Decision) Allowed() bool { return d.Verdict == VerdictAllow }

// PolicyEvaluator decides whether a raw command line may be executed.
type PolicyEvaluator interface {
	Evaluate(ctx context.Context, rawCommand string) Decision
	ProfileName() string
}

// PathValidator confines file paths to the session's jail root.
type PathValidator interface {
	Check(path string) (resolved string, err error)
	Root() string
}

// AuditEntry is one append-only record of a gateway decision or execution.
type AuditEntry struct {
	SessionID string
	Action    string // evaluate | execute | file_access | filtered
	ToolName  string
	Command   string // canonical command or requested path
	Verdict   string
	Reason    string
}

// AuditLogger is the interface for writing audit entries.
type AuditLogger interface {
	LogAudit(ctx context.Context, entry AuditEntry) error
}
