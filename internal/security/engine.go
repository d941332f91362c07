package security

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"agentgate/internal/command"
	"agentgate/internal/domain"
)

// Engine evaluates normalized command lines against the active profile.
// Evaluation is deterministic and side-effect free apart from logging:
// identical (profile, raw command) inputs always yield the same Decision.
type Engine struct {
	auditLogger domain.AuditLogger
	auditLog    bool
	logger      *slog.Logger

	current atomic.Pointer[snapshot]
}

// snapshot is an immutable compiled view of one profile. Evaluations in
// flight during a Reload keep the snapshot they started with.
type snapshot struct {
	name     string
	allow    map[string]bool
	deny     map[string]bool
	argRules map[string][]ArgRule
}

func NewEngine(profile *Profile, auditLogger domain.AuditLogger, auditLog bool, logger *slog.Logger) (*Engine, error) {
	e := &Engine{
		auditLogger: auditLogger,
		auditLog:    auditLog,
		logger:      logger,
	}
	if err := e.Reload(profile); err != nil {
		return nil, err
	}
	return e, nil
}

// Reload swaps in a new profile atomically.
func (e *Engine) Reload(profile *Profile) error {
	if profile == nil {
		return fmt.Errorf("profile must not be nil")
	}
	if err := profile.Validate(); err != nil {
		return fmt.Errorf("invalid profile: %w", err)
	}
	e.current.Store(compile(profile))
	return nil
}

func (e *Engine) ProfileName() string {
	return e.current.Load().name
}

// Evaluate normalizes the raw command line and checks every segment against
// the profile. The first segment to fail decides the line: explicit deny
// beats allow, absence from the allowlist is a deny, and argument rules can
// deny an otherwise allowed command. Compound lines are allowed only when
// every segment is allowed.
func (e *Engine) Evaluate(ctx context.Context, rawCommand string) domain.Decision {
	snap := e.current.Load()

	line, err := command.Normalize(rawCommand)
	if err != nil {
		d := domain.Decision{
			Verdict: domain.VerdictDeny,
			Reason:  domain.ReasonMalformed,
			Detail:  err.Error(),
			Profile: snap.name,
		}
		e.logDecision(ctx, rawCommand, d)
		return d
	}

	for _, seg := range line.Segments {
		if d, denied := snap.evalSegment(seg); denied {
			d.Profile = snap.name
			e.logger.Warn("command denied",
				"canonical", d.Canonical,
				"reason", d.Reason,
				"rule", d.MatchedRule,
			)
			e.logDecision(ctx, rawCommand, d)
			return d
		}
	}

	d := domain.Decision{
		Verdict:   domain.VerdictAllow,
		Canonical: line.Segments[0].Canonical,
		Reason:    domain.ReasonAllowed,
		Profile:   snap.name,
	}
	e.logDecision(ctx, rawCommand, d)
	return d
}

func (s *snapshot) evalSegment(seg command.Segment) (domain.Decision, bool) {
	if s.deny[seg.Canonical] {
		return domain.Decision{
			Verdict:     domain.VerdictDeny,
			Canonical:   seg.Canonical,
			Reason:      domain.ReasonExplicitDeny,
			MatchedRule: seg.Canonical,
		}, true
	}
	if !s.allow[seg.Canonical] {
		return domain.Decision{
			Verdict:   domain.VerdictDeny,
			Canonical: seg.Canonical,
			Reason:    domain.ReasonNotInAllowlist,
		}, true
	}

	// Argument rules inspect flag tokens only. Payload after an inline-code
	// flag and substitution text are opaque at this layer.
	for _, rule := range s.argRules[seg.Canonical] {
		for _, tok := range seg.Tokens {
			if tok.Role != command.RoleFlag {
				continue
			}
			for _, flag := range rule.Flags {
				if tok.Raw == flag {
					return domain.Decision{
						Verdict:     domain.VerdictDeny,
						Canonical:   seg.Canonical,
						Reason:      domain.ReasonArgumentBlocked,
						MatchedRule: seg.Canonical + " " + flag,
						Detail:      rule.Reason,
					}, true
				}
			}
		}
	}
	return domain.Decision{}, false
}

func compile(p *Profile) *snapshot {
	s := &snapshot{
		name:     p.Name,
		allow:    make(map[string]bool, len(p.Allow)),
		deny:     make(map[string]bool, len(p.Deny)),
		argRules: make(map[string][]ArgRule, len(p.ArgRules)),
	}
	for _, c := range p.Allow {
		s.allow[c] = true
	}
	for _, c := range p.Deny {
		s.deny[c] = true
	}
	for _, r := range p.ArgRules {
		s.argRules[r.Command] = append(s.argRules[r.Command], r)
	}
	return s
}

func (e *Engine) logDecision(ctx context.Context, rawCommand string, d domain.Decision) {
	if !e.auditLog || e.auditLogger == nil {
		return
	}
	err := e.auditLogger.LogAudit(ctx, domain.AuditEntry{
		SessionID: domain.SessionID(ctx),
		Action:    "evaluate",
		ToolName:  "run_command",
		Command:   rawCommand,
		Verdict:   string(d.Verdict),
		Reason:    string(d.Reason),
	})
	if err != nil {
		e.logger.Error("cannot write audit entry", "err", err)
	}
}
