package command

import (
	"bytes"
	"fmt"
	"strings"

	"mvdan.cc/sh/v3/syntax"

	"agentgate/internal/domain"
)

// inlineCodeFlags are interpreter options whose following arguments are
// inline program source. Everything after one of these is payload and is
// never re-tokenized as shell.
var inlineCodeFlags = map[string]bool{
	"-c":        true,
	"-e":        true,
	"-E":        true,
	"--command": true,
	"--eval":    true,
	"--execute": true,
}

// psCodeFlags is the PowerShell equivalent, compared case-insensitively.
var psCodeFlags = map[string]bool{
	"-command":        true,
	"-encodedcommand": true,
	"-c":              true,
}

// posixInterpreters are commands that accept inline code via the flags
// above. Only these trigger payload handling; "grep -e pattern" stays a
// plain flag+argument.
var posixInterpreters = map[string]bool{
	"sh":      true,
	"bash":    true,
	"zsh":     true,
	"dash":    true,
	"ksh":     true,
	"fish":    true,
	"python":  true,
	"python2": true,
	"python3": true,
	"node":    true,
	"nodejs":  true,
	"deno":    true,
	"ruby":    true,
	"perl":    true,
	"php":     true,
	"lua":     true,
}

// Normalize tokenizes one raw command line into policy-checkable segments.
// The dialect is resolved from the leading token: cmd and powershell lines
// are never handed to the POSIX parser, because quoting and separator rules
// differ and a POSIX reading of them could split on characters that carry
// no meaning in the source dialect. Normalization is pure: same input,
// same Line, no environment or filesystem access.
func Normalize(raw string) (Line, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Line{}, fmt.Errorf("empty command line: %w", domain.ErrMalformedCommand)
	}

	first := canonicalBase(strings.Fields(trimmed)[0])
	switch strings.ToLower(first) {
	case "cmd":
		return normalizeCmd(raw, trimmed), nil
	case "powershell", "pwsh":
		return normalizePowerShell(raw, trimmed), nil
	}
	return normalizePosix(raw, trimmed)
}

func normalizePosix(raw, trimmed string) (Line, error) {
	parser := syntax.NewParser(syntax.KeepComments(false), syntax.Variant(syntax.LangBash))
	file, err := parser.Parse(strings.NewReader(raw), "")
	if err != nil {
		// Unparseable input is never dropped: it degrades to a single
		// opaque segment under its first field, so the policy engine
		// still sees a canonical name to judge.
		return opaqueLine(raw, trimmed), nil
	}

	segs := collectSegments(file)
	if len(segs) == 0 {
		return Line{}, fmt.Errorf("no command in line: %w", domain.ErrMalformedCommand)
	}
	return Line{Raw: raw, Dialect: DialectPosix, Segments: segs}, nil
}

// collectSegments walks the parsed AST and emits one segment per simple
// command. Connectives (&&, ||, |, ;, &) and control structures contribute
// no segments of their own; command and process substitutions surface their
// inner commands as subexpr segments.
func collectSegments(file *syntax.File) []Segment {
	var segs []Segment
	var stack []syntax.Node
	substDepth := 0

	syntax.Walk(file, func(node syntax.Node) bool {
		if node == nil {
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			switch top.(type) {
			case *syntax.CmdSubst, *syntax.ProcSubst:
				substDepth--
			}
			return true
		}
		stack = append(stack, node)
		switch n := node.(type) {
		case *syntax.CmdSubst, *syntax.ProcSubst:
			substDepth++
		case *syntax.CallExpr:
			if seg, ok := segmentFromCall(n, substDepth > 0); ok {
				segs = append(segs, seg)
			}
		}
		return true
	})
	return segs
}

func segmentFromCall(call *syntax.CallExpr, subexpr bool) (Segment, bool) {
	// A bare assignment (FOO=bar) has no command word and executes nothing.
	if len(call.Args) == 0 {
		return Segment{}, false
	}

	name := unquote(wordText(call.Args[0]))
	canonical := canonicalBase(name)
	if canonical == "" {
		return Segment{}, false
	}

	seg := Segment{
		Canonical: canonical,
		Subexpr:   subexpr,
		Tokens:    []Token{{Raw: name, Role: RoleCommand}},
	}

	interpreter := posixInterpreters[canonical]
	payload := false
	for _, w := range call.Args[1:] {
		text := wordText(w)
		switch {
		case payload:
			seg.Tokens = append(seg.Tokens, Token{Raw: text, Role: RolePayload})
		case hasSubstitution(w):
			seg.Tokens = append(seg.Tokens, Token{Raw: text, Role: RoleSubexpr})
		case strings.HasPrefix(text, "-"):
			seg.Tokens = append(seg.Tokens, Token{Raw: text, Role: RoleFlag})
			if interpreter && inlineCodeFlags[text] {
				payload = true
			}
		default:
			seg.Tokens = append(seg.Tokens, Token{Raw: text, Role: RoleLiteral})
		}
	}
	return seg, true
}

// normalizeCmd tokenizes a cmd.exe line by whitespace only. Everything
// after /C or /K is opaque payload.
func normalizeCmd(raw, trimmed string) Line {
	fields := strings.Fields(trimmed)
	seg := Segment{
		Canonical: strings.ToLower(canonicalBase(fields[0])),
		Tokens:    []Token{{Raw: fields[0], Role: RoleCommand}},
	}

	payload := false
	for _, f := range fields[1:] {
		switch {
		case payload:
			seg.Tokens = append(seg.Tokens, Token{Raw: f, Role: RolePayload})
		case strings.HasPrefix(f, "/"):
			seg.Tokens = append(seg.Tokens, Token{Raw: f, Role: RoleFlag})
			switch strings.ToLower(f) {
			case "/c", "/k":
				payload = true
			}
		default:
			seg.Tokens = append(seg.Tokens, Token{Raw: f, Role: RoleLiteral})
		}
	}
	return Line{Raw: raw, Dialect: DialectCmd, Segments: []Segment{seg}}
}

// normalizePowerShell tokenizes a powershell/pwsh line by whitespace only.
// PowerShell flags match case-insensitively; everything after -Command,
// -EncodedCommand or -c is opaque payload.
func normalizePowerShell(raw, trimmed string) Line {
	fields := strings.Fields(trimmed)
	seg := Segment{
		Canonical: strings.ToLower(canonicalBase(fields[0])),
		Tokens:    []Token{{Raw: fields[0], Role: RoleCommand}},
	}

	payload := false
	for _, f := range fields[1:] {
		switch {
		case payload:
			seg.Tokens = append(seg.Tokens, Token{Raw: f, Role: RolePayload})
		case strings.HasPrefix(f, "-"):
			seg.Tokens = append(seg.Tokens, Token{Raw: f, Role: RoleFlag})
			if psCodeFlags[strings.ToLower(f)] {
				payload = true
			}
		default:
			seg.Tokens = append(seg.Tokens, Token{Raw: f, Role: RoleLiteral})
		}
	}
	return Line{Raw: raw, Dialect: DialectPowerShell, Segments: []Segment{seg}}
}

// opaqueLine is the fallback for lines the parser rejects: one segment
// whose canonical name is the first whitespace-delimited field, with the
// remainder carried as a literal.
func opaqueLine(raw, trimmed string) Line {
	fields := strings.Fields(trimmed)
	seg := Segment{
		Canonical: canonicalBase(fields[0]),
		Opaque:    true,
		Tokens:    []Token{{Raw: fields[0], Role: RoleCommand}},
	}
	if rest := strings.TrimSpace(trimmed[len(fields[0]):]); rest != "" {
		seg.Tokens = append(seg.Tokens, Token{Raw: rest, Role: RoleLiteral})
	}
	return Line{Raw: raw, Dialect: DialectPosix, Segments: []Segment{seg}}
}

// canonicalBase reduces a command word to its canonical name: directory
// components (either separator) stripped, Windows executable suffixes
// removed. "/usr/bin/python3" and `C:\Python\python.EXE` both reduce to
// their base interpreter name.
func canonicalBase(word string) string {
	word = strings.Trim(word, `"'`)
	if i := strings.LastIndexAny(word, `/\`); i >= 0 {
		word = word[i+1:]
	}
	lower := strings.ToLower(word)
	for _, suffix := range []string{".exe", ".bat", ".cmd", ".com"} {
		if strings.HasSuffix(lower, suffix) {
			return word[:len(word)-len(suffix)]
		}
	}
	return word
}

func wordText(w *syntax.Word) string {
	if s := w.Lit(); s != "" {
		return s
	}
	var buf bytes.Buffer
	printer := syntax.NewPrinter()
	if err := printer.Print(&buf, w); err != nil {
		return ""
	}
	return buf.String()
}

func hasSubstitution(w *syntax.Word) bool {
	found := false
	syntax.Walk(w, func(node syntax.Node) bool {
		switch node.(type) {
		case *syntax.CmdSubst, *syntax.ProcSubst:
			found = true
			return false
		}
		return true
	})
	return found
}

func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '\'' && s[len(s)-1] == '\'') || (s[0] == '"' && s[len(s)-1] == '"') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
