package command

import (
	"errors"
	"reflect"
	"testing"

	"agentgate/internal/domain"
)

func mustNormalize(t *testing.T, raw string) Line {
	t.Helper()
	line, err := Normalize(raw)
	if err != nil {
		t.Fatalf("normalize %q: %v", raw, err)
	}
	return line
}

func TestNormalize_SimpleCommand(t *testing.T) {
	line := mustNormalize(t, "ls -la /tmp")

	if line.Dialect != DialectPosix {
		t.Fatalf("expected posix dialect, got %s", line.Dialect)
	}
	if len(line.Segments) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(line.Segments))
	}
	seg := line.Segments[0]
	if seg.Canonical != "ls" {
		t.Fatalf("expected canonical ls, got %q", seg.Canonical)
	}
	wantRoles := []Role{RoleCommand, RoleFlag, RoleLiteral}
	for i, tok := range seg.Tokens {
		if tok.Role != wantRoles[i] {
			t.Fatalf("token %d (%q): expected role %s, got %s", i, tok.Raw, wantRoles[i], tok.Role)
		}
	}
}

func TestNormalize_InlineCodeIsOpaquePayload(t *testing.T) {
	line := mustNormalize(t, `python -c "import os; os.system('rm -rf /')"`)

	names := line.CanonicalNames()
	if !reflect.DeepEqual(names, []string{"python"}) {
		t.Fatalf("expected canonical names [python], got %v", names)
	}

	seg := line.Segments[0]
	var payload bool
	for _, tok := range seg.Tokens {
		if tok.Role == RolePayload {
			payload = true
		}
	}
	if !payload {
		t.Fatal("expected a payload token after -c")
	}
}

func TestNormalize_CompoundSegments(t *testing.T) {
	line := mustNormalize(t, "ls && rm -rf / || echo done")

	names := line.CanonicalNames()
	if !reflect.DeepEqual(names, []string{"ls", "rm", "echo"}) {
		t.Fatalf("expected [ls rm echo], got %v", names)
	}
}

func TestNormalize_PipelineAndSemicolon(t *testing.T) {
	line := mustNormalize(t, "cat f.txt | grep x; wc -l")

	names := line.CanonicalNames()
	if !reflect.DeepEqual(names, []string{"cat", "grep", "wc"}) {
		t.Fatalf("expected [cat grep wc], got %v", names)
	}
}

func TestNormalize_CommandSubstitution(t *testing.T) {
	line := mustNormalize(t, "echo $(whoami)")

	names := line.CanonicalNames()
	if !reflect.DeepEqual(names, []string{"echo", "whoami"}) {
		t.Fatalf("expected [echo whoami], got %v", names)
	}
	if !line.Segments[1].Subexpr {
		t.Fatal("expected whoami segment to be marked as subexpr")
	}
	if line.Segments[0].Subexpr {
		t.Fatal("echo segment must not be marked as subexpr")
	}
}

func TestNormalize_BacktickSubstitution(t *testing.T) {
	line := mustNormalize(t, "echo `id`")

	names := line.CanonicalNames()
	if !reflect.DeepEqual(names, []string{"echo", "id"}) {
		t.Fatalf("expected [echo id], got %v", names)
	}
	if !line.Segments[1].Subexpr {
		t.Fatal("expected id segment to be marked as subexpr")
	}
}

func TestNormalize_PowerShellShortCircuits(t *testing.T) {
	line := mustNormalize(t, `powershell -Command "Remove-Item -Recurse C:\; ls"`)

	if line.Dialect != DialectPowerShell {
		t.Fatalf("expected powershell dialect, got %s", line.Dialect)
	}
	if len(line.Segments) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(line.Segments))
	}
	if line.Segments[0].Canonical != "powershell" {
		t.Fatalf("expected canonical powershell, got %q", line.Segments[0].Canonical)
	}
}

func TestNormalize_PwshFlagCaseInsensitive(t *testing.T) {
	line := mustNormalize(t, "pwsh -cOmMaNd Get-ChildItem")

	seg := line.Segments[0]
	last := seg.Tokens[len(seg.Tokens)-1]
	if last.Role != RolePayload {
		t.Fatalf("expected payload after -Command, got role %s", last.Role)
	}
}

func TestNormalize_CmdExe(t *testing.T) {
	line := mustNormalize(t, `C:\Windows\System32\cmd.exe /c del /q C:\stuff`)

	if line.Dialect != DialectCmd {
		t.Fatalf("expected cmd dialect, got %s", line.Dialect)
	}
	seg := line.Segments[0]
	if seg.Canonical != "cmd" {
		t.Fatalf("expected canonical cmd, got %q", seg.Canonical)
	}
	// Everything after /c is payload, including what looks like more flags.
	for _, tok := range seg.Tokens[2:] {
		if tok.Role != RolePayload {
			t.Fatalf("token %q: expected payload, got %s", tok.Raw, tok.Role)
		}
	}
}

func TestNormalize_ParseFailureFallsBackToOpaque(t *testing.T) {
	line := mustNormalize(t, `ls "unterminated`)

	if len(line.Segments) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(line.Segments))
	}
	seg := line.Segments[0]
	if !seg.Opaque {
		t.Fatal("expected opaque segment for unparseable input")
	}
	if seg.Canonical != "ls" {
		t.Fatalf("expected canonical ls, got %q", seg.Canonical)
	}
}

func TestNormalize_EmptyIsMalformed(t *testing.T) {
	for _, raw := range []string{"", "   ", "\t\n"} {
		if _, err := Normalize(raw); !errors.Is(err, domain.ErrMalformedCommand) {
			t.Fatalf("input %q: expected ErrMalformedCommand, got %v", raw, err)
		}
	}
}

func TestNormalize_LeadingAssignmentSkipped(t *testing.T) {
	line := mustNormalize(t, "FOO=bar make test")

	names := line.CanonicalNames()
	if !reflect.DeepEqual(names, []string{"make"}) {
		t.Fatalf("expected [make], got %v", names)
	}
}

func TestNormalize_PathAndSuffixStripped(t *testing.T) {
	cases := map[string]string{
		"/usr/local/bin/node -e 1":  "node",
		`C:\Python311\python.EXE x`: "python",
		"./scripts/deploy.sh":       "deploy.sh",
	}
	for raw, want := range cases {
		line := mustNormalize(t, raw)
		if got := line.Segments[0].Canonical; got != want {
			t.Fatalf("%q: expected canonical %q, got %q", raw, want, got)
		}
	}
}

func TestNormalize_Deterministic(t *testing.T) {
	raw := `git commit -m "wip" && python -c "print(1)" | tee $(mktemp)`

	first := mustNormalize(t, raw)
	second := mustNormalize(t, raw)
	if !reflect.DeepEqual(first, second) {
		t.Fatal("normalization must be deterministic for identical input")
	}
}
