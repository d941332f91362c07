package sandbox

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"agentgate/internal/domain"
)

func newTestBoundary(t *testing.T) (*Boundary, string) {
	t.Helper()
	root := t.TempDir()
	// t.TempDir may live under a symlinked tmp directory (macOS).
	canonical, err := filepath.EvalSymlinks(root)
	if err != nil {
		t.Fatalf("canonicalize temp root: %v", err)
	}
	b, err := NewBoundary(canonical)
	if err != nil {
		t.Fatalf("new boundary: %v", err)
	}
	return b, canonical
}

func TestCheck_RelativeInsideRoot(t *testing.T) {
	b, root := newTestBoundary(t)

	got, err := b.Check("sub/file.txt")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if got != filepath.Join(root, "sub", "file.txt") {
		t.Fatalf("unexpected resolved path: %s", got)
	}
}

func TestCheck_DotDotWithinRootAllowed(t *testing.T) {
	b, root := newTestBoundary(t)
	if err := os.MkdirAll(filepath.Join(root, "sub"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	got, err := b.Check("sub/../sub/file.txt")
	if err != nil {
		t.Fatalf("path cleans to inside the root, must be allowed: %v", err)
	}
	if got != filepath.Join(root, "sub", "file.txt") {
		t.Fatalf("unexpected resolved path: %s", got)
	}
}

func TestCheck_DotDotEscapeDenied(t *testing.T) {
	b, _ := newTestBoundary(t)

	if _, err := b.Check("../secrets.txt"); !errors.Is(err, domain.ErrPathEscape) {
		t.Fatalf("expected ErrPathEscape, got %v", err)
	}
}

func TestCheck_AbsoluteOutsideDenied(t *testing.T) {
	b, _ := newTestBoundary(t)

	if _, err := b.Check("/etc/passwd"); !errors.Is(err, domain.ErrPathEscape) {
		t.Fatalf("expected ErrPathEscape, got %v", err)
	}
}

func TestCheck_AbsoluteInsideAllowed(t *testing.T) {
	b, root := newTestBoundary(t)

	got, err := b.Check(filepath.Join(root, "a", "b.txt"))
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if got != filepath.Join(root, "a", "b.txt") {
		t.Fatalf("unexpected resolved path: %s", got)
	}
}

func TestCheck_SymlinkEscapeDenied(t *testing.T) {
	b, root := newTestBoundary(t)

	link := filepath.Join(root, "passwd-link")
	if err := os.Symlink("/etc/passwd", link); err != nil {
		t.Skipf("cannot create symlink: %v", err)
	}

	if _, err := b.Check("passwd-link"); !errors.Is(err, domain.ErrPathEscape) {
		t.Fatalf("in-root symlink to outside target must be denied, got %v", err)
	}
}

func TestCheck_SymlinkDirEscapeDenied(t *testing.T) {
	b, root := newTestBoundary(t)

	outside := t.TempDir()
	link := filepath.Join(root, "outdir")
	if err := os.Symlink(outside, link); err != nil {
		t.Skipf("cannot create symlink: %v", err)
	}

	if _, err := b.Check("outdir/notes.txt"); !errors.Is(err, domain.ErrPathEscape) {
		t.Fatalf("path through escaping symlink dir must be denied, got %v", err)
	}
}

func TestCheck_SymlinkInsideAllowed(t *testing.T) {
	b, root := newTestBoundary(t)

	target := filepath.Join(root, "real.txt")
	if err := os.WriteFile(target, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	link := filepath.Join(root, "alias.txt")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("cannot create symlink: %v", err)
	}

	got, err := b.Check("alias.txt")
	if err != nil {
		t.Fatalf("in-root symlink to in-root target must be allowed: %v", err)
	}
	if got != target {
		t.Fatalf("expected %s, got %s", target, got)
	}
}

func TestCheck_MissingFileInsideAllowed(t *testing.T) {
	b, root := newTestBoundary(t)

	got, err := b.Check("new/dir/file.txt")
	if err != nil {
		t.Fatalf("nonexistent in-root path must validate: %v", err)
	}
	if got != filepath.Join(root, "new", "dir", "file.txt") {
		t.Fatalf("unexpected resolved path: %s", got)
	}
}

func TestCheck_MissingEscapeStillDenied(t *testing.T) {
	b, _ := newTestBoundary(t)

	if _, err := b.Check("../nope/file.txt"); !errors.Is(err, domain.ErrPathEscape) {
		t.Fatalf("expected ErrPathEscape for nonexistent escaping path, got %v", err)
	}
}

func TestCheck_RootItself(t *testing.T) {
	b, root := newTestBoundary(t)

	got, err := b.Check(".")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if got != root {
		t.Fatalf("expected root %s, got %s", root, got)
	}
}

func TestCheck_EmptyPathRejected(t *testing.T) {
	b, _ := newTestBoundary(t)

	if _, err := b.Check("  "); !errors.Is(err, domain.ErrPathEscape) {
		t.Fatalf("expected ErrPathEscape for empty path, got %v", err)
	}
}

func TestNewBoundary_MissingRoot(t *testing.T) {
	if _, err := NewBoundary(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected error for nonexistent root")
	}
}
