package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"agentgate/internal/domain"
)

// maxSymlinkHops bounds symlink chain traversal.
const maxSymlinkHops = 40

// Boundary confines file access to one canonical root directory.
// Validation is purely a read: Check never creates, modifies or deletes
// anything. Relative paths resolve against the root, absolute paths must
// already lie within it, and symlinks are followed so that an in-tree link
// cannot smuggle access to a target outside the tree.
type Boundary struct {
	root string
}

// NewBoundary canonicalizes root (absolute, symlinks resolved) and verifies
// it is an existing directory.
func NewBoundary(root string) (*Boundary, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve root: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("cannot canonicalize root %s: %w", abs, err)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return nil, fmt.Errorf("root does not exist: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root is not a directory: %s", resolved)
	}
	return &Boundary{root: resolved}, nil
}

// Root returns the canonical jail root.
func (b *Boundary) Root() string { return b.root }

// Check validates one path against the boundary and returns its resolved
// absolute form. The path may name a file that does not exist yet, as long
// as it would land inside the root. Identical inputs against an unchanged
// filesystem yield identical results.
func (b *Boundary) Check(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("empty path: %w", domain.ErrPathEscape)
	}

	var abs string
	if filepath.IsAbs(path) {
		abs = filepath.Clean(path)
	} else {
		abs = filepath.Join(b.root, path)
	}

	// Lexical gate first: a path that cleans to outside the root is
	// rejected before any filesystem access, whether or not it exists.
	rel, err := filepath.Rel(b.root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s: %w", path, domain.ErrPathEscape)
	}
	if rel == "." {
		return b.root, nil
	}

	resolved, err := b.resolveWithin(rel)
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	return resolved, nil
}

// resolveWithin walks rel component by component from the root, following
// symlinks as it goes. Every intermediate result must stay inside the root;
// a missing suffix is accepted as-is so that new files can be created.
func (b *Boundary) resolveWithin(rel string) (string, error) {
	parts := strings.Split(filepath.ToSlash(rel), "/")
	current := b.root

	for i, part := range parts {
		if part == "" || part == "." {
			continue
		}
		if part == ".." {
			if current == b.root {
				return "", domain.ErrPathEscape
			}
			current = filepath.Dir(current)
			if !b.contains(current) {
				return "", domain.ErrPathEscape
			}
			continue
		}

		next := filepath.Join(current, part)
		resolved, exists, err := b.followSymlinks(next)
		if err != nil {
			return "", err
		}
		if !exists {
			// Remainder does not exist: keep it lexically and re-check.
			for _, rest := range parts[i+1:] {
				if rest == "" || rest == "." {
					continue
				}
				resolved = filepath.Join(resolved, rest)
			}
			if !b.contains(resolved) {
				return "", domain.ErrPathEscape
			}
			return resolved, nil
		}
		if !b.contains(resolved) {
			return "", domain.ErrPathEscape
		}
		current = resolved
	}
	return current, nil
}

// followSymlinks resolves one path through any chain of symlinks.
// A link target outside the root fails immediately with ErrPathEscape.
func (b *Boundary) followSymlinks(path string) (resolved string, exists bool, err error) {
	seen := make(map[string]struct{})
	current := path

	for hops := 0; hops <= maxSymlinkHops; hops++ {
		if _, dup := seen[current]; dup {
			return "", false, fmt.Errorf("symlink loop at %s", current)
		}
		seen[current] = struct{}{}

		info, err := os.Lstat(current)
		if err != nil {
			if os.IsNotExist(err) {
				return current, false, nil
			}
			return "", false, fmt.Errorf("lstat %s: %w", current, err)
		}
		if info.Mode()&os.ModeSymlink == 0 {
			return current, true, nil
		}

		target, err := os.Readlink(current)
		if err != nil {
			return "", false, fmt.Errorf("readlink %s: %w", current, err)
		}
		if filepath.IsAbs(target) {
			current = filepath.Clean(target)
		} else {
			current = filepath.Clean(filepath.Join(filepath.Dir(current), target))
		}
		if !b.contains(current) {
			return "", false, domain.ErrPathEscape
		}
	}
	return "", false, fmt.Errorf("symlink chain too long (max %d hops)", maxSymlinkHops)
}

func (b *Boundary) contains(path string) bool {
	clean := filepath.Clean(path)
	if clean == b.root {
		return true
	}
	return strings.HasPrefix(clean, b.root+string(filepath.Separator))
}
