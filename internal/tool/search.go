package tool

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"agentgate/internal/domain"
)

const (
	globMaxResults     = 500
	searchMaxResults   = 100
	searchMaxFileBytes = 1 << 20 // skip files larger than 1MB
	searchBinarySniff  = 8000
)

// --- GlobSearchTool ---

// GlobSearchTool finds files by glob pattern. Patterns support ** for any
// number of directory levels and the usual * and ? within one segment.
type GlobSearchTool struct {
	fileBase
}

func NewGlobSearchTool(cfg FileToolConfig) *GlobSearchTool {
	return &GlobSearchTool{fileBase: newFileBase(cfg)}
}

func (t *GlobSearchTool) Name() string { return "glob_search" }
func (t *GlobSearchTool) Description() string {
	return "Find files matching a glob pattern, e.g. '**/*.go' or 'src/*.ts'. Returns matching paths relative to the project root."
}
func (t *GlobSearchTool) Parameters() map[string]any {
	return ToolParameters(
		map[string]Param{
			"pattern": {Type: "string", Description: "Glob pattern; ** matches across directories"},
			"path":    {Type: "string", Description: "Directory to search under (defaults to the project root)"},
		},
		[]string{"pattern"},
	)
}

type globSearchArgs struct {
	Pattern string `json:"pattern"`
	Path    string `json:"path"`
}

func (t *GlobSearchTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	var req globSearchArgs
	if err := DecodeArgs(args, &req); err != nil {
		return "", err
	}
	if req.Pattern == "" {
		return "", fmt.Errorf("missing argument: pattern")
	}
	if req.Path == "" {
		req.Path = "."
	}
	base, err := t.checkPath(ctx, t.Name(), req.Path)
	if err != nil {
		return "", err
	}

	patternParts := strings.Split(filepath.ToSlash(req.Pattern), "/")
	var matches []string

	err = filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped, not fatal
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(base, path)
		if err != nil {
			return nil
		}
		if matchSegments(patternParts, strings.Split(filepath.ToSlash(rel), "/")) {
			matches = append(matches, filepath.ToSlash(rel))
			if len(matches) >= globMaxResults {
				return fs.SkipAll
			}
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("glob walk: %w", err)
	}

	if len(matches) == 0 {
		return "No files match " + req.Pattern, nil
	}
	return strings.Join(matches, "\n"), nil
}

// matchSegments matches a slash-split glob pattern against slash-split path
// segments. "**" consumes zero or more segments; other segments use
// filepath.Match semantics.
func matchSegments(pattern, path []string) bool {
	if len(pattern) == 0 {
		return len(path) == 0
	}
	if pattern[0] == "**" {
		if matchSegments(pattern[1:], path) {
			return true
		}
		if len(path) > 0 {
			return matchSegments(pattern, path[1:])
		}
		return false
	}
	if len(path) == 0 {
		return false
	}
	ok, err := filepath.Match(pattern[0], path[0])
	if err != nil || !ok {
		return false
	}
	return matchSegments(pattern[1:], path[1:])
}

// --- ContentSearchTool ---

// ContentSearchTool searches file contents by regular expression.
type ContentSearchTool struct {
	fileBase
}

func NewContentSearchTool(cfg FileToolConfig) *ContentSearchTool {
	return &ContentSearchTool{fileBase: newFileBase(cfg)}
}

func (t *ContentSearchTool) Name() string { return "content_search" }
func (t *ContentSearchTool) Description() string {
	return "Search file contents with a regular expression. Returns file:line: matches. Binary and oversized files are skipped."
}
func (t *ContentSearchTool) Parameters() map[string]any {
	return ToolParameters(
		map[string]Param{
			"pattern": {Type: "string", Description: "Regular expression to search for"},
			"path":    {Type: "string", Description: "Directory to search under (defaults to the project root)"},
		},
		[]string{"pattern"},
	)
}

type contentSearchArgs struct {
	Pattern string `json:"pattern"`
	Path    string `json:"path"`
}

func (t *ContentSearchTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	var req contentSearchArgs
	if err := DecodeArgs(args, &req); err != nil {
		return "", err
	}
	if req.Pattern == "" {
		return "", fmt.Errorf("missing argument: pattern")
	}
	re, err := regexp.Compile(req.Pattern)
	if err != nil {
		return "", fmt.Errorf("invalid pattern: %w", err)
	}
	if req.Path == "" {
		req.Path = "."
	}
	base, err := t.checkPath(ctx, t.Name(), req.Path)
	if err != nil {
		return "", err
	}

	var results []string
	err = filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil || info.Size() > searchMaxFileBytes {
			return nil
		}

		rel, err := filepath.Rel(base, path)
		if err != nil {
			return nil
		}
		found, err := searchFile(path, filepath.ToSlash(rel), re, searchMaxResults-len(results))
		if err != nil {
			return nil
		}
		results = append(results, found...)
		if len(results) >= searchMaxResults {
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("search walk: %w", err)
	}

	if len(results) == 0 {
		return "No matches for " + req.Pattern, nil
	}
	return strings.Join(results, "\n"), nil
}

func searchFile(path, rel string, re *regexp.Regexp, limit int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sniff := make([]byte, searchBinarySniff)
	n, _ := f.Read(sniff)
	if bytes.IndexByte(sniff[:n], 0) >= 0 {
		return nil, nil // binary file
	}
	if _, err := f.Seek(0, 0); err != nil {
		return nil, err
	}

	var results []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if re.MatchString(line) {
			results = append(results, fmt.Sprintf("%s:%d: %s", rel, lineNo, strings.TrimSpace(line)))
			if len(results) >= limit {
				break
			}
		}
	}
	return results, scanner.Err()
}

var (
	_ domain.Tool = (*GlobSearchTool)(nil)
	_ domain.Tool = (*ContentSearchTool)(nil)
)
