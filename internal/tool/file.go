package tool

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"agentgate/internal/domain"
)

// fileBase holds what every file tool shares: the path boundary and the
// audit sink. Every path a backend supplies goes through checkPath before
// any filesystem access; a denied path is audited.
type fileBase struct {
	paths       domain.PathValidator
	auditLogger domain.AuditLogger
	auditLog    bool
}

func (b fileBase) checkPath(ctx context.Context, toolName, path string) (string, error) {
	resolved, err := b.paths.Check(path)
	if err != nil {
		if errors.Is(err, domain.ErrPathEscape) {
			b.logAccess(ctx, toolName, path, "deny")
		}
		return "", err
	}
	return resolved, nil
}

func (b fileBase) logAccess(ctx context.Context, toolName, path, verdict string) {
	if !b.auditLog || b.auditLogger == nil {
		return
	}
	_ = b.auditLogger.LogAudit(ctx, domain.AuditEntry{
		SessionID: domain.SessionID(ctx),
		Action:    "file_access",
		ToolName:  toolName,
		Command:   path,
		Verdict:   verdict,
		Reason:    string(domain.ReasonPathEscape),
	})
}

// FileToolConfig wires the shared dependencies into the file tools.
type FileToolConfig struct {
	Paths       domain.PathValidator
	AuditLogger domain.AuditLogger
	AuditLog    bool
}

func newFileBase(cfg FileToolConfig) fileBase {
	return fileBase{paths: cfg.Paths, auditLogger: cfg.AuditLogger, auditLog: cfg.AuditLog}
}

// --- ReadFileTool ---

// ReadFileTool reads the contents of a file inside the project root.
type ReadFileTool struct {
	fileBase
}

func NewReadFileTool(cfg FileToolConfig) *ReadFileTool {
	return &ReadFileTool{fileBase: newFileBase(cfg)}
}

func (t *ReadFileTool) Name() string { return "read_file" }
func (t *ReadFileTool) Description() string {
	return "Read the contents of a file. Provide the file path relative to the project root or absolute."
}
func (t *ReadFileTool) Parameters() map[string]any {
	return ToolParameters(
		map[string]Param{
			"path": {Type: "string", Description: "File path to read (relative to the project root or absolute)"},
		},
		[]string{"path"},
	)
}

type readFileArgs struct {
	Path string `json:"path"`
}

func (t *ReadFileTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	var req readFileArgs
	if err := DecodeArgs(args, &req); err != nil {
		return "", err
	}
	if req.Path == "" {
		return "", fmt.Errorf("missing argument: path")
	}
	resolved, err := t.checkPath(ctx, t.Name(), req.Path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return string(data), nil
}

// --- WriteFileTool ---

// WriteFileTool writes content to a file, creating parent directories as needed.
type WriteFileTool struct {
	fileBase
}

func NewWriteFileTool(cfg FileToolConfig) *WriteFileTool {
	return &WriteFileTool{fileBase: newFileBase(cfg)}
}

func (t *WriteFileTool) Name() string { return "write_file" }
func (t *WriteFileTool) Description() string {
	return "Write content to a file. Creates the file if it does not exist; overwrites if it exists."
}
func (t *WriteFileTool) Parameters() map[string]any {
	return ToolParameters(
		map[string]Param{
			"path":    {Type: "string", Description: "File path to write (relative to the project root or absolute)"},
			"content": {Type: "string", Description: "Content to write to the file"},
		},
		[]string{"path", "content"},
	)
}

type writeFileArgs struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

func (t *WriteFileTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	var req writeFileArgs
	if err := DecodeArgs(args, &req); err != nil {
		return "", err
	}
	if req.Path == "" {
		return "", fmt.Errorf("missing argument: path")
	}
	resolved, err := t.checkPath(ctx, t.Name(), req.Path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return "", fmt.Errorf("create directory: %w", err)
	}
	if err := os.WriteFile(resolved, []byte(req.Content), 0o644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return fmt.Sprintf("Wrote %d bytes to %s", len(req.Content), resolved), nil
}

// --- EditFileTool ---

// EditFileTool replaces an exact text fragment inside an existing file.
type EditFileTool struct {
	fileBase
}

func NewEditFileTool(cfg FileToolConfig) *EditFileTool {
	return &EditFileTool{fileBase: newFileBase(cfg)}
}

func (t *EditFileTool) Name() string { return "edit_file" }
func (t *EditFileTool) Description() string {
	return "Replace an exact text fragment in a file. The old text must appear in the file; only the first occurrence is replaced unless replace_all is set."
}
func (t *EditFileTool) Parameters() map[string]any {
	return ToolParameters(
		map[string]Param{
			"path":        {Type: "string", Description: "File path to edit (relative to the project root or absolute)"},
			"old":         {Type: "string", Description: "Exact text to replace"},
			"new":         {Type: "string", Description: "Replacement text"},
			"replace_all": {Type: "boolean", Description: "Replace every occurrence instead of just the first"},
		},
		[]string{"path", "old", "new"},
	)
}

type editFileArgs struct {
	Path       string `json:"path"`
	Old        string `json:"old"`
	New        string `json:"new"`
	ReplaceAll bool   `json:"replace_all"`
}

func (t *EditFileTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	var req editFileArgs
	if err := DecodeArgs(args, &req); err != nil {
		return "", err
	}
	if req.Path == "" {
		return "", fmt.Errorf("missing argument: path")
	}
	if req.Old == "" {
		return "", fmt.Errorf("missing argument: old")
	}
	resolved, err := t.checkPath(ctx, t.Name(), req.Path)
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	content := string(data)

	count := strings.Count(content, req.Old)
	if count == 0 {
		return "", fmt.Errorf("text to replace not found in %s", req.Path)
	}
	replaced := 1
	if req.ReplaceAll {
		replaced = count
		content = strings.ReplaceAll(content, req.Old, req.New)
	} else {
		content = strings.Replace(content, req.Old, req.New, 1)
	}

	if err := os.WriteFile(resolved, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return fmt.Sprintf("Replaced %d occurrence(s) in %s", replaced, resolved), nil
}

// --- ListDirTool ---

// ListDirTool lists files and directories at a given path.
type ListDirTool struct {
	fileBase
}

func NewListDirTool(cfg FileToolConfig) *ListDirTool {
	return &ListDirTool{fileBase: newFileBase(cfg)}
}

func (t *ListDirTool) Name() string { return "list_dir" }
func (t *ListDirTool) Description() string {
	return "List files and directories at the given path. Use '.' or empty for the project root."
}
func (t *ListDirTool) Parameters() map[string]any {
	return ToolParameters(
		map[string]Param{
			"path": {Type: "string", Description: "Directory path to list (use '.' for the project root)"},
		},
		[]string{},
	)
}

type listDirArgs struct {
	Path string `json:"path"`
}

func (t *ListDirTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	var req listDirArgs
	if err := DecodeArgs(args, &req); err != nil {
		return "", err
	}
	if req.Path == "" {
		req.Path = "."
	}
	resolved, err := t.checkPath(ctx, t.Name(), req.Path)
	if err != nil {
		return "", err
	}
	entries, err := os.ReadDir(resolved)
	if err != nil {
		return "", fmt.Errorf("list dir: %w", err)
	}
	var lines []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		} else if info, err := e.Info(); err == nil {
			name += fmt.Sprintf(" %d", info.Size())
		}
		lines = append(lines, name)
	}
	return strings.Join(lines, "\n"), nil
}

// Compile-time interface checks.
var (
	_ domain.Tool = (*ReadFileTool)(nil)
	_ domain.Tool = (*WriteFileTool)(nil)
	_ domain.Tool = (*EditFileTool)(nil)
	_ domain.Tool = (*ListDirTool)(nil)
)
