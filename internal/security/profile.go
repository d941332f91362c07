package security

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ArgRule forbids specific flags on an otherwise allowed command.
// Flags match exact flag tokens; payload and literal arguments are never
// inspected by argument rules.
type ArgRule struct {
	Command string   `yaml:"command" json:"command"`
	Flags   []string `yaml:"flags" json:"flags"`
	Reason  string   `yaml:"reason,omitempty" json:"reason,omitempty"`
}

// Profile is one named security policy: an allowlist and denylist of
// canonical command names plus argument rules. A command absent from both
// lists is denied. Exactly one profile is active per session.
type Profile struct {
	Name     string    `yaml:"name" json:"name"`
	Allow    []string  `yaml:"allow" json:"allow"`
	Deny     []string  `yaml:"deny" json:"deny"`
	ArgRules []ArgRule `yaml:"argRules,omitempty" json:"argRules,omitempty"`
}

// Validate rejects profiles with no name, overlapping allow/deny lists,
// or incomplete argument rules.
func (p *Profile) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("profile name must be set")
	}
	denied := make(map[string]bool, len(p.Deny))
	for _, c := range p.Deny {
		denied[c] = true
	}
	for _, c := range p.Allow {
		if denied[c] {
			return fmt.Errorf("command %q appears in both allow and deny lists", c)
		}
	}
	for _, r := range p.ArgRules {
		if r.Command == "" || len(r.Flags) == 0 {
			return fmt.Errorf("argument rule must name a command and at least one flag")
		}
	}
	return nil
}

// Builtin returns a copy of one of the built-in profiles.
func Builtin(name string) (*Profile, bool) {
	var p Profile
	switch name {
	case "strict":
		p = Profile{
			Name: "strict",
			Allow: []string{
				"cat", "ls", "pwd", "echo", "head", "tail", "wc",
				"grep", "find", "diff", "stat", "which", "git", "go",
			},
			Deny: []string{
				"rm", "sudo", "su", "chmod", "chown", "dd", "mkfs",
				"shutdown", "reboot", "kill", "curl", "wget", "ssh",
				"scp", "nc", "bash", "sh", "python", "python3", "node",
			},
			ArgRules: []ArgRule{
				{Command: "git", Flags: []string{"--force", "--force-with-lease"}, Reason: "history rewrites are not permitted"},
				{Command: "find", Flags: []string{"-delete", "-exec", "-execdir"}, Reason: "find must not modify or execute"},
			},
		}
	case "balanced":
		p = Profile{
			Name: "balanced",
			Allow: []string{
				"cat", "ls", "pwd", "echo", "head", "tail", "wc",
				"grep", "find", "diff", "stat", "which", "sort", "uniq",
				"cut", "tr", "sed", "awk", "xargs", "jq", "env", "date",
				"uname", "dirname", "basename", "mkdir", "touch", "cp",
				"mv", "rm", "sleep", "tar", "gzip", "unzip", "make", "git", "go",
				"npm", "npx", "node", "python", "python3", "pip", "pip3",
				"cargo", "rustc", "curl",
			},
			Deny: []string{
				"sudo", "su", "shutdown", "reboot", "mkfs", "dd",
				"chown", "kill", "ssh", "scp", "nc",
			},
			ArgRules: []ArgRule{
				{Command: "rm", Flags: []string{"-r", "-R", "-rf", "-fr", "-f", "--recursive", "--force"}, Reason: "recursive or forced deletion requires manual review"},
				{Command: "git", Flags: []string{"--force", "--force-with-lease"}, Reason: "history rewrites are not permitted"},
				{Command: "find", Flags: []string{"-delete"}, Reason: "bulk deletion via find is not permitted"},
			},
		}
	case "lenient":
		p = Profile{
			Name: "lenient",
			Allow: []string{
				"cat", "ls", "pwd", "echo", "head", "tail", "wc",
				"grep", "find", "diff", "stat", "which", "sort", "uniq",
				"cut", "tr", "sed", "awk", "xargs", "jq", "env", "date",
				"uname", "dirname", "basename", "mkdir", "touch", "cp",
				"mv", "rm", "sleep", "tar", "gzip", "unzip", "make", "git", "go",
				"npm", "npx", "node", "python", "python3", "pip", "pip3",
				"cargo", "rustc", "curl", "wget", "bash", "sh", "chmod",
				"kill", "docker", "kubectl", "psql", "sqlite3",
			},
			Deny: []string{"sudo", "su", "shutdown", "reboot", "mkfs", "dd"},
		}
	default:
		return nil, false
	}
	return &p, true
}

// LoadProfile resolves a profile by name: built-ins first, then a YAML
// file <name>.yaml or <name>.yml under dir. Custom profiles are validated
// before use; a broken profile is an error, never a silent fallback.
func LoadProfile(name, dir string, logger *slog.Logger) (*Profile, error) {
	if p, ok := Builtin(name); ok {
		return p, nil
	}
	if dir == "" {
		return nil, fmt.Errorf("unknown profile %q and no profiles directory configured", name)
	}

	for _, ext := range []string{".yaml", ".yml"} {
		path := filepath.Join(dir, name+ext)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}

		var p Profile
		if err := yaml.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("cannot parse profile %s: %w", path, err)
		}
		if p.Name == "" {
			p.Name = name
		}
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("profile %s: %w", path, err)
		}

		logger.Info("loaded custom security profile", "name", p.Name, "path", path)
		return &p, nil
	}
	return nil, fmt.Errorf("profile %q not found in %s", name, dir)
}
