package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Config is the root configuration for the agentgate gateway.
type Config struct {
	General  GeneralConfig  `json:"general"`
	Security SecurityConfig `json:"security"`
	Tools    ToolsConfig    `json:"tools"`
	Backend  BackendConfig  `json:"backend"`
}

type GeneralConfig struct {
	Workspace string `json:"workspace"` // jail root for all file tools
	LogLevel  string `json:"logLevel"`
	LogFile   string `json:"logFile,omitempty"`
}

// SecurityConfig selects the active profile and the audit sink.
// Exactly one profile is active per session; the profile itself is loaded
// once at session start and is immutable for the session lifetime.
type SecurityConfig struct {
	Profile     string `json:"profile"`               // "strict" | "balanced" | "lenient" | custom name
	ProfilesDir string `json:"profilesDir,omitempty"` // directory of custom profile YAML files
	AuditLog    bool   `json:"auditLog"`
	AuditDBPath string `json:"auditDbPath"`
}

type ToolsConfig struct {
	Shell ShellToolConfig `json:"shell"`
	Web   WebToolConfig   `json:"web"`
}

type ShellToolConfig struct {
	TimeoutSeconds int `json:"timeout"` // hard wall-clock timeout per command
	MaxOutputBytes int `json:"maxOutputBytes"`
}

type WebToolConfig struct {
	FetchMaxBytes int `json:"fetchMaxBytes"`
}

// BackendConfig declares the capabilities of the agent backend this gateway
// serves. Tools exposed to the backend are narrowed to the core set unless
// the backend supports the extended protocol.
type BackendConfig struct {
	ID               string   `json:"id"`
	DeclaredTools    []string `json:"declaredTools,omitempty"` // empty means "all core tools"
	ExtendedProtocol bool     `json:"extendedProtocol"`
}

// DefaultConfigDir returns the default config directory (~/.agentgate).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".agentgate"
	}
	return filepath.Join(home, ".agentgate")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

func Load(path string) (*Config, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("cannot resolve home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	cfg.General.Workspace = ExpandPath(cfg.General.Workspace)
	cfg.General.LogFile = ExpandPath(cfg.General.LogFile)
	cfg.Security.ProfilesDir = ExpandPath(cfg.Security.ProfilesDir)
	cfg.Security.AuditDBPath = ExpandPath(cfg.Security.AuditDBPath)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match // Keep original if no env var and no default
		}
		return val
	})
}

func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.General.Workspace == "" {
		errs = append(errs, "general.workspace must be set")
	}
	if cfg.Tools.Shell.TimeoutSeconds < 1 {
		errs = append(errs, "tools.shell.timeout must be >= 1")
	}
	if cfg.Tools.Shell.MaxOutputBytes < 1 {
		errs = append(errs, "tools.shell.maxOutputBytes must be >= 1")
	}
	if cfg.Security.Profile == "" {
		errs = append(errs, "security.profile must be set")
	}
	if cfg.Security.AuditLog && cfg.Security.AuditDBPath == "" {
		errs = append(errs, "security.auditDbPath must be set when auditLog is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
