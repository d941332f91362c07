package config

import "path/filepath"

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			Workspace: filepath.Join(DefaultConfigDir(), "workspace"),
			LogLevel:  "info",
		},
		Security: SecurityConfig{
			Profile:     "balanced",
			ProfilesDir: filepath.Join(DefaultConfigDir(), "profiles"),
			AuditLog:    true,
			AuditDBPath: filepath.Join(DefaultConfigDir(), "audit.db"),
		},
		Tools: ToolsConfig{
			Shell: ShellToolConfig{
				TimeoutSeconds: 300,
				MaxOutputBytes: 65536,
			},
			Web: WebToolConfig{
				FetchMaxBytes: 100 * 1024,
			},
		},
		Backend: BackendConfig{
			ID:               "default",
			ExtendedProtocol: false,
		},
	}
}
