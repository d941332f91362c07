package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"agentgate/internal/agent"
	"agentgate/internal/audit"
	"agentgate/internal/config"
	"agentgate/internal/domain"
	"agentgate/internal/gateway"
	"agentgate/internal/sandbox"
	"agentgate/internal/security"
	"agentgate/internal/tool"

	"github.com/spf13/cobra"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:     "agentgate",
		Short:   "agentgate: command and path security gateway for coding agents",
		Long:    "agentgate mediates every command, file access and tool call a coding agent proposes, against a named security profile.",
		Version: version,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json (default: ~/.agentgate/config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(checkCmd())
	root.AddCommand(execCmd())
	root.AddCommand(toolsCmd())
	root.AddCommand(auditCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

func loadConfig() (*config.Config, error) {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Warn("config not found, using defaults", "path", cfgPath, "err", err)
		return config.Defaults(), nil
	}
	return cfg, nil
}

// stack is the wired gateway: one profile, one boundary, one audit trail.
type stack struct {
	cfg      *config.Config
	engine   *security.Engine
	boundary *sandbox.Boundary
	store    *audit.SQLiteStore
	registry *tool.Registry
	sessions *agent.Manager
}

func buildStack(cfg *config.Config) (*stack, error) {
	if err := os.MkdirAll(cfg.General.Workspace, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}

	var store *audit.SQLiteStore
	var auditLogger domain.AuditLogger
	if cfg.Security.AuditLog {
		var err error
		store, err = audit.NewSQLiteStore(cfg.Security.AuditDBPath, logger)
		if err != nil {
			return nil, fmt.Errorf("audit store: %w", err)
		}
		auditLogger = store
	}

	profile, err := security.LoadProfile(cfg.Security.Profile, cfg.Security.ProfilesDir, logger)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	engine, err := security.NewEngine(profile, auditLogger, cfg.Security.AuditLog, logger)
	if err != nil {
		return nil, fmt.Errorf("security engine: %w", err)
	}

	boundary, err := sandbox.NewBoundary(cfg.General.Workspace)
	if err != nil {
		return nil, fmt.Errorf("path boundary: %w", err)
	}

	registry := registerTools(cfg, engine, boundary, auditLogger)
	sessions := agent.NewManager(registry, auditLogger, cfg.Security.AuditLog, logger)

	return &stack{
		cfg:      cfg,
		engine:   engine,
		boundary: boundary,
		store:    store,
		registry: registry,
		sessions: sessions,
	}, nil
}

func (s *stack) close() {
	if s.store != nil {
		s.store.Close()
	}
}

// registerTools creates and registers all tools with the registry.
func registerTools(cfg *config.Config, engine *security.Engine, boundary *sandbox.Boundary, auditLogger domain.AuditLogger) *tool.Registry {
	registry := tool.NewRegistry(logger)

	fileCfg := tool.FileToolConfig{
		Paths:       boundary,
		AuditLogger: auditLogger,
		AuditLog:    cfg.Security.AuditLog,
	}
	registry.Register(tool.NewReadFileTool(fileCfg))
	registry.Register(tool.NewWriteFileTool(fileCfg))
	registry.Register(tool.NewEditFileTool(fileCfg))
	registry.Register(tool.NewListDirTool(fileCfg))
	registry.Register(tool.NewGlobSearchTool(fileCfg))
	registry.Register(tool.NewContentSearchTool(fileCfg))

	registry.Register(tool.NewRunCommandTool(tool.RunCommandConfig{
		Evaluator:      engine,
		Gateway:        gateway.New(auditLogger, cfg.Security.AuditLog, logger),
		WorkingDir:     cfg.General.Workspace,
		TimeoutSeconds: cfg.Tools.Shell.TimeoutSeconds,
		MaxOutputBytes: cfg.Tools.Shell.MaxOutputBytes,
	}))

	registry.Register(tool.NewFetchURLTool(cfg.Tools.Web.FetchMaxBytes))
	registry.Register(tool.NewWebSearchTool())

	return registry
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize config and workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgDir := config.DefaultConfigDir()
			cfgPath := config.DefaultConfigPath()
			if err := os.MkdirAll(cfgDir, 0o755); err != nil {
				return err
			}
			cfg := config.Defaults()
			if err := config.Save(cfgPath, cfg); err != nil {
				return err
			}
			if err := os.MkdirAll(cfg.General.Workspace, 0o755); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath, "workspace", cfg.General.Workspace)
			return nil
		},
	}
}

func checkCmd() *cobra.Command {
	var pathArg string
	cmd := &cobra.Command{
		Use:   "check [command]",
		Short: "Evaluate a command or path without executing anything",
		Long:  "Prints the decision as JSON. Exits 0 when allowed, 1 when denied.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			st, err := buildStack(cfg)
			if err != nil {
				return err
			}
			defer st.close()

			if pathArg != "" {
				resolved, err := st.boundary.Check(pathArg)
				if err != nil {
					fmt.Printf("{\"verdict\": \"deny\", \"reason\": %q}\n", err.Error())
					st.close()
					os.Exit(1)
				}
				fmt.Printf("{\"verdict\": \"allow\", \"resolved\": %q}\n", resolved)
				return nil
			}

			if len(args) == 0 {
				return fmt.Errorf("provide a command to check or --path")
			}
			decision := st.engine.Evaluate(cmd.Context(), args[0])
			data, _ := json.MarshalIndent(decision, "", "  ")
			fmt.Println(string(data))
			if !decision.Allowed() {
				st.close()
				os.Exit(1)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&pathArg, "path", "", "validate a file path against the project root instead of a command")
	return cmd
}

func execCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "exec [command]",
		Short: "Evaluate and execute one command through the full gateway",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			st, err := buildStack(cfg)
			if err != nil {
				return err
			}
			defer st.close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			session := st.sessions.Open(agent.Backend{
				ID:               cfg.Backend.ID,
				DeclaredTools:    cfg.Backend.DeclaredTools,
				ExtendedProtocol: cfg.Backend.ExtendedProtocol,
			})
			defer st.sessions.Close(session.ID)

			result := session.Dispatch(ctx, domain.Action{
				Tool: "run_command",
				Args: map[string]any{"command": args[0]},
			})

			data, _ := json.MarshalIndent(result, "", "  ")
			fmt.Println(string(data))
			if result.State != domain.StateCompleted {
				st.close()
				os.Exit(1)
			}
			return nil
		},
	}
}

func toolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the tool definitions exposed to the configured backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			st, err := buildStack(cfg)
			if err != nil {
				return err
			}
			defer st.close()

			session := st.sessions.Open(agent.Backend{
				ID:               cfg.Backend.ID,
				DeclaredTools:    cfg.Backend.DeclaredTools,
				ExtendedProtocol: cfg.Backend.ExtendedProtocol,
			})
			defer st.sessions.Close(session.ID)

			data, _ := json.MarshalIndent(session.Tools(), "", "  ")
			fmt.Println(string(data))
			return nil
		},
	}
}

func auditCmd() *cobra.Command {
	var sessionID string
	var limit int
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show recent audit records",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if !cfg.Security.AuditLog {
				return fmt.Errorf("audit logging is disabled in the config")
			}
			store, err := audit.NewSQLiteStore(cfg.Security.AuditDBPath, logger)
			if err != nil {
				return fmt.Errorf("audit store: %w", err)
			}
			defer store.Close()

			records, err := store.List(cmd.Context(), sessionID, limit)
			if err != nil {
				return err
			}
			for _, r := range records {
				fmt.Printf("%s  %-10s %-14s %-7s %-24s %s\n",
					r.CreatedAt.Format("2006-01-02 15:04:05"),
					r.Action, r.ToolName, r.Verdict, r.Reason, r.Command)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "filter by session id")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum records to show")
	return cmd
}
