// Package cmd implements the hvsctl CLI commands.
package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/veridian/hvs/internal/config"
	"github.com/veridian/hvs/internal/version"
	"github.com/veridian/hvs/pkg/audit"
	"github.com/veridian/hvs/pkg/clierror"
	"github.com/veridian/hvs/pkg/flavor"
	"github.com/veridian/hvs/pkg/store"
)

var (
	// Global flags
	outputFormat string
	dbPath       string
	configPath   string

	// Shared state initialized by PersistentPreRunE
	cfg      *config.Config
	hvsStore *store.Store
)

var rootCmd = &cobra.Command{
	Use:   "hvsctl",
	Short: "Host verification service CLI",
	Long: `hvsctl manages the host verification service: measurement baselines
(flavors), flavor groups and their match policies, registered hosts,
the verification queue, and signed trust reports.`,
	Version:       version.String(),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip store initialization for commands that never touch it
		switch cmd.Name() {
		case "completion", "help", "version", "keygen":
			return nil
		}

		cfg = config.DefaultConfig()
		if configPath != "" {
			if err := cfg.LoadFile(configPath); err != nil {
				return err
			}
		}
		if err := cfg.LoadFromEnv(); err != nil {
			return err
		}
		if dbPath != "" {
			cfg.DatabasePath = dbPath
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: logLevel(cfg.LogLevel),
		})))

		var err error
		hvsStore, err = store.Open(cfg.DatabasePath)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if hvsStore != nil {
			hvsStore.Close()
		}
	},
}

func logLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

var completionCmd = &cobra.Command{
	Use:                   "completion [bash|zsh|fish]",
	Short:                 "Generate shell completion scripts",
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletion(cmd.OutOrStdout())
		case "zsh":
			return rootCmd.GenZshCompletion(cmd.OutOrStdout())
		case "fish":
			return rootCmd.GenFishCompletion(cmd.OutOrStdout(), true)
		default:
			return fmt.Errorf("unknown shell: %s", args[0])
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "Output format: table, json, yaml")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Database path (default: ~/.local/share/hvs/hvs.db)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (YAML)")
	rootCmd.AddCommand(completionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// OutputFormat returns the format selected with --output.
func OutputFormat() string {
	return outputFormat
}

// lookupHost resolves a host by name, mapping a missing row to a
// structured CLI error.
func lookupHost(name string) (*store.Host, error) {
	h, err := hvsStore.GetHostByName(name)
	if errors.Is(err, store.ErrNotFound) {
		return nil, clierror.HostNotFound(name)
	}
	return h, err
}

// lookupGroup resolves a flavor group by name.
func lookupGroup(name string) (*flavor.Group, error) {
	g, err := hvsStore.GetGroupByName(name)
	if errors.Is(err, store.ErrNotFound) {
		return nil, clierror.GroupNotFound(name)
	}
	return g, err
}

// auditRecorder builds the audit fan-out from the active configuration. The
// structured-log backend is always present; syslog is added when a socket is
// configured. The returned closer flushes the syslog connection and is safe
// to call when syslog is disabled.
func auditRecorder() (*audit.Recorder, func()) {
	backends := []audit.EventEmitter{&audit.LogEmitter{Logger: slog.Default()}}
	closer := func() {}

	if cfg.SyslogSocket != "" {
		sys, err := audit.NewSyslogEmitter(audit.SyslogConfig{SocketPath: cfg.SyslogSocket})
		if err != nil {
			slog.Warn("syslog audit backend unavailable", "socket", cfg.SyslogSocket, "error", err)
		} else {
			backends = append(backends, sys)
			closer = func() { sys.Close() }
		}
	}
	return audit.NewRecorder(slog.Default(), backends...), closer
}

// formatOutput handles output formatting based on the --output flag.
func formatOutput(data interface{}) error {
	switch outputFormat {
	case "json":
		return outputJSON(data)
	case "yaml":
		return outputYAML(data)
	default:
		// Table format is handled by each command
		return nil
	}
}

func outputJSON(data interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func outputYAML(data interface{}) error {
	out, err := yaml.Marshal(data)
	if err != nil {
		return err
	}
	fmt.Print(string(out))
	return nil
}
