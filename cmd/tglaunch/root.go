package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"tglaunch/internal/config"
)

// options collects flag values. Only flags the user set override the
// file and environment layers.
type options struct {
	configPath  string
	noAutoStart bool
	port        int
	serverURL   string
	logLevel    string
	logFormat   string
	metrics     bool
}

func newRootCommand(getenv func(string) string) *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "tglaunch",
		Short:         "Supervise the local translation backend",
		Long:          "tglaunch owns the translation backend process and exposes a loopback control API (GET /status, POST /start, POST /stop).",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts, getenv)
		},
	}

	bindGlobalFlags(root, opts)
	addServeFlags(root, opts)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the supervisor and its control API (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts, getenv)
		},
	}
	addServeFlags(serveCmd, opts)

	root.AddCommand(serveCmd)
	root.AddCommand(newControlCommands(opts, getenv)...)
	root.AddCommand(newTranslateCommand(opts, getenv))
	return root
}

// bindGlobalFlags registers the flags shared by every subcommand.
func bindGlobalFlags(cmd *cobra.Command, opts *options) {
	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "Config file (.yaml/.yml/.json/.toml); defaults to $"+config.EnvConfig)
	pf.IntVar(&opts.port, "port", 0, "Control API port (overrides $"+config.EnvControlPort+")")
	pf.StringVar(&opts.serverURL, "server-url", "", "Backend base URL (overrides $"+config.EnvServerURL+")")
	pf.StringVar(&opts.logLevel, "log-level", "", "Log level: debug|info|warn|error (overrides $"+config.EnvLogLevel+")")
	pf.StringVar(&opts.logFormat, "log-format", "", "Log format: console|json")
}

func addServeFlags(cmd *cobra.Command, opts *options) {
	cmd.Flags().BoolVar(&opts.noAutoStart, "no-auto-start", false, "Do not start the backend on launch (same as "+config.EnvAutoStart+"=0)")
	cmd.Flags().BoolVar(&opts.metrics, "metrics", false, "Expose GET /metrics on the control API")
}

// loadConfig layers defaults, the config file, TG_* variables and flags,
// then resolves and validates the result.
func loadConfig(cmd *cobra.Command, opts *options, getenv func(string) string) (config.Config, error) {
	path := opts.configPath
	if path == "" {
		path = strings.TrimSpace(getenv(config.EnvConfig))
	}
	cfg := config.Defaults()
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return cfg, fmt.Errorf("load config: %w", err)
		}
	}
	if err := cfg.ApplyEnv(getenv); err != nil {
		return cfg, err
	}

	fs := cmd.Flags()
	if fs.Changed("port") {
		cfg.ControlPort = opts.port
	}
	if fs.Changed("server-url") {
		cfg.ServerURL = opts.serverURL
	}
	if fs.Changed("log-level") {
		cfg.LogLevel = opts.logLevel
	}
	if fs.Changed("log-format") {
		cfg.LogFormat = opts.logFormat
	}
	if f := fs.Lookup("no-auto-start"); f != nil && f.Changed && opts.noAutoStart {
		cfg.AutoStart = false
	}
	if f := fs.Lookup("metrics"); f != nil && f.Changed {
		cfg.MetricsEnabled = opts.metrics
	}

	if err := cfg.Resolve(); err != nil {
		return cfg, fmt.Errorf("resolve config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the process logger. Console output is for terminals,
// json for log collectors.
func newLogger(w io.Writer, level, format string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.Nop(), fmt.Errorf("unknown log level %q", level)
	}
	if w == nil {
		w = os.Stderr
	}
	switch strings.ToLower(format) {
	case "", "console":
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	case "json":
	default:
		return zerolog.Nop(), fmt.Errorf("unknown log format %q", format)
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), nil
}
