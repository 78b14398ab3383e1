package config

import (
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"tglaunch/internal/common/fsutil"
)

// Environment variables read by ApplyEnv.
const (
	EnvControlPort = "TG_CONTROL_PORT"
	EnvServerURL   = "TG_SERVER_URL"
	EnvAutoStart   = "TG_AUTO_START"
	EnvLogLevel    = "TG_LOG_LEVEL"
	EnvConfig      = "TG_CONFIG"
)

// Duration is a time.Duration written as "8s" or "1500ms" in config files.
type Duration time.Duration

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(b), err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) { return []byte(time.Duration(d).String()), nil }

// CORSConfig enables CORS on the control API for browser-extension clients.
type CORSConfig struct {
	Enabled        bool     `json:"enabled" yaml:"enabled" toml:"enabled"`
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins" toml:"allowed_origins"`
}

// Config holds runtime parameters for the supervisor.
type Config struct {
	ControlHost string `json:"control_host" yaml:"control_host" toml:"control_host"`
	ControlPort int    `json:"control_port" yaml:"control_port" toml:"control_port"`
	ServerURL   string `json:"server_url" yaml:"server_url" toml:"server_url"`
	AutoStart   bool   `json:"auto_start" yaml:"auto_start" toml:"auto_start"`

	// ServerDir holds the backend entrypoint, its requirements and venv.
	ServerDir    string `json:"server_dir" yaml:"server_dir" toml:"server_dir"`
	LogFile      string `json:"log_file" yaml:"log_file" toml:"log_file"`
	VenvDir      string `json:"venv_dir" yaml:"venv_dir" toml:"venv_dir"`
	Entrypoint   string `json:"entrypoint" yaml:"entrypoint" toml:"entrypoint"`
	Requirements string `json:"requirements" yaml:"requirements" toml:"requirements"`
	// Python lists interpreter names used to create the venv.
	Python []string `json:"python" yaml:"python" toml:"python"`
	// BackendCommand, when set, is run as-is and the venv step is skipped.
	BackendCommand []string `json:"backend_command" yaml:"backend_command" toml:"backend_command"`

	GracePeriod  Duration `json:"grace_period" yaml:"grace_period" toml:"grace_period"`
	ProbeTimeout Duration `json:"probe_timeout" yaml:"probe_timeout" toml:"probe_timeout"`
	ModeMarker   string   `json:"mode_marker" yaml:"mode_marker" toml:"mode_marker"`
	LogTailLines int      `json:"log_tail_lines" yaml:"log_tail_lines" toml:"log_tail_lines"`

	LogLevel       string     `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat      string     `json:"log_format" yaml:"log_format" toml:"log_format"`
	MetricsEnabled bool       `json:"metrics_enabled" yaml:"metrics_enabled" toml:"metrics_enabled"`
	CORS           CORSConfig `json:"cors" yaml:"cors" toml:"cors"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		ControlHost:  "127.0.0.1",
		ControlPort:  18181,
		ServerURL:    "http://127.0.0.1:8080",
		AutoStart:    true,
		ServerDir:    "server",
		Entrypoint:   "main.py",
		Requirements: "requirements.txt",
		Python:       []string{"python3", "python"},
		GracePeriod:  Duration(8 * time.Second),
		ProbeTimeout: Duration(1500 * time.Millisecond),
		ModeMarker:   "推論模式",
		LogTailLines: 200,
		LogLevel:     "info",
		LogFormat:    "console",
	}
}

// Load reads a configuration file over Defaults based on its extension.
// Supports: .yaml/.yml, .json, .toml. Keys absent from the file keep
// their default value.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

// ApplyEnv overlays TG_* environment variables read through getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := strings.TrimSpace(getenv(EnvControlPort)); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvControlPort, err)
		}
		c.ControlPort = p
	}
	if v := strings.TrimSpace(getenv(EnvServerURL)); v != "" {
		c.ServerURL = v
	}
	if v := strings.TrimSpace(getenv(EnvAutoStart)); v != "" {
		c.AutoStart = v != "0"
	}
	if v := strings.TrimSpace(getenv(EnvLogLevel)); v != "" {
		c.LogLevel = v
	}
	return nil
}

// Resolve fills paths derived from ServerDir and makes them absolute.
func (c *Config) Resolve() error {
	dir, err := fsutil.ExpandHome(c.ServerDir)
	if err != nil {
		return err
	}
	if dir, err = filepath.Abs(dir); err != nil {
		return err
	}
	c.ServerDir = dir
	if c.LogFile == "" {
		c.LogFile = filepath.Join("logs", "server.log")
	}
	if c.VenvDir == "" {
		c.VenvDir = ".venv"
	}
	for _, p := range []*string{&c.LogFile, &c.VenvDir} {
		v, err := fsutil.ExpandHome(*p)
		if err != nil {
			return err
		}
		if !filepath.IsAbs(v) {
			v = filepath.Join(c.ServerDir, v)
		}
		*p = v
	}
	c.ServerURL = strings.TrimRight(c.ServerURL, "/")
	return nil
}

// Validate rejects settings the supervisor cannot run with.
func (c Config) Validate() error {
	if !IsLoopback(c.ControlHost) {
		return fmt.Errorf("control_host %q is not a loopback address", c.ControlHost)
	}
	if c.ControlPort <= 0 || c.ControlPort > 65535 {
		return fmt.Errorf("control_port %d out of range", c.ControlPort)
	}
	u, err := url.Parse(c.ServerURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("server_url %q must be an absolute http(s) URL", c.ServerURL)
	}
	if c.GracePeriod <= 0 {
		return fmt.Errorf("grace_period must be positive")
	}
	if c.ProbeTimeout <= 0 {
		return fmt.Errorf("probe_timeout must be positive")
	}
	if len(c.BackendCommand) == 0 && strings.TrimSpace(c.Entrypoint) == "" {
		return fmt.Errorf("either backend_command or entrypoint is required")
	}
	return nil
}

// ControlAddr is the listen address of the control API.
func (c Config) ControlAddr() string {
	return net.JoinHostPort(c.ControlHost, strconv.Itoa(c.ControlPort))
}

// BackendPort returns the port of ServerURL, defaulting by scheme.
func (c Config) BackendPort() string {
	u, err := url.Parse(c.ServerURL)
	if err != nil {
		return ""
	}
	if p := u.Port(); p != "" {
		return p
	}
	if u.Scheme == "https" {
		return "443"
	}
	return "80"
}

// IsLoopback reports whether host names the local machine only.
func IsLoopback(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
