package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Well-known property service endpoints. The socket and both static
// sources are fixed paths on a stock system; the config exists so the
// transport and resolver share one source of truth and so tests can
// point everything at fixtures.
const (
	DefaultSocketPath     = "/dev/socket/property_service"
	DefaultBuildPropsPath = "/system/build.prop"
	DefaultCmdlinePath    = "/proc/cmdline"
)

// Config locates the property service and its static fallback sources.
type Config struct {
	SocketPath     string `toml:"socket_path"`
	BuildPropsPath string `toml:"build_props_path"`
	CmdlinePath    string `toml:"cmdline_path"`
}

// Default returns the stock-system paths.
func Default() Config {
	return Config{
		SocketPath:     DefaultSocketPath,
		BuildPropsPath: DefaultBuildPropsPath,
		CmdlinePath:    DefaultCmdlinePath,
	}
}

// LoadClientConfig reads a TOML config file, filling stock defaults
// for absent keys.
func LoadClientConfig(path string) (Config, error) {
	var cfg Config
	if err := loadToml(path, &cfg); err != nil {
		return Config{}, err
	}
	cfg = withDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func withDefaults(cfg Config) Config {
	if cfg.SocketPath == "" {
		cfg.SocketPath = DefaultSocketPath
	}
	if cfg.BuildPropsPath == "" {
		cfg.BuildPropsPath = DefaultBuildPropsPath
	}
	if cfg.CmdlinePath == "" {
		cfg.CmdlinePath = DefaultCmdlinePath
	}
	return cfg
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

// Validate rejects configs with blanked-out paths.
func Validate(cfg Config) error {
	if strings.TrimSpace(cfg.SocketPath) == "" {
		return fmt.Errorf("config missing socket_path")
	}
	if strings.TrimSpace(cfg.BuildPropsPath) == "" {
		return fmt.Errorf("config missing build_props_path")
	}
	if strings.TrimSpace(cfg.CmdlinePath) == "" {
		return fmt.Errorf("config missing cmdline_path")
	}
	return nil
}
