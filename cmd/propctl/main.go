package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/danmuck/propctl/internal/config"
	"github.com/danmuck/propctl/internal/logging"
	"github.com/danmuck/propctl/properties"
	flag "github.com/spf13/pflag"
)

func main() {
	logging.ConfigureRuntime()
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) < 1 {
		printUsage()
		return fmt.Errorf("subcommand required")
	}
	switch args[0] {
	case "get":
		return runGet(args[1:])
	case "set":
		return runSet(args[1:])
	case "list":
		return runList(args[1:])
	case "-h", "--help", "help":
		printUsage()
		return nil
	default:
		printUsage()
		return fmt.Errorf("unknown subcommand: %q", args[0])
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage: propctl <subcommand> [flags]

Subcommands:
  get    Resolve one property (service, then static sources, then default)
  set    Store one property through the service
  list   Stream every property the service reports

Run 'propctl <subcommand> --help' for subcommand flags.
`)
}

// clientFlags registers the flags every subcommand shares.
func clientFlags(fs *flag.FlagSet) (cfgPath, socket *string) {
	cfgPath = fs.String("config", "", "TOML config file overriding the stock paths")
	socket = fs.String("socket", "", "property service socket path")
	return cfgPath, socket
}

// loadConfig resolves the effective config: stock defaults, then the
// config file, then the --socket override.
func loadConfig(cfgPath, socket string) (config.Config, error) {
	cfg := config.Default()
	if cfgPath != "" {
		loaded, err := config.LoadClientConfig(cfgPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}
	if socket != "" {
		cfg.SocketPath = socket
	}
	return cfg, nil
}

func runGet(args []string) error {
	fs := flag.NewFlagSet("get", flag.ContinueOnError)
	cfgPath, socket := clientFlags(fs)
	def := fs.String("default", "", "value returned when the key resolves nowhere")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: propctl get [flags] <key>")
	}
	cfg, err := loadConfig(*cfgPath, *socket)
	if err != nil {
		return err
	}
	value, err := properties.NewClient(cfg).Get(fs.Arg(0), *def)
	if err != nil {
		return err
	}
	fmt.Println(value)
	return nil
}

func runSet(args []string) error {
	fs := flag.NewFlagSet("set", flag.ContinueOnError)
	cfgPath, socket := clientFlags(fs)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if fs.NArg() != 2 {
		return fmt.Errorf("usage: propctl set [flags] <key> <value>")
	}
	cfg, err := loadConfig(*cfgPath, *socket)
	if err != nil {
		return err
	}
	return properties.NewClient(cfg).Set(fs.Arg(0), fs.Arg(1))
}

func runList(args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	cfgPath, socket := clientFlags(fs)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if fs.NArg() != 0 {
		return fmt.Errorf("usage: propctl list [flags]")
	}
	cfg, err := loadConfig(*cfgPath, *socket)
	if err != nil {
		return err
	}
	return properties.NewClient(cfg).List(func(key, value string) {
		fmt.Printf("%s=%s\n", key, value)
	})
}
