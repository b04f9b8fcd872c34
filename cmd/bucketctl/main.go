package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/bamsammich/bucketctl/internal/cache"
	"github.com/bamsammich/bucketctl/internal/config"
	"github.com/bamsammich/bucketctl/internal/control"
	"github.com/bamsammich/bucketctl/internal/reply"
	"github.com/bamsammich/bucketctl/internal/ui"
)

var version = "dev"

const (
	passEnv        = "BUCKETCTL_PASS"
	defaultBackend = "bucketd"
)

func main() {
	os.Exit(run())
}

// sizeFlag is a pflag.Value accepting human-readable byte sizes.
type sizeFlag struct {
	raw   string
	bytes int64
}

var _ pflag.Value = (*sizeFlag)(nil)

func (f *sizeFlag) String() string { return f.raw }
func (*sizeFlag) Type() string     { return "size" }

func (f *sizeFlag) Set(val string) error {
	n, err := config.ParseSize(val)
	if err != nil {
		return err
	}
	f.raw, f.bytes = val, n
	return nil
}

// cli holds the persistent flags and the state shared by subcommands.
type cli struct {
	cfg         config.Config
	logCloser   func()
	host        string
	user        string
	pass        string
	backend     string
	logFile     string
	configFile  string
	bwIn        sizeFlag
	bwOut       sizeFlag
	port        int
	cacheTTL    time.Duration
	verbose     bool
	quiet       bool
	showVersion bool
}

func run() int {
	c := &cli{}
	rootCmd := newRootCmd(c)
	err := rootCmd.Execute()
	if c.logCloser != nil {
		c.logCloser()
	}
	return exitCode(err)
}

func newRootCmd(c *cli) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "bucketctl",
		Short: "Drive a bucket storage backend from the command line",
		Long: `bucketctl starts the storage backend helper, logs in, and runs one
command against the bucket store: list, transfer, create or remove.

Paths have the form /bucket/file. A remote argument may also name the
server: user@host:/bucket/file or bucketctl://user@host:port/bucket/file.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		Args:              cobra.NoArgs,
		PersistentPreRunE: c.setup,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if c.showVersion {
				fmt.Fprintf(os.Stdout, "bucketctl %s\n", version)
				return nil
			}
			return cmd.Help()
		},
	}

	rootCmd.Flags().BoolVar(&c.showVersion, "version", false, "print version and exit")

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&c.host, "host", "", "server host")
	pf.IntVar(&c.port, "port", 0, "server port (default: backend default)")
	pf.StringVarP(&c.user, "user", "u", "", "login user")
	pf.StringVar(&c.pass, "pass", "", "login password (default: $"+passEnv+" or prompt)")
	pf.StringVar(&c.backend, "backend", defaultBackend, "backend executable")
	pf.BoolVarP(&c.verbose, "verbose", "v", false, "verbose output")
	pf.BoolVarP(&c.quiet, "quiet", "q", false, "suppress all output except errors")
	pf.StringVar(&c.logFile, "log", "", "write structured JSON log to FILE")
	pf.StringVar(&c.configFile, "config", "", "config file (default: $XDG_CONFIG_HOME/bucketctl/config.toml)")
	pf.Var(&c.bwIn, "bwlimit-in", "download bandwidth limit (e.g. 10M, 512K)")
	pf.Var(&c.bwOut, "bwlimit-out", "upload bandwidth limit (e.g. 10M, 512K)")
	pf.DurationVar(&c.cacheTTL, "cache-ttl", cache.DefaultConfig().TTL, "how long directory listings stay fresh")

	rootCmd.AddCommand(
		newLsCmd(c),
		newGetCmd(c),
		newPutCmd(c),
		newMkdirCmd(c),
		newRmdirCmd(c),
		newRmCmd(c),
		newResolveCmd(c),
		newDocsCmd(),
	)
	return rootCmd
}

// setup loads the config file, applies its defaults and configures logging.
func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	var err error
	if c.configFile != "" {
		c.cfg, err = config.LoadFile(c.configFile)
	} else {
		c.cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := applyConfigDefaults(cmd, c.cfg, c); err != nil {
		return err
	}
	ui.ApplyTheme(c.cfg.Theme)

	if c.pass == "" {
		c.pass = os.Getenv(passEnv)
	}

	logLevel := slog.LevelWarn
	if c.verbose {
		logLevel = slog.LevelDebug
	} else if !c.quiet {
		logLevel = slog.LevelInfo
	}
	textHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	var logHandler slog.Handler = textHandler
	if c.logFile != "" {
		lf, lfErr := os.Create(c.logFile)
		if lfErr != nil {
			return fmt.Errorf("open log file: %w", lfErr)
		}
		c.logCloser = func() { lf.Close() }
		jsonHandler := slog.NewJSONHandler(lf, &slog.HandlerOptions{Level: slog.LevelDebug})
		logHandler = ui.NewMultiHandler(textHandler, jsonHandler)
	}
	slog.SetDefault(slog.New(logHandler))
	return nil
}

// applyConfigDefaults applies config file defaults for flags not explicitly set on the CLI.
func applyConfigDefaults(cmd *cobra.Command, cfg config.Config, c *cli) error {
	flags := cmd.Flags()
	if !flags.Changed("backend") && cfg.Backend.Executable != nil {
		c.backend = *cfg.Backend.Executable
	}
	if !flags.Changed("host") && cfg.Server.Host != nil {
		c.host = *cfg.Server.Host
	}
	if !flags.Changed("port") && cfg.Server.Port != nil {
		c.port = *cfg.Server.Port
	}
	if !flags.Changed("user") && cfg.Server.User != nil {
		c.user = *cfg.Server.User
	}
	if !flags.Changed("bwlimit-in") && cfg.Defaults.BWLimitIn != nil {
		if err := c.bwIn.Set(*cfg.Defaults.BWLimitIn); err != nil {
			return fmt.Errorf("config bwlimit_in: %w", err)
		}
	}
	if !flags.Changed("bwlimit-out") && cfg.Defaults.BWLimitOut != nil {
		if err := c.bwOut.Set(*cfg.Defaults.BWLimitOut); err != nil {
			return fmt.Errorf("config bwlimit_out: %w", err)
		}
	}
	if !flags.Changed("cache-ttl") {
		ttl, ok, err := cfg.CacheTTL()
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		if ok {
			c.cacheTTL = ttl
		}
	}
	return nil
}

// signalContext returns a context canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// exitCode maps a command error to the process exit status: 1 when the
// backend reported a failure, 130 when canceled, 2 for usage and local
// errors.
func exitCode(err error) int {
	if err == nil {
		return 0
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)

	var codeErr *reply.CodeError
	if errors.As(err, &codeErr) {
		if codeErr.Code.Canceled {
			return 130
		}
		return 1
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, control.ErrSessionClosed) {
		return 130
	}
	return 2
}
