package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/bamsammich/bucketctl/internal/cache"
	"github.com/bamsammich/bucketctl/internal/control"
	"github.com/bamsammich/bucketctl/internal/event"
	"github.com/bamsammich/bucketctl/internal/ratelimit"
	"github.com/bamsammich/bucketctl/internal/remote"
	"github.com/bamsammich/bucketctl/internal/stats"
	"github.com/bamsammich/bucketctl/internal/ui"
)

var errNoServer = errors.New("no server configured: use --host, the config file, or user@host:/path")

// app is one connected session plus its presenter.
type app struct {
	session   *control.Session
	presenter ui.Presenter
	events    chan event.Event
	runDone   chan error
	presDone  chan struct{}
	cancel    context.CancelFunc
	quiet     bool
}

// server merges the persistent flags with a server named in loc.
func (c *cli) server(loc remote.Location) control.Server {
	s := control.Server{Host: c.host, User: c.user, Pass: c.pass, Port: c.port}
	if loc.HasServer() {
		s.Host = loc.Host
		if loc.User != "" {
			s.User = loc.User
		}
		if loc.Port != 0 {
			s.Port = loc.Port
		}
	}
	return s
}

// connect starts a session and logs in to the server for loc.
func (c *cli) connect(ctx context.Context, loc remote.Location) (*app, error) {
	server := c.server(loc)
	if server.Host == "" {
		return nil, errNoServer
	}
	if server.Pass == "" && server.User != "" && ui.IsTTY(os.Stdin.Fd()) {
		pass, err := ui.ReadPassword(fmt.Sprintf("password for %s@%s: ", server.User, server.Host))
		if err != nil {
			return nil, fmt.Errorf("read password: %w", err)
		}
		server.Pass = pass
	}

	collector := stats.NewCollector()
	events := make(chan event.Event, 256)
	cacheCfg := cache.DefaultConfig()
	cacheCfg.TTL = c.cacheTTL

	sess := control.NewSession(control.Options{
		Cache:      cache.New(cacheCfg),
		Limiter:    ratelimit.New(c.bwIn.bytes, c.bwOut.bytes),
		Stats:      collector,
		Events:     events,
		Logger:     slog.Default(),
		SessionID:  uuid.NewString(),
		Executable: c.backend,
		Args:       c.cfg.Backend.Args,
	})

	runCtx, cancel := context.WithCancel(context.Background())
	a := &app{
		session: sess,
		presenter: ui.NewPresenter(ui.Config{
			Writer:    os.Stdout,
			ErrWriter: os.Stderr,
			Stats:     collector,
			IsTTY:     ui.IsTTY(os.Stderr.Fd()),
			Quiet:     c.quiet,
			Verbose:   c.verbose,
		}),
		events:   events,
		runDone:  make(chan error, 1),
		presDone: make(chan struct{}),
		cancel:   cancel,
		quiet:    c.quiet,
	}
	go func() { a.runDone <- sess.Run(runCtx) }()

	presenterEvents := (<-chan event.Event)(events)
	if c.logFile != "" {
		presenterEvents = teeEvents(events)
	}
	go func() {
		defer close(a.presDone)
		if err := a.presenter.Run(presenterEvents); err != nil {
			slog.Warn("presenter failed", "error", err)
		}
	}()

	slog.Debug("connecting", "session", sess.ID(), "server", server.Format(), "backend", c.backend)
	if err := sess.Connect(ctx, server); err != nil {
		a.close()
		return nil, fmt.Errorf("connect %s: %w", server.Format(), err)
	}
	return a, nil
}

// teeEvents writes a structured record for every event before forwarding
// it to the presenter.
func teeEvents(events <-chan event.Event) <-chan event.Event {
	teed := make(chan event.Event, 256)
	go func() {
		defer close(teed)
		for ev := range events {
			attrs := []slog.Attr{
				slog.String("type", ev.Type.String()),
				slog.String("session", ev.Session),
				slog.String("path", ev.Path),
				slog.Int64("size", ev.Size),
			}
			if ev.Local != "" {
				attrs = append(attrs, slog.String("local", ev.Local))
			}
			if ev.Checksum != "" {
				attrs = append(attrs, slog.String("blake3", ev.Checksum))
			}
			if ev.Error != nil {
				attrs = append(attrs, slog.String("error", ev.Error.Error()))
			}
			slog.LogAttrs(context.Background(), slog.LevelDebug, "bucketctl.event", attrs...)
			teed <- ev
		}
	}()
	return teed
}

// close stops the backend and flushes the presenter.
func (a *app) close() {
	a.cancel()
	<-a.runDone
	close(a.events)
	<-a.presDone
	if !a.quiet {
		if summary := a.presenter.Summary(); summary != "" {
			fmt.Fprintln(os.Stderr, summary)
		}
	}
}

// withSession runs fn against a connected session for loc.
func (c *cli) withSession(loc remote.Location, fn func(ctx context.Context, a *app) error) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := c.connect(ctx, loc)
	if err != nil {
		return err
	}
	defer a.close()
	return fn(ctx, a)
}

func newLsCmd(c *cli) *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "ls [path]",
		Short: "List buckets, or the files in a bucket",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			loc := remote.Location{Path: remote.Root()}
			if len(args) == 1 {
				loc = remote.ParseLocation(args[0])
			}
			var flags control.ListFlags
			if refresh {
				flags |= control.ListRefresh
			}
			return c.withSession(loc, func(ctx context.Context, a *app) error {
				listing, err := a.session.List(ctx, loc.Path, "", flags)
				if err != nil {
					return fmt.Errorf("list %s: %w", loc.Path, err)
				}
				return ui.RenderListing(os.Stdout, listing)
			})
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "ignore cached listings")
	return cmd
}

func newGetCmd(c *cli) *cobra.Command {
	var settings control.TransferSettings
	cmd := &cobra.Command{
		Use:   "get <remote> <local>",
		Short: "Download a file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			loc := remote.ParseLocation(args[0])
			dir, name, err := splitRemoteFile(loc.Path, "")
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("checksum") && c.cfg.Defaults.Checksum != nil {
				settings.Checksum = *c.cfg.Defaults.Checksum
			}
			local := localTarget(args[1], name)

			return c.withSession(loc, func(ctx context.Context, a *app) error {
				if _, err := a.session.Transfer(ctx, local, dir, name, true, settings); err != nil {
					return fmt.Errorf("get %s: %w", loc.Path, err)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&settings.Checksum, "checksum", false, "compute a BLAKE3 digest of the downloaded file")
	cmd.Flags().BoolVar(&settings.Resume, "resume", false, "continue a partial download")
	return cmd
}

func newPutCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "put <local> <remote>",
		Short: "Upload a file",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			local := args[0]
			loc := remote.ParseLocation(args[1])
			dir, name, err := splitRemoteFile(loc.Path, filepath.Base(local))
			if err != nil {
				return err
			}

			return c.withSession(loc, func(ctx context.Context, a *app) error {
				if _, err := a.session.Transfer(ctx, local, dir, name, false, control.TransferSettings{}); err != nil {
					return fmt.Errorf("put %s: %w", dir.FormatFilename(name), err)
				}
				return nil
			})
		},
	}
}

func newMkdirCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "mkdir <path>",
		Short: "Create a bucket",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			loc := remote.ParseLocation(args[0])
			return c.withSession(loc, func(ctx context.Context, a *app) error {
				if err := a.session.Mkdir(ctx, loc.Path); err != nil {
					return fmt.Errorf("mkdir %s: %w", loc.Path, err)
				}
				return nil
			})
		},
	}
}

func newRmdirCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "rmdir <path>",
		Short: "Remove a bucket",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			loc := remote.ParseLocation(args[0])
			return c.withSession(loc, func(ctx context.Context, a *app) error {
				if err := a.session.RemoveDir(ctx, loc.Path, ""); err != nil {
					return fmt.Errorf("rmdir %s: %w", loc.Path, err)
				}
				return nil
			})
		},
	}
}

func newRmCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <dir> <name>...",
		Short: "Delete files from a bucket",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			loc := remote.ParseLocation(args[0])
			return c.withSession(loc, func(ctx context.Context, a *app) error {
				if err := a.session.Delete(ctx, loc.Path, args[1:]); err != nil {
					return fmt.Errorf("rm %s: %w", loc.Path, err)
				}
				return nil
			})
		},
	}
}

func newResolveCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <path> [file]",
		Short: "Print the backend identifiers of a bucket or file",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(_ *cobra.Command, args []string) error {
			loc := remote.ParseLocation(args[0])
			var file string
			if len(args) == 2 {
				file = args[1]
			}
			return c.withSession(loc, func(ctx context.Context, a *app) error {
				id, err := a.session.Resolve(ctx, loc.Path, file, true, file != "", false)
				if err != nil {
					return fmt.Errorf("resolve %s: %w", loc.Path, err)
				}
				out := "bucket=" + id.BucketID
				if id.HasFileID() {
					out += " file=" + id.FileID
				}
				fmt.Fprintln(os.Stdout, out)
				return nil
			})
		},
	}
}

// splitRemoteFile splits /bucket/file into its directory and name. A bare
// /bucket is accepted when defaultName is set.
func splitRemoteFile(p remote.Path, defaultName string) (remote.Path, string, error) {
	switch {
	case p.SegmentCount() == 2:
		return p.Parent(), p.LastSegment(), nil
	case p.SegmentCount() == 1 && defaultName != "":
		return p, defaultName, nil
	}
	return remote.Path{}, "", fmt.Errorf("invalid remote file %q: expected /bucket/file", p.String())
}

// localTarget places name inside local when local names a directory.
func localTarget(local, name string) string {
	if strings.HasSuffix(local, string(filepath.Separator)) {
		return filepath.Join(local, name)
	}
	if info, err := os.Stat(local); err == nil && info.IsDir() {
		return filepath.Join(local, name)
	}
	return local
}
