package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/five82/dashsync/internal/actions"
	"github.com/five82/dashsync/internal/cache"
	"github.com/five82/dashsync/internal/config"
	"github.com/five82/dashsync/internal/credential"
	"github.com/five82/dashsync/internal/dashboard"
	"github.com/five82/dashsync/internal/logging"
	"github.com/five82/dashsync/internal/poll"
	"github.com/five82/dashsync/internal/prefs"
	"github.com/five82/dashsync/internal/push"
	"github.com/five82/dashsync/internal/reconnect"
	"github.com/five82/dashsync/internal/state"
	"github.com/five82/dashsync/internal/status"
	"github.com/five82/dashsync/internal/synchronizer"
	"github.com/five82/dashsync/internal/telemetry"
	"github.com/five82/dashsync/internal/ui"
)

// TokenEnv overrides the token file when set.
const TokenEnv = "DASHSYNC_TOKEN"

// Options configure the dashsync application.
type Options struct {
	ConfigPath string
	PrefsPath  string    // empty uses default ~/.config/dashsync/prefs.toml
	PollEvery  int       // seconds; zero uses the configured interval
	LogOutput  io.Writer // used when the config has no log file; defaults to stderr
}

// Runtime holds the wired components for one process.
type Runtime struct {
	Config      config.Config
	Logger      *slog.Logger
	Client      *dashboard.Client
	Poller      *poll.Poller
	Store       *state.Store
	Sync        *synchronizer.Synchronizer
	Actions     *actions.Runner
	Credentials credential.Provider

	tokenFile *credential.File
	cache     *cache.File
	metrics   *telemetry.Provider
	logCloser io.Closer
}

// Build loads configuration and wires every component. The synchronizer is
// created stopped; call Serve to run it.
func Build(opts Options) (*Runtime, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if opts.PollEvery > 0 {
		cfg.PollInterval = time.Duration(opts.PollEvery) * time.Second
	}

	logger, logCloser, err := logging.New(logging.Options{
		File:     cfg.Log.File,
		Level:    cfg.Log.Level,
		Fallback: opts.LogOutput,
	})
	if err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}

	rt := &Runtime{Config: cfg, Logger: logger, logCloser: logCloser}
	if err := rt.wire(); err != nil {
		_ = rt.Close()
		return nil, err
	}
	return rt, nil
}

func (rt *Runtime) wire() error {
	cfg := rt.Config

	if token := strings.TrimSpace(os.Getenv(TokenEnv)); token != "" {
		rt.Credentials = credential.NewStatic(token)
	} else {
		f, err := credential.NewFile(cfg.TokenFile, rt.Logger)
		if err != nil {
			return fmt.Errorf("load credentials: %w", err)
		}
		rt.tokenFile, rt.Credentials = f, f
	}

	client, err := dashboard.NewClient(cfg.BaseURL, rt.Credentials,
		dashboard.WithAPIPrefix(cfg.APIPrefix),
		dashboard.WithTimeout(cfg.RequestTimeout))
	if err != nil {
		return fmt.Errorf("init dashboard client: %w", err)
	}
	rt.Client = client
	rt.Poller = poll.New(client, rt.Logger)
	rt.Store = state.NewStore(status.PolicyFor(cfg.HeavyFields, cfg.NullableFields))

	var syncMetrics *telemetry.SyncMetrics
	if cfg.MetricsAddr != "" {
		provider, err := telemetry.NewPrometheusProvider()
		if err != nil {
			return fmt.Errorf("init metrics: %w", err)
		}
		rt.metrics = provider
		if syncMetrics, err = telemetry.NewSyncMetrics(provider); err != nil {
			return fmt.Errorf("init metrics: %w", err)
		}
	}

	rt.cache = cache.New(cfg.CachePath)
	rt.seed()

	base := client.BaseURL()
	sync, err := synchronizer.New(synchronizer.Options{
		Fetcher:     rt.Poller,
		Store:       rt.Store,
		Credentials: rt.Credentials,
		PushURL: func(token string) string {
			return push.URL(base, cfg.WSPath, token)
		},
		Backoff:          reconnect.NewLinear(cfg.Reconnect.BaseDelay, cfg.Reconnect.MaxDelay, cfg.Reconnect.MaxAttempts),
		Interval:         cfg.PollInterval,
		FullEvery:        cfg.FullEvery,
		InitialFullDelay: cfg.InitialFullDelay,
		Persist:          rt.persist,
		Metrics:          syncMetrics,
		Logger:           rt.Logger,
	})
	if err != nil {
		return fmt.Errorf("init synchronizer: %w", err)
	}
	rt.Sync = sync

	rt.Actions = &actions.Runner{
		API:         client,
		Sync:        sync,
		Store:       rt.Store,
		Credentials: rt.Credentials,
		Logger:      rt.Logger,
	}
	return nil
}

// seed fills the store from the cold-start cache, if any.
func (rt *Runtime) seed() {
	entry, ok, err := rt.cache.Load()
	if err != nil {
		rt.Logger.Warn("ignoring unreadable cache", "path", rt.cache.Path(), "error", err)
		return
	}
	if ok && rt.Store.Seed(entry.Status, entry.SavedAt) {
		rt.Logger.Info("seeded from cache", "path", rt.cache.Path(), "saved_at", entry.SavedAt)
	}
}

func (rt *Runtime) persist(snap status.Snapshot) {
	err := rt.cache.Save(snap, time.Now())
	switch {
	case err == nil:
	case errors.Is(err, cache.ErrLocked):
		rt.Logger.Debug("cache locked by another instance, skipping write")
	default:
		rt.Logger.Warn("cache write failed", "path", rt.cache.Path(), "error", err)
	}
}

// Serve runs the synchronizer loop, the token watcher and the metrics
// endpoint until ctx is done, starting automatic refresh when autoRefresh is
// set. ready, if non-nil, runs once the loop accepts requests.
func (rt *Runtime) Serve(ctx context.Context, autoRefresh bool, ready func(context.Context) error) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return rt.Sync.Run(gctx)
	})

	if rt.tokenFile != nil {
		g.Go(func() error {
			err := rt.tokenFile.Watch(gctx, func() { rt.Sync.CredentialsChanged() })
			if err != nil {
				rt.Logger.Warn("token file not watched", "path", rt.Config.TokenFile, "error", err)
			}
			return nil
		})
	}

	if rt.metrics != nil {
		g.Go(func() error {
			router := telemetry.Router(rt.metrics.Handler(), func() bool { return gctx.Err() == nil })
			return telemetry.Serve(gctx, rt.Config.MetricsAddr, router, rt.Logger)
		})
	}

	g.Go(func() error {
		select {
		case <-rt.Sync.Ready():
		case <-gctx.Done():
			return nil
		}
		if autoRefresh {
			if err := rt.Sync.Start(); err != nil {
				return err
			}
		}
		if ready == nil {
			<-gctx.Done()
			return nil
		}
		return ready(gctx)
	})

	return g.Wait()
}

// Close flushes metrics and releases the log file.
func (rt *Runtime) Close() error {
	var errs []error
	if rt.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		errs = append(errs, rt.metrics.Shutdown(ctx))
		cancel()
	}
	if rt.logCloser != nil {
		errs = append(errs, rt.logCloser.Close())
	}
	return errors.Join(errs...)
}

// Run boots the dashsync TUI until the user exits or the context is cancelled.
func Run(ctx context.Context, opts Options) error {
	rt, err := Build(opts)
	if err != nil {
		return err
	}
	defer rt.Close()

	prefsPath := opts.PrefsPath
	if prefsPath == "" {
		prefsPath = prefs.DefaultPath()
	}
	userPrefs, err := prefs.Load(prefsPath)
	if err != nil {
		rt.Logger.Warn("ignoring unreadable prefs", "path", prefsPath, "error", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	return rt.Serve(ctx, userPrefs.AutoRefreshEnabled(), func(ctx context.Context) error {
		// Leaving the TUI stops everything else.
		defer cancel()
		return ui.Run(ui.Options{
			Context:   ctx,
			Store:     rt.Store,
			Sync:      rt.Sync,
			Actions:   rt.Actions,
			LogPath:   rt.Config.Log.File,
			Prefs:     userPrefs,
			PrefsPath: prefsPath,
		})
	})
}
