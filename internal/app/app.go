package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/five82/storyboard/internal/config"
	"github.com/five82/storyboard/internal/gallery"
	"github.com/five82/storyboard/internal/prefs"
	"github.com/five82/storyboard/internal/session"
	"github.com/five82/storyboard/internal/state"
	"github.com/five82/storyboard/internal/ui"
)

// startupTimeout bounds the requests made before the UI starts.
const startupTimeout = 5 * time.Second

// Options configure the storyboard application.
type Options struct {
	ConfigPath string
	PrefsPath  string // empty uses ~/.config/storyboard/prefs.toml
	Path       string // scope to open; overrides config and prefs
	Demo       bool   // serve a seeded in-memory backend on a loopback port
}

// Run boots the storyboard TUI until the user quits or ctx is cancelled.
func Run(ctx context.Context, opts Options) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	userPrefs, _ := prefs.Load(opts.PrefsPath)

	logger, closeLog, err := openLog(cfg.LogFile)
	if err != nil {
		return err
	}
	defer closeLog()
	slog.SetDefault(logger)

	apiURL := cfg.APIURL
	if opts.Demo {
		url, stop, err := startDemo(ctx, logger)
		if err != nil {
			return err
		}
		defer stop()
		apiURL = url
	}

	client, err := gallery.NewClient(apiURL, gallery.WithRateLimit(cfg.RequestsPerSecond))
	if err != nil {
		return fmt.Errorf("init gallery client: %w", err)
	}
	logger.Info("storyboard starting", "api", apiURL, "client_id", client.ClientID(), "demo", opts.Demo)

	sess := session.New(ctx, session.Options{
		Client:         client,
		DialogDebounce: cfg.DialogDebounce,
		UpdateCoalesce: cfg.UpdateCoalesce,
		Reconnect:      cfg.ReconnectUpdates,
		EditMode:       userPrefs.EditMode,
		Logger:         logger,
	})
	defer func() {
		if err := sess.Close(); err != nil {
			logger.Warn("session close", "error", err)
		}
	}()

	startCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	_ = sess.LoadSpeakers(startCtx)
	_, loadErr := openInitialScope(startCtx, opts.Path, cfg, userPrefs, sess)
	cancel()
	sess.Start()

	return ui.Run(ui.Options{
		Context:   ctx,
		Session:   sess,
		ThemeName: userPrefs.Theme,
		PrefsPath: opts.PrefsPath,
		LogFile:   cfg.LogFile,
		StartErr:  loadErr,
	})
}

// openInitialScope resolves and loads the scope shown at startup. The image
// root "" is loaded like any other scope.
func openInitialScope(ctx context.Context, flagPath string, cfg config.Config, p prefs.Prefs, sess *session.Session) (state.Snapshot, error) {
	path := resolveScope(ctx, flagPath, cfg, p, sess)
	return sess.SwitchScope(ctx, path)
}

type pathSource interface {
	DefaultPath(ctx context.Context) (string, error)
}

// resolveScope picks the scope to open: flag, then config, then the last
// scope used, then the server's default.
func resolveScope(ctx context.Context, flagPath string, cfg config.Config, p prefs.Prefs, src pathSource) string {
	for _, candidate := range []string{flagPath, cfg.DefaultPath, p.LastPath} {
		if v := strings.Trim(strings.TrimSpace(candidate), "/"); v != "" {
			return v
		}
	}
	path, err := src.DefaultPath(ctx)
	if err != nil {
		slog.Warn("default path unavailable", "error", err)
		return ""
	}
	return strings.Trim(path, "/")
}
