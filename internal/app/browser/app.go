// Package browser is the composition root of the game browser: it owns
// the process-wide scanner, layout catalog and settings store and hands
// them to the commands.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/cuihairu/gamebrowser/internal/cache"
	"github.com/cuihairu/gamebrowser/internal/cli/common"
	"github.com/cuihairu/gamebrowser/internal/db"
	"github.com/cuihairu/gamebrowser/internal/dirtree"
	"github.com/cuihairu/gamebrowser/internal/games"
	"github.com/cuihairu/gamebrowser/internal/i18n"
	"github.com/cuihairu/gamebrowser/internal/layout"
	"github.com/cuihairu/gamebrowser/internal/repo/gorm/settings"
	"github.com/cuihairu/gamebrowser/internal/scanner"
	"github.com/cuihairu/gamebrowser/internal/telemetry"
	"github.com/cuihairu/gamebrowser/internal/thumbnail"
)

// App wires the library components from a Config.
type App struct {
	Config    *common.Config
	Logger    *slog.Logger
	Provider  dirtree.Provider
	Scanner   *scanner.Scanner
	Layouts   *layout.Catalog
	Settings  *settings.Repo
	Cache     cache.Store
	Messages  *i18n.Catalog
	Telemetry *telemetry.Provider

	db      *gorm.DB
	closers []func() error
}

// New opens every backing store named by cfg.
func New(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger, Messages: i18n.New(cfg.Library.Locale)}
	if err := a.init(ctx); err != nil {
		_ = a.Close(ctx)
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg := a.Config
	var err error

	a.Telemetry, err = telemetry.NewProvider(ctx, cfg.Telemetry, a.Logger)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func() error { return a.Telemetry.Shutdown(context.Background()) })

	if a.Provider, err = a.openProvider(ctx); err != nil {
		return err
	}

	a.db, err = db.Open(cfg.Settings.DSN, cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open settings store: %w", err)
	}
	if sqlDB, err := a.db.DB(); err == nil {
		a.closers = append(a.closers, sqlDB.Close)
	}
	if err := settings.AutoMigrate(a.db); err != nil {
		return fmt.Errorf("migrate settings: %w", err)
	}
	a.Settings = settings.NewRepo(a.db)

	if a.Cache, err = a.openCache(); err != nil {
		return err
	}

	a.Layouts = layout.Load(cfg.Layouts.File, layout.WithLogger(a.Logger.With("component", "layouts")))

	scanLogger := a.Logger.With("component", "scanner")
	a.Scanner = scanner.New(scanner.Options{
		Provider:      a.Provider,
		Thumbnails:    thumbnail.NewResolver(a.Provider, scanLogger),
		Favorites:     a.Settings,
		FavoriteStore: a.Settings,
		SaveDir:       cfg.Library.SaveDir,
		PrefsName:     cfg.Library.PrefsName,
		Messages:      a.Messages,
		Metrics:       a.Telemetry.ScanMetrics,
		Cache:         a.Cache,
		Logger:        scanLogger,
	})
	a.closers = append(a.closers, a.Scanner.Close)
	return nil
}

func (a *App) openProvider(ctx context.Context) (dirtree.Provider, error) {
	lib := a.Config.Library
	if lib.Backend != "blob" {
		return dirtree.Local{}, nil
	}
	u := lib.BucketURL
	if u == "" {
		var err error
		if u, err = lib.Bucket.URL(); err != nil {
			return nil, fmt.Errorf("library bucket: %w", err)
		}
	}
	b, err := dirtree.OpenBlob(ctx, u)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, b.Close)
	return b, nil
}

func (a *App) openCache() (cache.Store, error) {
	c := a.Config.Cache
	switch c.Backend {
	case "", "none":
		return nil, nil
	case "redis":
		rs, err := cache.OpenRedis(c.RedisURL, c.TTL)
		if err != nil {
			return nil, fmt.Errorf("open redis cache: %w", err)
		}
		a.closers = append(a.closers, rs.Close)
		return rs, nil
	case "db":
		if err := cache.AutoMigrate(a.db); err != nil {
			return nil, fmt.Errorf("migrate scan cache: %w", err)
		}
		return cache.NewDBStore(a.db), nil
	}
	return nil, fmt.Errorf("unknown cache backend %q", c.Backend)
}

// Roots returns the configured roots, falling back to the folders stored
// in the settings.
func (a *App) Roots(ctx context.Context) ([]dirtree.Ref, error) {
	roots := a.Config.Library.Roots
	if len(roots) == 0 {
		stored, err := a.Settings.GamesFolders(ctx)
		if err != nil {
			return nil, err
		}
		roots = stored
	}
	out := make([]dirtree.Ref, len(roots))
	for i, r := range roots {
		out[i] = dirtree.Ref(r)
	}
	return out, nil
}

// Scan runs the scanner on the current roots. Without force, a persisted
// result is restored first so an unchanged library is not walked again.
func (a *App) Scan(ctx context.Context, force bool) (scanner.Result, error) {
	roots, err := a.Roots(ctx)
	if err != nil {
		return scanner.Result{}, err
	}
	if !force {
		if _, ok := a.Scanner.Cached(); !ok {
			if _, _, err := a.Scanner.Restore(ctx, roots); err != nil {
				a.Logger.Warn("scan cache restore failed", "error", err)
			}
		}
	}
	res, err := a.Scanner.Scan(ctx, roots, force)
	if err != nil {
		return res, err
	}
	if res.SoundFont != "" && a.Config.Library.SoundFont == "" {
		if err := a.Settings.Set(ctx, settings.KeySoundFont, string(res.SoundFont)); err != nil {
			a.Logger.Warn("soundfont not stored", "error", err)
		}
	}
	return res, nil
}

// LaunchOptions collects the global settings passed to the engine.
func (a *App) LaunchOptions(ctx context.Context) games.LaunchOptions {
	opts := games.LaunchOptions{SoundFont: a.Config.Library.SoundFont, DisableAudio: a.Config.Library.NoAudio}
	if opts.SoundFont == "" {
		var sf string
		if err := a.Settings.Get(ctx, settings.KeySoundFont, &sf); err == nil {
			opts.SoundFont = sf
		}
	}
	if !opts.DisableAudio {
		enabled := true
		if err := a.Settings.Get(ctx, settings.KeyAudioEnabled, &enabled); err != nil && !errors.Is(err, settings.ErrNotFound) {
			a.Logger.Debug("audio setting unreadable", "error", err)
		}
		opts.DisableAudio = !enabled
	}
	return opts
}

// LaunchArgs builds the engine command line for e.
func (a *App) LaunchArgs(ctx context.Context, e *games.Entry) []string {
	return games.LaunchArgs(ctx, e, a.Layouts, a.LaunchOptions(ctx))
}

// Close releases the stores in reverse order of opening.
func (a *App) Close(context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
