package browser

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/cuihairu/gamebrowser/internal/dirtree"
	"github.com/cuihairu/gamebrowser/internal/hotreload"
	"github.com/cuihairu/gamebrowser/internal/scanner"
)

// ErrWatchUnsupported is returned by Watch for non-local backends.
var ErrWatchUnsupported = errors.New("browser: watching requires the local backend")

// busyRetry is how long a rescan waits for a running scan to finish.
var busyRetry = 100 * time.Millisecond

// Watch rescans the library whenever a root changes and reloads the layout
// catalog when its file is edited. onChange receives each new result.
func (a *App) Watch(ctx context.Context, cfg *hotreload.Config, onChange func(scanner.Result)) (*hotreload.Watcher, error) {
	if _, ok := a.Provider.(dirtree.Local); !ok {
		return nil, ErrWatchUnsupported
	}
	roots, err := a.Roots(ctx)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = hotreload.DefaultConfig()
	}
	dirs := make([]string, len(roots))
	for i, r := range roots {
		dirs[i] = string(r)
	}
	cfg.Dirs = dirs
	cfg.Depth = scanner.FirstRootDepth
	cfg.Files = append(cfg.Files, a.Config.Layouts.File)

	w, err := hotreload.New(cfg, a.Logger.With("component", "watcher"))
	if err != nil {
		return nil, err
	}
	w.RegisterHandler("library", hotreload.MatchUnder(dirs...), func(ctx context.Context, _ hotreload.Event) error {
		return a.rescan(ctx, roots, onChange)
	})
	w.RegisterHandler("layouts", hotreload.MatchBase(filepath.Base(a.Config.Layouts.File)), func(context.Context, hotreload.Event) error {
		return a.Layouts.Reload()
	})
	if err := w.Start(ctx); err != nil {
		_ = w.Stop()
		return nil, err
	}
	return w, nil
}

// rescan walks roots after a change. A scan that is already running
// started before the change, so its result is not kept: rescan waits for
// it and walks again.
func (a *App) rescan(ctx context.Context, roots []dirtree.Ref, onChange func(scanner.Result)) error {
	a.Scanner.Invalidate()
	for {
		res, err := a.Scanner.Scan(ctx, roots, false)
		if errors.Is(err, scanner.ErrScanInProgress) {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(busyRetry):
			}
			continue
		}
		if err != nil {
			return err
		}
		if onChange != nil {
			onChange(res)
		}
		return nil
	}
}
