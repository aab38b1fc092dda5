package scanner

import (
	"context"
	"fmt"
	"image"

	"github.com/cuihairu/gamebrowser/internal/cache"
	"github.com/cuihairu/gamebrowser/internal/classify"
	"github.com/cuihairu/gamebrowser/internal/dirtree"
	"github.com/cuihairu/gamebrowser/internal/games"
	"github.com/cuihairu/gamebrowser/internal/thumbnail"
)

// Restore seeds the in-memory result from the persistent cache so a
// library can be shown before the first scan. The restored result carries
// the games, diagnostics and soundfont of the scan that stored it. It
// reports whether a cached result was found.
func (s *Scanner) Restore(ctx context.Context, roots []dirtree.Ref) (Result, bool, error) {
	if s.opts.Cache == nil {
		return Result{}, false, nil
	}
	key := rootsKey(roots)
	entry, ok, err := s.opts.Cache.Load(ctx, key)
	if err != nil {
		return Result{}, false, fmt.Errorf("load scan cache: %w", err)
	}
	if !ok {
		return Result{}, false, nil
	}
	favorites := s.loadFavorites(ctx)
	res := Result{
		Games:     make([]*games.Entry, 0, len(entry.Records)),
		Errors:    append([]string(nil), entry.Errors...),
		SoundFont: dirtree.Ref(entry.SoundFont),
	}
	var archives []*dirtree.Archive
	for _, rec := range entry.Records {
		g, arch, err := s.fromRecord(ctx, rec, favorites)
		if err != nil {
			// the archive moved away; the cache no longer matches the disk
			s.logger.Info("cached archive unavailable, scan cache dropped", "archive", rec.Archive, "error", err)
			_ = closeArchives(archives)
			return Result{}, false, nil
		}
		if arch != nil {
			archives = append(archives, arch)
		}
		res.Games = append(res.Games, g)
	}
	s.swapArchives(archives)
	s.mu.Lock()
	s.last, s.cacheKey, s.valid = res.clone(), key, true
	s.mu.Unlock()
	s.logger.Info("library restored from cache", "games", len(res.Games), "errors", len(res.Errors))
	return res, true, nil
}

// ClearCache invalidates the remembered result and removes the persisted
// copy for roots.
func (s *Scanner) ClearCache(ctx context.Context, roots []dirtree.Ref) error {
	s.Invalidate()
	if s.opts.Cache == nil {
		return nil
	}
	return s.opts.Cache.Clear(ctx, rootsKey(roots))
}

func (s *Scanner) persist(ctx context.Context, roots []dirtree.Ref, res Result) {
	if s.opts.Cache == nil {
		return
	}
	entry := cache.Entry{
		Records:   make([]cache.Record, 0, len(res.Games)),
		Errors:    res.Errors,
		SoundFont: string(res.SoundFont),
	}
	for _, g := range res.Games {
		entry.Records = append(entry.Records, toRecord(g))
	}
	if err := s.opts.Cache.Save(ctx, rootsKey(roots), entry); err != nil {
		s.logger.Warn("scan cache not saved", "error", err)
	}
}

func toRecord(g *games.Entry) cache.Record {
	rec := cache.Record{
		Title:       g.Title(),
		Folder:      string(g.Folder()),
		Archive:     string(g.Archive()),
		SavePath:    g.SavePath(),
		ProjectType: g.ProjectType().String(),
		IniName:     g.IniName(),
	}
	if img := g.TitleImage(); img != nil {
		if b, err := thumbnail.EncodePNG(img); err == nil {
			rec.Thumbnail = b
		}
	}
	return rec
}

func (s *Scanner) fromRecord(ctx context.Context, rec cache.Record, favorites map[string]bool) (*games.Entry, *dirtree.Archive, error) {
	var img image.Image
	if len(rec.Thumbnail) > 0 {
		if decoded, err := thumbnail.DecodePNG(rec.Thumbnail); err == nil {
			img = decoded
		} else {
			s.logger.Debug("cached thumbnail unreadable", "game", rec.Title, "error", err)
		}
	}
	var (
		p    dirtree.Provider = s.opts.Provider
		arch *dirtree.Archive
	)
	if rec.Archive != "" {
		var err error
		if arch, err = dirtree.OpenArchive(ctx, s.opts.Provider, dirtree.Ref(rec.Archive)); err != nil {
			return nil, nil, err
		}
		p = arch
	}
	folder := dirtree.Ref(rec.Folder)
	title := rec.Title
	if title == "" {
		title = p.Name(folder)
	}
	return games.New(games.Options{
		Provider:   p,
		Folder:     folder,
		Archive:    dirtree.Ref(rec.Archive),
		Title:      title,
		Type:       classify.ParseProjectType(rec.ProjectType),
		SavePath:   rec.SavePath,
		IniName:    rec.IniName,
		PrefsName:  s.opts.PrefsName,
		Favorite:   favorites[title],
		Favorites:  s.opts.FavoriteStore,
		TitleImage: img,
		Logger:     s.logger,
	}), arch, nil
}
